package dataset

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/reproject-cli/internal/crs"
)

var (
	authorityRe = regexp.MustCompile(`(?i)AUTHORITY\[\s*"EPSG"\s*,\s*"?(\d+)"?\s*\]\s*\]\s*$`)
	utmZoneRe   = regexp.MustCompile(`(?i)UTM[ _]zone[ _](\d{1,2})\s*([NS])?`)
)

// ParsePRJ maps the ESRI WKT of a .prj file to a descriptor. It recognises a
// top-level EPSG authority, geographic WGS 84 and NAD83 systems, UTM zones on
// either datum and Web Mercator.
func ParsePRJ(wkt string) (crs.Descriptor, error) {
	wkt = strings.TrimSpace(wkt)
	if wkt == "" {
		return "", nil
	}
	if m := authorityRe.FindStringSubmatch(wkt); m != nil {
		code, _ := strconv.Atoi(m[1])
		if d, err := crs.FromEPSG(code); err == nil {
			return d, nil
		}
	}

	upper := strings.ToUpper(wkt)
	nad83 := strings.Contains(upper, "NORTH_AMERICAN_1983") || strings.Contains(upper, "NAD83") ||
		strings.Contains(upper, "NAD 83")
	wgs84 := strings.Contains(upper, "WGS_1984") || strings.Contains(upper, "WGS 84") ||
		strings.Contains(upper, "WGS84")

	switch {
	case strings.HasPrefix(upper, "GEOGCS["):
		switch {
		case wgs84:
			return crs.Geographic, nil
		case nad83:
			return crs.FromEPSG(4269)
		}
	case strings.HasPrefix(upper, "PROJCS["):
		if strings.Contains(upper, "WEB_MERCATOR") || strings.Contains(upper, "PSEUDO-MERCATOR") ||
			strings.Contains(upper, "MERCATOR_AUXILIARY_SPHERE") {
			return crs.WebMercator, nil
		}
		m := utmZoneRe.FindStringSubmatch(wkt)
		if m == nil {
			break
		}
		zone, _ := strconv.Atoi(m[1])
		south := strings.EqualFold(m[2], "S")
		switch {
		case wgs84 && south:
			return crs.FromEPSG(32700 + zone)
		case wgs84:
			return crs.FromEPSG(32600 + zone)
		case nad83 && !south:
			return crs.FromEPSG(26900 + zone)
		}
	}
	return "", eris.Wrapf(crs.ErrUnsupported, "dataset: projection %.60q", wkt)
}
