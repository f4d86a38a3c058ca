package crs

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUTMDescriptor(t *testing.T) {
	assert.Equal(t, Descriptor("+proj=utm +zone=32 +ellps=WGS84 +datum=WGS84 +units=m +no_defs"), UTM(32))
	assert.Equal(t, Descriptor("+proj=utm +zone=1 +ellps=WGS84 +datum=WGS84 +units=m +no_defs"), UTM(1))
	assert.Equal(t, Descriptor("+proj=utm +zone=19 +south +ellps=WGS84 +datum=WGS84 +units=m +no_defs"), UTMSouth(19))
	assert.Equal(t, "+proj=longlat +ellps=WGS84 +datum=WGS84 +no_defs", Geographic.String())
}

func TestDescriptorEqual(t *testing.T) {
	assert.True(t, UTM(32).Equal(UTM(32)))
	assert.False(t, UTM(32).Equal(UTM(33)))
	// Parametrically equivalent but textually different descriptors are distinct.
	assert.False(t, Geographic.Equal("+proj=longlat +datum=WGS84 +ellps=WGS84 +no_defs"))
	assert.True(t, Descriptor("  ").IsEmpty())
	assert.False(t, Geographic.IsEmpty())
}

func TestDescriptorParam(t *testing.T) {
	v, ok := UTM(32).Param("zone")
	assert.True(t, ok)
	assert.Equal(t, "32", v)

	_, ok = UTMSouth(23).Param("south")
	assert.True(t, ok)
	_, ok = UTM(23).Param("south")
	assert.False(t, ok)

	assert.True(t, Geographic.IsGeographic())
	assert.True(t, Descriptor("+proj=latlong +datum=WGS84").IsGeographic())
	assert.False(t, UTM(32).IsGeographic())
	assert.False(t, WebMercator.IsGeographic())
}

func TestParse(t *testing.T) {
	for _, d := range []Descriptor{Geographic, UTM(32), UTMSouth(23), WebMercator, nad83UTM(18)} {
		sr, err := Parse(d)
		require.NoError(t, err, "%s", d)
		assert.NotNil(t, sr)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   Descriptor
		want error
	}{
		{name: "empty", in: "", want: ErrInvalid},
		{name: "no plus", in: "proj=utm zone=3", want: ErrInvalid},
		{name: "missing proj", in: "+ellps=WGS84", want: ErrInvalid},
		{name: "duplicate", in: "+proj=utm +zone=3 +zone=4", want: ErrInvalid},
		{name: "unknown proj", in: "+proj=nonesuch +ellps=WGS84", want: ErrUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.in)
			require.Error(t, err)
			assert.True(t, eris.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestFromEPSG(t *testing.T) {
	tests := []struct {
		code int
		want Descriptor
	}{
		{4326, Geographic},
		{4269, nad83Geographic},
		{3857, WebMercator},
		{32632, UTM(32)},
		{32723, UTMSouth(23)},
		{26918, nad83UTM(18)},
	}
	for _, tt := range tests {
		got, err := FromEPSG(tt.code)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.code, SRID(got))
	}

	_, err := FromEPSG(2154)
	assert.True(t, eris.Is(err, ErrUnsupported))
}

func TestResolve(t *testing.T) {
	tests := []struct {
		in   string
		want Descriptor
	}{
		{"", ""},
		{"EPSG:32632", UTM(32)},
		{"epsg:4326", Geographic},
		{"urn:ogc:def:crs:EPSG::32633", UTM(33)},
		{"urn:ogc:def:crs:OGC:1.3:CRS84", Geographic},
		{" " + string(UTM(31)) + " ", UTM(31)},
	}
	for _, tt := range tests {
		got, err := Resolve(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := Resolve("Lambert-93")
	assert.True(t, eris.Is(err, ErrInvalid))
	_, err = Resolve("+proj=nonesuch")
	assert.True(t, eris.Is(err, ErrUnsupported))
}

func TestSRID_NonCanonical(t *testing.T) {
	assert.Zero(t, SRID("+proj=longlat +datum=WGS84 +ellps=WGS84 +no_defs"))
	assert.Zero(t, SRID("+proj=tmerc +lat_0=49 +lon_0=-2 +k=0.9996012717 +x_0=400000 +y_0=-100000 +ellps=WGS84 +units=m +no_defs"))
	assert.Zero(t, SRID(""))
}
