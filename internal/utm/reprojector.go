package utm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/reproject-cli/internal/crs"
	"github.com/sells-group/reproject-cli/internal/dataset"
	"github.com/sells-group/reproject-cli/internal/geometry"
)

// RepairReport lists the IDs of repaired features in dataset order.
type RepairReport struct {
	IDs []string
}

// Empty reports whether nothing was repaired.
func (r RepairReport) Empty() bool { return len(r.IDs) == 0 }

// Message is the diagnostic emitted for a non-empty report.
func (r RepairReport) Message() string {
	return fmt.Sprintf("Repaired invalid geometries after reprojection at indices [%s].", strings.Join(r.IDs, ", "))
}

// Result is the outcome of the full pipeline.
type Result struct {
	Dataset *dataset.Dataset
	Zone    Zone
	Report  RepairReport
}

// Finding is a feature that failed the validity check.
type Finding struct {
	ID  string
	Err *geometry.TopologyError
}

// Reprojector runs the zone selection, reprojection and repair stages over
// a configurable backend. The zero value is not usable; call New.
type Reprojector struct {
	backend        geometry.Backend
	sink           Sink
	verifyRepairs  bool
	irregularZones bool
}

// Option configures a Reprojector.
type Option func(*Reprojector)

// WithBackend sets the geometry backend. The default is geometry.Planar.
func WithBackend(b geometry.Backend) Option {
	return func(r *Reprojector) { r.backend = b }
}

// WithSink sets the diagnostic sink. The default is LogSink.
func WithSink(s Sink) Option {
	return func(r *Reprojector) { r.sink = s }
}

// WithVerifyRepairs makes Repair re-check repaired geometries and fail with
// geometry.ErrRepairFailed when they are still invalid.
func WithVerifyRepairs(v bool) Option {
	return func(r *Reprojector) { r.verifyRepairs = v }
}

// WithIrregularZones classifies centroids with ZoneOfIrregular.
func WithIrregularZones(v bool) Option {
	return func(r *Reprojector) { r.irregularZones = v }
}

// New returns a Reprojector with the given options applied.
func New(opts ...Option) *Reprojector {
	r := &Reprojector{backend: geometry.Planar{}, sink: LogSink{}}
	for _, opt := range opts {
		opt(r)
	}
	if r.sink == nil {
		r.sink = Discard
	}
	return r
}

// Normalize returns a copy of ds in WGS84 longitude/latitude using backend.
func Normalize(ds *dataset.Dataset, backend geometry.Backend) (*dataset.Dataset, error) {
	return New(WithBackend(backend)).Normalize(ds)
}

// IdentifyZone returns the plurality UTM zone of ds with default options.
func IdentifyZone(ds *dataset.Dataset) (Zone, error) {
	return New().IdentifyZone(ds)
}

// Reprojected runs the full pipeline with default options.
func Reprojected(ds *dataset.Dataset) (*Result, error) {
	return New().Reprojected(ds)
}

// Normalize returns a copy of ds in crs.Geographic. A dataset already in
// that system is cloned without transformation.
func (r *Reprojector) Normalize(ds *dataset.Dataset) (*dataset.Dataset, error) {
	if ds.CRS.IsEmpty() {
		return nil, eris.Wrap(ErrUndefinedCRS, "utm: normalize")
	}
	if ds.CRS.Equal(crs.Geographic) {
		out, err := ds.Clone()
		if err != nil {
			return nil, eris.Wrap(err, "utm: normalize")
		}
		return out, nil
	}
	return r.transform(ds, crs.Geographic)
}

// IdentifyZone normalizes ds and returns the zone containing the most
// feature centroids. Ties go to the zone encountered first in dataset order.
func (r *Reprojector) IdentifyZone(ds *dataset.Dataset) (Zone, error) {
	norm, err := r.Normalize(ds)
	if err != nil {
		return 0, err
	}
	if norm.Len() == 0 {
		return 0, eris.Wrap(ErrEmptyDataset, "utm: identify zone")
	}

	zoneOf := ZoneOf
	if r.irregularZones {
		zoneOf = ZoneOfIrregular
	}

	counts := make(map[Zone]int)
	var order []Zone
	for _, f := range norm.Features {
		c, err := r.backend.Centroid(f.Geometry)
		if err != nil {
			return 0, eris.Wrapf(err, "utm: centroid of feature %s", f.ID)
		}
		z, err := zoneOf(c[1], c[0])
		if err != nil {
			return 0, eris.Wrapf(err, "utm: feature %s", f.ID)
		}
		if counts[z] == 0 {
			order = append(order, z)
		}
		counts[z]++
	}

	best := order[0]
	for _, z := range order[1:] {
		if counts[z] > counts[best] {
			best = z
		}
	}

	zap.L().With(zap.String("component", "utm")).Debug("identified zone",
		zap.Int("zone", int(best)),
		zap.Int("votes", counts[best]),
		zap.Int("features", norm.Len()),
		zap.Int("zones", len(order)),
	)
	return best, nil
}

// Reproject transforms every geometry of ds into the given zone.
func (r *Reprojector) Reproject(ds *dataset.Dataset, zone Zone) (*dataset.Dataset, error) {
	if !zone.Valid() {
		return nil, eris.Wrapf(ErrInvalidZone, "utm: zone %d", zone)
	}
	if ds.CRS.IsEmpty() {
		return nil, eris.Wrap(ErrUndefinedCRS, "utm: reproject")
	}
	return r.transform(ds, crs.UTM(int(zone)))
}

func (r *Reprojector) transform(ds *dataset.Dataset, dst crs.Descriptor) (*dataset.Dataset, error) {
	tr, err := r.backend.Transformer(ds.CRS, dst)
	if err != nil {
		return nil, eris.Wrapf(err, "utm: transform to %s", dst)
	}

	out := &dataset.Dataset{CRS: dst, Features: make([]dataset.Feature, 0, ds.Len())}
	for _, f := range ds.Features {
		g, err := tr(f.Geometry)
		if err != nil {
			return nil, eris.Wrapf(err, "utm: transform feature %s", f.ID)
		}
		out.Features = append(out.Features, f.WithGeometry(g))
	}
	return out, nil
}

// Repair checks every geometry of ds and replaces those with a topology
// error by their zero-distance buffer. The IDs of replaced features are
// returned and, when there are any, reported to the sink.
func (r *Reprojector) Repair(ds *dataset.Dataset) (*dataset.Dataset, RepairReport, error) {
	var report RepairReport
	out := &dataset.Dataset{CRS: ds.CRS, Features: make([]dataset.Feature, 0, ds.Len())}

	for _, f := range ds.Features {
		g, err := r.backend.SelfIntersection(f.Geometry)
		if err == nil {
			out.Features = append(out.Features, f.WithGeometry(g))
			continue
		}
		if _, ok := topologyError(err); !ok {
			return nil, RepairReport{}, eris.Wrapf(err, "utm: check feature %s", f.ID)
		}

		repaired, err := r.backend.Buffer(f.Geometry, 0)
		if err != nil {
			return nil, RepairReport{}, eris.Wrapf(err, "utm: repair feature %s", f.ID)
		}
		if r.verifyRepairs {
			if _, err := r.backend.SelfIntersection(repaired); err != nil {
				return nil, RepairReport{}, &geometry.BackendError{
					Op:  "repair",
					Err: eris.Wrapf(geometry.ErrRepairFailed, "utm: feature %s: %v", f.ID, err),
				}
			}
		}
		out.Features = append(out.Features, f.WithGeometry(repaired))
		report.IDs = append(report.IDs, f.ID)
	}

	if !report.Empty() {
		zap.L().With(zap.String("component", "utm")).Debug("repaired geometries",
			zap.Strings("ids", report.IDs),
		)
		r.sink.Warn(report.Message())
	}
	return out, report, nil
}

// Check tests every geometry of ds without repairing and returns the
// features with topology errors.
func (r *Reprojector) Check(ds *dataset.Dataset) ([]Finding, error) {
	var findings []Finding
	for _, f := range ds.Features {
		_, err := r.backend.SelfIntersection(f.Geometry)
		if err == nil {
			continue
		}
		te, ok := topologyError(err)
		if !ok {
			return nil, eris.Wrapf(err, "utm: check feature %s", f.ID)
		}
		findings = append(findings, Finding{ID: f.ID, Err: te})
	}
	return findings, nil
}

// Reprojected identifies the zone of ds, reprojects into it and repairs the
// result.
func (r *Reprojector) Reprojected(ds *dataset.Dataset) (*Result, error) {
	zone, err := r.IdentifyZone(ds)
	if err != nil {
		return nil, err
	}
	projected, err := r.Reproject(ds, zone)
	if err != nil {
		return nil, err
	}
	repaired, report, err := r.Repair(projected)
	if err != nil {
		return nil, err
	}
	return &Result{Dataset: repaired, Zone: zone, Report: report}, nil
}

func topologyError(err error) (*geometry.TopologyError, bool) {
	var te *geometry.TopologyError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
