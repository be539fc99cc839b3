// Package spatial resolves which neighborhood boundary contains a point.
//
// The boundary set is loaded once per run and never mutated, so one Index may
// be shared read-only across concurrent source pipelines without
// synchronization. Edge membership follows orb's planar ring containment and
// is consistent within a run.
package spatial

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"github.com/citypulse/civic-etl/internal/domain"
)

// Boundary is one immutable reference polygon keyed by a stable identifier.
type Boundary struct {
	ID      int64
	Name    string
	Borough string
	Shape   orb.MultiPolygon
}

// Index is the fixed neighborhood boundary set for one run.
type Index struct {
	boundaries []Boundary
}

// NewIndex builds an index over a boundary slice.
func NewIndex(boundaries []Boundary) *Index {
	return &Index{boundaries: boundaries}
}

// Len returns the number of boundaries in the set.
func (idx *Index) Len() int { return len(idx.boundaries) }

// Boundaries returns the underlying set, for validation tooling.
func (idx *Index) Boundaries() []Boundary { return idx.boundaries }

// Locate returns the identifier of the boundary containing the point, or
// false if no boundary contains it (ocean, outside city limits).
func (idx *Index) Locate(p domain.Point) (int64, bool) {
	pt := orb.Point{p.Lon, p.Lat}
	for _, b := range idx.boundaries {
		if planar.MultiPolygonContains(b.Shape, pt) {
			return b.ID, true
		}
	}
	return 0, false
}

// Enrich attaches the containing boundary's identifier to a resolved geometry
// slot. Unresolved slots are left untouched; an uncontained point keeps a nil
// neighborhood reference, meaning "outside all known boundaries".
func (idx *Index) Enrich(slot *domain.GeometrySlot) {
	if !slot.Resolved() {
		return
	}
	if id, ok := idx.Locate(*slot.Point); ok {
		slot.NeighborhoodID = &id
	}
}

// LoadFile reads a GeoJSON FeatureCollection of neighborhood polygons.
// Features must carry id, name, and borough properties and Polygon or
// MultiPolygon geometry.
func LoadFile(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read boundaries: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse boundaries: %w", err)
	}

	boundaries := make([]Boundary, 0, len(fc.Features))
	for i, f := range fc.Features {
		b, err := fromFeature(f)
		if err != nil {
			return nil, fmt.Errorf("boundary feature %d: %w", i, err)
		}
		boundaries = append(boundaries, b)
	}
	return NewIndex(boundaries), nil
}

// FromGeoJSON builds one Boundary from raw GeoJSON geometry plus attributes,
// used when boundaries are read from the canonical store instead of a file.
func FromGeoJSON(id int64, name, borough string, geometry []byte) (Boundary, error) {
	geom, err := geojson.UnmarshalGeometry(geometry)
	if err != nil {
		return Boundary{}, fmt.Errorf("parse boundary %d geometry: %w", id, err)
	}
	shape, err := toMultiPolygon(geom.Geometry())
	if err != nil {
		return Boundary{}, fmt.Errorf("boundary %d: %w", id, err)
	}
	return Boundary{ID: id, Name: name, Borough: borough, Shape: shape}, nil
}

func fromFeature(f *geojson.Feature) (Boundary, error) {
	shape, err := toMultiPolygon(f.Geometry)
	if err != nil {
		return Boundary{}, err
	}
	id := int64(f.Properties.MustInt("id", 0))
	if id == 0 {
		return Boundary{}, fmt.Errorf("missing id property")
	}
	return Boundary{
		ID:      id,
		Name:    f.Properties.MustString("name", ""),
		Borough: f.Properties.MustString("borough", ""),
		Shape:   shape,
	}, nil
}

func toMultiPolygon(g orb.Geometry) (orb.MultiPolygon, error) {
	switch shape := g.(type) {
	case orb.Polygon:
		return orb.MultiPolygon{shape}, nil
	case orb.MultiPolygon:
		return shape, nil
	default:
		return nil, fmt.Errorf("unsupported geometry type %T", g)
	}
}
