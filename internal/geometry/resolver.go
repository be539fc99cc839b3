// Package geometry derives a validated point from whichever coordinate
// representation an upstream source happens to provide.
//
// Strategies are tried in a fixed declared order and resolution stops at the
// first success, so the output is deterministic when a record satisfies more
// than one strategy's preconditions:
//
//  1. direct pair: dedicated latitude/longitude fields
//  2. embedded point: "POINT (lon lat)" or "(lon, lat)" text
//  3. geometry feature: a field already holding a GeoJSON-shaped value
//  4. lookup table: named locations (stations) mapped to coordinates
//
// Every candidate point is validated against the NYC bounding envelope; a
// rejected candidate causes fall-through to the next strategy.
package geometry

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/citypulse/civic-etl/internal/domain"
)

// Envelope is a lat/lon bounding box used to reject coordinates that cannot
// belong to the city (swapped axes, zeroed fields, out-of-state points).
type Envelope struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// Contains reports whether the point lies strictly inside the envelope.
func (e Envelope) Contains(p domain.Point) bool {
	return p.Lat > e.MinLat && p.Lat < e.MaxLat && p.Lon > e.MinLon && p.Lon < e.MaxLon
}

// NYCEnvelope bounds the five boroughs with margin.
var NYCEnvelope = Envelope{MinLat: 40.4, MaxLat: 41.0, MinLon: -74.3, MaxLon: -73.7}

// StrategyKind names a resolution strategy, recorded on the geometry slot for
// run summaries and divergence logging.
type StrategyKind string

const (
	StrategyDirectPair StrategyKind = "direct_pair"
	StrategyEmbedded   StrategyKind = "embedded_point"
	StrategyFeature    StrategyKind = "geometry_feature"
	StrategyLookup     StrategyKind = "lookup_table"
)

// strategy is one entry in the resolver's ordered table.
type strategy struct {
	kind    StrategyKind
	resolve func(r *Resolver, raw domain.RawRecord, slot string) *domain.Point
}

// Resolver holds the strategy table, the validation envelope, and the named
// location lookup table. Safe for concurrent use; all state is read-only.
type Resolver struct {
	envelope   Envelope
	strategies []strategy
	lookup     []NamedLocation
	logger     *slog.Logger
}

// NewResolver creates a resolver with the default strategy order and the
// built-in station lookup table.
func NewResolver(logger *slog.Logger) *Resolver {
	return &Resolver{
		envelope: NYCEnvelope,
		strategies: []strategy{
			{kind: StrategyDirectPair, resolve: (*Resolver).fromDirectPair},
			{kind: StrategyEmbedded, resolve: (*Resolver).fromEmbeddedText},
			{kind: StrategyFeature, resolve: (*Resolver).fromFeature},
			{kind: StrategyLookup, resolve: (*Resolver).fromLookup},
		},
		lookup: StationLocations,
		logger: logger,
	}
}

// Resolve attempts each strategy in order against the raw record and returns
// the first in-envelope point. slot scopes field matching for multi-geometry
// records ("pickup", "dropoff"); pass "" for single-slot sources. The second
// return is the winning strategy; ok is false when every strategy failed.
func (r *Resolver) Resolve(raw domain.RawRecord, slot string) (domain.Point, StrategyKind, bool) {
	for _, s := range r.strategies {
		p := s.resolve(r, raw, slot)
		if p == nil {
			continue
		}
		if !r.envelope.Contains(*p) {
			r.logger.Debug("candidate point outside envelope",
				"strategy", string(s.kind), "slot", slot, "lat", p.Lat, "lon", p.Lon)
			continue
		}
		r.logger.Debug("geometry resolved", "strategy", string(s.kind), "slot", slot)
		return *p, s.kind, true
	}
	return domain.Point{}, "", false
}

// ResolveSlot resolves into a record's geometry slot, applying the source's
// null-geometry policy when nothing resolves. The bool reports whether the
// record should be kept in the batch.
func (r *Resolver) ResolveSlot(rec *domain.CanonicalRecord, raw domain.RawRecord, slotName string, slot *domain.GeometrySlot, policy domain.NullGeometryPolicy) bool {
	if policy == domain.NoGeometry {
		return true
	}
	p, kind, ok := r.Resolve(raw, slotName)
	if ok {
		slot.Point = &p
		slot.Strategy = string(kind)
		return true
	}
	return policy == domain.KeepWithoutGeometry
}

// fromDirectPair matches dedicated latitude/longitude fields by substring.
// Field names are scanned in lexical order so first-match-wins is stable.
// With a non-empty slot, only fields carrying the slot name qualify, which
// keeps pickup and dropoff pairs apart on trip records.
func (r *Resolver) fromDirectPair(raw domain.RawRecord, slot string) *domain.Point {
	latField := firstFieldContaining(raw, slot, "lat")
	lonField := firstFieldContaining(raw, slot, "lon", "lng")
	if latField == "" || lonField == "" {
		return nil
	}
	lat, okLat := raw.FieldFloat(latField)
	lon, okLon := raw.FieldFloat(lonField)
	if !okLat || !okLon {
		return nil
	}
	return &domain.Point{Lat: lat, Lon: lon}
}

var (
	// wktPointRe matches serialized WKT points, e.g. "POINT (-73.98 40.75)".
	wktPointRe = regexp.MustCompile(`POINT \(([-\d.]+) ([-\d.]+)\)`)
	// tuplePointRe matches bare coordinate tuples, e.g. "(-73.98, 40.75)".
	// Both forms carry longitude first.
	tuplePointRe = regexp.MustCompile(`\(([-\d.]+), ([-\d.]+)\)`)
)

// fromEmbeddedText parses a point serialized into a location-ish text field.
func (r *Resolver) fromEmbeddedText(raw domain.RawRecord, slot string) *domain.Point {
	for _, field := range sortedFields(raw) {
		if !matchesSlot(field, slot) {
			continue
		}
		lower := strings.ToLower(field)
		if !strings.Contains(lower, "location") && !strings.Contains(lower, "point") && !strings.Contains(lower, "geom") {
			continue
		}
		s, ok := raw[field].(string)
		if !ok {
			continue
		}
		if p := parsePointText(s); p != nil {
			return p
		}
	}
	return nil
}

// parsePointText extracts (lon, lat) from a WKT point or a bare tuple.
func parsePointText(s string) *domain.Point {
	m := wktPointRe.FindStringSubmatch(s)
	if m == nil {
		m = tuplePointRe.FindStringSubmatch(s)
	}
	if m == nil {
		return nil
	}
	lon, errLon := strconv.ParseFloat(m[1], 64)
	lat, errLat := strconv.ParseFloat(m[2], 64)
	if errLon != nil || errLat != nil {
		return nil
	}
	return &domain.Point{Lat: lat, Lon: lon}
}

// fromFeature handles fields that already hold a structured geometry value:
// either a GeoJSON point ({"type":"Point","coordinates":[lon,lat]}) or the
// Socrata location type ({"latitude":"40.7","longitude":"-73.9"}).
func (r *Resolver) fromFeature(raw domain.RawRecord, slot string) *domain.Point {
	for _, field := range sortedFields(raw) {
		if !matchesSlot(field, slot) {
			continue
		}
		obj, ok := raw[field].(map[string]any)
		if !ok {
			continue
		}

		if _, hasType := obj["type"]; hasType {
			if p := decodeGeoJSONPoint(obj); p != nil {
				return p
			}
		}

		sub := domain.RawRecord(obj)
		lat, okLat := sub.FieldFloat("latitude")
		lon, okLon := sub.FieldFloat("longitude")
		if okLat && okLon {
			return &domain.Point{Lat: lat, Lon: lon}
		}
	}
	return nil
}

func decodeGeoJSONPoint(obj map[string]any) *domain.Point {
	data, err := json.Marshal(obj)
	if err != nil {
		return nil
	}
	geom, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil
	}
	if pt, ok := geom.Geometry().(orb.Point); ok {
		return &domain.Point{Lat: pt.Lat(), Lon: pt.Lon()}
	}
	return nil
}

// fromLookup resolves sources that report only a named physical location.
// The lookup table is an ordered slice and matching is substring containment,
// so collisions resolve to the first declared entry, always.
func (r *Resolver) fromLookup(raw domain.RawRecord, slot string) *domain.Point {
	name := raw.FieldString("station_complex")
	if name == "" {
		name = raw.FieldString("station_name")
	}
	if name == "" {
		return nil
	}
	name = domain.StationName(name)
	for _, loc := range r.lookup {
		if strings.Contains(name, loc.Name) {
			return &domain.Point{Lat: loc.Lat, Lon: loc.Lon}
		}
	}
	return nil
}

// sortedFields returns the record's field names in lexical order so substring
// matching has a deterministic first match.
func sortedFields(raw domain.RawRecord) []string {
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// firstFieldContaining returns the lexically first field whose lowercase name
// contains any of the substrings (and the slot name, when given).
func firstFieldContaining(raw domain.RawRecord, slot string, substrings ...string) string {
	for _, field := range sortedFields(raw) {
		if !matchesSlot(field, slot) {
			continue
		}
		lower := strings.ToLower(field)
		for _, sub := range substrings {
			if strings.Contains(lower, sub) {
				return field
			}
		}
	}
	return ""
}

func matchesSlot(field, slot string) bool {
	if slot == "" {
		return true
	}
	return strings.Contains(strings.ToLower(field), slot)
}
