package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SourceType identifies one upstream feed and its canonical table.
type SourceType string

const (
	SourceComplaints SourceType = "complaints"
	SourceRidership  SourceType = "ridership"
	SourceTrips      SourceType = "trips"
	SourceWeather    SourceType = "weather"
	SourceEvents     SourceType = "events"
)

// ConflictPolicy governs how re-ingested records interact with rows already
// in the canonical table.
type ConflictPolicy int

const (
	// InsertOnly appends rows; re-runs over a window are assumed to carry new rows.
	InsertOnly ConflictPolicy = iota
	// ReplaceByTimestamp deletes rows sharing a primary timestamp before
	// inserting, so re-fetches overwrite (one reading per timestamp).
	ReplaceByTimestamp
	// ReplaceByExternalID deletes rows sharing a declared external identifier
	// before inserting, so a re-fetched record replaces its prior version.
	ReplaceByExternalID
)

// NullGeometryPolicy is the per-source contract for records whose geometry
// could not be resolved.
type NullGeometryPolicy int

const (
	// KeepWithoutGeometry loads the record with a null geometry column.
	KeepWithoutGeometry NullGeometryPolicy = iota
	// DropRecord excludes the record from the batch.
	DropRecord
	// NoGeometry marks a source that never carries a geometry slot.
	NoGeometry
)

// RawRecord is one untyped row as returned by an upstream page. Ephemeral:
// created per fetched page, discarded after normalization.
type RawRecord map[string]any

// Point is a WGS-84 coordinate pair.
type Point struct {
	Lat float64
	Lon float64
}

// GeometrySlot is a named position within a canonical record reserved for one
// resolved point. Strategy records which resolver strategy produced the point;
// empty means unresolved.
type GeometrySlot struct {
	Point          *Point
	NeighborhoodID *int64
	Strategy       string
}

// Resolved reports whether the slot holds a validated point.
func (s GeometrySlot) Resolved() bool { return s.Point != nil }

// TimeParts is the multi-resolution decomposition of a timestamp.
// Weekday is Monday=0 through Sunday=6.
type TimeParts struct {
	Hour    int
	Day     int
	Weekday int
	Month   int
	Year    int
}

// CanonicalRecord is the fixed-shape, spatially-enriched record persisted to
// the store. Created by the normalizer with empty geometry slots, mutated in
// place by the geometry, temporal, and spatial stages, then handed immutable
// to the load engine.
type CanonicalRecord struct {
	Source        SourceType
	ExternalID    string    // events: declared event id; complaints: unique_key
	PrimaryTime   time.Time // drives temporal decomposition
	SecondaryTime time.Time // dropoff / event end; zero when the source has no span
	Clock         TimeParts

	Location GeometrySlot // single point, or pickup for trips
	Dropoff  GeometrySlot // trips only

	Attrs Attributes
}

// Attributes holds the source-specific categorical and numeric fields. Only
// the group matching the record's Source is populated.
type Attributes struct {
	// 311 complaints.
	ComplaintType string
	Descriptor    string
	IncidentZip   string

	// MTA ridership.
	StationName string
	Entries     int
	Exits       int

	// TLC trips.
	PassengerCount int
	TripDistance   float64
	PickupZoneID   *int
	DropoffZoneID  *int

	// Weather.
	Temperature      *float64
	Precipitation    *float64
	Humidity         *float64
	WindSpeed        *float64
	WeatherCondition string

	// Permitted events.
	EventName     string
	EventCategory string
}

// Raw field accessors. Socrata returns every scalar as a string, NOAA and
// some datasets as float64, so each getter coerces across both.

// FieldString returns the named field as a trimmed string, or "" when absent.
func (r RawRecord) FieldString(name string) string {
	v, ok := r[name]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", val))
	}
}

// FieldFloat returns the named field as a float64. The second result is false
// when the field is absent or unparseable.
func (r RawRecord) FieldFloat(name string) (float64, bool) {
	v, ok := r[name]
	if !ok || v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case float64:
		return val, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// FieldInt returns the named field as an int, tolerating string-encoded
// floats ("1.0") the way the upstream datasets emit them.
func (r RawRecord) FieldInt(name string) (int, bool) {
	f, ok := r.FieldFloat(name)
	if !ok {
		return 0, false
	}
	return int(f), true
}
