package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Socrata floating timestamps carry no zone; NOAA dates are bare. All are
// interpreted as UTC wall-clock values.
var timestampLayouts = []string{
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Normalize maps one raw upstream row onto a canonical record skeleton:
// timestamps and categorical fields filled, geometry slots empty. Returns a
// NormalizationError when no usable primary timestamp exists under any of the
// source's known aliases.
func Normalize(spec SourceSpec, raw RawRecord) (CanonicalRecord, error) {
	primary, _, ok := findTimestamp(raw, spec.PrimaryAliases)
	if !ok {
		return CanonicalRecord{}, &NormalizationError{
			Source: spec.Source,
			Reason: fmt.Sprintf("no primary timestamp under aliases %v or any date-like field", spec.PrimaryAliases),
		}
	}

	rec := CanonicalRecord{
		Source:      spec.Source,
		PrimaryTime: primary,
	}

	if len(spec.SecondaryAliases) > 0 {
		if secondary, _, found := findTimestamp(raw, spec.SecondaryAliases); found {
			rec.SecondaryTime = secondary
		}
	}

	switch spec.Source {
	case SourceComplaints:
		rec.ExternalID = raw.FieldString("unique_key")
		rec.Attrs.ComplaintType = raw.FieldString("complaint_type")
		rec.Attrs.Descriptor = raw.FieldString("descriptor")
		rec.Attrs.IncidentZip = raw.FieldString("incident_zip")

	case SourceRidership:
		rec.Attrs.StationName = StationName(raw.FieldString("station_complex"))
		if rec.Attrs.StationName == "" {
			rec.Attrs.StationName = raw.FieldString("station_name")
		}
		if rec.Attrs.StationName == "" {
			return CanonicalRecord{}, &NormalizationError{Source: spec.Source, Reason: "missing station name"}
		}
		entries, ok := raw.FieldInt("ridership")
		if !ok {
			return CanonicalRecord{}, &NormalizationError{Source: spec.Source, Reason: "missing ridership count"}
		}
		// The ridership feed replaced the old turnstile entries/exits pair;
		// the count maps onto entries and exits is always zero.
		rec.Attrs.Entries = entries

	case SourceTrips:
		if n, ok := raw.FieldInt("passenger_count"); ok {
			rec.Attrs.PassengerCount = n
		} else {
			rec.Attrs.PassengerCount = 1
		}
		if d, ok := raw.FieldFloat("trip_distance"); ok {
			rec.Attrs.TripDistance = d
		}
		if id, ok := raw.FieldInt("pulocationid"); ok {
			rec.Attrs.PickupZoneID = &id
		}
		if id, ok := raw.FieldInt("dolocationid"); ok {
			rec.Attrs.DropoffZoneID = &id
		}

	case SourceWeather:
		rec.Attrs.Temperature = optionalFloat(raw, "temperature")
		rec.Attrs.Precipitation = optionalFloat(raw, "precipitation")
		rec.Attrs.Humidity = optionalFloat(raw, "humidity")
		rec.Attrs.WindSpeed = optionalFloat(raw, "wind_speed")
		rec.Attrs.WeatherCondition = raw.FieldString("weather_condition")

	case SourceEvents:
		rec.Attrs.EventName = eventName(raw)
		rec.Attrs.EventCategory = firstPresent(raw, "category", "event_type", "eventtype", "type")
		rec.ExternalID = firstPresent(raw, "event_id", "eventid")
		if rec.ExternalID == "" {
			rec.ExternalID = syntheticEventID(rec.Attrs.EventName, primary)
		}
	}

	return rec, nil
}

// findTimestamp resolves a timestamp with first-match-wins semantics over the
// declared alias list, then falls back to any field whose name contains
// "date" (lexical order, so the fallback is deterministic).
func findTimestamp(raw RawRecord, aliases []string) (time.Time, string, bool) {
	for _, name := range aliases {
		if t, ok := parseTimestamp(raw.FieldString(name)); ok {
			return t, name, true
		}
	}

	names := make([]string, 0, len(raw))
	for name := range raw {
		if strings.Contains(strings.ToLower(name), "date") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		if t, ok := parseTimestamp(raw.FieldString(name)); ok {
			return t, name, true
		}
	}
	return time.Time{}, "", false
}

func parseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// StationName strips the served-lines suffix from an MTA station complex
// label: "Times Sq-42 St (N,Q,R,W)" -> "Times Sq-42 St".
func StationName(complex string) string {
	if i := strings.Index(complex, "("); i >= 0 {
		return strings.TrimSpace(complex[:i])
	}
	return strings.TrimSpace(complex)
}

func eventName(raw RawRecord) string {
	if name := firstPresent(raw, "event_name", "name"); name != "" {
		return name
	}
	names := make([]string, 0, len(raw))
	for field := range raw {
		lower := strings.ToLower(field)
		if strings.Contains(lower, "name") || strings.Contains(lower, "title") {
			names = append(names, field)
		}
	}
	sort.Strings(names)
	for _, field := range names {
		if v := raw.FieldString(field); v != "" {
			return v
		}
	}
	return "Unnamed Event"
}

// syntheticEventID produces a deterministic id for event rows that lack a
// declared one, so re-ingesting the same window replaces rather than
// duplicates them.
func syntheticEventID(name string, start time.Time) string {
	sum := sha256.Sum256([]byte(name + "|" + start.Format(time.RFC3339)))
	return "evt-" + hex.EncodeToString(sum[:8])
}

func optionalFloat(raw RawRecord, name string) *float64 {
	if f, ok := raw.FieldFloat(name); ok {
		return &f
	}
	return nil
}

func firstPresent(raw RawRecord, names ...string) string {
	for _, name := range names {
		if v := raw.FieldString(name); v != "" {
			return v
		}
	}
	return ""
}
