package domain

// SourceSpec declares the per-source contract the pipeline stages consume:
// which canonical table the source feeds, how re-ingested rows are
// reconciled, what happens to records without geometry, and the ordered
// alias lists used to locate timestamp fields.
type SourceSpec struct {
	Source       SourceType
	Table        string
	Conflict     ConflictPolicy
	NullGeometry NullGeometryPolicy

	// PrimaryAliases is the declared priority list for the primary timestamp
	// field. First match wins; the generic any-field-containing-"date"
	// fallback applies only when this list is exhausted.
	PrimaryAliases []string

	// SecondaryAliases locates the span end (dropoff, event end) for sources
	// that model a duration. Empty for point-in-time sources.
	SecondaryAliases []string
}

var sourceSpecs = map[SourceType]SourceSpec{
	SourceComplaints: {
		Source:           SourceComplaints,
		Table:            "nyc_311_calls",
		Conflict:         InsertOnly,
		NullGeometry:     KeepWithoutGeometry,
		PrimaryAliases:   []string{"created_date"},
		SecondaryAliases: []string{"closed_date"},
	},
	SourceRidership: {
		Source:         SourceRidership,
		Table:          "mta_turnstile",
		Conflict:       InsertOnly,
		NullGeometry:   DropRecord,
		PrimaryAliases: []string{"transit_timestamp", "datetime"},
	},
	SourceTrips: {
		Source:       SourceTrips,
		Table:        "tlc_trips",
		Conflict:     InsertOnly,
		NullGeometry: KeepWithoutGeometry,
		// Column names changed in 2016: tpep_* for 2016+, bare names before.
		PrimaryAliases:   []string{"tpep_pickup_datetime", "pickup_datetime"},
		SecondaryAliases: []string{"tpep_dropoff_datetime", "dropoff_datetime"},
	},
	SourceWeather: {
		Source:         SourceWeather,
		Table:          "weather",
		Conflict:       ReplaceByTimestamp,
		NullGeometry:   NoGeometry,
		PrimaryAliases: []string{"datetime", "date"},
	},
	SourceEvents: {
		Source:           SourceEvents,
		Table:            "events",
		Conflict:         ReplaceByExternalID,
		NullGeometry:     DropRecord,
		PrimaryAliases:   []string{"start_date_time", "event_date", "startdate", "start_date"},
		SecondaryAliases: []string{"end_date_time", "enddate", "end_date"},
	},
}

// SpecFor returns the declared contract for a source type.
func SpecFor(src SourceType) (SourceSpec, bool) {
	spec, ok := sourceSpecs[src]
	return spec, ok
}

// AllSources lists every configured source in a fixed order.
func AllSources() []SourceType {
	return []SourceType{SourceComplaints, SourceRidership, SourceTrips, SourceWeather, SourceEvents}
}
