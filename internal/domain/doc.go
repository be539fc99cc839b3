// Package domain models the canonical record shapes shared by every civic
// open-data source in the pipeline.
//
// # Data Sources
//
// Five upstream feeds are ingested, each with its own unstable schema:
//
//	311 complaints   Socrata dataset erm2-nwe9 (data.cityofnewyork.us)
//	MTA ridership    Socrata dataset wujg-7c2s (data.ny.gov)
//	TLC taxi trips   per-year Socrata datasets (column names changed in 2016)
//	Weather          NOAA Climate Data Online v2, station GHCND:USW00094728
//	Permitted events Socrata datasets bkfu-528j (historical) / tvpp-9vvx (current)
//
// # Field Naming Drift
//
// The same conceptual field appears under different names across sources and
// across years of the same source. Date columns are the worst offenders:
// "created_date", "transit_timestamp", "pickup_datetime" vs
// "tpep_pickup_datetime", "start_date_time" vs "startdate" vs "start_date" vs
// "event_date". Each source declares an ordered alias list; resolution is
// first-match-wins, with a generic any-field-containing-"date" fallback only
// when the declared list is exhausted.
//
// # Geometry Representations
//
// Coordinates arrive as separate latitude/longitude fields, embedded
// "POINT (lon lat)" strings, GeoJSON point values, or not at all (station and
// taxi-zone sources report only a named location or an opaque zone id). The
// geometry resolver tries these representations in a fixed order; see the
// geometry package.
//
// # Timestamps
//
// Socrata "floating timestamps" carry no zone and are interpreted as local
// civil time stored as UTC wall-clock values, matching how the canonical
// store's TIMESTAMP columns are populated. Weekday numbering is Monday=0
// through Sunday=6 so that downstream weekly aggregations group the weekend
// together.
package domain
