package postgres

import (
	"time"

	"github.com/citypulse/civic-etl/internal/domain"
)

// loadPlan declares how one source's records are staged and merged. The
// conflict policy shows up as the purge statement: empty for insert-only
// sources, a keyed DELETE for delete-then-insert sources. One LoadBatch
// implementation consumes every plan uniformly.
type loadPlan struct {
	staging    string
	stagingDDL string
	columns    []string
	row        func(*domain.CanonicalRecord) []any
	purge      string
	insert     string
}

var loadPlans = map[domain.SourceType]loadPlan{
	domain.SourceComplaints: {
		staging: "stg_311_calls",
		stagingDDL: `CREATE TEMP TABLE stg_311_calls (
			created_date TIMESTAMP,
			complaint_type TEXT,
			descriptor TEXT,
			incident_zip TEXT,
			lon DOUBLE PRECISION,
			lat DOUBLE PRECISION,
			neighborhood_id BIGINT
		) ON COMMIT DROP`,
		columns: []string{"created_date", "complaint_type", "descriptor", "incident_zip", "lon", "lat", "neighborhood_id"},
		row: func(r *domain.CanonicalRecord) []any {
			lon, lat := slotCoords(r.Location)
			return []any{
				r.PrimaryTime, r.Attrs.ComplaintType, r.Attrs.Descriptor, r.Attrs.IncidentZip,
				lon, lat, r.Location.NeighborhoodID,
			}
		},
		insert: `INSERT INTO nyc_311_calls (created_date, complaint_type, descriptor, incident_zip, geometry, neighborhood_id)
			SELECT t.created_date, t.complaint_type, t.descriptor, t.incident_zip, ` + pointExpr("t.lon", "t.lat") + `, t.neighborhood_id
			FROM stg_311_calls t`,
	},

	domain.SourceRidership: {
		staging: "stg_mta_turnstile",
		stagingDDL: `CREATE TEMP TABLE stg_mta_turnstile (
			station_name TEXT,
			datetime TIMESTAMP,
			entries INTEGER,
			exits INTEGER,
			lon DOUBLE PRECISION,
			lat DOUBLE PRECISION,
			neighborhood_id BIGINT
		) ON COMMIT DROP`,
		columns: []string{"station_name", "datetime", "entries", "exits", "lon", "lat", "neighborhood_id"},
		row: func(r *domain.CanonicalRecord) []any {
			lon, lat := slotCoords(r.Location)
			return []any{
				r.Attrs.StationName, r.PrimaryTime, r.Attrs.Entries, r.Attrs.Exits,
				lon, lat, r.Location.NeighborhoodID,
			}
		},
		insert: `INSERT INTO mta_turnstile (station_name, datetime, entries, exits, geometry, neighborhood_id)
			SELECT t.station_name, t.datetime, t.entries, t.exits, ` + pointExpr("t.lon", "t.lat") + `, t.neighborhood_id
			FROM stg_mta_turnstile t`,
	},

	domain.SourceTrips: {
		staging: "stg_tlc_trips",
		stagingDDL: `CREATE TEMP TABLE stg_tlc_trips (
			pickup_datetime TIMESTAMP,
			dropoff_datetime TIMESTAMP,
			passenger_count INTEGER,
			trip_distance DOUBLE PRECISION,
			pickup_lon DOUBLE PRECISION,
			pickup_lat DOUBLE PRECISION,
			dropoff_lon DOUBLE PRECISION,
			dropoff_lat DOUBLE PRECISION,
			pickup_zone_id INTEGER,
			dropoff_zone_id INTEGER,
			pickup_neighborhood_id BIGINT,
			dropoff_neighborhood_id BIGINT
		) ON COMMIT DROP`,
		columns: []string{
			"pickup_datetime", "dropoff_datetime", "passenger_count", "trip_distance",
			"pickup_lon", "pickup_lat", "dropoff_lon", "dropoff_lat",
			"pickup_zone_id", "dropoff_zone_id", "pickup_neighborhood_id", "dropoff_neighborhood_id",
		},
		row: func(r *domain.CanonicalRecord) []any {
			puLon, puLat := slotCoords(r.Location)
			doLon, doLat := slotCoords(r.Dropoff)
			return []any{
				r.PrimaryTime, nullableTime(r.SecondaryTime), r.Attrs.PassengerCount, r.Attrs.TripDistance,
				puLon, puLat, doLon, doLat,
				r.Attrs.PickupZoneID, r.Attrs.DropoffZoneID,
				r.Location.NeighborhoodID, r.Dropoff.NeighborhoodID,
			}
		},
		insert: `INSERT INTO tlc_trips (pickup_datetime, dropoff_datetime, passenger_count, trip_distance,
				pickup_location, dropoff_location, pickup_zone_id, dropoff_zone_id,
				pickup_neighborhood_id, dropoff_neighborhood_id)
			SELECT t.pickup_datetime, t.dropoff_datetime, t.passenger_count, t.trip_distance,
				` + pointExpr("t.pickup_lon", "t.pickup_lat") + `, ` + pointExpr("t.dropoff_lon", "t.dropoff_lat") + `,
				t.pickup_zone_id, t.dropoff_zone_id, t.pickup_neighborhood_id, t.dropoff_neighborhood_id
			FROM stg_tlc_trips t`,
	},

	domain.SourceWeather: {
		staging: "stg_weather",
		stagingDDL: `CREATE TEMP TABLE stg_weather (
			datetime TIMESTAMP,
			temperature DOUBLE PRECISION,
			precipitation DOUBLE PRECISION,
			humidity DOUBLE PRECISION,
			wind_speed DOUBLE PRECISION,
			weather_condition TEXT
		) ON COMMIT DROP`,
		columns: []string{"datetime", "temperature", "precipitation", "humidity", "wind_speed", "weather_condition"},
		row: func(r *domain.CanonicalRecord) []any {
			return []any{
				r.PrimaryTime, r.Attrs.Temperature, r.Attrs.Precipitation,
				r.Attrs.Humidity, r.Attrs.WindSpeed, nullableString(r.Attrs.WeatherCondition),
			}
		},
		// One reading per timestamp: a re-fetch overwrites.
		purge: `DELETE FROM weather w USING stg_weather t WHERE w.datetime = t.datetime`,
		insert: `INSERT INTO weather (datetime, temperature, precipitation, humidity, wind_speed, weather_condition)
			SELECT t.datetime, t.temperature, t.precipitation, t.humidity, t.wind_speed, t.weather_condition
			FROM stg_weather t`,
	},

	domain.SourceEvents: {
		staging: "stg_events",
		stagingDDL: `CREATE TEMP TABLE stg_events (
			event_id TEXT,
			name TEXT,
			category TEXT,
			start_datetime TIMESTAMP,
			end_datetime TIMESTAMP,
			lon DOUBLE PRECISION,
			lat DOUBLE PRECISION,
			neighborhood_id BIGINT
		) ON COMMIT DROP`,
		columns: []string{"event_id", "name", "category", "start_datetime", "end_datetime", "lon", "lat", "neighborhood_id"},
		row: func(r *domain.CanonicalRecord) []any {
			lon, lat := slotCoords(r.Location)
			return []any{
				r.ExternalID, r.Attrs.EventName, r.Attrs.EventCategory,
				r.PrimaryTime, nullableTime(r.SecondaryTime),
				lon, lat, r.Location.NeighborhoodID,
			}
		},
		// A re-fetched event id replaces the prior row entirely.
		purge: `DELETE FROM events e USING stg_events t WHERE e.event_id = t.event_id`,
		insert: `INSERT INTO events (event_id, name, category, start_datetime, end_datetime, location, neighborhood_id)
			SELECT t.event_id, t.name, t.category, t.start_datetime, t.end_datetime, ` + pointExpr("t.lon", "t.lat") + `, t.neighborhood_id
			FROM stg_events t`,
	},
}

// pointExpr builds a nullable SRID-4326 point from staged lon/lat columns.
func pointExpr(lon, lat string) string {
	return "CASE WHEN " + lon + " IS NOT NULL THEN ST_SetSRID(ST_MakePoint(" + lon + ", " + lat + "), 4326) END"
}

func slotCoords(slot domain.GeometrySlot) (lon, lat any) {
	if !slot.Resolved() {
		return nil, nil
	}
	return slot.Point.Lon, slot.Point.Lat
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
