package postgres

// Schema is the canonical-store DDL, used by integration tests and first-run
// provisioning. The neighborhoods table is reference data owned outside this
// pipeline; it appears here only so a fresh database can be stood up.
const Schema = `
CREATE EXTENSION IF NOT EXISTS postgis;

CREATE TABLE IF NOT EXISTS neighborhoods (
	id BIGSERIAL PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	borough VARCHAR(50) NOT NULL,
	geometry GEOMETRY(MULTIPOLYGON, 4326)
);

CREATE TABLE IF NOT EXISTS nyc_311_calls (
	id BIGSERIAL PRIMARY KEY,
	created_date TIMESTAMP NOT NULL,
	complaint_type VARCHAR(255) NOT NULL,
	descriptor VARCHAR(255),
	incident_zip VARCHAR(10),
	geometry GEOMETRY(POINT, 4326),
	neighborhood_id BIGINT REFERENCES neighborhoods(id)
);

CREATE TABLE IF NOT EXISTS mta_turnstile (
	id BIGSERIAL PRIMARY KEY,
	station_name VARCHAR(255) NOT NULL,
	datetime TIMESTAMP NOT NULL,
	entries INTEGER NOT NULL,
	exits INTEGER NOT NULL,
	geometry GEOMETRY(POINT, 4326),
	neighborhood_id BIGINT REFERENCES neighborhoods(id)
);

CREATE TABLE IF NOT EXISTS tlc_trips (
	id BIGSERIAL PRIMARY KEY,
	pickup_datetime TIMESTAMP NOT NULL,
	dropoff_datetime TIMESTAMP,
	passenger_count INTEGER,
	trip_distance DOUBLE PRECISION,
	pickup_location GEOMETRY(POINT, 4326),
	dropoff_location GEOMETRY(POINT, 4326),
	pickup_zone_id INTEGER,
	dropoff_zone_id INTEGER,
	pickup_neighborhood_id BIGINT REFERENCES neighborhoods(id),
	dropoff_neighborhood_id BIGINT REFERENCES neighborhoods(id)
);

CREATE TABLE IF NOT EXISTS weather (
	id BIGSERIAL PRIMARY KEY,
	datetime TIMESTAMP NOT NULL,
	temperature DOUBLE PRECISION,
	precipitation DOUBLE PRECISION,
	humidity DOUBLE PRECISION,
	wind_speed DOUBLE PRECISION,
	weather_condition VARCHAR(50)
);

CREATE TABLE IF NOT EXISTS events (
	id BIGSERIAL PRIMARY KEY,
	event_id TEXT NOT NULL,
	name TEXT,
	category TEXT,
	start_datetime TIMESTAMP,
	end_datetime TIMESTAMP,
	location GEOMETRY(POINT, 4326),
	neighborhood_id BIGINT REFERENCES neighborhoods(id),
	created_at TIMESTAMP DEFAULT NOW(),
	updated_at TIMESTAMP DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_311_created_date ON nyc_311_calls (created_date);
CREATE INDEX IF NOT EXISTS idx_mta_datetime ON mta_turnstile (datetime);
CREATE INDEX IF NOT EXISTS idx_trips_pickup ON tlc_trips (pickup_datetime);
CREATE INDEX IF NOT EXISTS idx_weather_datetime ON weather (datetime);
CREATE INDEX IF NOT EXISTS idx_events_event_id ON events (event_id);
`
