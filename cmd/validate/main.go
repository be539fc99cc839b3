// Command validate checks the pipeline's reference data before a deploy:
// the neighborhoods GeoJSON file and the built-in station lookup table.
// It verifies that every polygon parses, every station sits inside the NYC
// envelope, and a handful of known landmarks resolve to a neighborhood.
//
// Usage:
//
//	go run ./cmd/validate -boundaries data/neighborhoods.geojson
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/citypulse/civic-etl/internal/domain"
	"github.com/citypulse/civic-etl/internal/geometry"
	"github.com/citypulse/civic-etl/internal/spatial"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	boundariesPath := flag.String("boundaries", "", "path to neighborhoods GeoJSON file (optional)")
	flag.Parse()

	phases := []*phase{validateStations()}
	if *boundariesPath != "" {
		phases = append(phases, validateBoundaries(*boundariesPath))
	}

	failed := false
	for _, p := range phases {
		if p.passed() {
			fmt.Printf("PASS %s\n", p.name)
			continue
		}
		failed = true
		fmt.Printf("FAIL %s\n", p.name)
		for _, e := range p.errors {
			fmt.Printf("  - %s\n", e)
		}
	}
	if failed {
		os.Exit(1)
	}
}

func validateStations() *phase {
	p := &phase{name: "station lookup table"}

	seen := make(map[string]bool)
	for _, s := range geometry.StationLocations {
		if s.Name == "" {
			p.errorf("station with empty name at (%f, %f)", s.Lat, s.Lon)
			continue
		}
		if seen[s.Name] {
			p.errorf("duplicate station name %q", s.Name)
		}
		seen[s.Name] = true

		if !geometry.NYCEnvelope.Contains(domain.Point{Lat: s.Lat, Lon: s.Lon}) {
			p.errorf("station %q at (%f, %f) outside NYC envelope", s.Name, s.Lat, s.Lon)
		}
	}
	return p
}

func validateBoundaries(path string) *phase {
	p := &phase{name: "neighborhood boundaries"}

	idx, err := spatial.LoadFile(path)
	if err != nil {
		p.errorf("load %s: %v", path, err)
		return p
	}
	if idx.Len() == 0 {
		p.errorf("%s contains no boundaries", path)
		return p
	}

	names := make(map[string]bool)
	for _, b := range idx.Boundaries() {
		if b.Name == "" {
			p.errorf("boundary id %d has no name", b.ID)
		}
		if names[b.Name] {
			p.errorf("duplicate boundary name %q", b.Name)
		}
		names[b.Name] = true
		if len(b.Shape) == 0 {
			p.errorf("boundary %q has an empty shape", b.Name)
		}
	}

	// Every station should land inside some polygon when the boundary file
	// covers the whole city.
	for _, s := range geometry.StationLocations {
		if _, ok := idx.Locate(domain.Point{Lat: s.Lat, Lon: s.Lon}); !ok {
			p.errorf("station %q not inside any boundary", s.Name)
		}
	}
	return p
}
