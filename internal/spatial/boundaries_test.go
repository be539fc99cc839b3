package spatial

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citypulse/civic-etl/internal/domain"
)

// square returns a unit-degree square polygon anchored at the given corner.
func square(minLon, minLat float64) orb.MultiPolygon {
	return orb.MultiPolygon{{{
		{minLon, minLat},
		{minLon + 1, minLat},
		{minLon + 1, minLat + 1},
		{minLon, minLat + 1},
		{minLon, minLat},
	}}}
}

func testIndex() *Index {
	return NewIndex([]Boundary{
		{ID: 1, Name: "West Square", Borough: "Manhattan", Shape: square(-75, 40)},
		{ID: 2, Name: "East Square", Borough: "Queens", Shape: square(-74, 40)},
	})
}

func TestLocate(t *testing.T) {
	idx := testIndex()

	t.Run("point inside first polygon", func(t *testing.T) {
		id, ok := idx.Locate(domain.Point{Lat: 40.5, Lon: -74.5})
		require.True(t, ok)
		assert.EqualValues(t, 1, id)
	})

	t.Run("point inside second polygon", func(t *testing.T) {
		id, ok := idx.Locate(domain.Point{Lat: 40.5, Lon: -73.5})
		require.True(t, ok)
		assert.EqualValues(t, 2, id)
	})

	t.Run("point outside all polygons", func(t *testing.T) {
		_, ok := idx.Locate(domain.Point{Lat: 45, Lon: -74.5})
		assert.False(t, ok)
	})
}

func TestEnrich(t *testing.T) {
	idx := testIndex()

	t.Run("resolved slot gets a neighborhood id", func(t *testing.T) {
		slot := domain.GeometrySlot{Point: &domain.Point{Lat: 40.5, Lon: -73.5}}
		idx.Enrich(&slot)
		require.NotNil(t, slot.NeighborhoodID)
		assert.EqualValues(t, 2, *slot.NeighborhoodID)
	})

	t.Run("unresolved slot untouched", func(t *testing.T) {
		slot := domain.GeometrySlot{}
		idx.Enrich(&slot)
		assert.Nil(t, slot.NeighborhoodID)
	})

	t.Run("uncontained point keeps nil id", func(t *testing.T) {
		slot := domain.GeometrySlot{Point: &domain.Point{Lat: 45, Lon: -74.5}}
		idx.Enrich(&slot)
		assert.Nil(t, slot.NeighborhoodID)
	})
}

func TestLoadFile(t *testing.T) {
	const collection = `{
		"type": "FeatureCollection",
		"features": [
			{
				"type": "Feature",
				"properties": {"id": 7, "name": "Midtown", "borough": "Manhattan"},
				"geometry": {
					"type": "Polygon",
					"coordinates": [[[-74.0, 40.74], [-73.96, 40.74], [-73.96, 40.77], [-74.0, 40.77], [-74.0, 40.74]]]
				}
			},
			{
				"type": "Feature",
				"properties": {"id": 8, "name": "Rockaways", "borough": "Queens"},
				"geometry": {
					"type": "MultiPolygon",
					"coordinates": [[[[-73.95, 40.55], [-73.75, 40.55], [-73.75, 40.61], [-73.95, 40.61], [-73.95, 40.55]]]]
				}
			}
		]
	}`

	path := filepath.Join(t.TempDir(), "neighborhoods.geojson")
	require.NoError(t, os.WriteFile(path, []byte(collection), 0o644))

	idx, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Len())

	id, ok := idx.Locate(domain.Point{Lat: 40.7527, Lon: -73.9772})
	require.True(t, ok)
	assert.EqualValues(t, 7, id)

	id, ok = idx.Locate(domain.Point{Lat: 40.58, Lon: -73.82})
	require.True(t, ok)
	assert.EqualValues(t, 8, id)
}

func TestLoadFileErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(t.TempDir(), "absent.geojson"))
		assert.Error(t, err)
	})

	t.Run("feature without id", func(t *testing.T) {
		const collection = `{
			"type": "FeatureCollection",
			"features": [{
				"type": "Feature",
				"properties": {"name": "Nameless"},
				"geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,1],[0,0]]]}
			}]
		}`
		path := filepath.Join(t.TempDir(), "bad.geojson")
		require.NoError(t, os.WriteFile(path, []byte(collection), 0o644))

		_, err := LoadFile(path)
		assert.ErrorContains(t, err, "missing id")
	})

	t.Run("unsupported geometry", func(t *testing.T) {
		_, err := FromGeoJSON(1, "Point", "Nowhere", []byte(`{"type":"Point","coordinates":[0,0]}`))
		assert.ErrorContains(t, err, "unsupported geometry")
	})
}

func TestFromGeoJSON(t *testing.T) {
	b, err := FromGeoJSON(3, "Harlem", "Manhattan",
		[]byte(`{"type":"Polygon","coordinates":[[[-73.96,40.79],[-73.93,40.79],[-73.93,40.82],[-73.96,40.82],[-73.96,40.79]]]}`))
	require.NoError(t, err)
	assert.EqualValues(t, 3, b.ID)
	assert.Equal(t, "Harlem", b.Name)
	require.Len(t, b.Shape, 1)

	idx := NewIndex([]Boundary{b})
	id, ok := idx.Locate(domain.Point{Lat: 40.8046, Lon: -73.9376})
	require.True(t, ok)
	assert.EqualValues(t, 3, id)
}
