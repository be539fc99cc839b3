package geometry

// NamedLocation maps a physical location name to its coordinates, for sources
// that report a name with no geometry of any kind.
type NamedLocation struct {
	Name string
	Lat  float64
	Lon  float64
}

// StationLocations is the ordered subway-station lookup table. Matching is
// substring containment against the cleaned station name and the order here
// is the tie-break: an ambiguous name resolves to the first entry, so entries
// with longer, more specific names come before shorter prefixes of themselves.
// Ambiguities beyond that are a data-owner question, not something to resolve
// differently per run.
var StationLocations = []NamedLocation{
	{Name: "Grand Central-42 St", Lat: 40.7527, Lon: -73.9772},
	{Name: "Times Sq-42 St", Lat: 40.7557, Lon: -73.9874},
	{Name: "Union Sq-14 St", Lat: 40.7356, Lon: -73.9906},
	{Name: "34 St-Herald Sq", Lat: 40.7497, Lon: -73.9877},
	{Name: "34 St-Penn Station", Lat: 40.7506, Lon: -73.9935},
	{Name: "59 St-Columbus Circle", Lat: 40.7678, Lon: -73.9826},
	{Name: "Fulton St", Lat: 40.7102, Lon: -74.0077},
	{Name: "Atlantic Av-Barclays Ctr", Lat: 40.6844, Lon: -73.9766},
	{Name: "Court Sq", Lat: 40.7470, Lon: -73.9454},
	{Name: "125 St", Lat: 40.8046, Lon: -73.9376},
}
