package entities

// Location is a WGS84 point in degrees. It serializes as {"lat", "lng"},
// the shape clients send and the query result echoes back as its center.
//
// Go Learning Note — Small Value Types:
// Location is two float64s, so it is passed and returned by value. A Vehicle
// holds a *Location instead because "no position yet" is a real state, and a
// nil pointer says that more plainly than a zero coordinate, which is a valid
// point in the Gulf of Guinea.
type Location struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// NewLocation creates a Location value from latitude and longitude.
func NewLocation(lat, lng float64) Location {
	return Location{
		Latitude:  lat,
		Longitude: lng,
	}
}
