package domain

import (
	"fmt"
	"math"
)

// Immutable geographic coordinates (latitude, longitude) in decimal degrees.
type Coordinates struct {
	Lat float64
	Lon float64
}

// Return coordinates as [lon, lat] for external API compatibility.
func (c Coordinates) CoordsToList() []float64 { return []float64{c.Lon, c.Lat} }

// Rounded returns the coordinates rounded to the given number of decimal places.
func (c Coordinates) Rounded(places int) Coordinates {
	p := math.Pow(10, float64(places))
	return Coordinates{
		Lat: math.Round(c.Lat*p) / p,
		Lon: math.Round(c.Lon*p) / p,
	}
}

// Less orders coordinates by latitude, then longitude.
func (c Coordinates) Less(o Coordinates) bool {
	if c.Lat != o.Lat {
		return c.Lat < o.Lat
	}
	return c.Lon < o.Lon
}

func (c Coordinates) IsZero() bool { return c.Lat == 0 && c.Lon == 0 }

func (c Coordinates) String() string { return fmt.Sprintf("%.5f,%.5f", c.Lat, c.Lon) }

// Centroid returns the arithmetic mean of the given points.
func Centroid(points []Coordinates) (Coordinates, bool) {
	if len(points) == 0 {
		return Coordinates{}, false
	}

	var lat, lon float64
	for _, p := range points {
		lat += p.Lat
		lon += p.Lon
	}
	n := float64(len(points))
	return Coordinates{Lat: lat / n, Lon: lon / n}, true
}
