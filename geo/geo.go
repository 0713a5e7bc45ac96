package geo

import (
	"errors"
	"math"
)

// GridSize is the side length of a grid cell in degrees.
const GridSize = 0.1

// Point is a position on the WGS-84 ellipsoid.
type Point struct {
	Lat float64 `json:"lat"` // latitude, eg. 29.260799° N
	Lon float64 `json:"lon"` // longitude, eg. 94.87287° W
}

// LegalCoord returns true if the coordinates are legal
func LegalCoord(lat, lon float64) bool {
	if lat > 90 || lat < -90 || lon > 180 || lon < -180 {
		return false
	}
	return true
}

// FlatDistanceNM approximates the distance between two points in nautical
// miles by treating a degree as 60 NM in both directions.
// Good enough for the short distances the anomaly thresholds deal in;
// it overestimates east-west distances away from the equator.
func FlatDistanceNM(a, b Point) float64 {
	return math.Hypot(a.Lat-b.Lat, a.Lon-b.Lon) * 60
}

// Cell identifies one tile of the coarse geospatial grid.
// Cells are comparable and can be used as map keys.
type Cell struct {
	LatIdx int
	LonIdx int
}

// CellOf returns the grid cell containing the coordinates.
// Uses floor so that negative coordinates round towards the south-west.
func CellOf(lat, lon float64) Cell {
	return Cell{
		LatIdx: int(math.Floor(lat / GridSize)),
		LonIdx: int(math.Floor(lon / GridSize)),
	}
}

// Rectangle is an axis-aligned bounding box.
type Rectangle struct {
	Min Point // lowest latitude, lowest longitude
	Max Point // highest latitude, highest longitude
}

// NewRectangle validates the corners and returns a new Rectangle
func NewRectangle(minLat, minLon, maxLat, maxLon float64) (Rectangle, error) {
	if minLat > maxLat || minLon > maxLon {
		return Rectangle{}, errors.New("rectangle min > max")
	} else if !LegalCoord(minLat, minLon) || !LegalCoord(maxLat, maxLon) {
		return Rectangle{}, errors.New("rectangle has illegal coordinates")
	}
	return Rectangle{
		Min: Point{Lat: minLat, Lon: minLon},
		Max: Point{Lat: maxLat, Lon: maxLon},
	}, nil
}

// ContainsPoint reports whether p is inside or on the edge of the rectangle.
func (r Rectangle) ContainsPoint(p Point) bool {
	return p.Lat >= r.Min.Lat && p.Lat <= r.Max.Lat &&
		p.Lon >= r.Min.Lon && p.Lon <= r.Max.Lon
}

// Cells enumerates every grid cell that intersects the rectangle.
func (r Rectangle) Cells() []Cell {
	min := CellOf(r.Min.Lat, r.Min.Lon)
	max := CellOf(r.Max.Lat, r.Max.Lon)
	cells := make([]Cell, 0, (max.LatIdx-min.LatIdx+1)*(max.LonIdx-min.LonIdx+1))
	for lat := min.LatIdx; lat <= max.LatIdx; lat++ {
		for lon := min.LonIdx; lon <= max.LonIdx; lon++ {
			cells = append(cells, Cell{LatIdx: lat, LonIdx: lon})
		}
	}
	return cells
}
