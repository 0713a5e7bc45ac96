package geo

import (
	"math"
	"testing"
)

func TestLegalCoord(t *testing.T) {
	tests := []struct {
		lat, lon float64
		legal    bool
	}{
		{0, 0, true},
		{90, 180, true},
		{-90, -180, true},
		{90.0001, 0, false},
		{-90.0001, 0, false},
		{0, 180.0001, false},
		{0, -180.0001, false},
	}
	for _, test := range tests {
		if LegalCoord(test.lat, test.lon) != test.legal {
			t.Errorf("LegalCoord(%f, %f) should be %t", test.lat, test.lon, test.legal)
		}
	}
}

func TestCellOf(t *testing.T) {
	tests := []struct {
		lat, lon float64
		cell     Cell
	}{
		{37.8, -122.4, Cell{378, -1224}},
		{37.85, -122.45, Cell{378, -1225}},
		{0, 0, Cell{0, 0}},
		{-0.05, -0.05, Cell{-1, -1}}, // floor, not truncation
		{-37.8, 122.4, Cell{-378, 1224}},
	}
	for _, test := range tests {
		got := CellOf(test.lat, test.lon)
		if got != test.cell {
			t.Errorf("CellOf(%f, %f) = %v, want %v", test.lat, test.lon, got, test.cell)
		}
	}
}

func TestFlatDistanceNM(t *testing.T) {
	a := Point{Lat: 37.8, Lon: -122.4}
	b := Point{Lat: 38.8, Lon: -123.4}
	want := math.Sqrt(2) * 60
	if got := FlatDistanceNM(a, b); math.Abs(got-want) > 1e-9 {
		t.Errorf("FlatDistanceNM = %f, want %f", got, want)
	}
	if got := FlatDistanceNM(a, a); got != 0 {
		t.Errorf("distance to itself should be 0, got %f", got)
	}
	// one minute of latitude is one nautical mile
	c := Point{Lat: 37.8 + 1.0/60, Lon: -122.4}
	if got := FlatDistanceNM(a, c); math.Abs(got-1) > 1e-9 {
		t.Errorf("one arc minute should be 1 NM, got %f", got)
	}
}

func TestRectangle(t *testing.T) {
	if _, err := NewRectangle(1, 1, 0, 0); err == nil {
		t.Error("min > max should be rejected")
	}
	if _, err := NewRectangle(-91, 0, 0, 0); err == nil {
		t.Error("illegal coordinates should be rejected")
	}
	r, err := NewRectangle(37.4, -122.6, 37.95, -122.0)
	if err != nil {
		t.Fatalf("valid rectangle rejected: %s", err.Error())
	}
	if !r.ContainsPoint(Point{37.5, -122.5}) {
		t.Error("point inside should be contained")
	}
	if !r.ContainsPoint(Point{37.4, -122.6}) {
		t.Error("corner should be contained")
	}
	if r.ContainsPoint(Point{38.3, -122.5}) {
		t.Error("point north of the box should not be contained")
	}
}

func TestRectangleCells(t *testing.T) {
	r, _ := NewRectangle(37.4, -122.6, 37.95, -122.0)
	cells := r.Cells()
	seen := make(map[Cell]bool, len(cells))
	for _, c := range cells {
		if seen[c] {
			t.Errorf("cell %v enumerated twice", c)
		}
		seen[c] = true
	}
	for _, p := range []Point{{37.5, -122.5}, {37.9, -122.1}, {37.4, -122.6}} {
		if !seen[CellOf(p.Lat, p.Lon)] {
			t.Errorf("cell of contained point %v missing", p)
		}
	}
	if seen[CellOf(38.3, -122.5)] {
		t.Error("cell well north of the box should not be enumerated")
	}
}
