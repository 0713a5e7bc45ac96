package circlefit

import (
	"errors"
	"math"
	"testing"
)

func circlePoints(xc, yc, r float64, n int) (xs, ys []float64) {
	xs = make([]float64, n)
	ys = make([]float64, n)
	for i := 0; i < n; i++ {
		theta := 2 * math.Pi * float64(i) / float64(n)
		xs[i] = xc + r*math.Cos(theta)
		ys[i] = yc + r*math.Sin(theta)
	}
	return xs, ys
}

func TestFitPerfectCircle(t *testing.T) {
	tests := []struct {
		xc, yc, r float64
		n         int
	}{
		{0, 0, 1, 8},
		{37.8, -122.4, 0.5 / 60, 30},
		{-5, 3, 100, 3},
	}
	for _, test := range tests {
		xs, ys := circlePoints(test.xc, test.yc, test.r, test.n)
		c, err := Fit(xs, ys)
		if err != nil {
			t.Errorf("Fit of perfect circle failed: %s", err.Error())
			continue
		}
		if math.Abs(c.X-test.xc) > 1e-6 || math.Abs(c.Y-test.yc) > 1e-6 {
			t.Errorf("center (%g,%g), want (%g,%g)", c.X, c.Y, test.xc, test.yc)
		}
		if math.Abs(c.R-test.r) > 1e-6 {
			t.Errorf("radius %g, want %g", c.R, test.r)
		}
		if c.Residual > 1e-6 {
			t.Errorf("residual %g too big for a perfect circle", c.Residual)
		}
	}
}

func TestFitNoisyCircle(t *testing.T) {
	xs, ys := circlePoints(10, 20, 2, 16)
	// deterministic radial noise of roughly ±0.01
	for i := range xs {
		noise := 0.01 * math.Sin(float64(7*i))
		xs[i] += noise
	}
	c, err := Fit(xs, ys)
	if err != nil {
		t.Fatalf("Fit failed: %s", err.Error())
	}
	if math.Abs(c.R-2) > 0.05 {
		t.Errorf("radius %g drifted too far from 2", c.R)
	}
	if c.Residual == 0 || c.Residual > 0.05 {
		t.Errorf("unexpected residual %g", c.Residual)
	}
}

func TestFitTooFewPoints(t *testing.T) {
	_, err := Fit([]float64{1, 2}, []float64{1, 2})
	if !errors.Is(err, ErrInsufficientPoints) {
		t.Errorf("want ErrInsufficientPoints, got %v", err)
	}
	_, err = Fit(nil, nil)
	if !errors.Is(err, ErrInsufficientPoints) {
		t.Errorf("want ErrInsufficientPoints for empty input, got %v", err)
	}
	// mismatched lengths are treated the same way
	_, err = Fit([]float64{1, 2, 3}, []float64{1, 2})
	if !errors.Is(err, ErrInsufficientPoints) {
		t.Errorf("want ErrInsufficientPoints for mismatched input, got %v", err)
	}
}

func TestFitCollinearPoints(t *testing.T) {
	xs := []float64{1, 2, 3, 4}
	ys := []float64{2, 4, 6, 8}
	if _, err := Fit(xs, ys); err == nil {
		t.Error("collinear points should not produce a circle")
	}
}
