// Package circlefit fits circles to point clouds with the algebraic
// least-squares method of Kåsa.
package circlefit

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrInsufficientPoints is returned when fewer than three points are given.
var ErrInsufficientPoints = errors.New("circle fit needs at least 3 points")

// Circle is a fitted circle and the quality of the fit.
// Residual is the root mean square distance from the points to the circle.
type Circle struct {
	X        float64
	Y        float64
	R        float64
	Residual float64
}

// Fit solves A·[2x_c, 2y_c, d]ᵀ = x²+y² in the least-squares sense,
// where the rows of A are (2xᵢ, 2yᵢ, 1).
// Collinear points make the system singular and return an error.
func Fit(xs, ys []float64) (Circle, error) {
	n := len(xs)
	if n < 3 || len(ys) != n {
		return Circle{}, ErrInsufficientPoints
	}
	a := mat.NewDense(n, 3, nil)
	b := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		a.Set(i, 0, 2*xs[i])
		a.Set(i, 1, 2*ys[i])
		a.Set(i, 2, 1)
		b.SetVec(i, xs[i]*xs[i]+ys[i]*ys[i])
	}
	var c mat.VecDense
	if err := c.SolveVec(a, b); err != nil {
		return Circle{}, err
	}
	xc, yc, d := c.AtVec(0), c.AtVec(1), c.AtVec(2)
	r := math.Sqrt(xc*xc + yc*yc + d)

	var sum float64
	for i := 0; i < n; i++ {
		dist := math.Hypot(xs[i]-xc, ys[i]-yc)
		sum += (dist - r) * (dist - r)
	}
	return Circle{
		X:        xc,
		Y:        yc,
		R:        r,
		Residual: math.Sqrt(sum / float64(n)),
	}, nil
}
