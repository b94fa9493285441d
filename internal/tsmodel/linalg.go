package tsmodel

import (
	"errors"
	"math"
)

var errSingular = errors.New("singular design matrix")

// leastSquares solves min ||X b - y|| through the normal equations with
// partial pivoting. It returns the coefficients and the residual sum of
// squares.
func leastSquares(x [][]float64, y []float64) ([]float64, float64, error) {
	if len(x) == 0 || len(x) != len(y) {
		return nil, 0, errors.New("empty or mismatched system")
	}
	k := len(x[0])
	a := make([][]float64, k)
	for i := range a {
		a[i] = make([]float64, k+1)
	}
	for r, row := range x {
		for i := 0; i < k; i++ {
			for j := 0; j < k; j++ {
				a[i][j] += row[i] * row[j]
			}
			a[i][k] += row[i] * y[r]
		}
	}

	b, err := gaussSolve(a)
	if err != nil {
		return nil, 0, err
	}

	var sse float64
	for r, row := range x {
		res := y[r] - dot(row, b)
		sse += res * res
	}
	return b, sse, nil
}

// gaussSolve solves the augmented k x (k+1) system in place.
func gaussSolve(a [][]float64) ([]float64, error) {
	k := len(a)
	scale := 0.0
	for i := range a {
		scale = math.Max(scale, math.Abs(a[i][i]))
	}
	eps := 1e-10 * math.Max(scale, 1)

	for col := 0; col < k; col++ {
		pivot := col
		for r := col + 1; r < k; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) < eps {
			return nil, errSingular
		}
		a[col], a[pivot] = a[pivot], a[col]
		for r := col + 1; r < k; r++ {
			f := a[r][col] / a[col][col]
			for c := col; c <= k; c++ {
				a[r][c] -= f * a[col][c]
			}
		}
	}

	b := make([]float64, k)
	for i := k - 1; i >= 0; i-- {
		s := a[i][k]
		for j := i + 1; j < k; j++ {
			s -= a[i][j] * b[j]
		}
		b[i] = s / a[i][i]
	}
	return b, nil
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
