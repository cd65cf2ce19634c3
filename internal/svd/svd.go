// Package svd factorizes per-frame vertex delta matrices into a small set of
// bases and per-frame weights.
package svd

import (
	"errors"
	"fmt"
	gomath "math"

	"gonum.org/v1/gonum/mat"
)

// ErrFactorize is returned when the decomposition does not converge.
var ErrFactorize = errors.New("svd did not converge")

// Result is a thin decomposition A = U * diag(S) * V^T of a rows x cols
// matrix, keeping only the non-zero singular values.
//
// U holds one length-rows column per basis, column i at U[i*Rows:(i+1)*Rows].
// V holds one length-cols weight curve per basis, laid out the same way.
type Result struct {
	Rows, Cols int
	U          []float32
	S          []float32
	V          []float32
}

// NumBases returns the number of non-zero singular values.
func (r *Result) NumBases() int {
	return len(r.S)
}

// Basis returns column i of U.
func (r *Result) Basis(i int) []float32 {
	return r.U[i*r.Rows : (i+1)*r.Rows]
}

// Weights returns the curve of basis i, one value per column of the input.
func (r *Result) Weights(i int) []float32 {
	return r.V[i*r.Cols : (i+1)*r.Cols]
}

// Decompose runs a thin SVD over a column-major rows x cols matrix.
func Decompose(data []float32, rows, cols int) (*Result, error) {
	if rows <= 0 || cols <= 0 || len(data) != rows*cols {
		return nil, fmt.Errorf("svd: %d values for a %dx%d matrix", len(data), rows, cols)
	}

	a := mat.NewDense(rows, cols, nil)
	for c := 0; c < cols; c++ {
		for r := 0; r < rows; r++ {
			a.Set(r, c, float64(data[c*rows+r]))
		}
	}

	var f mat.SVD
	if ok := f.Factorize(a, mat.SVDThin); !ok {
		return nil, ErrFactorize
	}
	values := f.Values(nil)

	// Values are sorted in decreasing order.
	tolerance := gomath.Max(float64(rows), float64(cols)) * 1.1920929e-07
	if len(values) > 0 {
		tolerance *= values[0]
	}
	k := 0
	for k < len(values) && values[k] > tolerance && values[k] > 0 {
		k++
	}

	var u, v mat.Dense
	f.UTo(&u)
	f.VTo(&v)

	res := &Result{
		Rows: rows,
		Cols: cols,
		U:    make([]float32, k*rows),
		S:    make([]float32, k),
		V:    make([]float32, k*cols),
	}
	for i := 0; i < k; i++ {
		res.S[i] = float32(values[i])
		for r := 0; r < rows; r++ {
			res.U[i*rows+r] = float32(u.At(r, i))
		}
		for c := 0; c < cols; c++ {
			res.V[i*cols+c] = float32(v.At(c, i))
		}
	}
	return res, nil
}

// BasesToUse picks how many bases to keep out of available. A non-zero fixed
// count wins; otherwise the leading fraction of the available bases is kept,
// truncating toward zero. The result never exceeds available.
func BasesToUse(available, fixed int, fraction float32) int {
	if fixed != 0 {
		return max(0, min(fixed, available))
	}
	return max(0, min(int(float32(available)*fraction), available))
}

// Truncate keeps the first n bases.
func (r *Result) Truncate(n int) {
	n = max(0, min(n, len(r.S)))
	r.S = r.S[:n]
	r.U = r.U[:n*r.Rows]
	r.V = r.V[:n*r.Cols]
}

// PremultiplyBases scales every U column by its singular value so that a
// sample reconstructs as sum(U[i] * V[i][sample]).
func (r *Result) PremultiplyBases() {
	for i, s := range r.S {
		basis := r.Basis(i)
		for j := range basis {
			basis[j] *= s
		}
	}
}

// Reconstruct rebuilds the column-major matrix from premultiplied bases.
func (r *Result) Reconstruct() []float32 {
	out := make([]float32, r.Rows*r.Cols)
	for i := range r.S {
		basis := r.Basis(i)
		weights := r.Weights(i)
		for c, w := range weights {
			col := out[c*r.Rows : (c+1)*r.Rows]
			for j, b := range basis {
				col[j] += b * w
			}
		}
	}
	return out
}

// Error summarizes how well a reconstruction matches the original deltas.
type Error struct {
	MaxAbs float64
	// Distortion is ||original - reconstructed||^2 / ||original||^2 * 100,
	// zero when the original is all zeros.
	Distortion float64
}

// CompareReconstruction measures reconstructed against original.
func CompareReconstruction(original, reconstructed []float32) Error {
	var e Error
	var num, den float64
	for i := range original {
		d := float64(original[i] - reconstructed[i])
		e.MaxAbs = gomath.Max(e.MaxAbs, gomath.Abs(d))
		num += d * d
		den += float64(original[i]) * float64(original[i])
	}
	if den > 0 {
		e.Distortion = num / den * 100
	}
	return e
}
