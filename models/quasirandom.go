package models

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/samplemv"
)

// QuasiRandomSequence returns n points of an Owen-scrambled Halton sequence in
// [0,1]^dim. A given seed always yields the same points.
func QuasiRandomSequence(n, dim int, seed uint64) [][]float64 {
	if n <= 0 || dim <= 0 {
		return nil
	}

	src := rand.NewSource(seed)
	batch := mat.NewDense(n, dim, nil)
	samplemv.Halton{
		Kind: samplemv.Owen,
		Q:    distmv.NewUnitUniform(dim, src),
		Src:  src,
	}.Sample(batch)

	points := make([][]float64, n)
	for i := range points {
		points[i] = mat.Row(nil, i, batch)
	}
	return points
}
