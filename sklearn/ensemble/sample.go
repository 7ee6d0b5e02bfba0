package ensemble

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/ensemblecv/core/model"
)

// memberRNG returns the random stream owned by ensemble member i.
func memberRNG(seed uint64, i int) *rand.Rand {
	return rand.New(rand.NewPCG(seed, uint64(i)+1))
}

// bootstrap draws m row indices from [0, n) with replacement.
func bootstrap(rng *rand.Rand, n, m int) []int {
	idx := make([]int, m)
	for i := range idx {
		idx[i] = rng.IntN(n)
	}
	return idx
}

// subsample draws k distinct indices from [0, n) and returns them sorted.
func subsample(rng *rand.Rand, n, k int) []int {
	idx := rng.Perm(n)[:k]
	sort.Ints(idx)
	return idx
}

// fractionOf converts a (0, 1] fraction of n into a count of at least 1.
func fractionOf(frac float64, n int) int {
	k := int(math.Round(frac * float64(n)))
	if k < 1 {
		k = 1
	}
	if k > n {
		k = n
	}
	return k
}

// take builds the sub-matrix of X with the given rows and columns; a nil
// slice selects every row or column.
func take(X mat.Matrix, rows, cols []int) *mat.Dense {
	n, p := X.Dims()
	if rows == nil {
		rows = identity(n)
	}
	if cols == nil {
		cols = identity(p)
	}
	out := mat.NewDense(len(rows), len(cols), nil)
	for i, r := range rows {
		for j, c := range cols {
			out.Set(i, j, X.At(r, c))
		}
	}
	return out
}

func takeLabels(labels []int, rows []int) *mat.Dense {
	out := mat.NewDense(len(rows), 1, nil)
	for i, r := range rows {
		out.Set(i, 0, float64(labels[r]))
	}
	return out
}

func identity(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// probaOf returns the n×2 probabilities of a fitted member, using its
// one-hot votes when it has no PredictProba.
func probaOf(est model.Estimator, X mat.Matrix) (mat.Matrix, error) {
	if pe, ok := est.(model.ProbabilityEstimator); ok {
		return pe.PredictProba(X)
	}
	return votesOf(est, X)
}
