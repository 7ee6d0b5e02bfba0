package feature_selection

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/ensemblecv/pkg/errors"
)

// FeatureRank is one feature's entry in a FeatureRanking.
type FeatureRank struct {
	Selected bool
	Rank     int
}

// FeatureRanking is the result of recursive feature elimination. Ranking
// is a permutation of 1..P (1 = most important); the selected features are
// exactly those ranked 1..NSelected.
type FeatureRanking struct {
	Names   []string
	Support []bool
	Ranking []int
}

// NewFeatureRanking builds a ranking from a rank per column and validates it.
func NewFeatureRanking(names []string, ranking []int, nSelected int) (*FeatureRanking, error) {
	r := &FeatureRanking{
		Names:   append([]string(nil), names...),
		Support: make([]bool, len(ranking)),
		Ranking: append([]int(nil), ranking...),
	}
	for j, rank := range ranking {
		r.Support[j] = rank <= nSelected
	}
	if err := r.Validate(len(ranking)); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate checks that the ranking covers p features with ranks 1..p and
// that support matches the top ranks.
func (r *FeatureRanking) Validate(p int) error {
	if len(r.Ranking) != p || len(r.Support) != p || len(r.Names) != p {
		return errors.NewDimensionError("FeatureRanking", p, len(r.Ranking), 1)
	}
	seen := make([]bool, p+1)
	for _, rank := range r.Ranking {
		if rank < 1 || rank > p || seen[rank] {
			return errors.NewValidationError("ranking", "ranks must be a permutation of 1..P", r.Ranking)
		}
		seen[rank] = true
	}
	k := r.NSelected()
	if k < 1 {
		return errors.NewValidationError("support", "at least one feature must be selected", k)
	}
	for j, rank := range r.Ranking {
		if r.Support[j] != (rank <= k) {
			return errors.NewValidationError("support", "selected features must hold the top ranks", r.Names[j])
		}
	}
	return nil
}

// NSelected returns the number of selected features.
func (r *FeatureRanking) NSelected() int {
	k := 0
	for _, s := range r.Support {
		if s {
			k++
		}
	}
	return k
}

// Selected returns the selected column indices ordered by rank.
func (r *FeatureRanking) Selected() []int {
	cols := r.Columns()
	sort.Slice(cols, func(a, b int) bool { return r.Ranking[cols[a]] < r.Ranking[cols[b]] })
	return cols
}

// Columns returns the selected column indices in ascending column order.
func (r *FeatureRanking) Columns() []int {
	var cols []int
	for j, s := range r.Support {
		if s {
			cols = append(cols, j)
		}
	}
	return cols
}

// SelectedNames returns the names of the selected features in rank order.
func (r *FeatureRanking) SelectedNames() []string {
	sel := r.Selected()
	names := make([]string, len(sel))
	for i, j := range sel {
		names[i] = r.Names[j]
	}
	return names
}

// Map returns name → (selected, rank).
func (r *FeatureRanking) Map() map[string]FeatureRank {
	m := make(map[string]FeatureRank, len(r.Names))
	for j, name := range r.Names {
		m[name] = FeatureRank{Selected: r.Support[j], Rank: r.Ranking[j]}
	}
	return m
}

// String lists features by rank.
func (r *FeatureRanking) String() string {
	order := make([]int, len(r.Ranking))
	for j := range order {
		order[j] = j
	}
	sort.Slice(order, func(a, b int) bool { return r.Ranking[order[a]] < r.Ranking[order[b]] })
	var b strings.Builder
	for _, j := range order {
		mark := " "
		if r.Support[j] {
			mark = "*"
		}
		fmt.Fprintf(&b, "%s %2d %s\n", mark, r.Ranking[j], r.Names[j])
	}
	return b.String()
}

// Apply projects X onto the selected columns, in ascending column order.
func Apply(X mat.Matrix, ranking *FeatureRanking) (*mat.Dense, error) {
	if ranking == nil {
		return nil, errors.NewValidationError("ranking", "ranking is required", nil)
	}
	n, p := X.Dims()
	if p != len(ranking.Ranking) {
		return nil, errors.NewDimensionError("feature_selection.Apply", len(ranking.Ranking), p, 1)
	}
	cols := ranking.Columns()
	out := mat.NewDense(n, len(cols), nil)
	for i := 0; i < n; i++ {
		for k, j := range cols {
			out.Set(i, k, X.At(i, j))
		}
	}
	return out, nil
}

// Mask is a selector stage with a precomputed ranking. Fit only checks the
// column count.
type Mask struct {
	ranking *FeatureRanking
}

// NewMask wraps a ranking as a selector stage.
func NewMask(ranking *FeatureRanking) (*Mask, error) {
	if ranking == nil {
		return nil, errors.NewValidationError("ranking", "ranking is required", nil)
	}
	if err := ranking.Validate(len(ranking.Ranking)); err != nil {
		return nil, err
	}
	return &Mask{ranking: ranking}, nil
}

// Fit checks that X has one column per ranked feature.
func (m *Mask) Fit(X, _ mat.Matrix) error {
	_, p := X.Dims()
	if p != len(m.ranking.Ranking) {
		return errors.NewDimensionError("Mask.Fit", len(m.ranking.Ranking), p, 1)
	}
	return nil
}

// Transform applies the ranking.
func (m *Mask) Transform(X mat.Matrix) (mat.Matrix, error) {
	return Apply(X, m.ranking)
}

// Ranking returns the wrapped ranking.
func (m *Mask) Ranking() *FeatureRanking { return m.ranking }

// CloneSelector returns the mask itself; it holds no fitted state.
func (m *Mask) CloneSelector() Selector { return m }
