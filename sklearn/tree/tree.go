// Package tree implements a binary CART decision tree classifier. It is
// used as a voting member and as the base learner of the random forest.
package tree

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/ensemblecv/core/model"
	"github.com/YuminosukeSato/ensemblecv/pkg/errors"
)

// node is one tree node; children are indices into DecisionTreeClassifier.nodes.
type node struct {
	leaf      bool
	feature   int
	threshold float64
	left      int
	right     int
	value     []float64 // class distribution of the training samples
	nSamples  int
	impurity  float64
}

// nClasses is fixed: labels are 0 (benign) or 1 (malignant).
const nClasses = 2

// DecisionTreeClassifier is a binary CART classifier.
type DecisionTreeClassifier struct {
	state *model.StateManager

	criterion       string // "gini" or "entropy"
	maxDepth        int    // -1 means unlimited
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int // 0 means all features
	randomState     uint64

	nodes        []node
	importances_ []float64
	depth_       int
	nLeaves_     int
}

// Option is a functional option for DecisionTreeClassifier.
type Option func(*DecisionTreeClassifier)

// WithCriterion sets the split criterion ("gini" or "entropy").
func WithCriterion(criterion string) Option {
	return func(dt *DecisionTreeClassifier) { dt.criterion = criterion }
}

// WithMaxDepth sets the maximum depth; -1 means unlimited.
func WithMaxDepth(depth int) Option {
	return func(dt *DecisionTreeClassifier) { dt.maxDepth = depth }
}

// WithMinSamplesSplit sets the minimum samples needed to split a node.
func WithMinSamplesSplit(n int) Option {
	return func(dt *DecisionTreeClassifier) { dt.minSamplesSplit = n }
}

// WithMinSamplesLeaf sets the minimum samples in each leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(dt *DecisionTreeClassifier) { dt.minSamplesLeaf = n }
}

// WithMaxFeatures sets the number of features considered per split; 0 means all.
func WithMaxFeatures(n int) Option {
	return func(dt *DecisionTreeClassifier) { dt.maxFeatures = n }
}

// WithRandomState seeds the per-split feature sampling.
func WithRandomState(seed uint64) Option {
	return func(dt *DecisionTreeClassifier) { dt.randomState = seed }
}

// NewDecisionTreeClassifier creates an unlimited-depth gini tree.
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{
		state:           model.NewStateManager(),
		criterion:       "gini",
		maxDepth:        -1,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
	}
	for _, opt := range opts {
		opt(dt)
	}
	return dt
}

func (dt *DecisionTreeClassifier) validate() error {
	switch {
	case dt.criterion != "gini" && dt.criterion != "entropy":
		return errors.NewInvalidConfigurationError("DecisionTreeClassifier", "criterion", "must be gini or entropy", dt.criterion)
	case dt.maxDepth == 0 || dt.maxDepth < -1:
		return errors.NewInvalidConfigurationError("DecisionTreeClassifier", "max_depth", "must be positive or -1", dt.maxDepth)
	case dt.minSamplesSplit < 2:
		return errors.NewInvalidConfigurationError("DecisionTreeClassifier", "min_samples_split", "must be at least 2", dt.minSamplesSplit)
	case dt.minSamplesLeaf < 1:
		return errors.NewInvalidConfigurationError("DecisionTreeClassifier", "min_samples_leaf", "must be at least 1", dt.minSamplesLeaf)
	case dt.maxFeatures < 0:
		return errors.NewInvalidConfigurationError("DecisionTreeClassifier", "max_features", "must be non-negative", dt.maxFeatures)
	}
	return nil
}

// builder carries the training data through the recursive growth.
type builder struct {
	dt       *DecisionTreeClassifier
	X        *mat.Dense
	labels   []int
	rng      *rand.Rand
	features []int
}

// Fit grows the tree. A sample holding a single class is accepted and
// yields a one-leaf tree; bootstrap draws in a forest can be that pure.
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	if err := dt.validate(); err != nil {
		return err
	}
	n, p, labels, err := model.CheckXY("DecisionTreeClassifier.Fit", X, y)
	if err != nil {
		return err
	}

	dt.state.Reset()
	dt.nodes = dt.nodes[:0]
	dt.importances_ = make([]float64, p)
	dt.depth_ = 0
	dt.nLeaves_ = 0

	b := &builder{
		dt:       dt,
		X:        mat.DenseCopyOf(X),
		labels:   labels,
		rng:      rand.New(rand.NewPCG(dt.randomState, 0x7ee)),
		features: make([]int, p),
	}
	for j := range b.features {
		b.features[j] = j
	}
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	b.grow(indices, 0)

	total := 0.0
	for _, v := range dt.importances_ {
		total += v
	}
	if total > 0 {
		for j := range dt.importances_ {
			dt.importances_[j] /= total
		}
	}

	dt.state.SetDimensions(p, n)
	dt.state.SetFitted()
	return nil
}

func (b *builder) counts(indices []int) []float64 {
	c := make([]float64, nClasses)
	for _, i := range indices {
		c[b.labels[i]]++
	}
	return c
}

func (b *builder) grow(indices []int, depth int) int {
	dt := b.dt
	counts := b.counts(indices)
	n := len(indices)
	impurity := dt.impurity(counts, float64(n))

	id := len(dt.nodes)
	dt.nodes = append(dt.nodes, node{leaf: true, value: normalize(counts), nSamples: n, impurity: impurity})
	if depth > dt.depth_ {
		dt.depth_ = depth
	}

	canSplit := impurity > 0 &&
		n >= dt.minSamplesSplit &&
		n >= 2*dt.minSamplesLeaf &&
		(dt.maxDepth < 0 || depth < dt.maxDepth)
	if !canSplit {
		dt.nLeaves_++
		return id
	}

	feature, threshold, childImpurity, ok := b.bestSplit(indices, counts)
	if !ok {
		dt.nLeaves_++
		return id
	}

	var left, right []int
	for _, i := range indices {
		if b.X.At(i, feature) <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	dt.importances_[feature] += float64(n)*impurity - childImpurity

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	dt.nodes[id].leaf = false
	dt.nodes[id].feature = feature
	dt.nodes[id].threshold = threshold
	dt.nodes[id].left = l
	dt.nodes[id].right = r
	return id
}

// bestSplit returns the split minimizing the weighted child impurity
// (n_left·I_left + n_right·I_right). The first best candidate in
// (feature, threshold) order wins ties.
func (b *builder) bestSplit(indices []int, counts []float64) (int, float64, float64, bool) {
	dt := b.dt
	n := len(indices)
	candidates := b.features
	if dt.maxFeatures > 0 && dt.maxFeatures < len(b.features) {
		perm := b.rng.Perm(len(b.features))[:dt.maxFeatures]
		sort.Ints(perm)
		candidates = perm
	}

	sorted := make([]int, n)
	leftCounts := make([]float64, nClasses)
	rightCounts := make([]float64, nClasses)

	bestFeature, bestThreshold, bestScore, found := -1, 0.0, math.Inf(1), false
	for _, f := range candidates {
		copy(sorted, indices)
		sort.SliceStable(sorted, func(a, c int) bool { return b.X.At(sorted[a], f) < b.X.At(sorted[c], f) })

		for k := range leftCounts {
			leftCounts[k] = 0
			rightCounts[k] = counts[k]
		}
		for pos := 0; pos < n-1; pos++ {
			label := b.labels[sorted[pos]]
			leftCounts[label]++
			rightCounts[label]--

			nLeft := pos + 1
			nRight := n - nLeft
			if nLeft < dt.minSamplesLeaf || nRight < dt.minSamplesLeaf {
				continue
			}
			lo, hi := b.X.At(sorted[pos], f), b.X.At(sorted[pos+1], f)
			if hi <= lo {
				continue
			}
			score := float64(nLeft)*dt.impurity(leftCounts, float64(nLeft)) +
				float64(nRight)*dt.impurity(rightCounts, float64(nRight))
			if score < bestScore-1e-12 {
				bestFeature, bestThreshold, bestScore, found = f, lo+(hi-lo)/2, score, true
			}
		}
	}
	return bestFeature, bestThreshold, bestScore, found
}

func (dt *DecisionTreeClassifier) impurity(counts []float64, n float64) float64 {
	if n == 0 {
		return 0
	}
	result := 0.0
	if dt.criterion == "entropy" {
		for _, c := range counts {
			if c > 0 {
				p := c / n
				result -= p * math.Log2(p)
			}
		}
		return result
	}
	result = 1
	for _, c := range counts {
		p := c / n
		result -= p * p
	}
	return result
}

func normalize(counts []float64) []float64 {
	total := 0.0
	for _, c := range counts {
		total += c
	}
	out := make([]float64, len(counts))
	for k, c := range counts {
		out[k] = c / total
	}
	return out
}

func (dt *DecisionTreeClassifier) leaf(row []float64) *node {
	nd := &dt.nodes[0]
	for !nd.leaf {
		if row[nd.feature] <= nd.threshold {
			nd = &dt.nodes[nd.left]
		} else {
			nd = &dt.nodes[nd.right]
		}
	}
	return nd
}

// PredictProba returns the n×2 class distribution of the leaf each row
// lands in.
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.state.RequireFitted("DecisionTreeClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	n, p := X.Dims()
	if err := dt.state.CheckFeatures("DecisionTreeClassifier.PredictProba", p); err != nil {
		return nil, err
	}
	out := mat.NewDense(n, nClasses, nil)
	row := make([]float64, p)
	for i := 0; i < n; i++ {
		mat.Row(row, i, X)
		out.SetRow(i, dt.leaf(row).value)
	}
	return out, nil
}

// Predict returns the majority class of each leaf; ties go to class 0.
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := dt.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return model.ProbaToLabels(proba), nil
}

// FeatureImportances returns the impurity decrease per feature,
// normalized to sum to 1 (all zero for a one-leaf tree).
func (dt *DecisionTreeClassifier) FeatureImportances() ([]float64, error) {
	if err := dt.state.RequireFitted("DecisionTreeClassifier", "FeatureImportances"); err != nil {
		return nil, err
	}
	return append([]float64(nil), dt.importances_...), nil
}

// Depth returns the depth of the fitted tree; a lone root has depth 0.
func (dt *DecisionTreeClassifier) Depth() int { return dt.depth_ }

// NLeaves returns the number of leaves of the fitted tree.
func (dt *DecisionTreeClassifier) NLeaves() int { return dt.nLeaves_ }

// Clone returns an unfitted tree with the same hyperparameters.
func (dt *DecisionTreeClassifier) Clone() model.Estimator {
	return NewDecisionTreeClassifier(
		WithCriterion(dt.criterion),
		WithMaxDepth(dt.maxDepth),
		WithMinSamplesSplit(dt.minSamplesSplit),
		WithMinSamplesLeaf(dt.minSamplesLeaf),
		WithMaxFeatures(dt.maxFeatures),
		WithRandomState(dt.randomState),
	)
}

// Name implements model.Named.
func (dt *DecisionTreeClassifier) Name() string { return "DecisionTreeClassifier" }

// GetParams returns the hyperparameters.
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         dt.criterion,
		"max_depth":         dt.maxDepth,
		"min_samples_split": dt.minSamplesSplit,
		"min_samples_leaf":  dt.minSamplesLeaf,
		"max_features":      dt.maxFeatures,
		"random_state":      dt.randomState,
	}
}

// SetParams updates hyperparameters and resets the fitted state. A value
// of the wrong type leaves the current setting untouched.
func (dt *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var ok bool
		switch key {
		case "criterion":
			ok = model.AssignParam(&dt.criterion, value)
		case "max_depth":
			ok = model.AssignParam(&dt.maxDepth, value)
		case "min_samples_split":
			ok = model.AssignParam(&dt.minSamplesSplit, value)
		case "min_samples_leaf":
			ok = model.AssignParam(&dt.minSamplesLeaf, value)
		case "max_features":
			ok = model.AssignParam(&dt.maxFeatures, value)
		case "random_state":
			ok = model.AssignParam(&dt.randomState, value)
		default:
			return errors.NewInvalidConfigurationError("DecisionTreeClassifier", key, "unknown parameter", value)
		}
		if !ok {
			return errors.NewInvalidConfigurationError("DecisionTreeClassifier", key, fmt.Sprintf("unexpected type %T", value), value)
		}
	}
	dt.state.Reset()
	return dt.validate()
}
