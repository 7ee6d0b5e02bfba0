package ensemble

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/ensemblecv/core/model"
	"github.com/YuminosukeSato/ensemblecv/core/parallel"
	"github.com/YuminosukeSato/ensemblecv/pkg/errors"
	"github.com/YuminosukeSato/ensemblecv/pkg/log"
	"github.com/YuminosukeSato/ensemblecv/sklearn/tree"
)

// RandomForestClassifier averages CART trees grown on bootstrap samples
// with a random feature subset considered at every split.
type RandomForestClassifier struct {
	state *model.StateManager

	nEstimators     int
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     string // "sqrt", "log2" or "all"
	bootstrap       bool
	seed            uint64
	workers         int

	trees        []*tree.DecisionTreeClassifier
	importances_ []float64

	logger log.Logger
}

// ForestOption configures a RandomForestClassifier.
type ForestOption func(*RandomForestClassifier)

// WithTrees sets the number of trees.
func WithTrees(n int) ForestOption {
	return func(f *RandomForestClassifier) { f.nEstimators = n }
}

// WithForestMaxDepth limits tree depth; -1 means unlimited.
func WithForestMaxDepth(d int) ForestOption {
	return func(f *RandomForestClassifier) { f.maxDepth = d }
}

// WithForestMinSamplesLeaf sets the minimum leaf size of every tree.
func WithForestMinSamplesLeaf(n int) ForestOption {
	return func(f *RandomForestClassifier) { f.minSamplesLeaf = n }
}

// WithForestMaxFeatures sets the per-split feature budget
// ("sqrt", "log2" or "all").
func WithForestMaxFeatures(mode string) ForestOption {
	return func(f *RandomForestClassifier) { f.maxFeatures = mode }
}

// WithForestBootstrap toggles bootstrap sampling of rows.
func WithForestBootstrap(on bool) ForestOption {
	return func(f *RandomForestClassifier) { f.bootstrap = on }
}

// WithForestSeed sets the seed from which every tree's stream derives.
func WithForestSeed(seed uint64) ForestOption {
	return func(f *RandomForestClassifier) { f.seed = seed }
}

// WithForestWorkers bounds the number of trees grown concurrently.
func WithForestWorkers(n int) ForestOption {
	return func(f *RandomForestClassifier) { f.workers = n }
}

// NewRandomForestClassifier creates a forest of 100 unlimited-depth trees
// with sqrt feature sampling.
func NewRandomForestClassifier(opts ...ForestOption) *RandomForestClassifier {
	f := &RandomForestClassifier{
		state:           model.NewStateManager(),
		nEstimators:     100,
		maxDepth:        -1,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     "sqrt",
		bootstrap:       true,
		seed:            1,
		logger:          log.GetLoggerWithName("ensemble.RandomForest"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *RandomForestClassifier) validate() error {
	switch {
	case f.nEstimators < 1:
		return errors.NewInvalidConfigurationError("RandomForestClassifier", "n_estimators", "must be at least 1", f.nEstimators)
	case f.maxFeatures != "sqrt" && f.maxFeatures != "log2" && f.maxFeatures != "all":
		return errors.NewInvalidConfigurationError("RandomForestClassifier", "max_features", "must be sqrt, log2 or all", f.maxFeatures)
	}
	return nil
}

func (f *RandomForestClassifier) featureBudget(p int) int {
	var k int
	switch f.maxFeatures {
	case "sqrt":
		k = int(math.Sqrt(float64(p)))
	case "log2":
		k = int(math.Log2(float64(p)))
	default:
		return 0
	}
	return max(k, 1)
}

// Fit grows the trees in parallel.
func (f *RandomForestClassifier) Fit(X, y mat.Matrix) error {
	return f.FitContext(context.Background(), X, y)
}

// FitContext is Fit with cancellation.
func (f *RandomForestClassifier) FitContext(ctx context.Context, X, y mat.Matrix) error {
	if err := f.validate(); err != nil {
		return err
	}
	n, p, labels, err := model.CheckXY("RandomForestClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	data := mat.DenseCopyOf(X)
	budget := f.featureBudget(p)

	trees, err := parallel.Map(ctx, f.nEstimators, f.workers, func(_ context.Context, i int) (*tree.DecisionTreeClassifier, error) {
		rng := memberRNG(f.seed, i)
		rows := identity(n)
		if f.bootstrap {
			rows = bootstrap(rng, n, n)
		}
		t := tree.NewDecisionTreeClassifier(
			tree.WithMaxDepth(f.maxDepth),
			tree.WithMinSamplesSplit(f.minSamplesSplit),
			tree.WithMinSamplesLeaf(f.minSamplesLeaf),
			tree.WithMaxFeatures(budget),
			tree.WithRandomState(rng.Uint64()),
		)
		if err := t.Fit(take(data, rows, nil), takeLabels(labels, rows)); err != nil {
			return nil, errors.Wrapf(err, "random forest tree %d", i)
		}
		return t, nil
	})
	if err != nil {
		return err
	}

	importances := make([]float64, p)
	depth, leaves := 0, 0
	for _, t := range trees {
		imp, err := t.FeatureImportances()
		if err != nil {
			return err
		}
		floats.Add(importances, imp)
		depth = max(depth, t.Depth())
		leaves += t.NLeaves()
	}
	if total := floats.Sum(importances); total > 0 {
		floats.Scale(1/total, importances)
	}

	f.trees = trees
	f.importances_ = importances
	f.state.SetDimensions(p, n)
	f.state.SetFitted()
	f.logger.Debug("forest fitted",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, p,
		log.MembersKey, len(trees),
		log.TreeDepthKey, depth,
		log.TreeLeavesKey, float64(leaves)/float64(len(trees)),
	)
	return nil
}

// PredictProba averages the tree probabilities.
func (f *RandomForestClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := f.state.RequireFitted("RandomForestClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	n, p := X.Dims()
	if err := f.state.CheckFeatures("RandomForestClassifier.PredictProba", p); err != nil {
		return nil, err
	}
	sum := mat.NewDense(n, 2, nil)
	for _, t := range f.trees {
		proba, err := t.PredictProba(X)
		if err != nil {
			return nil, err
		}
		sum.Add(sum, proba)
	}
	sum.Scale(1/float64(len(f.trees)), sum)
	return sum, nil
}

// Predict returns argmax of the averaged probabilities; ties go to class 0.
func (f *RandomForestClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := f.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return model.ProbaToLabels(proba), nil
}

// FeatureImportances returns the mean impurity decrease per feature,
// normalized to sum to 1.
func (f *RandomForestClassifier) FeatureImportances() ([]float64, error) {
	if err := f.state.RequireFitted("RandomForestClassifier", "FeatureImportances"); err != nil {
		return nil, err
	}
	return append([]float64(nil), f.importances_...), nil
}

// Clone returns an unfitted forest with the same configuration.
func (f *RandomForestClassifier) Clone() model.Estimator {
	c := *f
	c.state = model.NewStateManager()
	c.trees = nil
	c.importances_ = nil
	return &c
}

// Name implements model.Named.
func (f *RandomForestClassifier) Name() string { return "RandomForestClassifier" }

// GetParams returns the hyperparameters.
func (f *RandomForestClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      f.nEstimators,
		"max_depth":         f.maxDepth,
		"min_samples_split": f.minSamplesSplit,
		"min_samples_leaf":  f.minSamplesLeaf,
		"max_features":      f.maxFeatures,
		"bootstrap":         f.bootstrap,
		"random_state":      f.seed,
	}
}

// SetParams updates hyperparameters and resets the fitted state. A value
// of the wrong type leaves the current setting untouched.
func (f *RandomForestClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var ok bool
		switch key {
		case "n_estimators":
			ok = model.AssignParam(&f.nEstimators, value)
		case "max_depth":
			ok = model.AssignParam(&f.maxDepth, value)
		case "min_samples_split":
			ok = model.AssignParam(&f.minSamplesSplit, value)
		case "min_samples_leaf":
			ok = model.AssignParam(&f.minSamplesLeaf, value)
		case "max_features":
			ok = model.AssignParam(&f.maxFeatures, value)
		case "bootstrap":
			ok = model.AssignParam(&f.bootstrap, value)
		case "random_state":
			ok = model.AssignParam(&f.seed, value)
		default:
			return errors.NewInvalidConfigurationError("RandomForestClassifier", key, "unknown parameter", value)
		}
		if !ok {
			return errors.NewInvalidConfigurationError("RandomForestClassifier", key, fmt.Sprintf("unexpected type %T", value), value)
		}
	}
	f.state.Reset()
	f.trees = nil
	return f.validate()
}
