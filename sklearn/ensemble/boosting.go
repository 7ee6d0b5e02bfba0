package ensemble

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/ensemblecv/core/model"
	"github.com/YuminosukeSato/ensemblecv/pkg/errors"
	"github.com/YuminosukeSato/ensemblecv/pkg/log"
)

// GradientBoostingClassifier is a binary log-loss booster of shallow
// regression trees fitted with second-order (Newton) leaf values.
//
// Starting from the log-odds of the positive rate, each round computes
// g = p − y and h = p(1 − p), grows one tree on (g, h), and adds
// learningRate times its leaf values to the raw score F. The predicted
// probability is sigmoid(F).
type GradientBoostingClassifier struct {
	state *model.StateManager

	learningRate   float64
	nEstimators    int
	maxDepth       int
	minChildWeight float64
	minSamplesLeaf int
	lambda         float64
	subsample      float64
	seed           uint64

	initScore    float64
	trees        []*regressionTree
	lossHistory  []float64
	importances_ []float64

	logger log.Logger
}

// BoostingOption configures a GradientBoostingClassifier.
type BoostingOption func(*GradientBoostingClassifier)

// WithLearningRate sets the shrinkage applied to every tree, in (0, 1].
func WithLearningRate(lr float64) BoostingOption {
	return func(g *GradientBoostingClassifier) { g.learningRate = lr }
}

// WithBoostingRounds sets the number of trees.
func WithBoostingRounds(n int) BoostingOption {
	return func(g *GradientBoostingClassifier) { g.nEstimators = n }
}

// WithBoostingMaxDepth sets the depth of every tree.
func WithBoostingMaxDepth(d int) BoostingOption {
	return func(g *GradientBoostingClassifier) { g.maxDepth = d }
}

// WithMinChildWeight sets the minimum hessian sum of a child.
func WithMinChildWeight(w float64) BoostingOption {
	return func(g *GradientBoostingClassifier) { g.minChildWeight = w }
}

// WithLambda sets the L2 penalty on leaf values.
func WithLambda(l float64) BoostingOption {
	return func(g *GradientBoostingClassifier) { g.lambda = l }
}

// WithSubsample sets the row fraction drawn (without replacement) per round.
func WithSubsample(frac float64) BoostingOption {
	return func(g *GradientBoostingClassifier) { g.subsample = frac }
}

// WithBoostingSeed seeds row subsampling.
func WithBoostingSeed(seed uint64) BoostingOption {
	return func(g *GradientBoostingClassifier) { g.seed = seed }
}

// NewGradientBoostingClassifier creates a booster with 100 depth-3 trees
// and learning rate 0.1.
func NewGradientBoostingClassifier(opts ...BoostingOption) *GradientBoostingClassifier {
	g := &GradientBoostingClassifier{
		state:          model.NewStateManager(),
		learningRate:   0.1,
		nEstimators:    100,
		maxDepth:       3,
		minChildWeight: 1e-3,
		minSamplesLeaf: 1,
		lambda:         1.0,
		subsample:      1.0,
		seed:           1,
		logger:         log.GetLoggerWithName("ensemble.GradientBoosting"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *GradientBoostingClassifier) validate() error {
	const component = "GradientBoostingClassifier"
	switch {
	case !(g.learningRate > 0 && g.learningRate <= 1):
		return errors.NewInvalidConfigurationError(component, "learning_rate", "must be in (0, 1]", g.learningRate)
	case g.nEstimators < 1:
		return errors.NewInvalidConfigurationError(component, "n_estimators", "must be a positive integer", g.nEstimators)
	case g.maxDepth < 1:
		return errors.NewInvalidConfigurationError(component, "max_depth", "must be at least 1", g.maxDepth)
	case g.minChildWeight < 0:
		return errors.NewInvalidConfigurationError(component, "min_child_weight", "must be non-negative", g.minChildWeight)
	case g.lambda < 0:
		return errors.NewInvalidConfigurationError(component, "lambda", "must be non-negative", g.lambda)
	case !(g.subsample > 0 && g.subsample <= 1):
		return errors.NewInvalidConfigurationError(component, "subsample", "must be in (0, 1]", g.subsample)
	}
	return nil
}

// Fit runs the boosting rounds.
func (g *GradientBoostingClassifier) Fit(X, y mat.Matrix) error {
	return g.FitContext(context.Background(), X, y)
}

// FitContext is Fit that stops between rounds when ctx is cancelled.
func (g *GradientBoostingClassifier) FitContext(ctx context.Context, X, y mat.Matrix) error {
	if err := g.validate(); err != nil {
		return err
	}
	n, p, labels, err := model.CheckXY("GradientBoostingClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	if err := model.RequireBothClasses("GradientBoostingClassifier.Fit", labels); err != nil {
		return err
	}

	data := mat.DenseCopyOf(X)
	target := make([]float64, n)
	for i, l := range labels {
		target[i] = float64(l)
	}
	rate := floats.Sum(target) / float64(n)
	g.initScore = math.Log(rate / (1 - rate))

	raw := make([]float64, n)
	for i := range raw {
		raw[i] = g.initScore
	}
	grower := &treeGrower{
		X:              data,
		gradients:      make([]float64, n),
		hessians:       make([]float64, n),
		maxDepth:       g.maxDepth,
		minChildWeight: g.minChildWeight,
		minSamplesLeaf: g.minSamplesLeaf,
		lambda:         g.lambda,
		gains:          make([]float64, p),
	}
	rng := memberRNG(g.seed, 0)
	nRows := fractionOf(g.subsample, n)

	g.trees = make([]*regressionTree, 0, g.nEstimators)
	g.lossHistory = make([]float64, 0, g.nEstimators)
	for round := 0; round < g.nEstimators; round++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for i := range raw {
			prob := errors.Sigmoid(raw[i])
			grower.gradients[i] = prob - target[i]
			grower.hessians[i] = prob * (1 - prob)
		}

		rows := identity(n)
		if nRows < n {
			rows = subsample(rng, n, nRows)
		}
		t := grower.grow(rows)
		for i := range raw {
			raw[i] += g.learningRate * t.predict(data.RawRowView(i))
		}
		g.trees = append(g.trees, t)

		loss := logLoss(raw, target)
		if err := errors.CheckScalar("GradientBoostingClassifier.Fit", loss, round); err != nil {
			return err
		}
		g.lossHistory = append(g.lossHistory, loss)
	}

	if total := floats.Sum(grower.gains); total > 0 {
		floats.Scale(1/total, grower.gains)
	}
	g.importances_ = grower.gains

	g.state.SetDimensions(p, n)
	g.state.SetFitted()
	g.logger.Debug("boosting fitted",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, p,
		log.IterationKey, len(g.trees),
		log.LearningRateKey, g.learningRate,
		log.LossKey, g.lossHistory[len(g.lossHistory)-1],
	)
	return nil
}

func logLoss(raw, target []float64) float64 {
	loss := 0.0
	for i, f := range raw {
		prob := errors.Sigmoid(f)
		loss -= target[i]*errors.StabilizeLog(prob) + (1-target[i])*errors.StabilizeLog(1-prob)
	}
	return loss / float64(len(raw))
}

// DecisionFunction returns the raw additive score F for every row.
func (g *GradientBoostingClassifier) DecisionFunction(X mat.Matrix) ([]float64, error) {
	if err := g.state.RequireFitted("GradientBoostingClassifier", "DecisionFunction"); err != nil {
		return nil, err
	}
	n, p := X.Dims()
	if err := g.state.CheckFeatures("GradientBoostingClassifier.DecisionFunction", p); err != nil {
		return nil, err
	}
	row := make([]float64, p)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		mat.Row(row, i, X)
		f := g.initScore
		for _, t := range g.trees {
			f += g.learningRate * t.predict(row)
		}
		out[i] = f
	}
	return out, nil
}

// PredictProba returns sigmoid(F) as the class-1 column.
func (g *GradientBoostingClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	raw, err := g.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(len(raw), 2, nil)
	for i, f := range raw {
		prob := errors.Sigmoid(f)
		out.Set(i, 0, 1-prob)
		out.Set(i, 1, prob)
	}
	return out, nil
}

// Predict thresholds the probability at 0.5; exactly 0.5 maps to class 0.
func (g *GradientBoostingClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := g.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return model.ProbaToLabels(proba), nil
}

// FeatureImportances returns the total split gain per feature, normalized.
func (g *GradientBoostingClassifier) FeatureImportances() ([]float64, error) {
	if err := g.state.RequireFitted("GradientBoostingClassifier", "FeatureImportances"); err != nil {
		return nil, err
	}
	return append([]float64(nil), g.importances_...), nil
}

// LossHistory returns the training log-loss after each round.
func (g *GradientBoostingClassifier) LossHistory() []float64 {
	return append([]float64(nil), g.lossHistory...)
}

// NTrees returns the number of fitted trees.
func (g *GradientBoostingClassifier) NTrees() int { return len(g.trees) }

// Clone returns an unfitted booster with the same configuration.
func (g *GradientBoostingClassifier) Clone() model.Estimator {
	c := *g
	c.state = model.NewStateManager()
	c.trees = nil
	c.lossHistory = nil
	c.importances_ = nil
	return &c
}

// Name implements model.Named.
func (g *GradientBoostingClassifier) Name() string { return "GradientBoostingClassifier" }

// GetParams returns the hyperparameters.
func (g *GradientBoostingClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"learning_rate":    g.learningRate,
		"n_estimators":     g.nEstimators,
		"max_depth":        g.maxDepth,
		"min_child_weight": g.minChildWeight,
		"min_samples_leaf": g.minSamplesLeaf,
		"lambda":           g.lambda,
		"subsample":        g.subsample,
		"random_state":     g.seed,
	}
}

// SetParams updates hyperparameters and resets the fitted state.
func (g *GradientBoostingClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var ok bool
		switch key {
		case "learning_rate":
			ok = model.AssignParam(&g.learningRate, value)
		case "n_estimators":
			ok = model.AssignParam(&g.nEstimators, value)
		case "max_depth":
			ok = model.AssignParam(&g.maxDepth, value)
		case "min_child_weight":
			ok = model.AssignParam(&g.minChildWeight, value)
		case "min_samples_leaf":
			ok = model.AssignParam(&g.minSamplesLeaf, value)
		case "lambda":
			ok = model.AssignParam(&g.lambda, value)
		case "subsample":
			ok = model.AssignParam(&g.subsample, value)
		case "random_state":
			ok = model.AssignParam(&g.seed, value)
		default:
			return errors.NewInvalidConfigurationError("GradientBoostingClassifier", key, "unknown parameter", value)
		}
		if !ok {
			return errors.NewInvalidConfigurationError("GradientBoostingClassifier", key, fmt.Sprintf("unexpected type %T", value), value)
		}
	}
	g.state.Reset()
	g.trees = nil
	return g.validate()
}
