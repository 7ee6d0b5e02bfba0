package ensemble

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/ensemblecv/core/model"
	"github.com/YuminosukeSato/ensemblecv/core/parallel"
	"github.com/YuminosukeSato/ensemblecv/pkg/errors"
	"github.com/YuminosukeSato/ensemblecv/pkg/log"
)

// BaggingClassifier fits clones of one base estimator on bootstrap
// samples. Member i draws its rows (and optional feature subset) from its
// own stream seeded by (seed, i).
type BaggingClassifier struct {
	state *model.StateManager

	base        model.Cloner
	nEstimators int
	maxSamples  float64
	maxFeatures float64
	voting      string
	seed        uint64
	workers     int

	members  []model.Estimator
	samples  [][]int
	features [][]int

	logger log.Logger
}

// BaggingOption configures a BaggingClassifier.
type BaggingOption func(*BaggingClassifier)

// WithNEstimators sets the number of bootstrap members.
func WithNEstimators(n int) BaggingOption {
	return func(b *BaggingClassifier) { b.nEstimators = n }
}

// WithMaxSamples sets the bootstrap size as a fraction of the rows.
func WithMaxSamples(frac float64) BaggingOption {
	return func(b *BaggingClassifier) { b.maxSamples = frac }
}

// WithMaxFeatures sets the per-member feature fraction; values below 1
// draw a subset without replacement.
func WithMaxFeatures(frac float64) BaggingOption {
	return func(b *BaggingClassifier) { b.maxFeatures = frac }
}

// WithBaggingVoting selects majority ("hard") or probability ("soft") voting.
func WithBaggingVoting(rule string) BaggingOption {
	return func(b *BaggingClassifier) { b.voting = rule }
}

// WithBaggingSeed sets the seed from which every member stream derives.
func WithBaggingSeed(seed uint64) BaggingOption {
	return func(b *BaggingClassifier) { b.seed = seed }
}

// WithBaggingWorkers bounds the members fitted concurrently.
func WithBaggingWorkers(n int) BaggingOption {
	return func(b *BaggingClassifier) { b.workers = n }
}

// NewBaggingClassifier creates a 10-member hard-voting bagging ensemble.
func NewBaggingClassifier(base model.Cloner, opts ...BaggingOption) (*BaggingClassifier, error) {
	b := &BaggingClassifier{
		state:       model.NewStateManager(),
		base:        base,
		nEstimators: 10,
		maxSamples:  1.0,
		maxFeatures: 1.0,
		voting:      VotingHard,
		seed:        1,
		logger:      log.GetLoggerWithName("ensemble.Bagging"),
	}
	for _, opt := range opts {
		opt(b)
	}
	if err := b.validate(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *BaggingClassifier) validate() error {
	switch {
	case b.base == nil:
		return errors.NewInvalidConfigurationError("BaggingClassifier", "estimator", "base estimator is required", nil)
	case b.nEstimators < 1:
		return errors.NewInvalidConfigurationError("BaggingClassifier", "n_estimators", "must be at least 1", b.nEstimators)
	case !(b.maxSamples > 0 && b.maxSamples <= 1):
		return errors.NewInvalidConfigurationError("BaggingClassifier", "max_samples", "must be in (0, 1]", b.maxSamples)
	case !(b.maxFeatures > 0 && b.maxFeatures <= 1):
		return errors.NewInvalidConfigurationError("BaggingClassifier", "max_features", "must be in (0, 1]", b.maxFeatures)
	case b.voting != VotingSoft && b.voting != VotingHard:
		return errors.NewInvalidConfigurationError("BaggingClassifier", "voting", "must be soft or hard", b.voting)
	case b.voting == VotingSoft && !model.SupportsProba(b.base):
		return errors.NewIncompatibleMemberError("BaggingClassifier", model.NameOf(b.base), "PredictProba")
	}
	return nil
}

// Fit fits every member on its own bootstrap sample.
func (b *BaggingClassifier) Fit(X, y mat.Matrix) error {
	return b.FitContext(context.Background(), X, y)
}

type baggingMember struct {
	est      model.Estimator
	rows     []int
	features []int
}

// FitContext is Fit with cancellation; the first member error aborts.
func (b *BaggingClassifier) FitContext(ctx context.Context, X, y mat.Matrix) error {
	if err := b.validate(); err != nil {
		return err
	}
	n, p, labels, err := model.CheckXY("BaggingClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	data := mat.DenseCopyOf(X)
	nRows := fractionOf(b.maxSamples, n)
	nCols := fractionOf(b.maxFeatures, p)

	fitted, err := parallel.Map(ctx, b.nEstimators, b.workers, func(_ context.Context, i int) (baggingMember, error) {
		rows, features := b.draw(i, n, p, nRows, nCols)
		est := b.base.Clone()
		if err := est.Fit(take(data, rows, features), takeLabels(labels, rows)); err != nil {
			return baggingMember{}, errors.Wrapf(err, "bagging member %d", i)
		}
		return baggingMember{est: est, rows: rows, features: features}, nil
	})
	if err != nil {
		return err
	}

	b.members = make([]model.Estimator, len(fitted))
	b.samples = make([][]int, len(fitted))
	b.features = make([][]int, len(fitted))
	for i, m := range fitted {
		b.members[i] = m.est
		b.samples[i] = m.rows
		b.features[i] = m.features
	}
	b.state.SetDimensions(p, n)
	b.state.SetFitted()
	b.logger.Debug("bagging ensemble fitted",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, p,
		log.MembersKey, len(fitted),
		log.RandomSeedKey, b.seed,
	)
	return nil
}

// draw returns member i's bootstrap rows and feature columns (nil when
// every feature is used).
func (b *BaggingClassifier) draw(i, n, p, nRows, nCols int) ([]int, []int) {
	rng := memberRNG(b.seed, i)
	rows := bootstrap(rng, n, nRows)
	var features []int
	if nCols < p {
		features = subsample(rng, p, nCols)
	}
	return rows, features
}

// SampleIndices returns the bootstrap rows drawn for member i.
func (b *BaggingClassifier) SampleIndices(i int) []int {
	if i < 0 || i >= len(b.samples) {
		return nil
	}
	return append([]int(nil), b.samples[i]...)
}

// FeatureIndices returns the columns used by member i (all columns when
// no feature subsampling was configured).
func (b *BaggingClassifier) FeatureIndices(i int) []int {
	if i < 0 || i >= len(b.features) {
		return nil
	}
	if b.features[i] == nil {
		p, _ := b.state.GetDimensions()
		return identity(p)
	}
	return append([]int(nil), b.features[i]...)
}

// Members returns the fitted members.
func (b *BaggingClassifier) Members() []model.Estimator {
	return append([]model.Estimator(nil), b.members...)
}

func (b *BaggingClassifier) aggregate(X mat.Matrix, soft bool) (*mat.Dense, error) {
	if err := b.state.RequireFitted("BaggingClassifier", "Predict"); err != nil {
		return nil, err
	}
	n, p := X.Dims()
	if err := b.state.CheckFeatures("BaggingClassifier.Predict", p); err != nil {
		return nil, err
	}
	sum := mat.NewDense(n, 2, nil)
	for i, est := range b.members {
		Xi := X
		if b.features[i] != nil {
			Xi = take(X, nil, b.features[i])
		}
		var (
			scores mat.Matrix
			err    error
		)
		if soft {
			scores, err = probaOf(est, Xi)
		} else {
			scores, err = votesOf(est, Xi)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "bagging member %d", i)
		}
		sum.Add(sum, scores)
	}
	sum.Scale(1/float64(len(b.members)), sum)
	return sum, nil
}

// PredictProba averages member probabilities when the base estimator has
// them, and returns vote shares otherwise.
func (b *BaggingClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	return b.aggregate(X, model.SupportsProba(b.base))
}

// Predict returns the majority vote (hard) or the argmax of averaged
// probabilities (soft); ties go to class 0.
func (b *BaggingClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	agg, err := b.aggregate(X, b.voting == VotingSoft)
	if err != nil {
		return nil, err
	}
	return model.ProbaToLabels(agg), nil
}

// Clone returns an unfitted ensemble over a clone of the base estimator.
func (b *BaggingClassifier) Clone() model.Estimator {
	return &BaggingClassifier{
		state:       model.NewStateManager(),
		base:        b.base.Clone().(model.Cloner),
		nEstimators: b.nEstimators,
		maxSamples:  b.maxSamples,
		maxFeatures: b.maxFeatures,
		voting:      b.voting,
		seed:        b.seed,
		workers:     b.workers,
		logger:      b.logger,
	}
}

// Name implements model.Named.
func (b *BaggingClassifier) Name() string { return "BaggingClassifier" }

// GetParams returns the ensemble hyperparameters and the base estimator's
// parameters under "estimator__<param>" keys.
func (b *BaggingClassifier) GetParams() map[string]interface{} {
	params := map[string]interface{}{
		"n_estimators": b.nEstimators,
		"max_samples":  b.maxSamples,
		"max_features": b.maxFeatures,
		"voting":       b.voting,
		"random_state": b.seed,
	}
	if g, ok := b.base.(model.ParameterGetter); ok {
		for k, v := range g.GetParams() {
			params["estimator__"+k] = v
		}
	}
	return params
}

// SetParams updates hyperparameters; "estimator__<param>" keys go to the
// base estimator.
func (b *BaggingClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var ok bool
		switch key {
		case "n_estimators":
			ok = model.AssignParam(&b.nEstimators, value)
		case "max_samples":
			ok = model.AssignParam(&b.maxSamples, value)
		case "max_features":
			ok = model.AssignParam(&b.maxFeatures, value)
		case "voting":
			ok = model.AssignParam(&b.voting, value)
		case "random_state":
			ok = model.AssignParam(&b.seed, value)
		default:
			member, param, found := splitMemberKey(key)
			if !found || member != "estimator" {
				return errors.NewInvalidConfigurationError("BaggingClassifier", key, "unknown parameter", value)
			}
			setter, canSet := b.base.(model.ParameterSetter)
			if !canSet {
				return errors.NewIncompatibleMemberError("BaggingClassifier", model.NameOf(b.base), "SetParams")
			}
			if err := setter.SetParams(map[string]interface{}{param: value}); err != nil {
				return err
			}
			ok = true
		}
		if !ok {
			return errors.NewInvalidConfigurationError("BaggingClassifier", key, fmt.Sprintf("unexpected type %T", value), value)
		}
	}
	b.state.Reset()
	b.members = nil
	return b.validate()
}
