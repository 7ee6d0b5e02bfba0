package model_selection

import (
	"context"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/ensemblecv/core/model"
	"github.com/YuminosukeSato/ensemblecv/core/parallel"
	"github.com/YuminosukeSato/ensemblecv/pkg/errors"
	"github.com/YuminosukeSato/ensemblecv/pkg/log"
)

// Params is one hyperparameter combination.
type Params map[string]any

// Clone returns a shallow copy.
func (p Params) Clone() Params {
	c := make(Params, len(p))
	for k, v := range p {
		c[k] = v
	}
	return c
}

// String renders the parameters with sorted keys.
func (p Params) String() string { return FormatParams(p) }

// ParamAxis is one named hyperparameter and its candidate values.
type ParamAxis struct {
	Name   string `yaml:"name"`
	Values []any  `yaml:"values"`
}

// ParamGrid is an ordered list of axes. Its combinations enumerate the
// Cartesian product with the last axis varying fastest.
type ParamGrid []ParamAxis

// Size returns the number of combinations; a grid without axes, or with an
// empty axis, has none.
func (g ParamGrid) Size() int {
	if len(g) == 0 {
		return 0
	}
	size := 1
	for _, axis := range g {
		size *= len(axis.Values)
	}
	return size
}

// Combinations enumerates the grid in declaration order.
func (g ParamGrid) Combinations() []Params {
	size := g.Size()
	combos := make([]Params, size)
	for c := 0; c < size; c++ {
		params := make(Params, len(g))
		rem := c
		for a := len(g) - 1; a >= 0; a-- {
			values := g[a].Values
			params[g[a].Name] = values[rem%len(values)]
			rem /= len(values)
		}
		combos[c] = params
	}
	return combos
}

// Validate rejects empty grids and unnamed or duplicate axes.
func (g ParamGrid) Validate(component string) error {
	if g.Size() == 0 {
		return errors.NewEmptyGridError(component)
	}
	seen := make(map[string]bool, len(g))
	for _, axis := range g {
		if axis.Name == "" {
			return errors.NewInvalidConfigurationError(component, "param_grid", "axis without a name", axis.Values)
		}
		if seen[axis.Name] {
			return errors.NewInvalidConfigurationError(component, "param_grid", "duplicate axis", axis.Name)
		}
		seen[axis.Name] = true
	}
	return nil
}

// Factory builds a fresh, unfitted estimator for one combination.
type Factory func(Params) (model.Estimator, error)

// Candidate is the cross-validated result of one combination.
type Candidate struct {
	Index  int
	Params Params
	Scores []float64
	Mean   float64
	Std    float64
}

// SearchResult is the outcome of GridSearch.Search.
type SearchResult struct {
	BestParams    Params
	BestScore     float64
	BestIndex     int
	BestEstimator model.Estimator // nil unless Refit
	Candidates    []Candidate
}

// GridSearch scores every combination of Grid with k-fold cross
// validation and keeps the best mean score. Each (combination, fold) pair
// is an independent unit on the worker pool.
type GridSearch struct {
	Factory  Factory
	Grid     ParamGrid
	Splitter Splitter
	Scoring  string
	Workers  int
	Refit    bool
	Logger   log.Logger
}

// NewGridSearch returns a refitting search with shuffled KFold(k, seed).
func NewGridSearch(factory Factory, grid ParamGrid, k int, seed uint64, scoring string) *GridSearch {
	return &GridSearch{
		Factory:  factory,
		Grid:     grid,
		Splitter: NewKFold(k, true, seed),
		Scoring:  scoring,
		Refit:    true,
		Logger:   log.GetLoggerWithName("GridSearch"),
	}
}

// Search evaluates the grid. The best combination is the one with the
// largest mean score; among equal means the first in enumeration order
// wins. Every combination is built once before any training so that
// configuration errors surface immediately.
func (gs *GridSearch) Search(ctx context.Context, X, y mat.Matrix) (*SearchResult, error) {
	if gs.Factory == nil {
		return nil, errors.NewInvalidConfigurationError("GridSearch", "factory", "factory is required", nil)
	}
	if err := gs.Grid.Validate("GridSearch"); err != nil {
		return nil, err
	}
	scorer, err := GetScorer(gs.Scoring)
	if err != nil {
		return nil, err
	}
	_, _, labels, err := model.CheckXY("GridSearch.Search", X, y)
	if err != nil {
		return nil, err
	}
	folds, err := gs.Splitter.Split(labels)
	if err != nil {
		return nil, err
	}

	combos := gs.Grid.Combinations()
	for _, params := range combos {
		est, err := gs.Factory(params.Clone())
		if err != nil {
			return nil, errors.Wrapf(err, "params %s", params)
		}
		if est == nil {
			return nil, errors.NewInvalidConfigurationError("GridSearch", "factory", "factory returned nil", params.String())
		}
	}
	if err := checkFolds(folds, labels, combos[0].String()); err != nil {
		return nil, err
	}

	logger := gs.Logger
	if logger == nil {
		logger = log.GetLoggerWithName("GridSearch")
	}
	logger = logger.With(log.MetricKey, scorer.Name)
	start := time.Now()

	k := len(folds)
	scores, err := parallel.Map(ctx, len(combos)*k, gs.Workers, func(ctx context.Context, u int) (float64, error) {
		params, fold := combos[u/k], folds[u%k]
		value, err := gs.evaluateUnit(params, scorer, X, labels, fold)
		if err != nil {
			return 0, errors.Wrapf(err, "fold %d params %s", fold.ID, params)
		}
		return value, nil
	})
	if err != nil {
		return nil, err
	}

	result := &SearchResult{BestIndex: -1, Candidates: make([]Candidate, len(combos))}
	for c, params := range combos {
		fs := append([]float64(nil), scores[c*k:(c+1)*k]...)
		mean, std := stat.MeanStdDev(fs, nil)
		if k < 2 {
			std = 0
		}
		result.Candidates[c] = Candidate{Index: c, Params: params, Scores: fs, Mean: mean, Std: std}
		if result.BestIndex < 0 || mean > result.BestScore {
			result.BestIndex, result.BestScore, result.BestParams = c, mean, params.Clone()
		}
		logger.Debug("candidate scored", log.ParamsKey, params.String(), log.ScoreKey, mean)
	}

	if gs.Refit {
		best, err := gs.Factory(result.BestParams.Clone())
		if err != nil {
			return nil, err
		}
		if err := best.Fit(X, y); err != nil {
			return nil, errors.Wrapf(err, "refit params %s", result.BestParams)
		}
		result.BestEstimator = best
	}

	logger.Info("grid search finished",
		log.OperationKey, log.OperationSearch,
		log.TrialsKey, len(combos),
		log.NFoldsKey, k,
		log.ParamsKey, result.BestParams.String(),
		log.ScoreKey, result.BestScore,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return result, nil
}

func (gs *GridSearch) evaluateUnit(params Params, scorer Scorer, X mat.Matrix, labels []int, fold Fold) (float64, error) {
	est, err := gs.Factory(params.Clone())
	if err != nil {
		return 0, err
	}
	return fitAndScore(est, scorer, X, labels, fold)
}
