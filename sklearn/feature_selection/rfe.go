// Package feature_selection implements recursive feature elimination and
// the selector stages used by pipelines.
package feature_selection

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/ensemblecv/core/model"
	"github.com/YuminosukeSato/ensemblecv/pkg/errors"
	"github.com/YuminosukeSato/ensemblecv/pkg/log"
)

// Selector is a supervised column selector usable as a pipeline stage.
type Selector interface {
	model.SupervisedTransformer
	Ranking() *FeatureRanking
	CloneSelector() Selector
}

// RFE ranks features by repeatedly fitting a fresh clone of Estimator on
// the active columns and dropping the least important ones.
//
// Each round removes min(Step, active-NFeaturesToSelect) features. The
// first feature removed gets rank P, the next P-1, and so on; survivors
// are ranked 1..NFeaturesToSelect by their final-round importance.
// Importance ties are resolved by column index: among tied features the
// lower index is eliminated first, and among survivors the lower index
// ranks better.
type RFE struct {
	Estimator         model.Cloner
	NFeaturesToSelect int
	Step              int

	ranking *FeatureRanking
	logger  log.Logger
}

// NewRFE validates the estimator and step. target 0 selects half of the
// features (at least one) at fit time; a negative target is rejected.
func NewRFE(estimator model.Cloner, target, step int) (*RFE, error) {
	if estimator == nil {
		return nil, errors.NewInvalidConfigurationError("RFE", "estimator", "estimator is required", nil)
	}
	if !model.SupportsImportance(estimator) {
		return nil, errors.NewInvalidConfigurationError("RFE", "estimator",
			"estimator provides no feature importances", model.NameOf(estimator))
	}
	if step < 1 {
		return nil, errors.NewInvalidConfigurationError("RFE", "step", "must be at least 1", step)
	}
	return &RFE{
		Estimator:         estimator,
		NFeaturesToSelect: target,
		Step:              step,
		logger:            log.GetLoggerWithName("RFE"),
	}, nil
}

func (r *RFE) target(p int) (int, error) {
	target := r.NFeaturesToSelect
	if target < 0 {
		return 0, errors.NewInvalidConfigurationError("RFE", "n_features_to_select", "must be at least 1", target)
	}
	if target == 0 {
		target = max(p/2, 1)
	}
	if target > p {
		return 0, errors.NewInvalidConfigurationError("RFE", "n_features_to_select",
			fmt.Sprintf("exceeds the %d available features", p), target)
	}
	return target, nil
}

// Select runs the elimination and returns the full ranking. names may be
// nil, in which case columns are named x0, x1, ...
func (r *RFE) Select(X, y mat.Matrix, names []string) (*FeatureRanking, error) {
	_, p, _, err := model.CheckXY("RFE.Select", X, y)
	if err != nil {
		return nil, err
	}
	if names == nil {
		names = make([]string, p)
		for j := range names {
			names[j] = fmt.Sprintf("x%d", j)
		}
	}
	if len(names) != p {
		return nil, errors.NewDimensionError("RFE.Select", p, len(names), 1)
	}
	target, err := r.target(p)
	if err != nil {
		return nil, err
	}

	active := make([]int, p)
	for j := range active {
		active[j] = j
	}
	ranking := make([]int, p)
	nextRank := p

	for round := 0; ; round++ {
		importances, err := r.importances(X, y, active)
		if err != nil {
			return nil, errors.Wrapf(err, "RFE round %d", round)
		}

		// Positions into active, least important first; ties by column index.
		order := make([]int, len(active))
		for k := range order {
			order[k] = k
		}
		sort.SliceStable(order, func(a, b int) bool {
			return importances[order[a]] < importances[order[b]]
		})

		if len(active) == target {
			// Survivors: most important first; ties by column index.
			sort.SliceStable(order, func(a, b int) bool {
				return importances[order[a]] > importances[order[b]]
			})
			for rank, k := range order {
				ranking[active[k]] = rank + 1
			}
			break
		}

		drop := min(r.Step, len(active)-target)
		removed := make(map[int]bool, drop)
		eliminated := make([]string, 0, drop)
		for _, k := range order[:drop] {
			col := active[k]
			ranking[col] = nextRank
			nextRank--
			removed[col] = true
			eliminated = append(eliminated, names[col])
		}
		kept := active[:0]
		for _, col := range active {
			if !removed[col] {
				kept = append(kept, col)
			}
		}
		active = kept

		r.logger.Debug("RFE round",
			log.OperationKey, log.OperationSelect,
			log.IterationKey, round,
			log.EliminatedKey, eliminated,
			log.FeaturesKey, len(active),
		)
	}

	result, err := NewFeatureRanking(names, ranking, target)
	if err != nil {
		return nil, err
	}
	r.logger.Info("feature selection finished",
		log.OperationKey, log.OperationSelect,
		log.ModelNameKey, model.NameOf(r.Estimator),
		log.SelectedKey, result.SelectedNames(),
	)
	return result, nil
}

// importances fits a fresh clone on the active columns and returns one
// finite importance per active column.
func (r *RFE) importances(X, y mat.Matrix, active []int) ([]float64, error) {
	n, _ := X.Dims()
	sub := mat.NewDense(n, len(active), nil)
	for i := 0; i < n; i++ {
		for k, j := range active {
			sub.Set(i, k, X.At(i, j))
		}
	}
	est := r.Estimator.Clone()
	if err := est.Fit(sub, y); err != nil {
		return nil, err
	}
	provider, ok := est.(model.ImportanceProvider)
	if !ok {
		return nil, errors.NewInvalidConfigurationError("RFE", "estimator",
			"clone provides no feature importances", model.NameOf(est))
	}
	importances, err := provider.FeatureImportances()
	if err != nil {
		return nil, err
	}
	if len(importances) != len(active) {
		return nil, errors.NewDimensionError("RFE.importances", len(active), len(importances), 1)
	}
	if err := errors.CheckNumericalStability("RFE.importances", importances, 0); err != nil {
		return nil, err
	}
	return importances, nil
}

// Fit runs Select with generated feature names and keeps the ranking.
func (r *RFE) Fit(X, y mat.Matrix) error {
	ranking, err := r.Select(X, y, nil)
	if err != nil {
		return err
	}
	r.ranking = ranking
	return nil
}

// Transform projects X onto the selected columns.
func (r *RFE) Transform(X mat.Matrix) (mat.Matrix, error) {
	if r.ranking == nil {
		return nil, errors.NewNotFittedError("RFE", "Transform")
	}
	return Apply(X, r.ranking)
}

// Ranking returns the ranking from the last Fit, or nil.
func (r *RFE) Ranking() *FeatureRanking { return r.ranking }

// CloneSelector returns an unfitted RFE with a cloned estimator.
func (r *RFE) CloneSelector() Selector {
	return &RFE{
		Estimator:         r.Estimator.Clone().(model.Cloner),
		NFeaturesToSelect: r.NFeaturesToSelect,
		Step:              r.Step,
		logger:            r.logger,
	}
}
