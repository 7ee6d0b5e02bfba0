package experiment

import (
	"math"

	"github.com/YuminosukeSato/ensemblecv/core/model"
	"github.com/YuminosukeSato/ensemblecv/pkg/errors"
	"github.com/YuminosukeSato/ensemblecv/sklearn/ensemble"
	"github.com/YuminosukeSato/ensemblecv/sklearn/linear_model"
	"github.com/YuminosukeSato/ensemblecv/sklearn/neighbors"
	"github.com/YuminosukeSato/ensemblecv/sklearn/svm"
	"github.com/YuminosukeSato/ensemblecv/sklearn/tree"
)

// NewEnsemble builds the ensemble of the given family with its reference
// defaults and then applies params.
//
//	voting:   soft vote of lr (C=1), dt (max_depth=4) and knn (k=14)
//	bagging:  10 RBF SVCs (C=1, gamma=0.001), hard vote, seed 1
//	boosting: 100 depth-6 trees, learning_rate 0.02, seed 1
func NewEnsemble(kind Kind, params Params) (model.Cloner, error) {
	var est model.Cloner
	switch kind {
	case KindVoting:
		v, err := ensemble.NewVotingClassifier([]ensemble.NamedEstimator{
			{Name: "lr", Estimator: linear_model.NewLogisticRegression(linear_model.WithLRRandomState(1))},
			{Name: "dt", Estimator: tree.NewDecisionTreeClassifier(tree.WithMaxDepth(4), tree.WithRandomState(1))},
			{Name: "knn", Estimator: neighbors.NewKNeighborsClassifier(neighbors.WithNNeighbors(14))},
		}, ensemble.WithVoting(ensemble.VotingSoft))
		if err != nil {
			return nil, err
		}
		est = v
	case KindBagging:
		b, err := ensemble.NewBaggingClassifier(
			svm.NewSVC(svm.WithC(1), svm.WithGamma(0.001), svm.WithKernel(svm.KernelRBF)),
			ensemble.WithNEstimators(10),
			ensemble.WithBaggingSeed(1),
		)
		if err != nil {
			return nil, err
		}
		est = b
	case KindBoosting:
		est = ensemble.NewGradientBoostingClassifier(
			ensemble.WithLearningRate(0.02),
			ensemble.WithBoostingRounds(100),
			ensemble.WithBoostingMaxDepth(6),
			ensemble.WithMinChildWeight(1),
			ensemble.WithBoostingSeed(1),
		)
	default:
		return nil, errors.NewInvalidConfigurationError("experiment", "kind", "unknown ensemble kind", kind)
	}

	if len(params) == 0 {
		return est, nil
	}
	setter, ok := est.(model.ParameterSetter)
	if !ok {
		return nil, errors.NewIncompatibleMemberError(string(kind), model.NameOf(est), "SetParams")
	}
	var defaults map[string]interface{}
	if g, ok := est.(model.ParameterGetter); ok {
		defaults = g.GetParams()
	}
	conformed, err := conform(params, defaults)
	if err != nil {
		return nil, err
	}
	if err := setter.SetParams(conformed); err != nil {
		return nil, err
	}
	return est, nil
}

// conform converts numeric values to the type of the estimator's current
// value for the same key. Values decoded from YAML arrive as int or float64
// regardless of what the estimator stores.
func conform(params Params, defaults map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(params))
	for key, value := range params {
		cur, known := defaults[key]
		if !known {
			out[key] = value
			continue
		}
		converted, err := convertLike(cur, value)
		if err != nil {
			return nil, errors.NewInvalidConfigurationError("experiment", key, err.Error(), value)
		}
		out[key] = converted
	}
	return out, nil
}

func convertLike(cur, value interface{}) (interface{}, error) {
	switch cur.(type) {
	case float64:
		switch v := value.(type) {
		case int:
			return float64(v), nil
		case uint64:
			return float64(v), nil
		}
	case int:
		switch v := value.(type) {
		case float64:
			if v != math.Trunc(v) {
				return nil, errors.Newf("expected an integer, got %v", v)
			}
			return int(v), nil
		case uint64:
			return int(v), nil
		}
	case uint64:
		switch v := value.(type) {
		case int:
			if v < 0 {
				return nil, errors.Newf("expected a non-negative integer, got %d", v)
			}
			return uint64(v), nil
		case float64:
			if v < 0 || v != math.Trunc(v) {
				return nil, errors.Newf("expected a non-negative integer, got %v", v)
			}
			return uint64(v), nil
		}
	}
	return value, nil
}
