// Package model defines the capability interfaces shared by every estimator,
// transformer and ensemble in ensemblecv.
//
// Capabilities are small interfaces checked with type assertions at
// construction time: an ensemble that needs probabilities asks for a
// ProbabilityEstimator, RFE asks for an ImportanceProvider, and anything that
// fits fresh copies in parallel asks for a Cloner.
package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit trains on X (n×p) and binary labels y (n×1).
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict returns an n×1 matrix of class labels.
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Estimator is the minimal supervised model.
type Estimator interface {
	Fitter
	Predictor
}

// ProbabilityEstimator can report class probabilities. PredictProba returns
// an n×2 matrix whose rows sum to 1; column k is P(class = k).
type ProbabilityEstimator interface {
	Estimator
	PredictProba(X mat.Matrix) (mat.Matrix, error)
}

// ImportanceProvider exposes per-feature importances after fitting, one
// value per input column, larger meaning more important.
type ImportanceProvider interface {
	FeatureImportances() ([]float64, error)
}

// ImportanceCapability lets an estimator whose importance availability
// depends on its configuration (e.g. SVC with a non-linear kernel) opt out.
type ImportanceCapability interface {
	SupportsImportance() bool
}

// Cloner returns a fresh, unfitted estimator with identical configuration.
// Clones share no mutable state with the receiver.
type Cloner interface {
	Estimator
	Clone() Estimator
}

// Named is implemented by estimators that report a display name.
type Named interface {
	Name() string
}

// SupportsImportance reports whether e can produce feature importances in
// its current configuration.
func SupportsImportance(e interface{}) bool {
	if _, ok := e.(ImportanceProvider); !ok {
		return false
	}
	if c, ok := e.(ImportanceCapability); ok {
		return c.SupportsImportance()
	}
	return true
}

// SupportsProba reports whether e implements PredictProba.
func SupportsProba(e interface{}) bool {
	_, ok := e.(ProbabilityEstimator)
	return ok
}

// NameOf returns e's display name, falling back to its dynamic type.
func NameOf(e interface{}) string {
	if n, ok := e.(Named); ok {
		return n.Name()
	}
	return typeName(e)
}
