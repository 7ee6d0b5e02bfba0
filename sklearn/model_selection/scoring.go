package model_selection

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/ensemblecv/core/model"
	"github.com/YuminosukeSato/ensemblecv/metrics"
	"github.com/YuminosukeSato/ensemblecv/pkg/errors"
)

// Scorer evaluates a fitted estimator on labelled data; larger is better.
type Scorer struct {
	Name string
	// NeedsProba marks scorers that rank by P(class = 1).
	NeedsProba bool
	fn         func(yTrue, yPred []int, proba []float64) (float64, error)
}

var scorers = map[string]Scorer{
	"accuracy": {Name: "accuracy", fn: func(yTrue, yPred []int, _ []float64) (float64, error) {
		return metrics.AccuracyScore(yTrue, yPred)
	}},
	"f1": {Name: "f1", fn: func(yTrue, yPred []int, _ []float64) (float64, error) {
		return metrics.F1Score(yTrue, yPred)
	}},
	"precision": {Name: "precision", fn: func(yTrue, yPred []int, _ []float64) (float64, error) {
		return metrics.Precision(yTrue, yPred)
	}},
	"recall": {Name: "recall", fn: func(yTrue, yPred []int, _ []float64) (float64, error) {
		return metrics.Recall(yTrue, yPred)
	}},
	"roc_auc": {Name: "roc_auc", NeedsProba: true, fn: func(yTrue, _ []int, proba []float64) (float64, error) {
		return metrics.ROCAUC(yTrue, proba)
	}},
	// Negated so that larger is better, like every other scorer.
	"neg_log_loss": {Name: "neg_log_loss", NeedsProba: true, fn: func(yTrue, _ []int, proba []float64) (float64, error) {
		loss, err := metrics.BinaryLogLoss(yTrue, proba)
		return -loss, err
	}},
}

// GetScorer looks up a scorer by name.
func GetScorer(name string) (Scorer, error) {
	s, ok := scorers[name]
	if !ok {
		return Scorer{}, errors.NewInvalidConfigurationError("scoring", "name", "unknown scorer", name)
	}
	return s, nil
}

// ScorerNames lists the registered scorers in sorted order.
func ScorerNames() []string {
	names := make([]string, 0, len(scorers))
	for name := range scorers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Score predicts X with est and scores the result against yTrue.
func (s Scorer) Score(est model.Estimator, X mat.Matrix, yTrue []int) (float64, error) {
	pred, err := est.Predict(X)
	if err != nil {
		return 0, err
	}
	n, _ := pred.Dims()
	yPred := make([]int, n)
	for i := range yPred {
		yPred[i] = int(pred.At(i, 0))
	}

	var proba []float64
	if s.NeedsProba {
		pe, ok := est.(model.ProbabilityEstimator)
		if !ok {
			return 0, errors.NewIncompatibleMemberError("scorer "+s.Name, model.NameOf(est), "PredictProba")
		}
		p, err := pe.PredictProba(X)
		if err != nil {
			return 0, err
		}
		proba = mat.Col(nil, 1, p)
	}
	return s.fn(yTrue, yPred, proba)
}
