// Package metrics computes classification metrics for binary labels where
// 1 (malignant) is the positive class.
package metrics

import (
	"math"

	"github.com/YuminosukeSato/ensemblecv/pkg/errors"
)

// probaEps bounds probabilities away from 0 and 1 before taking logs.
const probaEps = 1e-15

func checkScores(op string, yTrue []int, scores []float64) error {
	if len(yTrue) == 0 {
		return errors.Wrap(errors.ErrEmptyData, op)
	}
	if len(scores) != len(yTrue) {
		return errors.NewDimensionError(op, len(yTrue), len(scores), 0)
	}
	for _, l := range yTrue {
		if l != 0 && l != 1 {
			return errors.NewValidationError("y_true", op+": labels must be 0 or 1", l)
		}
	}
	return nil
}

// BinaryLogLoss is the mean negative log-likelihood of the malignant-class
// probabilities, clipped to [1e-15, 1-1e-15]. It is defined with a single
// class present.
func BinaryLogLoss(yTrue []int, proba []float64) (float64, error) {
	if err := checkScores("BinaryLogLoss", yTrue, proba); err != nil {
		return 0, err
	}
	loss := 0.0
	for i, l := range yTrue {
		p := proba[i]
		if math.IsNaN(p) {
			return 0, errors.NewValidationError("proba", "BinaryLogLoss: probability is NaN", i)
		}
		p = errors.ClipValue(p, probaEps, 1-probaEps)
		if l == 1 {
			loss -= math.Log(p)
		} else {
			loss -= math.Log(1 - p)
		}
	}
	return loss / float64(len(yTrue)), nil
}

// ROCAUC returns the area under the ROC curve of scores against yTrue.
// With a single class present the area is undefined; 0.5 is returned and
// an UndefinedMetricWarning is emitted.
func ROCAUC(yTrue []int, scores []float64) (float64, error) {
	if err := checkScores("ROCAUC", yTrue, scores); err != nil {
		return 0, err
	}
	curve, err := ROCCurve(yTrue, scores)
	if err != nil {
		var undefined *errors.UndefinedMetricError
		if errors.As(err, &undefined) {
			errors.Warn(errors.NewUndefinedMetricWarning("roc_auc", undefined.Condition, 0.5))
			return 0.5, nil
		}
		return 0, err
	}
	return curve.AUC(), nil
}
