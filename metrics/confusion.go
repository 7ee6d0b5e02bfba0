package metrics

import (
	"fmt"

	"github.com/YuminosukeSato/ensemblecv/pkg/errors"
)

// ConfusionMatrix counts binary outcomes with malignant (1) as positive.
//
//	TP: predicted malignant, actually malignant
//	TN: predicted benign, actually benign
//	FP: predicted malignant, actually benign (false alarm)
//	FN: predicted benign, actually malignant (missed cancer)
type ConfusionMatrix struct {
	TP int `json:"tp" csv:"tp"`
	TN int `json:"tn" csv:"tn"`
	FP int `json:"fp" csv:"fp"`
	FN int `json:"fn" csv:"fn"`
}

// NewConfusionMatrix tallies predictions against true labels.
func NewConfusionMatrix(yTrue, yPred []int) (ConfusionMatrix, error) {
	var cm ConfusionMatrix
	if len(yTrue) == 0 {
		return cm, errors.Wrap(errors.ErrEmptyData, "NewConfusionMatrix")
	}
	if len(yPred) != len(yTrue) {
		return cm, errors.NewDimensionError("NewConfusionMatrix", len(yTrue), len(yPred), 0)
	}
	for i := range yTrue {
		switch {
		case yTrue[i] == 1 && yPred[i] == 1:
			cm.TP++
		case yTrue[i] == 0 && yPred[i] == 0:
			cm.TN++
		case yTrue[i] == 0 && yPred[i] == 1:
			cm.FP++
		case yTrue[i] == 1 && yPred[i] == 0:
			cm.FN++
		default:
			return ConfusionMatrix{}, errors.NewValidationError("labels", fmt.Sprintf("row %d: labels must be 0 or 1", i), [2]int{yTrue[i], yPred[i]})
		}
	}
	return cm, nil
}

// Total is the number of evaluated samples.
func (c ConfusionMatrix) Total() int { return c.TP + c.TN + c.FP + c.FN }

// Accuracy is (TP+TN)/N.
func (c ConfusionMatrix) Accuracy() float64 {
	return float64(c.TP+c.TN) / float64(c.Total())
}

func (c ConfusionMatrix) requireBothClasses(metric string) error {
	if c.TP+c.FN == 0 {
		return errors.NewUndefinedMetricError(metric, "no malignant samples in y_true")
	}
	if c.TN+c.FP == 0 {
		return errors.NewUndefinedMetricError(metric, "no benign samples in y_true")
	}
	return nil
}

// Precision is TP/(TP+FP). With no positive predictions it is 0 and an
// UndefinedMetricWarning is emitted.
func (c ConfusionMatrix) Precision() (float64, error) {
	if err := c.requireBothClasses("precision"); err != nil {
		return 0, err
	}
	if c.TP+c.FP == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("precision", "no predicted malignant samples", 0))
		return 0, nil
	}
	return float64(c.TP) / float64(c.TP+c.FP), nil
}

// Recall (sensitivity) is TP/(TP+FN).
func (c ConfusionMatrix) Recall() (float64, error) {
	if err := c.requireBothClasses("recall"); err != nil {
		return 0, err
	}
	return float64(c.TP) / float64(c.TP+c.FN), nil
}

// Specificity is TN/(TN+FP).
func (c ConfusionMatrix) Specificity() (float64, error) {
	if err := c.requireBothClasses("specificity"); err != nil {
		return 0, err
	}
	return float64(c.TN) / float64(c.TN+c.FP), nil
}

// F1 is the harmonic mean of precision and recall, 0 when both are 0.
func (c ConfusionMatrix) F1() (float64, error) {
	precision, err := c.Precision()
	if err != nil {
		return 0, errors.Wrap(err, "f1")
	}
	recall, err := c.Recall()
	if err != nil {
		return 0, errors.Wrap(err, "f1")
	}
	if precision+recall == 0 {
		return 0, nil
	}
	return 2 * precision * recall / (precision + recall), nil
}

func (c ConfusionMatrix) String() string {
	return fmt.Sprintf("[[TN=%d FP=%d] [FN=%d TP=%d]]", c.TN, c.FP, c.FN, c.TP)
}

// Precision tallies the labels and returns ConfusionMatrix.Precision.
func Precision(yTrue, yPred []int) (float64, error) {
	cm, err := NewConfusionMatrix(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return cm.Precision()
}

// Recall tallies the labels and returns ConfusionMatrix.Recall.
func Recall(yTrue, yPred []int) (float64, error) {
	cm, err := NewConfusionMatrix(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return cm.Recall()
}

// F1Score tallies the labels and returns ConfusionMatrix.F1. It is the
// default comparison metric of the study.
func F1Score(yTrue, yPred []int) (float64, error) {
	cm, err := NewConfusionMatrix(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return cm.F1()
}

// AccuracyScore tallies the labels and returns ConfusionMatrix.Accuracy;
// unlike the other scores it is defined when a class is absent.
func AccuracyScore(yTrue, yPred []int) (float64, error) {
	cm, err := NewConfusionMatrix(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return cm.Accuracy(), nil
}
