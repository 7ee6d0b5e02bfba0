package metrics

import (
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/ensemblecv/pkg/errors"
)

// ROC holds the points of a receiver operating characteristic curve.
// Point i is the (FPR, TPR) pair when samples scoring above Thresholds[i]
// are predicted malignant. FPR is non-decreasing.
type ROC struct {
	FPR        []float64
	TPR        []float64
	Thresholds []float64
}

// AUC integrates TPR over FPR with the trapezoidal rule.
func (r *ROC) AUC() float64 {
	if len(r.FPR) < 2 {
		return 0.5
	}
	return integrate.Trapezoidal(r.FPR, r.TPR)
}

// DET holds the points of a detection error tradeoff curve: false alarms
// (FPR) against missed cancers (FNR = 1 - TPR).
type DET struct {
	FPR        []float64
	FNR        []float64
	Thresholds []float64
}

// ROCCurve sweeps the decision threshold over every distinct score.
// scores are positive-class probabilities (or any monotone score).
func ROCCurve(labels []int, scores []float64) (*ROC, error) {
	if len(labels) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "ROCCurve")
	}
	if len(scores) != len(labels) {
		return nil, errors.NewDimensionError("ROCCurve", len(labels), len(scores), 0)
	}
	if err := requireBothClasses("roc_curve", labels); err != nil {
		return nil, err
	}

	y := append([]float64(nil), scores...)
	classes := make([]bool, len(labels))
	for i, l := range labels {
		classes[i] = l == 1
	}
	stat.SortWeightedLabeled(y, classes, nil)
	tpr, fpr, thresh := stat.ROC(nil, y, classes, nil)
	return &ROC{FPR: fpr, TPR: tpr, Thresholds: thresh}, nil
}

// DETCurve derives the DET curve from the ROC sweep.
func DETCurve(labels []int, scores []float64) (*DET, error) {
	roc, err := ROCCurve(labels, scores)
	if err != nil {
		return nil, errors.Wrap(err, "DETCurve")
	}
	fnr := make([]float64, len(roc.TPR))
	for i, t := range roc.TPR {
		fnr[i] = 1 - t
	}
	return &DET{FPR: roc.FPR, FNR: fnr, Thresholds: roc.Thresholds}, nil
}

func requireBothClasses(metric string, labels []int) error {
	var pos, neg int
	for _, l := range labels {
		switch l {
		case 1:
			pos++
		case 0:
			neg++
		default:
			return errors.NewValidationError("y_true", "labels must be 0 or 1", l)
		}
	}
	if pos == 0 {
		return errors.NewUndefinedMetricError(metric, "no malignant samples in y_true")
	}
	if neg == 0 {
		return errors.NewUndefinedMetricError(metric, "no benign samples in y_true")
	}
	return nil
}
