package metrics

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/YuminosukeSato/ensemblecv/pkg/errors"
)

// ClassNames maps label values to display names.
var ClassNames = [2]string{"benign", "malignant"}

// ClassReport is one row of a per-class precision/recall table.
type ClassReport struct {
	Class     string  `json:"class" csv:"class"`
	Precision float64 `json:"precision" csv:"precision"`
	Recall    float64 `json:"recall" csv:"recall"`
	F1        float64 `json:"f1" csv:"f1"`
	Support   int     `json:"support" csv:"support"`
}

// Report is the holdout evaluation of one fitted model.
type Report struct {
	Model     string          `json:"model"`
	Confusion ConfusionMatrix `json:"confusion"`
	Accuracy  float64         `json:"accuracy"`
	Precision float64         `json:"precision"`
	Recall    float64         `json:"recall"`
	F1        float64         `json:"f1"`
	AUC       float64         `json:"auc"`
	LogLoss   float64         `json:"log_loss"`
	ROC       *ROC            `json:"roc,omitempty"`
	DET       *DET            `json:"det,omitempty"`
	PerClass  []ClassReport   `json:"per_class"`
}

// NewReport evaluates predictions and, when proba is non-nil,
// positive-class probabilities. It fails with UndefinedMetricError when a
// class is absent from yTrue.
func NewReport(name string, yTrue, yPred []int, proba []float64) (*Report, error) {
	cm, err := NewConfusionMatrix(yTrue, yPred)
	if err != nil {
		return nil, errors.Wrapf(err, "report %s", name)
	}
	r := &Report{Model: name, Confusion: cm, Accuracy: cm.Accuracy()}

	if r.Precision, err = cm.Precision(); err != nil {
		return nil, errors.Wrapf(err, "report %s", name)
	}
	if r.Recall, err = cm.Recall(); err != nil {
		return nil, errors.Wrapf(err, "report %s", name)
	}
	if r.F1, err = cm.F1(); err != nil {
		return nil, errors.Wrapf(err, "report %s", name)
	}

	flipped := ConfusionMatrix{TP: cm.TN, TN: cm.TP, FP: cm.FN, FN: cm.FP}
	for class, c := range []ConfusionMatrix{flipped, cm} {
		row := ClassReport{Class: ClassNames[class], Support: c.TP + c.FN}
		row.Precision, _ = c.Precision()
		row.Recall, _ = c.Recall()
		row.F1, _ = c.F1()
		r.PerClass = append(r.PerClass, row)
	}

	if proba != nil {
		if r.ROC, err = ROCCurve(yTrue, proba); err != nil {
			return nil, errors.Wrapf(err, "report %s", name)
		}
		if r.DET, err = DETCurve(yTrue, proba); err != nil {
			return nil, errors.Wrapf(err, "report %s", name)
		}
		r.AUC = r.ROC.AUC()
		if r.LogLoss, err = BinaryLogLoss(yTrue, proba); err != nil {
			return nil, errors.Wrapf(err, "report %s", name)
		}
	}
	return r, nil
}

// String renders the report like a classification report table.
func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", r.Model)
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "\tprecision\trecall\tf1-score\tsupport\t")
	for _, row := range r.PerClass {
		fmt.Fprintf(w, "%s\t%.3f\t%.3f\t%.3f\t%d\t\n", row.Class, row.Precision, row.Recall, row.F1, row.Support)
	}
	fmt.Fprintf(w, "accuracy\t\t\t%.3f\t%d\t\n", r.Accuracy, r.Confusion.Total())
	w.Flush()
	fmt.Fprintf(&b, "confusion: %s\n", r.Confusion)
	if r.ROC != nil {
		fmt.Fprintf(&b, "roc_auc: %.4f  log_loss: %.4f\n", r.AUC, r.LogLoss)
	}
	return b.String()
}
