package metrics

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/YuminosukeSato/ensemblecv/pkg/errors"
)

func TestConfusionMatrixCells(t *testing.T) {
	yTrue := []int{1, 1, 1, 0, 0, 0, 0, 1}
	yPred := []int{1, 0, 1, 0, 1, 0, 0, 1}

	cm, err := NewConfusionMatrix(yTrue, yPred)
	if err != nil {
		t.Fatal(err)
	}
	want := ConfusionMatrix{TP: 3, TN: 3, FP: 1, FN: 1}
	if cm != want {
		t.Errorf("cells = %+v, want %+v", cm, want)
	}
	if cm.Accuracy() != 0.75 {
		t.Errorf("Accuracy = %v, want 0.75", cm.Accuracy())
	}
	f1, err := cm.F1()
	if err != nil || math.Abs(f1-0.75) > 1e-12 {
		t.Errorf("F1 = %v (%v), want 0.75", f1, err)
	}
}

func TestConfusionMatrixSumsToN(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	for trial := 0; trial < 50; trial++ {
		n := 1 + rng.IntN(200)
		yTrue := make([]int, n)
		yPred := make([]int, n)
		for i := range yTrue {
			yTrue[i] = rng.IntN(2)
			yPred[i] = rng.IntN(2)
		}
		cm, err := NewConfusionMatrix(yTrue, yPred)
		if err != nil {
			t.Fatal(err)
		}
		if cm.Total() != n {
			t.Fatalf("trial %d: cells sum to %d, want %d", trial, cm.Total(), n)
		}
	}
}

func TestUndefinedMetricWhenClassAbsent(t *testing.T) {
	tests := []struct {
		name  string
		yTrue []int
		yPred []int
	}{
		{name: "no malignant", yTrue: []int{0, 0, 0}, yPred: []int{0, 1, 0}},
		{name: "no benign", yTrue: []int{1, 1}, yPred: []int{1, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for metric, fn := range map[string]func([]int, []int) (float64, error){
				"precision": Precision,
				"recall":    Recall,
				"f1":        F1Score,
			} {
				_, err := fn(tt.yTrue, tt.yPred)
				var undefined *errors.UndefinedMetricError
				if !errors.As(err, &undefined) {
					t.Errorf("%s: expected UndefinedMetricError, got %v", metric, err)
				}
			}
			if _, err := AccuracyScore(tt.yTrue, tt.yPred); err != nil {
				t.Errorf("accuracy is defined for one class: %v", err)
			}
		})
	}
}

func TestPrecisionWithoutPositivePredictions(t *testing.T) {
	var warned bool
	errors.SetZerologWarnFunc(func(error) { warned = true })
	defer errors.SetZerologWarnFunc(nil)

	p, err := Precision([]int{0, 1, 0}, []int{0, 0, 0})
	if err != nil || p != 0 {
		t.Errorf("Precision = %v (%v), want 0", p, err)
	}
	if !warned {
		t.Error("expected an UndefinedMetricWarning")
	}
}

func TestROCAndDETCurves(t *testing.T) {
	labels := []int{0, 0, 1, 1}
	scores := []float64{0.1, 0.4, 0.35, 0.8}

	roc, err := ROCCurve(labels, scores)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(roc.AUC()-0.75) > 1e-12 {
		t.Errorf("AUC = %v, want 0.75", roc.AUC())
	}
	if len(roc.FPR) != len(roc.TPR) || len(roc.FPR) != 5 {
		t.Errorf("expected 5 points (4 distinct scores + 1), got %d", len(roc.FPR))
	}
	for i := 1; i < len(roc.FPR); i++ {
		if roc.FPR[i] < roc.FPR[i-1] {
			t.Fatalf("FPR must be non-decreasing: %v", roc.FPR)
		}
	}

	det, err := DETCurve(labels, scores)
	if err != nil {
		t.Fatal(err)
	}
	for i := range det.FNR {
		if math.Abs(det.FNR[i]+roc.TPR[i]-1) > 1e-12 {
			t.Errorf("FNR[%d] = %v, want 1-TPR", i, det.FNR[i])
		}
	}

	if _, err := ROCCurve([]int{1, 1}, []float64{0.2, 0.3}); err == nil {
		t.Error("ROC with one class should fail")
	}
}

func TestNewReport(t *testing.T) {
	yTrue := []int{0, 0, 1, 1, 1}
	yPred := []int{0, 1, 1, 1, 0}
	proba := []float64{0.1, 0.6, 0.9, 0.7, 0.4}

	r, err := NewReport("voting", yTrue, yPred, proba)
	if err != nil {
		t.Fatal(err)
	}
	if r.Confusion.Total() != 5 {
		t.Errorf("total = %d", r.Confusion.Total())
	}
	if len(r.PerClass) != 2 || r.PerClass[1].Support != 3 || r.PerClass[0].Support != 2 {
		t.Errorf("unexpected per-class rows: %+v", r.PerClass)
	}
	if r.ROC == nil || r.DET == nil {
		t.Fatal("curves should be computed when probabilities are given")
	}
	if r.String() == "" {
		t.Error("empty rendering")
	}

	if _, err := NewReport("degenerate", []int{0, 0}, []int{0, 1}, nil); err == nil {
		t.Error("expected UndefinedMetricError")
	}
}
