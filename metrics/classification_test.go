package metrics

import (
	"math"
	"testing"

	"github.com/YuminosukeSato/ensemblecv/pkg/errors"
)

func TestROCAUC(t *testing.T) {
	tests := []struct {
		name   string
		yTrue  []int
		scores []float64
		want   float64
	}{
		{
			name:   "perfect ranking",
			yTrue:  []int{0, 0, 0, 1, 1, 1},
			scores: []float64{0.1, 0.2, 0.3, 0.7, 0.8, 0.9},
			want:   1.0,
		},
		{
			name:   "inverted ranking",
			yTrue:  []int{0, 0, 0, 1, 1, 1},
			scores: []float64{0.9, 0.8, 0.7, 0.3, 0.2, 0.1},
			want:   0.0,
		},
		{
			name:   "constant scores",
			yTrue:  []int{0, 1, 0, 1},
			scores: []float64{0.5, 0.5, 0.5, 0.5},
			want:   0.5,
		},
		{
			name:   "one swapped pair",
			yTrue:  []int{0, 0, 1, 1},
			scores: []float64{0.1, 0.4, 0.35, 0.8},
			want:   0.75,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ROCAUC(tt.yTrue, tt.scores)
			if err != nil {
				t.Fatalf("ROCAUC failed: %v", err)
			}
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("ROCAUC = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestROCAUCSingleClassWarns(t *testing.T) {
	var warning error
	errors.SetZerologWarnFunc(func(w error) { warning = w })
	defer errors.SetZerologWarnFunc(nil)

	got, err := ROCAUC([]int{1, 1, 1}, []float64{0.2, 0.6, 0.9})
	if err != nil {
		t.Fatalf("ROCAUC failed: %v", err)
	}
	if got != 0.5 {
		t.Errorf("ROCAUC = %v, want 0.5", got)
	}
	var undefined *errors.UndefinedMetricWarning
	if !errors.As(warning, &undefined) {
		t.Errorf("expected an UndefinedMetricWarning, got %v", warning)
	}
}

func TestBinaryLogLoss(t *testing.T) {
	tests := []struct {
		name  string
		yTrue []int
		proba []float64
		want  float64
	}{
		{
			name:  "uninformative",
			yTrue: []int{0, 1, 1, 0},
			proba: []float64{0.5, 0.5, 0.5, 0.5},
			want:  math.Ln2,
		},
		{
			name:  "holdout sample",
			yTrue: []int{0, 0, 0, 1, 1, 1},
			proba: []float64{0.1, 0.2, 0.6, 0.7, 0.8, 0.9},
			want:  -(math.Log(0.9) + math.Log(0.8) + math.Log(0.4) + math.Log(0.7) + math.Log(0.8) + math.Log(0.9)) / 6,
		},
		{
			name:  "single class is defined",
			yTrue: []int{1, 1},
			proba: []float64{0.8, 0.8},
			want:  -math.Log(0.8),
		},
		{
			name:  "confident mistake is clipped",
			yTrue: []int{1},
			proba: []float64{0},
			want:  -math.Log(1e-15),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BinaryLogLoss(tt.yTrue, tt.proba)
			if err != nil {
				t.Fatalf("BinaryLogLoss failed: %v", err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("BinaryLogLoss = %v, want %v", got, tt.want)
			}
		})
	}

	perfect, err := BinaryLogLoss([]int{0, 1}, []float64{0, 1})
	if err != nil || perfect > 1e-12 {
		t.Errorf("perfect probabilities: loss = %v (%v), want ~0", perfect, err)
	}
}

func TestScoreInputValidation(t *testing.T) {
	tests := []struct {
		name   string
		yTrue  []int
		scores []float64
	}{
		{name: "empty", yTrue: nil, scores: nil},
		{name: "length mismatch", yTrue: []int{0, 1}, scores: []float64{0.3}},
		{name: "non-binary label", yTrue: []int{0, 2}, scores: []float64{0.3, 0.4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ROCAUC(tt.yTrue, tt.scores); err == nil {
				t.Error("ROCAUC: expected an error")
			}
			if _, err := BinaryLogLoss(tt.yTrue, tt.scores); err == nil {
				t.Error("BinaryLogLoss: expected an error")
			}
		})
	}
	if _, err := BinaryLogLoss([]int{0}, []float64{math.NaN()}); err == nil {
		t.Error("BinaryLogLoss: expected an error for a NaN probability")
	}
}

func TestReportCarriesLogLoss(t *testing.T) {
	yTrue := []int{0, 0, 1, 1}
	proba := []float64{0.2, 0.4, 0.35, 0.9}
	r, err := NewReport("boosting", yTrue, []int{0, 0, 0, 1}, proba)
	if err != nil {
		t.Fatal(err)
	}
	want, _ := BinaryLogLoss(yTrue, proba)
	if r.LogLoss != want {
		t.Errorf("LogLoss = %v, want %v", r.LogLoss, want)
	}
	if math.Abs(r.AUC-0.75) > 1e-12 {
		t.Errorf("AUC = %v, want 0.75", r.AUC)
	}

	noProba, err := NewReport("hard", yTrue, []int{0, 0, 0, 1}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if noProba.LogLoss != 0 || noProba.ROC != nil {
		t.Errorf("report without probabilities should have no curve or log loss: %+v", noProba)
	}
}
