package neighbors

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/ensemblecv/pkg/errors"
)

func clusters() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(8, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		1, 1,
		5, 5,
		5, 6,
		6, 5,
		6, 6,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1})
	return X, y
}

func TestKNeighborsClassifier_FitPredict(t *testing.T) {
	X, y := clusters()
	knn := NewKNeighborsClassifier(WithNNeighbors(3))
	if err := knn.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	XTest := mat.NewDense(2, 2, []float64{0.5, 0.5, 5.5, 5.5})
	pred, err := knn.Predict(XTest)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if pred.At(0, 0) != 0 || pred.At(1, 0) != 1 {
		t.Errorf("unexpected predictions: %v", mat.Formatted(pred))
	}
}

func TestKNeighborsClassifier_PredictProba(t *testing.T) {
	X, y := clusters()
	tests := []struct {
		name   string
		opts   []Option
		query  []float64
		wantP1 float64
	}{
		{"uniform k=4 inside class 0", []Option{WithNNeighbors(4)}, []float64{0, 0}, 0},
		{"uniform k=8 sees everything", []Option{WithNNeighbors(8)}, []float64{0, 0}, 0.5},
		{"manhattan k=4", []Option{WithNNeighbors(4), WithMetric("manhattan")}, []float64{6, 6}, 1},
		{"distance weights exact match", []Option{WithNNeighbors(8), WithWeights("distance")}, []float64{5, 5}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			knn := NewKNeighborsClassifier(tt.opts...)
			if err := knn.Fit(X, y); err != nil {
				t.Fatalf("Fit failed: %v", err)
			}
			proba, err := knn.PredictProba(mat.NewDense(1, 2, tt.query))
			if err != nil {
				t.Fatalf("PredictProba failed: %v", err)
			}
			if math.Abs(proba.At(0, 1)-tt.wantP1) > 1e-12 {
				t.Errorf("P(1) = %v, want %v", proba.At(0, 1), tt.wantP1)
			}
			if math.Abs(proba.At(0, 0)+proba.At(0, 1)-1) > 1e-12 {
				t.Errorf("row does not sum to 1")
			}
		})
	}
}

func TestKNeighborsClassifier_Validation(t *testing.T) {
	X, y := clusters()

	knn := NewKNeighborsClassifier(WithNNeighbors(9))
	if err := knn.Fit(X, y); !errors.IsInvalidConfiguration(err) {
		t.Errorf("expected InvalidConfiguration for k > n, got %v", err)
	}

	knn = NewKNeighborsClassifier(WithWeights("cosine"))
	if err := knn.Fit(X, y); !errors.IsInvalidConfiguration(err) {
		t.Errorf("expected InvalidConfiguration for unknown weights, got %v", err)
	}

	if _, err := NewKNeighborsClassifier().Predict(X); err == nil {
		t.Error("expected error when predicting before Fit")
	}
}

func TestKNeighborsClassifier_CloneAndParams(t *testing.T) {
	knn := NewKNeighborsClassifier()
	if err := knn.SetParams(map[string]interface{}{"n_neighbors": 14}); err != nil {
		t.Fatalf("SetParams failed: %v", err)
	}
	clone := knn.Clone().(*KNeighborsClassifier)
	if clone.nNeighbors != 14 {
		t.Errorf("clone lost n_neighbors: %d", clone.nNeighbors)
	}
	if clone.state.IsFitted() {
		t.Error("clone must be unfitted")
	}
	if err := knn.SetParams(map[string]interface{}{"leaf_size": 30}); err == nil {
		t.Error("expected error for unknown parameter")
	}
}
