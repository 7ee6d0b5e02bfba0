package tree

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/ensemblecv/pkg/errors"
)

// separable returns 8 rows where column 0 alone decides the label and
// column 1 is uninformative.
func separable() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(8, 2, []float64{
		0.1, 5,
		0.4, 1,
		0.2, 3,
		0.3, 7,
		2.1, 5,
		2.4, 1,
		2.2, 3,
		2.3, 7,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1})
	return X, y
}

// checkerboard needs several levels of splits to be fitted exactly.
func checkerboard() (*mat.Dense, *mat.Dense) {
	var xs, ys []float64
	for i := 0; i < 8; i++ {
		for j := 0; j < 8; j++ {
			xs = append(xs, float64(i), float64(j))
			ys = append(ys, float64((i/2+j/2)%2))
		}
	}
	return mat.NewDense(64, 2, xs), mat.NewDense(64, 1, ys)
}

func TestDecisionTree_ProbaIsTwoColumns(t *testing.T) {
	X, y := separable()
	dt := NewDecisionTreeClassifier(WithMaxDepth(4))
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	proba, err := dt.PredictProba(X)
	if err != nil {
		t.Fatalf("PredictProba failed: %v", err)
	}
	rows, cols := proba.Dims()
	if rows != 8 || cols != 2 {
		t.Fatalf("proba dims = %dx%d, want 8x2", rows, cols)
	}
	pred, err := dt.Predict(X)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	for i := 0; i < rows; i++ {
		if sum := proba.At(i, 0) + proba.At(i, 1); math.Abs(sum-1) > 1e-12 {
			t.Errorf("row %d: proba sums to %v", i, sum)
		}
		if pred.At(i, 0) != y.At(i, 0) {
			t.Errorf("row %d: predicted %v, want %v", i, pred.At(i, 0), y.At(i, 0))
		}
	}
}

func TestDecisionTree_ImportancesFavorInformativeFeature(t *testing.T) {
	X, y := separable()
	for _, criterion := range []string{"gini", "entropy"} {
		t.Run(criterion, func(t *testing.T) {
			dt := NewDecisionTreeClassifier(WithCriterion(criterion))
			if err := dt.Fit(X, y); err != nil {
				t.Fatalf("Fit failed: %v", err)
			}
			imp, err := dt.FeatureImportances()
			if err != nil {
				t.Fatalf("FeatureImportances failed: %v", err)
			}
			if len(imp) != 2 {
				t.Fatalf("got %d importances, want 2", len(imp))
			}
			// One split on column 0 separates the classes.
			if imp[0] != 1 || imp[1] != 0 {
				t.Errorf("importances = %v, want [1 0]", imp)
			}
			if dt.Depth() != 1 || dt.NLeaves() != 2 {
				t.Errorf("depth=%d leaves=%d, want 1 and 2", dt.Depth(), dt.NLeaves())
			}
		})
	}
}

func TestDecisionTree_MaxDepthGrid(t *testing.T) {
	X, y := checkerboard()
	prevLeaves := 0
	for _, depth := range []int{2, 4, 6} {
		dt := NewDecisionTreeClassifier()
		if err := dt.SetParams(map[string]interface{}{"max_depth": depth}); err != nil {
			t.Fatalf("SetParams(max_depth=%d) failed: %v", depth, err)
		}
		if err := dt.Fit(X, y); err != nil {
			t.Fatalf("Fit failed: %v", err)
		}
		if dt.Depth() > depth {
			t.Errorf("max_depth=%d: tree grew to depth %d", depth, dt.Depth())
		}
		if dt.NLeaves() < prevLeaves {
			t.Errorf("max_depth=%d: %d leaves, fewer than the shallower tree's %d", depth, dt.NLeaves(), prevLeaves)
		}
		prevLeaves = dt.NLeaves()
	}
}

func TestDecisionTree_SingleClassSample(t *testing.T) {
	X, _ := separable()
	y := mat.NewDense(8, 1, nil)
	dt := NewDecisionTreeClassifier()
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if dt.NLeaves() != 1 || dt.Depth() != 0 {
		t.Errorf("depth=%d leaves=%d, want a single root leaf", dt.Depth(), dt.NLeaves())
	}
	proba, err := dt.PredictProba(X)
	if err != nil {
		t.Fatalf("PredictProba failed: %v", err)
	}
	if proba.At(0, 0) != 1 || proba.At(0, 1) != 0 {
		t.Errorf("proba = [%v %v], want [1 0]", proba.At(0, 0), proba.At(0, 1))
	}
	imp, _ := dt.FeatureImportances()
	for j, v := range imp {
		if v != 0 {
			t.Errorf("importance[%d] = %v, want 0", j, v)
		}
	}
}

func TestDecisionTree_RejectsNonBinaryLabels(t *testing.T) {
	X, _ := separable()
	y := mat.NewDense(8, 1, []float64{0, 0, 1, 1, 2, 2, 0, 1})
	if err := NewDecisionTreeClassifier().Fit(X, y); err == nil {
		t.Fatal("expected an error for label 2")
	}
}

func TestDecisionTree_NotFitted(t *testing.T) {
	X, _ := separable()
	dt := NewDecisionTreeClassifier()
	var notFitted *errors.NotFittedError
	if _, err := dt.PredictProba(X); !errors.As(err, &notFitted) {
		t.Errorf("PredictProba before Fit: got %v, want NotFittedError", err)
	}
	if _, err := dt.FeatureImportances(); !errors.As(err, &notFitted) {
		t.Errorf("FeatureImportances before Fit: got %v, want NotFittedError", err)
	}
}

func TestDecisionTree_InvalidConfiguration(t *testing.T) {
	X, y := separable()
	tests := []struct {
		name string
		opt  Option
	}{
		{"criterion", WithCriterion("log_loss")},
		{"zero depth", WithMaxDepth(0)},
		{"min samples split", WithMinSamplesSplit(1)},
		{"min samples leaf", WithMinSamplesLeaf(0)},
		{"max features", WithMaxFeatures(-1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewDecisionTreeClassifier(tt.opt).Fit(X, y)
			if !errors.IsInvalidConfiguration(err) {
				t.Errorf("got %v, want InvalidConfigurationError", err)
			}
		})
	}
}

func TestDecisionTree_SetParamsKeepsValueOnTypeMismatch(t *testing.T) {
	dt := NewDecisionTreeClassifier(WithMaxDepth(4))
	err := dt.SetParams(map[string]interface{}{"max_depth": 3.5})
	if !errors.IsInvalidConfiguration(err) {
		t.Fatalf("got %v, want InvalidConfigurationError", err)
	}
	if got := dt.GetParams()["max_depth"]; got != 4 {
		t.Errorf("max_depth = %v after rejected update, want 4", got)
	}
	if err := dt.SetParams(map[string]interface{}{"splitter": "best"}); !errors.IsInvalidConfiguration(err) {
		t.Errorf("unknown key: got %v, want InvalidConfigurationError", err)
	}
}

func TestDecisionTree_CloneIsUnfitted(t *testing.T) {
	X, y := separable()
	dt := NewDecisionTreeClassifier(WithMaxDepth(3), WithCriterion("entropy"), WithRandomState(9))
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	c := dt.Clone().(*DecisionTreeClassifier)
	if c.state.IsFitted() {
		t.Error("clone should be unfitted")
	}
	for key, want := range dt.GetParams() {
		if got := c.GetParams()[key]; got != want {
			t.Errorf("%s = %v, want %v", key, got, want)
		}
	}
}

func TestDecisionTree_MaxFeaturesIsReproducible(t *testing.T) {
	X, y := checkerboard()
	fit := func() []float64 {
		dt := NewDecisionTreeClassifier(WithMaxFeatures(1), WithRandomState(3))
		if err := dt.Fit(X, y); err != nil {
			t.Fatalf("Fit failed: %v", err)
		}
		imp, _ := dt.FeatureImportances()
		return imp
	}
	a, b := fit(), fit()
	for j := range a {
		if a[j] != b[j] {
			t.Fatalf("importances differ across identical seeds: %v vs %v", a, b)
		}
	}
}
