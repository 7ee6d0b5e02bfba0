package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		kind    string
		err     error
		wantMsg string
	}{
		{
			name:    "with original error",
			op:      "Fit",
			kind:    "invalid input",
			err:     fmt.Errorf("test error"),
			wantMsg: "ensemblecv: Fit: invalid input: test error",
		},
		{
			name:    "without original error",
			op:      "Predict",
			kind:    "not fitted",
			err:     nil,
			wantMsg: "ensemblecv: Predict: not fitted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)

			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}

			// スタックトレースの存在確認
			formatted := fmt.Sprintf("%+v", err)
			if !strings.Contains(formatted, "errors_test.go") {
				t.Error("Expected stack trace to contain test file name")
			}

			var modelErr *ModelError
			if !As(err, &modelErr) {
				t.Error("Error should be castable to *ModelError")
			}
		})
	}
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("Predict", 10, 8, 1)

	want := "ensemblecv: Predict: dimension mismatch on axis 1 (features). Expected 10, got 8"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var dimErr *DimensionError
	if !As(err, &dimErr) {
		t.Error("Error should be castable to *DimensionError")
	}
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("SVC", "Predict")

	want := "ensemblecv: SVC: this model is not fitted yet. Call Fit() before using Predict()"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}
}

func TestStudyErrorKinds(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
		check   func(error) bool
	}{
		{
			name:    "invalid configuration",
			err:     NewInvalidConfigurationError("RFE", "n_features_to_select", "must be in [1, 4]", 0),
			wantMsg: "ensemblecv: RFE: invalid configuration for 'n_features_to_select': must be in [1, 4] (got: 0)",
			check:   IsInvalidConfiguration,
		},
		{
			name:    "degenerate fold with params",
			err:     NewDegenerateFoldError(3, "train", 1, "max_depth=2"),
			wantMsg: "ensemblecv: fold 3: train part has no samples of class 1 (params: max_depth=2)",
			check:   IsDegenerateFold,
		},
		{
			name:    "incompatible member",
			err:     NewIncompatibleMemberError("VotingClassifier", "svc", "PredictProba"),
			wantMsg: "ensemblecv: VotingClassifier: member 'svc' does not support PredictProba",
			check: func(err error) bool {
				var target *IncompatibleMemberError
				return As(err, &target)
			},
		},
		{
			name:    "undefined metric",
			err:     NewUndefinedMetricError("f1", "no positive samples in y_true"),
			wantMsg: "ensemblecv: metric 'f1' is undefined: no positive samples in y_true",
			check: func(err error) bool {
				var target *UndefinedMetricError
				return As(err, &target)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", tt.err.Error(), tt.wantMsg)
			}
			if !tt.check(tt.err) {
				t.Errorf("kind check failed for %T", tt.err)
			}
			wrapped := Wrapf(tt.err, "fold %d", 1)
			if !tt.check(wrapped) {
				t.Error("kind should survive wrapping")
			}
		})
	}
}

func TestEmptyGridError(t *testing.T) {
	err := NewEmptyGridError("GridSearch")

	if !Is(err, ErrEmptyGrid) {
		t.Error("expected error to match ErrEmptyGrid")
	}
	if !IsInvalidConfiguration(err) {
		t.Error("empty grid should be an InvalidConfigurationError")
	}
	if IsDegenerateFold(err) {
		t.Error("empty grid must not be a DegenerateFoldError")
	}
}

func TestWarnRoutesToRegisteredFunc(t *testing.T) {
	var got []error
	SetZerologWarnFunc(func(w error) { got = append(got, w) })
	defer SetZerologWarnFunc(nil)

	Warn(NewConvergenceWarning("LogisticRegression", 100, ""))
	Warn(NewUndefinedMetricWarning("roc_auc", "only one class present", 0.5))

	if len(got) != 2 {
		t.Fatalf("expected 2 warnings, got %d", len(got))
	}
	if !strings.Contains(got[0].Error(), "failed to converge after 100 iterations") {
		t.Errorf("unexpected warning text: %s", got[0])
	}
}

func TestNumericalHelpers(t *testing.T) {
	if err := CheckNumericalStability("loss", []float64{0.1, 0.2}, 0); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	err := CheckScalar("loss", 1.0/zero(), 7)
	var numErr *NumericalInstabilityError
	if !As(err, &numErr) || numErr.Iteration != 7 {
		t.Errorf("expected NumericalInstabilityError at iteration 7, got %v", err)
	}
	if c := ClipValue(1.5, 0, 1); c != 1 {
		t.Errorf("ClipValue(1.5, 0, 1) = %v, want 1", c)
	}
	if s := Sigmoid(0); s != 0.5 {
		t.Errorf("Sigmoid(0) = %v, want 0.5", s)
	}
	if s := Sigmoid(-1000); s < 0 || s > 1e-300 {
		t.Errorf("Sigmoid(-1000) = %v, want ~0", s)
	}
	if s := Sigmoid(1000); s != 1 {
		t.Errorf("Sigmoid(1000) = %v, want 1", s)
	}
}

func zero() float64 { return 0 }
