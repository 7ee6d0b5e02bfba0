// Package linear_model provides the binary logistic regression member of
// the voting ensemble.
package linear_model

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/ensemblecv/core/model"
	"github.com/YuminosukeSato/ensemblecv/pkg/errors"
	"github.com/YuminosukeSato/ensemblecv/pkg/log"
)

// LogisticRegression is an L2-regularized binary logistic regression fitted
// by full-batch gradient descent with a decaying step size.
type LogisticRegression struct {
	state *model.StateManager

	C            float64 // inverse regularization strength
	fitIntercept bool
	maxIter      int
	tol          float64
	randomState  uint64

	coef_      []float64
	intercept_ float64
	nIter_     int

	logger log.Logger
}

// LogisticRegressionOption is a functional option for LogisticRegression.
type LogisticRegressionOption func(*LogisticRegression)

// NewLogisticRegression creates a LogisticRegression with C=1, max_iter=300
// and tol=1e-4.
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		state:        model.NewStateManager(),
		C:            1.0,
		fitIntercept: true,
		maxIter:      300,
		tol:          1e-4,
		randomState:  1,
	}
	for _, opt := range opts {
		opt(lr)
	}
	lr.logger = log.GetLoggerWithName("LogisticRegression")
	return lr
}

// WithLRC sets the inverse regularization strength.
func WithLRC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.C = c }
}

// WithLogisticFitIntercept sets whether to fit an intercept.
func WithLogisticFitIntercept(fit bool) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.fitIntercept = fit }
}

// WithLRMaxIter sets the maximum number of gradient steps.
func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.maxIter = maxIter }
}

// WithLRTol sets the gradient tolerance for stopping.
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.tol = tol }
}

// WithLRRandomState seeds the weight initialization.
func WithLRRandomState(seed uint64) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.randomState = seed }
}

func (lr *LogisticRegression) validate() error {
	if lr.C <= 0 {
		return errors.NewInvalidConfigurationError("LogisticRegression", "C", "must be positive", lr.C)
	}
	if lr.maxIter < 1 {
		return errors.NewInvalidConfigurationError("LogisticRegression", "max_iter", "must be at least 1", lr.maxIter)
	}
	return nil
}

// Fit trains the model on X and binary labels y.
func (lr *LogisticRegression) Fit(X, y mat.Matrix) error {
	if err := lr.validate(); err != nil {
		return err
	}
	nSamples, nFeatures, labels, err := model.CheckXY("LogisticRegression.Fit", X, y)
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewPCG(lr.randomState, 0x5eed))
	w := make([]float64, nFeatures)
	for j := range w {
		w[j] = rng.NormFloat64() * 0.01
	}
	b := 0.0
	target := make([]float64, nSamples)
	for i, l := range labels {
		target[i] = float64(l)
	}

	lambda := 1.0 / (lr.C * float64(nSamples))
	wVec := mat.NewVecDense(nFeatures, w)
	z := mat.NewVecDense(nSamples, nil)
	residual := make([]float64, nSamples)
	gradVec := mat.NewVecDense(nFeatures, nil)
	resVec := mat.NewVecDense(nSamples, residual)

	converged := false
	for iter := 0; iter < lr.maxIter; iter++ {
		z.MulVec(X, wVec)
		for i := 0; i < nSamples; i++ {
			residual[i] = errors.Sigmoid(z.AtVec(i)+b) - target[i]
		}
		gradVec.MulVec(X.T(), resVec)
		grad := gradVec.RawVector().Data
		floats.Scale(1/float64(nSamples), grad)
		floats.AddScaled(grad, lambda, w)
		gradB := floats.Sum(residual) / float64(nSamples)

		step := 1.0 / (1.0 + 0.1*float64(iter))
		floats.AddScaled(w, -step, grad)
		if lr.fitIntercept {
			b -= step * gradB
		}
		lr.nIter_ = iter + 1

		maxGrad := math.Max(math.Abs(gradB), math.Max(floats.Max(grad), -floats.Min(grad)))
		if maxGrad < lr.tol {
			converged = true
			break
		}
	}
	if err := errors.CheckNumericalStability("LogisticRegression.Fit", w, lr.nIter_); err != nil {
		return err
	}
	if !converged {
		errors.Warn(errors.NewConvergenceWarning("LogisticRegression", lr.nIter_, ""))
	}

	lr.coef_ = w
	lr.intercept_ = b
	lr.state.SetDimensions(nFeatures, nSamples)
	lr.state.SetFitted()
	lr.logger.Debug("fit complete",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, nSamples,
		log.FeaturesKey, nFeatures,
		log.IterationKey, lr.nIter_,
	)
	return nil
}

func (lr *LogisticRegression) decision(X mat.Matrix, method string) (*mat.VecDense, error) {
	if err := lr.state.RequireFitted("LogisticRegression", method); err != nil {
		return nil, err
	}
	n, c := X.Dims()
	if err := lr.state.CheckFeatures("LogisticRegression."+method, c); err != nil {
		return nil, err
	}
	z := mat.NewVecDense(n, nil)
	z.MulVec(X, mat.NewVecDense(c, lr.coef_))
	for i := 0; i < n; i++ {
		z.SetVec(i, z.AtVec(i)+lr.intercept_)
	}
	return z, nil
}

// PredictProba returns an n×2 matrix of [P(benign), P(malignant)].
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	z, err := lr.decision(X, "PredictProba")
	if err != nil {
		return nil, err
	}
	n := z.Len()
	proba := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		p := errors.Sigmoid(z.AtVec(i))
		proba.Set(i, 0, 1-p)
		proba.Set(i, 1, p)
	}
	return proba, nil
}

// Predict returns class labels (threshold 0.5 on P(malignant)).
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	z, err := lr.decision(X, "Predict")
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(z.Len(), 1, nil)
	for i := 0; i < z.Len(); i++ {
		if z.AtVec(i) > 0 {
			out.Set(i, 0, 1)
		}
	}
	return out, nil
}

// Score returns the mean accuracy on X, y, or 0 when prediction fails.
func (lr *LogisticRegression) Score(X, y mat.Matrix) float64 {
	pred, err := lr.Predict(X)
	if err != nil {
		return 0
	}
	n, _ := y.Dims()
	correct := 0
	for i := 0; i < n; i++ {
		if pred.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(n)
}

// FeatureImportances returns |coef|, meaningful on standardized inputs.
func (lr *LogisticRegression) FeatureImportances() ([]float64, error) {
	if err := lr.state.RequireFitted("LogisticRegression", "FeatureImportances"); err != nil {
		return nil, err
	}
	imp := make([]float64, len(lr.coef_))
	for j, c := range lr.coef_ {
		imp[j] = math.Abs(c)
	}
	return imp, nil
}

// Coef returns a copy of the fitted coefficients.
func (lr *LogisticRegression) Coef() []float64 { return append([]float64(nil), lr.coef_...) }

// Intercept returns the fitted intercept.
func (lr *LogisticRegression) Intercept() float64 { return lr.intercept_ }

// NIter returns the number of gradient steps taken.
func (lr *LogisticRegression) NIter() int { return lr.nIter_ }

// Clone returns an unfitted copy with the same hyperparameters.
func (lr *LogisticRegression) Clone() model.Estimator {
	return NewLogisticRegression(
		WithLRC(lr.C),
		WithLogisticFitIntercept(lr.fitIntercept),
		WithLRMaxIter(lr.maxIter),
		WithLRTol(lr.tol),
		WithLRRandomState(lr.randomState),
	)
}

// Name implements model.Named.
func (lr *LogisticRegression) Name() string { return "LogisticRegression" }

// GetParams returns the hyperparameters.
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"C":             lr.C,
		"fit_intercept": lr.fitIntercept,
		"max_iter":      lr.maxIter,
		"tol":           lr.tol,
		"random_state":  lr.randomState,
	}
}

// SetParams updates hyperparameters and resets the fitted state.
func (lr *LogisticRegression) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var ok bool
		switch key {
		case "C":
			ok = model.AssignParam(&lr.C, value)
		case "fit_intercept":
			ok = model.AssignParam(&lr.fitIntercept, value)
		case "max_iter":
			ok = model.AssignParam(&lr.maxIter, value)
		case "tol":
			ok = model.AssignParam(&lr.tol, value)
		case "random_state":
			ok = model.AssignParam(&lr.randomState, value)
		default:
			return errors.NewInvalidConfigurationError("LogisticRegression", key, "unknown parameter", value)
		}
		if !ok {
			return errors.NewInvalidConfigurationError("LogisticRegression", key, fmt.Sprintf("unexpected type %T", value), value)
		}
	}
	lr.state.Reset()
	return lr.validate()
}
