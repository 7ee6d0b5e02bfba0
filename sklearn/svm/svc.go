// Package svm implements a binary support vector classifier trained with
// sequential minimal optimization.
//
// The working pair is chosen by the maximal-violating-pair rule over a
// precomputed kernel matrix, which keeps training deterministic for a fixed
// training set. Probabilities come from a Platt sigmoid fitted on the
// training decision values.
package svm

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/ensemblecv/core/model"
	"github.com/YuminosukeSato/ensemblecv/core/parallel"
	"github.com/YuminosukeSato/ensemblecv/pkg/errors"
	"github.com/YuminosukeSato/ensemblecv/pkg/log"
)

// Kernel names accepted by WithKernel.
const (
	KernelRBF    = "rbf"
	KernelLinear = "linear"
)

// SVC is a soft-margin support vector classifier.
type SVC struct {
	state *model.StateManager

	C       float64
	kernel  string
	gamma   float64 // 0 means "scale": 1 / (p · Var(X))
	tol     float64
	maxIter int

	supportVectors *mat.Dense
	dualCoef       []float64 // α_s · y_s for each support vector
	intercept      float64
	gammaUsed      float64
	plattA         float64
	plattB         float64
	nIter          int

	logger log.Logger
}

// Option configures an SVC.
type Option func(*SVC)

// WithC sets the regularization parameter.
func WithC(c float64) Option { return func(s *SVC) { s.C = c } }

// WithKernel sets the kernel ("rbf" or "linear").
func WithKernel(k string) Option { return func(s *SVC) { s.kernel = k } }

// WithGamma sets the RBF width; 0 selects the "scale" heuristic.
func WithGamma(g float64) Option { return func(s *SVC) { s.gamma = g } }

// WithTol sets the KKT violation tolerance.
func WithTol(tol float64) Option { return func(s *SVC) { s.tol = tol } }

// WithMaxIter bounds the number of SMO steps.
func WithMaxIter(n int) Option { return func(s *SVC) { s.maxIter = n } }

// NewSVC creates an RBF SVC with C=1 and gamma="scale".
func NewSVC(opts ...Option) *SVC {
	s := &SVC{
		state:   model.NewStateManager(),
		C:       1.0,
		kernel:  KernelRBF,
		tol:     1e-3,
		maxIter: 100000,
		logger:  log.GetLoggerWithName("svm.SVC"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SVC) validate() error {
	switch {
	case !(s.C > 0):
		return errors.NewInvalidConfigurationError("SVC", "C", "must be positive", s.C)
	case s.kernel != KernelRBF && s.kernel != KernelLinear:
		return errors.NewInvalidConfigurationError("SVC", "kernel", "must be rbf or linear", s.kernel)
	case s.gamma < 0:
		return errors.NewInvalidConfigurationError("SVC", "gamma", "must be non-negative", s.gamma)
	case !(s.tol > 0):
		return errors.NewInvalidConfigurationError("SVC", "tol", "must be positive", s.tol)
	case s.maxIter < 1:
		return errors.NewInvalidConfigurationError("SVC", "max_iter", "must be at least 1", s.maxIter)
	}
	return nil
}

func (s *SVC) kernelValue(a, b []float64) float64 {
	if s.kernel == KernelLinear {
		return floats.Dot(a, b)
	}
	d := floats.Distance(a, b, 2)
	return math.Exp(-s.gammaUsed * d * d)
}

func scaleGamma(X *mat.Dense) float64 {
	v := stat.Variance(X.RawMatrix().Data, nil)
	_, p := X.Dims()
	if v <= 0 {
		return 1
	}
	return 1 / (float64(p) * v)
}

// Fit solves the dual problem and fits the Platt sigmoid.
func (s *SVC) Fit(X, y mat.Matrix) error {
	if err := s.validate(); err != nil {
		return err
	}
	n, p, labels, err := model.CheckXY("SVC.Fit", X, y)
	if err != nil {
		return err
	}
	if err := model.RequireBothClasses("SVC.Fit", labels); err != nil {
		return err
	}

	data := mat.DenseCopyOf(X)
	s.gammaUsed = s.gamma
	if s.gammaUsed == 0 {
		s.gammaUsed = scaleGamma(data)
	}

	K := mat.NewSymDense(n, nil)
	parallel.ParallelizeWithThreshold(n, 128, func(start, end int) {
		for i := start; i < end; i++ {
			for j := i; j < n; j++ {
				K.SetSym(i, j, s.kernelValue(data.RawRowView(i), data.RawRowView(j)))
			}
		}
	})

	ys := make([]float64, n)
	for i, l := range labels {
		ys[i] = float64(2*l - 1)
	}
	alpha := make([]float64, n)
	u := make([]float64, n) // Σ α_s y_s K(s, t)

	inUp := func(t int) bool {
		return (ys[t] > 0 && alpha[t] < s.C) || (ys[t] < 0 && alpha[t] > 0)
	}
	inLow := func(t int) bool {
		return (ys[t] < 0 && alpha[t] < s.C) || (ys[t] > 0 && alpha[t] > 0)
	}

	converged := false
	iter := 0
	var upper, lower float64
	for ; iter < s.maxIter; iter++ {
		i, j := -1, -1
		upper, lower = math.Inf(-1), math.Inf(1)
		for t := 0; t < n; t++ {
			v := ys[t] - u[t]
			if inUp(t) && v > upper {
				upper, i = v, t
			}
			if inLow(t) && v < lower {
				lower, j = v, t
			}
		}
		if i < 0 || j < 0 || upper-lower < s.tol {
			converged = true
			break
		}

		eta := K.At(i, i) + K.At(j, j) - 2*K.At(i, j)
		if eta <= 0 {
			eta = 1e-12
		}
		delta := (upper - lower) / eta
		if ys[i] > 0 {
			delta = math.Min(delta, s.C-alpha[i])
		} else {
			delta = math.Min(delta, alpha[i])
		}
		if ys[j] > 0 {
			delta = math.Min(delta, alpha[j])
		} else {
			delta = math.Min(delta, s.C-alpha[j])
		}

		alpha[i] += ys[i] * delta
		alpha[j] -= ys[j] * delta
		for t := 0; t < n; t++ {
			u[t] += delta * (K.At(t, i) - K.At(t, j))
		}
	}
	s.nIter = iter
	if !converged {
		errors.Warn(errors.NewConvergenceWarning("SVC", iter, "SMO did not reach the KKT tolerance"))
	}

	// Intercept from free support vectors, else the midpoint of the bounds.
	sum, free := 0.0, 0
	for t := 0; t < n; t++ {
		if alpha[t] > 0 && alpha[t] < s.C {
			sum += ys[t] - u[t]
			free++
		}
	}
	if free > 0 {
		s.intercept = sum / float64(free)
	} else {
		s.intercept = (upper + lower) / 2
	}

	var svRows []int
	for t := 0; t < n; t++ {
		if alpha[t] > 0 {
			svRows = append(svRows, t)
		}
	}
	s.supportVectors = mat.NewDense(max(len(svRows), 1), p, nil)
	s.dualCoef = make([]float64, len(svRows))
	for k, t := range svRows {
		s.supportVectors.SetRow(k, data.RawRowView(t))
		s.dualCoef[k] = alpha[t] * ys[t]
	}

	decision := make([]float64, n)
	for t := 0; t < n; t++ {
		decision[t] = u[t] + s.intercept
	}
	s.plattA, s.plattB = plattScaling(decision, labels)

	s.state.SetDimensions(p, n)
	s.state.SetFitted()
	s.logger.Debug("SVC fitted",
		log.SamplesKey, n,
		log.FeaturesKey, p,
		log.IterationKey, iter,
		"support_vectors", len(svRows),
	)
	return nil
}

// DecisionFunction returns the signed distance to the separating surface.
func (s *SVC) DecisionFunction(X mat.Matrix) ([]float64, error) {
	if err := s.state.RequireFitted("SVC", "DecisionFunction"); err != nil {
		return nil, err
	}
	n, p := X.Dims()
	if err := s.state.CheckFeatures("SVC.DecisionFunction", p); err != nil {
		return nil, err
	}
	query := mat.DenseCopyOf(X)
	out := make([]float64, n)
	parallel.ParallelizeWithThreshold(n, 64, func(start, end int) {
		for i := start; i < end; i++ {
			f := s.intercept
			row := query.RawRowView(i)
			for k, coef := range s.dualCoef {
				f += coef * s.kernelValue(s.supportVectors.RawRowView(k), row)
			}
			out[i] = f
		}
	})
	return out, nil
}

// PredictProba returns Platt-calibrated n×2 probabilities.
func (s *SVC) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	decision, err := s.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(len(decision), 2, nil)
	for i, f := range decision {
		p1 := errors.Sigmoid(-(s.plattA*f + s.plattB))
		out.Set(i, 0, 1-p1)
		out.Set(i, 1, p1)
	}
	return out, nil
}

// Predict returns the sign of the decision function; zero maps to class 0.
func (s *SVC) Predict(X mat.Matrix) (mat.Matrix, error) {
	decision, err := s.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(len(decision), 1, nil)
	for i, f := range decision {
		if f > 0 {
			out.Set(i, 0, 1)
		}
	}
	return out, nil
}

// SupportsImportance is true only for the linear kernel.
func (s *SVC) SupportsImportance() bool { return s.kernel == KernelLinear }

// FeatureImportances returns |w| for the linear kernel.
func (s *SVC) FeatureImportances() ([]float64, error) {
	if !s.SupportsImportance() {
		return nil, errors.NewInvalidConfigurationError("SVC", "kernel", "feature importances need the linear kernel", s.kernel)
	}
	if err := s.state.RequireFitted("SVC", "FeatureImportances"); err != nil {
		return nil, err
	}
	_, p := s.supportVectors.Dims()
	w := make([]float64, p)
	for k, coef := range s.dualCoef {
		floats.AddScaled(w, coef, s.supportVectors.RawRowView(k))
	}
	for j := range w {
		w[j] = math.Abs(w[j])
	}
	return w, nil
}

// NSupport returns the number of support vectors.
func (s *SVC) NSupport() int { return len(s.dualCoef) }

// NIter returns the number of SMO steps taken by the last Fit.
func (s *SVC) NIter() int { return s.nIter }

// Clone returns an unfitted copy with the same configuration.
func (s *SVC) Clone() model.Estimator {
	return NewSVC(WithC(s.C), WithKernel(s.kernel), WithGamma(s.gamma), WithTol(s.tol), WithMaxIter(s.maxIter))
}

// Name implements model.Named.
func (s *SVC) Name() string { return "SVC" }

// GetParams returns the hyperparameters.
func (s *SVC) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"C":        s.C,
		"kernel":   s.kernel,
		"gamma":    s.gamma,
		"tol":      s.tol,
		"max_iter": s.maxIter,
	}
}

// SetParams updates hyperparameters and resets the fitted state.
func (s *SVC) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var ok bool
		switch key {
		case "C":
			ok = model.AssignParam(&s.C, value)
		case "kernel":
			ok = model.AssignParam(&s.kernel, value)
		case "gamma":
			ok = model.AssignParam(&s.gamma, value)
		case "tol":
			ok = model.AssignParam(&s.tol, value)
		case "max_iter":
			ok = model.AssignParam(&s.maxIter, value)
		default:
			return errors.NewInvalidConfigurationError("SVC", key, "unknown parameter", value)
		}
		if !ok {
			return errors.NewInvalidConfigurationError("SVC", key, fmt.Sprintf("unexpected type %T", value), value)
		}
	}
	s.state.Reset()
	return s.validate()
}

// plattScaling fits P(y=1|f) = 1 / (1 + exp(A·f + B)) by Newton's method
// with backtracking, using the regularized targets of Lin, Lin and Weng.
func plattScaling(decision []float64, labels []int) (float64, float64) {
	var prior0, prior1 float64
	for _, l := range labels {
		if l == 1 {
			prior1++
		} else {
			prior0++
		}
	}
	hi := (prior1 + 1) / (prior1 + 2)
	lo := 1 / (prior0 + 2)
	t := make([]float64, len(labels))
	for i, l := range labels {
		if l == 1 {
			t[i] = hi
		} else {
			t[i] = lo
		}
	}

	const (
		maxIter = 100
		minStep = 1e-10
		sigma   = 1e-12
		eps     = 1e-5
	)
	A, B := 0.0, math.Log((prior0+1)/(prior1+1))

	objective := func(a, b float64) float64 {
		fval := 0.0
		for i, f := range decision {
			fApB := f*a + b
			if fApB >= 0 {
				fval += t[i]*fApB + math.Log1p(math.Exp(-fApB))
			} else {
				fval += (t[i]-1)*fApB + math.Log1p(math.Exp(fApB))
			}
		}
		return fval
	}
	fval := objective(A, B)

	for iter := 0; iter < maxIter; iter++ {
		h11, h22, h21 := sigma, sigma, 0.0
		g1, g2 := 0.0, 0.0
		for i, f := range decision {
			fApB := f*A + B
			var p, q float64
			if fApB >= 0 {
				p = math.Exp(-fApB) / (1 + math.Exp(-fApB))
				q = 1 / (1 + math.Exp(-fApB))
			} else {
				p = 1 / (1 + math.Exp(fApB))
				q = math.Exp(fApB) / (1 + math.Exp(fApB))
			}
			d2 := p * q
			h11 += f * f * d2
			h22 += d2
			h21 += f * d2
			d1 := t[i] - p
			g1 += f * d1
			g2 += d1
		}
		if math.Abs(g1) < eps && math.Abs(g2) < eps {
			break
		}

		det := h11*h22 - h21*h21
		dA := -(h22*g1 - h21*g2) / det
		dB := -(-h21*g1 + h11*g2) / det
		gd := g1*dA + g2*dB

		step := 1.0
		for step >= minStep {
			newA, newB := A+step*dA, B+step*dB
			newf := objective(newA, newB)
			if newf < fval+0.0001*step*gd {
				A, B, fval = newA, newB, newf
				break
			}
			step /= 2
		}
		if step < minStep {
			break
		}
	}
	return A, B
}
