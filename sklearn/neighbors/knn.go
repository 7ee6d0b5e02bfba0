// Package neighbors implements k-nearest-neighbour classification.
package neighbors

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/ensemblecv/core/model"
	"github.com/YuminosukeSato/ensemblecv/core/parallel"
	"github.com/YuminosukeSato/ensemblecv/pkg/errors"
)

// KNeighborsClassifier は k 近傍法による二値分類器
//
// Fit only memorizes the training set. Predictions are computed row by row
// in parallel; distance ties between neighbours are broken by training
// row order.
type KNeighborsClassifier struct {
	state *model.StateManager

	nNeighbors int
	weights    string // "uniform" or "distance"
	metric     string // "euclidean" or "manhattan"

	X      *mat.Dense
	labels []int
}

// Option configures a KNeighborsClassifier.
type Option func(*KNeighborsClassifier)

// WithNNeighbors sets k.
func WithNNeighbors(k int) Option {
	return func(c *KNeighborsClassifier) { c.nNeighbors = k }
}

// WithWeights sets neighbour weighting ("uniform" or "distance").
func WithWeights(w string) Option {
	return func(c *KNeighborsClassifier) { c.weights = w }
}

// WithMetric sets the distance metric ("euclidean" or "manhattan").
func WithMetric(m string) Option {
	return func(c *KNeighborsClassifier) { c.metric = m }
}

// NewKNeighborsClassifier creates a classifier with k=5, uniform weights
// and the euclidean metric.
func NewKNeighborsClassifier(opts ...Option) *KNeighborsClassifier {
	c := &KNeighborsClassifier{
		state:      model.NewStateManager(),
		nNeighbors: 5,
		weights:    "uniform",
		metric:     "euclidean",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *KNeighborsClassifier) validate() error {
	switch {
	case c.nNeighbors < 1:
		return errors.NewInvalidConfigurationError("KNeighborsClassifier", "n_neighbors", "must be at least 1", c.nNeighbors)
	case c.weights != "uniform" && c.weights != "distance":
		return errors.NewInvalidConfigurationError("KNeighborsClassifier", "weights", "must be uniform or distance", c.weights)
	case c.metric != "euclidean" && c.metric != "manhattan":
		return errors.NewInvalidConfigurationError("KNeighborsClassifier", "metric", "must be euclidean or manhattan", c.metric)
	}
	return nil
}

// Fit stores the training data. k must not exceed the number of samples.
func (c *KNeighborsClassifier) Fit(X, y mat.Matrix) error {
	if err := c.validate(); err != nil {
		return err
	}
	rows, cols, labels, err := model.CheckXY("KNeighborsClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	if c.nNeighbors > rows {
		return errors.NewInvalidConfigurationError("KNeighborsClassifier", "n_neighbors",
			fmt.Sprintf("exceeds the %d training samples", rows), c.nNeighbors)
	}
	c.X = mat.DenseCopyOf(X)
	c.labels = labels
	c.state.SetDimensions(cols, rows)
	c.state.SetFitted()
	return nil
}

type neighbor struct {
	index    int
	distance float64
}

func (c *KNeighborsClassifier) distance(a, b []float64) float64 {
	if c.metric == "manhattan" {
		return floats.Distance(a, b, 1)
	}
	return floats.Distance(a, b, 2)
}

// vote returns P(class = 1) among the k nearest training rows.
func (c *KNeighborsClassifier) vote(row []float64) float64 {
	n, _ := c.X.Dims()
	candidates := make([]neighbor, n)
	for i := 0; i < n; i++ {
		candidates[i] = neighbor{index: i, distance: c.distance(row, c.X.RawRowView(i))}
	}
	sort.SliceStable(candidates, func(a, b int) bool { return candidates[a].distance < candidates[b].distance })
	nearest := candidates[:c.nNeighbors]

	if c.weights == "distance" {
		// An exact match takes all the weight.
		var exact [2]float64
		hasExact := false
		for _, nb := range nearest {
			if nb.distance == 0 {
				exact[c.labels[nb.index]]++
				hasExact = true
			}
		}
		if hasExact {
			return exact[1] / (exact[0] + exact[1])
		}
	}

	var votes [2]float64
	for _, nb := range nearest {
		w := 1.0
		if c.weights == "distance" {
			w = 1 / nb.distance
		}
		votes[c.labels[nb.index]] += w
	}
	return votes[1] / (votes[0] + votes[1])
}

// PredictProba returns the n×2 neighbour vote shares.
func (c *KNeighborsClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := c.state.RequireFitted("KNeighborsClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	n, p := X.Dims()
	if err := c.state.CheckFeatures("KNeighborsClassifier.PredictProba", p); err != nil {
		return nil, err
	}
	query := mat.DenseCopyOf(X)
	out := mat.NewDense(n, 2, nil)
	parallel.ParallelizeWithThreshold(n, 64, func(start, end int) {
		for i := start; i < end; i++ {
			p1 := c.vote(query.RawRowView(i))
			out.Set(i, 0, 1-p1)
			out.Set(i, 1, p1)
		}
	})
	return out, nil
}

// Predict returns the majority label; an even split goes to class 0.
func (c *KNeighborsClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := c.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return model.ProbaToLabels(proba), nil
}

// Clone returns an unfitted copy with the same configuration.
func (c *KNeighborsClassifier) Clone() model.Estimator {
	return NewKNeighborsClassifier(WithNNeighbors(c.nNeighbors), WithWeights(c.weights), WithMetric(c.metric))
}

// Name implements model.Named.
func (c *KNeighborsClassifier) Name() string { return "KNeighborsClassifier" }

// GetParams returns the hyperparameters.
func (c *KNeighborsClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_neighbors": c.nNeighbors,
		"weights":     c.weights,
		"metric":      c.metric,
	}
}

// SetParams updates hyperparameters and resets the fitted state.
func (c *KNeighborsClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var ok bool
		switch key {
		case "n_neighbors":
			ok = model.AssignParam(&c.nNeighbors, value)
		case "weights":
			ok = model.AssignParam(&c.weights, value)
		case "metric":
			ok = model.AssignParam(&c.metric, value)
		default:
			return errors.NewInvalidConfigurationError("KNeighborsClassifier", key, "unknown parameter", value)
		}
		if !ok {
			return errors.NewInvalidConfigurationError("KNeighborsClassifier", key, fmt.Sprintf("unexpected type %T", value), value)
		}
	}
	c.state.Reset()
	return c.validate()
}
