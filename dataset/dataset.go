// Package dataset holds the immutable labelled feature table the pipeline
// consumes, plus the WDBC CSV loader and a synthetic generator for tests.
package dataset

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/ensemblecv/core/model"
	"github.com/YuminosukeSato/ensemblecv/pkg/errors"
)

// Dataset is an N×P feature matrix with binary labels (1 = malignant,
// 0 = benign) and column names. It is never mutated after construction;
// accessors return copies.
type Dataset struct {
	x      *mat.Dense
	labels []int
	names  []string
}

// New validates and copies its inputs. names may be nil, in which case
// columns are named f0, f1, ...
func New(X mat.Matrix, labels []int, names []string) (*Dataset, error) {
	if X == nil {
		return nil, errors.Wrap(errors.ErrEmptyData, "dataset.New")
	}
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "dataset.New")
	}
	if len(labels) != r {
		return nil, errors.NewDimensionError("dataset.New", r, len(labels), 0)
	}
	if names == nil {
		names = make([]string, c)
		for j := range names {
			names[j] = fmt.Sprintf("f%d", j)
		}
	}
	if len(names) != c {
		return nil, errors.NewDimensionError("dataset.New", c, len(names), 1)
	}
	for i, l := range labels {
		if l != 0 && l != 1 {
			return nil, errors.NewValidationError("labels", fmt.Sprintf("row %d: labels must be 0 or 1", i), l)
		}
	}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if v := X.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, errors.NewValidationError(names[j], fmt.Sprintf("row %d is not finite", i), v)
			}
		}
	}
	return &Dataset{
		x:      mat.DenseCopyOf(X),
		labels: append([]int(nil), labels...),
		names:  append([]string(nil), names...),
	}, nil
}

// FromMatrices builds a Dataset from a feature matrix and an n×1 label matrix.
func FromMatrices(X, y mat.Matrix, names []string) (*Dataset, error) {
	labels, err := model.Labels("dataset.FromMatrices", y)
	if err != nil {
		return nil, err
	}
	return New(X, labels, names)
}

// Dims returns (samples, features).
func (d *Dataset) Dims() (int, int) { return d.x.Dims() }

// X returns a copy of the feature matrix.
func (d *Dataset) X() *mat.Dense { return mat.DenseCopyOf(d.x) }

// Y returns the labels as an n×1 matrix.
func (d *Dataset) Y() *mat.Dense { return model.LabelVector(d.labels) }

// Labels returns a copy of the labels.
func (d *Dataset) Labels() []int { return append([]int(nil), d.labels...) }

// Names returns a copy of the column names.
func (d *Dataset) Names() []string { return append([]string(nil), d.names...) }

// ClassCounts returns [benign, malignant] counts.
func (d *Dataset) ClassCounts() [2]int { return model.ClassCounts(d.labels) }

// Subset returns the rows at indices, in that order.
func (d *Dataset) Subset(indices []int) (*Dataset, error) {
	n, p := d.x.Dims()
	if len(indices) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "Dataset.Subset")
	}
	out := mat.NewDense(len(indices), p, nil)
	labels := make([]int, len(indices))
	for k, i := range indices {
		if i < 0 || i >= n {
			return nil, errors.NewValidationError("indices", "row index out of range", i)
		}
		out.SetRow(k, d.x.RawRowView(i))
		labels[k] = d.labels[i]
	}
	return &Dataset{x: out, labels: labels, names: d.Names()}, nil
}

// SelectColumns returns the columns at cols, in that order.
func (d *Dataset) SelectColumns(cols []int) (*Dataset, error) {
	n, p := d.x.Dims()
	if len(cols) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "Dataset.SelectColumns")
	}
	out := mat.NewDense(n, len(cols), nil)
	names := make([]string, len(cols))
	for k, j := range cols {
		if j < 0 || j >= p {
			return nil, errors.NewValidationError("cols", "column index out of range", j)
		}
		out.SetCol(k, mat.Col(nil, j, d.x))
		names[k] = d.names[j]
	}
	return &Dataset{x: out, labels: d.Labels(), names: names}, nil
}

// String summarizes the shape and class balance.
func (d *Dataset) String() string {
	n, p := d.x.Dims()
	c := d.ClassCounts()
	return fmt.Sprintf("Dataset(samples=%d, features=%d, benign=%d, malignant=%d)", n, p, c[0], c[1])
}
