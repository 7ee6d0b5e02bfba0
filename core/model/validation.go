package model

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/ensemblecv/pkg/errors"
)

// CheckXY validates a training pair and returns its shape and the labels as
// ints. y may be n×1 or 1×n; labels must be 0 or 1.
func CheckXY(op string, X, y mat.Matrix) (rows, cols int, labels []int, err error) {
	if X == nil || y == nil {
		return 0, 0, nil, errors.Wrap(errors.ErrEmptyData, op)
	}
	rows, cols = X.Dims()
	if rows == 0 || cols == 0 {
		return 0, 0, nil, errors.Wrap(errors.ErrEmptyData, op)
	}
	labels, err = Labels(op, y)
	if err != nil {
		return 0, 0, nil, err
	}
	if len(labels) != rows {
		return 0, 0, nil, errors.NewDimensionError(op, rows, len(labels), 0)
	}
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if v := X.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return 0, 0, nil, errors.NewValidationError("X", "contains NaN or Inf", [2]int{i, j})
			}
		}
	}
	return rows, cols, labels, nil
}

// Labels converts a label column (or row) to binary ints.
func Labels(op string, y mat.Matrix) ([]int, error) {
	r, c := y.Dims()
	n := r
	at := func(i int) float64 { return y.At(i, 0) }
	if c != 1 {
		if r != 1 {
			return nil, errors.NewDimensionError(op, 1, c, 1)
		}
		n = c
		at = func(i int) float64 { return y.At(0, i) }
	}
	labels := make([]int, n)
	for i := range labels {
		switch v := at(i); v {
		case 0:
			labels[i] = 0
		case 1:
			labels[i] = 1
		default:
			return nil, errors.NewValidationError("y", "labels must be 0 or 1", v)
		}
	}
	return labels, nil
}

// LabelVector builds an n×1 label matrix.
func LabelVector(labels []int) *mat.Dense {
	data := make([]float64, len(labels))
	for i, l := range labels {
		data[i] = float64(l)
	}
	return mat.NewDense(len(labels), 1, data)
}

// ClassCounts returns the number of samples per class.
func ClassCounts(labels []int) [2]int {
	var counts [2]int
	for _, l := range labels {
		counts[l]++
	}
	return counts
}

// RequireBothClasses returns an error if labels contain a single class.
func RequireBothClasses(op string, labels []int) error {
	counts := ClassCounts(labels)
	for class, n := range counts {
		if n == 0 {
			return errors.NewValidationError("y", "training labels must contain both classes", class)
		}
	}
	return nil
}

// ProbaToLabels returns argmax over the two probability columns; ties go to
// class 0.
func ProbaToLabels(proba mat.Matrix) *mat.Dense {
	n, _ := proba.Dims()
	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		if proba.At(i, 1) > proba.At(i, 0) {
			out.Set(i, 0, 1)
		}
	}
	return out
}
