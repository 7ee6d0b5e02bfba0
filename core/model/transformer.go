package model

import "gonum.org/v1/gonum/mat"

// Transformer はデータ変換のインターフェース
type Transformer interface {
	// Fit learns the transformation parameters from X.
	Fit(X mat.Matrix) error
	Transform(X mat.Matrix) (mat.Matrix, error)
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}

// SupervisedTransformer learns its transformation from X and labels, as
// feature selectors do.
type SupervisedTransformer interface {
	Fit(X, y mat.Matrix) error
	Transform(X mat.Matrix) (mat.Matrix, error)
}
