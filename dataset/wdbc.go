package dataset

import (
	"io"
	"os"
	"strings"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/ensemblecv/pkg/errors"
)

// wdbcRecord is one row of the Wisconsin Diagnostic Breast Cancer CSV.
// The id column and the trailing unnamed column are not mapped and are
// dropped on load.
type wdbcRecord struct {
	Diagnosis string `csv:"diagnosis"`

	RadiusMean            float64 `csv:"radius_mean"`
	TextureMean           float64 `csv:"texture_mean"`
	PerimeterMean         float64 `csv:"perimeter_mean"`
	AreaMean              float64 `csv:"area_mean"`
	SmoothnessMean        float64 `csv:"smoothness_mean"`
	CompactnessMean       float64 `csv:"compactness_mean"`
	ConcavityMean         float64 `csv:"concavity_mean"`
	ConcavePointsMean     float64 `csv:"concave points_mean"`
	SymmetryMean          float64 `csv:"symmetry_mean"`
	FractalDimensionMean  float64 `csv:"fractal_dimension_mean"`
	RadiusSE              float64 `csv:"radius_se"`
	TextureSE             float64 `csv:"texture_se"`
	PerimeterSE           float64 `csv:"perimeter_se"`
	AreaSE                float64 `csv:"area_se"`
	SmoothnessSE          float64 `csv:"smoothness_se"`
	CompactnessSE         float64 `csv:"compactness_se"`
	ConcavitySE           float64 `csv:"concavity_se"`
	ConcavePointsSE       float64 `csv:"concave points_se"`
	SymmetrySE            float64 `csv:"symmetry_se"`
	FractalDimensionSE    float64 `csv:"fractal_dimension_se"`
	RadiusWorst           float64 `csv:"radius_worst"`
	TextureWorst          float64 `csv:"texture_worst"`
	PerimeterWorst        float64 `csv:"perimeter_worst"`
	AreaWorst             float64 `csv:"area_worst"`
	SmoothnessWorst       float64 `csv:"smoothness_worst"`
	CompactnessWorst      float64 `csv:"compactness_worst"`
	ConcavityWorst        float64 `csv:"concavity_worst"`
	ConcavePointsWorst    float64 `csv:"concave points_worst"`
	SymmetryWorst         float64 `csv:"symmetry_worst"`
	FractalDimensionWorst float64 `csv:"fractal_dimension_worst"`
}

// WDBCFeatureNames lists the 30 measurement columns in file order.
var WDBCFeatureNames = []string{
	"radius_mean", "texture_mean", "perimeter_mean", "area_mean", "smoothness_mean",
	"compactness_mean", "concavity_mean", "concave points_mean", "symmetry_mean", "fractal_dimension_mean",
	"radius_se", "texture_se", "perimeter_se", "area_se", "smoothness_se",
	"compactness_se", "concavity_se", "concave points_se", "symmetry_se", "fractal_dimension_se",
	"radius_worst", "texture_worst", "perimeter_worst", "area_worst", "smoothness_worst",
	"compactness_worst", "concavity_worst", "concave points_worst", "symmetry_worst", "fractal_dimension_worst",
}

func (r *wdbcRecord) features() []float64 {
	return []float64{
		r.RadiusMean, r.TextureMean, r.PerimeterMean, r.AreaMean, r.SmoothnessMean,
		r.CompactnessMean, r.ConcavityMean, r.ConcavePointsMean, r.SymmetryMean, r.FractalDimensionMean,
		r.RadiusSE, r.TextureSE, r.PerimeterSE, r.AreaSE, r.SmoothnessSE,
		r.CompactnessSE, r.ConcavitySE, r.ConcavePointsSE, r.SymmetrySE, r.FractalDimensionSE,
		r.RadiusWorst, r.TextureWorst, r.PerimeterWorst, r.AreaWorst, r.SmoothnessWorst,
		r.CompactnessWorst, r.ConcavityWorst, r.ConcavePointsWorst, r.SymmetryWorst, r.FractalDimensionWorst,
	}
}

// EncodeDiagnosis maps "M" to 1 and "B" to 0.
func EncodeDiagnosis(d string) (int, error) {
	switch strings.ToUpper(strings.TrimSpace(d)) {
	case "M":
		return 1, nil
	case "B":
		return 0, nil
	default:
		return 0, errors.NewValidationError("diagnosis", "must be M or B", d)
	}
}

// LoadWDBC reads the WDBC CSV layout from r.
func LoadWDBC(r io.Reader) (*Dataset, error) {
	var records []*wdbcRecord
	if err := gocsv.Unmarshal(r, &records); err != nil {
		return nil, errors.Wrap(err, "dataset.LoadWDBC: parse csv")
	}
	if len(records) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "dataset.LoadWDBC")
	}

	p := len(WDBCFeatureNames)
	X := mat.NewDense(len(records), p, nil)
	labels := make([]int, len(records))
	for i, rec := range records {
		label, err := EncodeDiagnosis(rec.Diagnosis)
		if err != nil {
			return nil, errors.Wrapf(err, "dataset.LoadWDBC: row %d", i+1)
		}
		labels[i] = label
		X.SetRow(i, rec.features())
	}
	return New(X, labels, WDBCFeatureNames)
}

// LoadWDBCFile opens path and calls LoadWDBC.
func LoadWDBCFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "dataset.LoadWDBCFile: open %s", path)
	}
	defer f.Close()
	return LoadWDBC(f)
}
