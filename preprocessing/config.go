package preprocessing

import (
	"strings"

	"github.com/YuminosukeSato/ensemblecv/pkg/errors"
)

// Scaler kinds accepted by ScalerConfig.
const (
	KindStandard = "standard"
	KindMinMax   = "minmax"
	KindNone     = "none"
)

// ScalerConfig selects and configures the scaling stage of a pipeline.
type ScalerConfig struct {
	Kind         string     `yaml:"kind" json:"kind"`
	WithMean     *bool      `yaml:"with_mean,omitempty" json:"with_mean,omitempty"`
	WithStd      *bool      `yaml:"with_std,omitempty" json:"with_std,omitempty"`
	FeatureRange [2]float64 `yaml:"feature_range,omitempty" json:"feature_range,omitempty"`
}

// NewScaler builds the configured scaler. Kind "none" returns (nil, nil),
// meaning the pipeline has no scaling stage.
func NewScaler(cfg ScalerConfig) (Scaler, error) {
	switch strings.ToLower(cfg.Kind) {
	case KindStandard, "":
		withMean, withStd := true, true
		if cfg.WithMean != nil {
			withMean = *cfg.WithMean
		}
		if cfg.WithStd != nil {
			withStd = *cfg.WithStd
		}
		return NewStandardScaler(withMean, withStd), nil
	case KindMinMax:
		r := cfg.FeatureRange
		if r == [2]float64{} {
			r = [2]float64{0, 1}
		}
		if r[0] >= r[1] {
			return nil, errors.NewInvalidConfigurationError("ScalerConfig", "feature_range", "minimum must be smaller than maximum", r)
		}
		return NewMinMaxScaler(r), nil
	case KindNone:
		return nil, nil
	default:
		return nil, errors.NewInvalidConfigurationError("ScalerConfig", "kind", "must be standard, minmax or none", cfg.Kind)
	}
}
