package dataset

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/ensemblecv/pkg/errors"
)

// SyntheticConfig describes a two-class Gaussian problem. The first
// NInformative columns have class means ±Separation/(j+1), so column 0 is
// the most informative; the remaining columns are pure noise.
type SyntheticConfig struct {
	NSamples     int
	NFeatures    int
	NInformative int
	NPositive    int
	Separation   float64
	Seed         uint64
}

// MakeClassification generates a reproducible synthetic Dataset.
func MakeClassification(cfg SyntheticConfig) (*Dataset, error) {
	if cfg.NSamples < 2 || cfg.NFeatures < 1 {
		return nil, errors.NewInvalidConfigurationError("MakeClassification", "shape", "need at least 2 samples and 1 feature", [2]int{cfg.NSamples, cfg.NFeatures})
	}
	if cfg.NInformative <= 0 || cfg.NInformative > cfg.NFeatures {
		cfg.NInformative = cfg.NFeatures
	}
	if cfg.NPositive <= 0 || cfg.NPositive >= cfg.NSamples {
		cfg.NPositive = cfg.NSamples / 2
	}
	if cfg.Separation == 0 {
		cfg.Separation = 2
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	labels := make([]int, cfg.NSamples)
	for i := 0; i < cfg.NPositive; i++ {
		labels[i] = 1
	}
	rng.Shuffle(len(labels), func(i, j int) { labels[i], labels[j] = labels[j], labels[i] })

	X := mat.NewDense(cfg.NSamples, cfg.NFeatures, nil)
	for i := 0; i < cfg.NSamples; i++ {
		sign := -1.0
		if labels[i] == 1 {
			sign = 1.0
		}
		for j := 0; j < cfg.NFeatures; j++ {
			v := rng.NormFloat64()
			if j < cfg.NInformative {
				v += sign * cfg.Separation / float64(j+1) / 2
			}
			X.Set(i, j, v)
		}
	}

	names := make([]string, cfg.NFeatures)
	width := int(math.Log10(float64(cfg.NFeatures))) + 1
	for j := range names {
		names[j] = fmt.Sprintf("x%0*d", width, j)
	}
	return New(X, labels, names)
}
