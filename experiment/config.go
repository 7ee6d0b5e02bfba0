package experiment

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/ensemblecv/pkg/errors"
	"github.com/YuminosukeSato/ensemblecv/preprocessing"
	"github.com/YuminosukeSato/ensemblecv/sklearn/model_selection"
)

// Kind names an ensemble family.
type Kind string

const (
	KindVoting   Kind = "voting"
	KindBagging  Kind = "bagging"
	KindBoosting Kind = "boosting"
)

// Kinds lists the supported ensemble families.
var Kinds = []Kind{KindVoting, KindBagging, KindBoosting}

func (k Kind) valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Params are ensemble hyperparameters. Member parameters use
// "<member>__<param>" keys, e.g. "knn__n_neighbors" or "estimator__C".
type Params = model_selection.Params

// SelectionConfig configures the RFE stage.
type SelectionConfig struct {
	// Target is the number of features to keep; 0 keeps half of them.
	Target int `yaml:"target"`
	Step   int `yaml:"step"`
	// Trees and Seed configure the auxiliary random forest.
	Trees int    `yaml:"trees"`
	Seed  uint64 `yaml:"seed"`
	// PerFold refits RFE inside every cross-validation fold and for the
	// holdout fit. When false, and always during grid search, the ranking
	// fitted on the training split is reused as a fixed mask.
	PerFold bool `yaml:"per_fold"`
}

// FamilyConfig is one ensemble under comparison.
type FamilyConfig struct {
	Name   string                    `yaml:"name"`
	Kind   Kind                      `yaml:"kind"`
	Params Params                    `yaml:"params,omitempty"`
	Grid   model_selection.ParamGrid `yaml:"grid,omitempty"`
}

// Config describes a full comparison study.
type Config struct {
	Seed     uint64  `yaml:"seed"`
	TestSize float64 `yaml:"test_size"`
	Stratify bool    `yaml:"stratify"`
	Folds    int     `yaml:"folds"`
	Scoring  string  `yaml:"scoring"`
	Workers  int     `yaml:"workers"`

	Search        bool   `yaml:"search"`
	SearchFolds   int    `yaml:"search_folds"`
	SearchScoring string `yaml:"search_scoring"`

	Baseline bool `yaml:"baseline"`

	Scaler    preprocessing.ScalerConfig `yaml:"scaler"`
	Selection SelectionConfig            `yaml:"selection"`
	Families  []FamilyConfig             `yaml:"families"`
}

// DefaultConfig reproduces the reference study: 75/25 holdout, RFE with a
// random forest keeping half of the features, the three tuned ensembles and
// a 10-fold shuffled F1 comparison.
func DefaultConfig() Config {
	return Config{
		Seed:          1,
		TestSize:      0.25,
		Folds:         10,
		Scoring:       "f1",
		Search:        true,
		SearchFolds:   10,
		SearchScoring: "accuracy",
		Baseline:      true,
		Scaler:        preprocessing.ScalerConfig{Kind: preprocessing.KindStandard},
		Selection:     SelectionConfig{Step: 1, Trees: 100, Seed: 100, PerFold: true},
		Families: []FamilyConfig{
			{
				Name: "voting",
				Kind: KindVoting,
				Grid: model_selection.ParamGrid{
					{Name: "knn__n_neighbors", Values: []any{5, 9, 14, 19}},
					{Name: "dt__max_depth", Values: []any{2, 4, 6}},
				},
			},
			{
				Name: "bagging",
				Kind: KindBagging,
				Grid: model_selection.ParamGrid{
					{Name: "estimator__C", Values: []any{0.1, 1.0, 10.0, 100.0}},
					{Name: "estimator__gamma", Values: []any{1.0, 0.1, 0.01, 0.001}},
				},
			},
			{
				Name: "boosting",
				Kind: KindBoosting,
				Grid: model_selection.ParamGrid{
					{Name: "learning_rate", Values: []any{0.01, 0.02, 0.05, 0.1, 0.2, 0.5}},
					{Name: "n_estimators", Values: []any{100}},
				},
			},
		},
	}
}

// Validate checks the configuration before any model is fit.
func (c Config) Validate() error {
	if c.TestSize <= 0 || c.TestSize >= 1 {
		return errors.NewInvalidConfigurationError("Config", "test_size", "must be in (0, 1)", c.TestSize)
	}
	if c.Folds < 2 {
		return errors.NewInvalidConfigurationError("Config", "folds", "must be at least 2", c.Folds)
	}
	if _, err := model_selection.GetScorer(c.Scoring); err != nil {
		return err
	}
	if c.Search {
		if c.SearchFolds < 2 {
			return errors.NewInvalidConfigurationError("Config", "search_folds", "must be at least 2", c.SearchFolds)
		}
		if _, err := model_selection.GetScorer(c.SearchScoring); err != nil {
			return err
		}
	}
	if _, err := preprocessing.NewScaler(c.Scaler); err != nil {
		return err
	}
	s := c.Selection
	if s.Target < 0 {
		return errors.NewInvalidConfigurationError("Config", "selection.target", "must not be negative", s.Target)
	}
	if s.Step < 1 {
		return errors.NewInvalidConfigurationError("Config", "selection.step", "must be at least 1", s.Step)
	}
	if s.Trees < 1 {
		return errors.NewInvalidConfigurationError("Config", "selection.trees", "must be at least 1", s.Trees)
	}
	if len(c.Families) == 0 {
		return errors.NewInvalidConfigurationError("Config", "families", "at least one ensemble is required", 0)
	}
	seen := make(map[string]bool, len(c.Families))
	for _, f := range c.Families {
		if f.Name == "" {
			return errors.NewInvalidConfigurationError("Config", "families", "family without a name", f.Kind)
		}
		if seen[f.Name] {
			return errors.NewInvalidConfigurationError("Config", "families", "duplicate family name", f.Name)
		}
		seen[f.Name] = true
		if !f.Kind.valid() {
			return errors.NewInvalidConfigurationError("Config", fmt.Sprintf("families.%s.kind", f.Name), "unknown ensemble kind", f.Kind)
		}
		if c.Search && f.Grid != nil {
			if err := f.Grid.Validate(f.Name); err != nil {
				return err
			}
		}
		if _, err := NewEnsemble(f.Kind, f.Params); err != nil {
			return errors.Wrapf(err, "family %s", f.Name)
		}
	}
	return nil
}

// ParseConfig decodes a YAML study description on top of DefaultConfig.
// A families list in the document replaces the default families.
func ParseConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	doc := cfg
	doc.Families = nil
	if err := dec.Decode(&doc); err != nil && err != io.EOF {
		return Config{}, errors.Wrap(err, "decode experiment config")
	}
	if doc.Families == nil {
		doc.Families = cfg.Families
	}
	if err := doc.Validate(); err != nil {
		return Config{}, err
	}
	return doc, nil
}

// LoadConfig reads a YAML study description from path.
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "open experiment config %s", path)
	}
	defer f.Close()
	return ParseConfig(f)
}

// WriteConfig encodes cfg as YAML.
func WriteConfig(w io.Writer, cfg Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return errors.Wrap(err, "encode experiment config")
	}
	return enc.Close()
}
