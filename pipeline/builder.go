package pipeline

import (
	"github.com/YuminosukeSato/ensemblecv/core/model"
	"github.com/YuminosukeSato/ensemblecv/pkg/errors"
	"github.com/YuminosukeSato/ensemblecv/pkg/log"
	"github.com/YuminosukeSato/ensemblecv/preprocessing"
	"github.com/YuminosukeSato/ensemblecv/sklearn/feature_selection"
)

// Builder assembles a Pipeline and validates its stage order.
//
//	p, err := pipeline.NewBuilder().
//	    Scaler("scaler", preprocessing.NewStandardScaler(true, true)).
//	    Selector("rfe", mask).
//	    Estimator("voting", voting).
//	    Build()
type Builder struct {
	steps []Step
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder { return &Builder{} }

// Scaler appends a scaling stage. A nil scaler is skipped.
func (b *Builder) Scaler(name string, s preprocessing.Scaler) *Builder {
	if s != nil {
		b.steps = append(b.steps, Step{Name: name, Kind: StageScaler, Stage: s})
	}
	return b
}

// Selector appends a feature selection stage. A nil selector is skipped.
func (b *Builder) Selector(name string, s feature_selection.Selector) *Builder {
	if s != nil {
		b.steps = append(b.steps, Step{Name: name, Kind: StageSelector, Stage: s})
	}
	return b
}

// Estimator appends the final estimator.
func (b *Builder) Estimator(name string, e model.Cloner) *Builder {
	b.steps = append(b.steps, Step{Name: name, Kind: StageEstimator, Stage: e})
	return b
}

// Build checks that stages appear at most once each, in the order
// Scaler → Selector → Estimator, with the estimator last and every name
// unique.
func (b *Builder) Build() (*Pipeline, error) {
	if len(b.steps) == 0 {
		return nil, errors.NewInvalidConfigurationError("Pipeline", "steps", "a final estimator is required", 0)
	}
	seen := make(map[string]bool, len(b.steps))
	last := StageKind(-1)
	for i, step := range b.steps {
		if step.Name == "" {
			return nil, errors.NewInvalidConfigurationError("Pipeline", "steps", "step without a name", i)
		}
		if seen[step.Name] {
			return nil, errors.NewInvalidConfigurationError("Pipeline", "steps", "duplicate step name", step.Name)
		}
		seen[step.Name] = true
		if step.Kind <= last {
			return nil, errors.NewInvalidConfigurationError("Pipeline", "steps",
				"stages must be ordered scaler, selector, estimator", step.Kind.String())
		}
		last = step.Kind
		if est, ok := step.Stage.(model.Cloner); step.Kind == StageEstimator && (!ok || est == nil) {
			return nil, errors.NewInvalidConfigurationError("Pipeline", "steps", "estimator is nil", step.Name)
		}
	}
	if last != StageEstimator {
		return nil, errors.NewInvalidConfigurationError("Pipeline", "steps", "the last stage must be an estimator", last.String())
	}
	return &Pipeline{
		state:  model.NewStateManager(),
		logger: log.GetLoggerWithName("Pipeline"),
		steps:  append([]Step(nil), b.steps...),
	}, nil
}
