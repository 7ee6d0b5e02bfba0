// Package pipeline chains a scaler, a feature selector and a final
// estimator behind a single fit/predict contract.
//
// Pipelines are assembled with a Builder, which enforces the stage order
// Scaler → Selector → Estimator at construction. Every stage is optional
// except the estimator, which must come last.
package pipeline

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/ensemblecv/core/model"
	"github.com/YuminosukeSato/ensemblecv/pkg/errors"
	"github.com/YuminosukeSato/ensemblecv/pkg/log"
	"github.com/YuminosukeSato/ensemblecv/preprocessing"
	"github.com/YuminosukeSato/ensemblecv/sklearn/feature_selection"
)

// StageKind identifies the role of a pipeline step.
type StageKind int

const (
	StageScaler StageKind = iota
	StageSelector
	StageEstimator
)

func (k StageKind) String() string {
	switch k {
	case StageScaler:
		return "scaler"
	case StageSelector:
		return "selector"
	case StageEstimator:
		return "estimator"
	}
	return fmt.Sprintf("StageKind(%d)", int(k))
}

// Step is one named stage. Stage holds a preprocessing.Scaler, a
// feature_selection.Selector or a model.Cloner according to Kind.
type Step struct {
	Name  string
	Kind  StageKind
	Stage interface{}
}

// Pipeline is an ordered list of stages. The fitted parameters of every
// stage belong to this instance; Clone returns an unfitted copy.
type Pipeline struct {
	state  *model.StateManager
	logger log.Logger

	steps []Step
}

// Fit fits each stage on the output of the previous one. The pipeline is
// unfitted until every stage succeeds, so a failed refit never leaves a
// mix of old and new stages usable for prediction.
func (p *Pipeline) Fit(X, y mat.Matrix) error {
	p.state.Reset()
	Xt := X
	var err error
	for _, step := range p.steps {
		switch stage := step.Stage.(type) {
		case preprocessing.Scaler:
			if Xt, err = stage.FitTransform(Xt); err != nil {
				return errors.Wrapf(err, "failed to fit step '%s'", step.Name)
			}
		case feature_selection.Selector:
			if err = stage.Fit(Xt, y); err != nil {
				return errors.Wrapf(err, "failed to fit step '%s'", step.Name)
			}
			if Xt, err = stage.Transform(Xt); err != nil {
				return errors.Wrapf(err, "failed to transform at step '%s'", step.Name)
			}
		case model.Cloner:
			if err = stage.Fit(Xt, y); err != nil {
				return errors.Wrapf(err, "failed to fit final step '%s'", step.Name)
			}
		}
	}
	n, cols := X.Dims()
	p.state.SetDimensions(cols, n)
	p.state.SetFitted()
	p.logger.Debug("pipeline fitted",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, cols,
		log.ModelNameKey, p.Name(),
	)
	return nil
}

// transform runs X through every stage before the estimator.
func (p *Pipeline) transform(X mat.Matrix) (mat.Matrix, error) {
	_, cols := X.Dims()
	if err := p.state.CheckFeatures("Pipeline.Predict", cols); err != nil {
		return nil, err
	}
	Xt := X
	var err error
	for _, step := range p.steps[:len(p.steps)-1] {
		switch stage := step.Stage.(type) {
		case preprocessing.Scaler:
			Xt, err = stage.Transform(Xt)
		case feature_selection.Selector:
			Xt, err = stage.Transform(Xt)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "failed to transform at step '%s'", step.Name)
		}
	}
	return Xt, nil
}

// Predict transforms X and predicts with the final estimator.
func (p *Pipeline) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := p.state.RequireFitted("Pipeline", "Predict"); err != nil {
		return nil, err
	}
	Xt, err := p.transform(X)
	if err != nil {
		return nil, err
	}
	return p.Estimator().Predict(Xt)
}

// PredictProba transforms X and returns the final estimator's probabilities.
func (p *Pipeline) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := p.state.RequireFitted("Pipeline", "PredictProba"); err != nil {
		return nil, err
	}
	pe, ok := p.Estimator().(model.ProbabilityEstimator)
	if !ok {
		return nil, errors.NewIncompatibleMemberError("Pipeline", p.steps[len(p.steps)-1].Name, "PredictProba")
	}
	Xt, err := p.transform(X)
	if err != nil {
		return nil, err
	}
	return pe.PredictProba(Xt)
}

// Estimator returns the final estimator.
func (p *Pipeline) Estimator() model.Estimator {
	return p.steps[len(p.steps)-1].Stage.(model.Cloner)
}

// Ranking returns the selector's ranking, or nil without a fitted selector.
func (p *Pipeline) Ranking() *feature_selection.FeatureRanking {
	for _, step := range p.steps {
		if sel, ok := step.Stage.(feature_selection.Selector); ok {
			return sel.Ranking()
		}
	}
	return nil
}

// Steps returns the pipeline's steps.
func (p *Pipeline) Steps() []Step {
	return append([]Step(nil), p.steps...)
}

// IsFitted reports whether Fit has completed.
func (p *Pipeline) IsFitted() bool { return p.state.IsFitted() }

// Clone returns an unfitted pipeline whose stages are fresh copies.
func (p *Pipeline) Clone() model.Estimator {
	steps := make([]Step, len(p.steps))
	for i, step := range p.steps {
		steps[i] = Step{Name: step.Name, Kind: step.Kind}
		switch stage := step.Stage.(type) {
		case preprocessing.Scaler:
			steps[i].Stage = stage.CloneScaler()
		case feature_selection.Selector:
			steps[i].Stage = stage.CloneSelector()
		case model.Cloner:
			steps[i].Stage = stage.Clone()
		}
	}
	return &Pipeline{state: model.NewStateManager(), logger: p.logger, steps: steps}
}

// Name joins the step names, e.g. "scaler|rfe|voting".
func (p *Pipeline) Name() string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name
	}
	return strings.Join(names, "|")
}

// GetParams returns the parameters of every parameterised stage keyed as
// "step__param".
func (p *Pipeline) GetParams() map[string]interface{} {
	out := make(map[string]interface{})
	for _, step := range p.steps {
		g, ok := step.Stage.(model.ParameterGetter)
		if !ok {
			continue
		}
		for k, v := range g.GetParams() {
			out[step.Name+"__"+k] = v
		}
	}
	return out
}

// SetParams routes "step__param" keys to the named stage.
func (p *Pipeline) SetParams(params map[string]interface{}) error {
	grouped := make(map[string]map[string]interface{})
	for key, v := range params {
		name, param, ok := strings.Cut(key, "__")
		if !ok {
			return errors.NewInvalidConfigurationError("Pipeline", key, "expected step__param", v)
		}
		if grouped[name] == nil {
			grouped[name] = make(map[string]interface{})
		}
		grouped[name][param] = v
	}
	for name, sub := range grouped {
		step, ok := p.step(name)
		if !ok {
			return errors.NewInvalidConfigurationError("Pipeline", name, "unknown step", nil)
		}
		s, ok := step.Stage.(model.ParameterSetter)
		if !ok {
			return errors.NewInvalidConfigurationError("Pipeline", name, "step has no settable parameters", nil)
		}
		if err := s.SetParams(sub); err != nil {
			return errors.Wrapf(err, "failed to set parameters of step '%s'", name)
		}
	}
	p.state.Reset()
	return nil
}

func (p *Pipeline) step(name string) (Step, bool) {
	for _, s := range p.steps {
		if s.Name == name {
			return s, true
		}
	}
	return Step{}, false
}
