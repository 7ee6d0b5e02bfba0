package experiment

import (
	"context"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/ensemblecv/core/model"
	"github.com/YuminosukeSato/ensemblecv/metrics"
	"github.com/YuminosukeSato/ensemblecv/pipeline"
	"github.com/YuminosukeSato/ensemblecv/pkg/errors"
	"github.com/YuminosukeSato/ensemblecv/preprocessing"
	"github.com/YuminosukeSato/ensemblecv/sklearn/ensemble"
	"github.com/YuminosukeSato/ensemblecv/sklearn/feature_selection"
	"github.com/YuminosukeSato/ensemblecv/sklearn/model_selection"
)

// FitSelector ranks the columns of X by recursive feature elimination with
// base, removing one feature per round until target remain. target must
// lie in [1, P].
func FitSelector(X, y mat.Matrix, base model.Cloner, target int) (*feature_selection.FeatureRanking, error) {
	return fitSelector(X, y, base, target, 1, nil)
}

func fitSelector(X, y mat.Matrix, base model.Cloner, target, step int, names []string) (*feature_selection.FeatureRanking, error) {
	_, p := X.Dims()
	if target < 1 || target > p {
		return nil, errors.NewInvalidConfigurationError("FitSelector", "target", "must be between 1 and the number of features", target)
	}
	rfe, err := feature_selection.NewRFE(base, target, step)
	if err != nil {
		return nil, err
	}
	return rfe.Select(X, y, names)
}

// newRFE returns an unfitted RFE stage backed by the configured forest.
func newRFE(cfg SelectionConfig, target int) (*feature_selection.RFE, error) {
	forest := ensemble.NewRandomForestClassifier(
		ensemble.WithTrees(cfg.Trees),
		ensemble.WithForestSeed(cfg.Seed),
	)
	return feature_selection.NewRFE(forest, target, cfg.Step)
}

// BuildPipeline assembles scaler → selector → ensemble. A nil ranking
// leaves out the selector stage; otherwise its selected columns are kept.
func BuildPipeline(scaler preprocessing.ScalerConfig, ranking *feature_selection.FeatureRanking, kind Kind, params Params) (*pipeline.Pipeline, error) {
	var selector feature_selection.Selector
	if ranking != nil {
		mask, err := feature_selection.NewMask(ranking)
		if err != nil {
			return nil, err
		}
		selector = mask
	}
	return assemble(string(kind), scaler, selector, kind, params)
}

func assemble(name string, scalerCfg preprocessing.ScalerConfig, selector feature_selection.Selector, kind Kind, params Params) (*pipeline.Pipeline, error) {
	scaler, err := preprocessing.NewScaler(scalerCfg)
	if err != nil {
		return nil, err
	}
	est, err := NewEnsemble(kind, params)
	if err != nil {
		return nil, err
	}
	return pipeline.NewBuilder().
		Scaler("scaler", scaler).
		Selector("selector", selector).
		Estimator(name, est).
		Build()
}

// SearchRequest describes a grid search over one ensemble family. Params
// are fixed values merged under every grid combination. When Selector is
// set each unit fits its own clone of it.
type SearchRequest struct {
	Name     string
	Kind     Kind
	Grid     model_selection.ParamGrid
	Params   Params
	Scaler   preprocessing.ScalerConfig
	Selector feature_selection.Selector
	Folds    int
	Seed     uint64
	Scoring  string
	Workers  int
	Stratify bool
}

// Search runs the grid search described by req and refits the best
// pipeline on all of X.
func Search(ctx context.Context, req SearchRequest, X, y mat.Matrix) (*model_selection.SearchResult, error) {
	name := req.Name
	if name == "" {
		name = string(req.Kind)
	}
	factory := func(p Params) (model.Estimator, error) {
		merged := req.Params.Clone()
		for k, v := range p {
			merged[k] = v
		}
		var selector feature_selection.Selector
		if req.Selector != nil {
			selector = req.Selector.CloneSelector()
		}
		return assemble(name, req.Scaler, selector, req.Kind, merged)
	}
	gs := model_selection.NewGridSearch(factory, req.Grid, req.Folds, req.Seed, req.Scoring)
	gs.Workers = req.Workers
	if req.Stratify {
		gs.Splitter = model_selection.NewStratifiedKFold(req.Folds, true, req.Seed)
	}
	res, err := gs.Search(ctx, X, y)
	if err != nil {
		return nil, errors.Wrapf(err, "search %s", name)
	}
	return res, nil
}

// SearchHyperparameters tunes an ensemble family on standardized X by
// k-fold accuracy and returns the best combination.
func SearchHyperparameters(ctx context.Context, kind Kind, grid model_selection.ParamGrid, X, y mat.Matrix, k int, seed uint64) (Params, error) {
	res, err := Search(ctx, SearchRequest{
		Kind:    kind,
		Grid:    grid,
		Scaler:  preprocessing.ScalerConfig{Kind: preprocessing.KindStandard},
		Folds:   k,
		Seed:    seed,
		Scoring: "accuracy",
	}, X, y)
	if err != nil {
		return nil, err
	}
	return res.BestParams, nil
}

// CrossValidate scores clones of p on shuffled k-fold splits. Records are
// named after the pipeline's final step.
func CrossValidate(ctx context.Context, p *pipeline.Pipeline, X, y mat.Matrix, k int, seed uint64, scoring string) ([]model_selection.ScoreRecord, error) {
	cv := model_selection.NewCrossValidator(k, seed, scoring)
	return cv.Evaluate(ctx, finalName(p), p, X, y)
}

// EvaluateHoldout predicts the held-out samples with a fitted pipeline and
// builds the metrics report, including ROC and DET curves when the final
// estimator reports probabilities.
func EvaluateHoldout(p *pipeline.Pipeline, X, y mat.Matrix) (*metrics.Report, error) {
	return evaluate(finalName(p), p, model.SupportsProba(p.Estimator()), X, y)
}

func evaluate(name string, est model.Estimator, withProba bool, X, y mat.Matrix) (*metrics.Report, error) {
	yTrue, err := model.Labels("EvaluateHoldout", y)
	if err != nil {
		return nil, err
	}
	pred, err := est.Predict(X)
	if err != nil {
		return nil, errors.Wrapf(err, "predict holdout with %s", name)
	}
	yPred, err := model.Labels("EvaluateHoldout", pred)
	if err != nil {
		return nil, err
	}
	var proba []float64
	if pe, ok := est.(model.ProbabilityEstimator); ok && withProba {
		pm, err := pe.PredictProba(X)
		if err != nil {
			return nil, errors.Wrapf(err, "predict holdout probabilities with %s", name)
		}
		proba = mat.Col(nil, 1, pm)
	}
	return metrics.NewReport(name, yTrue, yPred, proba)
}

func finalName(p *pipeline.Pipeline) string {
	steps := p.Steps()
	return steps[len(steps)-1].Name
}
