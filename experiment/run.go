package experiment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/YuminosukeSato/ensemblecv/dataset"
	"github.com/YuminosukeSato/ensemblecv/metrics"
	"github.com/YuminosukeSato/ensemblecv/pkg/errors"
	"github.com/YuminosukeSato/ensemblecv/pkg/log"
	"github.com/YuminosukeSato/ensemblecv/report"
	"github.com/YuminosukeSato/ensemblecv/sklearn/ensemble"
	"github.com/YuminosukeSato/ensemblecv/sklearn/feature_selection"
	"github.com/YuminosukeSato/ensemblecv/sklearn/model_selection"
)

// Result collects everything a study produces.
type Result struct {
	RunID      string
	Config     Config
	Train      *dataset.Dataset
	Test       *dataset.Dataset
	Ranking    *feature_selection.FeatureRanking
	Searches   map[string]*model_selection.SearchResult
	Reports    map[string]*metrics.Report
	Comparison *report.Comparison
	Baseline   *Baseline
}

// Baseline compares a random forest on every feature with the same forest
// on the RFE-selected features, both scored on the holdout split.
type Baseline struct {
	AllFeatures *metrics.Report
	Selected    *metrics.Report
}

// Run executes the study and returns the comparison ranked by mean
// cross-validated score.
func Run(ctx context.Context, cfg Config, ds *dataset.Dataset) (*report.Comparison, error) {
	res, err := Execute(ctx, cfg, ds)
	if err != nil {
		return nil, err
	}
	return res.Comparison, nil
}

// Execute runs the study:
//
//  1. split ds into train and holdout
//  2. rank the training features with RFE
//  3. per family: tune on train, fit on train, score the holdout and
//     cross-validate on train
//  4. optionally compare the random forest baseline with and without RFE
func Execute(ctx context.Context, cfg Config, ds *dataset.Dataset) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if ds == nil {
		return nil, errors.Wrap(errors.ErrEmptyData, "experiment.Execute")
	}
	res := &Result{
		RunID:    uuid.NewString(),
		Config:   cfg,
		Searches: make(map[string]*model_selection.SearchResult),
		Reports:  make(map[string]*metrics.Report),
	}
	logger := log.GetLoggerWithName("experiment").With(log.RunIDKey, res.RunID)
	start := time.Now()

	trainIdx, testIdx, err := model_selection.TrainTestSplit(ds.Labels(), cfg.TestSize, cfg.Seed, cfg.Stratify)
	if err != nil {
		return nil, err
	}
	if res.Train, err = ds.Subset(trainIdx); err != nil {
		return nil, err
	}
	if res.Test, err = ds.Subset(testIdx); err != nil {
		return nil, err
	}
	logger.Info("holdout split",
		log.SamplesKey, len(trainIdx),
		"holdout.samples", len(testIdx),
		log.RandomSeedKey, cfg.Seed,
	)

	_, p := res.Train.Dims()
	target := cfg.Selection.Target
	if target == 0 {
		target = max(p/2, 1)
	}
	forest := ensemble.NewRandomForestClassifier(
		ensemble.WithTrees(cfg.Selection.Trees),
		ensemble.WithForestSeed(cfg.Selection.Seed),
	)
	res.Ranking, err = fitSelector(res.Train.X(), res.Train.Y(), forest, target, cfg.Selection.Step, res.Train.Names())
	if err != nil {
		return nil, errors.Wrap(err, "select features")
	}
	logger.Info("features ranked", log.SelectedKey, res.Ranking.SelectedNames())

	var records []model_selection.ScoreRecord
	params := make(map[string]string, len(cfg.Families))
	for _, fam := range cfg.Families {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		famRecords, err := res.runFamily(ctx, fam, target, logger)
		if err != nil {
			return nil, errors.Wrapf(err, "family %s", fam.Name)
		}
		records = append(records, famRecords...)
		if s, ok := res.Searches[fam.Name]; ok {
			params[fam.Name] = s.BestParams.String()
		} else {
			params[fam.Name] = model_selection.FormatParams(fam.Params)
		}
	}

	res.Comparison, err = report.NewComparison(records,
		report.WithRunID(res.RunID),
		report.WithHoldout(res.Reports),
		report.WithParams(params),
	)
	if err != nil {
		return nil, err
	}

	if cfg.Baseline {
		if res.Baseline, err = BaselineComparison(res.Train, res.Test, res.Ranking, cfg.Selection.Trees, cfg.Selection.Seed); err != nil {
			return nil, errors.Wrap(err, "baseline")
		}
	}

	best := res.Comparison.Best()
	logger.Info("study finished",
		log.ModelNameKey, best.Model,
		log.MetricKey, best.Metric,
		log.ScoreKey, best.Mean,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return res, nil
}

// selector returns the selection stage for one family pipeline: a fresh
// RFE when selection runs per fold, the training ranking otherwise.
func (res *Result) selector(target int) (feature_selection.Selector, error) {
	if res.Config.Selection.PerFold {
		return newRFE(res.Config.Selection, target)
	}
	return feature_selection.NewMask(res.Ranking)
}

func (res *Result) runFamily(ctx context.Context, fam FamilyConfig, target int, logger log.Logger) ([]model_selection.ScoreRecord, error) {
	cfg := res.Config
	selector, err := res.selector(target)
	if err != nil {
		return nil, err
	}
	Xtrain, ytrain := res.Train.X(), res.Train.Y()

	params := fam.Params.Clone()
	if cfg.Search && len(fam.Grid) > 0 {
		// Tuning reuses the training ranking; per-fold selection applies to
		// the final cross-validation only.
		mask, err := feature_selection.NewMask(res.Ranking)
		if err != nil {
			return nil, err
		}
		search, err := Search(ctx, SearchRequest{
			Name:     fam.Name,
			Kind:     fam.Kind,
			Grid:     fam.Grid,
			Params:   fam.Params,
			Scaler:   cfg.Scaler,
			Selector: mask,
			Folds:    cfg.SearchFolds,
			Seed:     cfg.Seed,
			Scoring:  cfg.SearchScoring,
			Workers:  cfg.Workers,
			Stratify: cfg.Stratify,
		}, Xtrain, ytrain)
		if err != nil {
			return nil, err
		}
		res.Searches[fam.Name] = search
		for k, v := range search.BestParams {
			params[k] = v
		}
		logger.Info("hyperparameters selected",
			log.ModelNameKey, fam.Name,
			log.ParamsKey, search.BestParams.String(),
			log.ScoreKey, search.BestScore,
		)
	}

	p, err := assemble(fam.Name, cfg.Scaler, selector.CloneSelector(), fam.Kind, params)
	if err != nil {
		return nil, err
	}
	if err := p.Fit(Xtrain, ytrain); err != nil {
		return nil, errors.Wrap(err, "fit on training split")
	}
	rep, err := EvaluateHoldout(p, res.Test.X(), res.Test.Y())
	if err != nil {
		return nil, err
	}
	res.Reports[fam.Name] = rep

	cv := model_selection.NewCrossValidator(cfg.Folds, cfg.Seed, cfg.Scoring)
	cv.Workers = cfg.Workers
	if cfg.Stratify {
		cv.Splitter = model_selection.NewStratifiedKFold(cfg.Folds, true, cfg.Seed)
	}
	records, err := cv.Evaluate(ctx, fam.Name, p, Xtrain, ytrain)
	if err != nil {
		return nil, err
	}
	logger.Info("family evaluated",
		log.ModelNameKey, fam.Name,
		log.F1Key, rep.F1,
		log.AccuracyKey, rep.Accuracy,
	)
	return records, nil
}

// BaselineComparison fits a random forest on all training features and on
// the features selected by ranking, and scores both on test.
func BaselineComparison(train, test *dataset.Dataset, ranking *feature_selection.FeatureRanking, trees int, seed uint64) (*Baseline, error) {
	forest := ensemble.NewRandomForestClassifier(ensemble.WithTrees(trees), ensemble.WithForestSeed(seed))
	if err := forest.Fit(train.X(), train.Y()); err != nil {
		return nil, err
	}
	all, err := evaluate("forest_all_features", forest, true, test.X(), test.Y())
	if err != nil {
		return nil, err
	}

	cols := ranking.Columns()
	trainSel, err := train.SelectColumns(cols)
	if err != nil {
		return nil, err
	}
	testSel, err := test.SelectColumns(cols)
	if err != nil {
		return nil, err
	}
	selectedForest := forest.Clone()
	if err := selectedForest.Fit(trainSel.X(), trainSel.Y()); err != nil {
		return nil, err
	}
	selected, err := evaluate("forest_rfe_features", selectedForest, true, testSel.X(), testSel.Y())
	if err != nil {
		return nil, err
	}
	return &Baseline{AllFeatures: all, Selected: selected}, nil
}
