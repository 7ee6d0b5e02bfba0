package experiment

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/ensemblecv/dataset"
	"github.com/YuminosukeSato/ensemblecv/pkg/errors"
	"github.com/YuminosukeSato/ensemblecv/preprocessing"
	"github.com/YuminosukeSato/ensemblecv/sklearn/ensemble"
	"github.com/YuminosukeSato/ensemblecv/sklearn/model_selection"
)

func synthetic(t *testing.T) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.MakeClassification(dataset.SyntheticConfig{
		NSamples: 120, NFeatures: 6, NInformative: 3, Separation: 3, Seed: 11,
	})
	require.NoError(t, err)
	return ds
}

// smallConfig keeps every stage but shrinks folds, forests and grids.
func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.Folds = 3
	cfg.SearchFolds = 3
	cfg.Selection.Trees = 10
	cfg.Families = []FamilyConfig{
		{
			Name: "voting",
			Kind: KindVoting,
			Grid: model_selection.ParamGrid{{Name: "knn__n_neighbors", Values: []any{3, 7}}},
		},
		{
			Name:   "bagging",
			Kind:   KindBagging,
			Params: Params{"n_estimators": 3, "estimator__gamma": 0.1},
		},
		{
			Name:   "boosting",
			Kind:   KindBoosting,
			Params: Params{"n_estimators": 10},
			Grid:   model_selection.ParamGrid{{Name: "learning_rate", Values: []any{0.1, 0.3}}},
		},
	}
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, uint64(1), cfg.Seed)
	assert.Equal(t, 0.25, cfg.TestSize)
	assert.Equal(t, 10, cfg.Folds)
	assert.Equal(t, "f1", cfg.Scoring)
	assert.Len(t, cfg.Families, 3)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"test size", func(c *Config) { c.TestSize = 1 }},
		{"folds", func(c *Config) { c.Folds = 1 }},
		{"search folds", func(c *Config) { c.SearchFolds = 0 }},
		{"negative target", func(c *Config) { c.Selection.Target = -1 }},
		{"step", func(c *Config) { c.Selection.Step = 0 }},
		{"no families", func(c *Config) { c.Families = nil }},
		{"unknown kind", func(c *Config) { c.Families[0].Kind = "stacking" }},
		{"duplicate family", func(c *Config) { c.Families[1].Name = c.Families[0].Name }},
		{"unknown param", func(c *Config) { c.Families[2].Params = Params{"depth": 3} }},
		{"bad param type", func(c *Config) { c.Families[2].Params = Params{"learning_rate": "fast"} }},
		{"scaler", func(c *Config) { c.Scaler.Kind = "robust" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsInvalidConfiguration(err), "%+v", err)
		})
	}

	t.Run("unknown scorer", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Scoring = "mcc"
		assert.Error(t, cfg.Validate())
	})

	t.Run("empty grid axis", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Families[0].Grid = model_selection.ParamGrid{{Name: "knn__n_neighbors"}}
		err := cfg.Validate()
		assert.True(t, errors.IsInvalidConfiguration(err))
		assert.True(t, errors.Is(err, errors.ErrEmptyGrid))
	})
}

func TestParseConfig(t *testing.T) {
	doc := `
seed: 7
folds: 5
selection:
  target: 4
  step: 2
  trees: 20
  seed: 3
families:
  - name: svm-bag
    kind: bagging
    params:
      estimator__C: 10
      n_estimators: 4
    grid:
      - name: estimator__gamma
        values: [1, 0.1]
`
	cfg, err := ParseConfig(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, uint64(7), cfg.Seed)
	assert.Equal(t, 5, cfg.Folds)
	assert.Equal(t, 0.25, cfg.TestSize)
	assert.Equal(t, SelectionConfig{Target: 4, Step: 2, Trees: 20, Seed: 3, PerFold: true}, cfg.Selection)
	require.Len(t, cfg.Families, 1)
	assert.Equal(t, KindBagging, cfg.Families[0].Kind)
	assert.Equal(t, 2, cfg.Families[0].Grid.Size())

	est, err := NewEnsemble(cfg.Families[0].Kind, cfg.Families[0].Params)
	require.NoError(t, err)
	params := est.(*ensemble.BaggingClassifier).GetParams()
	assert.Equal(t, 10.0, params["estimator__C"])
	assert.Equal(t, 4, params["n_estimators"])

	_, err = ParseConfig(strings.NewReader("seeds: 3\n"))
	assert.Error(t, err)

	// Without a families list the defaults are kept.
	cfg, err = ParseConfig(strings.NewReader("folds: 4\n"))
	require.NoError(t, err)
	assert.Len(t, cfg.Families, 3)

	var buf strings.Builder
	require.NoError(t, WriteConfig(&buf, cfg))
	again, err := ParseConfig(strings.NewReader(buf.String()))
	require.NoError(t, err)
	assert.Equal(t, cfg.Folds, again.Folds)
	assert.Equal(t, len(cfg.Families), len(again.Families))
}

func TestNewEnsemble_ConformsNumericTypes(t *testing.T) {
	est, err := NewEnsemble(KindBoosting, Params{"n_estimators": 50.0, "learning_rate": 1, "random_state": 9})
	require.NoError(t, err)
	params := est.(*ensemble.GradientBoostingClassifier).GetParams()
	assert.Equal(t, 50, params["n_estimators"])
	assert.Equal(t, 1.0, params["learning_rate"])
	assert.Equal(t, uint64(9), params["random_state"])

	est, err = NewEnsemble(KindVoting, Params{"knn__n_neighbors": 7.0})
	require.NoError(t, err)
	assert.Equal(t, 7, est.(*ensemble.VotingClassifier).GetParams()["knn__n_neighbors"])

	_, err = NewEnsemble(KindBoosting, Params{"n_estimators": 2.5})
	assert.True(t, errors.IsInvalidConfiguration(err))
	_, err = NewEnsemble(KindBoosting, Params{"learning_rate": 0.0})
	assert.True(t, errors.IsInvalidConfiguration(err))
	_, err = NewEnsemble("stacking", nil)
	assert.True(t, errors.IsInvalidConfiguration(err))
}

func TestNewEnsemble_StudyDefaults(t *testing.T) {
	est, err := NewEnsemble(KindBoosting, nil)
	require.NoError(t, err)
	params := est.(*ensemble.GradientBoostingClassifier).GetParams()
	assert.Equal(t, 0.02, params["learning_rate"])
	assert.Equal(t, 100, params["n_estimators"])
	assert.Equal(t, 6, params["max_depth"])
	assert.Equal(t, 1.0, params["min_child_weight"])

	// The bare constructor keeps its own, shallower defaults.
	bare := ensemble.NewGradientBoostingClassifier().GetParams()
	assert.Equal(t, 0.1, bare["learning_rate"])
	assert.Equal(t, 3, bare["max_depth"])

	est, err = NewEnsemble(KindVoting, Params{"dt__criterion": "entropy"})
	require.NoError(t, err)
	voting := est.(*ensemble.VotingClassifier).GetParams()
	assert.Equal(t, "entropy", voting["dt__criterion"])
	assert.Equal(t, 4, voting["dt__max_depth"])
	assert.Equal(t, 14, voting["knn__n_neighbors"])
}

func TestFitSelector(t *testing.T) {
	ds := synthetic(t)
	forest := ensemble.NewRandomForestClassifier(ensemble.WithTrees(10))

	ranking, err := FitSelector(ds.X(), ds.Y(), forest, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, ranking.NSelected())
	assert.ElementsMatch(t, []int{1, 2, 3, 4, 5, 6}, ranking.Ranking)

	for _, target := range []int{0, -1, 7} {
		_, err := FitSelector(ds.X(), ds.Y(), forest, target)
		assert.True(t, errors.IsInvalidConfiguration(err), "target %d", target)
	}
}

func TestBuildPipeline(t *testing.T) {
	ds := synthetic(t)
	ranking, err := FitSelector(ds.X(), ds.Y(), ensemble.NewRandomForestClassifier(ensemble.WithTrees(5)), 3)
	require.NoError(t, err)

	p, err := BuildPipeline(preprocessing.ScalerConfig{Kind: "standard"}, ranking, KindVoting, nil)
	require.NoError(t, err)
	assert.Equal(t, "scaler|selector|voting", p.Name())
	require.NoError(t, p.Fit(ds.X(), ds.Y()))
	assert.Equal(t, ranking.SelectedNames(), p.Ranking().SelectedNames())

	p, err = BuildPipeline(preprocessing.ScalerConfig{Kind: "none"}, nil, KindBoosting, Params{"n_estimators": 5})
	require.NoError(t, err)
	assert.Len(t, p.Steps(), 1)

	_, err = BuildPipeline(preprocessing.ScalerConfig{}, nil, KindBagging, Params{"estimator__kernel": "poly"})
	assert.True(t, errors.IsInvalidConfiguration(err))
}

func TestSearchHyperparameters(t *testing.T) {
	ds := synthetic(t)
	grid := model_selection.ParamGrid{
		{Name: "learning_rate", Values: []any{0.1, 0.5}},
		{Name: "n_estimators", Values: []any{5}},
	}
	best, err := SearchHyperparameters(context.Background(), KindBoosting, grid, ds.X(), ds.Y(), 3, 1)
	require.NoError(t, err)
	assert.Contains(t, []any{0.1, 0.5}, best["learning_rate"])
	assert.Equal(t, 5, best["n_estimators"])

	_, err = SearchHyperparameters(context.Background(), KindBoosting, model_selection.ParamGrid{}, ds.X(), ds.Y(), 3, 1)
	assert.True(t, errors.IsInvalidConfiguration(err))
}

func TestCrossValidateAndHoldout(t *testing.T) {
	ds := synthetic(t)
	p, err := BuildPipeline(preprocessing.ScalerConfig{}, nil, KindVoting, nil)
	require.NoError(t, err)

	records, err := CrossValidate(context.Background(), p, ds.X(), ds.Y(), 5, 1, "f1")
	require.NoError(t, err)
	require.Len(t, records, 5)
	for i, r := range records {
		assert.Equal(t, "voting", r.Model)
		assert.Equal(t, i, r.Fold)
		assert.Equal(t, "f1", r.Metric)
	}
	assert.False(t, p.IsFitted(), "cross-validation fits clones only")

	train, test, err := model_selection.TrainTestSplit(ds.Labels(), 0.25, 1, true)
	require.NoError(t, err)
	trainDS, err := ds.Subset(train)
	require.NoError(t, err)
	testDS, err := ds.Subset(test)
	require.NoError(t, err)

	require.NoError(t, p.Fit(trainDS.X(), trainDS.Y()))
	rep, err := EvaluateHoldout(p, testDS.X(), testDS.Y())
	require.NoError(t, err)
	cm := rep.Confusion
	assert.Equal(t, len(test), cm.TP+cm.TN+cm.FP+cm.FN)
	require.NotNil(t, rep.ROC)
	require.NotNil(t, rep.DET)
	assert.Greater(t, rep.AUC, 0.8)
}

func TestExecute(t *testing.T) {
	ds := synthetic(t)
	res, err := Execute(context.Background(), smallConfig(), ds)
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Len(t, res.Train.Labels(), 90)
	assert.Len(t, res.Test.Labels(), 30)
	assert.Equal(t, 3, res.Ranking.NSelected())

	assert.Contains(t, res.Searches, "voting")
	assert.Contains(t, res.Searches, "boosting")
	assert.NotContains(t, res.Searches, "bagging")

	c := res.Comparison
	require.Len(t, c.Rows, 3)
	assert.Len(t, c.Records, 9)
	for i, row := range c.Rows {
		assert.Equal(t, i+1, row.Rank)
		assert.Equal(t, 3, row.Folds)
		if i > 0 {
			assert.GreaterOrEqual(t, c.Rows[i-1].Mean, row.Mean)
		}
		assert.Contains(t, res.Reports, row.Model)
		assert.NotEmpty(t, row.Params)
	}

	require.NotNil(t, res.Baseline)
	assert.Equal(t, 30, res.Baseline.AllFeatures.Confusion.TP+res.Baseline.AllFeatures.Confusion.TN+
		res.Baseline.AllFeatures.Confusion.FP+res.Baseline.AllFeatures.Confusion.FN)
	assert.NotNil(t, res.Baseline.Selected)
}

func TestRun_FixedMaskAndCancellation(t *testing.T) {
	ds := synthetic(t)
	cfg := smallConfig()
	cfg.Search = false
	cfg.Baseline = false
	cfg.Selection.PerFold = false
	cfg.Selection.Target = 2

	c, err := Run(context.Background(), cfg, ds)
	require.NoError(t, err)
	assert.Len(t, c.Rows, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Run(ctx, cfg, ds)
	assert.Error(t, err)
}
