package model_selection

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/ensemblecv/core/model"
	"github.com/YuminosukeSato/ensemblecv/core/parallel"
	"github.com/YuminosukeSato/ensemblecv/pkg/errors"
	"github.com/YuminosukeSato/ensemblecv/pkg/log"
)

// ScoreRecord is one (model, fold, metric) score.
type ScoreRecord struct {
	Model  string  `csv:"model" yaml:"model"`
	Fold   int     `csv:"fold" yaml:"fold"`
	Metric string  `csv:"metric" yaml:"metric"`
	Value  float64 `csv:"value" yaml:"value"`
}

// ScoreSummary aggregates the records of one model and metric.
type ScoreSummary struct {
	Model  string
	Metric string
	Mean   float64
	Std    float64
	Scores []float64
}

// CrossValidator scores clones of a template on every fold of a Splitter.
// Folds are evaluated concurrently and returned in fold order.
type CrossValidator struct {
	Splitter Splitter
	Scoring  string
	Workers  int
	Logger   log.Logger
}

// NewCrossValidator returns a validator using shuffled KFold(k, seed).
func NewCrossValidator(k int, seed uint64, scoring string) *CrossValidator {
	return &CrossValidator{
		Splitter: NewKFold(k, true, seed),
		Scoring:  scoring,
		Logger:   log.GetLoggerWithName("CrossValidator"),
	}
}

// Evaluate fits a fresh clone of template on each fold's training rows
// and scores it on the fold's test rows. The first failing fold aborts the
// evaluation; its error names the fold.
func (cv *CrossValidator) Evaluate(ctx context.Context, name string, template model.Cloner, X, y mat.Matrix) ([]ScoreRecord, error) {
	scorer, err := GetScorer(cv.Scoring)
	if err != nil {
		return nil, err
	}
	n, _, labels, err := model.CheckXY("CrossValidator.Evaluate", X, y)
	if err != nil {
		return nil, err
	}
	folds, err := cv.Splitter.Split(labels)
	if err != nil {
		return nil, err
	}
	params := describeParams(template)
	if err := checkFolds(folds, labels, params); err != nil {
		return nil, err
	}

	logger := cv.Logger
	if logger == nil {
		logger = log.GetLoggerWithName("CrossValidator")
	}
	logger = logger.With(log.ModelNameKey, name, log.MetricKey, scorer.Name)
	start := time.Now()

	records, err := parallel.Map(ctx, len(folds), cv.Workers, func(ctx context.Context, i int) (ScoreRecord, error) {
		fold := folds[i]
		value, err := fitAndScore(template.Clone(), scorer, X, labels, fold)
		if err != nil {
			return ScoreRecord{}, errors.Wrapf(err, "model %s fold %d", name, fold.ID)
		}
		logger.Debug("fold scored", log.FoldKey, fold.ID, log.ScoreKey, value)
		return ScoreRecord{Model: name, Fold: fold.ID, Metric: scorer.Name, Value: value}, nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("cross-validation finished",
		log.OperationKey, log.OperationEvaluate,
		log.NFoldsKey, len(folds),
		log.SamplesKey, n,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return records, nil
}

// fitAndScore fits an unfitted estimator on the fold's training rows and
// scores it on the test rows.
func fitAndScore(est model.Estimator, scorer Scorer, X mat.Matrix, labels []int, fold Fold) (float64, error) {
	if err := est.Fit(takeRows(X, fold.TrainIndices), labelRows(labels, fold.TrainIndices)); err != nil {
		return 0, err
	}
	yTest := make([]int, len(fold.TestIndices))
	for k, idx := range fold.TestIndices {
		yTest[k] = labels[idx]
	}
	return scorer.Score(est, takeRows(X, fold.TestIndices), yTest)
}

// checkFolds returns a DegenerateFoldError for the first fold whose train
// or test part lacks a class.
func checkFolds(folds []Fold, labels []int, params string) error {
	for _, fold := range folds {
		for _, part := range []struct {
			name    string
			indices []int
		}{{"train", fold.TrainIndices}, {"test", fold.TestIndices}} {
			var counts [2]int
			for _, idx := range part.indices {
				counts[labels[idx]]++
			}
			for class, c := range counts {
				if c == 0 {
					return errors.NewDegenerateFoldError(fold.ID, part.name, class, params)
				}
			}
		}
	}
	return nil
}

// Summarize groups records by model and metric, in first-seen order, and
// reports the mean and sample standard deviation of each group.
func Summarize(records []ScoreRecord) []ScoreSummary {
	type key struct{ model, metric string }
	var order []key
	groups := make(map[key][]ScoreRecord)
	for _, r := range records {
		k := key{r.Model, r.Metric}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], r)
	}

	summaries := make([]ScoreSummary, 0, len(order))
	for _, k := range order {
		group := groups[k]
		sort.SliceStable(group, func(a, b int) bool { return group[a].Fold < group[b].Fold })
		scores := make([]float64, len(group))
		for i, r := range group {
			scores[i] = r.Value
		}
		mean, std := stat.MeanStdDev(scores, nil)
		if len(scores) < 2 {
			std = 0
		}
		summaries = append(summaries, ScoreSummary{Model: k.model, Metric: k.metric, Mean: mean, Std: std, Scores: scores})
	}
	return summaries
}

func describeParams(est interface{}) string {
	if g, ok := est.(model.ParameterGetter); ok {
		return FormatParams(g.GetParams())
	}
	return model.NameOf(est)
}

// FormatParams renders a parameter map with sorted keys.
func FormatParams(params map[string]interface{}) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s:%v", k, params[k])
	}
	b.WriteByte('}')
	return b.String()
}

func takeRows(X mat.Matrix, rows []int) *mat.Dense {
	_, p := X.Dims()
	out := mat.NewDense(len(rows), p, nil)
	for i, r := range rows {
		for j := 0; j < p; j++ {
			out.Set(i, j, X.At(r, j))
		}
	}
	return out
}

func labelRows(labels []int, rows []int) *mat.Dense {
	out := mat.NewDense(len(rows), 1, nil)
	for i, r := range rows {
		out.Set(i, 0, float64(labels[r]))
	}
	return out
}
