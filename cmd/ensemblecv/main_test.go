package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/ensemblecv/experiment"
	"github.com/YuminosukeSato/ensemblecv/metrics"
	"github.com/YuminosukeSato/ensemblecv/pkg/errors"
	"github.com/YuminosukeSato/ensemblecv/report"
	"github.com/YuminosukeSato/ensemblecv/sklearn/feature_selection"
	"github.com/YuminosukeSato/ensemblecv/sklearn/model_selection"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func summaryResult(t *testing.T) *experiment.Result {
	t.Helper()
	ranking, err := feature_selection.NewFeatureRanking([]string{"radius", "texture", "area"}, []int{1, 2, 3}, 1)
	require.NoError(t, err)
	var records []model_selection.ScoreRecord
	for fold, v := range []float64{0.9, 0.92, 0.94} {
		records = append(records, model_selection.ScoreRecord{Model: "voting", Metric: "f1", Fold: fold, Value: v})
	}
	rep, err := metrics.NewReport("voting", []int{0, 0, 1, 1}, []int{0, 1, 1, 1}, []float64{0.1, 0.6, 0.7, 0.9})
	require.NoError(t, err)
	reports := map[string]*metrics.Report{"voting": rep}
	cmp, err := report.NewComparison(records, report.WithRunID("run-1"), report.WithHoldout(reports))
	require.NoError(t, err)
	return &experiment.Result{RunID: "run-1", Ranking: ranking, Reports: reports, Comparison: cmp}
}

func TestPrintSummary(t *testing.T) {
	res := summaryResult(t)

	var buf bytes.Buffer
	require.NoError(t, printSummary(&buf, res))
	out := buf.String()
	assert.Contains(t, out, "run run-1")
	assert.Contains(t, out, "selected features (1 of 3)")
	assert.Contains(t, out, "holdout log loss")

	assert.Error(t, printSummary(failingWriter{}, res))
}
