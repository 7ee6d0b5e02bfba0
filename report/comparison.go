// Package report ranks cross-validated models and writes the comparison as
// a text table, CSV files and PNG plots.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/gocarina/gocsv"
	"github.com/montanaflynn/stats"

	"github.com/YuminosukeSato/ensemblecv/metrics"
	"github.com/YuminosukeSato/ensemblecv/pkg/errors"
	"github.com/YuminosukeSato/ensemblecv/sklearn/model_selection"
)

// Row summarises one model: its cross-validation score distribution and,
// when available, its holdout results.
type Row struct {
	Rank   int     `csv:"rank"`
	Model  string  `csv:"model"`
	Metric string  `csv:"metric"`
	Folds  int     `csv:"folds"`
	Mean   float64 `csv:"mean"`
	Std    float64 `csv:"std"`
	Min    float64 `csv:"min"`
	Q1     float64 `csv:"q1"`
	Median float64 `csv:"median"`
	Q3     float64 `csv:"q3"`
	Max    float64 `csv:"max"`

	HoldoutAccuracy float64 `csv:"holdout_accuracy"`
	HoldoutF1       float64 `csv:"holdout_f1"`
	HoldoutAUC      float64 `csv:"holdout_auc"`
	HoldoutLogLoss  float64 `csv:"holdout_log_loss"`
	Params          string  `csv:"params"`
}

// Comparison is a set of models ranked by mean cross-validation score,
// best first.
type Comparison struct {
	RunID   string
	Metric  string
	Rows    []Row
	Records []model_selection.ScoreRecord
	Reports map[string]*metrics.Report
	Params  map[string]string
}

// Option configures a Comparison.
type Option func(*Comparison)

// WithRunID tags the comparison with a run identifier.
func WithRunID(id string) Option {
	return func(c *Comparison) { c.RunID = id }
}

// WithHoldout attaches holdout reports keyed by model name.
func WithHoldout(reports map[string]*metrics.Report) Option {
	return func(c *Comparison) { c.Reports = reports }
}

// WithParams attaches the chosen hyperparameters keyed by model name.
func WithParams(params map[string]string) Option {
	return func(c *Comparison) { c.Params = params }
}

// NewComparison builds a ranking from the records of a single metric.
// Models with equal means keep the order in which they first appear.
func NewComparison(records []model_selection.ScoreRecord, opts ...Option) (*Comparison, error) {
	if len(records) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "NewComparison")
	}
	c := &Comparison{
		Metric:  records[0].Metric,
		Records: append([]model_selection.ScoreRecord(nil), records...),
	}
	for _, opt := range opts {
		opt(c)
	}

	for _, s := range model_selection.Summarize(records) {
		if s.Metric != c.Metric {
			return nil, errors.NewValidationError("records", "a comparison holds a single metric", s.Metric)
		}
		row, err := summarise(s)
		if err != nil {
			return nil, errors.Wrapf(err, "model %s", s.Model)
		}
		if r, ok := c.Reports[s.Model]; ok && r != nil {
			row.HoldoutAccuracy, row.HoldoutF1, row.HoldoutAUC = r.Accuracy, r.F1, r.AUC
			row.HoldoutLogLoss = r.LogLoss
		}
		row.Params = c.Params[s.Model]
		c.Rows = append(c.Rows, row)
	}

	sort.SliceStable(c.Rows, func(a, b int) bool { return c.Rows[a].Mean > c.Rows[b].Mean })
	for i := range c.Rows {
		c.Rows[i].Rank = i + 1
	}
	return c, nil
}

func summarise(s model_selection.ScoreSummary) (Row, error) {
	row := Row{Model: s.Model, Metric: s.Metric, Folds: len(s.Scores), Mean: s.Mean, Std: s.Std}
	var err error
	if row.Min, err = stats.Min(s.Scores); err != nil {
		return row, err
	}
	if row.Max, err = stats.Max(s.Scores); err != nil {
		return row, err
	}
	if row.Median, err = stats.Median(s.Scores); err != nil {
		return row, err
	}
	if row.Q1, err = stats.Percentile(s.Scores, 25); err != nil {
		return row, err
	}
	if row.Q3, err = stats.Percentile(s.Scores, 75); err != nil {
		return row, err
	}
	return row, nil
}

// Best returns the top-ranked row.
func (c *Comparison) Best() Row { return c.Rows[0] }

// Row looks up a model by name.
func (c *Comparison) Row(model string) (Row, bool) {
	for _, r := range c.Rows {
		if r.Model == model {
			return r, true
		}
	}
	return Row{}, false
}

// Scores returns the per-fold scores of a model in fold order.
func (c *Comparison) Scores(model string) []float64 {
	for _, s := range model_selection.Summarize(c.Records) {
		if s.Model == model {
			return s.Scores
		}
	}
	return nil
}

// WriteTable renders the ranking as an aligned text table.
func (c *Comparison) WriteTable(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "rank\tmodel\t%s mean\tstd\tmedian\tq1\tq3\tholdout f1\tholdout auc\tholdout log loss\n", c.Metric)
	for _, r := range c.Rows {
		fmt.Fprintf(tw, "%d\t%s\t%.4f\t%.4f\t%.4f\t%.4f\t%.4f\t%.4f\t%.4f\t%.4f\n",
			r.Rank, r.Model, r.Mean, r.Std, r.Median, r.Q1, r.Q3, r.HoldoutF1, r.HoldoutAUC, r.HoldoutLogLoss)
	}
	return tw.Flush()
}

func (c *Comparison) String() string {
	var b strings.Builder
	if c.RunID != "" {
		fmt.Fprintf(&b, "run %s\n", c.RunID)
	}
	_ = c.WriteTable(&b)
	return b.String()
}

// WriteCSV writes the ranked rows.
func (c *Comparison) WriteCSV(w io.Writer) error {
	return errors.Wrap(gocsv.Marshal(&c.Rows, w), "write comparison csv")
}

// WriteRecordsCSV writes every per-fold score.
func (c *Comparison) WriteRecordsCSV(w io.Writer) error {
	return errors.Wrap(gocsv.Marshal(&c.Records, w), "write score records csv")
}

// WriteClassReportsCSV writes the per-class holdout report of every model.
func (c *Comparison) WriteClassReportsCSV(w io.Writer) error {
	type classRow struct {
		Model string `csv:"model"`
		metrics.ClassReport
	}
	var rows []classRow
	for _, r := range c.Rows {
		rep, ok := c.Reports[r.Model]
		if !ok || rep == nil {
			continue
		}
		for _, cr := range rep.PerClass {
			rows = append(rows, classRow{Model: r.Model, ClassReport: cr})
		}
	}
	return errors.Wrap(gocsv.Marshal(&rows, w), "write class report csv")
}
