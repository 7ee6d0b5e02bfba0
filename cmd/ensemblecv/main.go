// Command ensemblecv runs the ensemble comparison study on a WDBC-style CSV
// file and writes the ranked comparison, per-fold scores, holdout reports
// and ROC/DET/score plots to an output directory.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/alexflint/go-arg"
	"github.com/joho/godotenv"

	"github.com/YuminosukeSato/ensemblecv/dataset"
	"github.com/YuminosukeSato/ensemblecv/experiment"
	"github.com/YuminosukeSato/ensemblecv/pkg/errors"
	"github.com/YuminosukeSato/ensemblecv/pkg/log"
)

type args struct {
	Data     string `arg:"--data,env:ENSEMBLECV_DATA" help:"WDBC CSV file (id, diagnosis and 30 measurements)"`
	Config   string `arg:"--config,env:ENSEMBLECV_CONFIG" help:"YAML study configuration; defaults reproduce the reference study"`
	Out      string `arg:"--out,env:ENSEMBLECV_OUT" help:"output directory"`
	Seed     uint64 `arg:"--seed" help:"override the study seed"`
	Folds    int    `arg:"--folds" help:"override the number of comparison folds"`
	Workers  int    `arg:"--workers,env:ENSEMBLECV_WORKERS" help:"worker pool size, 0 for one per CPU"`
	NoSearch bool   `arg:"--no-search" help:"skip hyperparameter search and use the configured parameters"`
	NoPlots  bool   `arg:"--no-plots" help:"do not write PNG plots"`
	LogLevel string `arg:"--log-level,env:LOG_LEVEL" help:"debug, info, warn or error"`
	Console  bool   `arg:"--console" help:"human-readable log output"`
}

func (args) Description() string {
	return "ensemblecv compares soft voting, bagging and boosting ensembles on tumor measurements by cross-validated F1."
}

func main() {
	// A missing .env file is not an error.
	_ = godotenv.Load()

	a := args{Out: "results", LogLevel: "info"}
	arg.MustParse(&a)

	if err := run(a); err != nil {
		log.GetLoggerWithName("ensemblecv").Error("study failed", "error", err)
		os.Exit(1)
	}
}

func run(a args) error {
	level, err := log.ToLogLevel(a.LogLevel)
	if err != nil {
		return err
	}
	if a.Console {
		log.SetProvider(log.NewConsoleProvider(level))
	} else {
		log.SetProvider(log.NewZerologProvider(level))
	}
	logger := log.GetLoggerWithName("ensemblecv")

	if a.Data == "" {
		return errors.NewInvalidConfigurationError("ensemblecv", "data", "a CSV file is required (--data or ENSEMBLECV_DATA)", a.Data)
	}

	cfg := experiment.DefaultConfig()
	if a.Config != "" {
		if cfg, err = experiment.LoadConfig(a.Config); err != nil {
			return err
		}
	}
	if a.Seed != 0 {
		cfg.Seed = a.Seed
	}
	if a.Folds != 0 {
		cfg.Folds = a.Folds
	}
	if a.Workers != 0 {
		cfg.Workers = a.Workers
	}
	if a.NoSearch {
		cfg.Search = false
	}

	ds, err := dataset.LoadWDBCFile(a.Data)
	if err != nil {
		return err
	}
	counts := ds.ClassCounts()
	logger.Info("dataset loaded", log.SamplesKey, counts[0]+counts[1], "data.malignant", counts[1], "data.benign", counts[0])

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := experiment.Execute(ctx, cfg, ds)
	if err != nil {
		return err
	}

	if err := writeOutputs(a, res); err != nil {
		return err
	}
	if err := printSummary(os.Stdout, res); err != nil {
		return err
	}
	logger.Info("outputs written", log.RunIDKey, res.RunID, "out", a.Out)
	return nil
}

func writeOutputs(a args, res *experiment.Result) error {
	if err := os.MkdirAll(a.Out, 0o755); err != nil {
		return errors.Wrapf(err, "create output directory %s", a.Out)
	}
	files := []struct {
		name  string
		write func(io.Writer) error
	}{
		{"comparison.csv", res.Comparison.WriteCSV},
		{"cv_scores.csv", res.Comparison.WriteRecordsCSV},
		{"holdout_classes.csv", res.Comparison.WriteClassReportsCSV},
		{"config.yaml", func(w io.Writer) error { return experiment.WriteConfig(w, res.Config) }},
		{"ranking.txt", func(w io.Writer) error {
			_, err := io.WriteString(w, res.Ranking.String())
			return err
		}},
	}
	for _, f := range files {
		if err := writeFile(filepath.Join(a.Out, f.name), f.write); err != nil {
			return err
		}
	}
	if a.NoPlots {
		return nil
	}
	return res.Comparison.WritePlots(a.Out)
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := write(f); err != nil {
		f.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	return f.Close()
}

// printSummary renders the ranking, holdout reports and comparison table
// and writes them to w in one call.
func printSummary(w io.Writer, res *experiment.Result) error {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s\n\nselected features (%d of %d):\n%s\n",
		res.RunID, res.Ranking.NSelected(), len(res.Ranking.Ranking), res.Ranking)
	if bl := res.Baseline; bl != nil {
		fmt.Fprintf(&b, "random forest baseline: all features F1 %.4f, selected features F1 %.4f\n\n",
			bl.AllFeatures.F1, bl.Selected.F1)
	}
	for _, row := range res.Comparison.Rows {
		if rep, ok := res.Reports[row.Model]; ok {
			fmt.Fprintf(&b, "%s\n", rep)
		}
	}
	if err := res.Comparison.WriteTable(&b); err != nil {
		return errors.Wrap(err, "render comparison table")
	}
	if _, err := io.WriteString(w, b.String()); err != nil {
		return errors.Wrap(err, "write summary")
	}
	return nil
}
