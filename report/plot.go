package report

import (
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/ensemblecv/pkg/errors"
)

// Plot file names written by WritePlots.
const (
	ROCFile    = "roc.png"
	DETFile    = "det.png"
	ScoresFile = "cv_scores.png"
)

const (
	plotWidth  = 6 * vg.Inch
	plotHeight = 5 * vg.Inch
)

// WritePlots writes the ROC and DET curves of every holdout report and a
// box plot of the per-fold scores into dir.
func (c *Comparison) WritePlots(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create plot directory %s", dir)
	}
	if len(c.Reports) > 0 {
		if err := c.PlotROC(filepath.Join(dir, ROCFile)); err != nil {
			return err
		}
		if err := c.PlotDET(filepath.Join(dir, DETFile)); err != nil {
			return err
		}
	}
	return c.PlotScores(filepath.Join(dir, ScoresFile))
}

// PlotROC draws one ROC curve per model with a holdout report.
func (c *Comparison) PlotROC(path string) error {
	p := plot.New()
	p.Title.Text = "ROC"
	p.X.Label.Text = "false positive rate"
	p.Y.Label.Text = "true positive rate"
	p.X.Min, p.X.Max, p.Y.Min, p.Y.Max = 0, 1, 0, 1

	chance, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, {X: 1, Y: 1}})
	if err != nil {
		return err
	}
	chance.Color = color.Gray{Y: 160}
	chance.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	p.Add(chance)

	for i, r := range c.Rows {
		rep := c.Reports[r.Model]
		if rep == nil || rep.ROC == nil {
			continue
		}
		if err := addCurve(p, i, r.Model, rep.ROC.FPR, rep.ROC.TPR); err != nil {
			return err
		}
	}
	p.Add(plotter.NewGrid())
	p.Legend.Top = false
	p.Legend.Left = false
	return save(p, path)
}

// PlotDET draws one detection error tradeoff curve per model.
func (c *Comparison) PlotDET(path string) error {
	p := plot.New()
	p.Title.Text = "DET"
	p.X.Label.Text = "false positive rate"
	p.Y.Label.Text = "false negative rate"
	p.X.Min, p.X.Max, p.Y.Min, p.Y.Max = 0, 1, 0, 1

	for i, r := range c.Rows {
		rep := c.Reports[r.Model]
		if rep == nil || rep.DET == nil {
			continue
		}
		if err := addCurve(p, i, r.Model, rep.DET.FPR, rep.DET.FNR); err != nil {
			return err
		}
	}
	p.Add(plotter.NewGrid())
	p.Legend.Top = true
	return save(p, path)
}

// PlotScores draws a box of the per-fold scores of each model in rank order.
func (c *Comparison) PlotScores(path string) error {
	p := plot.New()
	p.Title.Text = "cross-validation " + c.Metric
	p.Y.Label.Text = c.Metric

	names := make([]string, len(c.Rows))
	for i, r := range c.Rows {
		names[i] = r.Model
		box, err := plotter.NewBoxPlot(vg.Points(20), float64(i), plotter.Values(c.Scores(r.Model)))
		if err != nil {
			return errors.Wrapf(err, "box plot for %s", r.Model)
		}
		box.FillColor = plotutil.Color(i)
		p.Add(box)
	}
	p.NominalX(names...)
	p.Add(plotter.NewGrid())
	return save(p, path)
}

func addCurve(p *plot.Plot, i int, name string, x, y []float64) error {
	xys := make(plotter.XYs, len(x))
	for k := range x {
		xys[k] = plotter.XY{X: x[k], Y: y[k]}
	}
	line, err := plotter.NewLine(xys)
	if err != nil {
		return errors.Wrapf(err, "curve for %s", name)
	}
	line.Color = plotutil.Color(i)
	line.Width = vg.Points(1.5)
	p.Add(line)
	p.Legend.Add(name, line)
	return nil
}

func save(p *plot.Plot, path string) error {
	if err := p.Save(plotWidth, plotHeight, path); err != nil {
		return errors.Wrapf(err, "save plot %s", path)
	}
	return nil
}
