package simulation

import (
	"errors"
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// PlotLabels names the plot and the axes of the two panels
type PlotLabels struct {
	Title       string
	Measurement string // e.g. "Current [A]"
	Output      string // e.g. "Voltage [V]"
}

var (
	setpointColor    = color.RGBA{R: 120, G: 120, B: 120, A: 255}
	measurementColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	outputColor      = color.RGBA{R: 214, G: 39, B: 40, A: 255}
)

// WritePlot renders a two-panel PNG: measurement against setpoint on top,
// control output below.
func WritePlot(w io.Writer, res *Result, labels PlotLabels) error {
	if len(res.Samples) == 0 {
		return errors.New("nothing to plot: result has no samples")
	}

	setpoints := make(plotter.XYs, len(res.Samples))
	measurements := make(plotter.XYs, len(res.Samples))
	outputs := make(plotter.XYs, len(res.Samples))
	for i, s := range res.Samples {
		setpoints[i] = plotter.XY{X: s.Time, Y: s.Setpoint}
		measurements[i] = plotter.XY{X: s.Time, Y: s.Measurement}
		outputs[i] = plotter.XY{X: s.Time, Y: s.Output}
	}

	// Response panel
	top := plot.New()
	top.Title.Text = labels.Title
	top.Y.Label.Text = labels.Measurement
	top.Add(plotter.NewGrid())
	top.Legend.Top = true

	spLine, err := plotter.NewLine(setpoints)
	if err != nil {
		return fmt.Errorf("failed to build setpoint line: %w", err)
	}
	spLine.Color = setpointColor
	spLine.Dashes = []vg.Length{vg.Points(6), vg.Points(3)}

	mLine, err := plotter.NewLine(measurements)
	if err != nil {
		return fmt.Errorf("failed to build measurement line: %w", err)
	}
	mLine.Color = measurementColor
	mLine.Width = vg.Points(1.5)

	top.Add(spLine, mLine)
	top.Legend.Add("Setpoint", spLine)
	top.Legend.Add("Measurement", mLine)

	// Control signal panel
	bottom := plot.New()
	bottom.X.Label.Text = "Time [s]"
	bottom.Y.Label.Text = labels.Output
	bottom.Add(plotter.NewGrid())

	oLine, err := plotter.NewLine(outputs)
	if err != nil {
		return fmt.Errorf("failed to build output line: %w", err)
	}
	oLine.Color = outputColor
	oLine.Width = vg.Points(1.5)
	bottom.Add(oLine)

	img := vgimg.New(10*vg.Inch, 6*vg.Inch)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows:      2,
		Cols:      1,
		PadX:      vg.Millimeter,
		PadY:      4 * vg.Millimeter,
		PadTop:    2 * vg.Millimeter,
		PadBottom: 2 * vg.Millimeter,
		PadLeft:   2 * vg.Millimeter,
		PadRight:  4 * vg.Millimeter,
	}
	plots := [][]*plot.Plot{{top}, {bottom}}
	canvases := plot.Align(plots, tiles, dc)
	for i := range plots {
		plots[i][0].Draw(canvases[i][0])
	}

	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(w); err != nil {
		return fmt.Errorf("failed to encode plot: %w", err)
	}
	return nil
}
