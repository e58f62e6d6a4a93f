package report

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/rehab.report/internal/feedback"
)

var (
	angleColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	bandColor  = color.RGBA{R: 150, G: 150, B: 150, A: 255}
	errorColor = color.RGBA{R: 214, G: 39, B: 40, A: 255}
)

// Plot draws the angle trace against the acceptable band. ERROR frames
// break the line and are marked along the x axis.
func Plot(s Session) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s - %s", s.Summary.Exercise, s.subtitle())
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Angle (°)"
	p.Y.Min, p.Y.Max = 0, 180

	var (
		segments []plotter.XYs
		current  plotter.XYs
		errs     plotter.XYs
	)
	for _, f := range s.Frames {
		if f.Level == feedback.Error {
			if len(current) > 0 {
				segments = append(segments, current)
				current = nil
			}
			errs = append(errs, plotter.XY{X: float64(f.Index), Y: 0})
			continue
		}
		current = append(current, plotter.XY{X: float64(f.Index), Y: f.Angle})
	}
	if len(current) > 0 {
		segments = append(segments, current)
	}

	for i, seg := range segments {
		l, err := plotter.NewLine(seg)
		if err != nil {
			return nil, fmt.Errorf("angle line: %w", err)
		}
		l.Color = angleColor
		l.Width = vg.Points(1)
		p.Add(l)
		if i == 0 {
			p.Legend.Add("angle", l)
		}
	}

	if n := len(s.Frames); n > 0 {
		ref, half := s.Config.Reference()
		first, last := float64(s.Frames[0].Index), float64(s.Frames[n-1].Index)
		for _, y := range []float64{ref - half, ref + half} {
			l, err := plotter.NewLine(plotter.XYs{{X: first, Y: y}, {X: last, Y: y}})
			if err != nil {
				return nil, fmt.Errorf("band line: %w", err)
			}
			l.Color = bandColor
			l.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
			p.Add(l)
		}
	}

	if len(errs) > 0 {
		sc, err := plotter.NewScatter(errs)
		if err != nil {
			return nil, fmt.Errorf("error markers: %w", err)
		}
		sc.Color = errorColor
		p.Add(sc)
		p.Legend.Add("not evaluated", sc)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

const (
	plotWidth  = 14 * vg.Inch
	plotHeight = 6 * vg.Inch
)

// WritePNG renders the angle plot as PNG to w.
func WritePNG(w io.Writer, s Session) error {
	p, err := Plot(s)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(plotWidth, plotHeight, "png")
	if err != nil {
		return fmt.Errorf("failed to create png writer: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write png: %w", err)
	}
	return nil
}
