// Package report renders a session's frame trace as an interactive HTML
// chart or a static PNG.
package report

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/rehab.report/internal/evaluator"
	"github.com/banshee-data/rehab.report/internal/exercise"
	"github.com/banshee-data/rehab.report/internal/feedback"
)

// AssetsHost is where the rendered page loads the echarts scripts from.
var AssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// Session is everything a report draws.
type Session struct {
	Summary evaluator.Summary
	Config  exercise.Config
	Frames  []evaluator.FrameRecord
}

// missing marks a gap in an echarts line.
const missing = "-"

func (s Session) subtitle() string {
	return fmt.Sprintf("%s side, %d/%d reps, average score %.1f",
		s.Summary.Side, s.Summary.TotalRepetitions, s.Summary.TargetRepetitions, s.Summary.AverageScore)
}

func (s Session) angleChart() *charts.Line {
	xs := make([]string, len(s.Frames))
	angles := make([]opts.LineData, len(s.Frames))
	lower := make([]opts.LineData, len(s.Frames))
	upper := make([]opts.LineData, len(s.Frames))

	ref, half := s.Config.Reference()
	lo, hi := ref-half, ref+half
	for i, f := range s.Frames {
		xs[i] = strconv.Itoa(f.Index)
		if f.Level == feedback.Error {
			angles[i] = opts.LineData{Value: missing}
		} else {
			angles[i] = opts.LineData{Value: f.Angle}
		}
		lower[i] = opts.LineData{Value: lo}
		upper[i] = opts.LineData{Value: hi}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: s.Summary.Exercise, Width: "100%", Height: "420px", AssetsHost: AssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: s.Summary.Exercise + " angle", Subtitle: s.subtitle()}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Frame", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Angle (°)", Min: 0, Max: 180}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)
	line.SetXAxis(xs).
		AddSeries("angle", angles, charts.WithLineChartOpts(opts.LineChart{ConnectNulls: opts.Bool(false)})).
		AddSeries("lower bound", lower, charts.WithLineStyleOpts(opts.LineStyle{Type: "dashed"})).
		AddSeries("upper bound", upper, charts.WithLineStyleOpts(opts.LineStyle{Type: "dashed"}))
	return line
}

func (s Session) scoreChart() *charts.Line {
	xs := make([]string, len(s.Frames))
	scores := make([]opts.LineData, len(s.Frames))
	reps := make([]opts.LineData, len(s.Frames))
	for i, f := range s.Frames {
		xs[i] = strconv.Itoa(f.Index)
		if f.Level == feedback.Error {
			scores[i] = opts.LineData{Value: missing}
		} else {
			scores[i] = opts.LineData{Value: f.Score}
		}
		reps[i] = opts.LineData{Value: f.Repetitions}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "320px", AssetsHost: AssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Score and repetitions"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Score", Min: 0, Max: 100}),
	)
	line.SetXAxis(xs).
		AddSeries("score", scores).
		AddSeries("repetitions", reps, charts.WithLineChartOpts(opts.LineChart{Step: "end"}))
	return line
}

func (s Session) levelChart() *charts.Bar {
	counts := make(map[feedback.Level]int)
	for _, f := range s.Frames {
		counts[f.Level]++
	}
	var xs []string
	var ys []opts.BarData
	for _, l := range feedback.Levels() {
		xs = append(xs, l.String())
		ys = append(ys, opts.BarData{Value: counts[l]})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "320px", AssetsHost: AssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Frames by level"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(xs).
		AddSeries("frames", ys, charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}))
	return bar
}

// WriteHTML renders the session page to w.
func WriteHTML(w io.Writer, s Session) error {
	page := components.NewPage()
	page.SetAssetsHost(AssetsHost)
	page.PageTitle = s.Summary.Exercise
	page.AddCharts(s.angleChart(), s.scoreChart(), s.levelChart())

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return fmt.Errorf("render error: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}
