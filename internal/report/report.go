// Package report renders the study's presentation artifacts: small
// self-contained SVG bar charts with a value axis, gridlines and labeled
// bars. No drawing dependency, just a template over precomputed geometry.
package report

import (
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"text/template"

	"github.com/rotisserie/eris"
)

// Default palette, one color per series position.
var barColors = []string{"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728"}

const (
	defaultWidth  = 720
	defaultHeight = 420

	marginLeft   = 70.0
	marginRight  = 24.0
	marginTop    = 48.0
	marginBottom = 56.0
)

// Bar is one labeled value.
type Bar struct {
	Label string
	Value float64
	Color string // palette color by position when empty
}

// BarChart describes a single-series bar chart.
type BarChart struct {
	Title  string
	YLabel string
	Width  int // defaultWidth when <= 0
	Height int // defaultHeight when <= 0
	Bars   []Bar
}

type barView struct {
	X, Y, W, H float64
	CenterX    float64
	ValueY     float64
	Fill       string
	Label      string
	Value      string
}

type tickView struct {
	Y     float64
	TextY float64
	Label string
}

type chartView struct {
	Width, Height int
	Title, YLabel string
	TitleX        float64
	YLabelY       float64
	PlotLeft      float64
	PlotRight     float64
	PlotTop       float64
	PlotBottom    float64
	TickX         float64
	LabelY        float64
	Bars          []barView
	Ticks         []tickView
}

var chartTmpl = template.Must(template.New("bar").Parse(`<svg xmlns="http://www.w3.org/2000/svg" width="{{.Width}}" height="{{.Height}}" viewBox="0 0 {{.Width}} {{.Height}}">
  <style>
    text { font-family: Helvetica, Arial, sans-serif; fill: #333333; }
    .title { font-size: 16px; font-weight: bold; }
    .axis { stroke: #666666; stroke-width: 1; }
    .grid { stroke: #dddddd; stroke-width: 1; }
    .tick { font-size: 11px; }
    .label { font-size: 12px; }
    .value { font-size: 11px; }
    .ylabel { font-size: 12px; }
  </style>
  <rect width="100%" height="100%" fill="white"/>
  <text class="title" x="{{.TitleX}}" y="24" text-anchor="middle">{{.Title}}</text>
  <text class="ylabel" x="16" y="{{.YLabelY}}" text-anchor="middle" transform="rotate(-90 16 {{.YLabelY}})">{{.YLabel}}</text>
{{- range .Ticks}}
  <line class="grid" x1="{{$.PlotLeft}}" y1="{{.Y}}" x2="{{$.PlotRight}}" y2="{{.Y}}"/>
  <text class="tick" x="{{$.TickX}}" y="{{.TextY}}" text-anchor="end">{{.Label}}</text>
{{- end}}
{{- range .Bars}}
  <rect x="{{.X}}" y="{{.Y}}" width="{{.W}}" height="{{.H}}" fill="{{.Fill}}"/>
  <text class="value" x="{{.CenterX}}" y="{{.ValueY}}" text-anchor="middle">{{.Value}}</text>
  <text class="label" x="{{.CenterX}}" y="{{$.LabelY}}" text-anchor="middle">{{.Label}}</text>
{{- end}}
  <line class="axis" x1="{{.PlotLeft}}" y1="{{.PlotBottom}}" x2="{{.PlotRight}}" y2="{{.PlotBottom}}"/>
  <line class="axis" x1="{{.PlotLeft}}" y1="{{.PlotTop}}" x2="{{.PlotLeft}}" y2="{{.PlotBottom}}"/>
</svg>
`))

// Render writes the chart as SVG.
func (c *BarChart) Render(w io.Writer) error {
	if len(c.Bars) == 0 {
		return eris.New("report: a chart needs at least one bar")
	}
	if err := chartTmpl.Execute(w, c.view()); err != nil {
		return eris.Wrap(err, "report: render chart")
	}
	return nil
}

// RenderFile writes the chart to path, creating parent directories.
func RenderFile(path string, c *BarChart) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "report: create chart dir for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "report: create %s", path)
	}
	defer f.Close() //nolint:errcheck
	return c.Render(f)
}

func (c *BarChart) view() *chartView {
	width, height := c.Width, c.Height
	if width <= 0 {
		width = defaultWidth
	}
	if height <= 0 {
		height = defaultHeight
	}

	v := &chartView{
		Width:      width,
		Height:     height,
		Title:      c.Title,
		YLabel:     c.YLabel,
		TitleX:     float64(width) / 2,
		YLabelY:    (marginTop + float64(height) - marginBottom) / 2,
		PlotLeft:   marginLeft,
		PlotRight:  float64(width) - marginRight,
		PlotTop:    marginTop,
		PlotBottom: float64(height) - marginBottom,
		TickX:      marginLeft - 8,
		LabelY:     float64(height) - marginBottom + 20,
	}
	plotW := v.PlotRight - v.PlotLeft
	plotH := v.PlotBottom - v.PlotTop

	maxVal := 0.0
	for _, b := range c.Bars {
		if !math.IsNaN(b.Value) && b.Value > maxVal {
			maxVal = b.Value
		}
	}
	if maxVal <= 0 {
		maxVal = 1
	}
	step := niceStep(maxVal / 4)
	top := math.Ceil(maxVal/step) * step

	for t := 0.0; t <= top+step/2; t += step {
		y := v.PlotBottom - t/top*plotH
		v.Ticks = append(v.Ticks, tickView{
			Y:     y,
			TextY: y + 4,
			Label: strconv.FormatFloat(t, 'f', -1, 64),
		})
	}

	slot := plotW / float64(len(c.Bars))
	barW := slot * 0.6
	for i, b := range c.Bars {
		val := b.Value
		text := strconv.FormatFloat(val, 'f', 2, 64)
		if math.IsNaN(val) {
			val = 0
			text = "n/d"
		}
		h := val / top * plotH
		x := v.PlotLeft + float64(i)*slot + (slot-barW)/2
		y := v.PlotBottom - h
		fill := b.Color
		if fill == "" {
			fill = barColors[i%len(barColors)]
		}
		v.Bars = append(v.Bars, barView{
			X: x, Y: y, W: barW, H: h,
			CenterX: x + barW/2,
			ValueY:  y - 6,
			Fill:    fill,
			Label:   b.Label,
			Value:   text,
		})
	}
	return v
}

// niceStep rounds a raw tick spacing to the nearest 1/2/5 ladder value.
func niceStep(raw float64) float64 {
	if raw <= 0 || math.IsNaN(raw) {
		return 1
	}
	mag := math.Pow(10, math.Floor(math.Log10(raw)))
	switch {
	case raw/mag < 1.5:
		return mag
	case raw/mag < 3:
		return 2 * mag
	case raw/mag < 7:
		return 5 * mag
	default:
		return 10 * mag
	}
}
