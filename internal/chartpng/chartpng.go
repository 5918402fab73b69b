// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

// Package chartpng paints frames and histograms into PNG images.
package chartpng

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"gitlab.com/postmarketOS/gnss_monitor/internal/render"
	"gitlab.com/postmarketOS/gnss_monitor/internal/series"
	"gitlab.com/postmarketOS/gnss_monitor/internal/stats"
	"gitlab.com/postmarketOS/gnss_monitor/internal/telemetry"
)

var titles = map[string]string{
	series.Altitude: "Altitude",
	series.CN0:      "C/N₀ per PRN",
	series.Doppler:  "Doppler per PRN",
	series.Position: "Position LLA",
	series.Velocity: "Velocity ENU",
	render.Map:      "Track",
}

var axisNames = map[string]string{
	series.Altitude: "Height (m)",
	series.CN0:      "C/N₀ (dB-Hz)",
	series.Doppler:  "Doppler (Hz)",
	series.Position: "Lat/Lon (deg), Alt (m)",
	series.Velocity: "Velocity (m/s)",
}

// Painter keeps the newest image of every chart. Paint and ReplaceHistogram
// run on the display loop; the accessors may be called from anywhere.
type Painter struct {
	Width  int
	Height int
	// OutDir, when set, also receives every image as <name>.png.
	OutDir string

	mu     sync.RWMutex
	images map[string][]byte
	frames int
}

func New(width, height int, outDir string) *Painter {
	if width <= 0 {
		width = 800
	}
	if height <= 0 {
		height = 300
	}
	return &Painter{
		Width:  width,
		Height: height,
		OutDir: outDir,
		images: make(map[string][]byte),
	}
}

func (p *Painter) Paint(f render.Frame) {
	for _, name := range f.Dirty() {
		var img []byte
		var err error
		if name == render.Map {
			img, err = p.track(f.Track)
		} else {
			img, err = p.lines(name, f.Charts[name])
		}
		if err != nil {
			log.Printf("chartpng: %s: %v", name, err)
			img = p.blank()
		}
		p.store(name, img)
	}
	p.mu.Lock()
	p.frames++
	p.mu.Unlock()
}

// ReplaceHistogram redraws the histogram of one stats target as
// "hist_<target>".
func (p *Painter) ReplaceHistogram(target string, r stats.Result) {
	name := "hist_" + target
	img, err := p.histogram(target, r)
	if err != nil {
		log.Printf("chartpng: %s: %v", name, err)
		img = p.blank()
	}
	p.store(name, img)
}

func (p *Painter) store(name string, img []byte) {
	p.mu.Lock()
	p.images[name] = img
	p.mu.Unlock()

	if p.OutDir == "" {
		return
	}
	path := filepath.Join(p.OutDir, name+".png")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, img, 0644); err != nil {
		log.Printf("chartpng: writing %s: %v", path, err)
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		log.Printf("chartpng: writing %s: %v", path, err)
	}
}

// PNG returns the newest image of a chart.
func (p *Painter) PNG(name string) ([]byte, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	img, ok := p.images[name]
	return img, ok
}

// Names lists the charts painted so far.
func (p *Painter) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.images))
	for n := range p.images {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (p *Painter) Frames() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.frames
}

func drawingColor(c series.Color) drawing.Color {
	return drawing.Color{R: c.R, G: c.G, B: c.B, A: 255}
}

// padRange widens a degenerate range so go-chart can scale it.
func padRange(min, max float64) *chart.ContinuousRange {
	if max-min < 1e-9 {
		pad := math.Max(math.Abs(min)*1e-6, 0.5)
		min, max = min-pad, max+pad
	}
	return &chart.ContinuousRange{Min: min, Max: max}
}

func (p *Painter) lines(name string, snaps []series.Snapshot) ([]byte, error) {
	var (
		all        []chart.Series
		yMin, yMax = math.Inf(1), math.Inf(-1)
		tMin, tMax time.Time
	)
	for _, s := range snaps {
		if len(s.Points) < 2 {
			continue
		}
		ts := chart.TimeSeries{
			Name:    s.Label,
			XValues: make([]time.Time, 0, len(s.Points)),
			YValues: make([]float64, 0, len(s.Points)),
			Style: chart.Style{
				StrokeColor: drawingColor(s.Color),
				StrokeWidth: 1.5,
			},
		}
		for _, pt := range s.Points {
			ts.XValues = append(ts.XValues, pt.T)
			ts.YValues = append(ts.YValues, pt.Y)
			yMin = math.Min(yMin, pt.Y)
			yMax = math.Max(yMax, pt.Y)
			if tMin.IsZero() || pt.T.Before(tMin) {
				tMin = pt.T
			}
			if pt.T.After(tMax) {
				tMax = pt.T
			}
		}
		all = append(all, ts)
	}
	if len(all) == 0 || !tMax.After(tMin) {
		return p.blank(), nil
	}

	ch := chart.Chart{
		Title:      titles[name],
		Width:      p.Width,
		Height:     p.Height,
		Background: chart.Style{Padding: chart.Box{Top: 24, Left: 16, Right: 12, Bottom: 16}},
		XAxis:      chart.XAxis{ValueFormatter: chart.TimeValueFormatterWithFormat("15:04:05")},
		YAxis:      chart.YAxis{Name: axisNames[name], Range: padRange(yMin, yMax)},
		Series:     all,
	}
	if len(all) > 1 {
		ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	}
	return renderPNG(&ch)
}

func (p *Painter) track(track []render.TrackPoint) ([]byte, error) {
	xs := make([]float64, 0, len(track))
	ys := make([]float64, 0, len(track))
	for _, pt := range track {
		if telemetry.Finite(pt.Lat) && telemetry.Finite(pt.Lon) {
			xs = append(xs, pt.Lon)
			ys = append(ys, pt.Lat)
		}
	}
	if len(xs) < 2 {
		return p.blank(), nil
	}

	xMin, xMax := minMax(xs)
	yMin, yMax := minMax(ys)
	ch := chart.Chart{
		Title:  titles[render.Map],
		Width:  p.Width,
		Height: p.Height,
		XAxis:  chart.XAxis{Name: "Longitude (deg)", Range: padRange(xMin, xMax)},
		YAxis:  chart.YAxis{Name: "Latitude (deg)", Range: padRange(yMin, yMax)},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "track",
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeColor: drawingColor(series.Palette[1]),
					StrokeWidth: 2,
				},
			},
		},
	}
	return renderPNG(&ch)
}

func (p *Painter) histogram(target string, r stats.Result) ([]byte, error) {
	if r.Empty() {
		return p.blank(), nil
	}
	bars := make([]chart.Value, 0, len(r.Bins))
	max := 1.0
	for _, b := range r.Bins {
		bars = append(bars, chart.Value{Label: b.Label, Value: float64(b.Count)})
		max = math.Max(max, float64(b.Count))
	}
	barWidth := (p.Width - 80) * 2 / (3 * len(bars))
	if barWidth < 4 {
		barWidth = 4
	}
	bc := chart.BarChart{
		Title:      fmt.Sprintf("%s deviation (%s)  %s", target, r.Unit, r.Summary()),
		Width:      p.Width,
		Height:     p.Height,
		BarWidth:   barWidth,
		BarSpacing: barWidth / 2,
		Background: chart.Style{
			Padding: chart.Box{Top: 32, Left: 16, Right: 12, Bottom: 16},
		},
		YAxis: chart.YAxis{Range: &chart.ContinuousRange{Min: 0, Max: max}},
		Bars:  bars,
	}
	var buf bytes.Buffer
	if err := bc.Render(chart.PNG, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderPNG(ch *chart.Chart) ([]byte, error) {
	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func minMax(v []float64) (float64, float64) {
	min, max := v[0], v[0]
	for _, x := range v[1:] {
		min = math.Min(min, x)
		max = math.Max(max, x)
	}
	return min, max
}

// blank is shown until a chart has enough data to draw.
func (p *Painter) blank() []byte {
	img := image.NewRGBA(image.Rect(0, 0, p.Width, p.Height))
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 18, G: 18, B: 18, A: 255})
		}
	}
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}
