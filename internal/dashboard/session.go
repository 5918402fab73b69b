// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

// Package dashboard is the display side of the monitor: it folds the
// subscriber stream into charts, statistics and status text.
package dashboard

import (
	"fmt"
	"log"
	"math"
	"strconv"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"gitlab.com/postmarketOS/gnss_monitor/internal/config"
	"gitlab.com/postmarketOS/gnss_monitor/internal/loop"
	"gitlab.com/postmarketOS/gnss_monitor/internal/render"
	"gitlab.com/postmarketOS/gnss_monitor/internal/series"
	"gitlab.com/postmarketOS/gnss_monitor/internal/stats"
	"gitlab.com/postmarketOS/gnss_monitor/internal/telemetry"
)

// Pages of the dashboard.
const (
	PageSummary     = "summary"
	PageHistorics   = "historics"
	PageStats       = "stats"
	PageObservables = "observables"
)

// Painter draws both the chart frames and the statistics histograms.
type Painter interface {
	render.Painter
	stats.HistogramSink
}

type Options struct {
	Capacity     int
	MinCapacity  int
	MaxCapacity  int
	CapacityStep int

	RenderPoints   int
	RenderInterval time.Duration
	StatsInterval  time.Duration
	StatsBins      int
	TrackPoints    int
	MapInterval    time.Duration
}

func OptionsFrom(d config.Display) Options {
	return Options{
		Capacity:       d.Capacity,
		MinCapacity:    d.MinCapacity,
		MaxCapacity:    d.MaxCapacity,
		CapacityStep:   d.CapacityStep,
		RenderPoints:   d.RenderPoints,
		RenderInterval: d.RenderInterval(),
		StatsInterval:  d.StatsInterval(),
		StatsBins:      d.StatsBins,
		TrackPoints:    d.TrackPoints,
		MapInterval:    d.MapInterval(),
	}
}

func (o *Options) setDefaults() {
	if o.Capacity <= 0 {
		o.Capacity = series.DefaultCapacity
	}
	if o.MinCapacity <= 0 {
		o.MinCapacity = 50
	}
	if o.MaxCapacity < o.MinCapacity {
		o.MaxCapacity = series.DefaultCapacity
	}
	if o.CapacityStep <= 0 {
		o.CapacityStep = 50
	}
	if o.StatsInterval <= 0 {
		o.StatsInterval = stats.DefaultInterval
	}
	if o.TrackPoints <= 0 {
		o.TrackPoints = 200
	}
	if o.MapInterval <= 0 {
		o.MapInterval = 500 * time.Millisecond
	}
}

// Session must only be used from its host's loop.
type Session struct {
	host loop.Host
	opts Options

	Store  *series.Store
	Stats  *stats.Engine
	Render *render.Scheduler

	latest    *telemetry.Solution
	lastPVT   time.Time
	rows      *orderedmap.OrderedMap[int32, telemetry.Observation]
	track     []render.TrackPoint
	lastTrack time.Time

	page      string
	connected bool
	messages  int
	rejected  int
	skipped   int

	cancelTick func()
}

func NewSession(host loop.Host, opts Options, painter Painter) *Session {
	opts.setDefaults()
	s := &Session{
		host: host,
		opts: opts,
		rows: orderedmap.New[int32, telemetry.Observation](),
		page: PageSummary,
	}
	s.Store = series.New(s.clamp(opts.Capacity))
	s.Render = render.New(host, s.Store, s.Track, painter, opts.RenderInterval, opts.RenderPoints)
	s.Store.RequestRender = s.Render.RequestRender

	var sink stats.HistogramSink
	if painter != nil {
		sink = painter
	}
	s.Stats = stats.NewEngine(s.Store, host.Now, opts.StatsInterval, opts.StatsBins, sink)
	return s
}

// Start begins the periodic statistics refresh.
func (s *Session) Start() {
	if s.cancelTick != nil {
		return
	}
	s.tick()
}

func (s *Session) tick() {
	s.Stats.Update(false)
	s.cancelTick = s.host.ScheduleOnce(s.opts.StatsInterval, s.tick)
}

func (s *Session) Stop() {
	if s.cancelTick != nil {
		s.cancelTick()
		s.cancelTick = nil
	}
}

// HandleMessage applies one subscriber message. A message that is not a
// valid envelope is counted and otherwise ignored, and so is every bad
// element of an array.
func (s *Session) HandleMessage(raw []byte) error {
	records, skipped, err := telemetry.Parse(raw)
	if err != nil {
		s.rejected++
		return err
	}
	s.messages++
	s.skipped += skipped
	for _, r := range records {
		s.HandleRecord(r)
	}
	return nil
}

func (s *Session) HandleRecord(r telemetry.Record) {
	switch rec := r.(type) {
	case telemetry.Solution:
		s.handleSolution(rec)
	case telemetry.Observation:
		s.handleObservation(rec)
	}
}

func (s *Session) handleSolution(sol telemetry.Solution) {
	t := sol.Timestamp
	s.latest = &sol
	s.lastPVT = t

	if telemetry.Finite(sol.Lat) && telemetry.Finite(sol.Lon) {
		now := s.host.Now()
		if s.lastTrack.IsZero() || now.Sub(s.lastTrack) > s.opts.MapInterval {
			s.track = append(s.track, render.TrackPoint{T: t, Lat: sol.Lat, Lon: sol.Lon})
			if over := len(s.track) - s.opts.TrackPoints; over > 0 {
				s.track = append(s.track[:0:0], s.track[over:]...)
			}
			s.lastTrack = now
			s.Render.RequestRender(render.Map)
		}
	}

	s.Store.Append(series.Altitude, "alt", t, sol.Height, "Altitude")

	s.Store.Append(series.Position, "lat", t, sol.Lat, "Lat")
	s.Store.Append(series.Position, "lon", t, sol.Lon, "Lon")
	s.Store.Append(series.Position, "alt", t, sol.Height, "Alt")

	s.Store.Append(series.Velocity, "vel_e", t, sol.VelE, "Vel E")
	s.Store.Append(series.Velocity, "vel_n", t, sol.VelN, "Vel N")
	s.Store.Append(series.Velocity, "vel_u", t, sol.VelU, "Vel U")
}

func (s *Session) handleObservation(o telemetry.Observation) {
	s.rows.Set(o.ChannelID, o)

	key := o.SeriesKey()
	s.Store.Append(series.CN0, key, o.Timestamp, o.CN0DbHz, series.ChannelLabel("C/N₀", key, o.ChannelID))
	s.Store.Append(series.Doppler, key, o.Timestamp, o.DopplerHz, series.ChannelLabel("Doppler", key, o.ChannelID))
}

// Track returns a copy of the map track, oldest first.
func (s *Session) Track() []render.TrackPoint {
	return append([]render.TrackPoint(nil), s.track...)
}

func (s *Session) clamp(n int) int {
	step := s.opts.CapacityStep
	n = int(math.Round(float64(n)/float64(step))) * step
	if n < s.opts.MinCapacity {
		n = s.opts.MinCapacity
	}
	if n > s.opts.MaxCapacity {
		n = s.opts.MaxCapacity
	}
	return n
}

// SetCapacity snaps n to the capacity step, clamps it to the allowed range
// and applies it to every series. It returns the capacity in effect.
func (s *Session) SetCapacity(n int) int {
	n = s.clamp(n)
	if n != s.Store.Capacity() {
		log.Printf("series capacity %d -> %d", s.Store.Capacity(), n)
	}
	s.Store.SetCapacity(n)
	return n
}

// ActivatePage switches the visible page. Pages whose content is only
// refreshed while visible are brought up to date right away.
func (s *Session) ActivatePage(page string) error {
	switch page {
	case PageStats:
		s.Stats.Update(true)
	case PageHistorics:
		s.Render.RequestAll()
	case PageSummary, PageObservables:
	default:
		return fmt.Errorf("unknown page %q", page)
	}
	s.page = page
	return nil
}

func (s *Session) SetConnected(connected bool) {
	s.connected = connected
}

// CN0Class grades a carrier to noise density.
func CN0Class(cn0 float64) string {
	switch {
	case cn0 >= 45:
		return "good"
	case cn0 >= 35:
		return "mid"
	case cn0 >= 25:
		return "bad"
	}
	return "terrible"
}

// FixText describes the validity of a solution.
func FixText(sol telemetry.Solution) string {
	if sol.Valid() {
		return fmt.Sprintf("Solution status %d (sats: %d, type=%d)", sol.SolutionStatus, sol.ValidSats, sol.SolutionType)
	}
	return fmt.Sprintf("No valid solution (status=%d, sats=%d)", sol.SolutionStatus, sol.ValidSats)
}

// AgeText describes how long ago the last solution arrived.
func AgeText(age time.Duration) string {
	secs := int(math.Round(age.Seconds()))
	if secs <= 1 {
		return "Last PVT: just now"
	}
	return fmt.Sprintf("Last PVT: %d s ago", secs)
}

const dash = "–"

func fixed(v float64, digits int) string {
	if !telemetry.Finite(v) {
		return dash
	}
	return strconv.FormatFloat(v, 'f', digits, 64)
}

type ChannelRow struct {
	Channel  int32  `json:"channel_id"`
	PRN      string `json:"prn"`
	System   string `json:"system"`
	Signal   string `json:"signal"`
	CN0      string `json:"cn0"`
	CN0Class string `json:"cn0_class,omitempty"`
	Doppler  string `json:"doppler"`
	Time     string `json:"time"`
}

func newChannelRow(o telemetry.Observation) ChannelRow {
	r := ChannelRow{
		Channel: o.ChannelID,
		PRN:     dash,
		System:  o.System,
		Signal:  o.Signal,
		CN0:     dash,
		Doppler: fixed(o.DopplerHz, 1),
		Time:    o.Timestamp.Local().Format("15:04:05"),
	}
	if o.PRN != 0 {
		r.PRN = strconv.FormatUint(uint64(o.PRN), 10)
	}
	if telemetry.Finite(o.CN0DbHz) && o.CN0DbHz > 0 {
		r.CN0 = fixed(o.CN0DbHz, 1)
		r.CN0Class = CN0Class(o.CN0DbHz)
	}
	return r
}

// SolutionView is the summary page text of the latest solution.
type SolutionView struct {
	Lat      string `json:"lat"`
	Lon      string `json:"lon"`
	Alt      string `json:"alt"`
	VelE     string `json:"vel_e"`
	VelN     string `json:"vel_n"`
	VelU     string `json:"vel_u"`
	DOP      string `json:"dop"`
	Sats     string `json:"sats"`
	WeekTow  string `json:"week_tow"`
	UTC      string `json:"utc"`
	Fix      string `json:"fix"`
	FixValid bool   `json:"fix_valid"`
	Age      string `json:"age"`
}

func newSolutionView(sol telemetry.Solution, age time.Duration) SolutionView {
	v := SolutionView{
		Lat:  "Lat: " + fixed(sol.Lat, 6) + " °",
		Lon:  "Lon: " + fixed(sol.Lon, 6) + " °",
		Alt:  "Alt: " + fixed(sol.Height, 2) + " m",
		VelE: "E: " + fixed(sol.VelE, 2),
		VelN: "N: " + fixed(sol.VelN, 2),
		VelU: "U: " + fixed(sol.VelU, 2),
		DOP: fmt.Sprintf("GDOP %s  |  PDOP %s  |  HDOP %s  |  VDOP %s",
			fixed(sol.GDOP, 1), fixed(sol.PDOP, 1), fixed(sol.HDOP, 1), fixed(sol.VDOP, 1)),
		Sats:     "Sats: " + dash,
		UTC:      "UTC Time: " + dash,
		Fix:      FixText(sol),
		FixValid: sol.Valid(),
		Age:      AgeText(age),
	}
	if sol.Has(telemetry.FieldValidSats) {
		v.Sats = fmt.Sprintf("Sats: %d", sol.ValidSats)
	}
	week, tow := dash, dash
	if sol.Has(telemetry.FieldWeek) {
		week = strconv.FormatUint(uint64(sol.Week), 10)
	}
	if sol.Has(telemetry.FieldTowMs) {
		tow = fixed(float64(sol.TowMs)/1000, 3) + " s"
	}
	v.WeekTow = "Week " + week + "  |  TOW " + tow
	if utc, ok := sol.UTC(); ok {
		v.UTC = "UTC Time: " + utc.Format("2006-01-02 15:04:05.000") + " UTC"
	}
	return v
}

type Status struct {
	Connected   bool          `json:"connected"`
	Page        string        `json:"page"`
	Capacity    int           `json:"capacity"`
	Messages    int           `json:"messages"`
	Rejected    int           `json:"rejected"`
	Skipped     int           `json:"skipped"`
	Paints      int           `json:"paints"`
	TrackPoints int           `json:"track_points"`
	Solution    *SolutionView `json:"solution,omitempty"`
	Channels    []ChannelRow  `json:"channels"`
}

// Status returns the current summary and observables page content.
func (s *Session) Status() Status {
	st := Status{
		Connected:   s.connected,
		Page:        s.page,
		Capacity:    s.Store.Capacity(),
		Messages:    s.messages,
		Rejected:    s.rejected,
		Skipped:     s.skipped,
		Paints:      s.Render.Paints(),
		TrackPoints: len(s.track),
		Channels:    make([]ChannelRow, 0, s.rows.Len()),
	}
	if s.latest != nil {
		v := newSolutionView(*s.latest, s.host.Now().Sub(s.lastPVT))
		st.Solution = &v
	}
	for pair := s.rows.Oldest(); pair != nil; pair = pair.Next() {
		st.Channels = append(st.Channels, newChannelRow(pair.Value))
	}
	return st
}
