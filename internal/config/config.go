// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	toml "github.com/pelletier/go-toml"
)

type Config struct {
	Server   Server   `toml:"server"`
	Ingress  Ingress  `toml:"ingress"`
	Producer Producer `toml:"producer"`
	Display  Display  `toml:"display"`
	NMEA     NMEA     `toml:"nmea"`
	NATS     NATS     `toml:"nats"`
	Log      Log      `toml:"log"`
}

type Server struct {
	HTTPAddr string `toml:"http_addr"`
	// Socket is an optional unix socket streaming newline separated
	// envelopes.
	Socket     string `toml:"socket"`
	OwnerGroup string `toml:"group"`
	QueueSize  int    `toml:"queue_size"`
}

type Ingress struct {
	Bind    string `toml:"bind"`
	PVTPort int    `toml:"pvt_port"`
	OBSPort int    `toml:"obs_port"`
}

func (i Ingress) PVTAddr() string { return fmt.Sprintf("%s:%d", i.Bind, i.PVTPort) }
func (i Ingress) OBSAddr() string { return fmt.Sprintf("%s:%d", i.Bind, i.OBSPort) }

type Producer struct {
	Command        string            `toml:"command"`
	BaseDir        string            `toml:"base_dir"`
	DefaultVariant string            `toml:"default_variant"`
	Variants       map[string]string `toml:"variants"`
}

type Display struct {
	URL    string `toml:"url"`
	Listen string `toml:"listen"`
	OutDir string `toml:"out_dir"`

	Capacity     int `toml:"capacity"`
	MinCapacity  int `toml:"min_capacity"`
	MaxCapacity  int `toml:"max_capacity"`
	CapacityStep int `toml:"capacity_step"`

	RenderPoints     int `toml:"render_points"`
	RenderIntervalMs int `toml:"render_interval_ms"`
	FrameRateHz      int `toml:"frame_rate_hz"`
	StatsIntervalMs  int `toml:"stats_interval_ms"`
	StatsBins        int `toml:"stats_bins"`
	ReconnectMs      int `toml:"reconnect_ms"`
	TrackPoints      int `toml:"track_points"`
	MapIntervalMs    int `toml:"map_interval_ms"`
}

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

func (d Display) RenderInterval() time.Duration { return ms(d.RenderIntervalMs) }
func (d Display) StatsInterval() time.Duration  { return ms(d.StatsIntervalMs) }
func (d Display) Reconnect() time.Duration      { return ms(d.ReconnectMs) }
func (d Display) MapInterval() time.Duration    { return ms(d.MapIntervalMs) }
func (d Display) FrameInterval() time.Duration {
	return time.Second / time.Duration(d.FrameRateHz)
}

type NMEA struct {
	Device   string `toml:"device"`
	BaudRate int    `toml:"baud_rate"`
}

type NATS struct {
	URL     string `toml:"url"`
	Subject string `toml:"subject"`
}

type Log struct {
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// Default returns the configuration used for every key a file leaves out.
func Default() *Config {
	c := &Config{}
	c.setDefaults()
	return c
}

func Parse(file string) (c *Config, err error) {
	contents, err := os.ReadFile(file)
	if err != nil {
		err = fmt.Errorf("config.Parse(): %w", err)
		return
	}

	c, err = ParseBytes(contents)
	if err != nil {
		err = fmt.Errorf("config.Parse(): %s: %w", file, err)
	}
	return
}

func ParseBytes(contents []byte) (c *Config, err error) {
	c = &Config{}
	if err = toml.Unmarshal(contents, c); err != nil {
		return nil, err
	}
	c.setDefaults()
	if err = c.Validate(); err != nil {
		return nil, err
	}
	return
}

func setInt(v *int, def int) {
	if *v == 0 {
		*v = def
	}
}

func setString(v *string, def string) {
	if *v == "" {
		*v = def
	}
}

func (c *Config) setDefaults() {
	setString(&c.Server.HTTPAddr, ":4242")
	setInt(&c.Server.QueueSize, 64)

	setInt(&c.Ingress.PVTPort, 1111)
	setInt(&c.Ingress.OBSPort, 1112)

	setString(&c.Producer.Command, "gnss-sdr")
	setString(&c.Producer.DefaultVariant, "conf1")
	if len(c.Producer.Variants) == 0 {
		c.Producer.Variants = map[string]string{
			"conf1": "conf/File_input/file_GPS_L1_alta_dinamica.conf",
			"conf2": "conf/RealTime_input/all_bands_rtl_realtime.conf",
			"conf3": "conf/File_input/cubesat_GPS.conf",
		}
	}

	d := &c.Display
	setString(&d.URL, "ws://localhost:4242/ws")
	setString(&d.Listen, ":4243")
	setInt(&d.Capacity, 3000)
	setInt(&d.MinCapacity, 50)
	setInt(&d.MaxCapacity, 3000)
	setInt(&d.CapacityStep, 50)
	setInt(&d.RenderPoints, 600)
	setInt(&d.RenderIntervalMs, 500)
	setInt(&d.FrameRateHz, 60)
	setInt(&d.StatsIntervalMs, 1000)
	setInt(&d.StatsBins, 21)
	setInt(&d.ReconnectMs, 2000)
	setInt(&d.TrackPoints, 200)
	setInt(&d.MapIntervalMs, 500)

	setInt(&c.NMEA.BaudRate, 9600)
	setString(&c.NATS.Subject, "gnss.telemetry")

	setInt(&c.Log.MaxSizeMB, 10)
	setInt(&c.Log.MaxBackups, 3)
	setInt(&c.Log.MaxAgeDays, 28)
}

func validPort(p int) bool { return p > 0 && p < 65536 }

func (c *Config) Validate() error {
	var errs []error
	if !validPort(c.Ingress.PVTPort) {
		errs = append(errs, fmt.Errorf("ingress.pvt_port %d out of range", c.Ingress.PVTPort))
	}
	if !validPort(c.Ingress.OBSPort) {
		errs = append(errs, fmt.Errorf("ingress.obs_port %d out of range", c.Ingress.OBSPort))
	}
	if c.Ingress.PVTPort == c.Ingress.OBSPort {
		errs = append(errs, fmt.Errorf("ingress.pvt_port and ingress.obs_port are both %d", c.Ingress.PVTPort))
	}
	if _, ok := c.Producer.Variants[c.Producer.DefaultVariant]; !ok {
		errs = append(errs, fmt.Errorf("producer.default_variant %q is not a configured variant", c.Producer.DefaultVariant))
	}

	d := c.Display
	if d.MinCapacity < 1 || d.MinCapacity > d.MaxCapacity {
		errs = append(errs, fmt.Errorf("display capacity range [%d, %d] is empty", d.MinCapacity, d.MaxCapacity))
	}
	if d.Capacity < d.MinCapacity || d.Capacity > d.MaxCapacity {
		errs = append(errs, fmt.Errorf("display.capacity %d outside [%d, %d]", d.Capacity, d.MinCapacity, d.MaxCapacity))
	}
	for name, v := range map[string]int{
		"display.capacity_step":      d.CapacityStep,
		"display.render_points":      d.RenderPoints,
		"display.render_interval_ms": d.RenderIntervalMs,
		"display.frame_rate_hz":      d.FrameRateHz,
		"display.stats_interval_ms":  d.StatsIntervalMs,
		"display.stats_bins":         d.StatsBins,
		"display.reconnect_ms":       d.ReconnectMs,
		"display.track_points":       d.TrackPoints,
		"display.map_interval_ms":    d.MapIntervalMs,
		"server.queue_size":          c.Server.QueueSize,
	} {
		if v < 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, v))
		}
	}
	return errors.Join(errs...)
}
