// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	c, err := ParseBytes(nil)
	if err != nil {
		t.Fatalf("ParseBytes(): %v", err)
	}
	if c.Server.HTTPAddr != ":4242" {
		t.Errorf("http_addr = %q", c.Server.HTTPAddr)
	}
	if c.Ingress.PVTAddr() != ":1111" || c.Ingress.OBSAddr() != ":1112" {
		t.Errorf("ingress = %s %s", c.Ingress.PVTAddr(), c.Ingress.OBSAddr())
	}
	if c.Display.Capacity != 3000 || c.Display.RenderPoints != 600 || c.Display.StatsBins != 21 {
		t.Errorf("display = %+v", c.Display)
	}
	if c.Display.RenderInterval() != 500*time.Millisecond || c.Display.Reconnect() != 2*time.Second {
		t.Errorf("intervals = %s %s", c.Display.RenderInterval(), c.Display.Reconnect())
	}
	if len(c.Producer.Variants) != 3 || c.Producer.DefaultVariant != "conf1" {
		t.Errorf("producer = %+v", c.Producer)
	}
}

func TestParse(t *testing.T) {
	conf := `
[server]
http_addr = "127.0.0.1:8080"
socket = "/run/gnss_monitor.sock"
group = "gnss"

[ingress]
pvt_port = 2111
obs_port = 2112

[producer]
command = "/usr/bin/gnss-sdr"
default_variant = "live"

[producer.variants]
live = "/etc/gnss-sdr/live.conf"

[display]
capacity = 1000

[nmea]
device = "/dev/ttyUSB0"
baud_rate = 115200
`
	path := filepath.Join(t.TempDir(), "gnss_monitor.conf")
	if err := os.WriteFile(path, []byte(conf), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := Parse(path)
	if err != nil {
		t.Fatalf("Parse(): %v", err)
	}
	if c.Server.Socket != "/run/gnss_monitor.sock" || c.Server.OwnerGroup != "gnss" {
		t.Errorf("server = %+v", c.Server)
	}
	if c.Ingress.PVTPort != 2111 || c.Ingress.OBSPort != 2112 {
		t.Errorf("ingress = %+v", c.Ingress)
	}
	if c.Producer.Variants["live"] != "/etc/gnss-sdr/live.conf" || len(c.Producer.Variants) != 1 {
		t.Errorf("variants = %v", c.Producer.Variants)
	}
	if c.Display.Capacity != 1000 || c.Display.MaxCapacity != 3000 {
		t.Errorf("display = %+v", c.Display)
	}
	if c.NMEA.Device != "/dev/ttyUSB0" || c.NMEA.BaudRate != 115200 {
		t.Errorf("nmea = %+v", c.NMEA)
	}
}

func TestInvalid(t *testing.T) {
	tests := []struct {
		name string
		conf string
	}{
		{"same ports", "[ingress]\npvt_port = 5000\nobs_port = 5000\n"},
		{"port range", "[ingress]\npvt_port = 70000\n"},
		{"unknown default variant", "[producer]\ndefault_variant = \"nope\"\n"},
		{"capacity above max", "[display]\ncapacity = 5000\n"},
		{"negative interval", "[display]\nrender_interval_ms = -1\n"},
		{"bad toml", "[display\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseBytes([]byte(tc.conf)); err == nil {
				t.Errorf("ParseBytes() accepted %q", tc.conf)
			}
		})
	}
}

func TestParseMissingFile(t *testing.T) {
	if _, err := Parse(filepath.Join(t.TempDir(), "missing.conf")); err == nil {
		t.Errorf("Parse() of a missing file succeeded")
	}
}
