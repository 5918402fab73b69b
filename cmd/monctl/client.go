// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"gitlab.com/postmarketOS/gnss_monitor/internal/control"
)

type client struct {
	base string
	http *http.Client
}

func newClient(base string) *client {
	return &client{
		base: strings.TrimSuffix(base, "/"),
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

type reply struct {
	control.Result
	raw []byte
}

// Describe renders a reply as one line for the terminal.
func (r reply) Describe() string {
	if !r.OK {
		return "error: " + r.Error
	}
	conf := "-"
	if r.Config != nil {
		conf = *r.Config
	}
	s := fmt.Sprintf("GNSS-SDR %s (config: %s)", r.State, conf)
	if r.Message != "" {
		s += ": " + r.Message
	}
	return s
}

func (c *client) do(method, path string) ([]byte, error) {
	req, err := http.NewRequest(method, c.base+path, nil)
	if err != nil {
		return nil, fmt.Errorf("monctl: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("monctl: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("monctl: reading %s: %w", path, err)
	}
	return body, nil
}

func (c *client) result(method, path string) (reply, error) {
	body, err := c.do(method, path)
	if err != nil {
		return reply{}, err
	}
	r := reply{raw: body}
	if err := json.Unmarshal(body, &r.Result); err != nil {
		return reply{}, fmt.Errorf("monctl: decoding %s: %w", path, err)
	}
	return r, nil
}

func (c *client) Start(variant string) (reply, error) {
	path := "/api/gnss/start"
	if variant != "" {
		path += "/" + variant
	}
	return c.result(http.MethodPost, path)
}

func (c *client) Stop() (reply, error) {
	return c.result(http.MethodPost, "/api/gnss/stop")
}

func (c *client) Status() (reply, error) {
	return c.result(http.MethodGet, "/api/gnss/status")
}

func (c *client) Hub() ([]byte, error) {
	return c.do(http.MethodGet, "/api/hub")
}
