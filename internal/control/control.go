// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

// Package control starts and stops the external telemetry producer. One
// goroutine owns the producer state; requests and process exits reach it as
// messages.
package control

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
)

var (
	ErrAlreadyRunning = errors.New("GNSS-SDR already running")
	ErrNotRunning     = errors.New("GNSS-SDR is not running")
	ErrClosed         = errors.New("controller is not running")
)

type State int

const (
	Stopped State = iota
	Running
	Stopping
	Failed
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Failed:
		return "error"
	}
	return "stopped"
}

// Process is a launched producer.
type Process interface {
	// Terminate asks the process to exit. It does not wait.
	Terminate() error
	// Wait blocks until the process has exited.
	Wait() error
}

type Launcher interface {
	Launch(variant, confPath string) (Process, error)
}

// Result is the answer to every control request, serialised as is by the
// REST surface.
type Result struct {
	OK      bool    `json:"ok"`
	Running bool    `json:"running"`
	Config  *string `json:"config"`
	State   string  `json:"state"`
	Message string  `json:"message,omitempty"`
	Error   string  `json:"error,omitempty"`
}

type op int

const (
	opStart op = iota
	opStop
	opStatus
)

type request struct {
	op      op
	variant string
	reply   chan Result
}

type exitEvent struct {
	proc Process
	err  error
}

type Controller struct {
	launcher       Launcher
	variants       map[string]string
	defaultVariant string

	reqs  chan request
	exits chan exitEvent
	done  chan struct{}

	// owned by Run
	state   State
	variant string
	proc    Process
	note    string
}

// New returns a controller for the given variant name to configuration path
// mapping. defaultVariant is used for empty or unknown names.
func New(l Launcher, variants map[string]string, defaultVariant string) *Controller {
	return &Controller{
		launcher:       l,
		variants:       variants,
		defaultVariant: defaultVariant,
		reqs:           make(chan request),
		exits:          make(chan exitEvent),
		done:           make(chan struct{}),
	}
}

// Variants lists the configured variant names.
func (c *Controller) Variants() []string {
	names := make([]string, 0, len(c.variants))
	for n := range c.variants {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Run processes requests until ctx is cancelled. A producer still running at
// that point is terminated.
func (c *Controller) Run(ctx context.Context) {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			if c.proc != nil {
				log.Println("control: shutting down, terminating GNSS-SDR")
				if err := c.proc.Terminate(); err != nil {
					log.Printf("control: terminate: %v", err)
				}
			}
			return
		case r := <-c.reqs:
			switch r.op {
			case opStart:
				r.reply <- c.start(r.variant)
			case opStop:
				r.reply <- c.stop()
			default:
				r.reply <- c.status()
			}
		case ev := <-c.exits:
			c.exited(ev)
		}
	}
}

func (c *Controller) do(r request) Result {
	r.reply = make(chan Result, 1)
	select {
	case c.reqs <- r:
		return <-r.reply
	case <-c.done:
		return Result{OK: false, Error: ErrClosed.Error(), State: Stopped.String()}
	}
}

// Start launches the producer with the named configuration variant.
func (c *Controller) Start(variant string) Result {
	return c.do(request{op: opStart, variant: variant})
}

// Stop sends the producer a termination request. The reported state stays
// "stopping" until the process has actually exited.
func (c *Controller) Stop() Result {
	return c.do(request{op: opStop})
}

func (c *Controller) Status() Result {
	return c.do(request{op: opStatus})
}

func (c *Controller) resolve(variant string) (name, path string) {
	if p, ok := c.variants[variant]; ok {
		return variant, p
	}
	if variant != "" {
		log.Printf("control: unknown variant %q, using %q", variant, c.defaultVariant)
	}
	return c.defaultVariant, c.variants[c.defaultVariant]
}

func (c *Controller) config() *string {
	if c.variant == "" {
		return nil
	}
	v := c.variant
	return &v
}

func (c *Controller) start(variant string) Result {
	if c.proc != nil {
		return Result{
			OK:      false,
			Running: true,
			Config:  c.config(),
			State:   c.state.String(),
			Error:   ErrAlreadyRunning.Error(),
		}
	}

	name, path := c.resolve(variant)
	proc, err := c.launcher.Launch(name, path)
	if err != nil {
		err = fmt.Errorf("control/Controller.start: %w", err)
		log.Printf("Failed to start GNSS-SDR: %v", err)
		c.state = Failed
		c.variant = ""
		c.note = err.Error()
		return Result{OK: false, Running: false, State: c.state.String(), Error: err.Error()}
	}

	c.proc = proc
	c.variant = name
	c.state = Running
	c.note = ""
	go func() {
		err := proc.Wait()
		select {
		case c.exits <- exitEvent{proc: proc, err: err}:
		case <-c.done:
		}
	}()
	log.Printf("Started GNSS-SDR (%s): %s", name, path)

	return Result{
		OK:      true,
		Running: true,
		Config:  c.config(),
		State:   c.state.String(),
		Message: fmt.Sprintf("GNSS-SDR started (%s)", name),
	}
}

func (c *Controller) stop() Result {
	if c.proc == nil {
		return Result{
			OK:      false,
			Running: false,
			Config:  c.config(),
			State:   c.state.String(),
			Error:   ErrNotRunning.Error(),
		}
	}

	if err := c.proc.Terminate(); err != nil {
		err = fmt.Errorf("control/Controller.stop: %w", err)
		log.Printf("Failed to stop GNSS-SDR: %v", err)
		return Result{OK: false, Running: true, Config: c.config(), State: c.state.String(), Error: err.Error()}
	}
	log.Println("Sent SIGTERM to GNSS-SDR")
	c.state = Stopping

	return Result{
		OK:      true,
		Running: false,
		Config:  c.config(),
		State:   c.state.String(),
		Message: "GNSS-SDR stopping",
	}
}

func (c *Controller) status() Result {
	r := Result{OK: true, Running: c.proc != nil, Config: c.config(), State: c.state.String()}
	switch c.state {
	case Running:
		r.Message = fmt.Sprintf("running (%s)", c.variant)
	case Stopping:
		r.Message = fmt.Sprintf("stopping (%s)", c.variant)
	case Failed:
		r.Message = "error: " + c.note
	default:
		r.Message = "stopped"
		if c.note != "" {
			r.Message += " (" + c.note + ")"
		}
	}
	return r
}

func (c *Controller) exited(ev exitEvent) {
	if ev.proc != c.proc {
		return
	}

	reason := "exit status 0"
	if ev.err != nil {
		reason = ev.err.Error()
	}
	if c.state == Stopping {
		c.note = "GNSS-SDR exited: " + reason
	} else {
		c.note = "GNSS-SDR exited unexpectedly: " + reason
	}
	log.Println(c.note)

	c.proc = nil
	c.variant = ""
	c.state = Stopped
}
