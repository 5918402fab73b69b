// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

// Package producer runs the external GNSS-SDR process and forwards its
// output to the log.
package producer

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"

	"gitlab.com/postmarketOS/gnss_monitor/internal/control"
)

// Launcher starts Command with "-c <conf>" for every launch.
type Launcher struct {
	Command string
	// Dir is the working directory of the process, empty for the current
	// one.
	Dir    string
	Logger *log.Logger
}

func New(command, dir string) *Launcher {
	return &Launcher{Command: command, Dir: dir, Logger: log.Default()}
}

type Process struct {
	cmd    *exec.Cmd
	output sync.WaitGroup
}

func (l *Launcher) Launch(variant, confPath string) (control.Process, error) {
	cmd := exec.Command(l.Command, "-c", confPath)
	cmd.Dir = l.Dir
	cmd.Stdin = nil

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("producer/Launcher.Launch: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("producer/Launcher.Launch: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("producer/Launcher.Launch: %w", err)
	}

	p := &Process{cmd: cmd}
	p.output.Add(2)
	go l.forward(&p.output, "[gnss-sdr stdout]", stdout)
	go l.forward(&p.output, "[gnss-sdr stderr]", stderr)

	l.logger().Printf("Started GNSS-SDR (%s, pid %d): %s -c %s", variant, cmd.Process.Pid, l.Command, confPath)
	return p, nil
}

func (l *Launcher) logger() *log.Logger {
	if l.Logger == nil {
		return log.Default()
	}
	return l.Logger
}

// maxLine is the longest output line logged; longer ones end the logging
// of that stream.
const maxLine = 1 << 20

// forward logs r line by line and keeps draining it after a read error so
// the process never blocks on a full pipe.
func (l *Launcher) forward(wg *sync.WaitGroup, prefix string, r io.Reader) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)
	for scanner.Scan() {
		l.logger().Println(prefix, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		l.logger().Printf("%s output no longer logged: %v", prefix, err)
		io.Copy(io.Discard, r)
	}
}

func (p *Process) Terminate() error {
	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("producer/Process.Terminate: %w", err)
	}
	return nil
}

// Wait returns once the output is drained and the process has exited.
func (p *Process) Wait() error {
	p.output.Wait()
	return p.cmd.Wait()
}

// Variants builds the variant table: relative paths are resolved against
// baseDir, which defaults to $GNSS_SDR_HOME or ~/gnss-sdr.
func Variants(baseDir string, paths map[string]string) map[string]string {
	if baseDir == "" {
		baseDir = DefaultBaseDir()
	}
	out := make(map[string]string, len(paths))
	for name, p := range paths {
		if !filepath.IsAbs(p) {
			p = filepath.Join(baseDir, p)
		}
		out[name] = p
	}
	return out
}

func DefaultBaseDir() string {
	if d := os.Getenv("GNSS_SDR_HOME"); d != "" {
		return d
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "gnss-sdr"
	}
	return filepath.Join(home, "gnss-sdr")
}
