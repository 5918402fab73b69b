// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

package producer

import (
	"bytes"
	"fmt"
	"log"
	"strings"
	"sync"
	"testing"
	"time"
)

type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

// The launcher passes "-c <conf>", so sh runs the "conf" as a script.
func shLauncher(out *syncBuffer) *Launcher {
	l := New("sh", "")
	l.Logger = log.New(out, "", 0)
	return l
}

func TestOutputIsLogged(t *testing.T) {
	var out syncBuffer
	p, err := shLauncher(&out).Launch("conf1", "echo tracking; echo oops >&2; exit 3")
	if err != nil {
		t.Fatalf("Launch(): %v", err)
	}
	err = p.Wait()
	if err == nil || !strings.Contains(err.Error(), "exit status 3") {
		t.Errorf("Wait() = %v, want exit status 3", err)
	}
	got := out.String()
	for _, want := range []string{"[gnss-sdr stdout] tracking", "[gnss-sdr stderr] oops"} {
		if !strings.Contains(got, want) {
			t.Errorf("log %q lacks %q", got, want)
		}
	}
}

func TestTerminate(t *testing.T) {
	var out syncBuffer
	p, err := shLauncher(&out).Launch("conf1", "exec sleep 10")
	if err != nil {
		t.Fatalf("Launch(): %v", err)
	}
	if err := p.Terminate(); err != nil {
		t.Fatalf("Terminate(): %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- p.Wait() }()
	select {
	case err := <-done:
		if err == nil {
			t.Errorf("Wait() = nil after SIGTERM")
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("process did not exit after SIGTERM")
	}
}

func TestLongOutputLines(t *testing.T) {
	tables := []struct {
		name   string
		length int
		logged bool
	}{
		{"above scanner default", 70000, true},
		{"above limit", maxLine + 1000, false},
	}

	for _, table := range tables {
		var out syncBuffer
		script := fmt.Sprintf(`head -c %d /dev/zero | tr '\0' x; echo
i=0; while [ $i -lt 10000 ]; do echo "tracking channel $i"; i=$((i+1)); done
exit 0`, table.length)
		p, err := shLauncher(&out).Launch("conf1", script)
		if err != nil {
			t.Fatalf("%s: Launch(): %v", table.name, err)
		}

		done := make(chan error, 1)
		go func() { done <- p.Wait() }()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("%s: Wait() = %v", table.name, err)
			}
		case <-time.After(10 * time.Second):
			t.Fatalf("%s: process blocked after a %d byte line", table.name, table.length)
		}

		got := out.String()
		long := strings.Contains(got, strings.Repeat("x", table.length))
		if long != table.logged {
			t.Errorf("%s: long line logged: %v, expected: %v", table.name, long, table.logged)
		}
		if !table.logged && !strings.Contains(got, "output no longer logged") {
			t.Errorf("%s: scanner error not logged", table.name)
		}
		if table.logged && !strings.Contains(got, "tracking channel 9999") {
			t.Errorf("%s: lines after the long one were not logged", table.name)
		}
	}
}

func TestLaunchMissingCommand(t *testing.T) {
	l := New("/nonexistent/gnss-sdr", "")
	if _, err := l.Launch("conf1", "x.conf"); err == nil {
		t.Errorf("Launch() of a missing binary succeeded")
	}
}

func TestVariants(t *testing.T) {
	got := Variants("/opt/gnss", map[string]string{
		"conf1": "conf/File_input/a.conf",
		"conf2": "/etc/b.conf",
	})
	if got["conf1"] != "/opt/gnss/conf/File_input/a.conf" {
		t.Errorf("conf1 = %q", got["conf1"])
	}
	if got["conf2"] != "/etc/b.conf" {
		t.Errorf("conf2 = %q", got["conf2"])
	}
}

func TestDefaultBaseDir(t *testing.T) {
	t.Setenv("GNSS_SDR_HOME", "/srv/gnss-sdr")
	if d := DefaultBaseDir(); d != "/srv/gnss-sdr" {
		t.Errorf("DefaultBaseDir() = %q", d)
	}
}
