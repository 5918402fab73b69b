// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

// Package logging points the standard logger at stderr and, when configured,
// a size rotated file.
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"gitlab.com/postmarketOS/gnss_monitor/internal/config"
)

// Setup configures the default logger. The returned closer flushes and
// closes the log file, if any.
func Setup(c config.Log) io.Closer {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	if c.File == "" {
		log.SetOutput(os.Stderr)
		return io.NopCloser(nil)
	}

	f := &lumberjack.Logger{
		Filename:   c.File,
		MaxSize:    c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAge:     c.MaxAgeDays,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, f))
	return f
}
