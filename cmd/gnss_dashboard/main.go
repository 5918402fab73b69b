// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"gitlab.com/postmarketOS/gnss_monitor/internal/chartpng"
	"gitlab.com/postmarketOS/gnss_monitor/internal/config"
	"gitlab.com/postmarketOS/gnss_monitor/internal/dashboard"
	"gitlab.com/postmarketOS/gnss_monitor/internal/logging"
	"gitlab.com/postmarketOS/gnss_monitor/internal/loop"
)

var (
	confFile string
	url      string
	listen   string
	outDir   string
	width    int
	height   int
)

var rootCmd = &cobra.Command{
	Use:   "gnss_dashboard",
	Short: "Chart the telemetry streamed by gnss_monitor",
	Long: `gnss_dashboard subscribes to the gnss_monitor WebSocket, keeps a bounded
history of every quantity and renders charts, statistics and status pages that
are served over HTTP and optionally written to a directory.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := config.Parse(confFile)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) || cmd.Flags().Changed("config") {
				return err
			}
			conf = config.Default()
		}
		if cmd.Flags().Changed("url") {
			conf.Display.URL = url
		}
		if cmd.Flags().Changed("listen") {
			conf.Display.Listen = listen
		}
		if cmd.Flags().Changed("out-dir") {
			conf.Display.OutDir = outDir
		}

		logs := logging.Setup(conf.Log)
		defer logs.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return run(ctx, conf.Display)
	},
}

func init() {
	rootCmd.Flags().StringVarP(&confFile, "config", "c", "/etc/gnss_monitor.conf", "configuration file to use")
	rootCmd.Flags().StringVar(&url, "url", "", "subscriber URL of gnss_monitor (overrides display.url)")
	rootCmd.Flags().StringVar(&listen, "listen", "", "address to serve the dashboard on (overrides display.listen)")
	rootCmd.Flags().StringVar(&outDir, "out-dir", "", "also write every chart into this directory (overrides display.out_dir)")
	rootCmd.Flags().IntVar(&width, "width", 800, "chart width in pixels")
	rootCmd.Flags().IntVar(&height, "height", 300, "chart height in pixels")
}

func run(ctx context.Context, d config.Display) error {
	if d.OutDir != "" {
		if err := os.MkdirAll(d.OutDir, 0755); err != nil {
			return fmt.Errorf("run(): %w", err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	l := loop.New(d.FrameInterval())
	painter := chartpng.New(width, height, d.OutDir)
	session := dashboard.NewSession(l, dashboard.OptionsFrom(d), painter)
	link := dashboard.NewLink(d.URL, d.Reconnect(), l, session)
	srv := dashboard.NewServer(session, l, painter)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		l.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		link.Run(ctx)
	}()

	l.Post(session.Start)
	fmt.Printf("Subscribing to %s\n", d.URL)

	err := srv.ListenAndServe(ctx, d.Listen)
	cancel()
	wg.Wait()
	return err
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
