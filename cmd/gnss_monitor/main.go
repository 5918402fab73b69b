// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"gitlab.com/postmarketOS/gnss_monitor/internal/config"
	"gitlab.com/postmarketOS/gnss_monitor/internal/control"
	"gitlab.com/postmarketOS/gnss_monitor/internal/ingress"
	"gitlab.com/postmarketOS/gnss_monitor/internal/logging"
	"gitlab.com/postmarketOS/gnss_monitor/internal/pool"
	"gitlab.com/postmarketOS/gnss_monitor/internal/producer"
	"gitlab.com/postmarketOS/gnss_monitor/internal/server"
	"gitlab.com/postmarketOS/gnss_monitor/internal/sink"
)

func usage() {
	flag.CommandLine.Usage()
}

func main() {
	var confFile string
	flag.StringVar(&confFile, "c", "/etc/gnss_monitor.conf", "Configuration file to use.")
	var help bool
	flag.BoolVar(&help, "h", false, "Print help and quit.")

	flag.Usage = func() {
		fmt.Println("usage: gnss_monitor [OPTION...]")
		fmt.Println("Receives GNSS-SDR telemetry over UDP and streams it to subscribers.")
		fmt.Println("Options:")
		flag.PrintDefaults()
	}

	flag.Parse()

	if help {
		usage()
		return
	}

	conf, err := config.Parse(confFile)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Fatal(err)
		}
		fmt.Printf("%s not found, using the default configuration\n", confFile)
		conf = config.Default()
	}

	logs := logging.Setup(conf.Log)
	defer logs.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, conf); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, conf *config.Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// connection broadcast pool
	connPool := pool.New()
	connPool.OnActive = func() { fmt.Println("First client connected, forwarding telemetry") }
	connPool.OnIdle = func() { fmt.Println("No clients connected, telemetry is no longer decoded") }

	pvt := ingress.NewSolutions(conf.Ingress.PVTAddr(), connPool)
	obs := ingress.NewObservations(conf.Ingress.OBSAddr(), connPool)
	for _, l := range []*ingress.Listener{pvt, obs} {
		if err := l.Listen(); err != nil {
			return fmt.Errorf("run(): %w", err)
		}
	}

	launcher := producer.New(conf.Producer.Command, conf.Producer.BaseDir)
	variants := producer.Variants(conf.Producer.BaseDir, conf.Producer.Variants)
	ctl := control.New(launcher, variants, conf.Producer.DefaultVariant)

	var sock *server.SocketServer
	if conf.Server.Socket != "" {
		sock = server.NewSocket(conf.Server.Socket, conf.Server.OwnerGroup, connPool, conf.Server.QueueSize)
		if err := sock.Listen(); err != nil {
			return fmt.Errorf("run(): %w", err)
		}
	}

	var wg sync.WaitGroup
	errChan := make(chan error, 8)
	spawn := func(fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				errChan <- err
				cancel()
			}
		}()
	}

	spawn(func() error { connPool.Run(ctx); return nil })
	spawn(func() error { ctl.Run(ctx); return nil })
	spawn(func() error { return pvt.Serve(ctx) })
	spawn(func() error { return obs.Serve(ctx) })

	if sock != nil {
		spawn(func() error { return sock.Serve(ctx) })
	}

	if conf.NMEA.Device != "" {
		port, err := sink.OpenSerial(conf.NMEA.Device, conf.NMEA.BaudRate)
		if err != nil {
			return fmt.Errorf("run(): %w", err)
		}
		defer port.Close()
		fmt.Printf("Writing NMEA sentences to %s at %d baud\n", conf.NMEA.Device, conf.NMEA.BaudRate)
		nmea := sink.NewNMEA(connPool, port)
		spawn(func() error { return nmea.Run(ctx) })
	}

	if conf.NATS.URL != "" {
		nc, err := sink.ConnectNATS(conf.NATS.URL)
		if err != nil {
			return fmt.Errorf("run(): %w", err)
		}
		defer nc.Close()
		fmt.Printf("Relaying telemetry to NATS subject %q\n", conf.NATS.Subject)
		relay := sink.NewRelay(connPool, nc, conf.NATS.Subject)
		spawn(func() error { return relay.Run(ctx) })
	}

	srv := server.New(connPool, ctl, conf.Server.QueueSize, pvt, obs)
	spawn(func() error { return srv.ListenAndServe(ctx, conf.Server.HTTPAddr) })

	<-ctx.Done()
	wg.Wait()
	close(errChan)

	for err := range errChan {
		return err
	}
	return nil
}
