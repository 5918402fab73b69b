// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	baseURL string
	rawJSON bool
)

var rootCmd = &cobra.Command{
	Use:   "monctl",
	Short: "Control GNSS-SDR through a running gnss_monitor",
	Long: `monctl talks to the REST API of gnss_monitor to start and stop GNSS-SDR
and to inspect the telemetry hub.`,
	SilenceUsage: true,
}

var startCmd = &cobra.Command{
	Use:   "start [variant]",
	Short: "Start GNSS-SDR with a configuration variant (the default one if omitted)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		variant := ""
		if len(args) == 1 {
			variant = args[0]
		}
		return show(newClient(baseURL).Start(variant))
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop GNSS-SDR",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return show(newClient(baseURL).Stop())
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether GNSS-SDR is running and with which configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return show(newClient(baseURL).Status())
	},
}

var hubCmd = &cobra.Command{
	Use:   "hub",
	Short: "Show subscriber and ingress counters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := newClient(baseURL).Hub()
		if err != nil {
			return err
		}
		fmt.Println(string(body))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&baseURL, "url", "http://localhost:4242", "base URL of gnss_monitor")
	rootCmd.PersistentFlags().BoolVar(&rawJSON, "json", false, "print the raw JSON reply")
	rootCmd.AddCommand(startCmd, stopCmd, statusCmd, hubCmd)
}

func show(r reply, err error) error {
	if err != nil {
		return err
	}
	if rawJSON {
		fmt.Println(string(r.raw))
	} else {
		fmt.Println(r.Describe())
	}
	if !r.OK {
		return fmt.Errorf("request failed")
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
