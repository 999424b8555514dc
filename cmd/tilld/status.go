// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tillgate Contributors

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// statusTimeout bounds the health probe requests.
const statusTimeout = 3 * time.Second

// ServiceStatus holds health probe results for a running tilld instance.
type ServiceStatus struct {
	Addr      string `json:"addr"`
	Live      bool   `json:"live"`
	Ready     bool   `json:"ready"`
	Error     string `json:"error,omitempty"`
	CheckedAt string `json:"checked_at"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	metricsAddr string
	jsonOutput  bool
}

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show health of a running tilld instance",
		Long:  `Query the liveness and readiness probes of a running tilld instance.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.metricsAddr, "metrics-addr", "127.0.0.1:9090", "metrics/health HTTP address of the instance")
	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")

	return cmd
}

func runStatus(cmd *cobra.Command, cfg *statusConfig) error {
	status := queryStatus(cfg.metricsAddr)

	if cfg.jsonOutput {
		out, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to format JSON: %w", err)
		}
		cmd.Println(string(out))
		return nil
	}

	cmd.Printf("tilld at %s\n", status.Addr)
	cmd.Printf("  live:  %v\n", status.Live)
	cmd.Printf("  ready: %v\n", status.Ready)
	if status.Error != "" {
		cmd.Printf("  error: %s\n", status.Error)
	}
	return nil
}

// queryStatus probes the liveness and readiness endpoints.
func queryStatus(addr string) ServiceStatus {
	status := ServiceStatus{
		Addr:      addr,
		CheckedAt: time.Now().UTC().Format(time.RFC3339),
	}

	client := &http.Client{Timeout: statusTimeout}
	base := addr
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	live, err := probe(client, base+"/healthz/liveness")
	if err != nil {
		status.Error = err.Error()
		return status
	}
	status.Live = live

	ready, err := probe(client, base+"/healthz/readiness")
	if err != nil {
		status.Error = err.Error()
		return status
	}
	status.Ready = ready

	return status
}

func probe(client *http.Client, url string) (bool, error) {
	resp, err := client.Get(url)
	if err != nil {
		return false, err
	}
	defer func() { _ = resp.Body.Close() }()
	//nolint:errcheck // drain for keep-alive reuse; probe result is the status code
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK, nil
}
