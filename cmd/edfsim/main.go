// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	sim "github.com/edfkernel/edfkernel"
	"github.com/edfkernel/edfkernel/pkg/config"
	"github.com/edfkernel/edfkernel/pkg/logging"
	"github.com/edfkernel/edfkernel/pkg/metrics"
	"github.com/edfkernel/edfkernel/pkg/taskfile"
)

var (
	// Version information (set at build time)
	Version = "dev"

	protocol  string
	logLevel  string
	logFormat string

	rootCmd = &cobra.Command{
		Use:     "edfsim [task-set-file]",
		Short:   "Discrete-event simulator for EDF scheduling with locking protocols",
		Long:    `edfsim runs a task set through an Earliest-Deadline-First scheduler with pluggable resource-access protocols (simple, hlp, pip) and prints the resulting schedule trace.`,
		Version: Version,
		Args:    cobra.MaximumNArgs(1),
		RunE:    run,
	}
)

func init() {
	// Flag defaults come from pkg/config, which has already folded in any
	// EDFSIM_* environment variable overrides — flags take precedence over
	// both.
	cfg := config.NewDefault()
	cfg.Load()

	rootCmd.Flags().StringVar(&protocol, "protocol", cfg.Protocol, "resource-access protocol: simple, hlp, pip")
	rootCmd.Flags().StringVar(&logLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	rootCmd.Flags().StringVar(&logFormat, "log-format", cfg.LogFormat, "log format: text, json")
}

func run(cmd *cobra.Command, args []string) error {
	path := taskfile.DefaultPath
	if len(args) == 1 {
		path = args[0]
	}

	input, err := taskfile.Load(path)
	if err != nil {
		return err
	}

	cfg := config.NewDefault()
	cfg.Load()
	cfg.Protocol, cfg.LogLevel, cfg.LogFormat = protocol, logLevel, logFormat
	if err := cfg.Validate(); err != nil {
		return err
	}

	opts := sim.DefaultRunOptions()
	opts.LowestPriority = cfg.LowestPriority
	switch cfg.Protocol {
	case "simple":
		opts.Protocol = sim.ProtocolSimple
	case "hlp":
		opts.Protocol = sim.ProtocolHLP
	case "pip":
		opts.Protocol = sim.ProtocolPIP
	}
	opts.Logger = buildLogger()
	opts.Metrics = metrics.NewInMemoryCollector()

	result, err := sim.Simulate(input, opts)
	if err != nil {
		return err
	}

	for _, w := range result.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %v\n", w)
	}

	printTrace(result.Trace)
	return nil
}

func printTrace(trace []sim.TraceRecord) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "START\tEND\tTASK\tJOB\tRESOURCE")
	for _, r := range trace {
		fmt.Fprintf(w, "%g\t%g\t%d\t%d\t%d\n", r.Start, r.End, r.TaskID, r.JobID, r.Resource)
	}
	w.Flush()
}

func buildLogger() logging.Logger {
	level := slog.LevelInfo
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	format := logging.FormatText
	if logFormat == "json" {
		format = logging.FormatJSON
	}

	return logging.NewLogger(&logging.Config{
		Level:   level,
		Format:  format,
		Output:  os.Stderr,
		Version: Version,
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
