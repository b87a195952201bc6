// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ffutop/modbus-bitwriter/internal/config"
)

const usage = `Usage: modbus-bitwriter <command> [flags]

Commands:
  write     write bits: write -d plc1 HR1.3=true HR1.5=0, or write -f batch.yaml
  shell     interactive bit writes against one device
  simulate  serve local devices to Modbus masters

Run 'modbus-bitwriter <command> -h' for the flags of a command.
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run dispatches a subcommand and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	switch args[0] {
	case "write":
		return cmdWrite(args[1:], stdout, stderr)
	case "shell":
		return cmdShell(args[1:], stdout, stderr)
	case "simulate":
		return cmdSimulate(args[1:], stderr)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}
}

func setupLogger(cfg config.LogConfig, fallback io.Writer) {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.File != "" && cfg.File != "-" {
		f, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Fprintf(fallback, "Failed to open log file, falling back to stderr: %v\n", err)
			handler = slog.NewTextHandler(fallback, opts)
		} else {
			handler = slog.NewTextHandler(f, opts)
		}
	} else {
		handler = slog.NewTextHandler(fallback, opts)
	}
	slog.SetDefault(slog.New(handler))
}
