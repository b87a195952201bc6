// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/ffutop/modbus-bitwriter/internal/batch"
	"github.com/ffutop/modbus-bitwriter/internal/config"
	"github.com/ffutop/modbus-bitwriter/internal/transaction"
)

func cmdWrite(args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("write", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	df := addDeviceFlags(fs)
	batchFile := fs.StringP("file", "f", "", "Batch file with the items to write.")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, err := config.LoadConfig(df.config)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load configuration: %v\n", err)
		return 1
	}
	setupLogger(cfg.Log, stderr)

	var items []transaction.Item
	deviceName := df.device
	if *batchFile != "" {
		f, err := batch.Load(*batchFile)
		if err != nil {
			fmt.Fprintf(stderr, "%v\n", err)
			return 1
		}
		if deviceName == "" {
			deviceName = f.Device
		}
		if items, err = f.TransactionItems(); err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", *batchFile, err)
			return 1
		}
	}
	assigned, err := batch.ParseAssignments(fs.Args())
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 2
	}
	items = append(items, assigned...)
	if len(items) == 0 {
		fmt.Fprintln(stderr, "nothing to write")
		return 2
	}

	dev, err := cfg.Device(deviceName)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}
	s, err := openSession(cfg, dev, df.timeout)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, err := s.write(ctx, items)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}
	bad := printResults(stdout, results)
	if bad > 0 || ctx.Err() != nil {
		return 1
	}
	return 0
}

// writeResult pairs a transaction with its result.
type writeResult struct {
	tx     *transaction.MaskWrite
	result transaction.Result
}

// write plans items into one transaction per register and runs them in
// order. Transactions are independent: a failed one does not stop the rest.
func (s *session) write(ctx context.Context, items []transaction.Item) ([]writeResult, error) {
	txs, err := batch.Plan(s.resolver, byte(s.device.SlaveID), items)
	if err != nil {
		return nil, err
	}
	results := make([]writeResult, 0, len(txs))
	for _, tx := range txs {
		if ctx.Err() != nil {
			break
		}
		res, err := s.runner.Run(ctx, tx)
		if err != nil {
			return results, err
		}
		results = append(results, writeResult{tx: tx, result: res})
	}
	return results, nil
}

// printResults prints one line per item and returns the number of bad items.
func printResults(w io.Writer, results []writeResult) int {
	bad := 0
	for _, r := range results {
		fmt.Fprintf(w, "%s %s\n", r.tx, r.result.Outcome)
		for _, item := range r.tx.Items() {
			status := r.result.Status[item.ID]
			if status != transaction.StatusGood {
				bad++
			}
			fmt.Fprintf(w, "  %-24s %-12s %s\n", item.ID, item.Address, status)
		}
	}
	return bad
}
