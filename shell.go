// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/spf13/pflag"

	"github.com/ffutop/modbus-bitwriter/internal/batch"
	"github.com/ffutop/modbus-bitwriter/internal/config"
	"github.com/ffutop/modbus-bitwriter/internal/transaction"
)

const shellHelp = `Commands:
  set ADDRESS=VALUE ...   write bits, one mask write per register
  show                    last status of every item written
  help                    this text
  quit                    leave the shell
`

func cmdShell(args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("shell", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	df := addDeviceFlags(fs)
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

	dev, err := cfg.Device(df.device)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          dev.Name + "> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		fmt.Fprintf(stderr, "failed to create readline: %v\n", err)
		return 1
	}
	defer rl.Close()
	// keep log lines from tearing the prompt
	setupLogger(cfg.Log, rl.Stderr())

	s, err := openSession(cfg, dev, df.timeout)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	sh := newShell(s, rl.Stdout())
	fmt.Fprint(sh.out, shellHelp)
	for ctx.Err() == nil {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			break
		}
		if sh.exec(ctx, line) {
			break
		}
	}
	return 0
}

// shell executes interactive commands against one session.
type shell struct {
	session *session
	out     io.Writer
	// last status per item id
	status map[string]itemStatus
}

type itemStatus struct {
	address string
	status  transaction.StatusCode
	outcome transaction.Outcome
}

func newShell(s *session, out io.Writer) *shell {
	return &shell{session: s, out: out, status: make(map[string]itemStatus)}
}

// exec runs one command line and reports whether the shell should exit.
func (sh *shell) exec(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	switch strings.ToLower(fields[0]) {
	case "set", "s":
		sh.set(ctx, fields[1:])
	case "show":
		sh.show()
	case "help", "?":
		fmt.Fprint(sh.out, shellHelp)
	case "quit", "exit", "q":
		return true
	default:
		fmt.Fprintf(sh.out, "unknown command %q, try help\n", fields[0])
	}
	return false
}

func (sh *shell) set(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(sh.out, "usage: set ADDRESS=VALUE ...")
		return
	}
	items, err := batch.ParseAssignments(args)
	if err != nil {
		fmt.Fprintf(sh.out, "error: %v\n", err)
		return
	}
	results, err := sh.session.write(ctx, items)
	if err != nil {
		fmt.Fprintf(sh.out, "error: %v\n", err)
		return
	}
	printResults(sh.out, results)
	for _, r := range results {
		for _, item := range r.tx.Items() {
			sh.status[item.ID] = itemStatus{
				address: item.Address.String(),
				status:  r.result.Status[item.ID],
				outcome: r.result.Outcome,
			}
		}
	}
}

func (sh *shell) show() {
	if len(sh.status) == 0 {
		fmt.Fprintln(sh.out, "nothing written yet")
		return
	}
	ids := make([]string, 0, len(sh.status))
	for id := range sh.status {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		st := sh.status[id]
		fmt.Fprintf(sh.out, "%-24s %-12s %-4s %s\n", id, st.address, st.status, st.outcome)
	}
}
