package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/vocdoni/starkvote/log"
)

const (
	defaultHost    = "http://127.0.0.1:5000"
	defaultTimeout = 2 * time.Minute
)

func main() {
	fs := flag.NewFlagSet("starkvote-cli", flag.ContinueOnError)
	host := fs.StringP("host", "H", defaultHost, "node API address")
	timeout := fs.DurationP("timeout", "t", defaultTimeout, "timeout of the whole command")
	account := fs.StringP("account", "a", "", "account submitting the vote (on-chain ledger only)")
	queries := fs.Int("queries", 0, "queried positions of locally generated proofs (0 uses the default)")
	logLevel := fs.StringP("log.level", "l", "warn", "log level (debug, info, warn, error)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: starkvote-cli [flags] <command> [args]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		for _, cmd := range commands {
			fmt.Fprintf(os.Stderr, "  %-34s %s\n", cmd.name+" "+cmd.args, cmd.help)
		}
		fmt.Fprintf(os.Stderr, "\nFlags:\n")
		fs.PrintDefaults()
	}
	fs.SetInterspersed(false)
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		os.Exit(2)
	}
	if err := log.Init(*logLevel, "stderr", nil); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	env := &cliEnv{
		host:    *host,
		account: *account,
		queries: *queries,
		out:     os.Stdout,
	}
	if err := run(ctx, env, fs.Args()); err != nil {
		if errors.Is(err, errUsage) {
			fs.Usage()
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
