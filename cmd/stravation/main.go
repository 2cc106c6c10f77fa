// Command stravation syncs Strava activities and routes into Notion and
// pushes planned training sessions to Google Calendar.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "time/tzdata"

	"stravation/internal/config"
	"stravation/internal/contextutil"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: stravation [-v] <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %-16s %s\n", "env-example", "[-force] [path] write .env.example")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-16s %s\n", c.name, c.usage)
	}
}

func run(args []string, out io.Writer) int {
	global := flag.NewFlagSet("stravation", flag.ContinueOnError)
	global.Usage = func() { usage(os.Stderr) }
	verbose := global.Bool("v", false, "debug logging")
	if err := global.Parse(args); err != nil {
		return 2
	}
	if global.NArg() == 0 {
		usage(os.Stderr)
		return 2
	}
	name, rest := global.Arg(0), global.Args()[1:]

	// env-example must work before any .env exists.
	if name == "env-example" {
		if err := envExample(rest); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			return 1
		}
		return 0
	}

	cmd, ok := findCommand(name)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", name)
		usage(os.Stderr)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		return 1
	}
	logger := newLogger(cfg, *verbose)
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", cfg.Core.LogLevel, "format", cfg.Core.LogFormat)

	if err := cfg.Require(cmd.require...); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}

	a, err := newApp(cfg, out)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = contextutil.WithLogger(ctx, logger.With("command", name))

	if err := cmd.run(ctx, a, rest); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		if errors.Is(err, context.Canceled) {
			slog.Warn("Interrupted", "command", name)
			return 130
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}
