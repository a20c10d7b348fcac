// Package main is the entry point for the Warden migration tool.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/prn-tf/warden/internal/bootstrap"
	"github.com/prn-tf/warden/internal/config"
	"github.com/prn-tf/warden/internal/logging"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch command := os.Args[1]; command {
	case "up":
		err = run(ctx, "up", os.Args[2:], migrateUp)
	case "status":
		err = run(ctx, "status", os.Args[2:], migrateStatus)
	case "version":
		fmt.Printf("Warden Migrate\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)
	case "help", "-h", "--help":
		printUsage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage(os.Stderr)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "warden-migrate: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, name string, args []string, fn func(context.Context, *bootstrap.Core, io.Writer) error) error {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	configPath := fs.StringP("config", "c", "", "path to config file")
	verbose := fs.BoolP("verbose", "v", false, "log at debug level")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	logger, logs, err := logging.New(logging.ForCommand(cfg.Logging, *verbose))
	if err != nil {
		return err
	}
	defer logs.Close()

	core, err := bootstrap.Open(ctx, cfg, logger, bootstrap.Options{})
	if err != nil {
		return err
	}
	defer core.Close()

	return fn(ctx, core, os.Stdout)
}

func migrateUp(ctx context.Context, core *bootstrap.Core, out io.Writer) error {
	applied, err := core.Migrator.Up(ctx)
	if err != nil {
		return err
	}
	if applied == 0 {
		fmt.Fprintln(out, "Schema is up to date")
		return nil
	}
	fmt.Fprintf(out, "Applied %d migration(s)\n", applied)
	return nil
}

func migrateStatus(ctx context.Context, core *bootstrap.Core, out io.Writer) error {
	status, err := core.Migrator.Status(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Dialect:  %s\n", core.Pool.Dialect())
	fmt.Fprintf(out, "Current:  %d\n", status.Current)
	fmt.Fprintf(out, "Latest:   %d\n", status.Latest)
	if len(status.Pending) == 0 {
		fmt.Fprintln(out, "Pending:  none")
		return nil
	}
	fmt.Fprintln(out, "Pending:")
	for _, m := range status.Pending {
		fmt.Fprintf(out, "  %06d  %s\n", m.Version, m.Name)
	}
	return nil
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `Warden Migrate

Usage:
  warden-migrate <command> [--config path] [--verbose]

Commands:
  up        Apply pending migrations
  status    Show the applied version and pending migrations
  version   Print version information
  help      Show this help message`)
}
