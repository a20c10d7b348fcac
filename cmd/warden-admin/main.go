// Package main is the entry point for the Warden admin CLI.
// It installs the schema and first administrator, and manages users.
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

// envPassword supplies a password without exposing it in argv.
const envPassword = "WARDEN_ADMIN_PASSWORD"

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch command := os.Args[1]; command {
	case "version":
		fmt.Printf("Warden Admin CLI\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)

	case "install":
		err = runInstall(ctx, os.Args[2:], os.Stdout)

	case "user":
		err = runUser(ctx, os.Args[2:], os.Stdout)

	case "help", "-h", "--help":
		printUsage(os.Stdout)

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage(os.Stderr)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "warden-admin: %v\n", err)
		os.Exit(1)
	}
}

// commonFlags are accepted by every command that touches the datastore.
type commonFlags struct {
	config  string
	verbose bool
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVarP(&c.config, "config", "c", "", "path to config file")
	fs.BoolVarP(&c.verbose, "verbose", "v", false, "log at debug level")
}

// session is an opened core plus the log output it writes to.
type session struct {
	*bootstrap.Core
	logs io.Closer
}

func (s *session) Close() error {
	err := s.Core.Close()
	_ = s.logs.Close()
	return err
}

// open loads configuration and wires the core. Migrations run only when
// migrate is set.
func (c *commonFlags) open(ctx context.Context, migrate bool) (*session, error) {
	cfg, err := config.Load(c.config)
	if err != nil {
		return nil, err
	}

	logger, logs, err := logging.New(logging.ForCommand(cfg.Logging, c.verbose))
	if err != nil {
		return nil, err
	}

	core, err := bootstrap.Open(ctx, cfg, logger, bootstrap.Options{Migrate: migrate})
	if err != nil {
		_ = logs.Close()
		return nil, err
	}
	return &session{Core: core, logs: logs}, nil
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `Warden Admin CLI

Usage:
  warden-admin <command> [arguments]

Commands:
  install     Create the schema and the first administrator
  user        Manage users (create, list, delete, set-level)
  version     Print version information
  help        Show this help message

Environment Variables:
  WARDEN_ADMIN_PASSWORD   Password for install / user create when --password is omitted
  WARDEN_*                Any configuration key, e.g. WARDEN_DATABASE_DRIVER=mysql

Examples:
  warden-admin install --username site.admin
  warden-admin user create --username some.member --level 0
  warden-admin user list
  warden-admin user delete --username some.member
  warden-admin user delete --id 42
  warden-admin user set-level --id 42 --level 1`)
}
