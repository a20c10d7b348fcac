package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	flag "github.com/spf13/pflag"

	"github.com/prn-tf/warden/internal/domain"
	"github.com/prn-tf/warden/internal/pkg/crypto"
	"github.com/prn-tf/warden/internal/service"
)

// resolvePassword returns the flag value, then the environment, then a
// generated secret. generated reports whether the caller must print it.
func resolvePassword(flagValue string) (password string, generated bool, err error) {
	if flagValue != "" {
		return flagValue, false, nil
	}
	if v := os.Getenv(envPassword); v != "" {
		return v, false, nil
	}
	secret, err := crypto.GenerateSecret()
	if err != nil {
		return "", false, err
	}
	return secret, true, nil
}

func runInstall(ctx context.Context, args []string, out io.Writer) error {
	var (
		common   commonFlags
		username string
		password string
	)
	fs := flag.NewFlagSet("install", flag.ContinueOnError)
	common.register(fs)
	fs.StringVarP(&username, "username", "u", "", "administrator username (required)")
	fs.StringVarP(&password, "password", "p", "", "administrator password (default: $"+envPassword+" or generated)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if username == "" {
		return errors.New("--username is required")
	}

	pw, generated, err := resolvePassword(password)
	if err != nil {
		return err
	}

	core, err := common.open(ctx, true)
	if err != nil {
		return err
	}
	defer core.Close()

	user, err := core.Accounts.Install(ctx, username, pw)
	if err != nil {
		if errors.Is(err, service.ErrAlreadyInstalled) || errors.Is(err, service.ErrInstallInProgress) {
			return fmt.Errorf("refusing to install: %w", err)
		}
		return describe(err)
	}

	fmt.Fprintf(out, "Installed administrator %s (id %d)\n", user.Username(), user.ID())
	if generated {
		fmt.Fprintf(out, "Generated password: %s\n", pw)
	}
	return nil
}

func runUser(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New("user: expected one of create, list, delete, set-level")
	}

	switch args[0] {
	case "create":
		return runUserCreate(ctx, args[1:], out)
	case "list":
		return runUserList(ctx, args[1:], out)
	case "delete":
		return runUserDelete(ctx, args[1:], out)
	case "set-level":
		return runUserSetLevel(ctx, args[1:], out)
	default:
		return fmt.Errorf("user: unknown subcommand %q", args[0])
	}
}

func runUserCreate(ctx context.Context, args []string, out io.Writer) error {
	var (
		common   commonFlags
		username string
		password string
		level    int16
	)
	fs := flag.NewFlagSet("user create", flag.ContinueOnError)
	common.register(fs)
	fs.StringVarP(&username, "username", "u", "", "username (required)")
	fs.StringVarP(&password, "password", "p", "", "password (default: $"+envPassword+" or generated)")
	fs.Int16VarP(&level, "level", "l", -1, "account level (default: standard)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if username == "" {
		return errors.New("--username is required")
	}

	pw, generated, err := resolvePassword(password)
	if err != nil {
		return err
	}

	core, err := common.open(ctx, false)
	if err != nil {
		return err
	}
	defer core.Close()

	input := service.RegisterInput{Username: username, Password: pw}
	if fs.Changed("level") {
		l := domain.AccountLevel(level)
		input.Level = &l
	}

	user, err := core.Accounts.Register(ctx, input)
	if err != nil {
		return describe(err)
	}

	fmt.Fprintf(out, "Created %s (id %d, level %s)\n", user.Username(), user.ID(), user.AccountLevel())
	if generated {
		fmt.Fprintf(out, "Generated password: %s\n", pw)
	}
	return nil
}

func runUserList(ctx context.Context, args []string, out io.Writer) error {
	var common commonFlags
	fs := flag.NewFlagSet("user list", flag.ContinueOnError)
	common.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	core, err := common.open(ctx, false)
	if err != nil {
		return err
	}
	defer core.Close()

	users, err := core.Accounts.List(ctx)
	if err != nil {
		return describe(err)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSERNAME\tLEVEL\tROLE")
	for _, u := range users {
		role := "standard"
		if core.Levels.IsAdministrator(u.AccountLevel()) {
			role = "administrator"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", u.ID(), u.Username(), u.AccountLevel(), role)
	}
	return tw.Flush()
}

func runUserDelete(ctx context.Context, args []string, out io.Writer) error {
	var (
		common   commonFlags
		username string
		id       int64
	)
	fs := flag.NewFlagSet("user delete", flag.ContinueOnError)
	common.register(fs)
	fs.StringVarP(&username, "username", "u", "", "username to delete")
	fs.Int64Var(&id, "id", 0, "user id to delete")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if (username == "") == (id == 0) {
		return errors.New("exactly one of --username or --id is required")
	}

	core, err := common.open(ctx, false)
	if err != nil {
		return err
	}
	defer core.Close()

	var n int64
	if username != "" {
		n, err = core.Accounts.DeleteByUsername(ctx, username)
	} else {
		n, err = core.Accounts.DeleteByID(ctx, id)
	}
	if err != nil {
		return describe(err)
	}

	fmt.Fprintf(out, "Deleted %d user(s)\n", n)
	return nil
}

func runUserSetLevel(ctx context.Context, args []string, out io.Writer) error {
	var (
		common commonFlags
		id     int64
		level  int16
	)
	fs := flag.NewFlagSet("user set-level", flag.ContinueOnError)
	common.register(fs)
	fs.Int64Var(&id, "id", 0, "user id (required)")
	fs.Int16VarP(&level, "level", "l", 0, "new account level (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if id == 0 || !fs.Changed("level") {
		return errors.New("--id and --level are required")
	}

	core, err := common.open(ctx, false)
	if err != nil {
		return err
	}
	defer core.Close()

	user, err := core.Accounts.SetAccountLevel(ctx, id, domain.AccountLevel(level))
	if err != nil {
		return describe(err)
	}

	fmt.Fprintf(out, "%s (id %d) now has level %s\n", user.Username(), user.ID(), user.AccountLevel())
	return nil
}

// describe prefixes err with its error code.
func describe(err error) error {
	return fmt.Errorf("[%s] %w", domain.CodeOf(err), err)
}
