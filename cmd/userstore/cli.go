package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/AlibekovAA/userstore/internal/common/bootstrap"
	"github.com/AlibekovAA/userstore/internal/common/config"
	"github.com/AlibekovAA/userstore/internal/user/domain"
	"github.com/AlibekovAA/userstore/internal/user/repository"
	"github.com/AlibekovAA/userstore/internal/user/service"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

const usage = `usage: userstore [-config file] [-v] <command> [flags] [args]

commands:
  add     [-scope s] [-name n] [-attr k=v]... [id]   register a user, generating an id when none is given
  update  [-scope s] [-name n] [-attr k=v]... <id>   replace fields of a stored user
  rescope <id> <scope>                               move a user to another scope
  fetch   <id>                                       print a stored user
  remove  <id>                                       delete a user and print what was stored
  list    [scope]                                    print the members of a scope, ordered by id
  exists  <id>                                       print whether a user is stored
`

var errUsage = errors.New("invalid usage")

type command func(ctx context.Context, app *bootstrap.App, args []string, out io.Writer) error

var commands = map[string]command{
	"add":     runAdd,
	"update":  runUpdate,
	"rescope": runRescope,
	"fetch":   runFetch,
	"remove":  runRemove,
	"list":    runList,
	"exists":  runExists,
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("userstore", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to a YAML config file")
	verbose := fs.Bool("v", false, "log at debug level regardless of the configured level")
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return exitUsage
	}
	cmd, ok := commands[rest[0]]
	if !ok {
		fmt.Fprintf(stderr, "userstore: unknown command %q\n", rest[0])
		fs.Usage()
		return exitUsage
	}

	app, err := bootstrap.NewApp(ctx, bootstrap.Options{
		ConfigPath:  *configPath,
		ServiceName: "userstore",
		LogOutput:   stderr,
	})
	if err != nil {
		fmt.Fprintf(stderr, "userstore: %v\n", err)
		return exitFailure
	}
	defer func() {
		if err := app.Close(); err != nil {
			fmt.Fprintf(stderr, "userstore: closing store: %v\n", err)
		}
	}()
	if *verbose {
		app.Log.SetLevel("debug")
	}

	if app.Config.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, app.Config.QueryTimeout)
		defer cancel()
	}

	if err := cmd(ctx, app, rest[1:], stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintf(stderr, "userstore %s: %v\n", rest[0], err)
			return exitUsage
		}
		fmt.Fprintln(stderr, describe(rest[0], err))
		return exitFailure
	}
	return exitOK
}

func describe(cmd string, err error) string {
	switch repository.KindOf(err) {
	case repository.KindDuplicate:
		return fmt.Sprintf("userstore %s: already registered: %v", cmd, err)
	case repository.KindNotFound:
		return fmt.Sprintf("userstore %s: no such user: %v", cmd, err)
	case repository.KindConversion:
		return fmt.Sprintf("userstore %s: invalid user data: %v", cmd, err)
	case repository.KindStorage:
		return fmt.Sprintf("userstore %s: storage unavailable: %v", cmd, err)
	default:
		return fmt.Sprintf("userstore %s: %v", cmd, err)
	}
}

// attrFlag collects repeated -attr key=value flags.
type attrFlag map[string]string

func (a attrFlag) String() string {
	pairs := make([]string, 0, len(a))
	for k, v := range a {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ",")
}

func (a attrFlag) Set(value string) error {
	k, v, ok := strings.Cut(value, "=")
	if !ok || k == "" {
		return fmt.Errorf("attribute %q is not key=value", value)
	}
	a[k] = v
	return nil
}

type recordFlags struct {
	fs    *flag.FlagSet
	scope string
	name  string
	attrs attrFlag
}

func newRecordFlags(name string) *recordFlags {
	rf := &recordFlags{
		fs:    flag.NewFlagSet(name, flag.ContinueOnError),
		attrs: attrFlag{},
	}
	rf.fs.SetOutput(io.Discard)
	rf.fs.StringVar(&rf.scope, "scope", "", "scope the user belongs to")
	rf.fs.StringVar(&rf.name, "name", "", "display name")
	rf.fs.Var(rf.attrs, "attr", "attribute as key=value, repeatable")
	return rf
}

func (rf *recordFlags) parse(args []string) error {
	if err := rf.fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	return nil
}

// options returns only the fields given on the command line.
func (rf *recordFlags) options() []service.RecordOption {
	var opts []service.RecordOption
	rf.fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "scope":
			opts = append(opts, service.WithScope(rf.scope))
		case "name":
			opts = append(opts, service.WithDisplayName(rf.name))
		case "attr":
			opts = append(opts, service.WithAttributes(rf.attrs))
		}
	})
	return opts
}

func exactArgs(args []string, n int) error {
	if len(args) != n {
		return fmt.Errorf("%w: expected %d argument(s), got %d", errUsage, n, len(args))
	}
	return nil
}

// requireScope rejects an empty scope on backends that cannot store one.
func requireScope(backend, scope string) error {
	if backend == config.BackendDynamo && scope == "" {
		return fmt.Errorf("%w: -scope is required on the %s backend", errUsage, backend)
	}
	return nil
}

func runAdd(ctx context.Context, app *bootstrap.App, args []string, out io.Writer) error {
	rf := newRecordFlags("add")
	if err := rf.parse(args); err != nil {
		return err
	}
	if err := requireScope(app.Config.Backend, rf.scope); err != nil {
		return err
	}
	if rf.fs.NArg() > 1 {
		return fmt.Errorf("%w: expected at most one id", errUsage)
	}

	opts := []service.RecordOption{
		service.WithDisplayName(rf.name),
		service.WithAttributes(rf.attrs),
	}

	var u domain.User
	if rf.fs.NArg() == 1 {
		u = domain.New(rf.fs.Arg(0))
		if err := app.Directory.Register(ctx, rf.scope, u, opts...); err != nil {
			return err
		}
	} else {
		var err error
		if u, err = app.Directory.RegisterNew(ctx, rf.scope, opts...); err != nil {
			return err
		}
	}

	record, err := app.Store.Fetch(ctx, u.ID())
	if err != nil {
		return err
	}
	return printJSON(out, record)
}

func runUpdate(ctx context.Context, app *bootstrap.App, args []string, out io.Writer) error {
	rf := newRecordFlags("update")
	if err := rf.parse(args); err != nil {
		return err
	}
	if err := exactArgs(rf.fs.Args(), 1); err != nil {
		return err
	}
	scopeSet := false
	rf.fs.Visit(func(f *flag.Flag) { scopeSet = scopeSet || f.Name == "scope" })
	if scopeSet {
		if err := requireScope(app.Config.Backend, rf.scope); err != nil {
			return err
		}
	}

	record, err := app.Directory.Amend(ctx, rf.fs.Arg(0), rf.options()...)
	if err != nil {
		return err
	}
	return printJSON(out, record)
}

func runRescope(ctx context.Context, app *bootstrap.App, args []string, out io.Writer) error {
	if err := exactArgs(args, 2); err != nil {
		return err
	}
	if err := requireScope(app.Config.Backend, args[1]); err != nil {
		return err
	}
	if err := app.Directory.Rescope(ctx, args[0], args[1]); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s -> %s\n", args[0], args[1])
	return nil
}

func runFetch(ctx context.Context, app *bootstrap.App, args []string, out io.Writer) error {
	if err := exactArgs(args, 1); err != nil {
		return err
	}
	record, err := app.Store.Fetch(ctx, args[0])
	if err != nil {
		return err
	}
	return printJSON(out, record)
}

func runRemove(ctx context.Context, app *bootstrap.App, args []string, out io.Writer) error {
	if err := exactArgs(args, 1); err != nil {
		return err
	}
	record, err := app.Store.Remove(ctx, args[0])
	if err != nil {
		return err
	}
	return printJSON(out, record)
}

func runList(ctx context.Context, app *bootstrap.App, args []string, out io.Writer) error {
	if len(args) > 1 {
		return fmt.Errorf("%w: expected at most one scope", errUsage)
	}
	scope := ""
	if len(args) == 1 {
		scope = args[0]
	}

	records, err := app.Store.List(ctx, scope)
	if err != nil {
		return err
	}
	return printJSON(out, records)
}

func runExists(ctx context.Context, app *bootstrap.App, args []string, out io.Writer) error {
	if err := exactArgs(args, 1); err != nil {
		return err
	}
	ok, err := app.Directory.Exists(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(out, ok)
	return nil
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
