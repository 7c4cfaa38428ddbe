// Command sidpol is the operator tool for the complaints dataset: it downloads
// the newest CSV, persists it to the store, queries the store and writes
// Excel reports.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/vinodismyname/sidpol/config"
	"github.com/vinodismyname/sidpol/internal/app"
	"github.com/vinodismyname/sidpol/pkg/version"
)

const usage = `usage: sidpol [-config file] <command> [flags]

commands:
  fetch      download the newest published CSV into the data directory
  load-db    load a dataset (newest by default) and persist it to the store
  db-stats   summarize the stored dataset
  head       print the first stored rows
  kpis       print the headline figures of a selection
  query      run one read-only SELECT against the store
  report     write an Excel report for a selection
  version    print the version
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("sidpol", flag.ContinueOnError)
	global.SetOutput(stderr)
	configPath := global.String("config", "", "Path to a YAML config file")
	global.Usage = func() { fmt.Fprint(stderr, usage) }
	if err := global.Parse(args); err != nil {
		return 2
	}
	rest := global.Args()
	if len(rest) == 0 {
		global.Usage()
		return 2
	}
	name, cmdArgs := rest[0], rest[1:]
	if name == "version" {
		info := version.Build()
		fmt.Fprintf(stdout, "sidpol %s", info.Version)
		if info.Revision != "" {
			fmt.Fprintf(stdout, " (%s)", info.Revision)
		}
		fmt.Fprintln(stdout)
		return 0
	}
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", name)
		global.Usage()
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}
	// The operator owns the store, so free-text SQL is always allowed here.
	cfg.Store.EnableSQL = true
	logger := app.NewLogger(cfg.Log, stderr).With().Str("service", "sidpol-cli").Logger()

	ctx, stop := signal.NotifyContext(logger.WithContext(context.Background()), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger, cmd.store)
	if err != nil {
		fmt.Fprintf(stderr, "bootstrap: %v\n", err)
		return 1
	}
	defer func() { _ = a.Close(context.Background()) }()

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	if err := cmd.run(ctx, &env{app: a, stdout: stdout, logger: logger}, fs, cmdArgs); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 2
		}
		fmt.Fprintf(stderr, "%s: %v\n", name, err)
		return 1
	}
	return 0
}

type env struct {
	app    *app.App
	stdout io.Writer
	logger zerolog.Logger
}

type command struct {
	store bool
	run   func(ctx context.Context, e *env, fs *flag.FlagSet, args []string) error
}

var commands = map[string]command{
	"fetch":    {store: true, run: runFetch},
	"load-db":  {store: true, run: runLoadDB},
	"db-stats": {store: true, run: runDBStats},
	"head":     {store: true, run: runHead},
	"kpis":     {store: false, run: runKPIs},
	"query":    {store: true, run: runQuery},
	"report":   {store: false, run: runReport},
}
