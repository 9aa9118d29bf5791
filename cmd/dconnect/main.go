// Command dconnect is a terminal client for the Dconnect courier
// marketplace.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"go.uber.org/fx"

	"github.com/dconnect/courier/internal/model"
)

// options are the command-line settings that are not config keys.
type options struct {
	ConfigPath      string
	ImportLocations string
	Flags           *pflag.FlagSet
}

const lifecycleTimeout = 15 * time.Second

func main() {
	// A missing .env file is normal.
	_ = godotenv.Load()

	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if err := run(opts); err != nil {
		fmt.Fprintln(os.Stderr, "dconnect:", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, error) {
	fs := pflag.NewFlagSet("dconnect", pflag.ContinueOnError)
	fs.SortFlags = false

	opts := options{Flags: fs}
	fs.StringVarP(&opts.ConfigPath, "config", "c", model.DefaultConfigPath(), "path to the YAML config file")
	fs.String("api", "", "backend base URL (api.base_url)")
	fs.String("ws", "", "push endpoint URL (push.url)")
	fs.String("log-level", "", "log level: debug, info, warn or error (log.level)")
	fs.StringVar(&opts.ImportLocations, "import-locations", "", "import a location catalogue JSON file and exit")

	if err := fs.Parse(args); err != nil {
		return options{}, errors.Wrap(err, "parsing flags")
	}
	return opts, nil
}

func run(opts options) error {
	var program *tea.Program
	var importer *locationImporter

	app := fx.New(
		fx.NopLogger,
		fx.Supply(opts),
		injectInfra(),
		injectServices(),
		fx.Provide(newProgram, newLocationImporter),
		fx.Populate(&program, &importer),
	)
	if err := app.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(context.Background(), lifecycleTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), lifecycleTimeout)
		defer cancel()
		_ = app.Stop(stopCtx)
	}()

	if opts.ImportLocations != "" {
		return importer.Import(context.Background(), opts.ImportLocations)
	}

	_, err := program.Run()
	return err
}
