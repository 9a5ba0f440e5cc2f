package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/ClientImport/internal/config"
	"github.com/JonMunkholm/ClientImport/internal/core"
	"github.com/JonMunkholm/ClientImport/internal/logging"
	"github.com/JonMunkholm/ClientImport/internal/schema"
	"github.com/JonMunkholm/ClientImport/internal/sheet"
	"github.com/JonMunkholm/ClientImport/internal/store"
)

// app holds what every command shares once the environment is loaded.
type app struct {
	out     io.Writer
	envFile string
	cfg     *config.Config
	async   *logging.Async
}

// execute runs the command line in args and releases logging resources.
func execute(out io.Writer, args []string) error {
	root, a := newRootCmd(out)
	defer a.close()
	root.SetArgs(args)
	return root.Execute()
}

func newRootCmd(out io.Writer) (*cobra.Command, *app) {
	a := &app{out: out}

	root := &cobra.Command{
		Use:           "clientimport",
		Short:         "Validate and import client spreadsheets",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd.Name() == "serve")
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&a.envFile, "env", ".env", "environment file to load when present")

	root.AddCommand(
		a.previewCmd(),
		a.importCmd(),
		a.templateCmd(),
		a.rulesCmd(),
		a.serveCmd(),
	)
	return root, a
}

// init loads the env file and configuration and sets up logging. Commands
// other than serve log to stderr so stdout carries only their output.
func (a *app) init(server bool) error {
	if err := godotenv.Load(a.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", a.envFile, err)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg

	if server {
		logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	} else {
		slog.SetDefault(logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format))
	}
	a.async = logging.NewAsync(nil, cfg.Logging.AsyncBuffer)
	return nil
}

func (a *app) close() {
	if a.async != nil {
		a.async.Close()
	}
}

// template looks up a registered template by key.
func (a *app) template(key string) (schema.TemplateSpec, error) {
	spec, ok := schema.Get(key)
	if !ok {
		return schema.TemplateSpec{}, fmt.Errorf("unknown template %q (known: %v)", key, schema.Keys())
	}
	return spec, nil
}

// newService builds the pipeline for spec from the import settings.
func (a *app) newService(spec schema.TemplateSpec) *core.Service {
	sheetName := a.cfg.Import.SheetName
	if sheetName == "" {
		sheetName = spec.SheetName
	}
	return core.NewService(spec, sheet.NewReader(sheetName, a.cfg.Import.MaxFileSize), core.Options{
		Workers:          a.cfg.Import.Workers,
		BatchSize:        a.cfg.Import.BatchSize,
		SampleErrorCap:   a.cfg.Import.SampleErrorCap,
		HeaderSearchRows: a.cfg.Import.HeaderSearchRows,
		MaxConcurrent:    a.cfg.Import.MaxConcurrent,
		MaxWait:          a.cfg.Import.MaxWaitTime,
		Logger:           a.async,
	})
}

// openStore connects and migrates the database. The returned func closes
// the pool.
func (a *app) openStore(ctx context.Context) (*store.Store, func(), error) {
	pool, err := store.Connect(ctx, a.cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	st := store.New(pool)
	if err := st.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return st, pool.Close, nil
}

// existingKeys merges keys read from file and from st. Either may be
// empty.
func (a *app) existingKeys(ctx context.Context, file string, st *store.Store) (core.KeySet, error) {
	keys := core.NewKeySet()
	if file != "" {
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("open existing keys: %w", err)
		}
		defer f.Close()
		fromFile, err := core.ReadKeySet(f)
		if err != nil {
			return nil, err
		}
		keys.Merge(fromFile)
	}
	if st != nil {
		fromDB, err := st.ExistingKeys(ctx)
		if err != nil {
			return nil, err
		}
		keys.Merge(fromDB)
	}
	return keys, nil
}

// userError renders pipeline errors with their support code.
func userError(err error) string {
	if core.MapError(err).Code == "ERR000" {
		return err.Error()
	}
	return core.FormatUserError(err)
}
