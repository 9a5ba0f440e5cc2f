package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/ClientImport/internal/core"
	"github.com/JonMunkholm/ClientImport/internal/schema"
	"github.com/JonMunkholm/ClientImport/internal/store"
)

// signalContext is cancelled on SIGINT or SIGTERM so a running import stops
// and discards its partial results.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func (a *app) previewCmd() *cobra.Command {
	var (
		templateKey string
		keysFile    string
		useDB       bool
		asJSON      bool
	)
	cmd := &cobra.Command{
		Use:   "preview FILE",
		Short: "Report what importing FILE would do without storing anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := a.template(templateKey)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			ctx, cancelTimeout := context.WithTimeout(ctx, a.cfg.Import.Timeout)
			defer cancelTimeout()

			var st *store.Store
			if useDB {
				s, closeDB, err := a.openStore(ctx)
				if err != nil {
					return err
				}
				defer closeDB()
				st = s
			}
			existing, err := a.existingKeys(ctx, keysFile, st)
			if err != nil {
				return err
			}

			result, err := a.newService(spec).PreviewImport(ctx, args[0], existing)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(a.out, result)
			}
			printPreview(a.out, args[0], result)
			return nil
		},
	}
	cmd.Flags().StringVarP(&templateKey, "template", "t", schema.ClientsKey, "import template")
	cmd.Flags().StringVar(&keysFile, "existing-keys", "", "file of tax identifiers already stored, one per line")
	cmd.Flags().BoolVar(&useDB, "db", false, "also treat clients in the database as existing")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func (a *app) importCmd() *cobra.Command {
	var (
		templateKey string
		keysFile    string
		apply       bool
		asJSON      bool
	)
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Validate FILE and, with --apply, store its valid rows",
		Long: "Validate FILE and report every row. With --apply the valid rows are\n" +
			"stored in one transaction and clients already in the database count\n" +
			"as existing. Without --apply nothing is stored.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := a.template(templateKey)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			ctx, cancelTimeout := context.WithTimeout(ctx, a.cfg.Import.Timeout)
			defer cancelTimeout()

			svc := a.newService(spec)
			path := args[0]

			if !apply {
				existing, err := a.existingKeys(ctx, keysFile, nil)
				if err != nil {
					return err
				}
				outcomes, err := svc.ImportClients(ctx, path, existing)
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(a.out, outcomes)
				}
				printOutcomes(a.out, outcomes)
				printPreview(a.out, path, core.Aggregate(outcomes, a.cfg.Import.SampleErrorCap))
				return nil
			}

			st, closeDB, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer closeDB()

			keys := func(ctx context.Context) (core.KeySet, error) {
				return a.existingKeys(ctx, keysFile, st)
			}
			summary, err := svc.ImportAndCommit(ctx, path, keys, st.Committer(spec.Key, filepath.Base(path)))
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(a.out, summary)
			}
			printSummary(a.out, summary)
			return nil
		},
	}
	cmd.Flags().StringVarP(&templateKey, "template", "t", schema.ClientsKey, "import template")
	cmd.Flags().StringVar(&keysFile, "existing-keys", "", "file of tax identifiers already stored, one per line")
	cmd.Flags().BoolVar(&apply, "apply", false, "store valid rows in the database")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func (a *app) templateCmd() *cobra.Command {
	var (
		templateKey string
		showSpec    bool
	)
	cmd := &cobra.Command{
		Use:   "template [PATH]",
		Short: "Write a blank import template (xlsx or csv by extension)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := a.template(templateKey)
			if err != nil {
				return err
			}
			if showSpec {
				return printJSON(a.out, spec)
			}

			path := spec.Key + "_template.xlsx"
			if len(args) == 1 {
				path = args[0]
			}
			if err := a.newService(spec).ExportTemplate(path); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Wrote %s template to %s\n", spec.Label, path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&templateKey, "template", "t", schema.ClientsKey, "import template")
	cmd.Flags().BoolVar(&showSpec, "spec", false, "print the column definitions as JSON instead")
	return cmd
}

func (a *app) rulesCmd() *cobra.Command {
	var templateKey string
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List validation rules in evaluation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			spec, err := a.template(templateKey)
			if err != nil {
				return err
			}
			for i, name := range a.newService(spec).Rules() {
				fmt.Fprintf(a.out, "%2d. %s\n", i+1, name)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&templateKey, "template", "t", schema.ClientsKey, "import template")
	return cmd
}
