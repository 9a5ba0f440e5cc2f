package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/ClientImport/internal/core"
	"github.com/JonMunkholm/ClientImport/internal/notify"
	"github.com/JonMunkholm/ClientImport/internal/schema"
	"github.com/JonMunkholm/ClientImport/internal/web"
)

func (a *app) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP import API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg
	slog.Info("configuration loaded", "config", cfg.String())

	var services []*core.Service
	for _, spec := range schema.All() {
		services = append(services, a.newService(spec))
	}
	slog.Info("templates registered", "count", len(services), "keys", schema.Keys())

	// A nil *store.Store must not reach the server as a non-nil interface.
	var st web.ClientStore
	if cfg.Database.HasDatabase() {
		s, closeDB, err := a.openStore(ctx)
		if err != nil {
			return err
		}
		defer closeDB()
		st = s
		slog.Info("connected to database")
	} else {
		slog.Warn("DATABASE_URL not set; imports are disabled, previews still work")
	}

	hub := notify.NewHub()
	events, unsubscribe := hub.Subscribe()
	defer unsubscribe()
	go func() {
		for ev := range events {
			slog.Info("import completed",
				"seq", ev.Seq,
				"run_id", ev.RunID,
				"template", ev.Template,
				"file", ev.File,
				"committed", ev.Committed,
				"invalid", ev.Preview.InvalidCount,
				"duplicates", ev.Preview.DuplicateCount,
			)
		}
	}()

	server := web.NewServer(cfg, services, st, hub)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.Server.Addr())
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		hub.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-sigCh:
	}

	slog.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	for _, svc := range services {
		status := svc.LimiterStatus()
		if status.Active == 0 {
			continue
		}
		slog.Info("waiting for imports to complete", "template", svc.Spec().Key, "active", status.Active)
		if err := svc.WaitForDrain(shutdownCtx); err != nil {
			slog.Warn("imports did not complete in time", "template", svc.Spec().Key, "error", err)
		}
	}

	// Closing the hub ends open event streams so Shutdown can finish.
	hub.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
		return err
	}
	slog.Info("server stopped")
	return nil
}
