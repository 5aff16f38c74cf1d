package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"forumcore/internal/database"
	"forumcore/internal/handlers"
	"forumcore/internal/middleware"
	"forumcore/internal/router"
)

// Views one client may record for one topic per minute.
const viewsPerMinute = 10

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.migrate(); err != nil {
		return err
	}

	// Seed development data (no-op if data already exists).
	if a.cfg.IsDev() {
		if err := seed(ctx, a); err != nil {
			return err
		}
	}

	limiter := middleware.NewRateLimiter(ctx, viewsPerMinute, time.Minute)
	r := router.New(handlers.NewAPI(a.db, a.svc), limiter)

	srv := &http.Server{
		Addr:         a.cfg.Addr(),
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	flushed := make(chan struct{})
	go func() {
		defer close(flushed)
		flushViewsEvery(ctx, a, a.cfg.ViewFlushInterval)
	}()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", a.cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	}

	// Give active requests up to 30 seconds to complete.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	stop()
	<-flushed
	// Views buffered after the last tick are written before exiting.
	if _, err := a.svc.FlushViews(shutdownCtx); err != nil {
		slog.Error("final view flush failed", "error", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// flushViewsEvery writes buffered views to the database until ctx ends.
func flushViewsEvery(ctx context.Context, a *app, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.svc.FlushViews(ctx); err != nil && ctx.Err() == nil {
				slog.Error("view flush failed", "error", err)
			}
		}
	}
}

func runMigrate(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	return a.migrate()
}

func runSeed(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.migrate(); err != nil {
		return err
	}
	return seed(cmd.Context(), a)
}

// seed creates the admin user and the starter forum hierarchy.
func seed(ctx context.Context, a *app) error {
	if err := database.Seed(ctx, a.db); err != nil {
		return err
	}
	return a.svc.SeedDefaults(ctx, database.AdminUsername)
}

func runRepair(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	start := time.Now()
	report, err := a.svc.Repair(cmd.Context())
	if err != nil {
		return err
	}
	cmd.Printf("repaired %d sections, %d forums, %d topics, %d users in %s\n",
		report.Sections, report.Forums, report.Topics, report.Users, time.Since(start).Round(time.Millisecond))
	return nil
}

func runFlushViews(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.svc.FlushViews(cmd.Context())
	if err != nil {
		return err
	}
	cmd.Printf("flushed views of %d topics\n", n)
	return nil
}
