// Package main is the entry point for forumd, the forum server. It serves
// the JSON API and operator endpoints, and carries the maintenance
// commands that run against the same database.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:           "forumd",
		Short:         "Forum server and maintenance tool",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogger(jsonLogs)
		},
	}
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Long:  `Connects to PostgreSQL and Valkey, applies migrations, and serves the JSON API together with /health and /metrics until interrupted. Buffered topic views are flushed periodically.`,
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		Args:  cobra.NoArgs,
		RunE:  runMigrate,
	}
	seedCmd = &cobra.Command{
		Use:   "seed",
		Short: "Create the admin user and a starter section, forum and topic",
		Args:  cobra.NoArgs,
		RunE:  runSeed,
	}
	repairCmd = &cobra.Command{
		Use:   "repair",
		Short: "Recompute every denormalized counter, position and last post",
		Long:  `Rebuilds sort orders, post positions, post and topic counts, last post details and profile post counts from the underlying rows. Safe to run on a live forum; a consistent database is left unchanged.`,
		Args:  cobra.NoArgs,
		RunE:  runRepair,
	}
	flushViewsCmd = &cobra.Command{
		Use:   "flush-views",
		Short: "Write buffered topic views from Valkey to the database once",
		Args:  cobra.NoArgs,
		RunE:  runFlushViews,
	}
	jsonLogs bool
)

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Log JSON instead of text (default in production)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(repairCmd)
	rootCmd.AddCommand(flushViewsCmd)
}

// setupLogger installs the default slog logger: text at debug level for
// development, JSON at info level in production.
func setupLogger(asJSON bool) {
	if os.Getenv("APP_ENV") == "production" {
		asJSON = true
	}
	var handler slog.Handler
	if asJSON {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	slog.SetDefault(slog.New(handler))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "command", os.Args[1:], "error", err)
		os.Exit(1)
	}
}
