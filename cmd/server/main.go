// Command server runs the circulation HTTP API.
package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/circulation/internal/clock"
	"github.com/mmynk/circulation/internal/fines"
	"github.com/mmynk/circulation/internal/httpapi"
	"github.com/mmynk/circulation/internal/ledger"
	"github.com/mmynk/circulation/internal/middleware"
	"github.com/mmynk/circulation/internal/registry"
	"github.com/mmynk/circulation/internal/storage/sqlite"
	"github.com/mmynk/circulation/pkg/logging"
)

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func main() {
	var (
		dbPath   string
		addr     string
		logLevel string
	)

	root := &cobra.Command{
		Use:   "server",
		Short: "Library circulation service",
		Long:  "Serves the circulation API: catalog search, borrower registration, checkout/check-in, and fine reconciliation/payment.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logging.SetupWithLevel(logging.ParseLevel(logLevel))
			return run(dbPath, addr)
		},
	}

	root.Flags().StringVar(&dbPath, "db", getEnv("DB_PATH", "./data/circulation.db"), "path to the SQLite database")
	root.Flags().StringVar(&addr, "addr", getEnv("ADDR", ":8080"), "listen address")
	root.Flags().StringVar(&logLevel, "log-level", getEnv("LOG_LEVEL", "info"), "log level (debug, info, warn, error)")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(dbPath, addr string) error {
	store, err := sqlite.New(dbPath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		return err
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", dbPath)

	// One simulated clock instance feeds every service, so the clock
	// endpoints steer the whole system's notion of "today".
	clk := clock.NewSimulated(clock.System{})

	handler := httpapi.New(
		ledger.New(store, clk),
		fines.New(store, clk),
		registry.New(store),
		clk,
	)

	mux := handler.Routes()
	mux.Handle("GET /metrics", promhttp.Handler())

	wrapped := middleware.WithRequestID(middleware.Logging(middleware.Metrics(mux)))

	// h2c enables HTTP/2 without TLS for local and in-cluster callers.
	h2cHandler := h2c.NewHandler(wrapped, &http2.Server{})

	slog.Info("Circulation server starting", "address", addr)
	if err := http.ListenAndServe(addr, h2cHandler); err != nil {
		slog.Error("Server failed", "error", err)
		return err
	}
	return nil
}
