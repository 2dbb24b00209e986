package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/roniherschmann/go-linkboard/internal/clock"
	"github.com/roniherschmann/go-linkboard/internal/config"
	"github.com/roniherschmann/go-linkboard/internal/core"
	httpapi "github.com/roniherschmann/go-linkboard/internal/http"
	"github.com/roniherschmann/go-linkboard/internal/period"
	"github.com/roniherschmann/go-linkboard/internal/store"
)

// noStore disables the database; redirects keep working, the dashboard fails.
const noStore = "none"

func main() {
	// Fast JSON logs by default; pretty if running in a TTY/dev
	if isatty() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		zerolog.TimeFieldFormat = time.RFC3339
	}

	cfg := config.Load()

	var dsnFlag string
	var portFlag int
	flag.StringVar(&dsnFlag, "dsn", "", "SQLite DSN (overrides env DB_DSN), \"none\" to run without a store")
	flag.IntVar(&portFlag, "port", 0, "listen port (overrides env PORT)")
	flag.Parse()
	if dsnFlag != "" {
		cfg.DBDSN = dsnFlag
	}
	if portFlag != 0 {
		cfg.Port = portFlag
	}

	if cfg.AdminPassword == "" {
		log.Warn().Msg("ADMIN_PASSWORD not set, dashboard login disabled")
	}

	var (
		st     store.Store
		pinger httpapi.Pinger
	)
	if cfg.DBDSN != noStore {
		db, err := store.Open(cfg.DBDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("open store")
		}
		defer db.Close()
		sqlStore := store.NewSQLite(db)
		st, pinger = sqlStore, sqlStore
	} else {
		log.Warn().Msg("running without a store, clicks are not recorded")
	}

	zone := period.Zone(cfg.DisplayOffsetHours)
	clk := clock.System{}
	recorder := core.NewRecorder(st, zone, cfg.ClickBuffer)
	reporter := core.NewReporter(st, clk, zone)

	// Start async click ingester
	ctx, cancel := context.WithCancel(context.Background())
	ingested := make(chan struct{})
	go func() {
		recorder.Run(ctx)
		close(ingested)
	}()

	// HTTP server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           httpapi.NewRouter(cfg, clk, pinger, recorder, reporter),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info().Int("port", cfg.Port).
			Int("links", len(cfg.Catalog.Links)).
			Int("friends", len(cfg.Catalog.Friends)).
			Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutdown signal")
	shutdownCtx, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}

	// flush buffered clicks before the store closes
	cancel()
	<-ingested
	log.Info().Msg("bye")
}

func isatty() bool {
	fi, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
