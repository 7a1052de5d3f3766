/*
Package main is the entry point for the Teamwire real-time server.

It loads configuration, initializes the global logging system, wires the
presence registry, topic router, delivery state machine, reaction ledger, and
interrupt signal together, and handles operating system interrupt signals
(SIGINT, SIGTERM) for a graceful shutdown.
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"teamwire/internal/app/db"
	"teamwire/internal/app/realtime"
	"teamwire/internal/app/store"
	"teamwire/internal/configs"
	"teamwire/internal/handler"
	"teamwire/internal/pkg/limiter"
	"teamwire/internal/pkg/logx"
)

func main() {
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logx.InitGlobalLogger(cfg.Environment == "development")
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Dur("offline_grace", cfg.OfflineGrace).
		Int("buzz_limit", cfg.BuzzLimit).
		Dur("buzz_window", cfg.BuzzWindow).
		Msg("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Message store: Postgres in production, in-memory fallback for
	// development runs without a reachable database.
	var messageStore store.MessageStore
	pool, err := db.NewPool(cfg.DatabaseDSN)
	if err != nil {
		if cfg.Environment != "development" {
			logx.Fatal(err, "Failed to connect to database")
		}
		logx.Warn("Database unavailable, falling back to in-memory message store.", "error", err.Error())
		messageStore = store.NewMemoryStore()
	} else {
		defer pool.Close()
		messageStore = store.NewPgStore(pool)
	}

	registry := realtime.NewRegistry(cfg.OfflineGrace)
	router := realtime.NewRouter(registry)
	delivery := realtime.NewDelivery(messageStore, router)
	reactions := realtime.NewLedger(messageStore, router)

	buzzLimiter := limiter.NewWindowLimiter(cfg.BuzzLimit, cfg.BuzzWindow)
	defer buzzLimiter.Stop()
	buzzer := realtime.NewBuzzer(buzzLimiter, router, registry)

	deps := &handler.AppDeps{
		Config:    cfg,
		Registry:  registry,
		Router:    router,
		Delivery:  delivery,
		Reactions: reactions,
		Buzzer:    buzzer,
		Store:     messageStore,
	}

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      handler.Router(deps),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("Teamwire server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Fatal(err, "Server forced to shutdown")
	}

	for _, c := range registry.AllConns() {
		c.Close()
	}

	logx.Info("Server gracefully stopped.")
}
