// Package server exposes the operational HTTP surface: health, a JSON status
// snapshot, and Prometheus metrics. It injects correlation IDs into request
// contexts for consistent logging.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tsutmb/hostel-bot/bot"
	"github.com/tsutmb/hostel-bot/conversation"
	"github.com/tsutmb/hostel-bot/roster"
	"github.com/tsutmb/hostel-bot/telemetry"
)

// NewMux returns the HTTP handler with all routes.
func NewMux(store *roster.Store, state *conversation.State, dispatcher *bot.Dispatcher) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		snap := store.Snapshot()
		admins, users, bots := state.Counts()
		payload := map[string]interface{}{
			"roster_size": len(snap.Records),
			"diagnostics": len(snap.Diagnostics),
			"active_mutes": store.MuteCount(),
			"admins":      admins,
			"users":       users,
			"bots":        bots,
			"global_mute": dispatcher.GlobalMute(),
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			slog.Warn("failed to encode status", slog.Any("err", err))
		}
	})

	// Correlation ID injector.
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		corr := r.Header.Get("X-Correlation-ID")
		if corr == "" {
			corr = uuid.New().String()
		}
		ctx := telemetry.WithCorrelation(r.Context(), corr)
		w.Header().Set("X-Correlation-ID", corr)
		mux.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Start runs the HTTP server until ctx is cancelled.
func Start(ctx context.Context, store *roster.Store, state *conversation.State, dispatcher *bot.Dispatcher, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewMux(store, state, dispatcher),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("http server shutdown", slog.Any("err", err))
		}
	}()
	slog.Info("http server listening", slog.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
