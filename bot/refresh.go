package bot

import (
	"context"
	"log/slog"
	"time"

	"github.com/tsutmb/hostel-bot/conversation"
	"github.com/tsutmb/hostel-bot/roster"
	"github.com/tsutmb/hostel-bot/telemetry"
)

// StartRefreshJob periodically reloads the roster and the conversation
// membership so event handlers and reconciliation commands work against
// fresh snapshots. A failed cycle keeps the previous snapshots and is
// retried on the next tick.
func StartRefreshJob(ctx context.Context, store *roster.Store, state *conversation.State, interval time.Duration) {
	slog.Info("refresh job starting", slog.Duration("interval", interval))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("refresh job stopped")
			return
		case <-ticker.C:
		}
		cctx := telemetry.WithCorrelation(ctx, newCorrelationID())
		refreshOnce(cctx, store, state)
	}
}

func refreshOnce(ctx context.Context, store *roster.Store, state *conversation.State) {
	log := telemetry.LoggerWithCorr(ctx)
	if telemetry.RefreshCycles != nil {
		telemetry.RefreshCycles.Inc()
	}
	telemetry.TimeFunc(telemetry.RefreshDuration, func() {
		diags, err := store.Refresh(ctx)
		if err != nil {
			log.Warn("roster refresh failed; keeping previous snapshot", slog.Any("err", err))
			if telemetry.RefreshFailures != nil {
				telemetry.RefreshFailures.Inc()
			}
		} else if telemetry.DiagnosticsGauge != nil {
			telemetry.DiagnosticsGauge.Set(float64(len(diags)))
		}
		if err := state.Refresh(ctx); err != nil {
			log.Warn("conversation refresh failed; keeping previous snapshot", slog.Any("err", err))
			if telemetry.RefreshFailures != nil {
				telemetry.RefreshFailures.Inc()
			}
		}
	})

	if telemetry.RosterSizeGauge != nil {
		telemetry.RosterSizeGauge.Set(float64(len(store.Snapshot().Records)))
	}
	if telemetry.MuteIndexGauge != nil {
		telemetry.MuteIndexGauge.Set(float64(store.MuteCount()))
	}
	if telemetry.ConversationGauge != nil {
		admins, users, _ := state.Counts()
		telemetry.ConversationGauge.Set(float64(admins + users))
	}
}
