// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	MessagesProcessed prometheus.Counter
	MessagesDeleted   prometheus.Counter
	MembersKicked     prometheus.Counter
	KickFailures      prometheus.Counter
	CommandsHandled   prometheus.Counter
	RefreshCycles     prometheus.Counter
	RefreshFailures   prometheus.Counter

	// Histograms (seconds)
	RefreshDuration prometheus.Observer

	// Gauges
	RosterSizeGauge      prometheus.Gauge
	DiagnosticsGauge     prometheus.Gauge
	MuteIndexGauge       prometheus.Gauge
	ConversationGauge    prometheus.Gauge
	GlobalMuteGauge      prometheus.Gauge // 1=active,0=off
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		MessagesProcessed = promauto.NewCounter(prometheus.CounterOpts{Name: "hostel_messages_processed_total", Help: "Number of conversation messages processed"})
		MessagesDeleted = promauto.NewCounter(prometheus.CounterOpts{Name: "hostel_messages_deleted_total", Help: "Number of messages deleted by the bot"})
		MembersKicked = promauto.NewCounter(prometheus.CounterOpts{Name: "hostel_members_kicked_total", Help: "Number of members removed from the conversation"})
		KickFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "hostel_kick_failures_total", Help: "Number of failed member removals"})
		CommandsHandled = promauto.NewCounter(prometheus.CounterOpts{Name: "hostel_commands_handled_total", Help: "Number of bot commands handled"})
		RefreshCycles = promauto.NewCounter(prometheus.CounterOpts{Name: "hostel_refresh_cycles_total", Help: "Number of roster/conversation refresh cycles"})
		RefreshFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "hostel_refresh_failures_total", Help: "Number of failed refresh cycles"})
		RefreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "hostel_refresh_duration_seconds", Help: "Refresh cycle duration seconds", Buckets: prometheus.DefBuckets})
		RosterSizeGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "hostel_roster_size", Help: "Number of resident records in the current roster snapshot"})
		DiagnosticsGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "hostel_roster_diagnostics", Help: "Number of data-quality diagnostics from the last parse"})
		MuteIndexGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "hostel_active_mutes", Help: "Number of entries in the mute index"})
		ConversationGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "hostel_conversation_members", Help: "Number of human members in the conversation snapshot"})
		GlobalMuteGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "hostel_global_mute", Help: "Global mute active=1 off=0"})
	})
}

// UpdateGlobalMuteGauge sets gauge to 1 if active else 0.
func UpdateGlobalMuteGauge(active bool) {
	if GlobalMuteGauge != nil {
		if active {
			GlobalMuteGauge.Set(1)
		} else {
			GlobalMuteGauge.Set(0)
		}
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
