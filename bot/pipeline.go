package bot

import (
	"context"

	"github.com/google/uuid"
	"github.com/tsutmb/hostel-bot/conversation"
	"github.com/tsutmb/hostel-bot/roster"
	"github.com/tsutmb/hostel-bot/telemetry"
)

// snapshots is one mutually consistent pair of roster and conversation
// views. Maintenance handlers always diff against the pair captured here,
// never against state that may move underneath them.
type snapshots struct {
	rosterIDs []int64
	liveIDs   []int64
	records   []roster.Record
}

// Diff computes the kick/invite sets for this snapshot pair.
func (s snapshots) Diff() conversation.Result {
	return conversation.Reconcile(s.rosterIDs, s.liveIDs)
}

// Drift lists presence flags that disagree with live membership.
func (s snapshots) Drift() []roster.StatusChange {
	return conversation.StatusDrift(s.records, s.liveIDs)
}

// withSnapshots is the precomputation pipeline for maintenance commands:
// force a roster refresh, capture both snapshots once, then run the handler
// body against the frozen pair.
func (d *Dispatcher) withSnapshots(ctx context.Context, span string, fn func(ctx context.Context, snap snapshots) error) error {
	ctx, sp := telemetry.StartSpan(ctx, "bot", span)
	defer sp.End()

	if _, err := d.store.Refresh(ctx); err != nil {
		telemetry.RecordError(sp, err)
		return err
	}
	snap := snapshots{
		rosterIDs: d.store.AllVKIDs(),
		liveIDs:   d.state.HumanIDs(),
		records:   d.store.Snapshot().Records,
	}
	if err := fn(ctx, snap); err != nil {
		telemetry.RecordError(sp, err)
		return err
	}
	return nil
}

func newCorrelationID() string {
	return uuid.NewString()
}
