package bot

import (
	"context"
	"testing"

	"github.com/tsutmb/hostel-bot/telemetry"
)

func TestRefreshOnce(t *testing.T) {
	telemetry.Init()
	_, _, store, state, sheet := testBot(t, defaultRows(), defaultMembers())

	// A new resident appears in the sheet between cycles.
	sheet.mu.Lock()
	sheet.rows = append(sheet.rows,
		[]string{"103", "Новиков Ной", "ИЕ", "1", "бюджет", "", "https://vk.com/id300", "FALSE"})
	sheet.mu.Unlock()

	refreshOnce(context.Background(), store, state)

	if len(store.Snapshot().Records) != 3 {
		t.Fatalf("records = %d, want 3", len(store.Snapshot().Records))
	}
	if _, ok := store.FindByVKID(300); !ok {
		t.Error("new resident not picked up")
	}
	admins, users, _ := state.Counts()
	if admins != 1 || users != 2 {
		t.Errorf("membership = %d/%d, want 1/2", admins, users)
	}
}
