package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("VK_GROUP_TOKEN", "")
	t.Setenv("VK_CONVERSATION_ID", "")
	t.Setenv("SHEETS_SHEET_NAME", "")
	t.Setenv("SHEETS_ROW_START", "")
	t.Setenv("SHEETS_ROW_END", "")
	t.Setenv("REFRESH_INTERVAL", "")
	t.Setenv("JOIN_NOTICE_OFFSET", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.SheetName != "Лист1" {
		t.Errorf("SheetName = %q, want default", cfg.SheetName)
	}
	if cfg.RowStart != 2 || cfg.RowEnd != 400 {
		t.Errorf("row range = %d..%d, want 2..400", cfg.RowStart, cfg.RowEnd)
	}
	if cfg.RefreshInterval != 30*time.Second {
		t.Errorf("RefreshInterval = %v, want 30s", cfg.RefreshInterval)
	}
	if cfg.JoinNoticeOffset != 20 {
		t.Errorf("JoinNoticeOffset = %d, want 20", cfg.JoinNoticeOffset)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"bad conversation id", "VK_CONVERSATION_ID", "not-a-number"},
		{"bad row start", "SHEETS_ROW_START", "0"},
		{"bad refresh interval", "REFRESH_INTERVAL", "soon"},
		{"negative join offset", "JOIN_NOTICE_OFFSET", "-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			if _, err := Load(); err == nil {
				t.Errorf("Load() accepted %s=%q", tt.key, tt.val)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{VKToken: "tok", ConversationID: 2000000002, SpreadsheetID: "sheet-id"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
	for _, mutate := range []func(*Config){
		func(c *Config) { c.VKToken = "" },
		func(c *Config) { c.ConversationID = 0 },
		func(c *Config) { c.SpreadsheetID = "" },
	} {
		c := *cfg
		mutate(&c)
		if err := c.Validate(); err == nil {
			t.Errorf("Validate() passed for incomplete config %+v", c)
		}
	}
}
