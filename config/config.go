// Package config loads environment variables and provides a typed Config used across the service.
// It applies sensible defaults so the binary can run locally with minimal setup.
// Mandatory credentials (VK token, conversation id, spreadsheet id) are checked by Validate.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// VK
	VKToken        string
	ConversationID int64

	// Sheets
	SheetsCredentialsFile string
	SpreadsheetID         string
	SheetName             string
	RowStart              int
	RowEnd                int

	// Behavior
	RefreshInterval  time.Duration
	JoinNoticeOffset int
}

// Load reads environment variables and applies defaults. It doesn't fail on
// missing credentials; call Validate when the bot actually needs them so tests
// and tooling can construct partial configs.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.VKToken = os.Getenv("VK_GROUP_TOKEN")
	if v := os.Getenv("VK_CONVERSATION_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid VK_CONVERSATION_ID: %w", err)
		}
		cfg.ConversationID = id
	}

	cfg.SheetsCredentialsFile = os.Getenv("SHEETS_CREDENTIALS_FILE")
	if cfg.SheetsCredentialsFile == "" {
		cfg.SheetsCredentialsFile = "service_account.json"
	}
	cfg.SpreadsheetID = os.Getenv("SHEETS_SPREADSHEET_ID")
	cfg.SheetName = os.Getenv("SHEETS_SHEET_NAME")
	if cfg.SheetName == "" {
		cfg.SheetName = "Лист1"
	}

	cfg.RowStart = 2
	if v := os.Getenv("SHEETS_ROW_START"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid SHEETS_ROW_START: %q", v)
		}
		cfg.RowStart = n
	}
	cfg.RowEnd = 400
	if v := os.Getenv("SHEETS_ROW_END"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < cfg.RowStart {
			return nil, fmt.Errorf("invalid SHEETS_ROW_END: %q", v)
		}
		cfg.RowEnd = n
	}

	cfg.RefreshInterval = 30 * time.Second
	if v := os.Getenv("REFRESH_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid REFRESH_INTERVAL: %q", v)
		}
		cfg.RefreshInterval = d
	}

	cfg.JoinNoticeOffset = 20
	if v := os.Getenv("JOIN_NOTICE_OFFSET"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid JOIN_NOTICE_OFFSET: %q", v)
		}
		cfg.JoinNoticeOffset = n
	}

	return cfg, nil
}

// Validate checks the fields without which the bot cannot start.
func (c *Config) Validate() error {
	if c.VKToken == "" {
		return fmt.Errorf("missing VK_GROUP_TOKEN")
	}
	if c.ConversationID == 0 {
		return fmt.Errorf("missing VK_CONVERSATION_ID")
	}
	if c.SpreadsheetID == "" {
		return fmt.Errorf("missing SHEETS_SPREADSHEET_ID")
	}
	return nil
}
