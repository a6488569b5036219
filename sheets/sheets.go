// Package sheets wraps the Google Sheets API for the single purpose of reading
// and writing the hostel roster. All access goes through batch value calls
// addressed by A1 ranges; the package never scans a spreadsheet.
package sheets

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/oauth2/google"
	sheetsapi "google.golang.org/api/sheets/v4"
	"google.golang.org/api/option"
)

// Client provides the value read/write operations the roster store needs.
type Client struct {
	svc           *sheetsapi.Service
	spreadsheetID string
}

// New builds a client authenticated with a service-account key file.
func New(ctx context.Context, credentialsFile, spreadsheetID string) (*Client, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read service account key: %w", err)
	}
	jwt, err := google.JWTConfigFromJSON(data, sheetsapi.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account key: %w", err)
	}
	return NewWithOptions(ctx, spreadsheetID, option.WithTokenSource(jwt.TokenSource(ctx)))
}

// NewWithOptions builds a client with explicit API options. Tests use this to
// point the service at a local mock via option.WithEndpoint.
func NewWithOptions(ctx context.Context, spreadsheetID string, opts ...option.ClientOption) (*Client, error) {
	svc, err := sheetsapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID}, nil
}

// BatchGet fetches the given A1 ranges in one call. The result holds one slice
// of rows per requested range, cells stringified.
func (c *Client) BatchGet(ctx context.Context, ranges []string) ([][][]string, error) {
	resp, err := c.svc.Spreadsheets.Values.BatchGet(c.spreadsheetID).Ranges(ranges...).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("sheets batch get: %w", err)
	}
	out := make([][][]string, 0, len(resp.ValueRanges))
	for _, vr := range resp.ValueRanges {
		rows := make([][]string, 0, len(vr.Values))
		for _, raw := range vr.Values {
			row := make([]string, 0, len(raw))
			for _, cell := range raw {
				row = append(row, stringify(cell))
			}
			rows = append(rows, row)
		}
		out = append(out, rows)
	}
	return out, nil
}

// BatchUpdate writes one row of values per range in a single call.
func (c *Client) BatchUpdate(ctx context.Context, ranges []string, values [][]string) error {
	if len(ranges) != len(values) {
		return fmt.Errorf("sheets batch update: %d ranges for %d value rows", len(ranges), len(values))
	}
	data := make([]*sheetsapi.ValueRange, 0, len(ranges))
	for i, rng := range ranges {
		row := make([]interface{}, 0, len(values[i]))
		for _, v := range values[i] {
			row = append(row, v)
		}
		data = append(data, &sheetsapi.ValueRange{Range: rng, Values: [][]interface{}{row}})
	}
	req := &sheetsapi.BatchUpdateValuesRequest{ValueInputOption: "USER_ENTERED", Data: data}
	if _, err := c.svc.Spreadsheets.Values.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("sheets batch update: %w", err)
	}
	return nil
}

// Update writes a single row of values at the given range.
func (c *Client) Update(ctx context.Context, rng string, values []string) error {
	row := make([]interface{}, 0, len(values))
	for _, v := range values {
		row = append(row, v)
	}
	vr := &sheetsapi.ValueRange{Values: [][]interface{}{row}}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("sheets update %s: %w", rng, err)
	}
	return nil
}

func stringify(cell interface{}) string {
	if cell == nil {
		return ""
	}
	if s, ok := cell.(string); ok {
		return s
	}
	return fmt.Sprint(cell)
}
