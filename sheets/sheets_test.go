package sheets

import (
	"context"
	"testing"

	"google.golang.org/api/option"

	"github.com/tsutmb/hostel-bot/testutil"
)

func newTestClient(t *testing.T, srv *testutil.MockSheetsServer) *Client {
	t.Helper()
	c, err := NewWithOptions(context.Background(), "test-spreadsheet",
		option.WithEndpoint(srv.URL+"/"), option.WithoutAuthentication())
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	return c
}

func TestBatchGetStringifiesCells(t *testing.T) {
	srv := testutil.NewMockSheetsServer(t, [][]interface{}{
		{"101", "Иванов Иван", "ИМФИТ", float64(2)},
		{nil, "Петров Пётр"},
	})
	c := newTestClient(t, srv)

	got, err := c.BatchGet(context.Background(), []string{"'Лист1'!A2:I400"})
	if err != nil {
		t.Fatalf("batch get: %v", err)
	}
	if len(got) != 1 || len(got[0]) != 2 {
		t.Fatalf("result shape = %v", got)
	}
	if got[0][0][0] != "101" || got[0][0][3] != "2" {
		t.Errorf("first row = %v", got[0][0])
	}
	if got[0][1][0] != "" {
		t.Errorf("nil cell should stringify empty, got %q", got[0][1][0])
	}
}

func TestBatchUpdate(t *testing.T) {
	srv := testutil.NewMockSheetsServer(t, nil)
	c := newTestClient(t, srv)

	err := c.BatchUpdate(context.Background(),
		[]string{"'Лист1'!H2:H2", "'Лист1'!H5:H5"},
		[][]string{{"TRUE"}, {"FALSE"}})
	if err != nil {
		t.Fatalf("batch update: %v", err)
	}

	ups := srv.Updates()
	if len(ups) != 2 {
		t.Fatalf("updates = %d, want 2", len(ups))
	}
	if ups[0].Range != "'Лист1'!H2:H2" || ups[0].Values[0][0] != "TRUE" {
		t.Errorf("first update = %+v", ups[0])
	}
	if ups[1].Range != "'Лист1'!H5:H5" || ups[1].Values[0][0] != "FALSE" {
		t.Errorf("second update = %+v", ups[1])
	}
}

func TestBatchUpdateShapeMismatch(t *testing.T) {
	srv := testutil.NewMockSheetsServer(t, nil)
	c := newTestClient(t, srv)
	if err := c.BatchUpdate(context.Background(), []string{"'Лист1'!A1:A1"}, nil); err == nil {
		t.Fatal("expected an error for mismatched ranges and values")
	}
}

func TestUpdate(t *testing.T) {
	srv := testutil.NewMockSheetsServer(t, nil)
	c := newTestClient(t, srv)

	if err := c.Update(context.Background(), "'Лист1'!I3:I3", []string{"0"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	ups := srv.Updates()
	if len(ups) != 1 {
		t.Fatalf("updates = %d, want 1", len(ups))
	}
	if ups[0].Range != "'Лист1'!I3:I3" || ups[0].Values[0][0] != "0" {
		t.Errorf("update = %+v", ups[0])
	}
}
