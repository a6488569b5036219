package vkapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// TestRun drives the long poll loop against a local server: the first poll
// delivers a message and a join, the second reports outdated history
// (failed=1), the third delivers one more message, the fourth reports an
// expired key (failed=2) which forces a fresh server acquisition, then the
// context is cancelled.
func TestRun(t *testing.T) {
	var polls, acquisitions atomic.Int64
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/messages.getLongPollServer", func(w http.ResponseWriter, r *http.Request) {
		// Each acquisition hands out a distinct key and ts so the test can
		// tell which credentials a poll is using.
		n := acquisitions.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"response": map[string]interface{}{"key": fmt.Sprintf("k%d", n), "server": srv.URL, "ts": n * 100},
		})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("act") != "a_check" {
			http.NotFound(w, r)
			return
		}
		switch polls.Add(1) {
		case 1:
			if got := r.URL.Query().Get("ts"); got != "100" {
				t.Errorf("first poll ts = %s, want 100", got)
			}
			if got := r.URL.Query().Get("key"); got != "k1" {
				t.Errorf("first poll key = %s, want k1", got)
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"ts": 5,
				"updates": [][]interface{}{
					{4, 1001, 1, 2000000001, 1700000000, "", "привет", map[string]interface{}{"from": "555"}},
					{52, 6, 2000000001, 777},
					{80, 1, 0}, // counter update, not consumed
				},
			})
		case 2:
			// Outdated history: resume from the provided ts.
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"failed": 1, "ts": 6})
		case 3:
			if got := r.URL.Query().Get("ts"); got != "6" {
				t.Errorf("resumed poll ts = %s, want 6", got)
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"ts": 7,
				"updates": [][]interface{}{
					{4, 1002, 1, 2000000001, 1700000001, "", "пока", map[string]interface{}{"from": "555"}},
				},
			})
		case 4:
			// Expired key: the loop must drop the server and re-acquire.
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"failed": 2})
		case 5:
			if got := r.URL.Query().Get("key"); got != "k2" {
				t.Errorf("re-keyed poll key = %s, want k2", got)
			}
			if got := r.URL.Query().Get("ts"); got != "200" {
				t.Errorf("re-keyed poll ts = %s, want 200", got)
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"ts": 201})
		default:
			cancel()
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"ts": 201})
		}
	})

	c := New("test-token")
	c.BaseURL = srv.URL

	var got []Event
	err := c.Run(ctx, func(ctx context.Context, ev Event) {
		got = append(got, ev)
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("run returned %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("events = %d, want 3: %+v", len(got), got)
	}
	if got[0].Kind != EventMessage || got[0].FromID != 555 || got[0].Text != "привет" {
		t.Errorf("first event = %+v", got[0])
	}
	if got[1].Kind != EventMemberJoin || got[1].UserID != 777 {
		t.Errorf("second event = %+v", got[1])
	}
	if got[2].Text != "пока" {
		t.Errorf("third event = %+v", got[2])
	}
	if n := acquisitions.Load(); n != 2 {
		t.Errorf("server acquisitions = %d, want 2", n)
	}
}
