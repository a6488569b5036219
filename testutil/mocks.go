// Package testutil provides httptest-backed mocks for the VK API and the
// Google Sheets values API.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
)

// VKCall records one API method invocation against the mock.
type VKCall struct {
	Method string
	Params url.Values
}

// MockVKServer mocks the VK API method endpoint. Responses are registered
// per method name; every call is recorded for assertions.
type MockVKServer struct {
	*httptest.Server

	mu        sync.Mutex
	responses map[string]interface{}
	errors    map[string]map[string]interface{}
	calls     []VKCall
}

// NewMockVKServer creates a mock whose URL can be set as Client.BaseURL.
func NewMockVKServer(t *testing.T) *MockVKServer {
	t.Helper()
	m := &MockVKServer{
		responses: make(map[string]interface{}),
		errors:    make(map[string]map[string]interface{}),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		method := strings.TrimPrefix(r.URL.Path, "/")
		m.mu.Lock()
		m.calls = append(m.calls, VKCall{Method: method, Params: r.Form})
		errPayload, hasErr := m.errors[method]
		resp, hasResp := m.responses[method]
		m.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if hasErr {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"error": errPayload})
			return
		}
		if !hasResp {
			resp = 1
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"response": resp})
	}))
	t.Cleanup(m.Close)
	return m
}

// Respond registers the response payload for a method.
func (m *MockVKServer) Respond(method string, response interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[method] = response
}

// RespondError registers a VK error payload for a method.
func (m *MockVKServer) RespondError(method string, code int, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[method] = map[string]interface{}{"error_code": code, "error_msg": msg}
}

// Calls returns the recorded invocations of a method.
func (m *MockVKServer) Calls(method string) []VKCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []VKCall
	for _, c := range m.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// MockSheetsServer mocks the Sheets values endpoints the bot uses:
// values:batchGet, values:batchUpdate, and single-range updates.
type MockSheetsServer struct {
	*httptest.Server

	mu      sync.Mutex
	rows    [][]interface{}
	updates []SheetUpdate
}

// SheetUpdate records one written range.
type SheetUpdate struct {
	Range  string
	Values [][]interface{}
}

// NewMockSheetsServer serves the given rows for any batchGet request.
func NewMockSheetsServer(t *testing.T, rows [][]interface{}) *MockSheetsServer {
	t.Helper()
	m := &MockSheetsServer{rows: rows}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, ":batchGet"):
			m.mu.Lock()
			rows := m.rows
			m.mu.Unlock()
			rng := r.URL.Query().Get("ranges")
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"valueRanges": []map[string]interface{}{{"range": rng, "values": rows}},
			})
		case strings.HasSuffix(r.URL.Path, ":batchUpdate"):
			var body struct {
				Data []struct {
					Range  string          `json:"range"`
					Values [][]interface{} `json:"values"`
				} `json:"data"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			m.mu.Lock()
			for _, d := range body.Data {
				m.updates = append(m.updates, SheetUpdate{Range: d.Range, Values: d.Values})
			}
			m.mu.Unlock()
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"totalUpdatedCells": len(body.Data)})
		case r.Method == http.MethodPut:
			var body struct {
				Values [][]interface{} `json:"values"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			parts := strings.Split(r.URL.Path, "/values/")
			rng := ""
			if len(parts) == 2 {
				rng, _ = url.PathUnescape(parts[1])
			}
			m.mu.Lock()
			m.updates = append(m.updates, SheetUpdate{Range: rng, Values: body.Values})
			m.mu.Unlock()
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"updatedCells": 1})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(m.Close)
	return m
}

// SetRows replaces the rows served by batchGet.
func (m *MockSheetsServer) SetRows(rows [][]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = rows
}

// Updates returns all recorded writes.
func (m *MockSheetsServer) Updates() []SheetUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SheetUpdate(nil), m.updates...)
}
