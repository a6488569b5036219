package vkapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const longPollWait = 25 // seconds, VK maximum

// longPollServer is the response of messages.getLongPollServer.
type longPollServer struct {
	Key    string `json:"key"`
	Server string `json:"server"`
	TS     int64  `json:"ts"`
}

func (c *Client) getLongPollServer(ctx context.Context) (*longPollServer, error) {
	params := url.Values{}
	params.Set("lp_version", "3")
	var out longPollServer
	if err := c.call(ctx, "messages.getLongPollServer", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Handler consumes translated events. Run invokes it sequentially from a
// single goroutine, so handlers never observe each other mid-mutation.
type Handler func(ctx context.Context, ev Event)

// Run drives the user long poll until ctx is cancelled. Poll failures are
// logged and retried with a short backoff; "failed" responses re-key or
// resume per the VK protocol.
func (c *Client) Run(ctx context.Context, handler Handler) error {
	var srv *longPollServer
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if srv == nil {
			s, err := c.getLongPollServer(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				slog.Warn("long poll server request failed", slog.Any("err", err))
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(3 * time.Second):
				}
				continue
			}
			srv = s
			slog.Debug("long poll server acquired", slog.Int64("ts", srv.TS))
		}

		batch, err := c.poll(ctx, srv)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Warn("long poll request failed", slog.Any("err", err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(3 * time.Second):
			}
			continue
		}
		switch batch.Failed {
		case 0:
			srv.TS = batch.TS
			for _, raw := range batch.Updates {
				if ev, ok := translateUpdate(raw); ok {
					handler(ctx, ev)
				}
			}
		case 1:
			// History is outdated; resume from the provided ts.
			srv.TS = batch.TS
		default:
			// Key expired or user data changed; re-acquire the server.
			srv = nil
		}
	}
}

type pollResponse struct {
	TS      int64           `json:"ts"`
	Failed  int             `json:"failed"`
	Updates [][]interface{} `json:"updates"`
}

func (c *Client) poll(ctx context.Context, srv *longPollServer) (*pollResponse, error) {
	addr := srv.Server
	if !strings.Contains(addr, "://") {
		addr = "https://" + addr
	}
	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("long poll server url: %w", err)
	}
	q := u.Query()
	q.Set("act", "a_check")
	q.Set("key", srv.Key)
	q.Set("ts", fmt.Sprintf("%d", srv.TS))
	q.Set("wait", fmt.Sprintf("%d", longPollWait))
	q.Set("mode", "2")
	q.Set("version", "3")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out pollResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("long poll decode: %w", err)
	}
	return &out, nil
}
