package vkapi

import "testing"

func TestTranslateUpdate(t *testing.T) {
	tests := []struct {
		name   string
		raw    []interface{}
		want   Event
		wantOK bool
	}{
		{
			name: "conversation message",
			raw: []interface{}{
				float64(4), float64(1001), float64(1), float64(2000000001),
				float64(1700000000), "", "привет",
				map[string]interface{}{"from": "555"},
			},
			want: Event{
				Kind:      EventMessage,
				MessageID: 1001,
				PeerID:    2000000001,
				FromID:    555,
				Text:      "привет",
			},
			wantOK: true,
		},
		{
			name: "private message takes sender from peer",
			raw: []interface{}{
				float64(4), float64(1002), float64(1), float64(555),
				float64(1700000000), "", "/help",
			},
			want: Event{
				Kind:      EventMessage,
				MessageID: 1002,
				PeerID:    555,
				FromID:    555,
				Text:      "/help",
			},
			wantOK: true,
		},
		{
			name: "outbound flag",
			raw: []interface{}{
				float64(4), float64(1003), float64(3), float64(2000000001),
				float64(1700000000), "", "ok",
				map[string]interface{}{"from": "1"},
			},
			want: Event{
				Kind:      EventMessage,
				MessageID: 1003,
				PeerID:    2000000001,
				FromID:    1,
				Text:      "ok",
				Outbound:  true,
			},
			wantOK: true,
		},
		{
			name:   "member join",
			raw:    []interface{}{float64(52), float64(6), float64(2000000001), float64(777)},
			want:   Event{Kind: EventMemberJoin, PeerID: 2000000001, UserID: 777},
			wantOK: true,
		},
		{
			name:   "member leave",
			raw:    []interface{}{float64(52), float64(7), float64(2000000001), float64(777)},
			want:   Event{Kind: EventMemberLeave, PeerID: 2000000001, UserID: 777},
			wantOK: true,
		},
		{
			name:   "title change is a generic edit",
			raw:    []interface{}{float64(52), float64(1), float64(2000000001), float64(777)},
			want:   Event{Kind: EventChatEdit, PeerID: 2000000001, UserID: 777},
			wantOK: true,
		},
		{
			name: "unknown update code",
			raw:  []interface{}{float64(80), float64(3), float64(0)},
		},
		{
			name: "truncated message update",
			raw:  []interface{}{float64(4), float64(1)},
		},
		{
			name: "empty update",
			raw:  []interface{}{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := translateUpdate(tt.raw)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if got != tt.want {
				t.Errorf("event = %+v, want %+v", got, tt.want)
			}
		})
	}
}
