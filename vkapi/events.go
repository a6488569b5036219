package vkapi

// EventKind classifies translated long poll updates.
type EventKind int

const (
	// EventMessage is an inbound message (conversation or private dialog).
	EventMessage EventKind = iota
	// EventMemberJoin is a user joining the chat.
	EventMemberJoin
	// EventMemberLeave is a user leaving or being removed from the chat.
	EventMemberLeave
	// EventChatEdit is any other chat-info change (title, photo, pin).
	EventChatEdit
)

// Event is the typed envelope the rest of the bot consumes. The user long
// poll delivers positional arrays; they are translated here, at the
// ingestion boundary, and nothing downstream indexes into raw payloads.
type Event struct {
	Kind EventKind

	// Message fields.
	MessageID int64
	PeerID    int64
	FromID    int64
	Text      string
	Outbound  bool

	// Membership-change fields.
	UserID int64
}

// User long poll update codes.
const (
	updateNewMessage   = 4
	updateChatInfoEdit = 52
)

// Chat-info edit types.
const (
	chatEditMemberJoin  = 6
	chatEditMemberLeave = 7
)

// Message flags.
const flagOutbox = 2

// translateUpdate converts one raw long poll update into an Event.
// Returns false for update codes the bot does not consume.
//
// Layouts (long poll version 3, mode 2):
//
//	[4, message_id, flags, peer_id, ts, subject, text, {extra}]
//	[52, type_id, peer_id, info]
func translateUpdate(raw []interface{}) (Event, bool) {
	if len(raw) == 0 {
		return Event{}, false
	}
	switch asInt64(raw[0]) {
	case updateNewMessage:
		if len(raw) < 7 {
			return Event{}, false
		}
		ev := Event{
			Kind:      EventMessage,
			MessageID: asInt64(raw[1]),
			PeerID:    asInt64(raw[3]),
			Outbound:  asInt64(raw[2])&flagOutbox != 0,
		}
		if s, ok := raw[6].(string); ok {
			ev.Text = s
		}
		if len(raw) > 7 {
			if extra, ok := raw[7].(map[string]interface{}); ok {
				if from, ok := extra["from"].(string); ok {
					ev.FromID = parseInt64(from)
				}
			}
		}
		// Private dialogs carry no "from"; the peer is the sender.
		if ev.FromID == 0 && ev.PeerID < PeerChatOffset {
			ev.FromID = ev.PeerID
		}
		return ev, true
	case updateChatInfoEdit:
		if len(raw) < 4 {
			return Event{}, false
		}
		ev := Event{
			PeerID: asInt64(raw[2]),
			UserID: asInt64(raw[3]),
		}
		switch asInt64(raw[1]) {
		case chatEditMemberJoin:
			ev.Kind = EventMemberJoin
		case chatEditMemberLeave:
			ev.Kind = EventMemberLeave
		default:
			ev.Kind = EventChatEdit
		}
		return ev, true
	}
	return Event{}, false
}

func asInt64(v interface{}) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	}
	return 0
}

func parseInt64(s string) int64 {
	var n int64
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int64(r-'0')
	}
	return n
}
