// Package bot is the moderation dispatcher: it routes chat events through
// mute and permission checks to command handlers, announces membership
// changes, and keeps the conversation in line with the roster.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/tsutmb/hostel-bot/conversation"
	"github.com/tsutmb/hostel-bot/roster"
	"github.com/tsutmb/hostel-bot/telemetry"
	"github.com/tsutmb/hostel-bot/vkapi"
)

// ChatAPI is the slice of the chat transport the dispatcher uses.
type ChatAPI interface {
	SendMessage(ctx context.Context, peerID int64, text string) (int64, error)
	SendReply(ctx context.Context, peerID, replyToID int64, text string) (int64, error)
	DeleteMessage(ctx context.Context, messageID int64) error
	RemoveChatUser(ctx context.Context, peerID, memberID int64) error
	MarkAsRead(ctx context.Context, peerID int64) error
	GetMessage(ctx context.Context, messageID int64) (*vkapi.Message, error)
	GetUsers(ctx context.Context, ids []string) ([]vkapi.Profile, error)
}

// Self-delete delays for transient replies.
const (
	delayDenied  = 10 * time.Second
	delayTagAll  = 15 * time.Second
	delayHelp    = 15 * time.Second
	delayNotice  = 10 * time.Second
	delayUnknown = 5 * time.Second
)

// maxMessageLen caps outbound messages; longer lists are chunked.
const maxMessageLen = 4000

// Dispatcher is the command/event state machine. All session-scoped mutable
// state (global mute flag, kick guard) lives here, with lifetime equal to
// the running session.
type Dispatcher struct {
	api      ChatAPI
	state    *conversation.State
	store    *roster.Store
	throttle *conversation.Throttle

	conversationID int64
	groupID        int64

	mu         sync.Mutex
	globalMute bool
	kickGuard  map[int64]struct{}

	// expiry tracks pending self-delete timers; tests wait on it.
	expiry sync.WaitGroup
	// sleep is stubbed in tests so self-deleting replies don't wait.
	sleep func(ctx context.Context, d time.Duration)
}

func NewDispatcher(api ChatAPI, state *conversation.State, store *roster.Store, throttle *conversation.Throttle, conversationID, groupID int64) *Dispatcher {
	return &Dispatcher{
		api:            api,
		state:          state,
		store:          store,
		throttle:       throttle,
		conversationID: conversationID,
		groupID:        groupID,
		kickGuard:      make(map[int64]struct{}),
		sleep: func(ctx context.Context, d time.Duration) {
			select {
			case <-ctx.Done():
			case <-time.After(d):
			}
		},
	}
}

// GlobalMute reports the current global mute flag.
func (d *Dispatcher) GlobalMute() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.globalMute
}

func (d *Dispatcher) toggleGlobalMute() bool {
	d.mu.Lock()
	d.globalMute = !d.globalMute
	v := d.globalMute
	d.mu.Unlock()
	telemetry.UpdateGlobalMuteGauge(v)
	return v
}

func (d *Dispatcher) guardHas(id int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.kickGuard[id]
	return ok
}

func (d *Dispatcher) guardAdd(id int64) {
	d.mu.Lock()
	d.kickGuard[id] = struct{}{}
	d.mu.Unlock()
}

func (d *Dispatcher) guardConsume(id int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.kickGuard[id]; ok {
		delete(d.kickGuard, id)
		return true
	}
	return false
}

// HandleEvent is the single entry point for translated chat events. The
// long poll invokes it sequentially.
func (d *Dispatcher) HandleEvent(ctx context.Context, ev vkapi.Event) {
	switch ev.Kind {
	case vkapi.EventMessage:
		if ev.Outbound || ev.FromID <= 0 {
			return
		}
		if ev.PeerID == d.conversationID {
			d.handleConversationMessage(ctx, ev)
		} else if ev.PeerID < vkapi.PeerChatOffset {
			d.handlePrivateMessage(ctx, ev)
		}
	case vkapi.EventMemberJoin:
		if ev.PeerID == d.conversationID {
			d.handleJoin(ctx, ev.UserID)
		}
	case vkapi.EventMemberLeave:
		if ev.PeerID == d.conversationID {
			d.handleLeave(ctx, ev.UserID)
		}
	}
}

// handleConversationMessage applies the moderation pipeline in priority
// order: mute check, command routing, broadcast-tag policing.
func (d *Dispatcher) handleConversationMessage(ctx context.Context, ev vkapi.Event) {
	if telemetry.MessagesProcessed != nil {
		telemetry.MessagesProcessed.Inc()
	}
	d.throttle.OnMessage()
	if err := d.api.MarkAsRead(ctx, d.conversationID); err != nil {
		slog.Debug("mark as read failed", slog.Any("err", err))
	}

	isAdmin := d.state.IsAdmin(ev.FromID)
	if (d.GlobalMute() || d.store.IsMuted(ev.FromID)) && !isAdmin {
		slog.Debug("deleting muted user message",
			slog.Int64("user_id", ev.FromID), slog.String("text", ev.Text))
		d.deleteMessage(ctx, ev.MessageID)
		return
	}

	if strings.HasPrefix(ev.Text, "/") {
		d.handleConversationCommand(ctx, ev, isAdmin)
		return
	}

	if (ev.Text == "@all" || strings.Contains(ev.Text, "@all ")) && !isAdmin {
		replyID, err := d.api.SendReply(ctx, d.conversationID, ev.MessageID, textTagAllDenied)
		if err != nil {
			slog.Warn("failed to send tag denial", slog.Any("err", err))
		}
		d.expireLater(ctx, delayTagAll, replyID, ev.MessageID)
	}
}

// handleJoin announces the newcomer; the throttle decides whether the
// extended onboarding text is appended.
func (d *Dispatcher) handleJoin(ctx context.Context, userID int64) {
	slog.Debug("member joined", slog.Int64("user_id", userID))
	d.state.ApplyJoin(userID)
	text := fmt.Sprintf(textJoin, d.state.NamedLink(ctx, userID))
	if d.throttle.ShouldExtend() {
		text += "\n\n" + textExtendedJoin
	}
	if _, err := d.api.SendMessage(ctx, d.conversationID, text); err != nil {
		slog.Warn("failed to send join notice", slog.Any("err", err))
	}
	// The announcement itself is chat traffic.
	d.throttle.OnMessage()
}

// handleLeave distinguishes the echo of a bot-initiated kick (suppressed)
// from an organic departure, which is announced and, when the user has no
// roster record, followed by a kick so a re-join stays blocked.
func (d *Dispatcher) handleLeave(ctx context.Context, userID int64) {
	if d.guardConsume(userID) {
		slog.Debug("suppressed kick echo", slog.Int64("user_id", userID))
		return
	}
	slog.Debug("member left", slog.Int64("user_id", userID))
	text := fmt.Sprintf(textLeft, d.state.NamedLink(ctx, userID))
	d.state.ApplyLeave(userID)
	if _, err := d.api.SendMessage(ctx, d.conversationID, text); err != nil {
		slog.Warn("failed to send departure notice", slog.Any("err", err))
	}
	if _, ok := d.store.FindByVKID(userID); !ok {
		d.kick(ctx, userID)
	}
}

// kick removes a member and pre-emptively arms the guard so the resulting
// leave event is not treated as organic. The guard is armed only on
// success: a failed call produces no echo to suppress.
func (d *Dispatcher) kick(ctx context.Context, userID int64) bool {
	if d.state.IsAdmin(userID) {
		slog.Warn("refusing to kick an admin", slog.Int64("user_id", userID))
		return false
	}
	if err := d.api.RemoveChatUser(ctx, d.conversationID, userID); err != nil {
		slog.Warn("kick failed", slog.Int64("user_id", userID), slog.Any("err", err))
		if telemetry.KickFailures != nil {
			telemetry.KickFailures.Inc()
		}
		return false
	}
	d.guardAdd(userID)
	if telemetry.MembersKicked != nil {
		telemetry.MembersKicked.Inc()
	}
	slog.Info("member kicked", slog.Int64("user_id", userID))
	return true
}

// deleteMessage removes a message; failures are logged and never abort the
// calling flow (the bot keeps running without delete permission).
func (d *Dispatcher) deleteMessage(ctx context.Context, messageID int64) {
	if err := d.api.DeleteMessage(ctx, messageID); err != nil {
		slog.Warn("failed to delete message", slog.Int64("message_id", messageID), slog.Any("err", err))
		return
	}
	d.throttle.OnDeletion()
	if telemetry.MessagesDeleted != nil {
		telemetry.MessagesDeleted.Inc()
	}
}

// expireLater deletes the given messages after the delay without blocking
// the caller: the long poll invokes handlers sequentially, so waiting in
// place would stall every other event for the duration. All state the
// deletion touches (throttle counter, metrics) is mutex-guarded, so the
// timer goroutine needs no further coordination. Zero ids are skipped.
func (d *Dispatcher) expireLater(ctx context.Context, delay time.Duration, messageIDs ...int64) {
	d.expiry.Add(1)
	go func() {
		defer d.expiry.Done()
		d.sleep(ctx, delay)
		if ctx.Err() != nil {
			return
		}
		for _, id := range messageIDs {
			if id != 0 {
				d.deleteMessage(ctx, id)
			}
		}
	}()
}

// replyAndExpire sends a reply that self-deletes after the delay, deleting
// the triggering message alongside when deleteTrigger is set.
func (d *Dispatcher) replyAndExpire(ctx context.Context, text string, replyToID int64, delay time.Duration, deleteTrigger bool) {
	replyID, err := d.api.SendReply(ctx, d.conversationID, replyToID, text)
	if err != nil {
		slog.Warn("failed to send reply", slog.Any("err", err))
	}
	if deleteTrigger {
		d.expireLater(ctx, delay, replyID, replyToID)
		return
	}
	d.expireLater(ctx, delay, replyID)
}

// sendAndExpire posts a message that self-deletes after the delay.
func (d *Dispatcher) sendAndExpire(ctx context.Context, text string, delay time.Duration) {
	id, err := d.api.SendMessage(ctx, d.conversationID, text)
	if err != nil {
		slog.Warn("failed to send message", slog.Any("err", err))
		return
	}
	d.expireLater(ctx, delay, id)
}

// sendChunked delivers long listings in chunks the platform accepts.
func (d *Dispatcher) sendChunked(ctx context.Context, peerID int64, lines []string) {
	msg := ""
	for _, line := range lines {
		if len(msg)+len(line)+1 > maxMessageLen {
			if _, err := d.api.SendMessage(ctx, peerID, msg); err != nil {
				slog.Warn("failed to send chunk", slog.Any("err", err))
			}
			msg = ""
		}
		msg += "\n" + line
	}
	if msg != "" {
		if _, err := d.api.SendMessage(ctx, peerID, msg); err != nil {
			slog.Warn("failed to send chunk", slog.Any("err", err))
		}
	}
}
