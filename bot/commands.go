package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/tsutmb/hostel-bot/roster"
	"github.com/tsutmb/hostel-bot/telemetry"
	"github.com/tsutmb/hostel-bot/vkapi"
)

// handleConversationCommand routes in-chat commands. Every command is
// admin-only; non-admins get a denial that cleans up after itself.
func (d *Dispatcher) handleConversationCommand(ctx context.Context, ev vkapi.Event, isAdmin bool) {
	if telemetry.CommandsHandled != nil {
		telemetry.CommandsHandled.Inc()
	}
	cmd, arg, _ := strings.Cut(ev.Text, " ")
	if cmd != "/help" && !isAdmin {
		d.replyAndExpire(ctx, textCommandDenied, ev.MessageID, delayDenied, true)
		return
	}

	switch cmd {
	case "/help":
		d.sendAndExpire(ctx, textHelp, delayHelp)
	case "/global_mute":
		state := textUnlocked
		if d.toggleGlobalMute() {
			state = textLocked
		}
		if _, err := d.api.SendMessage(ctx, d.conversationID, fmt.Sprintf(textGlobalMute, state)); err != nil {
			slog.Warn("failed to announce global mute", slog.Any("err", err))
		}
	case "/send_join_extended_message":
		if _, err := d.api.SendMessage(ctx, d.conversationID, textExtendedJoin); err != nil {
			slog.Warn("failed to send extended join text", slog.Any("err", err))
		}
	case "/del":
		d.commandDelete(ctx, ev)
	case "/mute":
		d.commandMute(ctx, ev, strings.TrimSpace(arg))
	case "/unmute":
		d.commandUnmute(ctx, ev)
	default:
		d.replyAndExpire(ctx, textUnknownCommand, ev.MessageID, delayUnknown, false)
	}
}

// replyTarget fetches the message a command replied to, or nil.
func (d *Dispatcher) replyTarget(ctx context.Context, messageID int64) *vkapi.Message {
	msg, err := d.api.GetMessage(ctx, messageID)
	if err != nil {
		slog.Warn("failed to fetch command message", slog.Int64("message_id", messageID), slog.Any("err", err))
		return nil
	}
	return msg.Reply
}

func (d *Dispatcher) commandDelete(ctx context.Context, ev vkapi.Event) {
	target := d.replyTarget(ctx, ev.MessageID)
	if target == nil {
		d.replyAndExpire(ctx, textNotReplyMessage, ev.MessageID, delayNotice, false)
		return
	}
	d.deleteMessage(ctx, target.ID)
}

// commandMute mutes the replied-to sender for the given number of minutes,
// or indefinitely when no duration is given. Admins cannot be muted.
func (d *Dispatcher) commandMute(ctx context.Context, ev vkapi.Event, arg string) {
	target := d.replyTarget(ctx, ev.MessageID)
	if target == nil {
		d.replyAndExpire(ctx, textNotReplyMessage, ev.MessageID, delayNotice, false)
		return
	}
	if d.state.IsAdmin(target.FromID) {
		d.replyAndExpire(ctx, textCommandDenied, ev.MessageID, delayNotice, false)
		return
	}

	var expiry int64
	if arg != "" {
		minutes, err := strconv.Atoi(arg)
		if err != nil || minutes <= 0 {
			d.replyAndExpire(ctx, textMuteTimeError, ev.MessageID, delayNotice, false)
			return
		}
		expiry = time.Now().Add(time.Duration(minutes) * time.Minute).Unix()
	}

	if err := d.store.SetMute(ctx, target.FromID, expiry); err != nil {
		if errors.Is(err, roster.ErrNotFound) {
			d.replyAndExpire(ctx, textMuteNotFound, ev.MessageID, delayNotice, false)
			return
		}
		slog.Warn("mute write-back failed", slog.Int64("user_id", target.FromID), slog.Any("err", err))
		return
	}

	link := d.state.NamedLink(ctx, target.FromID)
	text := fmt.Sprintf(textMuteForever, link)
	if expiry != 0 {
		text = fmt.Sprintf(textMuteUntil, link, time.Unix(expiry, 0).Format("02.01.2006 15:04"))
	}
	if _, err := d.api.SendMessage(ctx, d.conversationID, text); err != nil {
		slog.Warn("failed to announce mute", slog.Any("err", err))
	}
}

func (d *Dispatcher) commandUnmute(ctx context.Context, ev vkapi.Event) {
	target := d.replyTarget(ctx, ev.MessageID)
	if target == nil {
		d.replyAndExpire(ctx, textNotReplyMessage, ev.MessageID, delayNotice, false)
		return
	}
	text := textUnmuteSuccess
	if err := d.store.ClearMute(ctx, target.FromID); err != nil {
		if errors.Is(err, roster.ErrNotFound) {
			text = textMuteNotFound
		} else {
			slog.Warn("unmute write-back failed", slog.Int64("user_id", target.FromID), slog.Any("err", err))
			return
		}
	}
	d.replyAndExpire(ctx, text, ev.MessageID, delayNotice, false)
}

// handlePrivateMessage serves the admin maintenance dialog. /start and /help
// work for anyone; everything else requires conversation adminship.
func (d *Dispatcher) handlePrivateMessage(ctx context.Context, ev vkapi.Event) {
	if err := d.api.MarkAsRead(ctx, ev.PeerID); err != nil {
		slog.Debug("mark as read failed", slog.Any("err", err))
	}
	if !strings.HasPrefix(ev.Text, "/") || ev.Text == "/start" {
		if _, err := d.api.SendMessage(ctx, ev.PeerID, textStart); err != nil {
			slog.Warn("failed to send start text", slog.Any("err", err))
		}
		return
	}
	if !d.state.IsAdmin(ev.FromID) {
		if _, err := d.api.SendMessage(ctx, ev.PeerID, textPrivateDenied); err != nil {
			slog.Warn("failed to send denial", slog.Any("err", err))
		}
		return
	}
	if telemetry.CommandsHandled != nil {
		telemetry.CommandsHandled.Inc()
	}

	ctx = telemetry.WithCorrelation(ctx, newCorrelationID())
	var err error
	switch ev.Text {
	case "/help":
		_, err = d.api.SendMessage(ctx, ev.PeerID, textPrivateHelp)
	case "/show_notes":
		err = d.commandShowNotes(ctx, ev.PeerID)
	case "/show_need_kick":
		err = d.withSnapshots(ctx, "show_need_kick", func(ctx context.Context, snap snapshots) error {
			return d.sendNamedList(ctx, ev.PeerID, snap.Diff().NeedKick)
		})
	case "/show_need_invite":
		err = d.withSnapshots(ctx, "show_need_invite", func(ctx context.Context, snap snapshots) error {
			return d.sendNamedList(ctx, ev.PeerID, snap.Diff().NeedInvite)
		})
	case "/kick_users_from_conversation":
		err = d.withSnapshots(ctx, "kick_users", func(ctx context.Context, snap snapshots) error {
			for _, id := range snap.Diff().NeedKick {
				d.kick(ctx, id)
			}
			return nil
		})
	case "/update_statuses":
		err = d.commandUpdateStatuses(ctx, ev.PeerID)
	case "/update_links":
		err = d.commandUpdateLinks(ctx, ev.PeerID)
	default:
		_, err = d.api.SendMessage(ctx, ev.PeerID, textUnknownCommand)
	}
	if err != nil {
		telemetry.LoggerWithCorr(ctx).Warn("maintenance command failed",
			slog.String("command", ev.Text), slog.Any("err", err))
	}
}

// commandShowNotes refreshes the roster and reports parse diagnostics.
func (d *Dispatcher) commandShowNotes(ctx context.Context, peerID int64) error {
	diags, err := d.store.Refresh(ctx)
	if err != nil {
		return err
	}
	if len(diags) == 0 {
		_, err = d.api.SendMessage(ctx, peerID, textNoNotes)
		return err
	}
	d.sendChunked(ctx, peerID, diags)
	return nil
}

func (d *Dispatcher) commandUpdateStatuses(ctx context.Context, peerID int64) error {
	return d.withSnapshots(ctx, "update_statuses", func(ctx context.Context, snap snapshots) error {
		changes := snap.Drift()
		if err := d.store.WriteStatusChanges(ctx, changes); err != nil {
			return err
		}
		_, err := d.api.SendMessage(ctx, peerID, fmt.Sprintf(textUpdatedStatuses, len(changes)))
		return err
	})
}

// commandUpdateLinks resolves screen-name profile links to their canonical
// numeric form and writes the corrections back.
func (d *Dispatcher) commandUpdateLinks(ctx context.Context, peerID int64) error {
	if _, err := d.store.Refresh(ctx); err != nil {
		return err
	}
	malformed := d.store.MalformedLinks()
	byScreenName := make(map[string]string, len(malformed))
	screenNames := make([]string, 0, len(malformed))
	for _, link := range malformed {
		name := strings.TrimPrefix(link, "https://vk.com/")
		if name == link || name == "" || strings.Contains(name, "/") {
			continue
		}
		if _, seen := byScreenName[name]; !seen {
			byScreenName[name] = link
			screenNames = append(screenNames, name)
		}
	}
	replacements := make(map[string]string)
	if len(screenNames) > 0 {
		profiles, err := d.api.GetUsers(ctx, screenNames)
		if err != nil {
			return err
		}
		for _, p := range profiles {
			if p.ScreenName == "" {
				continue
			}
			if old, ok := byScreenName[p.ScreenName]; ok {
				replacements[old] = fmt.Sprintf("%s%d", roster.LinkPrefix, p.ID)
			}
		}
	}
	count, err := d.store.UpdateLinks(ctx, replacements)
	if err != nil {
		return err
	}
	_, err = d.api.SendMessage(ctx, peerID, fmt.Sprintf(textUpdatedLinks, count))
	return err
}

// sendNamedList delivers "@idN (Full Name)" lines, chunked.
func (d *Dispatcher) sendNamedList(ctx context.Context, peerID int64, ids []int64) error {
	if len(ids) == 0 {
		_, err := d.api.SendMessage(ctx, peerID, textNoUsersRequested)
		return err
	}
	lines := make([]string, 0, len(ids))
	for _, id := range ids {
		lines = append(lines, d.state.NamedLink(ctx, id))
	}
	d.sendChunked(ctx, peerID, lines)
	return nil
}
