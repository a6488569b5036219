// Package conversation tracks the live chat: who is in it, who is an admin,
// display names, the join-notice throttle, and the roster/membership
// reconciliation used by maintenance commands.
package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/tsutmb/hostel-bot/vkapi"
)

// MembersAPI is the slice of the chat transport the state depends on.
type MembersAPI interface {
	GetConversationMembers(ctx context.Context, peerID int64) (*vkapi.Members, error)
	GetUsers(ctx context.Context, ids []string) ([]vkapi.Profile, error)
}

// State is the conversation membership snapshot plus a display-name cache.
// Refreshed wholesale on a timer; join/leave events patch it incrementally
// so reconciliation commands need not wait for the next tick.
type State struct {
	api    MembersAPI
	peerID int64

	mu     sync.Mutex
	admins map[int64]struct{}
	users  map[int64]struct{}
	bots   map[int64]struct{}
	names  map[int64]string
}

func NewState(api MembersAPI, peerID int64) *State {
	return &State{
		api:    api,
		peerID: peerID,
		admins: make(map[int64]struct{}),
		users:  make(map[int64]struct{}),
		bots:   make(map[int64]struct{}),
		names:  make(map[int64]string),
	}
}

// Refresh fetches the member list once and replaces the snapshot. Negative
// member ids are group/service accounts. Profile names returned with the
// member list are merged into the cache.
func (s *State) Refresh(ctx context.Context) error {
	members, err := s.api.GetConversationMembers(ctx, s.peerID)
	if err != nil {
		return fmt.Errorf("conversation refresh: %w", err)
	}

	admins := make(map[int64]struct{})
	users := make(map[int64]struct{})
	bots := make(map[int64]struct{})
	for _, m := range members.Items {
		switch {
		case m.MemberID < 0:
			bots[m.MemberID] = struct{}{}
		case m.IsAdmin:
			admins[m.MemberID] = struct{}{}
		default:
			users[m.MemberID] = struct{}{}
		}
	}

	s.mu.Lock()
	s.admins = admins
	s.users = users
	s.bots = bots
	for _, p := range members.Profiles {
		s.names[p.ID] = p.FirstName + " " + p.LastName
	}
	s.mu.Unlock()

	slog.Debug("conversation refreshed",
		slog.Int("admins", len(admins)), slog.Int("users", len(users)), slog.Int("bots", len(bots)))
	return nil
}

// ApplyJoin records a single member joining between refreshes.
func (s *State) ApplyJoin(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 0 {
		s.bots[id] = struct{}{}
		return
	}
	if _, ok := s.admins[id]; !ok {
		s.users[id] = struct{}{}
	}
}

// ApplyLeave records a single member leaving between refreshes.
func (s *State) ApplyLeave(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.admins, id)
	delete(s.users, id)
	delete(s.bots, id)
}

// IsAdmin reports whether the id is a conversation admin.
func (s *State) IsAdmin(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.admins[id]
	return ok
}

// HumanIDs returns admins and regular users; service accounts are excluded.
func (s *State) HumanIDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.admins)+len(s.users))
	for id := range s.admins {
		ids = append(ids, id)
	}
	for id := range s.users {
		ids = append(ids, id)
	}
	return ids
}

// Counts returns snapshot sizes for the status endpoint and startup logs.
func (s *State) Counts() (admins, users, bots int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.admins), len(s.users), len(s.bots)
}

// FullName resolves a display name, from cache when possible. Group accounts
// have no personal name.
func (s *State) FullName(ctx context.Context, id int64) (string, error) {
	if id < 0 {
		return "", fmt.Errorf("no full name for group account %d", id)
	}
	s.mu.Lock()
	name, ok := s.names[id]
	s.mu.Unlock()
	if ok {
		return name, nil
	}

	profiles, err := s.api.GetUsers(ctx, []string{strconv.FormatInt(id, 10)})
	if err != nil {
		return "", fmt.Errorf("fetch user %d: %w", id, err)
	}
	if len(profiles) == 0 {
		return "", fmt.Errorf("user %d not found", id)
	}
	name = profiles[0].FirstName + " " + profiles[0].LastName
	s.mu.Lock()
	s.names[id] = name
	s.mu.Unlock()
	return name, nil
}

// NamedLink builds the "@idN (Full Name)" mention used in announcements.
// Falls back to the bare mention when the name cannot be resolved.
func (s *State) NamedLink(ctx context.Context, id int64) string {
	name, err := s.FullName(ctx, id)
	if err != nil {
		slog.Debug("name lookup failed", slog.Int64("user_id", id), slog.Any("err", err))
		return fmt.Sprintf("@id%d", id)
	}
	return fmt.Sprintf("@id%d (%s)", id, name)
}
