package conversation

import (
	"sort"

	"github.com/tsutmb/hostel-bot/roster"
)

// Result holds the membership differences between the roster and the live
// chat: ids to kick (in chat, not in roster) and ids to invite (in roster,
// not in chat).
type Result struct {
	NeedKick   []int64
	NeedInvite []int64
}

// Reconcile computes plain set differences between one roster snapshot's
// external ids and one conversation snapshot's human ids. Both inputs must
// come from the same mutually consistent snapshot pair; callers snapshot
// first, then compute. The computation itself is pure and idempotent.
func Reconcile(rosterIDs, liveIDs []int64) Result {
	inRoster := make(map[int64]struct{}, len(rosterIDs))
	for _, id := range rosterIDs {
		inRoster[id] = struct{}{}
	}
	inChat := make(map[int64]struct{}, len(liveIDs))
	for _, id := range liveIDs {
		inChat[id] = struct{}{}
	}

	var res Result
	for id := range inChat {
		if _, ok := inRoster[id]; !ok {
			res.NeedKick = append(res.NeedKick, id)
		}
	}
	for id := range inRoster {
		if _, ok := inChat[id]; !ok {
			res.NeedInvite = append(res.NeedInvite, id)
		}
	}
	sort.Slice(res.NeedKick, func(i, j int) bool { return res.NeedKick[i] < res.NeedKick[j] })
	sort.Slice(res.NeedInvite, func(i, j int) bool { return res.NeedInvite[i] < res.NeedInvite[j] })
	return res
}

// StatusDrift lists the records whose presence flag disagrees with live
// membership, paired with the corrected value. Records without a usable
// external id are skipped.
func StatusDrift(records []roster.Record, liveIDs []int64) []roster.StatusChange {
	inChat := make(map[int64]struct{}, len(liveIDs))
	for _, id := range liveIDs {
		inChat[id] = struct{}{}
	}

	var changes []roster.StatusChange
	for _, rec := range records {
		id := rec.VKID()
		if id == 0 {
			continue
		}
		_, present := inChat[id]
		if rec.InConversation == nil || *rec.InConversation != present {
			changes = append(changes, roster.StatusChange{Record: rec, Present: present})
		}
	}
	return changes
}
