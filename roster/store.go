package roster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"
)

// ErrNotFound is returned by mute operations when the id has no roster record.
var ErrNotFound = errors.New("resident not found in roster")

// ValuesAPI is the slice of the tabular-data service the store depends on.
// Implemented by the sheets package.
type ValuesAPI interface {
	BatchGet(ctx context.Context, ranges []string) ([][][]string, error)
	BatchUpdate(ctx context.Context, ranges []string, values [][]string) error
	Update(ctx context.Context, rng string, values []string) error
}

// Snapshot is the result of one successful roster parse. Replaced atomically
// on refresh.
type Snapshot struct {
	Records     []Record
	Diagnostics []string
}

// StatusChange pairs a record with its corrected presence flag.
type StatusChange struct {
	Record  Record
	Present bool
}

// Store owns the roster snapshot, the mute index, and all sheet write-backs.
// Safe for use from the event loop and the background refresh job.
type Store struct {
	api      ValuesAPI
	sheet    string
	rowStart int
	rowEnd   int
	now      func() time.Time

	mu        sync.Mutex
	snapshot  Snapshot
	muteIndex map[int64]int64 // vk id -> expiry unix seconds (0 = forever)
	rowByID   map[int64]int   // vk id -> sheet row
}

func NewStore(api ValuesAPI, sheet string, rowStart, rowEnd int) *Store {
	return &Store{
		api:       api,
		sheet:     sheet,
		rowStart:  rowStart,
		rowEnd:    rowEnd,
		now:       time.Now,
		muteIndex: make(map[int64]int64),
		rowByID:   make(map[int64]int),
	}
}

func (s *Store) cellRange(letter string, row int) string {
	return fmt.Sprintf("'%s'!%s%d:%s%d", s.sheet, letter, row, letter, row)
}

// Refresh fetches the configured row range in one batched read, reparses it,
// and swaps the snapshot. On a read failure the previous snapshot is kept and
// the error returned. Expired mutes discovered during the rebuild are cleared
// in the sheet; those write-backs are best-effort and never abort the refresh.
func (s *Store) Refresh(ctx context.Context) ([]string, error) {
	rng := fmt.Sprintf("'%s'!A%d:I%d", s.sheet, s.rowStart, s.rowEnd)
	got, err := s.api.BatchGet(ctx, []string{rng})
	if err != nil {
		return nil, fmt.Errorf("roster refresh: %w", err)
	}
	var rows [][]string
	if len(got) > 0 {
		rows = got[0]
	}
	now := s.now()
	records, diags := ParseRows(rows, s.rowStart, now)

	muteIndex := make(map[int64]int64)
	rowByID := make(map[int64]int, len(records))
	var expired []Record
	for _, rec := range records {
		id := rec.VKID()
		if id == 0 {
			continue
		}
		rowByID[id] = rec.RowIndex
		if rec.MuteUntil == nil {
			continue
		}
		if ts := *rec.MuteUntil; ts == 0 || ts > now.Unix() {
			muteIndex[id] = ts
		} else {
			expired = append(expired, rec)
		}
	}

	s.mu.Lock()
	s.snapshot = Snapshot{Records: records, Diagnostics: diags}
	s.muteIndex = muteIndex
	s.rowByID = rowByID
	s.mu.Unlock()

	if len(expired) > 0 {
		ranges := make([]string, 0, len(expired))
		values := make([][]string, 0, len(expired))
		for _, rec := range expired {
			ranges = append(ranges, s.cellRange(letterMuteUntil, rec.RowIndex))
			values = append(values, []string{""})
		}
		if err := s.api.BatchUpdate(ctx, ranges, values); err != nil {
			slog.Warn("failed to clear expired mutes", slog.Int("count", len(expired)), slog.Any("err", err))
		} else {
			slog.Info("cleared expired mutes", slog.Int("count", len(expired)))
		}
	}

	slog.Debug("roster refreshed", slog.Int("records", len(records)), slog.Int("diagnostics", len(diags)))
	return diags, nil
}

// Snapshot returns the latest parse result.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// Diagnostics returns the data-quality notes from the last refresh.
func (s *Store) Diagnostics() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.snapshot.Diagnostics...)
}

// AllVKIDs lists the external ids of every record with a canonical link.
func (s *Store) AllVKIDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.rowByID))
	for _, rec := range s.snapshot.Records {
		if id := rec.VKID(); id != 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

// FindByVKID returns the record for an external id.
func (s *Store) FindByVKID(id int64) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.snapshot.Records {
		if rec.VKID() == id {
			return rec, true
		}
	}
	return Record{}, false
}

// IsMuted reports whether the id has an active mute: an indexed expiry of
// zero (forever) or one still in the future.
func (s *Store) IsMuted(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts, ok := s.muteIndex[id]
	if !ok {
		return false
	}
	return ts == 0 || ts > s.now().Unix()
}

// MuteCount returns the number of entries in the mute index.
func (s *Store) MuteCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.muteIndex)
}

// SetMute records a mute expiry (0 = forever) in the index and writes the
// cell at the resident's row. ErrNotFound when the id has no roster record.
func (s *Store) SetMute(ctx context.Context, id int64, expiry int64) error {
	s.mu.Lock()
	row, ok := s.rowByID[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	s.muteIndex[id] = expiry
	s.mu.Unlock()

	if err := s.api.Update(ctx, s.cellRange(letterMuteUntil, row), []string{strconv.FormatInt(expiry, 10)}); err != nil {
		return fmt.Errorf("write mute cell: %w", err)
	}
	return nil
}

// ClearMute removes the mute from the index and blanks the cell.
func (s *Store) ClearMute(ctx context.Context, id int64) error {
	s.mu.Lock()
	row, ok := s.rowByID[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	delete(s.muteIndex, id)
	s.mu.Unlock()

	if err := s.api.Update(ctx, s.cellRange(letterMuteUntil, row), []string{""}); err != nil {
		return fmt.Errorf("clear mute cell: %w", err)
	}
	return nil
}

// WriteStatusChanges pushes corrected presence flags in one batched write.
func (s *Store) WriteStatusChanges(ctx context.Context, changes []StatusChange) error {
	if len(changes) == 0 {
		return nil
	}
	ranges := make([]string, 0, len(changes))
	values := make([][]string, 0, len(changes))
	for _, ch := range changes {
		ranges = append(ranges, s.cellRange(letterInConversation, ch.Record.RowIndex))
		if ch.Present {
			values = append(values, []string{presenceTrue})
		} else {
			values = append(values, []string{presenceFalse})
		}
	}
	if err := s.api.BatchUpdate(ctx, ranges, values); err != nil {
		return fmt.Errorf("write presence cells: %w", err)
	}

	s.mu.Lock()
	for _, ch := range changes {
		for i := range s.snapshot.Records {
			if s.snapshot.Records[i].RowIndex == ch.Record.RowIndex {
				v := ch.Present
				s.snapshot.Records[i].InConversation = &v
			}
		}
	}
	s.mu.Unlock()
	return nil
}

// MalformedLinks lists the non-empty link cells that are not of the canonical
// id form, keyed by row. Used by the link-repair command.
func (s *Store) MalformedLinks() map[int]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int]string)
	for _, rec := range s.snapshot.Records {
		if rec.VKLink != "" && !ValidLink(rec.VKLink) {
			out[rec.RowIndex] = rec.VKLink
		}
	}
	return out
}

// UpdateLinks rewrites link cells according to the old-link to canonical-link
// mapping and returns how many cells were corrected.
func (s *Store) UpdateLinks(ctx context.Context, replacements map[string]string) (int, error) {
	s.mu.Lock()
	var ranges []string
	var values [][]string
	var rows []int
	for _, rec := range s.snapshot.Records {
		corrected, ok := replacements[rec.VKLink]
		if !ok {
			continue
		}
		ranges = append(ranges, s.cellRange(letterVKLink, rec.RowIndex))
		values = append(values, []string{corrected})
		rows = append(rows, rec.RowIndex)
	}
	s.mu.Unlock()

	if len(ranges) == 0 {
		return 0, nil
	}
	if err := s.api.BatchUpdate(ctx, ranges, values); err != nil {
		return 0, fmt.Errorf("write link cells: %w", err)
	}

	s.mu.Lock()
	for i, row := range rows {
		for j := range s.snapshot.Records {
			if s.snapshot.Records[j].RowIndex == row {
				s.snapshot.Records[j].VKLink = values[i][0]
			}
		}
	}
	s.mu.Unlock()
	return len(ranges), nil
}
