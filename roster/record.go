// Package roster parses the hostel spreadsheet into resident records and owns
// the in-memory roster snapshot, mute index, and write-back operations.
package roster

import (
	"strconv"
	"strings"
)

// Column positions within a roster row.
const (
	colRoom = iota
	colFullName
	colInstitute
	colCourse
	colEducation
	colNotes
	colVKLink
	colInConversation
	colMuteUntil
)

// Column letters for range-addressed write-backs.
const (
	letterVKLink         = "G"
	letterInConversation = "H"
	letterMuteUntil      = "I"
)

// LinkPrefix is the canonical profile-link form stored in the roster.
const LinkPrefix = "https://vk.com/id"

// Institutes and EducationTypes are the valid cell values; anything else
// produces a data-quality diagnostic.
var Institutes = map[string]bool{
	"ИМФИТ": true, "ФКИ": true, "ФФКС": true, "ФФЖ": true, "ФИМПС": true,
	"ИЭУС": true, "ИПНБ": true, "Мед.": true, "ИЕ": true, "Пед.": true,
}

var EducationTypes = map[string]bool{
	"бюджет": true, "договор": true, "целевое": true,
}

// Presence flag tokens as written in the sheet.
const (
	presenceTrue  = "TRUE"
	presenceFalse = "FALSE"
)

// Record is one resident parsed from a roster row.
//
// RowIndex is the 1-based spreadsheet row and the stable key for write-backs.
// Room is inherited from the nearest preceding row that specified one.
// InConversation is nil when the sheet value was not a recognized token.
// MuteUntil is nil when no mute is set; zero means muted indefinitely.
type Record struct {
	RowIndex       int
	Room           int
	FullName       string
	Institute      string
	Course         int
	Education      string
	Notes          string
	VKLink         string
	InConversation *bool
	MuteUntil      *int64
}

// VKID extracts the numeric profile id from the record's link.
// Returns 0 when the link is absent or not of the canonical id form.
func (r *Record) VKID() int64 {
	if !strings.HasPrefix(r.VKLink, LinkPrefix) {
		return 0
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(r.VKLink, LinkPrefix), 10, 64)
	if err != nil || id <= 0 {
		return 0
	}
	return id
}

// ValidLink reports whether a link cell is acceptable: empty, or the
// canonical prefix followed by digits only.
func ValidLink(link string) bool {
	if link == "" {
		return true
	}
	rest, ok := strings.CutPrefix(link, LinkPrefix)
	return ok && isDigits(rest)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
