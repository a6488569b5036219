package roster

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CleanFullName strips leading digits, dots and spaces left over from
// numbered lists in the sheet. Cleaning an already-clean name is a no-op.
func CleanFullName(name string) string {
	return strings.TrimLeft(name, "0123456789. ")
}

// cell returns the i-th cell or "" when the row is shorter; the sheets API
// trims trailing empty cells.
func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return row[i]
}

func diag(rowIndex int, text, value string) string {
	if value == "" {
		return fmt.Sprintf("%d | %s", rowIndex, text)
	}
	return fmt.Sprintf("%d | %s %s", rowIndex, text, value)
}

// ParseRow converts one raw row into a resident record.
//
// It returns the record (nil for non-resident rows), the room number to
// thread into the next call, and any data-quality diagnostics. Rows are
// rejected without diagnostics when they are empty, section headers, or have
// no usable name; a bad room cell is an error; every other defect is a
// warning that still yields a record.
func ParseRow(row []string, rowIndex, lastRoom int, now time.Time) (*Record, int, []string) {
	var diags []string

	if len(row) == 0 {
		return nil, lastRoom, nil
	}

	room := cell(row, colRoom)
	lower := strings.ToLower(room)
	if strings.Contains(lower, "этаж") || strings.Contains(lower, "комната") {
		return nil, lastRoom, nil
	}
	if isDigits(room) {
		lastRoom, _ = strconv.Atoi(room)
	} else if room != "" {
		diags = append(diags, diag(rowIndex, "Значение комнаты неверно!", room))
		return nil, lastRoom, diags
	}

	fullName := CleanFullName(cell(row, colFullName))
	if fullName == "" {
		return nil, lastRoom, diags
	}

	rec := &Record{
		RowIndex: rowIndex,
		Room:     lastRoom,
		FullName: fullName,
		Notes:    cell(row, colNotes),
	}

	if inst := cell(row, colInstitute); Institutes[inst] {
		rec.Institute = inst
	} else if inst != "" {
		diags = append(diags, diag(rowIndex, "Неверно указан институт!", inst))
	}

	if course := cell(row, colCourse); isDigits(course) {
		rec.Course, _ = strconv.Atoi(course)
	} else if course != "" {
		diags = append(diags, diag(rowIndex, "Неверно указан курс!", course))
	} else {
		diags = append(diags, diag(rowIndex, "Курс не установлен!", ""))
	}

	if edu := cell(row, colEducation); EducationTypes[edu] {
		rec.Education = edu
	} else if edu != "" {
		diags = append(diags, diag(rowIndex, "Неверно указан тип обучения!", edu))
	} else {
		diags = append(diags, diag(rowIndex, "Не установлен тип обучения!", ""))
	}

	link := cell(row, colVKLink)
	rec.VKLink = link
	if !ValidLink(link) {
		diags = append(diags, diag(rowIndex, "Неверно указана ссылка на ВК!", link))
	}

	switch cell(row, colInConversation) {
	case presenceTrue:
		v := true
		rec.InConversation = &v
	case presenceFalse:
		v := false
		rec.InConversation = &v
	default:
		diags = append(diags, diag(rowIndex, "Неверно указано нахождение в беседе!", cell(row, colInConversation)))
	}

	if mute := cell(row, colMuteUntil); mute != "" {
		if isDigits(mute) {
			ts, _ := strconv.ParseInt(mute, 10, 64)
			rec.MuteUntil = &ts
			if ts == 0 || ts > now.Unix() {
				diags = append(diags, diag(rowIndex, "Активен мут для пользователя.", rec.FullName))
			}
		} else {
			diags = append(diags, diag(rowIndex, "Неверно указано время окончания мута!", mute))
		}
	}

	return rec, lastRoom, diags
}

// ParseRows runs ParseRow over a row range, threading the carried-forward
// room. startIndex is the 1-based sheet row of rows[0].
func ParseRows(rows [][]string, startIndex int, now time.Time) ([]Record, []string) {
	var (
		records  []Record
		diags    []string
		lastRoom int
	)
	for i, row := range rows {
		rec, room, rowDiags := ParseRow(row, startIndex+i, lastRoom, now)
		lastRoom = room
		diags = append(diags, rowDiags...)
		if rec != nil {
			records = append(records, *rec)
		}
	}
	return records, diags
}
