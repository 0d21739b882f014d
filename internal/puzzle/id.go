package puzzle

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// idNamespace scopes the name-based UUIDs used for puzzle IDs.
var idNamespace = uuid.MustParse("6f1d8c52-3a57-4b8e-9d0a-2c4e7b1f9a63")

// dateLayout is the persisted and hashed form of an insertion day.
const dateLayout = "2006-01-02"

// Day truncates t to its calendar day in UTC.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// FormatDay renders a day in the persisted YYYY-MM-DD form.
func FormatDay(t time.Time) string {
	return Day(t).Format(dateLayout)
}

// ParseDay parses the persisted YYYY-MM-DD form.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse day %q: %w", s, err)
	}
	return t, nil
}

// DeriveID computes the ID of the puzzle in the given slot.
//
// The ID is a version 5 UUID over inserter, type, day and index, suffixed
// with "@" and the inserter ID. The same slot always yields the same ID.
func DeriveID(inserterID string, typ Type, date time.Time, index int) string {
	name := strings.Join([]string{
		inserterID,
		string(typ),
		FormatDay(date),
		fmt.Sprintf("%d", index),
	}, "|")
	return uuid.NewSHA1(idNamespace, []byte(name)).String() + "@" + inserterID
}

// InserterFromID returns the inserter suffix of a puzzle ID.
func InserterFromID(id string) (string, error) {
	at := strings.Index(id, "@")
	if at < 0 || at == len(id)-1 {
		return "", fmt.Errorf("malformed puzzle id %q", id)
	}
	if _, err := uuid.Parse(id[:at]); err != nil {
		return "", fmt.Errorf("malformed puzzle id %q: %w", id, err)
	}
	return id[at+1:], nil
}
