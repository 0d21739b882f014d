package puzzle

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedKey is returned when a request or solution key cannot be parsed.
var ErrMalformedKey = errors.New("malformed puzzle key")

const (
	requestPrefix  = "request|"
	solutionPrefix = "solution|"
)

// RequestKey is the key an own puzzle is published under:
// "request|YYYY-MM-DD|index@inserter".
func RequestKey(inserterID string, date time.Time, index int) string {
	return fmt.Sprintf("%s%s|%d@%s", requestPrefix, FormatDay(date), index, inserterID)
}

// ParseRequestKey splits a request key into its inserter and slot.
func ParseRequestKey(key string) (inserterID string, date time.Time, index int, err error) {
	rest, ok := strings.CutPrefix(key, requestPrefix)
	if !ok {
		return "", time.Time{}, 0, fmt.Errorf("%w: %q", ErrMalformedKey, key)
	}
	slot, inserterID, ok := strings.Cut(rest, "@")
	if !ok || inserterID == "" {
		return "", time.Time{}, 0, fmt.Errorf("%w: %q has no inserter", ErrMalformedKey, key)
	}
	day, idx, ok := strings.Cut(slot, "|")
	if !ok {
		return "", time.Time{}, 0, fmt.Errorf("%w: %q has no index", ErrMalformedKey, key)
	}
	if date, err = ParseDay(day); err != nil {
		return "", time.Time{}, 0, fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}
	if index, err = strconv.Atoi(idx); err != nil || index < 0 {
		return "", time.Time{}, 0, fmt.Errorf("%w: bad index in %q", ErrMalformedKey, key)
	}
	return inserterID, date, index, nil
}

// SolutionKey is the key the solution of puzzle id is published under.
func SolutionKey(id string) string {
	return solutionPrefix + id
}

// IDFromSolutionKey returns the puzzle ID a solution key refers to.
func IDFromSolutionKey(key string) (string, error) {
	id, ok := strings.CutPrefix(key, solutionPrefix)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrMalformedKey, key)
	}
	if _, err := InserterFromID(id); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}
	return id, nil
}

// RequestKey returns the key p is published under.
func (p *Puzzle) RequestKey() string { return RequestKey(p.Inserter, p.Date, p.Index) }

// SolutionKey returns the key the solution of p is published under.
func (p *Puzzle) SolutionKey() string { return SolutionKey(p.ID) }
