// Package identity defines the identity references that puzzles point at.
//
// Identities are owned by the identity registry; the puzzle store only ever
// sees them as opaque references (an ID plus the own/foreign distinction).
package identity

import (
	"errors"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ErrEmptyID is returned when an identity is constructed without an ID.
var ErrEmptyID = errors.New("identity id must not be empty")

// Identity is a reference to a locally-controlled (own) or remote (foreign) identity.
type Identity struct {
	ID       string
	Nickname string
	Own      bool
}

// New creates an identity reference.
// The nickname is NFC-normalized so that visually equal nicknames compare equal.
func New(id, nickname string, own bool) (Identity, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Identity{}, ErrEmptyID
	}
	return Identity{
		ID:       id,
		Nickname: NormalizeNickname(nickname),
		Own:      own,
	}, nil
}

// NormalizeNickname trims surrounding whitespace and applies Unicode NFC.
func NormalizeNickname(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// String returns the nickname@id form used in log lines.
func (i Identity) String() string {
	if i.Nickname == "" {
		return i.ID
	}
	return i.Nickname + "@" + i.ID
}
