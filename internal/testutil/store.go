package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/introstore/internal/identity"
	"github.com/roach88/introstore/internal/puzzle"
	"github.com/roach88/introstore/internal/store"
)

// OpenStore opens a fresh database in a temp directory and closes it when
// the test ends.
func OpenStore(t testing.TB) *store.Store {
	t.Helper()
	return OpenStoreAt(t, filepath.Join(t.TempDir(), "introstore.db"))
}

// OpenStoreAt opens the database at path and closes it when the test ends.
// Used to reopen a database a test has damaged.
func OpenStoreAt(t testing.TB, path string) *store.Store {
	t.Helper()
	st, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

// PutIdentity stores an identity named after its id.
func PutIdentity(t testing.TB, st *store.Store, id string, own bool) identity.Identity {
	t.Helper()
	ident, err := identity.New(id, id, own)
	require.NoError(t, err)
	err = st.Update(context.Background(), func(tx *store.Tx) error {
		return tx.PutIdentity(context.Background(), ident, Epoch)
	})
	require.NoError(t, err)
	return ident
}

// Payload is the payload every fixture puzzle carries.
var Payload = puzzle.Payload{MimeType: "image/png", Data: []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a}}

// OwnPuzzle builds an unsolved captcha of inserter in slot (date, index).
func OwnPuzzle(t testing.TB, inserter identity.Identity, date time.Time, index int, validUntil time.Time) *puzzle.Puzzle {
	t.Helper()
	p, err := puzzle.NewOwn(inserter,
		puzzle.Slot{Type: puzzle.TypeCaptcha, Date: date, Index: index},
		Payload, "expected", validUntil)
	require.NoError(t, err)
	return p
}

// ForeignPuzzle builds an unsolved captcha downloaded from inserter in slot (date, index).
func ForeignPuzzle(t testing.TB, inserter identity.Identity, date time.Time, index int, validUntil time.Time) *puzzle.Puzzle {
	t.Helper()
	p, err := puzzle.NewForeign(inserter,
		puzzle.Slot{Type: puzzle.TypeCaptcha, Date: date, Index: index},
		Payload, validUntil)
	require.NoError(t, err)
	return p
}
