package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/introstore/internal/identity"
	"github.com/roach88/introstore/internal/puzzle"
)

var testDay = time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// putTestIdentity stores an identity and returns it.
func putTestIdentity(t *testing.T, s *Store, id string, own bool) identity.Identity {
	t.Helper()
	ident, err := identity.New(id, id, own)
	if err != nil {
		t.Fatalf("identity.New() failed: %v", err)
	}
	err = s.Update(context.Background(), func(tx *Tx) error {
		return tx.PutIdentity(context.Background(), ident, testDay)
	})
	if err != nil {
		t.Fatalf("PutIdentity() failed: %v", err)
	}
	return ident
}

// createTestOwnPuzzle builds an unsolved own puzzle in slot (testDay, index).
func createTestOwnPuzzle(t *testing.T, inserter identity.Identity, index int, validUntil time.Time) *puzzle.Puzzle {
	t.Helper()
	p, err := puzzle.NewOwn(inserter,
		puzzle.Slot{Type: puzzle.TypeCaptcha, Date: testDay, Index: index},
		puzzle.Payload{MimeType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}},
		"answer", validUntil)
	if err != nil {
		t.Fatalf("NewOwn() failed: %v", err)
	}
	return p
}

// createTestForeignPuzzle builds an unsolved foreign puzzle in slot (testDay, index).
func createTestForeignPuzzle(t *testing.T, inserter identity.Identity, index int, validUntil time.Time) *puzzle.Puzzle {
	t.Helper()
	p, err := puzzle.NewForeign(inserter,
		puzzle.Slot{Type: puzzle.TypeCaptcha, Date: testDay, Index: index},
		puzzle.Payload{MimeType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}},
		validUntil)
	if err != nil {
		t.Fatalf("NewForeign() failed: %v", err)
	}
	return p
}

// insertTestPuzzle writes p at revision 1.
func insertTestPuzzle(t *testing.T, s *Store, p *puzzle.Puzzle) {
	t.Helper()
	err := s.Update(context.Background(), func(tx *Tx) error {
		return tx.InsertPuzzle(context.Background(), p.State(), 1)
	})
	if err != nil {
		t.Fatalf("InsertPuzzle() failed: %v", err)
	}
}
