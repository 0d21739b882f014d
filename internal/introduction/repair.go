package introduction

import (
	"context"
	"fmt"
)

// repair deletes every stored puzzle that fails to load or fails its
// self-check, each in its own committed transaction. A failure to delete one
// puzzle is logged and the scan moves on. The caller holds s.mu.
func (s *PuzzleStore) repair(ctx context.Context) (int, error) {
	damaged, err := s.db.Damaged(ctx)
	if err != nil {
		return 0, fmt.Errorf("scan puzzles: %w", err)
	}

	removed := 0
	for _, d := range damaged {
		s.log.Error("corrupt puzzle found on startup, deleting", "puzzle", d.ID, "reason", d.Reason)
		if err := s.deleteCommitted(ctx, d.ID); err != nil {
			s.log.Error("deleting corrupt puzzle failed", "puzzle", d.ID, "error", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		s.log.Warn("startup repair finished", "removed", removed, "found", len(damaged))
	}
	return removed, nil
}
