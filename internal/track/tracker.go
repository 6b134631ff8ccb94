// Package track records which items have been processed at which commit,
// making pipeline reruns idempotent per commit.
//
// The tracker fails open: when the underlying store errors, an item is
// reported as not processed so work is redone rather than silently skipped.
package track

import (
	"context"

	"github.com/charmbracelet/log"

	"cindex/internal/store"
)

// Tracker is the commit-scoped processing-state gate built on the store's
// two-tier status tables.
type Tracker struct {
	q   store.Querier
	log *log.Logger
}

// New returns a tracker over the given store. A nil logger defaults to the
// package-level standard logger.
func New(q store.Querier, logger *log.Logger) *Tracker {
	if logger == nil {
		logger = log.Default()
	}
	return &Tracker{q: q, log: logger}
}

// MarkProcessed records that an item has been processed for a commit. The
// master first-seen row is created on first sight; the commit row's
// timestamp is overwritten on re-runs for the same commit. Other commits
// keep independent rows.
func (t *Tracker) MarkProcessed(ctx context.Context, itemType string, itemID int64, commit string) error {
	if err := t.q.MarkProcessed(ctx, itemType, itemID, commit); err != nil {
		t.log.Error("failed to mark item processed",
			"type", itemType, "id", itemID, "commit", commit, "err", err)
		return err
	}
	return nil
}

// IsProcessed reports whether the item was already processed for the commit.
// Store errors are treated as not processed.
func (t *Tracker) IsProcessed(ctx context.Context, itemType string, itemID int64, commit string) bool {
	done, err := t.q.HasProcessed(ctx, itemType, itemID, commit)
	if err != nil {
		t.log.Warn("status check failed, treating as unprocessed",
			"type", itemType, "id", itemID, "commit", commit, "err", err)
		return false
	}
	return done
}

// UnprocessedFiles lists files with no status row for the commit.
func (t *Tracker) UnprocessedFiles(ctx context.Context, commit string) ([]*store.File, error) {
	return t.q.UnprocessedFiles(ctx, commit)
}

// UnprocessedFunctions lists function rows with no status row for the commit.
func (t *Tracker) UnprocessedFunctions(ctx context.Context, commit string) ([]*store.Function, error) {
	return t.q.UnprocessedFunctions(ctx, commit)
}
