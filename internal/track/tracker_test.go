package track

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cindex/internal/store"
)

// stubQuerier overrides only the status operations; everything else panics
// through the embedded nil interface if touched.
type stubQuerier struct {
	store.Querier

	marked map[string]bool
	err    error
}

func key(itemType string, itemID int64, commit string) string {
	return fmt.Sprintf("%s/%s/%d", itemType, commit, itemID)
}

func (s *stubQuerier) MarkProcessed(ctx context.Context, itemType string, itemID int64, commit string) error {
	if s.err != nil {
		return s.err
	}
	if s.marked == nil {
		s.marked = map[string]bool{}
	}
	s.marked[key(itemType, itemID, commit)] = true
	return nil
}

func (s *stubQuerier) HasProcessed(ctx context.Context, itemType string, itemID int64, commit string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.marked[key(itemType, itemID, commit)], nil
}

func (s *stubQuerier) UnprocessedFiles(ctx context.Context, commit string) ([]*store.File, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []*store.File{{ID: 1, Path: "a.c"}}, nil
}

func (s *stubQuerier) UnprocessedFunctions(ctx context.Context, commit string) ([]*store.Function, error) {
	if s.err != nil {
		return nil, s.err
	}
	return nil, nil
}

func TestMarkThenIsProcessed(t *testing.T) {
	q := &stubQuerier{}
	tr := New(q, nil)
	ctx := context.Background()

	assert.False(t, tr.IsProcessed(ctx, store.ItemFile, 1, "c1"))

	require.NoError(t, tr.MarkProcessed(ctx, store.ItemFile, 1, "c1"))
	assert.True(t, tr.IsProcessed(ctx, store.ItemFile, 1, "c1"))
	assert.True(t, tr.IsProcessed(ctx, store.ItemFile, 1, "c1"), "repeated checks stay true")

	// Other commits and item types are independent.
	assert.False(t, tr.IsProcessed(ctx, store.ItemFile, 1, "c2"))
	assert.False(t, tr.IsProcessed(ctx, store.ItemFunction, 1, "c1"))
}

func TestIsProcessedFailsOpen(t *testing.T) {
	q := &stubQuerier{err: errors.New("db gone")}
	tr := New(q, nil)

	assert.False(t, tr.IsProcessed(context.Background(), store.ItemFile, 1, "c1"),
		"store errors must be treated as not processed")
}

func TestMarkProcessedPropagatesError(t *testing.T) {
	wantErr := errors.New("db gone")
	tr := New(&stubQuerier{err: wantErr}, nil)

	err := tr.MarkProcessed(context.Background(), store.ItemFile, 1, "c1")
	assert.ErrorIs(t, err, wantErr)
}

func TestUnprocessedDelegates(t *testing.T) {
	tr := New(&stubQuerier{}, nil)
	ctx := context.Background()

	files, err := tr.UnprocessedFiles(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "a.c", files[0].Path)

	fns, err := tr.UnprocessedFunctions(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, fns)
}
