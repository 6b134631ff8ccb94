package summarize

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cindex/internal/store"
	"cindex/internal/track"
)

// fastRetry keeps test runs quick.
var fastRetry = RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2.0}

// memStore covers the store operations the runner touches.
type memStore struct {
	store.Store

	mu        sync.Mutex
	files     []*store.File
	fns       []*store.Function
	fileSums  map[int64]*store.Summary
	fnSums    map[int64]string
	processed map[int64]bool
}

func newMemStore() *memStore {
	return &memStore{
		fileSums:  map[int64]*store.Summary{},
		fnSums:    map[int64]string{},
		processed: map[int64]bool{},
	}
}

func (m *memStore) ListFiles(ctx context.Context) ([]*store.File, error) { return m.files, nil }

func (m *memStore) ListFunctions(ctx context.Context) ([]*store.Function, error) {
	return m.fns, nil
}

func (m *memStore) ListSymbols(ctx context.Context) ([]*store.Symbol, error) { return nil, nil }

func (m *memStore) HasFileSummary(ctx context.Context, fileID int64, commit string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.fileSums[fileID]
	return ok, nil
}

func (m *memStore) UpsertFileSummary(ctx context.Context, fileID int64, commit, summary, refined string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fileSums[fileID] = &store.Summary{ItemID: fileID, Commit: commit, Summary: summary, Refined: refined}
	return nil
}

func (m *memStore) ListFileSummaries(ctx context.Context, commit string) ([]*store.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*store.Summary
	for _, s := range m.fileSums {
		out = append(out, s)
	}
	return out, nil
}

func (m *memStore) UpsertFunctionSummary(ctx context.Context, functionID int64, commit, summary, refined string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fnSums[functionID] = summary
	return nil
}

func (m *memStore) UnprocessedFunctions(ctx context.Context, commit string) ([]*store.Function, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*store.Function
	for _, fn := range m.fns {
		if !m.processed[fn.ID] {
			out = append(out, fn)
		}
	}
	return out, nil
}

func (m *memStore) MarkProcessed(ctx context.Context, itemType string, itemID int64, commit string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processed[itemID] = true
	return nil
}

func (m *memStore) HasProcessed(ctx context.Context, itemType string, itemID int64, commit string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.processed[itemID], nil
}

// mockTextService returns canned summaries and can fail a fixed number of
// times before succeeding.
type mockTextService struct {
	mu        sync.Mutex
	fileCalls int
	fnCalls   int
	failFirst int
}

func (m *mockTextService) SummarizeFile(ctx context.Context, path, content string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fileCalls++
	if m.fileCalls <= m.failFirst {
		return "", errors.New("service unavailable")
	}
	return "summary of " + path, nil
}

func (m *mockTextService) SummarizeFunction(ctx context.Context, name, snippet string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fnCalls++
	if m.fnCalls <= m.failFirst {
		return "", errors.New("service unavailable")
	}
	return "summary of " + name, nil
}

func TestRunSummarizesFilesAndFunctions(t *testing.T) {
	st := newMemStore()
	st.files = []*store.File{{ID: 1, Path: "a.c"}}
	st.fns = []*store.Function{{ID: 1, FileID: 1, Name: "work", Snippet: "void work() {}"}}
	svc := &mockTextService{}
	r := NewRunner(st, track.New(st, nil), svc, fastRetry, nil)

	res, err := r.Run(context.Background(), "HEAD")
	require.NoError(t, err)

	assert.Equal(t, 1, res.Files)
	assert.Equal(t, 1, res.Functions)
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, "summary of a.c", st.fileSums[1].Summary)
	assert.Equal(t, "summary of work", st.fnSums[1])
	assert.True(t, st.processed[1], "function marked processed after success")
}

func TestRunSkipsSummarizedFiles(t *testing.T) {
	st := newMemStore()
	st.files = []*store.File{{ID: 1, Path: "a.c"}}
	st.fileSums[1] = &store.Summary{ItemID: 1, Summary: "existing"}
	svc := &mockTextService{}
	r := NewRunner(st, track.New(st, nil), svc, fastRetry, nil)

	res, err := r.Run(context.Background(), "HEAD")
	require.NoError(t, err)

	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 0, svc.fileCalls, "service not called for a summarized file")
	assert.Equal(t, "existing", st.fileSums[1].Summary)
}

func TestRunRetriesTransientFailures(t *testing.T) {
	st := newMemStore()
	st.fns = []*store.Function{{ID: 1, FileID: 1, Name: "work"}}
	svc := &mockTextService{failFirst: 2}
	r := NewRunner(st, track.New(st, nil), svc, fastRetry, nil)

	res, err := r.Run(context.Background(), "HEAD")
	require.NoError(t, err)

	assert.Equal(t, 1, res.Functions)
	assert.Equal(t, 3, svc.fnCalls)
}

func TestRunDoesNotMarkFailedFunctions(t *testing.T) {
	st := newMemStore()
	st.fns = []*store.Function{{ID: 1, FileID: 1, Name: "work"}}
	svc := &mockTextService{failFirst: 100}
	r := NewRunner(st, track.New(st, nil), svc, fastRetry, nil)

	res, err := r.Run(context.Background(), "HEAD")
	require.NoError(t, err)

	assert.Equal(t, 1, res.Failed)
	assert.False(t, st.processed[1], "failed items stay unprocessed for the next run")
}

func TestRefinePreservesInitialSummary(t *testing.T) {
	st := newMemStore()
	st.fileSums[1] = &store.Summary{ItemID: 1, Commit: "HEAD", Summary: "initial"}
	r := NewRunner(st, track.New(st, nil), &mockTextService{}, fastRetry, nil)

	require.NoError(t, r.Refine(context.Background(), "HEAD", 1, "better"))

	assert.Equal(t, "initial", st.fileSums[1].Summary)
	assert.Equal(t, "better", st.fileSums[1].Refined)
}

func TestRetryWithBackoffStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := retryWithBackoff(ctx, fastRetry, func() (string, error) {
		calls++
		return "", errors.New("always fails")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls, "no retry after cancellation")
}
