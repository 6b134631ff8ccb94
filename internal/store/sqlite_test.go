package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *SQLiteStore {
	t.Helper()
	// Single connection so the in-memory database is shared.
	st, err := NewSQLiteStore(":memory:", 1)
	require.NoError(t, err)
	require.NotNil(t, st)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestInsertOrGetFile(t *testing.T) {
	st := setupTestDB(t)
	ctx := context.Background()

	id1, err := st.InsertOrGetFile(ctx, "src/main.c")
	require.NoError(t, err)
	assert.Greater(t, id1, int64(0))

	// Same path returns the same id.
	id2, err := st.InsertOrGetFile(ctx, "src/main.c")
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	id3, err := st.InsertOrGetFile(ctx, "src/util.c")
	require.NoError(t, err)
	assert.NotEqual(t, id1, id3)
}

func TestGetFileID(t *testing.T) {
	st := setupTestDB(t)
	ctx := context.Background()

	_, err := st.GetFileID(ctx, "missing.c")
	assert.ErrorIs(t, err, ErrNotFound)

	want, err := st.InsertOrGetFile(ctx, "src/main.c")
	require.NoError(t, err)

	got, err := st.GetFileID(ctx, "src/main.c")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestInsertSymbolAndList(t *testing.T) {
	st := setupTestDB(t)
	ctx := context.Background()

	fileID, err := st.InsertOrGetFile(ctx, "src/main.c")
	require.NoError(t, err)

	sym := &Symbol{FileID: fileID, Type: SymbolStruct, Name: "point", Snippet: "struct point { int x; };"}
	require.NoError(t, st.InsertSymbol(ctx, sym))
	assert.Greater(t, sym.ID, int64(0))

	syms, err := st.ListSymbols(ctx)
	require.NoError(t, err)
	require.Len(t, syms, 1)
	assert.Equal(t, "point", syms[0].Name)
	assert.Equal(t, SymbolStruct, syms[0].Type)
}

func TestInsertFunctionRoundTrip(t *testing.T) {
	st := setupTestDB(t)
	ctx := context.Background()

	fileID, err := st.InsertOrGetFile(ctx, "src/main.c")
	require.NoError(t, err)

	fn := &Function{
		FileID:     fileID,
		Name:       "main",
		ReturnType: "int",
		Parameters: []string{"int argc", "char **argv"},
		StartLine:  3,
		EndLine:    10,
		CodeHash:   HashSnippet("int main() {}"),
		Snippet:    "int main() {}",
	}
	require.NoError(t, st.InsertFunction(ctx, fn))
	assert.Greater(t, fn.ID, int64(0))

	fns, err := st.ListFunctions(ctx)
	require.NoError(t, err)
	require.Len(t, fns, 1)
	assert.Equal(t, fn.Name, fns[0].Name)
	assert.Equal(t, fn.Parameters, fns[0].Parameters)
	assert.Equal(t, fn.CodeHash, fns[0].CodeHash)
	assert.False(t, fns[0].Prototype)
}

func TestFindFunctionByNamePrefersDefinition(t *testing.T) {
	st := setupTestDB(t)
	ctx := context.Background()

	hID, err := st.InsertOrGetFile(ctx, "h.h")
	require.NoError(t, err)
	cID, err := st.InsertOrGetFile(ctx, "h.c")
	require.NoError(t, err)

	proto := &Function{FileID: hID, Name: "foo", ReturnType: "int", StartLine: 1, EndLine: 1, Prototype: true}
	require.NoError(t, st.InsertFunction(ctx, proto))
	def := &Function{FileID: cID, Name: "foo", ReturnType: "int", StartLine: 1, EndLine: 3, Prototype: false}
	require.NoError(t, st.InsertFunction(ctx, def))

	// The prototype has the lower id but the definition wins.
	got, err := st.FindFunctionByName(ctx, "foo")
	require.NoError(t, err)
	assert.Equal(t, def.ID, got)

	// With only a prototype in the index, fall back to it.
	onlyProto := &Function{FileID: hID, Name: "bar", ReturnType: "int", StartLine: 2, EndLine: 2, Prototype: true}
	require.NoError(t, st.InsertFunction(ctx, onlyProto))
	got, err = st.FindFunctionByName(ctx, "bar")
	require.NoError(t, err)
	assert.Equal(t, onlyProto.ID, got)

	_, err = st.FindFunctionByName(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindFunctionInFile(t *testing.T) {
	st := setupTestDB(t)
	ctx := context.Background()

	fileID, err := st.InsertOrGetFile(ctx, "src/main.c")
	require.NoError(t, err)
	otherID, err := st.InsertOrGetFile(ctx, "src/util.c")
	require.NoError(t, err)

	fn := &Function{FileID: fileID, Name: "work", ReturnType: "void", StartLine: 1, EndLine: 5}
	require.NoError(t, st.InsertFunction(ctx, fn))

	got, err := st.FindFunctionInFile(ctx, fileID, "work")
	require.NoError(t, err)
	assert.Equal(t, fn.ID, got)

	_, err = st.FindFunctionInFile(ctx, otherID, "work")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInsertCallEdgeDropsSelfEdges(t *testing.T) {
	st := setupTestDB(t)
	ctx := context.Background()

	fileID, err := st.InsertOrGetFile(ctx, "src/main.c")
	require.NoError(t, err)
	a := &Function{FileID: fileID, Name: "a", ReturnType: "int", StartLine: 1, EndLine: 3}
	require.NoError(t, st.InsertFunction(ctx, a))
	bFn := &Function{FileID: fileID, Name: "b", ReturnType: "int", StartLine: 4, EndLine: 6}
	require.NoError(t, st.InsertFunction(ctx, bFn))

	require.NoError(t, st.InsertCallEdge(ctx, a.ID, a.ID))
	require.NoError(t, st.InsertCallEdge(ctx, a.ID, bFn.ID))

	edges, err := st.ListCallEdges(ctx)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, a.ID, edges[0].CallerID)
	assert.Equal(t, bFn.ID, edges[0].CalleeID)
	for _, e := range edges {
		assert.NotEqual(t, e.CallerID, e.CalleeID)
	}
}

func TestUpsertFileSummary(t *testing.T) {
	st := setupTestDB(t)
	ctx := context.Background()

	fileID, err := st.InsertOrGetFile(ctx, "src/main.c")
	require.NoError(t, err)

	has, err := st.HasFileSummary(ctx, fileID, "HEAD")
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, st.UpsertFileSummary(ctx, fileID, "HEAD", "first", ""))
	has, err = st.HasFileSummary(ctx, fileID, "HEAD")
	require.NoError(t, err)
	assert.True(t, has)

	// Re-upsert overwrites rather than duplicating.
	require.NoError(t, st.UpsertFileSummary(ctx, fileID, "HEAD", "first", "refined"))
	sums, err := st.ListFileSummaries(ctx, "HEAD")
	require.NoError(t, err)
	require.Len(t, sums, 1)
	assert.Equal(t, "refined", sums[0].Text())

	// A different commit has its own row.
	sums, err = st.ListFileSummaries(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, sums)
}

func TestMarkProcessedPerCommit(t *testing.T) {
	st := setupTestDB(t)
	ctx := context.Background()

	fileID, err := st.InsertOrGetFile(ctx, "src/main.c")
	require.NoError(t, err)

	done, err := st.HasProcessed(ctx, ItemFile, fileID, "c1")
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, st.MarkProcessed(ctx, ItemFile, fileID, "c1"))

	done, err = st.HasProcessed(ctx, ItemFile, fileID, "c1")
	require.NoError(t, err)
	assert.True(t, done)

	// Repeated checks stay true; re-marking the same commit is allowed.
	require.NoError(t, st.MarkProcessed(ctx, ItemFile, fileID, "c1"))
	done, err = st.HasProcessed(ctx, ItemFile, fileID, "c1")
	require.NoError(t, err)
	assert.True(t, done)

	// A different commit is independent.
	done, err = st.HasProcessed(ctx, ItemFile, fileID, "c2")
	require.NoError(t, err)
	assert.False(t, done)
}

func TestStatusItemTypesAreIndependent(t *testing.T) {
	st := setupTestDB(t)
	ctx := context.Background()

	// File id 1 and function id 1 must not collide in the status tables.
	fileID, err := st.InsertOrGetFile(ctx, "src/main.c")
	require.NoError(t, err)
	fn := &Function{FileID: fileID, Name: "main", ReturnType: "int", StartLine: 1, EndLine: 2}
	require.NoError(t, st.InsertFunction(ctx, fn))
	require.Equal(t, fileID, fn.ID, "test assumes matching ids")

	require.NoError(t, st.MarkProcessed(ctx, ItemFile, fileID, "c1"))

	done, err := st.HasProcessed(ctx, ItemFunction, fn.ID, "c1")
	require.NoError(t, err)
	assert.False(t, done)
}

func TestUnprocessedFiles(t *testing.T) {
	st := setupTestDB(t)
	ctx := context.Background()

	aID, err := st.InsertOrGetFile(ctx, "a.c")
	require.NoError(t, err)
	_, err = st.InsertOrGetFile(ctx, "b.c")
	require.NoError(t, err)

	files, err := st.UnprocessedFiles(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, files, 2)

	require.NoError(t, st.MarkProcessed(ctx, ItemFile, aID, "c1"))

	files, err = st.UnprocessedFiles(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "b.c", files[0].Path)

	// The mark is commit-scoped.
	files, err = st.UnprocessedFiles(ctx, "c2")
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestUnprocessedFunctions(t *testing.T) {
	st := setupTestDB(t)
	ctx := context.Background()

	fileID, err := st.InsertOrGetFile(ctx, "a.c")
	require.NoError(t, err)
	fn := &Function{FileID: fileID, Name: "work", ReturnType: "void", StartLine: 1, EndLine: 2}
	require.NoError(t, st.InsertFunction(ctx, fn))

	fns, err := st.UnprocessedFunctions(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, fns, 1)

	require.NoError(t, st.MarkProcessed(ctx, ItemFunction, fn.ID, "c1"))
	fns, err = st.UnprocessedFunctions(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, fns)
}

func TestTransactionRollback(t *testing.T) {
	st := setupTestDB(t)
	ctx := context.Background()

	fileID, err := st.InsertOrGetFile(ctx, "a.c")
	require.NoError(t, err)

	tx, err := st.BeginTx(ctx)
	require.NoError(t, err)
	fn := &Function{FileID: fileID, Name: "work", ReturnType: "void", StartLine: 1, EndLine: 2}
	require.NoError(t, tx.InsertFunction(ctx, fn))
	require.NoError(t, tx.Rollback())

	fns, err := st.ListFunctions(ctx)
	require.NoError(t, err)
	assert.Empty(t, fns)
}

func TestTransactionCommit(t *testing.T) {
	st := setupTestDB(t)
	ctx := context.Background()

	fileID, err := st.InsertOrGetFile(ctx, "a.c")
	require.NoError(t, err)

	tx, err := st.BeginTx(ctx)
	require.NoError(t, err)
	sym := &Symbol{FileID: fileID, Type: SymbolGlobal, Name: "counter", Snippet: "int counter"}
	require.NoError(t, tx.InsertSymbol(ctx, sym))
	require.NoError(t, tx.Commit())

	syms, err := st.ListSymbols(ctx)
	require.NoError(t, err)
	assert.Len(t, syms, 1)
}

func TestRecordCommit(t *testing.T) {
	st := setupTestDB(t)
	ctx := context.Background()

	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, st.RecordCommit(ctx, "abc123", "dev", "initial", ts))
	// Upsert with new metadata must not fail on the unique sha.
	require.NoError(t, st.RecordCommit(ctx, "abc123", "dev", "amended", ts))
}

func TestForeignKeysHoldOnEveryPooledConnection(t *testing.T) {
	// File-backed database with several pooled connections: the
	// foreign_keys pragma travels in the DSN, so every connection must
	// reject an orphan row, not just the first one opened.
	st, err := NewSQLiteStore(filepath.Join(t.TempDir(), "facts.db"), 4)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = st.InsertSymbol(ctx, &Symbol{
				FileID: 9999, Type: SymbolGlobal, Name: "orphan", Snippet: "int orphan",
			})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.Error(t, err, "orphan symbol must violate the files foreign key")
	}
}

func TestHashSnippet(t *testing.T) {
	h1 := HashSnippet("int main() {}")
	h2 := HashSnippet("int main() {}")
	h3 := HashSnippet("int main() { return 1; }")

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 64)
}
