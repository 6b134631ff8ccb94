package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cindex/internal/grammar"
)

func newTestExtractor(t *testing.T) *FileExtractor {
	t.Helper()
	cache := grammar.NewCache()
	lang, err := cache.Load("c")
	require.NoError(t, err)
	provider, err := cache.Provider(lang)
	require.NoError(t, err)
	return NewFileExtractor(provider)
}

func writeSource(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestExtractFileSource(t *testing.T) {
	path := writeSource(t, "main.c", `int a() { return b(); }
int b() { return 1; }
`)

	facts, source, err := newTestExtractor(t).ExtractFile(context.Background(), path)
	require.NoError(t, err)
	assert.NotEmpty(t, source)

	require.Len(t, facts.Functions, 2)
	assert.Equal(t, "a", facts.Functions[0].Name)
	assert.Equal(t, "int", facts.Functions[0].ReturnType)
	assert.Equal(t, 1, facts.Functions[0].StartLine)
	assert.Equal(t, "b", facts.Functions[1].Name)
	assert.Equal(t, 2, facts.Functions[1].StartLine)
	for _, fn := range facts.Functions {
		assert.False(t, fn.Prototype)
		assert.LessOrEqual(t, fn.StartLine, fn.EndLine)
	}

	require.Len(t, facts.Calls, 1)
	assert.Equal(t, "b", facts.Calls[0].Callee)
	assert.Equal(t, 1, facts.Calls[0].Line)
}

func TestExtractFileHeaderPrototype(t *testing.T) {
	path := writeSource(t, "h.h", "int foo(int x);\n")

	facts, _, err := newTestExtractor(t).ExtractFile(context.Background(), path)
	require.NoError(t, err)

	require.Len(t, facts.Functions, 1)
	fn := facts.Functions[0]
	assert.Equal(t, "foo", fn.Name)
	assert.True(t, fn.Prototype)
	assert.Equal(t, []string{"int x"}, fn.Parameters)
}

func TestExtractFileMissing(t *testing.T) {
	_, _, err := newTestExtractor(t).ExtractFile(context.Background(), filepath.Join(t.TempDir(), "nope.c"))
	assert.Error(t, err)
}
