package mcp

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePath(t *testing.T) {
	dir := t.TempDir()

	assert.NoError(t, validatePath(dir))
	assert.ErrorIs(t, validatePath(""), ErrPathRequired)
	assert.ErrorIs(t, validatePath("relative/path"), ErrPathNotAbsolute)
	assert.ErrorIs(t, validatePath(filepath.Join(dir, "missing")), ErrPathNotFound)

	file := filepath.Join(dir, "f.c")
	require.NoError(t, os.WriteFile(file, []byte("int x;\n"), 0644))
	assert.ErrorIs(t, validatePath(file), ErrNotDirectory)
}

func TestParameterDefaults(t *testing.T) {
	args := map[string]interface{}{
		"workers": float64(4), // JSON numbers decode as float64
		"commit":  "abc123",
	}

	assert.Equal(t, 4, getIntDefault(args, "workers", 0))
	assert.Equal(t, 0, getIntDefault(args, "missing", 0))
	assert.Equal(t, "abc123", getStringDefault(args, "commit", "HEAD"))
	assert.Equal(t, "HEAD", getStringDefault(args, "missing", "HEAD"))
	assert.Equal(t, "HEAD", getStringDefault(nil, "commit", "HEAD"))
}

func TestFormatJSON(t *testing.T) {
	out := formatJSON(map[string]interface{}{"indexed": 3})

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, float64(3), decoded["indexed"])
}

func TestMCPErrorMessage(t *testing.T) {
	err := newMCPError(ErrorCodeInvalidParams, "path parameter is required", nil)
	assert.EqualError(t, err, "MCP error -32602: path parameter is required")
}

func TestToolSchemas(t *testing.T) {
	index := indexCodebaseTool()
	assert.Equal(t, "index_codebase", index.Name)
	assert.Equal(t, []string{"path"}, index.InputSchema.Required)

	facts := getFileFactsTool()
	assert.Equal(t, "get_file_facts", facts.Name)
	assert.Equal(t, []string{"file"}, facts.InputSchema.Required)

	assert.Equal(t, "get_code_map", getCodeMapTool().Name)
	assert.Equal(t, "get_status", getStatusTool().Name)
}
