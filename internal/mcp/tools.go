package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"cindex/internal/pipeline"
	"cindex/internal/store"
)

// MCP error codes
const (
	ErrorCodeInvalidParams = -32602 // Invalid method parameters
	ErrorCodeInternalError = -32603 // Internal JSON-RPC error
	ErrorCodeNotIndexed    = -32001 // Requested file not in the index
)

// handleIndexCodebase handles the index_codebase tool invocation
func (s *Server) handleIndexCodebase(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}
	if err := validatePath(path); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}

	opts := &pipeline.Options{
		Workers: getIntDefault(args, "workers", 0),
		Commit:  getStringDefault(args, "commit", "HEAD"),
	}

	stats, err := s.pipe.Run(ctx, path, opts)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"discovered":  stats.Discovered,
		"indexed":     stats.Indexed,
		"skipped":     stats.Skipped,
		"failed":      stats.Failed,
		"functions":   stats.Functions,
		"symbols":     stats.Symbols,
		"call_edges":  stats.Edges,
		"cancelled":   stats.Cancelled,
		"duration_ms": stats.Duration.Milliseconds(),
	}
	if len(stats.ErrorMessages) > 0 {
		errorCount := len(stats.ErrorMessages)
		if errorCount > 5 {
			response["errors"] = stats.ErrorMessages[:5]
			response["error_count"] = errorCount
		} else {
			response["errors"] = stats.ErrorMessages
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetCodeMap handles the get_code_map tool invocation
func (s *Server) handleGetCodeMap(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	commit := getStringDefault(args, "commit", "HEAD")
	fileFilter := getStringDefault(args, "file", "")

	m, err := s.maps.Assemble(ctx, commit)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to assemble code map", map[string]interface{}{
			"error": err.Error(),
		})
	}

	if fileFilter != "" {
		if _, ok := m[fileFilter]; !ok {
			return nil, newMCPError(ErrorCodeNotIndexed, "file not in index", map[string]interface{}{
				"file": fileFilter,
			})
		}
	}

	// Render in sorted path order for stable output.
	ordered := make([]interface{}, 0, len(m))
	for _, p := range m.Paths() {
		if fileFilter != "" && p != fileFilter {
			continue
		}
		ordered = append(ordered, m[p])
	}

	response := map[string]interface{}{
		"commit": commit,
		"files":  ordered,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetFileFacts handles the get_file_facts tool invocation
func (s *Server) handleGetFileFacts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	file, ok := args["file"].(string)
	if !ok || file == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "file parameter is required", map[string]interface{}{
			"param":  "file",
			"reason": "missing or empty",
		})
	}

	fileID, err := s.store.GetFileID(ctx, file)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newMCPError(ErrorCodeNotIndexed, "file not in index", map[string]interface{}{
			"file": file,
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to look up file", map[string]interface{}{
			"error": err.Error(),
		})
	}

	fns, err := s.store.ListFunctions(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to list functions", map[string]interface{}{
			"error": err.Error(),
		})
	}
	var functions []map[string]interface{}
	for _, fn := range fns {
		if fn.FileID != fileID {
			continue
		}
		functions = append(functions, map[string]interface{}{
			"name":        fn.Name,
			"return_type": fn.ReturnType,
			"parameters":  fn.Parameters,
			"start_line":  fn.StartLine,
			"end_line":    fn.EndLine,
			"prototype":   fn.Prototype,
			"snippet":     fn.Snippet,
		})
	}

	syms, err := s.store.ListSymbols(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to list symbols", map[string]interface{}{
			"error": err.Error(),
		})
	}
	symbols := map[string][]map[string]interface{}{}
	for _, sym := range syms {
		if sym.FileID != fileID {
			continue
		}
		symbols[sym.Type] = append(symbols[sym.Type], map[string]interface{}{
			"name":    sym.Name,
			"snippet": sym.Snippet,
		})
	}

	response := map[string]interface{}{
		"file":      file,
		"functions": functions,
		"structs":   symbols[store.SymbolStruct],
		"typedefs":  symbols[store.SymbolTypedef],
		"globals":   symbols[store.SymbolGlobal],
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	commit := getStringDefault(args, "commit", "HEAD")

	files, err := s.store.ListFiles(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to read status", map[string]interface{}{
			"error": err.Error(),
		})
	}
	fns, err := s.store.ListFunctions(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to read status", map[string]interface{}{
			"error": err.Error(),
		})
	}
	syms, err := s.store.ListSymbols(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to read status", map[string]interface{}{
			"error": err.Error(),
		})
	}
	edges, err := s.store.ListCallEdges(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to read status", map[string]interface{}{
			"error": err.Error(),
		})
	}
	unprocessed, err := s.tracker.UnprocessedFiles(ctx, commit)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to read status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"commit":         commit,
		"pipeline_state": s.pipe.State().String(),
		"statistics": map[string]interface{}{
			"files_count":       len(files),
			"functions_count":   len(fns),
			"symbols_count":     len(syms),
			"call_edges_count":  len(edges),
			"unprocessed_files": len(unprocessed),
		},
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// validatePath checks if a path exists and is a readable directory
func validatePath(path string) error {
	if path == "" {
		return ErrPathRequired
	}
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}
	if !info.IsDir() {
		return ErrNotDirectory
	}

	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()
	return nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
)
