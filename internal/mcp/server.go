package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/server"

	"cindex/internal/codemap"
	"cindex/internal/extract"
	"cindex/internal/grammar"
	"cindex/internal/pipeline"
	"cindex/internal/store"
	"cindex/internal/track"
)

const (
	// ServerName is the MCP server name
	ServerName = "cindex"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp     *server.MCPServer
	store   store.Store
	pipe    *pipeline.Pipeline
	maps    *codemap.Assembler
	tracker *track.Tracker
	log     *log.Logger
}

// NewServer creates a new MCP server instance. Grammar or database failures
// are fatal here, before any tool call is served.
func NewServer(dbPath string, poolSize int, logger *log.Logger) (*Server, error) {
	if logger == nil {
		logger = log.Default()
	}

	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dbPath = filepath.Join(home, ".cindex", "index.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	st, err := store.NewSQLiteStore(dbPath, poolSize)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	cache := grammar.NewCache()
	lang, err := cache.Load("c")
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to load grammar: %w", err)
	}
	provider, err := cache.Provider(lang)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to create parser provider: %w", err)
	}

	tracker := track.New(st, logger)
	ext := extract.NewFileExtractor(provider)
	pipe := pipeline.New(st, tracker, ext, logger)
	maps := codemap.New(st, logger)

	mcpServer := server.NewMCPServer(ServerName, ServerVersion)

	s := &Server{
		mcp:     mcpServer,
		store:   st,
		pipe:    pipe,
		maps:    maps,
		tracker: tracker,
		log:     logger,
	}
	s.registerTools()
	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.store.Close() }()
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(indexCodebaseTool(), s.handleIndexCodebase)
	s.mcp.AddTool(getCodeMapTool(), s.handleGetCodeMap)
	s.mcp.AddTool(getFileFactsTool(), s.handleGetFileFacts)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
