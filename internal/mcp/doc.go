// Package mcp implements the Model Context Protocol (MCP) server for cindex.
//
// The server exposes four tools to MCP clients:
//   - index_codebase: run the indexing pipeline over a C project
//   - get_code_map: assemble the per-file structural map with references
//   - get_file_facts: return stored facts for a single file
//   - get_status: report index statistics and pipeline state
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport; stdout is reserved
// for protocol messages, so all logging goes to stderr. The server is
// typically started via the serve command:
//
//	cindex serve
//
// Errors are returned as standard JSON-RPC error responses:
//   - -32602: invalid params (missing/invalid arguments)
//   - -32603: internal error (database, filesystem)
//   - -32001: requested file not in the index
package mcp
