package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// indexCodebaseTool returns the tool definition for index_codebase
func indexCodebaseTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_codebase",
		Description: "Index a C codebase into the structural fact base",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the C project root",
				},
				"workers": map[string]interface{}{
					"type":        "integer",
					"description": "Worker pool size (0 = number of CPUs)",
					"default":     0,
				},
				"commit": map[string]interface{}{
					"type":        "string",
					"description": "Commit identifier scoping the run; already-processed files for this commit are skipped",
					"default":     "HEAD",
				},
			},
			Required: []string{"path"},
		},
	}
}

// getCodeMapTool returns the tool definition for get_code_map
func getCodeMapTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_code_map",
		Description: "Assemble the per-file structural map with caller/callee references and summaries",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"commit": map[string]interface{}{
					"type":        "string",
					"description": "Commit whose summaries to include",
					"default":     "HEAD",
				},
				"file": map[string]interface{}{
					"type":        "string",
					"description": "Restrict output to one indexed file path",
				},
			},
		},
	}
}

// getFileFactsTool returns the tool definition for get_file_facts
func getFileFactsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_file_facts",
		Description: "Return the stored structural facts (functions, structs, typedefs, globals) for one file",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"file": map[string]interface{}{
					"type":        "string",
					"description": "Indexed file path (repository-relative)",
				},
			},
			Required: []string{"file"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Query index statistics and pipeline state",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"commit": map[string]interface{}{
					"type":        "string",
					"description": "Commit used for the unprocessed-files count",
					"default":     "HEAD",
				},
			},
		},
	}
}
