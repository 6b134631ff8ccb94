// Package types provides shared type definitions for the cindex tools.
//
// This package defines the domain types exchanged between the extractor,
// the indexing pipeline, the store, and the code-map assembler.
//
// # Core Types
//
// FileFacts is the structural extraction result for one C source or header
// file:
//
//	facts := &types.FileFacts{
//	    Functions: []types.Function{{Name: "main", ReturnType: "int"}},
//	    Calls:     []types.Call{{Line: 3, Callee: "printf"}},
//	}
//
// Function carries everything the store needs to persist a function row,
// including the 1-based inclusive line range used for call attribution:
//
//	fn := types.Function{
//	    Name:       "parse_input",
//	    ReturnType: "static int",
//	    Parameters: []string{"const char *buf", "size_t len"},
//	    StartLine:  10,
//	    EndLine:    42,
//	}
//
// # Identity
//
// A function's logical identity is (path, name, start line, end line).
// Physical rows in the store are append-only and may duplicate a logical
// function across extraction passes; the codemap package unifies them at
// read time.
package types
