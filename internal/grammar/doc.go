// Package grammar loads compiled tree-sitter grammars and hands out parser
// instances bound to them.
//
// Grammars are cached by name. Parsers are cheap and must not be shared
// between goroutines, so workers obtain them through a ParserProvider: either
// a private parser per acquisition, or, when private parsers cannot be
// created, a single shared parser guarded by a mutex. Callers see one
// interface and stay oblivious to which path is active.
package grammar
