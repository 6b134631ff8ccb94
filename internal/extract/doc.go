// Package extract walks a parsed C syntax tree and produces the structural
// facts for one file: functions, prototypes, structs, typedefs, globals and
// call sites.
//
// The walk is a pure function of the tree and the source buffer. It operates
// on the types.Node contract rather than a concrete tree-sitter node, so the
// grammar implementation can be swapped and tests can drive it with
// hand-built trees. All traversals visit children in document order, which
// keeps snippet hashing and test expectations reproducible.
package extract
