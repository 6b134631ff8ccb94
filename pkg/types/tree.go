package types

// Point is a 0-based (row, column) position in a source buffer.
type Point struct {
	Row    uint32
	Column uint32
}

// Node is the minimal view of a parsed syntax node that the extractor
// relies on. Any grammar implementation may be swapped in as long as the
// node type tags keep their tree-sitter C semantics (function_definition,
// declaration, struct_specifier, and so on).
type Node interface {
	// Type returns the grammar's node kind tag.
	Type() string

	StartPoint() Point
	EndPoint() Point
	StartByte() uint32
	EndByte() uint32

	// ChildCount and Child expose the ordered child list, anonymous
	// (keyword/punctuation) nodes included.
	ChildCount() int
	Child(i int) Node
}

// NodeText returns the source text covered by a node.
func NodeText(n Node, source []byte) string {
	start, end := n.StartByte(), n.EndByte()
	if int(end) > len(source) || start > end {
		return ""
	}
	return string(source[start:end])
}
