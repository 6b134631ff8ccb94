package types

// Named placeholders used when the C grammar gives the extractor nothing
// better to work with.
const (
	AnonymousName = "<anonymous>"
	ComplexType   = "<complex type>"
	UnknownType   = "<unknown_type>"
)

// FileFacts is the structural extraction result for a single file.
type FileFacts struct {
	Functions []Function
	Structs   []Struct
	Typedefs  []Typedef
	Globals   []Global
	Calls     []Call
}

// Function describes a function definition or prototype.
type Function struct {
	Name       string
	ReturnType string   // concatenated type tokens, "int" when unmarked
	Parameters []string // parameter declarations in source order
	StartLine  int      // 1-based, inclusive
	EndLine    int      // 1-based, inclusive
	Prototype  bool     // true for header declarations
}

// Struct describes a struct specifier and its collected fields.
type Struct struct {
	Name   string
	Fields []string // "<type> <name>" per declared field
	Code   string   // raw source snippet of the specifier
}

// Typedef pairs an alias with the type tokens it stands for.
type Typedef struct {
	Alias    string
	Original string
	Code     string
}

// Global is a file-scope variable declaration.
type Global struct {
	Name string
	Type string
}

// Call is a call site observed inside the file. The line is resolved to an
// enclosing function by the pipeline writer; extraction itself is line-based,
// not scope-based.
type Call struct {
	Line   int // 1-based line of the call expression
	Callee string
}

// Empty reports whether extraction produced nothing at all for the file.
func (f *FileFacts) Empty() bool {
	return len(f.Functions) == 0 && len(f.Structs) == 0 &&
		len(f.Typedefs) == 0 && len(f.Globals) == 0 && len(f.Calls) == 0
}
