package extract

import (
	"strings"

	"cindex/pkg/types"
)

// structs collects every struct_specifier. Naming an anonymous specifier
// requires looking at its ancestors, so the walk carries the ancestor stack
// built during this single traversal instead of re-searching the tree per
// node.
func (w *walker) structs(root types.Node) []types.Struct {
	var structs []types.Struct
	var stack []types.Node

	var walk func(types.Node)
	walk = func(n types.Node) {
		if n.Type() == "struct_specifier" {
			structs = append(structs, types.Struct{
				Name:   w.structName(n, stack),
				Fields: w.structFields(n),
				Code:   w.text(n),
			})
		}
		stack = append(stack, n)
		for i := 0; i < n.ChildCount(); i++ {
			walk(n.Child(i))
		}
		stack = stack[:len(stack)-1]
	}
	walk(root)
	return structs
}

// structName prefers the specifier's own type_identifier child. Anonymous
// specifiers are named after a trailing type-identifier sibling found in an
// enclosing declaration or type_definition (the typedef alias), and fall
// back to the anonymous placeholder.
func (w *walker) structName(spec types.Node, stack []types.Node) string {
	for i := 0; i < spec.ChildCount(); i++ {
		if child := spec.Child(i); child.Type() == "type_identifier" {
			return w.text(child)
		}
	}

	onPath := spec
	for i := len(stack) - 1; i >= 0; i-- {
		parent := stack[i]
		if parent.Type() == "declaration" || parent.Type() == "type_definition" {
			if name := w.trailingTypeIdentifier(parent, onPath); name != "" {
				return name
			}
		}
		onPath = parent
	}
	return types.AnonymousName
}

// trailingTypeIdentifier scans the children of parent after the child that
// leads to the struct specifier, returning the first type identifier found.
func (w *walker) trailingTypeIdentifier(parent, onPath types.Node) string {
	seen := false
	for i := 0; i < parent.ChildCount(); i++ {
		child := parent.Child(i)
		if !seen {
			if sameNode(child, onPath) {
				seen = true
			}
			continue
		}
		if name := w.findTypeIdentifier(child); name != "" {
			return name
		}
	}
	return ""
}

// sameNode compares nodes structurally; adapter wrappers are recreated per
// Child call, so pointer identity cannot be relied on.
func sameNode(a, b types.Node) bool {
	return a.Type() == b.Type() && a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte()
}

func (w *walker) findTypeIdentifier(n types.Node) string {
	if n.Type() == "type_identifier" {
		return w.text(n)
	}
	for i := 0; i < n.ChildCount(); i++ {
		if name := w.findTypeIdentifier(n.Child(i)); name != "" {
			return name
		}
	}
	return ""
}

func (w *walker) structFields(spec types.Node) []string {
	var fields []string
	for i := 0; i < spec.ChildCount(); i++ {
		if child := spec.Child(i); child.Type() == "field_declaration_list" {
			w.collectFields(child, &fields)
		}
	}
	return fields
}

func (w *walker) collectFields(n types.Node, fields *[]string) {
	if n.Type() == "field_declaration" {
		fieldType, names := w.fieldDeclaration(n)
		for _, name := range names {
			*fields = append(*fields, fieldType+" "+name)
		}
	}
	for i := 0; i < n.ChildCount(); i++ {
		w.collectFields(n.Child(i), fields)
	}
}

// fieldDeclaration gathers the type tokens and declared names of a single
// field. Field identifiers appear as field_identifier in the C grammar and
// as plain identifier in older grammars; both are accepted.
func (w *walker) fieldDeclaration(fd types.Node) (string, []string) {
	var typeParts, names []string
	var walk func(types.Node)
	walk = func(n types.Node) {
		switch {
		case typeTokenKinds[n.Type()]:
			typeParts = append(typeParts, w.text(n))
		case n.Type() == "identifier" || n.Type() == "field_identifier":
			names = append(names, w.text(n))
		}
		for i := 0; i < n.ChildCount(); i++ {
			walk(n.Child(i))
		}
	}
	walk(fd)

	fieldType := strings.TrimSpace(strings.Join(typeParts, " "))
	if fieldType == "" {
		fieldType = "int"
	}
	return fieldType, names
}

// typedefs collects typedef declarations. The alias is the first plain
// identifier after the typedef keyword; modern C grammars emit the alias as
// the trailing type_identifier of a type_definition instead, so when no
// plain identifier exists the last collected type identifier is taken as the
// alias and removed from the original-type tokens.
func (w *walker) typedefs(root types.Node) []types.Typedef {
	var typedefs []types.Typedef
	var walk func(types.Node)
	walk = func(n types.Node) {
		if n.Type() == "declaration" || n.Type() == "type_definition" {
			if td, ok := w.typedefFromDecl(n); ok {
				typedefs = append(typedefs, td)
			}
		}
		for i := 0; i < n.ChildCount(); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
	return typedefs
}

type token struct {
	text   string
	isType bool // type_identifier, candidate alias position
}

func (w *walker) typedefFromDecl(decl types.Node) (types.Typedef, bool) {
	var (
		sawTypedef bool
		alias      string
		tokens     []token
	)

	var walk func(types.Node)
	walk = func(n types.Node) {
		switch {
		case n.Type() == "typedef",
			n.Type() == "storage_class_specifier" && w.text(n) == "typedef":
			sawTypedef = true
		case n.Type() == "identifier" && sawTypedef && alias == "":
			alias = w.text(n)
		case typeTokenKinds[n.Type()] && sawTypedef && alias == "":
			tokens = append(tokens, token{text: w.text(n), isType: n.Type() == "type_identifier"})
		}
		for i := 0; i < n.ChildCount(); i++ {
			walk(n.Child(i))
		}
	}
	walk(decl)

	if !sawTypedef {
		return types.Typedef{}, false
	}
	if alias == "" && len(tokens) > 0 && tokens[len(tokens)-1].isType {
		alias = tokens[len(tokens)-1].text
		tokens = tokens[:len(tokens)-1]
	}
	if alias == "" {
		return types.Typedef{}, false
	}

	parts := make([]string, len(tokens))
	for i, t := range tokens {
		parts[i] = t.text
	}
	original := strings.TrimSpace(strings.Join(parts, " "))
	if original == "" {
		original = types.ComplexType
	}
	return types.Typedef{Alias: alias, Original: original, Code: w.text(decl)}, true
}

// globals collects one entry per identifier inside any declaration that lies
// outside every function definition's byte range. This intentionally sweeps
// up prototype parameter names as well; consumers treat globals as a loose
// inventory, not a symbol table.
func (w *walker) globals(root types.Node) []types.Global {
	type span struct{ start, end uint32 }
	var fdefs []span
	var collect func(types.Node)
	collect = func(n types.Node) {
		if n.Type() == "function_definition" {
			fdefs = append(fdefs, span{n.StartByte(), n.EndByte()})
		}
		for i := 0; i < n.ChildCount(); i++ {
			collect(n.Child(i))
		}
	}
	collect(root)

	insideFunction := func(n types.Node) bool {
		for _, f := range fdefs {
			if n.StartByte() >= f.start && n.EndByte() <= f.end {
				return true
			}
		}
		return false
	}

	var globals []types.Global
	var walk func(types.Node)
	walk = func(n types.Node) {
		if n.Type() == "declaration" && !insideFunction(n) {
			var typeParts, names []string
			var parse func(types.Node)
			parse = func(d types.Node) {
				switch {
				case typeTokenKinds[d.Type()]:
					typeParts = append(typeParts, w.text(d))
				case d.Type() == "identifier":
					names = append(names, w.text(d))
				}
				for i := 0; i < d.ChildCount(); i++ {
					parse(d.Child(i))
				}
			}
			parse(n)

			varType := strings.TrimSpace(strings.Join(typeParts, " "))
			if varType == "" {
				varType = types.UnknownType
			}
			for _, name := range names {
				globals = append(globals, types.Global{Name: name, Type: varType})
			}
		}
		for i := 0; i < n.ChildCount(); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
	return globals
}
