package extract

import (
	"strings"

	"cindex/pkg/types"
)

// typeTokenKinds are the node kinds whose text contributes to a return type,
// field type, typedef original or global type.
var typeTokenKinds = map[string]bool{
	"primitive_type":          true,
	"type_identifier":         true,
	"type_qualifier":          true,
	"storage_class_specifier": true,
	"sized_type_specifier":    true,
}

func isDeclaratorKind(kind string) bool {
	switch kind {
	case "declarator", "function_declarator", "pointer_declarator":
		return true
	}
	return false
}

// Extract produces the FileFacts for one parsed file. Prototypes are only
// collected when header is true, mirroring the .h/.c split of the indexed
// codebase.
func Extract(root types.Node, source []byte, header bool) *types.FileFacts {
	w := &walker{source: source}

	facts := &types.FileFacts{
		Functions: w.functions(root),
		Structs:   w.structs(root),
		Typedefs:  w.typedefs(root),
		Globals:   w.globals(root),
		Calls:     w.calls(root),
	}
	if header {
		facts.Functions = append(facts.Functions, w.prototypes(root)...)
	}
	return facts
}

type walker struct {
	source []byte
}

func (w *walker) text(n types.Node) string {
	return types.NodeText(n, w.source)
}

// findIdentifier returns the text of the first identifier node in document
// order, or "" if the subtree has none.
func (w *walker) findIdentifier(n types.Node) string {
	if n.Type() == "identifier" {
		return w.text(n)
	}
	for i := 0; i < n.ChildCount(); i++ {
		if name := w.findIdentifier(n.Child(i)); name != "" {
			return name
		}
	}
	return ""
}

// parameters collects the text of every parameter_declaration in a
// declarator subtree, outermost first.
func (w *walker) parameters(n types.Node) []string {
	var params []string
	var walk func(types.Node)
	walk = func(n types.Node) {
		if n.Type() == "parameter_declaration" {
			params = append(params, strings.TrimSpace(w.text(n)))
		}
		for i := 0; i < n.ChildCount(); i++ {
			walk(n.Child(i))
		}
	}
	walk(n)
	return params
}

// signature pulls the name, return type and parameter list out of a
// function_definition or prototype declaration node. The name is the first
// identifier inside the declarator; the return type is the concatenation of
// type tokens that are direct children of the node, "int" when the source
// leaves it unmarked.
func (w *walker) signature(n types.Node) (name, returnType string, params []string) {
	var typeParts []string

	for i := 0; i < n.ChildCount(); i++ {
		child := n.Child(i)
		switch {
		case isDeclaratorKind(child.Type()):
			name = w.findIdentifier(child)
			params = w.parameters(child)
		case typeTokenKinds[child.Type()]:
			typeParts = append(typeParts, w.text(child))
		}
	}

	// Some grammars use declarator variants not in the canonical set.
	if name == "" {
		for i := 0; i < n.ChildCount(); i++ {
			child := n.Child(i)
			if strings.HasSuffix(child.Type(), "declarator") {
				name = w.findIdentifier(child)
				params = w.parameters(child)
				break
			}
		}
	}

	returnType = strings.TrimSpace(strings.Join(typeParts, " "))
	if returnType == "" {
		returnType = "int"
	}
	return name, returnType, params
}

func (w *walker) functions(root types.Node) []types.Function {
	var funcs []types.Function
	var walk func(types.Node)
	walk = func(n types.Node) {
		if n.Type() == "function_definition" {
			name, returnType, params := w.signature(n)
			funcs = append(funcs, types.Function{
				Name:       name,
				ReturnType: returnType,
				Parameters: params,
				StartLine:  int(n.StartPoint().Row) + 1,
				EndLine:    int(n.EndPoint().Row) + 1,
				Prototype:  false,
			})
		}
		for i := 0; i < n.ChildCount(); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
	return funcs
}

func (w *walker) prototypes(root types.Node) []types.Function {
	var protos []types.Function
	var walk func(types.Node)
	walk = func(n types.Node) {
		if n.Type() == "declaration" && hasFunctionDeclarator(n) {
			name, returnType, params := w.signature(n)
			if name != "" {
				protos = append(protos, types.Function{
					Name:       name,
					ReturnType: returnType,
					Parameters: params,
					StartLine:  int(n.StartPoint().Row) + 1,
					EndLine:    int(n.EndPoint().Row) + 1,
					Prototype:  true,
				})
			}
		}
		for i := 0; i < n.ChildCount(); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
	return protos
}

func hasFunctionDeclarator(n types.Node) bool {
	for i := 0; i < n.ChildCount(); i++ {
		switch n.Child(i).Type() {
		case "function_declarator", "pointer_declarator":
			return true
		}
	}
	return false
}

func (w *walker) calls(root types.Node) []types.Call {
	var calls []types.Call
	var walk func(types.Node)
	walk = func(n types.Node) {
		if n.Type() == "call_expression" {
			for i := 0; i < n.ChildCount(); i++ {
				if child := n.Child(i); child.Type() == "identifier" {
					calls = append(calls, types.Call{
						Line:   int(n.StartPoint().Row) + 1,
						Callee: w.text(child),
					})
					break
				}
			}
		}
		for i := 0; i < n.ChildCount(); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
	return calls
}
