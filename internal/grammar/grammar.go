package grammar

import (
	"context"
	"fmt"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"

	"cindex/pkg/types"
)

// LoadError reports that a grammar could not be located or compiled. It is
// a configuration-time failure: callers should abort before any indexing
// work starts.
type LoadError struct {
	Name string
	Err  error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("grammar %q: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("grammar %q: not available", e.Name)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Cache caches compiled grammars by language name.
type Cache struct {
	mu    sync.Mutex
	langs map[string]*sitter.Language
}

// NewCache returns an empty grammar cache.
func NewCache() *Cache {
	return &Cache{langs: make(map[string]*sitter.Language)}
}

// Load returns the compiled grammar for a language name, caching it for
// subsequent calls. Unknown names fail with a *LoadError.
func (g *Cache) Load(name string) (*sitter.Language, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if lang, ok := g.langs[name]; ok {
		return lang, nil
	}

	var lang *sitter.Language
	switch name {
	case "c":
		lang = c.GetLanguage()
	default:
		return nil, &LoadError{Name: name}
	}
	if lang == nil {
		return nil, &LoadError{Name: name}
	}

	g.langs[name] = lang
	return lang, nil
}

// NewParser creates a fresh parser bound to a grammar. Parsers are not safe
// for concurrent use; create one per goroutine.
func NewParser(lang *sitter.Language) (*sitter.Parser, error) {
	if lang == nil {
		return nil, &LoadError{Name: "<nil>"}
	}
	p := sitter.NewParser()
	p.SetLanguage(lang)
	return p, nil
}

// Parse parses a source buffer and returns the tree's root node behind the
// types.Node interface. Close must be called when the caller is done with
// the node.
func Parse(ctx context.Context, parser *sitter.Parser, source []byte) (types.Node, func(), error) {
	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, nil, fmt.Errorf("parse: %w", err)
	}
	return sitterNode{n: tree.RootNode()}, tree.Close, nil
}

// sitterNode adapts *sitter.Node to the grammar-agnostic node contract.
type sitterNode struct {
	n *sitter.Node
}

func (s sitterNode) Type() string { return s.n.Type() }

func (s sitterNode) StartPoint() types.Point {
	p := s.n.StartPoint()
	return types.Point{Row: p.Row, Column: p.Column}
}

func (s sitterNode) EndPoint() types.Point {
	p := s.n.EndPoint()
	return types.Point{Row: p.Row, Column: p.Column}
}

func (s sitterNode) StartByte() uint32 { return s.n.StartByte() }
func (s sitterNode) EndByte() uint32   { return s.n.EndByte() }
func (s sitterNode) ChildCount() int   { return int(s.n.ChildCount()) }

func (s sitterNode) Child(i int) types.Node {
	return sitterNode{n: s.n.Child(i)}
}
