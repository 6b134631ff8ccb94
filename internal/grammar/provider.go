package grammar

import (
	"context"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

// ParserProvider hands a parser to a worker for the duration of one parse.
// The returned release function must be called exactly once.
type ParserProvider interface {
	Acquire(ctx context.Context) (*sitter.Parser, func(), error)
}

// Provider performs the capability check for a grammar: if a private parser
// can be created, every Acquire gets its own instance; otherwise all callers
// serialize through one shared parser.
func (g *Cache) Provider(lang *sitter.Language) (ParserProvider, error) {
	if probe, err := NewParser(lang); err == nil {
		probe.Close()
		return &privateProvider{lang: lang}, nil
	}

	shared, err := NewParser(lang)
	if err != nil {
		return nil, err
	}
	return &sharedProvider{parser: shared}, nil
}

// privateProvider creates an independent parser per acquisition.
type privateProvider struct {
	lang *sitter.Language
}

func (p *privateProvider) Acquire(ctx context.Context) (*sitter.Parser, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	parser, err := NewParser(p.lang)
	if err != nil {
		return nil, nil, err
	}
	// Release frees the C-side parser immediately instead of waiting for
	// a finalizer.
	return parser, parser.Close, nil
}

// sharedProvider guards a single parser with a mutex. Used only when private
// instances are unavailable.
type sharedProvider struct {
	mu     sync.Mutex
	parser *sitter.Parser
}

func (p *sharedProvider) Acquire(ctx context.Context) (*sitter.Parser, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	p.mu.Lock()
	return p.parser, p.mu.Unlock, nil
}
