package extract

import (
	"context"
	"fmt"
	"os"
	"strings"

	"cindex/internal/grammar"
	"cindex/pkg/types"
)

// FileExtractor parses files through a grammar.ParserProvider and runs the
// structural walk on the result. It is safe for concurrent use; parser
// ownership is the provider's concern.
type FileExtractor struct {
	provider grammar.ParserProvider
}

func NewFileExtractor(provider grammar.ParserProvider) *FileExtractor {
	return &FileExtractor{provider: provider}
}

// ExtractFile reads, parses and walks one file, returning the facts together
// with the source buffer so callers can slice out snippets without a second
// read.
func (e *FileExtractor) ExtractFile(ctx context.Context, absPath string) (*types.FileFacts, []byte, error) {
	source, err := os.ReadFile(absPath)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", absPath, err)
	}

	parser, release, err := e.provider.Acquire(ctx)
	if err != nil {
		return nil, nil, err
	}

	root, closeTree, err := grammar.Parse(ctx, parser, source)
	if err != nil {
		release()
		return nil, nil, fmt.Errorf("parse %s: %w", absPath, err)
	}

	facts := Extract(root, source, strings.HasSuffix(absPath, ".h"))
	closeTree()
	release()
	return facts, source, nil
}
