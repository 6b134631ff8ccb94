package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"cindex/internal/store"
	"cindex/internal/track"
	"cindex/pkg/types"
)

// writeItem carries one file's extracted facts to the writer. The file row
// id is assigned by the writer itself, inside the item's transaction.
type writeItem struct {
	relPath string
	facts   *types.FileFacts
	source  []byte
}

// writer serializes all structural mutations onto one goroutine. Each item
// is stored inside a single transaction and marked processed only after a
// successful commit, so a crash or failure leaves the file unmarked and it
// is re-indexed on the next run.
type writer struct {
	store   store.Store
	tracker *track.Tracker
	log     *log.Logger
	commit  string

	queue chan *writeItem

	stored    atomic.Int32
	failed    atomic.Int32
	functions atomic.Int64
	symbols   atomic.Int64
	edges     atomic.Int64

	errMu  sync.Mutex
	errors []string
}

func newWriter(st store.Store, tracker *track.Tracker, logger *log.Logger, commit string) *writer {
	return &writer{
		store:   st,
		tracker: tracker,
		log:     logger,
		commit:  commit,
		queue:   make(chan *writeItem, 64),
	}
}

func (w *writer) enqueue(item *writeItem) {
	w.queue <- item
}

// finish signals that no more items will arrive.
func (w *writer) finish() {
	close(w.queue)
}

// start launches the writer goroutine and returns a channel closed when the
// queue is fully drained. A failing item is logged and counted; the writer
// itself never stops early.
func (w *writer) start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for item := range w.queue {
			if err := w.storeFile(ctx, item); err != nil {
				w.failed.Add(1)
				w.errMu.Lock()
				w.errors = append(w.errors, fmt.Sprintf("%s: %v", item.relPath, err))
				w.errMu.Unlock()
				w.log.Error("failed to store file facts", "path", item.relPath, "err", err)
			}
		}
	}()
	return done
}

func (w *writer) errorMessages() []string {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	return append([]string(nil), w.errors...)
}

func (w *writer) storeFile(ctx context.Context, item *writeItem) error {
	tx, err := w.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	fileID, err := tx.InsertOrGetFile(ctx, item.relPath)
	if err != nil {
		return fmt.Errorf("registering file: %w", err)
	}

	if err := w.storeSymbols(ctx, tx, fileID, item); err != nil {
		return err
	}
	funcIDs, err := w.storeFunctions(ctx, tx, fileID, item)
	if err != nil {
		return err
	}
	edges, err := w.storeCalls(ctx, tx, item, funcIDs)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	committed = true
	w.functions.Add(int64(len(item.facts.Functions)))
	w.symbols.Add(int64(len(item.facts.Structs) + len(item.facts.Typedefs) + len(item.facts.Globals)))
	w.edges.Add(int64(edges))

	if err := w.tracker.MarkProcessed(ctx, store.ItemFile, fileID, w.commit); err != nil {
		return fmt.Errorf("marking file processed: %w", err)
	}
	// Counted only once the file is both committed and marked, so a file
	// never shows up as indexed and failed at the same time.
	w.stored.Add(1)
	return nil
}

func (w *writer) storeSymbols(ctx context.Context, q store.Querier, fileID int64, item *writeItem) error {
	for _, s := range item.facts.Structs {
		sym := &store.Symbol{
			FileID:  fileID,
			Type:    store.SymbolStruct,
			Name:    s.Name,
			Snippet: s.Code,
		}
		if err := q.InsertSymbol(ctx, sym); err != nil {
			return fmt.Errorf("storing struct %q: %w", s.Name, err)
		}
	}
	for _, t := range item.facts.Typedefs {
		sym := &store.Symbol{
			FileID:  fileID,
			Type:    store.SymbolTypedef,
			Name:    t.Alias,
			Snippet: t.Code,
		}
		if err := q.InsertSymbol(ctx, sym); err != nil {
			return fmt.Errorf("storing typedef %q: %w", t.Alias, err)
		}
	}
	for _, g := range item.facts.Globals {
		sym := &store.Symbol{
			FileID:  fileID,
			Type:    store.SymbolGlobal,
			Name:    g.Name,
			Snippet: g.Type + " " + g.Name,
		}
		if err := q.InsertSymbol(ctx, sym); err != nil {
			return fmt.Errorf("storing global %q: %w", g.Name, err)
		}
	}
	return nil
}

// storeFunctions inserts every function fact and returns their ids, parallel
// to item.facts.Functions.
func (w *writer) storeFunctions(ctx context.Context, q store.Querier, fileID int64, item *writeItem) ([]int64, error) {
	lines := strings.SplitAfter(string(item.source), "\n")
	snippet := func(startLine, endLine int) string {
		lo := startLine - 1
		hi := endLine
		if lo < 0 {
			lo = 0
		}
		if hi > len(lines) {
			hi = len(lines)
		}
		if lo >= hi {
			return ""
		}
		return strings.Join(lines[lo:hi], "")
	}

	ids := make([]int64, len(item.facts.Functions))
	for i := range item.facts.Functions {
		fn := &item.facts.Functions[i]
		code := snippet(fn.StartLine, fn.EndLine)
		rec := &store.Function{
			FileID:     fileID,
			Name:       fn.Name,
			ReturnType: fn.ReturnType,
			Parameters: fn.Parameters,
			StartLine:  fn.StartLine,
			EndLine:    fn.EndLine,
			Prototype:  fn.Prototype,
			CodeHash:   store.HashSnippet(code),
			Snippet:    code,
		}
		if err := q.InsertFunction(ctx, rec); err != nil {
			return nil, fmt.Errorf("storing function %q: %w", fn.Name, err)
		}
		ids[i] = rec.ID
	}
	return ids, nil
}

// storeCalls resolves each call site to an enclosing definition in this file
// and a named callee anywhere in the index, preferring definitions over
// prototypes. Unresolvable endpoints drop the edge silently. Returns the
// number of edges inserted.
func (w *writer) storeCalls(ctx context.Context, q store.Querier, item *writeItem, funcIDs []int64) (int, error) {
	enclosing := func(line int) (int64, bool) {
		for i := range item.facts.Functions {
			fn := &item.facts.Functions[i]
			if !fn.Prototype && fn.StartLine <= line && line <= fn.EndLine {
				return funcIDs[i], true
			}
		}
		return 0, false
	}

	inserted := 0
	for _, call := range item.facts.Calls {
		callerID, ok := enclosing(call.Line)
		if !ok {
			continue
		}
		calleeID, err := q.FindFunctionByName(ctx, call.Callee)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return inserted, fmt.Errorf("resolving callee %q: %w", call.Callee, err)
		}
		if callerID == calleeID {
			continue
		}
		if err := q.InsertCallEdge(ctx, callerID, calleeID); err != nil {
			return inserted, fmt.Errorf("storing call edge to %q: %w", call.Callee, err)
		}
		inserted++
	}
	return inserted, nil
}
