package codemap

import (
	"context"
	"fmt"
	"sort"

	"github.com/charmbracelet/log"

	"cindex/internal/store"
)

// FunctionEntry is one function in the assembled map. Callers and callees
// are stable "path::name" labels, first occurrence kept.
type FunctionEntry struct {
	Name       string   `json:"name"`
	ReturnType string   `json:"return_type"`
	Parameters []string `json:"parameters,omitempty"`
	StartLine  int      `json:"start_line"`
	EndLine    int      `json:"end_line"`
	Prototype  bool     `json:"prototype"`
	Summary    string   `json:"summary,omitempty"`
	Callers    []string `json:"callers,omitempty"`
	Callees    []string `json:"callees,omitempty"`
}

// SymbolEntry is a struct, typedef or global in the assembled map.
type SymbolEntry struct {
	Name    string `json:"name"`
	Snippet string `json:"snippet,omitempty"`
}

// FileEntry is the per-file view: structural facts plus references.
type FileEntry struct {
	Path      string           `json:"path"`
	Summary   string           `json:"summary,omitempty"`
	Functions []*FunctionEntry `json:"functions,omitempty"`
	Structs   []SymbolEntry    `json:"structs,omitempty"`
	Typedefs  []SymbolEntry    `json:"typedefs,omitempty"`
	Globals   []SymbolEntry    `json:"globals,omitempty"`
}

// Map is the assembled code map, keyed by file path.
type Map map[string]*FileEntry

// Paths returns the file paths in sorted order for deterministic rendering.
func (m Map) Paths() []string {
	paths := make([]string, 0, len(m))
	for p := range m {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Assembler joins store contents for one commit into a Map.
type Assembler struct {
	q   store.Querier
	log *log.Logger
}

// New creates an assembler. A nil logger defaults to the standard logger.
func New(q store.Querier, logger *log.Logger) *Assembler {
	if logger == nil {
		logger = log.Default()
	}
	return &Assembler{q: q, log: logger}
}

// row is one function row during assembly, before logical unification.
type row struct {
	entry  *FunctionEntry
	fileID int64
	path   string
	label  string
}

// Assemble builds the code map for commit. Only summaries are commit-scoped;
// structural facts are read as stored. The result is a pure function of the
// store contents.
func (a *Assembler) Assemble(ctx context.Context, commit string) (Map, error) {
	files, err := a.q.ListFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}
	pathByID := make(map[int64]string, len(files))
	m := make(Map, len(files))
	for _, f := range files {
		pathByID[f.ID] = f.Path
		m[f.Path] = &FileEntry{Path: f.Path}
	}

	fileSummaries, err := a.q.ListFileSummaries(ctx, commit)
	if err != nil {
		return nil, fmt.Errorf("listing file summaries: %w", err)
	}
	for _, s := range fileSummaries {
		if path, ok := pathByID[s.ItemID]; ok {
			m[path].Summary = s.Text()
		}
	}

	fnSummaries, err := a.q.ListFunctionSummaries(ctx, commit)
	if err != nil {
		return nil, fmt.Errorf("listing function summaries: %w", err)
	}
	summaryByFn := make(map[int64]string, len(fnSummaries))
	for _, s := range fnSummaries {
		summaryByFn[s.ItemID] = s.Text()
	}

	rows, err := a.functionRows(ctx, pathByID, summaryByFn)
	if err != nil {
		return nil, err
	}
	if err := a.attachReferences(ctx, rows); err != nil {
		return nil, err
	}

	entries := unify(rows)
	entries = foldPrototypes(entries)
	for _, r := range entries {
		m[r.path].Functions = append(m[r.path].Functions, r.entry)
	}

	if err := a.attachSymbols(ctx, pathByID, m); err != nil {
		return nil, err
	}
	return m, nil
}

// functionRows loads every function row in id order and pairs it with its
// file path and "path::name" label. Rows whose file is unknown are dropped.
func (a *Assembler) functionRows(ctx context.Context, pathByID map[int64]string, summaryByFn map[int64]string) (map[int64]*row, error) {
	fns, err := a.q.ListFunctions(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing functions: %w", err)
	}
	rows := make(map[int64]*row, len(fns))
	for _, fn := range fns {
		path, ok := pathByID[fn.FileID]
		if !ok {
			a.log.Warn("function row references unknown file", "function_id", fn.ID, "file_id", fn.FileID)
			continue
		}
		rows[fn.ID] = &row{
			entry: &FunctionEntry{
				Name:       fn.Name,
				ReturnType: fn.ReturnType,
				Parameters: fn.Parameters,
				StartLine:  fn.StartLine,
				EndLine:    fn.EndLine,
				Prototype:  fn.Prototype,
				Summary:    summaryByFn[fn.ID],
			},
			fileID: fn.FileID,
			path:   path,
			label:  path + "::" + fn.Name,
		}
	}
	return rows, nil
}

// attachReferences walks call edges in call_id order and appends caller and
// callee labels, first occurrence kept. Edges with a missing endpoint are
// dropped.
func (a *Assembler) attachReferences(ctx context.Context, rows map[int64]*row) error {
	edges, err := a.q.ListCallEdges(ctx)
	if err != nil {
		return fmt.Errorf("listing call edges: %w", err)
	}
	for _, e := range edges {
		caller, okCaller := rows[e.CallerID]
		callee, okCallee := rows[e.CalleeID]
		if !okCaller || !okCallee {
			continue
		}
		caller.entry.Callees = appendUnique(caller.entry.Callees, callee.label)
		callee.entry.Callers = appendUnique(callee.entry.Callers, caller.label)
	}
	return nil
}

func (a *Assembler) attachSymbols(ctx context.Context, pathByID map[int64]string, m Map) error {
	syms, err := a.q.ListSymbols(ctx)
	if err != nil {
		return fmt.Errorf("listing symbols: %w", err)
	}
	for _, sym := range syms {
		path, ok := pathByID[sym.FileID]
		if !ok {
			continue
		}
		entry := SymbolEntry{Name: sym.Name, Snippet: sym.Snippet}
		fe := m[path]
		switch sym.Type {
		case store.SymbolStruct:
			fe.Structs = append(fe.Structs, entry)
		case store.SymbolTypedef:
			fe.Typedefs = append(fe.Typedefs, entry)
		case store.SymbolGlobal:
			fe.Globals = append(fe.Globals, entry)
		}
	}
	return nil
}

type logicalKey struct {
	fileID    int64
	name      string
	startLine int
	endLine   int
}

// unify merges rows sharing (file, name, start, end): reference lists are
// merged preserving first occurrence, an existing non-empty summary wins
// over a missing one, and the first-seen non-empty return type and
// parameter list are kept. Rows are visited in function_id order so the
// merge is stable.
func unify(rows map[int64]*row) []*row {
	ids := make([]int64, 0, len(rows))
	for id := range rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	byKey := make(map[logicalKey]*row, len(rows))
	var ordered []*row
	for _, id := range ids {
		r := rows[id]
		key := logicalKey{r.fileID, r.entry.Name, r.entry.StartLine, r.entry.EndLine}
		kept, seen := byKey[key]
		if !seen {
			byKey[key] = r
			ordered = append(ordered, r)
			continue
		}
		mergeEntry(kept.entry, r.entry)
	}
	return ordered
}

// mergeEntry folds src into dst in place.
func mergeEntry(dst, src *FunctionEntry) {
	for _, label := range src.Callers {
		dst.Callers = appendUnique(dst.Callers, label)
	}
	for _, label := range src.Callees {
		dst.Callees = appendUnique(dst.Callees, label)
	}
	if dst.Summary == "" {
		dst.Summary = src.Summary
	}
	if dst.ReturnType == "" {
		dst.ReturnType = src.ReturnType
	}
	if len(dst.Parameters) == 0 {
		dst.Parameters = src.Parameters
	}
	dst.Prototype = dst.Prototype && src.Prototype
}

// foldPrototypes merges each prototype row into the first same-named real
// definition anywhere in the index, so a header-declared, source-defined
// function appears exactly once. Prototypes with no definition survive
// as-is.
func foldPrototypes(entries []*row) []*row {
	defByName := make(map[string]*row, len(entries))
	for _, r := range entries {
		if !r.entry.Prototype {
			if _, ok := defByName[r.entry.Name]; !ok {
				defByName[r.entry.Name] = r
			}
		}
	}

	out := entries[:0]
	for _, r := range entries {
		if r.entry.Prototype {
			if def, ok := defByName[r.entry.Name]; ok {
				mergeEntry(def.entry, r.entry)
				def.entry.Prototype = false
				continue
			}
		}
		out = append(out, r)
	}
	return out
}

func appendUnique(list []string, label string) []string {
	for _, existing := range list {
		if existing == label {
			return list
		}
	}
	return append(list, label)
}
