package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"cindex/internal/store"
	"cindex/internal/track"
	"cindex/pkg/types"
)

// Extractor turns one file into structural facts. The production
// implementation is extract.FileExtractor; tests substitute stubs.
type Extractor interface {
	ExtractFile(ctx context.Context, absPath string) (*types.FileFacts, []byte, error)
}

// State is the pipeline's coarse phase, exposed for observability.
type State int32

const (
	StateIdle State = iota
	StateDiscovering
	StateDispatching
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateDiscovering:
		return "discovering"
	case StateDispatching:
		return "dispatching"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "idle"
	}
}

// Options configures one indexing run.
type Options struct {
	Workers          int           // worker pool size (default: runtime.NumCPU())
	Commit           string        // commit scope for processing status (default: "HEAD")
	Suffixes         []string      // file suffix filter (default: .c, .h)
	WatchdogInterval time.Duration // progress report period (default: 2s)
	DrainTimeout     time.Duration // bound on waiting for the writer (default: 30s)
}

func (o *Options) withDefaults() Options {
	opts := Options{}
	if o != nil {
		opts = *o
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Commit == "" {
		opts.Commit = "HEAD"
	}
	if len(opts.Suffixes) == 0 {
		opts.Suffixes = []string{".c", ".h"}
	}
	if opts.WatchdogInterval <= 0 {
		opts.WatchdogInterval = 2 * time.Second
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = 30 * time.Second
	}
	return opts
}

// Stats summarizes an indexing run.
type Stats struct {
	Discovered    int
	Indexed       int
	Skipped       int
	Failed        int
	Functions     int
	Symbols       int
	Edges         int
	Cancelled     bool
	Duration      time.Duration
	ErrorMessages []string
}

// Pipeline wires discovery, extraction workers, and the single writer.
type Pipeline struct {
	store   store.Store
	tracker *track.Tracker
	ext     Extractor
	log     *log.Logger

	state atomic.Int32
}

// New creates a pipeline. A nil logger defaults to the standard logger.
func New(st store.Store, tracker *track.Tracker, ext Extractor, logger *log.Logger) *Pipeline {
	if logger == nil {
		logger = log.Default()
	}
	return &Pipeline{store: st, tracker: tracker, ext: ext, log: logger}
}

// State returns the current phase.
func (p *Pipeline) State() State {
	return State(p.state.Load())
}

func (p *Pipeline) setState(s State) {
	p.state.Store(int32(s))
}

type sourceFile struct {
	abs string
	rel string
}

// Run indexes every matching file under root. It blocks until discovery,
// dispatch and drain complete (or until ctx cancellation drains what was
// already enqueued). Errors from individual files are collected in Stats,
// not propagated; only setup failures return an error.
func (p *Pipeline) Run(ctx context.Context, root string, options *Options) (*Stats, error) {
	opts := options.withDefaults()
	start := time.Now()

	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}

	p.setState(StateDiscovering)
	defer p.setState(StateStopped)

	files, err := p.discover(rootAbs, opts.Suffixes)
	if err != nil {
		return nil, fmt.Errorf("discovering files: %w", err)
	}
	p.log.Info("discovered source files", "count", len(files), "root", rootAbs)

	stats := &Stats{Discovered: len(files)}
	if len(files) == 0 {
		stats.Duration = time.Since(start)
		return stats, nil
	}

	var (
		skipped   atomic.Int32
		failed    atomic.Int32
		cancelled atomic.Bool
		errMu     sync.Mutex
		inFlight  atomic.Value // current file path, for the watchdog
		watchDone = make(chan struct{})
	)
	inFlight.Store("")
	recordFailure := func(rel string, err error) {
		failed.Add(1)
		errMu.Lock()
		stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", rel, err))
		errMu.Unlock()
	}

	// The writer is the only context performing structural mutations. It
	// outlives cancellation so enqueued files are always stored whole.
	w := newWriter(p.store, p.tracker, p.log, opts.Commit)
	writerDone := w.start(context.WithoutCancel(ctx))

	// Watchdog: observability only.
	go func() {
		ticker := time.NewTicker(opts.WatchdogInterval)
		defer ticker.Stop()
		for {
			select {
			case <-watchDone:
				return
			case <-ticker.C:
				done := w.stored.Load() + skipped.Load() + failed.Load() + w.failed.Load()
				current, _ := inFlight.Load().(string)
				if current == "" {
					current = "(idle)"
				}
				p.log.Info("indexing progress",
					"state", p.State().String(),
					"processed", done, "total", len(files), "current", current)
			}
		}
	}()

	p.setState(StateDispatching)
	g := &errgroup.Group{}
	g.SetLimit(opts.Workers)

	for _, f := range files {
		// Cancellation is honored here, at the dispatch boundary, and
		// nowhere deeper: started files run to completion.
		if ctx.Err() != nil {
			cancelled.Store(true)
			break
		}

		g.Go(func() error {
			if ctx.Err() != nil {
				cancelled.Store(true)
				return nil
			}
			inFlight.Store(f.rel)
			defer inFlight.Store("")

			// Read-only early-skip: the file row itself is created by the
			// writer, never here. A file unseen by any prior run has no id
			// yet and is simply unprocessed.
			fileID, err := p.store.GetFileID(ctx, f.rel)
			switch {
			case errors.Is(err, store.ErrNotFound):
			case err != nil:
				p.log.Error("failed to look up file", "path", f.rel, "err", err)
				recordFailure(f.rel, err)
				return nil
			default:
				if p.tracker.IsProcessed(ctx, store.ItemFile, fileID, opts.Commit) {
					skipped.Add(1)
					return nil
				}
			}

			facts, source, err := p.ext.ExtractFile(ctx, f.abs)
			if err != nil {
				p.log.Error("extraction failed", "path", f.rel, "err", err)
				recordFailure(f.rel, err)
				return nil
			}

			w.enqueue(&writeItem{relPath: f.rel, facts: facts, source: source})
			return nil
		})
	}

	_ = g.Wait()

	p.setState(StateDraining)
	w.finish()
	select {
	case <-writerDone:
	case <-time.After(opts.DrainTimeout):
		p.log.Error("writer did not drain in time", "timeout", opts.DrainTimeout)
	}
	close(watchDone)

	if ctx.Err() != nil {
		cancelled.Store(true)
	}
	stats.Cancelled = cancelled.Load()
	stats.Indexed = int(w.stored.Load())
	stats.Skipped = int(skipped.Load())
	stats.Failed = int(failed.Load() + w.failed.Load())
	stats.Functions = int(w.functions.Load())
	stats.Symbols = int(w.symbols.Load())
	stats.Edges = int(w.edges.Load())
	errMu.Lock()
	stats.ErrorMessages = append(stats.ErrorMessages, w.errorMessages()...)
	errMu.Unlock()
	stats.Duration = time.Since(start)

	p.log.Info("indexing run finished",
		"indexed", stats.Indexed, "skipped", stats.Skipped,
		"failed", stats.Failed, "cancelled", stats.Cancelled,
		"duration", stats.Duration)
	return stats, nil
}

// discover walks the tree single-threaded and returns the complete list of
// matching files before any dispatch begins. A missing root is a
// configuration-time error; unreadable directories below it are skipped
// with a log line.
func (p *Pipeline) discover(rootAbs string, suffixes []string) ([]sourceFile, error) {
	if _, err := os.Stat(rootAbs); err != nil {
		return nil, err
	}

	var files []sourceFile
	err := filepath.WalkDir(rootAbs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			p.log.Warn("skipping unreadable path", "path", path, "err", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != rootAbs {
				return filepath.SkipDir
			}
			return nil
		}
		for _, suffix := range suffixes {
			if strings.HasSuffix(d.Name(), suffix) {
				rel, relErr := filepath.Rel(rootAbs, path)
				if relErr != nil {
					return relErr
				}
				files = append(files, sourceFile{abs: path, rel: filepath.ToSlash(rel)})
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
