package summarize

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"cindex/internal/store"
	"cindex/internal/track"
)

// TextService produces natural-language summaries. Generation is external;
// this package only orchestrates persistence around it.
type TextService interface {
	SummarizeFile(ctx context.Context, path, content string) (string, error)
	SummarizeFunction(ctx context.Context, name, snippet string) (string, error)
}

// Runner walks unsummarized items for a commit, calls the text service with
// retry, and persists the results. Files are gated by an existing summary
// row; functions are gated by the tracker and marked processed only after a
// successful upsert, so interrupted runs resume where they stopped.
type Runner struct {
	store   store.Store
	tracker *track.Tracker
	svc     TextService
	retry   RetryConfig
	log     *log.Logger
}

// NewRunner creates a runner. A nil logger defaults to the standard logger.
func NewRunner(st store.Store, tracker *track.Tracker, svc TextService, retry RetryConfig, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{store: st, tracker: tracker, svc: svc, retry: retry, log: logger}
}

// Result reports what one summarization pass did.
type Result struct {
	Files     int
	Functions int
	Skipped   int
	Failed    int
}

// Run summarizes every unsummarized file and function for commit.
// Cancellation is observed between items only; an in-flight service call
// and its upsert complete normally. Per-item failures are logged and
// counted, not propagated.
func (r *Runner) Run(ctx context.Context, commit string) (*Result, error) {
	res := &Result{}
	if err := r.runFiles(ctx, commit, res); err != nil {
		return res, err
	}
	if err := r.runFunctions(ctx, commit, res); err != nil {
		return res, err
	}
	r.log.Info("summarization pass finished",
		"commit", commit, "files", res.Files, "functions", res.Functions,
		"skipped", res.Skipped, "failed", res.Failed)
	return res, nil
}

func (r *Runner) runFiles(ctx context.Context, commit string, res *Result) error {
	// Files are marked processed at index time, so the gate here is the
	// presence of a summary row, not the tracker.
	files, err := r.store.ListFiles(ctx)
	if err != nil {
		return fmt.Errorf("listing files to summarize: %w", err)
	}

	for _, f := range files {
		if ctx.Err() != nil {
			return nil
		}
		has, err := r.store.HasFileSummary(ctx, f.ID, commit)
		if err != nil {
			r.log.Warn("summary check failed, skipping file", "path", f.Path, "err", err)
			res.Skipped++
			continue
		}
		if has {
			res.Skipped++
			continue
		}

		// Content is re-read from stored function snippets rather than
		// disk so the summary matches what was indexed.
		content, err := r.fileContent(ctx, f.ID)
		if err != nil {
			r.log.Error("failed to gather file content", "path", f.Path, "err", err)
			res.Failed++
			continue
		}

		summary, err := retryWithBackoff(ctx, r.retry, func() (string, error) {
			return r.svc.SummarizeFile(ctx, f.Path, content)
		})
		if err != nil {
			r.log.Error("file summarization failed", "path", f.Path, "err", err)
			res.Failed++
			continue
		}
		if err := r.store.UpsertFileSummary(ctx, f.ID, commit, summary, ""); err != nil {
			r.log.Error("failed to store file summary", "path", f.Path, "err", err)
			res.Failed++
			continue
		}
		res.Files++
	}
	return nil
}

func (r *Runner) runFunctions(ctx context.Context, commit string, res *Result) error {
	fns, err := r.tracker.UnprocessedFunctions(ctx, commit)
	if err != nil {
		return fmt.Errorf("listing functions to summarize: %w", err)
	}

	for _, fn := range fns {
		if ctx.Err() != nil {
			return nil
		}
		summary, err := retryWithBackoff(ctx, r.retry, func() (string, error) {
			return r.svc.SummarizeFunction(ctx, fn.Name, fn.Snippet)
		})
		if err != nil {
			r.log.Error("function summarization failed", "name", fn.Name, "err", err)
			res.Failed++
			continue
		}
		if err := r.store.UpsertFunctionSummary(ctx, fn.ID, commit, summary, ""); err != nil {
			r.log.Error("failed to store function summary", "name", fn.Name, "err", err)
			res.Failed++
			continue
		}
		if err := r.tracker.MarkProcessed(ctx, store.ItemFunction, fn.ID, commit); err != nil {
			res.Failed++
			continue
		}
		res.Functions++
	}
	return nil
}

// fileContent concatenates the stored snippets for a file, functions first
// then symbols, in insertion order.
func (r *Runner) fileContent(ctx context.Context, fileID int64) (string, error) {
	fns, err := r.store.ListFunctions(ctx)
	if err != nil {
		return "", err
	}
	var content string
	for _, fn := range fns {
		if fn.FileID == fileID && !fn.Prototype {
			content += fn.Snippet + "\n"
		}
	}
	syms, err := r.store.ListSymbols(ctx)
	if err != nil {
		return "", err
	}
	for _, sym := range syms {
		if sym.FileID == fileID {
			content += sym.Snippet + "\n"
		}
	}
	return content, nil
}

// Refine stores a refined summary alongside the initial one. Readers prefer
// the refined text when present.
func (r *Runner) Refine(ctx context.Context, commit string, fileID int64, refined string) error {
	summaries, err := r.store.ListFileSummaries(ctx, commit)
	if err != nil {
		return fmt.Errorf("loading existing summary: %w", err)
	}
	initial := ""
	for _, s := range summaries {
		if s.ItemID == fileID {
			initial = s.Summary
			break
		}
	}
	return r.store.UpsertFileSummary(ctx, fileID, commit, initial, refined)
}
