// Package operations implements the five top-level batch entry points
// (repack, compare, assist, auto, join) that wire an Archive's lifecycle
// together, matching spec.md's per-archive state machine and batch
// failure containment: archive-level errors abort that archive only,
// while an interrupt aborts the whole batch.
package operations

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/iancoleman/strcase"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"

	"github.com/recbz-go/recbz/pkg/analyzer"
	"github.com/recbz-go/recbz/pkg/archive"
	"github.com/recbz-go/recbz/pkg/humanize"
	"github.com/recbz-go/recbz/pkg/rcerr"
)

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return info.Size(), nil
}

func totalInputSize(a *archive.Archive) (int64, error) {
	return fileSize(a.SourcePath)
}

// Result is the outcome of running one top-level operation against one
// input path.
type Result struct {
	Path       string
	OutputPath string
	SourceSize int64
	NewSize    int64
	Err        error
	Aborted    bool
}

// ExitCode maps a batch of Results onto the CLI's documented exit codes:
// 0 clean, 1 a fatal/interrupt error stopped the batch early, 2 one or
// more archives failed or were aborted but the batch otherwise ran to
// completion.
func ExitCode(results []Result, fatal error) int {
	if fatal != nil {
		return 1
	}
	for _, r := range results {
		if r.Aborted || r.Err != nil {
			return 2
		}
	}
	return 0
}

// Repack constructs, extracts, converts and writes each path in turn.
// Archive-level failures (including AbortedRepack from leftover bad
// files) are recorded per-path and the batch continues; a
// WorkerPoolInterrupt aborts the remaining batch immediately.
func Repack(ctx context.Context, log logger.Logger, paths []string, opts archive.Options, outputFormat string) ([]Result, error) {
	var results []Result
	for _, path := range paths {
		if opts.NoPrev && archive.IsPreviousRepack(path) {
			log.Info("skipping previously repacked input", logger.Data{"path": path})
			continue
		}

		r, fatal := repackOne(ctx, log, path, opts, outputFormat)
		results = append(results, r)
		if fatal != nil {
			return results, fatal
		}
	}
	return results, nil
}

func repackOne(ctx context.Context, log logger.Logger, path string, opts archive.Options, outputFormat string) (Result, error) {
	a, err := archive.New(path, opts)
	if err != nil {
		return Result{Path: path, Err: err}, nil
	}
	defer a.Cleanup()

	sourceSize, err := totalInputSize(a)
	if err != nil {
		return Result{Path: path, Err: err}, nil
	}

	if _, err := a.FetchPages(ctx); err != nil {
		if isInterrupt(err) {
			return Result{Path: path, Err: err, Aborted: true}, err
		}
		return Result{Path: path, Err: err}, nil
	}

	if _, err := a.ConvertPages(ctx); err != nil {
		if isInterrupt(err) {
			return Result{Path: path, Err: err, Aborted: true}, err
		}
		return Result{Path: path, Err: err}, nil
	}

	if len(a.BadFiles()) > 0 && !opts.ForceWrite {
		log.Warn("archive aborted: pages failed conversion", logger.Data{"path": path, "bad_files": len(a.BadFiles())})
		return Result{Path: path, Err: rcerr.AbortedRepack(), Aborted: true}, nil
	}

	dest := archive.ResolveOutputPath(path, outputFormat, opts.Overwrite, deviceExt(opts))
	written, err := a.WriteArchive(ctx, outputFormat, dest)
	if err != nil {
		return Result{Path: path, Err: err}, nil
	}

	newSize, err := fileSize(written)
	if err != nil {
		return Result{Path: path, Err: err}, nil
	}

	log.Info("repack complete", logger.Data{
		"path":    path,
		"output":  written,
		"source":  humanize.Bytes(float64(sourceSize)),
		"new":     humanize.Bytes(float64(newSize)),
		"change":  humanize.PercentChange(float64(sourceSize), float64(newSize)),
	})
	return Result{Path: path, OutputPath: written, SourceSize: sourceSize, NewSize: newSize}, nil
}

func deviceExt(opts archive.Options) string {
	if opts.Profile != nil {
		return opts.Profile.EPUBExtension
	}
	return ""
}

func isInterrupt(err error) bool {
	var rc *rcerr.Error
	return errors.As(err, &rc) && rc.Exit == rcerr.ExitAborted && rc.Code == "worker_pool_interrupt"
}

// Compare runs the Analyzer against one archive and returns the ranked
// table without writing anything.
func Compare(ctx context.Context, log logger.Logger, path string, opts archive.Options) ([]analyzer.FormatSize, error) {
	a, err := archive.New(path, opts)
	if err != nil {
		return nil, err
	}
	defer a.Cleanup()

	sizes, err := a.ComputeFormatSizes(ctx)
	if err != nil {
		return nil, rcerr.AbortedCompare()
	}
	return sizes, nil
}

// FormatTable renders an analyzer result as the compare/assist printout,
// one row per candidate. Each codec's short name is rendered in
// SCREAMING_SNAKE_CASE as a stable column alongside its human
// description, so scripts scraping the table get a grep-friendly token.
func FormatTable(sizes []analyzer.FormatSize) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-4s %-14s %-22s %s\n", "#", "CODEC", "DESCRIPTION", "SIZE")
	for i, s := range sizes {
		name := "SOURCE"
		if !s.Source {
			name = strcase.ToScreamingSnake(string(s.Name))
		}
		fmt.Fprintf(&b, "%-4d %-14s %-22s %s\n", i, name, s.Desc, humanize.Bytes(float64(s.Bytes)))
	}
	return b.String()
}

// Assist runs the Analyzer, presents the ranked table on out, reads a
// numeric selection from in (retrying on invalid input), and repacks
// with the chosen codec. Returns without writing if in is exhausted
// without a valid selection (treated as an interrupt/abort).
func Assist(ctx context.Context, log logger.Logger, path string, opts archive.Options, outputFormat string, in io.Reader, out io.Writer) (Result, error) {
	a, err := archive.New(path, opts)
	if err != nil {
		return Result{Path: path, Err: err}, nil
	}
	defer a.Cleanup()

	sizes, err := a.ComputeFormatSizes(ctx)
	if err != nil {
		return Result{Path: path, Err: rcerr.AbortedCompare()}, nil
	}

	fmt.Fprint(out, FormatTable(sizes))
	fmt.Fprint(out, "choose a codec by number: ")

	scanner := bufio.NewScanner(in)
	var choice int
	for {
		if !scanner.Scan() {
			return Result{Path: path, Err: rcerr.AbortedRepack(), Aborted: true}, rcerr.AbortedRepack()
		}
		n, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
		if err != nil || n < 0 || n >= len(sizes) {
			fmt.Fprint(out, "invalid selection, try again: ")
			continue
		}
		choice = n
		break
	}

	picked := sizes[choice]
	chosenOpts := opts
	chosenOpts.TargetFormat = picked.Name

	r, fatal := repackOne(ctx, log, path, chosenOpts, outputFormat)
	return r, fatal
}

// Auto runs the Analyzer and repacks with the smallest non-source
// candidate (rank 1).
func Auto(ctx context.Context, log logger.Logger, path string, opts archive.Options, outputFormat string) (Result, error) {
	a, err := archive.New(path, opts)
	if err != nil {
		return Result{Path: path, Err: err}, nil
	}

	sizes, err := a.ComputeFormatSizes(ctx)
	a.Cleanup()
	if err != nil {
		return Result{Path: path, Err: rcerr.AbortedCompare()}, nil
	}
	if len(sizes) < 2 {
		return Result{Path: path, Err: errors.New("auto: no candidate codec available")}, nil
	}

	chosenOpts := opts
	chosenOpts.TargetFormat = sizes[1].Name
	return repackOne(ctx, log, path, chosenOpts, outputFormat)
}

// Join constructs a primary Archive from paths[0], folds every remaining
// path in as a new chapter, then converts and writes the combined
// result.
func Join(ctx context.Context, log logger.Logger, paths []string, opts archive.Options, outputFormat string) (Result, error) {
	if len(paths) == 0 {
		return Result{}, errors.New("join: no input paths")
	}

	primary, err := archive.New(paths[0], opts)
	if err != nil {
		return Result{Path: paths[0], Err: err}, nil
	}
	defer primary.Cleanup()

	sourceSize, err := totalInputSize(primary)
	if err != nil {
		return Result{Path: paths[0], Err: err}, nil
	}

	for _, p := range paths[1:] {
		secondary, err := archive.New(p, opts)
		if err != nil {
			return Result{Path: p, Err: err}, nil
		}
		// secondary's cache holds the files of the pages added to primary,
		// so it stays in place until the joined archive has been written.
		defer secondary.Cleanup()
		_, err = primary.AddChapter(ctx, secondary, -1, -1)
		if err != nil {
			return Result{Path: p, Err: err}, nil
		}
		size, err := totalInputSize(secondary)
		if err == nil {
			sourceSize += size
		}
	}

	if _, err := primary.ConvertPages(ctx); err != nil {
		if isInterrupt(err) {
			return Result{Path: paths[0], Err: err, Aborted: true}, err
		}
		return Result{Path: paths[0], Err: err}, nil
	}

	if len(primary.BadFiles()) > 0 && !opts.ForceWrite {
		return Result{Path: paths[0], Err: rcerr.AbortedRepack(), Aborted: true}, nil
	}

	dest := archive.ResolveOutputPath(paths[0], outputFormat, opts.Overwrite, deviceExt(opts))
	written, err := primary.WriteArchive(ctx, outputFormat, dest)
	if err != nil {
		return Result{Path: paths[0], Err: err}, nil
	}

	newSize, err := fileSize(written)
	if err != nil {
		return Result{Path: paths[0], Err: err}, nil
	}

	log.Info("join complete", logger.Data{"output": written, "inputs": len(paths)})
	return Result{Path: paths[0], OutputPath: written, SourceSize: sourceSize, NewSize: newSize}, nil
}
