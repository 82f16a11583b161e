// Package analyzer ranks candidate page codecs by estimated output size:
// it runs the transform kernel over a sample set once per codec, outer
// fan-out across codecs and inner fan-out across pages, and reports the
// results sorted smallest first with the untouched source size prepended.
package analyzer

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/recbz-go/recbz/pkg/codec"
	"github.com/recbz-go/recbz/pkg/page"
	"github.com/recbz-go/recbz/pkg/rcerr"
	"github.com/recbz-go/recbz/pkg/transform"
	"github.com/recbz-go/recbz/pkg/workerpool"
)

// FormatSize is one ranked result: a candidate codec's estimated total
// output size over the sample set, or the untouched source entry.
type FormatSize struct {
	Bytes int64
	Desc  string
	Name  codec.Name
	// Source reports whether this entry is the untouched sample, rather
	// than a candidate codec.
	Source bool
}

// Options configures one analyzer run.
type Options struct {
	Blacklist   []codec.Name
	Quality     int
	Parallelism int
}

// Run samples pages through every candidate codec (the registry minus
// Blacklist) and returns results sorted by bytes ascending, with the
// source entry prepended.
func Run(ctx context.Context, samples []*page.Page, cacheDir string, opts Options) ([]FormatSize, error) {
	sourceBytes, err := sumSizes(samples)
	if err != nil {
		return nil, err
	}
	sourceDesc := "Source"
	if len(samples) > 0 {
		if f, err := samples[0].Format(); err == nil {
			sourceDesc = f.Description + " (Source)"
		}
	}

	candidates := codec.WithoutBlacklist(opts.Blacklist)
	if len(candidates) == 0 {
		return nil, errors.New("analyzer: candidate codec set is empty after blacklist")
	}

	wpOpts := workerpool.Options{Parallelism: opts.Parallelism, Multithread: false}

	results, err := workerpool.Map(ctx, candidates, workerpool.Options{Parallelism: len(candidates), Multithread: true}, func(ctx context.Context, f *codec.Format) (FormatSize, error) {
		if err := ctx.Err(); err != nil {
			return FormatSize{}, rcerr.WorkerPoolInterrupt()
		}

		subdir := filepath.Join(cacheDir, "analyze-"+string(f.Name))
		if err := os.MkdirAll(subdir, 0o755); err != nil {
			return FormatSize{}, errors.WithStack(err)
		}

		topts := transform.Options{TargetFormat: f, Quality: opts.Quality}
		converted, err := workerpool.Map(ctx, samples, wpOpts, func(ctx context.Context, src *page.Page) (*page.Page, error) {
			if err := ctx.Err(); err != nil {
				return nil, rcerr.WorkerPoolInterrupt()
			}
			// transform.Run mutates the Page it's given (cached format,
			// decoded image); since every candidate codec runs against the same
			// sample set concurrently, each pass needs its own Page so two
			// goroutines never share one's decode cache.
			return transform.Run(page.New(src.Path), topts, subdir)
		})
		if err != nil {
			return FormatSize{}, err
		}

		total, err := sumSizes(converted)
		if err != nil {
			return FormatSize{}, err
		}
		return FormatSize{Bytes: total, Desc: f.Description, Name: f.Name}, nil
	})
	if err != nil {
		return nil, err
	}

	sortByBytes(results)

	out := make([]FormatSize, 0, len(results)+1)
	out = append(out, FormatSize{Bytes: sourceBytes, Desc: sourceDesc, Source: true})
	out = append(out, results...)
	return out, nil
}

func sumSizes(pages []*page.Page) (int64, error) {
	var total int64
	for _, p := range pages {
		info, err := os.Stat(p.Path)
		if err != nil {
			return 0, errors.WithStack(err)
		}
		total += info.Size()
	}
	return total, nil
}

func sortByBytes(results []FormatSize) {
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && results[j].Bytes < results[j-1].Bytes; j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}
}
