// Command recbz batch-converts comic/book archives, transcoding and
// resizing pages and rebuilding the archive in the chosen container
// format.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/robinjoseph08/golib/logger"

	"github.com/recbz-go/recbz/pkg/archive"
	"github.com/recbz-go/recbz/pkg/cachedir"
	"github.com/recbz-go/recbz/pkg/codec"
	"github.com/recbz-go/recbz/pkg/config"
	"github.com/recbz-go/recbz/pkg/deviceprofile"
	"github.com/recbz-go/recbz/pkg/operations"
	"github.com/recbz-go/recbz/pkg/version"
	"github.com/recbz-go/recbz/pkg/workerpool"
)

type cliOpts struct {
	// Modes, mutually exclusive, default repack.
	Compare bool `long:"compare" description:"print a ranked codec size table, do not write anything"`
	Assist  bool `short:"a" long:"assist" description:"print the codec size table, prompt for a choice, then repack"`
	Auto    bool `short:"A" long:"auto" description:"repack with the smallest non-source codec automatically"`
	Join    bool `short:"J" long:"join" description:"combine all input archives into one, one chapter per input"`

	// Output.
	CBZ      bool `long:"cbz" description:"write a .cbz archive (default)"`
	Zip      bool `long:"zip" description:"write a .zip archive"`
	EPUB     bool `long:"epub" description:"write an .epub archive"`
	Compress bool `long:"compress" description:"deflate-compress the output zip/cbz instead of storing"`
	RTL      bool `long:"rtl" description:"mark EPUB output right-to-left"`

	// Image.
	Convert   string `long:"convert" description:"target codec" choice:"jpeg" choice:"png" choice:"webp" choice:"webpll"`
	Quality   int    `long:"quality" default:"80" description:"lossy encode quality, 1-100"`
	Size      string `long:"size" description:"target page size WxH"`
	NoUp      bool   `long:"noup" description:"never upscale a page"`
	NoDown    bool   `long:"nodown" description:"never downscale a page"`
	Grayscale bool   `long:"bw" description:"convert pages to grayscale"`
	Color     bool   `long:"color" description:"force color, overriding a device profile's grayscale default"`
	NoWebP    bool   `long:"nowebp" description:"exclude WebP from compare/assist/auto candidates"`

	// Runtime.
	Process    int  `long:"process" description:"number of worker goroutines (default: number of CPUs)"`
	Sequential bool `long:"sequential" description:"disable parallelism"`
	Overwrite  bool `short:"O" long:"overwrite" description:"overwrite the source file in place"`
	Force      bool `short:"F" long:"force" description:"write the archive even if some pages failed conversion"`
	NoPrev     bool `long:"noprev" description:"skip inputs already carrying recbz's repack marker"`
	Dry        bool `short:"d" long:"dry" description:"accepted but has no effect; output is still written"`

	// Info.
	Profile  string `short:"p" long:"profile" description:"target device profile nickname"`
	Profiles bool   `long:"profiles" description:"list known device profiles and exit"`
	Version  bool   `long:"version" description:"print the version and exit"`

	Args struct {
		Paths []string `positional-arg-name:"archive"`
	} `positional-args:"yes"`
}

func main() {
	log := logger.New()

	var opts cliOpts
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		os.Exit(1)
	}

	if opts.Version {
		fmt.Println(version.Version)
		return
	}
	if opts.Profiles {
		printProfiles()
		return
	}
	if len(opts.Args.Paths) == 0 {
		fmt.Fprintln(os.Stderr, "recbz: at least one archive path is required")
		os.Exit(1)
	}

	cfg, err := config.New()
	if err != nil {
		log.Err(err).Fatal("config error")
	}

	archOpts, outputFormat, err := buildOptions(cfg, opts)
	if err != nil {
		log.Err(err).Fatal("invalid flags")
	}

	if err := cachedir.Sweep(); err != nil {
		log.Err(err).Warn("cache sweep failed")
	}

	ctx := workerpool.InterruptContext(context.Background())

	results, fatal, err := dispatch(ctx, log, opts, archOpts, outputFormat)
	if cleanupErr := cachedir.Cleanup(); cleanupErr != nil {
		log.Err(cleanupErr).Warn("cache cleanup failed")
	}
	if err != nil {
		log.Err(err).Fatal("operation error")
	}
	for _, r := range results {
		if r.Err != nil {
			log.Warn("archive failed", logger.Data{"path": r.Path, "error": r.Err.Error()})
		}
	}
	os.Exit(operations.ExitCode(results, fatal))
}

func dispatch(ctx context.Context, log logger.Logger, opts cliOpts, archOpts archive.Options, outputFormat string) ([]operations.Result, error, error) {
	switch {
	case opts.Compare:
		sizes, err := operations.Compare(ctx, log, opts.Args.Paths[0], archOpts)
		if err != nil {
			return nil, nil, err
		}
		fmt.Print(operations.FormatTable(sizes))
		return nil, nil, nil
	case opts.Assist:
		r, fatal := operations.Assist(ctx, log, opts.Args.Paths[0], archOpts, outputFormat, os.Stdin, os.Stdout)
		return []operations.Result{r}, fatal, nil
	case opts.Auto:
		r, fatal := operations.Auto(ctx, log, opts.Args.Paths[0], archOpts, outputFormat)
		return []operations.Result{r}, fatal, nil
	case opts.Join:
		r, fatal := operations.Join(ctx, log, opts.Args.Paths, archOpts, outputFormat)
		return []operations.Result{r}, fatal, nil
	default:
		results, fatal := operations.Repack(ctx, log, opts.Args.Paths, archOpts, outputFormat)
		return results, fatal, nil
	}
}

func printProfiles() {
	for _, p := range deviceprofile.All() {
		fmt.Printf("%-4s %dx%d  %s\n", p.Nickname, p.Width, p.Height, p.Desc)
	}
}

// buildOptions snapshots cfg and the parsed CLI flags into one immutable
// archive.Options plus the resolved output container format.
func buildOptions(cfg *config.Config, opts cliOpts) (archive.Options, string, error) {
	archOpts := archive.DefaultOptions()
	archOpts.Quality = cfg.Quality
	archOpts.SampleCount = cfg.SampleCount
	archOpts.CompressZip = cfg.CompressZip
	archOpts.IgnorePageError = cfg.IgnorePageError
	archOpts.RTL = cfg.RTL || opts.RTL
	archOpts.FormatBlacklist = cfg.FormatBlacklist
	archOpts.Parallelism = cfg.Parallelism

	if opts.Quality != 80 {
		archOpts.Quality = opts.Quality
	}
	if opts.Compress {
		archOpts.CompressZip = true
	}
	if opts.Force {
		archOpts.ForceWrite = true
	}
	if opts.Overwrite {
		archOpts.Overwrite = true
	}
	if opts.NoPrev {
		archOpts.NoPrev = true
	}
	archOpts.NoUpscale = opts.NoUp
	archOpts.NoDownscale = opts.NoDown
	if opts.Grayscale {
		archOpts.Grayscale = true
	}

	archOpts.Parallel = !opts.Sequential
	if opts.Process > 0 {
		archOpts.Parallelism = opts.Process
	}

	if opts.NoWebP {
		if archOpts.FormatBlacklist != "" {
			archOpts.FormatBlacklist += " "
		}
		archOpts.FormatBlacklist += string(codec.WebP) + " " + string(codec.WebPLossless)
	}

	if opts.Convert != "" {
		archOpts.TargetFormat = codec.Name(opts.Convert)
	}

	if opts.Size != "" {
		w, h, err := parseSize(opts.Size)
		if err != nil {
			return archive.Options{}, "", err
		}
		archOpts.Width, archOpts.Height = w, h
	}

	if opts.Profile != "" {
		p, err := deviceprofile.Lookup(opts.Profile)
		if err != nil {
			return archive.Options{}, "", err
		}
		archOpts = archOpts.ApplyProfile(p)
		if opts.Color {
			archOpts.Grayscale = false
		}
	}

	outputFormat := cfg.OutputFormat
	switch {
	case opts.EPUB:
		outputFormat = "epub"
	case opts.Zip:
		outputFormat = "zip"
	case opts.CBZ:
		outputFormat = "cbz"
	}

	return archOpts, outputFormat, nil
}

func parseSize(s string) (int, int, error) {
	var w, h int
	if _, err := fmt.Sscanf(s, "%dx%d", &w, &h); err != nil {
		return 0, 0, fmt.Errorf("invalid size %q, expected WxH", s)
	}
	return w, h, nil
}
