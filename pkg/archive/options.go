package archive

import (
	"strings"

	"github.com/recbz-go/recbz/pkg/codec"
	"github.com/recbz-go/recbz/pkg/deviceprofile"
	"github.com/recbz-go/recbz/pkg/transform"
)

// Options is the conversion option set an Archive is constructed with,
// snapshotted once from configuration/CLI flags/device profile so workers
// only ever see an immutable value, never a mutable global.
type Options struct {
	Parallel        bool
	Parallelism     int
	IgnorePageError bool
	ForceWrite      bool
	Overwrite       bool
	CompressZip     bool
	RTL             bool
	NoPrev          bool

	FormatBlacklist string // space-separated codec short names, as configured

	SampleCount int

	TargetFormat codec.Name // "" means keep source codec
	Quality      int
	Width        int
	Height       int
	Grayscale    bool
	NoUpscale    bool
	NoDownscale  bool
	Filter       transform.Filter

	Profile *deviceprofile.Profile
}

// DefaultOptions matches the reference tool's defaults: sequential-safe
// quality, STORED compression, no resize, no blacklist.
func DefaultOptions() Options {
	return Options{
		Parallel:    true,
		Quality:     80,
		SampleCount: 12,
		CompressZip: false,
	}
}

// ApplyProfile overlays a device profile's target size and grayscale flag
// onto o, the way the reference tool pre-applies profile fields to the
// options struct before constructing an Archive.
func (o Options) ApplyProfile(p deviceprofile.Profile) Options {
	o.Profile = &p
	o.Width = p.Width
	o.Height = p.Height
	o.Grayscale = p.Grayscale
	return o
}

// Blacklist parses FormatBlacklist into codec names, mirroring the
// reference implementation's space-separated blacklist string.
func (o Options) Blacklist() []codec.Name {
	fields := strings.Fields(strings.ToLower(o.FormatBlacklist))
	names := make([]codec.Name, 0, len(fields))
	for _, f := range fields {
		names = append(names, codec.Name(f))
	}
	return names
}

// transformOptions builds the Transform Kernel options for one conversion
// pass, resolving TargetFormat to a *codec.Format (nil means "keep
// source").
func (o Options) transformOptions() (transform.Options, error) {
	topts := transform.Options{
		Quality:      o.Quality,
		Grayscale:    o.Grayscale,
		TargetWidth:  o.Width,
		TargetHeight: o.Height,
		NoUpscale:    o.NoUpscale,
		NoDownscale:  o.NoDownscale,
		Filter:       o.Filter,
	}
	if o.TargetFormat != "" {
		f, err := codec.Lookup(o.TargetFormat)
		if err != nil {
			return transform.Options{}, err
		}
		topts.TargetFormat = f
	}
	return topts, nil
}
