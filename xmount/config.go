// Package xmount wires the Image Reader, Virtual Header Builder, Cache
// Store, Virtual Image View, and Virtual Filesystem Surface into one
// mount session.
package xmount

import (
	"errors"
	"path/filepath"
	"strings"

	"xmount/reader"
	"xmount/vheader"
)

// Config is the fully-resolved configuration for one mount session,
// assembled by the CLI layer (cmd/xmount) from parsed flags.
type Config struct {
	InputPath  string
	MountPoint string

	InVariant  reader.Variant
	OutFormat  vheader.Format
	Writable   bool
	CachePath  string
	OWCache    bool // truncate any existing cache file
	Debug      bool
	Single     bool // -s, single-threaded serving
	FuseOpts   []string
	AllowOther bool

	// Version is the program version string, carried into the VDI
	// header's szComment banner (spec §6).
	Version string
}

var (
	ErrNoInput      = errors.New("xmount: no input file given")
	ErrNoMountPoint = errors.New("xmount: no mount point given")
	ErrCacheNeeded  = errors.New("xmount: --rw/--cache or --owcache required for writable mode")
)

func (c Config) validate() error {
	if c.InputPath == "" {
		return ErrNoInput
	}
	if c.MountPoint == "" {
		return ErrNoMountPoint
	}
	if c.Writable && c.CachePath == "" {
		return ErrCacheNeeded
	}
	return nil
}

// baseName derives the virtual file base name from the input path: the
// final path component with its extension stripped.
func baseName(inputPath string) string {
	name := filepath.Base(inputPath)
	if ext := filepath.Ext(name); ext != "" {
		name = strings.TrimSuffix(name, ext)
	}
	return name
}
