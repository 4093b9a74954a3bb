// Command xmount mounts a forensic disk image as a user-space
// filesystem, optionally reframed as a VirtualBox VDI or VMware VMDK
// virtual disk, with a persistent copy-on-write cache so a hypervisor
// can boot it read-write without touching the sealed original.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	flag "github.com/spf13/pflag"

	"xmount"
	"xmount/reader"
	"xmount/vheader"
)

const buildVersion = "0.1.0"

const version = "xmount (go reimplementation) v" + buildVersion

func usage() {
	fmt.Fprintf(os.Stderr, `%s

Usage: xmount [options] <input image> [input image...] <mount point>

Options:
  -d               debug output (this process and the FUSE runtime)
  -s               single-threaded FUSE serving
  -h               this help
  -o <opt,...>     options passed through to the FUSE runtime
                   (passing -o disables the default allow_other)
  -o no_allow_other
                   suppress the default allow_other without passing
                   anything else through
  --in dd|ewf|aff  input image variant (default dd)
  --out dd|vdi|vmdk|vmdks
                   virtual image format to serve (default dd)
  --cache <path>   enable writable mode with a persistent cache
  --rw <path>      alias for --cache
  --owcache <path> like --cache but truncates any existing cache file
  --info           print build info and exit
  --version        print build info and exit
`, version)
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("xmount", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = usage

	debug := fs.BoolP("debug", "d", false, "debug output")
	single := fs.BoolP("single", "s", false, "single-threaded serving")
	help := fs.BoolP("help", "h", false, "usage")
	fuseOpts := fs.StringArrayP("opt", "o", nil, "options passed through to the FUSE runtime")
	inVariant := fs.String("in", "dd", "input image variant: dd|ewf|aff")
	outFormat := fs.String("out", "dd", "virtual image format: dd|vdi|vmdk|vmdks")
	cachePath := fs.String("cache", "", "enable writable mode with a persistent cache")
	rwPath := fs.String("rw", "", "alias for --cache")
	owCachePath := fs.String("owcache", "", "like --cache but truncates any existing cache file")
	info := fs.Bool("info", false, "print build info and exit")
	showVersion := fs.Bool("version", false, "print build info and exit")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	if *help {
		usage()
		return 1
	}
	if *info || *showVersion {
		fmt.Println(version)
		return 0
	}

	positional := fs.Args()
	if len(positional) < 1 {
		fmt.Fprintln(os.Stderr, "xmount: no input file given")
		usage()
		return 1
	}
	if len(positional) < 2 {
		fmt.Fprintln(os.Stderr, "xmount: no mount point given")
		usage()
		return 1
	}
	inputs := positional[:len(positional)-1]
	mountPoint := positional[len(positional)-1]

	variant, ok := reader.VariantFromName(*inVariant)
	if !ok {
		fmt.Fprintf(os.Stderr, "xmount: unknown --in variant %q\n", *inVariant)
		return 1
	}
	format, ok := vheader.FormatFromName(*outFormat)
	if !ok {
		fmt.Fprintf(os.Stderr, "xmount: unknown --out format %q\n", *outFormat)
		return 1
	}

	cache := *cachePath
	if cache == "" {
		cache = *rwPath
	}
	owcache := *owCachePath != ""
	if owcache {
		cache = *owCachePath
	}

	cfg := xmount.Config{
		InputPath:  inputs[0],
		MountPoint: mountPoint,
		InVariant:  variant,
		OutFormat:  format,
		Writable:   cache != "",
		CachePath:  cache,
		OWCache:    owcache,
		Debug:      *debug,
		Single:     *single,
		FuseOpts:   splitOpts(*fuseOpts),
		AllowOther: allowOtherDefault(),
		Version:    buildVersion,
	}

	return xmount.Run(cfg)
}

// splitOpts flattens repeated and comma-separated -o values into one
// option list, mirroring how FUSE tools conventionally accept -o.
func splitOpts(raw []string) []string {
	var opts []string
	for _, r := range raw {
		for _, o := range strings.Split(r, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				opts = append(opts, o)
			}
		}
	}
	return opts
}

// allowOtherDefault reports whether allow_other should be requested by
// default: it always is for root, and for a non-root user only if
// /etc/fuse.conf enables user_allow_other.
func allowOtherDefault() bool {
	if os.Geteuid() == 0 {
		return true
	}

	f, err := os.Open("/etc/fuse.conf")
	if err != nil {
		fmt.Fprintln(os.Stderr, "xmount: warning: /etc/fuse.conf unreadable, suppressing allow_other")
		return false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "user_allow_other" {
			return true
		}
	}
	fmt.Fprintln(os.Stderr, "xmount: warning: user_allow_other not set in /etc/fuse.conf, suppressing allow_other")
	return false
}
