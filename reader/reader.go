// Package reader provides a uniform random-access view over the
// heterogeneous forensic image containers xmount accepts as input.
package reader

import "errors"

// ErrFormatUnavailable is returned by Open when the requested container
// format requires an external forensic library that is not wired into
// this build.
var ErrFormatUnavailable = errors.New("reader: format not available in this build")

// Variant identifies the input container format.
type Variant int

const (
	VariantRaw Variant = iota
	VariantEWF
	VariantAFF
)

func (v Variant) String() string {
	switch v {
	case VariantRaw:
		return "dd"
	case VariantEWF:
		return "ewf"
	case VariantAFF:
		return "aff"
	default:
		panic("reader: unknown variant")
	}
}

// VariantFromName maps a --in flag value to a Variant. The empty name maps
// to VariantRaw; an unrecognized name reports ok==false.
func VariantFromName(name string) (v Variant, ok bool) {
	switch name {
	case "dd", "":
		return VariantRaw, true
	case "ewf":
		return VariantEWF, true
	case "aff":
		return VariantAFF, true
	default:
		return VariantRaw, false
	}
}

// Image is the uniform contract every input container satisfies. Size is
// queried lazily and memoized by the implementation; ReadAt clamps at
// end-of-image and never mutates cursor state visible across callers.
type Image interface {
	// Size returns the total byte length of the image.
	Size() (int64, error)

	// ReadAt reads len(p) bytes starting at off. It returns a short read
	// (never an error) when off+len(p) exceeds Size.
	ReadAt(p []byte, off int64) (int, error)

	// Close releases any resources held by the reader.
	Close() error
}

// Open opens path as the given input variant.
func Open(variant Variant, path string) (Image, error) {
	switch variant {
	case VariantRaw:
		return OpenRaw(path)
	case VariantEWF:
		return OpenEWF(path)
	case VariantAFF:
		return OpenAFF(path)
	default:
		panic("reader: unknown variant")
	}
}
