// Package image composes the Image Reader, the Virtual Header Builder's
// VDI header, and the Cache Store into one logical byte stream with the
// size/read/write semantics the filesystem surface serves over
// /<name>.<ext>.
package image

import (
	"sync"

	"xmount/cache"
	"xmount/reader"
	"xmount/vheader"
)

// View is the read/write path over one input image rendered in one
// virtual format. Writable mode requires a non-nil Cache.
type View struct {
	mu sync.Mutex

	img    reader.Image
	imgSz  uint64
	format vheader.Format
	vdi    *vheader.VdiHeader // non-nil only when format.HasHeader()
	c      *cache.Store       // non-nil only when writable
}

// New builds a View over img rendered as format. vdi must be non-nil when
// format.HasHeader() is true. c may be nil for a read-only session.
func New(img reader.Image, imgSize uint64, format vheader.Format, vdi *vheader.VdiHeader, c *cache.Store) *View {
	return &View{img: img, imgSz: imgSize, format: format, vdi: vdi, c: c}
}

// Writable reports whether the view has a backing cache.
func (v *View) Writable() bool {
	return v.c != nil
}

// Size returns the logical size of the virtual image.
func (v *View) Size() uint64 {
	if v.format.HasHeader() {
		return v.imgSz + v.vdi.TotalSize()
	}
	return v.imgSz
}

// Read implements the spec's read algorithm: the VDI header prefix (if
// any) is satisfied from the cache shadow or the in-memory header, and
// the remainder is served block-by-block from the cache or the input
// image. Reads past the logical end return a short read of length 0.
func (v *View) Read(offset int64, p []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	size := v.Size()
	if offset < 0 || uint64(offset) >= size {
		return 0, nil
	}
	if remaining := size - uint64(offset); uint64(len(p)) > remaining {
		p = p[:remaining]
	}
	if len(p) == 0 {
		return 0, nil
	}

	total := 0
	headerSize := uint64(0)
	if v.format.HasHeader() {
		headerSize = v.vdi.TotalSize()
	}

	if uint64(offset) < headerSize {
		n := headerSize - uint64(offset)
		if n > uint64(len(p)) {
			n = uint64(len(p))
		}
		if err := v.readHeaderRegion(uint64(offset), p[:n]); err != nil {
			return total, err
		}
		total += int(n)
		p = p[n:]
		offset += int64(n)
	}

	for len(p) > 0 {
		inputOff := uint64(offset) - headerSize
		b := inputOff / cache.BlockSize
		blockOff := inputOff % cache.BlockSize
		n := cache.BlockSize - blockOff
		if n > uint64(len(p)) {
			n = uint64(len(p))
		}

		var err error
		if v.c != nil && v.c.Assigned(b) {
			_, err = v.c.ReadBlock(b, blockOff, p[:n])
		} else {
			_, err = v.img.ReadAt(p[:n], int64(inputOff))
		}
		if err != nil {
			return total, err
		}

		total += int(n)
		p = p[n:]
		offset += int64(n)
	}

	return total, nil
}

// readHeaderRegion satisfies [off, off+len(p)) of the VDI header region,
// preferring the cache shadow when present.
func (v *View) readHeaderRegion(off uint64, p []byte) error {
	if v.c != nil {
		if _, cached := v.c.VdiHeaderCached(); cached {
			_, err := v.c.ReadVdiHeader(p, int64(off))
			return err
		}
	}
	full := v.vdi.Encode()
	copy(p, full[off:])
	return nil
}

// Write implements the spec's write algorithm. Callers must ensure
// Writable() before calling; past-end writes are silently truncated and
// never extend the logical image.
func (v *View) Write(offset int64, p []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if len(p) == 0 {
		return 0, nil
	}

	size := v.Size()
	if offset < 0 || uint64(offset) >= size {
		return 0, nil
	}
	if remaining := size - uint64(offset); uint64(len(p)) > remaining {
		p = p[:remaining]
	}

	total := 0
	headerSize := uint64(0)
	if v.format.HasHeader() {
		headerSize = v.vdi.TotalSize()
	}

	if uint64(offset) < headerSize {
		n := headerSize - uint64(offset)
		if n > uint64(len(p)) {
			n = uint64(len(p))
		}
		if err := v.c.WriteVdiHeaderRange(v.vdi.Encode(), int64(offset), p[:n]); err != nil {
			return total, err
		}
		total += int(n)
		p = p[n:]
		offset += int64(n)
	}

	for len(p) > 0 {
		inputOff := uint64(offset) - headerSize
		b := inputOff / cache.BlockSize
		blockStart := b * cache.BlockSize
		blockOff := inputOff - blockStart
		n := cache.BlockSize - blockOff
		if n > uint64(len(p)) {
			n = uint64(len(p))
		}

		var err error
		if v.c.Assigned(b) {
			err = v.c.WriteBlock(b, blockOff, p[:n])
		} else {
			err = v.c.FillBlock(v.img, b, blockStart, v.imgSz, blockOff, p[:n])
		}
		if err != nil {
			return total, err
		}

		total += int(n)
		p = p[n:]
		offset += int64(n)
	}

	return total, nil
}
