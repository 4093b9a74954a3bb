package cache

import (
	"errors"
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"

	"xmount/internal/platform"
	"xmount/reader"
)

// ErrLegacyVersion is returned when opening a version-1 cache file; such
// files used a different (512 KiB) block size and index encoding and are
// never migrated automatically.
var ErrLegacyVersion = errors.New("cache: version 1 cache files are no longer supported, please upgrade with xmount-tool")

// ErrUnknownVersion is returned for any cache file version other than 1
// or the current version.
var ErrUnknownVersion = errors.New("cache: unknown cache file version")

// ErrBadSignature is returned when a non-empty file does not start with
// the cache file magic.
var ErrBadSignature = errors.New("cache: not an xmount cache file")

// ErrBadBlockSize is returned when an existing cache file was built with
// a different block size than BlockSize.
var ErrBadBlockSize = errors.New("cache: cache file does not use the expected block size")

// Store is the persistent copy-on-write block store for one input image.
// It owns a single host file: a fixed header, a fixed-size block index
// (both memory-mapped for in-place updates), and an append-only region of
// block payloads and an optional shadow VDI header copy.
type Store struct {
	f    *os.File
	m    mmap.MMap // maps [0, indexRegionSize) — header + block index
	head fileHeader
}

// Open opens or creates the cache file at path, backed by an input image
// of size imageSize bytes. When overwrite is true any existing file is
// truncated and a fresh cache is created.
func Open(path string, imageSize uint64, overwrite bool) (*Store, error) {
	blockCount := imageSize / BlockSize
	if imageSize%BlockSize != 0 {
		blockCount++
	}

	var f *os.File
	var err error
	if overwrite {
		f, err = os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			return nil, fmt.Errorf("cache: create %s: %w", path, err)
		}
	} else {
		f, err = os.OpenFile(path, os.O_RDWR, 0o644)
		if err != nil {
			f, err = os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
			if err != nil {
				return nil, fmt.Errorf("cache: open %s: %w", path, err)
			}
		}
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	if fi.Size() == 0 {
		s, err := createFresh(f, blockCount)
		if err != nil {
			f.Close()
			return nil, err
		}
		return s, nil
	}

	s, err := loadExisting(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

func createFresh(f *os.File, blockCount uint64) (*Store, error) {
	head := fileHeader{
		FileSignature: FileSignature,
		Version:       CurrentVersion,
		BlockSize:     BlockSize,
		BlockCount:    blockCount,
		PBlockIndex:   headerSize,
	}

	size := indexRegionSize(blockCount)
	if err := f.Truncate(size); err != nil {
		return nil, fmt.Errorf("cache: truncate: %w", err)
	}
	if _, err := f.WriteAt(head.encode(), 0); err != nil {
		return nil, fmt.Errorf("cache: write header: %w", err)
	}
	// Index entries are zero-valued (Assigned==0) by virtue of Truncate
	// extending the file with zero bytes.
	if err := platform.FlushBlockCache(f); err != nil {
		return nil, err
	}

	m, err := mmap.MapRegion(f, int(size), mmap.RDWR, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("cache: mmap: %w", err)
	}

	return &Store{f: f, m: m, head: head}, nil
}

func loadExisting(f *os.File) (*Store, error) {
	prefix := make([]byte, headerSize)
	if _, err := f.ReadAt(prefix, 0); err != nil {
		return nil, fmt.Errorf("cache: read header: %w", err)
	}

	head := decodeFileHeader(prefix)
	if head.FileSignature != FileSignature {
		return nil, ErrBadSignature
	}

	switch head.Version {
	case legacyVersion:
		return nil, ErrLegacyVersion
	case CurrentVersion:
		// fall through
	default:
		return nil, ErrUnknownVersion
	}

	if head.BlockSize != BlockSize {
		return nil, ErrBadBlockSize
	}

	size := indexRegionSize(head.BlockCount)
	m, err := mmap.MapRegion(f, int(size), mmap.RDWR, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("cache: mmap: %w", err)
	}

	return &Store{f: f, m: m, head: head}, nil
}

// BlockCount returns the number of blocks the cache is sized for.
func (s *Store) BlockCount() uint64 {
	return s.head.BlockCount
}

// Assigned reports whether block b has been filled.
func (s *Store) Assigned(b uint64) bool {
	e := s.readIndexEntry(b)
	return e.Assigned == 1
}

// DataOffset returns the payload offset of block b. Valid only when
// Assigned(b) is true.
func (s *Store) DataOffset(b uint64) uint64 {
	return s.readIndexEntry(b).DataOffset
}

func (s *Store) readIndexEntry(b uint64) blockIndexEntry {
	off := indexOffset(b) // m is mapped starting at absolute file offset 0
	return decodeIndexEntry(s.m[off : off+indexEntrySize])
}

func (s *Store) writeIndexEntry(b uint64, e blockIndexEntry) {
	off := indexOffset(b)
	copy(s.m[off:off+indexEntrySize], encodeIndexEntry(e))
}

// ReadBlock reads the intersected range [blockOff, blockOff+len(p)) of
// block b from the cache payload. b must be assigned.
func (s *Store) ReadBlock(b uint64, blockOff uint64, p []byte) (int, error) {
	e := s.readIndexEntry(b)
	if e.Assigned != 1 {
		return 0, fmt.Errorf("cache: read of unassigned block %d", b)
	}
	return s.f.ReadAt(p, int64(e.DataOffset+blockOff))
}

// WriteBlock overwrites the intersected range of an already-assigned
// block in place.
func (s *Store) WriteBlock(b uint64, blockOff uint64, p []byte) error {
	e := s.readIndexEntry(b)
	if e.Assigned != 1 {
		return fmt.Errorf("cache: write to unassigned block %d", b)
	}
	if _, err := s.f.WriteAt(p, int64(e.DataOffset+blockOff)); err != nil {
		return err
	}
	return platform.FlushBlockCache(s.f)
}

// FillBlock synthesizes and persists a complete BlockSize block for a
// previously unassigned block b, following the reference crash-
// consistency ordering: append payload, flush, then mark the block
// assigned and persist the index entry, then flush again.
//
// writeOff is the byte offset within the block where the caller's data
// begins; data is the caller's bytes. img is consulted to fill the
// prefix [0, writeOff) and the suffix [writeOff+len(data), BlockSize),
// reading from the input image at blockStart+offset, zero-filling any
// portion beyond the input image's size.
func (s *Store) FillBlock(img reader.Image, b uint64, blockStart uint64, imgSize uint64, writeOff uint64, data []byte) error {
	if s.Assigned(b) {
		return fmt.Errorf("cache: FillBlock called on already-assigned block %d", b)
	}

	fi, err := s.f.Stat()
	if err != nil {
		return err
	}
	dataOffset := uint64(fi.Size())

	block := make([]byte, BlockSize)

	if writeOff > 0 {
		if err := fillFromImage(img, block[0:writeOff], blockStart, imgSize); err != nil {
			return err
		}
	}

	copy(block[writeOff:], data)

	suffixStart := writeOff + uint64(len(data))
	if suffixStart < BlockSize {
		if err := fillFromImage(img, block[suffixStart:], blockStart+suffixStart, imgSize); err != nil {
			return err
		}
	}

	if _, err := s.f.WriteAt(block, int64(dataOffset)); err != nil {
		return fmt.Errorf("cache: write block payload: %w", err)
	}
	if err := platform.FlushBlockCache(s.f); err != nil {
		return err
	}

	s.writeIndexEntry(b, blockIndexEntry{Assigned: 1, DataOffset: dataOffset})
	if err := s.m.Flush(); err != nil {
		return err
	}
	return platform.FlushBlockCache(s.f)
}

// fillFromImage fills dst with bytes from img starting at imgOff,
// clamping to imgSize and zero-filling any remainder.
func fillFromImage(img reader.Image, dst []byte, imgOff uint64, imgSize uint64) error {
	if imgOff >= imgSize {
		for i := range dst {
			dst[i] = 0
		}
		return nil
	}
	avail := imgSize - imgOff
	n := uint64(len(dst))
	if n > avail {
		n = avail
	}
	if n > 0 {
		if _, err := img.ReadAt(dst[:n], int64(imgOff)); err != nil {
			return err
		}
	}
	for i := n; i < uint64(len(dst)); i++ {
		dst[i] = 0
	}
	return nil
}

// VdiHeaderCached reports whether a shadow VDI header copy exists, and
// its offset in the cache file (meaningful only when cached is true).
func (s *Store) VdiHeaderCached() (offset uint64, cached bool) {
	return s.head.PVdiHeader, s.head.VdiHeaderCached == 1
}

// ReadVdiHeader reads the shadow VDI header region.
func (s *Store) ReadVdiHeader(p []byte, off int64) (int, error) {
	offset, cached := s.VdiHeaderCached()
	if !cached {
		return 0, fmt.Errorf("cache: no shadow VDI header cached")
	}
	return s.f.ReadAt(p, int64(offset)+off)
}

// WriteVdiHeaderShadow appends a complete copy of the VDI header region
// (already merged with any unchanged bytes by the caller) to the end of
// the cache file, records its offset, sets vdi_header_cached, and
// rewrites the global cache header.
func (s *Store) WriteVdiHeaderShadow(full []byte) error {
	fi, err := s.f.Stat()
	if err != nil {
		return err
	}
	offset := uint64(fi.Size())

	if _, err := s.f.WriteAt(full, int64(offset)); err != nil {
		return fmt.Errorf("cache: write vdi header shadow: %w", err)
	}
	if err := platform.FlushBlockCache(s.f); err != nil {
		return err
	}

	s.head.VdiHeaderCached = 1
	s.head.PVdiHeader = offset
	if err := s.rewriteHeader(); err != nil {
		return err
	}
	return platform.FlushBlockCache(s.f)
}

// WriteVdiHeaderRange writes data at offset off within the VDI header
// region. base is the full in-memory header+block map bytes, used to
// synthesize a complete shadow copy the first time this region is
// touched; on subsequent calls the existing shadow is updated in place.
func (s *Store) WriteVdiHeaderRange(base []byte, off int64, data []byte) error {
	if _, cached := s.VdiHeaderCached(); cached {
		offset, _ := s.VdiHeaderCached()
		if _, err := s.f.WriteAt(data, int64(offset)+off); err != nil {
			return err
		}
		return platform.FlushBlockCache(s.f)
	}

	merged := make([]byte, len(base))
	copy(merged, base)
	copy(merged[off:], data)
	return s.WriteVdiHeaderShadow(merged)
}

func (s *Store) rewriteHeader() error {
	copy(s.m[0:headerSize], s.head.encode())
	return s.m.Flush()
}

// Close unmaps and closes the underlying cache file.
func (s *Store) Close() error {
	if err := s.m.Unmap(); err != nil {
		return err
	}
	return s.f.Close()
}
