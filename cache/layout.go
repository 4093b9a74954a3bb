// Package cache implements the persistent copy-on-write block store that
// backs writable xmount sessions: a fixed header, a fixed-size block
// index, and an append-only region of block payloads and (optionally) a
// shadow copy of the VDI header.
package cache

import "encoding/binary"

const (
	// FileSignature is the magic value identifying a cache file ("xmount\xFF\xFF").
	FileSignature uint64 = 0xFFFF746E756F6D78

	// CurrentVersion is the only cache file version this package writes
	// or accepts for reading (besides the explicitly rejected version 1).
	CurrentVersion uint32 = 2

	legacyVersion uint32 = 1

	// BlockSize is the fixed size of one cache block.
	BlockSize uint64 = 1024 * 1024

	// headerSize is the fixed on-disk size of the cache file header.
	headerSize = 512

	// indexEntrySize is sizeof(assigned:u32, data_offset:u64), packed.
	indexEntrySize = 12
)

// fileHeader mirrors the 512-byte on-disk cache file header.
type fileHeader struct {
	FileSignature   uint64
	Version         uint32
	BlockSize       uint64
	BlockCount      uint64
	PBlockIndex     uint64
	VdiHeaderCached uint32
	PVdiHeader      uint64
	VmdkFileCached  uint32
	VmdkFileSize    uint64
	PVmdkFile       uint64
}

func (h *fileHeader) encode() []byte {
	buf := make([]byte, headerSize)
	binary.LittleEndian.PutUint64(buf[0:8], h.FileSignature)
	binary.LittleEndian.PutUint32(buf[8:12], h.Version)
	binary.LittleEndian.PutUint64(buf[12:20], h.BlockSize)
	binary.LittleEndian.PutUint64(buf[20:28], h.BlockCount)
	binary.LittleEndian.PutUint64(buf[28:36], h.PBlockIndex)
	binary.LittleEndian.PutUint32(buf[36:40], h.VdiHeaderCached)
	binary.LittleEndian.PutUint64(buf[40:48], h.PVdiHeader)
	binary.LittleEndian.PutUint32(buf[48:52], h.VmdkFileCached)
	binary.LittleEndian.PutUint64(buf[52:60], h.VmdkFileSize)
	binary.LittleEndian.PutUint64(buf[60:68], h.PVmdkFile)
	// buf[68:512] stays zero padding.
	return buf
}

func decodeFileHeader(buf []byte) fileHeader {
	var h fileHeader
	h.FileSignature = binary.LittleEndian.Uint64(buf[0:8])
	h.Version = binary.LittleEndian.Uint32(buf[8:12])
	h.BlockSize = binary.LittleEndian.Uint64(buf[12:20])
	h.BlockCount = binary.LittleEndian.Uint64(buf[20:28])
	h.PBlockIndex = binary.LittleEndian.Uint64(buf[28:36])
	h.VdiHeaderCached = binary.LittleEndian.Uint32(buf[36:40])
	h.PVdiHeader = binary.LittleEndian.Uint64(buf[40:48])
	h.VmdkFileCached = binary.LittleEndian.Uint32(buf[48:52])
	h.VmdkFileSize = binary.LittleEndian.Uint64(buf[52:60])
	h.PVmdkFile = binary.LittleEndian.Uint64(buf[60:68])
	return h
}

// blockIndexEntry mirrors one 12-byte on-disk block index entry.
type blockIndexEntry struct {
	Assigned  uint32
	DataOffset uint64
}

func encodeIndexEntry(e blockIndexEntry) []byte {
	buf := make([]byte, indexEntrySize)
	binary.LittleEndian.PutUint32(buf[0:4], e.Assigned)
	binary.LittleEndian.PutUint64(buf[4:12], e.DataOffset)
	return buf
}

func decodeIndexEntry(buf []byte) blockIndexEntry {
	return blockIndexEntry{
		Assigned:   binary.LittleEndian.Uint32(buf[0:4]),
		DataOffset: binary.LittleEndian.Uint64(buf[4:12]),
	}
}

// indexOffset returns the fixed file offset of block b's index entry.
func indexOffset(b uint64) int64 {
	return int64(headerSize) + int64(b)*indexEntrySize
}

// indexRegionSize returns the total size in bytes of the header plus the
// block index array for blockCount blocks.
func indexRegionSize(blockCount uint64) int64 {
	return int64(headerSize) + int64(blockCount)*indexEntrySize
}
