// Package vheader builds the in-memory bytes of the virtual disk headers
// xmount serves on top of the raw input image: the VDI header and block
// map, the VMDK descriptor, and the plain-text info file.
package vheader

import (
	"encoding/binary"
)

const (
	// VdiFileComment is the fixed banner stored in the VDI preheader.
	VdiFileComment = "<<< This is a virtual VDI image >>>"

	vdiSignature   = 0xBEDA107F
	vdiVersion     = 0x00010001
	vdiCbHeader    = 0x00000180
	vdiTypeFixed   = 0x00000002
	vdiSectorSize  = 512
	vdiBlockSize   = 1024 * 1024
	vdiHeaderSize  = 512 // on-disk size of the fixed VdiHeader region
)

// VdiHeader holds the session-specific values of the fixed 512-byte VDI
// header, built once per session; Encode writes them together with the
// constant fields in the reference on-disk layout. BlockMap follows the
// header immediately on disk as BlockEntries little-endian uint32 values.
type VdiHeader struct {
	Comment      string // banner placed in szComment, includes program version
	DiskSize     uint64 // InputSize
	BlockEntries uint32 // ceil(DiskSize / VdiBlockSize)
	IdentityHash [16]byte
	ModifyUUID   [16]byte

	BlockMap []uint32 // identity mapping: entry i == i
}

// VdiBlockSize is the fixed 1 MiB VDI block size.
const VdiBlockSize = vdiBlockSize

// HeaderSize is sizeof(VdiHeader) as it appears on disk (before the block
// map).
const HeaderSize = vdiHeaderSize

// BlockEntriesFor returns ceil(size / VdiBlockSize).
func BlockEntriesFor(size uint64) uint32 {
	entries := size / vdiBlockSize
	if size%vdiBlockSize != 0 {
		entries++
	}
	return uint32(entries)
}

// BuildVDI constructs the VDI header and identity block map for an input
// image of the given size, tagging the image with identityHash (normally
// the session's MD5-derived identity hash) as uuidCreate and a freshly
// generated random UUID as uuidModify.
func BuildVDI(size uint64, identityHash [16]byte, modifyUUID [16]byte, comment string) *VdiHeader {
	entries := BlockEntriesFor(size)
	blockMap := make([]uint32, entries)
	for i := range blockMap {
		blockMap[i] = uint32(i)
	}
	return &VdiHeader{
		Comment:      comment,
		DiskSize:     size,
		BlockEntries: entries,
		IdentityHash: identityHash,
		ModifyUUID:   modifyUUID,
		BlockMap:     blockMap,
	}
}

// TotalSize is sizeof(VdiHeader) + 4*BlockEntries, i.e. offData.
func (h *VdiHeader) TotalSize() uint64 {
	return uint64(vdiHeaderSize) + uint64(h.BlockEntries)*4
}

// Encode serializes the header and block map into the exact little-endian
// on-disk byte sequence. Every multi-byte field is written explicitly with
// encoding/binary rather than by blitting the struct's memory layout, so
// the output is correct regardless of host endianness.
func (h *VdiHeader) Encode() []byte {
	buf := make([]byte, h.TotalSize())

	copy(buf[0:64], []byte(VdiFileComment))
	binary.LittleEndian.PutUint32(buf[64:68], vdiSignature)
	binary.LittleEndian.PutUint32(buf[68:72], vdiVersion)
	binary.LittleEndian.PutUint32(buf[72:76], vdiCbHeader)
	binary.LittleEndian.PutUint32(buf[76:80], vdiTypeFixed)
	binary.LittleEndian.PutUint32(buf[80:84], 0) // fFlags

	comment := []byte(h.Comment)
	if len(comment) > 256 {
		comment = comment[:256]
	}
	copy(buf[84:84+256], comment)

	off := 84 + 256
	binary.LittleEndian.PutUint32(buf[off:off+4], uint32(vdiHeaderSize)) // offBlocks
	off += 4
	binary.LittleEndian.PutUint32(buf[off:off+4], uint32(h.TotalSize())) // offData
	off += 4
	binary.LittleEndian.PutUint32(buf[off:off+4], 0) // cCylinders
	off += 4
	binary.LittleEndian.PutUint32(buf[off:off+4], 0) // cHeads
	off += 4
	binary.LittleEndian.PutUint32(buf[off:off+4], 0) // cSectors
	off += 4
	binary.LittleEndian.PutUint32(buf[off:off+4], vdiSectorSize)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:off+4], 0) // u32Dummy
	off += 4
	binary.LittleEndian.PutUint64(buf[off:off+8], h.DiskSize)
	off += 8
	binary.LittleEndian.PutUint32(buf[off:off+4], vdiBlockSize)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:off+4], 0) // cbBlockExtra
	off += 4
	binary.LittleEndian.PutUint32(buf[off:off+4], h.BlockEntries)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:off+4], h.BlockEntries) // cBlocksAllocated
	off += 4

	writeUUID := func(u [16]byte) {
		copy(buf[off:off+16], u[:])
		off += 16
	}
	writeUUID(h.IdentityHash) // uuidCreate
	writeUUID(h.ModifyUUID)   // uuidModify
	writeUUID([16]byte{})     // uuidLinkage
	writeUUID([16]byte{})     // uuidParentModify

	// Remaining bytes up to vdiHeaderSize are zero padding, already
	// zero-valued by make().

	for i, v := range h.BlockMap {
		o := vdiHeaderSize + i*4
		binary.LittleEndian.PutUint32(buf[o:o+4], v)
	}

	return buf
}
