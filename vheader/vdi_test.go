package vheader_test

import (
	"encoding/binary"
	"testing"

	"github.com/google/go-cmp/cmp"

	"xmount/vheader"
)

func TestHeaderSize(t *testing.T) {
	if vheader.HeaderSize != 512 {
		t.Fatalf("HeaderSize = %d, want 512", vheader.HeaderSize)
	}
}

func TestBlockEntriesFor(t *testing.T) {
	tests := map[uint64]uint32{
		0:                 0,
		1:                 1,
		vheader.VdiBlockSize:     1,
		vheader.VdiBlockSize + 1: 2,
		3 * 1024 * 1024:   3,
	}
	for size, want := range tests {
		if got := vheader.BlockEntriesFor(size); got != want {
			t.Fatalf("BlockEntriesFor(%d) = %d, want %d", size, got, want)
		}
	}
}

func TestBuildVDIEncodePrefix(t *testing.T) {
	const size = 3 * 1024 * 1024
	identity := [16]byte{1, 2, 3}
	modify := [16]byte{4, 5, 6}

	h := vheader.BuildVDI(size, identity, modify, "comment")
	buf := h.Encode()

	if len(buf) != int(h.TotalSize()) {
		t.Fatalf("Encode length = %d, want %d", len(buf), h.TotalSize())
	}

	comment := string(buf[0:len(vheader.VdiFileComment)])
	if comment != vheader.VdiFileComment {
		t.Fatalf("comment = %q, want %q", comment, vheader.VdiFileComment)
	}

	sig := binary.LittleEndian.Uint32(buf[64:68])
	if sig != 0xBEDA107F {
		t.Fatalf("signature = %#x, want 0xBEDA107F", sig)
	}
	sigBytes := buf[64:68]
	want := []byte{0x7F, 0x10, 0xDA, 0xBE}
	if diff := cmp.Diff(want, sigBytes); diff != "" {
		t.Fatalf("signature bytes mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildVDIBlockMapIdentity(t *testing.T) {
	h := vheader.BuildVDI(3*1024*1024, [16]byte{}, [16]byte{}, "")
	buf := h.Encode()

	for i := 0; i < len(h.BlockMap); i++ {
		off := vheader.HeaderSize + i*4
		v := binary.LittleEndian.Uint32(buf[off : off+4])
		if v != uint32(i) {
			t.Fatalf("block map entry %d = %d, want %d", i, v, i)
		}
	}
}

func TestBuildVDITotalSize(t *testing.T) {
	const size = 3 * 1024 * 1024
	h := vheader.BuildVDI(size, [16]byte{}, [16]byte{}, "")
	want := uint64(vheader.HeaderSize) + uint64(h.BlockEntries)*4
	if h.TotalSize() != want {
		t.Fatalf("TotalSize = %d, want %d", h.TotalSize(), want)
	}
}
