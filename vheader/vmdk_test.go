package vheader_test

import (
	"strings"
	"testing"

	"xmount/vheader"
)

func TestBuildVMDKDescriptor(t *testing.T) {
	d := vheader.BuildVMDKDescriptor(3*1024*1024, "img.dd", vheader.BusIDE)
	text := string(d.Bytes())

	if !strings.Contains(text, `RW 6144 FLAT "img.dd" 0`) {
		t.Fatalf("descriptor missing extent line: %s", text)
	}
	if !strings.Contains(text, `ddb.adapterType = "ide"`) {
		t.Fatalf("descriptor missing adapter type: %s", text)
	}
	if d.Len() != len(d.Bytes()) {
		t.Fatalf("Len() = %d, want %d", d.Len(), len(d.Bytes()))
	}
}

func TestVMDKDescriptorWriteAtGrows(t *testing.T) {
	d := vheader.BuildVMDKDescriptor(512, "img.dd", vheader.BusSCSI)
	before := d.Len()

	extra := []byte("appended-trailer")
	n := d.WriteAt(extra, int64(before))
	if n != len(extra) {
		t.Fatalf("WriteAt n = %d, want %d", n, len(extra))
	}
	if d.Len() != before+len(extra) {
		t.Fatalf("Len = %d, want %d", d.Len(), before+len(extra))
	}

	buf := make([]byte, len(extra))
	got := d.ReadAt(buf, int64(before))
	if got != len(extra) || string(buf) != string(extra) {
		t.Fatalf("ReadAt = %q, want %q", buf[:got], extra)
	}
}

func TestVMDKDescriptorReadAtPastEnd(t *testing.T) {
	d := vheader.BuildVMDKDescriptor(512, "img.dd", vheader.BusIDE)
	buf := make([]byte, 8)
	n := d.ReadAt(buf, int64(d.Len())+10)
	if n != 0 {
		t.Fatalf("ReadAt past end = %d, want 0", n)
	}
}
