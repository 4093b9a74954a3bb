package image_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"xmount/cache"
	"xmount/image"
	"xmount/reader"
	"xmount/vheader"
)

func newRawImage(t *testing.T, data []byte) (*reader.Raw, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "img.dd")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}
	img, err := reader.OpenRaw(path)
	if err != nil {
		t.Fatalf("OpenRaw: %v", err)
	}
	return img, path
}

func TestViewSizeRawNoHeader(t *testing.T) {
	data := make([]byte, 3*1024*1024)
	img, _ := newRawImage(t, data)
	defer img.Close()

	v := image.New(img, uint64(len(data)), vheader.FormatRaw, nil, nil)
	if v.Size() != uint64(len(data)) {
		t.Fatalf("Size = %d, want %d", v.Size(), len(data))
	}
}

func TestViewSizeVDIIncludesHeader(t *testing.T) {
	data := make([]byte, 3*1024*1024)
	img, _ := newRawImage(t, data)
	defer img.Close()

	vdi := vheader.BuildVDI(uint64(len(data)), [16]byte{}, [16]byte{}, "")
	v := image.New(img, uint64(len(data)), vheader.FormatVDI, vdi, nil)

	want := uint64(len(data)) + vdi.TotalSize()
	if v.Size() != want {
		t.Fatalf("Size = %d, want %d", v.Size(), want)
	}
}

func TestViewReadThrough(t *testing.T) {
	data := make([]byte, 3*1024*1024)
	for i := range data {
		data[i] = 0xAA
	}
	img, _ := newRawImage(t, data)
	defer img.Close()

	v := image.New(img, uint64(len(data)), vheader.FormatRaw, nil, nil)
	buf := make([]byte, len(data))
	n, err := v.Read(0, buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != len(data) {
		t.Fatalf("n = %d, want %d", n, len(data))
	}
	for _, b := range buf {
		if b != 0xAA {
			t.Fatalf("read-through returned wrong byte %x", b)
		}
	}
}

func TestViewVDIFraming(t *testing.T) {
	data := make([]byte, 3*1024*1024)
	for i := range data {
		data[i] = 0xAA
	}
	img, _ := newRawImage(t, data)
	defer img.Close()

	vdi := vheader.BuildVDI(uint64(len(data)), [16]byte{}, [16]byte{}, "")
	v := image.New(img, uint64(len(data)), vheader.FormatVDI, vdi, nil)

	sig := make([]byte, 4)
	if _, err := v.Read(64, sig); err != nil {
		t.Fatalf("Read signature: %v", err)
	}
	want := []byte{0x7F, 0x10, 0xDA, 0xBE}
	if diff := cmp.Diff(want, sig); diff != "" {
		t.Fatalf("signature bytes mismatch (-want +got):\n%s", diff)
	}

	one := make([]byte, 1)
	if _, err := v.Read(int64(vdi.TotalSize())+1, one); err != nil {
		t.Fatalf("Read input byte: %v", err)
	}
	if one[0] != 0xAA {
		t.Fatalf("byte after header = %x, want 0xAA", one[0])
	}

	if v.Size() != vdi.TotalSize()+uint64(len(data)) {
		t.Fatalf("Size mismatch")
	}
}

func openCache(t *testing.T, imgSize uint64) *cache.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.bin")
	s, err := cache.Open(path, imgSize, false)
	if err != nil {
		t.Fatalf("cache.Open: %v", err)
	}
	return s
}

func TestViewCOWRoundTrip(t *testing.T) {
	data := make([]byte, 3*1024*1024)
	for i := range data {
		data[i] = 0xAA
	}
	img, _ := newRawImage(t, data)
	defer img.Close()

	c := openCache(t, uint64(len(data)))
	defer c.Close()

	v := image.New(img, uint64(len(data)), vheader.FormatRaw, nil, c)

	n, err := v.Write(0, []byte("BB"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != 2 {
		t.Fatalf("Write n = %d, want 2", n)
	}

	got := make([]byte, 2)
	if _, err := v.Read(0, got); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "BB" {
		t.Fatalf("Read after write = %q, want BB", got)
	}

	if !c.Assigned(0) {
		t.Fatalf("block 0 not assigned after write")
	}
	if c.Assigned(1) || c.Assigned(2) {
		t.Fatalf("only touched block should be assigned")
	}
}

func TestViewWriteCrossesBlockBoundary(t *testing.T) {
	data := make([]byte, 2*1024*1024)
	img, _ := newRawImage(t, data)
	defer img.Close()

	c := openCache(t, uint64(len(data)))
	defer c.Close()

	v := image.New(img, uint64(len(data)), vheader.FormatRaw, nil, c)

	payload := make([]byte, 16)
	for i := range payload {
		payload[i] = 0xCC
	}
	off := int64(cache.BlockSize - 8)
	if _, err := v.Write(off, payload); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if !c.Assigned(0) || !c.Assigned(1) {
		t.Fatalf("write crossing boundary must assign both blocks")
	}

	got := make([]byte, 16)
	if _, err := v.Read(off, got); err != nil {
		t.Fatalf("Read: %v", err)
	}
	for _, b := range got {
		if b != 0xCC {
			t.Fatalf("boundary-crossing round trip = % X, want all CC", got)
		}
	}
}

func TestViewWritePastEndTruncated(t *testing.T) {
	data := make([]byte, 8)
	img, _ := newRawImage(t, data)
	defer img.Close()

	c := openCache(t, uint64(len(data)))
	defer c.Close()

	v := image.New(img, uint64(len(data)), vheader.FormatRaw, nil, c)

	n, err := v.Write(6, []byte("ABCDEF"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != 2 {
		t.Fatalf("Write past end n = %d, want 2 (clamped)", n)
	}
}

func TestViewReadAtSizeReturnsZero(t *testing.T) {
	data := make([]byte, 8)
	img, _ := newRawImage(t, data)
	defer img.Close()

	v := image.New(img, uint64(len(data)), vheader.FormatRaw, nil, nil)
	buf := make([]byte, 4)
	n, err := v.Read(int64(len(data)), buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != 0 {
		t.Fatalf("Read at size n = %d, want 0", n)
	}
}

func TestViewVDIHeaderShadowRouting(t *testing.T) {
	data := make([]byte, 1024*1024)
	img, _ := newRawImage(t, data)
	defer img.Close()

	vdi := vheader.BuildVDI(uint64(len(data)), [16]byte{1}, [16]byte{2}, "c")
	c := openCache(t, uint64(len(data)))
	defer c.Close()

	v := image.New(img, uint64(len(data)), vheader.FormatVDI, vdi, c)

	// Offset 64 is the 4-byte signature field; overwrite it with zeros.
	if _, err := v.Write(64, []byte{0x00, 0x00, 0x00, 0x00}); err != nil {
		t.Fatalf("Write header region: %v", err)
	}

	if _, cached := c.VdiHeaderCached(); !cached {
		t.Fatalf("writing the header region should create a shadow copy")
	}

	sig := make([]byte, 4)
	if _, err := v.Read(64, sig); err != nil {
		t.Fatalf("Read: %v", err)
	}
	for _, b := range sig {
		if b != 0 {
			t.Fatalf("overwritten signature bytes = % X, want zero", sig)
		}
	}

	// Untouched bytes of the header must still read as the original
	// in-memory header content (the comment banner at offset 0).
	comment := make([]byte, 4)
	if _, err := v.Read(0, comment); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(comment) != "<<< " {
		t.Fatalf("untouched comment bytes = %q, want %q", comment, "<<< ")
	}
}
