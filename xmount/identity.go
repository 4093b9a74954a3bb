package xmount

import (
	"crypto/md5"
	"io"

	"xmount/reader"
)

// identityChunk bounds how much of the input is hashed to derive the
// VDI uuidCreate field: the whole image for small files, the first 10
// MiB otherwise, matching the reference tool's "stable but cheap"
// identity hash.
const identityChunk = 10 * 1024 * 1024

// computeIdentityHash hashes the first identityChunk bytes of img (or
// the whole image if shorter) and returns the raw 16-byte MD5 digest,
// used as-is for the VDI header's uuidCreate field.
func computeIdentityHash(img reader.Image, size int64) ([16]byte, error) {
	n := int64(identityChunk)
	if size < n {
		n = size
	}

	buf := make([]byte, n)
	read := int64(0)
	for read < n {
		r, err := img.ReadAt(buf[read:], read)
		if r == 0 && err == nil {
			break
		}
		read += int64(r)
		if err != nil && err != io.EOF {
			return [16]byte{}, err
		}
	}

	return md5.Sum(buf[:read]), nil
}
