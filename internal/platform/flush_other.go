//go:build !linux
// +build !linux

package platform

import "os"

// FlushBlockCache flushes f to stable storage. BLKFLSBUF has no equivalent
// outside Linux, so this is a plain fsync elsewhere, per the spec's
// explicit allowance to omit the ioctl on other platforms.
func FlushBlockCache(f *os.File) error {
	return f.Sync()
}
