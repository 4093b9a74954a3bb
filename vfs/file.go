package vfs

import (
	"context"
	"syscall"

	"github.com/jacobsa/fuse/fuseops"
)

// OpenFile validates the inode exists; write permission on a read-only
// image is enforced per call in WriteFile rather than at open time.
func (fs *FileSystem) OpenFile(ctx context.Context, op *fuseops.OpenFileOp) error {
	fs.mu.Lock()
	_, ok := fs.nodes[op.Inode]
	fs.mu.Unlock()
	if !ok {
		return syscall.ENOENT
	}
	return nil
}

func (fs *FileSystem) ReadFile(ctx context.Context, op *fuseops.ReadFileOp) error {
	fs.mu.Lock()
	n, ok := fs.nodes[op.Inode]
	fs.mu.Unlock()
	if !ok {
		return syscall.ENOENT
	}

	switch n.kind {
	case kindImage:
		fs.muImageRW.Lock()
		defer fs.muImageRW.Unlock()
		read, err := fs.view.Read(op.Offset, op.Dst)
		op.BytesRead = read
		return err

	case kindInfo:
		fs.muInfo.Lock()
		defer fs.muInfo.Unlock()
		op.BytesRead = readFromBuffer(fs.infoBytes, op.Offset, op.Dst)
		return nil

	case kindVmdkDescriptor:
		fs.muImageRW.Lock()
		defer fs.muImageRW.Unlock()
		op.BytesRead = fs.vmdkDesc.ReadAt(op.Dst, op.Offset)
		return nil

	case kindLockFile:
		fs.muImageRW.Lock()
		defer fs.muImageRW.Unlock()
		op.BytesRead = readFromBuffer(fs.lock.buf, op.Offset, op.Dst)
		return nil

	default:
		return syscall.EISDIR
	}
}

// readFromBuffer copies buf[off:] into dst, returning the number of bytes
// copied; reads past the end of buf return 0.
func readFromBuffer(buf []byte, off int64, dst []byte) int {
	if off < 0 || off >= int64(len(buf)) {
		return 0
	}
	return copy(dst, buf[off:])
}

func (fs *FileSystem) WriteFile(ctx context.Context, op *fuseops.WriteFileOp) error {
	fs.mu.Lock()
	n, ok := fs.nodes[op.Inode]
	fs.mu.Unlock()
	if !ok {
		return syscall.ENOENT
	}

	switch n.kind {
	case kindImage:
		if !fs.view.Writable() {
			return syscall.EACCES
		}
		fs.muImageRW.Lock()
		defer fs.muImageRW.Unlock()
		_, err := fs.view.Write(op.Offset, op.Data)
		return err

	case kindVmdkDescriptor:
		fs.muImageRW.Lock()
		defer fs.muImageRW.Unlock()
		fs.vmdkDesc.WriteAt(op.Data, op.Offset)
		return nil

	case kindLockFile:
		fs.muImageRW.Lock()
		defer fs.muImageRW.Unlock()
		fs.lock.buf = growBuffer(fs.lock.buf, op.Offset, op.Data)
		return nil

	case kindInfo:
		return syscall.EACCES

	default:
		return syscall.EISDIR
	}
}

// growBuffer writes data into buf at off, extending buf with zeros as
// needed, and returns the (possibly reallocated) buffer.
func growBuffer(buf []byte, off int64, data []byte) []byte {
	end := off + int64(len(data))
	if end > int64(len(buf)) {
		grown := make([]byte, end)
		copy(grown, buf)
		buf = grown
	}
	copy(buf[off:end], data)
	return buf
}

func (fs *FileSystem) SyncFile(ctx context.Context, op *fuseops.SyncFileOp) error {
	return nil
}

func (fs *FileSystem) FlushFile(ctx context.Context, op *fuseops.FlushFileOp) error {
	return nil
}

func (fs *FileSystem) ReleaseFileHandle(ctx context.Context, op *fuseops.ReleaseFileHandleOp) error {
	return nil
}
