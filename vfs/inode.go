// Package vfs implements the FUSE filesystem surface: the narrow path
// namespace a hypervisor sees under the mount point, backed by an
// image.View and the mutable VMDK descriptor/lock-file state.
package vfs

import (
	"os"

	"github.com/jacobsa/fuse/fuseops"
)

// kind identifies what an inode represents in the fixed+dynamic path
// namespace described by the spec.
type kind int

const (
	kindRoot kind = iota
	kindImage
	kindInfo
	kindVmdkDescriptor
	kindLockDir
	kindLockNestedDir
	kindLockFile
)

const (
	RootInode fuseops.InodeID = fuseops.RootInodeID // 1
	imageInode                = RootInode + 1        // 2
	infoInode                 = RootInode + 2        // 3
	vmdkInode                 = RootInode + 3        // 4
	firstDynamicInode         = RootInode + 4         // 5
)

// node is one entry of the inode table.
type node struct {
	id     fuseops.InodeID
	kind   kind
	name   string
	parent fuseops.InodeID

	// children maps child name to inode ID, populated for directories.
	children map[string]fuseops.InodeID
}

func (fs *FileSystem) attrFor(n *node) fuseops.InodeAttributes {
	now := fs.startTime
	switch n.kind {
	case kindRoot, kindLockDir, kindLockNestedDir:
		return fuseops.InodeAttributes{
			Nlink: 2,
			Mode:  os.ModeDir | 0o777,
			Uid:   fs.uid,
			Gid:   fs.gid,
			Atime: now, Mtime: now, Ctime: now, Crtime: now,
		}
	case kindImage:
		mode := os.FileMode(0o444)
		if fs.view.Writable() {
			mode = 0o666
		}
		return fuseops.InodeAttributes{
			Nlink: 1,
			Mode:  mode,
			Size:  fs.view.Size(),
			Uid:   fs.uid,
			Gid:   fs.gid,
			Atime: now, Mtime: now, Ctime: now, Crtime: now,
		}
	case kindInfo:
		return fuseops.InodeAttributes{
			Nlink: 1,
			Mode:  0o444,
			Size:  uint64(len(fs.infoBytes)),
			Uid:   fs.uid,
			Gid:   fs.gid,
			Atime: now, Mtime: now, Ctime: now, Crtime: now,
		}
	case kindVmdkDescriptor:
		fs.muImageRW.Lock()
		size := uint64(fs.vmdkDesc.Len())
		fs.muImageRW.Unlock()
		return fuseops.InodeAttributes{
			Nlink: 1,
			Mode:  0o666,
			Size:  size,
			Uid:   fs.uid,
			Gid:   fs.gid,
			Atime: now, Mtime: now, Ctime: now, Crtime: now,
		}
	case kindLockFile:
		fs.muImageRW.Lock()
		size := uint64(len(fs.lock.buf))
		fs.muImageRW.Unlock()
		return fuseops.InodeAttributes{
			Nlink: 1,
			Mode:  0o666,
			Size:  size,
			Uid:   fs.uid,
			Gid:   fs.gid,
			Atime: now, Mtime: now, Ctime: now, Crtime: now,
		}
	default:
		panic("vfs: unknown inode kind")
	}
}
