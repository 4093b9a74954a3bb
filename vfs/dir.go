package vfs

import (
	"context"
	"sort"
	"syscall"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
)

func (fs *FileSystem) OpenDir(ctx context.Context, op *fuseops.OpenDirOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	n, ok := fs.nodes[op.Inode]
	if !ok || n.children == nil {
		return syscall.ENOTDIR
	}
	return nil
}

// sortedChildNames returns n's children in a stable order so repeated
// ReadDir calls at growing offsets don't skip or repeat entries.
func sortedChildNames(n *node) []string {
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (fs *FileSystem) ReadDir(ctx context.Context, op *fuseops.ReadDirOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	n, ok := fs.nodes[op.Inode]
	if !ok || n.children == nil {
		return syscall.ENOTDIR
	}

	names := sortedChildNames(n)

	entries := make([]fuseutil.Dirent, 0, len(names)+2)
	entries = append(entries,
		fuseutil.Dirent{Offset: 1, Inode: n.id, Name: ".", Type: fuseutil.DT_Directory},
	)
	parent := n.parent
	if n.id == RootInode {
		parent = RootInode
	}
	entries = append(entries,
		fuseutil.Dirent{Offset: 2, Inode: parent, Name: "..", Type: fuseutil.DT_Directory},
	)

	for i, name := range names {
		child := fs.nodes[n.children[name]]
		dt := fuseutil.DT_File
		if child.children != nil {
			dt = fuseutil.DT_Directory
		}
		entries = append(entries, fuseutil.Dirent{
			Offset: fuseops.DirOffset(3 + i),
			Inode:  child.id,
			Name:   name,
			Type:   dt,
		})
	}

	if int(op.Offset) > len(entries) {
		return nil
	}

	for _, e := range entries[op.Offset:] {
		written := fuseutil.WriteDirent(op.Dst[op.BytesRead:], e)
		if written == 0 {
			break
		}
		op.BytesRead += written
	}
	return nil
}

func (fs *FileSystem) ReleaseDirHandle(ctx context.Context, op *fuseops.ReleaseDirHandleOp) error {
	return nil
}
