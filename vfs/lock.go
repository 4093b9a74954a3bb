package vfs

import (
	"context"
	"syscall"

	"github.com/jacobsa/fuse/fuseops"
)

// MkDir handles the two directories a hypervisor creates on demand while
// taking the VMDK lock: the top-level "<name>.vmdk.lck" directory under
// root, and at most one nested directory inside it. Anything else is
// rejected; there is no general-purpose directory tree here.
func (fs *FileSystem) MkDir(ctx context.Context, op *fuseops.MkDirOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	switch {
	case op.Parent == RootInode && op.Name == fs.lockDirName():
		if fs.lock.dirInode != 0 {
			return syscall.EEXIST
		}
		id := fs.allocInode()
		n := &node{id: id, kind: kindLockDir, name: op.Name, parent: RootInode, children: map[string]fuseops.InodeID{}}
		fs.nodes[id] = n
		fs.nodes[RootInode].children[op.Name] = id
		fs.lock.dirInode = id
		fs.lock.dirName = op.Name
		op.Entry = childEntry(n, fs.attrFor(n))
		return nil

	case op.Parent == fs.lock.dirInode && fs.lock.dirInode != 0:
		if fs.lock.nestedDirInode != 0 {
			return syscall.EEXIST
		}
		id := fs.allocInode()
		n := &node{id: id, kind: kindLockNestedDir, name: op.Name, parent: fs.lock.dirInode, children: map[string]fuseops.InodeID{}}
		fs.nodes[id] = n
		fs.nodes[fs.lock.dirInode].children[op.Name] = id
		fs.lock.nestedDirInode = id
		fs.lock.nestedDirName = op.Name
		op.Entry = childEntry(n, fs.attrFor(n))
		return nil

	default:
		return errNotSupported
	}
}

// MkNode creates the lock file itself, which only ever lives directly
// inside the top-level lock directory.
func (fs *FileSystem) MkNode(ctx context.Context, op *fuseops.MkNodeOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if op.Parent != fs.lock.dirInode || fs.lock.dirInode == 0 {
		return errNotSupported
	}
	if fs.lock.fileInode != 0 {
		return syscall.EEXIST
	}

	id := fs.allocInode()
	n := &node{id: id, kind: kindLockFile, name: op.Name, parent: fs.lock.dirInode}
	fs.nodes[id] = n
	fs.nodes[fs.lock.dirInode].children[op.Name] = id
	fs.lock.fileInode = id
	fs.lock.fileName = op.Name
	fs.lock.buf = nil
	op.Entry = childEntry(n, fs.attrFor(n))
	return nil
}

func (fs *FileSystem) CreateFile(ctx context.Context, op *fuseops.CreateFileOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if op.Parent != fs.lock.dirInode || fs.lock.dirInode == 0 || fs.lock.fileInode != 0 {
		return errNotSupported
	}

	id := fs.allocInode()
	n := &node{id: id, kind: kindLockFile, name: op.Name, parent: fs.lock.dirInode}
	fs.nodes[id] = n
	fs.nodes[fs.lock.dirInode].children[op.Name] = id
	fs.lock.fileInode = id
	fs.lock.fileName = op.Name
	fs.lock.buf = nil
	op.Entry = childEntry(n, fs.attrFor(n))
	return nil
}

// Rename is restricted to renaming the lock file in place; VMware does
// this as part of releasing and retaking the lock.
func (fs *FileSystem) Rename(ctx context.Context, op *fuseops.RenameOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if op.OldParent != fs.lock.dirInode || op.NewParent != fs.lock.dirInode || fs.lock.fileInode == 0 {
		return errNotSupported
	}
	if op.OldName != fs.lock.fileName {
		return syscall.ENOENT
	}

	dir := fs.nodes[fs.lock.dirInode]
	delete(dir.children, op.OldName)
	dir.children[op.NewName] = fs.lock.fileInode
	fs.nodes[fs.lock.fileInode].name = op.NewName
	fs.lock.fileName = op.NewName
	return nil
}

// Unlink removes the lock file; RmDir then tears down whichever
// directories are empty.
func (fs *FileSystem) Unlink(ctx context.Context, op *fuseops.UnlinkOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if op.Parent != fs.lock.dirInode || fs.lock.fileInode == 0 || op.Name != fs.lock.fileName {
		return errNotSupported
	}

	delete(fs.nodes[fs.lock.dirInode].children, op.Name)
	delete(fs.nodes, fs.lock.fileInode)
	fs.lock.fileInode = 0
	fs.lock.fileName = ""
	fs.lock.buf = nil
	return nil
}

func (fs *FileSystem) RmDir(ctx context.Context, op *fuseops.RmDirOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	switch {
	case op.Parent == fs.lock.dirInode && fs.lock.nestedDirInode != 0 && op.Name == fs.lock.nestedDirName:
		if len(fs.nodes[fs.lock.nestedDirInode].children) > 0 {
			return syscall.ENOTEMPTY
		}
		delete(fs.nodes[fs.lock.dirInode].children, op.Name)
		delete(fs.nodes, fs.lock.nestedDirInode)
		fs.lock.nestedDirInode = 0
		fs.lock.nestedDirName = ""
		return nil

	case op.Parent == RootInode && fs.lock.dirInode != 0 && op.Name == fs.lock.dirName:
		if len(fs.nodes[fs.lock.dirInode].children) > 0 {
			return syscall.ENOTEMPTY
		}
		delete(fs.nodes[RootInode].children, op.Name)
		delete(fs.nodes, fs.lock.dirInode)
		fs.lock.dirInode = 0
		fs.lock.dirName = ""
		return nil

	default:
		return errNotSupported
	}
}

func (fs *FileSystem) BatchForget(ctx context.Context, op *fuseops.BatchForgetOp) error {
	return nil
}
