package vfs_test

import (
	"context"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/jacobsa/fuse/fuseops"

	"xmount/image"
	"xmount/reader"
	"xmount/vfs"
	"xmount/vheader"
)

func newVMDKFileSystem(t *testing.T) *vfs.FileSystem {
	t.Helper()
	data := make([]byte, 3*1024*1024)
	path := filepath.Join(t.TempDir(), "img.dd")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}
	img, err := reader.OpenRaw(path)
	if err != nil {
		t.Fatalf("OpenRaw: %v", err)
	}
	t.Cleanup(func() { img.Close() })

	view := image.New(img, uint64(len(data)), vheader.FormatVMDKIDE, nil, nil)
	desc := vheader.BuildVMDKDescriptor(uint64(len(data)), "img.dd", vheader.BusIDE)
	info := vheader.BuildInfoFile(nil)

	return vfs.New(view, info, desc, vfs.Config{
		BaseName: "img",
		Format:   vheader.FormatVMDKIDE,
		Uid:      uint32(os.Getuid()),
		Gid:      uint32(os.Getgid()),
	})
}

func TestVMDKLockLifecycle(t *testing.T) {
	ctx := context.Background()
	fs := newVMDKFileSystem(t)

	mkdir := &fuseops.MkDirOp{Parent: vfs.RootInode, Name: "img.vmdk.lck"}
	if err := fs.MkDir(ctx, mkdir); err != nil {
		t.Fatalf("mkdir lock dir: %v", err)
	}
	lockDirInode := mkdir.Entry.Child

	// Creating it again must fail: at most one lock directory.
	if err := fs.MkDir(ctx, &fuseops.MkDirOp{Parent: vfs.RootInode, Name: "img.vmdk.lck"}); err != syscall.EEXIST {
		t.Fatalf("second mkdir of lock dir = %v, want EEXIST", err)
	}

	mknod := &fuseops.MkNodeOp{Parent: lockDirInode, Name: "lck-host.12345"}
	if err := fs.MkNode(ctx, mknod); err != nil {
		t.Fatalf("mknod lock file: %v", err)
	}

	// mknod anywhere else is rejected.
	if err := fs.MkNode(ctx, &fuseops.MkNodeOp{Parent: vfs.RootInode, Name: "foo"}); err == nil {
		t.Fatalf("mknod outside lock dir should fail")
	}

	if err := fs.Unlink(ctx, &fuseops.UnlinkOp{Parent: lockDirInode, Name: "lck-host.12345"}); err != nil {
		t.Fatalf("unlink lock file: %v", err)
	}

	if err := fs.RmDir(ctx, &fuseops.RmDirOp{Parent: vfs.RootInode, Name: "img.vmdk.lck"}); err != nil {
		t.Fatalf("rmdir lock dir: %v", err)
	}

	// Now that it's gone, it can be recreated.
	if err := fs.MkDir(ctx, &fuseops.MkDirOp{Parent: vfs.RootInode, Name: "img.vmdk.lck"}); err != nil {
		t.Fatalf("recreate lock dir: %v", err)
	}
}

func TestVMDKLockRmDirRefusesNonEmpty(t *testing.T) {
	ctx := context.Background()
	fs := newVMDKFileSystem(t)

	mkdir := &fuseops.MkDirOp{Parent: vfs.RootInode, Name: "img.vmdk.lck"}
	if err := fs.MkDir(ctx, mkdir); err != nil {
		t.Fatalf("mkdir lock dir: %v", err)
	}
	lockDirInode := mkdir.Entry.Child

	if err := fs.MkNode(ctx, &fuseops.MkNodeOp{Parent: lockDirInode, Name: "lockfile"}); err != nil {
		t.Fatalf("mknod lock file: %v", err)
	}

	if err := fs.RmDir(ctx, &fuseops.RmDirOp{Parent: vfs.RootInode, Name: "img.vmdk.lck"}); err != syscall.ENOTEMPTY {
		t.Fatalf("rmdir of non-empty lock dir = %v, want ENOTEMPTY", err)
	}
}

func TestCreateOutsideLockSlotRejected(t *testing.T) {
	ctx := context.Background()
	fs := newVMDKFileSystem(t)

	if err := fs.MkDir(ctx, &fuseops.MkDirOp{Parent: vfs.RootInode, Name: "somedir"}); err == nil {
		t.Fatalf("mkdir outside the lock slot should fail")
	}
}

func TestLookUpKnownPaths(t *testing.T) {
	ctx := context.Background()
	fs := newVMDKFileSystem(t)

	for _, name := range []string{"img.dd", "img.info", "img.vmdk"} {
		op := &fuseops.LookUpInodeOp{Parent: vfs.RootInode, Name: name}
		if err := fs.LookUpInode(ctx, op); err != nil {
			t.Fatalf("LookUpInode(%q): %v", name, err)
		}
	}

	if err := fs.LookUpInode(ctx, &fuseops.LookUpInodeOp{Parent: vfs.RootInode, Name: "nonexistent"}); err != syscall.ENOENT {
		t.Fatalf("LookUpInode(unknown) = %v, want ENOENT", err)
	}
}
