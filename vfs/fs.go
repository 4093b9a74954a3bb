package vfs

import (
	"context"
	"fmt"
	"sync"
	"syscall"
	"time"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"

	"xmount/image"
	"xmount/vheader"
)

// Config is the set of derived names and values the filesystem surface
// needs that don't belong to image.View itself.
type Config struct {
	BaseName string // e.g. "img" for img.dd/img.vdi/img.info/img.vmdk
	Format   vheader.Format
	Uid      uint32
	Gid      uint32
}

// FileSystem implements fuseutil.FileSystem over one mounted session: the
// virtual image (backed by an image.View), the static info file, and
// (VMDK modes only) the mutable descriptor and lock-file state.
type FileSystem struct {
	fuseutil.NotImplementedFileSystem

	view      *image.View
	infoBytes []byte
	vmdkDesc  *vheader.VmdkDescriptor // nil unless cfg.Format.HasDescriptor()
	cfg       Config
	uid, gid  uint32
	startTime time.Time

	muImageRW sync.Mutex // guards view reads/writes, vmdkDesc, lock.buf
	muInfo    sync.Mutex // guards info file reads

	mu    sync.Mutex // guards the inode table below
	nodes map[fuseops.InodeID]*node
	next  fuseops.InodeID
	lock  lockState
}

// New builds a FileSystem over view, serving infoBytes at <base>.info and,
// when cfg.Format.HasDescriptor(), vmdkDesc at <base>.vmdk.
func New(view *image.View, infoBytes []byte, vmdkDesc *vheader.VmdkDescriptor, cfg Config) *FileSystem {
	fs := &FileSystem{
		view:      view,
		infoBytes: infoBytes,
		vmdkDesc:  vmdkDesc,
		cfg:       cfg,
		uid:       cfg.Uid,
		gid:       cfg.Gid,
		startTime: time.Now(),
		nodes:     make(map[fuseops.InodeID]*node),
		next:      firstDynamicInode,
	}

	root := &node{id: RootInode, kind: kindRoot, name: "/", children: map[string]fuseops.InodeID{}}
	fs.nodes[RootInode] = root

	imageName := cfg.BaseName + "." + cfg.Format.Extension()
	image := &node{id: imageInode, kind: kindImage, name: imageName, parent: RootInode}
	fs.nodes[imageInode] = image
	root.children[imageName] = imageInode

	infoName := cfg.BaseName + ".info"
	info := &node{id: infoInode, kind: kindInfo, name: infoName, parent: RootInode}
	fs.nodes[infoInode] = info
	root.children[infoName] = infoInode

	if cfg.Format.HasDescriptor() {
		vmdkName := cfg.BaseName + ".vmdk"
		vm := &node{id: vmdkInode, kind: kindVmdkDescriptor, name: vmdkName, parent: RootInode}
		fs.nodes[vmdkInode] = vm
		root.children[vmdkName] = vmdkInode
	}

	return fs
}

func (fs *FileSystem) allocInode() fuseops.InodeID {
	id := fs.next
	fs.next++
	return id
}

func (fs *FileSystem) lockDirName() string {
	return fs.cfg.BaseName + ".vmdk.lck"
}

// lookupLocked finds the child of parent named name. Caller must hold fs.mu.
func (fs *FileSystem) lookupLocked(parent fuseops.InodeID, name string) (*node, bool) {
	p, ok := fs.nodes[parent]
	if !ok || p.children == nil {
		return nil, false
	}
	id, ok := p.children[name]
	if !ok {
		return nil, false
	}
	return fs.nodes[id], true
}

func childEntry(n *node, attr fuseops.InodeAttributes) fuseops.ChildInodeEntry {
	return fuseops.ChildInodeEntry{
		Child:                n.id,
		Generation:           0,
		Attributes:           attr,
		AttributesExpiration: time.Now().Add(time.Minute),
		EntryExpiration:      time.Now().Add(time.Minute),
	}
}

func (fs *FileSystem) StatFS(ctx context.Context, op *fuseops.StatFSOp) error {
	op.BlockSize = 4096
	op.IoSize = 4096
	op.Blocks = fs.view.Size()/4096 + 1
	op.BlocksFree = 0
	op.BlocksAvailable = 0
	op.Inodes = uint64(len(fs.nodes))
	op.InodesFree = 0
	return nil
}

func (fs *FileSystem) LookUpInode(ctx context.Context, op *fuseops.LookUpInodeOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	n, ok := fs.lookupLocked(op.Parent, op.Name)
	if !ok {
		return syscall.ENOENT
	}
	op.Entry = childEntry(n, fs.attrFor(n))
	return nil
}

func (fs *FileSystem) GetInodeAttributes(ctx context.Context, op *fuseops.GetInodeAttributesOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	n, ok := fs.nodes[op.Inode]
	if !ok {
		return syscall.ENOENT
	}
	op.Attributes = fs.attrFor(n)
	op.AttributesExpiration = time.Now().Add(time.Minute)
	return nil
}

func (fs *FileSystem) SetInodeAttributes(ctx context.Context, op *fuseops.SetInodeAttributesOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	n, ok := fs.nodes[op.Inode]
	if !ok {
		return syscall.ENOENT
	}
	// Truncation and mode/time changes are not modeled beyond reporting
	// the current attributes back; the virtual files' sizes are derived
	// from the data they present.
	op.Attributes = fs.attrFor(n)
	op.AttributesExpiration = time.Now().Add(time.Minute)
	return nil
}

func (fs *FileSystem) ForgetInode(ctx context.Context, op *fuseops.ForgetInodeOp) error {
	return nil
}

func (fs *FileSystem) Destroy() {}

var errNotSupported = fmt.Errorf("vfs: operation not supported outside the VMDK lock slot")
