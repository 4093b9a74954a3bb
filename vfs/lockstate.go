package vfs

import "github.com/jacobsa/fuse/fuseops"

// lockState tracks VMware's on-demand lock directory/file: the lock
// directory, at most one nested directory inside it, and at most one
// lock file with an in-memory byte buffer for its contents. All of it is
// forgotten on unmount.
type lockState struct {
	dirInode       fuseops.InodeID // 0 if not created
	dirName        string
	nestedDirInode fuseops.InodeID // 0 if not created
	nestedDirName  string
	fileInode      fuseops.InodeID // 0 if not created
	fileName       string
	buf            []byte
}
