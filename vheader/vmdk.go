package vheader

import (
	"fmt"
)

const vmdkTemplate = `# Disk DescriptorFile
version=1
CID=fffffffe
parentCID=ffffffff
createType="monolithicFlat"

# Extent description
RW %d FLAT "%s" 0

# The Disk Data Base
#DDB
ddb.virtualHWVersion = "3"
ddb.adapterType = "%s"
ddb.geometry.cylinders = "0"
ddb.geometry.heads = "0"
ddb.geometry.sectors = "0"
`

// VmdkDescriptor is the mutable VMware monolithicFlat descriptor text. A
// hypervisor may rewrite it in place (vfs.FileSystem.WriteFile), so the
// length is tracked explicitly on every mutation rather than recomputed
// with strlen/NUL scanning — the spec's mandated fix for the reference
// implementation's size-tracking bug.
type VmdkDescriptor struct {
	buf []byte
}

// Bus identifies the VMDK adapter type.
type Bus int

const (
	BusIDE Bus = iota
	BusSCSI
)

func (b Bus) String() string {
	switch b {
	case BusIDE:
		return "ide"
	case BusSCSI:
		return "scsi"
	default:
		panic("vheader: unknown bus")
	}
}

// BuildVMDKDescriptor renders the literal descriptor template,
// substituting the sector count, the sibling raw file's basename, and the
// bus adapter string.
func BuildVMDKDescriptor(diskSize uint64, rawFilename string, bus Bus) *VmdkDescriptor {
	sectors := diskSize / 512
	if diskSize%512 != 0 {
		sectors++
	}
	text := fmt.Sprintf(vmdkTemplate, sectors, rawFilename, bus.String())
	return &VmdkDescriptor{buf: []byte(text)}
}

// Bytes returns the current descriptor contents.
func (d *VmdkDescriptor) Bytes() []byte {
	return d.buf
}

// Len returns the tracked length of the descriptor.
func (d *VmdkDescriptor) Len() int {
	return len(d.buf)
}

// WriteAt overwrites or extends the descriptor buffer at off, growing it
// as needed — mirroring the write semantics a hypervisor expects of a
// small regular file.
func (d *VmdkDescriptor) WriteAt(p []byte, off int64) int {
	end := off + int64(len(p))
	if end > int64(len(d.buf)) {
		grown := make([]byte, end)
		copy(grown, d.buf)
		d.buf = grown
	}
	copy(d.buf[off:end], p)
	return len(p)
}

// ReadAt reads from the descriptor buffer, clamping at its current length.
func (d *VmdkDescriptor) ReadAt(p []byte, off int64) int {
	if off >= int64(len(d.buf)) {
		return 0
	}
	n := copy(p, d.buf[off:])
	return n
}
