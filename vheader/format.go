package vheader

// Format identifies the on-the-fly rendering of the virtual file: raw
// pass-through, VDI-framed, or paired with a VMDK descriptor over an IDE
// or SCSI bus.
type Format int

const (
	FormatRaw Format = iota
	FormatVDI
	FormatVMDKIDE
	FormatVMDKSCSI
)

func (f Format) String() string {
	switch f {
	case FormatRaw:
		return "dd"
	case FormatVDI:
		return "vdi"
	case FormatVMDKIDE:
		return "vmdk"
	case FormatVMDKSCSI:
		return "vmdks"
	default:
		return "unknown"
	}
}

// FormatFromName maps a --out flag value to a Format.
func FormatFromName(name string) (f Format, ok bool) {
	switch name {
	case "dd", "":
		return FormatRaw, true
	case "vdi":
		return FormatVDI, true
	case "vmdk":
		return FormatVMDKIDE, true
	case "vmdks":
		return FormatVMDKSCSI, true
	default:
		return FormatRaw, false
	}
}

// HasHeader reports whether the virtual image has a prepended header
// region (true only for VDI).
func (f Format) HasHeader() bool {
	return f == FormatVDI
}

// HasDescriptor reports whether the virtual format exposes a mutable
// sibling descriptor file.
func (f Format) HasDescriptor() bool {
	return f == FormatVMDKIDE || f == FormatVMDKSCSI
}

// Extension returns the primary virtual image file extension.
func (f Format) Extension() string {
	switch f {
	case FormatRaw, FormatVMDKIDE, FormatVMDKSCSI:
		return "dd"
	case FormatVDI:
		return "vdi"
	default:
		panic("vheader: unknown format")
	}
}

// Bus returns the VMDK adapter bus for VMDK formats; it panics for
// non-VMDK formats.
func (f Format) Bus() Bus {
	switch f {
	case FormatVMDKIDE:
		return BusIDE
	case FormatVMDKSCSI:
		return BusSCSI
	default:
		panic("vheader: format has no bus")
	}
}
