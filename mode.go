package ext2fs

import "io/fs"

// ext2's on-disk mode nibble shares its layout with the Linux S_IF*
// constants the teacher already used for squashfs, since both descend
// from the same Unix mode word (§3).

const (
	sIFMT   = 0xf000
	sIFREG  = 0x8000
	sIFDIR  = 0x4000
	sIFBLK  = 0x6000
	sIFCHR  = 0x2000
	sIFIFO  = 0x1000
	sIFLNK  = 0xa000
	sIFSOCK = 0xc000

	sISVTX = 0x200
	sISGID = 0x400
	sISUID = 0x800
)

// FSMode converts in's decoded type/permission/special bits into an
// io/fs.FileMode, for callers that want a stdlib-shaped mode (the CLI's
// ls, or an fs.FS adapter).
func (in *Inode) FSMode() fs.FileMode {
	res := fs.FileMode(in.Perm & 0777)

	switch in.FileType {
	case TypeCharDev:
		res |= fs.ModeCharDevice
	case TypeBlockDev:
		res |= fs.ModeDevice
	case TypeDir:
		res |= fs.ModeDir
	case TypeFifo:
		res |= fs.ModeNamedPipe
	case TypeSymlink:
		res |= fs.ModeSymlink
	case TypeSocket:
		res |= fs.ModeSocket
	}

	if in.Sgid {
		res |= fs.ModeSetgid
	}
	if in.Suid {
		res |= fs.ModeSetuid
	}
	if in.Sticky {
		res |= fs.ModeSticky
	}
	return res
}

// unixModeWord packs an io/fs.FileMode plus a target FileType back into
// the raw 16-bit value decodeInode/encodeInode expect (type nibble, the
// suid/sgid/sticky bits, and permission bits), used by the top-level
// create operations in handle.go.
func unixModeWord(ft FileType, perm fs.FileMode) uint16 {
	res := uint32(perm.Perm())

	nibble, _ := modeNibbleFromFileType(ft)
	res |= uint32(nibble)

	if perm&fs.ModeSetgid == fs.ModeSetgid {
		res |= sISGID
	}
	if perm&fs.ModeSetuid == fs.ModeSetuid {
		res |= sISUID
	}
	if perm&fs.ModeSticky == fs.ModeSticky {
		res |= sISVTX
	}
	return uint16(res)
}
