package ext2fs

import (
	"encoding/binary"
	"fmt"
)

// FileType enumerates the inode/dir-entry file-type nibble values the
// on-disk format distinguishes (§6).
type FileType uint8

const (
	TypeUnknown FileType = iota
	TypeRegular
	TypeDir
	TypeCharDev
	TypeBlockDev
	TypeFifo
	TypeSocket
	TypeSymlink
)

func (t FileType) String() string {
	switch t {
	case TypeRegular:
		return "regular"
	case TypeDir:
		return "dir"
	case TypeCharDev:
		return "char device"
	case TypeBlockDev:
		return "block device"
	case TypeFifo:
		return "fifo"
	case TypeSocket:
		return "socket"
	case TypeSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// inode mode file-type nibbles, as stored in the top nibble of the 16-bit
// on-disk mode field (§6).
const (
	modeFifo      = 0x1000
	modeCharDev   = 0x2000
	modeDir       = 0x4000
	modeBlockDev  = 0x6000
	modeRegular   = 0x8000
	modeSymlink   = 0xa000
	modeSocket    = 0xc000
	modeTypeMask  = 0xf000
	modeSuidBit   = 0x0800
	modeSgidBit   = 0x0400
	modeStickyBit = 0x0200
	modePermMask  = 0x01ff
)

func fileTypeFromModeNibble(nibble uint16) (FileType, error) {
	switch nibble & modeTypeMask {
	case modeFifo:
		return TypeFifo, nil
	case modeCharDev:
		return TypeCharDev, nil
	case modeDir:
		return TypeDir, nil
	case modeBlockDev:
		return TypeBlockDev, nil
	case modeRegular:
		return TypeRegular, nil
	case modeSymlink:
		return TypeSymlink, nil
	case modeSocket:
		return TypeSocket, nil
	default:
		return TypeUnknown, newErr(KindBadFormat, fmt.Sprintf("unrecognized inode mode nibble %#x", nibble))
	}
}

func modeNibbleFromFileType(t FileType) (uint16, error) {
	switch t {
	case TypeFifo:
		return modeFifo, nil
	case TypeCharDev:
		return modeCharDev, nil
	case TypeDir:
		return modeDir, nil
	case TypeBlockDev:
		return modeBlockDev, nil
	case TypeRegular:
		return modeRegular, nil
	case TypeSymlink:
		return modeSymlink, nil
	case TypeSocket:
		return modeSocket, nil
	default:
		return 0, newErr(KindBadArgument, fmt.Sprintf("cannot encode file type %v", t))
	}
}

// Attr groups the ownership/timestamp fields the spec calls attr (§3).
type Attr struct {
	Uid   uint32
	Gid   uint32
	Atime uint32
	Ctime uint32
	Mtime uint32
	Dtime uint32
}

// Inode is the in-memory decoded form of an ext2 on-disk inode (§3/§6).
// Block entries 0-11 are direct data blocks; 12/13/14 are the
// singly/doubly/triply indirect pointers.
type Inode struct {
	Ino uint32

	FileType FileType
	Suid     bool
	Sgid     bool
	Sticky   bool
	Perm     uint16 // access rights, 0..0o777

	Attr Attr

	Size       uint64
	Size512    uint32
	LinksCount uint16
	Flags      uint32
	Block      [15]uint32
	FileACL    uint32
}

// IsDir reports whether the inode is a directory.
func (i *Inode) IsDir() bool { return i.FileType == TypeDir }

// IsSymlink reports whether the inode is a symbolic link.
func (i *Inode) IsSymlink() bool { return i.FileType == TypeSymlink }

// IsRegular reports whether the inode is a regular file.
func (i *Inode) IsRegular() bool { return i.FileType == TypeRegular }

const inodeMinSize = 128

// locateInode returns the byte offset of ino's slot within the inode
// table of its owning group.
func locateInode(sb *Superblock, g *Group, ino uint32) int64 {
	_, local := groupOfInode(sb, ino)
	return int64(g.Desc.InodeTable)*int64(sb.BlockSize()) + int64(local)*int64(sb.InodeSize)
}

// decodeInode parses an on-disk inode record. buf must be at least
// sb.InodeSize bytes (≥128).
func decodeInode(sb *Superblock, ino uint32, buf []byte) (*Inode, error) {
	if len(buf) < inodeMinSize {
		return nil, newErr(KindBadFormat, "inode buffer too small")
	}
	le := binary.LittleEndian

	mode := le.Uint16(buf[0:2])
	ft, err := fileTypeFromModeNibble(mode)
	if err != nil {
		return nil, err
	}

	in := &Inode{
		Ino:      ino,
		FileType: ft,
		Suid:     mode&modeSuidBit != 0,
		Sgid:     mode&modeSgidBit != 0,
		Sticky:   mode&modeStickyBit != 0,
		Perm:     mode & modePermMask,
	}

	in.Attr.Uid = uint32(le.Uint16(buf[2:4]))
	sizeLow := le.Uint32(buf[4:8])
	in.Attr.Atime = le.Uint32(buf[8:12])
	in.Attr.Ctime = le.Uint32(buf[12:16])
	in.Attr.Mtime = le.Uint32(buf[16:20])
	in.Attr.Dtime = le.Uint32(buf[20:24])
	in.Attr.Gid = uint32(le.Uint16(buf[24:26]))
	in.LinksCount = le.Uint16(buf[26:28])
	in.Size512 = le.Uint32(buf[28:32])
	in.Flags = le.Uint32(buf[32:36])
	for n := 0; n < 15; n++ {
		in.Block[n] = le.Uint32(buf[40+n*4 : 44+n*4])
	}
	in.FileACL = le.Uint32(buf[104:108])

	size := uint64(sizeLow)
	if sb.RevLevel >= 1 && ft == TypeRegular && len(buf) >= 112 {
		size |= uint64(le.Uint32(buf[108:112])) << 32
		in.Attr.Uid |= uint32(le.Uint16(buf[120:122])) << 16
		in.Attr.Gid |= uint32(le.Uint16(buf[122:124])) << 16
	}
	in.Size = size

	return in, nil
}

// encodeInode re-renders in into buf (≥ sb.InodeSize bytes). Per §4.5, the
// caller must have first populated buf with the existing on-disk bytes
// when sb.InodeSize > 128, so reserved fields beyond the modeled range
// survive the partial overwrite.
func encodeInode(sb *Superblock, in *Inode, buf []byte) error {
	if len(buf) < inodeMinSize {
		return newErr(KindInvalid, "inode buffer too small")
	}
	if in.Size > 1<<32-1 && sb.RevLevel < 1 {
		return newErr(KindBadArgument, "file size exceeds 32 bits on a rev 0 filesystem")
	}

	le := binary.LittleEndian
	nibble, err := modeNibbleFromFileType(in.FileType)
	if err != nil {
		return err
	}
	mode := nibble | (in.Perm & modePermMask)
	if in.Suid {
		mode |= modeSuidBit
	}
	if in.Sgid {
		mode |= modeSgidBit
	}
	if in.Sticky {
		mode |= modeStickyBit
	}
	le.PutUint16(buf[0:2], mode)
	le.PutUint16(buf[2:4], uint16(in.Attr.Uid))
	le.PutUint32(buf[4:8], uint32(in.Size))
	le.PutUint32(buf[8:12], in.Attr.Atime)
	le.PutUint32(buf[12:16], in.Attr.Ctime)
	le.PutUint32(buf[16:20], in.Attr.Mtime)
	le.PutUint32(buf[20:24], in.Attr.Dtime)
	le.PutUint16(buf[24:26], uint16(in.Attr.Gid))
	le.PutUint16(buf[26:28], in.LinksCount)
	le.PutUint32(buf[28:32], in.Size512)
	le.PutUint32(buf[32:36], in.Flags)
	for n := 0; n < 15; n++ {
		le.PutUint32(buf[40+n*4:44+n*4], in.Block[n])
	}
	le.PutUint32(buf[104:108], in.FileACL)

	if in.FileType == TypeRegular && sb.RevLevel >= 1 && len(buf) >= 124 {
		le.PutUint32(buf[108:112], uint32(in.Size>>32))
		le.PutUint16(buf[120:122], uint16(in.Attr.Uid>>16))
		le.PutUint16(buf[122:124], uint16(in.Attr.Gid>>16))
	} else if in.Size > 1<<32-1 {
		return newErr(KindBadArgument, "file size exceeds 32 bits, rev_level must be >= 1")
	}

	return nil
}
