package ext2fs

import (
	"encoding/binary"
	"fmt"
)

// SuperblockMagic is the fixed magic value at byte offset 56 of the
// superblock, little-endian u16.
const SuperblockMagic = 0xEF53

// FeatureFiletype is the only incompatible feature bit this driver
// understands; any other incompatible bit set in an image aborts mount.
const FeatureFiletype = 0x0002

const superblockSize = 1024
const superblockOffset = 1024

// State values for Superblock.State (offset 58).
const (
	StateClean = 1
	StateDirty = 2
)

// Superblock holds the subset of the ext2 superblock this driver decodes
// and validates (§6 of the design document). The raw 1024-byte image is
// kept alongside so that flushing re-encodes only the modeled fields back
// into their exact byte offsets, preserving every other reserved or
// unmodeled field untouched — the same "read existing bytes before partial
// overwrite" discipline the inode codec uses (see inode.go).
type Superblock struct {
	BlocksCount     uint32
	FreeBlocksCount uint32
	FreeInodesCount uint32
	FirstDataBlock  uint32
	LogBlockSize    uint32
	BlocksPerGroup  uint32
	InodesPerGroup  uint32
	State           uint16
	RevLevel        uint32
	FirstIno        uint32
	InodeSize       uint16
	FeatureCompat   uint32
	FeatureIncompat uint32
	FeatureROCompat uint32

	raw   [superblockSize]byte
	dirty bool
}

// BlockSize returns the block size in bytes: 1024 << LogBlockSize.
func (s *Superblock) BlockSize() uint64 {
	return 1024 << s.LogBlockSize
}

// GroupCount returns the number of block groups the image is divided into.
func (s *Superblock) GroupCount() uint32 {
	if s.BlocksPerGroup == 0 {
		return 0
	}
	n := s.BlocksCount / s.BlocksPerGroup
	if s.BlocksCount%s.BlocksPerGroup != 0 {
		n++
	}
	return n
}

// decodeSuperblock parses and validates a 1024-byte superblock image.
// When readOnly is false, any set read-only-compat feature bit aborts
// (a read-only mount tolerates such bits).
func decodeSuperblock(buf []byte, readOnly bool) (*Superblock, error) {
	if len(buf) < superblockSize {
		return nil, newErr(KindBadFormat, "superblock buffer too small")
	}
	le := binary.LittleEndian
	magic := le.Uint16(buf[56:58])
	if magic != SuperblockMagic {
		return nil, newErr(KindBadFormat, fmt.Sprintf("bad superblock magic %#x", magic))
	}

	sb := &Superblock{}
	copy(sb.raw[:], buf[:superblockSize])

	sb.BlocksCount = le.Uint32(buf[4:8])
	sb.FreeBlocksCount = le.Uint32(buf[12:16])
	sb.FreeInodesCount = le.Uint32(buf[16:20])
	sb.FirstDataBlock = le.Uint32(buf[20:24])
	sb.LogBlockSize = le.Uint32(buf[24:28])
	sb.BlocksPerGroup = le.Uint32(buf[32:36])
	sb.InodesPerGroup = le.Uint32(buf[40:44])
	sb.State = le.Uint16(buf[58:60])
	sb.RevLevel = le.Uint32(buf[76:80])

	if sb.RevLevel >= 1 {
		sb.FirstIno = le.Uint32(buf[84:88])
		sb.InodeSize = le.Uint16(buf[88:90])
		sb.FeatureCompat = le.Uint32(buf[92:96])
		sb.FeatureIncompat = le.Uint32(buf[96:100])
		sb.FeatureROCompat = le.Uint32(buf[100:104])
	} else {
		sb.FirstIno = 11
		sb.InodeSize = 128
	}

	if sb.FeatureIncompat&^uint32(FeatureFiletype) != 0 {
		return nil, newErr(KindBadFormat, "unsupported incompatible feature bit set")
	}
	if !readOnly && sb.FeatureROCompat != 0 {
		return nil, newErr(KindBadFormat, "read-only-compat feature bit set, refusing read-write mount")
	}
	if sb.BlocksPerGroup == 0 || sb.InodesPerGroup == 0 {
		return nil, newErr(KindBadFormat, "zero blocks_per_group or inodes_per_group")
	}

	return sb, nil
}

// encode re-renders the modeled fields into the superblock's raw image and
// returns the full 1024-byte buffer. Fields this driver does not model are
// left exactly as they were read.
func (s *Superblock) encode() []byte {
	le := binary.LittleEndian
	le.PutUint32(s.raw[4:8], s.BlocksCount)
	le.PutUint32(s.raw[12:16], s.FreeBlocksCount)
	le.PutUint32(s.raw[16:20], s.FreeInodesCount)
	le.PutUint32(s.raw[20:24], s.FirstDataBlock)
	le.PutUint32(s.raw[24:28], s.LogBlockSize)
	le.PutUint32(s.raw[32:36], s.BlocksPerGroup)
	le.PutUint32(s.raw[40:44], s.InodesPerGroup)
	le.PutUint16(s.raw[56:58], SuperblockMagic)
	le.PutUint16(s.raw[58:60], s.State)
	le.PutUint32(s.raw[76:80], s.RevLevel)
	if s.RevLevel >= 1 {
		le.PutUint32(s.raw[84:88], s.FirstIno)
		le.PutUint16(s.raw[88:90], s.InodeSize)
		le.PutUint32(s.raw[92:96], s.FeatureCompat)
		le.PutUint32(s.raw[96:100], s.FeatureIncompat)
		le.PutUint32(s.raw[100:104], s.FeatureROCompat)
	}
	out := make([]byte, superblockSize)
	copy(out, s.raw[:])
	return out
}
