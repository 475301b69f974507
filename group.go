package ext2fs

import (
	"encoding/binary"
)

const groupDescSize = 32

// groupDescBlock returns the block number where the group descriptor
// table begins: immediately after the block containing the superblock.
func groupDescBlock(sb *Superblock) uint32 {
	return sb.FirstDataBlock + 1
}

// GroupDesc is the 32-byte on-disk group descriptor (§6).
type GroupDesc struct {
	BlockBitmap     uint32
	InodeBitmap     uint32
	InodeTable      uint32
	FreeBlocksCount uint16
	FreeInodesCount uint16
	UsedDirsCount   uint16
}

func decodeGroupDesc(buf []byte) (*GroupDesc, error) {
	if len(buf) < groupDescSize {
		return nil, newErr(KindBadFormat, "group descriptor buffer too small")
	}
	le := binary.LittleEndian
	return &GroupDesc{
		BlockBitmap:     le.Uint32(buf[0:4]),
		InodeBitmap:     le.Uint32(buf[4:8]),
		InodeTable:      le.Uint32(buf[8:12]),
		FreeBlocksCount: le.Uint16(buf[12:14]),
		FreeInodesCount: le.Uint16(buf[14:16]),
		UsedDirsCount:   le.Uint16(buf[16:18]),
	}, nil
}

// encodeGroupDesc writes d's modeled fields over the existing buf,
// preserving any bytes beyond the modeled range (reserved padding).
func encodeGroupDesc(d *GroupDesc, buf []byte) {
	le := binary.LittleEndian
	le.PutUint32(buf[0:4], d.BlockBitmap)
	le.PutUint32(buf[4:8], d.InodeBitmap)
	le.PutUint32(buf[8:12], d.InodeTable)
	le.PutUint16(buf[12:14], d.FreeBlocksCount)
	le.PutUint16(buf[14:16], d.FreeInodesCount)
	le.PutUint16(buf[16:18], d.UsedDirsCount)
}

// Group holds one block group's descriptor and both bitmaps in memory,
// mirroring the original source's Group{idx, desc, block_bitmap,
// inode_bitmap, dirty} (group.rs).
type Group struct {
	idx uint32
	raw [groupDescSize]byte // preserves reserved bytes across re-encode

	Desc        GroupDesc
	BlockBitmap []byte
	InodeBitmap []byte
	dirty       bool
}

// readGroup loads group descriptor idx and both of its bitmaps. Reading a
// group writes nothing to the volume.
func readGroup(v Volume, sb *Superblock, idx uint32) (*Group, error) {
	bs := sb.BlockSize()
	descOffset := int64(groupDescBlock(sb))*int64(bs) + int64(idx)*groupDescSize

	buf := make([]byte, groupDescSize)
	if err := volRead(v, descOffset, buf); err != nil {
		return nil, err
	}
	desc, err := decodeGroupDesc(buf)
	if err != nil {
		return nil, err
	}

	g := &Group{idx: idx, Desc: *desc}
	copy(g.raw[:], buf)

	blockBitmapSize := sb.BlocksPerGroup / 8
	g.BlockBitmap = make([]byte, blockBitmapSize)
	if err := volRead(v, int64(desc.BlockBitmap)*int64(bs), g.BlockBitmap); err != nil {
		return nil, err
	}

	inodeBitmapSize := sb.InodesPerGroup / 8
	g.InodeBitmap = make([]byte, inodeBitmapSize)
	if err := volRead(v, int64(desc.InodeBitmap)*int64(bs), g.InodeBitmap); err != nil {
		return nil, err
	}

	return g, nil
}

// writeGroup re-encodes the descriptor at its fixed offset and writes both
// bitmaps contiguously at their bitmap-block offsets, gated on the dirty
// flag (§4.4).
func writeGroup(v Volume, sb *Superblock, g *Group) error {
	if !g.dirty {
		return nil
	}
	bs := sb.BlockSize()
	descOffset := int64(groupDescBlock(sb))*int64(bs) + int64(g.idx)*groupDescSize

	encodeGroupDesc(&g.Desc, g.raw[:])
	if err := volWrite(v, descOffset, g.raw[:]); err != nil {
		return err
	}
	if err := volWrite(v, int64(g.Desc.BlockBitmap)*int64(bs), g.BlockBitmap); err != nil {
		return err
	}
	if err := volWrite(v, int64(g.Desc.InodeBitmap)*int64(bs), g.InodeBitmap); err != nil {
		return err
	}
	g.dirty = false
	return nil
}

// groupOfBlock returns the group index and local (within-group) offset a
// block number maps to.
func groupOfBlock(sb *Superblock, block uint32) (idx, local uint32) {
	rel := block - sb.FirstDataBlock
	return rel / sb.BlocksPerGroup, rel % sb.BlocksPerGroup
}

// groupOfInode returns the group index and local (0-based) offset an inode
// number maps to. Inode numbers are 1-based on disk.
func groupOfInode(sb *Superblock, ino uint32) (idx, local uint32) {
	rel := ino - 1
	return rel / sb.InodesPerGroup, rel % sb.InodesPerGroup
}
