package ext2fs

import "math/bits"

// findZeroBit scans bm lowest-byte-first, lowest-bit-first (bit 0..7) for
// the first unset bit, matching alloc.rs's find_zero_bit_in_bitmap. It
// returns the bit index and true, or (0, false) if the bitmap is full.
func findZeroBit(bm []byte) (uint32, bool) {
	for byteIdx, b := range bm {
		if b == 0xff {
			continue
		}
		// bits.TrailingZeros8 on the complement gives the lowest unset bit.
		bit := bits.TrailingZeros8(^b)
		return uint32(byteIdx)*8 + uint32(bit), true
	}
	return 0, false
}

func setBit(bm []byte, bit uint32) {
	bm[bit/8] |= 1 << (bit % 8)
}

func clearBit(bm []byte, bit uint32) {
	bm[bit/8] &^= 1 << (bit % 8)
}

func testBit(bm []byte, bit uint32) bool {
	return bm[bit/8]&(1<<(bit%8)) != 0
}

// allocBlockInGroup tries to allocate one free block from group g, whose
// index is g.idx. It returns (blockNumber, true) on success.
func allocBlockInGroup(sb *Superblock, g *Group) (uint32, bool) {
	if g.Desc.FreeBlocksCount == 0 {
		return 0, false
	}
	bit, ok := findZeroBit(g.BlockBitmap)
	if !ok {
		return 0, false
	}
	setBit(g.BlockBitmap, bit)
	g.Desc.FreeBlocksCount--
	g.dirty = true
	block := g.idx*sb.BlocksPerGroup + sb.FirstDataBlock + bit
	return block, true
}

// allocInodeInGroup tries to allocate one free inode from group g.
func allocInodeInGroup(sb *Superblock, g *Group) (uint32, bool) {
	if g.Desc.FreeInodesCount == 0 {
		return 0, false
	}
	bit, ok := findZeroBit(g.InodeBitmap)
	if !ok {
		return 0, false
	}
	setBit(g.InodeBitmap, bit)
	g.Desc.FreeInodesCount--
	g.dirty = true
	ino := g.idx*sb.InodesPerGroup + bit + 1
	return ino, true
}

// allocBlock implements the locality-first group search shared by block
// and inode allocation (§4.4): starting at firstGroup, then wrapping
// through the remaining groups, find the first with free resources and
// allocate from it.
func (fs *Filesystem) allocBlock(firstGroup uint32) (uint32, error) {
	n := fs.sb.GroupCount()
	for i := uint32(0); i < n; i++ {
		idx := (firstGroup + i) % n
		g := fs.groups[idx]
		if block, ok := allocBlockInGroup(fs.sb, g); ok {
			fs.sb.FreeBlocksCount--
			fs.sb.dirty = true
			return block, nil
		}
	}
	return 0, newErr(KindNoSpace, "no free block available")
}

func (fs *Filesystem) allocInode(firstGroup uint32) (uint32, error) {
	n := fs.sb.GroupCount()
	for i := uint32(0); i < n; i++ {
		idx := (firstGroup + i) % n
		g := fs.groups[idx]
		if ino, ok := allocInodeInGroup(fs.sb, g); ok {
			fs.sb.FreeInodesCount--
			fs.sb.dirty = true
			return ino, nil
		}
	}
	return 0, newErr(KindNoSpace, "no free inode available")
}

// deallocBlock clears the bitmap bit for block and restores the counters.
// Deallocating block 0 is a no-op (§4.4: "a zero at any level means hole").
func (fs *Filesystem) deallocBlock(block uint32) {
	if block == 0 {
		return
	}
	idx, local := groupOfBlock(fs.sb, block)
	g := fs.groups[idx]
	clearBit(g.BlockBitmap, local)
	g.Desc.FreeBlocksCount++
	g.dirty = true
	fs.sb.FreeBlocksCount++
	fs.sb.dirty = true
}

func (fs *Filesystem) deallocInode(ino uint32) {
	if ino == 0 {
		return
	}
	idx, local := groupOfInode(fs.sb, ino)
	g := fs.groups[idx]
	clearBit(g.InodeBitmap, local)
	g.Desc.FreeInodesCount++
	g.dirty = true
	fs.sb.FreeInodesCount++
	fs.sb.dirty = true
}
