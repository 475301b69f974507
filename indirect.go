package ext2fs

import "encoding/binary"

// blockPos classifies a file-block index into the direct/indirect tier it
// falls in (§4.6). The zero value (level0Pos with index 0) is never
// returned for level kinds other than the one it names; callers switch on
// kind.
type blockPosKind int

const (
	posLevel0 blockPosKind = iota
	posLevel1
	posLevel2
	posLevel3
	posOutOfRange
)

type blockPos struct {
	kind           blockPosKind
	level0         uint64
	level1         uint64
	level2         uint64
}

// computeBlockPos implements the §4.6 positioning formula. N is the
// number of 32-bit link entries per indirect block (block_size/4).
func computeBlockPos(blockSize uint64, b uint64) blockPos {
	n := blockSize / 4
	n2 := n * n
	n3 := n2 * n

	switch {
	case b < 12:
		return blockPos{kind: posLevel0, level0: b}
	case b < 12+n:
		return blockPos{kind: posLevel1, level0: b - 12}
	case b < 12+n+n2:
		bp := b - 12 - n
		return blockPos{kind: posLevel2, level1: bp / n, level0: bp % n}
	case b < 12+n+n2+n3:
		bp := b - 12 - n - n2
		return blockPos{kind: posLevel3, level2: bp / n2, level1: (bp % n2) / n, level0: (bp % n2) % n}
	default:
		return blockPos{kind: posOutOfRange}
	}
}

func (fs *Filesystem) readIndirectEntry(indirectBlock uint32, entry uint64) (uint32, error) {
	bs := fs.sb.BlockSize()
	off := int64(indirectBlock)*int64(bs) + int64(entry)*4
	var buf [4]byte
	if err := volRead(fs.vol, off, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func (fs *Filesystem) writeIndirectEntry(indirectBlock uint32, entry uint64, value uint32) error {
	bs := fs.sb.BlockSize()
	off := int64(indirectBlock)*int64(bs) + int64(entry)*4
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], value)
	return volWrite(fs.vol, off, buf[:])
}

// getFileBlock resolves file-block index b of in to an on-disk block
// number, walking indirect levels as needed. A zero at any level means
// "hole": it returns (0, nil) rather than an error (§4.6).
func (fs *Filesystem) getFileBlock(in *Inode, b uint64) (uint32, error) {
	pos := computeBlockPos(fs.sb.BlockSize(), b)
	switch pos.kind {
	case posLevel0:
		return in.Block[pos.level0], nil
	case posLevel1:
		block1 := in.Block[12]
		if block1 == 0 {
			return 0, nil
		}
		return fs.readIndirectEntry(block1, pos.level0)
	case posLevel2:
		block2 := in.Block[13]
		if block2 == 0 {
			return 0, nil
		}
		block1, err := fs.readIndirectEntry(block2, pos.level1)
		if err != nil || block1 == 0 {
			return 0, err
		}
		return fs.readIndirectEntry(block1, pos.level0)
	case posLevel3:
		block3 := in.Block[14]
		if block3 == 0 {
			return 0, nil
		}
		block2, err := fs.readIndirectEntry(block3, pos.level2)
		if err != nil || block2 == 0 {
			return 0, err
		}
		block1, err := fs.readIndirectEntry(block2, pos.level1)
		if err != nil || block1 == 0 {
			return 0, err
		}
		return fs.readIndirectEntry(block1, pos.level0)
	default:
		return 0, newErr(KindBadArgument, "file block index out of range")
	}
}

// allocZeroBlock allocates one block rooted at the locality group of in
// and zero-fills it on disk.
func (fs *Filesystem) allocZeroBlock(in *Inode) (uint32, error) {
	idx, _ := groupOfInode(fs.sb, in.Ino)
	block, err := fs.allocBlock(idx)
	if err != nil {
		return 0, err
	}
	zero := make([]byte, fs.sb.BlockSize())
	if err := volWrite(fs.vol, int64(block)*int64(fs.sb.BlockSize()), zero); err != nil {
		return 0, err
	}
	return block, nil
}

// ensureIndirect returns the block number at in.Block[slot], allocating
// and zero-filling it (and bumping in.Size512) if it is currently 0.
func (fs *Filesystem) ensureIndirect(in *Inode, slot int) (uint32, error) {
	if in.Block[slot] != 0 {
		return in.Block[slot], nil
	}
	block, err := fs.allocZeroBlock(in)
	if err != nil {
		return 0, err
	}
	in.Block[slot] = block
	in.Size512 += uint32(fs.sb.BlockSize() / 512)
	return block, nil
}

// ensureIndirectEntry returns the block number stored at entry within
// parentBlock, allocating and zero-filling it (and bumping in.Size512) if
// it is currently 0.
func (fs *Filesystem) ensureIndirectEntry(in *Inode, parentBlock uint32, entry uint64) (uint32, error) {
	existing, err := fs.readIndirectEntry(parentBlock, entry)
	if err != nil {
		return 0, err
	}
	if existing != 0 {
		return existing, nil
	}
	block, err := fs.allocZeroBlock(in)
	if err != nil {
		return 0, err
	}
	if err := fs.writeIndirectEntry(parentBlock, entry, block); err != nil {
		return 0, err
	}
	in.Size512 += uint32(fs.sb.BlockSize() / 512)
	return block, nil
}

// setFileBlock maps file-block index b of in to a freshly-allocated block,
// allocating any missing indirect blocks along the way (§4.6). It refuses
// to overwrite an already-mapped leaf — that indicates a caller bug, not a
// recoverable error, and panics accordingly.
func (fs *Filesystem) setFileBlock(in *Inode, b uint64) (uint32, error) {
	pos := computeBlockPos(fs.sb.BlockSize(), b)
	switch pos.kind {
	case posLevel0:
		if in.Block[pos.level0] != 0 {
			panic("ext2fs: setFileBlock: direct block already mapped")
		}
		block, err := fs.allocZeroBlock(in)
		if err != nil {
			return 0, err
		}
		in.Block[pos.level0] = block
		in.Size512 += uint32(fs.sb.BlockSize() / 512)
		return block, nil
	case posLevel1:
		block1, err := fs.ensureIndirect(in, 12)
		if err != nil {
			return 0, err
		}
		return fs.setLeafInIndirect(in, block1, pos.level0)
	case posLevel2:
		block2, err := fs.ensureIndirect(in, 13)
		if err != nil {
			return 0, err
		}
		block1, err := fs.ensureIndirectEntry(in, block2, pos.level1)
		if err != nil {
			return 0, err
		}
		return fs.setLeafInIndirect(in, block1, pos.level0)
	case posLevel3:
		block3, err := fs.ensureIndirect(in, 14)
		if err != nil {
			return 0, err
		}
		block2, err := fs.ensureIndirectEntry(in, block3, pos.level2)
		if err != nil {
			return 0, err
		}
		block1, err := fs.ensureIndirectEntry(in, block2, pos.level1)
		if err != nil {
			return 0, err
		}
		return fs.setLeafInIndirect(in, block1, pos.level0)
	default:
		return 0, newErr(KindBadArgument, "file block index out of range")
	}
}

func (fs *Filesystem) setLeafInIndirect(in *Inode, indirectBlock uint32, entry uint64) (uint32, error) {
	existing, err := fs.readIndirectEntry(indirectBlock, entry)
	if err != nil {
		return 0, err
	}
	if existing != 0 {
		panic("ext2fs: setFileBlock: indirect leaf already mapped")
	}
	block, err := fs.allocZeroBlock(in)
	if err != nil {
		return 0, err
	}
	if err := fs.writeIndirectEntry(indirectBlock, entry, block); err != nil {
		return 0, err
	}
	in.Size512 += uint32(fs.sb.BlockSize() / 512)
	return block, nil
}

// deallocIndirectBlock frees block and every descendant at the given
// indirection level (1, 2 or 3), decrementing size_512 for each freed
// block including itself, mirroring inode_data.rs's dealloc_indirect_block.
func (fs *Filesystem) deallocIndirectBlock(in *Inode, block uint32, level int) error {
	if block == 0 {
		return nil
	}
	n := fs.sb.BlockSize() / 4
	buf := make([]byte, fs.sb.BlockSize())
	if err := volRead(fs.vol, int64(block)*int64(fs.sb.BlockSize()), buf); err != nil {
		return err
	}
	for e := uint64(0); e < n; e++ {
		child := binary.LittleEndian.Uint32(buf[e*4 : e*4+4])
		if child == 0 {
			continue
		}
		if level > 1 {
			if err := fs.deallocIndirectBlock(in, child, level-1); err != nil {
				return err
			}
		} else {
			fs.deallocBlock(child)
			in.Size512 -= uint32(fs.sb.BlockSize() / 512)
		}
	}
	fs.deallocBlock(block)
	in.Size512 -= uint32(fs.sb.BlockSize() / 512)
	return nil
}

// deallocInodeBlocks frees every data and indirect block in in, equivalent
// to truncateInodeBlocks(in, 0), except it is always a full structural
// free (fast symlinks never reach here: callers check IsSymlink+fast
// first, §4.6).
func (fs *Filesystem) deallocInodeBlocks(in *Inode) error {
	for i := 0; i < 12; i++ {
		if in.Block[i] != 0 {
			fs.deallocBlock(in.Block[i])
			in.Size512 -= uint32(fs.sb.BlockSize() / 512)
			in.Block[i] = 0
		}
	}
	if err := fs.deallocIndirectBlock(in, in.Block[12], 1); err != nil {
		return err
	}
	in.Block[12] = 0
	if err := fs.deallocIndirectBlock(in, in.Block[13], 2); err != nil {
		return err
	}
	in.Block[13] = 0
	if err := fs.deallocIndirectBlock(in, in.Block[14], 3); err != nil {
		return err
	}
	in.Block[14] = 0
	return nil
}

// truncateIndirectTail recursively frees every entry >= fromEntry within
// block (an indirection-level block), zeroing the freed slots back to
// disk, mirroring inode_data.rs's truncate_indirect_block.
func (fs *Filesystem) truncateIndirectTail(in *Inode, block uint32, fromEntry uint64, level int) error {
	if block == 0 {
		return nil
	}
	n := fs.sb.BlockSize() / 4
	buf := make([]byte, fs.sb.BlockSize())
	if err := volRead(fs.vol, int64(block)*int64(fs.sb.BlockSize()), buf); err != nil {
		return err
	}
	changed := false
	for e := fromEntry; e < n; e++ {
		child := binary.LittleEndian.Uint32(buf[e*4 : e*4+4])
		if child == 0 {
			continue
		}
		if level > 1 {
			if err := fs.deallocIndirectBlock(in, child, level-1); err != nil {
				return err
			}
		} else {
			fs.deallocBlock(child)
			in.Size512 -= uint32(fs.sb.BlockSize() / 512)
		}
		binary.LittleEndian.PutUint32(buf[e*4:e*4+4], 0)
		changed = true
	}
	if changed {
		return volWrite(fs.vol, int64(block)*int64(fs.sb.BlockSize()), buf)
	}
	return nil
}

// truncateInodeBlocks frees every block at or beyond file-block index
// firstBlock, per the level splits in §4.6.
func (fs *Filesystem) truncateInodeBlocks(in *Inode, firstBlock uint64) error {
	bs := fs.sb.BlockSize()
	pos := computeBlockPos(bs, firstBlock)

	switch pos.kind {
	case posLevel0:
		for i := pos.level0; i < 12; i++ {
			if in.Block[i] != 0 {
				fs.deallocBlock(in.Block[i])
				in.Size512 -= uint32(bs / 512)
				in.Block[i] = 0
			}
		}
		if err := fs.deallocIndirectBlock(in, in.Block[12], 1); err != nil {
			return err
		}
		in.Block[12] = 0
		if err := fs.deallocIndirectBlock(in, in.Block[13], 2); err != nil {
			return err
		}
		in.Block[13] = 0
		if err := fs.deallocIndirectBlock(in, in.Block[14], 3); err != nil {
			return err
		}
		in.Block[14] = 0

	case posLevel1:
		if err := fs.truncateIndirectTail(in, in.Block[12], pos.level0, 1); err != nil {
			return err
		}
		if err := fs.deallocIndirectBlock(in, in.Block[13], 2); err != nil {
			return err
		}
		in.Block[13] = 0
		if err := fs.deallocIndirectBlock(in, in.Block[14], 3); err != nil {
			return err
		}
		in.Block[14] = 0

	case posLevel2:
		block2 := in.Block[13]
		if block2 != 0 {
			block1, err := fs.readIndirectEntry(block2, pos.level1)
			if err != nil {
				return err
			}
			if err := fs.truncateIndirectTail(in, block1, pos.level0, 1); err != nil {
				return err
			}
			if err := fs.truncateIndirectTail(in, block2, pos.level1+1, 2); err != nil {
				return err
			}
		}
		if err := fs.deallocIndirectBlock(in, in.Block[14], 3); err != nil {
			return err
		}
		in.Block[14] = 0

	case posLevel3:
		block3 := in.Block[14]
		if block3 != 0 {
			block2, err := fs.readIndirectEntry(block3, pos.level2)
			if err != nil {
				return err
			}
			if block2 != 0 {
				block1, err := fs.readIndirectEntry(block2, pos.level1)
				if err != nil {
					return err
				}
				if err := fs.truncateIndirectTail(in, block1, pos.level0, 1); err != nil {
					return err
				}
				if err := fs.truncateIndirectTail(in, block2, pos.level1+1, 2); err != nil {
					return err
				}
			}
			if err := fs.truncateIndirectTail(in, block3, pos.level2+1, 3); err != nil {
				return err
			}
		}

	default:
		return newErr(KindBadArgument, "truncate start out of range")
	}

	return nil
}
