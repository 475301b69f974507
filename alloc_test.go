package ext2fs

import (
	"errors"
	"testing"
)

func TestFindZeroBitScansLowestFirst(t *testing.T) {
	bm := []byte{0xff, 0xff, 0x00, 0xff}
	bit, ok := findZeroBit(bm)
	if !ok {
		t.Fatal("expected a zero bit")
	}
	if bit != 16 {
		t.Fatalf("got bit %d, want 16", bit)
	}
}

func TestFindZeroBitFullBitmap(t *testing.T) {
	bm := []byte{0xff, 0xff}
	_, ok := findZeroBit(bm)
	if ok {
		t.Fatal("expected no zero bit in a full bitmap")
	}
}

func TestFindZeroBitPrefersLowBitWithinByte(t *testing.T) {
	// 0b11111010 has bits 0 and 2 unset; the lowest, bit 0, must win.
	bm := []byte{0b11111010}
	bit, ok := findZeroBit(bm)
	if !ok {
		t.Fatal("expected a zero bit")
	}
	if bit != 0 {
		t.Fatalf("got bit %d, want 0", bit)
	}
}

func TestSetClearTestBitRoundTrip(t *testing.T) {
	bm := make([]byte, 4)
	for _, bit := range []uint32{0, 1, 7, 8, 15, 31} {
		if testBit(bm, bit) {
			t.Fatalf("bit %d set before any operation", bit)
		}
		setBit(bm, bit)
		if !testBit(bm, bit) {
			t.Fatalf("bit %d not set after setBit", bit)
		}
		clearBit(bm, bit)
		if testBit(bm, bit) {
			t.Fatalf("bit %d still set after clearBit", bit)
		}
	}
}

func TestAllocBlockInGroupUpdatesCounters(t *testing.T) {
	sb := &Superblock{BlocksPerGroup: 16, FirstDataBlock: 1}
	g := &Group{idx: 0, BlockBitmap: make([]byte, 2), Desc: GroupDesc{FreeBlocksCount: 16}}

	block, ok := allocBlockInGroup(sb, g)
	if !ok {
		t.Fatal("expected allocation to succeed")
	}
	if block != sb.FirstDataBlock {
		t.Fatalf("got block %d, want %d (first bit of first group)", block, sb.FirstDataBlock)
	}
	if g.Desc.FreeBlocksCount != 15 {
		t.Fatalf("FreeBlocksCount = %d, want 15", g.Desc.FreeBlocksCount)
	}
	if !g.dirty {
		t.Fatal("group not marked dirty after allocation")
	}
}

func TestAllocBlockInGroupExhausted(t *testing.T) {
	sb := &Superblock{BlocksPerGroup: 8, FirstDataBlock: 1}
	g := &Group{idx: 0, BlockBitmap: make([]byte, 1), Desc: GroupDesc{FreeBlocksCount: 0}}

	_, ok := allocBlockInGroup(sb, g)
	if ok {
		t.Fatal("expected allocation to fail when FreeBlocksCount is 0")
	}
}

func TestAllocInodeInGroupNumbering(t *testing.T) {
	sb := &Superblock{InodesPerGroup: 32}
	g := &Group{idx: 1, InodeBitmap: make([]byte, 4), Desc: GroupDesc{FreeInodesCount: 32}}

	ino, ok := allocInodeInGroup(sb, g)
	if !ok {
		t.Fatal("expected allocation to succeed")
	}
	// Group 1's first inode is (1*32)+0+1 = 33, since inode numbers are 1-based.
	if ino != 33 {
		t.Fatalf("got ino %d, want 33", ino)
	}
}

func TestDeallocBlockZeroIsNoop(t *testing.T) {
	fsObj := &Filesystem{sb: &Superblock{BlocksPerGroup: 8, FirstDataBlock: 1, FreeBlocksCount: 100}, groups: []*Group{{BlockBitmap: make([]byte, 1)}}}
	fsObj.deallocBlock(0)
	if fsObj.sb.FreeBlocksCount != 100 {
		t.Fatalf("FreeBlocksCount changed on dealloc of block 0")
	}
}

func TestAllocDeallocBlockRoundTrip(t *testing.T) {
	sb := &Superblock{BlocksPerGroup: 16, FirstDataBlock: 1, BlocksCount: 16, FreeBlocksCount: 16}
	g := &Group{idx: 0, BlockBitmap: make([]byte, 2), Desc: GroupDesc{FreeBlocksCount: 16}}
	fsObj := &Filesystem{sb: sb, groups: []*Group{g}}

	block, err := fsObj.allocBlock(0)
	if err != nil {
		t.Fatalf("allocBlock: %v", err)
	}
	if sb.FreeBlocksCount != 15 {
		t.Fatalf("sb.FreeBlocksCount = %d, want 15", sb.FreeBlocksCount)
	}
	fsObj.deallocBlock(block)
	if sb.FreeBlocksCount != 16 {
		t.Fatalf("sb.FreeBlocksCount after dealloc = %d, want 16", sb.FreeBlocksCount)
	}
	if g.Desc.FreeBlocksCount != 16 {
		t.Fatalf("g.Desc.FreeBlocksCount after dealloc = %d, want 16", g.Desc.FreeBlocksCount)
	}
}

func TestAllocBlockNoSpace(t *testing.T) {
	sb := &Superblock{BlocksPerGroup: 8, BlocksCount: 8, FirstDataBlock: 1}
	g := &Group{idx: 0, BlockBitmap: []byte{0xff}, Desc: GroupDesc{FreeBlocksCount: 0}}
	fsObj := &Filesystem{sb: sb, groups: []*Group{g}}

	_, err := fsObj.allocBlock(0)
	if err == nil {
		t.Fatal("expected KindNoSpace error")
	}
	var e *Error
	if !errors.As(err, &e) || e.Kind != KindNoSpace {
		t.Fatalf("got %v, want KindNoSpace", err)
	}
}
