package ext2fs

import "testing"

func TestGroupDescEncodeDecodeRoundTrip(t *testing.T) {
	d := &GroupDesc{
		BlockBitmap:     10,
		InodeBitmap:     11,
		InodeTable:      12,
		FreeBlocksCount: 100,
		FreeInodesCount: 200,
		UsedDirsCount:   3,
	}
	buf := make([]byte, groupDescSize)
	encodeGroupDesc(d, buf)

	got, err := decodeGroupDesc(buf)
	if err != nil {
		t.Fatalf("decodeGroupDesc: %v", err)
	}
	if *got != *d {
		t.Fatalf("got %+v, want %+v", *got, *d)
	}
}

func TestDecodeGroupDescTooSmall(t *testing.T) {
	_, err := decodeGroupDesc(make([]byte, groupDescSize-1))
	if err == nil {
		t.Fatal("expected an error for an undersized buffer")
	}
}

func TestGroupOfBlockAndInode(t *testing.T) {
	sb := &Superblock{BlocksPerGroup: 100, InodesPerGroup: 50, FirstDataBlock: 1}

	idx, local := groupOfBlock(sb, 1)
	if idx != 0 || local != 0 {
		t.Fatalf("first data block: got (%d,%d), want (0,0)", idx, local)
	}
	idx, local = groupOfBlock(sb, 101)
	if idx != 1 || local != 0 {
		t.Fatalf("first block of group 1: got (%d,%d), want (1,0)", idx, local)
	}

	idx, local = groupOfInode(sb, 1)
	if idx != 0 || local != 0 {
		t.Fatalf("inode 1: got (%d,%d), want (0,0)", idx, local)
	}
	idx, local = groupOfInode(sb, 51)
	if idx != 1 || local != 0 {
		t.Fatalf("inode 51: got (%d,%d), want (1,0)", idx, local)
	}
}

func TestWriteGroupSkipsWhenClean(t *testing.T) {
	v := NewMemVolume(4096 * 64)
	sb := &Superblock{LogBlockSize: 0, FirstDataBlock: 1, BlocksPerGroup: 8192, InodesPerGroup: 8192}
	g := &Group{idx: 0, dirty: false, BlockBitmap: make([]byte, 1024), InodeBitmap: make([]byte, 1024)}

	if err := writeGroup(v, sb, g); err != nil {
		t.Fatalf("writeGroup on a clean group should be a no-op, got error: %v", err)
	}
}

func TestGroupDescRoundTripPreservesReservedBytes(t *testing.T) {
	buf := make([]byte, groupDescSize)
	// Simulate reserved trailing bytes that the modeled fields never touch.
	for i := 18; i < groupDescSize; i++ {
		buf[i] = 0xAB
	}
	desc, err := decodeGroupDesc(buf)
	if err != nil {
		t.Fatalf("decodeGroupDesc: %v", err)
	}
	g := &Group{Desc: *desc}
	copy(g.raw[:], buf)

	g.Desc.FreeBlocksCount = 7
	encodeGroupDesc(&g.Desc, g.raw[:])

	for i := 18; i < groupDescSize; i++ {
		if g.raw[i] != 0xAB {
			t.Fatalf("reserved byte %d clobbered: got %#x", i, g.raw[i])
		}
	}
}
