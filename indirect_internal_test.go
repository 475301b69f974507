package ext2fs

import "testing"

func TestComputeBlockPosLevels(t *testing.T) {
	const bs = 1024
	n := uint64(bs / 4) // 256

	cases := []struct {
		b    uint64
		kind blockPosKind
	}{
		{0, posLevel0},
		{11, posLevel0},
		{12, posLevel1},
		{12 + n - 1, posLevel1},
		{12 + n, posLevel2},
		{12 + n + n*n - 1, posLevel2},
		{12 + n + n*n, posLevel3},
	}
	for _, c := range cases {
		got := computeBlockPos(bs, c.b)
		if got.kind != c.kind {
			t.Errorf("computeBlockPos(%d) = %v, want kind %v", c.b, got.kind, c.kind)
		}
	}
}

func TestFindZeroBit(t *testing.T) {
	bm := []byte{0xff, 0xff, 0xfd, 0x00}
	bit, ok := findZeroBit(bm)
	if !ok || bit != 17 {
		t.Errorf("findZeroBit = (%d, %v), want (17, true)", bit, ok)
	}

	full := []byte{0xff, 0xff}
	if _, ok := findZeroBit(full); ok {
		t.Errorf("findZeroBit on full bitmap should report false")
	}
}

func TestSetClearTestBit(t *testing.T) {
	bm := make([]byte, 2)
	setBit(bm, 9)
	if !testBit(bm, 9) {
		t.Fatal("expected bit 9 set")
	}
	clearBit(bm, 9)
	if testBit(bm, 9) {
		t.Fatal("expected bit 9 cleared")
	}
}
