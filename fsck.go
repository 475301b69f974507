package ext2fs

import (
	"fmt"

	"golang.org/x/sync/errgroup"
)

// GroupSummary is a read-only snapshot of one block group's descriptor,
// exported for tools (ext2fs info, ext2fs fsck) that sit outside this
// package and so cannot reach the unexported Group slice directly.
type GroupSummary struct {
	Index           uint32
	FreeBlocksCount uint16
	FreeInodesCount uint16
	UsedDirsCount   uint16
}

// GroupSummaries returns one GroupSummary per block group, in group
// order.
func (fs *Filesystem) GroupSummaries() []GroupSummary {
	out := make([]GroupSummary, len(fs.groups))
	for i, g := range fs.groups {
		out[i] = GroupSummary{
			Index:           g.idx,
			FreeBlocksCount: g.Desc.FreeBlocksCount,
			FreeInodesCount: g.Desc.FreeInodesCount,
			UsedDirsCount:   g.Desc.UsedDirsCount,
		}
	}
	return out
}

// Violation describes one consistency check that failed during Fsck.
type Violation struct {
	Group   int
	Message string
}

func (v Violation) String() string {
	if v.Group < 0 {
		return v.Message
	}
	return fmt.Sprintf("group %d: %s", v.Group, v.Message)
}

// Fsck cross-checks every group's bitmaps against its descriptor counters
// and the superblock's global counters, mirroring the allocator
// invariants the core itself relies on (§4.4/§4.5 of the design
// document): a bitmap's count of zero bits must equal the descriptor's
// free count, and the sum of every group's free count must equal the
// superblock's. Per-group checks run concurrently over a bounded pool
// since fsck only reads the already-loaded bitmaps and never mutates the
// mount.
func (fs *Filesystem) Fsck() ([]Violation, error) {
	n := len(fs.groups)
	results := make([][]Violation, n)

	var eg errgroup.Group
	eg.SetLimit(8)
	for i, g := range fs.groups {
		i, g := i, g
		eg.Go(func() error {
			results[i] = fs.checkGroup(g)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var violations []Violation
	var freeBlocks, freeInodes uint64
	for _, gv := range results {
		violations = append(violations, gv...)
	}
	for _, g := range fs.groups {
		freeBlocks += uint64(g.Desc.FreeBlocksCount)
		freeInodes += uint64(g.Desc.FreeInodesCount)
	}
	if freeBlocks != uint64(fs.sb.FreeBlocksCount) {
		violations = append(violations, Violation{-1, fmt.Sprintf(
			"superblock free_blocks_count %d does not match sum of group counters %d",
			fs.sb.FreeBlocksCount, freeBlocks)})
	}
	if freeInodes != uint64(fs.sb.FreeInodesCount) {
		violations = append(violations, Violation{-1, fmt.Sprintf(
			"superblock free_inodes_count %d does not match sum of group counters %d",
			fs.sb.FreeInodesCount, freeInodes)})
	}
	return violations, nil
}

func (fs *Filesystem) checkGroup(g *Group) []Violation {
	var v []Violation
	freeBlocks := countZeroBits(g.BlockBitmap, fs.sb.BlocksPerGroup)
	if freeBlocks != uint32(g.Desc.FreeBlocksCount) {
		v = append(v, Violation{int(g.idx), fmt.Sprintf(
			"block bitmap has %d free bits but descriptor reports %d",
			freeBlocks, g.Desc.FreeBlocksCount)})
	}
	freeInodes := countZeroBits(g.InodeBitmap, fs.sb.InodesPerGroup)
	if freeInodes != uint32(g.Desc.FreeInodesCount) {
		v = append(v, Violation{int(g.idx), fmt.Sprintf(
			"inode bitmap has %d free bits but descriptor reports %d",
			freeInodes, g.Desc.FreeInodesCount)})
	}
	return v
}

// countZeroBits counts zero bits among the first n bits of bm.
func countZeroBits(bm []byte, n uint32) uint32 {
	var count uint32
	for i := uint32(0); i < n; i++ {
		if !testBit(bm, i) {
			count++
		}
	}
	return count
}
