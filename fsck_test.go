package ext2fs_test

import (
	"testing"

	"github.com/KarpelesLab/ext2fs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFsckCleanImageHasNoViolations(t *testing.T) {
	fsys, _ := newTestFS(t)

	_, err := fsys.MakeInodeInDir(ext2fs.RootIno, "a.txt", ext2fs.TypeRegular, 0644, ext2fs.Attr{})
	require.NoError(t, err)

	violations, err := fsys.Fsck()
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestFsckAfterDeepTruncateToZeroReclaimsIndirectLeaves(t *testing.T) {
	fsys, _ := newTestFS(t)

	in, err := fsys.MakeInodeInDir(ext2fs.RootIno, "deep.bin", ext2fs.TypeRegular, 0644, ext2fs.Attr{})
	require.NoError(t, err)
	freeBefore := fsys.Superblock().FreeBlocksCount

	// 1024-byte blocks: 12 direct blocks cover 12KiB, so 40KiB forces
	// the write through the singly-indirect block at Block[12].
	data := make([]byte, 40*1024)
	h, err := fsys.OpenFile(in.Ino)
	require.NoError(t, err)
	_, err = h.Write(0, data)
	require.NoError(t, err)
	require.NoError(t, h.Close())

	require.NoError(t, fsys.TruncateInodeSize(in.Ino, 0))
	assert.Equal(t, freeBefore, fsys.Superblock().FreeBlocksCount, "truncating to zero must free the indirect block and every leaf under it")

	violations, err := fsys.Fsck()
	require.NoError(t, err)
	assert.Empty(t, violations, "truncating past the direct blocks must free every indirect leaf block")
}

func TestFsckAfterRemoveStillClean(t *testing.T) {
	fsys, _ := newTestFS(t)

	_, err := fsys.MakeInodeInDir(ext2fs.RootIno, "a.txt", ext2fs.TypeRegular, 0644, ext2fs.Attr{})
	require.NoError(t, err)
	require.NoError(t, fsys.RemoveFromDir(ext2fs.RootIno, "a.txt"))

	violations, err := fsys.Fsck()
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestGroupSummariesMatchFsckInputs(t *testing.T) {
	fsys, _ := newTestFS(t)

	summaries := fsys.GroupSummaries()
	require.NotEmpty(t, summaries)
	for i, s := range summaries {
		assert.Equal(t, uint32(i), s.Index)
	}
}

func TestViolationStringFormatsGroupIndex(t *testing.T) {
	v := ext2fs.Violation{Group: 3, Message: "boom"}
	assert.Equal(t, "group 3: boom", v.String())

	global := ext2fs.Violation{Group: -1, Message: "global boom"}
	assert.Equal(t, "global boom", global.String())
}
