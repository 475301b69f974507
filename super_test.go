package ext2fs_test

import (
	"testing"

	"github.com/KarpelesLab/ext2fs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMkfsThenMountRoundTrip(t *testing.T) {
	v := ext2fs.NewMemVolume(0)
	built, _, err := ext2fs.Mkfs(v, ext2fs.MkfsOptions{TotalBlocks: 2048, BlockSize: 1024})
	require.NoError(t, err)
	require.NoError(t, built.Close())

	fs, err := ext2fs.Mount(v)
	require.NoError(t, err)
	defer fs.Close()

	sb := fs.Superblock()
	assert.EqualValues(t, 2048, sb.BlocksCount)
	assert.EqualValues(t, 1024, sb.BlockSize())
	assert.Equal(t, ext2fs.StateDirty, int(sb.State))
}

func TestMountRefusesAlreadyDirtyImage(t *testing.T) {
	v := ext2fs.NewMemVolume(0)
	built, _, err := ext2fs.Mkfs(v, ext2fs.MkfsOptions{TotalBlocks: 2048, BlockSize: 1024})
	require.NoError(t, err)
	// Leave the image dirty (skip Close) and try to mount read-write again.
	_ = built

	_, err = ext2fs.Mount(v)
	assert.ErrorIs(t, err, ext2fs.BadFormat)
}

func TestMountReadOnlyToleratesDirtyState(t *testing.T) {
	v := ext2fs.NewMemVolume(0)
	built, _, err := ext2fs.Mkfs(v, ext2fs.MkfsOptions{TotalBlocks: 2048, BlockSize: 1024})
	require.NoError(t, err)
	_ = built // state stays dirty

	fs, err := ext2fs.MountReadOnly(v)
	require.NoError(t, err)
	assert.True(t, fs.ReadOnly())
}
