package ext2fs_test

import (
	"io/fs"
	"testing"

	"github.com/KarpelesLab/ext2fs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dirNames(t *testing.T, fsys *ext2fs.Filesystem, dirIno uint32) []string {
	t.Helper()
	entries, err := fsys.ReadDirAll(dirIno)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	return names
}

func TestRemoveFromDirReusesFreedSpace(t *testing.T) {
	fsys, _ := newTestFS(t)

	_, err := fsys.MakeInodeInDir(ext2fs.RootIno, "a.txt", ext2fs.TypeRegular, 0644, ext2fs.Attr{})
	require.NoError(t, err)
	_, err = fsys.MakeInodeInDir(ext2fs.RootIno, "b.txt", ext2fs.TypeRegular, 0644, ext2fs.Attr{})
	require.NoError(t, err)
	before, err := fsys.Stat(ext2fs.RootIno)
	require.NoError(t, err)

	require.NoError(t, fsys.RemoveFromDir(ext2fs.RootIno, "a.txt"))
	assert.NotContains(t, dirNames(t, fsys, ext2fs.RootIno), "a.txt")

	// A new entry reusing the name shouldn't fail even though its
	// tombstone still occupies the same rec_len slot.
	_, err = fsys.MakeInodeInDir(ext2fs.RootIno, "a.txt", ext2fs.TypeRegular, 0644, ext2fs.Attr{})
	require.NoError(t, err)
	assert.Contains(t, dirNames(t, fsys, ext2fs.RootIno), "a.txt")

	// The new entry lands in the freed slot, so the directory stream
	// does not grow.
	after, err := fsys.Stat(ext2fs.RootIno)
	require.NoError(t, err)
	assert.Equal(t, before.Size, after.Size)
}

func TestRemoveFromDirNonexistentFails(t *testing.T) {
	fsys, _ := newTestFS(t)
	err := fsys.RemoveFromDir(ext2fs.RootIno, "nope.txt")
	assert.Error(t, err)
}

func TestMoveBetweenDirsRenamesWithinSameDir(t *testing.T) {
	fsys, _ := newTestFS(t)
	_, err := fsys.MakeInodeInDir(ext2fs.RootIno, "old.txt", ext2fs.TypeRegular, 0644, ext2fs.Attr{})
	require.NoError(t, err)

	require.NoError(t, fsys.MoveBetweenDirs(ext2fs.RootIno, "old.txt", ext2fs.RootIno, "new.txt"))

	names := dirNames(t, fsys, ext2fs.RootIno)
	assert.Contains(t, names, "new.txt")
	assert.NotContains(t, names, "old.txt")
}

func TestMoveBetweenDirsAcrossDirectories(t *testing.T) {
	fsys, _ := newTestFS(t)
	sub, err := fsys.MakeInodeInDir(ext2fs.RootIno, "sub", ext2fs.TypeDir, fs.ModeDir|0755, ext2fs.Attr{})
	require.NoError(t, err)
	in, err := fsys.MakeInodeInDir(ext2fs.RootIno, "file.txt", ext2fs.TypeRegular, 0644, ext2fs.Attr{})
	require.NoError(t, err)

	require.NoError(t, fsys.MoveBetweenDirs(ext2fs.RootIno, "file.txt", sub.Ino, "file.txt"))

	assert.NotContains(t, dirNames(t, fsys, ext2fs.RootIno), "file.txt")
	assert.Contains(t, dirNames(t, fsys, sub.Ino), "file.txt")

	got, err := fsys.Lookup(sub.Ino, "file.txt")
	require.NoError(t, err)
	assert.Equal(t, in.Ino, got)
}

func TestMoveBetweenDirsOverwritesExistingTarget(t *testing.T) {
	fsys, _ := newTestFS(t)
	src, err := fsys.MakeInodeInDir(ext2fs.RootIno, "src.txt", ext2fs.TypeRegular, 0644, ext2fs.Attr{})
	require.NoError(t, err)
	_, err = fsys.MakeInodeInDir(ext2fs.RootIno, "dst.txt", ext2fs.TypeRegular, 0644, ext2fs.Attr{})
	require.NoError(t, err)

	require.NoError(t, fsys.MoveBetweenDirs(ext2fs.RootIno, "src.txt", ext2fs.RootIno, "dst.txt"))

	got, err := fsys.Lookup(ext2fs.RootIno, "dst.txt")
	require.NoError(t, err)
	assert.Equal(t, src.Ino, got)
}

func TestMakeHardlinkInDirSharesInode(t *testing.T) {
	fsys, _ := newTestFS(t)
	in, err := fsys.MakeInodeInDir(ext2fs.RootIno, "orig.txt", ext2fs.TypeRegular, 0644, ext2fs.Attr{})
	require.NoError(t, err)

	require.NoError(t, fsys.MakeHardlinkInDir(ext2fs.RootIno, "link.txt", in.Ino))

	got, err := fsys.Lookup(ext2fs.RootIno, "link.txt")
	require.NoError(t, err)
	assert.Equal(t, in.Ino, got)

	st, err := fsys.Stat(in.Ino)
	require.NoError(t, err)
	assert.Equal(t, uint16(2), st.LinksCount)
}

func TestMakeHardlinkOfDirectoryFails(t *testing.T) {
	fsys, _ := newTestFS(t)
	sub, err := fsys.MakeInodeInDir(ext2fs.RootIno, "sub", ext2fs.TypeDir, fs.ModeDir|0755, ext2fs.Attr{})
	require.NoError(t, err)

	err = fsys.MakeHardlinkInDir(ext2fs.RootIno, "sub2", sub.Ino)
	assert.Error(t, err)
}

func TestRemoveDirectoryRequiresEmpty(t *testing.T) {
	fsys, _ := newTestFS(t)
	sub, err := fsys.MakeInodeInDir(ext2fs.RootIno, "sub", ext2fs.TypeDir, fs.ModeDir|0755, ext2fs.Attr{})
	require.NoError(t, err)
	_, err = fsys.MakeInodeInDir(sub.Ino, "file.txt", ext2fs.TypeRegular, 0644, ext2fs.Attr{})
	require.NoError(t, err)

	assert.Error(t, fsys.RemoveFromDir(ext2fs.RootIno, "sub"))

	require.NoError(t, fsys.RemoveFromDir(sub.Ino, "file.txt"))
	require.NoError(t, fsys.RemoveFromDir(ext2fs.RootIno, "sub"))

	assert.NotContains(t, dirNames(t, fsys, ext2fs.RootIno), "sub")
}
