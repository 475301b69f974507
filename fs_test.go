package ext2fs_test

import (
	"io/fs"
	"testing"

	"github.com/KarpelesLab/ext2fs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFS(t *testing.T) (*ext2fs.Filesystem, ext2fs.Volume) {
	t.Helper()
	v := ext2fs.NewMemVolume(0)
	built, _, err := ext2fs.Mkfs(v, ext2fs.MkfsOptions{TotalBlocks: 4096, BlockSize: 1024})
	require.NoError(t, err)
	require.NoError(t, built.Close())

	fsys, err := ext2fs.Mount(v)
	require.NoError(t, err)
	t.Cleanup(func() { fsys.Close() })
	return fsys, v
}

func TestCreateWriteReadRegularFile(t *testing.T) {
	fsys, _ := newTestFS(t)

	attr := ext2fs.Attr{Uid: 1000, Gid: 1000}
	in, err := fsys.MakeInodeInDir(ext2fs.RootIno, "hello.txt", ext2fs.TypeRegular, 0644, attr)
	require.NoError(t, err)

	h, err := fsys.OpenFile(in.Ino)
	require.NoError(t, err)
	n, err := h.Write(0, []byte("hello, ext2"))
	require.NoError(t, err)
	assert.Equal(t, 11, n)
	require.NoError(t, h.Close())

	buf := make([]byte, 11)
	h2, err := fsys.OpenFile(in.Ino)
	require.NoError(t, err)
	n, err = h2.Read(0, buf)
	require.NoError(t, err)
	assert.Equal(t, "hello, ext2", string(buf[:n]))

	ino, err := fsys.Lookup(ext2fs.RootIno, "hello.txt")
	require.NoError(t, err)
	assert.Equal(t, in.Ino, ino)
}

func TestWriteSpanningMultipleBlocks(t *testing.T) {
	fsys, _ := newTestFS(t)
	in, err := fsys.MakeInodeInDir(ext2fs.RootIno, "big.bin", ext2fs.TypeRegular, 0644, ext2fs.Attr{})
	require.NoError(t, err)

	data := make([]byte, 5000)
	for i := range data {
		data[i] = byte(i % 251)
	}
	h, err := fsys.OpenFile(in.Ino)
	require.NoError(t, err)
	_, err = h.Write(0, data)
	require.NoError(t, err)
	require.NoError(t, h.Close())

	buf := make([]byte, len(data))
	h2, _ := fsys.OpenFile(in.Ino)
	n, err := h2.Read(0, buf)
	require.NoError(t, err)
	assert.Equal(t, data, buf[:n])
}

func TestMakeDirAndList(t *testing.T) {
	fsys, _ := newTestFS(t)
	sub, err := fsys.MakeInodeInDir(ext2fs.RootIno, "sub", ext2fs.TypeDir, fs.ModeDir|0755, ext2fs.Attr{})
	require.NoError(t, err)

	_, err = fsys.MakeInodeInDir(sub.Ino, "a.txt", ext2fs.TypeRegular, 0644, ext2fs.Attr{})
	require.NoError(t, err)
	_, err = fsys.MakeInodeInDir(sub.Ino, "b.txt", ext2fs.TypeRegular, 0644, ext2fs.Attr{})
	require.NoError(t, err)

	entries, err := fsys.ReadDirAll(sub.Ino)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	assert.ElementsMatch(t, []string{".", "..", "a.txt", "b.txt"}, names)
}

func TestRemoveFromDir(t *testing.T) {
	fsys, _ := newTestFS(t)
	in, err := fsys.MakeInodeInDir(ext2fs.RootIno, "doomed.txt", ext2fs.TypeRegular, 0644, ext2fs.Attr{})
	require.NoError(t, err)

	require.NoError(t, fsys.RemoveFromDir(ext2fs.RootIno, "doomed.txt"))
	_, err = fsys.Lookup(ext2fs.RootIno, "doomed.txt")
	assert.ErrorIs(t, err, ext2fs.NotFound)

	_, err = fsys.Stat(in.Ino)
	require.NoError(t, err) // cache still holds it until evicted; dtime should now be set
}

func TestRenameOverwritesExistingTarget(t *testing.T) {
	fsys, _ := newTestFS(t)
	src, err := fsys.MakeInodeInDir(ext2fs.RootIno, "src.txt", ext2fs.TypeRegular, 0644, ext2fs.Attr{})
	require.NoError(t, err)
	_, err = fsys.MakeInodeInDir(ext2fs.RootIno, "dst.txt", ext2fs.TypeRegular, 0644, ext2fs.Attr{})
	require.NoError(t, err)

	require.NoError(t, fsys.MoveBetweenDirs(ext2fs.RootIno, "src.txt", ext2fs.RootIno, "dst.txt"))

	ino, err := fsys.Lookup(ext2fs.RootIno, "dst.txt")
	require.NoError(t, err)
	assert.Equal(t, src.Ino, ino)

	_, err = fsys.Lookup(ext2fs.RootIno, "src.txt")
	assert.ErrorIs(t, err, ext2fs.NotFound)
}

func TestSymlinkFastAndLong(t *testing.T) {
	fsys, _ := newTestFS(t)

	short, err := fsys.MakeSymlinkInDir(ext2fs.RootIno, "short", "target", ext2fs.Attr{})
	require.NoError(t, err)
	target, err := fsys.ReadLink(short.Ino)
	require.NoError(t, err)
	assert.Equal(t, "target", target)

	longTarget := ""
	for i := 0; i < 10; i++ {
		longTarget += "/very/long/path/segment"
	}
	long, err := fsys.MakeSymlinkInDir(ext2fs.RootIno, "long", longTarget, ext2fs.Attr{})
	require.NoError(t, err)
	got, err := fsys.ReadLink(long.Ino)
	require.NoError(t, err)
	assert.Equal(t, longTarget, got)
}

func TestTruncateShrinksAndFreesBlocks(t *testing.T) {
	fsys, _ := newTestFS(t)
	in, err := fsys.MakeInodeInDir(ext2fs.RootIno, "shrink.bin", ext2fs.TypeRegular, 0644, ext2fs.Attr{})
	require.NoError(t, err)

	h, _ := fsys.OpenFile(in.Ino)
	_, err = h.Write(0, make([]byte, 4096))
	require.NoError(t, err)
	require.NoError(t, h.Close())

	require.NoError(t, fsys.TruncateInodeSize(in.Ino, 100))
	st, err := fsys.Stat(in.Ino)
	require.NoError(t, err)
	assert.EqualValues(t, 100, st.Size)
	// Only the first 1024-byte block survives: two 512-byte sectors.
	assert.EqualValues(t, 2, st.Size512)
}

func TestHardlinkRejectsDirectories(t *testing.T) {
	fsys, _ := newTestFS(t)
	sub, err := fsys.MakeInodeInDir(ext2fs.RootIno, "d", ext2fs.TypeDir, fs.ModeDir|0755, ext2fs.Attr{})
	require.NoError(t, err)

	err = fsys.MakeHardlinkInDir(ext2fs.RootIno, "d2", sub.Ino)
	assert.ErrorIs(t, err, ext2fs.BadArgument)
}
