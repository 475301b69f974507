//go:build fuse

package ext2fs

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/hanwen/go-fuse/v2/fuse"
)

// FuseBridge adapts a mounted Filesystem to go-fuse's low-level
// fuse.RawFileSystem-adjacent callback surface, grounded on the
// teacher's inode_fuse.go and original source's examples/fuse.rs (the
// complete of its two FUSE example generations; fuse_fs.rs's method
// set is fully TODO-stubbed and only confirms which calls a bridge
// needs).
//
// Host-visible inode numbers never coincide with ext2's own numbering
// by accident: FUSE reserves 1 for the mount root, while ext2 reserves
// 2, so the bridge swaps those two values in both directions exactly
// as fuse.rs's ext2_ino/fuse_ino helpers do.
type FuseBridge struct {
	fs *Filesystem

	mu   sync.Mutex
	dirs map[uint64]*DirHandle
	next uint64
}

// NewFuseBridge wraps an already-mounted Filesystem.
func NewFuseBridge(fs *Filesystem) *FuseBridge {
	return &FuseBridge{fs: fs, dirs: make(map[uint64]*DirHandle)}
}

func fuseIno(ino uint32) uint64 {
	switch ino {
	case RootIno:
		return 1
	case 1:
		return uint64(RootIno)
	default:
		return uint64(ino)
	}
}

func ext2Ino(fino uint64) uint32 {
	switch fino {
	case 1:
		return RootIno
	case uint64(RootIno):
		return 1
	default:
		return uint32(fino)
	}
}

// Lookup resolves name within the directory identified by the
// FUSE-space parent inode number.
func (b *FuseBridge) Lookup(_ context.Context, parent uint64, name string) (*fuse.EntryOut, error) {
	ino, err := b.fs.Lookup(ext2Ino(parent), name)
	if err != nil {
		return nil, os.ErrNotExist
	}
	in, err := b.fs.Stat(ino)
	if err != nil {
		return nil, err
	}
	out := new(fuse.EntryOut)
	fillEntryOut(&in, out)
	return out, nil
}

// GetAttr fills a fuse.AttrOut for the given FUSE-space inode number.
func (b *FuseBridge) GetAttr(fino uint64) (*fuse.AttrOut, error) {
	in, err := b.fs.Stat(ext2Ino(fino))
	if err != nil {
		return nil, err
	}
	out := new(fuse.AttrOut)
	fillAttr(&in, fuseIno(in.Ino), &out.Attr)
	out.SetTimeout(time.Second)
	return out, nil
}

// OpenDir validates that fino names a directory and allocates a handle.
func (b *FuseBridge) OpenDir(fino uint64) (uint64, error) {
	h, err := b.fs.OpenDir(ext2Ino(fino))
	if err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	b.dirs[b.next] = h
	return b.next, nil
}

// ReadDir drains dh's remaining entries into out, honoring fuse's dirent
// continuation protocol loosely (a one-shot bridge is sufficient for
// illustrative mounts; a production bridge would track input.Offset
// precisely as inode_fuse.go does).
func (b *FuseBridge) ReadDir(dh uint64, out *fuse.DirEntryList) error {
	b.mu.Lock()
	h, ok := b.dirs[dh]
	b.mu.Unlock()
	if !ok {
		return os.ErrInvalid
	}
	for {
		e, err := h.ReadDir()
		if err != nil {
			return err
		}
		if e == nil {
			return nil
		}
		mode := fileTypeUnixBits(e.FileType)
		if !out.Add(0, e.Name, fuseIno(e.Ino), mode) {
			return nil
		}
	}
}

// ReleaseDir drops a directory handle allocated by OpenDir.
func (b *FuseBridge) ReleaseDir(dh uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h, ok := b.dirs[dh]
	if !ok {
		return
	}
	h.Close()
	delete(b.dirs, dh)
}

// Open validates fino names a regular file and returns a fuse file
// handle: the file's ext2 inode number, reused directly as the fuse fh.
func (b *FuseBridge) Open(fino uint64) (uint64, uint32, error) {
	h, err := b.fs.OpenFile(ext2Ino(fino))
	if err != nil {
		return 0, 0, err
	}
	flags := fuse.FOPEN_KEEP_CACHE
	if b.fs.ReadOnly() {
		return uint64(h.Ino), uint32(flags), nil
	}
	return uint64(h.Ino), uint32(flags), nil
}

// Read services a fuse read callback by delegating to the mounted
// Filesystem's file-data path.
func (b *FuseBridge) Read(fino uint64, offset uint64, dest []byte) (int, error) {
	in, err := b.fs.Stat(ext2Ino(fino))
	if err != nil {
		return 0, err
	}
	n, err := b.fs.readInodeData(&in, offset, dest)
	if err == io.EOF {
		err = nil
	}
	return n, err
}

func fillEntryOut(in *Inode, entry *fuse.EntryOut) {
	entry.NodeId = fuseIno(in.Ino)
	entry.Attr.Ino = entry.NodeId
	fillAttr(in, entry.NodeId, &entry.Attr)
	entry.SetEntryTimeout(time.Second)
	entry.SetAttrTimeout(time.Second)
}

func fillAttr(in *Inode, fino uint64, attr *fuse.Attr) {
	attr.Ino = fino
	attr.Size = in.Size
	attr.Blocks = uint64(in.Size512)
	attr.Mode = uint32(in.FSMode().Perm()) | fileTypeUnixBits(in.FileType)
	attr.Nlink = uint32(in.LinksCount)
	attr.Atime = uint64(in.Attr.Atime)
	attr.Mtime = uint64(in.Attr.Mtime)
	attr.Ctime = uint64(in.Attr.Ctime)
	attr.Owner.Uid = in.Attr.Uid
	attr.Owner.Gid = in.Attr.Gid
}

func fileTypeUnixBits(t FileType) uint32 {
	nibble, err := modeNibbleFromFileType(t)
	if err != nil {
		return 0
	}
	return uint32(nibble)
}
