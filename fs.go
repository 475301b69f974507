package ext2fs

import (
	"container/list"
	"time"

	"github.com/sirupsen/logrus"
)

// RootIno is the inode number of the filesystem root directory.
const RootIno = 2

// Filesystem is a single exclusive mount of an ext2-compatible image. It
// owns the Volume, the decoded superblock, every group's descriptor and
// bitmaps, the inode cache, and the open file/directory handle tables.
//
// Filesystem is not safe for concurrent use: the contract is a single
// writer performing synchronous, blocking operations, matching §5 of the
// design document. Wrap a Filesystem in an external mutex if multiple
// goroutines must share one mount.
type Filesystem struct {
	vol      Volume
	sb       *Superblock
	groups   []*Group
	readOnly bool
	log      *logrus.Logger

	cache      map[uint32]*Inode
	dirtyInos  map[uint32]bool
	evictQueue *list.List
	evictElem  map[uint32]*list.Element
	reused     map[uint32]bool
	cacheLimit int

	files map[uint64]*FileHandle
	dirs  map[uint64]*DirHandle
	nextH uint64
}

// defaultCacheLimit is the "small fixed bound (≈10)" from §4.5.
const defaultCacheLimit = 10

// Mount opens a read-write mount over v: it decodes and validates the
// superblock, loads every group's descriptor and bitmaps, then flips
// state to dirty and writes the superblock back (§4.3). Mount refuses to
// open an image whose state is already dirty (§1).
func Mount(v Volume, opts ...Option) (*Filesystem, error) {
	return mount(v, false, opts...)
}

// MountReadOnly opens a read-only mount: it performs the same decode and
// validation but never flips state nor accepts mutating calls.
func MountReadOnly(v Volume, opts ...Option) (*Filesystem, error) {
	return mount(v, true, opts...)
}

func mount(v Volume, readOnly bool, opts ...Option) (*Filesystem, error) {
	buf := make([]byte, superblockSize)
	if err := volRead(v, superblockOffset, buf); err != nil {
		return nil, err
	}
	sb, err := decodeSuperblock(buf, readOnly)
	if err != nil {
		return nil, err
	}
	if !readOnly && sb.State == StateDirty {
		return nil, newErr(KindBadFormat, "refusing to mount an image flagged dirty")
	}

	fs := &Filesystem{
		vol:        v,
		sb:         sb,
		readOnly:   readOnly,
		log:        logrus.StandardLogger(),
		cache:      make(map[uint32]*Inode),
		dirtyInos:  make(map[uint32]bool),
		evictQueue: list.New(),
		evictElem:  make(map[uint32]*list.Element),
		reused:     make(map[uint32]bool),
		cacheLimit: defaultCacheLimit,
		files:      make(map[uint64]*FileHandle),
		dirs:       make(map[uint64]*DirHandle),
	}
	for _, o := range opts {
		o(fs)
	}

	n := sb.GroupCount()
	fs.groups = make([]*Group, n)
	for i := uint32(0); i < n; i++ {
		g, err := readGroup(v, sb, i)
		if err != nil {
			return nil, err
		}
		fs.groups[i] = g
	}

	if !readOnly {
		sb.State = StateDirty
		sb.dirty = true
		if err := fs.flushSuperblock(); err != nil {
			return nil, err
		}
	}

	return fs, nil
}

// ReadOnly reports whether fs was mounted read-only.
func (fs *Filesystem) ReadOnly() bool { return fs.readOnly }

// Superblock returns the decoded superblock. The returned value must not
// be mutated by callers.
func (fs *Filesystem) Superblock() *Superblock { return fs.sb }

// BlockSize is a convenience accessor over Superblock().BlockSize().
func (fs *Filesystem) BlockSize() uint64 { return fs.sb.BlockSize() }

func (fs *Filesystem) checkWritable() error {
	if fs.readOnly {
		return newErr(KindBadArgument, "filesystem is mounted read-only")
	}
	return nil
}

// flushSuperblock writes the superblock back to disk if dirty (§4.3).
func (fs *Filesystem) flushSuperblock() error {
	if !fs.sb.dirty {
		return nil
	}
	buf := fs.sb.encode()
	if err := volWrite(fs.vol, superblockOffset, buf); err != nil {
		return err
	}
	fs.sb.dirty = false
	return nil
}

// Flush writes back every dirty inode, then every dirty group, then the
// superblock, mirroring flush_fs in the original source. It does not
// change the mount state flag — call Close (or Unmount) for that.
func (fs *Filesystem) Flush() error {
	for ino := range fs.dirtyInos {
		if err := fs.flushIno(ino); err != nil {
			return err
		}
	}
	for _, g := range fs.groups {
		if err := writeGroup(fs.vol, fs.sb, g); err != nil {
			return err
		}
	}
	return fs.flushSuperblock()
}

// Close flushes all dirty state, marks the image clean (state = 1) if
// this was a read-write mount, and writes the superblock back one last
// time. Close is idempotent; callers are expected to invoke it via
// defer, matching the teacher's own cmd/sqfs lifecycle convention.
func (fs *Filesystem) Close() error {
	if err := fs.Flush(); err != nil {
		return err
	}
	if !fs.readOnly && fs.sb.State != StateClean {
		fs.sb.State = StateClean
		fs.sb.dirty = true
		if err := fs.flushSuperblock(); err != nil {
			return err
		}
	}
	return nil
}

func now32() uint32 {
	return uint32(time.Now().Unix())
}
