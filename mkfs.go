package ext2fs

import (
	"io"
	iofs "io/fs"
	"path"

	"github.com/google/uuid"
)

// MkfsOptions configures a freshly formatted image, analogous to the
// teacher's Writer's block-size/compression/flags knobs in writer.go —
// adapted since ext2 has a fixed on-disk layout rather than a
// compressed table writer requiring a multi-pass Finalize().
type MkfsOptions struct {
	// TotalBlocks is the image size expressed in block_size units.
	TotalBlocks uint32
	// BlockSize must be a power of two in {1024, 2048, 4096}.
	BlockSize uint32
	// InodesPerGroup controls the inode table size per group; 0 picks a
	// modest default sized off BlocksPerGroup.
	InodesPerGroup uint32
	// VolumeLabel is not written to the image (ext2's modeled superblock
	// subset carries no on-disk label field); the CLI reports it next to
	// the fresh google/uuid volume id that Mkfs returns.
	VolumeLabel string
}

func logBlockSize(bs uint32) uint32 {
	n := uint32(0)
	for v := bs; v > 1024; v >>= 1 {
		n++
	}
	return n
}

// Mkfs formats v as a fresh, empty ext2-compatible image: it writes the
// superblock, the group descriptor table, zeroed block/inode bitmaps
// with their reserved metadata blocks pre-marked used, an empty inode
// table, and a root directory inode containing only `.`/`..`. It
// returns a freshly mounted, read-write Filesystem over the result
// (structurally the same "build, then hand back a live mount" shape as
// writer.go's Finalize, minus the compressed-table bookkeeping that has
// no ext2 equivalent).
func Mkfs(v Volume, opts MkfsOptions) (*Filesystem, uuid.UUID, error) {
	bs := opts.BlockSize
	if bs == 0 {
		bs = 1024
	}
	blocksPerGroup := bs * 8 // one block's worth of bitmap bits
	inodesPerGroup := opts.InodesPerGroup
	if inodesPerGroup == 0 {
		inodesPerGroup = blocksPerGroup / 4
	}
	total := opts.TotalBlocks
	groupCount := (total + blocksPerGroup - 1) / blocksPerGroup

	firstDataBlock := uint32(1)
	if bs > 1024 {
		firstDataBlock = 0
	}

	inodeSize := uint16(128)
	inodeTableBlocksPerGroup := (inodesPerGroup*uint32(inodeSize) + bs - 1) / bs

	volID := uuid.New()

	sb := &Superblock{
		BlocksCount:     total,
		FreeBlocksCount: 0, // filled in below once layout is known
		FreeInodesCount: 0, // filled in below from the group counters
		FirstDataBlock:  firstDataBlock,
		LogBlockSize:    logBlockSize(bs),
		BlocksPerGroup:  blocksPerGroup,
		InodesPerGroup:  inodesPerGroup,
		State:           StateClean,
		RevLevel:        1,
		FirstIno:        11,
		InodeSize:       inodeSize,
		FeatureIncompat: FeatureFiletype,
	}

	// Per-group layout: [superblock block + group desc table block(s) only
	// in group 0] then per-group [block bitmap][inode bitmap][inode
	// table][data blocks...].
	groupDescBlocks := (groupCount*groupDescSize + bs - 1) / bs
	metaBlocksPerGroup := 2 + inodeTableBlocksPerGroup

	groups := make([]*Group, groupCount)
	var freeBlocksTotal, freeInodesTotal uint32
	for i := uint32(0); i < groupCount; i++ {
		groupStart := firstDataBlock + i*blocksPerGroup
		base := groupStart
		if i == 0 {
			base += 1 + groupDescBlocks
		}

		bbBlock := base
		ibBlock := base + 1
		itBlock := base + 2

		blockBitmap := make([]byte, bs)
		inodeBitmap := make([]byte, bs)

		reservedInGroup := metaBlocksPerGroup
		if i == 0 {
			reservedInGroup += 1 + groupDescBlocks
		}
		groupBlockCount := blocksPerGroup
		if i == groupCount-1 {
			last := total - groupStart
			if last < groupBlockCount {
				groupBlockCount = last
			}
		}
		if groupBlockCount <= reservedInGroup {
			return nil, uuid.Nil, newErr(KindBadArgument, "mkfs: image too small for its group metadata")
		}
		for b := uint32(0); b < groupBlockCount; b++ {
			if b < reservedInGroup {
				setBit(blockBitmap, b)
			}
		}
		// Any bits beyond this group's actual block count (short last
		// group) read as permanently "used" so the allocator never hands
		// them out.
		for b := groupBlockCount; b < blocksPerGroup; b++ {
			setBit(blockBitmap, b)
		}

		freeInGroup := groupBlockCount - reservedInGroup

		if i == 0 {
			// inode 1 (reserved) + root (inode 2) + the reserved range up
			// to first_ino are pre-marked used.
			for n := uint32(0); n < sb.FirstIno; n++ {
				setBit(inodeBitmap, n)
			}
		}
		for n := inodesPerGroup; n < bs*8; n++ {
			setBit(inodeBitmap, n)
		}

		g := &Group{
			idx: i,
			Desc: GroupDesc{
				BlockBitmap:     bbBlock,
				InodeBitmap:     ibBlock,
				InodeTable:      itBlock,
				FreeBlocksCount: uint16(freeInGroup),
				FreeInodesCount: uint16(inodesPerGroup),
			},
			BlockBitmap: blockBitmap,
			InodeBitmap: inodeBitmap,
			dirty:       true,
		}
		if i == 0 {
			// The first_ino reserved inodes (root included) marked above.
			g.Desc.FreeInodesCount -= uint16(sb.FirstIno)
			g.Desc.UsedDirsCount = 1
		}
		groups[i] = g
		freeBlocksTotal += freeInGroup
		freeInodesTotal += uint32(g.Desc.FreeInodesCount)
	}
	sb.FreeBlocksCount = freeBlocksTotal
	sb.FreeInodesCount = freeInodesTotal
	sb.dirty = true

	for i := uint32(0); i < groupCount; i++ {
		if err := writeGroup(v, sb, groups[i]); err != nil {
			return nil, uuid.Nil, err
		}
	}

	// Zero the inode tables so stray bytes don't decode as garbage
	// inodes later.
	zero := make([]byte, bs)
	for i := uint32(0); i < groupCount; i++ {
		tableBytes := int64(inodeTableBlocksPerGroup) * int64(bs)
		off := int64(groups[i].Desc.InodeTable) * int64(bs)
		for w := int64(0); w < tableBytes; w += int64(bs) {
			if err := volWrite(v, off+w, zero); err != nil {
				return nil, uuid.Nil, err
			}
		}
	}

	if err := volWrite(v, superblockOffset, sb.encode()); err != nil {
		return nil, uuid.Nil, err
	}

	fs, err := Mount(v)
	if err != nil {
		return nil, uuid.Nil, err
	}

	root := &Inode{
		Ino:        RootIno,
		FileType:   TypeDir,
		Perm:       0755,
		LinksCount: 0,
	}
	fs.updateInode(root)
	if err := fs.initDir(root, root); err != nil {
		return nil, uuid.Nil, err
	}

	return fs, volID, nil
}

// PopulateFromFS walks src and recreates its tree under dirIno using
// fs's own top-level operations. Only regular files and directories are
// recreated; symlinks are skipped, and device nodes and sockets have no
// io/fs.FS representation to source from.
func PopulateFromFS(fs *Filesystem, dirIno uint32, src iofs.FS, root string) error {
	entries, err := iofs.ReadDir(src, root)
	if err != nil {
		return err
	}
	now := now32()
	attr := Attr{Atime: now, Ctime: now, Mtime: now}

	for _, e := range entries {
		p := path.Join(root, e.Name())
		info, err := e.Info()
		if err != nil {
			return err
		}

		if e.IsDir() {
			in, err := fs.MakeInodeInDir(dirIno, e.Name(), TypeDir, info.Mode().Perm()|iofs.ModeDir, attr)
			if err != nil {
				return err
			}
			if err := PopulateFromFS(fs, in.Ino, src, p); err != nil {
				return err
			}
			continue
		}

		if info.Mode()&iofs.ModeSymlink != 0 {
			// io/fs has no ReadLink; skip symlinks sourced from a plain
			// fs.FS (callers populating from an OS directory should use
			// os.Readlink and MakeSymlinkInDir directly instead).
			continue
		}

		in, err := fs.MakeInodeInDir(dirIno, e.Name(), TypeRegular, info.Mode().Perm(), attr)
		if err != nil {
			return err
		}
		r, err := src.Open(p)
		if err != nil {
			return err
		}
		if err := copyInto(fs, in.Ino, r); err != nil {
			r.Close()
			return err
		}
		r.Close()
	}
	return nil
}

func copyInto(fs *Filesystem, ino uint32, r io.Reader) error {
	h, err := fs.OpenFile(ino)
	if err != nil {
		return err
	}
	defer h.Close()

	buf := make([]byte, fs.BlockSize())
	var offset uint64
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			if _, werr := h.Write(offset, buf[:n]); werr != nil {
				return werr
			}
			offset += uint64(n)
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return rerr
		}
	}
}
