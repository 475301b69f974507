package ext2fs

import (
	"encoding/binary"
	iofs "io/fs"
)

const dirEntryHeaderSize = 8

// DirEntryLine is one decoded directory record, as returned by ReadDir and
// used internally while walking a directory stream.
type DirEntryLine struct {
	Ino      uint32
	FileType FileType
	Name     string
}

func align4(x uint64) uint64 {
	return (x + 3) &^ 3
}

func dirEntrySize(nameLen int) uint64 {
	return dirEntryHeaderSize + uint64(nameLen)
}

func dirEntryFileTypeByte(t FileType) byte {
	switch t {
	case TypeRegular:
		return 1
	case TypeDir:
		return 2
	case TypeCharDev:
		return 3
	case TypeBlockDev:
		return 4
	case TypeFifo:
		return 5
	case TypeSocket:
		return 6
	case TypeSymlink:
		return 7
	default:
		return 0
	}
}

func fileTypeFromDirEntryByte(b byte) FileType {
	switch b {
	case 1:
		return TypeRegular
	case 2:
		return TypeDir
	case 3:
		return TypeCharDev
	case 4:
		return TypeBlockDev
	case 5:
		return TypeFifo
	case 6:
		return TypeSocket
	case 7:
		return TypeSymlink
	default:
		return TypeUnknown
	}
}

// rawDirEntry is the decoded-in-place form of one directory record,
// together with the byte offsets bracketing it.
type rawDirEntry struct {
	offset     uint64
	nextOffset uint64
	ino        uint32
	recLen     uint16
	nameLen    uint8
	fileType   byte
	name       string
}

// readDirEntry reads the 8-byte fixed header plus name at offset within
// in's data, validating rec_len >= 8+name_len (§4.8).
func (fs *Filesystem) readDirEntry(in *Inode, offset uint64) (*rawDirEntry, error) {
	var hdr [dirEntryHeaderSize]byte
	if _, err := fs.readInodeData(in, offset, hdr[:]); err != nil {
		return nil, err
	}
	le := binary.LittleEndian
	e := &rawDirEntry{
		offset:   offset,
		ino:      le.Uint32(hdr[0:4]),
		recLen:   le.Uint16(hdr[4:6]),
		nameLen:  hdr[6],
		fileType: hdr[7],
	}
	if uint64(e.recLen) < dirEntrySize(int(e.nameLen)) {
		return nil, newErr(KindInvalid, "directory rec_len shorter than header+name")
	}
	if e.nameLen > 0 {
		name := make([]byte, e.nameLen)
		if _, err := fs.readInodeData(in, offset+dirEntryHeaderSize, name); err != nil {
			return nil, err
		}
		e.name = string(name)
	}
	e.nextOffset = offset + uint64(e.recLen)
	return e, nil
}

func (fs *Filesystem) writeDirEntry(in *Inode, e *rawDirEntry) error {
	buf := make([]byte, dirEntryHeaderSize+len(e.name))
	le := binary.LittleEndian
	le.PutUint32(buf[0:4], e.ino)
	le.PutUint16(buf[4:6], e.recLen)
	buf[6] = byte(len(e.name))
	buf[7] = e.fileType
	copy(buf[8:], e.name)
	_, err := fs.writeInodeData(in, e.offset, buf)
	return err
}

// writeDirEntryRecLen rewrites just the rec_len field of the entry at
// offset, used when stitching free space during erase/add.
func (fs *Filesystem) writeDirEntryRecLen(in *Inode, offset uint64, recLen uint16) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], recLen)
	_, err := fs.writeInodeData(in, offset+4, buf[:])
	return err
}

// lookupInDir performs a linear scan of dir's entries, skipping
// tombstones (ino == 0), and returns the first entry matching name.
func (fs *Filesystem) lookupInDir(dir *Inode, name string) (uint32, error) {
	if !dir.IsDir() {
		return 0, newErr(KindBadArgument, "lookupInDir: parent is not a directory")
	}
	offset := uint64(0)
	for offset < dir.Size {
		e, err := fs.readDirEntry(dir, offset)
		if err != nil {
			return 0, err
		}
		if e.ino != 0 && e.name == name {
			return e.ino, nil
		}
		offset = e.nextOffset
	}
	return 0, newErr(KindNotFound, "name not found in directory")
}

func spaceInBlock(blockSize, offset uint64) uint64 {
	return blockSize - offset%blockSize
}

// addDirEntry implements the §4.8 add algorithm: rename-in-place on an
// exact name match, otherwise first-fit free-space reuse, otherwise a
// freshly allocated block.
func (fs *Filesystem) addDirEntry(dir *Inode, target *Inode, name string) error {
	if !dir.IsDir() {
		return newErr(KindBadArgument, "addDirEntry: parent is not a directory")
	}
	bs := fs.sb.BlockSize()
	need := dirEntrySize(len(name))

	type freeSlot struct {
		slotStart, prevOffset, nextOffset uint64
	}
	var slot *freeSlot
	var lastOffset uint64

	offset := uint64(0)
	for offset < dir.Size {
		e, err := fs.readDirEntry(dir, offset)
		if err != nil {
			return err
		}

		if e.ino != 0 && e.name == name {
			if e.ino == target.Ino {
				return nil // idempotent add
			}
			prev, err := fs.getInode(e.ino)
			if err == nil {
				if prev.LinksCount > 0 {
					prev.LinksCount--
				}
				if err := fs.maybeUnlinkInode(prev); err != nil {
					return err
				}
			}
			e.ino = target.Ino
			e.fileType = dirEntryFileTypeByte(target.FileType)
			if err := fs.writeDirEntry(dir, e); err != nil {
				return err
			}
			target.LinksCount++
			fs.updateInode(target)
			return nil
		}

		if slot == nil {
			var slotStart uint64
			if e.ino == 0 {
				slotStart = offset
			} else {
				slotStart = align4(offset + dirEntrySize(len(e.name)))
			}
			if slotStart+need <= e.nextOffset && slotStart+need <= offset-offset%bs+bs {
				slot = &freeSlot{slotStart: slotStart, prevOffset: offset, nextOffset: e.nextOffset}
			}
		}

		lastOffset = offset
		offset = e.nextOffset
	}
	_ = spaceInBlock // kept for documentation of the §4.8 space check shape

	if slot != nil {
		newE := &rawDirEntry{
			offset:   slot.slotStart,
			recLen:   uint16(slot.nextOffset - slot.slotStart),
			fileType: dirEntryFileTypeByte(target.FileType),
			ino:      target.Ino,
			name:     name,
		}
		if err := fs.writeDirEntry(dir, newE); err != nil {
			return err
		}
		if err := fs.writeDirEntryRecLen(dir, slot.prevOffset, uint16(slot.slotStart-slot.prevOffset)); err != nil {
			return err
		}
	} else {
		newBlockOffset := (lastOffset/bs + 1) * bs
		if dir.Size == 0 {
			newBlockOffset = 0
		}
		newE := &rawDirEntry{
			offset:   newBlockOffset,
			recLen:   uint16(bs),
			fileType: dirEntryFileTypeByte(target.FileType),
			ino:      target.Ino,
			name:     name,
		}
		if err := fs.writeDirEntry(dir, newE); err != nil {
			return err
		}
	}

	target.LinksCount++
	fs.updateInode(target)
	return nil
}

// eraseDirEntry replaces the entry at offset with a tombstone spanning
// [offset, nextOffset), stitching the previous entry's rec_len when the
// erased entry was not first in its block (§4.8).
func (fs *Filesystem) eraseDirEntry(dir *Inode, offset, prevOffset, nextOffset uint64) error {
	bs := fs.sb.BlockSize()
	tomb := &rawDirEntry{
		offset:   offset,
		recLen:   uint16(nextOffset - offset),
		fileType: 0,
		ino:      0,
		name:     "",
	}
	if err := fs.writeDirEntry(dir, tomb); err != nil {
		return err
	}
	if offset%bs != 0 {
		if err := fs.writeDirEntryRecLen(dir, prevOffset, uint16(nextOffset-prevOffset)); err != nil {
			return err
		}
	}
	return nil
}

// removeFromDir looks up name, unlinks its target, and erases the entry.
func (fs *Filesystem) removeFromDir(dir *Inode, name string) error {
	offset, prevOffset, found, targetIno, err := fs.findEntryForErase(dir, name)
	if err != nil {
		return err
	}
	if !found {
		return newErr(KindNotFound, "removeFromDir: name not found")
	}
	target, err := fs.getInode(targetIno)
	if err != nil {
		return err
	}
	if target.LinksCount > 0 {
		target.LinksCount--
	}
	if err := fs.maybeUnlinkInode(target); err != nil {
		return err
	}
	e, err := fs.readDirEntry(dir, offset)
	if err != nil {
		return err
	}
	return fs.eraseDirEntry(dir, offset, prevOffset, e.nextOffset)
}

// findEntryForErase scans dir for name, returning the offsets erase needs:
// the entry's own offset and the offset of the entry immediately before it
// in the stream (0 when the entry is the very first one, at offset 0).
func (fs *Filesystem) findEntryForErase(dir *Inode, name string) (offset, prevOffset uint64, found bool, ino uint32, err error) {
	prevOffset = 0
	cur := uint64(0)
	for cur < dir.Size {
		e, rerr := fs.readDirEntry(dir, cur)
		if rerr != nil {
			return 0, 0, false, 0, rerr
		}
		if e.ino != 0 && e.name == name {
			return cur, prevOffset, true, e.ino, nil
		}
		prevOffset = cur
		cur = e.nextOffset
	}
	return 0, 0, false, 0, nil
}

// moveBetweenDirs implements rename (§4.8): look up the source entry, add
// it into the target directory (handling a pre-existing target name),
// undo the extra link add_dir_entry created, then erase the source entry.
func (fs *Filesystem) moveBetweenDirs(srcDir *Inode, srcName string, tgtDir *Inode, tgtName string) error {
	if !srcDir.IsDir() || !tgtDir.IsDir() {
		return newErr(KindBadArgument, "moveBetweenDirs: both parents must be directories")
	}
	srcIno, err := fs.lookupInDir(srcDir, srcName)
	if err != nil {
		return err
	}
	target, err := fs.getInode(srcIno)
	if err != nil {
		return err
	}

	if err := fs.addDirEntry(tgtDir, target, tgtName); err != nil {
		return err
	}

	// addDirEntry incremented links_count for the new target reference;
	// undo that before erasing the source record so the net effect of a
	// rename leaves links_count unchanged.
	target, err = fs.getInode(srcIno)
	if err != nil {
		return err
	}
	if target.LinksCount > 0 {
		target.LinksCount--
	}
	fs.updateInode(target)

	offset, prevOffset, found, _, err := fs.findEntryForErase(srcDir, srcName)
	if err != nil {
		return err
	}
	if !found {
		return newErr(KindNotFound, "moveBetweenDirs: source entry vanished mid-rename")
	}
	e, err := fs.readDirEntry(srcDir, offset)
	if err != nil {
		return err
	}
	return fs.eraseDirEntry(srcDir, offset, prevOffset, e.nextOffset)
}

// initDir writes the `.`/`..` entries into a freshly created directory's
// first data block and bumps link counts + the parent group's
// used_dirs_count (§4.8).
func (fs *Filesystem) initDir(dir, parent *Inode) error {
	bs := fs.sb.BlockSize()
	dotLen := align4(dirEntrySize(1))

	dot := &rawDirEntry{offset: 0, recLen: uint16(dotLen), fileType: dirEntryFileTypeByte(TypeDir), ino: dir.Ino, name: "."}
	if err := fs.writeDirEntry(dir, dot); err != nil {
		return err
	}
	dotdot := &rawDirEntry{offset: dotLen, recLen: uint16(bs - dotLen), fileType: dirEntryFileTypeByte(TypeDir), ino: parent.Ino, name: ".."}
	if err := fs.writeDirEntry(dir, dotdot); err != nil {
		return err
	}

	dir.LinksCount++
	parent.LinksCount++
	fs.updateInode(dir)
	fs.updateInode(parent)

	idx, _ := groupOfInode(fs.sb, parent.Ino)
	fs.groups[idx].Desc.UsedDirsCount++
	fs.groups[idx].dirty = true
	return nil
}

// isDirEmpty walks dir; any live entry other than `.`/`..` means not empty.
func (fs *Filesystem) isDirEmpty(dir *Inode) (bool, error) {
	offset := uint64(0)
	for offset < dir.Size {
		e, err := fs.readDirEntry(dir, offset)
		if err != nil {
			return false, err
		}
		if e.ino != 0 && e.name != "." && e.name != ".." {
			return false, nil
		}
		offset = e.nextOffset
	}
	return true, nil
}

// deinitDir tombstones every entry (consuming `.`/`..`), decrements both
// link counts and the parent group's used_dirs_count. Rejects non-empty
// directories (§4.8).
func (fs *Filesystem) deinitDir(dir, parent *Inode) error {
	empty, err := fs.isDirEmpty(dir)
	if err != nil {
		return err
	}
	if !empty {
		return newErr(KindBadArgument, "deinitDir: directory is not empty")
	}

	offset := uint64(0)
	sawDot, sawDotDot := false, false
	for offset < dir.Size {
		e, err := fs.readDirEntry(dir, offset)
		if err != nil {
			return err
		}
		if e.ino != 0 {
			switch e.name {
			case ".":
				if e.ino != dir.Ino {
					return newErr(KindInvalid, "deinitDir: malformed '.' entry")
				}
				sawDot = true
			case "..":
				if e.ino != parent.Ino {
					return newErr(KindInvalid, "deinitDir: malformed '..' entry")
				}
				sawDotDot = true
			}
			e.ino = 0
			e.fileType = 0
			if err := fs.writeDirEntry(dir, e); err != nil {
				return err
			}
		}
		offset = e.nextOffset
	}
	if !sawDot || !sawDotDot {
		return newErr(KindInvalid, "deinitDir: missing '.' or '..'")
	}

	if parent.LinksCount > 0 {
		parent.LinksCount--
	}
	if dir.LinksCount > 0 {
		dir.LinksCount--
	}
	fs.updateInode(dir)
	fs.updateInode(parent)

	idx, _ := groupOfInode(fs.sb, parent.Ino)
	if fs.groups[idx].Desc.UsedDirsCount > 0 {
		fs.groups[idx].Desc.UsedDirsCount--
	}
	fs.groups[idx].dirty = true
	return nil
}

// maybeUnlinkInode destroys in once links_count reaches 0: frees all
// data/indirect blocks (unless a fast symlink), stamps dtime, and clears
// the inode's bitmap bit (§3 lifecycle).
func (fs *Filesystem) maybeUnlinkInode(in *Inode) error {
	if in.LinksCount > 0 {
		fs.updateInode(in)
		return nil
	}
	if !(in.IsSymlink() && isFastSymlink(fs.sb, in)) {
		if err := fs.deallocInodeBlocks(in); err != nil {
			return err
		}
	}
	in.Attr.Dtime = now32()
	fs.updateInode(in)
	fs.deallocInode(in.Ino)
	return nil
}

// DirHandle is an opaque cursor over an open directory's entry stream,
// returned by OpenDir. Offset is a byte position within the directory's
// logical data (§3).
type DirHandle struct {
	fs     *Filesystem
	Ino    uint32
	Offset uint64
}

// OpenDir validates that ino names a directory and returns a cursor
// positioned at the start of its entry stream.
func (fs *Filesystem) OpenDir(ino uint32) (*DirHandle, error) {
	in, err := fs.getInode(ino)
	if err != nil {
		return nil, err
	}
	if !in.IsDir() {
		return nil, newErr(KindBadArgument, "OpenDir: inode is not a directory")
	}
	h := &DirHandle{fs: fs, Ino: ino}
	fs.nextH++
	fs.dirs[fs.nextH] = h
	return h, nil
}

// ReadDir advances the cursor past the next live (non-tombstone) entry
// and returns it, or (nil, nil) at end of stream.
func (h *DirHandle) ReadDir() (*DirEntryLine, error) {
	in, err := h.fs.getInode(h.Ino)
	if err != nil {
		return nil, err
	}
	for h.Offset < in.Size {
		e, err := h.fs.readDirEntry(in, h.Offset)
		if err != nil {
			return nil, err
		}
		h.Offset = e.nextOffset
		if e.ino == 0 {
			continue
		}
		return &DirEntryLine{Ino: e.ino, FileType: fileTypeFromDirEntryByte(e.fileType), Name: e.name}, nil
	}
	return nil, nil
}

// Close drops the handle; directories carry no separate flush step beyond
// whatever inode flush a prior write already triggered.
func (h *DirHandle) Close() error {
	return nil
}

// ReadDirAll drains every remaining live entry from h, a convenience used
// by the CLI and the FUSE bridge.
func (fs *Filesystem) ReadDirAll(ino uint32) ([]DirEntryLine, error) {
	h, err := fs.OpenDir(ino)
	if err != nil {
		return nil, err
	}
	defer h.Close()
	var out []DirEntryLine
	for {
		e, err := h.ReadDir()
		if err != nil {
			return out, err
		}
		if e == nil {
			return out, nil
		}
		out = append(out, *e)
	}
}

// Ensure FileType maps sensibly onto io/fs's type bits for callers that
// want to build an fs.FileMode from a DirEntryLine.
func (t FileType) fsMode() iofs.FileMode {
	switch t {
	case TypeDir:
		return iofs.ModeDir
	case TypeSymlink:
		return iofs.ModeSymlink
	case TypeCharDev:
		return iofs.ModeCharDevice
	case TypeBlockDev:
		return iofs.ModeDevice
	case TypeFifo:
		return iofs.ModeNamedPipe
	case TypeSocket:
		return iofs.ModeSocket
	default:
		return 0
	}
}
