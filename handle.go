package ext2fs

import iofs "io/fs"

// allocGroupForInode picks the first_group a newly created inode should
// search from: the parent directory's own group, per §4.4's locality
// rule for new directory entries.
func allocGroupForInode(sb *Superblock, parent *Inode) uint32 {
	idx, _ := groupOfInode(sb, parent.Ino)
	return idx
}

// makeInode allocates a fresh inode number, fills in type/mode/attr (a
// zero atime/ctime/mtime becomes the current time) and zeroes
// links_count/size, without linking it into any directory yet.
func (fs *Filesystem) makeInode(parent *Inode, ft FileType, perm iofs.FileMode, attr Attr) (*Inode, error) {
	if err := fs.checkWritable(); err != nil {
		return nil, err
	}
	ino, err := fs.allocInode(allocGroupForInode(fs.sb, parent))
	if err != nil {
		return nil, err
	}
	now := now32()
	if attr.Atime == 0 {
		attr.Atime = now
	}
	if attr.Ctime == 0 {
		attr.Ctime = now
	}
	if attr.Mtime == 0 {
		attr.Mtime = now
	}
	mode := unixModeWord(ft, perm)
	in := &Inode{
		Ino:      ino,
		FileType: ft,
		Suid:     mode&modeSuidBit != 0,
		Sgid:     mode&modeSgidBit != 0,
		Sticky:   mode&modeStickyBit != 0,
		Perm:     mode & modePermMask,
		Attr:     attr,
	}
	fs.updateInode(in)
	return in, nil
}

// MakeInodeInDir allocates a new inode of the given type/mode/attr,
// initialises it (directories get `.`/`..` via initDir), and links it
// into parent under name (§4.10).
func (fs *Filesystem) MakeInodeInDir(parentIno uint32, name string, ft FileType, perm iofs.FileMode, attr Attr) (*Inode, error) {
	parent, err := fs.getInode(parentIno)
	if err != nil {
		return nil, err
	}
	if !parent.IsDir() {
		return nil, newErr(KindBadArgument, "MakeInodeInDir: parent is not a directory")
	}

	in, err := fs.makeInode(parent, ft, perm, attr)
	if err != nil {
		return nil, err
	}

	if ft == TypeDir {
		if err := fs.initDir(in, parent); err != nil {
			return nil, err
		}
	}
	if err := fs.addDirEntry(parent, in, name); err != nil {
		return nil, err
	}
	return in, nil
}

// MakeSymlinkInDir creates a symlink named name in parent pointing at
// target, using mode 0777 per §4.10.
func (fs *Filesystem) MakeSymlinkInDir(parentIno uint32, name, target string, attr Attr) (*Inode, error) {
	parent, err := fs.getInode(parentIno)
	if err != nil {
		return nil, err
	}
	if !parent.IsDir() {
		return nil, newErr(KindBadArgument, "MakeSymlinkInDir: parent is not a directory")
	}

	in, err := fs.makeInode(parent, TypeSymlink, fsFileMode0777, attr)
	if err != nil {
		return nil, err
	}
	if err := fs.writeLinkData(in, target); err != nil {
		return nil, err
	}
	if err := fs.addDirEntry(parent, in, name); err != nil {
		return nil, err
	}
	return in, nil
}

const fsFileMode0777 = iofs.FileMode(0777)

// MakeHardlinkInDir links the existing inode targetIno into parent under
// name. Hardlinking a directory is rejected (§4.10).
func (fs *Filesystem) MakeHardlinkInDir(parentIno uint32, name string, targetIno uint32) error {
	if err := fs.checkWritable(); err != nil {
		return err
	}
	parent, err := fs.getInode(parentIno)
	if err != nil {
		return err
	}
	if !parent.IsDir() {
		return newErr(KindBadArgument, "MakeHardlinkInDir: parent is not a directory")
	}
	target, err := fs.getInode(targetIno)
	if err != nil {
		return err
	}
	if target.IsDir() {
		return newErr(KindBadArgument, "MakeHardlinkInDir: cannot hardlink a directory")
	}
	return fs.addDirEntry(parent, target, name)
}

// RemoveFromDir looks up name in parent, unlinks the target inode (which
// destroys it once links_count reaches 0) and erases the directory
// entry (§4.10). Directories must be empty: deinitDir first drops the
// links held by their `.`/`..` entries, then the parent entry's own link
// is dropped like any other.
func (fs *Filesystem) RemoveFromDir(parentIno uint32, name string) error {
	if err := fs.checkWritable(); err != nil {
		return err
	}
	parent, err := fs.getInode(parentIno)
	if err != nil {
		return err
	}
	if !parent.IsDir() {
		return newErr(KindBadArgument, "RemoveFromDir: parent is not a directory")
	}

	targetIno, err := fs.lookupInDir(parent, name)
	if err != nil {
		return err
	}
	target, err := fs.getInode(targetIno)
	if err != nil {
		return err
	}

	if target.IsDir() {
		if err := fs.deinitDir(target, parent); err != nil {
			return err
		}
		if target.LinksCount > 0 {
			target.LinksCount--
		}
		if err := fs.maybeUnlinkInode(target); err != nil {
			return err
		}
	} else {
		if target.LinksCount > 0 {
			target.LinksCount--
		}
		if err := fs.maybeUnlinkInode(target); err != nil {
			return err
		}
	}

	offset, prevOffset, found, _, err := fs.findEntryForErase(parent, name)
	if err != nil {
		return err
	}
	if !found {
		return newErr(KindNotFound, "RemoveFromDir: entry vanished mid-remove")
	}
	e, err := fs.readDirEntry(parent, offset)
	if err != nil {
		return err
	}
	return fs.eraseDirEntry(parent, offset, prevOffset, e.nextOffset)
}

// MoveBetweenDirs renames srcName in srcDir to tgtName in tgtDir,
// overwriting any existing tgtName entry (§4.8/§4.10).
func (fs *Filesystem) MoveBetweenDirs(srcDirIno uint32, srcName string, tgtDirIno uint32, tgtName string) error {
	if err := fs.checkWritable(); err != nil {
		return err
	}
	srcDir, err := fs.getInode(srcDirIno)
	if err != nil {
		return err
	}
	tgtDir, err := fs.getInode(tgtDirIno)
	if err != nil {
		return err
	}
	return fs.moveBetweenDirs(srcDir, srcName, tgtDir, tgtName)
}

// SetInodeModeAttr replaces ino's permission/special bits and attr
// wholesale (§4.10).
func (fs *Filesystem) SetInodeModeAttr(ino uint32, perm iofs.FileMode, attr Attr) error {
	if err := fs.checkWritable(); err != nil {
		return err
	}
	in, err := fs.getInode(ino)
	if err != nil {
		return err
	}
	mode := unixModeWord(in.FileType, perm)
	in.Suid = mode&modeSuidBit != 0
	in.Sgid = mode&modeSgidBit != 0
	in.Sticky = mode&modeStickyBit != 0
	in.Perm = mode & modePermMask
	in.Attr = attr
	fs.updateInode(in)
	return nil
}

// ReadLink returns ino's symlink target (§4.9/§4.10).
func (fs *Filesystem) ReadLink(ino uint32) (string, error) {
	return fs.readLink(ino)
}

// Stat returns a copy of ino's decoded inode.
func (fs *Filesystem) Stat(ino uint32) (Inode, error) {
	in, err := fs.getInode(ino)
	if err != nil {
		return Inode{}, err
	}
	return *in, nil
}

// Lookup resolves name within parent, the stateless counterpart to
// OpenDir/OpenFile used by a FUSE-style bridge's lookup() callback
// (§4.10).
func (fs *Filesystem) Lookup(parentIno uint32, name string) (uint32, error) {
	parent, err := fs.getInode(parentIno)
	if err != nil {
		return 0, err
	}
	return fs.lookupInDir(parent, name)
}
