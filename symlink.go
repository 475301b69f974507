package ext2fs

import "encoding/binary"

const fastSymlinkMaxLen = 15 * 4

// isFastSymlink reports whether in's target is packed inline into its
// block[] array rather than stored as ordinary file data (§4.9). When
// file_acl is set (an extended-attribute block is attached) size_512
// instead equals block_size/512, since size_512 no longer reads as
// "zero data blocks allocated".
func isFastSymlink(sb *Superblock, in *Inode) bool {
	if !in.IsSymlink() {
		return false
	}
	if in.FileACL != 0 {
		return uint64(in.Size512) == sb.BlockSize()/512
	}
	return in.Size512 == 0
}

// readLink returns ino's link target, decoding the fast-inline or
// out-of-line representation as appropriate.
func (fs *Filesystem) readLink(ino uint32) (string, error) {
	in, err := fs.getInode(ino)
	if err != nil {
		return "", err
	}
	if !in.IsSymlink() {
		return "", newErr(KindBadArgument, "readLink: inode is not a symlink")
	}
	return fs.readLinkData(in)
}

func (fs *Filesystem) readLinkData(in *Inode) (string, error) {
	if isFastSymlink(fs.sb, in) {
		buf := make([]byte, fastSymlinkMaxLen)
		for i, b := range in.Block {
			binary.LittleEndian.PutUint32(buf[i*4:], b)
		}
		if in.Size > uint64(len(buf)) {
			return "", newErr(KindInvalid, "fast symlink size exceeds inline capacity")
		}
		return string(buf[:in.Size]), nil
	}

	buf := make([]byte, in.Size)
	n, err := fs.readInodeData(in, 0, buf)
	if err != nil {
		return "", err
	}
	return string(buf[:n]), nil
}

// writeLinkData stores target as ino's link data, truncating any
// existing data first (§4.9). Targets of 60 bytes or fewer are packed
// inline; longer targets are written as ordinary file data.
func (fs *Filesystem) writeLinkData(in *Inode, target string) error {
	if err := fs.truncateInodeBlocks(in, 0); err != nil {
		return err
	}
	data := []byte(target)

	if len(data) <= fastSymlinkMaxLen {
		var padded [fastSymlinkMaxLen]byte
		copy(padded[:], data)
		for i := 0; i < 15; i++ {
			in.Block[i] = binary.LittleEndian.Uint32(padded[i*4 : i*4+4])
		}
		in.Size = uint64(len(data))
		in.Size512 = 0
		fs.updateInode(in)
		return nil
	}

	if _, err := fs.writeInodeData(in, 0, data); err != nil {
		return err
	}
	return nil
}
