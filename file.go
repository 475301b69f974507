package ext2fs

// readInodeData copies up to len(buf) bytes starting at offset into buf,
// capped at the inode's current size (§4.7). It returns the number of
// bytes actually copied and never mutates the inode. A hole (unallocated
// leaf block) within the readable range is reported as an error, since by
// construction writers always pre-allocate via setFileBlock before
// growing size past a block boundary.
func (fs *Filesystem) readInodeData(in *Inode, offset uint64, buf []byte) (int, error) {
	if offset >= in.Size {
		return 0, nil
	}
	avail := in.Size - offset
	want := uint64(len(buf))
	if want > avail {
		want = avail
	}

	bs := fs.sb.BlockSize()
	var done uint64
	for done < want {
		fileBlock := (offset + done) / bs
		blockOffset := (offset + done) % bs
		chunk := want - done
		if max := bs - blockOffset; chunk > max {
			chunk = max
		}

		block, err := fs.getFileBlock(in, fileBlock)
		if err != nil {
			return int(done), err
		}
		if block == 0 {
			return int(done), newErr(KindInvalid, "hole encountered while reading allocated file range")
		}
		if err := volRead(fs.vol, int64(block)*int64(bs)+int64(blockOffset), buf[done:done+chunk]); err != nil {
			return int(done), err
		}
		done += chunk
	}
	return int(done), nil
}

// writeInodeData copies all of buf to in starting at offset, allocating
// leaf blocks on demand, growing in.Size when the write extends the file,
// and persisting the inode via updateInode (§4.7).
func (fs *Filesystem) writeInodeData(in *Inode, offset uint64, buf []byte) (int, error) {
	if err := fs.checkWritable(); err != nil {
		return 0, err
	}
	bs := fs.sb.BlockSize()
	var done uint64
	want := uint64(len(buf))

	for done < want {
		fileBlock := (offset + done) / bs
		blockOffset := (offset + done) % bs
		chunk := want - done
		if max := bs - blockOffset; chunk > max {
			chunk = max
		}

		block, err := fs.getFileBlock(in, fileBlock)
		if err != nil {
			return int(done), err
		}
		if block == 0 {
			block, err = fs.setFileBlock(in, fileBlock)
			if err != nil {
				return int(done), err
			}
		}
		if err := volWrite(fs.vol, int64(block)*int64(bs)+int64(blockOffset), buf[done:done+chunk]); err != nil {
			return int(done), err
		}
		done += chunk
	}

	if end := offset + done; end > in.Size {
		in.Size = end
	}
	fs.updateInode(in)
	return int(done), nil
}

// FileHandle is an opaque handle over an open regular file, returned by
// OpenFile. It is valid only against the Filesystem that issued it.
type FileHandle struct {
	fs  *Filesystem
	Ino uint32
}

// OpenFile validates that ino names a regular file and returns a handle
// for subsequent Read/Write calls.
func (fs *Filesystem) OpenFile(ino uint32) (*FileHandle, error) {
	in, err := fs.getInode(ino)
	if err != nil {
		return nil, err
	}
	if !in.IsRegular() {
		return nil, newErr(KindBadArgument, "OpenFile: inode is not a regular file")
	}
	h := &FileHandle{fs: fs, Ino: ino}
	fs.nextH++
	fs.files[fs.nextH] = h
	return h, nil
}

// Read reads into buf starting at offset.
func (h *FileHandle) Read(offset uint64, buf []byte) (int, error) {
	in, err := h.fs.getInode(h.Ino)
	if err != nil {
		return 0, err
	}
	return h.fs.readInodeData(in, offset, buf)
}

// Write writes buf starting at offset, growing the file as needed.
func (h *FileHandle) Write(offset uint64, buf []byte) (int, error) {
	in, err := h.fs.getInode(h.Ino)
	if err != nil {
		return 0, err
	}
	return h.fs.writeInodeData(in, offset, buf)
}

// Close flushes the handle's inode to disk (§4.10: "file close flushes
// the inode").
func (h *FileHandle) Close() error {
	return h.fs.flushIno(h.Ino)
}

// TruncateInodeSize shrinks a regular file's size (growing is rejected).
// new_size == 0 fully deallocates the inode's data; otherwise it frees
// every block at or beyond ceil(new_size/block_size) (§4.10).
func (fs *Filesystem) TruncateInodeSize(ino uint32, newSize uint64) error {
	if err := fs.checkWritable(); err != nil {
		return err
	}
	in, err := fs.getInode(ino)
	if err != nil {
		return err
	}
	if !in.IsRegular() {
		return newErr(KindBadArgument, "TruncateInodeSize: inode is not a regular file")
	}
	if newSize > in.Size {
		return newErr(KindBadArgument, "TruncateInodeSize: cannot grow a file via truncate")
	}

	bs := fs.sb.BlockSize()
	if newSize == 0 {
		if err := fs.deallocInodeBlocks(in); err != nil {
			return err
		}
	} else {
		firstUnused := (newSize + bs - 1) / bs
		if err := fs.truncateInodeBlocks(in, firstUnused); err != nil {
			return err
		}
	}
	in.Size = newSize
	fs.updateInode(in)
	return nil
}
