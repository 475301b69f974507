package ext2fs

// getInode returns the cached Inode for ino, reading it from disk on a
// cache miss. The returned pointer is the cache's own copy; callers must
// go through updateInode to persist mutations (§4.5).
func (fs *Filesystem) getInode(ino uint32) (*Inode, error) {
	if in, ok := fs.cache[ino]; ok {
		fs.reused[ino] = true
		return in, nil
	}

	idx, _ := groupOfInode(fs.sb, ino)
	if idx >= uint32(len(fs.groups)) {
		return nil, newErr(KindNotFound, "inode number out of range")
	}
	g := fs.groups[idx]
	offset := locateInode(fs.sb, g, ino)

	buf := make([]byte, fs.sb.InodeSize)
	if err := volRead(fs.vol, offset, buf); err != nil {
		return nil, err
	}
	in, err := decodeInode(fs.sb, ino, buf)
	if err != nil {
		return nil, err
	}

	fs.cache[ino] = in
	fs.enqueue(ino)
	fs.evict()
	return in, nil
}

// updateInode inserts or replaces in in the cache and marks it dirty.
func (fs *Filesystem) updateInode(in *Inode) {
	if _, ok := fs.cache[in.Ino]; !ok {
		fs.enqueue(in.Ino)
	}
	fs.cache[in.Ino] = in
	fs.dirtyInos[in.Ino] = true
	fs.reused[in.Ino] = true
	fs.evict()
}

func (fs *Filesystem) enqueue(ino uint32) {
	if _, ok := fs.evictElem[ino]; ok {
		return
	}
	fs.evictElem[ino] = fs.evictQueue.PushBack(ino)
}

// evict runs the clock/second-chance approximation of LRU described in
// §4.5: while the cache exceeds its bound, pop the queue head; if it was
// touched since being queued, give it a second chance instead of evicting
// it; otherwise flush and drop it.
func (fs *Filesystem) evict() {
	for len(fs.cache) > fs.cacheLimit {
		front := fs.evictQueue.Front()
		if front == nil {
			return
		}
		ino := front.Value.(uint32)
		fs.evictQueue.Remove(front)
		delete(fs.evictElem, ino)

		if fs.reused[ino] {
			fs.reused[ino] = false
			fs.evictElem[ino] = fs.evictQueue.PushBack(ino)
			continue
		}

		// flushIno tolerates being called on an absent/clean inode; errors
		// here would only come from a volume write failure, which we have
		// no caller to report to during eviction, so best-effort log it.
		if err := fs.flushIno(ino); err != nil {
			fs.log.WithError(err).WithField("ino", ino).Warn("ext2fs: eviction flush failed")
		}
		delete(fs.cache, ino)
	}
}

// flushIno re-encodes ino's cached inode into its on-disk slot if dirty,
// then drops it from the dirty set. Per §4.5, when inode_size > 128 the
// existing bytes must be read first so unmodeled reserved fields survive
// the partial overwrite.
func (fs *Filesystem) flushIno(ino uint32) error {
	if !fs.dirtyInos[ino] {
		return nil
	}
	in, ok := fs.cache[ino]
	if !ok {
		delete(fs.dirtyInos, ino)
		return nil
	}

	idx, _ := groupOfInode(fs.sb, ino)
	g := fs.groups[idx]
	offset := locateInode(fs.sb, g, ino)

	buf := make([]byte, fs.sb.InodeSize)
	if fs.sb.InodeSize > inodeMinSize {
		if err := volRead(fs.vol, offset, buf); err != nil {
			return err
		}
	}
	if err := encodeInode(fs.sb, in, buf); err != nil {
		return err
	}
	if err := volWrite(fs.vol, offset, buf); err != nil {
		return err
	}
	delete(fs.dirtyInos, ino)
	return nil
}
