package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/KarpelesLab/ext2fs"
	"github.com/spf13/viper"
)

func mountOptions() []ext2fs.Option {
	return []ext2fs.Option{
		ext2fs.WithCacheSize(viper.GetInt("cache-size")),
		ext2fs.WithLogger(log),
	}
}

// openImageRO opens path read-only and mounts it, wrapping any failure as
// a mountError so main reports exit code 1.
func openImageRO(path string) (*ext2fs.Filesystem, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, &mountError{err}
	}
	fsys, err := ext2fs.MountReadOnly(ext2fs.NewFileVolume(f), mountOptions()...)
	if err != nil {
		f.Close()
		return nil, nil, &mountError{err}
	}
	return fsys, f, nil
}

// openImageRW opens path read-write and mounts it.
func openImageRW(path string) (*ext2fs.Filesystem, *os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, nil, &mountError{err}
	}
	fsys, err := ext2fs.Mount(ext2fs.NewFileVolume(f), mountOptions()...)
	if err != nil {
		f.Close()
		return nil, nil, &mountError{err}
	}
	return fsys, f, nil
}

// resolvePath walks path (slash-separated, relative to the root) down to
// the inode number of the final component.
func resolvePath(fsys *ext2fs.Filesystem, path string) (uint32, error) {
	ino := uint32(ext2fs.RootIno)
	path = strings.Trim(path, "/")
	if path == "" || path == "." {
		return ino, nil
	}
	for _, part := range strings.Split(path, "/") {
		if part == "" {
			continue
		}
		next, err := fsys.Lookup(ino, part)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", path, err)
		}
		ino = next
	}
	return ino, nil
}
