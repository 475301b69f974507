package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var catCmd = &cobra.Command{
	Use:   "cat <image> <path>",
	Short: "Dump a regular file's bytes to stdout",
	Args:  cobra.ExactArgs(2),
	RunE:  runCat,
}

func runCat(cmd *cobra.Command, args []string) error {
	fsys, f, err := openImageRO(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	defer fsys.Close()

	ino, err := resolvePath(fsys, args[1])
	if err != nil {
		return err
	}
	h, err := fsys.OpenFile(ino)
	if err != nil {
		return fmt.Errorf("%s: %w", args[1], err)
	}

	const chunkSize = 64 * 1024
	buf := make([]byte, chunkSize)
	var offset uint64
	for {
		n, err := h.Read(offset, buf)
		if n > 0 {
			if _, werr := os.Stdout.Write(buf[:n]); werr != nil {
				return werr
			}
			offset += uint64(n)
		}
		if n < chunkSize || err != nil {
			return err
		}
	}
}
