package main

import (
	"fmt"
	"io"
	"os"

	"github.com/KarpelesLab/ext2fs"
	"github.com/spf13/cobra"
)

var (
	archiveDecompress bool
	archiveCodec      string
)

var archiveCmd = &cobra.Command{
	Use:   "archive <src> <dst>",
	Short: "Compress a raw image to a sidecar file, or with --decompress expand one back",
	Args:  cobra.ExactArgs(2),
	RunE:  runArchive,
}

func init() {
	archiveCmd.Flags().BoolVar(&archiveDecompress, "decompress", false, "expand sidecar back into a raw image instead of compressing")
	archiveCmd.Flags().StringVar(&archiveCodec, "codec", "zstd", "compression codec: gzip, zstd, xz, or (with --decompress) auto")
}

func runArchive(cmd *cobra.Command, args []string) error {
	src, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(args[1])
	if err != nil {
		return err
	}
	defer dst.Close()

	if archiveDecompress {
		var in io.Reader = src
		codec, err := ext2fs.ParseImageCompression(archiveCodec)
		if archiveCodec == "auto" || err != nil {
			codec, in, err = ext2fs.SniffImageCompression(src)
			if err != nil {
				return fmt.Errorf("sniffing codec: %w", err)
			}
		}
		if err := ext2fs.DecompressImage(dst, in, codec); err != nil {
			return fmt.Errorf("decompress: %w", err)
		}
		return nil
	}

	codec, err := ext2fs.ParseImageCompression(archiveCodec)
	if err != nil {
		return err
	}
	if err := ext2fs.CompressImage(dst, src, codec); err != nil {
		return fmt.Errorf("compress: %w", err)
	}
	return nil
}
