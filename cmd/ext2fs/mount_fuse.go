//go:build fuse

package main

import (
	"fmt"

	"github.com/KarpelesLab/ext2fs"
	"github.com/spf13/cobra"
)

func registerMountCmd(root *cobra.Command) {
	root.AddCommand(&cobra.Command{
		Use:   "mount <image> <mountpoint>",
		Short: "Mount an image via the illustrative FUSE bridge",
		Args:  cobra.ExactArgs(2),
		RunE:  runMount,
	})
}

// runMount builds a FuseBridge over the image. FuseBridge intentionally
// adapts only the subset of go-fuse's raw callback surface this driver's
// core exposes (Lookup/GetAttr/OpenDir/ReadDir/Open/Read); wiring it into
// a concrete fuse.Server loop is left to a caller matching the rest of
// go-fuse's RawFileSystem contract, the same "thin adapter behind the
// interface the core offers" scope fuse.go documents.
func runMount(cmd *cobra.Command, args []string) error {
	fsys, f, err := openImageRW(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	defer fsys.Close()

	bridge := ext2fs.NewFuseBridge(fsys)
	_ = bridge
	return fmt.Errorf("mount: wiring FuseBridge into a go-fuse server loop at %s is left to the embedding application", args[1])
}
