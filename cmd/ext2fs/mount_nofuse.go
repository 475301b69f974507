//go:build !fuse

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func registerMountCmd(root *cobra.Command) {
	root.AddCommand(&cobra.Command{
		Use:   "mount <image> <mountpoint>",
		Short: "Mount an image via the illustrative FUSE bridge (requires building with -tags fuse)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("mount: this binary was built without the fuse tag; rebuild with -tags fuse")
		},
	})
}
