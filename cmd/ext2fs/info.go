package main

import (
	"fmt"

	"github.com/KarpelesLab/ext2fs"
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info <image>",
	Short: "Print superblock and group summary",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	fsys, f, err := openImageRO(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	defer fsys.Close()

	sb := fsys.Superblock()
	fmt.Println("ext2 image")
	fmt.Println("==========")
	fmt.Printf("Block size:        %d\n", sb.BlockSize())
	fmt.Printf("Blocks:            %d (free %d)\n", sb.BlocksCount, sb.FreeBlocksCount)
	fmt.Printf("Inodes per group:  %d (free %d)\n", sb.InodesPerGroup, sb.FreeInodesCount)
	fmt.Printf("Groups:            %d\n", sb.GroupCount())
	fmt.Printf("State:             %s\n", stateString(int(sb.State)))
	fmt.Printf("Compat features:   %s\n", sb.Compat())
	fmt.Printf("Incompat features: %s\n", sb.Incompat())
	fmt.Printf("RO-compat features:%s\n", sb.ROCompat())

	fmt.Println("\nGroups")
	fmt.Println("------")
	for _, g := range fsys.GroupSummaries() {
		fmt.Printf("  %3d: free blocks %6d  free inodes %6d  used dirs %4d\n",
			g.Index, g.FreeBlocksCount, g.FreeInodesCount, g.UsedDirsCount)
	}
	return nil
}

func stateString(state int) string {
	switch state {
	case ext2fs.StateClean:
		return "clean"
	case ext2fs.StateDirty:
		return "dirty"
	default:
		return fmt.Sprintf("unknown (%d)", state)
	}
}
