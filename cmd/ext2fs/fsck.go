package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var fsckCmd = &cobra.Command{
	Use:   "fsck <image>",
	Short: "Run the consistency checker, exit 1 on any violation",
	Args:  cobra.ExactArgs(1),
	RunE:  runFsck,
}

func runFsck(cmd *cobra.Command, args []string) error {
	fsys, f, err := openImageRO(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	defer fsys.Close()

	violations, err := fsys.Fsck()
	if err != nil {
		return err
	}
	if len(violations) == 0 {
		fmt.Println("clean")
		return nil
	}
	for _, v := range violations {
		fmt.Fprintln(os.Stderr, v.String())
	}
	os.Exit(1)
	return nil
}
