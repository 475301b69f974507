package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var lsLong bool

var lsCmd = &cobra.Command{
	Use:   "ls <image> [path]",
	Short: "List a directory's entries",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runLS,
}

func init() {
	lsCmd.Flags().BoolVarP(&lsLong, "long", "l", false, "show mode, size and mtime")
}

func runLS(cmd *cobra.Command, args []string) error {
	path := "."
	if len(args) > 1 {
		path = args[1]
	}

	fsys, f, err := openImageRO(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	defer fsys.Close()

	dirIno, err := resolvePath(fsys, path)
	if err != nil {
		return err
	}
	entries, err := fsys.ReadDirAll(dirIno)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	for _, e := range entries {
		if !lsLong {
			fmt.Println(e.Name)
			continue
		}
		st, err := fsys.Stat(e.Ino)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: stat %s: %v\n", e.Name, err)
			continue
		}
		mtime := time.Unix(int64(st.Attr.Mtime), 0).Format("Jan 02 15:04")
		fmt.Printf("%s %8d %s %s\n", st.FSMode(), st.Size, mtime, e.Name)
	}
	return nil
}
