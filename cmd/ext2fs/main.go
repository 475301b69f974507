// Command ext2fs is a small inspection and maintenance CLI over the
// ext2fs driver, mirroring the shape of the teacher's own cmd/sqfs but
// built on cobra/viper the way the rest of the pack does for long-lived
// tools (§13 of the design document).
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/KarpelesLab/ext2fs"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var log = logrus.StandardLogger()

var (
	flagVerbose bool
	cfgFile     string
)

var rootCmd = &cobra.Command{
	Use:   "ext2fs",
	Short: "Inspect, check, and build ext2 filesystem images",
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.ext2fsrc)")

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if flagVerbose {
			log.SetLevel(logrus.DebugLevel)
		}
	}

	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(catCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(fsckCmd)
	rootCmd.AddCommand(mkfsCmd)
	rootCmd.AddCommand(archiveCmd)
	registerMountCmd(rootCmd)
}

// initConfig loads a small ~/.ext2fsrc (block size default for mkfs,
// default cache size), matching how both gcsfuse and vorteil layer
// viper under a cobra command tree (§12).
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return
		}
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".ext2fsrc")
	}
	viper.SetDefault("block-size", 1024)
	viper.SetDefault("cache-size", 10)
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			log.Debugf("ext2fsrc: %v", err)
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(exitCodeFor(err))
	}
}

// mountError wraps a failure that happened while opening or mounting an
// image, so main can report exit code 1 (§6) instead of the generic 65
// used for every other operation failure.
type mountError struct{ err error }

func (e *mountError) Error() string { return e.err.Error() }
func (e *mountError) Unwrap() error { return e.err }

// exitCodeFor maps an error to the exit codes §6 promises: 1 for a mount
// failure, 2 (ENOENT) when a looked-up name is absent, 65 for any other
// generic operation failure.
func exitCodeFor(err error) int {
	var me *mountError
	if errors.As(err, &me) {
		return 1
	}
	if ext2fs.IsNotFound(err) {
		return 2
	}
	return 65
}
