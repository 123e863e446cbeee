package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

const (
	majorVersion = 0
	minorVersion = 1
)

func version() string {
	return fmt.Sprintf("lmtab %d.%d on %s %s, compiled by %s", majorVersion, minorVersion,
		runtime.GOARCH, runtime.GOOS, runtime.Version())
}

func init() {
	lmtabCmd.AddCommand(
		&cobra.Command{
			Use:   "version",
			Short: "Print the version number of lmtab",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Println(version())
			},
		})
}
