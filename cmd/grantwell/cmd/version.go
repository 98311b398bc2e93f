package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/grantwell/grantwell/pkg/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(*cobra.Command, []string) {
			fmt.Printf("grantwell %s (%s/%s, %s)\n",
				version.Version, runtime.GOOS, runtime.GOARCH, runtime.Version())
		},
	}
}
