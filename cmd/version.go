package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

// Version is set at build time via -ldflags
var Version = "dev"

func versionCmd() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print the build version",
		Action: func(ctx *cli.Context) error {
			fmt.Println(Version)
			return nil
		},
	}
}
