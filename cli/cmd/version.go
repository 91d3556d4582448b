package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/deckhand-io/deckhand/types"
)

// VersionCommand returns the version command. All components share a single
// version (lockstep versioning); it must not contact any external service.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Action: func(c *cli.Context) error {
			fmt.Printf("deckhand %s (commit: %s)\n", types.Version, commit)
			return nil
		},
	}
}
