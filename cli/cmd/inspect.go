package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/deckhand-io/deckhand/state"
)

// InspectCommand returns the inspect command. Read-only: it reconstructs a
// run's history from its journal without touching the pipeline.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Inspect a finished run from its journal",
		ArgsUsage: "<run-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "journal-dir",
				Usage: "Directory holding run journals",
				Value: "journals",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Emit raw journal frames as JSON",
			},
		},
		Action: inspectAction,
	}
}

func inspectAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("run-id required", 1)
	}
	runID := c.Args().First()

	frames, err := state.ReadJournal(c.String("journal-dir"), runID)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	if c.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(frames)
	}

	printJournal(runID, frames)
	return nil
}

func printJournal(runID string, frames []state.JournalFrame) {
	fmt.Printf("=== Run %s ===\n", runID)

	currentPhase := ""
	for _, frame := range frames {
		switch frame.Type {
		case state.FrameTaskResult:
			if frame.Phase != currentPhase {
				currentPhase = frame.Phase
				fmt.Printf("\n--- Phase: %s ---\n", currentPhase)
			}
			r := frame.Result
			if r == nil {
				continue
			}
			if r.Artifact != nil {
				fmt.Printf("  %-24s %s (attempt %d, %d bytes)\n",
					r.Task, r.Status, r.Attempts, r.Artifact.SizeBytes)
			} else {
				fmt.Printf("  %-24s %s (attempt %d): %s\n",
					r.Task, r.Status, r.Attempts, r.Error)
			}

		case state.FrameRunFinalized:
			fmt.Printf("\nFinal status: %s (%s)\n", frame.Status, frame.Ts)
		}
	}

	if len(frames) == 0 {
		fmt.Println("journal is empty")
	}
}
