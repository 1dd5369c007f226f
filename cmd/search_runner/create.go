package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/search-runner/internal/runner"
)

var createCommand = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new search",
	Args:  cobra.ExactArgs(1),
	RunE:  createCmd,
}

var (
	createPayload     string
	createPayloadFile string
	createSchedule    string
)

func init() {
	createCommand.Flags().StringVarP(&createPayload, "payload", "p", "", "Instruction payload text (mutually exclusive with --payload-file)")
	createCommand.Flags().StringVar(&createPayloadFile, "payload-file", "", "Path to a file holding the instruction payload")
	createCommand.Flags().StringVarP(&createSchedule, "schedule", "s", "", "Recurrence, e.g. \"30m\", \"2h\", \"daily\" (omit for manual-only)")
	rootCmd.AddCommand(createCommand)
}

func createCmd(cmd *cobra.Command, args []string) error {
	payload, err := resolvePayload(createPayload, createPayloadFile)
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	search, err := a.svc.CreateSearch(ctx, runner.CreateSearchInput{
		Name:     args[0],
		Payload:  payload,
		Schedule: createSchedule,
	})
	if err != nil {
		return err
	}

	a.printer.PrintSearch(search)
	return nil
}

func resolvePayload(inline, file string) (string, error) {
	if inline != "" && file != "" {
		return "", fmt.Errorf("--payload and --payload-file are mutually exclusive")
	}
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read payload file: %w", err)
		}
		return string(data), nil
	}
	return inline, nil
}
