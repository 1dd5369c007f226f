package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jonathan/search-runner/internal/runner"
)

var updateCommand = &cobra.Command{
	Use:   "update <slug>",
	Short: "Update a search's payload or schedule",
	Args:  cobra.ExactArgs(1),
	RunE:  updateCmd,
}

var (
	updatePayload     string
	updatePayloadFile string
	updateSchedule    string
)

func init() {
	updateCommand.Flags().StringVarP(&updatePayload, "payload", "p", "", "New instruction payload text")
	updateCommand.Flags().StringVar(&updatePayloadFile, "payload-file", "", "Path to a file holding the new payload")
	updateCommand.Flags().StringVarP(&updateSchedule, "schedule", "s", "", "New recurrence (empty string clears the schedule)")
	rootCmd.AddCommand(updateCommand)
}

func updateCmd(cmd *cobra.Command, args []string) error {
	var in runner.UpdateSearchInput
	if cmd.Flags().Changed("payload") || cmd.Flags().Changed("payload-file") {
		payload, err := resolvePayload(updatePayload, updatePayloadFile)
		if err != nil {
			return err
		}
		in.Payload = &payload
	}
	if cmd.Flags().Changed("schedule") {
		in.Schedule = &updateSchedule
	}

	ctx := context.Background()
	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	search, err := a.svc.UpdateSearch(ctx, args[0], in)
	if err != nil {
		return err
	}

	a.printer.PrintSearch(search)
	return nil
}
