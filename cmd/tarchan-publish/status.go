package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <bucket> <channel>",
	Short: "Report referenced and orphaned objects for a channel",
	Long: `List the bucket and classify every object carrying the channel's
extension as referenced (reachable through latest or previous) or
orphaned (present but unreferenced, e.g. left behind by a publish that
failed between upload and pointer update).

Orphaned objects are harmless but can be retried into the channel or
removed manually.`,
	Args: cobra.ExactArgs(2),
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	bucket, channel := args[0], args[1]

	publisher, err := getPublisher(cmd.Context(), bucket)
	if err != nil {
		return err
	}

	status, err := publisher.Status(cmd.Context(), channel)
	if err != nil {
		return err
	}

	if status.Config.Latest == "" {
		fmt.Printf("Channel %q has no published version.\n", channel)
	} else {
		fmt.Printf("Channel %q latest: %s\n", channel, status.Config.LatestObjectKey())
	}

	fmt.Printf("Referenced objects (%d):\n", len(status.Referenced))
	for _, obj := range status.Referenced {
		fmt.Printf("  %-40s %10d  %s\n", obj.Key, obj.Size, obj.LastModified.Format("2006-01-02 15:04:05"))
	}

	if len(status.Orphaned) > 0 {
		fmt.Printf("Orphaned objects (%d):\n", len(status.Orphaned))
		for _, obj := range status.Orphaned {
			fmt.Printf("  %-40s %10d  %s\n", obj.Key, obj.Size, obj.LastModified.Format("2006-01-02 15:04:05"))
		}
	}

	return nil
}
