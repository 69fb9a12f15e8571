package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tarchan/tarchan"
)

var publishCreate bool

var publishCmd = &cobra.Command{
	Use:   "publish <bucket> <channel> <file>",
	Short: "Append a new version to a channel",
	Long: `Upload a file as a new immutable channel version and advance the
channel pointer to it.

The permanent object key is the file's base name, which must end with the
channel's configured extension (default ".tar.xz"). The file name is the
version identifier; the tool does not invent version numbers.

If an object with the same key already exists, the publish fails without
writing anything (exit code 2). A running server picks up the new version
on its next refresh, or immediately when sent SIGHUP.

Examples:
  tarchan-publish publish releases rel ./rel-2024-06-01.tar.xz
  tarchan-publish publish releases nightly ./build/nightly-42.tar.xz`,
	Args: cobra.ExactArgs(3),
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().BoolVar(&publishCreate, "create", false, "create the channel if it doesn't exist")
}

func runPublish(cmd *cobra.Command, args []string) error {
	bucket, channel, file := args[0], args[1], args[2]
	ctx := cmd.Context()

	publisher, err := getPublisher(ctx, bucket)
	if err != nil {
		return err
	}

	if publishCreate {
		if err := ensureChannel(ctx, publisher, channel); err != nil {
			return err
		}
	}

	result, err := publisher.Publish(ctx, channel, file)
	if err != nil {
		return err
	}

	if result.Superseded == "" {
		fmt.Printf("Published %s to channel %q (first version).\n", result.ObjectKey, result.Channel)
	} else {
		fmt.Printf("Published %s to channel %q (was %s).\n", result.ObjectKey, result.Channel, result.Superseded)
	}
	return nil
}

func ensureChannel(ctx context.Context, publisher *tarchan.Publisher, channel string) error {
	err := publisher.CreateChannel(ctx, channel, "")
	if err == nil {
		fmt.Printf("Created channel %q.\n", channel)
		return nil
	}
	if errors.Is(err, tarchan.ErrAlreadyExists) {
		return nil
	}
	return err
}
