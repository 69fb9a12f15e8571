package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var createExtension string

var createChannelCmd = &cobra.Command{
	Use:   "create-channel <bucket> <channel>",
	Short: "Register a new channel",
	Long: `Register a new channel in the bucket's catalog and write its empty
config object. The first create-channel in a bucket also creates
channels.json.`,
	Args: cobra.ExactArgs(2),
	RunE: runCreateChannel,
}

var listChannelsCmd = &cobra.Command{
	Use:   "list-channels <bucket>",
	Short: "List all channels",
	Args:  cobra.ExactArgs(1),
	RunE:  runListChannels,
}

var showChannelCmd = &cobra.Command{
	Use:   "show-channel <bucket> <channel>",
	Short: "Show channel details",
	Args:  cobra.ExactArgs(2),
	RunE:  runShowChannel,
}

func init() {
	createChannelCmd.Flags().StringVar(&createExtension, "extension", "", `file extension for the channel (default ".tar.xz")`)
}

func runCreateChannel(cmd *cobra.Command, args []string) error {
	bucket, channel := args[0], args[1]

	publisher, err := getPublisher(cmd.Context(), bucket)
	if err != nil {
		return err
	}

	if err := publisher.CreateChannel(cmd.Context(), channel, createExtension); err != nil {
		return err
	}

	fmt.Printf("Created channel %q.\n", channel)
	return nil
}

func runListChannels(cmd *cobra.Command, args []string) error {
	publisher, err := getPublisher(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	names, err := publisher.ListChannels(cmd.Context())
	if err != nil {
		return err
	}

	if len(names) == 0 {
		fmt.Println("No channels.")
		return nil
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

func runShowChannel(cmd *cobra.Command, args []string) error {
	bucket, channel := args[0], args[1]

	publisher, err := getPublisher(cmd.Context(), bucket)
	if err != nil {
		return err
	}

	cfg, err := publisher.ShowChannel(cmd.Context(), channel)
	if err != nil {
		return err
	}

	fmt.Printf("Channel:   %s\n", channel)
	fmt.Printf("Extension: %s\n", cfg.Extension())
	if cfg.Latest == "" {
		fmt.Println("Latest:    (nothing yet)")
	} else {
		fmt.Printf("Latest:    %s\n", cfg.LatestObjectKey())
	}
	if len(cfg.Previous) > 0 {
		fmt.Println("Previous:")
		for _, prev := range cfg.Previous {
			fmt.Printf("  %s%s\n", prev, cfg.Extension())
		}
	}
	return nil
}
