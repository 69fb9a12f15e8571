package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tarchan/tarchan"
	"github.com/tarchan/tarchan/s3"
)

var (
	version = "dev"

	cfgFile      string
	profileName  string
	endpoint     string
	region       string
	accessKey    string
	secretKey    string
	usePathStyle bool
)

var rootCmd = &cobra.Command{
	Use:     "tarchan-publish",
	Version: version,
	Short:   "Publish and inspect tarchan channels",
	Long: `tarchan-publish manages channel content in the bucket directly,
without going through the server.

Publishing appends a new immutable version to a channel: the archive is
uploaded with a create-if-absent write (an existing key is never
overwritten), then the channel pointer is advanced. A running server
picks the new version up on its next refresh.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ~/.tarchan/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&profileName, "profile", "p", "", "profile name (env: TARCHAN_PROFILE)")
	rootCmd.PersistentFlags().StringVar(&endpoint, "endpoint", "", "object store endpoint URL (env: TARCHAN_STORAGE_ENDPOINT)")
	rootCmd.PersistentFlags().StringVar(&region, "region", "", "bucket region (env: TARCHAN_STORAGE_REGION)")
	rootCmd.PersistentFlags().StringVarP(&accessKey, "access-key", "a", "", "access key (env: TARCHAN_STORAGE_ACCESS_KEY_ID)")
	rootCmd.PersistentFlags().StringVarP(&secretKey, "secret-key", "k", "", "secret key (env: TARCHAN_STORAGE_SECRET_ACCESS_KEY)")
	rootCmd.PersistentFlags().BoolVar(&usePathStyle, "path-style", true, "use path-style bucket addressing")

	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(createChannelCmd)
	rootCmd.AddCommand(listChannelsCmd)
	rootCmd.AddCommand(showChannelCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configureCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// A publish that loses to an existing key is a distinct failure
		// mode: nothing was written, and retrying with the same file
		// will never succeed.
		if errors.Is(err, tarchan.ErrAlreadyExists) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// getPublisher builds a Publisher for the given bucket from profile
// config, environment, and flags (flags take precedence).
func getPublisher(ctx context.Context, bucket string) (*tarchan.Publisher, error) {
	cfg, err := resolveStorageConfig()
	if err != nil {
		return nil, err
	}

	client, err := s3.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create object store client: %w", err)
	}

	return tarchan.NewPublisher(s3.NewStore(client, bucket)), nil
}

// resolveStorageConfig merges profile, env, and flag values.
func resolveStorageConfig() (s3.Config, error) {
	cfg := s3.Config{UsePathStyle: usePathStyle}

	profiles, err := loadProfiles(cfgFile)
	if err != nil {
		return s3.Config{}, err
	}

	name := profileName
	if name == "" {
		name = os.Getenv("TARCHAN_PROFILE")
	}
	if name == "" {
		name = profiles.Default
	}
	if name != "" {
		profile, ok := profiles.Profiles[name]
		if !ok {
			return s3.Config{}, fmt.Errorf("profile %q not found (run 'tarchan-publish configure add %s')", name, name)
		}
		cfg.Endpoint = profile.Endpoint
		cfg.Region = profile.Region
		cfg.AccessKeyID = profile.AccessKey
		cfg.SecretAccessKey = profile.SecretKey
		cfg.UsePathStyle = profile.UsePathStyle
	}

	if v := os.Getenv("TARCHAN_STORAGE_ENDPOINT"); v != "" {
		cfg.Endpoint = v
	}
	if v := os.Getenv("TARCHAN_STORAGE_REGION"); v != "" {
		cfg.Region = v
	}
	if v := os.Getenv("TARCHAN_STORAGE_ACCESS_KEY_ID"); v != "" {
		cfg.AccessKeyID = v
	}
	if v := os.Getenv("TARCHAN_STORAGE_SECRET_ACCESS_KEY"); v != "" {
		cfg.SecretAccessKey = v
	}

	if endpoint != "" {
		cfg.Endpoint = endpoint
	}
	if region != "" {
		cfg.Region = region
	}
	if accessKey != "" {
		cfg.AccessKeyID = accessKey
	}
	if secretKey != "" {
		cfg.SecretAccessKey = secretKey
	}

	return cfg, nil
}
