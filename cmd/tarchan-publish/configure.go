package main

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Manage object store profiles",
	Long: `Manage object store profiles in the configuration file.

Profiles save connection settings for multiple object stores; switch
between them with --profile or TARCHAN_PROFILE.

Configuration is stored in ~/.tarchan/config.yaml`,
}

var configureListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all configured profiles",
	Long: `List all profiles configured in the config file.

The default profile is marked with an asterisk (*).`,
	RunE: runConfigureList,
}

var configureAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a new profile",
	Long: `Add a new profile interactively.

You will be prompted for:
  - Endpoint URL (empty for AWS S3)
  - Region
  - Access key
  - Secret key`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigureAdd,
}

var configureRemoveCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Remove a profile",
	Args:    cobra.ExactArgs(1),
	RunE:    runConfigureRemove,
}

var configureSetDefaultCmd = &cobra.Command{
	Use:   "set-default <name>",
	Short: "Set the default profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigureSetDefault,
}

func init() {
	configureCmd.AddCommand(configureListCmd)
	configureCmd.AddCommand(configureAddCmd)
	configureCmd.AddCommand(configureRemoveCmd)
	configureCmd.AddCommand(configureSetDefaultCmd)
}

func runConfigureList(_ *cobra.Command, _ []string) error {
	pf, err := loadProfiles(cfgFile)
	if err != nil {
		return err
	}

	if len(pf.Profiles) == 0 {
		fmt.Println("No profiles configured.")
		fmt.Println("Run 'tarchan-publish configure add <name>' to create one.")
		return nil
	}

	for name, profile := range pf.Profiles {
		marker := " "
		if name == pf.Default {
			marker = "*"
		}
		endpoint := profile.Endpoint
		if endpoint == "" {
			endpoint = "(aws)"
		}
		fmt.Printf("%s %-20s %s\n", marker, name, endpoint)
	}
	return nil
}

func runConfigureAdd(_ *cobra.Command, args []string) error {
	name := args[0]

	pf, err := loadProfiles(cfgFile)
	if err != nil {
		return err
	}

	if _, exists := pf.Profiles[name]; exists {
		prompt := promptui.Prompt{
			Label:     fmt.Sprintf("Profile '%s' already exists. Update it", name),
			IsConfirm: true,
		}
		if _, promptErr := prompt.Run(); promptErr != nil {
			fmt.Println("Cancelled.")
			return nil //nolint:nilerr // User cancelled, not an error
		}
	}

	endpointPrompt := promptui.Prompt{
		Label: "Endpoint URL (empty for AWS S3)",
		Validate: func(input string) error {
			if input == "" {
				return nil
			}
			parsedURL, parseErr := url.Parse(input)
			if parseErr != nil {
				return fmt.Errorf("invalid URL: %w", parseErr)
			}
			if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
				return errors.New("URL must start with http:// or https://")
			}
			return nil
		},
	}
	endpointVal, err := endpointPrompt.Run()
	if err != nil {
		return handlePromptError(err)
	}

	regionPrompt := promptui.Prompt{
		Label:   "Region",
		Default: "us-east-1",
	}
	regionVal, err := regionPrompt.Run()
	if err != nil {
		return handlePromptError(err)
	}

	accessKeyPrompt := promptui.Prompt{
		Label: "Access Key",
	}
	accessKeyVal, err := accessKeyPrompt.Run()
	if err != nil {
		return handlePromptError(err)
	}

	secretKeyPrompt := promptui.Prompt{
		Label: "Secret Key",
		Mask:  '*',
	}
	secretKeyVal, err := secretKeyPrompt.Run()
	if err != nil {
		return handlePromptError(err)
	}

	pf.Profiles[name] = Profile{
		Endpoint:     endpointVal,
		Region:       regionVal,
		AccessKey:    accessKeyVal,
		SecretKey:    secretKeyVal,
		UsePathStyle: endpointVal != "",
	}

	// First profile becomes the default.
	if pf.Default == "" {
		pf.Default = name
	}

	if err := saveProfiles(cfgFile, pf); err != nil {
		return err
	}

	fmt.Printf("Saved profile %q.\n", name)
	return nil
}

func runConfigureRemove(_ *cobra.Command, args []string) error {
	name := args[0]

	pf, err := loadProfiles(cfgFile)
	if err != nil {
		return err
	}

	if _, exists := pf.Profiles[name]; !exists {
		return fmt.Errorf("profile %q not found", name)
	}

	delete(pf.Profiles, name)
	if pf.Default == name {
		pf.Default = ""
	}

	if err := saveProfiles(cfgFile, pf); err != nil {
		return err
	}

	fmt.Printf("Removed profile %q.\n", name)
	return nil
}

func runConfigureSetDefault(_ *cobra.Command, args []string) error {
	name := args[0]

	pf, err := loadProfiles(cfgFile)
	if err != nil {
		return err
	}

	if _, exists := pf.Profiles[name]; !exists {
		return fmt.Errorf("profile %q not found", name)
	}

	pf.Default = name
	if err := saveProfiles(cfgFile, pf); err != nil {
		return err
	}

	fmt.Printf("Default profile is now %q.\n", name)
	return nil
}

func handlePromptError(err error) error {
	if errors.Is(err, promptui.ErrInterrupt) {
		fmt.Println("Cancelled.")
		return nil
	}
	return err
}
