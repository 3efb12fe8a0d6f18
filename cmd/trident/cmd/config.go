package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/trident-search/trident/configs"
	"github.com/trident-search/trident/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long:  `Validate and inspect the effective Trident configuration.`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigValidateCmd())
	cmd.AddCommand(newConfigShowCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a starter configuration file",
		Long: `Write a commented .trident.yaml template to the current directory.

The template documents every setting with its default value. An existing
file is left untouched unless --force is given.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := output.New(cmd.OutOrStdout())

			const path = ".trident.yaml"
			if _, err := os.Stat(path); err == nil && !force {
				out.Warning("Configuration already exists")
				out.Statusf("📁", "Location: %s", path)
				out.Status("💡", "Use --force to overwrite it with the template")
				return nil
			}

			if err := os.WriteFile(path, []byte(configs.ProjectConfigTemplate), 0o644); err != nil {
				return fmt.Errorf("failed to write config file: %w", err)
			}

			out.Success("Created configuration")
			out.Statusf("📁", "Location: %s", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing configuration file")

	return cmd
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration",
		Long: `Load .trident.yaml plus TRIDENT_* environment overrides and check it,
including that enabled backend weights sum to 1.0.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := output.New(cmd.OutOrStdout())

			cfg, err := loadConfig()
			if err != nil {
				out.Errorf("Configuration invalid: %v", err)
				return err
			}

			out.Success("Configuration is valid")
			for _, b := range cfg.EnabledBackends() {
				bc := cfg.Backends.Get(b)
				out.KVf(string(b), "weight %.2f, timeout %s", bc.Weight, bc.Timeout)
			}
			return nil
		},
	}
}

func newConfigShowCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Long:  `Print the merged configuration: defaults, .trident.yaml, then environment overrides.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(cfg)
			}

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal configuration: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
