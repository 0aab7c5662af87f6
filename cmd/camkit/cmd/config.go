package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/camkit/internal/config"
)

// configCmd groups configuration helpers.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the resolved configuration",
}

// configShowCmd prints the configuration after files, env and flags are merged.
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		if paths, _ := cmd.Flags().GetBool("paths"); paths {
			used := ""
			if configLoader != nil {
				used = configLoader.GetConfigFileUsed()
			}
			if used == "" {
				used = "(none, defaults and environment only)"
			}
			_, _ = fmt.Fprintf(out, "# config file: %s\n", used)
			for _, p := range config.GetConfigSearchPaths() {
				_, _ = fmt.Fprintf(out, "# search path: %s\n", p)
			}
		}

		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return fmt.Errorf("encode configuration: %w", err)
		}
		return enc.Close()
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configShowCmd.Flags().Bool("paths", false, "also list the config file used and the search paths")
}
