package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Tbala-06/GIQ-2025/internal/config"
)

var (
	initOutput string
	initForce  bool
)

const configHeader = `# Roadmark robot configuration.
# Values not set here fall back to built-in defaults; ${VAR} references in
# broker, credentials and path fields are expanded from the environment.
`

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !initForce {
			if _, err := os.Stat(initOutput); err == nil {
				return fmt.Errorf("%s already exists (use --force to overwrite)", initOutput)
			}
		}

		data, err := yaml.Marshal(config.Default())
		if err != nil {
			return fmt.Errorf("encoding default config: %w", err)
		}

		if err := os.WriteFile(initOutput, append([]byte(configHeader), data...), 0644); err != nil {
			return fmt.Errorf("writing %s: %w", initOutput, err)
		}

		fmt.Printf("Wrote default configuration to %s\n", initOutput)
		return nil
	},
}

func init() {
	initCmd.Flags().StringVarP(&initOutput, "output", "o", defaultConfigPath, "output file")
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing file")
	rootCmd.AddCommand(initCmd)
}
