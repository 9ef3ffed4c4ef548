package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/encodeous/meshwatch/state"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		outPath, _ := cmd.Flags().GetString("output")
		if outPath == "" {
			outPath = configPath
		}
		if _, err := os.Stat(outPath); err == nil && !force {
			return fmt.Errorf("%s already exists, pass --force to overwrite it", outPath)
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}

		cfg := state.DefaultConfig()
		if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
			cfg.Listen = listen
		}
		if err := state.ConfigValidator(&cfg); err != nil {
			return err
		}
		if err := state.SaveConfig(outPath, &cfg); err != nil {
			return err
		}
		fmt.Printf("Wrote config to %s\n", outPath)
		return nil
	},
	GroupID: "init",
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringP("output", "o", "", "config output file path, defaults to --config")
	initCmd.Flags().StringP("listen", "l", "", "address the http api binds to")
	initCmd.Flags().BoolP("force", "f", false, "overwrite an existing config")
}
