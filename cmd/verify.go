package cmd

import (
	"fmt"

	"github.com/encodeous/meshwatch/state"
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Checks that the config file is valid",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := state.LoadConfig(configPath)
		if err != nil {
			return err
		}
		err = state.ConfigValidator(cfg)
		if err != nil {
			return err
		}

		cfgYaml, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}

		fmt.Println("Config is valid")
		fmt.Println(string(cfgYaml))
		return nil
	},
	GroupID: "mw",
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
