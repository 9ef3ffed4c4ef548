package cmd

import (
	"os"

	"github.com/encodeous/meshwatch/state"
	"github.com/spf13/cobra"
)

var configPath = state.DefaultConfigPath

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "meshwatch",
	Short: "Mesh network health monitor",
	Long: `meshwatch tracks the health of every node in a mesh network.
It ingests heartbeats, raises alerts when nodes degrade or go silent, and keeps a table of the shortest routes through the healthy part of the mesh.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddGroup(&cobra.Group{
		ID:    "init",
		Title: "Initialize meshwatch",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "mw",
		Title: "meshwatch Commands",
	})
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", configPath, "path to the config file")
}
