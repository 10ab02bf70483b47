// Package main provides the model_builder CLI: build a trained model from a
// natural-language prompt, or serve the build session HTTP API.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "model_builder",
	Short: "Prompt-to-model build orchestration",
	Long: `model_builder turns a description of an ML task and a dataset into a reviewed
intent, then trains every candidate model on the ML backend and ranks the results.

Configuration is read from --config, then MODEL_BUILDER_* environment variables,
then command-line flags.`,
	SilenceUsage: true,
}

var (
	configPath string
	backendURL string
	projectID  int
	verbose    bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.json file (values can be overridden by other flags)")
	rootCmd.PersistentFlags().StringVar(&backendURL, "backend-url", "", "Base URL of the ML backend API")
	rootCmd.PersistentFlags().IntVar(&projectID, "project", 0, "Project id new datasets and models belong to")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print detailed debug information")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
