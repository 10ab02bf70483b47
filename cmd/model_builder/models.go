package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Inspect or delete models on the backend",
}

var modelsShowCmd = &cobra.Command{
	Use:   "show <model-id>",
	Short: "Print a model record as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runModelsShow,
}

var modelsDeleteCmd = &cobra.Command{
	Use:   "delete <model-id>",
	Short: "Delete a model",
	Args:  cobra.ExactArgs(1),
	RunE:  runModelsDelete,
}

func init() {
	modelsCmd.AddCommand(modelsShowCmd, modelsDeleteCmd)
	rootCmd.AddCommand(modelsCmd)
}

func parseModelID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid model id %q: must be a positive integer", arg)
	}
	return id, nil
}

func runModelsShow(cmd *cobra.Command, args []string) error {
	id, err := parseModelID(args[0])
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), cfg, storage{})
	if err != nil {
		return err
	}
	defer a.Close()

	rec, err := a.client.GetModel(cmd.Context(), id)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal model: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}

func runModelsDelete(cmd *cobra.Command, args []string) error {
	id, err := parseModelID(args[0])
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), cfg, storage{})
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.client.DeleteModel(cmd.Context(), id); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted model %d\n", id)
	return nil
}
