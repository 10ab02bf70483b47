package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/jonathan/model-builder/internal/observability"
)

var (
	datasetProjects []int
	datasetRefresh  bool
)

var datasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "List the datasets available to one or more projects",
	RunE:  runDatasets,
}

func init() {
	datasetsCmd.Flags().IntSliceVar(&datasetProjects, "projects", nil, "Projects to list (default: --project)")
	datasetsCmd.Flags().BoolVar(&datasetRefresh, "refresh", false, "Bypass the cache and reload from the backend")
	rootCmd.AddCommand(datasetsCmd)
}

func runDatasets(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg, storage{cache: true})
	if err != nil {
		return err
	}
	defer a.Close()

	projects := datasetProjects
	if len(projects) == 0 {
		projects = []int{cfg.ProjectID}
	}

	if datasetRefresh {
		for _, id := range projects {
			if _, err := a.catalog.Refresh(ctx, id); err != nil {
				return fmt.Errorf("failed to refresh project %d: %w", id, err)
			}
		}
	}

	byProject, err := a.catalog.DatasetsForProjects(ctx, projects)
	if err != nil {
		return err
	}
	ids := make([]int, 0, len(byProject))
	for id := range byProject {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	printer := observability.NewPrinter(cmd.OutOrStdout())
	for _, id := range ids {
		printer.PrintDatasets(id, byProject[id])
	}
	return nil
}
