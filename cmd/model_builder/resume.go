package main

import (
	"github.com/spf13/cobra"

	"github.com/jonathan/model-builder/internal/observability"
	"github.com/jonathan/model-builder/internal/pipeline"
)

var (
	resumeModelID int
	resumeOut     string
	resumeSave    bool
	resumeReview  reviewFlags
)

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Continue a build from a saved draft model",
	Long: `Loads the intent and dataset stored on a draft model, applies any --set and
--toggle-model edits and trains. Nothing is extracted again.`,
	RunE: runResume,
}

func init() {
	resumeCmd.Flags().IntVar(&resumeModelID, "model-id", 0, "Draft model to resume (required)")
	resumeCmd.Flags().StringVarP(&resumeOut, "out", "o", "", "Write the final session JSON to this path")
	resumeCmd.Flags().BoolVar(&resumeSave, "save", false, "Persist the session to the database (requires DATABASE_URL)")
	addReviewFlags(resumeCmd, &resumeReview)

	if err := resumeCmd.MarkFlagRequired("model-id"); err != nil {
		panic(err)
	}
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg, storage{cache: true, db: resumeSave})
	if err != nil {
		return err
	}
	defer a.Close()

	session, err := pipeline.ResumeSession(ctx, a.client, resumeModelID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printer := observability.NewPrinter(out)
	orch, err := a.orchestrator(pipeline.Options{Session: session, OnProgress: printer.PrintProgress})
	if err != nil {
		return err
	}
	printer.PrintDatasetInfo(session.DatasetInfo)
	printer.PrintValidation(session.Validation)

	runErr := reviewAndTrain(ctx, orch, resumeReview, printer, cmd.InOrStdin(), out)
	if err := finish(ctx, a, orch, resumeOut, resumeSave); err != nil {
		return err
	}
	return runErr
}
