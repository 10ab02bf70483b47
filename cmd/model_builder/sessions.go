package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jonathan/model-builder/internal/db"
)

var (
	sessionsProject int
	sessionsPhase   string
	sessionsLimit   int
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Browse build sessions saved to the database",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved sessions, newest first",
	RunE:  runSessionsList,
}

var sessionsEventsCmd = &cobra.Command{
	Use:   "events <session-id>",
	Short: "Print the recorded transitions of a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsEvents,
}

func init() {
	sessionsListCmd.Flags().IntVar(&sessionsProject, "project-id", 0, "Only sessions of this project")
	sessionsListCmd.Flags().StringVar(&sessionsPhase, "phase", "", "Only sessions in this phase")
	sessionsListCmd.Flags().IntVar(&sessionsLimit, "limit", 20, "Maximum number of sessions")
	sessionsCmd.AddCommand(sessionsListCmd, sessionsEventsCmd)
	rootCmd.AddCommand(sessionsCmd)
}

// openDB returns an app with the database connected or an error when none is configured
func openDB(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	return newApp(cmd.Context(), cfg, storage{db: true})
}

func runSessionsList(cmd *cobra.Command, _ []string) error {
	a, err := openDB(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	list, err := a.db.ListSessions(cmd.Context(), db.SessionFilters{
		ProjectID: sessionsProject,
		Phase:     sessionsPhase,
		Limit:     sessionsLimit,
	})
	if err != nil {
		return err
	}
	return writeSessions(cmd.OutOrStdout(), list)
}

func runSessionsEvents(cmd *cobra.Command, args []string) error {
	a, err := openDB(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	events, err := a.db.ListEvents(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return writeEvents(cmd.OutOrStdout(), events)
}

func writeSessions(out io.Writer, list []db.SessionSummary) error {
	if len(list) == 0 {
		_, err := fmt.Fprintln(out, "No saved sessions")
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tPROJECT\tPHASE\tMODEL\tUPDATED")
	for _, s := range list {
		model := "-"
		if s.ModelID != nil {
			model = fmt.Sprintf("%d", *s.ModelID)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n", s.ID, s.ProjectID, s.Phase, model, s.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func writeEvents(out io.Writer, events []db.SessionEvent) error {
	if len(events) == 0 {
		_, err := fmt.Fprintln(out, "No recorded events")
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, ev := range events {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", ev.CreatedAt.Format("15:04:05"), ev.Event, ev.Phase, ev.Message)
	}
	return tw.Flush()
}
