package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/model-builder/internal/observability"
	"github.com/jonathan/model-builder/internal/pipeline"
	"github.com/jonathan/model-builder/internal/types"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build a model end-to-end from a prompt and a dataset",
	Long: `Resolves the dataset (uploading --file or selecting --dataset-id), extracts an
intent from --prompt, applies any --set and --toggle-model edits, asks for
confirmation and trains every candidate model.

Edits use dotted paths, e.g. --set task.metric=f1 --set task.cv_folds=5.`,
	RunE: runBuild,
}

var (
	buildPrompt      string
	buildFile        string
	buildDatasetID   int
	buildDatasetName string
	buildModelName   string
	buildOut         string
	buildSave        bool
	review           reviewFlags
)

// reviewFlags are shared by build and resume
type reviewFlags struct {
	sets    []string
	toggles []string
	yes     bool
}

func addReviewFlags(cmd *cobra.Command, r *reviewFlags) {
	cmd.Flags().StringArrayVar(&r.sets, "set", nil, "Edit the intent: path=value (repeatable)")
	cmd.Flags().StringArrayVar(&r.toggles, "toggle-model", nil, "Add or remove a candidate model (repeatable)")
	cmd.Flags().BoolVarP(&r.yes, "yes", "y", false, "Train without asking for confirmation")
}

func init() {
	buildCmd.Flags().StringVarP(&buildPrompt, "prompt", "p", "", "Description of the model to build (required)")
	buildCmd.Flags().StringVarP(&buildFile, "file", "f", "", "Dataset file to upload (mutually exclusive with --dataset-id)")
	buildCmd.Flags().IntVarP(&buildDatasetID, "dataset-id", "d", 0, "Existing dataset to use (mutually exclusive with --file)")
	buildCmd.Flags().StringVar(&buildDatasetName, "dataset-name", "", "Name for the uploaded dataset (defaults to the file name)")
	buildCmd.Flags().StringVar(&buildModelName, "model-name", "", "Name given to the trained model")
	buildCmd.Flags().StringVarP(&buildOut, "out", "o", "", "Write the final session JSON to this path")
	buildCmd.Flags().BoolVar(&buildSave, "save", false, "Persist the session to the database (requires DATABASE_URL)")
	addReviewFlags(buildCmd, &review)

	if err := buildCmd.MarkFlagRequired("prompt"); err != nil {
		panic(fmt.Sprintf("failed to mark prompt flag as required: %v", err))
	}
	buildCmd.MarkFlagsMutuallyExclusive("file", "dataset-id")

	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if buildModelName != "" {
		cfg.ModelName = buildModelName
	}

	sel, closeFile, err := selectionFromFlags(buildFile, buildDatasetID, buildDatasetName)
	if err != nil {
		return err
	}
	defer closeFile()

	a, err := newApp(ctx, cfg, storage{cache: true, db: buildSave})
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	printer := observability.NewPrinter(out)
	orch, err := a.orchestrator(pipeline.Options{
		ProjectID:  cfg.ProjectID,
		ModelName:  cfg.ModelName,
		OnProgress: printer.PrintProgress,
	})
	if err != nil {
		return err
	}

	result, err := orch.Submit(ctx, buildPrompt, sel)
	if err != nil {
		printer.PrintError(orch.Snapshot().Error)
		return err
	}
	printer.PrintDatasetInfo(result.DatasetInfo)
	printer.PrintValidation(&result.Validation)

	runErr := reviewAndTrain(ctx, orch, review, printer, cmd.InOrStdin(), out)
	if err := finish(ctx, a, orch, buildOut, buildSave); err != nil {
		return err
	}
	return runErr
}

// selectionFromFlags builds the dataset selection; the returned func closes
// the upload file
func selectionFromFlags(file string, datasetID int, name string) (types.DatasetSelection, func(), error) {
	noop := func() {}
	switch {
	case file != "" && datasetID != 0:
		return types.DatasetSelection{}, noop, fmt.Errorf("--file and --dataset-id are mutually exclusive; provide only one")
	case file != "":
		f, err := os.Open(file)
		if err != nil {
			return types.DatasetSelection{}, noop, fmt.Errorf("failed to open dataset file: %w", err)
		}
		base := filepath.Base(file)
		if name == "" {
			name = strings.TrimSuffix(base, filepath.Ext(base))
		}
		return types.DatasetSelection{
			Mode:     types.SourceUpload,
			FileName: base,
			Name:     name,
			File:     f,
		}, func() { _ = f.Close() }, nil
	case datasetID > 0:
		return types.DatasetSelection{Mode: types.SourceSelect, DatasetID: strconv.Itoa(datasetID)}, noop, nil
	default:
		return types.DatasetSelection{}, noop, fmt.Errorf("either --file or --dataset-id must be provided")
	}
}

// reviewAndTrain applies edits to the intent under review, asks for
// confirmation and trains. Declining cancels the session.
func reviewAndTrain(ctx context.Context, orch *pipeline.Orchestrator, flags reviewFlags, printer *observability.Printer, in io.Reader, out io.Writer) error {
	for _, raw := range flags.sets {
		path, value, err := parseAssignment(raw)
		if err != nil {
			return err
		}
		if _, err := orch.Edit(path, value); err != nil {
			return fmt.Errorf("--set %s: %w", raw, err)
		}
	}
	for _, name := range flags.toggles {
		if _, err := orch.ToggleModel(strings.TrimSpace(name)); err != nil {
			return fmt.Errorf("--toggle-model %s: %w", name, err)
		}
	}

	intent := orch.Intent()
	printer.PrintIntent(intent)

	if !flags.yes {
		ok, err := confirm(in, out, fmt.Sprintf("Train %d candidate models?", len(intent.ModelNames())))
		if err != nil {
			return err
		}
		if !ok {
			if err := orch.Cancel(); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(out, "Cancelled; nothing was trained.")
			return nil
		}
	}

	result, err := orch.ConfirmTrain(ctx)
	if err != nil {
		printer.PrintError(orch.Snapshot().Error)
		return err
	}
	printer.PrintRanking(result.Outcome)
	return nil
}

// parseAssignment splits path=value. The value is read as JSON when it
// parses (numbers, lists, null) and as a plain string otherwise.
func parseAssignment(raw string) (string, any, error) {
	path, text, ok := strings.Cut(raw, "=")
	path = strings.TrimSpace(path)
	if !ok || path == "" {
		return "", nil, fmt.Errorf("invalid --set %q: expected path=value", raw)
	}
	text = strings.TrimSpace(text)

	var value any
	if err := json.Unmarshal([]byte(text), &value); err == nil {
		return path, value, nil
	}
	return path, text, nil
}

// confirm asks a yes/no question; anything but y or yes is no
func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	if _, err := fmt.Fprintf(out, "%s [y/N] ", question); err != nil {
		return false, err
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// finish writes and persists the final session as requested
func finish(ctx context.Context, a *app, orch *pipeline.Orchestrator, outPath string, save bool) error {
	snap := orch.Snapshot()
	if outPath != "" {
		data, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal session: %w", err)
		}
		if dir := filepath.Dir(outPath); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}
		if err := os.WriteFile(outPath, data, 0o644); err != nil {
			return fmt.Errorf("failed to write session file: %w", err)
		}
	}
	if save {
		if a.db == nil {
			return fmt.Errorf("--save requires DATABASE_URL")
		}
		if err := a.db.SaveSession(ctx, snap); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(os.Stderr, "Saved session %s\n", snap.ID)
	}
	if a.cache != nil {
		if err := a.cache.SaveSession(ctx, snap); err != nil {
			a.log.Warn("failed to cache session snapshot", "session_id", snap.ID, "error", err)
		}
	}
	return nil
}
