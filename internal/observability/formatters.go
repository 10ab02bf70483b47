// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jonathan/model-builder/internal/intentstore"
	"github.com/jonathan/model-builder/internal/pipeline"
	"github.com/jonathan/model-builder/internal/ranking"
	"github.com/jonathan/model-builder/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// PrintIntent outputs the intent as it will be trained: stored values with
// display defaults filled in. Defaulted fields are marked with '*'.
func (p *Printer) PrintIntent(in *types.Intent) {
	if in == nil {
		return
	}
	view := intentstore.WithDefaults(in)

	mark := func(stored, shown string) string {
		if stored == "" && shown != "" {
			return shown + " *"
		}
		return orDash(shown)
	}
	var task types.TaskSpec
	if in.Task != nil {
		task = *in.Task
	}
	var prep types.PreprocessingSpec
	if in.Preprocessing != nil {
		prep = *in.Preprocessing
	}
	var missing types.MissingStrategy
	if prep.MissingStrategy != nil {
		missing = *prep.MissingStrategy
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Task:     %s\n", orDash(string(view.Task.Type))))
	sb.WriteString(fmt.Sprintf("Target:   %s\n", orDash(view.Task.TargetColumn)))
	sb.WriteString(fmt.Sprintf("Metric:   %s\n", mark(task.Metric, view.Task.Metric)))
	sb.WriteString(fmt.Sprintf("CV folds: %s\n", mark(intText(task.CVFolds), intText(view.Task.CVFolds))))
	sb.WriteString(fmt.Sprintf("Test:     %s\n", mark(floatText(task.TestSize), floatText(view.Task.TestSize))))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Scaling:  %s\n", mark(prep.Scaling, view.Preprocessing.Scaling)))
	sb.WriteString(fmt.Sprintf("Encoding: %s\n", mark(prep.Encoding, view.Preprocessing.Encoding)))
	sb.WriteString(fmt.Sprintf("Missing:  numeric=%s categorical=%s\n",
		mark(missing.Numeric, view.Preprocessing.MissingStrategy.Numeric),
		mark(missing.Categorical, view.Preprocessing.MissingStrategy.Categorical)))
	sb.WriteString("\n")

	models := in.ModelNames()
	if len(models) == 0 {
		sb.WriteString("Models:   (none)")
	} else {
		sb.WriteString(fmt.Sprintf("Models (%d):\n", len(models)))
		for i, name := range models {
			sb.WriteString(fmt.Sprintf("  • %s", name))
			if i < len(models)-1 {
				sb.WriteString("\n")
			}
		}
	}

	p.printBox("EXTRACTED INTENT  (* = default)", sb.String())
}

// PrintValidation outputs the backend's advisory diagnostics. Nothing is
// printed for a clean result.
func (p *Printer) PrintValidation(v *types.ExtractionValidation) {
	if v == nil || (v.IsValid && len(v.Warnings) == 0) {
		return
	}

	var sb strings.Builder
	if !v.IsValid {
		sb.WriteString("The backend flagged this intent as invalid.\n")
	}
	for i, w := range v.Warnings {
		sb.WriteString(fmt.Sprintf("⚠ %s", w))
		if i < len(v.Warnings)-1 {
			sb.WriteString("\n")
		}
	}
	p.printBox("VALIDATION WARNINGS", strings.TrimRight(sb.String(), "\n"))
}

// PrintDatasetInfo outputs the dataset profile returned with an extraction
func (p *Printer) PrintDatasetInfo(info *types.DatasetInfo) {
	if info == nil {
		return
	}
	var sb strings.Builder
	if info.DatasetID != nil {
		sb.WriteString(fmt.Sprintf("Dataset:  %d\n", *info.DatasetID))
	}
	if len(info.Shape) == 2 {
		sb.WriteString(fmt.Sprintf("Shape:    %d rows × %d columns\n", info.Shape[0], info.Shape[1]))
	}
	cols := strings.Join(info.Columns, ", ")
	sb.WriteString(fmt.Sprintf("Columns:  %s", orDash(cols)))
	p.printBox("DATASET", sb.String())
}

// PrintRanking outputs completed experiments best first, then the failures
func (p *Printer) PrintRanking(outcome *types.TrainingOutcome) {
	if outcome == nil {
		return
	}
	ranked := ranking.RankResults(outcome.Results)

	var sb strings.Builder
	sb.WriteString(ranking.Summary(outcome))
	sb.WriteString("\n\n")

	count := min(len(ranked), maxItemsToShow)
	for i := 0; i < count; i++ {
		r := ranked[i]
		sb.WriteString(fmt.Sprintf("#%d  %s (%s)\n", i+1, r.Model, r.ExpID))
		sb.WriteString(fmt.Sprintf("    Test: %s", scoreText(r.TestScore)))
		if r.CVMean != nil {
			sb.WriteString(fmt.Sprintf("  CV: %.4f", *r.CVMean))
		}
		if r.TrainingTimeSeconds != nil {
			sb.WriteString(fmt.Sprintf("  %.1fs", *r.TrainingTimeSeconds))
		}
		sb.WriteString("\n")
	}
	if len(ranked) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("... and %d more experiments\n", len(ranked)-maxItemsToShow))
	}

	for _, f := range outcome.Failed() {
		sb.WriteString(fmt.Sprintf("✗ %s (%s): %s\n", f.Model, f.ExpID, orDash(f.Error)))
	}

	p.printBox("EXPERIMENT RANKING", strings.TrimRight(sb.String(), "\n"))
}

// PrintDatasets outputs a project's datasets sorted by id
func (p *Printer) PrintDatasets(projectID int, datasets []types.Dataset) {
	sorted := append([]types.Dataset(nil), datasets...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var sb strings.Builder
	if len(sorted) == 0 {
		sb.WriteString("No datasets")
	}
	for i, d := range sorted {
		sb.WriteString(fmt.Sprintf("%-6d %s", d.ID, d.Name))
		if d.Rows != nil && d.Columns != nil {
			sb.WriteString(fmt.Sprintf("  (%d×%d)", *d.Rows, *d.Columns))
		}
		if i < len(sorted)-1 {
			sb.WriteString("\n")
		}
	}
	p.printBox(fmt.Sprintf("DATASETS  project %d", projectID), sb.String())
}

// PrintProgress outputs one phase transition on a single line
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintProgress(ev pipeline.ProgressEvent) {
	icon := "→"
	switch types.Phase(ev.Step) {
	case types.PhaseErrored:
		icon = "✗"
	case types.PhaseCompleted, types.PhaseReviewingIntent:
		icon = "✓"
	}
	fmt.Fprintf(p.out, "%s [%s] %s\n", icon, ev.Step, ev.Message)
}

// PrintError outputs the error recorded on a session
func (p *Printer) PrintError(info *types.ErrorInfo) {
	if info == nil {
		return
	}
	p.printBox(fmt.Sprintf("ERROR  %s during %s", info.Kind, info.Step), info.Message)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func intText(n int) string {
	if n == 0 {
		return ""
	}
	return fmt.Sprintf("%d", n)
}

func floatText(f float64) string {
	if f == 0 {
		return ""
	}
	return fmt.Sprintf("%g", f)
}

func scoreText(f *float64) string {
	if f == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.4f", *f)
}
