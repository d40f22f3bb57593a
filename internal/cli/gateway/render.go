package gateway

import (
	"fmt"
	"io"
	"strings"

	"github.com/crmarques/declagate/backend"
	"github.com/crmarques/declagate/diff"
	"github.com/crmarques/declagate/orchestrator"
	"github.com/crmarques/declagate/resource"
)

var operationSymbols = map[resource.Operation]string{
	resource.OperationCreate: "+",
	resource.OperationUpdate: "~",
	resource.OperationDelete: "-",
}

func renderPlan(w io.Writer, plan orchestrator.Plan, verbose bool) error {
	if plan.Empty() {
		_, err := fmt.Fprintln(w, "No changes. The gateway matches the configuration.")
		return err
	}

	for _, event := range plan.Events {
		if _, err := fmt.Fprintln(w, describeEvent(event)); err != nil {
			return err
		}
		if !verbose || event.Operation != resource.OperationUpdate {
			continue
		}
		for _, entry := range event.Diff {
			if _, err := fmt.Fprintf(w, "    %s\n", describeEntry(entry)); err != nil {
				return err
			}
		}
	}

	_, err := fmt.Fprintf(w, "\n%s\n", summaryLine(plan.Summary))
	return err
}

func renderReport(w io.Writer, report orchestrator.Report) error {
	if report.Aborted {
		_, err := fmt.Fprintln(w, "Sync cancelled. No changes were applied.")
		return err
	}
	if report.Plan.Empty() {
		_, err := fmt.Fprintln(w, "No changes. The gateway matches the configuration.")
		return err
	}

	for _, result := range report.Results {
		if _, err := fmt.Fprintln(w, describeResult(result)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(
		w,
		"\n%d succeeded, %d failed, %d skipped (transaction %s)\n",
		report.Succeeded,
		report.Failed,
		report.Skipped,
		report.Plan.TransactionID,
	)
	return err
}

func describeEvent(event resource.Event) string {
	symbol := operationSymbols[event.Operation]
	if symbol == "" {
		symbol = "?"
	}

	label := fmt.Sprintf("%s %s %s %q", symbol, event.Operation, event.Category, event.ResourceName)
	if event.ResourceID != "" && event.ResourceID != event.ResourceName {
		label += fmt.Sprintf(" (id %s)", event.ResourceID)
	}
	if event.ParentID != "" {
		label += fmt.Sprintf(" in %s", event.ParentID)
	}
	return label
}

func describeResult(result backend.SyncResult) string {
	switch {
	case result.Skipped:
		return "[SKIPPED] " + describeEvent(result.Event)
	case result.Err != nil:
		return fmt.Sprintf("[FAILED] %s: %v", describeEvent(result.Event), result.Err)
	default:
		return "[DONE] " + describeEvent(result.Event)
	}
}

func describeEntry(entry diff.Entry) string {
	path := entry.PathString()
	switch entry.Kind {
	case diff.KindAdded:
		return fmt.Sprintf("+ %s: %s", path, compactValue(entry.NewValue))
	case diff.KindRemoved:
		return fmt.Sprintf("- %s: %s", path, compactValue(entry.OldValue))
	case diff.KindArray:
		if entry.Item == nil {
			return path + " changed"
		}
		switch entry.Item.Kind {
		case diff.KindAdded:
			return fmt.Sprintf("+ %s: %s", path, compactValue(entry.Item.NewValue))
		case diff.KindRemoved:
			return fmt.Sprintf("- %s: %s", path, compactValue(entry.Item.OldValue))
		}
		return path + " changed"
	default:
		return fmt.Sprintf("~ %s: %s -> %s", path, compactValue(entry.OldValue), compactValue(entry.NewValue))
	}
}

func summaryLine(summary orchestrator.Summary) string {
	parts := make([]string, 0, len(summary.Categories))
	for _, category := range summary.Categories {
		parts = append(parts, fmt.Sprintf("%s %d", category.Category, category.Total()))
	}

	line := fmt.Sprintf(
		"Plan: %d to create, %d to update, %d to delete.",
		summary.Total.Create,
		summary.Total.Update,
		summary.Total.Delete,
	)
	if len(parts) > 0 {
		line += " (" + strings.Join(parts, ", ") + ")"
	}
	return line
}

func compactValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("%q", typed)
	default:
		return fmt.Sprintf("%v", typed)
	}
}
