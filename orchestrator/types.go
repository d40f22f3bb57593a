package orchestrator

import (
	"sort"

	"github.com/crmarques/declagate/backend"
	"github.com/crmarques/declagate/resource"
)

// Plan is one computed set of changes.
type Plan struct {
	TransactionID string           `json:"transactionId" yaml:"transactionId"`
	Events        []resource.Event `json:"events" yaml:"events"`
	Summary       Summary          `json:"summary" yaml:"summary"`
}

func (p Plan) Empty() bool {
	return len(p.Events) == 0
}

type Counts struct {
	Create int `json:"create" yaml:"create"`
	Update int `json:"update" yaml:"update"`
	Delete int `json:"delete" yaml:"delete"`
}

func (c Counts) Total() int {
	return c.Create + c.Update + c.Delete
}

func (c *Counts) add(operation resource.Operation) {
	switch operation {
	case resource.OperationCreate:
		c.Create++
	case resource.OperationUpdate:
		c.Update++
	case resource.OperationDelete:
		c.Delete++
	}
}

type CategoryCounts struct {
	Category resource.Category `json:"category" yaml:"category"`
	Counts   `yaml:",inline"`
}

type Summary struct {
	Total      Counts           `json:"total" yaml:"total"`
	Categories []CategoryCounts `json:"categories,omitempty" yaml:"categories,omitempty"`
}

// Summarize counts events per operation, overall and per category. Categories
// follow the apply order; unknown categories sort last by name.
func Summarize(events []resource.Event, schema resource.Schema) Summary {
	summary := Summary{}
	byCategory := map[resource.Category]*Counts{}
	for _, event := range events {
		summary.Total.add(event.Operation)
		counts, found := byCategory[event.Category]
		if !found {
			counts = &Counts{}
			byCategory[event.Category] = counts
		}
		counts.add(event.Operation)
	}

	for category, counts := range byCategory {
		summary.Categories = append(summary.Categories, CategoryCounts{Category: category, Counts: *counts})
	}
	sort.SliceStable(summary.Categories, func(i, j int) bool {
		left, right := schema.Rank(summary.Categories[i].Category), schema.Rank(summary.Categories[j].Category)
		switch {
		case left < 0 && right < 0:
			return summary.Categories[i].Category < summary.Categories[j].Category
		case left < 0:
			return false
		case right < 0:
			return true
		default:
			return left < right
		}
	})
	return summary
}

type SyncOptions struct {
	// Confirm is asked before any event is applied. A false answer aborts
	// the sync without error.
	Confirm func(Plan) (bool, error)
}

type Report struct {
	Plan      Plan                 `json:"plan" yaml:"plan"`
	Results   []backend.SyncResult `json:"results,omitempty" yaml:"results,omitempty"`
	Succeeded int                  `json:"succeeded" yaml:"succeeded"`
	Failed    int                  `json:"failed" yaml:"failed"`
	Skipped   int                  `json:"skipped" yaml:"skipped"`
	Aborted   bool                 `json:"aborted,omitempty" yaml:"aborted,omitempty"`
}

func newReport(plan Plan, results []backend.SyncResult) Report {
	report := Report{Plan: plan, Results: results}
	for _, result := range results {
		switch {
		case result.Skipped:
			report.Skipped++
		case result.Err != nil:
			report.Failed++
		default:
			report.Succeeded++
		}
	}
	return report
}
