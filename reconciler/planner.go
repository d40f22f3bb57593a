// Package reconciler turns a desired and a current configuration into an
// ordered list of change events. It performs no I/O.
package reconciler

import (
	"fmt"

	"github.com/crmarques/declagate/diff"
	"github.com/crmarques/declagate/resource"
)

type Planner struct {
	schema   resource.Schema
	defaults *resource.Defaults
}

type Option func(*Planner)

func WithSchema(schema resource.Schema) Option {
	return func(p *Planner) {
		p.schema = schema
	}
}

// WithDefaults merges backend default values into desired resources before
// they are compared. Event payloads never carry the merged defaults.
func WithDefaults(defaults *resource.Defaults) Option {
	return func(p *Planner) {
		p.defaults = defaults
	}
}

func NewPlanner(opts ...Option) *Planner {
	planner := &Planner{schema: resource.DefaultSchema()}
	for _, opt := range opts {
		opt(planner)
	}
	return planner
}

// Plan computes the events converging current to desired with the default
// schema and no backend defaults.
func Plan(desired, current resource.Configuration) ([]resource.Event, error) {
	return NewPlanner().Plan(desired, current)
}

func (p *Planner) Plan(desired, current resource.Configuration) ([]resource.Event, error) {
	desiredTree, err := Decompose(p.schema, desired)
	if err != nil {
		return nil, fmt.Errorf("desired configuration: %w", err)
	}
	currentTree, err := Decompose(p.schema, current)
	if err != nil {
		return nil, fmt.Errorf("current configuration: %w", err)
	}

	events := []resource.Event{}
	for idx := range p.schema.Kinds {
		p.planLevel(&events, desiredTree.Levels[idx], currentTree.Levels[idx])
	}
	return Order(events, p.schema), nil
}

func (p *Planner) planLevel(events *[]resource.Event, desired, current *Level) {
	for _, currentNode := range current.Nodes {
		if _, found := desired.Get(currentNode.ID); found {
			continue
		}
		appendDeletes(events, currentNode)
	}

	for _, desiredNode := range desired.Nodes {
		currentNode, found := current.Get(desiredNode.ID)
		if !found {
			appendCreates(events, desiredNode)
			continue
		}

		if entries := p.compare(desiredNode, currentNode); len(entries) > 0 {
			*events = append(*events, resource.Event{
				Operation:    resource.OperationUpdate,
				Category:     desiredNode.Kind.Category,
				ResourceID:   desiredNode.ID,
				ResourceName: desiredNode.Name,
				ParentID:     desiredNode.ParentID,
				OldValue:     currentNode.OutputValue(),
				NewValue:     desiredNode.OutputValue(),
				Diff:         entries,
			})
		}

		for idx := range desiredNode.Children {
			p.planLevel(events, desiredNode.Children[idx], currentNode.Children[idx])
		}
	}
}

// compare diffs the own fields of a matched pair, current as the old side.
func (p *Planner) compare(desired, current *Node) []diff.Entry {
	desiredValue := p.defaults.Apply(defaultsCategory(desired), desired.Own)
	currentValue := resource.CloneObject(current.Own)
	for _, path := range desired.Kind.IgnorePaths {
		resource.RemovePath(desiredValue, path)
		resource.RemovePath(currentValue, path)
	}
	return diff.Compare(currentValue, desiredValue)
}

// defaultsCategory picks the default table; services carrying stream routes
// use the stream service table.
func defaultsCategory(node *Node) resource.Category {
	if node.Kind.Category == resource.CategoryService {
		if _, found := node.Raw["stream_routes"]; found {
			return resource.CategoryStreamService
		}
	}
	return node.Kind.Category
}

func appendDeletes(events *[]resource.Event, node *Node) {
	*events = append(*events, resource.Event{
		Operation:    resource.OperationDelete,
		Category:     node.Kind.Category,
		ResourceID:   node.ID,
		ResourceName: node.Name,
		ParentID:     node.ParentID,
		OldValue:     node.deletedValue(),
	})
	for _, level := range node.Children {
		for _, child := range level.Nodes {
			appendDeletes(events, child)
		}
	}
}

func appendCreates(events *[]resource.Event, node *Node) {
	*events = append(*events, resource.Event{
		Operation:    resource.OperationCreate,
		Category:     node.Kind.Category,
		ResourceID:   node.ID,
		ResourceName: node.Name,
		ParentID:     node.ParentID,
		NewValue:     node.OutputValue(),
	})
	for _, level := range node.Children {
		for _, child := range level.Nodes {
			appendCreates(events, child)
		}
	}
}
