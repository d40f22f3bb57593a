// Package filter narrows desired and current configurations to the resources
// a context manages.
package filter

import (
	"github.com/crmarques/declagate/config"
	"github.com/crmarques/declagate/resource"
)

type Filter struct {
	labels  map[string]string
	include map[resource.Category]bool
	exclude map[resource.Category]bool
	schema  resource.Schema
}

// FromContext builds the filter configured on a context.
func FromContext(cfg config.Context) *Filter {
	return New(cfg.LabelSelector, cfg.IncludeResourceTypes, cfg.ExcludeResourceTypes)
}

func New(labelSelector map[string]string, include []string, exclude []string) *Filter {
	filter := &Filter{
		labels:  map[string]string{},
		include: toCategorySet(include),
		exclude: toCategorySet(exclude),
		schema:  resource.DefaultSchema(),
	}
	for key, value := range labelSelector {
		filter.labels[key] = value
	}
	return filter
}

// Empty reports whether the filter keeps everything unchanged.
func (f *Filter) Empty() bool {
	return len(f.labels) == 0 && len(f.include) == 0 && len(f.exclude) == 0
}

// Allows reports whether resources of category are managed.
func (f *Filter) Allows(category resource.Category) bool {
	if len(f.include) > 0 && !f.include[category] {
		return false
	}
	return !f.exclude[category]
}

// Desired drops unmanaged categories and adds the selector labels to every
// remaining labelled resource, so created resources are selected next time.
func (f *Filter) Desired(cfg resource.Configuration) resource.Configuration {
	return f.apply(cfg, f.injectLabels)
}

// Current drops unmanaged categories and every resource that does not carry
// all selector labels. Children of a dropped resource go with it.
func (f *Filter) Current(cfg resource.Configuration) resource.Configuration {
	return f.apply(cfg, f.matchLabels)
}

func (f *Filter) apply(cfg resource.Configuration, visit func(resource.Object) bool) resource.Configuration {
	filtered := resource.Configuration{}
	for _, kind := range f.schema.Kinds {
		value, present := cfg[kind.Field]
		if !present || !f.Allows(kind.Category) {
			continue
		}
		if kind.Keyed {
			filtered[kind.Field] = resource.CloneValue(value)
			continue
		}
		items, isList := value.([]any)
		if !isList {
			filtered[kind.Field] = resource.CloneValue(value)
			continue
		}
		filtered[kind.Field] = f.filterList(kind, items, visit)
	}
	return filtered
}

func (f *Filter) filterList(kind resource.Kind, items []any, visit func(resource.Object) bool) []any {
	kept := make([]any, 0, len(items))
	for _, item := range items {
		object, isObject := item.(map[string]any)
		if !isObject {
			kept = append(kept, resource.CloneValue(item))
			continue
		}
		object = resource.CloneObject(object)
		if !visit(object) {
			continue
		}
		for _, child := range kind.Children {
			children, present := object[child.Field]
			if !present {
				continue
			}
			if !f.Allows(child.Category) {
				delete(object, child.Field)
				continue
			}
			if childItems, isList := children.([]any); isList {
				object[child.Field] = f.filterList(child, childItems, visit)
			}
		}
		kept = append(kept, object)
	}
	return kept
}

func (f *Filter) injectLabels(object resource.Object) bool {
	if len(f.labels) == 0 {
		return true
	}
	labels, _ := object["labels"].(map[string]any)
	if labels == nil {
		labels = map[string]any{}
	}
	for key, value := range f.labels {
		labels[key] = value
	}
	object["labels"] = labels
	return true
}

func (f *Filter) matchLabels(object resource.Object) bool {
	if len(f.labels) == 0 {
		return true
	}
	labels, _ := object["labels"].(map[string]any)
	for key, value := range f.labels {
		if actual, _ := labels[key].(string); actual != value {
			return false
		}
	}
	return true
}

func toCategorySet(values []string) map[resource.Category]bool {
	if len(values) == 0 {
		return nil
	}
	set := make(map[resource.Category]bool, len(values))
	for _, value := range values {
		set[resource.Category(value)] = true
	}
	return set
}
