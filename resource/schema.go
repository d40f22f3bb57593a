package resource

import (
	"errors"
	"fmt"
	"strings"

	"github.com/crmarques/declagate/faults"
	"ocm.software/open-component-model/bindings/go/dag"
)

// Reference declares that resources of one kind point at resources of
// another category. Field is the dotted path of the referencing value inside
// the resource and names the id of a resource declared in the configuration
// root; an empty Field means the reference is the parent relation.
type Reference struct {
	Category Category
	Field    string
}

// Kind describes how one resource category is laid out in a configuration
// tree and how it is compared.
type Kind struct {
	Category Category
	// Field is the collection field holding resources of this kind, either in
	// the configuration root or in the parent resource.
	Field string
	// KeyField holds the local key. A list of strings is joined with ",".
	KeyField string
	// Keyed collections are maps from local key to resource body instead of
	// lists (global rules, plugin metadata).
	Keyed    bool
	Children []Kind
	// Embedded singleton children stay part of the parent's own fields.
	Embedded []string
	// IgnorePaths are dotted paths removed from both sides before comparing.
	// A "*" segment matches every list element or map value.
	IgnorePaths []string
	References  []Reference
}

// LocalKey extracts the human-readable key of a resource of this kind.
func (k Kind) LocalKey(object Object) (string, bool) {
	switch typed := object[k.KeyField].(type) {
	case string:
		return typed, strings.TrimSpace(typed) != ""
	case []any:
		parts := make([]string, 0, len(typed))
		for _, item := range typed {
			text, ok := item.(string)
			if !ok || text == "" {
				return "", false
			}
			parts = append(parts, text)
		}
		return strings.Join(parts, ","), len(parts) > 0
	case []string:
		return strings.Join(typed, ","), len(typed) > 0
	default:
		return "", false
	}
}

// IsChildField reports whether field is one of the kind's child collections.
func (k Kind) IsChildField(field string) bool {
	for _, child := range k.Children {
		if child.Field == field {
			return true
		}
	}
	return false
}

// Slot is one position in the apply order. A Root slot only holds resources
// declared in the configuration root, so root resources of a category can be
// applied ahead of the child resources of the same category.
type Slot struct {
	Category Category
	Root     bool
}

// Schema is the static category table used by the decomposer, the planner and
// the ordering policy.
type Schema struct {
	Kinds []Kind
	Order []Slot
}

// DefaultSchema returns the gateway category table.
func DefaultSchema() Schema {
	return Schema{
		Kinds: []Kind{
			{
				Category:    CategorySSL,
				Field:       "ssls",
				KeyField:    "snis",
				IgnorePaths: []string{"certificates.*.key"},
			},
			{
				Category: CategoryService,
				Field:    "services",
				KeyField: "name",
				Embedded: []string{"upstream"},
				Children: []Kind{
					{
						Category:   CategoryUpstream,
						Field:      "upstreams",
						KeyField:   "name",
						References: []Reference{{Category: CategorySSL, Field: "tls.client_cert_id"}},
					},
					{
						Category: CategoryRoute,
						Field:    "routes",
						KeyField: "name",
						References: []Reference{
							{Category: CategoryUpstream, Field: "upstream_id"},
							{Category: CategoryPluginConfig, Field: "plugin_config_id"},
						},
					},
					{
						Category:   CategoryStreamRoute,
						Field:      "stream_routes",
						KeyField:   "name",
						References: []Reference{{Category: CategoryUpstream, Field: "upstream_id"}},
					},
				},
				References: []Reference{
					{Category: CategorySSL, Field: "upstream.tls.client_cert_id"},
					{Category: CategoryUpstream, Field: "upstream_id"},
				},
			},
			{
				Category: CategoryConsumer,
				Field:    "consumers",
				KeyField: "username",
				Children: []Kind{
					{Category: CategoryCredential, Field: "credentials", KeyField: "name"},
				},
			},
			{
				Category:   CategoryUpstream,
				Field:      "upstreams",
				KeyField:   "name",
				References: []Reference{{Category: CategorySSL, Field: "tls.client_cert_id"}},
			},
			{Category: CategoryPluginConfig, Field: "plugin_configs", KeyField: "name"},
			{Category: CategoryGlobalRule, Field: "global_rules", Keyed: true},
			{Category: CategoryPluginMetadata, Field: "plugin_metadata", Keyed: true},
		},
		Order: []Slot{
			{Category: CategorySSL},
			{Category: CategoryUpstream, Root: true},
			{Category: CategoryPluginConfig},
			{Category: CategoryService},
			{Category: CategoryUpstream},
			{Category: CategoryRoute},
			{Category: CategoryConsumer},
			{Category: CategoryCredential},
			{Category: CategoryStreamRoute},
			{Category: CategoryGlobalRule},
			{Category: CategoryPluginMetadata},
		},
	}
}

// Lookup returns the first kind declared for category, searching children
// depth first.
func (s Schema) Lookup(category Category) (Kind, bool) {
	return lookupKind(s.Kinds, category)
}

func lookupKind(kinds []Kind, category Category) (Kind, bool) {
	for _, kind := range kinds {
		if kind.Category == category {
			return kind, true
		}
		if found, ok := lookupKind(kind.Children, category); ok {
			return found, true
		}
	}
	return Kind{}, false
}

// LookupAt returns the kind declared for category in the configuration root
// when root is true, otherwise the first child kind declared for it.
func (s Schema) LookupAt(category Category, root bool) (Kind, bool) {
	if root {
		for _, kind := range s.Kinds {
			if kind.Category == category {
				return kind, true
			}
		}
		return Kind{}, false
	}
	for _, kind := range s.Kinds {
		if found, ok := lookupKind(kind.Children, category); ok {
			return found, true
		}
	}
	return Kind{}, false
}

// ParentCategory returns the category whose resources hold resources of
// category in a child collection.
func (s Schema) ParentCategory(category Category) (Category, bool) {
	var search func(kinds []Kind) (Category, bool)
	search = func(kinds []Kind) (Category, bool) {
		for _, kind := range kinds {
			for _, child := range kind.Children {
				if child.Category == category {
					return kind.Category, true
				}
			}
			if parent, ok := search(kind.Children); ok {
				return parent, true
			}
		}
		return "", false
	}
	return search(s.Kinds)
}

// Rank returns the first position of category in the apply order, or -1 when
// the category is not listed.
func (s Schema) Rank(category Category) int {
	for idx, slot := range s.Order {
		if slot.Category == category {
			return idx
		}
	}
	return -1
}

// SlotRank returns the position at which a resource of category is applied.
// root tells whether the resource is declared in the configuration root.
func (s Schema) SlotRank(category Category, root bool) int {
	for idx, slot := range s.Order {
		if slot.Category == category && (root || !slot.Root) {
			return idx
		}
	}
	return -1
}

// Validate checks that the apply order lists every slot once and that every
// declared reference, including the implicit parent relation of child kinds,
// points at a slot applied earlier.
func (s Schema) Validate() error {
	graph := dag.NewDirectedAcyclicGraph[int]()
	seen := map[Slot]bool{}
	for idx, slot := range s.Order {
		if seen[slot] {
			return faults.NewTypedError(
				faults.ValidationError,
				fmt.Sprintf("category %q is listed twice in the apply order", slot.Category),
				nil,
			)
		}
		seen[slot] = true
		if err := graph.AddVertex(idx); err != nil {
			return faults.NewTypedError(faults.InternalError, "failed to build category graph", err)
		}
	}

	var walk func(kinds []Kind, parent Category, parentRank int, root bool) error
	walk = func(kinds []Kind, parent Category, parentRank int, root bool) error {
		for _, kind := range kinds {
			from := s.SlotRank(kind.Category, root)
			if from < 0 {
				return faults.NewTypedError(
					faults.ValidationError,
					fmt.Sprintf("category %q is missing from the apply order", kind.Category),
					nil,
				)
			}

			if parent != "" {
				if err := s.addReference(graph, kind.Category, from, Reference{Category: parent}, parentRank); err != nil {
					return err
				}
			}
			for _, reference := range kind.References {
				to := s.SlotRank(reference.Category, true)
				if err := s.addReference(graph, kind.Category, from, reference, to); err != nil {
					return err
				}
			}

			if err := walk(kind.Children, kind.Category, from, false); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(s.Kinds, "", -1, true); err != nil {
		return err
	}

	if _, err := graph.TopologicalSort(); err != nil {
		return faults.NewTypedError(faults.ValidationError, "category references contain a cycle", err)
	}
	return nil
}

func (s Schema) addReference(graph *dag.DirectedAcyclicGraph[int], from Category, fromRank int, reference Reference, toRank int) error {
	describe := func() string {
		if reference.Field == "" {
			return fmt.Sprintf("category %q (parent %q)", from, reference.Category)
		}
		return fmt.Sprintf("category %q (field %q -> %q)", from, reference.Field, reference.Category)
	}

	if toRank < 0 {
		return faults.NewTypedError(
			faults.ValidationError,
			describe()+" references a category missing from the apply order",
			nil,
		)
	}
	if err := graph.AddEdge(fromRank, toRank); err != nil {
		var cycleErr *dag.CycleError
		if errors.As(err, &cycleErr) || errors.Is(err, dag.ErrSelfReference) {
			return faults.NewTypedError(faults.ValidationError, describe()+" creates a reference cycle", err)
		}
		return faults.NewTypedError(faults.InternalError, "failed to build category graph", err)
	}
	if toRank >= fromRank {
		return faults.NewTypedError(
			faults.ValidationError,
			describe()+" references a category applied later",
			nil,
		)
	}
	return nil
}
