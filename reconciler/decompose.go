package reconciler

import (
	"fmt"
	"maps"
	"slices"
	"sort"

	"github.com/crmarques/declagate/faults"
	"github.com/crmarques/declagate/resource"
	"github.com/crmarques/declagate/resource/identity"
)

// Node is one decomposed resource.
type Node struct {
	Kind     resource.Kind
	ID       string
	Name     string
	ParentID string
	// Path locates the resource in its configuration, e.g. "services[1].routes[0]".
	Path string
	// Own holds the normalised own fields: child collections, id and metadata
	// removed. Embedded singleton children stay.
	Own resource.Object
	// Raw is the resource exactly as declared.
	Raw resource.Object
	// Children has one level per child kind, in schema order.
	Children []*Level
}

// Level is an ordered set of sibling resources of one kind.
type Level struct {
	Kind  resource.Kind
	Nodes []*Node
	index map[string]*Node
}

func (l *Level) Get(id string) (*Node, bool) {
	if l == nil {
		return nil, false
	}
	node, found := l.index[id]
	return node, found
}

// Tree is a decomposed configuration with one level per root kind.
type Tree struct {
	Levels []*Level
}

// Index flattens the tree into a map addressed by category, parent and id.
func (t *Tree) Index() map[resource.Key]*Node {
	index := map[resource.Key]*Node{}
	var walk func(levels []*Level)
	walk = func(levels []*Level) {
		for _, level := range levels {
			for _, node := range level.Nodes {
				index[resource.Key{Category: node.Kind.Category, ParentID: node.ParentID, ID: node.ID}] = node
				walk(node.Children)
			}
		}
	}
	walk(t.Levels)
	return index
}

// OutputValue is the value reported on events: the own fields with every
// present child collection replaced by stubs carrying only the local key.
func (n *Node) OutputValue() resource.Object {
	output := resource.CloneObject(n.Own)
	if output == nil {
		output = resource.Object{}
	}
	for _, level := range n.Children {
		if _, present := n.Raw[level.Kind.Field]; !present {
			continue
		}
		stubs := make([]any, 0, len(level.Nodes))
		for _, child := range level.Nodes {
			stubs = append(stubs, map[string]any{level.Kind.KeyField: child.Raw[level.Kind.KeyField]})
		}
		output[level.Kind.Field] = stubs
	}
	return output
}

// deletedValue is the verbatim declaration without top-level id and metadata.
func (n *Node) deletedValue() resource.Object {
	value := resource.CloneObject(n.Raw)
	if !n.Kind.Keyed {
		delete(value, "id")
		delete(value, "metadata")
	}
	return value
}

// Decompose splits cfg into tracked resources following schema. Malformed
// input, including a root collection the schema does not declare, fails with
// a validation error naming the offending path; two siblings resolving to the
// same identity fail with a conflict error.
func Decompose(schema resource.Schema, cfg resource.Configuration) (*Tree, error) {
	if err := checkRootFields(schema, cfg); err != nil {
		return nil, err
	}

	tree := &Tree{Levels: make([]*Level, 0, len(schema.Kinds))}
	for _, kind := range schema.Kinds {
		level, err := decomposeLevel(kind, cfg[kind.Field], "", kind.Field)
		if err != nil {
			return nil, err
		}
		tree.Levels = append(tree.Levels, level)
	}
	return tree, nil
}

// checkRootFields rejects root collections the schema does not declare.
func checkRootFields(schema resource.Schema, cfg resource.Configuration) error {
	known := make(map[string]bool, len(schema.Kinds))
	for _, kind := range schema.Kinds {
		known[kind.Field] = true
	}
	for _, field := range slices.Sorted(maps.Keys(cfg)) {
		if !known[field] {
			return validationError(field, fmt.Sprintf("unknown collection %q", field))
		}
	}
	return nil
}

func decomposeLevel(kind resource.Kind, collection any, parentID string, path string) (*Level, error) {
	level := &Level{Kind: kind, index: map[string]*Node{}}
	if collection == nil {
		return level, nil
	}

	entries, err := collectionEntries(kind, collection, path)
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		node, err := decomposeNode(kind, entry, parentID)
		if err != nil {
			return nil, err
		}
		if existing, found := level.index[node.ID]; found {
			return nil, faults.NewPathError(
				faults.ConflictError,
				node.Path,
				fmt.Sprintf("duplicate resource identity %q (already declared at %s)", node.ID, existing.Path),
			)
		}
		level.index[node.ID] = node
		level.Nodes = append(level.Nodes, node)
	}
	return level, nil
}

type collectionEntry struct {
	path  string
	key   string
	value any
}

func collectionEntries(kind resource.Kind, collection any, path string) ([]collectionEntry, error) {
	if kind.Keyed {
		items, ok := collection.(map[string]any)
		if !ok {
			return nil, validationError(path, fmt.Sprintf("expected a map of %s, got %T", kind.Category, collection))
		}
		keys := make([]string, 0, len(items))
		for key := range items {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		entries := make([]collectionEntry, 0, len(keys))
		for _, key := range keys {
			entries = append(entries, collectionEntry{path: path + "." + key, key: key, value: items[key]})
		}
		return entries, nil
	}

	var items []any
	switch typed := collection.(type) {
	case []any:
		items = typed
	case []map[string]any:
		items = make([]any, len(typed))
		for idx, item := range typed {
			items[idx] = item
		}
	default:
		return nil, validationError(path, fmt.Sprintf("expected a list of %s, got %T", kind.Category, collection))
	}

	entries := make([]collectionEntry, 0, len(items))
	for idx, item := range items {
		entries = append(entries, collectionEntry{path: fmt.Sprintf("%s[%d]", path, idx), value: item})
	}
	return entries, nil
}

func decomposeNode(kind resource.Kind, entry collectionEntry, parentID string) (*Node, error) {
	raw, ok := entry.value.(map[string]any)
	if !ok {
		return nil, validationError(entry.path, fmt.Sprintf("expected an object, got %T", entry.value))
	}

	localKey := entry.key
	explicitID := ""
	if !kind.Keyed {
		key, found := kind.LocalKey(raw)
		if !found {
			return nil, validationError(entry.path, fmt.Sprintf("missing local key %q", kind.KeyField))
		}
		localKey = key

		if rawID, present := raw["id"]; present && rawID != nil {
			id, isString := rawID.(string)
			if !isString {
				return nil, validationError(entry.path+".id", fmt.Sprintf("id must be a string, got %T", rawID))
			}
			explicitID = id
		}
	}

	own := resource.CloneObject(raw)
	if !kind.Keyed {
		delete(own, "id")
		delete(own, "metadata")
	}
	for _, child := range kind.Children {
		delete(own, child.Field)
	}
	normalized, err := resource.NormalizeObject(own)
	if err != nil {
		return nil, faults.NewPathError(faults.ValidationError, entry.path, err.Error())
	}

	node := &Node{
		Kind:     kind,
		ID:       identity.Resolve(explicitID, parentID, localKey),
		Name:     localKey,
		ParentID: parentID,
		Path:     entry.path,
		Own:      normalized,
		Raw:      raw,
	}

	for _, child := range kind.Children {
		level, err := decomposeLevel(child, raw[child.Field], node.ID, entry.path+"."+child.Field)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, level)
	}
	return node, nil
}

func validationError(path string, message string) error {
	return faults.NewPathError(faults.ValidationError, path, message)
}
