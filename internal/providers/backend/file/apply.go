package file

import (
	"context"
	"fmt"

	"github.com/crmarques/declagate/resource"
	"github.com/crmarques/declagate/resource/identity"
	"github.com/go-logr/logr"
)

// Apply changes the in-memory state. Creates and updates are upserts; deletes
// of missing resources and of children whose parent is gone succeed.
func (s *StateStore) Apply(ctx context.Context, event resource.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return err
	}

	kind, container, err := s.locate(event)
	if err != nil {
		return err
	}
	if container == nil {
		if event.Operation == resource.OperationDelete {
			logr.FromContextOrDiscard(ctx).V(1).Info("parent already absent", "category", event.Category, "parentId", event.ParentID)
			return nil
		}
		return notFoundError(fmt.Sprintf("%s %q: parent %q not found", event.Category, event.ResourceName, event.ParentID), nil)
	}

	if kind.Keyed {
		err = applyKeyed(kind, container, event)
	} else {
		err = applyListed(kind, container, event)
	}
	if err != nil {
		return err
	}
	s.dirty = true
	return nil
}

// locate returns the kind of the event's resource and the object holding its
// collection: the configuration root or the parent resource. A nil container
// means the parent does not exist.
func (s *StateStore) locate(event resource.Event) (resource.Kind, map[string]any, error) {
	if event.ParentID == "" {
		for _, kind := range s.schema.Kinds {
			if kind.Category == event.Category {
				return kind, s.state, nil
			}
		}
		return resource.Kind{}, nil, validationError(fmt.Sprintf("unsupported resource category %q", event.Category), nil)
	}

	for _, parentKind := range s.schema.Kinds {
		for _, childKind := range parentKind.Children {
			if childKind.Category != event.Category {
				continue
			}
			list, _ := s.state[parentKind.Field].([]any)
			idx := indexOf(parentKind, list, "", event.ParentID)
			if idx < 0 {
				return childKind, nil, nil
			}
			parent, _ := list[idx].(map[string]any)
			return childKind, parent, nil
		}
	}
	return resource.Kind{}, nil, validationError(fmt.Sprintf("unsupported child category %q", event.Category), nil)
}

func applyKeyed(kind resource.Kind, container map[string]any, event resource.Event) error {
	entries, _ := container[kind.Field].(map[string]any)
	switch event.Operation {
	case resource.OperationCreate, resource.OperationUpdate:
		if entries == nil {
			entries = map[string]any{}
		}
		entries[event.ResourceID] = resource.CloneObject(event.NewValue)
		container[kind.Field] = entries
	case resource.OperationDelete:
		delete(entries, event.ResourceID)
		if len(entries) == 0 {
			delete(container, kind.Field)
		}
	default:
		return validationError(fmt.Sprintf("unsupported operation %q", event.Operation), nil)
	}
	return nil
}

func applyListed(kind resource.Kind, container map[string]any, event resource.Event) error {
	list, _ := container[kind.Field].([]any)
	idx := indexOf(kind, list, event.ParentID, event.ResourceID)

	switch event.Operation {
	case resource.OperationCreate, resource.OperationUpdate:
		value := storedValue(kind, event)
		if idx < 0 {
			container[kind.Field] = append(list, value)
			return nil
		}
		existing, _ := list[idx].(map[string]any)
		for _, child := range kind.Children {
			if children, present := existing[child.Field]; present {
				value[child.Field] = children
			}
		}
		if metadata, present := existing["metadata"]; present {
			value["metadata"] = metadata
		}
		list[idx] = value
	case resource.OperationDelete:
		if idx < 0 {
			return nil
		}
		list = append(list[:idx], list[idx+1:]...)
		if len(list) == 0 {
			delete(container, kind.Field)
			return nil
		}
		container[kind.Field] = list
	default:
		return validationError(fmt.Sprintf("unsupported operation %q", event.Operation), nil)
	}
	return nil
}

// storedValue strips child stubs from the event value and restores the id
// when the resource identity is not derivable from its local key.
func storedValue(kind resource.Kind, event resource.Event) map[string]any {
	value := resource.CloneObject(event.NewValue)
	if value == nil {
		value = map[string]any{}
	}
	for _, child := range kind.Children {
		delete(value, child.Field)
	}
	localKey, _ := kind.LocalKey(value)
	if identity.Resolve("", event.ParentID, localKey) != event.ResourceID {
		value["id"] = event.ResourceID
	}
	return value
}

func indexOf(kind resource.Kind, list []any, parentID string, resourceID string) int {
	for idx, item := range list {
		object, ok := item.(map[string]any)
		if !ok {
			continue
		}
		explicitID, _ := object["id"].(string)
		localKey, _ := kind.LocalKey(object)
		if identity.Resolve(explicitID, parentID, localKey) == resourceID {
			return idx
		}
	}
	return -1
}
