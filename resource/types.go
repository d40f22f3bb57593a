package resource

import "github.com/crmarques/declagate/diff"

type Value = any

// Object is a single resource body as decoded from YAML or JSON.
type Object = map[string]any

// Configuration maps a category collection name ("services", "ssls", ...) to
// its declared resources. List categories hold []any of objects; keyed
// categories such as "global_rules" hold a map from key to object.
type Configuration map[string]any

type Category string

const (
	CategorySSL            Category = "ssl"
	CategoryService        Category = "service"
	CategoryUpstream       Category = "upstream"
	CategoryRoute          Category = "route"
	CategoryStreamRoute    Category = "stream_route"
	CategoryConsumer       Category = "consumer"
	CategoryCredential     Category = "credential"
	CategoryPluginConfig   Category = "plugin_config"
	CategoryGlobalRule     Category = "global_rule"
	CategoryPluginMetadata Category = "plugin_metadata"
)

type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// Event is one planned change. Events are value objects: the planner never
// touches an event after it has been appended to the plan.
type Event struct {
	Operation    Operation    `json:"operation" yaml:"operation"`
	Category     Category     `json:"resourceCategory" yaml:"resourceCategory"`
	ResourceID   string       `json:"resourceId" yaml:"resourceId"`
	ResourceName string       `json:"resourceName" yaml:"resourceName"`
	ParentID     string       `json:"parentId,omitempty" yaml:"parentId,omitempty"`
	OldValue     Object       `json:"oldValue,omitempty" yaml:"oldValue,omitempty"`
	NewValue     Object       `json:"newValue,omitempty" yaml:"newValue,omitempty"`
	Diff         []diff.Entry `json:"diff,omitempty" yaml:"diff,omitempty"`
}

// Key addresses a decomposed resource across the whole tree.
type Key struct {
	Category Category
	ParentID string
	ID       string
}

func (e Event) Key() Key {
	return Key{Category: e.Category, ParentID: e.ParentID, ID: e.ResourceID}
}

// Value returns the payload a backend should write for the event: the new
// value for creates and updates, the old value for deletes.
func (e Event) Value() Object {
	if e.Operation == OperationDelete {
		return e.OldValue
	}
	return e.NewValue
}
