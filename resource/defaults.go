package resource

// CategoryStreamService selects the default table for services that carry
// stream routes. It never appears on events.
const CategoryStreamService Category = "stream_service"

// Defaults holds the values a backend fills in for omitted fields. Merging
// them into the desired side before comparing keeps server-applied defaults
// from showing up as changes.
type Defaults struct {
	Core    map[Category]map[string]any `json:"core,omitempty" yaml:"core,omitempty"`
	Plugins map[string]map[string]any   `json:"plugins,omitempty" yaml:"plugins,omitempty"`
}

// Apply returns a copy of object with the defaults for category merged in.
// Plugin defaults are merged into each entry of the "plugins" field.
func (d *Defaults) Apply(category Category, object Object) Object {
	merged := CloneObject(object)
	if d == nil || merged == nil {
		return merged
	}

	if core, ok := d.Core[category]; ok {
		merged = MergeDefaults(merged, core)
	}

	plugins, ok := merged["plugins"].(map[string]any)
	if !ok || len(d.Plugins) == 0 {
		return merged
	}
	for name, config := range plugins {
		pluginDefaults, found := d.Plugins[name]
		if !found {
			continue
		}
		if configObject, isObject := config.(map[string]any); isObject {
			plugins[name] = MergeDefaults(configObject, pluginDefaults)
		}
	}
	return merged
}

// MergeDefaults fills absent scalar fields of value from defaults. Absent
// object and list defaults are not added; present objects merge recursively
// and the first element of a list default is merged into every element of a
// present list.
func MergeDefaults(value map[string]any, defaults map[string]any) map[string]any {
	merged := CloneObject(value)
	if merged == nil {
		merged = map[string]any{}
	}

	for key, defaultValue := range defaults {
		current, present := merged[key]
		if !present || current == nil {
			switch defaultValue.(type) {
			case map[string]any, []any:
				continue
			}
			merged[key] = CloneValue(defaultValue)
			continue
		}

		switch typedDefault := defaultValue.(type) {
		case map[string]any:
			if currentObject, ok := current.(map[string]any); ok {
				merged[key] = MergeDefaults(currentObject, typedDefault)
			}
		case []any:
			template, ok := firstObject(typedDefault)
			currentList, isList := current.([]any)
			if !ok || !isList {
				continue
			}
			items := make([]any, len(currentList))
			for idx, item := range currentList {
				if itemObject, isObject := item.(map[string]any); isObject {
					items[idx] = MergeDefaults(itemObject, template)
					continue
				}
				items[idx] = item
			}
			merged[key] = items
		}
	}
	return merged
}

func firstObject(values []any) (map[string]any, bool) {
	if len(values) == 0 {
		return nil, false
	}
	object, ok := values[0].(map[string]any)
	return object, ok
}
