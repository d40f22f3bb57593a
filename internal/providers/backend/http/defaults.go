package http

import "github.com/crmarques/declagate/resource"

// apisixDefaults mirrors the schema defaults the admin API stores for fields
// left out of a write.
func apisixDefaults() *resource.Defaults {
	upstream := func() map[string]any {
		return map[string]any{
			"type":      "roundrobin",
			"scheme":    "http",
			"pass_host": "pass",
			"hash_on":   "vars",
			"nodes":     []any{map[string]any{"priority": int64(0)}},
		}
	}

	return &resource.Defaults{
		Core: map[resource.Category]map[string]any{
			resource.CategoryRoute: {
				"status":   int64(1),
				"priority": int64(0),
			},
			resource.CategoryService: {
				"upstream": upstream(),
			},
			resource.CategoryStreamService: {
				"upstream": upstream(),
			},
			resource.CategoryUpstream: upstream(),
			resource.CategorySSL: {
				"type":   "server",
				"status": int64(1),
			},
		},
	}
}
