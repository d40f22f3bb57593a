package http

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/crmarques/declagate/faults"
	"github.com/crmarques/declagate/resource"
	"github.com/crmarques/declagate/resource/identity"
	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"
)

const credentialFetchConcurrency = 4

var dumpCollections = []string{
	"services",
	"routes",
	"stream_routes",
	"upstreams",
	"ssls",
	"consumers",
	"plugin_configs",
	"global_rules",
	"plugin_metadata",
}

// Dump fetches every admin API collection in parallel and reassembles the
// flat lists into the nested declarative shape.
func (g *AdminGateway) Dump(ctx context.Context) (resource.Configuration, error) {
	version, err := g.Version(ctx)
	if err != nil {
		return nil, err
	}

	lists := make([][]resource.Object, len(dumpCollections))
	group, groupCtx := errgroup.WithContext(ctx)
	for idx, collection := range dumpCollections {
		group.Go(func() error {
			items, err := g.fetchCollection(groupCtx, collection, version)
			if err != nil {
				return err
			}
			lists[idx] = items
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	fetched := make(map[string][]resource.Object, len(dumpCollections))
	for idx, collection := range dumpCollections {
		fetched[collection] = lists[idx]
	}

	credentials, err := g.fetchCredentials(ctx, fetched["consumers"], version)
	if err != nil {
		return nil, err
	}

	assembled, skipped := assemble(fetched, credentials)
	if len(skipped) > 0 {
		logr.FromContextOrDiscard(ctx).Info("skipped remote resources that belong to no service", "resources", skipped)
	}
	return assembled, nil
}

func (g *AdminGateway) fetchCollection(ctx context.Context, collection string, version *semver.Version) ([]resource.Object, error) {
	if collection == "stream_routes" && version.LessThan(minStreamRouteVersion) {
		return nil, nil
	}

	body, _, err := g.execute(ctx, http.MethodGet, collection, nil)
	if err != nil {
		// Gateways without stream proxy enabled reject the stream route list.
		if collection == "stream_routes" && faults.IsCategory(err, faults.ValidationError) {
			return nil, nil
		}
		return nil, err
	}
	return decodeList(collection, body)
}

func (g *AdminGateway) fetchCredentials(
	ctx context.Context,
	consumers []resource.Object,
	version *semver.Version,
) (map[string][]resource.Object, error) {
	credentials := map[string][]resource.Object{}
	if len(consumers) == 0 || version.LessThan(minCredentialVersion) {
		return credentials, nil
	}

	var mu sync.Mutex
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(credentialFetchConcurrency)
	for _, consumer := range consumers {
		username := stringValue(consumer["username"])
		if username == "" {
			continue
		}
		group.Go(func() error {
			collection := "consumers/" + username + "/credentials"
			body, _, err := g.execute(groupCtx, http.MethodGet, collection, nil)
			if err != nil {
				return err
			}
			items, err := decodeList(collection, body)
			if err != nil {
				return err
			}
			mu.Lock()
			credentials[username] = items
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return credentials, nil
}

// decodeList reads {"list": [{"key": ..., "value": {...}}], "total": n}.
// An empty list may be encoded as an object.
func decodeList(collection string, body []byte) ([]resource.Object, error) {
	decoded, err := decodeJSONResponse(body)
	if err != nil {
		return nil, err
	}
	envelope, ok := decoded.(map[string]any)
	if !ok {
		return nil, validationError(fmt.Sprintf("%s list response must be an object", collection), nil)
	}

	var entries []any
	switch typed := envelope["list"].(type) {
	case nil:
		return nil, nil
	case []any:
		entries = typed
	case map[string]any:
		if len(typed) > 0 {
			return nil, validationError(fmt.Sprintf("%s list response has an unexpected shape", collection), nil)
		}
		return nil, nil
	default:
		return nil, validationError(fmt.Sprintf("%s list response \"list\" must be an array", collection), nil)
	}

	items := make([]resource.Object, 0, len(entries))
	for _, entry := range entries {
		item, _ := entry.(map[string]any)
		value, isObject := item["value"].(map[string]any)
		if !isObject {
			continue
		}
		if _, found := value["id"]; !found {
			if key, isString := item["key"].(string); isString && key != "" {
				value["id"] = key[strings.LastIndex(key, "/")+1:]
			}
		}
		items = append(items, value)
	}
	return items, nil
}

// assemble rebuilds the nested configuration. Routes, stream routes and
// labelled upstreams move into their service; the upstream stored under the
// service's id becomes its embedded upstream. It returns the ids of routes and stream
// routes whose service is missing.
func assemble(fetched map[string][]resource.Object, credentials map[string][]resource.Object) (resource.Configuration, []string) {
	cfg := resource.Configuration{}
	skipped := []string{}

	upstreamsByID := map[string]resource.Object{}
	for _, upstream := range fetched["upstreams"] {
		upstreamsByID[stringValue(upstream["id"])] = upstream
	}
	embeddedUpstreams := map[string]bool{}

	services := []any{}
	serviceByID := map[string]resource.Object{}
	serviceIdentity := map[string]string{}
	for _, raw := range fetched["services"] {
		serviceRemoteID := stringValue(raw["id"])
		service := fromRemoteBody(resource.CategoryService, raw)

		// Only the upstream stored under the service's own id is embedded. A
		// reference to any other upstream stays a reference.
		if inline, isObject := service["upstream"].(map[string]any); isObject {
			service["upstream"] = embeddedUpstream(inline, service)
			delete(service, "upstream_id")
		} else if upstreamID := stringValue(raw["upstream_id"]); upstreamID != "" && upstreamID == serviceRemoteID {
			if upstream, found := upstreamsByID[upstreamID]; found {
				service["upstream"] = embeddedUpstream(upstream, service)
				embeddedUpstreams[upstreamID] = true
			}
			delete(service, "upstream_id")
		}

		name := stringValue(service["name"])
		if implicitID(serviceRemoteID, "", name) {
			delete(service, "id")
		}
		serviceByID[serviceRemoteID] = service
		serviceIdentity[serviceRemoteID] = identity.Resolve(stringValue(service["id"]), "", name)
		services = append(services, service)
	}

	attach := func(category resource.Category, field string, raw resource.Object, serviceRemoteID string) bool {
		service, found := serviceByID[serviceRemoteID]
		if !found {
			return false
		}
		child := fromRemoteBody(category, raw)
		if implicitID(stringValue(child["id"]), serviceIdentity[serviceRemoteID], stringValue(child["name"])) {
			delete(child, "id")
		}
		service[field] = append(asList(service[field]), child)
		return true
	}

	for _, raw := range fetched["routes"] {
		if !attach(resource.CategoryRoute, "routes", raw, stringValue(raw["service_id"])) {
			skipped = append(skipped, "route/"+stringValue(raw["id"]))
		}
	}
	for _, raw := range fetched["stream_routes"] {
		if !attach(resource.CategoryStreamRoute, "stream_routes", raw, stringValue(raw["service_id"])) {
			skipped = append(skipped, "stream_route/"+stringValue(raw["id"]))
		}
	}

	upstreams := []any{}
	for _, raw := range fetched["upstreams"] {
		upstreamID := stringValue(raw["id"])
		if embeddedUpstreams[upstreamID] {
			continue
		}
		labels, _ := raw["labels"].(map[string]any)
		if owner := stringValue(labels[labelUpstreamServiceID]); owner != "" {
			if attach(resource.CategoryUpstream, "upstreams", raw, owner) {
				continue
			}
		}
		upstream := fromRemoteBody(resource.CategoryUpstream, raw)
		if implicitID(upstreamID, "", stringValue(upstream["name"])) {
			delete(upstream, "id")
		}
		upstreams = append(upstreams, upstream)
	}

	ssls := []any{}
	for _, raw := range fetched["ssls"] {
		ssl := fromRemoteBody(resource.CategorySSL, raw)
		snis := []string{}
		for _, sni := range asList(ssl["snis"]) {
			snis = append(snis, stringValue(sni))
		}
		if implicitID(stringValue(ssl["id"]), "", strings.Join(snis, ",")) {
			delete(ssl, "id")
		}
		ssls = append(ssls, ssl)
	}

	consumers := []any{}
	for _, raw := range fetched["consumers"] {
		consumer := fromRemoteBody(resource.CategoryConsumer, raw)
		username := stringValue(consumer["username"])
		if implicitID(stringValue(consumer["id"]), "", username) {
			delete(consumer, "id")
		}
		consumerIdentity := identity.Resolve(stringValue(consumer["id"]), "", username)
		for _, rawCredential := range credentials[username] {
			credential := fromRemoteBody(resource.CategoryCredential, rawCredential)
			if _, typed := credential["type"]; !typed {
				continue
			}
			if implicitID(stringValue(credential["id"]), consumerIdentity, stringValue(credential["name"])) {
				delete(credential, "id")
			}
			consumer["credentials"] = append(asList(consumer["credentials"]), credential)
		}
		consumers = append(consumers, consumer)
	}

	pluginConfigs := []any{}
	for _, raw := range fetched["plugin_configs"] {
		pluginConfig := fromRemoteBody(resource.CategoryPluginConfig, raw)
		if implicitID(stringValue(pluginConfig["id"]), "", stringValue(pluginConfig["name"])) {
			delete(pluginConfig, "id")
		}
		pluginConfigs = append(pluginConfigs, pluginConfig)
	}

	globalRules := map[string]any{}
	for _, raw := range fetched["global_rules"] {
		ruleID := stringValue(raw["id"])
		plugins, _ := raw["plugins"].(map[string]any)
		if pluginConfig, found := plugins[ruleID]; found {
			globalRules[ruleID] = pluginConfig
			continue
		}
		for pluginName, pluginConfig := range plugins {
			globalRules[pluginName] = pluginConfig
		}
	}

	pluginMetadata := map[string]any{}
	for _, raw := range fetched["plugin_metadata"] {
		pluginMetadata[stringValue(raw["id"])] = fromRemoteBody(resource.CategoryPluginMetadata, raw)
	}

	setList(cfg, "services", services)
	setList(cfg, "upstreams", upstreams)
	setList(cfg, "ssls", ssls)
	setList(cfg, "consumers", consumers)
	setList(cfg, "plugin_configs", pluginConfigs)
	if len(globalRules) > 0 {
		cfg["global_rules"] = globalRules
	}
	if len(pluginMetadata) > 0 {
		cfg["plugin_metadata"] = pluginMetadata
	}
	sort.Strings(skipped)
	return cfg, skipped
}

// embeddedUpstream strips the id and the copied service name that the admin
// API stores on a service's own upstream.
func embeddedUpstream(raw resource.Object, service resource.Object) resource.Object {
	upstream := fromRemoteBody(resource.CategoryUpstream, raw)
	delete(upstream, "id")
	if upstream["name"] == service["name"] || upstream["name"] == raw["id"] {
		delete(upstream, "name")
	}
	return upstream
}

func setList(cfg resource.Configuration, field string, items []any) {
	if len(items) > 0 {
		cfg[field] = items
	}
}
