package http

import (
	"encoding/json"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/crmarques/declagate/resource"
)

const (
	labelName              = "__ADC_NAME"
	labelUpstreamServiceID = "__ADC_UPSTREAM_SERVICE_ID"
	labelReservedPrefix    = "__ADC_"
)

var (
	credentialPlugins = map[string]bool{
		"key-auth":   true,
		"basic-auth": true,
		"jwt-auth":   true,
		"hmac-auth":  true,
	}
	defaultSchemePorts   = map[string]int64{"http": 80, "https": 443, "grpc": 80, "grpcs": 443}
	streamRouteNameLabel = semver.MustParse("3.8.0")
)

// toRemoteBody converts a declared resource into an admin API payload. The
// input is never modified.
func toRemoteBody(category resource.Category, value resource.Object, version *semver.Version) resource.Object {
	body := resource.CloneObject(value)
	if body == nil {
		body = resource.Object{}
	}
	for _, field := range []string{"routes", "upstreams", "stream_routes", "credentials"} {
		delete(body, field)
	}
	renameField(body, "description", "desc")
	if labels := remoteLabels(body["labels"]); labels != nil {
		body["labels"] = labels
	} else {
		delete(body, "labels")
	}

	switch category {
	case resource.CategoryStreamRoute:
		if !version.LessThan(streamRouteNameLabel) {
			setLabel(body, labelName, body["name"])
		}
		delete(body, "name")
	case resource.CategoryPluginConfig:
		setLabel(body, labelName, body["name"])
		delete(body, "name")
	case resource.CategoryService:
		delete(body, "upstream")
	case resource.CategoryUpstream:
		delete(body, "id")
	case resource.CategoryCredential:
		credentialType, _ := body["type"].(string)
		body["plugins"] = map[string]any{credentialType: body["config"]}
		delete(body, "type")
		delete(body, "config")
	case resource.CategorySSL:
		certificates, _ := body["certificates"].([]any)
		delete(body, "certificates")
		for idx, item := range certificates {
			pair, _ := item.(map[string]any)
			if idx == 0 {
				body["cert"] = pair["certificate"]
				body["key"] = pair["key"]
				continue
			}
			body["certs"] = append(asList(body["certs"]), pair["certificate"])
			body["keys"] = append(asList(body["keys"]), pair["key"])
		}
	}
	return body
}

// fromRemoteBody converts an admin API object into the declarative shape.
func fromRemoteBody(category resource.Category, value resource.Object) resource.Object {
	body := resource.CloneObject(value)
	delete(body, "create_time")
	delete(body, "update_time")
	renameField(body, "desc", "description")

	labels, _ := body["labels"].(map[string]any)
	name, _ := labels[labelName].(string)
	declarativeLabels(body)

	switch category {
	case resource.CategoryRoute:
		singleToList(body, "uri", "uris")
		singleToList(body, "host", "hosts")
		singleToList(body, "remote_addr", "remote_addrs")
		delete(body, "service_id")
		defaultName(body, "")
	case resource.CategoryStreamRoute:
		delete(body, "service_id")
		defaultName(body, name)
	case resource.CategoryPluginConfig:
		defaultName(body, name)
	case resource.CategoryService:
		defaultName(body, "")
	case resource.CategoryUpstream:
		defaultName(body, "")
		if nodes, isMap := body["nodes"].(map[string]any); isMap {
			body["nodes"] = nodeList(nodes, stringValue(body["scheme"]))
		}
	case resource.CategoryCredential:
		plugins, _ := body["plugins"].(map[string]any)
		delete(body, "plugins")
		for pluginName, pluginConfig := range plugins {
			if credentialPlugins[pluginName] {
				body["type"] = pluginName
				body["config"] = pluginConfig
			}
		}
	case resource.CategorySSL:
		singleToList(body, "sni", "snis")
		certificates := []any{}
		if cert, found := body["cert"]; found {
			certificates = append(certificates, map[string]any{"certificate": cert, "key": body["key"]})
		}
		keys := asList(body["keys"])
		for idx, cert := range asList(body["certs"]) {
			pair := map[string]any{"certificate": cert}
			if idx < len(keys) {
				pair["key"] = keys[idx]
			}
			certificates = append(certificates, pair)
		}
		for _, field := range []string{"cert", "key", "certs", "keys"} {
			delete(body, field)
		}
		if len(certificates) > 0 {
			body["certificates"] = certificates
		}
	case resource.CategoryPluginMetadata:
		delete(body, "id")
	}
	return body
}

// nodeList expands the "host:port": weight map form into node objects sorted
// by address.
func nodeList(nodes map[string]any, scheme string) []any {
	addresses := make([]string, 0, len(nodes))
	for address := range nodes {
		addresses = append(addresses, address)
	}
	sort.Strings(addresses)

	list := make([]any, 0, len(addresses))
	for _, address := range addresses {
		host, rawPort, err := net.SplitHostPort(address)
		port, convErr := strconv.ParseInt(rawPort, 10, 64)
		if err != nil || convErr != nil {
			host = address
			port = defaultSchemePorts[scheme]
			if port == 0 {
				port = 80
			}
		}
		list = append(list, map[string]any{"host": host, "port": port, "weight": nodes[address]})
	}
	return list
}

func remoteLabels(value any) map[string]any {
	labels, _ := value.(map[string]any)
	if len(labels) == 0 {
		return nil
	}
	converted := make(map[string]any, len(labels))
	for key, item := range labels {
		if text, isString := item.(string); isString {
			converted[key] = text
			continue
		}
		encoded, err := json.Marshal(item)
		if err != nil {
			converted[key] = fmt.Sprint(item)
			continue
		}
		converted[key] = string(encoded)
	}
	return converted
}

// declarativeLabels drops reserved labels and removes an emptied map.
func declarativeLabels(body resource.Object) {
	labels, _ := body["labels"].(map[string]any)
	for key := range labels {
		if strings.HasPrefix(key, labelReservedPrefix) {
			delete(labels, key)
		}
	}
	if _, found := body["labels"]; found && len(labels) == 0 {
		delete(body, "labels")
	}
}

func setLabel(body resource.Object, key string, value any) {
	text, _ := value.(string)
	if text == "" {
		return
	}
	labels, _ := body["labels"].(map[string]any)
	if labels == nil {
		labels = map[string]any{}
	}
	labels[key] = text
	body["labels"] = labels
}

func renameField(body resource.Object, from string, to string) {
	value, found := body[from]
	if !found {
		return
	}
	delete(body, from)
	body[to] = value
}

func singleToList(body resource.Object, single string, plural string) {
	value, found := body[single]
	if !found {
		return
	}
	delete(body, single)
	if _, exists := body[plural]; !exists {
		body[plural] = []any{value}
	}
}

func defaultName(body resource.Object, preferred string) {
	if preferred != "" {
		body["name"] = preferred
		return
	}
	if _, found := body["name"]; !found {
		if id, isString := body["id"].(string); isString {
			body["name"] = id
		}
	}
}

func asList(value any) []any {
	list, _ := value.([]any)
	return list
}

func stringValue(value any) string {
	text, _ := value.(string)
	return text
}
