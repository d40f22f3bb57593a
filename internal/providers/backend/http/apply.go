package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Masterminds/semver/v3"
	"github.com/crmarques/declagate/faults"
	"github.com/crmarques/declagate/resource"
	"github.com/crmarques/declagate/resource/identity"
	"github.com/go-logr/logr"
)

var (
	minStreamRouteVersion = semver.MustParse("3.7.0")
	minCredentialVersion  = semver.MustParse("3.11.0")
)

var collectionByCategory = map[resource.Category]string{
	resource.CategorySSL:            "ssls",
	resource.CategoryService:        "services",
	resource.CategoryUpstream:       "upstreams",
	resource.CategoryRoute:          "routes",
	resource.CategoryStreamRoute:    "stream_routes",
	resource.CategoryConsumer:       "consumers",
	resource.CategoryPluginConfig:   "plugin_configs",
	resource.CategoryGlobalRule:     "global_rules",
	resource.CategoryPluginMetadata: "plugin_metadata",
}

// serviceChildren lists the child collections a service delete cascades to.
var serviceChildren = []struct {
	field    string
	category resource.Category
}{
	{field: "routes", category: resource.CategoryRoute},
	{field: "stream_routes", category: resource.CategoryStreamRoute},
	{field: "upstreams", category: resource.CategoryUpstream},
}

// Apply writes one event to the admin API. Creates and updates are PUTs to
// the resource's derived id; deletes of missing resources succeed.
func (g *AdminGateway) Apply(ctx context.Context, event resource.Event) error {
	version, err := g.Version(ctx)
	if err != nil {
		return err
	}
	if err := checkSupported(event.Category, version); err != nil {
		return err
	}

	requestPath, err := resourcePath(event)
	if err != nil {
		return err
	}

	logr.FromContextOrDiscard(ctx).V(1).Info(
		"applying event",
		"operation", event.Operation,
		"category", event.Category,
		"resourceId", event.ResourceID,
		"path", requestPath,
	)

	switch event.Operation {
	case resource.OperationCreate, resource.OperationUpdate:
		return g.applyPut(ctx, event, requestPath, version)
	case resource.OperationDelete:
		return g.applyDelete(ctx, event, requestPath)
	default:
		return validationError(fmt.Sprintf("unsupported operation %q", event.Operation), nil)
	}
}

func checkSupported(category resource.Category, version *semver.Version) error {
	switch {
	case category == resource.CategoryStreamRoute && version.LessThan(minStreamRouteVersion):
		return validationError(fmt.Sprintf("stream routes require gateway version %s or later, got %s", minStreamRouteVersion, version), nil)
	case category == resource.CategoryCredential && version.LessThan(minCredentialVersion):
		return validationError(fmt.Sprintf("credentials require gateway version %s or later, got %s", minCredentialVersion, version), nil)
	}
	return nil
}

func resourcePath(event resource.Event) (string, error) {
	if event.ResourceID == "" {
		return "", validationError(fmt.Sprintf("%s event has no resource id", event.Category), nil)
	}

	if event.Category == resource.CategoryCredential {
		if event.ParentID == "" {
			return "", validationError(fmt.Sprintf("credential %q has no consumer", event.ResourceName), nil)
		}
		return "consumers/" + remoteID(event.ParentID) + "/credentials/" + remoteID(event.ResourceID), nil
	}

	collection, found := collectionByCategory[event.Category]
	if !found {
		return "", validationError(fmt.Sprintf("unsupported resource category %q", event.Category), nil)
	}
	if event.Category == resource.CategoryConsumer {
		return collection + "/" + event.ResourceID, nil
	}
	return collection + "/" + remoteID(event.ResourceID), nil
}

func (g *AdminGateway) applyPut(ctx context.Context, event resource.Event, requestPath string, version *semver.Version) error {
	body, err := g.putBody(ctx, event, version)
	if err != nil {
		return err
	}
	if _, _, err := g.execute(ctx, http.MethodPut, requestPath, body); err != nil {
		return err
	}

	// A service that dropped its embedded upstream leaves the stored one behind.
	if event.Category == resource.CategoryService && event.Operation == resource.OperationUpdate {
		_, hadUpstream := event.OldValue["upstream"]
		_, hasUpstream := event.NewValue["upstream"]
		if hadUpstream && !hasUpstream {
			return g.deleteIgnoringNotFound(ctx, "upstreams/"+remoteID(event.ResourceID))
		}
	}
	return nil
}

func (g *AdminGateway) putBody(ctx context.Context, event resource.Event, version *semver.Version) (resource.Object, error) {
	resourceRemoteID := remoteID(event.ResourceID)

	switch event.Category {
	case resource.CategoryGlobalRule:
		return resource.Object{
			"id":      resourceRemoteID,
			"plugins": map[string]any{event.ResourceID: resource.CloneValue(map[string]any(event.NewValue))},
		}, nil
	case resource.CategoryPluginMetadata:
		return resource.CloneObject(event.NewValue), nil
	}

	body := toRemoteBody(event.Category, event.NewValue, version)
	switch event.Category {
	case resource.CategoryConsumer:
		return body, nil
	case resource.CategoryCredential:
		body["id"] = remoteID(event.ResourceID)
		delete(body, "name")
		if event.ResourceName != "" {
			body["name"] = event.ResourceName
		}
		return body, nil
	case resource.CategoryRoute, resource.CategoryStreamRoute:
		if event.ParentID != "" {
			body["service_id"] = remoteID(event.ParentID)
		}
	case resource.CategoryUpstream:
		if event.ParentID != "" {
			setLabel(body, labelUpstreamServiceID, remoteID(event.ParentID))
		}
	case resource.CategoryService:
		inline, hasUpstream := event.NewValue["upstream"].(map[string]any)
		if hasUpstream {
			upstream := toRemoteBody(resource.CategoryUpstream, inline, version)
			upstream["id"] = resourceRemoteID
			if _, named := upstream["name"]; !named && event.ResourceName != "" {
				upstream["name"] = event.ResourceName
			}
			if _, _, err := g.execute(ctx, http.MethodPut, "upstreams/"+resourceRemoteID, upstream); err != nil {
				return nil, err
			}
			body["upstream_id"] = resourceRemoteID
		}
	}
	body["id"] = resourceRemoteID
	return body, nil
}

func (g *AdminGateway) applyDelete(ctx context.Context, event resource.Event, requestPath string) error {
	if event.Category != resource.CategoryService {
		return g.deleteIgnoringNotFound(ctx, requestPath)
	}

	// The admin API refuses to delete a service that routes still point at.
	for _, child := range serviceChildren {
		for _, item := range asList(event.OldValue[child.field]) {
			childObject, _ := item.(map[string]any)
			childIdentity := identity.Resolve(stringValue(childObject["id"]), event.ResourceID, stringValue(childObject["name"]))
			if err := g.deleteIgnoringNotFound(ctx, collectionByCategory[child.category]+"/"+remoteID(childIdentity)); err != nil {
				return err
			}
		}
	}
	if err := g.deleteIgnoringNotFound(ctx, requestPath); err != nil {
		return err
	}
	if _, hadUpstream := event.OldValue["upstream"]; hadUpstream {
		return g.deleteIgnoringNotFound(ctx, "upstreams/"+remoteID(event.ResourceID))
	}
	return nil
}

func (g *AdminGateway) deleteIgnoringNotFound(ctx context.Context, requestPath string) error {
	_, _, err := g.execute(ctx, http.MethodDelete, requestPath, nil)
	if faults.IsCategory(err, faults.NotFoundError) {
		logr.FromContextOrDiscard(ctx).V(1).Info("resource already absent", "path", requestPath)
		return nil
	}
	return err
}
