package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"path"
	"sort"

	"github.com/crmarques/declagate/resource"
)

const maxResponseBytes = 16 << 20

// execute sends one admin API request. relativePath is joined below the
// admin prefix.
func (g *AdminGateway) execute(ctx context.Context, method string, relativePath string, body any) ([]byte, http.Header, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, nil, transportError("rate limiter wait aborted", err)
		}
	}

	request, err := g.newRequest(ctx, method, relativePath, body)
	if err != nil {
		return nil, nil, err
	}

	response, err := g.client.Do(request)
	if err != nil {
		return nil, nil, transportError("admin api request failed", err)
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
	if err != nil {
		return nil, nil, transportError("failed to read admin api response body", err)
	}

	if response.StatusCode >= http.StatusBadRequest {
		return nil, response.Header.Clone(), classifyStatusError(method, request.URL.Path, response.StatusCode, responseBody)
	}

	return responseBody, response.Header.Clone(), nil
}

func (g *AdminGateway) newRequest(ctx context.Context, method string, relativePath string, body any) (*http.Request, error) {
	target := *g.baseURL
	target.Path = path.Join("/", g.baseURL.Path, g.adminPrefix, relativePath)
	target.RawQuery = ""

	requestBody, err := encodeRequestBody(body)
	if err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	if len(requestBody) > 0 {
		bodyReader = bytes.NewReader(requestBody)
	}

	request, err := http.NewRequestWithContext(ctx, method, target.String(), bodyReader)
	if err != nil {
		return nil, internalError("failed to create admin api request", err)
	}

	request.Header.Set("Accept", defaultMediaType)
	if len(requestBody) > 0 {
		request.Header.Set("Content-Type", defaultMediaType)
	}

	if len(g.defaultHeaders) > 0 {
		keys := make([]string, 0, len(g.defaultHeaders))
		for key := range g.defaultHeaders {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			request.Header.Set(key, g.defaultHeaders[key])
		}
	}

	g.authenticate(request)
	return request, nil
}

func encodeRequestBody(body any) ([]byte, error) {
	if body == nil {
		return nil, nil
	}

	normalized, err := resource.Normalize(body)
	if err != nil {
		return nil, err
	}
	encoded, err := json.Marshal(normalized)
	if err != nil {
		return nil, validationError("failed to encode JSON request body", err)
	}
	return encoded, nil
}

func decodeJSONResponse(body []byte) (resource.Value, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, validationError("response body is not valid JSON", err)
	}

	return resource.Normalize(value)
}
