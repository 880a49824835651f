// Package registryclient implements an HTTP client for the remote model
// registry's paginated catalog, grounded on the rust MLFlowClient
// (original_source/src/foundation/src/api/mlflow_client.rs) translated to
// the stdlib net/http idiom the teacher already uses for its HTTP layer.
package registryclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/galemind/dispatch-core/internal/dispatcherr"
)

const defaultPageSize = 100

// RegisteredModel is the registry's representation of a catalogued model.
type RegisteredModel struct {
	Name                 string            `json:"name"`
	Version              *string           `json:"version,omitempty"`
	CreationTimestamp    *int64            `json:"creation_timestamp,omitempty"`
	LastUpdatedTimestamp *int64            `json:"last_updated_timestamp,omitempty"`
	Description          *string           `json:"description,omitempty"`
	Tags                 map[string]string `json:"tags,omitempty"`
}

// ModelVersion is a single version record for a registered model.
type ModelVersion struct {
	Name                 string            `json:"name"`
	Version              string            `json:"version"`
	CreationTimestamp    *int64            `json:"creation_timestamp,omitempty"`
	LastUpdatedTimestamp *int64            `json:"last_updated_timestamp,omitempty"`
	Description          *string           `json:"description,omitempty"`
	UserID               *string           `json:"user_id,omitempty"`
	CurrentStage         *string           `json:"current_stage,omitempty"`
	Source               *string           `json:"source,omitempty"`
	RunID                *string           `json:"run_id,omitempty"`
	Status               *string           `json:"status,omitempty"`
	Tags                 map[string]string `json:"tags,omitempty"`
}

type listModelsResponse struct {
	RegisteredModels []RegisteredModel `json:"registered_models"`
	NextPageToken    *string           `json:"next_page_token,omitempty"`
}

type listModelVersionsResponse struct {
	ModelVersions []ModelVersion `json:"model_versions"`
	NextPageToken *string        `json:"next_page_token,omitempty"`
}

type getModelResponse struct {
	RegisteredModel RegisteredModel `json:"registered_model"`
}

// Client is an HTTP client for the `/api/2.0/<namespace>/` registry
// surface. The zero value is not usable; construct with New.
type Client struct {
	baseURL    string
	namespace  string
	token      string
	httpClient *http.Client
}

// New creates a Client against baseURL (e.g. "http://registry:5000") and
// namespace (e.g. "mlflow", yielding "/api/2.0/mlflow/..."). token is
// optional; when non-empty it is sent as a Bearer token on every request.
func New(baseURL, namespace, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		namespace:  namespace,
		token:      token,
		httpClient: httpClient,
	}
}

func (c *Client) endpoint(path string) string {
	return fmt.Sprintf("%s/api/2.0/%s/%s", c.baseURL, c.namespace, path)
}

func (c *Client) do(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &dispatcherr.RegistryTransportError{Err: err}
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &dispatcherr.RegistryTransportError{Err: err}
	}
	return resp, nil
}

// ListModels iterates the registered-models/list endpoint across all
// pages, using pageSizeHint (or defaultPageSize if <= 0) as max_results.
func (c *Client) ListModels(ctx context.Context, pageSizeHint int) ([]RegisteredModel, error) {
	if pageSizeHint <= 0 {
		pageSizeHint = defaultPageSize
	}

	var all []RegisteredModel
	var pageToken *string

	for {
		q := fmt.Sprintf("registered-models/list?max_results=%d", pageSizeHint)
		if pageToken != nil {
			q += "&page_token=" + url.QueryEscape(*pageToken)
		}

		resp, err := c.do(ctx, c.endpoint(q))
		if err != nil {
			return nil, err
		}

		var page listModelsResponse
		if err := decodeOrRegistryError(resp, &page); err != nil {
			return nil, err
		}

		all = append(all, page.RegisteredModels...)
		pageToken = page.NextPageToken
		if pageToken == nil || *pageToken == "" {
			break
		}
	}

	return all, nil
}

// GetModel fetches a single registered model by name. It returns
// (nil, nil) on a 404 response, and a *dispatcherr.RegistryError for any
// other non-success status.
func (c *Client) GetModel(ctx context.Context, name string) (*RegisteredModel, error) {
	q := "registered-models/get?name=" + url.QueryEscape(name)

	resp, err := c.do(ctx, c.endpoint(q))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, resp.Body)
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, &dispatcherr.RegistryError{Status: resp.StatusCode, Body: string(body)}
	}

	var out getModelResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &dispatcherr.RegistryTransportError{Err: err}
	}
	return &out.RegisteredModel, nil
}

// ListModelVersions performs a paginated search filtered by model name,
// percent-encoding the name into the query filter per the wire contract
// `filter=name%3D%27<urlenc>%27`.
func (c *Client) ListModelVersions(ctx context.Context, name string, pageSizeHint int) ([]ModelVersion, error) {
	if pageSizeHint <= 0 {
		pageSizeHint = defaultPageSize
	}

	encoded := url.QueryEscape(name)
	filter := "name%3D%27" + encoded + "%27"

	var all []ModelVersion
	var pageToken *string

	for {
		q := fmt.Sprintf("model-versions/search?filter=%s&max_results=%d", filter, pageSizeHint)
		if pageToken != nil {
			q += "&page_token=" + url.QueryEscape(*pageToken)
		}

		resp, err := c.do(ctx, c.endpoint(q))
		if err != nil {
			return nil, err
		}

		var page listModelVersionsResponse
		if err := decodeOrRegistryError(resp, &page); err != nil {
			return nil, err
		}

		all = append(all, page.ModelVersions...)
		pageToken = page.NextPageToken
		if pageToken == nil || *pageToken == "" {
			break
		}
	}

	return all, nil
}

func decodeOrRegistryError(resp *http.Response, out interface{}) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return &dispatcherr.RegistryError{Status: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &dispatcherr.RegistryTransportError{Err: err}
	}
	return nil
}
