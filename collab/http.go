package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/deckhand-io/deckhand/iox"
	"github.com/deckhand-io/deckhand/types"
)

// ClientConfig configures the HTTP collaborator client.
type ClientConfig struct {
	// BaseURL is the collaborator service base URL (required).
	BaseURL string
	// APIKey is sent as a bearer token when set. Passed explicitly at
	// construction, never read from process globals at call time.
	APIKey string
	// HTTPClient overrides the underlying client (for testing).
	HTTPClient *http.Client
}

// HTTPClient implements Generator, Renderer, and Reviewer against a
// JSON-over-HTTP collaborator service. Per-call deadlines come from the
// caller's context; the client sets no timeout of its own.
type HTTPClient struct {
	config ClientConfig
	client *http.Client
}

// NewHTTPClient creates a collaborator client from the given config.
// Returns an error if the base URL is empty.
func NewHTTPClient(cfg ClientConfig) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("collaborator client requires a base URL")
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPClient{config: cfg, client: client}, nil
}

// generateRequest is the wire request for /v1/generate.
type generateRequest struct {
	Task     string        `json:"task"`
	Sector   string        `json:"sector"`
	Region   string        `json:"region"`
	Upstream []upstreamRef `json:"upstream,omitempty"`
}

// renderRequest is the wire request for /v1/render.
type renderRequest struct {
	Compiled    upstreamRef `json:"compiled"`
	TemplateRef string      `json:"template_ref,omitempty"`
}

// reviewRequest is the wire request for /v1/review.
type reviewRequest struct {
	Rendered upstreamRef `json:"rendered"`
}

// upstreamRef is the wire form of an artifact reference.
type upstreamRef struct {
	TaskName    string `json:"task_name"`
	Path        string `json:"path"`
	ContentType string `json:"content_type,omitempty"`
}

// payloadResponse is the wire response of all collaborator endpoints.
// Data is base64 in JSON per encoding/json []byte handling.
type payloadResponse struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

// errorResponse is the wire form of a collaborator failure.
type errorResponse struct {
	Error string `json:"error"`
}

// Generate invokes the content-generation collaborator.
func (c *HTTPClient) Generate(ctx context.Context, task, sector, region string, upstream []types.ArtifactRef) (*Payload, error) {
	req := generateRequest{Task: task, Sector: sector, Region: region, Upstream: wireRefs(upstream)}
	return c.post(ctx, "/v1/generate", req)
}

// Render invokes the document-rendering collaborator.
func (c *HTTPClient) Render(ctx context.Context, compiled types.ArtifactRef, templateRef string) (*Payload, error) {
	req := renderRequest{Compiled: wireRef(compiled), TemplateRef: templateRef}
	return c.post(ctx, "/v1/render", req)
}

// Review invokes the review collaborator.
func (c *HTTPClient) Review(ctx context.Context, rendered types.ArtifactRef) (*Payload, error) {
	req := reviewRequest{Rendered: wireRef(rendered)}
	return c.post(ctx, "/v1/review", req)
}

// post performs one JSON POST and decodes the payload response.
func (c *HTTPClient) post(ctx context.Context, path string, body any) (*Payload, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("collab: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("collab: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer iox.DiscardClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var failure errorResponse
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &failure) != nil || failure.Error == "" {
			failure.Error = string(raw)
		}
		return nil, &Error{Status: resp.StatusCode, Message: failure.Error}
	}

	var payload payloadResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &Error{Status: resp.StatusCode, Message: fmt.Sprintf("malformed response: %v", err)}
	}

	return &Payload{Name: payload.Name, ContentType: payload.ContentType, Data: payload.Data}, nil
}

// Close releases idle connections.
func (c *HTTPClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

func wireRefs(refs []types.ArtifactRef) []upstreamRef {
	out := make([]upstreamRef, 0, len(refs))
	for _, r := range refs {
		out = append(out, wireRef(r))
	}
	return out
}

func wireRef(r types.ArtifactRef) upstreamRef {
	return upstreamRef{TaskName: r.TaskName, Path: r.Path, ContentType: r.ContentType}
}

// Verify HTTPClient implements all collaborator interfaces.
var (
	_ Generator = (*HTTPClient)(nil)
	_ Renderer  = (*HTTPClient)(nil)
	_ Reviewer  = (*HTTPClient)(nil)
)
