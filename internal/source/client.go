package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/JoobyPM/flagport/internal/apiclient"
)

// DefaultBaseURL is the public Source API endpoint.
const DefaultBaseURL = "https://app.launchdarkly.com"

// Client talks to the Source REST API with a static access token.
type Client struct {
	api *apiclient.Client
}

// New creates a Source client. httpClient may be nil.
func New(baseURL, token string, httpClient *http.Client) *Client {
	return &Client{
		api: apiclient.New(baseURL, httpClient, apiclient.StaticToken("Authorization", token)),
	}
}

// NewFromAPI wraps an existing apiclient.Client.
func NewFromAPI(api *apiclient.Client) *Client {
	return &Client{api: api}
}

// GetProject fetches a project with its environments expanded.
func (c *Client) GetProject(ctx context.Context, projectKey string) (*Project, error) {
	var p Project
	path := "/api/v2/projects/" + EncodeComponent(projectKey) + "?expand=environments"
	if err := c.api.Get(ctx, path, &p); err != nil {
		return nil, fmt.Errorf("get project %s: %w", projectKey, err)
	}
	return &p, nil
}

// GetEnvironments lists the environments of a project.
func (c *Client) GetEnvironments(ctx context.Context, projectKey string) ([]Environment, error) {
	var out EnvironmentList
	path := "/api/v2/projects/" + EncodeComponent(projectKey) + "/environments"
	if err := c.api.Get(ctx, path, &out); err != nil {
		return nil, fmt.Errorf("get environments for %s: %w", projectKey, err)
	}
	return out.Items, nil
}

// GetFeatureFlags lists the flags of a project with the configuration of the
// given environments. Callers keep envKeys small; see package cache.
func (c *Client) GetFeatureFlags(ctx context.Context, projectKey string, envKeys []string) (*FeatureList, error) {
	var out FeatureList
	if err := c.api.Get(ctx, FlagsPath(projectKey, envKeys), &out); err != nil {
		return nil, fmt.Errorf("get feature flags for %s: %w", projectKey, err)
	}
	return &out, nil
}

// GetSegments lists the segments of a project environment.
func (c *Client) GetSegments(ctx context.Context, projectKey, environmentKey string) (*SegmentList, error) {
	var out SegmentList
	path := "/api/v2/segments/" + EncodeComponent(projectKey) + "/" + EncodeComponent(environmentKey)
	if err := c.api.Get(ctx, path, &out); err != nil {
		return nil, fmt.Errorf("get segments for %s/%s: %w", projectKey, environmentKey, err)
	}
	return &out, nil
}

// FlagsPath builds the flag listing path: one env parameter per environment
// key, in order, followed by summary=0.
func FlagsPath(projectKey string, envKeys []string) string {
	var b strings.Builder
	b.WriteString("/api/v2/flags/")
	b.WriteString(EncodeComponent(projectKey))
	b.WriteByte('?')
	for _, key := range envKeys {
		b.WriteString("env=")
		b.WriteString(EncodeComponent(key))
		b.WriteByte('&')
	}
	b.WriteString("summary=0")
	return b.String()
}

// EncodeComponent percent-encodes s for use as a path segment or query value.
// Spaces become %20, not '+'.
func EncodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
