package target

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/JoobyPM/flagport/internal/apiclient"
)

// Default endpoints.
const (
	DefaultBaseURL  = "https://api.devcycle.com"
	DefaultAuthURL  = "https://auth.devcycle.com/oauth/token"
	DefaultAudience = "https://api.devcycle.com/"
)

// pageSize is the largest page the list endpoints accept.
const pageSize = 1000

// ErrNoCredentials is returned when neither a token nor client credentials are set.
var ErrNoCredentials = errors.New("target: api token or client id and secret required")

// Options configures a Target client.
type Options struct {
	BaseURL      string
	AuthURL      string
	ClientID     string
	ClientSecret string
	// APIToken, when set, is used as a static bearer token instead of the
	// client-credentials exchange.
	APIToken string
	// HTTPClient is the base transport for token and API calls. May be nil.
	HTTPClient *http.Client
}

// Client talks to the Target management API.
type Client struct {
	api *apiclient.Client
}

// New creates a Target client. Tokens from the client-credentials grant are
// fetched lazily and refreshed by the oauth2 transport.
func New(ctx context.Context, opts Options) (*Client, error) {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if opts.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, opts.HTTPClient)
	}

	var httpClient *http.Client
	switch {
	case opts.APIToken != "":
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.APIToken, TokenType: "Bearer"})
		httpClient = oauth2.NewClient(ctx, ts)
	case opts.ClientID != "" && opts.ClientSecret != "":
		authURL := opts.AuthURL
		if authURL == "" {
			authURL = DefaultAuthURL
		}
		cc := clientcredentials.Config{
			ClientID:       opts.ClientID,
			ClientSecret:   opts.ClientSecret,
			TokenURL:       authURL,
			EndpointParams: url.Values{"audience": {DefaultAudience}},
			AuthStyle:      oauth2.AuthStyleInParams,
		}
		httpClient = cc.Client(ctx)
	default:
		return nil, ErrNoCredentials
	}
	httpClient.Timeout = apiclient.DefaultTimeout

	return &Client{api: apiclient.New(baseURL, httpClient, nil)}, nil
}

// NewFromAPI wraps an existing apiclient.Client.
func NewFromAPI(api *apiclient.Client) *Client {
	return &Client{api: api}
}

func projectPath(projectKey string) string {
	return "/v1/projects/" + url.PathEscape(projectKey)
}

// GetProject fetches a project. Returns an error matching apiclient.ErrNotFound
// when it does not exist.
func (c *Client) GetProject(ctx context.Context, projectKey string) (*Project, error) {
	var p Project
	if err := c.api.Get(ctx, projectPath(projectKey), &p); err != nil {
		return nil, fmt.Errorf("get project %s: %w", projectKey, err)
	}
	return &p, nil
}

// CreateProject creates a project.
func (c *Client) CreateProject(ctx context.Context, p Project) (*Project, error) {
	var out Project
	if err := c.api.Post(ctx, "/v1/projects", p, &out); err != nil {
		return nil, fmt.Errorf("create project %s: %w", p.Key, err)
	}
	return &out, nil
}

// GetEnvironments lists the environments of a project.
func (c *Client) GetEnvironments(ctx context.Context, projectKey string) ([]Environment, error) {
	var out []Environment
	if err := c.api.Get(ctx, projectPath(projectKey)+"/environments", &out); err != nil {
		return nil, fmt.Errorf("get environments for %s: %w", projectKey, err)
	}
	return out, nil
}

// CreateEnvironment creates an environment.
func (c *Client) CreateEnvironment(ctx context.Context, projectKey string, env Environment) (*Environment, error) {
	var out Environment
	if err := c.api.Post(ctx, projectPath(projectKey)+"/environments", env, &out); err != nil {
		return nil, fmt.Errorf("create environment %s: %w", env.Key, err)
	}
	return &out, nil
}

// GetFeaturesForProject lists every feature of a project.
func (c *Client) GetFeaturesForProject(ctx context.Context, projectKey string) ([]Feature, error) {
	out, err := listAll[Feature](ctx, c.api, projectPath(projectKey)+"/features")
	if err != nil {
		return nil, fmt.Errorf("get features for %s: %w", projectKey, err)
	}
	return out, nil
}

// CreateFeature creates a feature.
func (c *Client) CreateFeature(ctx context.Context, projectKey string, f Feature) (*Feature, error) {
	var out Feature
	if err := c.api.Post(ctx, projectPath(projectKey)+"/features", f, &out); err != nil {
		return nil, fmt.Errorf("create feature %s: %w", f.Key, err)
	}
	return &out, nil
}

// UpdateFeature replaces the definition of an existing feature.
func (c *Client) UpdateFeature(ctx context.Context, projectKey string, f Feature) (*Feature, error) {
	var out Feature
	path := projectPath(projectKey) + "/features/" + url.PathEscape(f.Key)
	if err := c.api.Patch(ctx, path, f, &out); err != nil {
		return nil, fmt.Errorf("update feature %s: %w", f.Key, err)
	}
	return &out, nil
}

// UpdateFeatureConfigurations writes one configuration per environment, in order.
func (c *Client) UpdateFeatureConfigurations(ctx context.Context, projectKey, featureKey string, configs []FeatureConfiguration) error {
	for _, cfg := range configs {
		path := projectPath(projectKey) + "/features/" + url.PathEscape(featureKey) +
			"/configurations?environment=" + url.QueryEscape(cfg.Environment)
		if err := c.api.Patch(ctx, path, cfg, nil); err != nil {
			return fmt.Errorf("update %s configuration for %s: %w", featureKey, cfg.Environment, err)
		}
	}
	return nil
}

// GetAudiences lists every audience of a project.
func (c *Client) GetAudiences(ctx context.Context, projectKey string) ([]Audience, error) {
	out, err := listAll[Audience](ctx, c.api, projectPath(projectKey)+"/audiences")
	if err != nil {
		return nil, fmt.Errorf("get audiences for %s: %w", projectKey, err)
	}
	return out, nil
}

// CreateAudience creates a reusable audience.
func (c *Client) CreateAudience(ctx context.Context, projectKey string, a Audience) (*Audience, error) {
	var out Audience
	if err := c.api.Post(ctx, projectPath(projectKey)+"/audiences", a, &out); err != nil {
		return nil, fmt.Errorf("create audience %s: %w", a.Key, err)
	}
	return &out, nil
}

// UpdateAudience replaces a reusable audience.
func (c *Client) UpdateAudience(ctx context.Context, projectKey string, a Audience) (*Audience, error) {
	var out Audience
	path := projectPath(projectKey) + "/audiences/" + url.PathEscape(a.Key)
	if err := c.api.Patch(ctx, path, a, &out); err != nil {
		return nil, fmt.Errorf("update audience %s: %w", a.Key, err)
	}
	return &out, nil
}

// GetCustomPropertiesForProject lists every custom property of a project.
func (c *Client) GetCustomPropertiesForProject(ctx context.Context, projectKey string) ([]CustomProperty, error) {
	out, err := listAll[CustomProperty](ctx, c.api, projectPath(projectKey)+"/customProperties")
	if err != nil {
		return nil, fmt.Errorf("get custom properties for %s: %w", projectKey, err)
	}
	return out, nil
}

// CreateCustomProperty creates a custom property.
func (c *Client) CreateCustomProperty(ctx context.Context, projectKey string, p CustomProperty) (*CustomProperty, error) {
	var out CustomProperty
	if err := c.api.Post(ctx, projectPath(projectKey)+"/customProperties", p, &out); err != nil {
		return nil, fmt.Errorf("create custom property %s: %w", p.Key, err)
	}
	return &out, nil
}

// UpdateCustomProperty updates a custom property.
func (c *Client) UpdateCustomProperty(ctx context.Context, projectKey string, p CustomProperty) (*CustomProperty, error) {
	var out CustomProperty
	path := projectPath(projectKey) + "/customProperties/" + url.PathEscape(p.Key)
	if err := c.api.Patch(ctx, path, p, &out); err != nil {
		return nil, fmt.Errorf("update custom property %s: %w", p.Key, err)
	}
	return &out, nil
}

// listAll follows page numbers until a short page is returned.
func listAll[T any](ctx context.Context, api *apiclient.Client, path string) ([]T, error) {
	var all []T
	for page := 1; ; page++ {
		var items []T
		query := "?perPage=" + strconv.Itoa(pageSize) + "&page=" + strconv.Itoa(page)
		if err := api.Get(ctx, path+query, &items); err != nil {
			return nil, err
		}
		all = append(all, items...)
		if len(items) < pageSize {
			return all, nil
		}
	}
}
