// Package mock provides in-memory implementations of backend.Source and
// backend.Target for testing.
package mock

import (
	"context"
	"net/http"
	"slices"
	"sync"

	"github.com/JoobyPM/flagport/internal/apiclient"
	"github.com/JoobyPM/flagport/internal/backend"
	"github.com/JoobyPM/flagport/internal/source"
)

// Source is a mock backend.Source. Populate the exported data fields, or set
// the hook functions to inject errors or custom behavior.
type Source struct {
	mu sync.Mutex

	// Data
	Project      *source.Project
	Environments []source.Environment
	Features     []source.Feature
	Segments     map[string][]source.Segment // by environment key

	// Test hooks
	GetProjectFunc      func(ctx context.Context, projectKey string) (*source.Project, error)
	GetEnvironmentsFunc func(ctx context.Context, projectKey string) ([]source.Environment, error)
	GetFeatureFlagsFunc func(ctx context.Context, projectKey string, envKeys []string) (*source.FeatureList, error)
	GetSegmentsFunc     func(ctx context.Context, projectKey, environmentKey string) (*source.SegmentList, error)

	// Tracking
	GetProjectCalls      []string
	GetEnvironmentsCalls []string
	GetFeatureFlagsCalls []FlagsCall
	GetSegmentsCalls     []SegmentsCall
}

// FlagsCall records a GetFeatureFlags call.
type FlagsCall struct {
	ProjectKey string
	EnvKeys    []string
}

// SegmentsCall records a GetSegments call.
type SegmentsCall struct {
	ProjectKey     string
	EnvironmentKey string
}

var _ backend.Source = (*Source)(nil)

// NewSource creates a mock Source for a project with the given environments.
// The project response carries the environments, as an expand=environments call would.
func NewSource(projectKey string, envKeys ...string) *Source {
	envs := make([]source.Environment, len(envKeys))
	for i, k := range envKeys {
		envs[i] = source.Environment{Key: k, Name: k}
	}
	return &Source{
		Project: &source.Project{
			Key:          projectKey,
			Name:         projectKey,
			Environments: &source.EnvironmentList{Items: slices.Clone(envs)},
		},
		Environments: envs,
		Segments:     make(map[string][]source.Segment),
	}
}

// GetProject returns Project, or a 404 error when it is nil.
func (s *Source) GetProject(ctx context.Context, projectKey string) (*source.Project, error) {
	s.mu.Lock()
	s.GetProjectCalls = append(s.GetProjectCalls, projectKey)
	s.mu.Unlock()

	if s.GetProjectFunc != nil {
		return s.GetProjectFunc(ctx, projectKey)
	}
	if s.Project == nil {
		return nil, notFound("/projects/" + projectKey)
	}
	p := *s.Project
	return &p, nil
}

// GetEnvironments returns Environments.
func (s *Source) GetEnvironments(ctx context.Context, projectKey string) ([]source.Environment, error) {
	s.mu.Lock()
	s.GetEnvironmentsCalls = append(s.GetEnvironmentsCalls, projectKey)
	s.mu.Unlock()

	if s.GetEnvironmentsFunc != nil {
		return s.GetEnvironmentsFunc(ctx, projectKey)
	}
	return slices.Clone(s.Environments), nil
}

// GetFeatureFlags returns Features restricted to the configuration of envKeys.
func (s *Source) GetFeatureFlags(ctx context.Context, projectKey string, envKeys []string) (*source.FeatureList, error) {
	s.mu.Lock()
	s.GetFeatureFlagsCalls = append(s.GetFeatureFlagsCalls, FlagsCall{ProjectKey: projectKey, EnvKeys: slices.Clone(envKeys)})
	s.mu.Unlock()

	if s.GetFeatureFlagsFunc != nil {
		return s.GetFeatureFlagsFunc(ctx, projectKey, envKeys)
	}

	out := &source.FeatureList{Items: make([]source.Feature, 0, len(s.Features))}
	for _, f := range s.Features {
		filtered := f
		filtered.Environments = make(map[string]source.FeatureEnvironment)
		for _, k := range envKeys {
			if env, ok := f.Environments[k]; ok {
				filtered.Environments[k] = env
			}
		}
		out.Items = append(out.Items, filtered)
	}
	return out, nil
}

// GetSegments returns Segments[environmentKey].
func (s *Source) GetSegments(ctx context.Context, projectKey, environmentKey string) (*source.SegmentList, error) {
	s.mu.Lock()
	s.GetSegmentsCalls = append(s.GetSegmentsCalls, SegmentsCall{ProjectKey: projectKey, EnvironmentKey: environmentKey})
	s.mu.Unlock()

	if s.GetSegmentsFunc != nil {
		return s.GetSegmentsFunc(ctx, projectKey, environmentKey)
	}
	return &source.SegmentList{Items: slices.Clone(s.Segments[environmentKey])}, nil
}

func notFound(path string) error {
	return &apiclient.APIError{
		StatusCode: http.StatusNotFound,
		Method:     http.MethodGet,
		Path:       path,
		Message:    http.StatusText(http.StatusNotFound),
	}
}
