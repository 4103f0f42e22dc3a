// Package backend defines the Source and Target interfaces the importer talks to.
// The HTTP clients in packages source and target implement them; package mock
// provides in-memory versions for tests.
package backend

import (
	"context"

	"github.com/JoobyPM/flagport/internal/source"
	"github.com/JoobyPM/flagport/internal/target"
)

// Source is the read-only side of an import.
type Source interface {
	GetProject(ctx context.Context, projectKey string) (*source.Project, error)
	GetEnvironments(ctx context.Context, projectKey string) ([]source.Environment, error)
	// GetFeatureFlags returns flags with the configuration of envKeys only.
	GetFeatureFlags(ctx context.Context, projectKey string, envKeys []string) (*source.FeatureList, error)
	GetSegments(ctx context.Context, projectKey, environmentKey string) (*source.SegmentList, error)
}

// Target is the side an import writes to.
type Target interface {
	// Projects and environments
	GetProject(ctx context.Context, projectKey string) (*target.Project, error)
	CreateProject(ctx context.Context, project target.Project) (*target.Project, error)
	GetEnvironments(ctx context.Context, projectKey string) ([]target.Environment, error)
	CreateEnvironment(ctx context.Context, projectKey string, env target.Environment) (*target.Environment, error)

	// Features
	GetFeaturesForProject(ctx context.Context, projectKey string) ([]target.Feature, error)
	CreateFeature(ctx context.Context, projectKey string, feature target.Feature) (*target.Feature, error)
	UpdateFeature(ctx context.Context, projectKey string, feature target.Feature) (*target.Feature, error)
	UpdateFeatureConfigurations(ctx context.Context, projectKey, featureKey string, configs []target.FeatureConfiguration) error

	// Audiences
	GetAudiences(ctx context.Context, projectKey string) ([]target.Audience, error)
	CreateAudience(ctx context.Context, projectKey string, audience target.Audience) (*target.Audience, error)
	UpdateAudience(ctx context.Context, projectKey string, audience target.Audience) (*target.Audience, error)

	// Custom properties
	GetCustomPropertiesForProject(ctx context.Context, projectKey string) ([]target.CustomProperty, error)
	CreateCustomProperty(ctx context.Context, projectKey string, property target.CustomProperty) (*target.CustomProperty, error)
	UpdateCustomProperty(ctx context.Context, projectKey string, property target.CustomProperty) (*target.CustomProperty, error)
}

// Ensure the HTTP clients implement the interfaces at compile time.
var (
	_ Source = (*source.Client)(nil)
	_ Target = (*target.Client)(nil)
)
