package mock

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/JoobyPM/flagport/internal/backend"
	"github.com/JoobyPM/flagport/internal/target"
)

// Target is a mock backend.Target holding a single destination project.
type Target struct {
	mu     sync.Mutex
	nextID int

	// Data
	Project          *target.Project
	Environments     []target.Environment
	Features         []target.Feature
	Audiences        []target.Audience
	CustomProperties []target.CustomProperty
	Configurations   map[string][]target.FeatureConfiguration // by feature key

	// Test hooks
	GetFeaturesFunc          func(ctx context.Context, projectKey string) ([]target.Feature, error)
	CreateFeatureFunc        func(ctx context.Context, projectKey string, f target.Feature) (*target.Feature, error)
	UpdateFeatureFunc        func(ctx context.Context, projectKey string, f target.Feature) (*target.Feature, error)
	UpdateConfigurationsFunc func(ctx context.Context, projectKey, featureKey string, configs []target.FeatureConfiguration) error
	GetAudiencesFunc         func(ctx context.Context, projectKey string) ([]target.Audience, error)
	CreateAudienceFunc       func(ctx context.Context, projectKey string, a target.Audience) (*target.Audience, error)
	UpdateAudienceFunc       func(ctx context.Context, projectKey string, a target.Audience) (*target.Audience, error)
	GetPropertiesFunc        func(ctx context.Context, projectKey string) ([]target.CustomProperty, error)
	CreatePropertyFunc       func(ctx context.Context, projectKey string, p target.CustomProperty) (*target.CustomProperty, error)
	UpdatePropertyFunc       func(ctx context.Context, projectKey string, p target.CustomProperty) (*target.CustomProperty, error)
	CreateEnvironmentFunc    func(ctx context.Context, projectKey string, env target.Environment) (*target.Environment, error)

	// Tracking
	CreateProjectCalls        []target.Project
	CreateEnvironmentCalls    []target.Environment
	CreateFeatureCalls        []target.Feature
	UpdateFeatureCalls        []target.Feature
	UpdateConfigurationsCalls []ConfigurationsCall
	CreateAudienceCalls       []target.Audience
	UpdateAudienceCalls       []target.Audience
	CreatePropertyCalls       []target.CustomProperty
	UpdatePropertyCalls       []target.CustomProperty
}

// ConfigurationsCall records an UpdateFeatureConfigurations call.
type ConfigurationsCall struct {
	FeatureKey string
	Configs    []target.FeatureConfiguration
}

var _ backend.Target = (*Target)(nil)

// NewTarget creates a mock Target with an existing project and environments.
func NewTarget(projectKey string, envKeys ...string) *Target {
	t := &Target{
		Project:        &target.Project{ID: "project-" + projectKey, Key: projectKey, Name: projectKey},
		Configurations: make(map[string][]target.FeatureConfiguration),
	}
	for _, k := range envKeys {
		t.Environments = append(t.Environments, target.Environment{ID: "env-" + k, Key: k, Name: k, Type: target.EnvironmentDevelopment})
	}
	return t
}

func (t *Target) id(prefix string) string {
	t.nextID++
	return fmt.Sprintf("%s-%d", prefix, t.nextID)
}

// Writes returns the number of create/update calls recorded so far.
func (t *Target) Writes() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.CreateProjectCalls) + len(t.CreateEnvironmentCalls) +
		len(t.CreateFeatureCalls) + len(t.UpdateFeatureCalls) + len(t.UpdateConfigurationsCalls) +
		len(t.CreateAudienceCalls) + len(t.UpdateAudienceCalls) +
		len(t.CreatePropertyCalls) + len(t.UpdatePropertyCalls)
}

// GetProject returns Project, or a 404 error when it is nil.
func (t *Target) GetProject(_ context.Context, projectKey string) (*target.Project, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Project == nil || t.Project.Key != projectKey {
		return nil, notFound("/v1/projects/" + projectKey)
	}
	p := *t.Project
	return &p, nil
}

// CreateProject stores the project.
func (t *Target) CreateProject(_ context.Context, p target.Project) (*target.Project, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.CreateProjectCalls = append(t.CreateProjectCalls, p)
	p.ID = t.id("project")
	t.Project = &p
	out := p
	return &out, nil
}

// GetEnvironments returns Environments.
func (t *Target) GetEnvironments(_ context.Context, _ string) ([]target.Environment, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.Environments), nil
}

// CreateEnvironment stores the environment.
func (t *Target) CreateEnvironment(ctx context.Context, projectKey string, env target.Environment) (*target.Environment, error) {
	t.mu.Lock()
	t.CreateEnvironmentCalls = append(t.CreateEnvironmentCalls, env)
	t.mu.Unlock()

	if t.CreateEnvironmentFunc != nil {
		return t.CreateEnvironmentFunc(ctx, projectKey, env)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	env.ID = t.id("env")
	t.Environments = append(t.Environments, env)
	return &env, nil
}

// GetFeaturesForProject returns Features.
func (t *Target) GetFeaturesForProject(ctx context.Context, projectKey string) ([]target.Feature, error) {
	if t.GetFeaturesFunc != nil {
		return t.GetFeaturesFunc(ctx, projectKey)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.Features), nil
}

// CreateFeature stores the feature.
func (t *Target) CreateFeature(ctx context.Context, projectKey string, f target.Feature) (*target.Feature, error) {
	t.mu.Lock()
	t.CreateFeatureCalls = append(t.CreateFeatureCalls, f)
	t.mu.Unlock()

	if t.CreateFeatureFunc != nil {
		return t.CreateFeatureFunc(ctx, projectKey, f)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	f.ID = t.id("feature")
	t.Features = append(t.Features, f)
	return &f, nil
}

// UpdateFeature replaces the stored feature with the same key.
func (t *Target) UpdateFeature(ctx context.Context, projectKey string, f target.Feature) (*target.Feature, error) {
	t.mu.Lock()
	t.UpdateFeatureCalls = append(t.UpdateFeatureCalls, f)
	t.mu.Unlock()

	if t.UpdateFeatureFunc != nil {
		return t.UpdateFeatureFunc(ctx, projectKey, f)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.Features {
		if t.Features[i].Key == f.Key {
			f.ID = t.Features[i].ID
			t.Features[i] = f
			return &f, nil
		}
	}
	return nil, notFound("/features/" + f.Key)
}

// UpdateFeatureConfigurations stores the configurations.
func (t *Target) UpdateFeatureConfigurations(ctx context.Context, projectKey, featureKey string, configs []target.FeatureConfiguration) error {
	t.mu.Lock()
	t.UpdateConfigurationsCalls = append(t.UpdateConfigurationsCalls, ConfigurationsCall{FeatureKey: featureKey, Configs: configs})
	t.mu.Unlock()

	if t.UpdateConfigurationsFunc != nil {
		return t.UpdateConfigurationsFunc(ctx, projectKey, featureKey, configs)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.Configurations[featureKey] = configs
	return nil
}

// GetAudiences returns Audiences.
func (t *Target) GetAudiences(ctx context.Context, projectKey string) ([]target.Audience, error) {
	if t.GetAudiencesFunc != nil {
		return t.GetAudiencesFunc(ctx, projectKey)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.Audiences), nil
}

// CreateAudience stores the audience.
func (t *Target) CreateAudience(ctx context.Context, projectKey string, a target.Audience) (*target.Audience, error) {
	t.mu.Lock()
	t.CreateAudienceCalls = append(t.CreateAudienceCalls, a)
	t.mu.Unlock()

	if t.CreateAudienceFunc != nil {
		return t.CreateAudienceFunc(ctx, projectKey, a)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	a.ID = t.id("audience")
	t.Audiences = append(t.Audiences, a)
	return &a, nil
}

// UpdateAudience replaces the stored audience with the same key.
func (t *Target) UpdateAudience(ctx context.Context, projectKey string, a target.Audience) (*target.Audience, error) {
	t.mu.Lock()
	t.UpdateAudienceCalls = append(t.UpdateAudienceCalls, a)
	t.mu.Unlock()

	if t.UpdateAudienceFunc != nil {
		return t.UpdateAudienceFunc(ctx, projectKey, a)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.Audiences {
		if t.Audiences[i].Key == a.Key {
			a.ID = t.Audiences[i].ID
			t.Audiences[i] = a
			return &a, nil
		}
	}
	return nil, notFound("/audiences/" + a.Key)
}

// GetCustomPropertiesForProject returns CustomProperties.
func (t *Target) GetCustomPropertiesForProject(ctx context.Context, projectKey string) ([]target.CustomProperty, error) {
	if t.GetPropertiesFunc != nil {
		return t.GetPropertiesFunc(ctx, projectKey)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.CustomProperties), nil
}

// CreateCustomProperty stores the property.
func (t *Target) CreateCustomProperty(ctx context.Context, projectKey string, p target.CustomProperty) (*target.CustomProperty, error) {
	t.mu.Lock()
	t.CreatePropertyCalls = append(t.CreatePropertyCalls, p)
	t.mu.Unlock()

	if t.CreatePropertyFunc != nil {
		return t.CreatePropertyFunc(ctx, projectKey, p)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	p.ID = t.id("property")
	t.CustomProperties = append(t.CustomProperties, p)
	return &p, nil
}

// UpdateCustomProperty replaces the stored property with the same key.
func (t *Target) UpdateCustomProperty(ctx context.Context, projectKey string, p target.CustomProperty) (*target.CustomProperty, error) {
	t.mu.Lock()
	t.UpdatePropertyCalls = append(t.UpdatePropertyCalls, p)
	t.mu.Unlock()

	if t.UpdatePropertyFunc != nil {
		return t.UpdatePropertyFunc(ctx, projectKey, p)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.CustomProperties {
		if t.CustomProperties[i].Key == p.Key {
			p.ID = t.CustomProperties[i].ID
			t.CustomProperties[i] = p
			return &p, nil
		}
	}
	return nil, notFound("/customProperties/" + p.Key)
}
