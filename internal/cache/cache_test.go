package cache

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoobyPM/flagport/internal/backend/mock"
	"github.com/JoobyPM/flagport/internal/source"
)

func TestCache_FeatureFlags_BatchesOfThree(t *testing.T) {
	src := mock.NewSource("web", "e1", "e2", "e3", "e4", "e5", "e6", "e7")
	src.GetFeatureFlagsFunc = func(_ context.Context, _ string, envKeys []string) (*source.FeatureList, error) {
		// One distinct flag per batch so the merge order is observable.
		return &source.FeatureList{Items: []source.Feature{{Key: "flag-" + envKeys[0]}}}, nil
	}
	c := New(src)

	list, err := c.FeatureFlagsForProject(context.Background(), "web")
	require.NoError(t, err)

	require.Len(t, src.GetFeatureFlagsCalls, 3)
	assert.Equal(t, []string{"e1", "e2", "e3"}, src.GetFeatureFlagsCalls[0].EnvKeys)
	assert.Equal(t, []string{"e4", "e5", "e6"}, src.GetFeatureFlagsCalls[1].EnvKeys)
	assert.Equal(t, []string{"e7"}, src.GetFeatureFlagsCalls[2].EnvKeys)

	keys := make([]string, len(list.Items))
	for i, f := range list.Items {
		keys[i] = f.Key
	}
	assert.Equal(t, []string{"flag-e1", "flag-e4", "flag-e7"}, keys)
}

func TestCache_FeatureFlags_MergesEnvironmentsOfSameFlag(t *testing.T) {
	src := mock.NewSource("web", "dev", "qa", "stage", "prod")
	src.Features = []source.Feature{
		{Key: "a", Environments: map[string]source.FeatureEnvironment{
			"dev": {On: true}, "qa": {On: true}, "stage": {}, "prod": {On: true},
		}},
		{Key: "b", Environments: map[string]source.FeatureEnvironment{"prod": {}}},
	}
	c := New(src)

	list, err := c.FeatureFlagsForProject(context.Background(), "web")
	require.NoError(t, err)
	require.Len(t, list.Items, 2)
	assert.Equal(t, "a", list.Items[0].Key)
	assert.Len(t, list.Items[0].Environments, 4)
	assert.True(t, list.Items[0].Environments["prod"].On)
	assert.Equal(t, "b", list.Items[1].Key)
	assert.Contains(t, list.Items[1].Environments, "prod")
}

func TestCache_Environments_CachedPerProject(t *testing.T) {
	src := mock.NewSource("web", "dev", "prod")
	c := New(src)
	ctx := context.Background()

	_, err := c.FeatureFlagsForProject(ctx, "web")
	require.NoError(t, err)
	_, err = c.FeatureFlagsForProject(ctx, "web")
	require.NoError(t, err)
	assert.Equal(t, []string{"web"}, src.GetProjectCalls, "environment lookup happens once")

	_, err = c.FeatureFlagsForProject(ctx, "mobile")
	require.NoError(t, err)
	assert.Equal(t, []string{"web", "mobile"}, src.GetProjectCalls, "a different key forces a fresh lookup")

	_, err = c.FeatureFlagsForProject(ctx, "web")
	require.NoError(t, err)
	assert.Len(t, src.GetProjectCalls, 3, "cache holds a single project")
}

func TestCache_Environments_FallbackToEnvironmentsCall(t *testing.T) {
	tests := []struct {
		name    string
		project *source.Project
	}{
		{name: "nil environments", project: &source.Project{Key: "web"}},
		{name: "empty items", project: &source.Project{Key: "web", Environments: &source.EnvironmentList{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := mock.NewSource("web", "dev", "prod")
			src.Project = tt.project
			c := New(src)

			keys, err := c.EnvironmentsForProject(context.Background(), "web")
			require.NoError(t, err)
			assert.Equal(t, []string{"dev", "prod"}, keys)
			assert.Equal(t, []string{"web"}, src.GetEnvironmentsCalls)
			assert.Equal(t, FromEnvironments, c.Provenance())
		})
	}
}

func TestCache_Environments_FromProjectExpand(t *testing.T) {
	src := mock.NewSource("web", "dev", "prod")
	c := New(src)

	keys, err := c.EnvironmentsForProject(context.Background(), "web")
	require.NoError(t, err)
	assert.Equal(t, []string{"dev", "prod"}, keys)
	assert.Empty(t, src.GetEnvironmentsCalls)
	assert.Equal(t, FromProject, c.Provenance())

	p, err := c.Project(context.Background(), "web")
	require.NoError(t, err)
	assert.Equal(t, "web", p.Key)
	assert.Len(t, src.GetProjectCalls, 1)
}

func TestCache_FeatureFlags_NoEnvironments(t *testing.T) {
	src := mock.NewSource("web")
	c := New(src)

	list, err := c.FeatureFlagsForProject(context.Background(), "web")
	require.NoError(t, err)
	assert.Empty(t, list.Items)
	assert.Empty(t, src.GetFeatureFlagsCalls)
}

func TestCache_Errors(t *testing.T) {
	boom := errors.New("boom")

	t.Run("project", func(t *testing.T) {
		src := mock.NewSource("web", "dev")
		src.GetProjectFunc = func(context.Context, string) (*source.Project, error) { return nil, boom }
		_, err := New(src).FeatureFlagsForProject(context.Background(), "web")
		assert.ErrorIs(t, err, boom)
	})

	t.Run("flags", func(t *testing.T) {
		src := mock.NewSource("web", "dev")
		src.GetFeatureFlagsFunc = func(context.Context, string, []string) (*source.FeatureList, error) { return nil, boom }
		_, err := New(src).FeatureFlagsForProject(context.Background(), "web")
		assert.ErrorIs(t, err, boom)
	})
}

func TestCache_ThreadSafety(t *testing.T) {
	src := mock.NewSource("web", "dev", "qa", "prod")
	c := New(src)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.EnvironmentsForProject(context.Background(), "web")
			_ = c.Provenance()
		}()
	}
	wg.Wait()

	keys, err := c.EnvironmentsForProject(context.Background(), "web")
	require.NoError(t, err)
	assert.Len(t, keys, 3)
}
