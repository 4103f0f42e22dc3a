package importer

import (
	"context"
	"errors"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoobyPM/flagport/internal/backend/mock"
	"github.com/JoobyPM/flagport/internal/source"
	"github.com/JoobyPM/flagport/internal/target"
)

func intPtr(i int) *int { return &i }

// boolFlag is an on/off flag serving variation 1 to everyone when on.
func boolFlag(key string, envs ...string) source.Feature {
	f := source.Feature{
		Key:          key,
		Name:         key,
		Kind:         source.KindBoolean,
		Variations:   []source.Variation{{Value: true, Name: "On"}, {Value: false, Name: "Off"}},
		Environments: map[string]source.FeatureEnvironment{},
	}
	for _, env := range envs {
		f.Environments[env] = source.FeatureEnvironment{On: true, Fallthrough: source.Fallthrough{Variation: intPtr(1)}}
	}
	return f
}

func setup(envs ...string) (*mock.Source, *mock.Target) {
	return mock.NewSource("web", envs...), mock.NewTarget("web", envs...)
}

func TestRun_DuplicateWithoutOverwriteIsSkipped(t *testing.T) {
	src, dst := setup("production")
	src.Features = []source.Feature{boolFlag("dup-key", "production")}
	dst.Features = []target.Feature{{ID: "f1", Key: "dup-key"}}

	rep, err := New(src, dst, Options{SourceProject: "web"}).Run(context.Background())
	require.NoError(t, err)

	outcome, ok := rep.Outcome("dup-key")
	require.True(t, ok)
	assert.Equal(t, ActionSkip, outcome.Action)
	assert.Empty(t, dst.CreateFeatureCalls)
	assert.Empty(t, dst.UpdateFeatureCalls)
	assert.Empty(t, dst.UpdateConfigurationsCalls)
	assert.Equal(t, 1, rep.Features.Skipped)
}

func TestRun_DuplicateWithOverwriteIsUpdated(t *testing.T) {
	src, dst := setup("production")
	src.Features = []source.Feature{boolFlag("dup-key", "production")}
	dst.Features = []target.Feature{{ID: "f1", Key: "dup-key"}}

	rep, err := New(src, dst, Options{SourceProject: "web", Overwrite: true}).Run(context.Background())
	require.NoError(t, err)

	outcome, _ := rep.Outcome("dup-key")
	assert.Equal(t, ActionUpdate, outcome.Action)
	require.Len(t, dst.UpdateFeatureCalls, 1)
	assert.Empty(t, dst.CreateFeatureCalls)

	payload := dst.UpdateFeatureCalls[0]
	assert.Equal(t, "dup-key", payload.Key)
	assert.Equal(t, target.FeatureTypeRelease, payload.Type)
	assert.Equal(t, []string{"on", "off"}, []string{payload.Variations[0].Key, payload.Variations[1].Key})

	require.Len(t, dst.UpdateConfigurationsCalls, 1)
	cfg := dst.UpdateConfigurationsCalls[0].Configs
	require.Len(t, cfg, 1)
	assert.Equal(t, "production", cfg[0].Environment)
	assert.Equal(t, target.StatusActive, cfg[0].Status)
	assert.Equal(t, 1, rep.Features.Updated)
}

func TestRun_CreatesNewFeatures(t *testing.T) {
	src, dst := setup("development", "production")
	src.Features = []source.Feature{boolFlag("a", "development", "production"), boolFlag("b", "development", "production")}

	rep, err := New(src, dst, Options{SourceProject: "web"}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, rep.Features.Created)
	require.Len(t, dst.CreateFeatureCalls, 2)
	assert.Equal(t, "a", dst.CreateFeatureCalls[0].Key)
	assert.Equal(t, "b", dst.CreateFeatureCalls[1].Key)
	assert.Len(t, dst.Configurations["a"], 2)
	assert.False(t, rep.HasErrors())
}

func TestPolicy_Decide(t *testing.T) {
	tests := []struct {
		name   string
		opts   Options
		key    string
		exists bool
		want   Action
	}{
		{"new", Options{}, "a", false, ActionCreate},
		{"duplicate", Options{}, "a", true, ActionSkip},
		{"duplicate overwrite", Options{Overwrite: true}, "a", true, ActionUpdate},
		{"not included", Options{IncludeFeatures: []string{"b"}}, "a", false, ActionSkip},
		{"included", Options{IncludeFeatures: []string{"a"}}, "a", false, ActionCreate},
		{"excluded", Options{ExcludeFeatures: []string{"a"}}, "a", false, ActionSkip},
		{"excluded wins over include", Options{IncludeFeatures: []string{"a"}, ExcludeFeatures: []string{"a"}}, "a", false, ActionSkip},
		{"excluded wins over update", Options{Overwrite: true, ExcludeFeatures: []string{"a"}}, "a", true, ActionSkip},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, newPolicy(tt.opts).decide(tt.key, tt.exists))
		})
	}
}

func TestRun_UnsupportedFeatureIsIsolated(t *testing.T) {
	src, dst := setup("development", "production")
	bad := boolFlag("semver", "development", "production")
	bad.Environments["production"] = source.FeatureEnvironment{
		On: true,
		Rules: []source.Rule{{
			Clauses:   []source.Clause{{Attribute: "version", Op: "semVerGreaterThan", Values: []any{"2.0.0"}}},
			Variation: intPtr(0),
		}},
		Fallthrough: source.Fallthrough{Variation: intPtr(1)},
	}
	src.Features = []source.Feature{bad, boolFlag("good", "development", "production")}

	rep, err := New(src, dst, Options{SourceProject: "web"}).Run(context.Background())
	require.NoError(t, err)

	outcome, _ := rep.Outcome("semver")
	assert.Equal(t, ActionUnsupported, outcome.Action)
	assert.Equal(t, "unsupported operator: semVerGreaterThan", rep.Errors.Features["semver"])
	assert.Equal(t, 1, rep.Features.Unsupported)
	assert.Equal(t, 1, rep.Features.Created)

	require.Len(t, dst.CreateFeatureCalls, 1)
	assert.Equal(t, "good", dst.CreateFeatureCalls[0].Key)
	assert.NotContains(t, dst.Configurations, "semver")
}

func TestRun_SegmentErrorPropagatesToFeature(t *testing.T) {
	src, dst := setup("production")
	src.Segments["production"] = []source.Segment{
		{Key: "beta", Included: []string{"u1"}},
		{Key: "nested", Rules: []source.Rule{{Clauses: []source.Clause{{Attribute: "segmentMatch", Op: "segmentMatch", Values: []any{"beta"}}}}}},
	}
	uses := func(key, segment string) source.Feature {
		f := boolFlag(key, "production")
		env := f.Environments["production"]
		env.Rules = []source.Rule{{
			Clauses:   []source.Clause{{Attribute: "segmentMatch", Op: "segmentMatch", Values: []any{segment}}},
			Variation: intPtr(0),
		}}
		f.Environments["production"] = env
		return f
	}
	src.Features = []source.Feature{uses("beta-flag", "beta"), uses("nested-flag", "nested")}

	rep, err := New(src, dst, Options{SourceProject: "web"}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Audiences.Created)
	assert.Equal(t, 1, rep.Audiences.Failed)
	assert.Equal(t, "Segment match rules are not supported in segments", rep.Errors.Audiences["nested-production"])

	outcome, _ := rep.Outcome("nested-flag")
	assert.Equal(t, ActionUnsupported, outcome.Action)
	assert.Equal(t, "Segment match rules are not supported in segments", outcome.Error)

	outcome, _ = rep.Outcome("beta-flag")
	assert.Equal(t, ActionCreate, outcome.Action)
	rules := dst.Configurations["beta-flag"][0].Targets
	require.Len(t, rules, 2)
	assert.Equal(t, target.FilterTypeAudienceMatch, rules[0].Audience.Filters.Filters[0].Type)
	assert.Equal(t, []string{dst.Audiences[0].ID}, rules[0].Audience.Filters.Filters[0].Audiences)
}

func TestRun_ExistingAudiences(t *testing.T) {
	src, dst := setup("production")
	src.Segments["production"] = []source.Segment{{Key: "beta", Included: []string{"u1"}}}
	dst.Audiences = []target.Audience{{ID: "aud-9", Key: "beta-production"}}

	rep, err := New(src, dst, Options{SourceProject: "web"}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Audiences.Skipped)
	assert.Empty(t, dst.UpdateAudienceCalls)

	rep, err = New(src, dst, Options{SourceProject: "web", Overwrite: true}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Audiences.Updated)
	require.Len(t, dst.UpdateAudienceCalls, 1)
	assert.Equal(t, "aud-9", dst.Audiences[0].ID)
}

func TestRun_FeatureWriteFailureIsRecorded(t *testing.T) {
	src, dst := setup("production")
	src.Features = []source.Feature{boolFlag("a", "production"), boolFlag("b", "production")}
	dst.CreateFeatureFunc = func(_ context.Context, _ string, f target.Feature) (*target.Feature, error) {
		if f.Key == "a" {
			return nil, errors.New("POST /v1/projects/web/features: key taken")
		}
		return &f, nil
	}

	rep, err := New(src, dst, Options{SourceProject: "web"}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Features.Failed)
	assert.Equal(t, 1, rep.Features.Created)
	assert.Contains(t, rep.Errors.Features["a"], "key taken")
	require.Len(t, dst.UpdateConfigurationsCalls, 1, "configs are only pushed for written features")
	assert.Equal(t, "b", dst.UpdateConfigurationsCalls[0].FeatureKey)
}

func TestRun_ListingFailureIsFatal(t *testing.T) {
	src, dst := setup("production")
	boom := errors.New("GET /v1/projects/web/features: Internal Server Error")
	dst.GetFeaturesFunc = func(context.Context, string) ([]target.Feature, error) { return nil, boom }

	_, err := New(src, dst, Options{SourceProject: "web"}).Run(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Zero(t, dst.Writes())
}

func TestRun_SourceFlagFailureIsFatal(t *testing.T) {
	src, dst := setup("production")
	boom := errors.New("GET /api/v2/flags/web: Unauthorized")
	src.GetFeatureFlagsFunc = func(context.Context, string, []string) (*source.FeatureList, error) { return nil, boom }

	_, err := New(src, dst, Options{SourceProject: "web"}).Run(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestRun_CustomProperties(t *testing.T) {
	src, dst := setup("production")
	f := boolFlag("plans", "production")
	env := f.Environments["production"]
	env.Rules = []source.Rule{{
		Clauses: []source.Clause{
			{Attribute: "plan", Op: "in", Values: []any{"gold"}},
			{Attribute: "seats", Op: "greaterThan", Values: []any{float64(10)}},
		},
		Variation: intPtr(0),
	}}
	f.Environments["production"] = env
	src.Features = []source.Feature{f}
	src.Segments["production"] = []source.Segment{{Key: "vip", Rules: []source.Rule{{
		Clauses: []source.Clause{{Attribute: "vip", Op: "in", Values: []any{true}}},
	}}}}
	dst.CustomProperties = []target.CustomProperty{{ID: "p1", Key: "plan", PropertyKey: "plan", Type: "String"}}
	dst.CreatePropertyFunc = func(_ context.Context, _ string, p target.CustomProperty) (*target.CustomProperty, error) {
		if p.PropertyKey == "vip" {
			return nil, errors.New("quota exceeded")
		}
		return &p, nil
	}

	rep, err := New(src, dst, Options{SourceProject: "web"}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Properties.Skipped)
	assert.Equal(t, 1, rep.Properties.Created)
	assert.Equal(t, 1, rep.Properties.Failed)
	assert.Equal(t, "quota exceeded", rep.Errors.Properties["vip"])
	require.Len(t, dst.CreatePropertyCalls, 2)
	assert.Equal(t, target.CustomProperty{Key: "seats", PropertyKey: "seats", Name: "seats", Type: "Number"}, dst.CreatePropertyCalls[0])
	assert.Empty(t, dst.UpdatePropertyCalls)

	_, err = New(src, dst, Options{SourceProject: "web", Overwrite: true}).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, dst.UpdatePropertyCalls, 1)
	assert.Equal(t, "plan", dst.UpdatePropertyCalls[0].Key)
}

type fixedTyper string

func (f fixedTyper) EnvironmentType(context.Context, string) (string, error) { return string(f), nil }

func TestRun_CreatesProjectAndEnvironments(t *testing.T) {
	src := mock.NewSource("web", "dev", "qa", "prod-eu")
	src.Project.Name = "Web App"
	src.Project.Environments.Items[0].Color = "417505"
	dst := mock.NewTarget("other")
	dst.Project = nil

	rep, err := New(src, dst, Options{
		SourceProject:    "web",
		EnvironmentTypes: map[string]string{"qa": target.EnvironmentStaging},
	}).Run(context.Background())
	require.NoError(t, err)

	assert.True(t, rep.ProjectCreated)
	require.Len(t, dst.CreateProjectCalls, 1)
	assert.Equal(t, target.Project{Key: "web", Name: "Web App"}, dst.CreateProjectCalls[0])

	require.Len(t, dst.CreateEnvironmentCalls, 3)
	assert.Equal(t, target.Environment{Key: "dev", Name: "dev", Type: "development", Color: "#417505"}, dst.CreateEnvironmentCalls[0])
	assert.Equal(t, "staging", dst.CreateEnvironmentCalls[1].Type)
	assert.Equal(t, "production", dst.CreateEnvironmentCalls[2].Type)
	assert.Equal(t, []string{"dev", "qa", "prod-eu"}, rep.EnvironmentsCreated)
}

func TestRun_EnvironmentTyper(t *testing.T) {
	src := mock.NewSource("web", "dev", "prod")
	dst := mock.NewTarget("web", "dev")

	_, err := New(src, dst, Options{SourceProject: "web", Typer: fixedTyper("disaster_recovery")}).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, dst.CreateEnvironmentCalls, 1)
	assert.Equal(t, "prod", dst.CreateEnvironmentCalls[0].Key)
	assert.Equal(t, "disaster_recovery", dst.CreateEnvironmentCalls[0].Type)
}

func TestRun_EnvironmentCreateFailureIsFatal(t *testing.T) {
	src := mock.NewSource("web", "dev")
	dst := mock.NewTarget("web")
	dst.CreateEnvironmentFunc = func(context.Context, string, target.Environment) (*target.Environment, error) {
		return nil, errors.New("forbidden")
	}
	src.Features = []source.Feature{boolFlag("a", "dev")}

	_, err := New(src, dst, Options{SourceProject: "web"}).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create environment dev")
	assert.Empty(t, dst.CreateFeatureCalls)
}

func TestGuessEnvironmentType(t *testing.T) {
	assert.Equal(t, "production", GuessEnvironmentType("Production"))
	assert.Equal(t, "production", GuessEnvironmentType("prod-eu"))
	assert.Equal(t, "staging", GuessEnvironmentType("staging"))
	assert.Equal(t, "development", GuessEnvironmentType("test"))
}

func TestPlan_WritesNothing(t *testing.T) {
	src := mock.NewSource("web", "dev", "prod")
	dst := mock.NewTarget("other")
	dst.Project = nil
	src.Segments["prod"] = []source.Segment{{Key: "beta", Included: []string{"u1"}}}
	f := boolFlag("a", "dev", "prod")
	env := f.Environments["prod"]
	env.Rules = []source.Rule{{
		Clauses:   []source.Clause{{Attribute: "segmentMatch", Op: "segmentMatch", Values: []any{"beta"}}},
		Variation: intPtr(0),
	}}
	f.Environments["prod"] = env
	src.Features = []source.Feature{f}

	rep, err := New(src, dst, Options{SourceProject: "web"}).Plan(context.Background())
	require.NoError(t, err)

	assert.Zero(t, dst.Writes())
	assert.True(t, rep.DryRun)
	assert.True(t, rep.ProjectCreated)
	assert.Equal(t, 1, rep.Features.Created)
	assert.Equal(t, 1, rep.Audiences.Created)
	assert.False(t, rep.HasErrors())
}

func TestRun_ManyFeatures(t *testing.T) {
	faker := gofakeit.New(7)
	src, dst := setup("development", "staging", "production", "qa")

	keys := map[string]bool{}
	for len(keys) < 25 {
		keys[faker.LetterN(8)] = true
	}
	for k := range keys {
		src.Features = append(src.Features, boolFlag(k, "development", "staging", "production", "qa"))
	}

	rep, err := New(src, dst, Options{SourceProject: "web"}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, len(keys), rep.Features.Created)
	assert.Len(t, src.GetFeatureFlagsCalls, 2)
	for k := range keys {
		assert.Len(t, dst.Configurations[k], 4, k)
	}
}
