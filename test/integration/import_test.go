//go:build integration

package integration

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoobyPM/flagport/internal/apiclient"
	"github.com/JoobyPM/flagport/internal/importer"
	"github.com/JoobyPM/flagport/internal/source"
	"github.com/JoobyPM/flagport/internal/target"
	"github.com/JoobyPM/flagport/test/integration/testutil"
)

var envTypes = map[string]string{
	"development": target.EnvironmentDevelopment,
	"staging":     target.EnvironmentStaging,
	"production":  target.EnvironmentProduction,
	"qa":          target.EnvironmentStaging,
}

func intPtr(i int) *int { return &i }

func boolFlag(key string) source.Feature {
	return source.Feature{
		Key:          key,
		Name:         key,
		Kind:         source.KindBoolean,
		Variations:   []source.Variation{{Value: true, Name: "On"}, {Value: false, Name: "Off"}},
		Environments: map[string]source.FeatureEnvironment{},
	}
}

// seed fills the Source with one targeted feature, one feature using an
// operator the Target lacks and one segment in production.
func seed(env *testutil.TestEnv) {
	checkout := boolFlag("new-checkout")
	checkout.Environments["production"] = source.FeatureEnvironment{
		On:      true,
		Targets: []source.Target{{Values: []string{"user-2"}, Variation: 0}},
		Rules: []source.Rule{
			{
				Description: "Beta testers",
				Clauses:     []source.Clause{{Attribute: "segmentMatch", Op: "segmentMatch", Values: []any{"beta"}}},
				Variation:   intPtr(0),
			},
			{
				Description: "Gold plan",
				Clauses:     []source.Clause{{Attribute: "plan", Op: "in", Values: []any{"gold"}}},
				Variation:   intPtr(0),
			},
		},
		Fallthrough: source.Fallthrough{Variation: intPtr(1)},
	}
	checkout.Environments["qa"] = source.FeatureEnvironment{
		On:          true,
		Fallthrough: source.Fallthrough{Variation: intPtr(0)},
	}

	semver := boolFlag("semver-gate")
	semver.Environments["production"] = source.FeatureEnvironment{
		On: true,
		Rules: []source.Rule{{
			Clauses:   []source.Clause{{Attribute: "version", Op: "semVerGreaterThan", Values: []any{"2.0.0"}}},
			Variation: intPtr(0),
		}},
		Fallthrough: source.Fallthrough{Variation: intPtr(1)},
	}

	env.Source.AddFlags(checkout, semver)
	env.Source.AddSegments("production", source.Segment{
		Key:      "beta",
		Name:     "Beta",
		Included: []string{"user-1"},
	})
}

func newImporter(ctx context.Context, t *testing.T, env *testutil.TestEnv, opts importer.Options) *importer.Importer {
	t.Helper()
	dst, err := env.TargetClient(ctx)
	require.NoError(t, err, "create target client")
	opts.SourceProject = "web"
	opts.EnvironmentTypes = envTypes
	return importer.New(env.SourceClient(), dst, opts)
}

// TestImport_EmptyTarget verifies a full import into a Target without the project.
func TestImport_EmptyTarget(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	env := testutil.SetupTestEnv(testutil.Project("web", "development", "staging", "production", "qa"))
	defer env.Cleanup()
	seed(env)

	rep, err := newImporter(ctx, t, env, importer.Options{}).Run(ctx)
	require.NoError(t, err, "run import")

	// Project and environments
	assert.True(t, rep.ProjectCreated)
	require.NotNil(t, env.Target.Project())
	assert.Equal(t, "web", env.Target.Project().Key)
	assert.Equal(t, []string{"development", "staging", "production", "qa"}, rep.EnvironmentsCreated)
	envs := env.Target.Environments()
	require.Len(t, envs, 4)
	assert.Equal(t, target.EnvironmentStaging, envs[3].Type)

	// Flags are listed three environments at a time
	assert.Equal(t, [][]string{{"development", "staging", "production"}, {"qa"}}, env.Source.FlagQueries)

	// Audiences
	audience, ok := env.Target.Audience("beta-production")
	require.True(t, ok, "audience created")
	assert.NotEmpty(t, audience.ID)
	assert.Equal(t, "Beta (production)", audience.Name)
	assert.Equal(t, 1, rep.Audiences.Created)

	// Features
	assert.Equal(t, 1, rep.Features.Created)
	assert.Equal(t, 1, rep.Features.Unsupported)
	outcome, _ := rep.Outcome("semver-gate")
	assert.Equal(t, importer.ActionUnsupported, outcome.Action)
	assert.Contains(t, rep.Errors.Features["semver-gate"], "semVerGreaterThan")
	_, ok = env.Target.Feature("semver-gate")
	assert.False(t, ok, "unsupported feature must not be written")

	feature, ok := env.Target.Feature("new-checkout")
	require.True(t, ok, "feature created")
	on, _ := feature.VariationKey(0)
	off, _ := feature.VariationKey(1)

	prod, ok := env.Target.Configuration("new-checkout", "production")
	require.True(t, ok, "production configuration written")
	assert.Equal(t, target.StatusActive, prod.Status)
	require.Len(t, prod.Targets, 4)
	assert.Equal(t, "Individual targets", prod.Targets[0].Name)
	assert.Equal(t, "Beta testers", prod.Targets[1].Name)
	match := prod.Targets[1].Audience.Filters.Filters[0]
	assert.Equal(t, target.FilterTypeAudienceMatch, match.Type)
	assert.Equal(t, []string{audience.ID}, match.Audiences)
	assert.Equal(t, on, prod.Targets[2].Distribution[0].Variation)
	assert.Equal(t, "All users", prod.Targets[3].Name)
	assert.Equal(t, off, prod.Targets[3].Distribution[0].Variation)

	qa, ok := env.Target.Configuration("new-checkout", "qa")
	require.True(t, ok, "qa configuration from the second batch written")
	assert.Equal(t, target.StatusActive, qa.Status)

	dev, ok := env.Target.Configuration("new-checkout", "development")
	require.True(t, ok, "development configuration written")
	assert.Equal(t, target.StatusInactive, dev.Status)
	assert.Empty(t, dev.Targets)

	// Custom properties
	props := env.Target.Properties()
	require.Len(t, props, 1)
	assert.Equal(t, "plan", props[0].PropertyKey)
	assert.Equal(t, target.DataKeyTypeString, props[0].Type)

	assert.Equal(t, 1, env.Target.TokenRequests, "token is fetched once and reused")
}

// TestImport_Rerun verifies that a second run skips what exists unless
// overwrite is set.
func TestImport_Rerun(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	env := testutil.SetupTestEnv(testutil.Project("web", "development", "production"))
	defer env.Cleanup()
	seed(env)

	_, err := newImporter(ctx, t, env, importer.Options{}).Run(ctx)
	require.NoError(t, err, "first import")
	writes := env.Target.WriteCount()

	rep, err := newImporter(ctx, t, env, importer.Options{}).Run(ctx)
	require.NoError(t, err, "second import")
	assert.False(t, rep.ProjectCreated)
	assert.Empty(t, rep.EnvironmentsCreated)
	assert.Equal(t, 1, rep.Features.Skipped)
	assert.Equal(t, 1, rep.Audiences.Skipped)
	assert.Zero(t, rep.Properties.Created)
	assert.Equal(t, writes, env.Target.WriteCount(), "nothing written without overwrite")

	rep, err = newImporter(ctx, t, env, importer.Options{Overwrite: true}).Run(ctx)
	require.NoError(t, err, "overwrite import")
	assert.Equal(t, 1, rep.Features.Updated)
	assert.Equal(t, 1, rep.Audiences.Updated)
	assert.Equal(t, 1, rep.Properties.Updated)
	outcome, _ := rep.Outcome("new-checkout")
	assert.Equal(t, importer.ActionUpdate, outcome.Action)
	assert.Greater(t, env.Target.WriteCount(), writes)
}

// TestImport_DryRun verifies a plan against an empty Target writes nothing.
func TestImport_DryRun(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	env := testutil.SetupTestEnv(testutil.Project("web", "production"))
	defer env.Cleanup()
	seed(env)

	rep, err := newImporter(ctx, t, env, importer.Options{}).Plan(ctx)
	require.NoError(t, err, "plan")

	assert.True(t, rep.DryRun)
	assert.True(t, rep.ProjectCreated)
	assert.Equal(t, []string{"production"}, rep.EnvironmentsCreated)
	assert.Equal(t, 1, rep.Features.Created)
	assert.Equal(t, 1, rep.Audiences.Created)
	assert.Nil(t, env.Target.Project())
	assert.Zero(t, env.Target.WriteCount())
}

// TestImport_BadSourceToken verifies listing failures abort the run.
func TestImport_BadSourceToken(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	env := testutil.SetupTestEnv(testutil.Project("web", "production"))
	defer env.Cleanup()

	dst, err := env.TargetClient(ctx)
	require.NoError(t, err)
	src := source.New(env.Source.URL, "wrong-token", nil)

	_, err = importer.New(src, dst, importer.Options{SourceProject: "web"}).Run(ctx)
	var apiErr *apiclient.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "invalid access token", apiErr.Message)
	assert.Zero(t, env.Target.WriteCount())
}
