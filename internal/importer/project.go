package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/JoobyPM/flagport/internal/apiclient"
	"github.com/JoobyPM/flagport/internal/target"
)

// projectState is what later steps need to know about the projects.
type projectState struct {
	environments []string
	// exists is false only in a dry run whose Target project would be created.
	exists bool
}

// importProject makes sure the Target project and every Source environment
// exist in the Target. Failures are fatal since features depend on both.
func (im *Importer) importProject(ctx context.Context, rep *Report) (projectState, error) {
	srcEnvs, err := im.cache.Environments(ctx, im.opts.SourceProject)
	if err != nil {
		return projectState{}, fmt.Errorf("source project %s: %w", im.opts.SourceProject, err)
	}
	srcProject, err := im.cache.Project(ctx, im.opts.SourceProject)
	if err != nil {
		return projectState{}, fmt.Errorf("source project %s: %w", im.opts.SourceProject, err)
	}
	state := projectState{exists: true}
	for _, env := range srcEnvs {
		state.environments = append(state.environments, env.Key)
	}

	_, err = im.dst.GetProject(ctx, im.opts.TargetProject)
	switch {
	case err == nil:
	case errors.Is(err, apiclient.ErrNotFound):
		rep.ProjectCreated = true
		if im.opts.DryRun {
			im.log.Info("would create target project")
			state.exists = false
			break
		}
		name := im.opts.TargetProject
		if srcProject.Name != "" {
			name = srcProject.Name
		}
		if _, err := im.dst.CreateProject(ctx, target.Project{Key: im.opts.TargetProject, Name: name}); err != nil {
			return projectState{}, fmt.Errorf("create target project: %w", err)
		}
		im.log.Info("created target project")
	default:
		return projectState{}, fmt.Errorf("target project %s: %w", im.opts.TargetProject, err)
	}

	existing := map[string]bool{}
	if state.exists {
		envs, err := im.dst.GetEnvironments(ctx, im.opts.TargetProject)
		if err != nil {
			return projectState{}, err
		}
		for _, env := range envs {
			existing[env.Key] = true
		}
	}

	for _, src := range srcEnvs {
		key := src.Key
		if existing[key] {
			continue
		}
		typ, err := im.environmentType(ctx, key)
		if err != nil {
			return projectState{}, err
		}
		rep.EnvironmentsCreated = append(rep.EnvironmentsCreated, key)
		if im.opts.DryRun {
			im.log.Info("would create environment", slog.String("environment", key), slog.String("type", typ))
			continue
		}

		env := target.Environment{Key: key, Name: src.Name, Type: typ}
		if env.Name == "" {
			env.Name = key
		}
		if src.Color != "" {
			env.Color = "#" + strings.TrimPrefix(src.Color, "#")
		}
		if _, err := im.dst.CreateEnvironment(ctx, im.opts.TargetProject, env); err != nil {
			return projectState{}, fmt.Errorf("create environment %s: %w", key, err)
		}
		im.log.Info("created environment", slog.String("environment", key), slog.String("type", typ))
	}
	return state, nil
}

func (im *Importer) environmentType(ctx context.Context, key string) (string, error) {
	if typ, ok := im.opts.EnvironmentTypes[key]; ok {
		return typ, nil
	}
	if im.opts.Typer != nil {
		typ, err := im.opts.Typer.EnvironmentType(ctx, key)
		if err != nil {
			return "", fmt.Errorf("environment type for %s: %w", key, err)
		}
		return typ, nil
	}
	return GuessEnvironmentType(key), nil
}

// GuessEnvironmentType derives an environment type from its key.
func GuessEnvironmentType(key string) string {
	k := strings.ToLower(key)
	switch {
	case strings.Contains(k, "prod"):
		return target.EnvironmentProduction
	case strings.Contains(k, "stag"):
		return target.EnvironmentStaging
	default:
		return target.EnvironmentDevelopment
	}
}
