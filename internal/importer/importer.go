// Package importer runs a one-shot import of a Source project into a Target
// project: project and environments, then audiences, then features and their
// configurations, then custom properties.
package importer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JoobyPM/flagport/internal/backend"
	"github.com/JoobyPM/flagport/internal/cache"
	"github.com/JoobyPM/flagport/internal/translate"
)

// EnvironmentTyper picks the Target type of a new environment.
type EnvironmentTyper interface {
	EnvironmentType(ctx context.Context, environmentKey string) (string, error)
}

// Options configures a run.
type Options struct {
	SourceProject string
	TargetProject string

	// IncludeFeatures, when non-empty, limits the import to these keys.
	IncludeFeatures []string
	// ExcludeFeatures are never imported.
	ExcludeFeatures []string
	// Overwrite updates features, audiences and custom properties that
	// already exist in the Target project.
	Overwrite bool
	// OperationMap overrides the comparator of Source operators.
	OperationMap map[string]string

	// EnvironmentTypes maps Source environment keys to Target types for
	// environments that must be created.
	EnvironmentTypes map[string]string
	// Typer is consulted for environments missing from EnvironmentTypes. When
	// nil, the type is guessed from the key.
	Typer EnvironmentTyper

	// DryRun plans every action without writing to the Target.
	DryRun bool

	Logger *slog.Logger
}

// Importer imports one project. It is not safe for concurrent use; create
// one per run.
type Importer struct {
	src   backend.Source
	dst   backend.Target
	cache *cache.Cache
	opts  Options
	log   *slog.Logger

	mapper translate.Mapper
}

// New creates an Importer.
func New(src backend.Source, dst backend.Target, opts Options) *Importer {
	if opts.TargetProject == "" {
		opts.TargetProject = opts.SourceProject
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Importer{
		src:    src,
		dst:    dst,
		cache:  cache.New(src),
		opts:   opts,
		log:    log,
		mapper: translate.Mapper{OperationMap: opts.OperationMap},
	}
}

// Run performs the import. Each step completes before the next starts.
// Failures of a single feature, audience or property are recorded in the
// report; failures of listing calls abort the run.
func (im *Importer) Run(ctx context.Context) (*Report, error) {
	runID := uuid.NewString()
	im.log = im.log.With(
		slog.String("run_id", runID),
		slog.String("source_project", im.opts.SourceProject),
		slog.String("target_project", im.opts.TargetProject),
	)
	rep := newReport(runID, im.opts)

	im.log.Info("importing project", slog.Bool("dry_run", im.opts.DryRun))
	proj, err := im.importProject(ctx, rep)
	if err != nil {
		im.log.Error("project import failed", slog.Any("error", err))
		return rep, err
	}

	im.log.Info("importing audiences", slog.Int("environments", len(proj.environments)))
	audiences, err := im.importAudiences(ctx, proj, rep)
	if err != nil {
		im.log.Error("audience import failed", slog.Any("error", err))
		return rep, err
	}

	im.log.Info("importing features")
	records, err := im.importFeatures(ctx, proj, audiences, rep)
	if err != nil {
		im.log.Error("feature import failed", slog.Any("error", err))
		return rep, err
	}

	im.log.Info("importing custom properties")
	if err := im.importCustomProperties(ctx, proj, records, audiences, rep); err != nil {
		im.log.Error("custom property import failed", slog.Any("error", err))
		return rep, err
	}

	im.log.Info("import finished",
		slog.Int("features_created", rep.Features.Created),
		slog.Int("features_updated", rep.Features.Updated),
		slog.Int("features_skipped", rep.Features.Skipped),
		slog.Int("features_unsupported", rep.Features.Unsupported),
		slog.Int("errors", rep.Errors.Len()),
	)
	return rep, nil
}

// Plan runs the import without writing to the Target.
func (im *Importer) Plan(ctx context.Context) (*Report, error) {
	im.opts.DryRun = true
	rep, err := im.Run(ctx)
	if err != nil {
		return rep, fmt.Errorf("plan: %w", err)
	}
	return rep, nil
}
