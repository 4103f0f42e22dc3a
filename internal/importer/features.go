package importer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/JoobyPM/flagport/internal/source"
	"github.com/JoobyPM/flagport/internal/target"
	"github.com/JoobyPM/flagport/internal/translate"
)

// featureRecord tracks one feature through the import.
type featureRecord struct {
	key     string
	action  Action
	src     source.Feature
	payload target.Feature
	configs []target.FeatureConfiguration
	err     error
}

func (r *featureRecord) writable() bool {
	return (r.action == ActionCreate || r.action == ActionUpdate) && r.err == nil
}

// policy decides the initial action of a feature.
type policy struct {
	include   map[string]bool
	exclude   map[string]bool
	overwrite bool
}

func newPolicy(opts Options) policy {
	p := policy{
		include:   make(map[string]bool, len(opts.IncludeFeatures)),
		exclude:   make(map[string]bool, len(opts.ExcludeFeatures)),
		overwrite: opts.Overwrite,
	}
	for _, k := range opts.IncludeFeatures {
		p.include[k] = true
	}
	for _, k := range opts.ExcludeFeatures {
		p.exclude[k] = true
	}
	return p
}

func (p policy) decide(key string, exists bool) Action {
	switch {
	case len(p.include) > 0 && !p.include[key]:
		return ActionSkip
	case p.exclude[key]:
		return ActionSkip
	case exists && p.overwrite:
		return ActionUpdate
	case exists:
		return ActionSkip
	default:
		return ActionCreate
	}
}

// importFeatures plans, translates and writes every feature. Listing
// failures abort the run; anything else is recorded against the feature.
func (im *Importer) importFeatures(ctx context.Context, proj projectState, audiences translate.Audiences, rep *Report) ([]*featureRecord, error) {
	existing := map[string]bool{}
	if proj.exists {
		features, err := im.dst.GetFeaturesForProject(ctx, im.opts.TargetProject)
		if err != nil {
			return nil, err
		}
		for _, f := range features {
			existing[f.Key] = true
		}
	}

	flags, err := im.cache.FeatureFlagsForProject(ctx, im.opts.SourceProject)
	if err != nil {
		return nil, fmt.Errorf("list source flags: %w", err)
	}

	records := im.planFeatures(flags.Items, existing)
	im.buildConfigs(records, proj.environments, audiences)
	im.writeFeatures(ctx, records)
	im.writeConfigs(ctx, records)

	for _, r := range records {
		outcome := FeatureOutcome{Key: r.key, Action: r.action}
		switch {
		case r.err != nil:
			outcome.Error = r.err.Error()
			rep.Errors.Features[r.key] = r.err.Error()
			if r.action == ActionUnsupported {
				rep.Features.Unsupported++
			} else {
				rep.Features.Failed++
			}
		case r.action == ActionCreate:
			rep.Features.Created++
		case r.action == ActionUpdate:
			rep.Features.Updated++
		case r.action == ActionSkip:
			rep.Features.Skipped++
		}
		rep.FeatureOutcomes = append(rep.FeatureOutcomes, outcome)
	}
	return records, nil
}

func (im *Importer) planFeatures(flags []source.Feature, existing map[string]bool) []*featureRecord {
	p := newPolicy(im.opts)
	records := make([]*featureRecord, 0, len(flags))
	for _, f := range flags {
		r := &featureRecord{key: f.Key, src: f, action: p.decide(f.Key, existing[f.Key])}
		im.log.Debug("planned feature", slog.String("feature", f.Key), slog.String("action", string(r.action)))
		records = append(records, r)
	}
	return records
}

// buildConfigs translates the payload and every environment of each
// feature to import. The first error makes the feature unsupported and
// drops whatever was built for it.
func (im *Importer) buildConfigs(records []*featureRecord, envKeys []string, audiences translate.Audiences) {
	b := translate.Builder{Mapper: im.mapper, Audiences: audiences}
	for _, r := range records {
		if r.action == ActionSkip {
			continue
		}

		payload, err := translate.MapFeature(r.src)
		if err == nil {
			r.payload = payload
			r.configs, err = b.BuildFeature(r.src, payload, envKeys)
		}
		if err != nil {
			im.log.Warn("feature not supported", slog.String("feature", r.key), slog.Any("error", err))
			r.action = ActionUnsupported
			r.configs = nil
			r.err = err
		}
	}
}

func (im *Importer) writeFeatures(ctx context.Context, records []*featureRecord) {
	for _, r := range records {
		if !r.writable() {
			continue
		}
		log := im.log.With(slog.String("feature", r.key), slog.String("action", string(r.action)))
		if im.opts.DryRun {
			log.Info("would write feature")
			continue
		}

		var err error
		if r.action == ActionCreate {
			_, err = im.dst.CreateFeature(ctx, im.opts.TargetProject, r.payload)
		} else {
			_, err = im.dst.UpdateFeature(ctx, im.opts.TargetProject, r.payload)
		}
		if err != nil {
			log.Warn("write feature failed", slog.Any("error", err))
			r.err = err
			continue
		}
		log.Debug("wrote feature")
	}
}

func (im *Importer) writeConfigs(ctx context.Context, records []*featureRecord) {
	for _, r := range records {
		if !r.writable() {
			continue
		}
		if r.action == ActionUpdate && !im.opts.Overwrite {
			continue
		}
		if im.opts.DryRun {
			continue
		}
		if err := im.dst.UpdateFeatureConfigurations(ctx, im.opts.TargetProject, r.key, r.configs); err != nil {
			im.log.Warn("write configurations failed", slog.String("feature", r.key), slog.Any("error", err))
			r.err = err
		}
	}
}
