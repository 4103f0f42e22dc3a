package importer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/JoobyPM/flagport/internal/target"
	"github.com/JoobyPM/flagport/internal/translate"
)

// importAudiences imports the segments of every environment as audiences.
// A segment that fails is recorded and the import goes on; the returned
// Audiences carries the failure so rules matching that segment fail too.
func (im *Importer) importAudiences(ctx context.Context, proj projectState, rep *Report) (translate.Audiences, error) {
	existing := map[string]target.Audience{}
	if proj.exists {
		list, err := im.dst.GetAudiences(ctx, im.opts.TargetProject)
		if err != nil {
			return translate.Audiences{}, err
		}
		for _, a := range list {
			existing[a.Key] = a
		}
	}

	audiences := map[string]target.Audience{}
	failures := map[string]error{}

	for _, envKey := range proj.environments {
		segments, err := im.src.GetSegments(ctx, im.opts.SourceProject, envKey)
		if err != nil {
			return translate.Audiences{}, fmt.Errorf("list segments for %s: %w", envKey, err)
		}

		for _, seg := range segments.Items {
			key := translate.AudienceKey(seg.Key, envKey)
			log := im.log.With(slog.String("audience", key))

			payload, err := im.mapper.MapSegment(seg, envKey)
			if err != nil {
				log.Warn("segment not supported", slog.Any("error", err))
				failures[key] = err
				rep.audienceFailed(key, err)
				continue
			}

			current, exists := existing[key]
			switch {
			case exists && !im.opts.Overwrite:
				log.Debug("audience exists, skipping")
				audiences[key] = current
				rep.Audiences.Skipped++
			case exists:
				saved, err := im.updateAudience(ctx, current, payload)
				if err != nil {
					log.Warn("update audience failed", slog.Any("error", err))
					failures[key] = err
					rep.audienceFailed(key, err)
					continue
				}
				log.Debug("updated audience")
				audiences[key] = saved
				rep.Audiences.Updated++
			default:
				saved, err := im.createAudience(ctx, payload)
				if err != nil {
					log.Warn("create audience failed", slog.Any("error", err))
					failures[key] = err
					rep.audienceFailed(key, err)
					continue
				}
				log.Debug("created audience")
				audiences[key] = saved
				rep.Audiences.Created++
			}
		}
	}

	return translate.NewAudiences(audiences, failures), nil
}

func (im *Importer) createAudience(ctx context.Context, payload target.Audience) (target.Audience, error) {
	if im.opts.DryRun {
		// Rules matching this audience reference it by id; the key stands in.
		payload.ID = payload.Key
		return payload, nil
	}
	saved, err := im.dst.CreateAudience(ctx, im.opts.TargetProject, payload)
	if err != nil {
		return target.Audience{}, err
	}
	return *saved, nil
}

func (im *Importer) updateAudience(ctx context.Context, current, payload target.Audience) (target.Audience, error) {
	if im.opts.DryRun {
		payload.ID = current.ID
		return payload, nil
	}
	saved, err := im.dst.UpdateAudience(ctx, im.opts.TargetProject, payload)
	if err != nil {
		return target.Audience{}, err
	}
	if saved.ID == "" {
		saved.ID = current.ID
	}
	return *saved, nil
}
