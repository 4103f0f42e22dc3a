package importer

import (
	"context"
	"log/slog"

	"github.com/JoobyPM/flagport/internal/target"
	"github.com/JoobyPM/flagport/internal/translate"
)

// importCustomProperties declares every custom data key used by the built
// configurations and the imported audiences. Only the listing call is fatal.
func (im *Importer) importCustomProperties(
	ctx context.Context,
	proj projectState,
	records []*featureRecord,
	audiences translate.Audiences,
	rep *Report,
) error {
	var configs []target.FeatureConfiguration
	for _, r := range records {
		configs = append(configs, r.configs...)
	}
	candidates := translate.ExtractCustomProperties(configs, audiences.All())
	if len(candidates) == 0 {
		return nil
	}

	existing := map[string]target.CustomProperty{}
	if proj.exists {
		list, err := im.dst.GetCustomPropertiesForProject(ctx, im.opts.TargetProject)
		if err != nil {
			return err
		}
		for _, p := range list {
			existing[p.PropertyKey] = p
		}
	}

	for _, c := range candidates {
		prop := c.Property()
		log := im.log.With(slog.String("property", c.DataKey))
		current, exists := existing[c.DataKey]

		switch {
		case exists && !im.opts.Overwrite:
			log.Debug("custom property exists, skipping")
			rep.Properties.Skipped++
		case exists:
			prop.Key = current.Key
			if !im.opts.DryRun {
				if _, err := im.dst.UpdateCustomProperty(ctx, im.opts.TargetProject, prop); err != nil {
					log.Warn("update custom property failed", slog.Any("error", err))
					rep.propertyFailed(c.DataKey, err)
					continue
				}
			}
			rep.Properties.Updated++
		default:
			if !im.opts.DryRun {
				if _, err := im.dst.CreateCustomProperty(ctx, im.opts.TargetProject, prop); err != nil {
					log.Warn("create custom property failed", slog.Any("error", err))
					rep.propertyFailed(c.DataKey, err)
					continue
				}
			}
			rep.Properties.Created++
		}
	}
	return nil
}
