package translate

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/JoobyPM/flagport/internal/source"
	"github.com/JoobyPM/flagport/internal/target"
)

// rolloutUnits is the total weight of a rollout.
const rolloutUnits = 100000

// AudienceKey is the key of the audience imported from a segment in one
// environment.
func AudienceKey(segmentKey, environmentKey string) string {
	return segmentKey + "-" + environmentKey
}

// Audiences is the result of importing segments: the audience of every
// imported segment and the error of every segment that failed, both keyed by
// AudienceKey. It is read-only once built.
type Audiences struct {
	byKey  map[string]target.Audience
	errors map[string]error
}

// NewAudiences copies the given maps into an Audiences value.
func NewAudiences(audiences map[string]target.Audience, errs map[string]error) Audiences {
	return Audiences{byKey: maps.Clone(audiences), errors: maps.Clone(errs)}
}

// Lookup resolves the audience imported for a segment in an environment.
func (a Audiences) Lookup(segmentKey, environmentKey string) (target.Audience, error) {
	key := AudienceKey(segmentKey, environmentKey)
	if err, ok := a.errors[key]; ok {
		return target.Audience{}, &DependencyError{Audience: key, Err: err}
	}
	aud, ok := a.byKey[key]
	if !ok {
		return target.Audience{}, fmt.Errorf("%w: %s", ErrMissingAudience, key)
	}
	return aud, nil
}

// All returns every imported audience.
func (a Audiences) All() []target.Audience {
	out := make([]target.Audience, 0, len(a.byKey))
	for _, k := range slices.Sorted(maps.Keys(a.byKey)) {
		out = append(out, a.byKey[k])
	}
	return out
}

// Errors returns the translation errors keyed by audience key.
func (a Audiences) Errors() map[string]error {
	return maps.Clone(a.errors)
}

// Builder assembles Target feature configurations from Source flag
// environments.
type Builder struct {
	Mapper    Mapper
	Audiences Audiences
}

// BuildFromTarget converts individual user targets to a rule serving their
// variation.
func (b Builder) BuildFromTarget(t source.Target, feature target.Feature) (target.TargetingRule, error) {
	key, ok := feature.VariationKey(t.Variation)
	if !ok {
		return target.TargetingRule{}, fmt.Errorf("%w: index %d", ErrUnknownVariation, t.Variation)
	}
	return target.TargetingRule{
		Name: "Individual targets",
		Audience: target.Audience{
			Name:    "Individual targets",
			Filters: target.And(UserIDFilter(target.ComparatorEqual, t.Values)),
		},
		Distribution: []target.Distribution{{Variation: key, Percentage: 1}},
	}, nil
}

// BuildFromRule converts a rule. Segment match clauses resolve to the
// audiences imported for environmentKey; every other clause goes through the
// Mapper. All resulting leaves are and-ed.
func (b Builder) BuildFromRule(r source.Rule, feature target.Feature, environmentKey string) (target.TargetingRule, error) {
	if r.Weight != nil {
		return target.TargetingRule{}, ErrWeightedRule
	}

	filters := make([]target.Filter, 0, len(r.Clauses))
	for _, c := range r.Clauses {
		if isSegmentMatch(c) {
			f, err := b.audienceMatch(c, environmentKey)
			if err != nil {
				return target.TargetingRule{}, err
			}
			filters = append(filters, f)
			continue
		}
		f, err := b.Mapper.MapClause(c)
		if err != nil {
			return target.TargetingRule{}, err
		}
		filters = append(filters, f)
	}

	dist, err := Distribution(r.Variation, r.Rollout, feature)
	if err != nil {
		return target.TargetingRule{}, err
	}

	name := r.Description
	if name == "" {
		name = strings.TrimSpace("Rule " + r.ID)
	}
	return target.TargetingRule{
		Name:         name,
		Audience:     target.Audience{Name: name, Filters: target.And(filters...)},
		Distribution: dist,
	}, nil
}

func (b Builder) audienceMatch(c source.Clause, environmentKey string) (target.Filter, error) {
	ids := make([]string, 0, len(c.Values))
	for _, v := range c.Values {
		segmentKey, ok := v.(string)
		if !ok {
			return target.Filter{}, fmt.Errorf("%w: segment key %v", ErrUnsupportedDataType, v)
		}
		aud, err := b.Audiences.Lookup(segmentKey, environmentKey)
		if err != nil {
			return target.Filter{}, err
		}
		ids = append(ids, aud.ID)
	}
	return target.Filter{
		Type:       target.FilterTypeAudienceMatch,
		Comparator: pick(c.Negate, target.ComparatorNotEqual, target.ComparatorEqual),
		Audiences:  ids,
	}, nil
}

// BuildFromFallthrough converts the default outcome to a rule for all users.
func (b Builder) BuildFromFallthrough(f source.Fallthrough, feature target.Feature) (target.TargetingRule, error) {
	dist, err := Distribution(f.Variation, f.Rollout, feature)
	if err != nil {
		return target.TargetingRule{}, err
	}
	return target.TargetingRule{
		Name:         "All users",
		Audience:     target.Audience{Name: "All users", Filters: target.And(AllUsers())},
		Distribution: dist,
	}, nil
}

// Distribution converts a fixed variation or a rollout to a distribution.
// Zero weight rollout entries are dropped.
func Distribution(variation *int, rollout *source.Rollout, feature target.Feature) ([]target.Distribution, error) {
	switch {
	case variation != nil:
		key, ok := feature.VariationKey(*variation)
		if !ok {
			return nil, fmt.Errorf("%w: index %d", ErrUnknownVariation, *variation)
		}
		return []target.Distribution{{Variation: key, Percentage: 1}}, nil
	case rollout != nil:
		dist := make([]target.Distribution, 0, len(rollout.Variations))
		for _, wv := range rollout.Variations {
			if wv.Weight == 0 {
				continue
			}
			key, ok := feature.VariationKey(wv.Variation)
			if !ok {
				return nil, fmt.Errorf("%w: index %d", ErrUnknownVariation, wv.Variation)
			}
			dist = append(dist, target.Distribution{
				Variation:  key,
				Percentage: float64(wv.Weight) / rolloutUnits,
			})
		}
		if len(dist) == 0 {
			return nil, ErrEmptyOutcome
		}
		return dist, nil
	default:
		return nil, ErrEmptyOutcome
	}
}

// BuildEnvironment assembles the configuration of a feature in one
// environment: individual targets first, then rules in order, then the
// fallthrough when the flag is on. An environment that is off is inactive and
// has no fallthrough rule.
func (b Builder) BuildEnvironment(src source.Feature, feature target.Feature, environmentKey string) (target.FeatureConfiguration, error) {
	cfg := target.FeatureConfiguration{
		Environment: environmentKey,
		Status:      target.StatusInactive,
		Targets:     []target.TargetingRule{},
	}
	env, ok := src.Environments[environmentKey]
	if !ok {
		return cfg, nil
	}

	fail := func(err error) (target.FeatureConfiguration, error) {
		return target.FeatureConfiguration{}, &TranslationError{Key: src.Key, Environment: environmentKey, Err: err}
	}

	if len(env.Prerequisites) > 0 {
		return fail(ErrPrerequisites)
	}

	for _, t := range env.Targets {
		if len(t.Values) == 0 {
			continue
		}
		rule, err := b.BuildFromTarget(t, feature)
		if err != nil {
			return fail(err)
		}
		cfg.Targets = append(cfg.Targets, rule)
	}

	for _, r := range env.Rules {
		rule, err := b.BuildFromRule(r, feature, environmentKey)
		if err != nil {
			return fail(err)
		}
		cfg.Targets = append(cfg.Targets, rule)
	}

	if env.On {
		cfg.Status = target.StatusActive
		rule, err := b.BuildFromFallthrough(env.Fallthrough, feature)
		if err != nil {
			return fail(err)
		}
		cfg.Targets = append(cfg.Targets, rule)
	}
	return cfg, nil
}

// BuildFeature builds the configuration of every environment in order. The
// first failing environment makes the whole feature unsupported and no
// configuration is returned.
func (b Builder) BuildFeature(src source.Feature, feature target.Feature, environmentKeys []string) ([]target.FeatureConfiguration, error) {
	configs := make([]target.FeatureConfiguration, 0, len(environmentKeys))
	for _, envKey := range environmentKeys {
		cfg, err := b.BuildEnvironment(src, feature, envKey)
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

// IsDependencyError reports whether err came from a failed segment.
func IsDependencyError(err error) bool {
	var dep *DependencyError
	return errors.As(err, &dep)
}

func isSegmentMatch(c source.Clause) bool {
	return ParseAttribute(c.Attribute) == AttributeSegmentMatch || c.Op == SegmentMatch
}
