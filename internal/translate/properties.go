package translate

import (
	"github.com/JoobyPM/flagport/internal/stringutil"
	"github.com/JoobyPM/flagport/internal/target"
)

// PropertyCandidate is a custom data key referenced by a filter.
type PropertyCandidate struct {
	DataKey     string
	DataKeyType string
}

// Property returns the custom property declaring the candidate.
func (c PropertyCandidate) Property() target.CustomProperty {
	key := stringutil.Slugify(c.DataKey, maxKeyLen)
	if key == "" {
		key = "property"
	}
	return target.CustomProperty{
		Key:         key,
		PropertyKey: c.DataKey,
		Name:        c.DataKey,
		Type:        c.DataKeyType,
	}
}

// ExtractCustomProperties walks the audiences of every configuration and the
// given reusable audiences and returns the custom data keys they reference,
// deduplicated by key in discovery order.
func ExtractCustomProperties(configs []target.FeatureConfiguration, audiences []target.Audience) []PropertyCandidate {
	var out []PropertyCandidate
	seen := make(map[string]bool)
	visit := func(f target.Filter) {
		if f.SubType != target.SubTypeCustomData || f.DataKey == "" || seen[f.DataKey] {
			return
		}
		seen[f.DataKey] = true
		out = append(out, PropertyCandidate{DataKey: f.DataKey, DataKeyType: f.DataKeyType})
	}

	for _, cfg := range configs {
		for _, rule := range cfg.Targets {
			Walk(rule.Audience.Filters, visit)
		}
	}
	for _, aud := range audiences {
		Walk(aud.Filters, visit)
	}
	return out
}

// Walk calls fn for every leaf of the tree, depth first.
func Walk(f target.Filter, fn func(target.Filter)) {
	if !f.IsOperator() {
		fn(f)
		return
	}
	for _, child := range f.Filters {
		Walk(child, fn)
	}
}
