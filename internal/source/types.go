// Package source provides the types and HTTP client for the Source flag service.
package source

// Feature kinds.
const (
	KindBoolean      = "boolean"
	KindMultivariate = "multivariate"
)

// Project is a Source project. Environments is only set when requested with
// expand=environments.
type Project struct {
	Key          string           `json:"key"`
	Name         string           `json:"name"`
	Environments *EnvironmentList `json:"environments,omitempty"`
}

// EnvironmentList wraps a list of environments.
type EnvironmentList struct {
	Items []Environment `json:"items"`
}

// Environment is a Source environment.
type Environment struct {
	Key   string `json:"key"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// FeatureList is the response of the flag listing endpoint.
type FeatureList struct {
	Items []Feature `json:"items"`
}

// Feature is a Source feature flag with its per-environment configuration.
type Feature struct {
	Key          string                        `json:"key"`
	Name         string                        `json:"name"`
	Description  string                        `json:"description,omitempty"`
	Kind         string                        `json:"kind"`
	Tags         []string                      `json:"tags,omitempty"`
	Temporary    bool                          `json:"temporary,omitempty"`
	Variations   []Variation                   `json:"variations"`
	Environments map[string]FeatureEnvironment `json:"environments,omitempty"`
}

// Variation is one possible value of a feature. Targets, rules and rollouts
// reference variations by index.
type Variation struct {
	ID          string `json:"_id,omitempty"`
	Value       any    `json:"value"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

// FeatureEnvironment is the configuration of a feature in one environment.
type FeatureEnvironment struct {
	On            bool           `json:"on"`
	Targets       []Target       `json:"targets,omitempty"`
	Rules         []Rule         `json:"rules,omitempty"`
	Fallthrough   Fallthrough    `json:"fallthrough"`
	OffVariation  *int           `json:"offVariation,omitempty"`
	Prerequisites []Prerequisite `json:"prerequisites,omitempty"`
}

// Target serves a variation to an explicit list of user keys.
type Target struct {
	Values    []string `json:"values"`
	Variation int      `json:"variation"`
}

// Rule is a list of ANDed clauses with an outcome. Feature rules carry
// Variation or Rollout; segment rules carry neither and may carry Weight.
type Rule struct {
	ID          string   `json:"_id,omitempty"`
	Description string   `json:"description,omitempty"`
	Clauses     []Clause `json:"clauses"`
	Variation   *int     `json:"variation,omitempty"`
	Rollout     *Rollout `json:"rollout,omitempty"`
	Weight      *int     `json:"weight,omitempty"`
}

// Rollout splits traffic across variations. Weights are parts per 100000.
type Rollout struct {
	Variations []WeightedVariation `json:"variations"`
	BucketBy   string              `json:"bucketBy,omitempty"`
}

// WeightedVariation is one slice of a rollout.
type WeightedVariation struct {
	Variation int `json:"variation"`
	Weight    int `json:"weight"`
}

// Fallthrough is the outcome when no target or rule matches.
type Fallthrough struct {
	Variation *int     `json:"variation,omitempty"`
	Rollout   *Rollout `json:"rollout,omitempty"`
}

// Clause is a single attribute/operator/values condition.
type Clause struct {
	Attribute string `json:"attribute"`
	Op        string `json:"op"`
	Values    []any  `json:"values"`
	Negate    bool   `json:"negate"`
}

// Prerequisite makes a feature depend on another feature's variation.
type Prerequisite struct {
	Key       string `json:"key"`
	Variation int    `json:"variation"`
}

// SegmentList is the response of the segment listing endpoint.
type SegmentList struct {
	Items []Segment `json:"items"`
}

// Segment is a reusable user-membership definition.
type Segment struct {
	Key         string   `json:"key"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Included    []string `json:"included,omitempty"`
	Excluded    []string `json:"excluded,omitempty"`
	Rules       []Rule   `json:"rules,omitempty"`
}
