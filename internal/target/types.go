// Package target provides the types and HTTP client for the Target flag service.
package target

// Filter types and user sub-types.
const (
	FilterTypeAll           = "all"
	FilterTypeUser          = "user"
	FilterTypeAudienceMatch = "audienceMatch"

	SubTypeUserID     = "user_id"
	SubTypeEmail      = "email"
	SubTypeCountry    = "country"
	SubTypeIP         = "ip"
	SubTypeCustomData = "customData"
)

// Filter comparators.
const (
	ComparatorEqual          = "="
	ComparatorNotEqual       = "!="
	ComparatorGreater        = ">"
	ComparatorGreaterOrEqual = ">="
	ComparatorLess           = "<"
	ComparatorLessOrEqual    = "<="
	ComparatorExist          = "exist"
	ComparatorNotExist       = "!exist"
	ComparatorContain        = "contain"
	ComparatorNotContain     = "!contain"
	ComparatorStartWith      = "startWith"
	ComparatorNotStartWith   = "!startWith"
	ComparatorEndWith        = "endWith"
	ComparatorNotEndWith     = "!endWith"
)

// Comparators lists every comparator accepted in a filter leaf.
var Comparators = []string{
	ComparatorEqual, ComparatorNotEqual,
	ComparatorGreater, ComparatorGreaterOrEqual,
	ComparatorLess, ComparatorLessOrEqual,
	ComparatorExist, ComparatorNotExist,
	ComparatorContain, ComparatorNotContain,
	ComparatorStartWith, ComparatorNotStartWith,
	ComparatorEndWith, ComparatorNotEndWith,
}

// Custom data key types.
const (
	DataKeyTypeString  = "String"
	DataKeyTypeNumber  = "Number"
	DataKeyTypeBoolean = "Boolean"
)

// Variable types.
const (
	VariableTypeBoolean = "Boolean"
	VariableTypeNumber  = "Number"
	VariableTypeString  = "String"
	VariableTypeJSON    = "JSON"
)

// Feature configuration statuses.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// FeatureTypeRelease is the type given to imported features.
const FeatureTypeRelease = "release"

// Operator combines child filters.
type Operator string

// Operators.
const (
	OperatorAnd Operator = "and"
	OperatorOr  Operator = "or"
)

// Filter is a node of a targeting filter tree. A node with a non-empty
// Operator is a branch combining Filters; any other node is a leaf.
type Filter struct {
	Operator Operator `json:"operator,omitempty" yaml:"operator,omitempty"`
	Filters  []Filter `json:"filters,omitempty" yaml:"filters,omitempty"`

	Type        string   `json:"type,omitempty" yaml:"type,omitempty"`
	SubType     string   `json:"subType,omitempty" yaml:"subType,omitempty"`
	Comparator  string   `json:"comparator,omitempty" yaml:"comparator,omitempty"`
	Values      []any    `json:"values,omitempty" yaml:"values,omitempty"`
	DataKey     string   `json:"dataKey,omitempty" yaml:"dataKey,omitempty"`
	DataKeyType string   `json:"dataKeyType,omitempty" yaml:"dataKeyType,omitempty"`
	Audiences   []string `json:"_audiences,omitempty" yaml:"_audiences,omitempty"`
}

// IsOperator reports whether f is a branch node.
func (f Filter) IsOperator() bool {
	return f.Operator != ""
}

// And combines filters with the and operator.
func And(filters ...Filter) Filter {
	return Filter{Operator: OperatorAnd, Filters: nonNil(filters)}
}

// Or combines filters with the or operator.
func Or(filters ...Filter) Filter {
	return Filter{Operator: OperatorOr, Filters: nonNil(filters)}
}

func nonNil(filters []Filter) []Filter {
	if filters == nil {
		return []Filter{}
	}
	return filters
}

// Project is a Target project.
type Project struct {
	ID          string `json:"_id,omitempty"`
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Environment types.
const (
	EnvironmentDevelopment      = "development"
	EnvironmentStaging          = "staging"
	EnvironmentProduction       = "production"
	EnvironmentDisasterRecovery = "disaster_recovery"
)

// EnvironmentTypes lists the valid environment types in display order.
var EnvironmentTypes = []string{
	EnvironmentDevelopment,
	EnvironmentStaging,
	EnvironmentProduction,
	EnvironmentDisasterRecovery,
}

// Environment is a Target environment.
type Environment struct {
	ID          string `json:"_id,omitempty"`
	Key         string `json:"key"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
}

// Feature is a Target feature.
type Feature struct {
	ID          string      `json:"_id,omitempty"`
	Key         string      `json:"key"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Type        string      `json:"type,omitempty"`
	Tags        []string    `json:"tags,omitempty"`
	Variables   []Variable  `json:"variables,omitempty"`
	Variations  []Variation `json:"variations,omitempty"`
}

// VariationKey returns the key of the variation at index i, or false.
func (f Feature) VariationKey(i int) (string, bool) {
	if i < 0 || i >= len(f.Variations) {
		return "", false
	}
	return f.Variations[i].Key, true
}

// Variable is a typed value carried by every variation of a feature.
type Variable struct {
	ID          string `json:"_id,omitempty"`
	Key         string `json:"key"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type"`
}

// Variation is one outcome of a feature.
type Variation struct {
	ID        string         `json:"_id,omitempty"`
	Key       string         `json:"key"`
	Name      string         `json:"name"`
	Variables map[string]any `json:"variables"`
}

// Audience is the audience of a targeting rule, or a reusable audience.
type Audience struct {
	ID          string   `json:"_id,omitempty" yaml:"id,omitempty"`
	Key         string   `json:"key,omitempty" yaml:"key,omitempty"`
	Name        string   `json:"name,omitempty" yaml:"name,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Filters     Filter   `json:"filters" yaml:"filters"`
}

// Distribution assigns a share of an audience to a variation.
type Distribution struct {
	Variation  string  `json:"_variation" yaml:"variation"`
	Percentage float64 `json:"percentage" yaml:"percentage"`
}

// TargetingRule is an audience with its distribution.
type TargetingRule struct {
	Name         string         `json:"name,omitempty" yaml:"name,omitempty"`
	Audience     Audience       `json:"audience" yaml:"audience"`
	Distribution []Distribution `json:"distribution" yaml:"distribution"`
}

// FeatureConfiguration is a feature's targeting in one environment.
type FeatureConfiguration struct {
	Environment string          `json:"-" yaml:"environment"`
	Status      string          `json:"status" yaml:"status"`
	Targets     []TargetingRule `json:"targets" yaml:"targets"`
}

// CustomProperty declares a custom data key usable in filters.
type CustomProperty struct {
	ID          string `json:"_id,omitempty"`
	Key         string `json:"key"`
	PropertyKey string `json:"propertyKey"`
	Name        string `json:"name,omitempty"`
	Type        string `json:"type"`
}
