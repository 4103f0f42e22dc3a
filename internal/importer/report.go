package importer

// Action is the decision taken for a feature.
type Action string

// Actions.
const (
	ActionCreate      Action = "create"
	ActionUpdate      Action = "update"
	ActionSkip        Action = "skip"
	ActionUnsupported Action = "unsupported"
)

// Counts tallies the outcome of one kind of entity.
type Counts struct {
	Created     int `json:"created" yaml:"created"`
	Updated     int `json:"updated" yaml:"updated"`
	Skipped     int `json:"skipped" yaml:"skipped"`
	Unsupported int `json:"unsupported,omitempty" yaml:"unsupported,omitempty"`
	Failed      int `json:"failed" yaml:"failed"`
}

// Errors holds error messages keyed by entity key.
type Errors struct {
	Features   map[string]string `json:"features,omitempty" yaml:"features,omitempty"`
	Audiences  map[string]string `json:"audiences,omitempty" yaml:"audiences,omitempty"`
	Properties map[string]string `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// Len returns the total number of recorded errors.
func (e Errors) Len() int {
	return len(e.Features) + len(e.Audiences) + len(e.Properties)
}

// FeatureOutcome is the final state of one feature.
type FeatureOutcome struct {
	Key    string `json:"key" yaml:"key"`
	Action Action `json:"action" yaml:"action"`
	Error  string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Report summarizes a run.
type Report struct {
	RunID         string `json:"run_id" yaml:"run_id"`
	SourceProject string `json:"source_project" yaml:"source_project"`
	TargetProject string `json:"target_project" yaml:"target_project"`
	DryRun        bool   `json:"dry_run" yaml:"dry_run"`

	ProjectCreated      bool     `json:"project_created" yaml:"project_created"`
	EnvironmentsCreated []string `json:"environments_created,omitempty" yaml:"environments_created,omitempty"`

	Features   Counts `json:"features" yaml:"features"`
	Audiences  Counts `json:"audiences" yaml:"audiences"`
	Properties Counts `json:"properties" yaml:"properties"`

	FeatureOutcomes []FeatureOutcome `json:"feature_outcomes" yaml:"feature_outcomes"`
	Errors          Errors           `json:"errors" yaml:"errors"`
}

func newReport(runID string, opts Options) *Report {
	return &Report{
		RunID:           runID,
		SourceProject:   opts.SourceProject,
		TargetProject:   opts.TargetProject,
		DryRun:          opts.DryRun,
		FeatureOutcomes: []FeatureOutcome{},
		Errors: Errors{
			Features:   map[string]string{},
			Audiences:  map[string]string{},
			Properties: map[string]string{},
		},
	}
}

func (r *Report) audienceFailed(key string, err error) {
	r.Audiences.Failed++
	r.Errors.Audiences[key] = err.Error()
}

func (r *Report) propertyFailed(key string, err error) {
	r.Properties.Failed++
	r.Errors.Properties[key] = err.Error()
}

// HasErrors reports whether any entity failed.
func (r *Report) HasErrors() bool {
	return r.Errors.Len() > 0
}

// Outcome returns the outcome of a feature.
func (r *Report) Outcome(key string) (FeatureOutcome, bool) {
	for _, o := range r.FeatureOutcomes {
		if o.Key == key {
			return o, true
		}
	}
	return FeatureOutcome{}, false
}
