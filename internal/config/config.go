// Package config provides configuration management for flagport.
// Configuration is loaded from YAML files with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/JoobyPM/flagport/internal/source"
	"github.com/JoobyPM/flagport/internal/stringutil"
	"github.com/JoobyPM/flagport/internal/target"
)

// Version is the current config schema version.
const Version = "1"

// Default file paths.
const (
	GlobalConfigDir   = ".config/flagport"
	GlobalConfigFile  = "config.yaml"
	ProjectConfigFile = ".flagport.yaml"
)

// Default values.
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "FLAGPORT"

// Config represents the complete flagport configuration.
type Config struct {
	Version string       `yaml:"version"`
	Source  SourceConfig `yaml:"source"`
	Target  TargetConfig `yaml:"target"`
	Import  ImportConfig `yaml:"import"`
	Log     LogConfig    `yaml:"log"`
}

// SourceConfig holds the Source API settings.
type SourceConfig struct {
	BaseURL    string `yaml:"base_url" validate:"required,url"`
	ProjectKey string `yaml:"project_key" validate:"required"`
	// APIToken is never stored in config files; env, flags or keyring only.
	APIToken string `yaml:"-" validate:"required"`
}

// TargetConfig holds the Target API settings.
type TargetConfig struct {
	BaseURL string `yaml:"base_url" validate:"required,url"`
	AuthURL string `yaml:"auth_url" validate:"required,url"`
	// ProjectKey defaults to the source project key.
	ProjectKey string `yaml:"project_key"`
	ClientID   string `yaml:"client_id"`
	// Secrets are never stored in config files.
	ClientSecret string `yaml:"-"`
	APIToken     string `yaml:"-"`
}

// ImportConfig controls what is imported and how.
type ImportConfig struct {
	IncludeFeatures []string `yaml:"include_features,omitempty"`
	ExcludeFeatures []string `yaml:"exclude_features,omitempty"`
	Overwrite       bool     `yaml:"overwrite_duplicates"`
	// OperationMap overrides the comparator chosen for a source operator.
	OperationMap map[string]string `yaml:"operation_map,omitempty" validate:"omitempty,dive,keys,required,endkeys,required"`
	// EnvironmentTypes sets the type of target environments created for
	// source environments, keyed by environment key.
	EnvironmentTypes map[string]string `yaml:"environment_types,omitempty" validate:"omitempty,dive,keys,required,endkeys,oneof=development staging production disaster_recovery"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// Errors.
var (
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrNoTargetAuth      = errors.New("target.api_token or target.client_id with a client secret is required")
	ErrUnknownComparator = errors.New("unknown comparator in import.operation_map")
)

// New creates a Config with default values.
func New() *Config {
	return &Config{
		Version: Version,
		Source: SourceConfig{
			BaseURL: source.DefaultBaseURL,
		},
		Target: TargetConfig{
			BaseURL: target.DefaultBaseURL,
			AuthURL: target.DefaultAuthURL,
		},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// LoadOptions configures config loading behavior.
type LoadOptions struct {
	// ExplicitPath overrides config discovery (--config flag).
	ExplicitPath string
	// SkipGlobal skips loading global config (~/.config/flagport/config.yaml).
	SkipGlobal bool
	// SkipProject skips loading project config (.flagport.yaml).
	SkipProject bool
	// SkipEnv skips environment variable overrides.
	SkipEnv bool
}

// Load loads configuration with the following precedence (highest to lowest):
// 1. Environment variables
// 2. Project config (.flagport.yaml, searched up to the repo root)
// 3. Global config (~/.config/flagport/config.yaml)
// 4. Built-in defaults
//
// If ExplicitPath is set, it replaces both global and project configs.
func Load(opts LoadOptions) (*Config, error) {
	cfg := New()

	if !opts.SkipGlobal && opts.ExplicitPath == "" {
		globalPath, err := GlobalPath()
		if err == nil {
			if loadErr := loadFile(cfg, globalPath); loadErr != nil && !os.IsNotExist(loadErr) {
				return nil, fmt.Errorf("load global config: %w", loadErr)
			}
		}
	}

	if !opts.SkipProject && opts.ExplicitPath == "" {
		projectPath, err := discoverProjectConfig()
		if err == nil {
			if loadErr := loadFile(cfg, projectPath); loadErr != nil && !os.IsNotExist(loadErr) {
				return nil, fmt.Errorf("load project config: %w", loadErr)
			}
		}
	}

	if opts.ExplicitPath != "" {
		if err := loadFile(cfg, opts.ExplicitPath); err != nil {
			return nil, fmt.Errorf("load config %s: %w", opts.ExplicitPath, err)
		}
	}

	if !opts.SkipEnv {
		if err := applyEnvOverrides(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// loadFile reads and unmarshals a YAML config file into cfg.
// Fields not present in the file retain their current values.
func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // Config path from trusted source
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return nil
}

// GlobalPath returns the path to the global config file.
func GlobalPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, GlobalConfigDir, GlobalConfigFile), nil
}

// discoverProjectConfig walks up from CWD looking for .flagport.yaml.
// Stops at git root or filesystem root.
func discoverProjectConfig() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	dir := cwd
	for {
		path := filepath.Join(dir, ProjectConfigFile)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}

		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", os.ErrNotExist
}

// envOverrides mirrors the FLAGPORT_* environment, e.g. SourceBaseURL is
// read from FLAGPORT_SOURCE_BASE_URL. Unset variables never override.
type envOverrides struct {
	SourceBaseURL       string            `split_words:"true"`
	SourceProjectKey    string            `split_words:"true"`
	SourceAPIToken      string            `split_words:"true"`
	TargetBaseURL       string            `split_words:"true"`
	TargetAuthURL       string            `split_words:"true"`
	TargetProjectKey    string            `split_words:"true"`
	TargetClientID      string            `split_words:"true"`
	TargetClientSecret  string            `split_words:"true"`
	TargetAPIToken      string            `split_words:"true"`
	IncludeFeatures     string            `split_words:"true"`
	ExcludeFeatures     string            `split_words:"true"`
	OverwriteDuplicates *bool             `split_words:"true"`
	OperationMap        map[string]string `split_words:"true"`
	LogLevel            string            `split_words:"true"`
	LogFormat           string            `split_words:"true"`
}

// applyEnvOverrides applies FLAGPORT_* environment variables to cfg.
func applyEnvOverrides(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	setString(&cfg.Source.BaseURL, env.SourceBaseURL)
	setString(&cfg.Source.ProjectKey, env.SourceProjectKey)
	setString(&cfg.Source.APIToken, env.SourceAPIToken)
	setString(&cfg.Target.BaseURL, env.TargetBaseURL)
	setString(&cfg.Target.AuthURL, env.TargetAuthURL)
	setString(&cfg.Target.ProjectKey, env.TargetProjectKey)
	setString(&cfg.Target.ClientID, env.TargetClientID)
	setString(&cfg.Target.ClientSecret, env.TargetClientSecret)
	setString(&cfg.Target.APIToken, env.TargetAPIToken)
	setString(&cfg.Log.Level, strings.ToLower(env.LogLevel))
	setString(&cfg.Log.Format, strings.ToLower(env.LogFormat))

	if list := stringutil.SplitList(env.IncludeFeatures); list != nil {
		cfg.Import.IncludeFeatures = list
	}
	if list := stringutil.SplitList(env.ExcludeFeatures); list != nil {
		cfg.Import.ExcludeFeatures = list
	}
	if env.OverwriteDuplicates != nil {
		cfg.Import.Overwrite = *env.OverwriteDuplicates
	}
	if len(env.OperationMap) > 0 {
		cfg.Import.OperationMap = env.OperationMap
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// CLIOverrides contains values from CLI flags that override config.
type CLIOverrides struct {
	SourceProject   string
	TargetProject   string
	IncludeFeatures []string
	ExcludeFeatures []string
	// Overwrite is applied only when set.
	Overwrite *bool
	LogLevel  string
	LogFormat string
}

// ApplyCLIOverrides applies CLI flag values to config.
// Only non-empty values are applied (highest priority).
func (cfg *Config) ApplyCLIOverrides(o CLIOverrides) {
	setString(&cfg.Source.ProjectKey, o.SourceProject)
	setString(&cfg.Target.ProjectKey, o.TargetProject)
	setString(&cfg.Log.Level, strings.ToLower(o.LogLevel))
	setString(&cfg.Log.Format, strings.ToLower(o.LogFormat))
	if len(o.IncludeFeatures) > 0 {
		cfg.Import.IncludeFeatures = o.IncludeFeatures
	}
	if len(o.ExcludeFeatures) > 0 {
		cfg.Import.ExcludeFeatures = o.ExcludeFeatures
	}
	if o.Overwrite != nil {
		cfg.Import.Overwrite = *o.Overwrite
	}
}

// TargetProjectKey returns the target project key, defaulting to the
// source project key.
func (cfg *Config) TargetProjectKey() string {
	if cfg.Target.ProjectKey != "" {
		return cfg.Target.ProjectKey
	}
	return cfg.Source.ProjectKey
}

// Validate checks the configuration for errors.
func (cfg *Config) Validate() error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	t := cfg.Target
	if t.APIToken == "" && (t.ClientID == "" || t.ClientSecret == "") {
		return ErrNoTargetAuth
	}

	for op, comparator := range cfg.Import.OperationMap {
		if !slices.Contains(target.Comparators, comparator) {
			return fmt.Errorf("%w: %s: %q", ErrUnknownComparator, op, comparator)
		}
	}

	return nil
}

// configDisplay is used for String() output with secret fields included.
type configDisplay struct {
	Version string        `yaml:"version"`
	Source  sourceDisplay `yaml:"source"`
	Target  targetDisplay `yaml:"target"`
	Import  ImportConfig  `yaml:"import"`
	Log     LogConfig     `yaml:"log"`
}

type sourceDisplay struct {
	BaseURL    string `yaml:"base_url"`
	ProjectKey string `yaml:"project_key"`
	APIToken   string `yaml:"api_token,omitempty"`
}

type targetDisplay struct {
	BaseURL      string `yaml:"base_url"`
	AuthURL      string `yaml:"auth_url"`
	ProjectKey   string `yaml:"project_key"`
	ClientID     string `yaml:"client_id,omitempty"`
	ClientSecret string `yaml:"client_secret,omitempty"`
	APIToken     string `yaml:"api_token,omitempty"`
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "[REDACTED]"
}

// String returns a human-readable representation of the config.
// Secrets are redacted.
func (cfg *Config) String() string {
	display := configDisplay{
		Version: cfg.Version,
		Source: sourceDisplay{
			BaseURL:    cfg.Source.BaseURL,
			ProjectKey: cfg.Source.ProjectKey,
			APIToken:   redact(cfg.Source.APIToken),
		},
		Target: targetDisplay{
			BaseURL:      cfg.Target.BaseURL,
			AuthURL:      cfg.Target.AuthURL,
			ProjectKey:   cfg.TargetProjectKey(),
			ClientID:     cfg.Target.ClientID,
			ClientSecret: redact(cfg.Target.ClientSecret),
			APIToken:     redact(cfg.Target.APIToken),
		},
		Import: cfg.Import,
		Log:    cfg.Log,
	}

	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Sprintf("config error: %v", err)
	}
	return string(data)
}

// SaveTo writes the config to the specified path.
// Creates parent directories if needed. Secrets are NOT saved.
func (cfg *Config) SaveTo(path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// DiscoveredPaths returns which config files were found.
// Returns empty strings for paths that don't exist or can't be determined.
func DiscoveredPaths() (global, project string) {
	globalPath, err := GlobalPath()
	if err == nil {
		if _, statErr := os.Stat(globalPath); statErr == nil {
			global = globalPath
		}
	}
	projectPath, err := discoverProjectConfig()
	if err == nil {
		project = projectPath
	}
	return global, project
}
