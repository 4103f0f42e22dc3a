// Package main provides the CLI entry point for flagport.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/JoobyPM/flagport/internal/auth"
	"github.com/JoobyPM/flagport/internal/config"
	"github.com/JoobyPM/flagport/internal/logging"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// Output format constants.
const (
	outputJSON = "json"
	outputYAML = "yaml"
	outputText = "text"
)

var (
	// Global flags
	flagConfigPath string
	flagLogLevel   string
	flagLogFormat  string

	// Config show flags
	configShowOutput string

	// Config init flags
	configInitGlobal bool
	configInitForce  bool

	// Login flags
	loginSourceToken  string
	loginTargetSecret string

	// Global config (loaded once, used by all commands)
	cfg *config.Config
	log *slog.Logger
)

// Exit codes:
//   - exitValidation: invalid flags or configuration
//   - exitFatal: the run stopped on an API or listing failure
//   - exitPartial: the run finished with per-entity errors (--strict only)
const (
	exitValidation = 1
	exitFatal      = 2
	exitPartial    = 3
)

// ExitError is an error that carries a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

// exitErr creates an ExitError with the given code and message.
func exitErr(code int, msg string) error {
	return &ExitError{Code: code, Message: msg}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exitError *ExitError
		if errors.As(err, &exitError) {
			if exitError.Message != "" {
				fmt.Fprintln(os.Stderr, "Error:", exitError.Message)
			}
			os.Exit(exitError.Code)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitValidation)
	}
}

var rootCmd = &cobra.Command{
	Use:   "flagport",
	Short: "Import feature flags from a Source project into a Target project",
	Long: `flagport copies a Source project's environments, segments, feature flags and
their per-environment targeting into a Target project.

Segments become audiences, flag rules become targeting rules and the custom
attributes used by either are declared as custom properties. Anything that
cannot be expressed in the Target is reported and left out; the rest of the
project is still imported.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// initConfig loads the configuration with proper precedence.
func initConfig() error {
	if cfg != nil {
		return nil
	}

	loaded, err := config.Load(config.LoadOptions{
		ExplicitPath: flagConfigPath,
	})
	if err != nil {
		return exitErr(exitValidation, fmt.Sprintf("load config: %v", err))
	}

	loaded.ApplyCLIOverrides(config.CLIOverrides{
		SourceProject:   flagSourceProject,
		TargetProject:   flagTargetProject,
		IncludeFeatures: flagInclude,
		ExcludeFeatures: flagExclude,
		Overwrite:       overwriteFlag(),
		LogLevel:        flagLogLevel,
		LogFormat:       flagLogFormat,
	})

	// Keyring is the last resort for secrets
	auth.ResolveSecrets(loaded)

	cfg = loaded
	log = logging.New(cfg.Log.Level, cfg.Log.Format)
	return nil
}

// isInteractive reports whether both stdin and stdout are terminals.
func isInteractive() bool {
	return isTerminal(os.Stdin.Fd()) && isTerminal(os.Stdout.Fd())
}

func isTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the flagport version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "flagport %s (config schema %s)\n", version, config.Version)
	},
}

// configCmd is the parent command for configuration operations.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage flagport configuration",
	Long: `The config command group manages flagport configuration.

Configuration is loaded from multiple sources with the following precedence (highest to lowest):
1. CLI flags (--source-project, --overwrite, --log-level, etc.)
2. Environment variables (FLAGPORT_SOURCE_API_TOKEN, FLAGPORT_INCLUDE_FEATURES, etc.)
3. Project config (.flagport.yaml in repo root)
4. Global config (~/.config/flagport/config.yaml)
5. Built-in defaults

Secrets missing from flags and environment are read from the OS keyring
(see "flagport auth login").`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show resolved configuration",
	Long: `Display the fully resolved configuration after applying all sources.
Secrets are redacted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := initConfig(); err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		switch configShowOutput {
		case outputJSON:
			display := jsonConfigDisplay{
				Version: cfg.Version,
				Source: jsonSourceConfig{
					BaseURL:    cfg.Source.BaseURL,
					ProjectKey: cfg.Source.ProjectKey,
					APIToken:   redacted(cfg.Source.APIToken),
				},
				Target: jsonTargetConfig{
					BaseURL:      cfg.Target.BaseURL,
					AuthURL:      cfg.Target.AuthURL,
					ProjectKey:   cfg.TargetProjectKey(),
					ClientID:     cfg.Target.ClientID,
					ClientSecret: redacted(cfg.Target.ClientSecret),
					APIToken:     redacted(cfg.Target.APIToken),
				},
				Import: cfg.Import,
				Log:    cfg.Log,
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(display)
		case outputYAML, "":
			fmt.Fprint(out, cfg.String())

			global, project := config.DiscoveredPaths()
			fmt.Fprintln(out, "\n# Configuration sources:")
			if global != "" {
				fmt.Fprintf(out, "# - Global: %s\n", global)
			} else {
				fmt.Fprintln(out, "# - Global: (not found)")
			}
			if project != "" {
				fmt.Fprintf(out, "# - Project: %s\n", project)
			} else {
				fmt.Fprintln(out, "# - Project: (not found)")
			}
			if flagConfigPath != "" {
				fmt.Fprintf(out, "# - Explicit: %s\n", flagConfigPath)
			}
			return nil
		default:
			return exitErr(exitValidation, fmt.Sprintf("unknown output format %q (use yaml or json)", configShowOutput))
		}
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the resolved configuration to a config file",
	Long: `Write the resolved configuration, without secrets, to .flagport.yaml in the
current directory, or to the global config file with --global.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := initConfig(); err != nil {
			return err
		}

		path := config.ProjectConfigFile
		if configInitGlobal {
			global, err := config.GlobalPath()
			if err != nil {
				return fmt.Errorf("get global config path: %w", err)
			}
			path = global
		}
		if _, err := os.Stat(path); err == nil && !configInitForce {
			return exitErr(exitValidation, fmt.Sprintf("%s already exists (use --force to overwrite)", path))
		}

		if err := cfg.SaveTo(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Configuration written to %s\n", path)
		return nil
	},
}

// jsonConfigDisplay is used for JSON output of config show command.
type jsonConfigDisplay struct {
	Version string              `json:"version"`
	Source  jsonSourceConfig    `json:"source"`
	Target  jsonTargetConfig    `json:"target"`
	Import  config.ImportConfig `json:"import"`
	Log     config.LogConfig    `json:"log"`
}

type jsonSourceConfig struct {
	BaseURL    string `json:"base_url"`
	ProjectKey string `json:"project_key"`
	APIToken   string `json:"api_token,omitempty"`
}

type jsonTargetConfig struct {
	BaseURL      string `json:"base_url"`
	AuthURL      string `json:"auth_url"`
	ProjectKey   string `json:"project_key"`
	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
	APIToken     string `json:"api_token,omitempty"`
}

func redacted(s string) string {
	if s == "" {
		return ""
	}
	return "[REDACTED]"
}

// authCmd is the parent command for credential operations.
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored credentials",
	Long: `The auth command group stores Source and Target secrets in the OS keyring.

The Source token is stored per Source base URL, the Target client secret per
client id. Environment variables always take priority over stored secrets.`,
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store Source and Target secrets in the OS keyring",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := initConfig(); err != nil {
			return err
		}
		if loginSourceToken == "" && loginTargetSecret == "" {
			return exitErr(exitValidation, "nothing to store: pass --source-token and/or --target-secret")
		}
		if loginTargetSecret != "" && cfg.Target.ClientID == "" {
			return exitErr(exitValidation, "target.client_id is required to store a target secret")
		}
		if !auth.IsKeyringAvailable() {
			reason := "keyring not available"
			if auth.IsHeadless() {
				reason += " in a headless session"
			}
			fmt.Fprintf(os.Stderr, "Warning: %s, secrets not stored\n", reason)
			fmt.Fprintln(os.Stderr, "Set FLAGPORT_SOURCE_API_TOKEN / FLAGPORT_TARGET_CLIENT_SECRET instead")
			return nil
		}
		out := cmd.OutOrStdout()

		if loginSourceToken != "" {
			if err := storeSecret(auth.SourceKey(cfg.Source.BaseURL), loginSourceToken); err != nil {
				return err
			}
			fmt.Fprintf(out, "✓ Source token stored for %s\n", cfg.Source.BaseURL)
		}
		if loginTargetSecret != "" {
			if err := storeSecret(auth.TargetKey(cfg.Target.ClientID), loginTargetSecret); err != nil {
				return err
			}
			fmt.Fprintf(out, "✓ Target client secret stored for %s\n", cfg.Target.ClientID)
		}
		return nil
	},
}

func storeSecret(key, secret string) error {
	if err := auth.StoreSecret(key, secret); err != nil {
		if errors.Is(err, auth.ErrKeyringNotAvail) {
			fmt.Fprintln(os.Stderr, "Warning: keyring not available, secret not stored")
			fmt.Fprintln(os.Stderr, "Set FLAGPORT_SOURCE_API_TOKEN / FLAGPORT_TARGET_CLIENT_SECRET instead")
			return nil
		}
		return fmt.Errorf("store secret: %w", err)
	}
	return nil
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove stored secrets from the OS keyring",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := initConfig(); err != nil {
			return err
		}

		keys := []string{auth.SourceKey(cfg.Source.BaseURL)}
		if cfg.Target.ClientID != "" {
			keys = append(keys, auth.TargetKey(cfg.Target.ClientID))
		}
		for _, key := range keys {
			if err := auth.DeleteSecret(key); err != nil {
				if errors.Is(err, auth.ErrKeyringNotAvail) {
					fmt.Fprintln(cmd.OutOrStdout(), "No stored credentials (keyring not available)")
					return nil
				}
				return fmt.Errorf("delete secret: %w", err)
			}
		}

		fmt.Fprintln(cmd.OutOrStdout(), "✓ Credentials removed")
		return nil
	},
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which secrets are available",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := initConfig(); err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		st, err := auth.CheckStatus(cfg)
		if err != nil && !errors.Is(err, auth.ErrKeyringNotAvail) {
			return err
		}
		if err != nil {
			fmt.Fprintln(out, "Keyring: not available")
		}

		fmt.Fprintf(out, "Source (%s):\n", cfg.Source.BaseURL)
		fmt.Fprintf(out, "  token:   %s\n", secretState(cfg.Source.APIToken != "", st.Source))

		fmt.Fprintf(out, "Target (%s):\n", cfg.Target.BaseURL)
		switch {
		case cfg.Target.APIToken != "":
			fmt.Fprintln(out, "  token:   set")
		case cfg.Target.ClientID == "":
			fmt.Fprintln(out, "  client:  not configured")
		default:
			fmt.Fprintf(out, "  client:  %s\n", cfg.Target.ClientID)
			fmt.Fprintf(out, "  secret:  %s\n", secretState(cfg.Target.ClientSecret != "", st.Target))
		}
		return nil
	},
}

func secretState(resolved, stored bool) string {
	switch {
	case stored:
		return "stored in keyring"
	case resolved:
		return "set (env or flag)"
	default:
		return "missing"
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "Custom config file path")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "Log format: text or json")

	// Config show flags
	configShowCmd.Flags().StringVarP(&configShowOutput, "output", "o", outputYAML, "Output format (yaml, json)")
	configInitCmd.Flags().BoolVar(&configInitGlobal, "global", false, "Write the global config file instead")
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite an existing file")

	// Login flags
	authLoginCmd.Flags().StringVar(&loginSourceToken, "source-token", "", "Source API access token")
	authLoginCmd.Flags().StringVar(&loginTargetSecret, "target-secret", "", "Target OAuth client secret")

	addImportFlags(importCmd)
	addImportFlags(planCmd)
	importCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "Plan every action without writing to the target")
	importCmd.Flags().BoolVarP(&flagYes, "yes", "y", false, "Do not ask for confirmation")

	// Build command tree
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)

	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(versionCmd)
}
