package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JoobyPM/flagport/internal/importer"
	"github.com/JoobyPM/flagport/internal/prompt"
	"github.com/JoobyPM/flagport/internal/report"
	"github.com/JoobyPM/flagport/internal/source"
	"github.com/JoobyPM/flagport/internal/target"
)

var (
	// Import and plan flags
	flagSourceProject string
	flagTargetProject string
	flagInclude       []string
	flagExclude       []string
	flagOverwrite     bool
	flagOutput        string
	flagReportFile    string
	flagStrict        bool

	// Import only
	flagDryRun bool
	flagYes    bool
)

func addImportFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagSourceProject, "source-project", "", "Source project key")
	cmd.Flags().StringVar(&flagTargetProject, "target-project", "", "Target project key (defaults to the source key)")
	cmd.Flags().StringSliceVar(&flagInclude, "include", nil, "Only import these feature keys (comma-separated)")
	cmd.Flags().StringSliceVar(&flagExclude, "exclude", nil, "Never import these feature keys (comma-separated)")
	cmd.Flags().BoolVar(&flagOverwrite, "overwrite", false, "Update features, audiences and properties that already exist")
	cmd.Flags().StringVarP(&flagOutput, "output", "o", outputText, "Report format (text, json, yaml)")
	cmd.Flags().StringVar(&flagReportFile, "report-file", "", "Also write the report to this .json or .yaml file")
	cmd.Flags().BoolVar(&flagStrict, "strict", false, "Exit with code 3 when any entity failed")
}

// overwriteFlag returns the --overwrite value, or nil so the config decides.
func overwriteFlag() *bool {
	if !flagOverwrite {
		return nil
	}
	v := true
	return &v
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a Source project into the Target",
	Long: `Import the Source project's environments, segments, feature flags and
targeting into the Target project.

Existing Target features, audiences and custom properties are skipped unless
--overwrite is set. Features using constructs the Target cannot express
(prerequisites, percentage rollouts inside rules, unsupported operators, ...)
are reported as unsupported and not written.

In a terminal, flagport asks before writing and asks for the type of every
environment it has to create. Use --yes or configure import.environment_types
to run unattended.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runImport(cmd, flagDryRun)
	},
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show what an import would do without writing anything",
	Long: `Run every listing call and every translation of an import and report the
actions it would take. Nothing is written to the Target.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runImport(cmd, true)
	},
}

func runImport(cmd *cobra.Command, dryRun bool) error {
	if err := initConfig(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return exitErr(exitValidation, fmt.Sprintf("invalid config: %v", err))
	}

	format := strings.ToLower(flagOutput)
	switch format {
	case outputText, outputJSON, outputYAML:
	default:
		return exitErr(exitValidation, fmt.Sprintf("unknown output format %q (use text, json or yaml)", flagOutput))
	}
	if flagReportFile != "" {
		if _, err := report.FormatForPath(flagReportFile); err != nil {
			return exitErr(exitValidation, err.Error())
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src := source.New(cfg.Source.BaseURL, cfg.Source.APIToken, nil)
	dst, err := target.New(ctx, target.Options{
		BaseURL:      cfg.Target.BaseURL,
		AuthURL:      cfg.Target.AuthURL,
		ClientID:     cfg.Target.ClientID,
		ClientSecret: cfg.Target.ClientSecret,
		APIToken:     cfg.Target.APIToken,
	})
	if err != nil {
		return exitErr(exitValidation, err.Error())
	}

	opts := importer.Options{
		SourceProject:    cfg.Source.ProjectKey,
		TargetProject:    cfg.TargetProjectKey(),
		IncludeFeatures:  cfg.Import.IncludeFeatures,
		ExcludeFeatures:  cfg.Import.ExcludeFeatures,
		Overwrite:        cfg.Import.Overwrite,
		OperationMap:     cfg.Import.OperationMap,
		EnvironmentTypes: cfg.Import.EnvironmentTypes,
		DryRun:           dryRun,
		Logger:           log,
	}

	interactive := isInteractive()
	if interactive {
		opts.Typer = &prompt.Picker{In: os.Stdin, Out: os.Stderr, Guess: importer.GuessEnvironmentType}
	}

	if !dryRun && interactive {
		c := &prompt.Confirmer{In: os.Stdin, Out: os.Stderr, AssumeYes: flagYes}
		ok, err := c.Confirm(ctx,
			fmt.Sprintf("Import %s into %s?", opts.SourceProject, opts.TargetProject),
			confirmDescription(opts),
		)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(os.Stderr, "Import cancelled")
			return nil
		}
	}

	im := importer.New(src, dst, opts)
	var rep *importer.Report
	if dryRun {
		rep, err = im.Plan(ctx)
	} else {
		rep, err = im.Run(ctx)
	}
	if err != nil {
		return exitErr(exitFatal, err.Error())
	}

	if err := report.Render(cmd.OutOrStdout(), rep, format); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	if flagReportFile != "" {
		if err := report.WriteFile(flagReportFile, rep); err != nil {
			return err
		}
	}

	if flagStrict && rep.HasErrors() {
		return exitErr(exitPartial, fmt.Sprintf("%d entities failed to import", rep.Errors.Len()))
	}
	return nil
}

func confirmDescription(opts importer.Options) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Target: %s\n", cfg.Target.BaseURL)
	if opts.Overwrite {
		b.WriteString("Existing entities will be overwritten.")
	} else {
		b.WriteString("Existing entities will be skipped.")
	}
	if len(opts.IncludeFeatures) > 0 {
		fmt.Fprintf(&b, "\nOnly: %s", strings.Join(opts.IncludeFeatures, ", "))
	}
	return b.String()
}
