// Package report renders import reports for people and machines.
package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/JoobyPM/flagport/internal/importer"
	"github.com/JoobyPM/flagport/internal/stringutil"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ErrUnknownFormat is returned for an unsupported output format.
var ErrUnknownFormat = errors.New("unknown report format")

const maxErrorLen = 120

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#87D787"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD787"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
)

// Render writes rep to w in format.
func Render(w io.Writer, rep *importer.Report, format string) error {
	switch strings.ToLower(format) {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(rep)
	case FormatText, "":
		_, err := io.WriteString(w, Text(rep))
		return err
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// FormatForPath picks json or yaml from the file extension.
func FormatForPath(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %s (use .json, .yaml or .yml)", ErrUnknownFormat, path)
	}
}

// WriteFile writes rep to path as json or yaml, chosen by extension.
func WriteFile(path string, rep *importer.Report) error {
	format, err := FormatForPath(path)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := Render(&buf, rep, format); err != nil {
		return err
	}

	// Atomic write: write to temp file, then rename
	tmpFile, err := os.CreateTemp(filepath.Dir(path), ".flagport-report-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(buf.Bytes()); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath) //nolint:errcheck // Best effort cleanup
		return fmt.Errorf("write report: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath) //nolint:errcheck // Best effort cleanup
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath) //nolint:errcheck // Best effort cleanup
		return fmt.Errorf("rename report: %w", err)
	}
	return nil
}

// Text renders rep as a human-readable summary.
func Text(rep *importer.Report) string {
	var b strings.Builder

	title := fmt.Sprintf("Import %s → %s", rep.SourceProject, rep.TargetProject)
	if rep.DryRun {
		title += " (dry run)"
	}
	b.WriteString(headerStyle.Render(title))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("run " + rep.RunID))
	b.WriteString("\n\n")

	if rep.ProjectCreated {
		b.WriteString(okStyle.Render("+ project " + rep.TargetProject))
		b.WriteString("\n")
	}
	for _, env := range rep.EnvironmentsCreated {
		b.WriteString(okStyle.Render("+ environment " + env))
		b.WriteString("\n")
	}
	if rep.ProjectCreated || len(rep.EnvironmentsCreated) > 0 {
		b.WriteString("\n")
	}

	for _, o := range rep.FeatureOutcomes {
		b.WriteString(outcomeLine(o))
		b.WriteString("\n")
	}
	if len(rep.FeatureOutcomes) > 0 {
		b.WriteString("\n")
	}

	writeCounts(&b, "Features", rep.Features, true)
	writeCounts(&b, "Audiences", rep.Audiences, false)
	writeCounts(&b, "Properties", rep.Properties, false)

	if rep.HasErrors() {
		b.WriteString("\n")
		b.WriteString(errStyle.Render(fmt.Sprintf("%d error(s):", rep.Errors.Len())))
		b.WriteString("\n")
		writeErrors(&b, "feature", rep.Errors.Features)
		writeErrors(&b, "audience", rep.Errors.Audiences)
		writeErrors(&b, "property", rep.Errors.Properties)
	}
	return b.String()
}

func outcomeLine(o importer.FeatureOutcome) string {
	switch {
	case o.Error != "" && o.Action == importer.ActionUnsupported:
		return warnStyle.Render("✗ " + o.Key + "  unsupported")
	case o.Error != "":
		return errStyle.Render("✗ " + o.Key + "  failed")
	case o.Action == importer.ActionCreate:
		return okStyle.Render("+ " + o.Key)
	case o.Action == importer.ActionUpdate:
		return okStyle.Render("↑ " + o.Key)
	default:
		return dimStyle.Render("  " + o.Key + "  skipped")
	}
}

func writeCounts(b *strings.Builder, label string, c importer.Counts, unsupported bool) {
	line := fmt.Sprintf("%-12s created %d, updated %d, skipped %d", label+":", c.Created, c.Updated, c.Skipped)
	if unsupported {
		line += fmt.Sprintf(", unsupported %d", c.Unsupported)
	}
	line += fmt.Sprintf(", failed %d", c.Failed)
	b.WriteString(line)
	b.WriteString("\n")
}

func writeErrors(b *strings.Builder, kind string, errs map[string]string) {
	for _, key := range sortedKeys(errs) {
		fmt.Fprintf(b, "  %s %s: %s\n", kind, key, stringutil.Truncate(errs[key], maxErrorLen))
	}
}

func sortedKeys(m map[string]string) []string {
	return slices.Sorted(maps.Keys(m))
}
