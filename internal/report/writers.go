package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"redcell/internal/types"
)

// Formats supported by WriteAll.
const (
	FormatJSON = "json"
	FormatText = "text"
	FormatHTML = "html"
)

// Writer persists reports into a single output directory. Every write is
// atomic: content lands in a temp file in the same directory and is renamed
// into place, so a crash never leaves a partial report behind.
type Writer struct {
	dir    string
	logger *slog.Logger
}

func NewWriter(dir string, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{dir: dir, logger: logger}
}

// jsonDocument is the on-disk JSON layout. Field names are part of the
// tool's output contract and must stay stable.
type jsonDocument struct {
	Summary Summary              `json:"summary"`
	Results []types.GradedResult `json:"test_results"`
}

// WriteJSON writes the machine-readable report and returns its path.
func (w *Writer) WriteJSON(res *types.AssessmentResult) (string, error) {
	doc := jsonDocument{
		Summary: Summarize(res),
		Results: res.Results,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode json report: %w", err)
	}
	return w.commit(res, "json", append(data, '\n'))
}

// WriteText writes a plain-text summary suitable for terminals and logs.
func (w *Writer) WriteText(res *types.AssessmentResult) (string, error) {
	return w.commit(res, "txt", []byte(renderText(res)))
}

// WriteAll generates every requested format. A failing format never blocks
// the others; the returned error joins all individual failures and the
// in-memory result is untouched either way.
func (w *Writer) WriteAll(res *types.AssessmentResult, formats []string) ([]string, error) {
	var (
		paths []string
		errs  []error
	)
	for _, format := range formats {
		var (
			path string
			err  error
		)
		switch format {
		case FormatJSON:
			path, err = w.WriteJSON(res)
		case FormatText:
			path, err = w.WriteText(res)
		case FormatHTML:
			path, err = w.WriteHTML(res)
		default:
			err = fmt.Errorf("unknown report format %q", format)
		}
		if err != nil {
			w.logger.Error("report generation failed", "format", format, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", format, err))
			continue
		}
		w.logger.Info("report written", "format", format, "path", path)
		paths = append(paths, path)
	}
	return paths, errors.Join(errs...)
}

// commit performs the atomic temp-then-rename write.
func (w *Writer) commit(res *types.AssessmentResult, ext string, data []byte) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	final := filepath.Join(w.dir, fmt.Sprintf("redcell_%s.%s", res.RunID, ext))

	tmp, err := os.CreateTemp(w.dir, ".redcell-*")
	if err != nil {
		return "", fmt.Errorf("create temp report: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close report: %w", err)
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		return "", fmt.Errorf("publish report: %w", err)
	}
	return final, nil
}

func renderText(res *types.AssessmentResult) string {
	s := Summarize(res)
	var b strings.Builder

	rule := strings.Repeat("=", 64)
	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b, "REDCELL ASSESSMENT REPORT")
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "Run ID:      %s\n", s.RunID)
	fmt.Fprintf(&b, "Target:      %s\n", s.Target)
	fmt.Fprintf(&b, "Started:     %s\n", s.StartTime.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "Duration:    %.1fs\n", s.DurationSeconds)
	fmt.Fprintf(&b, "Plugins:     %s\n", strings.Join(s.PluginsUsed, ", "))
	if len(s.StrategiesUsed) > 0 {
		fmt.Fprintf(&b, "Strategies:  %s\n", strings.Join(s.StrategiesUsed, ", "))
	}
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "SUMMARY")
	fmt.Fprintf(&b, "  Total tests:          %d\n", s.TotalTests)
	fmt.Fprintf(&b, "  Passed:               %d\n", s.PassedTests)
	fmt.Fprintf(&b, "  Failed:               %d\n", s.FailedTests)
	fmt.Fprintf(&b, "  Errors:               %d\n", s.ErrorTests)
	fmt.Fprintf(&b, "  Vulnerabilities:      %d\n", s.VulnerabilitiesFound)
	fmt.Fprintf(&b, "  Attack success rate:  %.1f%%\n", s.AttackSuccessRate*100)
	fmt.Fprintln(&b)

	if rows := severityRows(s); len(rows) > 0 {
		fmt.Fprintln(&b, "BY SEVERITY")
		for _, row := range rows {
			fmt.Fprintf(&b, "  %-10s %d\n", row.Name, row.Count)
		}
		fmt.Fprintln(&b)
	}
	if rows := sortedRows(s.VulnerabilitiesByPlugin); len(rows) > 0 {
		fmt.Fprintln(&b, "BY PLUGIN")
		for _, row := range rows {
			fmt.Fprintf(&b, "  %-28s %d\n", row.Name, row.Count)
		}
		fmt.Fprintln(&b)
	}
	if rows := sortedRows(s.VulnerabilitiesByStrategy); len(rows) > 0 {
		fmt.Fprintln(&b, "BY STRATEGY")
		for _, row := range rows {
			fmt.Fprintf(&b, "  %-28s %d\n", row.Name, row.Count)
		}
		fmt.Fprintln(&b)
	}

	vulns := 0
	for _, r := range res.Results {
		if r.IsVulnerable {
			vulns++
		}
	}
	if vulns > 0 {
		fmt.Fprintln(&b, "FINDINGS")
		for _, r := range res.Results {
			if !r.IsVulnerable {
				continue
			}
			fmt.Fprintf(&b, "  [%s] %s", strings.ToUpper(string(r.Severity)), r.PluginID)
			if r.StrategyID != "" {
				fmt.Fprintf(&b, " via %s", r.StrategyID)
			}
			fmt.Fprintln(&b)
			fmt.Fprintf(&b, "    %s\n", r.Explanation)
			fmt.Fprintf(&b, "    output: %s\n", truncate(r.ActualOutput, 160))
		}
		fmt.Fprintln(&b)
	}
	fmt.Fprintln(&b, rule)
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
