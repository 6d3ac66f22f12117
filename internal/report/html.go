package report

import (
	"bytes"
	"fmt"
	"html/template"

	"redcell/internal/types"
)

// WriteHTML writes a self-contained HTML report. All styling is inline;
// viewing the file needs no network access.
func (w *Writer) WriteHTML(res *types.AssessmentResult) (string, error) {
	var buf bytes.Buffer
	if err := htmlTemplate.Execute(&buf, newHTMLView(res)); err != nil {
		return "", fmt.Errorf("render html report: %w", err)
	}
	return w.commit(res, "html", buf.Bytes())
}

type htmlView struct {
	Summary  Summary
	RatePct  string
	Severity []htmlBar
	Plugins  []htmlBar
	Findings []htmlFinding
}

type htmlBar struct {
	Name  string
	Count int
	// WidthPct is precomputed so the template stays logic-free.
	WidthPct int
	Class    string
}

type htmlFinding struct {
	Plugin      string
	Strategy    string
	Severity    string
	Class       string
	Explanation string
	Output      string
}

func newHTMLView(res *types.AssessmentResult) htmlView {
	s := Summarize(res)
	view := htmlView{
		Summary: s,
		RatePct: fmt.Sprintf("%.1f%%", s.AttackSuccessRate*100),
	}

	view.Severity = bars(severityRows(s), severityClass)
	view.Plugins = bars(sortedRows(s.VulnerabilitiesByPlugin), func(string) string { return "plugin" })

	for _, r := range res.Results {
		if !r.IsVulnerable {
			continue
		}
		view.Findings = append(view.Findings, htmlFinding{
			Plugin:      r.PluginID,
			Strategy:    r.StrategyID,
			Severity:    string(r.Severity),
			Class:       severityClass(string(r.Severity)),
			Explanation: r.Explanation,
			Output:      truncate(r.ActualOutput, 400),
		})
	}
	return view
}

func bars(rows []breakdownRow, class func(string) string) []htmlBar {
	max := 0
	for _, row := range rows {
		if row.Count > max {
			max = row.Count
		}
	}
	out := make([]htmlBar, 0, len(rows))
	for _, row := range rows {
		width := 0
		if max > 0 {
			width = row.Count * 100 / max
		}
		if width < 4 {
			width = 4
		}
		out = append(out, htmlBar{
			Name:     row.Name,
			Count:    row.Count,
			WidthPct: width,
			Class:    class(row.Name),
		})
	}
	return out
}

func severityClass(name string) string {
	switch name {
	case "critical", "high", "medium", "low":
		return name
	}
	return "none"
}

var htmlTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>redcell report {{.Summary.RunID}}</title>
<style>
  body { font-family: -apple-system, "Segoe UI", sans-serif; margin: 2rem auto; max-width: 960px; color: #1d2129; }
  h1 { border-bottom: 2px solid #1d2129; padding-bottom: .3rem; }
  .meta { color: #57606a; margin-bottom: 1.5rem; }
  .cards { display: flex; gap: 1rem; flex-wrap: wrap; margin-bottom: 2rem; }
  .card { border: 1px solid #d0d7de; border-radius: 6px; padding: .8rem 1.2rem; min-width: 9rem; }
  .card .num { font-size: 1.8rem; font-weight: 700; }
  .card .label { color: #57606a; font-size: .85rem; }
  .bar-row { display: flex; align-items: center; gap: .6rem; margin: .3rem 0; }
  .bar-label { width: 14rem; font-size: .9rem; }
  .bar { height: 1rem; border-radius: 3px; }
  .bar.critical { background: #cf222e; }
  .bar.high { background: #fb8f44; }
  .bar.medium { background: #d4a72c; }
  .bar.low { background: #54aeff; }
  .bar.none, .bar.plugin { background: #6e7781; }
  .finding { border: 1px solid #d0d7de; border-left-width: 4px; border-radius: 4px; padding: .7rem 1rem; margin: .6rem 0; }
  .finding.critical { border-left-color: #cf222e; }
  .finding.high { border-left-color: #fb8f44; }
  .finding.medium { border-left-color: #d4a72c; }
  .finding.low { border-left-color: #54aeff; }
  .sev { text-transform: uppercase; font-size: .75rem; font-weight: 700; }
  pre { background: #f6f8fa; padding: .5rem; border-radius: 4px; white-space: pre-wrap; word-break: break-word; font-size: .8rem; }
</style>
</head>
<body>
<h1>Red-Team Assessment Report</h1>
<div class="meta">
  Run {{.Summary.RunID}} against <strong>{{.Summary.Target}}</strong><br>
  {{.Summary.StartTime.Format "2006-01-02 15:04:05 MST"}} &middot; {{printf "%.1f" .Summary.DurationSeconds}}s
</div>

<div class="cards">
  <div class="card"><div class="num">{{.Summary.TotalTests}}</div><div class="label">total tests</div></div>
  <div class="card"><div class="num">{{.Summary.VulnerabilitiesFound}}</div><div class="label">vulnerabilities</div></div>
  <div class="card"><div class="num">{{.RatePct}}</div><div class="label">attack success rate</div></div>
  <div class="card"><div class="num">{{.Summary.ErrorTests}}</div><div class="label">errors</div></div>
</div>

{{if .Severity}}
<h2>By severity</h2>
{{range .Severity}}
<div class="bar-row">
  <div class="bar-label">{{.Name}} ({{.Count}})</div>
  <div class="bar {{.Class}}" style="width: {{.WidthPct}}%"></div>
</div>
{{end}}
{{end}}

{{if .Plugins}}
<h2>By plugin</h2>
{{range .Plugins}}
<div class="bar-row">
  <div class="bar-label">{{.Name}} ({{.Count}})</div>
  <div class="bar {{.Class}}" style="width: {{.WidthPct}}%"></div>
</div>
{{end}}
{{end}}

{{if .Findings}}
<h2>Findings</h2>
{{range .Findings}}
<div class="finding {{.Class}}">
  <span class="sev">{{.Severity}}</span>
  <strong>{{.Plugin}}</strong>{{if .Strategy}} via {{.Strategy}}{{end}}
  <div>{{.Explanation}}</div>
  <pre>{{.Output}}</pre>
</div>
{{end}}
{{else}}
<h2>Findings</h2>
<p>No vulnerabilities detected.</p>
{{end}}
</body>
</html>
`))
