package report

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"

	domain "github.com/auditforge/auditforge/internal/domain/audits"
	"github.com/auditforge/auditforge/internal/domain/vulns"
)

// Generator renders the audit report as HTML and JSON files on local disk.
// It is a best-effort collaborator: callers log and move on when it fails.
type Generator struct {
	Dir string
}

func NewGenerator(dir string) *Generator {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "auditforge-reports")
	}
	return &Generator{Dir: dir}
}

type reportData struct {
	Record      *domain.Record
	Counts      vulns.SeverityCounts
	Findings    []vulns.Vulnerability
	GeneratedAt time.Time
}

func (g *Generator) Generate(ctx context.Context, rec *domain.Record, list []vulns.Vulnerability) (domain.ReportPaths, error) {
	if err := os.MkdirAll(g.Dir, 0o755); err != nil {
		return domain.ReportPaths{}, fmt.Errorf("create report dir: %w", err)
	}
	data := reportData{
		Record:      rec,
		Counts:      vulns.Summarize(list),
		Findings:    list,
		GeneratedAt: time.Now(),
	}

	jsonPath := filepath.Join(g.Dir, rec.ID+".json")
	payload, err := json.MarshalIndent(map[string]any{
		"audit":        rec,
		"counts":       data.Counts,
		"findings":     list,
		"generated_at": data.GeneratedAt,
	}, "", "  ")
	if err != nil {
		return domain.ReportPaths{}, err
	}
	if err := os.WriteFile(jsonPath, payload, 0o644); err != nil {
		return domain.ReportPaths{}, fmt.Errorf("write json report: %w", err)
	}

	htmlPath := filepath.Join(g.Dir, rec.ID+".html")
	f, err := os.Create(htmlPath)
	if err != nil {
		return domain.ReportPaths{}, fmt.Errorf("write html report: %w", err)
	}
	defer f.Close()
	if err := reportTemplate.Execute(f, data); err != nil {
		return domain.ReportPaths{}, fmt.Errorf("render html report: %w", err)
	}

	return domain.ReportPaths{HTMLPath: htmlPath, JSONPath: jsonPath}, nil
}

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Audit {{.Record.ID}}</title></head>
<body>
<h1>Security Audit Report</h1>
<p>Audit <code>{{.Record.ID}}</code> &middot; contract <code>{{.Record.ContractID}}</code> &middot; {{.Record.Kind}} analysis</p>
{{if .Record.PartialResults}}<p><strong>Note:</strong> one analyzer failed; results are partial.</p>{{end}}
<h2>Summary</h2>
<ul>
<li>Critical: {{.Counts.Critical}}</li>
<li>High: {{.Counts.High}}</li>
<li>Medium: {{.Counts.Medium}}</li>
<li>Low: {{.Counts.Low}}</li>
<li>Informational: {{.Counts.Informational}}</li>
<li>Total: {{.Counts.Total}}</li>
</ul>
<h2>Findings</h2>
{{range .Findings}}
<div>
<h3>{{.Title}}</h3>
<p><em>{{.Severity}}</em> &middot; {{.Type}} &middot; source: {{.Source}} &middot; confidence {{printf "%.2f" .Confidence}}</p>
{{if .Location}}<p>Location: <code>{{.Location}}</code></p>{{end}}
<p>{{.Description}}</p>
<p>Recommendation: {{.Recommendation}}</p>
</div>
{{else}}
<p>No findings.</p>
{{end}}
<hr><p>Generated {{.GeneratedAt.Format "2006-01-02 15:04:05 MST"}}</p>
</body>
</html>
`))
