package static

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/auditforge/auditforge/internal/domain/vulns"
)

// Analyzer runs slither inside docker against a single contract source.
// Every failure mode (timeout, tool crash, malformed output) comes back as
// an unsuccessful AnalysisResult so the pipeline treats them uniformly.
type Analyzer struct {
	Image   string
	Timeout time.Duration
}

func NewAnalyzer(image string, timeout time.Duration) *Analyzer {
	if image == "" {
		image = "ghcr.io/crytic/slither:latest"
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Analyzer{Image: image, Timeout: timeout}
}

func (a *Analyzer) Analyze(ctx context.Context, sourceCode, contractName string) vulns.AnalysisResult {
	start := time.Now()
	fail := func(msg string) vulns.AnalysisResult {
		return vulns.AnalysisResult{
			DurationMS: time.Since(start).Milliseconds(),
			Errors:     []string{msg},
			Success:    false,
		}
	}

	ctx, cancel := context.WithTimeout(ctx, a.Timeout)
	defer cancel()

	dir, err := os.MkdirTemp("", "audit-static-*")
	if err != nil {
		return fail(fmt.Sprintf("create workspace: %v", err))
	}
	defer os.RemoveAll(dir)

	file := filepath.Join(dir, safeFileName(contractName))
	if err := os.WriteFile(file, []byte(sourceCode), 0o644); err != nil {
		return fail(fmt.Sprintf("write source: %v", err))
	}

	cmd := exec.CommandContext(ctx, "docker", "run", "--rm",
		"-v", fmt.Sprintf("%s:/src", dir),
		a.Image,
		"slither", "/src/"+filepath.Base(file),
		"--json", "-",
	)
	out, runErr := cmd.Output()
	if ctx.Err() == context.DeadlineExceeded {
		return fail(fmt.Sprintf("static analysis timed out after %s", a.Timeout))
	}
	// slither exits non-zero when detectors fire; trust the JSON on stdout
	res, perr := parseSlitherOutput(out)
	if perr != nil {
		if runErr != nil {
			return fail(fmt.Sprintf("slither run: %v", runErr))
		}
		return fail(fmt.Sprintf("parse slither output: %v", perr))
	}
	res.DurationMS = time.Since(start).Milliseconds()
	return res
}

// slitherReport mirrors the subset of slither's --json output we consume.
type slitherReport struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Results struct {
		Detectors []slitherDetector `json:"detectors"`
	} `json:"results"`
}

type slitherDetector struct {
	Check       string           `json:"check"`
	Impact      string           `json:"impact"`
	Confidence  string           `json:"confidence"`
	Description string           `json:"description"`
	Elements    []slitherElement `json:"elements"`
}

type slitherElement struct {
	Name          string `json:"name"`
	SourceMapping struct {
		Filename string `json:"filename_short"`
		Lines    []int  `json:"lines"`
	} `json:"source_mapping"`
}

func parseSlitherOutput(out []byte) (vulns.AnalysisResult, error) {
	var report slitherReport
	if err := json.Unmarshal(out, &report); err != nil {
		return vulns.AnalysisResult{}, err
	}
	if !report.Success {
		msg := report.Error
		if msg == "" {
			msg = "slither reported failure without detail"
		}
		return vulns.AnalysisResult{Errors: []string{msg}}, nil
	}

	res := vulns.AnalysisResult{Success: true}
	for _, d := range report.Results.Detectors {
		res.Findings = append(res.Findings, vulns.RawFinding{
			Type:        d.Check,
			Severity:    d.Impact,
			Description: strings.TrimSpace(d.Description),
			Location:    elementLocation(d.Elements),
			Confidence:  confidenceScore(d.Confidence),
		})
	}
	return res, nil
}

func elementLocation(els []slitherElement) string {
	if len(els) == 0 {
		return ""
	}
	e := els[0]
	loc := e.SourceMapping.Filename
	if len(e.SourceMapping.Lines) > 0 {
		loc = fmt.Sprintf("%s:%d", loc, e.SourceMapping.Lines[0])
	}
	if e.Name != "" {
		loc = fmt.Sprintf("%s (%s)", loc, e.Name)
	}
	return loc
}

func confidenceScore(label string) float64 {
	switch strings.ToLower(label) {
	case "high":
		return 0.9
	case "medium":
		return 0.6
	case "low":
		return 0.3
	default:
		return 0.5
	}
}

func safeFileName(contractName string) string {
	name := strings.TrimSpace(contractName)
	if name == "" {
		name = "Contract"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		b.WriteString("Contract")
	}
	return b.String() + ".sol"
}
