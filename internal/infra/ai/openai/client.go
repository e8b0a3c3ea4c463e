package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	domai "github.com/auditforge/auditforge/internal/domain/ai"
	"github.com/auditforge/auditforge/internal/domain/vulns"
	"github.com/auditforge/auditforge/internal/infra/ai/prompt"
)

const maxTokens = 4096

// Analyzer runs an ensemble of chat-completion calls, one per configured
// model, and merges findings that clear the confidence threshold. A single
// successful model call is enough for a usable result; the run fails only
// when every model fails.
type Analyzer struct {
	client  *openai.Client
	models  []string
	timeout time.Duration
}

func NewAnalyzer(apiKey string, models []string, timeout time.Duration) *Analyzer {
	if len(models) == 0 {
		models = []string{"gpt-4o"}
	}
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	return &Analyzer{client: openai.NewClient(apiKey), models: models, timeout: timeout}
}

// NewAnalyzerWithConfig is used by tests to point the client at a stub API.
func NewAnalyzerWithConfig(cfg openai.ClientConfig, models []string, timeout time.Duration) *Analyzer {
	a := NewAnalyzer("", models, timeout)
	a.client = openai.NewClientWithConfig(cfg)
	return a
}

func (a *Analyzer) Analyze(ctx context.Context, sourceCode, contractName string, opts domai.Options) vulns.AnalysisResult {
	start := time.Now()
	opts = opts.WithDefaults()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var res vulns.AnalysisResult
	for _, model := range a.models {
		findings, err := a.complete(ctx, model, sourceCode, contractName, opts)
		if err != nil {
			if errors.Is(err, domai.ErrQuotaExceeded) {
				res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", model, domai.ErrQuotaExceeded))
				break // remaining models share the quota
			}
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", model, err))
			continue
		}
		res.Success = true
		for _, f := range findings {
			if f.Confidence < opts.MinConfidence {
				res.Warnings = append(res.Warnings,
					fmt.Sprintf("%s: dropped low-confidence finding %q (%.2f)", model, f.Type, f.Confidence))
				continue
			}
			if !vulns.CanonicalSeverity(f.Severity).AtLeast(opts.SeverityThreshold) {
				continue
			}
			res.Findings = append(res.Findings, f)
		}
	}
	if ctx.Err() == context.DeadlineExceeded && !res.Success {
		res.Errors = append(res.Errors, fmt.Sprintf("ai analysis timed out after %s", a.timeout))
	}
	res.DurationMS = time.Since(start).Milliseconds()
	return res
}

func (a *Analyzer) complete(ctx context.Context, model, sourceCode, contractName string, opts domai.Options) ([]vulns.RawFinding, error) {
	req := openai.ChatCompletionRequest{
		Model: model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.GetSystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: prompt.GetUserPrompt(contractName, sourceCode, opts)},
		},
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
	if strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4") || strings.HasPrefix(model, "gpt-5") {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}

	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return nil, domai.ErrQuotaExceeded
		}
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("empty completion response")
	}
	return prompt.ParseFindings(resp.Choices[0].Message.Content)
}
