package llm

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ppiankov/credence/internal/metrics"
	"github.com/ppiankov/credence/internal/model"
	"github.com/ppiankov/credence/internal/util"
)

// ErrCitationLeak is returned when an explanation cites a URL the assessment never saw
var ErrCitationLeak = errors.New("citation leak")

// Explainer turns an assessment into a short natural-language explanation
type Explainer struct {
	provider  Provider
	model     string
	maxTokens int
	strict    bool
	logger    *zap.Logger
}

// NewExplainer wraps a provider
func NewExplainer(provider Provider, config Config, logger *zap.Logger) *Explainer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Explainer{
		provider:  provider,
		model:     config.Model,
		maxTokens: config.MaxTokens,
		strict:    config.StrictEvidence,
		logger:    logger,
	}
}

// ProviderName returns the wrapped provider's name
func (e *Explainer) ProviderName() string {
	return e.provider.Name()
}

// Explain asks the provider to explain a. With strict evidence on, an answer citing
// any URL outside the assessment's sources is discarded.
func (e *Explainer) Explain(ctx context.Context, a *model.Assessment) (string, error) {
	name := e.provider.Name()
	allowed := AllowedURLs(a)

	resp, err := e.provider.Complete(ctx, CompletionRequest{
		System:    systemPrompt,
		Prompt:    BuildPrompt(a, allowed),
		Model:     e.model,
		MaxTokens: e.maxTokens,
	})
	if err != nil {
		metrics.Explanations.WithLabelValues(name, "error").Inc()
		return "", fmt.Errorf("%s: %w", name, err)
	}
	if resp.Text == "" {
		metrics.Explanations.WithLabelValues(name, "error").Inc()
		return "", fmt.Errorf("%s: empty explanation", name)
	}

	if e.strict {
		if err := CheckCitations(resp.Text, allowed); err != nil {
			metrics.Explanations.WithLabelValues(name, "leak").Inc()
			e.logger.Warn("explanation discarded", zap.String("provider", name), zap.Error(err))
			return "", err
		}
	}

	metrics.Explanations.WithLabelValues(name, "ok").Inc()
	e.logger.Debug("explanation generated",
		zap.String("provider", name),
		zap.String("model", resp.Model),
		zap.Int("tokens", resp.TokensUsed))
	return resp.Text, nil
}

// AllowedURLs lists the web sources of an assessment, the only URLs an explanation may cite
func AllowedURLs(a *model.Assessment) []string {
	var urls []string
	seen := make(map[string]bool)
	for _, c := range a.Sources.Checks {
		u, ok := util.SourceURL(c.Source)
		if !ok || seen[u] {
			continue
		}
		seen[u] = true
		urls = append(urls, u)
	}
	return urls
}

// CheckCitations returns ErrCitationLeak if text cites a URL not in allowed
func CheckCitations(text string, allowed []string) error {
	for _, cited := range extractURLs(text) {
		ok := false
		for _, a := range allowed {
			if sameURL(cited, a) {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrCitationLeak, cited)
		}
	}
	return nil
}
