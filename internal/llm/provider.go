package llm

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ppiankov/credence/internal/model"
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete sends one prompt and returns the model's answer
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// CompletionRequest contains the input for one completion
type CompletionRequest struct {
	System    string
	Prompt    string
	Model     string // Overrides the configured model
	MaxTokens int
}

// CompletionResponse contains the provider output
type CompletionResponse struct {
	Text       string
	Model      string
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// StrictEvidence rejects explanations citing URLs outside the assessment's sources
	StrictEvidence bool

	// MaxTokens for response generation
	MaxTokens int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Timeout:        30,
		StrictEvidence: true,
		MaxTokens:      600,
	}
}

const systemPrompt = "You explain compliance confidence assessments. You describe how well statements are supported and never rule on whether they are true."

// BuildPrompt constructs the explanation prompt. allowed is the only set of URLs the model may cite.
func BuildPrompt(a *model.Assessment, allowed []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, `Explain this confidence assessment of an AI-generated compliance answer to a non-technical reader.

RULES:
1. You MUST ONLY cite URLs from this allowed list:%s

2. Do not cite, infer or invent any other source.
3. Describe support quality, not truth. Never say a statement "is true" or "is false".
4. Name every flagged fabrication pattern and every contradicted statement.

Assessment:
- Domain pack: %s
- Confidence: %d/100 (%s)
- Recommendation: %s
`, joinURLs(allowed), a.Pack, a.Result.Score, a.Result.Level, a.Result.Recommendation.Human())

	for _, adj := range a.Result.Adjustments {
		fmt.Fprintf(&b, "- Adjustment %s (%+d): %s\n", adj.Name, adj.Delta, adj.Reason)
	}

	if len(a.Verifications) > 0 {
		b.WriteString("\nStatements checked:\n")
		for i, v := range a.Verifications {
			if i >= 15 {
				fmt.Fprintf(&b, "... and %d more\n", len(a.Verifications)-15)
				break
			}
			fmt.Fprintf(&b, "- %q: %s", v.Claim.Text, v.Status())
			if v.Reason != "" {
				fmt.Fprintf(&b, " (%s)", v.Reason)
			}
			b.WriteString("\n")
		}
	}

	if len(a.Hallucination.Findings) > 0 {
		b.WriteString("\nFabrication patterns found:\n")
		for _, f := range a.Hallucination.Findings {
			fmt.Fprintf(&b, "- %s: %q\n", f.Category, f.MatchedText)
		}
	}

	b.WriteString("\nWrite 3-5 sentences.")
	return b.String()
}

func joinURLs(urls []string) string {
	if len(urls) == 0 {
		return "\n(no URLs may be cited)"
	}
	var b strings.Builder
	for i, u := range urls {
		if i >= 20 {
			fmt.Fprintf(&b, "\n... and %d more URLs", len(urls)-20)
			break
		}
		fmt.Fprintf(&b, "\n- %s", u)
	}
	return b.String()
}

var urlPattern = regexp.MustCompile(`https?://[^\s\)\]>"']+`)

// extractURLs extracts all URLs from text, deduplicated
func extractURLs(text string) []string {
	matches := urlPattern.FindAllString(text, -1)

	seen := make(map[string]bool)
	var unique []string
	for _, u := range matches {
		u = strings.TrimRight(u, ".,;:!?")
		if !seen[u] {
			seen[u] = true
			unique = append(unique, u)
		}
	}

	return unique
}

func sameURL(a, b string) bool {
	return strings.EqualFold(strings.TrimSuffix(a, "/"), strings.TrimSuffix(b, "/"))
}
