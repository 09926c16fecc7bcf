package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ppiankov/credence/internal/model"
)

// Renderer writes assessments as JSON, Markdown or a one-screen summary
type Renderer struct {
	includeFooter bool
}

// NewRenderer creates a renderer
func NewRenderer(includeFooter bool) *Renderer {
	return &Renderer{includeFooter: includeFooter}
}

// RenderJSON writes the assessment as indented JSON to path
func (r *Renderer) RenderJSON(a *model.Assessment, path string) error {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal assessment: %w", err)
	}
	return writeFile(path, append(data, '\n'))
}

// RenderMarkdown writes a human-readable report to path
func (r *Renderer) RenderMarkdown(a *model.Assessment, path string) error {
	return writeFile(path, []byte(r.Markdown(a)))
}

// Markdown renders the assessment report
func (r *Renderer) Markdown(a *model.Assessment) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Confidence assessment\n\n")
	fmt.Fprintf(&b, "- **Score:** %d/100 (%s)\n", a.Result.Score, a.Result.Level)
	fmt.Fprintf(&b, "- **Recommendation:** %s\n", a.Result.Recommendation.Human())
	fmt.Fprintf(&b, "- **Domain pack:** %s\n", a.Pack)
	if a.UserRole != "" {
		fmt.Fprintf(&b, "- **User role:** %s\n", a.UserRole)
	}
	fmt.Fprintf(&b, "- **Assessment id:** `%s`\n", a.ID)
	if a.Result.Fallback {
		b.WriteString("- **Fallback:** malformed input, the documented zero-confidence result was used\n")
	}

	b.WriteString("\n## Factor breakdown\n\n| Factor | Value | Points |\n|---|---|---|\n")
	for _, name := range model.FactorNames() {
		v, _ := a.Factors.Get(name)
		fmt.Fprintf(&b, "| %s | %.2f | %.2f |\n", name, v, a.Result.FactorBreakdown[name])
	}
	for _, adj := range a.Result.Adjustments {
		fmt.Fprintf(&b, "| %s | | %+d |\n", model.AdjustmentKey(adj.Name), adj.Delta)
	}

	if len(a.Result.Adjustments) > 0 {
		b.WriteString("\n## Adjustments\n\n")
		for _, adj := range a.Result.Adjustments {
			fmt.Fprintf(&b, "- **%s** (%+d): %s\n", adj.Name, adj.Delta, adj.Reason)
		}
	}

	b.WriteString("\n## Claims\n\n")
	if len(a.Verifications) == 0 {
		b.WriteString("No checkable claims were found.\n")
	} else {
		b.WriteString("| Claim | Kind | Status | Confidence | Source |\n|---|---|---|---|---|\n")
		for _, v := range a.Verifications {
			fmt.Fprintf(&b, "| %s | %s | %s | %.2f | %s |\n",
				escapeCell(v.Claim.Text), v.Claim.Kind, v.Status(), v.Confidence, escapeCell(v.AuthoritativeSource))
		}
	}

	b.WriteString("\n## Sources\n\n")
	if len(a.Sources.Checks) == 0 {
		b.WriteString("No sources were cited.\n")
	} else {
		fmt.Fprintf(&b, "Authoritative coverage: %.0f%%, mean reliability %.2f\n\n", a.Sources.Coverage*100, a.Sources.Reliability)
		for _, c := range a.Sources.Checks {
			authority := c.Authority
			if authority == "" {
				authority = "not on the authority list"
			}
			fmt.Fprintf(&b, "- %s: %s (%s, %.2f, %s)\n", c.Source, authority, c.Tier, c.Reliability, c.Reachability)
		}
	}

	b.WriteString("\n## Hallucination check\n\n")
	if len(a.Hallucination.Findings) == 0 {
		b.WriteString("No fabrication patterns matched.\n")
	} else {
		fmt.Fprintf(&b, "Risk %.2f, penalty %d points.\n\n", a.Hallucination.RiskScore, a.Hallucination.Penalty)
		for _, f := range a.Hallucination.Findings {
			fmt.Fprintf(&b, "- **%s** (%s): \"%s\"\n", f.Category, f.Severity, f.MatchedText)
		}
	}

	if a.Explanation != "" {
		b.WriteString("\n## Explanation\n\n")
		b.WriteString(a.Explanation)
		b.WriteString("\n")
	}

	if len(a.Warnings) > 0 || len(a.Result.Notes) > 0 {
		b.WriteString("\n## Notes\n\n")
		for _, n := range append(append([]string{}, a.Result.Notes...), a.Warnings...) {
			fmt.Fprintf(&b, "- %s\n", n)
		}
	}

	if r.includeFooter {
		b.WriteString("\n---\n\n*Credence scores how well a response is supported. It does not decide whether the response is true.*\n")
	}
	return b.String()
}

// RenderSummary prints a one-screen summary
func (r *Renderer) RenderSummary(w io.Writer, a *model.Assessment) {
	verified, contradicted, unverified := a.Counts()

	fmt.Fprintln(w, "\n═══════════════════════════════════════════════════════")
	fmt.Fprintf(w, "  Confidence: %d/100 (%s)\n", a.Result.Score, a.Result.Level)
	fmt.Fprintf(w, "  Recommendation: %s\n", a.Result.Recommendation.Human())
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════")
	fmt.Fprintf(w, "  Domain pack:   %s\n", a.Pack)
	fmt.Fprintf(w, "  Claims:        %d (%d verified, %d contradicted, %d unverified)\n",
		len(a.Claims), verified, contradicted, unverified)
	fmt.Fprintf(w, "  Sources:       %d (coverage %.0f%%)\n", len(a.Sources.Checks), a.Sources.Coverage*100)
	fmt.Fprintf(w, "  Hallucination: risk %.2f", a.Hallucination.RiskScore)
	if len(a.Hallucination.Categories) > 0 {
		cats := make([]string, len(a.Hallucination.Categories))
		for i, c := range a.Hallucination.Categories {
			cats[i] = string(c)
		}
		sort.Strings(cats)
		fmt.Fprintf(w, " [%s]", strings.Join(cats, ", "))
	}
	fmt.Fprintln(w)

	for _, adj := range a.Result.Adjustments {
		fmt.Fprintf(w, "  ⚠ %s %+d\n", adj.Name, adj.Delta)
	}
	for _, warning := range a.Warnings {
		fmt.Fprintf(w, "  ⚠ %s\n", warning)
	}
	fmt.Fprintf(w, "  id: %s\n\n", a.ID)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "|", "\\|"), "\n", " ")
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
