package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ppiankov/credence/internal/model"
)

func scoredAssessment(t *testing.T) *model.Assessment {
	t.Helper()
	p := newTestPipeline(t)
	a, err := p.ScoreResponse(context.Background(), model.Request{
		Text:     "GDPR requires immediate notification and 95% of companies fail compliance in their first year.",
		Domain:   "gdpr",
		Sources:  []string{"https://ico.org.uk/"},
		UserRole: "compliance_officer",
	})
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestRenderer_Markdown(t *testing.T) {
	a := scoredAssessment(t)

	md := NewRenderer(true).Markdown(a)
	for _, want := range []string{
		"# Confidence assessment",
		"## Factor breakdown",
		"| source_reliability |",
		"## Claims",
		"## Hallucination check",
		"regulatory-fabrication",
		"https://ico.org.uk/",
		"does not decide whether the response is true",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("Markdown missing %q", want)
		}
	}

	if strings.Contains(NewRenderer(false).Markdown(a), "does not decide") {
		t.Error("Footer should be omitted when disabled")
	}
}

func TestRenderer_Files(t *testing.T) {
	a := scoredAssessment(t)
	dir := t.TempDir()
	r := NewRenderer(false)

	jsonPath := filepath.Join(dir, "out", "assessment.json")
	if err := r.RenderJSON(a, jsonPath); err != nil {
		t.Fatalf("RenderJSON: %v", err)
	}
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatal(err)
	}
	var decoded model.Assessment
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded.ID != a.ID || decoded.Result.Score != a.Result.Score {
		t.Errorf("Decoded assessment %s/%d, want %s/%d", decoded.ID, decoded.Result.Score, a.ID, a.Result.Score)
	}

	mdPath := filepath.Join(dir, "assessment.md")
	if err := r.RenderMarkdown(a, mdPath); err != nil {
		t.Fatalf("RenderMarkdown: %v", err)
	}
	if _, err := os.Stat(mdPath); err != nil {
		t.Errorf("Markdown report not written: %v", err)
	}
}

func TestRenderer_Summary(t *testing.T) {
	a := scoredAssessment(t)

	var buf bytes.Buffer
	NewRenderer(false).RenderSummary(&buf, a)
	out := buf.String()

	if !strings.Contains(out, "Confidence: 0/100 (very_low)") {
		t.Errorf("Summary missing score line:\n%s", out)
	}
	if !strings.Contains(out, "⚠ hallucination_penalty") {
		t.Errorf("Summary missing adjustment line:\n%s", out)
	}
	if !strings.Contains(out, "1 contradicted") {
		t.Errorf("Summary missing claim counts:\n%s", out)
	}
}
