package domain

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ppiankov/credence/internal/model"
)

func TestBuiltinPacks(t *testing.T) {
	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	for _, name := range []string{"gdpr", "hipaa", "iso27001", "pci-dss", "generic"} {
		if _, err := r.Get(name); err != nil {
			t.Errorf("Get(%q): %v", name, err)
		}
	}

	gdpr, _ := r.Get("gdpr")
	if gdpr.Expertise != 0.9 {
		t.Errorf("gdpr expertise = %v, want 0.9", gdpr.Expertise)
	}
	if len(gdpr.Authorities.Primary) == 0 || len(gdpr.Facts) == 0 {
		t.Error("gdpr pack should carry authorities and facts")
	}
}

func TestLookupFallsBackToGeneric(t *testing.T) {
	r := MustNewRegistry()

	tests := []struct {
		domain string
		want   string
	}{
		{"gdpr", "gdpr"},
		{"GDPR", "gdpr"},
		{"uk_gdpr", "gdpr"},
		{"PCI DSS", "pci-dss"},
		{"iso-27001", "iso27001"},
		{"sox", "generic"},
		{"", "generic"},
	}

	for _, tt := range tests {
		t.Run(tt.domain, func(t *testing.T) {
			if got := r.Lookup(tt.domain).Name; got != tt.want {
				t.Errorf("Lookup(%q) = %s, want %s", tt.domain, got, tt.want)
			}
		})
	}

	if _, err := r.Get("sox"); !errors.Is(err, ErrUnknownDomain) {
		t.Errorf("Get(sox) error = %v, want ErrUnknownDomain", err)
	}
}

func TestLoadDirOverridesBuiltin(t *testing.T) {
	dir := t.TempDir()
	pack := `name: gdpr
expertise: 0.5
authorities:
  primary:
    - {name: Example Regulator, match: regulator.example, reliability: 0.9}
`
	if err := os.WriteFile(filepath.Join(dir, "gdpr.yaml"), []byte(pack), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := MustNewRegistry()
	n, err := r.LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if n != 1 {
		t.Errorf("loaded %d packs, want 1", n)
	}
	if got := r.Lookup("gdpr").Expertise; got != 0.5 {
		t.Errorf("overridden expertise = %v, want 0.5", got)
	}
}

func TestParseRejectsInvalidPacks(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no name", "expertise: 0.5\n"},
		{"authority without match", "name: x\nauthorities:\n  primary:\n    - {name: A}\n"},
		{"fact without values or terms", "name: x\nfacts:\n  - {id: f, kind: deadline, citation: c}\n"},
		{"fact with unknown kind", "name: x\nfacts:\n  - {id: f, kind: weather, values: [1], citation: c}\n"},
		{"rule without pattern", "name: x\nrules:\n  - {name: r, kind: deadline}\n"},
		{"malformed yaml", "name: [unterminated\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.yaml)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestParseClampsRanges(t *testing.T) {
	p, err := Parse([]byte("name: X\nexpertise: 1.7\nauthorities:\n  primary:\n    - {match: a.example, reliability: -2}\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.Name != "x" {
		t.Errorf("name = %q, want lowercased", p.Name)
	}
	if p.Expertise != 1 {
		t.Errorf("expertise = %v, want 1", p.Expertise)
	}
	a := p.Authorities.Primary[0]
	if a.Reliability != 0 || a.Name != "a.example" {
		t.Errorf("authority = %+v", a)
	}
}

func TestContainsWordPrefix(t *testing.T) {
	tests := []struct {
		text, kw string
		want     bool
	}{
		{"Breach notification within 72 hours", "notif", true},
		{"they were unnotified", "notif", false},
		{"unnotified, then notified", "notif", true},
		{"Supervisory Authorities", "supervisory authorit", true},
		{"SAR handling", "sar", true},
		{"a necessary step", "sar", false},
		{"anything", "", false},
	}

	for _, tt := range tests {
		if got := ContainsWordPrefix(tt.text, tt.kw); got != tt.want {
			t.Errorf("ContainsWordPrefix(%q, %q) = %v, want %v", tt.text, tt.kw, got, tt.want)
		}
	}
}

func TestFactAppliesAndMatches(t *testing.T) {
	r := MustNewRegistry()
	gdpr := r.Lookup("gdpr")

	var breach Fact
	for _, f := range gdpr.Facts {
		if f.ID == "gdpr-breach-notification" {
			breach = f
		}
	}
	if breach.ID == "" {
		t.Fatal("breach notification fact missing")
	}

	claim := model.Claim{
		Text:     "within 72 hours",
		Kind:     model.ClaimDeadline,
		Context:  "Data breach notification must occur within 72 hours to supervisory authorities.",
		Value:    72,
		Unit:     "hours",
		HasValue: true,
	}
	if !breach.Applies(claim) || !breach.Matches(claim) {
		t.Error("72 hours should match the breach fact")
	}

	claim.Value = 24
	if !breach.Applies(claim) || breach.Matches(claim) {
		t.Error("24 hours should apply but not match")
	}

	claim.Context = "Respond within 24 hours."
	if breach.Applies(claim) {
		t.Error("fact should not apply without keywords")
	}
}

func TestKeywordHits(t *testing.T) {
	gdpr := MustNewRegistry().Lookup("gdpr")
	text := "Data breach notification must occur within 72 hours to supervisory authorities."
	if got := gdpr.KeywordHits(text); got < 2 {
		t.Errorf("KeywordHits = %d, want at least 2", got)
	}
	if got := gdpr.KeywordHits("The weather is nice."); got != 0 {
		t.Errorf("KeywordHits = %d, want 0", got)
	}
}
