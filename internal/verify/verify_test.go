package verify

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/credence/internal/domain"
	"github.com/ppiankov/credence/internal/extract"
	"github.com/ppiankov/credence/internal/model"
)

func init() {
	// Disable retry sleep in all tests for fast execution
	probeSleepFunc = func(context.Context, time.Duration) error { return nil }
}

func newTestVerifier(t *testing.T) (*Verifier, *extract.ClaimExtractor) {
	t.Helper()
	packs, err := domain.NewRegistry()
	if err != nil {
		t.Fatalf("domain registry: %v", err)
	}
	return NewVerifier(packs, model.DefaultConfig().Verify, nil), extract.NewClaimExtractor(packs, nil)
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestAuthorityMatcher_Check(t *testing.T) {
	v, _ := newTestVerifier(t)

	tests := []struct {
		name        string
		sources     []string
		coverage    float64
		reliability float64
		tiers       []model.AuthorityTier
	}{
		{
			name:        "no sources",
			sources:     nil,
			coverage:    0,
			reliability: 0,
		},
		{
			name:        "primary regulator",
			sources:     []string{"ico.org.uk/for-organisations/guide-to-data-protection/"},
			coverage:    1,
			reliability: 0.95,
			tiers:       []model.AuthorityTier{model.TierPrimary},
		},
		{
			name:        "secondary and unknown",
			sources:     []string{"https://gdpr-info.eu/art-33-gdpr/", "https://someblog.example/gdpr"},
			coverage:    0.5,
			reliability: (0.75 + 0.2) / 2,
			tiers:       []model.AuthorityTier{model.TierSecondary, model.TierUnknown},
		},
		{
			name:        "duplicates and blanks collapse",
			sources:     []string{"https://ICO.org.uk/", "https://ico.org.uk", "  "},
			coverage:    1,
			reliability: 0.95,
			tiers:       []model.AuthorityTier{model.TierPrimary},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := v.authority.Check("gdpr", tt.sources)
			if report.Checks == nil {
				t.Fatal("Expected non-nil checks")
			}
			if !almostEqual(report.Coverage, tt.coverage) {
				t.Errorf("Coverage = %v, want %v", report.Coverage, tt.coverage)
			}
			if !almostEqual(report.Reliability, tt.reliability) {
				t.Errorf("Reliability = %v, want %v", report.Reliability, tt.reliability)
			}
			if len(report.Checks) != len(tt.tiers) {
				t.Fatalf("Expected %d checks, got %d", len(tt.tiers), len(report.Checks))
			}
			for i, tier := range tt.tiers {
				if report.Checks[i].Tier != tier {
					t.Errorf("Check %d tier = %s, want %s", i, report.Checks[i].Tier, tier)
				}
			}
		})
	}
}

func TestAuthorityMatcher_PrimaryBeforeSecondary(t *testing.T) {
	v, _ := newTestVerifier(t)
	// gdpr.eu is secondary but the source also names the EDPB domain
	report := v.authority.Check("gdpr", []string{"https://edpb.europa.eu/redirect?to=gdpr.eu"})
	if report.Checks[0].Tier != model.TierPrimary {
		t.Errorf("Expected primary match, got %s", report.Checks[0].Tier)
	}
	if report.Checks[0].Authority != "European Data Protection Board" {
		t.Errorf("Unexpected authority %q", report.Checks[0].Authority)
	}
}

func TestVerifier_BreachDeadlineVerified(t *testing.T) {
	v, extractor := newTestVerifier(t)
	text := "Data breach notification must occur within 72 hours to supervisory authorities."
	claims := extractor.Extract(text, "gdpr")
	if len(claims) != 1 {
		t.Fatalf("Expected 1 claim, got %d", len(claims))
	}

	result := v.VerifyClaim(context.Background(), claims[0], "gdpr", []string{"ico.org.uk/for-organisations/guide-to-data-protection/"})

	if !result.Verified || result.Contradicted {
		t.Fatalf("Expected verified result, got %+v", result)
	}
	if result.FactID != "gdpr-breach-notification" {
		t.Errorf("Expected breach fact, got %q", result.FactID)
	}
	if result.AuthoritativeSource != "GDPR Art. 33(1)" {
		t.Errorf("Unexpected source %q", result.AuthoritativeSource)
	}
	if !almostEqual(result.Confidence, 0.95) {
		t.Errorf("Confidence = %v, want 0.95", result.Confidence)
	}
}

func TestVerifier_Verdicts(t *testing.T) {
	v, extractor := newTestVerifier(t)

	tests := []struct {
		name       string
		text       string
		kind       model.ClaimKind
		sources    []string
		status     model.VerificationStatus
		confidence float64
	}{
		{
			name:       "immediate notification contradicts 72 hours",
			text:       "GDPR requires immediate notification of a breach.",
			kind:       model.ClaimDeadline,
			status:     model.StatusContradicted,
			confidence: 0.95,
		},
		{
			name:       "subject access deadline",
			text:       "A subject access request must be answered within one month.",
			kind:       model.ClaimDeadline,
			status:     model.StatusVerified,
			confidence: 0.9,
		},
		{
			name:       "wrong fine",
			text:       "The maximum fine is €50 million.",
			kind:       model.ClaimMonetary,
			status:     model.StatusContradicted,
			confidence: 0.9,
		},
		{
			name:       "unknown statistic without sources",
			text:       "95% of companies fail compliance.",
			kind:       model.ClaimStatistical,
			status:     model.StatusUnverified,
			confidence: 0.3,
		},
		{
			name:       "unknown statistic with primary source",
			text:       "95% of companies fail compliance.",
			kind:       model.ClaimStatistical,
			sources:    []string{"https://ico.org.uk/"},
			status:     model.StatusUnverified,
			confidence: 0.3 + 0.4*0.95,
		},
		{
			name:       "listed right",
			text:       "Data subjects have the right to erasure.",
			kind:       model.ClaimRights,
			status:     model.StatusVerified,
			confidence: 0.85,
		},
		{
			name:       "right outside the fact table is not contradicted",
			text:       "Data subjects have the right to lodge a complaint.",
			kind:       model.ClaimRights,
			status:     model.StatusUnverified,
			confidence: 0.3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var claim *model.Claim
			for _, c := range extractor.Extract(tt.text, "gdpr") {
				if c.Kind == tt.kind {
					c := c
					claim = &c
					break
				}
			}
			if claim == nil {
				t.Fatalf("No %s claim extracted from %q", tt.kind, tt.text)
			}

			result := v.VerifyClaim(context.Background(), *claim, "gdpr", tt.sources)
			if result.Status() != tt.status {
				t.Errorf("Status = %s, want %s (%+v)", result.Status(), tt.status, result)
			}
			if !almostEqual(result.Confidence, tt.confidence) {
				t.Errorf("Confidence = %v, want %v", result.Confidence, tt.confidence)
			}
		})
	}
}

func TestVerifier_DegradesOnFailure(t *testing.T) {
	v, _ := newTestVerifier(t)
	v.lookup = func(string, model.Claim) (domain.Fact, bool, bool) {
		panic("knowledge table corrupted")
	}

	claims := []model.Claim{
		{Text: "within 72 hours", Kind: model.ClaimDeadline, Value: 72, Unit: "hours", HasValue: true},
		{Text: "4%", Kind: model.ClaimStatistical, Value: 4, Unit: "percent", HasValue: true},
	}
	results := v.VerifyAll(context.Background(), claims, "gdpr", model.SourceReport{})

	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	for _, r := range results {
		if r.Verified || r.Contradicted {
			t.Errorf("Degraded result must be unverified, got %+v", r)
		}
		if !almostEqual(r.Confidence, 0.3) {
			t.Errorf("Degraded confidence = %v, want 0.3", r.Confidence)
		}
		if r.Error == "" {
			t.Error("Expected error to be recorded")
		}
	}
}

func TestVerifier_CancelledContextDegrades(t *testing.T) {
	v, _ := newTestVerifier(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := v.Verify(ctx, model.Claim{Text: "x", Kind: model.ClaimDeadline}, "gdpr", model.SourceReport{})
	if r.Error == "" || !almostEqual(r.Confidence, 0.3) {
		t.Errorf("Expected degraded result, got %+v", r)
	}
}

func newTestProber(maxRetries int, ceiling time.Duration) *Prober {
	cfg := model.ReachabilityConfig{
		Enabled:    true,
		Timeout:    time.Second,
		Ceiling:    ceiling,
		MaxRetries: maxRetries,
	}
	return NewProber(cfg, model.HTTPConfig{UserAgent: "Credence/test"}, model.RateLimitConfig{}, 4, nil)
}

func TestProber_Probe(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("Expected HEAD request, got %s", r.Method)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ok.Close()

	gone := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer gone.Close()

	prober := newTestProber(0, 5*time.Second)
	results := prober.Probe(context.Background(), []string{ok.URL, gone.URL, "GDPR Art. 33"})

	if got := results[ok.URL]; got.Reachability != model.ReachReachable || got.StatusCode != http.StatusOK {
		t.Errorf("Expected reachable 200, got %+v", got)
	}
	if got := results[gone.URL]; got.Reachability != model.ReachUnreachable {
		t.Errorf("Expected unreachable, got %+v", got)
	}
	if got := results["GDPR Art. 33"]; got.Reachability != model.ReachSkipped {
		t.Errorf("Expected non-web source to be skipped, got %+v", got)
	}
}

func TestProber_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	prober := newTestProber(2, 5*time.Second)
	results := prober.Probe(context.Background(), []string{server.URL})

	if results[server.URL].Reachability != model.ReachReachable {
		t.Errorf("Expected reachable after retries, got %+v", results[server.URL])
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Errorf("Expected 3 attempts, got %d", n)
	}

	// Second probe is served from cache
	prober.Probe(context.Background(), []string{server.URL})
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Errorf("Expected cached result, got %d attempts", n)
	}
}

func TestProber_CeilingYieldsUnknown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	prober := newTestProber(0, 100*time.Millisecond)
	start := time.Now()
	results := prober.Probe(context.Background(), []string{server.URL})

	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Probe exceeded ceiling: %v", elapsed)
	}
	if results[server.URL].Reachability != model.ReachUnknown {
		t.Errorf("Expected unknown after ceiling, got %+v", results[server.URL])
	}
}

func TestVerifier_ProbeDowngradesReliability(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	packs := domain.MustNewRegistry()
	packs.Register(&domain.Pack{
		Name:      "local",
		Expertise: 0.5,
		Authorities: domain.Authorities{
			Primary: []domain.Authority{{Name: "Local regulator", Match: "127.0.0.1", Reliability: 0.9}},
		},
	})

	v := NewVerifier(packs, model.DefaultConfig().Verify, nil).WithProber(newTestProber(0, 5*time.Second))
	report := v.Sources(context.Background(), "local", []string{server.URL})

	if len(report.Checks) != 1 {
		t.Fatalf("Expected 1 check, got %d", len(report.Checks))
	}
	c := report.Checks[0]
	if c.Reachability != model.ReachUnreachable {
		t.Errorf("Expected unreachable, got %s", c.Reachability)
	}
	// Halfway from 0.9 toward 0.2
	if !almostEqual(c.Reliability, 0.55) {
		t.Errorf("Reliability = %v, want 0.55", c.Reliability)
	}
	if !almostEqual(report.Reliability, 0.55) || report.Coverage != 1 {
		t.Errorf("Unexpected report %+v", report)
	}
}
