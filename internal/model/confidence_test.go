package model

import "testing"

func TestLevelForScore(t *testing.T) {
	tests := []struct {
		score int
		want  ConfidenceLevel
	}{
		{-5, LevelVeryLow},
		{0, LevelVeryLow},
		{20, LevelVeryLow},
		{21, LevelLow},
		{40, LevelLow},
		{41, LevelMedium},
		{60, LevelMedium},
		{61, LevelHigh},
		{80, LevelHigh},
		{81, LevelVeryHigh},
		{100, LevelVeryHigh},
		{140, LevelVeryHigh},
	}

	for _, tt := range tests {
		if got := LevelForScore(tt.score); got != tt.want {
			t.Errorf("LevelForScore(%d) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestRecommendationCaution(t *testing.T) {
	ordered := []Recommendation{
		RecommendSafe,
		RecommendStandardDisclaimers,
		RecommendStrongDisclaimers,
		RecommendDoNotPresent,
		RecommendEscalate,
	}

	for i := 1; i < len(ordered); i++ {
		if !ordered[i].AtLeast(ordered[i-1]) {
			t.Errorf("%s should be at least as cautious as %s", ordered[i], ordered[i-1])
		}
		if ordered[i-1].AtLeast(ordered[i]) {
			t.Errorf("%s should be less cautious than %s", ordered[i-1], ordered[i])
		}
	}

	if got := MoreCautious(RecommendSafe, RecommendDoNotPresent); got != RecommendDoNotPresent {
		t.Errorf("MoreCautious = %s, want do_not_present", got)
	}
	if got := MoreCautious(RecommendEscalate, ""); got != RecommendEscalate {
		t.Errorf("MoreCautious with empty = %s, want escalate", got)
	}
	if got := RecommendStrongDisclaimers.Human(); got != "present with strong disclaimers" {
		t.Errorf("Human() = %q", got)
	}
}

func TestVerificationStatus(t *testing.T) {
	c := Claim{Text: "within 72 hours", Kind: ClaimDeadline}

	tests := []struct {
		name   string
		result VerificationResult
		want   VerificationStatus
	}{
		{"verified", NewVerified(c, "GDPR Art. 33(1)", 0.95), StatusVerified},
		{"contradicted", NewContradicted(c, "GDPR Art. 33(1)", 0.9), StatusContradicted},
		{"unverified", NewUnverified(c, "", 0.3), StatusUnverified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.result.Verified && tt.result.Contradicted {
				t.Fatal("verified and contradicted both set")
			}
			if got := tt.result.Status(); got != tt.want {
				t.Errorf("Status() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestAuthorityTierText(t *testing.T) {
	for _, tier := range []AuthorityTier{TierUnknown, TierPrimary, TierSecondary} {
		b, err := tier.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText: %v", err)
		}
		var got AuthorityTier
		if err := got.UnmarshalText(b); err != nil {
			t.Fatalf("UnmarshalText: %v", err)
		}
		if got != tier {
			t.Errorf("round trip %s = %s", tier, got)
		}
	}
}

func TestSpanOverlaps(t *testing.T) {
	a := Span{Start: 0, End: 10}
	if !a.Overlaps(Span{Start: 9, End: 12}) {
		t.Error("expected overlap")
	}
	if a.Overlaps(Span{Start: 10, End: 12}) {
		t.Error("adjacent spans must not overlap")
	}
}

func TestDefaultWeightsSumToOne(t *testing.T) {
	w := DefaultConfig().Scoring.Weights
	sum := w.SourceReliability + w.FactVerification + w.DomainExpertise +
		w.ResponseCompleteness + w.HallucinationRisk + w.ContextualAccuracy
	if sum < 0.999 || sum > 1.001 {
		t.Errorf("default weights sum to %f", sum)
	}
}
