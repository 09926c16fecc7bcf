package score

import (
	"math"
	"testing"

	"github.com/ppiankov/credence/internal/model"
)

func newTestScorer() *Scorer {
	return NewScorer(model.DefaultConfig().Scoring)
}

func perfectFactors() model.ConfidenceFactors {
	return model.ConfidenceFactors{
		SourceReliability:    1,
		FactVerification:     1,
		DomainExpertise:      1,
		ResponseCompleteness: 1,
		HallucinationRisk:    0,
		ContextualAccuracy:   1,
	}
}

func TestScorer_BreachNotificationScenario(t *testing.T) {
	factors := model.ConfidenceFactors{
		SourceReliability:    0.95,
		FactVerification:     1,
		DomainExpertise:      0.9,
		ResponseCompleteness: 1,
		HallucinationRisk:    0,
		ContextualAccuracy:   1,
	}

	result := newTestScorer().Score(factors, model.ScoringContext{Domain: "gdpr"})

	if result.Score != 87 {
		t.Errorf("Score = %d, want 87", result.Score)
	}
	if result.Level != model.LevelVeryHigh {
		t.Errorf("Level = %s, want very_high", result.Level)
	}
	if result.Recommendation != model.RecommendSafe {
		t.Errorf("Recommendation = %s, want safe", result.Recommendation)
	}
	if len(result.Adjustments) != 1 || result.Adjustments[0].Name != AdjustRegulated || result.Adjustments[0].Delta != -10 {
		t.Errorf("Expected a single -10 regulated adjustment, got %+v", result.Adjustments)
	}
}

func TestScorer_Adjustments(t *testing.T) {
	scorer := newTestScorer()

	tests := []struct {
		name    string
		factors model.ConfidenceFactors
		ctx     model.ScoringContext
		score   int
		level   model.ConfidenceLevel
		adjust  []string
	}{
		{
			name:    "perfect generic response",
			factors: perfectFactors(),
			ctx:     model.ScoringContext{Domain: "generic"},
			score:   100,
			level:   model.LevelVeryHigh,
		},
		{
			name:    "regulated domain floors at threshold",
			factors: model.ConfidenceFactors{SourceReliability: 1, FactVerification: 1, DomainExpertise: 0.8, ResponseCompleteness: 1, ContextualAccuracy: 0.6},
			ctx:     model.ScoringContext{Domain: "HIPAA"},
			score:   85,
			level:   model.LevelVeryHigh,
			adjust:  []string{AdjustRegulated},
		},
		{
			name:    "regulated domain at threshold untouched",
			factors: model.ConfidenceFactors{SourceReliability: 0.4, FactVerification: 1, DomainExpertise: 1, ResponseCompleteness: 1, ContextualAccuracy: 1},
			ctx:     model.ScoringContext{Domain: "gdpr"},
			score:   85,
			level:   model.LevelVeryHigh,
		},
		{
			name:    "compliance officer below seventy",
			factors: model.ConfidenceFactors{SourceReliability: 0.5, FactVerification: 0.5, DomainExpertise: 0.5, ResponseCompleteness: 0.5, HallucinationRisk: 0.5, ContextualAccuracy: 0.5},
			ctx:     model.ScoringContext{Domain: "generic", UserRole: "compliance_officer"},
			score:   35,
			level:   model.LevelLow,
			adjust:  []string{AdjustEscalation},
		},
		{
			name:    "other roles unaffected",
			factors: model.ConfidenceFactors{SourceReliability: 0.5, FactVerification: 0.5, DomainExpertise: 0.5, ResponseCompleteness: 0.5, HallucinationRisk: 0.5, ContextualAccuracy: 0.5},
			ctx:     model.ScoringContext{Domain: "generic", UserRole: "analyst"},
			score:   50,
			level:   model.LevelMedium,
		},
		{
			name:    "hallucination penalty clamps at zero",
			factors: model.ConfidenceFactors{SourceReliability: 0, FactVerification: 0.15, DomainExpertise: 0.9, ResponseCompleteness: 1, HallucinationRisk: 0.8, ContextualAccuracy: 1},
			ctx:     model.ScoringContext{Domain: "gdpr", HallucinationPenalty: 50, HallucinationRecommendation: model.RecommendDoNotPresent},
			score:   0,
			level:   model.LevelVeryLow,
			adjust:  []string{AdjustHallucination},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := scorer.Score(tt.factors, tt.ctx)
			if result.Score != tt.score {
				t.Errorf("Score = %d, want %d (breakdown %v)", result.Score, tt.score, result.FactorBreakdown)
			}
			if result.Level != tt.level {
				t.Errorf("Level = %s, want %s", result.Level, tt.level)
			}
			if len(result.Adjustments) != len(tt.adjust) {
				t.Fatalf("Adjustments = %+v, want %v", result.Adjustments, tt.adjust)
			}
			for i, name := range tt.adjust {
				if result.Adjustments[i].Name != name {
					t.Errorf("Adjustment %d = %s, want %s", i, result.Adjustments[i].Name, name)
				}
			}
		})
	}
}

func TestScorer_BreakdownSumsToScore(t *testing.T) {
	scorer := newTestScorer()
	cases := []struct {
		factors model.ConfidenceFactors
		ctx     model.ScoringContext
	}{
		{perfectFactors(), model.ScoringContext{Domain: "gdpr"}},
		{model.ConfidenceFactors{SourceReliability: 0.3, FactVerification: 0.7, DomainExpertise: 0.9, ResponseCompleteness: 0.4, HallucinationRisk: 0.4, ContextualAccuracy: 0.5}, model.ScoringContext{UserRole: "compliance_officer", HallucinationPenalty: 20}},
		{model.ConfidenceFactors{SourceReliability: 0.1, FactVerification: 0.2, DomainExpertise: 0.3}, model.ScoringContext{Domain: "pci-dss", HallucinationPenalty: 80}},
	}

	for i, c := range cases {
		result := scorer.Score(c.factors, c.ctx)
		sum := 0.0
		for _, v := range result.FactorBreakdown {
			sum += v
		}
		if diff := sum - float64(result.Score); diff < -0.01 || diff >= 1 {
			t.Errorf("case %d: breakdown sums to %v, score %d", i, sum, result.Score)
		}
	}
}

func TestScorer_ClampsOutOfRangeFactors(t *testing.T) {
	scorer := newTestScorer()
	values := []float64{-5, -0.1, 0, 0.5, 1, 1.7, 1e9}

	for _, a := range values {
		for _, b := range values {
			f := model.ConfidenceFactors{
				SourceReliability:    a,
				FactVerification:     b,
				DomainExpertise:      a,
				ResponseCompleteness: b,
				HallucinationRisk:    a,
				ContextualAccuracy:   b,
			}
			result := scorer.Score(f, model.ScoringContext{Domain: "gdpr", UserRole: "compliance_officer"})
			if result.Score < 0 || result.Score > 100 {
				t.Fatalf("Score %d out of range for %v/%v", result.Score, a, b)
			}
			if result.Fallback {
				t.Fatalf("Finite factors must not fall back (%v/%v)", a, b)
			}
			if result.Level != model.LevelForScore(result.Score) {
				t.Fatalf("Level %s does not match score %d", result.Level, result.Score)
			}
		}
	}

	result := scorer.Score(model.ConfidenceFactors{SourceReliability: 3, FactVerification: 1, DomainExpertise: 1, ResponseCompleteness: 1, ContextualAccuracy: 1}, model.ScoringContext{})
	if result.Score != 100 || len(result.Notes) != 1 {
		t.Errorf("Expected clamped perfect score with one note, got %d %v", result.Score, result.Notes)
	}
}

func TestScorer_Fallback(t *testing.T) {
	tests := []struct {
		name    string
		weights model.WeightConfig
		factors model.ConfidenceFactors
	}{
		{"nan factor", model.DefaultConfig().Scoring.Weights, model.ConfidenceFactors{FactVerification: math.NaN()}},
		{"infinite factor", model.DefaultConfig().Scoring.Weights, model.ConfidenceFactors{SourceReliability: math.Inf(1)}},
		{"zero weights", model.WeightConfig{}, perfectFactors()},
		{"negative weights", model.WeightConfig{SourceReliability: -1, FactVerification: -2}, perfectFactors()},
		{"infinite weight", model.WeightConfig{FactVerification: math.Inf(1)}, perfectFactors()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := model.DefaultConfig().Scoring
			cfg.Weights = tt.weights
			result := NewScorer(cfg).Score(tt.factors, model.ScoringContext{})

			if !result.Fallback || result.Score != 0 || result.Level != model.LevelVeryLow || result.Recommendation != model.RecommendEscalate {
				t.Errorf("Expected documented fallback, got %+v", result)
			}
		})
	}
}

func TestScorer_RenormalisesWeights(t *testing.T) {
	cfg := model.DefaultConfig().Scoring
	cfg.Weights = model.WeightConfig{FactVerification: 2, SourceReliability: 2, DomainExpertise: math.NaN()}
	result := NewScorer(cfg).Score(model.ConfidenceFactors{FactVerification: 1, SourceReliability: 0.5}, model.ScoringContext{})

	if result.Score != 75 {
		t.Errorf("Score = %d, want 75", result.Score)
	}
}

func TestScorer_Idempotent(t *testing.T) {
	scorer := newTestScorer()
	f := model.ConfidenceFactors{SourceReliability: 0.42, FactVerification: 0.77, DomainExpertise: 0.9, ResponseCompleteness: 0.6, HallucinationRisk: 0.15, ContextualAccuracy: 0.5}
	ctx := model.ScoringContext{Domain: "gdpr", UserRole: "compliance_officer", HallucinationPenalty: 20}

	a := scorer.Score(f, ctx)
	b := scorer.Score(f, ctx)
	if a.Score != b.Score || a.Recommendation != b.Recommendation || len(a.FactorBreakdown) != len(b.FactorBreakdown) {
		t.Errorf("Scoring is not deterministic: %+v vs %+v", a, b)
	}
	for k, v := range a.FactorBreakdown {
		if b.FactorBreakdown[k] != v {
			t.Errorf("Breakdown %s differs: %v vs %v", k, v, b.FactorBreakdown[k])
		}
	}
}

func TestRecommendationForLevel(t *testing.T) {
	tests := []struct {
		level model.ConfidenceLevel
		want  model.Recommendation
	}{
		{model.LevelVeryHigh, model.RecommendSafe},
		{model.LevelHigh, model.RecommendSafe},
		{model.LevelMedium, model.RecommendStandardDisclaimers},
		{model.LevelLow, model.RecommendStrongDisclaimers},
		{model.LevelVeryLow, model.RecommendEscalate},
	}
	for _, tt := range tests {
		if got := RecommendationForLevel(tt.level); got != tt.want {
			t.Errorf("RecommendationForLevel(%s) = %s, want %s", tt.level, got, tt.want)
		}
	}
}

func TestLowInformation(t *testing.T) {
	r := LowInformation("empty response")
	if r.Score != 0 || r.Level != model.LevelVeryLow || r.Recommendation != model.RecommendEscalate || r.Fallback {
		t.Errorf("Unexpected low-information result %+v", r)
	}
	if r.FactorBreakdown == nil {
		t.Error("Breakdown should be non-nil")
	}
}
