package model

import "strings"

// Factor names used as keys in ConfidenceResult.FactorBreakdown and in the weight table
const (
	FactorSourceReliability    = "source_reliability"
	FactorFactVerification     = "fact_verification"
	FactorDomainExpertise      = "domain_expertise"
	FactorResponseCompleteness = "response_completeness"
	FactorHallucinationRisk    = "hallucination_risk"
	FactorContextualAccuracy   = "contextual_accuracy"
)

// FactorNames lists the six scoring factors in a stable order
func FactorNames() []string {
	return []string{
		FactorSourceReliability,
		FactorFactVerification,
		FactorDomainExpertise,
		FactorResponseCompleteness,
		FactorHallucinationRisk,
		FactorContextualAccuracy,
	}
}

// ConfidenceFactors are the six sub-scores fused by the scorer, each nominally in [0,1].
// HallucinationRisk is a risk, not a confidence: the scorer inverts it before weighting.
type ConfidenceFactors struct {
	SourceReliability    float64 `json:"source_reliability"`
	FactVerification     float64 `json:"fact_verification"`
	DomainExpertise      float64 `json:"domain_expertise"`
	ResponseCompleteness float64 `json:"response_completeness"`
	HallucinationRisk    float64 `json:"hallucination_risk"`
	ContextualAccuracy   float64 `json:"contextual_accuracy"`
}

// Get returns the factor value by name
func (f ConfidenceFactors) Get(name string) (float64, bool) {
	switch name {
	case FactorSourceReliability:
		return f.SourceReliability, true
	case FactorFactVerification:
		return f.FactVerification, true
	case FactorDomainExpertise:
		return f.DomainExpertise, true
	case FactorResponseCompleteness:
		return f.ResponseCompleteness, true
	case FactorHallucinationRisk:
		return f.HallucinationRisk, true
	case FactorContextualAccuracy:
		return f.ContextualAccuracy, true
	}
	return 0, false
}

// ScoringContext carries the optional caller context and detector output into the scorer
type ScoringContext struct {
	Domain                      string         `json:"domain,omitempty"`
	UserRole                    string         `json:"user_role,omitempty"`
	HallucinationPenalty        int            `json:"hallucination_penalty,omitempty"`
	HallucinationRecommendation Recommendation `json:"hallucination_recommendation,omitempty"`
}

// ConfidenceLevel is the discrete band a score falls into
type ConfidenceLevel string

const (
	LevelVeryLow  ConfidenceLevel = "very_low"  // 0-20
	LevelLow      ConfidenceLevel = "low"       // 21-40
	LevelMedium   ConfidenceLevel = "medium"    // 41-60
	LevelHigh     ConfidenceLevel = "high"      // 61-80
	LevelVeryHigh ConfidenceLevel = "very_high" // 81-100
)

// LevelForScore returns the band containing score. Negative scores fall in very_low and
// scores above 100 in very_high.
func LevelForScore(score int) ConfidenceLevel {
	switch {
	case score <= 20:
		return LevelVeryLow
	case score <= 40:
		return LevelLow
	case score <= 60:
		return LevelMedium
	case score <= 80:
		return LevelHigh
	default:
		return LevelVeryHigh
	}
}

// Recommendation describes how a scored response may be used
type Recommendation string

const (
	RecommendSafe                Recommendation = "safe_with_attribution"
	RecommendStandardDisclaimers Recommendation = "present_with_standard_disclaimers"
	RecommendStrongDisclaimers   Recommendation = "present_with_strong_disclaimers"
	RecommendDoNotPresent        Recommendation = "do_not_present"
	RecommendEscalate            Recommendation = "escalate"
)

// Caution orders recommendations from least to most cautious. Unknown values rank as escalate.
func (r Recommendation) Caution() int {
	switch r {
	case RecommendSafe:
		return 0
	case RecommendStandardDisclaimers:
		return 1
	case RecommendStrongDisclaimers:
		return 2
	case RecommendDoNotPresent:
		return 3
	case "":
		return -1
	default:
		return 4
	}
}

// AtLeast reports whether r is at least as cautious as other
func (r Recommendation) AtLeast(other Recommendation) bool {
	return r.Caution() >= other.Caution()
}

// Human returns the recommendation as readable words ("present with strong disclaimers")
func (r Recommendation) Human() string {
	return strings.ReplaceAll(string(r), "_", " ")
}

// MoreCautious returns whichever recommendation is more cautious
func MoreCautious(a, b Recommendation) Recommendation {
	if b.Caution() > a.Caution() {
		return b
	}
	return a
}

// Adjustment is one contextual correction applied after the weighted sum
type Adjustment struct {
	Name   string `json:"name"`
	Delta  int    `json:"delta"` // Points actually applied after clamping
	Reason string `json:"reason,omitempty"`
}

// ConfidenceResult is the final scored output for one response.
// Level is always LevelForScore(Score).
type ConfidenceResult struct {
	Score           int                `json:"score"`
	Level           ConfidenceLevel    `json:"level"`
	FactorBreakdown map[string]float64 `json:"factor_breakdown"`
	Recommendation  Recommendation     `json:"recommendation"`
	Adjustments     []Adjustment       `json:"adjustments,omitempty"`
	Fallback        bool               `json:"fallback,omitempty"` // Documented zero-confidence default was used
	Notes           []string           `json:"notes,omitempty"`
}

// AdjustmentKey is the breakdown key an adjustment is recorded under
func AdjustmentKey(name string) string {
	return "adjustment:" + name
}
