package score

import (
	"fmt"
	"math"
	"strings"

	"github.com/ppiankov/credence/internal/model"
)

// Adjustment names, in the order they are applied
const (
	AdjustHallucination = "hallucination_penalty"

	// AdjustRegulated takes up to RegulatedPenalty points off scores above
	// RegulatedThreshold but never pushes them below the threshold, so a fully
	// verified regulated answer keeps its very_high level.
	AdjustRegulated = "regulated_domain"

	AdjustEscalation = "escalation_role"
)

// Scorer fuses confidence factors into a single score. It holds no mutable state:
// the same factors and context always produce the same result.
type Scorer struct {
	cfg model.ScoringConfig
}

// NewScorer creates a scorer with the given weights and adjustments
func NewScorer(cfg model.ScoringConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score calculates the confidence result. Factors outside [0,1] are clamped and noted.
// Non-finite factors or unusable weights yield the Fallback result.
func (s *Scorer) Score(factors model.ConfidenceFactors, sc model.ScoringContext) model.ConfidenceResult {
	weights, err := s.normalizedWeights()
	if err != nil {
		return Fallback(err.Error())
	}

	var notes []string
	breakdown := make(map[string]float64, len(weights)+3)
	raw := 0.0

	for _, name := range model.FactorNames() {
		v, _ := factors.Get(name)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Fallback(fmt.Sprintf("factor %s is not a number", name))
		}
		if c := clamp01(v); c != v {
			notes = append(notes, fmt.Sprintf("%s clamped from %g to %g", name, v, c))
			v = c
		}
		if name == model.FactorHallucinationRisk {
			v = 1 - v
		}
		contribution := weights[name] * v
		breakdown[name] = round4(contribution * 100)
		raw += contribution
	}

	score := clampScore(int(math.Floor(raw*100 + 1e-9)))
	result := model.ConfidenceResult{FactorBreakdown: breakdown, Notes: notes}

	apply := func(name, reason string, target int) {
		target = clampScore(target)
		delta := target - score
		result.Adjustments = append(result.Adjustments, model.Adjustment{Name: name, Delta: delta, Reason: reason})
		breakdown[model.AdjustmentKey(name)] = float64(delta)
		score = target
	}

	adj := s.cfg.Adjustments
	if adj.HallucinationPenalty && sc.HallucinationPenalty > 0 {
		apply(AdjustHallucination,
			fmt.Sprintf("hallucination findings cost %d points", sc.HallucinationPenalty),
			score-sc.HallucinationPenalty)
	}
	if containsFold(adj.RegulatedDomains, sc.Domain) && score > adj.RegulatedThreshold {
		target := score - adj.RegulatedPenalty
		if target < adj.RegulatedThreshold {
			target = adj.RegulatedThreshold
		}
		apply(AdjustRegulated,
			fmt.Sprintf("%s is a regulated domain; scores above %d are reduced", sc.Domain, adj.RegulatedThreshold),
			target)
	}
	if containsFold(adj.EscalationRoles, sc.UserRole) && score < adj.EscalationThreshold {
		apply(AdjustEscalation,
			fmt.Sprintf("borderline answers for %s are pushed toward escalation", sc.UserRole),
			score-adj.EscalationPenalty)
	}

	result.Score = score
	result.Level = model.LevelForScore(score)
	result.Recommendation = model.MoreCautious(RecommendationForLevel(result.Level), sc.HallucinationRecommendation)
	return result
}

// normalizedWeights maps factor names to weights summing to 1. Negative or NaN
// weights count as zero.
func (s *Scorer) normalizedWeights() (map[string]float64, error) {
	w := s.cfg.Weights
	raw := map[string]float64{
		model.FactorSourceReliability:    w.SourceReliability,
		model.FactorFactVerification:     w.FactVerification,
		model.FactorDomainExpertise:      w.DomainExpertise,
		model.FactorResponseCompleteness: w.ResponseCompleteness,
		model.FactorHallucinationRisk:    w.HallucinationRisk,
		model.FactorContextualAccuracy:   w.ContextualAccuracy,
	}

	total := 0.0
	for name, v := range raw {
		if math.IsInf(v, 0) {
			return nil, fmt.Errorf("weight %s is infinite", name)
		}
		if math.IsNaN(v) || v < 0 {
			raw[name] = 0
			continue
		}
		total += v
	}
	if total <= 0 {
		return nil, fmt.Errorf("all weights are zero")
	}

	for name := range raw {
		raw[name] /= total
	}
	return raw, nil
}

// RecommendationForLevel maps a confidence band to its default recommendation
func RecommendationForLevel(level model.ConfidenceLevel) model.Recommendation {
	switch level {
	case model.LevelVeryHigh, model.LevelHigh:
		return model.RecommendSafe
	case model.LevelMedium:
		return model.RecommendStandardDisclaimers
	case model.LevelLow:
		return model.RecommendStrongDisclaimers
	default:
		return model.RecommendEscalate
	}
}

// LowInformation is the documented result for a response with nothing to score
func LowInformation(reason string) model.ConfidenceResult {
	return model.ConfidenceResult{
		Score:           0,
		Level:           model.LevelVeryLow,
		FactorBreakdown: map[string]float64{},
		Recommendation:  model.RecommendEscalate,
		Notes:           []string{reason},
	}
}

// Fallback is the documented zero-confidence result for malformed input
func Fallback(reason string) model.ConfidenceResult {
	r := LowInformation(reason)
	r.Fallback = true
	return r
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func clampScore(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func containsFold(list []string, s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}
