package model

// HallucinationCategory classifies a known fabrication pattern
type HallucinationCategory string

const (
	CategoryRegulatoryFabrication   HallucinationCategory = "regulatory-fabrication"
	CategoryAuthorityMisattribution HallucinationCategory = "authority-misattribution"
	CategoryStatisticalFabrication  HallucinationCategory = "statistical-fabrication"
	CategoryDeadlineFabrication     HallucinationCategory = "deadline-fabrication"
)

// Severity indicates how damaging a finding is
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// HallucinationFinding is a pattern match indicating possible fabrication
type HallucinationFinding struct {
	Category    HallucinationCategory `json:"category"`
	MatchedText string                `json:"matched_text"`
	Position    int                   `json:"position"` // Byte offset of the match
	Severity    Severity              `json:"severity"`
	Penalty     int                   `json:"penalty"`           // Confidence points this category costs
	Pattern     string                `json:"pattern,omitempty"` // Pattern name that matched
}

// HallucinationReport is the response-level output of the detector
type HallucinationReport struct {
	Findings       []HallucinationFinding  `json:"findings"`
	Categories     []HallucinationCategory `json:"categories,omitempty"` // Distinct categories, first-seen order
	RiskScore      float64                 `json:"risk_score"`
	Penalty        int                     `json:"penalty"` // Sum of distinct category penalties
	Recommendation Recommendation          `json:"recommendation"`
	Skipped        []string                `json:"skipped,omitempty"` // Categories that failed and were skipped
}

// HasCategory reports whether at least one finding belongs to the category
func (r HallucinationReport) HasCategory(c HallucinationCategory) bool {
	for _, got := range r.Categories {
		if got == c {
			return true
		}
	}
	return false
}
