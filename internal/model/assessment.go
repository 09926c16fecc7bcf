package model

import "time"

// Request is one response to score, as supplied by the upstream generator
type Request struct {
	ID       string   `json:"id,omitempty"` // Caller correlation id, echoed back in batch output
	Text     string   `json:"text"`
	Domain   string   `json:"domain"`
	Sources  []string `json:"sources,omitempty"`
	UserRole string   `json:"user_role,omitempty"`
}

// Assessment is the full output of scoring one response
type Assessment struct {
	ID            string               `json:"id"`
	RequestID     string               `json:"request_id,omitempty"`
	Domain        string               `json:"domain"`
	Pack          string               `json:"pack"` // Domain pack that served the request
	UserRole      string               `json:"user_role,omitempty"`
	TextHash      string               `json:"text_hash"`
	Text          string               `json:"text,omitempty"`
	Claims        []Claim              `json:"claims"`
	Verifications []VerificationResult `json:"verifications"`
	Sources       SourceReport         `json:"sources"`
	Hallucination HallucinationReport  `json:"hallucination"`
	Factors       ConfidenceFactors    `json:"factors"`
	Result        ConfidenceResult     `json:"result"`
	ScoredAt      time.Time            `json:"scored_at"`
	Duration      time.Duration        `json:"duration_ns"`
	Explanation   string               `json:"explanation,omitempty"`
	Warnings      []string             `json:"warnings,omitempty"`
}

// Counts returns the number of verified, contradicted and unverified claims
func (a *Assessment) Counts() (verified, contradicted, unverified int) {
	for _, v := range a.Verifications {
		switch v.Status() {
		case StatusVerified:
			verified++
		case StatusContradicted:
			contradicted++
		default:
			unverified++
		}
	}
	return
}
