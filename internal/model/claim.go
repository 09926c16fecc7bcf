package model

// Claim represents a discrete, checkable assertion extracted from a response
type Claim struct {
	Text     string    `json:"text"`                // The matched substring
	Kind     ClaimKind `json:"kind"`                // deadline, monetary, statistical, ...
	Domain   string    `json:"domain,omitempty"`    // Regulatory domain the claim was extracted for
	Span     Span      `json:"span"`                // Byte offsets in the scored text
	Rule     string    `json:"rule,omitempty"`      // Which extraction rule matched (e.g., "deadline:within")
	Sentence int       `json:"sentence"`            // Sentence index in source (0-based)
	Context  string    `json:"context,omitempty"`   // The sentence the claim was found in
	Value    float64   `json:"value,omitempty"`     // Parsed quantity (hours, currency units, percent)
	Unit     string    `json:"unit,omitempty"`      // hours, EUR, GBP, USD, percent
	HasValue bool      `json:"has_value,omitempty"` // Whether Value was parsed
}

// Span is a half-open [Start, End) byte range
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Overlaps reports whether two spans share at least one byte
func (s Span) Overlaps(o Span) bool {
	return s.Start < o.End && o.Start < s.End
}

// Len returns the span length in bytes
func (s Span) Len() int {
	return s.End - s.Start
}

// ClaimKind categorizes the nature of the claim
type ClaimKind string

const (
	ClaimDeadline           ClaimKind = "deadline"            // Time limits ("within 72 hours")
	ClaimMonetary           ClaimKind = "monetary"            // Amounts ("€20 million")
	ClaimStatistical        ClaimKind = "statistical"         // Percentages and rates
	ClaimAuthorityReference ClaimKind = "authority-reference" // Legal citations, named regulators
	ClaimRights             ClaimKind = "rights-claim"        // Data subject rights and similar
)

// ClaimKinds lists every claim kind in extraction order
func ClaimKinds() []ClaimKind {
	return []ClaimKind{
		ClaimDeadline,
		ClaimMonetary,
		ClaimStatistical,
		ClaimAuthorityReference,
		ClaimRights,
	}
}

// ParseClaimKind converts a string into a ClaimKind, reporting whether it is known
func ParseClaimKind(s string) (ClaimKind, bool) {
	for _, k := range ClaimKinds() {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}
