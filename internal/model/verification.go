package model

// VerificationResult is the outcome of checking one claim against authoritative knowledge.
// Verified and Contradicted are mutually exclusive; a claim that is neither is unverified.
type VerificationResult struct {
	Claim               Claim   `json:"claim"`
	Verified            bool    `json:"verified"`
	Contradicted        bool    `json:"contradicted"`
	AuthoritativeSource string  `json:"authoritative_source,omitempty"`
	Confidence          float64 `json:"confidence"`
	FactID              string  `json:"fact_id,omitempty"` // Known fact that decided the verdict
	Reason              string  `json:"reason,omitempty"`
	Error               string  `json:"error,omitempty"` // Set when verification degraded
}

// VerificationStatus summarises a VerificationResult
type VerificationStatus string

const (
	StatusVerified     VerificationStatus = "verified"
	StatusContradicted VerificationStatus = "contradicted"
	StatusUnverified   VerificationStatus = "unverified"
)

// Status returns the verdict of the result
func (v VerificationResult) Status() VerificationStatus {
	switch {
	case v.Verified:
		return StatusVerified
	case v.Contradicted:
		return StatusContradicted
	default:
		return StatusUnverified
	}
}

// NewVerified builds a confirming result
func NewVerified(claim Claim, source string, confidence float64) VerificationResult {
	return VerificationResult{
		Claim:               claim,
		Verified:            true,
		AuthoritativeSource: source,
		Confidence:          confidence,
	}
}

// NewContradicted builds a contradicting result
func NewContradicted(claim Claim, source string, confidence float64) VerificationResult {
	return VerificationResult{
		Claim:               claim,
		Contradicted:        true,
		AuthoritativeSource: source,
		Confidence:          confidence,
	}
}

// NewUnverified builds a result that neither confirms nor contradicts the claim
func NewUnverified(claim Claim, source string, confidence float64) VerificationResult {
	return VerificationResult{
		Claim:               claim,
		AuthoritativeSource: source,
		Confidence:          confidence,
	}
}

// AuthorityTier represents the classification of source authority
type AuthorityTier int

const (
	TierUnknown   AuthorityTier = 0 // Not on the domain's authority list
	TierPrimary   AuthorityTier = 1 // Regulators, official legal texts, standards bodies
	TierSecondary AuthorityTier = 2 // Reputable commentary, law firm guidance
)

func (t AuthorityTier) String() string {
	switch t {
	case TierPrimary:
		return "primary"
	case TierSecondary:
		return "secondary"
	default:
		return "unknown"
	}
}

// MarshalText renders the tier by name in JSON and YAML
func (t AuthorityTier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText parses "primary", "secondary" or anything else as unknown
func (t *AuthorityTier) UnmarshalText(b []byte) error {
	switch string(b) {
	case "primary", "1":
		*t = TierPrimary
	case "secondary", "2":
		*t = TierSecondary
	default:
		*t = TierUnknown
	}
	return nil
}

// Reachability is the best-effort network state of a cited source
type Reachability string

const (
	ReachSkipped     Reachability = "skipped"     // Probing disabled
	ReachUnknown     Reachability = "unknown"     // Timeout, robots.txt denial, or ceiling hit
	ReachReachable   Reachability = "reachable"   // 2xx/3xx
	ReachUnreachable Reachability = "unreachable" // 404/410 or connection failure
)

// SourceCheck is the authority classification of one cited source
type SourceCheck struct {
	Source       string        `json:"source"`
	Authority    string        `json:"authority,omitempty"` // Matched authority name
	Tier         AuthorityTier `json:"tier"`
	Reliability  float64       `json:"reliability"`
	Reachability Reachability  `json:"reachability"`
	StatusCode   int           `json:"status_code,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// SourceReport aggregates the source checks of one response
type SourceReport struct {
	Checks      []SourceCheck `json:"checks"`
	Coverage    float64       `json:"authoritative_coverage"` // Share of sources on the authority list
	Reliability float64       `json:"reliability"`            // Mean reliability, 0 with no sources
}

// Best returns the most reliable matched source, if any
func (r SourceReport) Best() (SourceCheck, bool) {
	var best SourceCheck
	found := false
	for _, c := range r.Checks {
		if c.Tier == TierUnknown {
			continue
		}
		if !found || c.Reliability > best.Reliability {
			best = c
			found = true
		}
	}
	return best, found
}
