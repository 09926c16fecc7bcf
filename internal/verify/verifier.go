package verify

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ppiankov/credence/internal/domain"
	"github.com/ppiankov/credence/internal/metrics"
	"github.com/ppiankov/credence/internal/model"
)

// Verifier checks claims against the authority list and known facts of a domain
type Verifier struct {
	cfg       model.VerifyConfig
	authority *AuthorityMatcher
	knowledge *KnowledgeBase
	prober    *Prober
	logger    *zap.Logger

	// lookup is the fact lookup; replaced in tests to exercise failure paths
	lookup func(domainName string, claim model.Claim) (domain.Fact, bool, bool)
}

// NewVerifier creates a verifier without network probing
func NewVerifier(packs *domain.Registry, cfg model.VerifyConfig, logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	kb := NewKnowledgeBase(packs)
	return &Verifier{
		cfg:       cfg,
		authority: NewAuthorityMatcher(packs, cfg.UnknownReliability),
		knowledge: kb,
		logger:    logger,
		lookup:    kb.Lookup,
	}
}

// WithProber enables reachability probing of cited sources
func (v *Verifier) WithProber(p *Prober) *Verifier {
	v.prober = p
	return v
}

// Sources classifies the cited sources and, when a prober is set, folds in their reachability
func (v *Verifier) Sources(ctx context.Context, domainName string, sources []string) model.SourceReport {
	report := v.authority.Check(domainName, sources)
	if v.prober == nil || len(report.Checks) == 0 {
		return report
	}

	names := make([]string, len(report.Checks))
	for i, c := range report.Checks {
		names[i] = c.Source
	}
	results := v.prober.Probe(ctx, names)
	return v.prober.Apply(report, results, v.cfg.UnknownReliability)
}

// VerifyClaim verifies one claim against freshly classified sources
func (v *Verifier) VerifyClaim(ctx context.Context, claim model.Claim, domainName string, sources []string) model.VerificationResult {
	return v.Verify(ctx, claim, domainName, v.Sources(ctx, domainName, sources))
}

// Verify decides one claim. A known fact confirms or contradicts it; otherwise it is
// unverified with a confidence that grows with the best cited source. Failures yield a
// degraded unverified result instead of an error.
func (v *Verifier) Verify(ctx context.Context, claim model.Claim, domainName string, report model.SourceReport) (result model.VerificationResult) {
	defer func() {
		if r := recover(); r != nil {
			result = v.degraded(claim, fmt.Errorf("verification panicked: %v", r))
		}
		metrics.Verifications.WithLabelValues(string(result.Status())).Inc()
	}()

	if err := ctx.Err(); err != nil {
		return v.degraded(claim, err)
	}

	if fact, verified, ok := v.lookup(domainName, claim); ok {
		if verified {
			result = model.NewVerified(claim, fact.Citation, fact.Confidence)
			result.Reason = fmt.Sprintf("matches %s", fact.Description)
		} else {
			result = model.NewContradicted(claim, fact.Citation, fact.Confidence)
			result.Reason = fmt.Sprintf("conflicts with %s", fact.Description)
		}
		result.FactID = fact.ID
		return result
	}

	best, found := report.Best()
	source := ""
	bestReliability := 0.0
	if found {
		source = best.Authority
		bestReliability = best.Reliability
	}
	confidence := clamp01(v.cfg.UnverifiedBase + v.cfg.UnverifiedSourceWeight*bestReliability)
	result = model.NewUnverified(claim, source, confidence)
	result.Reason = "no known fact covers this claim"
	return result
}

// VerifyAll verifies each claim independently, preserving order
func (v *Verifier) VerifyAll(ctx context.Context, claims []model.Claim, domainName string, report model.SourceReport) []model.VerificationResult {
	results := make([]model.VerificationResult, len(claims))
	for i, c := range claims {
		results[i] = v.Verify(ctx, c, domainName, report)
	}
	return results
}

func (v *Verifier) degraded(claim model.Claim, err error) model.VerificationResult {
	v.logger.Warn("claim verification degraded",
		zap.String("claim", claim.Text),
		zap.Error(err))
	r := model.NewUnverified(claim, "", v.cfg.DegradedConfidence)
	r.Error = err.Error()
	return r
}
