package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/credence/internal/cache"
	"github.com/ppiankov/credence/internal/domain"
	"github.com/ppiankov/credence/internal/extract"
	"github.com/ppiankov/credence/internal/hallucination"
	"github.com/ppiankov/credence/internal/metrics"
	"github.com/ppiankov/credence/internal/model"
	"github.com/ppiankov/credence/internal/score"
	"github.com/ppiankov/credence/internal/verify"
)

// Recorder persists scored assessments
type Recorder interface {
	Record(ctx context.Context, a *model.Assessment) error
}

// Explainer produces a plain-language explanation of an assessment
type Explainer interface {
	Explain(ctx context.Context, a *model.Assessment) (string, error)
}

// Pipeline orchestrates extraction, verification, detection and scoring of one response
type Pipeline struct {
	cfg       *model.Config
	packs     *domain.Registry
	extractor *extract.ClaimExtractor
	verifier  *verify.Verifier
	detector  *hallucination.Detector
	scorer    *score.Scorer
	cache     cache.Cache // nil when disabled
	recorder  Recorder    // nil unless history is recorded
	explainer Explainer   // nil unless an LLM provider is configured
	logger    *zap.Logger
}

// Option customises a Pipeline
type Option func(*Pipeline)

// WithCache caches assessments by content hash
func WithCache(c cache.Cache) Option {
	return func(p *Pipeline) { p.cache = c }
}

// WithRecorder persists every assessment
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// WithExplainer attaches an explanation to every assessment. It never affects the score.
func WithExplainer(e Explainer) Option {
	return func(p *Pipeline) { p.explainer = e }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// NewPipeline creates a pipeline over the given packs and configuration
func NewPipeline(cfg *model.Config, packs *domain.Registry, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:    cfg,
		packs:  packs,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.extractor = extract.NewClaimExtractor(packs, p.logger)
	p.verifier = verify.NewVerifier(packs, cfg.Verify, p.logger)
	if cfg.Verify.Reachability.Enabled {
		p.verifier.WithProber(verify.NewProber(cfg.Verify.Reachability, cfg.HTTP, cfg.RateLimiting, cfg.Concurrency.ProbeWorkers, p.logger))
	}
	p.detector = hallucination.NewDetector(cfg.Hallucination, p.logger)
	p.scorer = score.NewScorer(cfg.Scoring)
	return p
}

// Packs returns the domain registry the pipeline scores against
func (p *Pipeline) Packs() *domain.Registry {
	return p.packs
}

// ScoreResponse scores one response. Content problems never produce an error: they
// degrade to conservative results. An error is returned only when ctx is already done.
func (p *Pipeline) ScoreResponse(ctx context.Context, req model.Request) (*model.Assessment, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("score response: %w", err)
	}
	start := time.Now()

	doc := extract.Normalize(req.Text)
	pack := p.packs.Lookup(req.Domain)
	sources := append(append([]string{}, req.Sources...), doc.Links...)

	key := cache.Key("assessment", pack.Name, req.UserRole, doc.Text, strings.Join(sources, "\n"))
	if p.cache != nil {
		var cached model.Assessment
		if cache.GetJSON(p.cache, key, &cached) {
			metrics.CacheLookups.WithLabelValues("hit").Inc()
			cached.RequestID = req.ID
			// The entry may come from a run without an explainer or recorder
			if cached.Explanation == "" && p.explain(ctx, &cached) {
				p.store(key, &cached)
			}
			p.record(ctx, &cached)
			return &cached, nil
		}
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	}

	a := &model.Assessment{
		ID:            uuid.New().String(),
		RequestID:     req.ID,
		Domain:        req.Domain,
		Pack:          pack.Name,
		UserRole:      req.UserRole,
		TextHash:      hashText(doc.Text),
		Claims:        []model.Claim{},
		Verifications: []model.VerificationResult{},
		ScoredAt:      start.UTC(),
	}
	if p.cfg.Output.IncludeText {
		a.Text = doc.Text
	}
	if req.Domain != "" && !pack.Matches(req.Domain) {
		a.Warnings = append(a.Warnings, fmt.Sprintf("unknown domain %q, scored with the %s pack", req.Domain, pack.Name))
	}

	if strings.TrimSpace(doc.Text) == "" {
		a.Sources = p.verifier.Sources(ctx, pack.Name, sources)
		a.Hallucination = p.detector.Detect("")
		a.Result = score.LowInformation("empty response: nothing to score")
	} else {
		p.assess(ctx, a, doc.Text, pack, sources)
	}

	a.Duration = time.Since(start)
	metrics.Assessments.WithLabelValues(pack.Name, string(a.Result.Level)).Inc()
	metrics.Score.Observe(float64(a.Result.Score))
	metrics.ScoringDuration.Observe(a.Duration.Seconds())

	p.explain(ctx, a)
	p.store(key, a)
	p.record(ctx, a)

	p.logger.Debug("scored response",
		zap.String("assessment", a.ID),
		zap.String("pack", pack.Name),
		zap.Int("claims", len(a.Claims)),
		zap.Int("findings", len(a.Hallucination.Findings)),
		zap.Int("score", a.Result.Score),
		zap.Duration("duration", a.Duration))
	return a, nil
}

// explain attaches an explanation and reports whether one was added
func (p *Pipeline) explain(ctx context.Context, a *model.Assessment) bool {
	if p.explainer == nil {
		return false
	}
	explanation, err := p.explainer.Explain(ctx, a)
	if err != nil {
		p.logger.Warn("explanation failed", zap.String("assessment", a.ID), zap.Error(err))
		a.Warnings = appendOnce(a.Warnings, "explanation unavailable")
		return false
	}
	a.Explanation = explanation
	return explanation != ""
}

func (p *Pipeline) store(key string, a *model.Assessment) {
	if p.cache == nil {
		return
	}
	if err := cache.SetJSON(p.cache, key, a, p.cfg.Cache.TTL); err != nil {
		p.logger.Warn("cache write failed", zap.Error(err))
	}
}

// record persists a. Recording the same assessment twice updates the row.
func (p *Pipeline) record(ctx context.Context, a *model.Assessment) {
	if p.recorder == nil {
		return
	}
	if err := p.recorder.Record(ctx, a); err != nil {
		p.logger.Warn("recording assessment failed", zap.String("assessment", a.ID), zap.Error(err))
		a.Warnings = appendOnce(a.Warnings, "assessment was not recorded")
	}
}

func appendOnce(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

// assess runs the scoring stages for non-empty text. Verification and hallucination
// detection are independent and run concurrently.
func (p *Pipeline) assess(ctx context.Context, a *model.Assessment, text string, pack *domain.Pack, sources []string) {
	a.Claims = p.extractor.Extract(text, pack.Name)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Sources = p.verifier.Sources(gctx, pack.Name, sources)
		a.Verifications = p.verifier.VerifyAll(gctx, a.Claims, pack.Name, a.Sources)
		return nil
	})
	g.Go(func() error {
		a.Hallucination = p.detector.Detect(text)
		return nil
	})
	_ = g.Wait()

	a.Factors = DeriveFactors(text, pack, a.Claims, a.Verifications, a.Sources, a.Hallucination, p.cfg.Scoring.MinWords)
	a.Result = p.scorer.Score(a.Factors, model.ScoringContext{
		Domain:                      pack.Name,
		UserRole:                    a.UserRole,
		HallucinationPenalty:        a.Hallucination.Penalty,
		HallucinationRecommendation: a.Hallucination.Recommendation,
	})

	for _, s := range a.Hallucination.Skipped {
		a.Warnings = append(a.Warnings, fmt.Sprintf("hallucination category %s was skipped", s))
	}
	for _, v := range a.Verifications {
		if v.Error != "" {
			a.Warnings = append(a.Warnings, fmt.Sprintf("verification of %q degraded: %s", v.Claim.Text, v.Error))
		}
	}
}

// DeriveFactors turns the stage outputs into the six scoring factors
func DeriveFactors(text string, pack *domain.Pack, claims []model.Claim, verifications []model.VerificationResult,
	sources model.SourceReport, hallucination model.HallucinationReport, minWords int) model.ConfidenceFactors {
	return model.ConfidenceFactors{
		SourceReliability:    sources.Reliability,
		FactVerification:     factVerification(verifications),
		DomainExpertise:      pack.Expertise,
		ResponseCompleteness: completeness(text, claims, minWords),
		HallucinationRisk:    hallucination.RiskScore,
		ContextualAccuracy:   contextualAccuracy(text, pack),
	}
}

// factVerification averages 1 for verified, 0 for contradicted and the confidence of
// unverified claims. No claims means nothing was verified.
func factVerification(results []model.VerificationResult) float64 {
	if len(results) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range results {
		switch r.Status() {
		case model.StatusVerified:
			sum++
		case model.StatusUnverified:
			sum += r.Confidence
		}
	}
	return sum / float64(len(results))
}

// completeness rewards length up to minWords and the share of sentences making a checkable claim
func completeness(text string, claims []model.Claim, minWords int) float64 {
	if minWords <= 0 {
		minWords = 10
	}
	length := math.Min(1, float64(extract.WordCount(text))/float64(minWords))

	sentences := extract.Sentences(text)
	if len(sentences) == 0 {
		return 0.5 * length
	}
	withClaim := make(map[int]bool)
	for _, c := range claims {
		if c.Sentence >= 0 {
			withClaim[c.Sentence] = true
		}
	}
	return 0.5*length + 0.5*float64(len(withClaim))/float64(len(sentences))
}

func contextualAccuracy(text string, pack *domain.Pack) float64 {
	if len(pack.Keywords) == 0 {
		return 0.5
	}
	return math.Min(1, float64(pack.KeywordHits(text))/2)
}

func hashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
