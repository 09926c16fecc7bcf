package extract

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ppiankov/credence/internal/domain"
	"github.com/ppiankov/credence/internal/metrics"
	"github.com/ppiankov/credence/internal/model"
	"go.uber.org/zap"
)

// ClaimExtractor turns response text into a deduplicated list of claims
type ClaimExtractor struct {
	rules  *Registry
	packs  *domain.Registry
	logger *zap.Logger

	mu     sync.Mutex
	loaded map[string]bool // Packs whose rules are registered
}

// NewClaimExtractor creates an extractor over the built-in rules plus the rules of each pack
func NewClaimExtractor(packs *domain.Registry, logger *zap.Logger) *ClaimExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClaimExtractor{
		rules:  NewDefaultRegistry(),
		packs:  packs,
		logger: logger,
		loaded: make(map[string]bool),
	}
}

// Extract returns the claims found in text for a domain. It never fails:
// a rule that errors or panics is skipped and logged, and empty input yields no claims.
func (e *ClaimExtractor) Extract(text, domainName string) []model.Claim {
	claims := []model.Claim{}
	if strings.TrimSpace(text) == "" {
		return claims
	}

	packName := ""
	if e.packs != nil {
		pack := e.packs.Lookup(domainName)
		packName = pack.Name
		e.loadPackRules(pack)
	}

	for _, rule := range e.rules.Rules(packName) {
		matches, err := runRule(rule, text)
		if err != nil {
			metrics.RuleFailures.WithLabelValues(rule.Name).Inc()
			e.logger.Warn("extraction rule failed",
				zap.String("rule", rule.Name),
				zap.String("domain", packName),
				zap.Error(err))
			continue
		}
		for _, m := range matches {
			if m.Span.Start < 0 || m.Span.End > len(text) || m.Span.Len() <= 0 {
				continue
			}
			claims = append(claims, model.Claim{
				Text:     text[m.Span.Start:m.Span.End],
				Kind:     rule.Kind,
				Domain:   packName,
				Span:     m.Span,
				Rule:     rule.Name,
				Value:    m.Value,
				Unit:     m.Unit,
				HasValue: m.HasValue,
			})
		}
	}

	claims = dedupeClaims(removeOverlaps(claims))
	sort.SliceStable(claims, func(i, j int) bool {
		if claims[i].Span.Start != claims[j].Span.Start {
			return claims[i].Span.Start < claims[j].Span.Start
		}
		return kindOrder(claims[i].Kind) < kindOrder(claims[j].Kind)
	})

	sentences := Sentences(text)
	for i := range claims {
		idx := SentenceIndex(sentences, claims[i].Span.Start)
		claims[i].Sentence = idx
		if idx >= 0 {
			s := sentences[idx]
			claims[i].Context = text[s.Start:s.End]
		}
	}

	return claims
}

// loadPackRules registers the pack's extra rules once
func (e *ClaimExtractor) loadPackRules(pack *domain.Pack) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.loaded[pack.Name] {
		return
	}
	e.loaded[pack.Name] = true

	for _, rs := range pack.Rules {
		rule := PatternRule(rs.Name, pack.Name, rs.Kind, rs.Pattern, rs.Unit)
		if err := e.rules.Register(rule); err != nil {
			e.logger.Warn("pack rule not registered",
				zap.String("rule", rs.Name),
				zap.String("domain", pack.Name),
				zap.Error(err))
		}
	}
}

// runRule isolates a rule so a panic cannot abort extraction
func runRule(rule Rule, text string) (matches []Match, err error) {
	defer func() {
		if r := recover(); r != nil {
			matches = nil
			err = fmt.Errorf("rule %s panicked: %v", rule.Name, r)
		}
	}()
	return rule.Match(text)
}

// removeOverlaps keeps, within each kind, the earliest claim and drops any claim
// overlapping one already kept. Ties on start go to the longer span.
func removeOverlaps(claims []model.Claim) []model.Claim {
	byKind := make(map[model.ClaimKind][]model.Claim)
	for _, c := range claims {
		byKind[c.Kind] = append(byKind[c.Kind], c)
	}

	var out []model.Claim
	for _, kind := range model.ClaimKinds() {
		group := byKind[kind]
		sort.SliceStable(group, func(i, j int) bool {
			if group[i].Span.Start != group[j].Span.Start {
				return group[i].Span.Start < group[j].Span.Start
			}
			return group[i].Span.Len() > group[j].Span.Len()
		})

		lastEnd := -1
		for _, c := range group {
			if c.Span.Start < lastEnd {
				continue
			}
			out = append(out, c)
			lastEnd = c.Span.End
		}
	}
	return out
}

// dedupeClaims removes repeated claims of the same kind and text
func dedupeClaims(claims []model.Claim) []model.Claim {
	seen := make(map[string]bool)
	unique := make([]model.Claim, 0, len(claims))

	for _, claim := range claims {
		key := string(claim.Kind) + "|" + strings.ToLower(strings.TrimSpace(claim.Text))
		if !seen[key] {
			seen[key] = true
			unique = append(unique, claim)
		}
	}

	return unique
}

func kindOrder(k model.ClaimKind) int {
	for i, kind := range model.ClaimKinds() {
		if kind == k {
			return i
		}
	}
	return len(model.ClaimKinds())
}
