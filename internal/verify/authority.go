package verify

import (
	"strings"

	"github.com/ppiankov/credence/internal/domain"
	"github.com/ppiankov/credence/internal/model"
)

// AuthorityMatcher classifies cited sources against a domain's authority list
type AuthorityMatcher struct {
	packs              *domain.Registry
	unknownReliability float64
}

// NewAuthorityMatcher creates a matcher. Sources on no list get unknownReliability.
func NewAuthorityMatcher(packs *domain.Registry, unknownReliability float64) *AuthorityMatcher {
	return &AuthorityMatcher{
		packs:              packs,
		unknownReliability: clamp01(unknownReliability),
	}
}

// Classify checks one source. Primary authorities are tried before secondary ones
// and the first containing match wins.
func (m *AuthorityMatcher) Classify(pack *domain.Pack, source string) model.SourceCheck {
	check := model.SourceCheck{
		Source:       source,
		Tier:         model.TierUnknown,
		Reliability:  m.unknownReliability,
		Reachability: model.ReachSkipped,
	}
	if pack == nil {
		return check
	}

	lower := strings.ToLower(source)
	auths, tiers := pack.AllAuthorities()
	for i, a := range auths {
		if strings.Contains(lower, strings.ToLower(a.Match)) {
			check.Authority = a.Name
			check.Tier = tiers[i]
			check.Reliability = a.Reliability
			return check
		}
	}
	return check
}

// Check classifies every distinct source cited for a domain. With no sources the
// report has zero coverage and zero reliability.
func (m *AuthorityMatcher) Check(domainName string, sources []string) model.SourceReport {
	report := model.SourceReport{Checks: []model.SourceCheck{}}

	unique := dedupeSources(sources)
	if len(unique) == 0 {
		return report
	}

	pack := m.packs.Lookup(domainName)
	matched := 0
	for _, s := range unique {
		check := m.Classify(pack, s)
		if check.Tier != model.TierUnknown {
			matched++
		}
		report.Checks = append(report.Checks, check)
	}

	report.Coverage = float64(matched) / float64(len(unique))
	report.Reliability = meanReliability(report.Checks)
	return report
}

// dedupeSources trims sources and drops blanks and case-insensitive repeats
func dedupeSources(sources []string) []string {
	seen := make(map[string]bool, len(sources))
	out := make([]string, 0, len(sources))
	for _, s := range sources {
		s = strings.TrimSpace(s)
		key := strings.ToLower(strings.TrimSuffix(s, "/"))
		if s == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

func meanReliability(checks []model.SourceCheck) float64 {
	if len(checks) == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range checks {
		sum += c.Reliability
	}
	return sum / float64(len(checks))
}

func clamp01(v float64) float64 {
	switch {
	case v != v || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
