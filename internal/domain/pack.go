package domain

import (
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ppiankov/credence/internal/model"
)

// Pack is the static knowledge for one regulatory domain: who is authoritative,
// which facts are known, which extra extraction rules apply and which words signal
// that a response is on topic.
type Pack struct {
	Name        string      `yaml:"name" json:"name"`
	Aliases     []string    `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	Description string      `yaml:"description,omitempty" json:"description,omitempty"`
	Expertise   float64     `yaml:"expertise" json:"expertise"`
	Keywords    []string    `yaml:"keywords,omitempty" json:"keywords,omitempty"`
	Authorities Authorities `yaml:"authorities" json:"authorities"`
	Facts       []Fact      `yaml:"facts,omitempty" json:"facts,omitempty"`
	Rules       []RuleSpec  `yaml:"rules,omitempty" json:"rules,omitempty"`
}

// Authorities is the curated source list of a pack
type Authorities struct {
	Primary   []Authority `yaml:"primary" json:"primary"`
	Secondary []Authority `yaml:"secondary" json:"secondary"`
}

// Authority is one trusted source. Match is tested by case-insensitive containment.
type Authority struct {
	Name        string  `yaml:"name" json:"name"`
	Match       string  `yaml:"match" json:"match"`
	Reliability float64 `yaml:"reliability" json:"reliability"`
}

// Fact is a known-correct value used to confirm or contradict claims.
// Numeric facts carry Values; categorical facts carry Terms.
type Fact struct {
	ID          string          `yaml:"id" json:"id"`
	Kind        model.ClaimKind `yaml:"kind" json:"kind"`
	Description string          `yaml:"description,omitempty" json:"description,omitempty"`
	Keywords    []string        `yaml:"keywords,omitempty" json:"keywords,omitempty"` // Any must occur in the claim sentence; empty matches all
	Values      []float64       `yaml:"values,omitempty" json:"values,omitempty"`
	Unit        string          `yaml:"unit,omitempty" json:"unit,omitempty"`
	Tolerance   float64         `yaml:"tolerance,omitempty" json:"tolerance,omitempty"`
	Terms       []string        `yaml:"terms,omitempty" json:"terms,omitempty"`
	Citation    string          `yaml:"citation" json:"citation"`
	Confidence  float64         `yaml:"confidence" json:"confidence"`
}

// Numeric reports whether the fact compares values rather than terms
func (f Fact) Numeric() bool {
	return len(f.Values) > 0
}

// Applies reports whether the fact speaks about the claim
func (f Fact) Applies(claim model.Claim) bool {
	if f.Kind != claim.Kind {
		return false
	}
	if f.Numeric() && !claim.HasValue {
		return false
	}
	if f.Numeric() && f.Unit != "" && claim.Unit != "" && !strings.EqualFold(f.Unit, claim.Unit) {
		return false
	}
	if len(f.Keywords) == 0 {
		return true
	}
	context := claim.Context
	if context == "" {
		context = claim.Text
	}
	return ContainsAny(context, f.Keywords)
}

// Matches reports whether the claim agrees with the fact
func (f Fact) Matches(claim model.Claim) bool {
	if f.Numeric() {
		for _, v := range f.Values {
			if math.Abs(claim.Value-v) <= f.Tolerance {
				return true
			}
		}
		return false
	}
	text := strings.ToLower(claim.Text)
	for _, term := range f.Terms {
		if strings.Contains(text, strings.ToLower(term)) {
			return true
		}
	}
	return false
}

// RuleSpec is an extra extraction pattern contributed by a pack.
// When Unit is set, the first number in the match becomes the claim value.
type RuleSpec struct {
	Name    string          `yaml:"name" json:"name"`
	Kind    model.ClaimKind `yaml:"kind" json:"kind"`
	Pattern string          `yaml:"pattern" json:"pattern"`
	Unit    string          `yaml:"unit,omitempty" json:"unit,omitempty"`
}

// KeywordHits counts the distinct pack keywords present in text
func (p *Pack) KeywordHits(text string) int {
	hits := 0
	for _, kw := range p.Keywords {
		if ContainsWordPrefix(text, kw) {
			hits++
		}
	}
	return hits
}

// Matches reports whether name refers to this pack by name or alias
func (p *Pack) Matches(name string) bool {
	n := normalize(name)
	if n == p.Name {
		return true
	}
	for _, a := range p.Aliases {
		if normalize(a) == n {
			return true
		}
	}
	return false
}

// AllAuthorities returns primary then secondary authorities with their tiers
func (p *Pack) AllAuthorities() ([]Authority, []model.AuthorityTier) {
	auths := make([]Authority, 0, len(p.Authorities.Primary)+len(p.Authorities.Secondary))
	tiers := make([]model.AuthorityTier, 0, cap(auths))
	for _, a := range p.Authorities.Primary {
		auths = append(auths, a)
		tiers = append(tiers, model.TierPrimary)
	}
	for _, a := range p.Authorities.Secondary {
		auths = append(auths, a)
		tiers = append(tiers, model.TierSecondary)
	}
	return auths, tiers
}

func (p *Pack) validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("pack has no name")
	}
	p.Name = strings.ToLower(strings.TrimSpace(p.Name))
	p.Expertise = clamp01(p.Expertise)

	for i := range p.Authorities.Primary {
		if err := p.Authorities.Primary[i].validate(); err != nil {
			return fmt.Errorf("pack %s: primary authority %d: %w", p.Name, i, err)
		}
	}
	for i := range p.Authorities.Secondary {
		if err := p.Authorities.Secondary[i].validate(); err != nil {
			return fmt.Errorf("pack %s: secondary authority %d: %w", p.Name, i, err)
		}
	}

	for i, f := range p.Facts {
		if f.ID == "" {
			return fmt.Errorf("pack %s: fact %d has no id", p.Name, i)
		}
		if _, ok := model.ParseClaimKind(string(f.Kind)); !ok {
			return fmt.Errorf("pack %s: fact %s: unknown kind %q", p.Name, f.ID, f.Kind)
		}
		if !f.Numeric() && len(f.Terms) == 0 {
			return fmt.Errorf("pack %s: fact %s needs values or terms", p.Name, f.ID)
		}
		if f.Confidence <= 0 {
			p.Facts[i].Confidence = 0.9
		}
		p.Facts[i].Confidence = clamp01(p.Facts[i].Confidence)
	}

	// Rule patterns are compiled by the extractor; a bad one disables only that rule.
	for i, r := range p.Rules {
		if r.Name == "" || r.Pattern == "" {
			return fmt.Errorf("pack %s: rule %d needs name and pattern", p.Name, i)
		}
		if _, ok := model.ParseClaimKind(string(r.Kind)); !ok {
			return fmt.Errorf("pack %s: rule %s: unknown kind %q", p.Name, r.Name, r.Kind)
		}
	}
	return nil
}

func (a *Authority) validate() error {
	if strings.TrimSpace(a.Match) == "" {
		return fmt.Errorf("authority %q has no match string", a.Name)
	}
	if a.Name == "" {
		a.Name = a.Match
	}
	a.Reliability = clamp01(a.Reliability)
	return nil
}

// ContainsAny reports whether any keyword occurs in text as a word prefix
func ContainsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if ContainsWordPrefix(text, kw) {
			return true
		}
	}
	return false
}

// ContainsWordPrefix reports whether kw occurs in text starting at a word boundary,
// case-insensitively. "notif" matches "notification" but not "unnotified".
func ContainsWordPrefix(text, kw string) bool {
	kw = strings.ToLower(strings.TrimSpace(kw))
	if kw == "" {
		return false
	}
	lower := strings.ToLower(text)
	for from := 0; from < len(lower); {
		i := strings.Index(lower[from:], kw)
		if i < 0 {
			return false
		}
		i += from
		if i == 0 {
			return true
		}
		r, _ := utf8.DecodeLastRuneInString(lower[:i])
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return true
		}
		from = i + 1
	}
	return false
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
