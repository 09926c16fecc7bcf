package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/ppiankov/credence/internal/model"
)

// Match is one hit of a rule in the scored text
type Match struct {
	Span     model.Span
	Value    float64
	Unit     string
	HasValue bool
}

// MatchFunc finds claims of one kind in text
type MatchFunc func(text string) ([]Match, error)

// Rule is a named, independently failing matcher. Domain "" applies to every domain.
type Rule struct {
	Name   string
	Domain string
	Kind   model.ClaimKind
	Match  MatchFunc
}

type ruleKey struct {
	domain string
	kind   model.ClaimKind
}

// Registry holds extraction rules keyed by (domain, kind)
type Registry struct {
	mu    sync.RWMutex
	rules map[ruleKey][]Rule
	names map[string]bool
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		rules: make(map[ruleKey][]Rule),
		names: make(map[string]bool),
	}
}

// NewDefaultRegistry creates a registry holding the built-in rules
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, rule := range BuiltinRules() {
		// Built-in names are unique
		_ = r.Register(rule)
	}
	return r
}

// Register adds a rule. Rule names must be unique.
func (r *Registry) Register(rule Rule) error {
	if rule.Name == "" || rule.Match == nil {
		return fmt.Errorf("rule needs a name and a match function")
	}
	if _, ok := model.ParseClaimKind(string(rule.Kind)); !ok {
		return fmt.Errorf("rule %s: unknown claim kind %q", rule.Name, rule.Kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.names[rule.Name] {
		return fmt.Errorf("rule %s already registered", rule.Name)
	}
	r.names[rule.Name] = true
	key := ruleKey{domain: rule.Domain, kind: rule.Kind}
	r.rules[key] = append(r.rules[key], rule)
	return nil
}

// Rules returns the rules that apply to a domain, grouped by kind in extraction order.
// Rules for all domains come before domain-specific ones.
func (r *Registry) Rules(domain string) []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Rule
	for _, kind := range model.ClaimKinds() {
		out = append(out, r.rules[ruleKey{kind: kind}]...)
		if domain != "" {
			out = append(out, r.rules[ruleKey{domain: domain, kind: kind}]...)
		}
	}
	return out
}

// PatternRule builds a rule from a regular expression that is compiled on first use,
// so a bad pattern fails only this rule. When unit is set the first number in each
// match becomes the claim value.
func PatternRule(name, domain string, kind model.ClaimKind, pattern, unit string) Rule {
	var (
		once  sync.Once
		re    *regexp.Regexp
		reErr error
	)
	return Rule{
		Name:   name,
		Domain: domain,
		Kind:   kind,
		Match: func(text string) ([]Match, error) {
			once.Do(func() {
				re, reErr = regexp.Compile(pattern)
			})
			if reErr != nil {
				return nil, fmt.Errorf("compile %s: %w", name, reErr)
			}

			var out []Match
			for _, loc := range re.FindAllStringIndex(text, -1) {
				m := Match{Span: model.Span{Start: loc[0], End: loc[1]}}
				if unit != "" {
					if n := firstNumber.FindString(text[loc[0]:loc[1]]); n != "" {
						if v, err := strconv.ParseFloat(n, 64); err == nil {
							m.Value, m.Unit, m.HasValue = v, unit, true
						}
					}
				}
				out = append(out, m)
			}
			return out, nil
		},
	}
}

var firstNumber = regexp.MustCompile(`\d+(?:\.\d+)?`)

// regexRule wraps a precompiled expression and a submatch parser
func regexRule(name string, kind model.ClaimKind, re *regexp.Regexp, parse func(text string, sub []int) Match) Rule {
	return Rule{
		Name: name,
		Kind: kind,
		Match: func(text string) ([]Match, error) {
			var out []Match
			for _, sub := range re.FindAllStringSubmatchIndex(text, -1) {
				m := Match{}
				if parse != nil {
					m = parse(text, sub)
				}
				m.Span = model.Span{Start: sub[0], End: sub[1]}
				out = append(out, m)
			}
			return out, nil
		},
	}
}

// group returns submatch n or ""
func group(text string, sub []int, n int) string {
	if 2*n+1 >= len(sub) || sub[2*n] < 0 {
		return ""
	}
	return text[sub[2*n]:sub[2*n+1]]
}

var numberWords = map[string]float64{
	"a": 1, "an": 1, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6,
	"seven": 7, "eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12,
	"fourteen": 14, "fifteen": 15, "twenty": 20, "thirty": 30, "forty": 40,
	"fifty": 50, "sixty": 60, "seventy": 70, "eighty": 80, "ninety": 90, "dozen": 12,
}

const numberWordPattern = `a|an|one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve|fourteen|fifteen|twenty|thirty|forty|fifty|sixty|seventy|eighty|ninety|dozen`

// parseQuantity reads digits (with thousands separators) or a number word
func parseQuantity(s string) (float64, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if v, ok := numberWords[s]; ok {
		return v, true
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// hoursPer converts a time unit to hours. A month counts as 30 days.
func hoursPer(unit string) float64 {
	u := strings.TrimSuffix(strings.ToLower(unit), "s")
	switch u {
	case "minute":
		return 1.0 / 60
	case "hour":
		return 1
	case "day":
		return 24
	case "week":
		return 7 * 24
	case "month":
		return 30 * 24
	case "year":
		return 365 * 24
	}
	return 0
}

var (
	deadlineWithin = regexp.MustCompile(`(?i)\b(?:within|no later than|not later than|no more than|not more than|up to|at most|at the latest)\s+(?:the\s+)?(?:(\d{1,4}(?:\.\d+)?|` + numberWordPattern + `)\s*[- ]?\s*)?(?:calendar\s+|business\s+|working\s+)?(minutes?|hours?|days?|weeks?|months?|years?)\b`)
	deadlineWindow = regexp.MustCompile(`(?i)\b(\d{1,4}|` + numberWordPattern + `)[- ](minute|hour|day|week|month|year)\s+(?:deadline|window|period|timeframe|time limit|limit|notification)\b`)
	deadlineNow    = regexp.MustCompile(`(?i)\b(?:immediate(?:ly)?\s+notif\w*|notif(?:y|ied|ication)\s+(?:\w+\s+){0,4}?immediately)\b`)

	moneyPrefix = regexp.MustCompile(`(?i)(?:\b(EUR|GBP|USD)\s?|(€|£|US\$|\$)\s?)(\d{1,3}(?:,\d{3})+|\d+(?:\.\d+)?)(?:\s*(million|billion|thousand|bn|m|k)\b)?`)
	moneySuffix = regexp.MustCompile(`(?i)\b(\d{1,3}(?:,\d{3})+|\d+(?:\.\d+)?)\s*(million|billion|thousand)?\s*(EUR|GBP|USD|euros?|pounds?(?:\s+sterling)?|dollars?)\b`)

	percent = regexp.MustCompile(`(?i)\b(\d{1,3}(?:\.\d+)?)\s?(?:%|percent\b|per\s+cent\b)`)

	accordingTo  = regexp.MustCompile(`\b[Aa]ccording to (?:the\s+)?[A-Z][A-Za-z0-9&'-]*(?:\s+(?:(?:of|for|and|on|the)\s+)*[A-Z][A-Za-z0-9&'-]*)*`)
	articleRef   = regexp.MustCompile(`(?i)\bart(?:icle)?s?\.?\s*\d{1,3}(?:\(\d{1,2}\))*(?:\([a-z]\))?(?:\s+(?:of\s+)?(?:the\s+)?(?:uk\s+|eu\s+)?(?:gdpr|regulation|directive))?`)
	sectionRef   = regexp.MustCompile(`\b[Ss]ection\s+\d{1,4}[A-Za-z]?(?:\(\d{1,2}\))*(?:\s+of\s+the\s+[A-Z][A-Za-z]*(?:\s+[A-Z][A-Za-z]*)*(?:\s+\d{4})?)?`)
	standardRef  = regexp.MustCompile(`\bISO(?:/IEC)?\s?\d{4,5}(?:-\d{1,2})?(?::\d{4})?`)
	rightsClaims = regexp.MustCompile(`(?i)\b(?:data\s+subjects?\s+(?:have|has|are\s+entitled\s+to|may\s+exercise)\s+)?(?:the\s+|a\s+)?right\s+(?:to|of)\s+(?:be\s+forgotten|erasure|access|rectification|data\s+portability|portability|object|restrict(?:ion)?(?:\s+of\s+processing)?|be\s+informed|information|lodge\s+a\s+complaint|withdraw\s+consent|not\s+to\s+be\s+subject\s+to\s+automated\s+decision[- ]making)`)
)

var currencyCodes = map[string]string{
	"€": "EUR", "eur": "EUR", "euro": "EUR", "euros": "EUR",
	"£": "GBP", "gbp": "GBP", "pound": "GBP", "pounds": "GBP",
	"$": "USD", "us$": "USD", "usd": "USD", "dollar": "USD", "dollars": "USD",
}

func currencyCode(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, " sterling")
	s = strings.Join(strings.Fields(s), " ")
	return currencyCodes[s]
}

func multiplier(s string) float64 {
	switch strings.ToLower(s) {
	case "thousand", "k":
		return 1e3
	case "million", "m":
		return 1e6
	case "billion", "bn":
		return 1e9
	}
	return 1
}

// BuiltinRules returns the rules that apply to every domain
func BuiltinRules() []Rule {
	return []Rule{
		regexRule("deadline:within", model.ClaimDeadline, deadlineWithin, func(text string, sub []int) Match {
			n := 1.0
			if q := group(text, sub, 1); q != "" {
				v, ok := parseQuantity(q)
				if !ok {
					return Match{}
				}
				n = v
			}
			h := hoursPer(group(text, sub, 2))
			return Match{Value: n * h, Unit: "hours", HasValue: h > 0}
		}),
		regexRule("deadline:window", model.ClaimDeadline, deadlineWindow, func(text string, sub []int) Match {
			v, ok := parseQuantity(group(text, sub, 1))
			h := hoursPer(group(text, sub, 2))
			return Match{Value: v * h, Unit: "hours", HasValue: ok && h > 0}
		}),
		regexRule("deadline:immediate", model.ClaimDeadline, deadlineNow, func(string, []int) Match {
			return Match{Value: 0, Unit: "hours", HasValue: true}
		}),
		regexRule("monetary:prefix", model.ClaimMonetary, moneyPrefix, func(text string, sub []int) Match {
			code := group(text, sub, 1)
			if code == "" {
				code = group(text, sub, 2)
			}
			v, ok := parseQuantity(group(text, sub, 3))
			return Match{Value: v * multiplier(group(text, sub, 4)), Unit: currencyCode(code), HasValue: ok}
		}),
		regexRule("monetary:suffix", model.ClaimMonetary, moneySuffix, func(text string, sub []int) Match {
			v, ok := parseQuantity(group(text, sub, 1))
			return Match{Value: v * multiplier(group(text, sub, 2)), Unit: currencyCode(group(text, sub, 3)), HasValue: ok}
		}),
		regexRule("statistical:percent", model.ClaimStatistical, percent, func(text string, sub []int) Match {
			v, ok := parseQuantity(group(text, sub, 1))
			return Match{Value: v, Unit: "percent", HasValue: ok}
		}),
		regexRule("authority:according-to", model.ClaimAuthorityReference, accordingTo, nil),
		regexRule("authority:article", model.ClaimAuthorityReference, articleRef, nil),
		regexRule("authority:section", model.ClaimAuthorityReference, sectionRef, nil),
		regexRule("authority:standard", model.ClaimAuthorityReference, standardRef, nil),
		regexRule("rights:right-to", model.ClaimRights, rightsClaims, nil),
	}
}
