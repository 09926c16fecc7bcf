package hallucination

import (
	"fmt"
	"math"
	"regexp"
	"sort"

	"go.uber.org/zap"

	"github.com/ppiankov/credence/internal/metrics"
	"github.com/ppiankov/credence/internal/model"
)

type pattern struct {
	name string
	find func(text string) [][]int
}

type category struct {
	name     model.HallucinationCategory
	penalty  int
	severity model.Severity
	patterns []pattern
}

// Detector flags text that matches known fabrication patterns
type Detector struct {
	categories []category
	cfg        model.HallucinationConfig
	logger     *zap.Logger
	broken     []string // Categories with no usable pattern
}

// NewDetector compiles the configured categories, or the built-in ones when none are
// configured. A pattern that fails to compile is skipped; a category left with no
// patterns is reported as skipped on every run.
func NewDetector(cfg model.HallucinationConfig, logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	configs := cfg.Categories
	if len(configs) == 0 {
		configs = DefaultCategories()
	}

	d := &Detector{cfg: cfg, logger: logger}
	for _, cc := range configs {
		c := category{name: cc.Name, penalty: cc.Penalty, severity: cc.Severity}
		for _, pc := range cc.Patterns {
			re, err := regexp.Compile(pc.Pattern)
			if err != nil {
				logger.Warn("hallucination pattern skipped",
					zap.String("category", string(cc.Name)),
					zap.String("pattern", pc.Name),
					zap.Error(err))
				continue
			}
			c.patterns = append(c.patterns, pattern{
				name: pc.Name,
				find: func(text string) [][]int { return re.FindAllStringIndex(text, -1) },
			})
		}
		if len(c.patterns) == 0 {
			d.broken = append(d.broken, string(cc.Name))
			continue
		}
		d.categories = append(d.categories, c)
	}
	return d
}

// Detect scans text and scores the fabrication risk
func (d *Detector) Detect(text string) model.HallucinationReport {
	report := model.HallucinationReport{
		Findings: []model.HallucinationFinding{},
		Skipped:  append([]string(nil), d.broken...),
	}

	for _, c := range d.categories {
		findings, err := scanCategory(c, text)
		if err != nil {
			metrics.RuleFailures.WithLabelValues(string(c.name)).Inc()
			d.logger.Warn("hallucination category skipped",
				zap.String("category", string(c.name)),
				zap.Error(err))
			report.Skipped = append(report.Skipped, string(c.name))
			continue
		}
		report.Findings = append(report.Findings, findings...)
	}

	sort.SliceStable(report.Findings, func(i, j int) bool {
		if report.Findings[i].Position != report.Findings[j].Position {
			return report.Findings[i].Position < report.Findings[j].Position
		}
		return report.Findings[i].Category < report.Findings[j].Category
	})

	seen := make(map[model.HallucinationCategory]bool)
	for _, f := range report.Findings {
		metrics.HallucinationFindings.WithLabelValues(string(f.Category)).Inc()
		if !seen[f.Category] {
			seen[f.Category] = true
			report.Categories = append(report.Categories, f.Category)
			report.Penalty += f.Penalty
		}
	}

	report.RiskScore = d.risk(len(report.Findings), len(report.Categories))
	report.Recommendation = d.recommend(report.RiskScore, len(report.Findings))
	return report
}

// scanCategory runs every pattern of a category and merges overlapping matches
func scanCategory(c category, text string) (findings []model.HallucinationFinding, err error) {
	defer func() {
		if r := recover(); r != nil {
			findings = nil
			err = fmt.Errorf("category %s panicked: %v", c.name, r)
		}
	}()

	type hit struct {
		start, end int
		pattern    string
	}
	var hits []hit
	for _, p := range c.patterns {
		for _, loc := range p.find(text) {
			hits = append(hits, hit{start: loc[0], end: loc[1], pattern: p.name})
		}
	}
	if len(hits) == 0 {
		return nil, nil
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].start < hits[j].start })
	merged := []hit{hits[0]}
	for _, h := range hits[1:] {
		last := &merged[len(merged)-1]
		if h.start < last.end {
			if h.end > last.end {
				last.end = h.end
			}
			continue
		}
		merged = append(merged, h)
	}

	for _, h := range merged {
		findings = append(findings, model.HallucinationFinding{
			Category:    c.name,
			MatchedText: text[h.start:h.end],
			Position:    h.start,
			Severity:    c.severity,
			Penalty:     c.penalty,
			Pattern:     h.pattern,
		})
	}
	return findings, nil
}

// risk = min(1, findings*w_f + categories*w_d), rounded to 4 decimals
func (d *Detector) risk(findings, categories int) float64 {
	r := float64(findings)*d.cfg.FindingWeight + float64(categories)*d.cfg.DiversityWeight
	r = math.Max(0, math.Min(1, r))
	return math.Round(r*10000) / 10000
}

func (d *Detector) recommend(risk float64, findings int) model.Recommendation {
	t := d.cfg.Thresholds
	switch {
	case findings == 0:
		return model.RecommendSafe
	case risk >= t.DoNotPresent:
		return model.RecommendDoNotPresent
	case risk >= t.StrongDisclaimers:
		return model.RecommendStrongDisclaimers
	case risk >= t.StandardDisclaimers:
		return model.RecommendStandardDisclaimers
	default:
		return model.RecommendSafe
	}
}
