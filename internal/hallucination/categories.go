package hallucination

import "github.com/ppiankov/credence/internal/model"

// DefaultCategories returns the built-in fabrication categories
func DefaultCategories() []model.CategoryConfig {
	return []model.CategoryConfig{
		{
			Name:     model.CategoryRegulatoryFabrication,
			Penalty:  30,
			Severity: model.SeverityCritical,
			Patterns: []model.PatternConfig{
				{Name: "immediate-requirement", Pattern: `(?i)\b(?:GDPR|the\s+regulation|the\s+law|HIPAA|PCI[- ]?DSS|ISO\s?27001)\s+(?:requires|mandates|demands)\s+(?:immediate|instant|instantaneous|real[- ]time)\b`},
				{Name: "universal-obligation", Pattern: `(?i)\b(?:all|every)\s+(?:compan(?:y|ies)|organi[sz]ations?|business(?:es)?|firms?)\s+must\b`},
				{Name: "automatic-illegality", Pattern: `(?i)\bautomatically\s+(?:illegal|unlawful|non-compliant)\b`},
				{Name: "guaranteed-compliance", Pattern: `(?i)\bguarantees?\s+(?:full\s+|complete\s+)?compliance\b`},
			},
		},
		{
			Name:     model.CategoryAuthorityMisattribution,
			Penalty:  25,
			Severity: model.SeverityHigh,
			Patterns: []model.PatternConfig{
				{Name: "regulator-endorsement", Pattern: `\b(?:ICO|EDPB|European\s+Commission|NIST|ISO|HHS|PCI\s+SSC)\s+(?:has\s+)?(?:certified|approved|endorsed|ruled\s+that|guarantees|guaranteed)\b`},
				{Name: "official-endorsement", Pattern: `(?i)\bofficially\s+(?:endorsed|certified|approved)\s+by\b`},
				{Name: "nonexistent-article", Pattern: `(?i)\bArticle\s+[1-9]\d{2,}\s+of\s+(?:the\s+)?GDPR\b`},
			},
		},
		{
			Name:     model.CategoryStatisticalFabrication,
			Penalty:  20,
			Severity: model.SeverityMedium,
			Patterns: []model.PatternConfig{
				{Name: "population-percentage", Pattern: `(?i)\b\d{1,3}(?:\.\d+)?\s?(?:%|percent)\s+of\s+(?:all\s+)?(?:companies|organi[sz]ations|businesses|firms|enterprises|breaches|users|controllers)\b`},
				{Name: "unnamed-studies", Pattern: `(?i)\b(?:studies|research|surveys)\s+(?:show|shows|prove|proves|have\s+shown)\s+that\s+\d`},
			},
		},
		{
			Name:     model.CategoryDeadlineFabrication,
			Penalty:  25,
			Severity: model.SeverityHigh,
			Patterns: []model.PatternConfig{
				{Name: "sub-hour-deadline", Pattern: `(?i)\bwithin\s+\d+\s+(?:minutes?|seconds?)\b`},
				{Name: "wrong-breach-window", Pattern: `(?i)\bGDPR\b[^.]{0,80}?\bwithin\s+(?:12|24|36|48)\s+hours\b`},
				{Name: "same-day-notification", Pattern: `(?i)\b(?:same|next)[- ]day\s+(?:breach\s+)?notification\b`},
			},
		},
	}
}
