package model

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds all tunables. Defaults come from DefaultConfig and are overlaid by the
// config file, CREDENCE_* environment variables and CLI flags.
type Config struct {
	Scoring       ScoringConfig       `yaml:"scoring" mapstructure:"scoring"`
	Hallucination HallucinationConfig `yaml:"hallucination" mapstructure:"hallucination"`
	Verify        VerifyConfig        `yaml:"verify" mapstructure:"verify"`
	Calibration   CalibrationConfig   `yaml:"calibration" mapstructure:"calibration"`
	Cache         CacheConfig         `yaml:"cache" mapstructure:"cache"`
	Store         StoreConfig         `yaml:"store" mapstructure:"store"`
	Concurrency   ConcurrencyConfig   `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimiting  RateLimitConfig     `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	HTTP          HTTPConfig          `yaml:"http" mapstructure:"http"`
	LLM           LLMConfig           `yaml:"llm" mapstructure:"llm"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Domains       DomainsConfig       `yaml:"domains" mapstructure:"domains"`
	Output        OutputConfig        `yaml:"output" mapstructure:"output"`
}

// ScoringConfig controls factor fusion and contextual adjustments
type ScoringConfig struct {
	Weights     WeightConfig     `yaml:"weights" mapstructure:"weights"`
	Adjustments AdjustmentConfig `yaml:"adjustments" mapstructure:"adjustments"`
	MinWords    int              `yaml:"min_words" mapstructure:"min_words"` // Word count at which completeness stops growing
}

// WeightConfig is the weight of each factor. Weights are renormalised to sum to 1.
type WeightConfig struct {
	SourceReliability    float64 `yaml:"source_reliability" mapstructure:"source_reliability"`
	FactVerification     float64 `yaml:"fact_verification" mapstructure:"fact_verification"`
	DomainExpertise      float64 `yaml:"domain_expertise" mapstructure:"domain_expertise"`
	ResponseCompleteness float64 `yaml:"response_completeness" mapstructure:"response_completeness"`
	HallucinationRisk    float64 `yaml:"hallucination_risk" mapstructure:"hallucination_risk"`
	ContextualAccuracy   float64 `yaml:"contextual_accuracy" mapstructure:"contextual_accuracy"`
}

// AdjustmentConfig configures the deterministic post-fusion corrections
type AdjustmentConfig struct {
	HallucinationPenalty bool     `yaml:"hallucination_penalty" mapstructure:"hallucination_penalty"`
	RegulatedDomains     []string `yaml:"regulated_domains" mapstructure:"regulated_domains"`
	RegulatedThreshold   int      `yaml:"regulated_threshold" mapstructure:"regulated_threshold"`
	RegulatedPenalty     int      `yaml:"regulated_penalty" mapstructure:"regulated_penalty"`
	EscalationRoles      []string `yaml:"escalation_roles" mapstructure:"escalation_roles"`
	EscalationThreshold  int      `yaml:"escalation_threshold" mapstructure:"escalation_threshold"`
	EscalationPenalty    int      `yaml:"escalation_penalty" mapstructure:"escalation_penalty"`
}

// HallucinationConfig configures the fabrication detector
type HallucinationConfig struct {
	Categories      []CategoryConfig `yaml:"categories,omitempty" mapstructure:"categories"` // Empty means built-in categories
	FindingWeight   float64          `yaml:"finding_weight" mapstructure:"finding_weight"`
	DiversityWeight float64          `yaml:"diversity_weight" mapstructure:"diversity_weight"`
	Thresholds      RiskThresholds   `yaml:"thresholds" mapstructure:"thresholds"`
}

// CategoryConfig defines one fabrication category
type CategoryConfig struct {
	Name     HallucinationCategory `yaml:"name" mapstructure:"name"`
	Penalty  int                   `yaml:"penalty" mapstructure:"penalty"`
	Severity Severity              `yaml:"severity" mapstructure:"severity"`
	Patterns []PatternConfig       `yaml:"patterns" mapstructure:"patterns"`
}

// PatternConfig is a named regular expression
type PatternConfig struct {
	Name    string `yaml:"name" mapstructure:"name"`
	Pattern string `yaml:"pattern" mapstructure:"pattern"`
}

// RiskThresholds map a risk score to a recommendation (inclusive lower bounds)
type RiskThresholds struct {
	DoNotPresent        float64 `yaml:"do_not_present" mapstructure:"do_not_present"`
	StrongDisclaimers   float64 `yaml:"strong_disclaimers" mapstructure:"strong_disclaimers"`
	StandardDisclaimers float64 `yaml:"standard_disclaimers" mapstructure:"standard_disclaimers"`
}

// VerifyConfig configures the source verifier
type VerifyConfig struct {
	UnknownReliability     float64            `yaml:"unknown_reliability" mapstructure:"unknown_reliability"`
	UnverifiedBase         float64            `yaml:"unverified_base" mapstructure:"unverified_base"`
	UnverifiedSourceWeight float64            `yaml:"unverified_source_weight" mapstructure:"unverified_source_weight"`
	DegradedConfidence     float64            `yaml:"degraded_confidence" mapstructure:"degraded_confidence"`
	Reachability           ReachabilityConfig `yaml:"reachability" mapstructure:"reachability"`
}

// ReachabilityConfig configures the optional network probe of cited sources
type ReachabilityConfig struct {
	Enabled       bool          `yaml:"enabled" mapstructure:"enabled"`
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"` // Per request
	Ceiling       time.Duration `yaml:"ceiling" mapstructure:"ceiling"` // Hard limit for the whole probe
	MaxRetries    int           `yaml:"max_retries" mapstructure:"max_retries"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
}

// CalibrationConfig configures the calibration monitor
type CalibrationConfig struct {
	Z            float64           `yaml:"z" mapstructure:"z"` // Wilson interval z-value, 0 disables the tolerance
	Labels       CalibrationLabels `yaml:"labels" mapstructure:"labels"`
	DefaultLimit int               `yaml:"default_limit" mapstructure:"default_limit"`

	// RawLabelMinSamples is the sample count from which the label follows RawECE.
	// Sampling tolerance only matters for small histories; 0 always uses ECE.
	RawLabelMinSamples int `yaml:"raw_label_min_samples" mapstructure:"raw_label_min_samples"`
}

// CalibrationLabels are exclusive ECE upper bounds for each label
type CalibrationLabels struct {
	Excellent float64 `yaml:"excellent" mapstructure:"excellent"`
	Good      float64 `yaml:"good" mapstructure:"good"`
	Fair      float64 `yaml:"fair" mapstructure:"fair"`
}

// CacheConfig configures the assessment cache
type CacheConfig struct {
	Enabled       bool          `yaml:"enabled" mapstructure:"enabled"`
	Backend       string        `yaml:"backend" mapstructure:"backend"` // memory, layered, redis
	TTL           time.Duration `yaml:"ttl" mapstructure:"ttl"`
	Dir           string        `yaml:"dir" mapstructure:"dir"`
	RedisAddr     string        `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string        `yaml:"redis_password,omitempty" mapstructure:"redis_password"`
	RedisDB       int           `yaml:"redis_db" mapstructure:"redis_db"`
}

// StoreConfig configures the assessment history database
type StoreConfig struct {
	Path   string `yaml:"path" mapstructure:"path"`
	Record bool   `yaml:"record" mapstructure:"record"` // Persist every assessment
}

// ConcurrencyConfig controls parallelism
type ConcurrencyConfig struct {
	Workers      int `yaml:"workers" mapstructure:"workers"`             // Batch workers
	ProbeWorkers int `yaml:"probe_workers" mapstructure:"probe_workers"` // Concurrent reachability probes
}

// RateLimitConfig controls per-host request rates
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// HTTPConfig holds outbound HTTP settings
type HTTPConfig struct {
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	InsecureTLS bool   `yaml:"insecure_tls" mapstructure:"insecure_tls"`
	HTTPProxy   string `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy  string `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy     string `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// LLMConfig configures the optional explanation provider
type LLMConfig struct {
	Provider       string `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama, "" (disabled)
	Model          string `yaml:"model" mapstructure:"model"`
	APIKey         string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL        string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout        int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	StrictEvidence bool   `yaml:"strict_evidence" mapstructure:"strict_evidence"`
	MaxTokens      int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// ServerConfig configures the REST surface
type ServerConfig struct {
	Addr         string        `yaml:"addr" mapstructure:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
}

// DomainsConfig locates domain packs
type DomainsConfig struct {
	Dir     string `yaml:"dir,omitempty" mapstructure:"dir"` // Extra *.yaml packs, override built-ins by name
	Default string `yaml:"default" mapstructure:"default"`   // Pack used for unknown domains
}

// OutputConfig controls report rendering
type OutputConfig struct {
	Verbose       bool `yaml:"verbose" mapstructure:"verbose"`
	IncludeFooter bool `yaml:"include_footer" mapstructure:"include_footer"`
	IncludeText   bool `yaml:"include_text" mapstructure:"include_text"` // Echo the scored text in assessments
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".credence")

	return Config{
		Scoring: ScoringConfig{
			Weights: WeightConfig{
				SourceReliability:    0.25,
				FactVerification:     0.30,
				DomainExpertise:      0.15,
				ResponseCompleteness: 0.10,
				HallucinationRisk:    0.15,
				ContextualAccuracy:   0.05,
			},
			Adjustments: AdjustmentConfig{
				HallucinationPenalty: true,
				RegulatedDomains:     []string{"gdpr", "hipaa", "pci-dss"},
				RegulatedThreshold:   85,
				RegulatedPenalty:     10,
				EscalationRoles:      []string{"compliance_officer"},
				EscalationThreshold:  70,
				EscalationPenalty:    15,
			},
			MinWords: 10,
		},
		Hallucination: HallucinationConfig{
			FindingWeight:   0.15,
			DiversityWeight: 0.25,
			Thresholds: RiskThresholds{
				DoNotPresent:        0.8,
				StrongDisclaimers:   0.5,
				StandardDisclaimers: 0.3,
			},
		},
		Verify: VerifyConfig{
			UnknownReliability:     0.2,
			UnverifiedBase:         0.3,
			UnverifiedSourceWeight: 0.4,
			DegradedConfidence:     0.3,
			Reachability: ReachabilityConfig{
				Enabled:       false,
				Timeout:       3 * time.Second,
				Ceiling:       5 * time.Second,
				MaxRetries:    1,
				RespectRobots: true,
			},
		},
		Calibration: CalibrationConfig{
			Z: 1.96,
			Labels: CalibrationLabels{
				Excellent: 0.05,
				Good:      0.10,
				Fair:      0.15,
			},
			DefaultLimit:       1000,
			RawLabelMinSamples: 100,
		},
		Cache: CacheConfig{
			Enabled: true,
			Backend: "memory",
			TTL:     24 * time.Hour,
			Dir:     filepath.Join(base, "cache"),
		},
		Store: StoreConfig{
			Path: filepath.Join(base, "history.db"),
		},
		Concurrency: ConcurrencyConfig{
			Workers:      4,
			ProbeWorkers: 8,
		},
		RateLimiting: RateLimitConfig{
			RequestsPerSecond: 2.0,
			BurstSize:         5,
		},
		HTTP: HTTPConfig{
			UserAgent: "Credence/0.1 (+https://github.com/ppiankov/credence)",
		},
		LLM: LLMConfig{
			Timeout:        30,
			StrictEvidence: true,
			MaxTokens:      600,
		},
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			MaxBodyBytes: 1 << 20,
		},
		Domains: DomainsConfig{
			Default: "generic",
		},
		Output: OutputConfig{
			IncludeFooter: true,
		},
	}
}
