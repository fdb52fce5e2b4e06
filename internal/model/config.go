package model

import (
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds all truthgate settings
type Config struct {
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Authority    AuthorityConfig    `yaml:"authority" mapstructure:"authority"`
	Scoring      ScoringConfig      `yaml:"scoring" mapstructure:"scoring"`
	Abstention   AbstentionConfig   `yaml:"abstention" mapstructure:"abstention"`
	Gate         GateConfig         `yaml:"gate" mapstructure:"gate"`
	Pipeline     PipelineConfig     `yaml:"pipeline" mapstructure:"pipeline"`
	Connectors   ConnectorsConfig   `yaml:"connectors" mapstructure:"connectors"`
	LLM          LLMConfig          `yaml:"llm" mapstructure:"llm"`
	Server       ServerConfig       `yaml:"server" mapstructure:"server"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
}

// HTTPConfig configures outbound HTTP for connectors
type HTTPConfig struct {
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent    string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	InsecureTLS  bool          `yaml:"insecure_tls" mapstructure:"insecure_tls"`
	HTTPProxy    string        `yaml:"http_proxy" mapstructure:"http_proxy"`
	HTTPSProxy   string        `yaml:"https_proxy" mapstructure:"https_proxy"`
	NoProxy      string        `yaml:"no_proxy" mapstructure:"no_proxy"`
	MaxRetries   int           `yaml:"max_retries" mapstructure:"max_retries"`
}

// CacheConfig configures the connector response cache
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	TTL     time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// ConcurrencyConfig bounds batch parallelism
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// RateLimitingConfig configures per-domain rate limits
type RateLimitingConfig struct {
	RequestsPerSecond float64            `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int                `yaml:"burst_size" mapstructure:"burst_size"`
	DomainRates       map[string]float64 `yaml:"domain_rates,omitempty" mapstructure:"domain_rates"`
}

// AuthorityConfig maps sources to trust tiers
type AuthorityConfig struct {
	// DomainMap maps a host (or parent domain) to a tier name
	DomainMap map[string]string `yaml:"domain_map" mapstructure:"domain_map"`
	// SourceMap maps a connector source name to a tier name
	SourceMap    map[string]string `yaml:"source_map" mapstructure:"source_map"`
	PathPatterns []PathPattern     `yaml:"path_patterns,omitempty" mapstructure:"path_patterns"`
}

// PathPattern assigns a tier to URLs whose path matches Pattern
type PathPattern struct {
	Pattern string `yaml:"pattern" mapstructure:"pattern"`
	Tier    string `yaml:"tier" mapstructure:"tier"`
}

// ScoringConfig configures trust and freshness scoring
type ScoringConfig struct {
	BaseTrust map[string]float64 `yaml:"base_trust" mapstructure:"base_trust"`
	// SLAHours is the freshness SLA per claim category
	SLAHours        map[string]float64 `yaml:"sla_hours" mapstructure:"sla_hours"`
	DefaultSLAHours float64            `yaml:"default_sla_hours" mapstructure:"default_sla_hours"`
	ConfidenceFloor float64            `yaml:"confidence_floor" mapstructure:"confidence_floor"`
}

// AbstentionConfig configures the abstention classifiers
type AbstentionConfig struct {
	CriticalCategories []string `yaml:"critical_categories" mapstructure:"critical_categories"`
	RealTimeCategories []string `yaml:"real_time_categories" mapstructure:"real_time_categories"`
	MinCriticalTier    string   `yaml:"min_critical_tier" mapstructure:"min_critical_tier"`
	DefinitivePrefixes []string `yaml:"definitive_prefixes" mapstructure:"definitive_prefixes"`
	DefinitiveTerms    []string `yaml:"definitive_terms" mapstructure:"definitive_terms"`
}

// GateConfig toggles the truthfulness gate
type GateConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// PipelineConfig holds request budgets
type PipelineConfig struct {
	RequestBudget    time.Duration `yaml:"request_budget" mapstructure:"request_budget"`
	ConnectorTimeout time.Duration `yaml:"connector_timeout" mapstructure:"connector_timeout"`
	GenerateTimeout  time.Duration `yaml:"generate_timeout" mapstructure:"generate_timeout"`
	Agents           []string      `yaml:"agents" mapstructure:"agents"`
}

// ConnectorsConfig configures the evidence sources
type ConnectorsConfig struct {
	FDA            EndpointConfig `yaml:"fda" mapstructure:"fda"`
	PubMed         EndpointConfig `yaml:"pubmed" mapstructure:"pubmed"`
	ClinicalTrials EndpointConfig `yaml:"clinical_trials" mapstructure:"clinical_trials"`
	Web            WebConfig      `yaml:"web" mapstructure:"web"`
}

// EndpointConfig configures one API connector
type EndpointConfig struct {
	Enabled    bool   `yaml:"enabled" mapstructure:"enabled"`
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`
	MaxResults int    `yaml:"max_results" mapstructure:"max_results"`
	APIKey     string `yaml:"api_key,omitempty" mapstructure:"api_key"`
}

// WebConfig configures the web page connector
type WebConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// Pages are URL templates; {query} is replaced with the escaped query
	Pages         []string `yaml:"pages" mapstructure:"pages"`
	RespectRobots bool     `yaml:"respect_robots" mapstructure:"respect_robots"`
}

// LLMConfig configures narrative generation
type LLMConfig struct {
	Provider          string        `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama, extractive
	Model             string        `yaml:"model" mapstructure:"model"`
	APIKey            string        `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL           string        `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxTokens         int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature       float64       `yaml:"temperature" mapstructure:"temperature"`
	PromptBudgetChars int           `yaml:"prompt_budget_chars" mapstructure:"prompt_budget_chars"`
	MaxSnippets       int           `yaml:"max_snippets" mapstructure:"max_snippets"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
	Mode string `yaml:"mode" mapstructure:"mode"` // gin mode: debug, release, test
}

// OutputConfig configures rendering
type OutputConfig struct {
	Verbose bool `yaml:"verbose" mapstructure:"verbose"`
	Pretty  bool `yaml:"pretty" mapstructure:"pretty"`
}

// LogConfig configures logging
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json or console
}

// DefaultConfig returns the built-in configuration
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Timeout:      15 * time.Second,
			UserAgent:    "truthgate/0.3 (+https://github.com/ppiankov/truthgate)",
			MaxBodyBytes: 5 * 1024 * 1024,
			MaxRetries:   2,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     15 * time.Minute,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 3,
			BurstSize:         3,
			DomainRates: map[string]float64{
				"eutils.ncbi.nlm.nih.gov": 3,
				"api.fda.gov":             4,
			},
		},
		Authority: AuthorityConfig{
			DomainMap: map[string]string{
				"fda.gov":                 string(TierOfficial),
				"clinicaltrials.gov":      string(TierOfficial),
				"ema.europa.eu":           string(TierOfficial),
				"who.int":                 string(TierOfficial),
				"nih.gov":                 string(TierOfficial),
				"pubmed.ncbi.nlm.nih.gov": string(TierPeerReviewed),
				"ncbi.nlm.nih.gov":        string(TierPeerReviewed),
				"nejm.org":                string(TierPeerReviewed),
				"thelancet.com":           string(TierPeerReviewed),
				"nature.com":              string(TierPeerReviewed),
				"bmj.com":                 string(TierPeerReviewed),
				"jamanetwork.com":         string(TierPeerReviewed),
				"fiercebiotech.com":       string(TierNews),
				"fiercepharma.com":        string(TierNews),
				"statnews.com":            string(TierNews),
				"biopharmadive.com":       string(TierNews),
				"endpts.com":              string(TierNews),
				"reuters.com":             string(TierNews),
			},
			SourceMap: map[string]string{
				"openfda":            string(TierOfficial),
				"clinicaltrials.gov": string(TierOfficial),
				"pubmed":             string(TierPeerReviewed),
			},
		},
		Scoring: ScoringConfig{
			BaseTrust: map[string]float64{
				string(TierOfficial):     0.95,
				string(TierPeerReviewed): 0.85,
				string(TierNews):         0.65,
				string(TierOther):        0.50,
			},
			SLAHours: map[string]float64{
				string(CategoryRegulatory):  24,
				string(CategoryNews):        24,
				string(CategoryPublication): 168,
				string(CategoryTrial):       168,
			},
			DefaultSLAHours: 168,
			ConfidenceFloor: 0.05,
		},
		Abstention: AbstentionConfig{
			CriticalCategories: []string{string(CategoryRegulatory)},
			RealTimeCategories: []string{string(CategoryRegulatory), string(CategoryNews)},
			MinCriticalTier:    string(TierPeerReviewed),
			DefinitivePrefixes: []string{
				"is ", "are ", "was ", "were ", "does ", "do ", "did ",
				"has ", "have ", "can ", "will ", "what is ", "which ",
			},
			DefinitiveTerms: []string{"approved", "status"},
		},
		Gate: GateConfig{
			Enabled: true,
		},
		Pipeline: PipelineConfig{
			RequestBudget:    45 * time.Second,
			ConnectorTimeout: 12 * time.Second,
			GenerateTimeout:  30 * time.Second,
			Agents:           []string{"clinical", "regulatory", "web_intelligence"},
		},
		Connectors: ConnectorsConfig{
			FDA: EndpointConfig{
				Enabled:    true,
				BaseURL:    "https://api.fda.gov",
				MaxResults: 5,
			},
			PubMed: EndpointConfig{
				Enabled:    true,
				BaseURL:    "https://eutils.ncbi.nlm.nih.gov/entrez/eutils",
				MaxResults: 5,
			},
			ClinicalTrials: EndpointConfig{
				Enabled:    true,
				BaseURL:    "https://clinicaltrials.gov/api/v2",
				MaxResults: 5,
			},
			Web: WebConfig{
				Enabled:       false,
				RespectRobots: true,
			},
		},
		LLM: LLMConfig{
			Provider:          "extractive",
			Timeout:           30 * time.Second,
			MaxTokens:         1024,
			Temperature:       0,
			PromptBudgetChars: 12000,
			MaxSnippets:       12,
		},
		Server: ServerConfig{
			Addr: ":8080",
			Mode: "release",
		},
		Output: OutputConfig{
			Pretty: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// InitLogger replaces the global zap logger according to cfg
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "model: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "model: build logger")
	}
	zap.ReplaceGlobals(logger)
	return nil
}
