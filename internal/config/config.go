// Package config loads and holds all gateway configuration.
// Settings are layered: defaults → gateway-config.json (if present) →
// environment variables (env vars win). A .env file (if present) is loaded
// into the environment first, filling only variables not already set, so its
// values also override gateway-config.json.
package config

import (
	"encoding/json"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AnalyzerName identifies one of the fixed set of upstream analyzers.
type AnalyzerName string

// The full set of analyzers the gateway knows how to route to.
const (
	Policy    AnalyzerName = "policy"
	Toxicity  AnalyzerName = "toxicity"
	Bias      AnalyzerName = "bias"
	PII       AnalyzerName = "pii"
	Secrets   AnalyzerName = "secrets"
	Jailbreak AnalyzerName = "jailbreak"
	Brand     AnalyzerName = "brand"
	Format    AnalyzerName = "format"
	Gibberish AnalyzerName = "gibberish"
)

// AllAnalyzers is the fixed, priority-ordered analyzer list (spec.md §4.2
// rule 3): policy > secrets > pii > jailbreak > toxicity > bias > brand >
// gibberish > format. Every component that needs a deterministic iteration
// order over analyzers ranges over this slice rather than a map.
var AllAnalyzers = []AnalyzerName{
	Policy, Secrets, PII, Jailbreak, Toxicity, Bias, Brand, Gibberish, Format,
}

// AnalyzerConfig holds the per-analyzer endpoint, credential and timeout.
type AnalyzerConfig struct {
	URL         string        `json:"url"`
	APIKey      string        `json:"apiKey"`
	CallTimeout time.Duration `json:"callTimeout"`
}

// Config holds the full gateway configuration.
type Config struct {
	GatewayPort int    `json:"gatewayPort"`
	AdminPort   int    `json:"adminPort"`  // 0 = admin API disabled
	AdminToken  string `json:"adminToken"` // bearer token for /admin/*; empty = no auth
	BindAddress string `json:"bindAddress"`
	LogLevel    string `json:"logLevel"`

	// GatewayAPIKeys is the allow-list of shared secrets accepted on inbound
	// requests (§6 GATEWAY_API_KEYS).
	GatewayAPIKeys []string `json:"gatewayApiKeys"`

	// Analyzers maps analyzer name to its endpoint configuration.
	Analyzers map[AnalyzerName]AnalyzerConfig `json:"analyzers"`

	PerCallTimeout time.Duration `json:"perCallTimeoutMs"`
	GlobalDeadline time.Duration `json:"globalDeadlineMs"`

	BreakerFailureThreshold int           `json:"breakerFailureThreshold"`
	BreakerWindow           int           `json:"breakerWindow"`
	BreakerRatioThreshold   float64       `json:"breakerRatioThreshold"`
	BreakerMinimumSamples   int           `json:"breakerMinimumSamples"`
	BreakerCooldown         time.Duration `json:"breakerCooldownMs"`

	MaxTextBytes int    `json:"maxTextBytes"`
	MaskToken    string `json:"maskToken"`

	ShutdownGrace time.Duration `json:"shutdownGraceMs"`
}

// Load returns config with defaults overridden by an optional
// gateway-config.json, then by environment variables (highest precedence),
// which include any values an optional .env file supplied.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[CONFIG] Warning: could not load .env: %v", err)
	}
	cfg := defaults()
	loadFile(cfg, "gateway-config.json")
	loadEnv(cfg)
	return cfg
}

func defaults() *Config {
	analyzers := make(map[AnalyzerName]AnalyzerConfig, len(AllAnalyzers))
	for _, name := range AllAnalyzers {
		analyzers[name] = AnalyzerConfig{
			URL:         "http://localhost:9100/" + string(name),
			CallTimeout: 4 * time.Second,
		}
	}
	return &Config{
		GatewayPort:             8080,
		AdminPort:               0,
		BindAddress:             "0.0.0.0",
		LogLevel:                "info",
		GatewayAPIKeys:          nil,
		Analyzers:               analyzers,
		PerCallTimeout:          4 * time.Second,
		GlobalDeadline:          8 * time.Second,
		BreakerFailureThreshold: 5,
		BreakerWindow:           20,
		BreakerRatioThreshold:   0.5,
		BreakerMinimumSamples:   10,
		BreakerCooldown:         30 * time.Second,
		MaxTextBytes:            32 * 1024,
		MaskToken:               "***",
		ShutdownGrace:           15 * time.Second,
	}
}

func loadFile(cfg *Config, path string) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: controlled config file path, not user input
	if err != nil {
		return // file is optional
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		log.Printf("[CONFIG] Warning: could not parse %s: %v", path, err)
	} else {
		// The *Ms keys hold milliseconds; decoded straight into time.Duration
		// they would be read as nanoseconds.
		var ms struct {
			PerCallTimeout  *int64 `json:"perCallTimeoutMs"`
			GlobalDeadline  *int64 `json:"globalDeadlineMs"`
			BreakerCooldown *int64 `json:"breakerCooldownMs"`
			ShutdownGrace   *int64 `json:"shutdownGraceMs"`
		}
		_ = json.Unmarshal(data, &ms)
		for dst, v := range map[*time.Duration]*int64{&cfg.PerCallTimeout: ms.PerCallTimeout, &cfg.GlobalDeadline: ms.GlobalDeadline, &cfg.BreakerCooldown: ms.BreakerCooldown, &cfg.ShutdownGrace: ms.ShutdownGrace} {
			if v != nil {
				*dst = time.Duration(*v) * time.Millisecond
			}
		}
		log.Printf("[CONFIG] Loaded %s", path)
	}
}

func loadEnv(cfg *Config) {
	if v := os.Getenv("GATEWAY_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.GatewayPort = n
		}
	}
	if v := os.Getenv("ADMIN_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.AdminPort = n
		}
	}
	if v := os.Getenv("ADMIN_TOKEN"); v != "" {
		cfg.AdminToken = v
	}
	if v := os.Getenv("BIND_ADDRESS"); v != "" {
		cfg.BindAddress = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("GATEWAY_API_KEYS"); v != "" {
		cfg.GatewayAPIKeys = splitAndTrim(v)
	}
	if v := os.Getenv("PER_CALL_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PerCallTimeout = time.Duration(n) * time.Millisecond
		}
	}
	if v := os.Getenv("GLOBAL_DEADLINE_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.GlobalDeadline = time.Duration(n) * time.Millisecond
		}
	}
	if v := os.Getenv("BREAKER_FAILURE_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.BreakerFailureThreshold = n
		}
	}
	if v := os.Getenv("BREAKER_WINDOW"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.BreakerWindow = n
		}
	}
	if v := os.Getenv("BREAKER_RATIO_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.BreakerRatioThreshold = f
		}
	}
	if v := os.Getenv("BREAKER_MINIMUM_SAMPLES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.BreakerMinimumSamples = n
		}
	}
	if v := os.Getenv("BREAKER_COOLDOWN_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.BreakerCooldown = time.Duration(n) * time.Millisecond
		}
	}
	if v := os.Getenv("MAX_TEXT_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxTextBytes = n
		}
	}
	if v := os.Getenv("MASK_TOKEN"); v != "" {
		cfg.MaskToken = v
	}

	// Per-analyzer URL/API key/timeout overrides, e.g. POLICY_URL, POLICY_API_KEY.
	for _, name := range AllAnalyzers {
		prefix := strings.ToUpper(string(name))
		ac := cfg.Analyzers[name]
		if v := os.Getenv(prefix + "_URL"); v != "" {
			ac.URL = v
		}
		if v := os.Getenv(prefix + "_API_KEY"); v != "" {
			ac.APIKey = v
		}
		if v := os.Getenv(prefix + "_TIMEOUT_MS"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				ac.CallTimeout = time.Duration(n) * time.Millisecond
			}
		}
		cfg.Analyzers[name] = ac
	}
}

func splitAndTrim(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// AnalyzerTimeout returns the effective per-call timeout for name: the
// analyzer-specific override if set, else the global default.
func (c *Config) AnalyzerTimeout(name AnalyzerName) time.Duration {
	if ac, ok := c.Analyzers[name]; ok && ac.CallTimeout > 0 {
		return ac.CallTimeout
	}
	return c.PerCallTimeout
}
