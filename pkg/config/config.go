package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"execution-core/pkg/crypto"
)

// Config holds environment-driven settings for the execution core.
type Config struct {
	Port     string
	LogLevel string

	// Kalshi
	EnableKalshi   bool
	KalshiEmail    string
	KalshiPassword string
	KalshiBaseURL  string
	KalshiTokenTTL time.Duration

	// Polymarket
	EnablePolymarket     bool
	PolyPrivateKey       string
	PolyFunderAddress    string
	PolyAPIKey           string
	PolyAPISecret        string
	PolyPassphrase       string
	PolyBaseURL          string
	PolyRPCURL           string
	PolySignatureType    int
	PolyStreamTokens     []string
	EnablePolyMarketFeed bool

	// Session handling
	RefreshMargin time.Duration

	// Secrets at rest
	EncryptionKey string
}

// venueOverrides is the optional YAML overlay for venue endpoints, used to
// point the core at demo or self-hosted environments.
type venueOverrides struct {
	Kalshi struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"kalshi"`
	Polymarket struct {
		BaseURL string `yaml:"base_url"`
		RPCURL  string `yaml:"rpc_url"`
	} `yaml:"polymarket"`
}

// Load reads environment variables (optionally via .env) into Config.
// Credential values prefixed with ENC[v1]: are decrypted with ENCRYPTION_KEY.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		EnableKalshi:   getEnv("ENABLE_KALSHI", "true") == "true",
		KalshiEmail:    os.Getenv("KALSHI_EMAIL"),
		KalshiPassword: os.Getenv("KALSHI_PASSWORD"),
		KalshiBaseURL:  os.Getenv("KALSHI_BASE_URL"),
		KalshiTokenTTL: getEnvDuration("KALSHI_TOKEN_TTL", 29*time.Minute),

		EnablePolymarket:     getEnv("ENABLE_POLYMARKET", "true") == "true",
		PolyPrivateKey:       os.Getenv("POLY_PRIVATE_KEY"),
		PolyFunderAddress:    os.Getenv("POLY_FUNDER_ADDRESS"),
		PolyAPIKey:           os.Getenv("POLY_API_KEY"),
		PolyAPISecret:        os.Getenv("POLY_API_SECRET"),
		PolyPassphrase:       os.Getenv("POLY_PASSPHRASE"),
		PolyBaseURL:          os.Getenv("POLY_BASE_URL"),
		PolyRPCURL:           getEnv("POLY_RPC_URL", "https://polygon-rpc.com"),
		PolySignatureType:    getEnvInt("POLY_SIGNATURE_TYPE", 0),
		PolyStreamTokens:     splitAndTrim(getEnv("POLY_STREAM_TOKENS", "")),
		EnablePolyMarketFeed: getEnv("ENABLE_POLY_MARKET_FEED", "false") == "true",

		RefreshMargin: getEnvDuration("SESSION_REFRESH_MARGIN", time.Minute),

		EncryptionKey: os.Getenv("ENCRYPTION_KEY"),
	}

	if path := os.Getenv("VENUES_FILE"); path != "" {
		if err := cfg.applyOverrides(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.decryptSecrets(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyOverrides(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read venues file: %w", err)
	}
	var ov venueOverrides
	if err := yaml.Unmarshal(raw, &ov); err != nil {
		return fmt.Errorf("parse venues file: %w", err)
	}
	if ov.Kalshi.BaseURL != "" {
		c.KalshiBaseURL = ov.Kalshi.BaseURL
	}
	if ov.Polymarket.BaseURL != "" {
		c.PolyBaseURL = ov.Polymarket.BaseURL
	}
	if ov.Polymarket.RPCURL != "" {
		c.PolyRPCURL = ov.Polymarket.RPCURL
	}
	return nil
}

// decryptSecrets resolves ENC[v1]: values in place. Plaintext values pass
// through untouched so development setups need no key.
func (c *Config) decryptSecrets() error {
	secrets := []*string{
		&c.KalshiPassword,
		&c.PolyPrivateKey,
		&c.PolyAPISecret,
		&c.PolyPassphrase,
	}
	for _, s := range secrets {
		if !crypto.IsEncrypted(*s) {
			continue
		}
		if c.EncryptionKey == "" {
			return fmt.Errorf("encrypted credential present but ENCRYPTION_KEY is not set")
		}
		plain, err := crypto.Decrypt(*s, c.EncryptionKey)
		if err != nil {
			return fmt.Errorf("decrypt credential: %w", err)
		}
		*s = plain
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitAndTrim(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
