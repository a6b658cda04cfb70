package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPAddr    string
	PostgresDSN string
	LogLevel    string
	LogEnv      string

	AdminAPIKey      string
	IssuerName       string
	CertValidityDays int
	PublicBaseURL    string

	SigningKeyID        string
	SigningKeySecretHex string
	SigningKeyringFile  string

	IssuerAllowedKeyIDs []string
	IssuerPolicyPath    string

	NotaryBaseURL         string
	NotaryAPIToken        string
	NotaryFixturesFile    string
	NotaryCacheTTLSeconds int
	LookupTimeoutMS       int

	EthRPCURL           string
	EthMinConfirmations int

	AMQPURL      string
	AMQPExchange string

	RateLimitRequests      int
	RateLimitWindowSeconds int
	RateLimitFailClosed    bool
	RateLimitMaxKeys       int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Load reads an optional .env file from the working directory before reading
// the environment. Variables already set in the environment win.
func Load() Config {
	_ = godotenv.Load()
	return FromEnv()
}

func FromEnv() Config {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		HTTPAddr:               addr,
		PostgresDSN:            os.Getenv("POSTGRES_DSN"),
		LogLevel:               envDefault("LOG_LEVEL", "info"),
		LogEnv:                 envDefault("LOG_ENV", "prod"),
		AdminAPIKey:            os.Getenv("ADMIN_API_KEY"),
		IssuerName:             envDefault("ISSUER_NAME", "Truth Certificate Authority"),
		CertValidityDays:       envIntDefault("CERT_VALIDITY_DAYS", 365),
		PublicBaseURL:          strings.TrimRight(envDefault("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		SigningKeyID:           os.Getenv("SIGNING_KEY_ID"),
		SigningKeySecretHex:    os.Getenv("SIGNING_KEY_SECRET_HEX"),
		SigningKeyringFile:     os.Getenv("SIGNING_KEYRING_FILE"),
		IssuerAllowedKeyIDs:    envList("ISSUER_ALLOWED_KEY_IDS"),
		IssuerPolicyPath:       os.Getenv("ISSUER_POLICY_PATH"),
		NotaryBaseURL:          strings.TrimRight(os.Getenv("NOTARY_BASE_URL"), "/"),
		NotaryAPIToken:         os.Getenv("NOTARY_API_TOKEN"),
		NotaryFixturesFile:     os.Getenv("NOTARY_FIXTURES_FILE"),
		NotaryCacheTTLSeconds:  envIntDefault("NOTARY_CACHE_TTL_SECONDS", 300),
		LookupTimeoutMS:        envIntDefault("LOOKUP_TIMEOUT_MS", 3000),
		EthRPCURL:              os.Getenv("ETH_RPC_URL"),
		EthMinConfirmations:    envIntDefault("ETH_MIN_CONFIRMATIONS", 1),
		AMQPURL:                os.Getenv("AMQP_URL"),
		AMQPExchange:           envDefault("AMQP_EXCHANGE", "truthcert.custody"),
		RateLimitRequests:      envIntDefault("RATE_LIMIT_REQUESTS", 0),
		RateLimitWindowSeconds: envIntDefault("RATE_LIMIT_WINDOW_SECONDS", 60),
		RateLimitFailClosed:    envBoolDefault("RATE_LIMIT_FAIL_CLOSED", false),
		RateLimitMaxKeys:       envIntDefault("RATE_LIMIT_MAX_KEYS", 10000),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		RedisDB:                envIntDefault("REDIS_DB", 0),
	}
}

func envDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func envBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "Yes":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "No":
		return false
	default:
		return def
	}
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c Config) CertValidity() time.Duration {
	return time.Duration(c.CertValidityDays) * 24 * time.Hour
}

func (c Config) LookupTimeout() time.Duration {
	return time.Duration(c.LookupTimeoutMS) * time.Millisecond
}

func (c Config) NotaryCacheTTL() time.Duration {
	return time.Duration(c.NotaryCacheTTLSeconds) * time.Second
}

// KeyringEntry is one key of a keyring file. Secrets are hex or base64.
type KeyringEntry struct {
	ID        string    `yaml:"id"`
	Issuer    string    `yaml:"issuer"`
	Secret    string    `yaml:"secret"`
	Status    string    `yaml:"status"`
	CreatedAt time.Time `yaml:"created_at"`
}

type KeyringFile struct {
	Keys []KeyringEntry `yaml:"keys"`
}

// KeyringEntries returns the configured signing keys: the keyring file when
// set, otherwise the single key from SIGNING_KEY_ID and SIGNING_KEY_SECRET_HEX.
func (c Config) KeyringEntries() ([]KeyringEntry, error) {
	if c.SigningKeyringFile != "" {
		return ReadKeyringFile(c.SigningKeyringFile)
	}
	if c.SigningKeyID == "" || c.SigningKeySecretHex == "" {
		return nil, errors.New("no signing key configured")
	}
	return []KeyringEntry{{
		ID:     c.SigningKeyID,
		Issuer: c.IssuerName,
		Secret: c.SigningKeySecretHex,
		Status: "active",
	}}, nil
}

func ReadKeyringFile(path string) ([]KeyringEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keyring: %w", err)
	}
	return ParseKeyring(raw)
}

func ParseKeyring(raw []byte) ([]KeyringEntry, error) {
	var file KeyringFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse keyring: %w", err)
	}
	if len(file.Keys) == 0 {
		return nil, errors.New("keyring has no keys")
	}
	return file.Keys, nil
}
