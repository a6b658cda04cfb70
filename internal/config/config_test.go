package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("CERT_VALIDITY_DAYS", "")
	t.Setenv("LOOKUP_TIMEOUT_MS", "")
	t.Setenv("PUBLIC_BASE_URL", "")

	cfg := FromEnv()
	require.Equal(t, ":8080", cfg.HTTPAddr)
	require.Equal(t, 365*24*time.Hour, cfg.CertValidity())
	require.Equal(t, 3*time.Second, cfg.LookupTimeout())
	require.Equal(t, "http://localhost:8080", cfg.PublicBaseURL)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("CERT_VALIDITY_DAYS", "30")
	t.Setenv("ISSUER_ALLOWED_KEY_IDS", " key-a, ,key-b ")
	t.Setenv("PUBLIC_BASE_URL", "https://certs.example.com/")
	t.Setenv("RATE_LIMIT_FAIL_CLOSED", "yes")
	t.Setenv("LOOKUP_TIMEOUT_MS", "-5")

	cfg := FromEnv()
	require.Equal(t, 30*24*time.Hour, cfg.CertValidity())
	require.Equal(t, []string{"key-a", "key-b"}, cfg.IssuerAllowedKeyIDs)
	require.Equal(t, "https://certs.example.com", cfg.PublicBaseURL)
	require.True(t, cfg.RateLimitFailClosed)
	require.Equal(t, 3000, cfg.LookupTimeoutMS)
}

func TestKeyringEntriesFromSingleKey(t *testing.T) {
	cfg := Config{SigningKeyID: "key-1", SigningKeySecretHex: "00ff", IssuerName: "Issuer"}
	entries, err := cfg.KeyringEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "key-1", entries[0].ID)
	require.Equal(t, "active", entries[0].Status)
	require.Equal(t, "Issuer", entries[0].Issuer)

	_, err = Config{}.KeyringEntries()
	require.Error(t, err)
}

func TestKeyringEntriesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keyring.yaml")
	body := []byte(`keys:
  - id: key-2024
    issuer: Truth Certificate Authority
    secret: 000102030405060708090a0b0c0d0e0f
    status: retired
  - id: key-2025
    issuer: Truth Certificate Authority
    secret: 0f0e0d0c0b0a09080706050403020100
    status: active
`)
	require.NoError(t, os.WriteFile(path, body, 0o600))

	entries, err := Config{SigningKeyringFile: path, SigningKeyID: "ignored"}.KeyringEntries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "key-2024", entries[0].ID)
	require.Equal(t, "retired", entries[0].Status)
	require.Equal(t, "key-2025", entries[1].ID)
}

func TestParseKeyringRejectsEmpty(t *testing.T) {
	_, err := ParseKeyring([]byte("keys: []\n"))
	require.Error(t, err)
	_, err = ParseKeyring([]byte("keys: [\n"))
	require.Error(t, err)
}
