package crypto

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"truthcert/internal/domain"
)

// Sign returns the lowercase hex HMAC-SHA256 of the record's canonical form.
func Sign(record domain.CertificateRecord, key []byte) (string, error) {
	if len(key) == 0 {
		return "", fmt.Errorf("%w: signing key is empty", domain.ErrKeyUnknown)
	}
	canonical, err := Canonicalize(record)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(mac(key, canonical)), nil
}

// Verify reports whether signature matches the record under key. A malformed
// signature is a mismatch, not an error.
func Verify(record domain.CertificateRecord, signature string, key []byte) (bool, error) {
	canonical, err := Canonicalize(record)
	if err != nil {
		return false, err
	}
	if len(key) == 0 {
		return false, nil
	}
	sig, err := hex.DecodeString(signature)
	if err != nil || len(sig) != sha256.Size {
		return false, nil
	}
	return hmac.Equal(sig, mac(key, canonical)), nil
}

func mac(key, payload []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(payload)
	return h.Sum(nil)
}

// Engine signs and verifies records with keys resolved from its keyring by
// the record's PublicKeyID.
type Engine struct {
	keys domain.Keyring
}

func NewEngine(keys domain.Keyring) *Engine {
	return &Engine{keys: keys}
}

func (e *Engine) Sign(ctx context.Context, record domain.CertificateRecord) (string, error) {
	if e == nil || e.keys == nil {
		return "", errors.New("signature engine not configured")
	}
	key, err := e.keys.Key(ctx, record.PublicKeyID)
	if err != nil {
		return "", err
	}
	if key.Status != domain.KeyStatusActive {
		return "", fmt.Errorf("%w: key %s is %s", domain.ErrKeyUnknown, key.ID, key.Status)
	}
	return Sign(record, key.Secret)
}

// Verify checks signature against the record. An unknown key id verifies
// false; a revoked key still verifies so that the issuer check, not the
// signature check, reports it.
func (e *Engine) Verify(ctx context.Context, record domain.CertificateRecord, signature string) (bool, error) {
	if e == nil || e.keys == nil {
		return false, errors.New("signature engine not configured")
	}
	key, err := e.keys.Key(ctx, record.PublicKeyID)
	if err != nil {
		if errors.Is(err, domain.ErrKeyUnknown) {
			if _, cerr := Canonicalize(record); cerr != nil {
				return false, cerr
			}
			return false, nil
		}
		return false, err
	}
	return Verify(record, signature, key.Secret)
}
