package soft

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"

	"truthcert/internal/config"
	"truthcert/internal/domain"
)

// MinSecretSize is the shortest HMAC secret accepted for signing.
const MinSecretSize = 16

// Keyring holds signing secrets in process memory.
type Keyring struct {
	keys   map[string]domain.SigningKey
	active string
}

func NewKeyring(keys []domain.SigningKey) (*Keyring, error) {
	k := &Keyring{keys: make(map[string]domain.SigningKey, len(keys))}
	for _, key := range keys {
		if err := validateKey(key); err != nil {
			return nil, err
		}
		if _, dup := k.keys[key.ID]; dup {
			return nil, fmt.Errorf("duplicate key id %s", key.ID)
		}
		if key.Status == domain.KeyStatusActive {
			if k.active != "" {
				return nil, fmt.Errorf("more than one active key: %s, %s", k.active, key.ID)
			}
			k.active = key.ID
		}
		key.Secret = append([]byte(nil), key.Secret...)
		k.keys[key.ID] = key
	}
	if k.active == "" {
		return nil, errors.New("keyring has no active key")
	}
	return k, nil
}

func NewKeyringFromConfig(cfg config.Config) (*Keyring, error) {
	entries, err := cfg.KeyringEntries()
	if err != nil {
		return nil, err
	}
	keys := make([]domain.SigningKey, 0, len(entries))
	for _, entry := range entries {
		secret := readSecret(entry.Secret)
		if secret == nil {
			return nil, fmt.Errorf("key %s: secret must be hex or base64", entry.ID)
		}
		issuer := entry.Issuer
		if issuer == "" {
			issuer = cfg.IssuerName
		}
		status := domain.KeyStatus(strings.ToLower(entry.Status))
		if status == "" {
			status = domain.KeyStatusActive
		}
		keys = append(keys, domain.SigningKey{
			ID:        entry.ID,
			Issuer:    issuer,
			Secret:    secret,
			Status:    status,
			CreatedAt: entry.CreatedAt,
		})
	}
	return NewKeyring(keys)
}

func (k *Keyring) Key(_ context.Context, id string) (domain.SigningKey, error) {
	if k == nil {
		return domain.SigningKey{}, domain.ErrKeyUnknown
	}
	key, ok := k.keys[id]
	if !ok {
		return domain.SigningKey{}, fmt.Errorf("%w: %s", domain.ErrKeyUnknown, id)
	}
	return key, nil
}

func (k *Keyring) Active(ctx context.Context) (domain.SigningKey, error) {
	if k == nil {
		return domain.SigningKey{}, domain.ErrKeyUnknown
	}
	return k.Key(ctx, k.active)
}

// List returns keys sorted by id with secrets removed.
func (k *Keyring) List(_ context.Context) ([]domain.SigningKey, error) {
	if k == nil {
		return nil, nil
	}
	out := make([]domain.SigningKey, 0, len(k.keys))
	for _, key := range k.keys {
		key.Secret = nil
		out = append(out, key)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func validateKey(key domain.SigningKey) error {
	if key.ID == "" {
		return errors.New("key id is required")
	}
	if len(key.Secret) < MinSecretSize {
		return fmt.Errorf("key %s: secret shorter than %d bytes", key.ID, MinSecretSize)
	}
	switch key.Status {
	case domain.KeyStatusActive, domain.KeyStatusRetired, domain.KeyStatusRevoked:
		return nil
	default:
		return fmt.Errorf("key %s: unsupported status %q", key.ID, key.Status)
	}
}

func readSecret(value string) []byte {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	if raw, err := hex.DecodeString(value); err == nil {
		return raw
	}
	if raw, err := base64.StdEncoding.DecodeString(value); err == nil {
		return raw
	}
	return nil
}
