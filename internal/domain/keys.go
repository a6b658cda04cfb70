package domain

import (
	"context"
	"time"
)

type KeyStatus string

const (
	KeyStatusActive  KeyStatus = "active"
	KeyStatusRetired KeyStatus = "retired"
	KeyStatusRevoked KeyStatus = "revoked"
)

// SigningKey is a symmetric signing secret identified by its public key id.
// Retired keys still verify; only the active key signs new certificates.
type SigningKey struct {
	ID        string
	Issuer    string
	Secret    []byte
	Status    KeyStatus
	CreatedAt time.Time
}

// Keyring resolves signing keys. Unknown ids return ErrKeyUnknown.
type Keyring interface {
	Key(ctx context.Context, id string) (SigningKey, error)
	Active(ctx context.Context) (SigningKey, error)
	List(ctx context.Context) ([]SigningKey, error)
}
