package apikey

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"truthcert/internal/domain"
)

const AdminSubject = "admin-key"

// Authenticator accepts a single shared admin key. An empty key disables
// every admin credential.
type Authenticator struct {
	key []byte
}

func NewAuthenticator(key string) *Authenticator {
	return &Authenticator{key: []byte(strings.TrimSpace(key))}
}

func (a *Authenticator) Enabled() bool {
	return a != nil && len(a.key) > 0
}

func (a *Authenticator) Authenticate(_ context.Context, credential string) (domain.Principal, error) {
	if !a.Enabled() {
		return domain.Principal{}, domain.ErrUnauthorized
	}
	credential = strings.TrimSpace(credential)
	if credential == "" || subtle.ConstantTimeCompare([]byte(credential), a.key) != 1 {
		return domain.Principal{}, domain.ErrUnauthorized
	}
	return domain.Principal{Subject: AdminSubject, Roles: []string{domain.RoleAdmin}}, nil
}

// RequireRole fails with ErrUnauthorized unless the principal holds role.
func RequireRole(principal domain.Principal, role string) error {
	if principal.Subject == "" {
		return domain.ErrUnauthorized
	}
	for _, r := range principal.Roles {
		if r == role {
			return nil
		}
	}
	return errors.Join(domain.ErrUnauthorized, errors.New("missing role "+role))
}
