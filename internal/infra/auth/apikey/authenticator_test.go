package apikey

import (
	"context"
	"errors"
	"testing"

	"truthcert/internal/domain"
)

func TestAuthenticate(t *testing.T) {
	auth := NewAuthenticator(" secret-key ")
	principal, err := auth.Authenticate(context.Background(), "secret-key")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if principal.Subject != AdminSubject {
		t.Fatalf("subject = %s", principal.Subject)
	}
	if err := RequireRole(principal, domain.RoleAdmin); err != nil {
		t.Fatalf("admin role: %v", err)
	}

	for _, cred := range []string{"", "wrong", "secret-key-2"} {
		if _, err := auth.Authenticate(context.Background(), cred); !errors.Is(err, domain.ErrUnauthorized) {
			t.Fatalf("credential %q: expected unauthorized, got %v", cred, err)
		}
	}
}

func TestDisabledAuthenticator(t *testing.T) {
	auth := NewAuthenticator("")
	if auth.Enabled() {
		t.Fatalf("empty key must disable the authenticator")
	}
	if _, err := auth.Authenticate(context.Background(), ""); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestRequireRole(t *testing.T) {
	if err := RequireRole(domain.Principal{}, domain.RoleAdmin); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("anonymous principal must be unauthorized")
	}
	if err := RequireRole(domain.Principal{Subject: "x", Roles: []string{"reader"}}, domain.RoleAdmin); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("missing role must be unauthorized")
	}
}
