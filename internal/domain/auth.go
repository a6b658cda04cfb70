package domain

import "context"

type Principal struct {
	Subject string
	Roles   []string
}

const RoleAdmin = "admin"

// Authenticator resolves an admin credential presented on a request.
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (Principal, error)
}
