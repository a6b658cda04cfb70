package domain

import "context"

type PolicyDeny struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

type PolicyResult struct {
	Allow bool         `json:"allow"`
	Deny  []PolicyDeny `json:"deny,omitempty"`
}

// IssuerPolicy decides whether a certificate's issuing key is authorized.
type IssuerPolicy interface {
	Evaluate(ctx context.Context, input IssuerPolicyInput) (PolicyResult, error)
}
