package policyopa

import "github.com/open-policy-agent/opa/ast"

// allowedBuiltins keeps issuer policies pure: no network, time or randomness.
var allowedBuiltins = map[string]struct{}{
	"concat":     {},
	"contains":   {},
	"count":      {},
	"endswith":   {},
	"eq":         {},
	"equal":      {},
	"gt":         {},
	"gte":        {},
	"lower":      {},
	"lt":         {},
	"lte":        {},
	"neq":        {},
	"object.get": {},
	"sprintf":    {},
	"startswith": {},
	"trim":       {},
	"upper":      {},
}

func filterBuiltins(builtins []*ast.Builtin) []*ast.Builtin {
	allowed := make([]*ast.Builtin, 0, len(builtins))
	for _, builtin := range builtins {
		if _, ok := allowedBuiltins[builtin.Name]; !ok {
			continue
		}
		allowed = append(allowed, builtin)
	}
	return allowed
}
