// Package authz guards operator routes with OpenFGA relationship checks.
package authz

import (
	"context"
	"net/http"
	"strings"

	xlog "github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/log"
)

const anonymous = "user:anonymous"

// PrincipalFromRequest extracts the effective principal.
// Order of precedence:
// - X-Operator header (bare names get the "user:" prefix)
// - X-Principal header
// - anonymous
func PrincipalFromRequest(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get("X-Operator")); v != "" {
		if !strings.Contains(v, ":") {
			v = "user:" + v
		}
		return v
	}
	if v := strings.TrimSpace(r.Header.Get("X-Principal")); v != "" {
		return v
	}
	return anonymous
}

// Can checks authorization for the request's principal. Errors deny.
func Can(ctx context.Context, c Client, r *http.Request, object, relation string) (bool, error) {
	principal := PrincipalFromRequest(r)
	allowed, err := c.Check(ctx, principal, object, relation)
	if err != nil {
		logger := xlog.WithComponent("authz")
		logger.Warn().Err(err).
			Str("principal", principal).
			Str("object", object).
			Str("relation", relation).
			Msg("authz check failed")
		return false, err
	}
	return allowed, nil
}
