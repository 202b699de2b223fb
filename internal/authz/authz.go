// Package authz carries the authenticated principal through request contexts.
package authz

import (
	"context"
	"strconv"
)

// Principal is the identity a query is resolved on behalf of.
type Principal struct {
	Subject string
	UserID  int64
	Admin   bool
}

// UserIDString returns the principal's user ID in the string form used for ID values.
func (p Principal) UserIDString() string {
	return strconv.FormatInt(p.UserID, 10)
}

type principalKey struct{}

// WithPrincipal returns a context carrying the principal.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal stored on the context, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// RequirePrincipal returns the context's principal or an UnauthorizedError.
func RequirePrincipal(ctx context.Context) (Principal, error) {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return Principal{}, &UnauthorizedError{}
	}
	return p, nil
}

// UnauthorizedError reports a resolution attempted without a principal.
type UnauthorizedError struct{}

func (e *UnauthorizedError) Error() string {
	return "unauthorized: no authenticated principal"
}

func (e *UnauthorizedError) Extensions() map[string]interface{} {
	return map[string]interface{}{"code": "UNAUTHENTICATED"}
}
