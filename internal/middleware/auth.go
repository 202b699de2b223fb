package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"chat-graphql/internal/authz"
	"chat-graphql/internal/logging"
	"chat-graphql/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// AuthConfig controls how bearer tokens become authorization principals.
type AuthConfig struct {
	// Mode is "none", "hs256" or "oidc".
	Mode string

	HS256Secret []byte
	Issuer      string
	Audience    string
	ClockSkew   time.Duration

	UserIDClaim string
	AdminClaim  string
}

// TokenVerifier checks a bearer token and returns its claims.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (map[string]interface{}, error)
}

// tokenError classifies a rejected token for metrics and logs.
type tokenError struct {
	reason string
	err    error
}

func (e *tokenError) Error() string {
	return fmt.Sprintf("%s: %v", e.reason, e.err)
}

func (e *tokenError) Unwrap() error {
	return e.err
}

// NewTokenVerifier builds the verifier for the configured mode. Mode "none"
// returns a nil verifier.
func NewTokenVerifier(ctx context.Context, cfg AuthConfig) (TokenVerifier, error) {
	switch cfg.Mode {
	case "", "none":
		return nil, nil
	case "hs256":
		v, err := NewHS256Verifier(cfg.HS256Secret, cfg.Issuer, cfg.Audience, cfg.ClockSkew)
		if err != nil {
			return nil, err
		}
		return v, nil
	case "oidc":
		v, err := NewOIDCVerifier(ctx, OIDCAuthConfig{
			IssuerURL: cfg.Issuer,
			Audience:  cfg.Audience,
			ClockSkew: cfg.ClockSkew,
		})
		if err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.Mode)
	}
}

// AuthMiddleware attaches an authz.Principal to requests carrying a valid
// bearer token. Requests without a token pass through anonymously so that
// resolvers report UNAUTHENTICATED per field; a token that fails verification
// is rejected with 401.
// Optional securityMetrics parameter enables security monitoring; pass nil to disable.
func AuthMiddleware(cfg AuthConfig, verifier TokenVerifier, securityMetrics *observability.SecurityMetrics) func(http.Handler) http.Handler {
	if verifier == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if cfg.UserIDClaim == "" {
		cfg.UserIDClaim = "user_id"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			reqLogger := logging.FromContext(ctx)

			tokenString := bearerToken(r.Header.Get("Authorization"))
			if tokenString == "" {
				next.ServeHTTP(w, r)
				return
			}
			securityMetrics.RecordAuthAttempt(ctx, cfg.Mode)

			claims, err := verifier.Verify(ctx, tokenString)
			if err == nil {
				err = validateTimeClaims(claims, cfg.ClockSkew)
				if err != nil {
					err = &tokenError{reason: "time_validation_failed", err: err}
				}
			}
			var principal authz.Principal
			if err == nil {
				principal, err = principalFromClaims(claims, cfg.UserIDClaim, cfg.AdminClaim)
			}
			if err != nil {
				reason := "verification_failed"
				var te *tokenError
				if errors.As(err, &te) {
					reason = te.reason
				}
				securityMetrics.RecordAuthFailure(ctx, cfg.Mode, reason)
				securityMetrics.RecordTokenValidationError(ctx, reason)
				reqLogger.Warn("authentication failed",
					slog.String("reason", reason),
					slog.String("error", err.Error()),
					slog.String("remote_addr", r.RemoteAddr),
				)
				writeUnauthorized(w, "invalid token")
				return
			}

			issuer, _ := claims["iss"].(string)
			securityMetrics.RecordAuthSuccess(ctx, cfg.Mode, issuer)

			reqLogger = reqLogger.WithFields(
				slog.String("subject", principal.Subject),
				slog.Int64("user_id", principal.UserID),
			)
			reqLogger.Debug("authentication successful", slog.Bool("admin", principal.Admin))

			if span := trace.SpanFromContext(ctx); span.IsRecording() {
				span.SetAttributes(
					attribute.String("auth.subject", principal.Subject),
					attribute.Int64("auth.user_id", principal.UserID),
					attribute.Bool("auth.admin", principal.Admin),
					attribute.Bool("auth.authenticated", true),
				)
			}

			ctx = authz.WithPrincipal(ctx, principal)
			ctx = logging.WithLogger(ctx, reqLogger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// principalFromClaims maps verified claims to a principal. The user id claim
// is required; the admin claim is optional and must be boolean true to count.
func principalFromClaims(claims map[string]interface{}, userIDClaim, adminClaim string) (authz.Principal, error) {
	userID, err := numericClaim(claims[userIDClaim])
	if err != nil {
		return authz.Principal{}, &tokenError{reason: "missing_user_id", err: fmt.Errorf("claim %q: %w", userIDClaim, err)}
	}

	p := authz.Principal{UserID: userID}
	p.Subject, _ = claims["sub"].(string)
	if p.Subject == "" {
		p.Subject = strconv.FormatInt(userID, 10)
	}
	if adminClaim != "" {
		p.Admin, _ = claims[adminClaim].(bool)
	}
	return p, nil
}

func numericClaim(value interface{}) (int64, error) {
	switch v := value.(type) {
	case nil:
		return 0, errors.New("missing")
	case float64:
		if v != math.Trunc(v) || v <= 0 || v >= math.MaxInt64 {
			return 0, fmt.Errorf("%v is not a positive integer", v)
		}
		return int64(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("%q is not a positive integer", v.String())
		}
		return n, nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("%q is not a positive integer", v)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("unsupported type %T", value)
	}
}

func bearerToken(value string) string {
	parts := strings.SplitN(value, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// validateTimeClaims enforces exp and nbf with the given leeway. Tokens
// without an exp claim are rejected.
func validateTimeClaims(claims map[string]interface{}, skew time.Duration) error {
	if skew < 0 {
		skew = 0
	}

	now := time.Now()
	exp, ok := numericDate(claims["exp"])
	if !ok {
		return errors.New("token has no expiry")
	}
	if now.After(exp.Add(skew)) {
		return errors.New("token expired")
	}
	if nbf, ok := numericDate(claims["nbf"]); ok {
		if now.Add(skew).Before(nbf) {
			return errors.New("token not valid yet")
		}
	}
	return nil
}

func numericDate(value interface{}) (time.Time, bool) {
	switch v := value.(type) {
	case float64:
		return time.Unix(int64(v), 0), true
	case int64:
		return time.Unix(v, 0), true
	case int:
		return time.Unix(int64(v), 0), true
	case json.Number:
		parsed, err := v.Int64()
		if err != nil {
			return time.Time{}, false
		}
		return time.Unix(parsed, 0), true
	case string:
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		return time.Unix(parsed, 0), true
	default:
		return time.Time{}, false
	}
}
