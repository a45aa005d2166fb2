// Package auth guards the sales API with HS256 bearer tokens and an optional
// token blacklist owned by the users service.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	jwt "github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-sales-orders/internal/apperr"
)

// Blacklist reports revoked tokens. Implementations must fail open.
type Blacklist interface {
	IsBlacklisted(ctx context.Context, token string) bool
}

// ErrorWriter renders an authentication failure.
type ErrorWriter func(w http.ResponseWriter, err error)

type claimsKey struct{}

// Claims returns the verified token claims stored by Authenticator.Require.
func Claims(ctx context.Context) (jwt.MapClaims, bool) {
	c, ok := ctx.Value(claimsKey{}).(jwt.MapClaims)
	return c, ok
}

type Authenticator struct {
	secret     []byte
	issuer     string
	audience   string
	blacklist  Blacklist
	logger     *zap.Logger
	writeError ErrorWriter
	parser     *jwt.Parser
}

type Option func(*Authenticator)

func WithBlacklist(b Blacklist) Option {
	return func(a *Authenticator) { a.blacklist = b }
}

// WithIssuer requires the iss claim to equal iss.
func WithIssuer(iss string) Option {
	return func(a *Authenticator) { a.issuer = iss }
}

// WithAudience requires the aud claim to contain aud.
func WithAudience(aud string) Option {
	return func(a *Authenticator) { a.audience = aud }
}

func WithLogger(l *zap.Logger) Option {
	return func(a *Authenticator) {
		if l != nil {
			a.logger = l
		}
	}
}

func WithErrorWriter(fn ErrorWriter) Option {
	return func(a *Authenticator) {
		if fn != nil {
			a.writeError = fn
		}
	}
}

// New builds an Authenticator. An empty secret rejects every token with
// MISSING_JWT_SECRET.
func New(secret string, opts ...Option) *Authenticator {
	a := &Authenticator{
		secret:     []byte(secret),
		logger:     zap.NewNop(),
		writeError: plainError,
		parser:     jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Require rejects requests without a valid, non-blacklisted bearer token.
func (a *Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if strings.TrimSpace(header) == "" {
			a.writeError(w, apperr.New(apperr.ErrTokenRequired, "TOKEN_REQUIRED"))
			return
		}
		token, ok := extractBearerToken(header)
		if !ok {
			a.writeError(w, apperr.New(apperr.ErrInvalidTokenFormat, "INVALID_TOKEN_FORMAT"))
			return
		}

		claims, err := a.Verify(token)
		if err != nil {
			a.logger.Warn("jwt verification failed", zap.String("key", apperr.Key(err)), zap.Error(err))
			a.writeError(w, err)
			return
		}

		if a.blacklist != nil && a.blacklist.IsBlacklisted(r.Context(), token) {
			a.writeError(w, apperr.New(apperr.ErrTokenBlacklisted, "TOKEN_BLACKLISTED"))
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
	})
}

// Verify parses token and classifies failures into the TOKEN_* keys.
func (a *Authenticator) Verify(token string) (jwt.MapClaims, error) {
	if len(a.secret) == 0 {
		return nil, apperr.New(apperr.ErrMissingJWTSecret, "MISSING_JWT_SECRET")
	}

	claims := jwt.MapClaims{}
	_, err := a.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("auth: unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err == nil {
		return a.verifyClaims(claims)
	}

	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, apperr.Wrap(apperr.ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return nil, apperr.Wrap(apperr.ErrTokenNotActive, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return nil, apperr.Wrap(apperr.ErrInvalidTokenSignature, err)
	default:
		return nil, apperr.Wrap(apperr.ErrInvalidToken, err)
	}
}

func (a *Authenticator) verifyClaims(claims jwt.MapClaims) (jwt.MapClaims, error) {
	if a.issuer != "" && !claims.VerifyIssuer(a.issuer, true) {
		return nil, apperr.Wrap(apperr.ErrInvalidTokenSignature, fmt.Errorf("auth: issuer %v not accepted", claims["iss"]))
	}
	if a.audience != "" && !claims.VerifyAudience(a.audience, true) {
		return nil, apperr.Wrap(apperr.ErrInvalidTokenSignature, fmt.Errorf("auth: audience %v not accepted", claims["aud"]))
	}
	return claims, nil
}

func extractBearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

func plainError(w http.ResponseWriter, err error) {
	http.Error(w, apperr.Key(err), apperr.HTTPStatus(err))
}
