package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"user-service/internal/model"
)

const (
	DefaultTokenTTL = time.Hour
	MinSecretLength = 32
)

// Verification failure kinds. They are kept apart for logging only; all of
// them match model.ErrUnauthorized.
var (
	ErrTokenExpired      = &TokenError{Reason: "token expired"}
	ErrTokenSignature    = &TokenError{Reason: "token signature invalid"}
	ErrTokenMalformed    = &TokenError{Reason: "token malformed"}
	ErrTokenClaims       = &TokenError{Reason: "token claims invalid"}
	errSecretTooShort    = fmt.Errorf("jwt secret must be at least %d bytes", MinSecretLength)
	errEmptyTokenSubject = errors.New("token subject and user id are required")
)

type TokenError struct {
	Reason string
}

func (e *TokenError) Error() string {
	return e.Reason
}

func (e *TokenError) Is(target error) bool {
	return target == model.ErrUnauthorized
}

// claims carries the user id next to the username subject. The id never
// changes, so a token cannot follow a username to a different account.
type claims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and verifies HS256 signed, time-bound credential tokens.
// Issued tokens are never stored; rotating the secret invalidates all of them.
//
// A token is valid strictly before its expiry instant.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret string, issuer string, ttl time.Duration) (*TokenIssuer, error) {
	if len(secret) < MinSecretLength {
		return nil, errSecretTooShort
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	return &TokenIssuer{
		secret: []byte(secret),
		issuer: strings.TrimSpace(issuer),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// WithClock returns a copy of the issuer that reads time from now.
func (i *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	clone := *i
	clone.now = now
	return &clone
}

func (i *TokenIssuer) Issue(subject string, userID string) (string, error) {
	if strings.TrimSpace(subject) == "" || strings.TrimSpace(userID) == "" {
		return "", errEmptyTokenSubject
	}

	now := i.now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    i.issuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	})

	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the asserted claims. Every
// failure is a *TokenError.
func (i *TokenIssuer) Verify(tokenString string) (model.TokenClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(i.now),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}

	parsed := &claims{}
	_, err := jwt.ParseWithClaims(strings.TrimSpace(tokenString), parsed, func(*jwt.Token) (any, error) {
		return i.secret, nil
	}, opts...)
	if err != nil {
		return model.TokenClaims{}, classify(err)
	}

	if strings.TrimSpace(parsed.Subject) == "" || strings.TrimSpace(parsed.UserID) == "" {
		return model.TokenClaims{}, ErrTokenClaims
	}

	out := model.TokenClaims{
		Subject: parsed.Subject,
		UserID:  parsed.UserID,
		TokenID: parsed.ID,
	}
	if parsed.IssuedAt != nil {
		out.IssuedAt = parsed.IssuedAt.Time
	}
	if parsed.ExpiresAt != nil {
		out.ExpiresAt = parsed.ExpiresAt.Time
	}
	return out, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrTokenSignature
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrTokenMalformed
	default:
		return ErrTokenClaims
	}
}
