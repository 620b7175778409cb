package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/taskrewards/server/internal/model"
)

// TokenExpiry is the session token lifetime.
const TokenExpiry = 7 * 24 * time.Hour

// Session token verification failures. There is no per-token server state
// and no revocation list: a token stays valid for its full lifetime unless
// the signing secret is rotated, which invalidates all outstanding tokens.
var (
	ErrTokenMalformed = errors.New("session token malformed")
	ErrTokenSignature = errors.New("session token signature invalid")
	ErrTokenExpired   = errors.New("session token expired")
)

// SessionClaims are the claims embedded in a session token.
type SessionClaims struct {
	UserID uuid.UUID `json:"uid"`
	Email  string    `json:"email"`
	jwt.RegisteredClaims
}

// SessionService issues and verifies signed session tokens. The signing
// secret is held by this process only and never crosses the trust boundary.
type SessionService struct {
	secret []byte
	now    func() time.Time
}

// NewSessionService creates a SessionService. now may be nil for the real
// clock.
func NewSessionService(secret string, now func() time.Time) *SessionService {
	if now == nil {
		now = time.Now
	}
	return &SessionService{secret: []byte(secret), now: now}
}

// Issue creates a signed HS256 token for the user with a 7-day expiry and
// a unique token id.
func (s *SessionService) Issue(user model.User) (string, error) {
	now := s.now()
	claims := &SessionClaims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenExpiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return tokenString, nil
}

// Verify parses and validates a session token. It is a pure function of
// (token, secret, current time): no stored state is consulted or mutated.
func (s *SessionService) Verify(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrTokenSignature
		default:
			return nil, ErrTokenMalformed
		}
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}
