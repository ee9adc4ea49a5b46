package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// RoleAdmin in app_metadata grants the admin API.
const RoleAdmin = "admin"

// Token is a signed access token.
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

// AppMetadata is the server-controlled part of a session token.
type AppMetadata struct {
	Provider string `json:"provider,omitempty"`
	Role     string `json:"role,omitempty"`
}

// Claims represents the backend session JWT payload. user_metadata is left
// out: users can rewrite it, so nothing here may depend on it.
type Claims struct {
	Email       string      `json:"email"`
	Role        string      `json:"role"`
	AppMetadata AppMetadata `json:"app_metadata"`
	jwt.RegisteredClaims
}

// UserID is the subject of the token.
func (c Claims) UserID() string { return c.Subject }

func (c Claims) IsAdmin() bool { return c.AppMetadata.Role == RoleAdmin }

// Issue signs claims for ttl. Used for local sessions and tooling; production
// tokens come from the auth service.
func Issue(claims Claims, issuer, key string, ttl time.Duration) (Token, error) {
	if claims.Subject == "" {
		return Token{}, errors.New("subject required")
	}
	now := time.Now()
	exp := now.Add(ttl)
	if claims.Role == "" {
		claims.Role = "authenticated"
	}
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
	claims.Issuer = issuer
	claims.ExpiresAt = jwt.NewNumericDate(exp)
	claims.IssuedAt = jwt.NewNumericDate(now)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	if err != nil {
		return Token{}, err
	}
	return Token{AccessToken: signed, ExpiresAt: exp}, nil
}

// Parse validates a token and returns claims.
func Parse(tokenStr, key, issuer string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(key), nil
	})
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}
	if issuer != "" && claims.Issuer != issuer {
		return Claims{}, errors.New("issuer mismatch")
	}
	if claims.Subject == "" {
		return Claims{}, errors.New("token has no subject")
	}
	return *claims, nil
}
