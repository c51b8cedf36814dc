package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"liveclass/pkg/types"
)

// Service verifies identity tokens minted by the platform's auth provider.
// The coordinator never issues credentials; it only checks the signature and
// extracts {id, displayName, role} for the lifetime of one connection.
type Service struct {
	secret []byte
}

func NewService(secret []byte) *Service {
	return &Service{secret: secret}
}

type identityClaims struct {
	DisplayName string `json:"name"`
	Role        string `json:"role"`
	jwt.RegisteredClaims
}

// Verify parses and validates a token and returns the identity it carries.
// Any failure maps to types.ErrUnauthorized; the caller reports it to the
// connection and closes.
func (s *Service) Verify(tokenString string) (types.Identity, error) {
	if tokenString == "" {
		return types.Identity{}, fmt.Errorf("%w: missing token", types.ErrUnauthorized)
	}

	claims := &identityClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return types.Identity{}, fmt.Errorf("%w: token rejected", types.ErrUnauthorized)
	}

	identity := types.Identity{
		ID:          claims.Subject,
		DisplayName: claims.DisplayName,
		Role:        types.Role(claims.Role),
	}
	if !types.IsValidParticipantID(identity.ID) {
		return types.Identity{}, fmt.Errorf("%w: bad subject", types.ErrUnauthorized)
	}
	if !identity.Role.Valid() {
		return types.Identity{}, fmt.Errorf("%w: bad role %q", types.ErrUnauthorized, claims.Role)
	}
	if identity.DisplayName == "" {
		identity.DisplayName = identity.ID
	}
	return identity, nil
}

// Mint issues a token for the given identity. Used by tests and by the dev
// token CLI flag; production tokens come from the platform.
func (s *Service) Mint(identity types.Identity, ttl time.Duration) (string, error) {
	claims := identityClaims{
		DisplayName: identity.DisplayName,
		Role:        string(identity.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
