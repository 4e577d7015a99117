// Package auth validates the JWTs that identify bidders, sellers and admins.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"market-connect/internal/biddingerrors"
	"market-connect/internal/models"
)

// ErrMissingToken is returned when a request carries no token at all.
var ErrMissingToken = errors.New("missing token")

// Identity is who the caller is, as far as the engine cares.
type Identity struct {
	UserID string      `json:"user_id"`
	Name   string      `json:"name"`
	Role   models.Role `json:"role"`
}

// Bidder returns the identity as a bid participant.
func (i Identity) Bidder() models.Bidder {
	return models.Bidder{UserID: i.UserID, Name: i.Name}
}

// IsAdmin reports whether the identity carries the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == models.RoleAdmin
}

// Claims is the JWT payload. The subject is the user id.
type Claims struct {
	Name string      `json:"name"`
	Role models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Service signs and validates HS256 tokens.
type Service struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewService creates a token service with the shared secret.
func NewService(secret string, ttl time.Duration) *Service {
	return &Service{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// GenerateToken mints a token for id.
func (s *Service) GenerateToken(id Identity) (string, error) {
	if id.UserID == "" {
		return "", fmt.Errorf("auth: %w - empty user id", biddingerrors.ErrUnauthorized)
	}
	if id.Role == "" {
		id.Role = models.RoleBidder
	}

	now := s.now()
	claims := Claims{
		Name: id.Name,
		Role: id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  id.UserID,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if s.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.ttl))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses token and returns the identity it carries. Every
// failure wraps biddingerrors.ErrUnauthorized.
func (s *Service) ValidateToken(token string) (Identity, error) {
	if token == "" {
		return Identity{}, fmt.Errorf("auth: %w - %w", biddingerrors.ErrUnauthorized, ErrMissingToken)
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return Identity{}, fmt.Errorf("auth: %w - invalid token: %v", biddingerrors.ErrUnauthorized, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return Identity{}, fmt.Errorf("auth: %w - invalid token claims", biddingerrors.ErrUnauthorized)
	}

	role := claims.Role
	switch role {
	case models.RoleBidder, models.RoleSeller, models.RoleAdmin:
	case "":
		role = models.RoleBidder
	default:
		return Identity{}, fmt.Errorf("auth: %w - unknown role %q", biddingerrors.ErrUnauthorized, role)
	}

	return Identity{UserID: claims.Subject, Name: claims.Name, Role: role}, nil
}
