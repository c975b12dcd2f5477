package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Role is the marketplace role carried by an authenticated principal.
type Role string

const (
	RoleCustomer   Role = "customer"
	RoleProvider   Role = "provider"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

// IsValid returns true if the role is a recognized marketplace role.
func (r Role) IsValid() bool {
	switch r {
	case RoleCustomer, RoleProvider, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// IsAdmin returns true for the administrator roles.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// Principal is the authenticated actor issuing a request.
type Principal struct {
	ID     uuid.UUID
	Role   Role
	Active bool
}

// Claims is the JWT claims payload for access tokens.
type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	Role   Role      `json:"role"`
	Active bool      `json:"active"`
	jwt.RegisteredClaims
}

// Principal converts the claims into a Principal.
func (c *Claims) Principal() Principal {
	return Principal{ID: c.UserID, Role: c.Role, Active: c.Active}
}

// JWTManager signs and verifies access tokens.
type JWTManager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewJWTManager creates a JWTManager with the given signing secret and TTLs.
func NewJWTManager(secret string, accessTTL, refreshTTL time.Duration) *JWTManager {
	return &JWTManager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// GenerateAccessToken issues a signed access token for the given principal.
func (m *JWTManager) GenerateAccessToken(p Principal) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		UserID: p.ID,
		Role:   p.Role,
		Active: p.Active,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// VerifyAccessToken parses and validates an access token, returning its claims.
func (m *JWTManager) VerifyAccessToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if !claims.Role.IsValid() {
		return nil, fmt.Errorf("invalid role in token: %s", claims.Role)
	}
	return claims, nil
}
