package devserver

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kanb1/clinic-ai-app-sub001/pkg/types"
)

// TokenValidator issues and validates HS256 bearer tokens
type TokenValidator struct {
	jwtSecret []byte
	issuer    string
	ttl       time.Duration
}

// NewTokenValidator creates a new token validator
func NewTokenValidator(secret, issuer string, ttl time.Duration) *TokenValidator {
	return &TokenValidator{
		jwtSecret: []byte(secret),
		issuer:    issuer,
		ttl:       ttl,
	}
}

// ValidateJWT validates a JWT token and returns user claims
func (tv *TokenValidator) ValidateJWT(tokenString string) (*types.UserClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tv.jwtSecret, nil
	}, jwt.WithIssuer(tv.issuer))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	return &types.UserClaims{
		UserID:   claims.Subject,
		Name:     claims.Name,
		Role:     types.UserRole(claims.Role),
		ClinicID: claims.ClinicID,
	}, nil
}

// IssueToken signs a token for user valid for the configured TTL
func (tv *TokenValidator) IssueToken(user types.User) (string, error) {
	now := time.Now()

	claims := &JWTClaims{
		Name:     user.Name,
		Role:     string(user.Role),
		ClinicID: user.ClinicID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(tv.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tv.issuer,
			Subject:   user.ID,
		},
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tv.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// JWTClaims represents JWT token claims
type JWTClaims struct {
	Name     string `json:"name"`
	Role     string `json:"role"`
	ClinicID string `json:"clinic_id,omitempty"`
	jwt.RegisteredClaims
}
