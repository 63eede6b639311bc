package utils

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	RoleCustomer = "customer"
	RoleVendor   = "vendor"
)

// Principal is the authenticated caller as carried by the token. VendorID is
// set only for vendor-role principals.
type Principal struct {
	UserID   uuid.UUID
	Role     string
	VendorID *uuid.UUID
}

type jwtCustomClaims struct {
	UserID   string `json:"user_id"`
	Role     string `json:"role"`
	VendorID string `json:"vendor_id,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken creates a signed JWT for the provided principal.
func GenerateToken(secret string, p Principal, ttl time.Duration) (string, error) {
	claims := &jwtCustomClaims{
		UserID: p.UserID.String(),
		Role:   p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	if p.VendorID != nil {
		claims.VendorID = p.VendorID.String()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken validates the token and returns the embedded principal.
func ParseToken(secret, tokenString string) (Principal, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwtCustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return Principal{}, err
	}

	claims, ok := token.Claims.(*jwtCustomClaims)
	if !ok || !token.Valid {
		return Principal{}, jwt.ErrTokenInvalidClaims
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return Principal{}, err
	}

	p := Principal{UserID: userID, Role: claims.Role}
	if claims.VendorID != "" {
		vendorID, err := uuid.Parse(claims.VendorID)
		if err != nil {
			return Principal{}, err
		}
		p.VendorID = &vendorID
	}

	return p, nil
}
