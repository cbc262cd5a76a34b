package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/minhvodev/storefront-backend/pkg/enums"
)

// AccessTokenClaims represents the typed JWT issued to clients by the auth
// collaborator. This service only verifies and reads; issuance is external.
type AccessTokenClaims struct {
	UserID uuid.UUID      `json:"user_id"`
	Role   enums.UserRole `json:"role"`
	jwt.RegisteredClaims
}
