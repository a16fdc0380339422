package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shikshalabs/enrollhub-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID      uuid.UUID
	InstituteID *uuid.UUID
	Role        enums.UserRole
	JTI         string
}

// AccessTokenClaims represents the typed JWT issued to clients.
type AccessTokenClaims struct {
	UserID      uuid.UUID      `json:"user_id"`
	InstituteID *uuid.UUID     `json:"institute_id,omitempty"`
	Role        enums.UserRole `json:"role"`
	jwt.RegisteredClaims
}
