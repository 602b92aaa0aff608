package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"permission_service/internal/config"
	"permission_service/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

type JWTService struct{}

func NewJWTService() *JWTService {
	return &JWTService{}
}

// GenerateAdminToken issues a token for the permission admin API, bound to
// the actor's level and optionally to specific guilds.
func (jwt_s *JWTService) GenerateAdminToken(actorID int64, level models.PermissionLevel, guildIDs []int64) (string, error) {
	claim := models.AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Duration(config.ServiceConfig.JWTExpired) * time.Hour)),
			Issuer:    "permission-service",
		},
		Id:       "C-" + randomClaimID(6),
		ActorID:  actorID,
		Level:    level,
		GuildIDs: guildIDs,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claim)
	tokenString, err := token.SignedString([]byte(config.ServiceConfig.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("error generate token string: %w", err)
	}
	return tokenString, nil
}

// ValidateAdminToken parses and verifies a token, returning its claims.
func (jwt_s *JWTService) ValidateAdminToken(tokenString string) (*models.AdminClaims, error) {
	claims := &models.AdminClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(config.ServiceConfig.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("error validating token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is not valid")
	}
	return claims, nil
}

func randomClaimID(length int) string {
	buf := make([]byte, (length+1)/2)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)[:length]
}
