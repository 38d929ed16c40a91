package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
)

// JWTService issues and checks operator tokens for the admin endpoints.
type JWTService interface {
	GenerateToken(subject string, admin bool, ttl time.Duration) (string, error)
	// ValidateAdmin returns the token subject when the token is valid and carries the admin claim.
	ValidateAdmin(tokenString string) (string, error)
}

type jWTServiceImpl struct {
	key    []byte
	issuer string
}

func NewJWTService(key []byte, issuer string) JWTService {
	return &jWTServiceImpl{key: key, issuer: issuer}
}

// GenerateToken generates an HS256 token
func (j *jWTServiceImpl) GenerateToken(subject string, admin bool, ttl time.Duration) (string, error) {
	if len(j.key) == 0 {
		return "", errors.New("jwt key is not configured")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	claims := jwt.MapClaims{
		"iss":   j.issuer,
		"sub":   subject,
		"admin": admin,
		"exp":   time.Now().Add(ttl).Unix(),
		"iat":   time.Now().Unix(),
	}

	token := jwt.New(jwt.SigningMethodHS256)
	token.Claims = claims
	return token.SignedString(j.key)
}

func (j *jWTServiceImpl) ValidateAdmin(tokenString string) (string, error) {
	if len(j.key) == 0 {
		return "", errors.New("jwt key is not configured")
	}
	// Parse token string, ignore "Bearer " prefix
	tokenString = strings.TrimPrefix(tokenString, "Bearer ")

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.key, nil
	})
	if err != nil {
		return "", fmt.Errorf("token parse failed: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid token claims")
	}

	// 校验签发者和有效期
	if !claims.VerifyIssuer(j.issuer, true) {
		return "", fmt.Errorf("issuer validation failed")
	}
	if !claims.VerifyExpiresAt(time.Now().Unix(), true) {
		return "", fmt.Errorf("token expired")
	}

	if admin, _ := claims["admin"].(bool); !admin {
		return "", errors.New("admin claim missing")
	}
	sub, _ := claims["sub"].(string)
	return sub, nil
}
