// internal/services/token_service.go
// API Token 服務 - 簽發與驗證 JWT (HS256)

package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "mail-merge"

// ErrTokenDisabled 未設定 JWT_SECRET
var ErrTokenDisabled = errors.New("JWT_SECRET is not configured")

// TokenService API Token 服務
type TokenService struct {
	secret []byte
}

// NewTokenService 建立 Token 服務
func NewTokenService(secret string) *TokenService {
	return &TokenService{secret: []byte(secret)}
}

// Enabled 是否啟用 API 認證
func (s *TokenService) Enabled() bool {
	return len(s.secret) > 0
}

// Issue 簽發 Token，ttl 為 0 表示不過期
func (s *TokenService) Issue(subject string, ttl time.Duration) (string, error) {
	if !s.Enabled() {
		return "", ErrTokenDisabled
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss": tokenIssuer,
		"sub": subject,
		"jti": uuid.New().String(),
		"iat": now.Unix(),
	}
	if ttl > 0 {
		claims["exp"] = now.Add(ttl).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify 驗證 Token 並回傳 subject
func (s *TokenService) Verify(tokenString string) (string, error) {
	if !s.Enabled() {
		return "", ErrTokenDisabled
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// 確認簽名方法
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return "", errors.New("invalid token")
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", errors.New("token missing subject")
	}
	return subject, nil
}
