// internal/api/middlewares/auth.go
// JWT 認證中介軟體

package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"mail-merge/internal/services"
)

// JWTAuth 驗證 Bearer Token，並將 subject 存入 context
// 未設定 JWT_SECRET 時不驗證
func JWTAuth(tokens *services.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !tokens.Enabled() {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			unauthorized(c, "missing_token", "Authorization header is required")
			return
		}

		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "bearer") {
			unauthorized(c, "invalid_token_format", "Authorization header must be Bearer token")
			return
		}

		subject, err := tokens.Verify(strings.TrimSpace(token))
		if err != nil {
			unauthorized(c, "invalid_token", "Invalid or expired token")
			return
		}

		c.Set("subject", subject)
		c.Next()
	}
}

func unauthorized(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error":   code,
		"message": message,
	})
}
