// internal/api/handlers/response.go
// 統一回應格式與錯誤對應

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"mail-merge/internal/models"
	"mail-merge/internal/services"
)

func respondOK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

// respondError 依錯誤種類回傳對應的狀態碼
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	var validationErr *models.ValidationError
	var formatErr *models.FormatError
	var sendErr *models.SendError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "validation_error",
			"field":   validationErr.Field,
			"message": validationErr.Message,
		})
	case errors.As(err, &formatErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "format_error",
			"line":    formatErr.Line,
			"message": formatErr.Error(),
		})
	case errors.As(err, &sendErr):
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"error":   "send_failed",
			"reason":  sendErr.Reason,
			"message": sendErr.Error(),
		})
	case errors.Is(err, services.ErrRunNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "not_found",
			"message": "Run not found",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "internal_error",
			"message": err.Error(),
		})
	}
}

// respondBindError 請求格式錯誤
func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   "invalid_request",
		"message": err.Error(),
	})
}
