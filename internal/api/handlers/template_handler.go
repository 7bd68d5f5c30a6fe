// internal/api/handlers/template_handler.go
// 範本 Handler

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mail-merge/internal/merge"
	"mail-merge/internal/models"
	"mail-merge/internal/services"
)

// TemplateHandler 範本 Handler
type TemplateHandler struct {
	templates *services.TemplateStore
}

// NewTemplateHandler 建立 Template Handler
func NewTemplateHandler(templates *services.TemplateStore) *TemplateHandler {
	return &TemplateHandler{templates: templates}
}

// List 列出已儲存與內建範本
func (h *TemplateHandler) List(c *gin.Context) {
	respondOK(c, http.StatusOK, gin.H{
		"templates": h.templates.List(),
		"builtins":  services.Builtins(),
	})
}

// Get 取得單一範本 (含使用到的變數)
func (h *TemplateHandler) Get(c *gin.Context) {
	name := c.Param("name")
	tmpl, ok := h.templates.Get(name)
	if !ok {
		tmpl, ok = services.Builtins()[name]
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "not_found",
			"message": "Template not found",
		})
		return
	}

	respondOK(c, http.StatusOK, gin.H{
		"name":         name,
		"template":     tmpl,
		"placeholders": merge.Placeholders(tmpl.Subject + "\n" + tmpl.Body),
	})
}

// Put 新增或覆寫範本
func (h *TemplateHandler) Put(c *gin.Context) {
	var tmpl models.Template
	if err := c.ShouldBindJSON(&tmpl); err != nil {
		respondBindError(c, err)
		return
	}

	name := c.Param("name")
	if err := h.templates.Save(name, tmpl); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"name": name, "template": tmpl})
}

// Delete 刪除範本 (不存在時不視為錯誤)
func (h *TemplateHandler) Delete(c *gin.Context) {
	if err := h.templates.Delete(c.Param("name")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
