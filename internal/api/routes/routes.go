// internal/api/routes/routes.go
// Gin 路由註冊

package routes

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mail-merge/internal/api/handlers"
	"mail-merge/internal/api/middlewares"
	"mail-merge/internal/config"
	"mail-merge/internal/services"
)

// Dependencies 路由依賴
type Dependencies struct {
	Config        *config.Config
	Logger        *zap.Logger
	Dispatcher    *services.Dispatcher
	RunManager    *services.RunManager
	TemplateStore *services.TemplateStore
	ConfigStore   *services.ConfigStore
	TokenService  *services.TokenService
	KeyDBService  *services.KeyDBService // nil 表示使用記憶體儲存
}

// NewRouter 建立 Gin Engine 並註冊所有路由
func NewRouter(deps *Dependencies) *gin.Engine {
	if deps.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middlewares.Recovery(deps.Logger))
	router.Use(middlewares.RequestLogger(deps.Logger))

	RegisterRoutes(router, deps)
	return router
}

// RegisterRoutes 註冊所有路由
func RegisterRoutes(router *gin.Engine, deps *Dependencies) {
	var keydb handlers.Pinger
	if deps.KeyDBService != nil {
		keydb = deps.KeyDBService
	}

	// 初始化 Handlers
	healthHandler := handlers.NewHealthHandler(deps.Dispatcher.Sender(), deps.RunManager, keydb)
	mailHandler := handlers.NewMailHandler(deps.Config, deps.Dispatcher, deps.RunManager,
		deps.TemplateStore, deps.ConfigStore, deps.Logger)
	configHandler := handlers.NewConfigHandler(deps.ConfigStore)
	templateHandler := handlers.NewTemplateHandler(deps.TemplateStore)

	// 公開路由
	router.GET("/health", healthHandler.Health)

	// base64 附件約為原始大小的 4/3，另保留 1MB 給其他欄位
	bodyLimit := int64(deps.Config.MaxAttachmentSizeMB)*1024*1024*4/3 + 1024*1024

	// API v1 路由群組 (設定 JWT_SECRET 時需認證)
	v1 := router.Group("/api/v1")
	v1.Use(middlewares.JWTAuth(deps.TokenService))
	v1.Use(middlewares.BodySizeLimit(bodyLimit))
	{
		v1.GET("/config", configHandler.Get)
		v1.PUT("/config", configHandler.Put)

		v1.GET("/templates", templateHandler.List)
		v1.GET("/templates/:name", templateHandler.Get)
		v1.PUT("/templates/:name", templateHandler.Put)
		v1.DELETE("/templates/:name", templateHandler.Delete)

		v1.POST("/recipients/parse", mailHandler.ParseRecipients)
		v1.POST("/preview", mailHandler.Preview)
		v1.POST("/preview/send", mailHandler.SendPreview)
		v1.POST("/send/test", mailHandler.SendTest)
		v1.POST("/connection/test", mailHandler.TestConnection)

		v1.POST("/runs", mailHandler.StartRun)
		v1.GET("/runs/:id", mailHandler.GetRun)
		v1.DELETE("/runs/:id", mailHandler.StopRun)
	}
}
