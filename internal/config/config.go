// internal/config/config.go
// 設定模組 - 載入環境變數

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config 應用程式設定
type Config struct {
	// 環境
	Env     string
	APIPort string

	// 本機設定檔
	ConfigFile    string
	TemplatesFile string

	// 發送
	SendDelay        time.Duration // 每封郵件之間的等待時間
	SendTimeout      time.Duration // 單封發送逾時 (0 表示不限制)
	DeliveryProvider string        // smtp 或 sendgrid
	SMTPTLSInsecure  bool          // 不驗證伺服器憑證 (僅供連到本機 SMTP Sink)

	// SendGrid
	SendGridAPIKey  string
	SendGridAPIHost string // 空白表示使用官方 API 位址

	// 附件
	MaxAttachmentSizeMB int

	// KeyDB (批次狀態快取，空白表示使用記憶體)
	KeyDBURL       string
	KeyDBPassword  string
	KeyDBStatusTTL time.Duration

	// JWT (空白表示 API 不驗證)
	JWTSecret string

	// 日誌
	LogLevel string
	LogFile  string

	// SMTP Sink (本機收信測試伺服器)
	SMTPSinkPort           string
	SMTPSinkTLSEnabled     bool     // 是否提供 STARTTLS (自簽憑證)
	SMTPSinkAuthRequired   bool     // 是否需要認證
	SMTPSinkUsername       string   // 認證帳號
	SMTPSinkPassword       string   // 認證密碼
	SMTPSinkAllowedDomains []string // 允許的寄件網域 (空白表示允許全部)
	SMTPSinkMaxMessageSize int      // 最大訊息大小 (MB)
	SMTPSinkOutputDir      string   // 收到的郵件存成 .eml 的目錄 (空白表示不存檔)
}

// Load 載入設定
func Load() *Config {
	// 嘗試載入 .env 檔案 (開發環境)
	_ = godotenv.Load()

	return &Config{
		// 環境
		Env:     getEnv("APP_ENV", "development"),
		APIPort: getEnv("API_PORT", "8080"),

		// 本機設定檔
		ConfigFile:    getEnv("CONFIG_FILE", "config.json"),
		TemplatesFile: getEnv("TEMPLATES_FILE", "templates.json"),

		// 發送
		SendDelay:        time.Duration(getEnvAsInt("SEND_DELAY_MS", 2000)) * time.Millisecond,
		SendTimeout:      time.Duration(getEnvAsInt("SEND_TIMEOUT_SECONDS", 60)) * time.Second,
		DeliveryProvider: strings.ToLower(getEnv("DELIVERY_PROVIDER", "smtp")),
		SMTPTLSInsecure:  getEnvAsBool("SMTP_TLS_INSECURE", false),

		// SendGrid
		SendGridAPIKey:  getEnv("SENDGRID_API_KEY", ""),
		SendGridAPIHost: getEnv("SENDGRID_API_HOST", ""),

		// 附件
		MaxAttachmentSizeMB: getEnvAsInt("MAX_ATTACHMENT_SIZE_MB", 25),

		// KeyDB
		KeyDBURL:       getEnv("KEYDB_URL", ""),
		KeyDBPassword:  getEnv("KEYDB_PASSWORD", ""),
		KeyDBStatusTTL: time.Duration(getEnvAsInt("KEYDB_STATUS_TTL_HOURS", 24)) * time.Hour,

		// JWT
		JWTSecret: getEnv("JWT_SECRET", ""),

		// 日誌
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),

		// SMTP Sink
		SMTPSinkPort:           getEnv("SMTP_SINK_PORT", "2525"),
		SMTPSinkTLSEnabled:     getEnvAsBool("SMTP_SINK_TLS_ENABLED", true),
		SMTPSinkAuthRequired:   getEnvAsBool("SMTP_SINK_AUTH_REQUIRED", false),
		SMTPSinkUsername:       getEnv("SMTP_SINK_USERNAME", ""),
		SMTPSinkPassword:       getEnv("SMTP_SINK_PASSWORD", ""),
		SMTPSinkAllowedDomains: getEnvAsSlice("SMTP_SINK_ALLOWED_DOMAINS", []string{}),
		SMTPSinkMaxMessageSize: getEnvAsInt("SMTP_SINK_MAX_MESSAGE_SIZE_MB", 25),
		SMTPSinkOutputDir:      getEnv("SMTP_SINK_OUTPUT_DIR", ""),
	}
}

// IsProduction 是否為正式環境
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// getEnv 取得環境變數，若不存在則回傳預設值
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt 取得環境變數並轉換為整數
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsBool 取得環境變數並轉換為布林值
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

// getEnvAsSlice 取得環境變數並轉換為字串切片（以逗號分隔）
func getEnvAsSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return defaultValue
}
