package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	DatabaseURL           string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	SessionKey            string
	CatalogFile           string
	ComboPrice            int64
	TimeZone              string
	AuthSecret            string
	AccessTokenTTLMinutes int
	ManagerPIN            string
	GeminiAPIKey          string
	GeminiModel           string
	InsightTTLSeconds     int
	Export                ExportConfig
}

type ExportConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	PublicBaseURL string
}

func (e ExportConfig) Enabled() bool {
	return e.Endpoint != "" && e.Bucket != "" && e.AccessKey != "" && e.SecretKey != ""
}

// Load reads the process environment, after merging a .env file when one is
// present in the working directory.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[config] WARN: .env not loaded: %v", err)
	}

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	tokenTTL, err := strconv.Atoi(getEnv("ACCESS_TOKEN_TTL_MINUTES", "720"))
	if err != nil || tokenTTL < 1 {
		tokenTTL = 720
	}
	insightTTL, err := strconv.Atoi(getEnv("INSIGHT_TTL_SECONDS", "600"))
	if err != nil || insightTTL < 1 {
		insightTTL = 600
	}
	comboPrice, err := strconv.ParseInt(getEnv("COMBO_PRICE", "0"), 10, 64)
	if err != nil || comboPrice < 0 {
		comboPrice = 0
	}

	return Config{
		Port:                  getEnv("PORT", "8080"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:5173"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               redisDB,
		SessionKey:            getEnv("SESSION_KEY", "haiwei:pos:session"),
		CatalogFile:           strings.TrimSpace(os.Getenv("CATALOG_FILE")),
		ComboPrice:            comboPrice,
		TimeZone:              getEnv("TZ_NAME", "Asia/Taipei"),
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: tokenTTL,
		ManagerPIN:            strings.TrimSpace(os.Getenv("MANAGER_PIN")),
		GeminiAPIKey:          strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiModel:           getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		InsightTTLSeconds:     insightTTL,
		Export: ExportConfig{
			Endpoint:      os.Getenv("EXPORT_R2_ENDPOINT"),
			AccessKey:     os.Getenv("EXPORT_R2_ACCESS_KEY"),
			SecretKey:     os.Getenv("EXPORT_R2_SECRET_KEY"),
			Bucket:        os.Getenv("EXPORT_R2_BUCKET"),
			PublicBaseURL: os.Getenv("EXPORT_R2_PUBLIC_BASE_URL"),
		},
	}
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
