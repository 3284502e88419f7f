package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig
	DB      DBConfig
	S3      S3Config
	Log     LogConfig
	CORS    CORSConfig
	Auth    AuthConfig
	Gemini  GeminiConfig
	Extract ExtractConfig
	Fetch   FetchConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
}

// DBConfig holds PostgreSQL connection settings for the extraction history.
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
	Enabled  bool   `mapstructure:"enabled"`
}

// DSN returns the PostgreSQL connection string.
func (d *DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// S3Config holds AWS S3 settings for s3:// document sources and result
// archival. ArchiveBucket is optional; when empty, extraction results are
// not archived to object storage.
type S3Config struct {
	Region        string `mapstructure:"region"`
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	ArchiveBucket string `mapstructure:"archive_bucket"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// AuthConfig holds bearer-token auth settings. An empty secret disables auth.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

// GeminiConfig holds the vision model provider settings.
type GeminiConfig struct {
	APIKey          string `mapstructure:"api_key"`
	Model           string `mapstructure:"model"`
	MaxOutputTokens int    `mapstructure:"max_output_tokens"`
}

// ExtractConfig holds extraction pipeline settings.
type ExtractConfig struct {
	BudgetSecs        int     `mapstructure:"budget_secs"`
	SafetyMarginSecs  int     `mapstructure:"safety_margin_secs"`
	PageTimeoutSecs   int     `mapstructure:"page_timeout_secs"`
	Workers           int     `mapstructure:"workers"`
	StaggerMS         int     `mapstructure:"stagger_ms"`
	SequentialBelow   int     `mapstructure:"sequential_below"`
	MaxAttempts       int     `mapstructure:"max_attempts"`
	MaxPages          int     `mapstructure:"max_pages"`
	MaxDim            int     `mapstructure:"max_dim"`
	MinDim            int     `mapstructure:"min_dim"`
	Zoom              float64 `mapstructure:"zoom"`
	DigitalTextChars  int     `mapstructure:"digital_text_chars"`
	EstimateInputTok  int     `mapstructure:"estimate_input_tokens"`
	EstimateOutputTok int     `mapstructure:"estimate_output_tokens"`
	TolerancePct      float64 `mapstructure:"tolerance_pct"`
	ToleranceAbs      float64 `mapstructure:"tolerance_abs"`
}

// FetchConfig holds document download settings.
type FetchConfig struct {
	TimeoutSecs int   `mapstructure:"timeout_secs"`
	MaxSizeMB   int64 `mapstructure:"max_size_mb"`
}

// Load reads configuration from environment variables with the MEDBILL_ prefix.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MEDBILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "180s")
	v.SetDefault("server.environment", "development")

	// DB defaults
	v.SetDefault("db.enabled", false)
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "medbill")
	v.SetDefault("db.password", "medbill_secret")
	v.SetDefault("db.name", "medbill_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open", 25)
	v.SetDefault("db.max_idle", 10)

	// S3 defaults
	v.SetDefault("s3.region", "ap-south-1")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.archive_bucket", "")

	// Log defaults
	v.SetDefault("log.level", "debug")
	v.SetDefault("log.format", "console")

	// CORS defaults (localhost origins for development)
	v.SetDefault("cors.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000")

	// Auth defaults
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "medbill")

	// Gemini defaults
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("gemini.max_output_tokens", 4096)

	// Extraction defaults
	v.SetDefault("extract.budget_secs", 120)
	v.SetDefault("extract.safety_margin_secs", 15)
	v.SetDefault("extract.page_timeout_secs", 28)
	v.SetDefault("extract.workers", 3)
	v.SetDefault("extract.stagger_ms", 250)
	v.SetDefault("extract.sequential_below", 4)
	v.SetDefault("extract.max_attempts", 3)
	v.SetDefault("extract.max_pages", 20)
	v.SetDefault("extract.max_dim", 1600)
	v.SetDefault("extract.min_dim", 800)
	v.SetDefault("extract.zoom", 2.0)
	v.SetDefault("extract.digital_text_chars", 100)
	v.SetDefault("extract.estimate_input_tokens", 1000)
	v.SetDefault("extract.estimate_output_tokens", 500)
	v.SetDefault("extract.tolerance_pct", 0.05)
	v.SetDefault("extract.tolerance_abs", 1.0)

	// Fetch defaults
	v.SetDefault("fetch.timeout_secs", 20)
	v.SetDefault("fetch.max_size_mb", 50)

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":                    "MEDBILL_SERVER_PORT",
		"server.read_timeout":            "MEDBILL_SERVER_READ_TIMEOUT",
		"server.write_timeout":           "MEDBILL_SERVER_WRITE_TIMEOUT",
		"server.environment":             "MEDBILL_SERVER_ENVIRONMENT",
		"db.enabled":                     "MEDBILL_DB_ENABLED",
		"db.host":                        "MEDBILL_DB_HOST",
		"db.port":                        "MEDBILL_DB_PORT",
		"db.user":                        "MEDBILL_DB_USER",
		"db.password":                    "MEDBILL_DB_PASSWORD",
		"db.name":                        "MEDBILL_DB_NAME",
		"db.sslmode":                     "MEDBILL_DB_SSLMODE",
		"db.max_open":                    "MEDBILL_DB_MAX_OPEN",
		"db.max_idle":                    "MEDBILL_DB_MAX_IDLE",
		"s3.region":                      "MEDBILL_S3_REGION",
		"s3.endpoint":                    "MEDBILL_S3_ENDPOINT",
		"s3.access_key":                  "MEDBILL_S3_ACCESS_KEY",
		"s3.secret_key":                  "MEDBILL_S3_SECRET_KEY",
		"s3.archive_bucket":              "MEDBILL_S3_ARCHIVE_BUCKET",
		"log.level":                      "MEDBILL_LOG_LEVEL",
		"log.format":                     "MEDBILL_LOG_FORMAT",
		"cors.allowed_origins":           "MEDBILL_CORS_ALLOWED_ORIGINS",
		"auth.jwt_secret":                "MEDBILL_AUTH_JWT_SECRET",
		"auth.issuer":                    "MEDBILL_AUTH_ISSUER",
		"gemini.api_key":                 "MEDBILL_GEMINI_API_KEY",
		"gemini.model":                   "MEDBILL_GEMINI_MODEL",
		"gemini.max_output_tokens":       "MEDBILL_GEMINI_MAX_OUTPUT_TOKENS",
		"extract.budget_secs":            "MEDBILL_EXTRACT_BUDGET_SECS",
		"extract.safety_margin_secs":     "MEDBILL_EXTRACT_SAFETY_MARGIN_SECS",
		"extract.page_timeout_secs":      "MEDBILL_EXTRACT_PAGE_TIMEOUT_SECS",
		"extract.workers":                "MEDBILL_EXTRACT_WORKERS",
		"extract.stagger_ms":             "MEDBILL_EXTRACT_STAGGER_MS",
		"extract.sequential_below":       "MEDBILL_EXTRACT_SEQUENTIAL_BELOW",
		"extract.max_attempts":           "MEDBILL_EXTRACT_MAX_ATTEMPTS",
		"extract.max_pages":              "MEDBILL_EXTRACT_MAX_PAGES",
		"extract.max_dim":                "MEDBILL_EXTRACT_MAX_DIM",
		"extract.min_dim":                "MEDBILL_EXTRACT_MIN_DIM",
		"extract.zoom":                   "MEDBILL_EXTRACT_ZOOM",
		"extract.digital_text_chars":     "MEDBILL_EXTRACT_DIGITAL_TEXT_CHARS",
		"extract.estimate_input_tokens":  "MEDBILL_EXTRACT_ESTIMATE_INPUT_TOKENS",
		"extract.estimate_output_tokens": "MEDBILL_EXTRACT_ESTIMATE_OUTPUT_TOKENS",
		"extract.tolerance_pct":          "MEDBILL_EXTRACT_TOLERANCE_PCT",
		"extract.tolerance_abs":          "MEDBILL_EXTRACT_TOLERANCE_ABS",
		"fetch.timeout_secs":             "MEDBILL_FETCH_TIMEOUT_SECS",
		"fetch.max_size_mb":              "MEDBILL_FETCH_MAX_SIZE_MB",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}

	// Railway/Heroku/Render set a PORT env var. Use it if MEDBILL_SERVER_PORT is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("MEDBILL_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:         serverPort,
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
		Environment:  v.GetString("server.environment"),
	}
	cfg.DB = DBConfig{
		Enabled:  v.GetBool("db.enabled"),
		Host:     v.GetString("db.host"),
		Port:     v.GetInt("db.port"),
		User:     v.GetString("db.user"),
		Password: v.GetString("db.password"),
		Name:     v.GetString("db.name"),
		SSLMode:  v.GetString("db.sslmode"),
		MaxOpen:  v.GetInt("db.max_open"),
		MaxIdle:  v.GetInt("db.max_idle"),
	}
	cfg.S3 = S3Config{
		Region:        v.GetString("s3.region"),
		Endpoint:      v.GetString("s3.endpoint"),
		AccessKey:     v.GetString("s3.access_key"),
		SecretKey:     v.GetString("s3.secret_key"),
		ArchiveBucket: v.GetString("s3.archive_bucket"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}

	// Parse CORS allowed origins from comma-separated string
	var corsOrigins []string
	for _, o := range strings.Split(v.GetString("cors.allowed_origins"), ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			corsOrigins = append(corsOrigins, o)
		}
	}
	cfg.CORS = CORSConfig{AllowedOrigins: corsOrigins}

	cfg.Auth = AuthConfig{
		JWTSecret: v.GetString("auth.jwt_secret"),
		Issuer:    v.GetString("auth.issuer"),
	}
	cfg.Gemini = GeminiConfig{
		APIKey:          v.GetString("gemini.api_key"),
		Model:           v.GetString("gemini.model"),
		MaxOutputTokens: v.GetInt("gemini.max_output_tokens"),
	}
	cfg.Extract = ExtractConfig{
		BudgetSecs:        v.GetInt("extract.budget_secs"),
		SafetyMarginSecs:  v.GetInt("extract.safety_margin_secs"),
		PageTimeoutSecs:   v.GetInt("extract.page_timeout_secs"),
		Workers:           v.GetInt("extract.workers"),
		StaggerMS:         v.GetInt("extract.stagger_ms"),
		SequentialBelow:   v.GetInt("extract.sequential_below"),
		MaxAttempts:       v.GetInt("extract.max_attempts"),
		MaxPages:          v.GetInt("extract.max_pages"),
		MaxDim:            v.GetInt("extract.max_dim"),
		MinDim:            v.GetInt("extract.min_dim"),
		Zoom:              v.GetFloat64("extract.zoom"),
		DigitalTextChars:  v.GetInt("extract.digital_text_chars"),
		EstimateInputTok:  v.GetInt("extract.estimate_input_tokens"),
		EstimateOutputTok: v.GetInt("extract.estimate_output_tokens"),
		TolerancePct:      v.GetFloat64("extract.tolerance_pct"),
		ToleranceAbs:      v.GetFloat64("extract.tolerance_abs"),
	}
	cfg.Fetch = FetchConfig{
		TimeoutSecs: v.GetInt("fetch.timeout_secs"),
		MaxSizeMB:   v.GetInt64("fetch.max_size_mb"),
	}

	return cfg, nil
}
