package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config 구조체 - 모든 환경변수를 담음
type Config struct {
	// Engine (ComfyUI 호환)
	EngineAddress string
	EngineUseTLS  bool

	// Workflow templates
	WorkflowManifest string

	// Preview relay
	RelayURL            string
	PreviewFormat       string
	PreviewMaxSize      int
	PreviewQuality      float32
	LivePreviewInterval time.Duration

	// Redis (relay fan-out, optional)
	RedisHost     string
	RedisPort     string
	RedisUsername string
	RedisPassword string
	RedisUseTLS   bool
	RelayChannel  string

	// Supabase (archive, optional)
	SupabaseURL        string
	SupabaseServiceKey string
	SupabaseBucket     string
	SupabaseTable      string

	// Gemini API (prompt enhancement, optional)
	GeminiAPIKeys []string
	GeminiModel   string

	// Server
	Port      string
	LogLevel  string
	LogFormat string
}

// LoadDotEnv - .env 파일 로드 (있으면). 이미 있는 환경변수는 덮어쓰지 않음.
func LoadDotEnv() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("⚠️  .env file not found, using environment variables")
	}
}

// LoadConfig - 환경변수 로드
func LoadConfig() (*Config, error) {
	LoadDotEnv()

	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}

	log.Info().Msg("✅ Configuration loaded successfully")
	log.Info().Msgf("   Engine: %s (TLS: %v)", cfg.EngineAddress, cfg.EngineUseTLS)
	log.Info().Msgf("   Workflows: %s", cfg.WorkflowManifest)
	if cfg.RelayURL != "" {
		log.Info().Msgf("   Preview relay: %s (%s, %dpx)", cfg.RelayURL, cfg.PreviewFormat, cfg.PreviewMaxSize)
	}
	if cfg.RedisEnabled() {
		log.Info().Msgf("   Redis: %s (TLS: %v, channel: %s)", cfg.GetRedisAddr(), cfg.RedisUseTLS, cfg.RelayChannel)
	}
	if cfg.ArchiveEnabled() {
		log.Info().Msgf("   Supabase: %s (bucket: %s)", cfg.SupabaseURL, cfg.SupabaseBucket)
	}
	if len(cfg.GeminiAPIKeys) > 0 {
		log.Info().Msgf("   Gemini: %s (%d keys)", cfg.GeminiModel, len(cfg.GeminiAPIKeys))
	}

	return cfg, nil
}

// FromEnv - 현재 프로세스 환경변수로 Config 구성 (.env 로드 없음)
func FromEnv() (*Config, error) {
	cfg := &Config{
		EngineAddress: getEnv("ENGINE_ADDRESS", getEnv("COMFYUI_SERVER_ADDRESS", "localhost:8188")),
		EngineUseTLS:  getBool("ENGINE_USE_TLS", false),

		WorkflowManifest: getEnv("WORKFLOW_MANIFEST", "workflows/manifest.yaml"),

		RelayURL:            getEnv("RELAY_URL", ""),
		PreviewFormat:       strings.ToLower(getEnv("PREVIEW_FORMAT", "webp")),
		PreviewMaxSize:      getInt("PREVIEW_MAX_SIZE", 256),
		PreviewQuality:      float32(getInt("PREVIEW_QUALITY", 75)),
		LivePreviewInterval: getDuration("LIVE_PREVIEW_INTERVAL", 500*time.Millisecond),

		RedisHost:     getEnv("REDIS_HOST", ""),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisUsername: getEnv("REDIS_USERNAME", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisUseTLS:   getBool("REDIS_USE_TLS", false),
		RelayChannel:  getEnv("RELAY_CHANNEL", "relay:events"),

		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseBucket:     getEnv("SUPABASE_BUCKET", "generated"),
		SupabaseTable:      getEnv("SUPABASE_TABLE", "generations"),

		GeminiAPIKeys: splitKeys(getEnv("GEMINI_API_KEYS", getEnv("GEMINI_API_KEY", ""))),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-2.0-flash"),

		Port:      getEnv("PORT", "5000"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
	}

	// 필수 환경변수 검증
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate - 필수 환경변수 검증
func (c *Config) validate() error {
	if c.EngineAddress == "" {
		return fmt.Errorf("ENGINE_ADDRESS is required")
	}
	if c.WorkflowManifest == "" {
		return fmt.Errorf("WORKFLOW_MANIFEST is required")
	}
	if c.PreviewFormat != "webp" && c.PreviewFormat != "jpeg" && c.PreviewFormat != "png" {
		return fmt.Errorf("PREVIEW_FORMAT must be one of webp, jpeg, png (got %q)", c.PreviewFormat)
	}
	if c.PreviewMaxSize <= 0 {
		return fmt.Errorf("PREVIEW_MAX_SIZE must be positive")
	}
	if (c.SupabaseURL == "") != (c.SupabaseServiceKey == "") {
		return fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY must be set together")
	}
	return nil
}

// RedisEnabled - Redis fan-out 사용 여부
func (c *Config) RedisEnabled() bool {
	return c.RedisHost != ""
}

// ArchiveEnabled - Supabase 아카이브 사용 여부
func (c *Config) ArchiveEnabled() bool {
	return c.SupabaseURL != "" && c.SupabaseServiceKey != ""
}

// GetRedisAddr - Redis 연결 문자열 생성
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

// getEnv - 환경변수 가져오기 (기본값 지원)
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if s := os.Getenv(key); s != "" {
		if parsed, err := strconv.ParseBool(s); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if s := os.Getenv(key); s != "" {
		if parsed, err := strconv.Atoi(s); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if s := os.Getenv(key); s != "" {
		if parsed, err := time.ParseDuration(s); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// splitKeys - 콤마로 구분된 API 키 목록
func splitKeys(s string) []string {
	var keys []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}
