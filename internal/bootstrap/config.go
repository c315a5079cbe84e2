package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config 结构体用于存储从环境变量或 .env 文件加载的配置
type Config struct {
	ServerPort        string
	AppEnv            string // development / production
	LogLevel          string
	CORSAllowedOrigin []string

	RoomEvictionGrace time.Duration
	RoomAutoCreate    bool
	WSMaxMessageBytes int64
	WSSendBuffer      int

	MirrorEnabled         bool
	MirrorQueueSize       int
	PresenceSweepSchedule string
	WorkerConcurrency     int

	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	KeyPrefix     string

	RateLimitMax    int
	RateLimitWindow time.Duration
}

// LoadConfig 从环境变量加载配置
func LoadConfig() (*Config, error) {
	// 优先加载 .env 文件 (如果存在)，忽略错误以允许只使用环境变量
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:            envString("SERVER_PORT", "8080"),
		AppEnv:                envString("APP_ENV", "development"),
		LogLevel:              envString("LOG_LEVEL", "info"),
		CORSAllowedOrigin:     splitList(envString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")),
		PresenceSweepSchedule: envString("PRESENCE_SWEEP_SCHEDULE", "@every 5m"),
		DBUser:                os.Getenv("DB_USER"),
		DBPassword:            os.Getenv("DB_PASSWORD"),
		DBHost:                envString("DB_HOST", "127.0.0.1"),
		DBPort:                envString("DB_PORT", "3306"),
		DBName:                envString("DB_NAME", "whiteboard"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		KeyPrefix:             envString("REDIS_KEY_PREFIX", "wb:"),
	}

	var err error
	if cfg.RoomEvictionGrace, err = envDuration("ROOM_EVICTION_GRACE", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.RateLimitWindow, err = envDuration("RATE_LIMIT_WINDOW", time.Second); err != nil {
		return nil, err
	}
	if cfg.RoomAutoCreate, err = envBool("ROOM_AUTO_CREATE", false); err != nil {
		return nil, err
	}
	if cfg.MirrorEnabled, err = envBool("MIRROR_ENABLED", true); err != nil {
		return nil, err
	}
	if cfg.WSMaxMessageBytes, err = envInt64("WS_MAX_MESSAGE_BYTES", 512*1024); err != nil {
		return nil, err
	}
	if cfg.WSSendBuffer, err = envInt("WS_SEND_BUFFER", 256); err != nil {
		return nil, err
	}
	if cfg.MirrorQueueSize, err = envInt("MIRROR_QUEUE_SIZE", 1024); err != nil {
		return nil, err
	}
	if cfg.WorkerConcurrency, err = envInt("WORKER_CONCURRENCY", 10); err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = envInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.RateLimitMax, err = envInt("RATE_LIMIT_MAX", 100); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		logrus.Warnf("Invalid LOG_LEVEL '%s', using default 'info'", cfg.LogLevel)
		cfg.LogLevel = "info"
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.RoomEvictionGrace <= 0 {
		return fmt.Errorf("ROOM_EVICTION_GRACE must be positive, got %s", c.RoomEvictionGrace)
	}
	if c.WSSendBuffer <= 0 {
		return fmt.Errorf("WS_SEND_BUFFER must be positive, got %d", c.WSSendBuffer)
	}
	if c.WSMaxMessageBytes <= 0 {
		return fmt.Errorf("WS_MAX_MESSAGE_BYTES must be positive, got %d", c.WSMaxMessageBytes)
	}
	if !c.MirrorEnabled {
		return nil
	}
	if c.RedisAddr == "" {
		return fmt.Errorf("environment variable REDIS_ADDR must be set when MIRROR_ENABLED is true")
	}
	if c.DBUser == "" {
		return fmt.Errorf("environment variable DB_USER must be set when MIRROR_ENABLED is true")
	}
	if c.RateLimitMax <= 0 || c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_MAX and RATE_LIMIT_WINDOW must be positive")
	}
	return nil
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func envInt64(key string, def int64) (int64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func envBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return b, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

// splitList 解析逗号分隔的列表
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
