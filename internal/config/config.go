// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Log      LogConfig      `mapstructure:"log"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Chat     ChatConfig     `mapstructure:"chat"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	MinIO    MinIOConfig    `mapstructure:"minio"`
}

// TurnLockTTL 返回聊天窗口单轮对话锁的过期时间。
// 一轮对话最多串行调用两次 LLM（生成标题与生成回复），锁至少要覆盖两次调用的超时再加 30 秒余量。
func (c Config) TurnLockTTL() time.Duration {
	configured := time.Duration(c.Chat.TurnLockTTLSeconds) * time.Second
	floor := time.Duration(2*c.LLM.TimeoutSeconds+30) * time.Second
	if configured < floor {
		return floor
	}
	return configured
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port        string   `mapstructure:"port"`
	Mode        string   `mapstructure:"mode"`
	CORSOrigins []string `mapstructure:"cors_origins"`
	PublicPaths []string `mapstructure:"public_paths"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig 存储 Postgres 数据库的配置。
type PostgresConfig struct {
	DSN         string `mapstructure:"dsn"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig 选择身份提供方。provider 取值 "gotrue" 或 "local"。
type AuthConfig struct {
	Provider string       `mapstructure:"provider"`
	GoTrue   GoTrueConfig `mapstructure:"gotrue"`
	JWT      JWTConfig    `mapstructure:"jwt"`
}

// GoTrueConfig 存储托管认证服务的地址与匿名 API key。
type GoTrueConfig struct {
	URL            string `mapstructure:"url"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// JWTConfig 存储本地身份提供方签发 JWT 的配置。
type JWTConfig struct {
	Secret                 string `mapstructure:"secret"`
	AccessTokenExpireHours int    `mapstructure:"access_token_expire_hours"`
	RefreshTokenExpireDays int    `mapstructure:"refresh_token_expire_days"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// LLMConfig 存储大语言模型相关的配置。
type LLMConfig struct {
	APIKey         string              `mapstructure:"api_key"`
	BaseURL        string              `mapstructure:"base_url"`
	Model          string              `mapstructure:"model"`
	TimeoutSeconds int                 `mapstructure:"timeout_seconds"`
	Generation     LLMGenerationConfig `mapstructure:"generation"`
	Analysis       LLMAnalysisConfig   `mapstructure:"analysis"`
}

// LLMGenerationConfig 配置聊天生成参数（可选）。
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// LLMAnalysisConfig 配置日记分析调用。
type LLMAnalysisConfig struct {
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
}

// ChatConfig 存储聊天编排相关的常量。
type ChatConfig struct {
	HistoryLimit       int     `mapstructure:"history_limit"`
	RecentEntriesLimit int     `mapstructure:"recent_entries_limit"`
	TitleMaxTokens     int     `mapstructure:"title_max_tokens"`
	TitleTemperature   float64 `mapstructure:"title_temperature"`
	DefaultTitle       string  `mapstructure:"default_title"`
	DefaultName        string  `mapstructure:"default_name"`
	FallbackMessage    string  `mapstructure:"fallback_message"`
	TurnLockTTLSeconds int     `mapstructure:"turn_lock_ttl_seconds"`
	SerializeTurns     bool    `mapstructure:"serialize_turns"`
}

// KafkaConfig 存储 Kafka 相关的配置。Brokers 为空时不发布事件。
// RetryAnalysis 开启后，服务会消费 entry.analysis_failed 事件并重新分析日记。
type KafkaConfig struct {
	Brokers       string `mapstructure:"brokers"`
	Topic         string `mapstructure:"topic"`
	GroupID       string `mapstructure:"group_id"`
	RetryAnalysis bool   `mapstructure:"retry_analysis"`
	MaxAttempts   int    `mapstructure:"max_attempts"`
	// RetryBackoffMillis 是两次重试之间的基础等待时间，第 n 次失败后等待 n 倍。
	RetryBackoffMillis int `mapstructure:"retry_backoff_ms"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。Endpoint 为空时导出直接返回文件。
type MinIOConfig struct {
	Endpoint             string `mapstructure:"endpoint"`
	AccessKeyID          string `mapstructure:"access_key_id"`
	SecretAccessKey      string `mapstructure:"secret_access_key"`
	UseSSL               bool   `mapstructure:"use_ssl"`
	BucketName           string `mapstructure:"bucket_name"`
	PresignExpiryMinutes int    `mapstructure:"presign_expiry_minutes"`
}

// SetDefaults 注册所有配置项的默认值。
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000", "http://localhost:8501"})
	v.SetDefault("server.public_paths", []string{"/", "/docs", "/openapi.json", "/auth/signup", "/auth/login", "/auth/refresh"})

	v.SetDefault("database.postgres.auto_migrate", true)
	v.SetDefault("database.redis.addr", "localhost:6379")

	v.SetDefault("auth.provider", "local")
	v.SetDefault("auth.gotrue.timeout_seconds", 10)
	v.SetDefault("auth.jwt.access_token_expire_hours", 1)
	v.SetDefault("auth.jwt.refresh_token_expire_days", 7)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-4o")
	v.SetDefault("llm.timeout_seconds", 120)
	v.SetDefault("llm.analysis.model", "gpt-4o")
	v.SetDefault("llm.analysis.temperature", 0.1)

	v.SetDefault("chat.history_limit", 10)
	v.SetDefault("chat.recent_entries_limit", 5)
	v.SetDefault("chat.title_max_tokens", 20)
	v.SetDefault("chat.title_temperature", 0.3)
	v.SetDefault("chat.default_title", "New Chat")
	v.SetDefault("chat.default_name", "friend")
	v.SetDefault("chat.fallback_message", "An error occurred, please try again.")
	v.SetDefault("chat.turn_lock_ttl_seconds", 300)
	v.SetDefault("chat.serialize_turns", true)

	v.SetDefault("kafka.topic", "journal-events")
	v.SetDefault("kafka.group_id", "smart-journal-analysis-retry")
	v.SetDefault("kafka.max_attempts", 3)
	v.SetDefault("kafka.retry_backoff_ms", 1000)

	v.SetDefault("minio.bucket_name", "journal-exports")
	v.SetDefault("minio.presign_expiry_minutes", 15)
}

// Load 读取 .env、YAML 配置文件与 JOURNAL_ 前缀的环境变量，返回解析后的配置。
func Load(configPath string) (Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("JOURNAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("读取配置文件失败: %w", err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	return cfg, nil
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
func Init(configPath string) {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = cfg
}
