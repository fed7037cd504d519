package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"db"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Log       LogConfig       `mapstructure:"log"`
	Planner   PlannerConfig   `mapstructure:"planner"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	Storage   StorageConfig   `mapstructure:"storage"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port         int        `mapstructure:"port"`
	BaseURL      string     `mapstructure:"base_url"`
	BodyLimitMB  int        `mapstructure:"body_limit_mb"`
	CORS         CORSConfig `mapstructure:"cors"`
	ReadTimeout  int        `mapstructure:"read_timeout"`  // 秒
	WriteTimeout int        `mapstructure:"write_timeout"` // 秒
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DatabaseConfig PostgreSQL 数据库配置
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // 连接最大生命周期（分钟）
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 空闲连接最大存活时间（分钟）
}

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig JWT 认证配置
type AuthConfig struct {
	JWTSecret               string        `mapstructure:"jwt_secret"`
	AccessTokenTTL          time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTLDefault  time.Duration `mapstructure:"refresh_token_ttl_default"`
	RefreshTokenTTLRemember time.Duration `mapstructure:"refresh_token_ttl_remember_me"`
	BcryptCost              int           `mapstructure:"bcrypt_cost"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// PlannerConfig 排程配置
type PlannerConfig struct {
	Timezone         string           `mapstructure:"timezone"`
	DefaultCatalog   string           `mapstructure:"default_catalog"`
	Catalogs         map[string][]int `mapstructure:"catalogs"` // 额外的间隔方案: id → 天数偏移
	DayStartHour     int              `mapstructure:"day_start_hour"`
	DayEndHour       int              `mapstructure:"day_end_hour"`
	LunchBreakStart  int              `mapstructure:"lunch_break_start"`
	LunchBreakEnd    int              `mapstructure:"lunch_break_end"`
	MaxHoursPerDay   float64          `mapstructure:"max_hours_per_day"`
	DistributeEvenly bool             `mapstructure:"distribute_evenly"`
	MaxSearchDays    int              `mapstructure:"max_search_days"`
	LockTTL          time.Duration    `mapstructure:"lock_ttl"`
	LockWait         time.Duration    `mapstructure:"lock_wait"`
	CacheTTL         time.Duration    `mapstructure:"cache_ttl"`
}

// Location 解析排程时区，失败时回退 UTC
func (c *PlannerConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// WebhookConfig 外部通知配置
type WebhookConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// StorageConfig 备份对象存储（MinIO / S3 兼容）配置
type StorageConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Limit  int           `mapstructure:"limit"`
	Window time.Duration `mapstructure:"window"`
}

// Load 从 .env、配置文件与环境变量加载配置
// 优先级：环境变量 > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	// .env 仅补充进程环境变量，不覆盖已有值；文件不存在时忽略
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("读取 .env 失败: %w", err)
	}

	v := viper.New()

	// ── 默认值 ──
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.body_limit_mb", 5)
	v.SetDefault("server.read_timeout", 15)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:3000"})

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "j_planner")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "Europe/Paris")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)
	v.SetDefault("db.conn_max_idle_time", 30)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.access_token_ttl", "15m")
	v.SetDefault("auth.refresh_token_ttl_default", "24h")
	v.SetDefault("auth.refresh_token_ttl_remember_me", "168h")
	v.SetDefault("auth.bcrypt_cost", 10)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("planner.timezone", "Europe/Paris")
	v.SetDefault("planner.default_catalog", "classic")
	v.SetDefault("planner.day_start_hour", 9)
	v.SetDefault("planner.day_end_hour", 19)
	v.SetDefault("planner.lunch_break_start", 13)
	v.SetDefault("planner.lunch_break_end", 14)
	v.SetDefault("planner.max_hours_per_day", 9)
	v.SetDefault("planner.distribute_evenly", false)
	v.SetDefault("planner.max_search_days", 3650)
	v.SetDefault("planner.lock_ttl", "30s")
	v.SetDefault("planner.lock_wait", "5s")
	v.SetDefault("planner.cache_ttl", "5m")

	v.SetDefault("webhook.enabled", false)
	v.SetDefault("webhook.timeout", "5s")

	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.bucket", "j-planner-backups")
	v.SetDefault("storage.use_ssl", false)

	v.SetDefault("rate_limit.limit", 120)
	v.SetDefault("rate_limit.window", "1m")

	// ── 配置文件 ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// ── 环境变量 ──
	v.SetEnvPrefix("JPLAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		// 配置文件不存在时仅依赖默认值和环境变量
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	// ── 关键配置校验 ──
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 校验关键配置项
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 不能为空")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 长度不能少于 16 字符")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("配置校验失败: server.port 必须在 1-65535 之间")
	}
	if _, err := time.LoadLocation(c.Planner.Timezone); err != nil {
		return fmt.Errorf("配置校验失败: planner.timezone 无效: %w", err)
	}
	p := c.Planner
	if p.DayStartHour < 0 || p.DayEndHour > 24 || p.DayStartHour >= p.DayEndHour {
		return fmt.Errorf("配置校验失败: planner 工作时段无效 (%d-%d)", p.DayStartHour, p.DayEndHour)
	}
	if p.LunchBreakStart > p.LunchBreakEnd {
		return fmt.Errorf("配置校验失败: planner 午休时段无效 (%d-%d)", p.LunchBreakStart, p.LunchBreakEnd)
	}
	if p.MaxHoursPerDay <= 0 {
		return fmt.Errorf("配置校验失败: planner.max_hours_per_day 必须大于 0")
	}
	if c.Webhook.Enabled && c.Webhook.URL == "" {
		return fmt.Errorf("配置校验失败: 启用 webhook 时 webhook.url 不能为空")
	}
	if c.Storage.Enabled && (c.Storage.Endpoint == "" || c.Storage.Bucket == "") {
		return fmt.Errorf("配置校验失败: 启用 storage 时 endpoint 与 bucket 不能为空")
	}
	return nil
}
