package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"Server"`
	Database DatabaseConfig `mapstructure:"Database"`
	Quota    QuotaConfig    `mapstructure:"Quota" validate:"required"`
	Trash    TrashConfig    `mapstructure:"Trash"`
}

type ServerConfig struct {
	Port    string `mapstructure:"Port" validate:"required,numeric"`
	BaseURL string `mapstructure:"BaseURL"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"Host" validate:"required"`
	Port     string `mapstructure:"Port" validate:"required,numeric"`
	User     string `mapstructure:"User" validate:"required"`
	Password string `mapstructure:"Password" validate:"required"`
	Name     string `mapstructure:"Name" validate:"required"`
	SSLMode  string `mapstructure:"SSLMode"`
}

type QuotaConfig struct {
	// Лимит по умолчанию для нового пользователя (байты).
	DefaultBytesLimit int64 `mapstructure:"DefaultBytesLimit" validate:"gt=0"`
	// Лимиты по тарифным планам; ключ — имя тарифа.
	TierLimits map[string]int64 `mapstructure:"TierLimits"`
}

type TrashConfig struct {
	// Период хранения в корзине до автоматической очистки.
	RetentionPeriod time.Duration `mapstructure:"RetentionPeriod" validate:"gt=0"`
	// Интервал фонового прохода очистки.
	CleanupInterval time.Duration `mapstructure:"CleanupInterval" validate:"gt=0"`
}

func NewConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)

	// Привязываем переменные окружения
	v.BindEnv("Database.Host", "DATABASE_HOST")
	v.BindEnv("Database.Port", "DATABASE_PORT")
	v.BindEnv("Database.User", "DATABASE_USER")
	v.BindEnv("Database.Password", "DATABASE_PASSWORD")
	v.BindEnv("Database.Name", "DATABASE_NAME")
	v.BindEnv("Database.SSLMode", "DATABASE_SSLMODE")
	v.BindEnv("Server.Port", "HTTP_PORT")
	v.BindEnv("Quota.DefaultBytesLimit", "QUOTA_DEFAULT_BYTES_LIMIT")
	v.BindEnv("Trash.RetentionPeriod", "TRASH_RETENTION_PERIOD")
	v.BindEnv("Trash.CleanupInterval", "TRASH_CLEANUP_INTERVAL")

	// Значения по умолчанию
	v.SetDefault("Server.Port", "2525")
	v.SetDefault("Database.SSLMode", "disable")
	v.SetDefault("Quota.DefaultBytesLimit", int64(5368709120)) // 5GB
	v.SetDefault("Trash.RetentionPeriod", 30*24*time.Hour)
	v.SetDefault("Trash.CleanupInterval", time.Hour)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Warning: using only environment variables: %v\n", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LimitForTier возвращает лимит для тарифа либо дефолтный, если тариф
// не настроен.
func (c *QuotaConfig) LimitForTier(tier string) int64 {
	if limit, ok := c.TierLimits[tier]; ok && limit > 0 {
		return limit
	}
	return c.DefaultBytesLimit
}

func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Name,
		c.SSLMode,
	)
}

func (c *DatabaseConfig) GetURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Name,
		c.SSLMode,
	)
}
