package xconf

import (
	"fmt"

	"github.com/omeyang/vidgate/pkg/business/xvideo"
)

// =============================================================================
// 应用配置
// =============================================================================

// LoggingConfig 日志配置。
type LoggingConfig struct {
	// Level 日志级别：debug / info / warn / error。
	Level string `koanf:"level" json:"level" yaml:"level"`

	// Format 输出格式：text / json。
	Format string `koanf:"format" json:"format" yaml:"format"`

	// File 日志文件路径，空表示输出到 stderr。
	// 非空时启用按大小轮转。
	File string `koanf:"file" json:"file" yaml:"file"`

	// MaxSizeMB 单个日志文件上限（MB），超过后轮转。
	MaxSizeMB int `koanf:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups 保留的历史文件数。
	MaxBackups int `koanf:"max_backups" json:"max_backups" yaml:"max_backups"`

	// MaxAgeDays 历史文件保留天数。
	MaxAgeDays int `koanf:"max_age_days" json:"max_age_days" yaml:"max_age_days"`

	// Compress 是否压缩轮转出的历史文件。
	Compress bool `koanf:"compress" json:"compress" yaml:"compress"`
}

// DefaultLogging 返回日志默认配置。
func DefaultLogging() LoggingConfig {
	return LoggingConfig{
		Level:      "info",
		Format:     "text",
		MaxSizeMB:  100,
		MaxBackups: 3,
		MaxAgeDays: 7,
	}
}

// Validate 校验日志配置。
func (c LoggingConfig) Validate() error {
	switch c.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: 未知级别 %q", ErrInvalidLogging, c.Level)
	}
	switch c.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: 未知格式 %q", ErrInvalidLogging, c.Format)
	}
	if c.File != "" && c.MaxSizeMB <= 0 {
		return fmt.Errorf("%w: max_size_mb 必须为正", ErrInvalidLogging)
	}
	return nil
}

// AppConfig vidgate 的顶层配置。
type AppConfig struct {
	// Client 上游客户端配置（含限流、配额、缓存）。
	Client xvideo.Config `koanf:"client" json:"client" yaml:"client"`

	// Warmer 缓存预热配置，Schedule 为空表示不启用。
	Warmer xvideo.WarmerConfig `koanf:"warmer" json:"warmer" yaml:"warmer"`

	// Logging 日志配置。
	Logging LoggingConfig `koanf:"logging" json:"logging" yaml:"logging"`
}

// Default 返回带内置默认值的配置。
func Default() AppConfig {
	return AppConfig{
		Client:  xvideo.DefaultConfig(),
		Logging: DefaultLogging(),
	}
}

// Validate 校验整棵配置树。
// 凭证可以缺省（允许仅靠环境变量在运行时提供），由客户端创建时兜底校验。
func (c *AppConfig) Validate() error {
	if err := c.Client.Validate(); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	// 预热按需启用
	if c.Warmer.Schedule != "" {
		return c.Warmer.Validate()
	}
	return nil
}
