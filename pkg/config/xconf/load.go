package xconf

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// Format 配置文件格式。
type Format string

// 支持的配置格式。
const (
	// FormatYAML YAML 格式（推荐用于 K8s ConfigMap）。
	FormatYAML Format = "yaml"

	// FormatJSON JSON 格式。
	FormatJSON Format = "json"
)

// koanf 键分隔符与结构体标签。
const (
	keyDelim  = "."
	structTag = "koanf"
)

// =============================================================================
// 加载
// =============================================================================

// Load 按三层顺序合成配置：默认值 → 配置文件 → VIDGATE_ 环境变量。
// path 为空时跳过文件层，仅默认值加环境变量。
// 返回的配置已通过 Validate。
func Load(path string) (*AppConfig, error) {
	cfg := Default()

	if path != "" {
		format, err := detectFormat(path)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
		}
		if err := mergeBytes(&cfg, data, format); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(&cfg, os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadBytes 从字节数据合成配置，层次与 Load 相同。
// 需要显式指定格式，适用于 K8s ConfigMap 等场景。
func LoadBytes(data []byte, format Format) (*AppConfig, error) {
	cfg := Default()

	if len(data) > 0 {
		if err := mergeBytes(&cfg, data, format); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(&cfg, os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// mergeBytes 将配置数据合并到 cfg 上，文件中未出现的键保持原值。
func mergeBytes(cfg *AppConfig, data []byte, format Format) error {
	parser, err := parserFor(format)
	if err != nil {
		return err
	}

	k := koanf.New(keyDelim)
	if err := k.Load(rawbytes.Provider(data), parser); err != nil {
		return fmt.Errorf("%w: %w", ErrParseFailed, err)
	}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: structTag}); err != nil {
		return fmt.Errorf("%w: %w", ErrUnmarshalFailed, err)
	}
	return nil
}

// detectFormat 根据文件扩展名检测配置格式。
func detectFormat(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown extension %s", ErrUnsupportedFormat, ext)
	}
}

func parserFor(format Format) (koanf.Parser, error) {
	switch format {
	case FormatYAML:
		return yaml.Parser(), nil
	case FormatJSON:
		return json.Parser(), nil
	default:
		return nil, ErrUnsupportedFormat
	}
}

// =============================================================================
// 环境变量覆盖
// =============================================================================

// applyEnv 应用 VIDGATE_ 前缀环境变量。
// 采用显式映射表而非自动反射：覆盖面一目了然，
// 且值解析失败时能报出具体变量名。
func applyEnv(cfg *AppConfig, getenv func(string) string) error {
	setString := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	setString("VIDGATE_API_KEY", &cfg.Client.APIKey)
	setString("VIDGATE_BASE_URL", &cfg.Client.BaseURL)
	setString("VIDGATE_REDIS_ADDR", &cfg.Client.Cache.RedisAddr)
	setString("VIDGATE_LOG_LEVEL", &cfg.Logging.Level)
	setString("VIDGATE_LOG_FORMAT", &cfg.Logging.Format)
	setString("VIDGATE_LOG_FILE", &cfg.Logging.File)

	if err := setDuration(getenv, "VIDGATE_TIMEOUT", &cfg.Client.Timeout); err != nil {
		return err
	}
	if err := setDuration(getenv, "VIDGATE_CACHE_TTL", &cfg.Client.CacheTTL); err != nil {
		return err
	}
	if err := setInt(getenv, "VIDGATE_BURST_CAPACITY", &cfg.Client.RateLimit.BurstCapacity); err != nil {
		return err
	}
	if err := setInt(getenv, "VIDGATE_CALLS_PER_MINUTE", &cfg.Client.RateLimit.CallsPerMinute); err != nil {
		return err
	}
	if err := setInt(getenv, "VIDGATE_CALLS_PER_HOUR", &cfg.Client.RateLimit.CallsPerHour); err != nil {
		return err
	}
	if err := setInt64(getenv, "VIDGATE_DAILY_QUOTA", &cfg.Client.Quota.DailyLimit); err != nil {
		return err
	}
	if err := setBool(getenv, "VIDGATE_CACHE_ENABLED", &cfg.Client.Cache.Enabled); err != nil {
		return err
	}
	return nil
}

func setDuration(getenv func(string) string, key string, dst *time.Duration) error {
	v := getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%w: %s=%q: %w", ErrEnvOverride, key, v, err)
	}
	*dst = d
	return nil
}

func setInt(getenv func(string) string, key string, dst *int) error {
	v := getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%w: %s=%q: %w", ErrEnvOverride, key, v, err)
	}
	*dst = n
	return nil
}

func setInt64(getenv func(string) string, key string, dst *int64) error {
	v := getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %s=%q: %w", ErrEnvOverride, key, v, err)
	}
	*dst = n
	return nil
}

func setBool(getenv func(string) string, key string, dst *bool) error {
	v := getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%w: %s=%q: %w", ErrEnvOverride, key, v, err)
	}
	*dst = b
	return nil
}
