package xconf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://www.googleapis.com/youtube/v3", cfg.Client.BaseURL)
	assert.Equal(t, int64(10000), cfg.Client.Quota.DailyLimit)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := writeTempConfig(t, "config.yaml", `
client:
  api_key: from-file
  timeout: 10s
  quota:
    daily_limit: 5000
    window: 24h
logging:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.Client.APIKey)
	assert.Equal(t, 10*time.Second, cfg.Client.Timeout)
	assert.Equal(t, int64(5000), cfg.Client.Quota.DailyLimit)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// 文件未出现的键保持默认值
	assert.Equal(t, "https://www.googleapis.com/youtube/v3", cfg.Client.BaseURL)
}

func TestLoad_JSONFile(t *testing.T) {
	path := writeTempConfig(t, "config.json", `{"client":{"api_key":"json-key"}}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "json-key", cfg.Client.APIKey)
}

func TestLoad_FileErrors(t *testing.T) {
	t.Run("不存在的文件", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.ErrorIs(t, err, ErrLoadFailed)
	})

	t.Run("未知扩展名", func(t *testing.T) {
		path := writeTempConfig(t, "config.toml", "x = 1")
		_, err := Load(path)
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})

	t.Run("非法 YAML", func(t *testing.T) {
		path := writeTempConfig(t, "config.yaml", "client: [not: closed")
		_, err := Load(path)
		assert.ErrorIs(t, err, ErrParseFailed)
	})

	t.Run("校验失败", func(t *testing.T) {
		path := writeTempConfig(t, "config.yaml", "client:\n  timeout: -5s\n")
		_, err := Load(path)
		assert.Error(t, err)
	})
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeTempConfig(t, "config.yaml", `
client:
  api_key: from-file
  quota:
    daily_limit: 5000
    window: 24h
`)

	t.Setenv("VIDGATE_API_KEY", "from-env")
	t.Setenv("VIDGATE_DAILY_QUOTA", "7777")
	t.Setenv("VIDGATE_CACHE_TTL", "30m")
	t.Setenv("VIDGATE_CACHE_ENABLED", "false")
	t.Setenv("VIDGATE_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Client.APIKey, "环境变量应覆盖文件值")
	assert.Equal(t, int64(7777), cfg.Client.Quota.DailyLimit)
	assert.Equal(t, 30*time.Minute, cfg.Client.CacheTTL)
	assert.False(t, cfg.Client.Cache.Enabled)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoad_InvalidEnvValue(t *testing.T) {
	t.Setenv("VIDGATE_DAILY_QUOTA", "not-a-number")
	_, err := Load("")
	require.ErrorIs(t, err, ErrEnvOverride)
	assert.Contains(t, err.Error(), "VIDGATE_DAILY_QUOTA", "错误应报出具体变量名")
}

func TestLoadBytes(t *testing.T) {
	cfg, err := LoadBytes([]byte(`{"logging":{"format":"json"}}`), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Logging.Format)

	t.Run("空数据使用默认值", func(t *testing.T) {
		cfg, err := LoadBytes(nil, FormatYAML)
		require.NoError(t, err)
		assert.Equal(t, "info", cfg.Logging.Level)
	})

	t.Run("非法格式", func(t *testing.T) {
		_, err := LoadBytes([]byte("{}"), Format("toml"))
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})
}

func TestLoggingConfig_Validate(t *testing.T) {
	valid := DefaultLogging()
	assert.NoError(t, valid.Validate())

	bad := valid
	bad.Level = "verbose"
	assert.ErrorIs(t, bad.Validate(), ErrInvalidLogging)

	bad = valid
	bad.Format = "xml"
	assert.ErrorIs(t, bad.Validate(), ErrInvalidLogging)

	bad = valid
	bad.File = "/var/log/vidgate.log"
	bad.MaxSizeMB = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidLogging)
}

func TestAppConfig_WarmerValidatedOnlyWhenEnabled(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate(), "未启用预热时不校验预热目标")

	cfg.Warmer.Schedule = "*/5 * * * *"
	assert.Error(t, cfg.Validate(), "启用预热后目标不能为空")

	cfg.Warmer.VideoIDs = []string{"v1"}
	assert.NoError(t, cfg.Validate())
}
