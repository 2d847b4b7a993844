package xconf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatch_Validation(t *testing.T) {
	_, err := Watch("", nil)
	assert.ErrorIs(t, err, ErrEmptyPath)

	_, err = Watch("/tmp/config.toml", nil)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestWatch_ReloadOnChange(t *testing.T) {
	path := writeTempConfig(t, "config.yaml", "client:\n  api_key: v1\n")

	reloaded := make(chan *AppConfig, 4)
	w, err := Watch(path, func(cfg *AppConfig, err error) {
		if err == nil {
			reloaded <- cfg
		}
	}, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })

	w.StartAsync()
	// 给监视循环一点启动时间
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("client:\n  api_key: v2\n"), 0o600))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, "v2", cfg.Client.APIKey)
	case <-time.After(3 * time.Second):
		t.Fatal("配置变更未触发重载")
	}
}

// 环境变量覆盖在热重载后仍然生效。
func TestWatch_EnvSurvivesReload(t *testing.T) {
	t.Setenv("VIDGATE_API_KEY", "env-key")
	path := writeTempConfig(t, "config.yaml", "client:\n  api_key: file-v1\n")

	reloaded := make(chan *AppConfig, 4)
	w, err := Watch(path, func(cfg *AppConfig, err error) {
		if err == nil {
			reloaded <- cfg
		}
	}, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })

	w.StartAsync()
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("client:\n  api_key: file-v2\n"), 0o600))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, "env-key", cfg.Client.APIKey, "重载后环境变量覆盖仍应生效")
	case <-time.After(3 * time.Second):
		t.Fatal("配置变更未触发重载")
	}
}

func TestWatch_BrokenFileReportsError(t *testing.T) {
	path := writeTempConfig(t, "config.yaml", "client:\n  api_key: v1\n")

	errs := make(chan error, 4)
	w, err := Watch(path, func(_ *AppConfig, err error) {
		if err != nil {
			errs <- err
		}
	}, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })

	w.StartAsync()
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("client: [broken"), 0o600))

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, ErrParseFailed)
	case <-time.After(3 * time.Second):
		t.Fatal("坏配置未触发错误回调")
	}
}

func TestWatch_StopIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))

	w, err := Watch(path, nil)
	require.NoError(t, err)

	w.StartAsync()
	w.StartAsync() // 重复启动为 no-op

	require.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
}

func TestWatch_DebounceCollapsesBurst(t *testing.T) {
	path := writeTempConfig(t, "config.yaml", "client:\n  api_key: v0\n")

	var count int
	done := make(chan struct{}, 16)
	w, err := Watch(path, func(_ *AppConfig, err error) {
		if err == nil {
			count++
			done <- struct{}{}
		}
	}, WithDebounce(150*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })

	w.StartAsync()
	time.Sleep(50 * time.Millisecond)

	// 连续密集写入应被防抖合并
	for i := range 5 {
		require.NoError(t, os.WriteFile(path, []byte("client:\n  api_key: v"+string(rune('1'+i))+"\n"), 0o600))
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("防抖后未触发重载")
	}
	// 防抖窗口内不应有第二次触发
	select {
	case <-done:
		t.Fatal("密集写入应合并为一次重载")
	case <-time.After(300 * time.Millisecond):
	}
	assert.Equal(t, 1, count)
}
