package xvideo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// =============================================================================
// 缓存预热
// =============================================================================

// defaultWarmTimeout 单次预热的总超时。
const defaultWarmTimeout = 5 * time.Minute

// ErrWarmerRunning 表示预热器已启动。
var ErrWarmerRunning = errors.New("xvideo: warmer already running")

// WarmerConfig 预热配置。
type WarmerConfig struct {
	// Schedule cron 表达式（标准 5 字段），如 "*/30 * * * *"。
	Schedule string `koanf:"schedule" json:"schedule" yaml:"schedule"`

	// VideoIDs 需要保持缓存温热的视频 ID。
	VideoIDs []string `koanf:"video_ids" json:"video_ids" yaml:"video_ids"`

	// ChannelIDs 需要保持缓存温热的频道 ID。
	ChannelIDs []string `koanf:"channel_ids" json:"channel_ids" yaml:"channel_ids"`

	// Timeout 单次预热的总超时，默认 5 分钟。
	Timeout time.Duration `koanf:"timeout" json:"timeout" yaml:"timeout"`
}

// Validate 校验预热配置。
func (c WarmerConfig) Validate() error {
	if c.Schedule == "" {
		return fmt.Errorf("%w: schedule 不能为空", ErrInvalidConfig)
	}
	if len(c.VideoIDs) == 0 && len(c.ChannelIDs) == 0 {
		return fmt.Errorf("%w: 预热目标不能为空", ErrInvalidConfig)
	}
	if _, err := cron.ParseStandard(c.Schedule); err != nil {
		return fmt.Errorf("%w: 非法 cron 表达式 %q: %w", ErrInvalidConfig, c.Schedule, err)
	}
	return nil
}

// Warmer 按 cron 计划经正常管线预热缓存。
// 预热走与普通调用完全相同的管线，同样受配额预检与限流约束：
// 配额吃紧时预热自动让位于在线流量。
type Warmer struct {
	mu      sync.Mutex
	client  *Client
	cfg     WarmerConfig
	logger  *slog.Logger
	cron    *cron.Cron
	running bool
}

// NewWarmer 创建预热器。client 的生命周期归调用方。
func NewWarmer(client *Client, cfg WarmerConfig, logger *slog.Logger) (*Warmer, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultWarmTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Warmer{client: client, cfg: cfg, logger: logger}, nil
}

// Start 启动定时预热。重复启动返回 ErrWarmerRunning。
func (w *Warmer) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return ErrWarmerRunning
	}

	w.cron = cron.New()
	if _, err := w.cron.AddFunc(w.cfg.Schedule, w.warmOnce); err != nil {
		return fmt.Errorf("xvideo: 注册预热任务失败: %w", err)
	}
	w.cron.Start()
	w.running = true
	w.logger.Info("缓存预热已启动",
		slog.String("schedule", w.cfg.Schedule),
		slog.Int("videos", len(w.cfg.VideoIDs)),
		slog.Int("channels", len(w.cfg.ChannelIDs)),
	)
	return nil
}

// Stop 停止定时预热并等待在途任务结束。幂等。
func (w *Warmer) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	<-w.cron.Stop().Done()
	w.running = false
	w.logger.Info("缓存预热已停止")
}

// WarmNow 立即执行一次预热。
// 返回首个遇到的错误，已完成的目标保持温热。
func (w *Warmer) WarmNow(ctx context.Context) error {
	start := time.Now()

	if len(w.cfg.VideoIDs) > 0 {
		if _, err := w.client.GetVideoDetails(ctx, w.cfg.VideoIDs); err != nil {
			return fmt.Errorf("xvideo: 视频预热失败: %w", err)
		}
	}
	if len(w.cfg.ChannelIDs) > 0 {
		if _, err := w.client.GetChannelDetails(ctx, w.cfg.ChannelIDs); err != nil {
			return fmt.Errorf("xvideo: 频道预热失败: %w", err)
		}
	}

	w.logger.Info("缓存预热完成",
		slog.Duration("elapsed", time.Since(start)),
		slog.Int("videos", len(w.cfg.VideoIDs)),
		slog.Int("channels", len(w.cfg.ChannelIDs)),
	)
	return nil
}

// warmOnce 定时触发的单次预热，错误只记日志不中断后续计划。
func (w *Warmer) warmOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.Timeout)
	defer cancel()

	if err := w.WarmNow(ctx); err != nil {
		w.logger.Warn("定时预热失败", slog.String("error", err.Error()))
	}
}
