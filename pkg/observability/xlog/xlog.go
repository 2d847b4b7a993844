// Package xlog 构建 vidgate 的结构化日志器。
//
// 基于 log/slog，支持 text/json 两种格式、运行时动态级别，
// 以及基于 lumberjack 的按大小轮转文件输出。
//
// 使用示例：
//
//	logger, levelVar, cleanup, err := xlog.New(xlog.Config{
//	    Level:  "info",
//	    Format: "json",
//	    File:   "/var/log/vidgate/vidgate.log",
//	})
//	if err != nil {
//	    return err
//	}
//	defer cleanup()
//
//	// 配置热重载时动态调级，无需重建日志器
//	levelVar.Set(slog.LevelDebug)
package xlog

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// ErrInvalidConfig 表示日志配置无效。
var ErrInvalidConfig = errors.New("xlog: invalid config")

// 轮转默认参数。
const (
	defaultMaxSizeMB  = 100
	defaultMaxBackups = 3
	defaultMaxAgeDays = 7
)

// Config 日志器配置。
type Config struct {
	// Level 日志级别：debug / info / warn / error，默认 info。
	Level string

	// Format 输出格式：text / json，默认 text。
	Format string

	// File 日志文件路径，空表示输出到 stderr。
	// 非空时启用按大小轮转。
	File string

	// MaxSizeMB 单个日志文件上限（MB），默认 100。
	MaxSizeMB int

	// MaxBackups 保留的历史文件数，默认 3。
	MaxBackups int

	// MaxAgeDays 历史文件保留天数，默认 7。
	MaxAgeDays int

	// Compress 是否压缩轮转出的历史文件。
	Compress bool

	// AddSource 是否在日志中添加源码位置。
	AddSource bool

	// Output 自定义输出目标，优先于 File，主要用于测试。
	Output io.Writer
}

// ParseLevel 解析字符串为 slog 级别。
// 支持 debug/info/warn/warning/error，大小写不敏感。
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("%w: unknown level %q", ErrInvalidConfig, s)
	}
}

// New 构建日志器。
//
// 返回值：
//   - *slog.Logger: 日志实例
//   - *slog.LevelVar: 动态级别控制，运行时调级无需重建
//   - func() error: 清理函数，释放轮转文件句柄，幂等
func New(cfg Config) (*slog.Logger, *slog.LevelVar, func() error, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, nil, err
	}

	format := strings.ToLower(strings.TrimSpace(cfg.Format))
	if format == "" {
		format = "text"
	}
	if format != "text" && format != "json" {
		return nil, nil, nil, fmt.Errorf("%w: unknown format %q", ErrInvalidConfig, cfg.Format)
	}

	levelVar := new(slog.LevelVar)
	levelVar.Set(level)

	var (
		output  io.Writer = os.Stderr
		rotator *lumberjack.Logger
	)
	switch {
	case cfg.Output != nil:
		output = cfg.Output
	case cfg.File != "":
		rotator = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    orDefault(cfg.MaxSizeMB, defaultMaxSizeMB),
			MaxBackups: orDefault(cfg.MaxBackups, defaultMaxBackups),
			MaxAge:     orDefault(cfg.MaxAgeDays, defaultMaxAgeDays),
			Compress:   cfg.Compress,
		}
		output = rotator
	}

	opts := &slog.HandlerOptions{
		Level:     levelVar,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}

	var once sync.Once
	cleanup := func() error {
		var closeErr error
		once.Do(func() {
			if rotator != nil {
				closeErr = rotator.Close()
			}
		})
		return closeErr
	}

	return slog.New(handler), levelVar, cleanup, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
