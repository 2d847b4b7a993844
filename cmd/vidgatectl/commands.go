package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/vidgate/pkg/business/xvideo"
	"github.com/omeyang/vidgate/pkg/config/xconf"
	"github.com/omeyang/vidgate/pkg/observability/xlog"
)

// usageError 表示参数错误，映射到退出码 2。
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usageErrorf(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

func asUsageError(err error, target **usageError) bool {
	return errors.As(err, target)
}

// =============================================================================
// 运行时装配
// =============================================================================

// appRuntime 一次命令执行的装配结果。
type appRuntime struct {
	cfg     *xconf.AppConfig
	client  *xvideo.Client
	asJSON  bool
	timeout time.Duration
	cleanup []func() error
}

// setup 按 默认值 → 配置文件 → 环境变量 → 命令行参数 的顺序装配运行时。
func setup(cmd *cli.Command) (*appRuntime, error) {
	cfg, err := xconf.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}

	// 命令行参数优先级最高
	if v := cmd.String("api-key"); v != "" {
		cfg.Client.APIKey = v
	}
	if v := cmd.String("log-level"); v != "" {
		cfg.Logging.Level = v
	}
	if v := cmd.String("log-format"); v != "" {
		cfg.Logging.Format = v
	}
	if v := cmd.String("log-file"); v != "" {
		cfg.Logging.File = v
	}

	logger, _, logCleanup, err := xlog.New(xlog.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	if err != nil {
		return nil, err
	}

	client, err := xvideo.New(cfg.Client, xvideo.WithLogger(logger))
	if err != nil {
		_ = logCleanup()
		if errors.Is(err, xvideo.ErrMissingAPIKey) {
			return nil, usageErrorf("缺少凭证: 通过 --api-key、VIDGATE_API_KEY 或配置文件提供")
		}
		return nil, err
	}

	return &appRuntime{
		cfg:     cfg,
		client:  client,
		asJSON:  cmd.Bool("json"),
		timeout: cmd.Duration("timeout"),
		cleanup: []func() error{client.Close, logCleanup},
	}, nil
}

func (rt *appRuntime) close() {
	for _, fn := range rt.cleanup {
		_ = fn()
	}
}

// withTimeout 为命令执行加上全局超时。
func (rt *appRuntime) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if rt.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, rt.timeout)
}

// emit 按 --json 开关输出结果。
func (rt *appRuntime) emit(v any, human func()) error {
	if rt.asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	human()
	return nil
}

// runWithClient 装配运行时并执行命令体，统一资源释放。
func runWithClient(cmd *cli.Command, fn func(ctx context.Context, rt *appRuntime) error) error {
	rt, err := setup(cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, cancel := rt.withTimeout(context.Background())
	defer cancel()

	return fn(ctx, rt)
}

// =============================================================================
// 子命令
// =============================================================================

func createCommands() []*cli.Command {
	return []*cli.Command{
		createSearchCommand(),
		createVideosCommand(),
		createChannelsCommand(),
		createCommentsCommand(),
		createCaptionsCommand(),
		createTranscriptCommand(),
		createTrendingCommand(),
		createCategoriesCommand(),
		createQuotaCommand(),
		createLimitsCommand(),
		createCacheCommand(),
		createWarmCommand(),
	}
}

func createSearchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "搜索视频或频道",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "max", Usage: "期望的结果总数", Value: 25},
			&cli.StringFlag{Name: "order", Usage: "排序方式 (relevance/date/viewCount/rating)"},
			&cli.StringFlag{Name: "region", Usage: "ISO 3166-1 地区码"},
			&cli.BoolFlag{Name: "channels", Usage: "搜索频道而非视频"},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			query := strings.Join(cmd.Args().Slice(), " ")
			if query == "" {
				return usageErrorf("缺少搜索关键词")
			}
			return runWithClient(cmd, func(ctx context.Context, rt *appRuntime) error {
				var (
					results []xvideo.SearchResult
					err     error
				)
				if cmd.Bool("channels") {
					results, err = rt.client.SearchChannels(ctx, xvideo.ChannelSearchParams{
						Query:      query,
						MaxResults: cmd.Int("max"),
					})
				} else {
					results, err = rt.client.SearchVideos(ctx, xvideo.SearchParams{
						Query:      query,
						MaxResults: cmd.Int("max"),
						Order:      cmd.String("order"),
						RegionCode: cmd.String("region"),
					})
				}
				if err != nil {
					return err
				}
				return rt.emit(results, func() {
					for _, r := range results {
						id := r.VideoID
						if id == "" {
							id = r.ChannelID
						}
						fmt.Printf("%-16s %s\n", id, r.Title)
					}
					fmt.Printf("共 %d 条\n", len(results))
				})
			})
		},
	}
}

func createVideosCommand() *cli.Command {
	return &cli.Command{
		Name:      "videos",
		Usage:     "批量拉取视频详情（超过 50 个 ID 自动分块）",
		ArgsUsage: "<id...>",
		Action: func(_ context.Context, cmd *cli.Command) error {
			ids := cmd.Args().Slice()
			if len(ids) == 0 {
				return usageErrorf("至少提供一个视频 ID")
			}
			return runWithClient(cmd, func(ctx context.Context, rt *appRuntime) error {
				videos, err := rt.client.GetVideoDetails(ctx, ids)
				if err != nil {
					return err
				}
				return rt.emit(videos, func() {
					for _, v := range videos {
						fmt.Printf("%-16s %-10d %s\n", v.ID, v.ViewCount, v.Title)
					}
					fmt.Printf("共 %d 条\n", len(videos))
				})
			})
		},
	}
}

func createChannelsCommand() *cli.Command {
	return &cli.Command{
		Name:      "channels",
		Usage:     "批量拉取频道详情",
		ArgsUsage: "<id...>",
		Action: func(_ context.Context, cmd *cli.Command) error {
			ids := cmd.Args().Slice()
			if len(ids) == 0 {
				return usageErrorf("至少提供一个频道 ID")
			}
			return runWithClient(cmd, func(ctx context.Context, rt *appRuntime) error {
				channels, err := rt.client.GetChannelDetails(ctx, ids)
				if err != nil {
					return err
				}
				return rt.emit(channels, func() {
					for _, ch := range channels {
						fmt.Printf("%-28s 订阅 %-10d %s\n", ch.ID, ch.SubscriberCount, ch.Title)
					}
				})
			})
		},
	}
}

func createCommentsCommand() *cli.Command {
	return &cli.Command{
		Name:      "comments",
		Usage:     "拉取视频顶层评论（评论关闭时返回空）",
		ArgsUsage: "<videoID>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "max", Usage: "期望的评论数", Value: 20},
			&cli.StringFlag{Name: "order", Usage: "排序方式 (time/relevance)"},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			videoID := cmd.Args().First()
			if videoID == "" {
				return usageErrorf("缺少视频 ID")
			}
			return runWithClient(cmd, func(ctx context.Context, rt *appRuntime) error {
				comments, err := rt.client.GetVideoComments(ctx, xvideo.CommentsParams{
					VideoID:    videoID,
					MaxResults: cmd.Int("max"),
					Order:      cmd.String("order"),
				})
				if err != nil {
					return err
				}
				return rt.emit(comments, func() {
					for _, c := range comments {
						fmt.Printf("[%s] %s: %s\n", c.PublishedAt.Format("2006-01-02"), c.Author, c.Text)
					}
					fmt.Printf("共 %d 条\n", len(comments))
				})
			})
		},
	}
}

func createCaptionsCommand() *cli.Command {
	return &cli.Command{
		Name:      "captions",
		Usage:     "列出视频字幕轨",
		ArgsUsage: "<videoID>",
		Action: func(_ context.Context, cmd *cli.Command) error {
			videoID := cmd.Args().First()
			if videoID == "" {
				return usageErrorf("缺少视频 ID")
			}
			return runWithClient(cmd, func(ctx context.Context, rt *appRuntime) error {
				tracks, err := rt.client.ListCaptions(ctx, videoID)
				if err != nil {
					return err
				}
				return rt.emit(tracks, func() {
					for _, t := range tracks {
						kind := t.TrackKind
						if kind == "" {
							kind = "standard"
						}
						fmt.Printf("%-32s %-8s %s\n", t.ID, t.Language, kind)
					}
					fmt.Printf("共 %d 条字幕轨\n", len(tracks))
				})
			})
		},
	}
}

func createTranscriptCommand() *cli.Command {
	return &cli.Command{
		Name:      "transcript",
		Usage:     "拉取并清洗视频字幕文本",
		ArgsUsage: "<videoID>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "lang", Usage: "首选语言码 (如 zh/en)"},
			&cli.IntFlag{Name: "max-length", Usage: "文本长度上限 (rune 数)", Value: 1000},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			videoID := cmd.Args().First()
			if videoID == "" {
				return usageErrorf("缺少视频 ID")
			}
			return runWithClient(cmd, func(ctx context.Context, rt *appRuntime) error {
				text, err := rt.client.GetVideoTranscript(ctx, xvideo.TranscriptParams{
					VideoID:           videoID,
					PreferredLanguage: cmd.String("lang"),
					MaxLength:         cmd.Int("max-length"),
				})
				if err != nil {
					return err
				}
				return rt.emit(map[string]string{"video_id": videoID, "transcript": text}, func() {
					if text == "" {
						fmt.Println("(无可用字幕)")
						return
					}
					fmt.Println(text)
				})
			})
		},
	}
}

func createTrendingCommand() *cli.Command {
	return &cli.Command{
		Name:  "trending",
		Usage: "拉取地区热门视频",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "region", Usage: "ISO 3166-1 地区码", Value: "US"},
			&cli.StringFlag{Name: "category", Usage: "分类 ID"},
			&cli.IntFlag{Name: "max", Usage: "结果数上限", Value: 25},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			return runWithClient(cmd, func(ctx context.Context, rt *appRuntime) error {
				videos, err := rt.client.GetTrendingVideos(ctx, xvideo.TrendingParams{
					RegionCode: cmd.String("region"),
					CategoryID: cmd.String("category"),
					MaxResults: cmd.Int("max"),
				})
				if err != nil {
					return err
				}
				return rt.emit(videos, func() {
					for i, v := range videos {
						fmt.Printf("%2d. %-16s %-10d %s\n", i+1, v.ID, v.ViewCount, v.Title)
					}
				})
			})
		},
	}
}

func createCategoriesCommand() *cli.Command {
	return &cli.Command{
		Name:      "categories",
		Usage:     "拉取地区的视频分类表",
		ArgsUsage: "[region]",
		Action: func(_ context.Context, cmd *cli.Command) error {
			return runWithClient(cmd, func(ctx context.Context, rt *appRuntime) error {
				cats, err := rt.client.GetVideoCategories(ctx, cmd.Args().First())
				if err != nil {
					return err
				}
				return rt.emit(cats, func() {
					for _, c := range cats {
						mark := " "
						if c.Assignable {
							mark = "*"
						}
						fmt.Printf("%s %-4s %s\n", mark, c.ID, c.Title)
					}
				})
			})
		},
	}
}

func createQuotaCommand() *cli.Command {
	return &cli.Command{
		Name:  "quota",
		Usage: "查看每日配额状态",
		Action: func(_ context.Context, cmd *cli.Command) error {
			return runWithClient(cmd, func(_ context.Context, rt *appRuntime) error {
				st := rt.client.QuotaStatus()
				return rt.emit(st, func() {
					fmt.Printf("已用: %d / %d (剩余 %d)\n", st.Used, st.Limit, st.Remaining)
					fmt.Printf("窗口重置: %s\n", st.ResetAt.Format(time.RFC3339))
				})
			})
		},
	}
}

func createLimitsCommand() *cli.Command {
	return &cli.Command{
		Name:  "limits",
		Usage: "查看限流与自适应退避状态",
		Action: func(_ context.Context, cmd *cli.Command) error {
			return runWithClient(cmd, func(_ context.Context, rt *appRuntime) error {
				st := rt.client.RateLimitStatus()
				return rt.emit(st, func() {
					for _, w := range st.Limiter.Windows {
						fmt.Printf("窗口 %-8s 可用 %.1f / %.0f\n", w.Window, w.Available, w.Capacity)
					}
					fmt.Printf("最近一分钟放行: %d, 最近一小时放行: %d\n",
						st.Limiter.RequestsLastMinute, st.Limiter.RequestsLastHour)
					fmt.Printf("自适应退避: 额外延迟 %s (成功 %d / 失败 %d)\n",
						st.Adaptive.ExtraDelay, st.Adaptive.SuccessCount, st.Adaptive.ErrorCount)
				})
			})
		},
	}
}

func createCacheCommand() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "缓存运维",
		Commands: []*cli.Command{
			{
				Name:  "stats",
				Usage: "查看缓存统计",
				Action: func(_ context.Context, cmd *cli.Command) error {
					return runWithClient(cmd, func(ctx context.Context, rt *appRuntime) error {
						st := rt.client.CacheStats(ctx)
						return rt.emit(st, func() {
							fmt.Printf("启用: %v\n", st.Enabled)
							fmt.Printf("进程内条目: %d / %d\n", st.MemoryEntries, st.MemoryCapacity)
							fmt.Printf("持久层: 配置=%v 健康=%v\n", st.DurableConfigured, st.DurableHealthy)
							fmt.Printf("命中 %d / 未中 %d / 降级 %d\n", st.Hits, st.Misses, st.Fallbacks)
						})
					})
				},
			},
			{
				Name:  "clear",
				Usage: "清空缓存条目",
				Action: func(_ context.Context, cmd *cli.Command) error {
					return runWithClient(cmd, func(ctx context.Context, rt *appRuntime) error {
						removed, err := rt.client.ClearCache(ctx)
						if err != nil {
							return err
						}
						return rt.emit(map[string]int{"removed": removed}, func() {
							fmt.Printf("已清除 %d 条\n", removed)
						})
					})
				},
			},
		},
	}
}

func createWarmCommand() *cli.Command {
	return &cli.Command{
		Name:  "warm",
		Usage: "缓存预热（来自配置的 warmer 段）",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "daemon", Usage: "按 cron 计划常驻运行"},
		},
		Action: func(appCtx context.Context, cmd *cli.Command) error {
			rt, err := setup(cmd)
			if err != nil {
				return err
			}
			defer rt.close()

			if rt.cfg.Warmer.Schedule == "" {
				return usageErrorf("配置缺少 warmer 段 (schedule / video_ids)")
			}

			warmer, err := xvideo.NewWarmer(rt.client, rt.cfg.Warmer, nil)
			if err != nil {
				return err
			}

			if !cmd.Bool("daemon") {
				ctx, cancel := rt.withTimeout(appCtx)
				defer cancel()
				return warmer.WarmNow(ctx)
			}

			if err := warmer.Start(); err != nil {
				return err
			}
			defer warmer.Stop()

			fmt.Printf("预热守护已启动 (计划: %s)，Ctrl+C 退出\n", rt.cfg.Warmer.Schedule)
			<-appCtx.Done()
			return nil
		},
	}
}
