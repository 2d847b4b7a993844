// vidgatectl 是 vidgate 的运维命令行工具。
//
// 用法:
//
//	vidgatectl [全局选项] <命令> [命令参数]
//
// 全局选项:
//
//	-c, --config      配置文件路径 (YAML/JSON)
//	    --api-key     上游凭证（优先于配置文件与环境变量）
//	    --log-level   日志级别 (debug/info/warn/error)
//	    --log-format  日志格式 (text/json)
//	    --log-file    日志文件路径（启用轮转）
//	    --json        以 JSON 输出结果
//	-t, --timeout     命令超时时间 (默认: 60s)
//
// 命令:
//
//	search <query>        搜索视频（--channels 切换为频道搜索）
//	videos <id...>        批量拉取视频详情（自动分块）
//	channels <id...>      批量拉取频道详情
//	comments <videoID>    拉取视频顶层评论
//	captions <videoID>    列出视频字幕轨
//	transcript <videoID>  拉取并清洗字幕文本
//	trending              拉取地区热门视频
//	categories [region]   拉取视频分类表
//	quota                 查看每日配额状态
//	limits                查看限流与自适应退避状态
//	cache stats|clear     缓存统计 / 清空缓存
//	warm                  执行缓存预热（--daemon 按 cron 计划常驻）
//
// 配置来源按优先级：命令行参数 > VIDGATE_ 环境变量 > 配置文件 > 内置默认值。
//
// 退出码:
//
//	0: 命令执行成功
//	1: 命令执行失败
//	2: 参数错误
//
// 示例:
//
//	vidgatectl -c /etc/vidgate/config.yaml search "go concurrency" --max 10
//	vidgatectl videos dQw4w9WgXcQ abc123 --json
//	VIDGATE_API_KEY=xxx vidgatectl quota
//	vidgatectl -c config.yaml warm --daemon
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
)

// defaultTimeout 默认命令超时时间。
const defaultTimeout = 60 * time.Second

// 版本信息（可通过 -ldflags 注入，例如:
//
//	go build -ldflags "-X main.Version=1.0.0 -X main.GitCommit=$(git rev-parse --short HEAD)"
//
// ）。
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	os.Exit(run())
}

// createApp 创建 CLI 应用。
func createApp() *cli.Command {
	return &cli.Command{
		Name:    "vidgatectl",
		Usage:   "vidgate 配额感知视频数据客户端的运维工具",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "配置文件路径 (YAML/JSON)",
			},
			&cli.StringFlag{
				Name:  "api-key",
				Usage: "上游凭证，优先于配置文件与环境变量",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "日志级别 (debug/info/warn/error)",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "日志格式 (text/json)",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "日志文件路径，启用按大小轮转",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "以 JSON 输出结果",
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Usage:   "命令超时时间",
				Value:   defaultTimeout,
			},
		},
		Commands:       createCommands(),
		DefaultCommand: "help",
		ExitErrHandler: func(_ context.Context, _ *cli.Command, err error) {
			// 统一由 run() 处理退出码，此处仅输出框架错误
			if _, ok := err.(cli.ExitCoder); ok {
				fmt.Fprintln(os.Stderr, err)
			}
		},
	}
}

func run() int {
	app := createApp()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	setupSignalHandler(cancel)

	if err := app.Run(ctx, os.Args); err != nil {
		var usageErr *usageError
		if ok := asUsageError(err, &usageErr); ok {
			fmt.Fprintf(os.Stderr, "参数错误: %v\n", usageErr)
			return 2
		}
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		return 1
	}
	return 0
}

// setupSignalHandler 第一次信号优雅取消，第二次信号强制退出。
func setupSignalHandler(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()

		<-sigCh
		signal.Stop(sigCh)
		os.Exit(130)
	}()
}
