// Package main 是 PaperCompass 命令行入口：自然语言指令驱动的论文检索与比较
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"PaperCompass/config"
	storage "PaperCompass/db/sqlite"
	"PaperCompass/internal/core"
	emb "PaperCompass/internal/embedding"
	"PaperCompass/internal/intent"
	"PaperCompass/internal/llm"
	"PaperCompass/internal/memory"
	"PaperCompass/internal/platform"
	"PaperCompass/pkg/download"
	"PaperCompass/pkg/logger"

	_ "PaperCompass/internal/platform/arxiv"
	_ "PaperCompass/internal/platform/semantic"
)

const downloadTimeout = 120

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "papercompass",
	Short: "用自然語言查詢、比較 arXiv / Semantic Scholar 與本地論文",
	Long: `papercompass 接受中英文自然語言指令，例如：

  查詢 arxiv 的 vit
  semantic scholar 查詢 graph 最近 30 天 最多 5 筆
  比較 arxiv 第二篇與本地六篇

本地論文存放在 SQLite 中，網路檢索結果保存在會話記憶裡供後續比較引用。`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "配置文件（默认 ./config/config.yaml 或 ~/.papercompass/config/config.yaml）")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别：DEBUG / INFO / WARN / ERROR")
}

// loadConfig 加载配置并初始化日志，命令行的日志级别优先
func loadConfig() (*config.AppConfig, error) {
	cfg, err := config.Init(cfgFile)
	if err != nil {
		return nil, err
	}
	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	logger.InitWithFile(level, true, cfg.Log.File)
	logger.Debug("配置文件: %s", config.GetConfigPath())
	return cfg, nil
}

// buildApp 按配置组装执行器；LLM 与向量服务缺失时降级而不是失败
func buildApp(cfg *config.AppConfig) (*core.App, error) {
	store, err := storage.NewSQLiteDB(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	embedder, err := emb.New(cfg.Embedder)
	if err != nil {
		logger.Warn("向量服务初始化失败，语义检索不可用: %v", err)
		embedder = nil
	}

	completer, err := llm.New(cfg.LLM)
	if err != nil {
		logger.Warn("LLM 初始化失败，将使用规则回退: %v", err)
		completer = nil
	}
	if completer == nil {
		logger.Info("未配置 LLM，参数抽取与比较生成使用规则回退")
	}

	opts := []core.Option{
		core.WithPlatforms(map[string]platform.Config{
			core.PlatformArxiv:    &cfg.Arxiv,
			core.PlatformSemantic: &cfg.Semantic,
		}),
		core.WithRetryPolicy(cfg.RetryPolicy()),
		core.WithCallTimeout(cfg.CallTimeout()),
		core.WithMaxCommandLength(cfg.Command.MaxLength),
		core.WithMemoryOptions(memory.WithRetention(cfg.Retention())),
	}

	if cfg.Intent.TriggerFile != "" {
		triggers, err := intent.LoadTriggers(cfg.Intent.TriggerFile)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("加载触发词表失败: %w", err)
		}
		opts = append(opts, core.WithTriggers(triggers))
	}

	if dl, err := download.New(core.NewHTTPClient(downloadTimeout, cfg.Arxiv.Proxy), cfg.Download.Dir); err != nil {
		logger.Warn("PDF 下载不可用: %v", err)
	} else {
		if cfg.Download.KeepDays > 0 {
			if n, err := dl.Clear(time.Duration(cfg.Download.KeepDays) * 24 * time.Hour); err == nil && n > 0 {
				logger.Info("已清理 %d 个过期 PDF", n)
			}
		}
		opts = append(opts, core.WithDownloader(dl))
	}

	if cfg.Memory.JournalDir != "" {
		journal, err := memory.NewJournal(cfg.Memory.JournalDir, cfg.Memory.RetentionDays)
		if err != nil {
			logger.Warn("输入日志不可用: %v", err)
		} else {
			journal.Cleanup()
			opts = append(opts, core.WithMemoryOptions(memory.WithJournal(journal)))
		}
	}

	return core.NewApp(store, embedder, completer, opts...), nil
}

func withApp(run func(app *core.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	app, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer app.Close()
	return run(app)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
