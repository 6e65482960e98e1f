package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	emb "PaperCompass/internal/embedding"
	"PaperCompass/internal/llm"
	"PaperCompass/internal/platform/arxiv"
	"PaperCompass/internal/platform/semantic"
	"PaperCompass/pkg/logger"
)

const (
	envPrefix = "PAPERCOMPASS"
	homeDir   = ".papercompass"
)

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"` // 为空时输出到 stderr
}

type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path"` // 数据库文件路径
}

type MemoryConfig struct {
	RetentionDays int    `mapstructure:"retention_days" yaml:"retention_days"`
	JournalDir    string `mapstructure:"journal_dir" yaml:"journal_dir"` // 为空时不写输入日志
}

// ExtractConfig LLM 调用的重试与超时
type ExtractConfig struct {
	MaxAttempts    int `mapstructure:"max_attempts" yaml:"max_attempts"`
	BaseDelayMS    int `mapstructure:"base_delay_ms" yaml:"base_delay_ms"`
	TimeoutSeconds int `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

type IntentConfig struct {
	TriggerFile string `mapstructure:"trigger_file" yaml:"trigger_file"` // 触发词表 YAML，为空使用内置表
}

// DownloadConfig PDF 下载目录，KeepDays 之前的文件在启动时清理
type DownloadConfig struct {
	Dir      string `mapstructure:"dir" yaml:"dir"`
	KeepDays int    `mapstructure:"keep_days" yaml:"keep_days"`
}

type CommandConfig struct {
	MaxLength int `mapstructure:"max_length" yaml:"max_length"`
}

// AppConfig 应用总配置
type AppConfig struct {
	Env      string             `mapstructure:"env" yaml:"env"`
	Log      LogConfig          `mapstructure:"log" yaml:"log"`
	Database DatabaseConfig     `mapstructure:"database" yaml:"database"`
	Embedder emb.EmbedderConfig `mapstructure:"embedder" yaml:"embedder"`
	LLM      llm.Config         `mapstructure:"agent" yaml:"agent"` // 沿用 agent 键
	Arxiv    arxiv.Config       `mapstructure:"arxiv" yaml:"arxiv"`
	Semantic semantic.Config    `mapstructure:"semantic" yaml:"semantic"`
	Memory   MemoryConfig       `mapstructure:"memory" yaml:"memory"`
	Extract  ExtractConfig      `mapstructure:"extract" yaml:"extract"`
	Intent   IntentConfig       `mapstructure:"intent" yaml:"intent"`
	Command  CommandConfig      `mapstructure:"command" yaml:"command"`
	Download DownloadConfig     `mapstructure:"download" yaml:"download"`
}

// RetryPolicy 转成 llm 包的退避策略
func (c *AppConfig) RetryPolicy() llm.Policy {
	p := llm.DefaultPolicy()
	if c.Extract.MaxAttempts > 0 {
		p.Attempts = c.Extract.MaxAttempts
	}
	if c.Extract.BaseDelayMS > 0 {
		p.BaseDelay = time.Duration(c.Extract.BaseDelayMS) * time.Millisecond
	}
	return p
}

func (c *AppConfig) CallTimeout() time.Duration {
	return time.Duration(c.Extract.TimeoutSeconds) * time.Second
}

func (c *AppConfig) Retention() time.Duration {
	return time.Duration(c.Memory.RetentionDays) * 24 * time.Hour
}

func (c *AppConfig) Validate() error {
	if err := c.Arxiv.Validate(); err != nil {
		return fmt.Errorf("arxiv 配置不合法: %w", err)
	}
	if err := c.Semantic.Validate(); err != nil {
		return fmt.Errorf("semantic 配置不合法: %w", err)
	}
	if c.Memory.RetentionDays <= 0 {
		return fmt.Errorf("memory.retention_days 必须为正数，当前为 %d", c.Memory.RetentionDays)
	}
	if c.Command.MaxLength <= 0 {
		return fmt.Errorf("command.max_length 必须为正数，当前为 %d", c.Command.MaxLength)
	}
	if c.Extract.TimeoutSeconds <= 0 {
		return fmt.Errorf("extract.timeout_seconds 必须为正数，当前为 %d", c.Extract.TimeoutSeconds)
	}
	return nil
}

var (
	global     *AppConfig
	once       sync.Once
	globalErr  error
	configPath string
)

func defaultDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, homeDir)
}

func setDefaults(v *viper.Viper) {
	base := defaultDir()

	v.SetDefault("env", "prod")
	v.SetDefault("log.level", "INFO")
	v.SetDefault("log.file", "")
	v.SetDefault("database.path", filepath.Join(base, "data", "papers.db"))

	v.SetDefault("embedder.baseurl", "https://api.openai.com/v1")
	v.SetDefault("embedder.apikey", "")
	v.SetDefault("embedder.model", "text-embedding-3-small")
	v.SetDefault("embedder.dim", 1536)

	v.SetDefault("agent.base_url", "https://api.openai.com/v1")
	v.SetDefault("agent.model", "gpt-4o-mini")
	v.SetDefault("agent.api_key", "")

	arx := arxiv.DefaultConfig()
	v.SetDefault("arxiv.use_api", arx.UseAPI)
	v.SetDefault("arxiv.proxy", "")
	v.SetDefault("arxiv.step", arx.Step)
	v.SetDefault("arxiv.timeout", arx.Timeout)
	v.SetDefault("arxiv.api_base", arx.APIBase)
	v.SetDefault("arxiv.web_base", arx.WebBase)

	sem := semantic.DefaultConfig()
	v.SetDefault("semantic.api_base", sem.APIBase)
	v.SetDefault("semantic.api_key", "")
	v.SetDefault("semantic.proxy", "")
	v.SetDefault("semantic.timeout", sem.Timeout)

	v.SetDefault("memory.retention_days", 30)
	v.SetDefault("memory.journal_dir", "")

	v.SetDefault("extract.max_attempts", 3)
	v.SetDefault("extract.base_delay_ms", 1000)
	v.SetDefault("extract.timeout_seconds", 20)

	v.SetDefault("intent.trigger_file", "")
	v.SetDefault("command.max_length", 500)

	v.SetDefault("download.dir", filepath.Join(base, "pdfs"))
	v.SetDefault("download.keep_days", 30)
}

// Load 读取配置，不缓存；configPaths 可以是目录或具体的 yaml 文件
func Load(configPaths ...string) (*AppConfig, string, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	v.AddConfigPath(".")
	v.AddConfigPath(filepath.Join(defaultDir(), "config"))

	for _, p := range configPaths {
		if p == "" {
			continue
		}
		if strings.HasSuffix(p, ".yaml") || strings.HasSuffix(p, ".yml") {
			v.SetConfigFile(p)
		} else {
			v.AddConfigPath(p)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	used := ""
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, "", fmt.Errorf("读取配置文件失败: %w", err)
		}
		logger.Debug("未找到配置文件，使用默认配置")
	} else {
		used = v.ConfigFileUsed()
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, "", fmt.Errorf("配置解析失败: %w", err)
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = filepath.Join(defaultDir(), "data", "papers.db")
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, used, nil
}

// Init 进程内只加载一次；找不到配置文件时在 home 目录下生成示例配置
func Init(configPaths ...string) (*AppConfig, error) {
	once.Do(func() {
		cfg, used, err := Load(configPaths...)
		if err != nil {
			globalErr = err
			return
		}
		if used == "" {
			if err := CreateExampleConfig(); err != nil {
				logger.Warn("创建示例配置文件失败: %v", err)
			}
		}
		global = cfg
		configPath = used
	})
	return global, globalErr
}

func MustInit(configPaths ...string) *AppConfig {
	cfg, err := Init(configPaths...)
	if err != nil {
		panic(err)
	}
	return cfg
}

func Get() *AppConfig {
	if global == nil {
		_, _ = Init()
	}
	return global
}

// GetConfigPath 当前使用的配置文件，没有时返回 home 目录下的默认位置
func GetConfigPath() string {
	if configPath == "" {
		return filepath.Join(defaultDir(), "config", "config.yaml")
	}
	return configPath
}

// Save 把配置写回 yaml 文件
func Save(cfg *AppConfig, path string) error {
	if cfg == nil {
		return fmt.Errorf("配置不能为空")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("创建配置目录失败: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("写入配置文件失败: %w", err)
	}
	return nil
}

const exampleConfig = `# PaperCompass 配置文件
# 所有键都可以用环境变量覆盖，例如 PAPERCOMPASS_AGENT_API_KEY

log:
  level: INFO
  file: ""

database:
  path: ""   # 留空使用 ~/.papercompass/data/papers.db

# Embedding 服务（本地语义检索、比较相似度）
embedder:
  baseurl: "https://api.openai.com/v1"
  apikey: ""
  model: "text-embedding-3-small"
  dim: 1536

# LLM（参数抽取、摘要校验、比较生成），留空时走规则回退
agent:
  base_url: "https://api.openai.com/v1"
  model: "gpt-4o-mini"
  api_key: ""

arxiv:
  use_api: true
  proxy: ""
  step: 50
  timeout: 10

semantic:
  api_key: ""     # 可选，Semantic Scholar API Key
  proxy: ""
  timeout: 10

memory:
  retention_days: 30
  journal_dir: ""  # 例如 ~/.papercompass/memory

extract:
  max_attempts: 3
  base_delay_ms: 1000
  timeout_seconds: 20

intent:
  trigger_file: ""  # 自定义触发词表

command:
  max_length: 500

download:
  dir: ""         # 留空使用 ~/.papercompass/pdfs
  keep_days: 30
`

// CreateExampleConfig 已存在时不覆盖
func CreateExampleConfig() error {
	configDir := filepath.Join(defaultDir(), "config")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("创建配置目录失败: %w", err)
	}

	configFile := filepath.Join(configDir, "config.yaml")
	if _, err := os.Stat(configFile); err == nil {
		logger.Debug("配置文件已存在: %s", configFile)
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("检查配置文件时出错: %w", err)
	}

	if err := os.WriteFile(configFile, []byte(exampleConfig), 0o644); err != nil {
		return fmt.Errorf("写入配置文件失败: %w", err)
	}
	logger.Info("已创建示例配置文件: %s，请编辑后设置 API Key", configFile)
	return nil
}
