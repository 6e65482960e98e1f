package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Config LLM 配置，yaml 中沿用 agent 键
type Config struct {
	BaseURL   string `mapstructure:"base_url" yaml:"base_url"` // API 地址，支持 OpenAI 兼容的 API
	ModelName string `mapstructure:"model" yaml:"model"`
	APIKey    string `mapstructure:"api_key" yaml:"api_key"`
}

// Request 一次单轮对话请求
type Request struct {
	System      string
	User        string
	Temperature float32
}

// Completer 抽取器、摘要校验、比较生成共用的最小 LLM 接口
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

type chatCompleter struct {
	model model.BaseChatModel
}

// New 未配置 API Key 时返回 nil，调用方直接走确定性回退
func New(cfg Config) (Completer, error) {
	if cfg.APIKey == "" {
		return nil, nil
	}

	temp := float32(0.2)
	cm, err := openai.NewChatModel(context.Background(), &openai.ChatModelConfig{
		APIKey:      cfg.APIKey,
		Model:       cfg.ModelName,
		BaseURL:     cfg.BaseURL,
		Temperature: &temp,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 LLM 客户端失败: %w", err)
	}
	return NewFromModel(cm), nil
}

// NewFromModel 包装任意 eino 聊天模型
func NewFromModel(m model.BaseChatModel) Completer {
	return &chatCompleter{model: m}
}

func (c *chatCompleter) Complete(ctx context.Context, req Request) (string, error) {
	var messages []*schema.Message
	if req.System != "" {
		messages = append(messages, &schema.Message{Role: schema.System, Content: req.System})
	}
	messages = append(messages, &schema.Message{Role: schema.User, Content: req.User})

	var opts []model.Option
	if req.Temperature > 0 {
		opts = append(opts, model.WithTemperature(req.Temperature))
	}

	resp, err := c.model.Generate(ctx, messages, opts...)
	if err != nil {
		return "", fmt.Errorf("LLM 生成失败: %w", err)
	}
	if resp == nil {
		return "", fmt.Errorf("LLM 返回空响应")
	}
	// 空内容是合法回答（例如没有明确主题），由调用方解释
	return strings.TrimSpace(resp.Content), nil
}
