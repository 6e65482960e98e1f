package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/embedding/openai"

	"PaperCompass/internal/models"
)

// ErrNotConfigured 没有配置 APIKey 时所有向量调用都返回该错误
var ErrNotConfigured = errors.New("向量服务未配置（缺少 embedder.apikey）")

// maxInputRunes 单条输入的截断长度
const maxInputRunes = 8192

type EmbedderConfig struct {
	BaseURL   string `mapstructure:"baseurl" yaml:"baseurl"`
	APIKey    string `mapstructure:"apikey" yaml:"apikey"`
	ModelName string `mapstructure:"model" yaml:"model"`
	Dim       int    `mapstructure:"dim" yaml:"dim"`
}

// Service 向量服务，本地语义检索、比较相似度和入库向量共用
type Service interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	ModelName() string
	Dim() int
}

type openaiAdapter struct {
	cfg   EmbedderConfig
	inner *openai.Embedder
}

func New(cfg EmbedderConfig) (Service, error) {
	if cfg.ModelName == "" {
		cfg.ModelName = "text-embedding-3-small"
	}
	if cfg.Dim == 0 {
		cfg.Dim = 1536
	}

	if cfg.APIKey == "" {
		return &noopService{cfg: cfg}, nil
	}

	inner, err := openai.NewEmbedder(context.Background(), &openai.EmbeddingConfig{
		APIKey:  cfg.APIKey,
		Model:   cfg.ModelName,
		BaseURL: cfg.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建向量服务失败: %w", err)
	}
	return &openaiAdapter{cfg: cfg, inner: inner}, nil
}

func (a *openaiAdapter) ModelName() string { return a.cfg.ModelName }
func (a *openaiAdapter) Dim() int          { return a.cfg.Dim }

func (a *openaiAdapter) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("查询文本为空")
	}
	vecs, err := a.inner.EmbedStrings(ctx, []string{truncate(text)})
	if err != nil {
		return nil, fmt.Errorf("生成向量失败: %w", err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("向量服务返回空结果")
	}
	return toFloat32(vecs[0]), nil
}

func (a *openaiAdapter) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	filtered := make([]string, 0, len(texts))
	for _, t := range texts {
		t = strings.TrimSpace(t)
		if t != "" {
			filtered = append(filtered, truncate(t))
		}
	}
	if len(filtered) == 0 {
		return nil, fmt.Errorf("没有可向量化的文本")
	}
	vecs64, err := a.inner.EmbedStrings(ctx, filtered)
	if err != nil {
		return nil, fmt.Errorf("批量生成向量失败: %w", err)
	}
	vecs32 := make([][]float32, len(vecs64))
	for i, v := range vecs64 {
		vecs32[i] = toFloat32(v)
	}
	return vecs32, nil
}

// noopService 空实现，用于没有配置 APIKey 时
type noopService struct {
	cfg EmbedderConfig
}

func (n *noopService) ModelName() string { return n.cfg.ModelName }
func (n *noopService) Dim() int          { return n.cfg.Dim }
func (n *noopService) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return nil, ErrNotConfigured
}
func (n *noopService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, ErrNotConfigured
}

// Available 服务是否真正可用（不是空实现）
func Available(s Service) bool {
	if s == nil {
		return false
	}
	_, noop := s.(*noopService)
	return !noop
}

func truncate(text string) string {
	r := []rune(text)
	if len(r) <= maxInputRunes {
		return text
	}
	return string(r[:maxInputRunes])
}

// toFloat32 转换 float64 到 float32（SQLite BLOB 存储用）
func toFloat32(v []float64) []float32 {
	ret := make([]float32, len(v))
	for i, val := range v {
		ret[i] = float32(val)
	}
	return ret
}

// BuildEmbeddingText 生成用于向量化的文本（标题 + 摘要），占位摘要不参与
func BuildEmbeddingText(p *models.Paper) string {
	title := strings.TrimSpace(p.Title)
	abs := strings.TrimSpace(p.Abstract)
	if !p.HasAbstract() {
		return title
	}
	return fmt.Sprintf("%s\n\n%s", title, abs)
}
