package compare

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"PaperCompass/internal/llm"
	"PaperCompass/internal/models"
	"PaperCompass/pkg/logger"
	"PaperCompass/pkg/similarity"
)

const (
	maxPromptRunes = 4000
	// 向量缓存上限，超出后按写入顺序淘汰
	maxCacheEntries = 256

	systemPrompt = "你是一個論文比較專家，擅長分析摘要的語義差異與相似處。"

	fallbackBody = "- 相似處：無法分析（API錯誤）\n" +
		"- 差異處：無法分析（API錯誤）\n" +
		"- 關鍵洞察：請檢查API連線或稍後重試"
)

// Embedder 计算相似度只需要批量向量接口
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Comparison 一次比较的结果；Generated 为 false 表示正文是回退文本
type Comparison struct {
	Similarity float64
	Body       string
	Topic      string
	Generated  bool
}

func (c Comparison) String() string {
	return fmt.Sprintf("**語義相似度**：%.2f（0到1，1為完全相同）\n%s", c.Similarity, c.Body)
}

type Generator struct {
	llm      llm.Completer
	embedder Embedder
	policy   llm.Policy
	timeout  time.Duration
	log      *logger.Logger

	mu    sync.Mutex
	cache map[string][]float32 // md5(摘要) -> 向量
	order []string
}

type Option func(*Generator)

func WithPolicy(p llm.Policy) Option { return func(g *Generator) { g.policy = p } }

func WithLogger(l *logger.Logger) Option { return func(g *Generator) { g.log = l } }

// New completer 与 embedder 都可以为 nil
func New(completer llm.Completer, embedder Embedder, opts ...Option) *Generator {
	g := &Generator{
		llm:      completer,
		embedder: embedder,
		policy:   llm.DefaultPolicy(),
		timeout:  60 * time.Second,
		cache:    make(map[string][]float32),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.log == nil {
		g.log = logger.WithPrefix("compare")
	}
	return g
}

// Compare 比较两篇论文的摘要，topic 为空表示不限定主题
func (g *Generator) Compare(ctx context.Context, left, right *models.Paper, topic string) Comparison {
	sim := g.Similarity(ctx, left.Abstract, right.Abstract)
	out := Comparison{Similarity: sim, Topic: topic, Body: fallbackBody}

	if g.llm == nil {
		g.log.Warn("未配置 LLM，比较结果使用占位文本")
		return out
	}

	var body string
	err := llm.Retry(ctx, g.policy, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()
		res, err := g.llm.Complete(callCtx, llm.Request{
			System:      systemPrompt,
			User:        buildPrompt(left.Abstract, right.Abstract, topic, sim),
			Temperature: 0.3,
		})
		if err != nil {
			return err
		}
		if res == "" {
			return fmt.Errorf("比较结果为空")
		}
		body = res
		return nil
	})
	if err != nil {
		g.log.Error("生成比较失败: %v", err)
		return out
	}

	out.Body = body
	out.Generated = true
	return out
}

// Similarity 摘要向量的余弦相似度，压到 [0,1]；向量不可用时返回 0
func (g *Generator) Similarity(ctx context.Context, a, b string) float64 {
	if g.embedder == nil {
		return 0
	}

	keyA, keyB := hash(a), hash(b)
	g.mu.Lock()
	vecA, okA := g.cache[keyA]
	vecB, okB := g.cache[keyB]
	g.mu.Unlock()

	if !okA || !okB {
		vecs, err := g.embedder.EmbedBatch(ctx, []string{a, b})
		if err != nil || len(vecs) != 2 {
			g.log.Warn("计算摘要向量失败，相似度记为 0: %v", err)
			return 0
		}
		vecA, vecB = vecs[0], vecs[1]
		g.mu.Lock()
		g.rememberLocked(keyA, vecA)
		g.rememberLocked(keyB, vecB)
		g.mu.Unlock()
	}

	return float64(similarity.Clamp01(similarity.CosineSimilarity(vecA, vecB)))
}

func (g *Generator) rememberLocked(key string, vec []float32) {
	if _, ok := g.cache[key]; ok {
		g.cache[key] = vec
		return
	}
	for len(g.order) >= maxCacheEntries {
		delete(g.cache, g.order[0])
		g.order = g.order[1:]
	}
	g.cache[key] = vec
	g.order = append(g.order, key)
}

func buildPrompt(abstract1, abstract2, topic string, sim float64) string {
	if topic == "" {
		topic = "無"
	}
	return fmt.Sprintf(`比較以下兩篇論文摘要，生成結構化比較結果，包括：
1. 相似處（至少2點）
2. 差異處（至少2點）
3. 關鍵洞察（方法論、貢獻或應用）
請以清晰的項目符號格式回答，使用繁體中文。
若有指定主題（%s），請聚焦於該主題。
若相似度分數（%.2f）較低，強調差異；若較高，強調相似處。

摘要1：
%s

摘要2：
%s`, topic, sim, truncate(abstract1), truncate(abstract2))
}

func hash(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= maxPromptRunes {
		return s
	}
	return string(r[:maxPromptRunes])
}
