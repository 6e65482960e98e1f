package pdf

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"PaperCompass/internal/llm"
	"PaperCompass/internal/models"
	"PaperCompass/pkg/logger"
)

// AbstractSource 摘要的来源
type AbstractSource string

const (
	AbstractFromHeader   AbstractSource = "header"
	AbstractFromFallback AbstractSource = "fallback"
	AbstractInvalid      AbstractSource = "invalid"
)

const (
	untitled       = "Untitled"
	maxTitleRunes  = 200
	maxAbstractLen = 4000
)

type Document struct {
	Title          string
	Abstract       string
	FullText       string
	AbstractSource AbstractSource
}

// ContentHash 文件内容的去重键
func ContentHash(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

type Extractor struct {
	llm     llm.Completer
	policy  llm.Policy
	timeout time.Duration
	log     *logger.Logger
}

type Option func(*Extractor)

func WithPolicy(p llm.Policy) Option { return func(e *Extractor) { e.policy = p } }

func WithLogger(l *logger.Logger) Option { return func(e *Extractor) { e.log = l } }

// New completer 可以为 nil，此时摘要校验只用启发式规则
func New(completer llm.Completer, opts ...Option) *Extractor {
	e := &Extractor{llm: completer, policy: llm.DefaultPolicy(), timeout: 20 * time.Second}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logger.WithPrefix("pdf")
	}
	return e
}

// Extract 解析失败时返回错误，Document 仍带有 Untitled 等占位值
func (e *Extractor) Extract(ctx context.Context, data []byte) (Document, error) {
	text, err := PlainText(data)
	if err != nil {
		e.log.Warn("无法解析 PDF: %v", err)
		return Document{Title: untitled, Abstract: models.NoValidAbstract, AbstractSource: AbstractInvalid}, err
	}
	return e.ParseText(ctx, text), nil
}

// PlainText 逐页按行抽取文本
func PlainText(data []byte) (text string, err error) {
	// ledongthuc/pdf 遇到损坏的文件会 panic
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("PDF 文件损坏: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("打开 PDF 失败: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return "", fmt.Errorf("读取第 %d 页失败: %w", i, err)
		}
		for _, row := range rows {
			for _, word := range row.Content {
				sb.WriteString(word.S)
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", fmt.Errorf("PDF 中没有可抽取的文本")
	}
	return sb.String(), nil
}

// ParseText 从纯文本中找标题和摘要
func (e *Extractor) ParseText(ctx context.Context, fullText string) Document {
	doc := Document{FullText: fullText, Title: findTitle(fullText)}

	if candidate := headerAbstract(fullText); candidate != "" && e.isValidAbstract(ctx, candidate) {
		doc.Abstract = candidate
		doc.AbstractSource = AbstractFromHeader
		return doc
	}

	if candidate := leadingAbstract(fullText); e.isValidAbstract(ctx, candidate) {
		doc.Abstract = candidate
		doc.AbstractSource = AbstractFromFallback
		return doc
	}

	doc.Abstract = models.NoValidAbstract
	doc.AbstractSource = AbstractInvalid
	return doc
}

func (e *Extractor) isValidAbstract(ctx context.Context, text string) bool {
	if len([]rune(text)) < 50 {
		return false
	}
	if e.llm != nil {
		var answer string
		err := llm.Retry(ctx, e.policy, func(ctx context.Context) error {
			callCtx, cancel := context.WithTimeout(ctx, e.timeout)
			defer cancel()
			out, err := e.llm.Complete(callCtx, llm.Request{
				System: "You are an expert in academic writing.",
				User: "Please check if the following paragraph is likely to be a valid research abstract.\n" +
					"Respond only 'yes' or 'no'.\n\n" + text,
			})
			answer = out
			return err
		})
		if err == nil {
			return strings.Contains(strings.ToLower(answer), "yes")
		}
		e.log.Debug("摘要校验回退到启发式规则: %v", err)
	}
	return looksLikeAbstract(text)
}

func looksLikeAbstract(text string) bool {
	if len([]rune(text)) <= 100 {
		return false
	}
	lower := strings.ToLower(text)
	for _, kw := range []string{"propose", "method", "results", "approach"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func findTitle(fullText string) string {
	lines := strings.Split(strings.TrimSpace(fullText), "\n")
	for i, line := range lines {
		if i >= 5 {
			break
		}
		line = strings.TrimSpace(line)
		lower := strings.ToLower(line)
		if len([]rune(line)) > 10 && !strings.HasPrefix(lower, "abstract") && !strings.HasPrefix(lower, "keywords") {
			return truncateRunes(line, maxTitleRunes)
		}
	}
	return untitled
}

// headerAbstract 取以 "abstract" 开头的行之后的第一段，遇到空行或下一个小节停止
func headerAbstract(fullText string) string {
	lines := strings.Split(fullText, "\n")
	start := -1
	for i, line := range lines {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "abstract") {
			start = i
			break
		}
	}
	if start < 0 {
		return ""
	}

	var para []string
	// 同一行的剩余部分，例如 "Abstract—We propose ..."
	head := strings.TrimSpace(lines[start])[len("abstract"):]
	if first := strings.TrimLeft(head, ":：.-—– "); first != "" {
		para = append(para, first)
	}
	for _, line := range lines[start+1:] {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if len(para) > 0 {
				break
			}
			continue
		}
		if isSectionStart(trimmed) {
			break
		}
		para = append(para, trimmed)
	}
	return truncateRunes(strings.Join(para, "\n"), maxAbstractLen)
}

// leadingAbstract 第 2 到 15 行，跳过关键词和引言行
func leadingAbstract(fullText string) string {
	lines := strings.Split(strings.TrimSpace(fullText), "\n")
	var kept []string
	for i, line := range lines {
		if i == 0 {
			continue
		}
		if i >= 15 {
			break
		}
		lower := strings.ToLower(strings.TrimSpace(line))
		if strings.HasPrefix(lower, "keywords") || strings.HasPrefix(lower, "introduction") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

var sectionNumberRe = regexp.MustCompile(`^(?:[0-9]+|[ivx]+)[.)]\s*|^[0-9]+\s+`)

func isSectionStart(line string) bool {
	lower := sectionNumberRe.ReplaceAllString(strings.ToLower(line), "")
	for _, prefix := range []string{"keywords", "key words", "index terms", "introduction"} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
