package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"PaperCompass/pkg/logger"
)

// maxPDFSize 单个 PDF 的大小上限
const maxPDFSize = 64 << 20

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Downloader 把论文 PDF 下载到固定目录，文件名带下载日期后缀，便于按时间清理
type Downloader struct {
	client *http.Client
	dir    string
	now    func() time.Time
	log    *logger.Logger
}

func New(client *http.Client, dir string) (*Downloader, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("获取用户目录失败: %w", err)
		}
		dir = filepath.Join(home, ".papercompass", "pdfs")
	}
	return &Downloader{client: client, dir: dir, now: time.Now, log: logger.WithPrefix("download")}, nil
}

func (d *Downloader) Dir() string { return d.dir }

// Download 返回写入的文件路径；同名文件已存在时直接返回
func (d *Downloader) Download(ctx context.Context, url, name string) (string, error) {
	if strings.TrimSpace(url) == "" {
		return "", fmt.Errorf("论文没有 PDF 链接")
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return "", fmt.Errorf("创建下载目录失败: %w", err)
	}

	path := filepath.Join(d.dir, d.fileName(name))
	if _, err := os.Stat(path); err == nil {
		d.log.Debug("PDF 已存在: %s", path)
		return path, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "PaperCompass/1.0")

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("下载 PDF 失败: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("下载 PDF 失败: HTTP %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(d.dir, ".download-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, io.LimitReader(resp.Body, maxPDFSize+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("写入 PDF 失败: %w", err)
	}
	if n > maxPDFSize {
		return "", fmt.Errorf("PDF 超过 %d MB", maxPDFSize>>20)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", err
	}

	d.log.Info("已下载 %s (%d KB)", path, n>>10)
	return path, nil
}

// Clear 删除早于 olderThan 的 PDF，返回删除数量
func (d *Downloader) Clear(olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	cutoff := d.now().Add(-olderThan)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".pdf") {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(d.dir, e.Name())); err != nil {
			d.log.Warn("删除 %s 失败: %v", e.Name(), err)
			continue
		}
		removed++
	}
	return removed, nil
}

// fileName 例如 2401.12345v1_2025-06-01.pdf
func (d *Downloader) fileName(name string) string {
	name = strings.TrimSuffix(name, ".pdf")
	name = strings.Trim(unsafeName.ReplaceAllString(name, "_"), "_")
	if name == "" {
		name = "paper"
	}
	return name + "_" + d.now().Format("2006-01-02") + ".pdf"
}
