package core

import (
	"fmt"
	"sort"
	"sync"

	"PaperCompass/internal/platform"
)

// Provider 在线论文源的注册项，各平台包在 init 中注册
// Name 平台唯一标识，例如 "arxiv"、"semantic"
// DefaultConfig 返回该平台的一个可用默认配置
type Provider struct {
	Name string

	New func(cfg platform.Config) (platform.Platform, error)

	DefaultConfig func() platform.Config
}

var (
	regMu    sync.RWMutex
	registry = map[string]Provider{}
)

func Register(p Provider) error {
	if p.Name == "" {
		return fmt.Errorf("provider 的名字不能为空")
	}
	if p.New == nil || p.DefaultConfig == nil {
		return fmt.Errorf("provider %s 的配置不正确", p.Name)
	}

	regMu.Lock()
	defer regMu.Unlock()
	if _, exists := registry[p.Name]; exists {
		return fmt.Errorf("provider %s 已经注册过了", p.Name)
	}
	registry[p.Name] = p
	return nil
}

func MustRegister(p Provider) {
	if err := Register(p); err != nil {
		panic(err)
	}
}

func Get(name string) (Provider, bool) {
	regMu.RLock()
	defer regMu.RUnlock()
	p, ok := registry[name]
	return p, ok
}

// List 已注册的平台名，按字母排序
func List() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Open 用给定配置构造平台，cfg 为 nil 时使用平台默认配置
func Open(name string, cfg platform.Config) (platform.Platform, error) {
	prov, ok := Get(name)
	if !ok {
		return nil, fmt.Errorf("未知或未实现的平台: %s", name)
	}
	if cfg == nil {
		cfg = prov.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s 配置不合法: %w", name, err)
	}
	return prov.New(cfg)
}
