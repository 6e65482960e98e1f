package intent

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"
)

// Triggers 每条规则的触发词表，规则顺序固定在 Classifier 中，词表可通过 YAML 覆盖
type Triggers struct {
	HistoryList    []string `yaml:"history_list"`
	Compare        []string `yaml:"compare"`
	Ordinal        []string `yaml:"ordinal"`
	Arxiv          []string `yaml:"arxiv"`
	Local          []string `yaml:"local"`
	Web            []string `yaml:"web"`
	ArxivSearch    []string `yaml:"arxiv_search"`
	SemanticSearch []string `yaml:"semantic_search"`
	LocalQuery     []string `yaml:"local_query"`
	// DefaultSubjects 无法抽出两个编号时，指令提到这些主题就把它作为比较主题
	DefaultSubjects []string `yaml:"default_subjects"`
}

func DefaultTriggers() Triggers {
	return Triggers{
		HistoryList:    []string{"本地論文清單", "本地论文清单", "list local papers", "local paper list", "/history"},
		Compare:        []string{"比較", "比较", "compare"},
		Ordinal:        []string{"篇", "第", "paper", "#", "no."},
		Arxiv:          []string{"arxiv"},
		Local:          []string{"本地", "local"},
		Web:            []string{"arxiv", "semantic", "web", "剛剛", "刚刚", "查詢", "查询", "just now", "query"},
		ArxivSearch:    []string{"arxiv", "arxiv查詢", "查arxiv"},
		SemanticSearch: []string{"semantic scholar", "semantic查詢", "semantic查询", "查semantic", "semanticscholar"},
		LocalQuery: []string{
			"摘要", "查詢", "查询", "有哪些", "上傳的", "上传的", "本地",
			"abstract", "query", "uploaded", "local", "what papers",
		},
		DefaultSubjects: []string{"diffusion"},
	}
}

// LoadTriggers 读取 YAML 词表，文件中缺省的规则保留默认值
func LoadTriggers(path string) (Triggers, error) {
	t := DefaultTriggers()
	if strings.TrimSpace(path) == "" {
		return t, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return t, fmt.Errorf("读取触发词文件失败: %w", err)
	}

	var override Triggers
	if err := yaml.Unmarshal(data, &override); err != nil {
		return t, fmt.Errorf("解析触发词文件失败: %w", err)
	}
	t.merge(override)
	return t, t.Validate()
}

func (t *Triggers) merge(o Triggers) {
	pick := func(dst *[]string, src []string) {
		if len(src) > 0 {
			*dst = lowerAll(src)
		}
	}
	pick(&t.HistoryList, o.HistoryList)
	pick(&t.Compare, o.Compare)
	pick(&t.Ordinal, o.Ordinal)
	pick(&t.Arxiv, o.Arxiv)
	pick(&t.Local, o.Local)
	pick(&t.Web, o.Web)
	pick(&t.ArxivSearch, o.ArxivSearch)
	pick(&t.SemanticSearch, o.SemanticSearch)
	pick(&t.LocalQuery, o.LocalQuery)
	pick(&t.DefaultSubjects, o.DefaultSubjects)
}

func (t Triggers) Validate() error {
	if len(t.Compare) == 0 {
		return fmt.Errorf("compare 触发词不能为空")
	}
	if len(t.Arxiv) == 0 || len(t.Local) == 0 {
		return fmt.Errorf("arxiv/local 来源词不能为空")
	}
	return nil
}

// Marshal 导出当前词表，便于用户在此基础上修改
func (t Triggers) Marshal() ([]byte, error) {
	return yaml.Marshal(t)
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if w != "" && strings.Contains(text, w) {
			return true
		}
	}
	return false
}

func firstContained(text string, words []string) string {
	for _, w := range words {
		if w != "" && strings.Contains(text, w) {
			return w
		}
	}
	return ""
}

func lowerAll(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			out = append(out, w)
		}
	}
	return out
}
