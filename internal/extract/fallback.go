package extract

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	maxResultsRe = regexp.MustCompile(`(?i)(?:最多|maximum|max|top)\s*(\d+)\s*(?:筆|笔|篇|條|条|results?|papers?)`)
	daysRe       = regexp.MustCompile(`(?i)(?:最近|過去|过去|last|past)\s*(\d+)\s*(?:天|日|days?)`)

	// 带序数锚点的编号：第2篇、第二篇、6篇、paper 3、#4、no. 5、2nd
	ordinalRe = regexp.MustCompile(`(?i)第\s*([0-9]+|[零〇一二兩两三四五六七八九十百]+)` +
		`|([0-9]+|[零〇一二三四五六七八九十百]+)\s*篇` +
		`|(?:paper|no\.?|#)\s*([0-9]+)` +
		`|\b([0-9]+)(?:st|nd|rd|th)\b`)
	bareNumberRe = regexp.MustCompile(`[0-9]+`)
	latinWordRe  = regexp.MustCompile(`[a-z][a-z0-9\-\+\.]*`)
)

// Vocabulary 回退解析用到的双语词表，全部小写
type Vocabulary struct {
	// QueryTriggers 关键词一般紧跟在这些词之后
	QueryTriggers []string `yaml:"query_triggers"`
	// SourceTriggers 找不到 QueryTriggers 时的次级锚点
	SourceTriggers []string `yaml:"source_triggers"`
	// SourceWords 来源/查询脚手架词，从任何关键词结果中剔除
	SourceWords []string `yaml:"source_words"`
	Fillers     []string `yaml:"fillers"`
	// TopicScaffold 比较指令里不构成主题的词
	TopicScaffold []string `yaml:"topic_scaffold"`
}

func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		QueryTriggers:  []string{"查詢", "查询", "搜尋", "搜索", "搜寻", "關於", "关于", "查", "找", "search", "query", "about", "find"},
		SourceTriggers: []string{"arxiv", "semantic", "scholar"},
		SourceWords:    []string{"arxiv", "semantic", "scholar", "query", "search", "查詢", "查询", "查"},
		Fillers: []string{
			"的", "上", "在", "和", "與", "与", "一下", "幫我", "帮我", "請", "请", "我", "想",
			"論文", "论文", "文章", "相關", "相关", "最多", "最近", "筆", "笔", "篇", "天",
			"關於", "关于", "找", "搜尋", "搜索", "搜寻", "第", "本地", "比較", "比较",
			"the", "a", "an", "of", "for", "on", "in", "with", "about", "find", "me", "please",
			"papers", "paper", "related", "to", "max", "maximum", "last", "past", "days", "day",
			"results", "result", "top", "local", "compare", "vs",
		},
		TopicScaffold: []string{
			"compare", "comparison", "vs", "versus", "and", "with", "the", "a", "an", "of", "paper", "papers",
			"no", "no.", "arxiv", "semantic", "scholar", "web", "local", "just", "now", "query", "search",
			"result", "results", "between", "on", "in", "about", "for", "st", "nd", "rd", "th",
		},
	}
}

func (v Vocabulary) sourceSet() map[string]struct{} { return toSet(v.SourceWords) }

func (v Vocabulary) stopSet() map[string]struct{} {
	set := toSet(v.SourceWords)
	for _, w := range v.Fillers {
		set[w] = struct{}{}
	}
	return set
}

// stripSourceWords 对 LLM 输出做来源词剔除
func (v Vocabulary) stripSourceWords(text string) string {
	stop := v.sourceSet()
	var kept []string
	for _, w := range strings.Fields(strings.ToLower(text)) {
		if _, ok := stop[w]; !ok {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

// fallbackKeyword 找到触发词后取紧随其后的 1-2 个非停用词
func (v Vocabulary) fallbackKeyword(command string) string {
	known := append(append(append([]string{}, v.QueryTriggers...), v.SourceTriggers...), v.Fillers...)
	known = append(known, v.SourceWords...)
	tokens := segment(strings.ToLower(command), known)
	stop := v.stopSet()

	for _, triggers := range [][]string{v.QueryTriggers, v.SourceTriggers} {
		trig := toSet(triggers)
		for i, tok := range tokens {
			if _, ok := trig[tok]; !ok {
				continue
			}
			var picked []string
			for _, next := range tokens[i+1:] {
				if _, skip := stop[next]; skip || isNumber(next) {
					continue
				}
				if _, isTrig := trig[next]; isTrig {
					continue
				}
				picked = append(picked, next)
				if len(picked) == 2 {
					break
				}
			}
			if len(picked) > 0 {
				return strings.Join(picked, " ")
			}
		}
	}
	return ""
}

// fallbackTopic 保留比较指令中非脚手架的英文词
func (v Vocabulary) fallbackTopic(command string) string {
	scaffold := toSet(v.TopicScaffold)
	var kept []string
	for _, w := range latinWordRe.FindAllString(strings.ToLower(command), -1) {
		w = strings.TrimRight(w, ".")
		if _, ok := scaffold[w]; ok || w == "" {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

func fallbackIndices(command string) []int {
	var out []int
	for _, m := range ordinalRe.FindAllStringSubmatch(command, -1) {
		for _, g := range m[1:] {
			if g == "" {
				continue
			}
			if n, ok := parseNumber(g); ok && n > 0 {
				out = append(out, n)
			}
			break
		}
	}
	if len(out) > 0 {
		return out
	}
	for _, s := range bareNumberRe.FindAllString(command, -1) {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			out = append(out, n)
		}
	}
	return out
}

func parseNumber(s string) (int, bool) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	return parseChineseNumeral(s)
}

var chineseDigits = map[rune]int{
	'零': 0, '〇': 0, '一': 1, '二': 2, '兩': 2, '两': 2, '三': 3, '四': 4,
	'五': 5, '六': 6, '七': 7, '八': 8, '九': 9,
}

// parseChineseNumeral 支持到百位：十二、二十三、一百零五
func parseChineseNumeral(s string) (int, bool) {
	total, current := 0, 0
	for _, r := range s {
		switch r {
		case '十':
			if current == 0 {
				current = 1
			}
			total += current * 10
			current = 0
		case '百':
			if current == 0 {
				current = 1
			}
			total += current * 100
			current = 0
		default:
			d, ok := chineseDigits[r]
			if !ok {
				return 0, false
			}
			current = current*10 + d
		}
	}
	return total + current, s != ""
}

// segment 在已知中文词两侧补空格，再在中英文边界和标点处切分
func segment(text string, known []string) []string {
	var han []string
	for _, w := range known {
		if w != "" && hasHan(w) {
			han = append(han, regexp.QuoteMeta(w))
		}
	}
	if len(han) > 0 {
		// 长词优先，保证 "查詢" 不会被拆成 "查" + "詢"
		sort.SliceStable(han, func(i, j int) bool {
			return utf8.RuneCountInString(han[i]) > utf8.RuneCountInString(han[j])
		})
		re := regexp.MustCompile(strings.Join(han, "|"))
		text = re.ReplaceAllString(text, " $0 ")
	}

	var tokens []string
	for _, field := range strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || (unicode.IsPunct(r) && r != '-' && r != '+' && r != '.')
	}) {
		tokens = append(tokens, splitScripts(strings.Trim(field, "."))...)
	}
	return tokens
}

// splitScripts 在汉字与非汉字的边界处切开
func splitScripts(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	var cur []rune
	prevHan := false
	for i, r := range s {
		han := unicode.Is(unicode.Han, r)
		if i > 0 && han != prevHan && len(cur) > 0 {
			out = append(out, string(cur))
			cur = cur[:0]
		}
		cur = append(cur, r)
		prevHan = han
	}
	if len(cur) > 0 {
		out = append(out, string(cur))
	}
	return out
}

func hasHan(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

func isNumber(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[strings.ToLower(w)] = struct{}{}
	}
	return set
}
