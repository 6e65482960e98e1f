package llm

import (
	"strings"
)

// StripCodeFence 去掉模型常见的 ```json ... ``` 包裹
func StripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}

// ExtractJSONObject 截取第一个 { 到最后一个 } 之间的内容
func ExtractJSONObject(content string) string {
	content = StripCodeFence(content)
	startIdx := strings.Index(content, "{")
	endIdx := strings.LastIndex(content, "}")
	if startIdx != -1 && endIdx > startIdx {
		return content[startIdx : endIdx+1]
	}
	return content
}
