package utils

import (
	"strings"
)

const codeFence = "```"

// SanitizeMarkdown 去掉模型包在 README 外层的 ```markdown 代码块标记
func SanitizeMarkdown(content string) string {
	return StripFences(content, "markdown", "md")
}

// StripFences 去掉包裹整段内容的代码块标记
// 开头的 ``` 后必须是 tags 之一（忽略大小写）或空语言标记；
// 空语言标记只有在内容以 ``` 结尾时才算外层代码块。
// 只有开头被去掉时才去掉结尾的 ```。重复执行直到不再变化，因此结果幂等。
func StripFences(content string, tags ...string) string {
	out := strings.TrimSpace(content)
	for {
		next := stripFenceOnce(out, tags)
		if next == out {
			return out
		}
		out = next
	}
}

func stripFenceOnce(content string, tags []string) string {
	body, tagged, ok := cutOpeningFence(content, tags)
	if !ok {
		return content
	}
	body = strings.TrimSpace(body)
	if !tagged && !strings.HasSuffix(body, codeFence) {
		return content
	}
	body = strings.TrimSuffix(body, codeFence)
	return strings.TrimSpace(body)
}

// cutOpeningFence 返回去掉开头标记后的内容，tagged 表示带有匹配的语言标记
func cutOpeningFence(content string, tags []string) (body string, tagged bool, ok bool) {
	if !strings.HasPrefix(content, codeFence) {
		return content, false, false
	}
	line, body, _ := strings.Cut(content[len(codeFence):], "\n")
	lang := strings.TrimSpace(line)
	if lang == "" {
		return body, false, true
	}
	for _, tag := range tags {
		if strings.EqualFold(lang, tag) {
			return body, true, true
		}
	}
	return content, false, false
}
