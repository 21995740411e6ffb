package forwarder

import (
	"regexp"
	"strings"
)

// urlPattern 通用 URL 扫描
// 与实体标注互补：裸链接没有实体时也能被识别。
var urlPattern = regexp.MustCompile(`(?i)(?:https?://|www\.|t\.me/)[^\s<>"',]+`)

var (
	newlineRuns    = regexp.MustCompile(`\n{3,}`)
	horizontalRuns = regexp.MustCompile(`[ \t]{2,}`)
)

// maxExtraLinks 展示用额外链接上限
const maxExtraLinks = 3

// ExtractLinks 合并实体标注 URL 和正文扫描 URL
// 去重并保持首见顺序；返回值第一项为展示用链接（截断到 3 条），
// 第二项为正文中实际出现、需要从正文剔除的 URL 子串。
func ExtractLinks(body string, entityURLs []string) (display []string, inBody []string) {
	seen := make(map[string]struct{})

	add := func(url string) {
		url = strings.TrimRight(url, ".,;:!?)")
		if url == "" {
			return
		}
		if _, ok := seen[url]; ok {
			return
		}
		seen[url] = struct{}{}
		display = append(display, url)
	}

	for _, url := range entityURLs {
		add(url)
	}

	scanned := urlPattern.FindAllString(body, -1)
	for _, url := range scanned {
		add(url)
	}
	inBody = scanned

	if len(display) > maxExtraLinks {
		display = display[:maxExtraLinks]
	}
	return display, inBody
}

// CleanBody 清理正文：剔除 URL 子串、压缩空白、修剪首尾
// 连续 3+ 个换行压成 2 个，连续 2+ 个水平空白压成 1 个。
func CleanBody(body string, urls []string) string {
	for _, url := range urls {
		body = strings.ReplaceAll(body, url, "")
	}

	body = newlineRuns.ReplaceAllString(body, "\n\n")
	body = horizontalRuns.ReplaceAllString(body, " ")
	return strings.TrimSpace(body)
}

// MatchKeyword 大小写不敏感的子串匹配
// 按快照顺序遍历，第一个命中的关键词胜出（确定性平局规则）。
func MatchKeyword(body string, keywords []string) (string, bool) {
	lower := strings.ToLower(body)
	for _, keyword := range keywords {
		if keyword == "" {
			continue
		}
		if strings.Contains(lower, keyword) {
			return keyword, true
		}
	}
	return "", false
}
