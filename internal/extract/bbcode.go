package extract

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// headingSizes 标题层级到BBCode字号的映射
var headingSizes = map[string]string{
	"h1": "6", "h2": "5", "h3": "4", "h4": "3", "h5": "2", "h6": "1",
}

// excessiveNewlines 连续三个以上的换行
var excessiveNewlines = regexp.MustCompile(`\n{3,}`)

// CleanBBCode 折叠多余空行并去除首尾空白
func CleanBBCode(text string) string {
	text = excessiveNewlines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// HTMLToBBCode 递归遍历HTML节点树并生成BBCode文本
// 覆盖常见的格式标签,未识别的标签退化为其内部文本
func HTMLToBBCode(n *html.Node) string {
	if n == nil {
		return ""
	}
	if n.Type == html.TextNode {
		return n.Data
	}
	if n.Type != html.ElementNode && n.Type != html.DocumentNode {
		return ""
	}

	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(HTMLToBBCode(c))
	}
	inner := sb.String()

	if n.Type == html.DocumentNode {
		return inner
	}

	switch strings.ToLower(n.Data) {
	case "b", "strong":
		return "[B]" + inner + "[/B]"
	case "i", "em":
		return "[I]" + inner + "[/I]"
	case "u":
		return "[U]" + inner + "[/U]"
	case "s", "strike", "del":
		return "[S]" + inner + "[/S]"
	case "a":
		if href := attrValue(n, "href"); href != "" {
			return fmt.Sprintf("[URL=%s]%s[/URL]", href, inner)
		}
		return inner
	case "img":
		src := attrValue(n, "src")
		if strings.HasPrefix(src, "data:") {
			return "[IMG]<embedded>[/IMG]"
		}
		return "[IMG]" + src + "[/IMG]"
	case "blockquote":
		return "[QUOTE]" + inner + "[/QUOTE]"
	case "code", "pre":
		return "[CODE]" + inner + "[/CODE]"
	case "h1", "h2", "h3", "h4", "h5", "h6":
		size := headingSizes[strings.ToLower(n.Data)]
		return fmt.Sprintf("[SIZE=%s][B]%s[/B][/SIZE]\n", size, inner)
	case "br":
		return "\n"
	case "p":
		return strings.TrimSpace(inner) + "\n\n"
	case "ul", "ol":
		return "[LIST]\n" + inner + "[/LIST]\n"
	case "li":
		return "[*]" + strings.TrimSpace(inner) + "\n"
	case "div", "span", "section", "article":
		return inner
	case "script", "style", "head", "meta", "link", "noscript":
		// 非内容标签整体丢弃
		return ""
	default:
		return inner
	}
}

// attrValue 读取节点属性值,不存在返回空串
func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
