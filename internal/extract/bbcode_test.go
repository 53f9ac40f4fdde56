package extract

import (
	"strings"
	"testing"

	"golang.org/x/net/html"
)

// toBBCode 解析HTML片段并转换为BBCode
func toBBCode(t *testing.T, fragment string) string {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		t.Fatalf("解析HTML失败: %v", err)
	}
	return CleanBBCode(HTMLToBBCode(doc))
}

func TestHTMLToBBCode(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "加粗",
			html: "<b>粗体</b>",
			want: "[B]粗体[/B]",
		},
		{
			name: "strong同样加粗",
			html: "<strong>强调</strong>",
			want: "[B]强调[/B]",
		},
		{
			name: "斜体",
			html: "<i>斜体</i>与<em>强调</em>",
			want: "[I]斜体[/I]与[I]强调[/I]",
		},
		{
			name: "下划线和删除线",
			html: "<u>下划线</u><s>删除</s><del>也删除</del>",
			want: "[U]下划线[/U][S]删除[/S][S]也删除[/S]",
		},
		{
			name: "链接",
			html: `<a href="https://e.com/x">某链接</a>`,
			want: "[URL=https://e.com/x]某链接[/URL]",
		},
		{
			name: "无href的链接",
			html: "<a>裸文本</a>",
			want: "裸文本",
		},
		{
			name: "外链图片",
			html: `<img src="https://e.com/p.jpg">`,
			want: "[IMG]https://e.com/p.jpg[/IMG]",
		},
		{
			name: "内嵌图片",
			html: `<img src="data:image/png;base64,AAAA">`,
			want: "[IMG]<embedded>[/IMG]",
		},
		{
			name: "引用",
			html: "<blockquote>被引用的话</blockquote>",
			want: "[QUOTE]被引用的话[/QUOTE]",
		},
		{
			name: "代码块",
			html: "<code>x := 1</code>",
			want: "[CODE]x := 1[/CODE]",
		},
		{
			name: "标题",
			html: "<h1>大标题</h1>",
			want: "[SIZE=6][B]大标题[/B][/SIZE]",
		},
		{
			name: "最小标题",
			html: "<h6>小标题</h6>",
			want: "[SIZE=1][B]小标题[/B][/SIZE]",
		},
		{
			name: "列表",
			html: "<ul><li>甲</li><li>乙</li></ul>",
			want: "[LIST]\n[*]甲\n[*]乙\n[/LIST]",
		},
		{
			name: "段落",
			html: "<p>第一段</p><p>第二段</p>",
			want: "第一段\n\n第二段",
		},
		{
			name: "嵌套格式",
			html: "<b><i>又粗又斜</i></b>",
			want: "[B][I]又粗又斜[/I][/B]",
		},
		{
			name: "div只保留内部",
			html: "<div><span>内容</span></div>",
			want: "内容",
		},
		{
			name: "脚本被丢弃",
			html: "<div>正文<script>alert(1)</script></div>",
			want: "正文",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := toBBCode(t, tt.html); got != tt.want {
				t.Errorf("转换结果 = %q, 期望 %q", got, tt.want)
			}
		})
	}
}

func TestCleanBBCode(t *testing.T) {
	got := CleanBBCode("\n\n一\n\n\n\n二\n\n\n三\n\n")
	want := "一\n\n二\n\n三"
	if got != want {
		t.Errorf("CleanBBCode = %q, 期望 %q", got, want)
	}
}
