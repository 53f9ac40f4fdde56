package export

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/RecoveryAshes/forumarcane/internal/media"
	"github.com/RecoveryAshes/forumarcane/internal/models"
	"github.com/RecoveryAshes/forumarcane/internal/utils"
)

// archiveCSS 归档页面的内联样式
// 类名是归档格式的一部分,解析端按这些类名识别结构,不可改动
const archiveCSS = `
:root { --bg:#0d0b14; --gold:#c9a84c; --purp:#7b4fa6; --text:#e8dfc8; --dim:#8a7f9a; --border:#2e1f55; }
* { box-sizing:border-box; margin:0; padding:0; }
body { background:var(--bg); color:var(--text); font-family:Georgia,serif; line-height:1.6; }
.container { max-width:960px; margin:0 auto; padding:24px; }
#site-header { text-align:center; padding:32px 16px; border-bottom:1px solid var(--border); }
.site-title { color:var(--gold); letter-spacing:3px; }
.site-sub { color:var(--dim); font-size:13px; margin-top:8px; }
#toc { border:1px solid var(--border); border-radius:8px; padding:20px; margin:24px 0; }
#toc h2 { color:var(--gold); font-size:16px; margin-bottom:12px; }
.toc-list { list-style:none; columns:2; column-gap:32px; }
.toc-list li { margin-bottom:8px; break-inside:avoid; }
.toc-list a { color:var(--text); text-decoration:none; font-size:14px; }
.toc-list a:hover { color:var(--gold); }
.thread-block { border:1px solid var(--border); border-radius:8px; margin:24px 0; padding:20px; }
.thread-header { display:flex; align-items:center; gap:10px; border-bottom:1px solid var(--border); padding-bottom:12px; }
.thread-title { color:var(--gold); font-size:18px; font-weight:bold; }
.thread-count { color:var(--dim); font-size:12px; margin-left:auto; }
.post { border:1px solid var(--border); border-radius:6px; margin:16px 0; padding:14px; }
.post.original { border-color:var(--gold); }
.post-meta { display:flex; gap:12px; align-items:center; font-size:13px; margin-bottom:8px; }
.post-badge { font-size:10px; padding:2px 8px; border-radius:10px; border:1px solid var(--border); }
.badge-original { color:var(--gold); }
.badge-reply { color:var(--dim); }
.post-author { color:var(--purp); font-weight:bold; }
.post-author::before { content:'⟁ '; }
.post-date { color:var(--dim); }
.post-date::before { content:'· '; }
.post-body { white-space:pre-wrap; font-size:14px; }
.post-media { margin-top:12px; display:flex; flex-wrap:wrap; gap:10px; }
.post-media img { max-width:260px; max-height:200px; border-radius:4px; }
.post-media video, .post-media audio { max-width:320px; }
.media-link { color:var(--gold); font-size:13px; }
footer { text-align:center; color:var(--dim); font-size:12px; padding:24px; border-top:1px solid var(--border); }
`

// bodyEscaper 转义正文中的HTML特殊字符,保留换行
var bodyEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// HTMLOptions 归档HTML渲染选项
type HTMLOptions struct {
	ForumURL    string       // 可选: 来源论坛地址,展示在页头
	EmbedBase64 bool         // 把已下载的媒体内联为base64,生成完全自包含的单文件
	Store       *media.Store // 可选: 媒体仓库,用于解析本地路径和内联
}

// RenderArchive 把还原出的主题渲染成带目录的单页归档HTML
func RenderArchive(threads []models.ThreadDump, opts HTMLOptions) string {
	generatedAt := time.Now().Format("January 2, 2006 at 15:04")

	var toc strings.Builder
	for idx, thread := range threads {
		fmt.Fprintf(&toc, "<li><a href=\"#thread-%d\">%s</a></li>\n", idx, bodyEscaper.Replace(thread.Title))
	}

	var blocks strings.Builder
	for idx, thread := range threads {
		var postsHTML strings.Builder
		for pi, post := range thread.Posts {
			isOP := post.IsOriginal || pi == 0
			cls, badge := "post reply", `<span class="post-badge badge-reply">Reply</span>`
			if isOP {
				cls, badge = "post original", `<span class="post-badge badge-original">Original Post</span>`
			}

			mediaHTML := ""
			if len(post.Media) > 0 {
				tags := make([]string, 0, len(post.Media))
				for _, ref := range post.Media {
					tags = append(tags, renderMediaTag(ref, opts))
				}
				mediaHTML = `<div class="post-media">` + strings.Join(tags, "\n") + `</div>`
			}

			fmt.Fprintf(&postsHTML, `
<div class="%s">
  <div class="post-meta">
    %s
    <span class="post-author">%s</span>
    <span class="post-date">%s</span>
  </div>
  <div class="post-body">%s</div>
  %s
</div>`, cls, badge, bodyEscaper.Replace(post.Author), bodyEscaper.Replace(post.Date),
				bodyEscaper.Replace(post.Body), mediaHTML)
		}

		plural := "s"
		if len(thread.Posts) == 1 {
			plural = ""
		}
		fmt.Fprintf(&blocks, `
<div class="thread-block" id="thread-%d">
  <div class="thread-header">
    <span class="thread-sigil">ᛟ</span>
    <div class="thread-title">%s</div>
    <span class="thread-count">%d post%s</span>
  </div>
  %s
</div>`, idx, bodyEscaper.Replace(thread.Title), len(thread.Posts), plural, postsHTML.String())
	}

	forumLine := ""
	if opts.ForumURL != "" {
		forumLine = fmt.Sprintf(`<br><span style="color:#3ecfcf;font-size:12px">%s</span>`, opts.ForumURL)
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>✦ Arcane Forum Archive ✦</title>
<style>%s</style>
</head>
<body>

<header id="site-header">
  <div class="header-sigil">ᚠ ᛟ ᚱ ᚢ ᛗ</div>
  <h1 class="site-title">✦ ARCANE FORUM ARCHIVE ✦</h1>
  <div class="site-sub">Mystical preservation of digital knowledge &nbsp;·&nbsp; %s%s</div>
</header>

<div class="container">

  <nav id="toc">
    <h2>Thread Index — %d scrolls</h2>
    <ul class="toc-list">
%s    </ul>
  </nav>

%s

</div>

<footer>
  ✦ &nbsp; Generated by <span>Arcane Forum Archiver</span> &nbsp;·&nbsp; %s &nbsp; ✦
</footer>
</body>
</html>`, archiveCSS, generatedAt, forumLine, len(threads), toc.String(), blocks.String(), generatedAt)
}

// renderMediaTag 为一条媒体引用生成HTML片段
// 来源优先级: base64内联 > 本地media目录 > 原始URL
func renderMediaTag(ref models.MediaRef, opts HTMLOptions) string {
	src := ref.Reference()

	if opts.Store != nil && ref.URL != "" {
		if name, ok := opts.Store.LocalPath(ref.URL); ok {
			if opts.EmbedBase64 {
				if uri, err := opts.Store.InlineFile(name); err == nil {
					src = uri
				} else {
					src = "media/" + name
				}
			} else {
				src = "media/" + name
			}
		}
	}

	switch ref.Type {
	case models.MediaImage:
		return fmt.Sprintf(`<img src="%s" alt="image" loading="lazy">`, src)
	case models.MediaVideo:
		return fmt.Sprintf(`<video src="%s" controls preload="metadata"></video>`, src)
	case models.MediaAudio:
		return fmt.Sprintf(`<audio src="%s" controls></audio>`, src)
	default:
		name := "file"
		if parsed, err := url.Parse(ref.URL); err == nil && path.Base(parsed.Path) != "/" && path.Base(parsed.Path) != "." {
			name = path.Base(parsed.Path)
		}
		return fmt.Sprintf(`<a class="media-link" href="%s" download="%s">⬇ %s</a>`, src, name, name)
	}
}

// WriteHTML 渲染归档HTML并落盘
func WriteHTML(threads []models.ThreadDump, outPath string, opts HTMLOptions) error {
	utils.Info("🎨 渲染归档HTML...")
	content := RenderArchive(threads, opts)
	if err := os.WriteFile(outPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("HTML写入失败: %w", err)
	}
	utils.Infof("✅ 归档HTML已生成: %s (%.1f MB, %d 个主题)", outPath, float64(len(content))/1024/1024, len(threads))
	return nil
}
