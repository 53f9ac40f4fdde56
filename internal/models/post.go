package models

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// MediaType 媒体类型
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
	MediaAudio MediaType = "audio"
	MediaFile  MediaType = "file"
)

// MediaSource 媒体来源: 内嵌base64或外部URL
type MediaSource string

const (
	SourceBase64 MediaSource = "base64"
	SourceURL    MediaSource = "url"
)

// MediaRef 帖子中的一条媒体引用
type MediaRef struct {
	Type      MediaType   `json:"type"`
	Source    MediaSource `json:"source"`
	MIME      string      `json:"mime,omitempty"`       // 内嵌媒体的MIME类型
	LocalPath string      `json:"local_path,omitempty"` // 还原后的本地相对路径
	URL       string      `json:"url,omitempty"`        // 外链媒体的原始URL
}

// Reference 返回引用的展示形式: 本地路径优先,其次URL
func (r MediaRef) Reference() string {
	if r.LocalPath != "" {
		return r.LocalPath
	}
	return r.URL
}

// Post 提取出的一条帖子
type Post struct {
	Index      int        `json:"index"`
	Author     string     `json:"author"`
	Date       string     `json:"date"`   // 原始日期文本
	ParsedDate *time.Time `json:"-"`      // 尽力解析的时间戳,失败为nil
	Body       string     `json:"bbcode"` // BBCode或纯文本正文
	Media      []MediaRef `json:"media"`
	IsOriginal bool       `json:"is_original"` // 是否为主楼
}

// SortPostsByDate 按解析时间升序稳定排序
// 无法解析时间戳的帖子排在最后,相同时间保持原始顺序
func SortPostsByDate(posts []Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		pi, pj := posts[i].ParsedDate, posts[j].ParsedDate
		if pi == nil {
			return false
		}
		if pj == nil {
			return true
		}
		return pi.Before(*pj)
	})
}

// ThreadDump 一份源文档提取出的主题记录
type ThreadDump struct {
	Title      string `json:"thread_title"`
	SourceFile string `json:"source_file"`
	PostCount  int    `json:"post_count"`
	Posts      []Post `json:"posts"`
}

// PostRow 适合表格导出的扁平行,每帖一行
type PostRow struct {
	ThreadTitle string
	Author      string
	Date        string
	Body        string // 截断到maxRowBody
	MediaRefs   string // 媒体引用,以" | "连接
}

// maxRowBody 表格导出中正文的最大长度
const maxRowBody = 2000

// NewPostRow 从帖子生成扁平行
func NewPostRow(threadTitle string, p Post) PostRow {
	refs := make([]string, 0, len(p.Media))
	for _, m := range p.Media {
		refs = append(refs, m.Reference())
	}
	body := p.Body
	if len(body) > maxRowBody {
		// 截断点退到rune边界,避免把多字节字符劈成非法UTF-8
		cut := maxRowBody
		for cut > 0 && !utf8.RuneStart(body[cut]) {
			cut--
		}
		body = body[:cut]
	}
	return PostRow{
		ThreadTitle: threadTitle,
		Author:      p.Author,
		Date:        p.Date,
		Body:        body,
		MediaRefs:   strings.Join(refs, " | "),
	}
}
