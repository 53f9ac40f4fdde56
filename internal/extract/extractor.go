package extract

import (
	"encoding/base64"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/RecoveryAshes/forumarcane/internal/models"
	"github.com/RecoveryAshes/forumarcane/internal/utils"
)

// RecoveredDirName 从base64内嵌媒体还原出的文件的存放目录,位于源文件旁边
const RecoveredDirName = "recovered_media"

// Result 一份HTML文档的提取结果
type Result struct {
	Threads    []models.ThreadDump
	Rows       []models.PostRow
	TotalPosts int
}

// ParseHTMLFile 解析单份HTML存档
// 自动识别两种结构:
//  1. 归档格式 — .thread-block + .post 元素(本工具自己的输出)
//  2. 原始论坛格式 — div.message-userContent + div.bbWrapper
func ParseHTMLFile(path string) (*Result, error) {
	recoveredDir := filepath.Join(filepath.Dir(path), RecoveredDirName)
	if err := os.MkdirAll(recoveredDir, 0755); err != nil {
		return nil, fmt.Errorf("创建还原媒体目录失败: %w", err)
	}

	utils.Infof("📖 解析存档: %s", filepath.Base(path))
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取文件失败: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("解析HTML失败: %w", err)
	}

	// 非内容节点直接摘除,避免样式脚本混入正文
	doc.Find("script, style, meta, noscript, link").Remove()

	sourceFile := filepath.Base(path)
	if doc.Find("div.thread-block").Length() > 0 {
		return parseArchiveFormat(doc, sourceFile, recoveredDir), nil
	}
	return parseRawFormat(doc, sourceFile, recoveredDir), nil
}

// parseArchiveFormat 解析本工具输出的归档格式
func parseArchiveFormat(doc *goquery.Document, sourceFile, recoveredDir string) *Result {
	result := &Result{}
	blocks := doc.Find("div.thread-block")
	utils.Infof("识别为归档格式 — %d 个主题块", blocks.Length())

	blocks.Each(func(tIdx int, block *goquery.Selection) {
		title := models.CleanText(block.Find(".thread-title").First().Text())
		if title == "" {
			title = fmt.Sprintf("Thread %d", tIdx+1)
		}

		posts := make([]models.Post, 0)
		block.Find("div.post").Each(func(pIdx int, postDiv *goquery.Selection) {
			author := models.CleanText(postDiv.Find(".post-author").First().Text())
			if author == "" {
				author = "Unknown Scribe"
			}
			author = strings.TrimSpace(strings.TrimPrefix(author, "⟁ "))

			date := models.CleanText(postDiv.Find(".post-date").First().Text())
			if date == "" {
				date = "Date unknown"
			}
			date = strings.TrimSpace(strings.TrimPrefix(date, "· "))

			var body string
			var media []models.MediaRef
			if bodyEl := postDiv.Find(".post-body").First(); bodyEl.Length() > 0 {
				media = collectPostMedia(postDiv.Find(".post-media").First(), recoveredDir)
				// 归档格式的正文是已转换好的纯文本
				body = CleanBBCode(bodyEl.Text())
			}

			posts = append(posts, models.Post{
				Index:      pIdx,
				Author:     author,
				Date:       date,
				ParsedDate: models.ParseForumDate(date),
				Body:       body,
				Media:      media,
				IsOriginal: postDiv.HasClass("original"),
			})
		})

		models.SortPostsByDate(posts)
		for _, p := range posts {
			result.Rows = append(result.Rows, models.NewPostRow(title, p))
		}
		if len(posts) > 0 {
			utils.Infof("  ✦ 主题 '%.55s' — %d 帖", title, len(posts))
		}
		result.Threads = append(result.Threads, models.ThreadDump{
			Title:      title,
			SourceFile: sourceFile,
			PostCount:  len(posts),
			Posts:      posts,
		})
		result.TotalPosts += len(posts)
	})

	return result
}

// parseRawFormat 解析原始论坛页面格式
func parseRawFormat(doc *goquery.Document, sourceFile, recoveredDir string) *Result {
	result := &Result{}
	utils.Info("识别为原始论坛格式")

	title := models.CleanText(doc.Find("title").First().Text())
	if title == "" {
		title = "Untitled Scroll"
	}

	blocks := doc.Find("div.message-userContent")
	utils.Infof("发现 %d 个帖子块", blocks.Length())

	posts := make([]models.Post, 0)
	blocks.Each(func(idx int, block *goquery.Selection) {
		author, date := "Unknown Scribe", "Date unknown"
		if desc, ok := block.Attr("data-lb-caption-desc"); ok && strings.Contains(desc, "·") {
			parts := strings.SplitN(desc, "·", 2)
			if len(parts) == 2 {
				author = models.CleanText(parts[0])
				date = models.CleanText(parts[1])
			}
		}

		var body string
		var media []models.MediaRef

		msg := block.Find("div.bbWrapper").First()
		if msg.Length() == 0 {
			// 部分模板把正文放在后续兄弟节点里
			msg = block.NextAllFiltered("div.bbWrapper").First()
		}
		if msg.Length() > 0 {
			media = collectPostMedia(msg, recoveredDir)

			// 指向媒体文件的普通链接也算一条引用
			msg.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
				href, _ := a.Attr("href")
				if strings.HasPrefix(href, "data:") {
					return
				}
				if models.IsMediaExt(models.ExtOf(href)) {
					media = append(media, models.MediaRef{
						Type:   models.MediaFile,
						Source: models.SourceURL,
						URL:    href,
					})
				}
			})

			if node := msg.Get(0); node != nil {
				body = CleanBBCode(HTMLToBBCode(node))
			} else {
				body = models.CleanText(msg.Text())
			}
		}

		posts = append(posts, models.Post{
			Index:      idx,
			Author:     author,
			Date:       date,
			ParsedDate: models.ParseForumDate(date),
			Body:       body,
			Media:      media,
			IsOriginal: idx == 0,
		})
	})

	models.SortPostsByDate(posts)
	for _, p := range posts {
		result.Rows = append(result.Rows, models.NewPostRow(title, p))
	}
	result.Threads = append(result.Threads, models.ThreadDump{
		Title:      title,
		SourceFile: sourceFile,
		PostCount:  len(posts),
		Posts:      posts,
	})
	result.TotalPosts = len(posts)
	utils.Infof("  ✦ 从 '%.55s' 提取 %d 帖", title, len(posts))

	return result
}

// collectPostMedia 收集一个容器内的图片和音视频引用
// data: URI落盘为还原文件,外链保留URL,同时把内嵌节点的src改写为本地路径
func collectPostMedia(container *goquery.Selection, recoveredDir string) []models.MediaRef {
	if container == nil || container.Length() == 0 {
		return nil
	}

	media := make([]models.MediaRef, 0)

	container.Find("img").Each(func(_ int, img *goquery.Selection) {
		src, _ := img.Attr("src")
		if strings.HasPrefix(src, "data:") {
			if rel, mimeType, err := materializeDataURI(src, recoveredDir); err == nil {
				media = append(media, models.MediaRef{
					Type: models.MediaImage, Source: models.SourceBase64,
					MIME: mimeType, LocalPath: rel,
				})
				img.SetAttr("src", rel)
			} else {
				utils.Warnf("base64图片解码失败: %v", err)
			}
		} else if src != "" {
			media = append(media, models.MediaRef{
				Type: models.MediaImage, Source: models.SourceURL, URL: src,
			})
		}
	})

	container.Find("video, source").Each(func(_ int, vid *goquery.Selection) {
		src, _ := vid.Attr("src")
		if strings.HasPrefix(src, "data:") {
			if rel, mimeType, err := materializeDataURI(src, recoveredDir); err == nil {
				media = append(media, models.MediaRef{
					Type: models.MediaVideo, Source: models.SourceBase64,
					MIME: mimeType, LocalPath: rel,
				})
				vid.SetAttr("src", rel)
			} else {
				utils.Warnf("base64视频解码失败: %v", err)
			}
		} else if src != "" {
			media = append(media, models.MediaRef{
				Type: models.MediaVideo, Source: models.SourceURL, URL: src,
			})
		}
	})

	return media
}

// mimeExtensions 内嵌媒体MIME类型到文件扩展名的映射
var mimeExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"video/mp4":  ".mp4",
	"video/webm": ".webm",
	"audio/mpeg": ".mp3",
	"audio/ogg":  ".ogg",
}

// hexChars 随机文件名使用的字符集
const hexChars = "0123456789abcdef"

// randomMediaName 生成形如 a3f9c2d0814b2f01234567.png 的随机文件名
func randomMediaName(ext string) string {
	var sb strings.Builder
	for i := 0; i < 14; i++ {
		sb.WriteByte(hexChars[rand.Intn(16)])
	}
	for i := 0; i < 8; i++ {
		sb.WriteByte(byte('0' + rand.Intn(10)))
	}
	return sb.String() + ext
}

// materializeDataURI 把data: URI解码落盘到还原目录
// 返回相对引用路径(recovered_media/<文件名>)和MIME类型
func materializeDataURI(src, recoveredDir string) (string, string, error) {
	payload, ok := strings.CutPrefix(src, "data:")
	if !ok {
		return "", "", fmt.Errorf("不是data URI")
	}
	header, b64data, ok := strings.Cut(payload, ",")
	if !ok {
		return "", "", fmt.Errorf("data URI缺少数据部分")
	}
	mimeType := strings.TrimSpace(strings.Split(header, ";")[0])

	ext, known := mimeExtensions[mimeType]
	if !known {
		ext = ".bin"
	}

	// 宽容解码: 忽略原始URI的填充状态
	decoded, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(b64data, "="))
	if err != nil {
		return "", "", fmt.Errorf("base64解码失败: %w", err)
	}

	name := randomMediaName(ext)
	if err := os.WriteFile(filepath.Join(recoveredDir, name), decoded, 0644); err != nil {
		return "", "", fmt.Errorf("还原媒体落盘失败: %w", err)
	}

	utils.Debugf("    ✦ 还原 %s → %s", mimeType, name)
	return filepath.Join(RecoveredDirName, name), mimeType, nil
}
