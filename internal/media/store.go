package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"github.com/RecoveryAshes/forumarcane/internal/fetch"
	"github.com/RecoveryAshes/forumarcane/internal/models"
	"github.com/RecoveryAshes/forumarcane/internal/utils"
)

// indexFilename 媒体索引文件名,位于媒体目录内
const indexFilename = "_media_index.json"

// maxMediaFilename 媒体文件名的最大长度
const maxMediaFilename = 120

// Store 媒体仓库
// 负责从页面中收集媒体URL、下载落盘,并维护URL到本地文件的索引
// 索引保证同一URL跨页面、跨运行只下载一次
type Store struct {
	mediaDir string
	fetcher  *fetch.Fetcher

	mu    sync.Mutex
	index map[string]string // 原始URL -> 媒体目录内的文件名
}

// NewStore 创建媒体仓库并加载既有索引
// 索引文件缺失或损坏时从空索引开始,不影响归档
func NewStore(archiveDir string, fetcher *fetch.Fetcher) (*Store, error) {
	mediaDir := filepath.Join(archiveDir, "media")
	if err := os.MkdirAll(mediaDir, 0755); err != nil {
		return nil, fmt.Errorf("创建媒体目录失败: %w", err)
	}

	s := &Store{
		mediaDir: mediaDir,
		fetcher:  fetcher,
		index:    make(map[string]string),
	}
	s.loadIndex()
	return s, nil
}

// loadIndex 宽容加载索引文件
func (s *Store) loadIndex() {
	data, err := os.ReadFile(filepath.Join(s.mediaDir, indexFilename))
	if err != nil {
		return
	}
	var index map[string]string
	if err := json.Unmarshal(data, &index); err != nil {
		utils.Warnf("媒体索引损坏,从空索引开始: %v", err)
		return
	}
	s.index = index
	utils.Debugf("加载媒体索引: %d 条记录", len(index))
}

// SaveIndex 写回索引文件
// 尽力而为: 索引写入失败只降低后续去重效率,不丢失已下载的文件
func (s *Store) SaveIndex() {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(s.index, "", "  ")
	if err != nil {
		utils.Warnf("媒体索引序列化失败: %v", err)
		return
	}
	if err := os.WriteFile(filepath.Join(s.mediaDir, indexFilename), data, 0644); err != nil {
		utils.Warnf("媒体索引写入失败: %v", err)
	}
}

// LocalPath 查询URL对应的本地文件名
func (s *Store) LocalPath(rawURL string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name, ok := s.index[rawURL]
	return name, ok
}

// Count 索引中的媒体数量
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.index)
}

// CollectMediaURLs 从HTML中收集候选媒体URL
// 覆盖五类来源: 图片src、音视频src、source子节点、指向媒体文件的链接、懒加载data-src
// 相对URL基于页面URL解析为绝对URL,仅保留http(s)且扩展名已知的条目
func CollectMediaURLs(htmlContent, pageURL string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		utils.Warnf("解析页面失败,跳过媒体收集: %v", err)
		return nil
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		base = nil
	}

	seen := make(map[string]bool)
	candidates := make([]string, 0)

	add := func(raw string) {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return
		}
		resolved := resolveURL(base, raw)
		if resolved == "" || seen[resolved] {
			return
		}
		if !strings.HasPrefix(resolved, "http://") && !strings.HasPrefix(resolved, "https://") {
			return
		}
		if !models.IsMediaExt(models.ExtOf(resolved)) {
			return
		}
		seen[resolved] = true
		candidates = append(candidates, resolved)
	}

	doc.Find("img[src]").Each(func(_ int, sel *goquery.Selection) {
		src, _ := sel.Attr("src")
		add(src)
	})
	doc.Find("video[src], audio[src]").Each(func(_ int, sel *goquery.Selection) {
		src, _ := sel.Attr("src")
		add(src)
	})
	doc.Find("source[src]").Each(func(_ int, sel *goquery.Selection) {
		src, _ := sel.Attr("src")
		add(src)
	})
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		add(href)
	})
	doc.Find("[data-src]").Each(func(_ int, sel *goquery.Selection) {
		src, _ := sel.Attr("data-src")
		add(src)
	})

	return candidates
}

// resolveURL 将可能的相对URL解析为绝对URL
func resolveURL(base *url.URL, raw string) string {
	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if base != nil {
		return base.ResolveReference(ref).String()
	}
	return ref.String()
}

// HarvestPage 收集并下载页面中的所有媒体
// 已在索引中的URL直接跳过,返回本次新下载的数量
// 单个媒体下载失败仅记录警告,不中断整页收集
func (s *Store) HarvestPage(ctx context.Context, htmlContent, pageURL string) (int, error) {
	urls := CollectMediaURLs(htmlContent, pageURL)
	if len(urls) == 0 {
		return 0, nil
	}

	downloaded := 0
	for _, mediaURL := range urls {
		select {
		case <-ctx.Done():
			return downloaded, ctx.Err()
		default:
		}

		if _, ok := s.LocalPath(mediaURL); ok {
			continue
		}

		if err := s.download(ctx, mediaURL); err != nil {
			if ctx.Err() != nil {
				return downloaded, ctx.Err()
			}
			utils.Warnf("媒体下载失败: %s - %v", mediaURL, err)
			continue
		}
		downloaded++
	}

	if downloaded > 0 {
		s.SaveIndex()
	}
	return downloaded, nil
}

// download 下载单个媒体文件并登记索引
func (s *Store) download(ctx context.Context, mediaURL string) error {
	data, err := s.fetcher.FetchBytes(ctx, mediaURL)
	if err != nil {
		return err
	}

	name := s.reserveFilename(mediaURL)
	if err := os.WriteFile(filepath.Join(s.mediaDir, name), data, 0644); err != nil {
		return fmt.Errorf("媒体落盘失败: %w", err)
	}

	s.mu.Lock()
	s.index[mediaURL] = name
	s.mu.Unlock()

	utils.Debugf("媒体已保存: %s -> %s", mediaURL, name)
	return nil
}

// reserveFilename 为URL生成不冲突的本地文件名
// 同名不同源的文件追加 _1, _2 等后缀
func (s *Store) reserveFilename(mediaURL string) string {
	base := filenameFromURL(mediaURL)

	s.mu.Lock()
	defer s.mu.Unlock()

	name := base
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	for i := 1; s.nameTaken(name); i++ {
		name = fmt.Sprintf("%s_%d%s", stem, i, ext)
	}
	return name
}

// nameTaken 检查文件名是否已被索引占用或已存在于磁盘
func (s *Store) nameTaken(name string) bool {
	for _, existing := range s.index {
		if existing == name {
			return true
		}
	}
	_, err := os.Stat(filepath.Join(s.mediaDir, name))
	return err == nil
}

// filenameFromURL 从URL路径推导安全文件名
func filenameFromURL(mediaURL string) string {
	parsed, err := url.Parse(mediaURL)
	if err != nil || path.Base(parsed.Path) == "/" || path.Base(parsed.Path) == "." {
		return "media_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
	}
	return models.SafeFilename(path.Base(parsed.Path), maxMediaFilename)
}

// InlineFile 读取媒体目录中的文件并编码为base64 data URI
// 用于将归档页面渲染成完全自包含的单文件HTML
func (s *Store) InlineFile(name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.mediaDir, name))
	if err != nil {
		return "", fmt.Errorf("读取媒体文件失败: %w", err)
	}
	mimeType := SniffMIME(name, data)
	encoded := base64.StdEncoding.EncodeToString(data)
	return fmt.Sprintf("data:%s;base64,%s", mimeType, encoded), nil
}

// 常见媒体文件的字节签名
var byteSignatures = []struct {
	prefix []byte
	mime   string
}{
	{[]byte{0xff, 0xd8, 0xff}, "image/jpeg"},
	{[]byte("\x89PNG"), "image/png"},
	{[]byte("GIF8"), "image/gif"},
	{[]byte("RIFF"), "video/webm"},
}

// SniffMIME 推断文件的MIME类型
// 优先按扩展名查表,失败时回退到字节签名识别
func SniffMIME(name string, data []byte) string {
	if mimeType := mime.TypeByExtension(strings.ToLower(path.Ext(name))); mimeType != "" {
		return mimeType
	}
	for _, sig := range byteSignatures {
		if bytes.HasPrefix(data, sig.prefix) {
			return sig.mime
		}
	}
	return "application/octet-stream"
}
