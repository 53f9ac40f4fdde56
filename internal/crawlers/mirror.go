package crawlers

import (
	"context"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/RecoveryAshes/forumarcane/internal/fetch"
	"github.com/RecoveryAshes/forumarcane/internal/models"
	"github.com/RecoveryAshes/forumarcane/internal/utils"
)

// popTimeout 工作协程单次等待队列的超时
const popTimeout = 2 * time.Second

// idlePollInterval 主循环检查队列是否排空的间隔
const idlePollInterval = 400 * time.Millisecond

// joinTimeout 关停时等待工作协程退出的上限
const joinTimeout = 6 * time.Second

// sentinel 关停信号,每个工作协程消费一个后退出
// 正常URL经过normalize后不可能为空串
const sentinel = ""

// skipPrefixes 不参与镜像的链接形态
var skipPrefixes = []string{"mailto:", "tel:", "javascript:", "#", "data:"}

// MirrorCrawler 整站镜像爬虫
// 职责: 从入口URL出发抓取同域的全部页面和资源,
// 把内部链接改写为相对本地路径,使镜像可以离线浏览
type MirrorCrawler struct {
	baseURL    string
	baseDomain string
	outputDir  string
	cfg        models.MirrorConfig

	fetcher *fetch.Fetcher
	queue   *mirrorQueue

	visitedMu sync.Mutex
	visited   map[string]bool

	countMu    sync.Mutex
	downloaded int
}

// NewMirrorCrawler 创建镜像爬虫
func NewMirrorCrawler(baseURL, outputDir string, cfg models.MirrorConfig) (*MirrorCrawler, error) {
	if err := models.ValidateURL(baseURL); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}

	return &MirrorCrawler{
		baseURL:    strings.TrimRight(baseURL, "/"),
		baseDomain: parsed.Host,
		outputDir:  outputDir,
		cfg:        cfg,
		fetcher:    fetch.NewFetcher(cfg.DelayDuration()),
		queue:      newMirrorQueue(),
		visited:    make(map[string]bool),
	}, nil
}

// normalizeURL 去掉fragment和末尾斜杠,保证同一页面只有一种写法
func normalizeURL(rawURL string) string {
	if i := strings.IndexByte(rawURL, '#'); i >= 0 {
		rawURL = rawURL[:i]
	}
	return strings.TrimRight(rawURL, "/")
}

// tryVisit 原子地检查并标记URL为已访问
// 出队时刻做检查,同一URL被多次入队也只会处理一次
func (c *MirrorCrawler) tryVisit(url string) bool {
	c.visitedMu.Lock()
	defer c.visitedMu.Unlock()
	if c.visited[url] {
		return false
	}
	c.visited[url] = true
	return true
}

// urlToPath 把URL映射到镜像目录内的本地文件路径
// 目录型路径和无扩展名路径落到index.html,动态页追加.html后缀
func (c *MirrorCrawler) urlToPath(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return filepath.Join(c.outputDir, "index.html")
	}

	p := parsed.Path
	if p == "" {
		p = "/"
	}
	switch {
	case strings.HasSuffix(p, "/"):
		p += "index.html"
	case !strings.Contains(path.Base(p), "."):
		// 无扩展名 → 按目录首页处理
		p = strings.TrimRight(p, "/") + "/index.html"
	case strings.HasSuffix(strings.ToLower(p), ".php"):
		p += ".html"
	}

	host := strings.ReplaceAll(parsed.Host, ":", "_")
	return filepath.Join(c.outputDir, host+p)
}

// save 落盘一个文件,按需创建父目录
// 保存失败只记录警告,不影响其他页面
func (c *MirrorCrawler) save(localPath string, content []byte) {
	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		utils.Warnf("创建目录失败 (%s): %v", filepath.Base(localPath), err)
		return
	}
	if err := os.WriteFile(localPath, content, 0644); err != nil {
		utils.Warnf("保存失败 (%s): %v", filepath.Base(localPath), err)
	}
}

// rewritePage 改写页面中的同域链接并把链接目标入队
// 返回改写后的HTML;解析失败时返回原始内容
func (c *MirrorCrawler) rewritePage(pageURL string, raw []byte) []byte {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(raw)))
	if err != nil {
		utils.Warnf("HTML解析失败: %v", err)
		return raw
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return raw
	}
	pageDir := filepath.Dir(c.urlToPath(pageURL))

	doc.Find("a, link, script, img, video, audio, source").Each(func(_ int, sel *goquery.Selection) {
		attr := "src"
		if goquery.NodeName(sel) == "a" || goquery.NodeName(sel) == "link" {
			attr = "href"
		}
		link, ok := sel.Attr(attr)
		if !ok || link == "" {
			return
		}
		for _, prefix := range skipPrefixes {
			if strings.HasPrefix(link, prefix) {
				return
			}
		}

		ref, err := url.Parse(link)
		if err != nil {
			return
		}
		absolute := normalizeURL(base.ResolveReference(ref).String())
		if parsed, err := url.Parse(absolute); err != nil || parsed.Host != c.baseDomain {
			return
		}

		childPath := c.urlToPath(absolute)
		if rel, err := filepath.Rel(pageDir, childPath); err == nil {
			sel.SetAttr(attr, filepath.ToSlash(rel))
		}
		c.queue.Push(absolute)
	})

	rewritten, err := doc.Html()
	if err != nil {
		return raw
	}
	return []byte(rewritten)
}

// worker 镜像工作协程
// 循环出队抓取,直到收到关停信号或context取消
func (c *MirrorCrawler) worker(ctx context.Context, progress models.CountFunc) {
	for {
		if ctx.Err() != nil {
			return
		}

		rawURL, ok := c.queue.Pop(ctx, popTimeout)
		if !ok {
			// 队列暂时为空: 其他工作协程可能还会产出新链接,继续等待
			continue
		}
		if rawURL == sentinel {
			c.queue.TaskDone()
			return
		}

		pageURL := normalizeURL(rawURL)
		if !c.tryVisit(pageURL) {
			c.queue.TaskDone()
			continue
		}

		res, err := c.fetcher.FetchResource(ctx, pageURL)
		if err != nil {
			// 非200响应和网络错误一律丢弃该URL
			utils.Warnf("抓取失败: %s (%v)", pageURL, err)
			c.queue.TaskDone()
			continue
		}

		localOut := c.urlToPath(pageURL)
		if strings.Contains(res.ContentType, "text/html") {
			c.save(localOut, c.rewritePage(pageURL, res.Body))
		} else {
			c.save(localOut, res.Body)
		}

		c.countMu.Lock()
		c.downloaded++
		n := c.downloaded
		c.countMu.Unlock()

		utils.Infof("  ✦ [%d] %s", n, pageURL)
		if progress != nil {
			progress(n)
		}

		c.queue.TaskDone()
	}
}

// Run 执行整站镜像
// 返回成功保存的文件数量;context取消时排空队列并限时等待工作协程退出
func (c *MirrorCrawler) Run(ctx context.Context, progress models.CountFunc) (int, error) {
	utils.Infof("🌐 开始镜像: %s", c.baseURL)
	utils.Infof("📁 输出目录: %s", c.outputDir)

	if err := os.MkdirAll(c.outputDir, 0755); err != nil {
		return 0, err
	}

	c.queue.Push(c.baseURL)

	var wg sync.WaitGroup
	for i := 0; i < c.cfg.MaxWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.worker(ctx, progress)
		}()
	}

	// 等待整站抓完或取消
	for ctx.Err() == nil && !c.queue.Idle() {
		time.Sleep(idlePollInterval)
	}

	if ctx.Err() != nil {
		utils.Warn("⏹ 收到停止请求,正在排空队列...")
		c.queue.Clear()
	}

	// 每个工作协程消费一个关停信号后退出
	for i := 0; i < c.cfg.MaxWorkers; i++ {
		c.queue.Push(sentinel)
	}

	// 限时等待,避免个别卡住的协程拖住整个进程
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(joinTimeout):
		utils.Warn("部分工作协程未在限时内退出")
	}

	c.countMu.Lock()
	n := c.downloaded
	c.countMu.Unlock()

	utils.Infof("🏆 镜像完成 — 共保存 %d 个文件: %s", n, c.outputDir)
	return n, ctx.Err()
}
