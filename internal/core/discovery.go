package core

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/RecoveryAshes/forumarcane/internal/fetch"
	"github.com/RecoveryAshes/forumarcane/internal/models"
	"github.com/RecoveryAshes/forumarcane/internal/utils"
)

// maxDiscoveryWorkers 列表页发现阶段的并发上限
const maxDiscoveryWorkers = 6

// listingPagePattern 列表页链接中的页码形态: ?page=N / &page=N / /page-N
var listingPagePattern = regexp.MustCompile(`(?:[?&]page=|/page-)(\d+)`)

// threadPagePattern 主题内分页链接中的页码形态,兼容 page=N / p=N / page-N
var threadPagePattern = regexp.MustCompile(`(?:[?&/](?:page|p)[=-]?)(\d+)`)

// threadPageSelectors 各类论坛引擎的分页容器选择器
var threadPageSelectors = []string{
	"div.pagenav a",
	"div.pagination a",
	"div.pageNav a",
	"div.pages a",
	"td.pagenav a",
	"table.pagenav a",
	"ul.pagenav a",
	"nav.pagination a",
	`a[href*="page="]`,
	`a[href*="&page="]`,
	`a[href*="/page-"]`,
}

// MaxListingPage 从列表页HTML中识别最大页码
// 页面上没有分页链接时返回1
func MaxListingPage(htmlContent string) int {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return 1
	}

	maxPage := 1
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if m := listingPagePattern.FindStringSubmatch(href); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > maxPage {
				maxPage = n
			}
		}
	})
	return maxPage
}

// ListingPageURLs 根据区段URL的形态合成全部列表页URL
// 返回 startPage..maxPage 范围内的页面,第一页就是区段URL本身
func ListingPageURLs(sectionURL string, maxPage, startPage int) []string {
	if startPage < 1 {
		startPage = 1
	}
	pages := make([]string, 0, maxPage)
	for n := startPage; n <= maxPage; n++ {
		if n == 1 {
			pages = append(pages, sectionURL)
			continue
		}
		pages = append(pages, synthesizePageURL(sectionURL, n))
	}
	return pages
}

// synthesizePageURL 按URL形态拼接页码
// 路径式(/page-N)替换原页码,查询式按已有参数选择 & 或 ?
func synthesizePageURL(base string, n int) string {
	if pagePathPattern.MatchString(base) {
		return pagePathPattern.ReplaceAllString(base, fmt.Sprintf("/page-%d", n))
	}
	if strings.Contains(base, "/threads/") {
		// XenForo路径式分页
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		return fmt.Sprintf("%spage-%d", base, n)
	}
	if strings.Contains(base, "?") {
		return fmt.Sprintf("%s&page=%d", base, n)
	}
	return fmt.Sprintf("%s?page=%d", base, n)
}

// pagePathPattern 路径式页码段
var pagePathPattern = regexp.MustCompile(`/page-\d+`)

// pageQueryPattern 查询式页码参数
var pageQueryPattern = regexp.MustCompile(`[?&]page=\d+`)

// StripPageParam 去掉URL中的页码,得到主题首页URL
func StripPageParam(rawURL string) string {
	stripped := pagePathPattern.ReplaceAllString(rawURL, "")
	stripped = pageQueryPattern.ReplaceAllString(stripped, "")
	// 删除的是"?page=N"时,后续参数的"&"需要升格为"?"
	if !strings.Contains(stripped, "?") && strings.Contains(stripped, "&") {
		stripped = strings.Replace(stripped, "&", "?", 1)
	}
	return stripped
}

// ExtractThreadLinks 从列表页HTML中提取主题链接
// 仅保留能识别出主题ID的链接,标题取链接文本
func ExtractThreadLinks(htmlContent, pageURL string) []models.ThreadLink {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		utils.Warnf("解析列表页失败: %v", err)
		return nil
	}

	base, _ := url.Parse(pageURL)
	links := make([]models.ThreadLink, 0)

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		absolute := href
		if base != nil {
			if ref, err := url.Parse(href); err == nil {
				absolute = base.ResolveReference(ref).String()
			}
		}

		id := models.ExtractThreadID(absolute)
		if id == "" {
			return
		}

		title := models.CleanText(sel.Text())
		if title == "" {
			title = "thread_" + id
		}

		links = append(links, models.ThreadLink{
			ID:    id,
			URL:   StripPageParam(absolute),
			Title: title,
		})
	})

	return links
}

// DiscoverThreadPages 识别主题的全部分页URL
// 返回第2页及之后的URL,第1页由调用方已持有
func DiscoverThreadPages(threadURL, htmlContent string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil
	}

	maxPage := 1
	for _, selector := range threadPageSelectors {
		doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
			href, _ := sel.Attr("href")
			if m := threadPagePattern.FindStringSubmatch(href); m != nil {
				if n, err := strconv.Atoi(m[1]); err == nil && n > maxPage {
					maxPage = n
				}
			}
		})
	}

	if maxPage <= 1 {
		return nil
	}

	base := StripPageParam(threadURL)
	pages := make([]string, 0, maxPage-1)
	for n := 2; n <= maxPage; n++ {
		pages = append(pages, synthesizePageURL(base, n))
	}
	return pages
}

// DiscoverAllThreads 遍历区段的所有列表页并汇总主题链接
// 第一页串行抓取以确定总页数,其余页面由工作池并发抓取
// 单页失败仅记录警告,最终结果按页码顺序拼接并按主题ID去重
func DiscoverAllThreads(ctx context.Context, fetcher *fetch.Fetcher, sectionURL string, cfg models.BackupConfig, progress models.ProgressFunc) ([]models.ThreadLink, error) {
	utils.Infof("🔍 开始发现主题: %s", sectionURL)

	firstHTML, err := fetcher.FetchPage(ctx, sectionURL)
	if err != nil {
		return nil, fmt.Errorf("抓取区段首页失败: %w", err)
	}

	maxPage := MaxListingPage(firstHTML)
	pageURLs := ListingPageURLs(sectionURL, maxPage, cfg.StartPage)
	utils.Infof("列表共 %d 页,从第 %d 页开始,待处理 %d 页", maxPage, cfg.StartPage, len(pageURLs))

	// 每页的提取结果按页序存放,保证输出顺序稳定
	results := make([][]models.ThreadLink, len(pageURLs))

	workers := cfg.MaxWorkers
	if workers > maxDiscoveryWorkers {
		workers = maxDiscoveryWorkers
	}

	type job struct {
		idx int
		url string
	}
	jobs := make(chan job, len(pageURLs))

	var wg sync.WaitGroup
	var doneCount int
	var mu sync.Mutex

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}

				var pageHTML string
				if j.url == sectionURL {
					// 首页已经抓取过,直接复用
					pageHTML = firstHTML
				} else {
					var err error
					pageHTML, err = fetcher.FetchPage(ctx, j.url)
					if err != nil {
						utils.Warnf("列表页抓取失败: %s - %v", j.url, err)
						continue
					}
				}

				results[j.idx] = ExtractThreadLinks(pageHTML, j.url)

				mu.Lock()
				doneCount++
				done := doneCount
				mu.Unlock()
				if progress != nil {
					progress(done, len(pageURLs))
				}
			}
		}()
	}

	for i, u := range pageURLs {
		jobs <- job{idx: i, url: u}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	all := make([]models.ThreadLink, 0)
	for _, pageLinks := range results {
		all = append(all, pageLinks...)
	}
	unique := models.DedupeThreadLinks(all)

	utils.Infof("✅ 发现完成: 共 %d 个主题 (去重前 %d)", len(unique), len(all))
	return unique, nil
}
