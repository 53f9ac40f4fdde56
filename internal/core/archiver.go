package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/RecoveryAshes/forumarcane/internal/fetch"
	"github.com/RecoveryAshes/forumarcane/internal/media"
	"github.com/RecoveryAshes/forumarcane/internal/models"
	"github.com/RecoveryAshes/forumarcane/internal/utils"
)

// maxDownloadWorkers 主题下载阶段的并发上限
const maxDownloadWorkers = 8

// metadataFilename 归档元数据文件名,位于归档根目录
const metadataFilename = "backup_metadata.json"

// pageStopper 翻页停止策略
// 逐页观察字节数,判定是否已经翻过主题的最后一页
type pageStopper interface {
	// ShouldStop 写盘前调用,返回true表示当前页是末页之后的重复页
	ShouldStop(size int) bool
	// Observe 记录已落盘页面的字节数,断点续传时也用磁盘副本的尺寸喂入
	Observe(size int)
}

// sizeRepeatStopper 连续两页字节数完全相同即视为翻到了头
// 站点对超出范围的页码往往返回末页内容,字节数不变是最稳定的信号
type sizeRepeatStopper struct {
	previous int
}

func newSizeRepeatStopper() *sizeRepeatStopper {
	return &sizeRepeatStopper{previous: -1}
}

func (s *sizeRepeatStopper) ShouldStop(size int) bool {
	return s.previous >= 0 && size == s.previous
}

func (s *sizeRepeatStopper) Observe(size int) {
	s.previous = size
}

// Archiver 论坛区段归档器
// 负责发现区段内的全部主题并逐页落盘,支持断点续传
type Archiver struct {
	sectionURL string
	archiveDir string
	cfg        models.BackupConfig

	fetcher    *fetch.Fetcher
	mediaStore *media.Store

	metaMu   sync.Mutex
	metadata *models.ArchiveMetadata
}

// NewArchiver 创建归档器并加载既有元数据
// 开启媒体下载时,媒体抓取以页面延迟的一半节奏进行
func NewArchiver(sectionURL, archiveDir string, cfg models.BackupConfig) (*Archiver, error) {
	if err := models.ValidateURL(sectionURL); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(archiveDir, 0755); err != nil {
		return nil, fmt.Errorf("创建归档目录失败: %w", err)
	}

	a := &Archiver{
		sectionURL: sectionURL,
		archiveDir: archiveDir,
		cfg:        cfg,
		fetcher:    fetch.NewFetcher(cfg.DelayDuration()),
		metadata:   models.LoadArchiveMetadata(filepath.Join(archiveDir, metadataFilename)),
	}

	if cfg.DownloadMedia {
		store, err := media.NewStore(archiveDir, fetch.NewFetcher(cfg.DelayDuration()/2))
		if err != nil {
			return nil, err
		}
		a.mediaStore = store
	}

	return a, nil
}

// MediaCount 已索引的媒体数量
func (a *Archiver) MediaCount() int {
	if a.mediaStore == nil {
		return 0
	}
	return a.mediaStore.Count()
}

// saveMetadata 串行化写回元数据
func (a *Archiver) saveMetadata() {
	a.metaMu.Lock()
	defer a.metaMu.Unlock()
	path := filepath.Join(a.archiveDir, metadataFilename)
	if err := a.metadata.SaveToFile(path); err != nil {
		utils.Warnf("元数据写入失败: %v", err)
	}
}

// archiveThread 下载单个主题的全部分页
// 页面文件已存在时跳过下载但仍从存档副本收集媒体
// 连续两页字节数完全相同视为翻过了最后一页,停止翻页
func (a *Archiver) archiveThread(ctx context.Context, link models.ThreadLink) (bool, error) {
	utils.Infof("⬇ 主题 %s: %.55s", link.ID, link.Title)

	firstHTML, err := a.fetcher.FetchPage(ctx, link.URL)
	if err != nil {
		return false, fmt.Errorf("抓取主题首页失败: %w", err)
	}

	pageURLs := append([]string{link.URL}, DiscoverThreadPages(link.URL, firstHTML)...)

	downloadedPages := 0
	var stopper pageStopper = newSizeRepeatStopper()

	for pageNum, pageURL := range pageURLs {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		default:
		}

		filename := models.PageFilename(link.ID, link.Title, pageNum+1)
		pagePath := filepath.Join(a.archiveDir, filename)

		if info, err := os.Stat(pagePath); err == nil {
			// 页面已存档: 跳过下载,但补收媒体
			downloadedPages++
			stopper.Observe(int(info.Size()))
			if a.mediaStore != nil {
				if saved, err := os.ReadFile(pagePath); err == nil {
					if _, err := a.mediaStore.HarvestPage(ctx, string(saved), pageURL); err != nil {
						return false, err
					}
				}
			}
			continue
		}

		var pageHTML string
		if pageNum == 0 {
			pageHTML = firstHTML
		} else {
			pageHTML, err = a.fetcher.FetchPage(ctx, pageURL)
			if err != nil {
				if ctx.Err() != nil {
					return false, ctx.Err()
				}
				utils.Warnf("主题 %s 第 %d 页抓取失败: %v", link.ID, pageNum+1, err)
				continue
			}
		}

		if stopper.ShouldStop(len(pageHTML)) {
			break
		}

		if err := os.WriteFile(pagePath, []byte(pageHTML), 0644); err != nil {
			return false, fmt.Errorf("页面落盘失败: %w", err)
		}
		downloadedPages++
		stopper.Observe(len(pageHTML))

		if a.mediaStore != nil {
			if _, err := a.mediaStore.HarvestPage(ctx, pageHTML, pageURL); err != nil {
				return false, err
			}
		}
	}

	a.metaMu.Lock()
	a.metadata.Threads[link.ID] = models.ThreadRecord{
		Title:        link.Title,
		URL:          link.URL,
		Pages:        downloadedPages,
		DownloadedAt: time.Now().Format(time.RFC3339),
	}
	a.metaMu.Unlock()

	return downloadedPages > 0, nil
}

// Run 执行完整的区段归档流程
// 返回本次成功归档的主题数量;一个主题都没有归档成功视为运行失败
func (a *Archiver) Run(ctx context.Context, progress models.ProgressFunc) (int, error) {
	utils.Info("✨ 开始论坛区段归档...")

	threads, err := DiscoverAllThreads(ctx, a.fetcher, a.sectionURL, a.cfg, nil)
	if err != nil {
		return 0, err
	}
	if len(threads) == 0 {
		return 0, fmt.Errorf("区段中没有发现任何主题")
	}

	a.metaMu.Lock()
	a.metadata.TotalThreads = len(threads)
	pending := make([]models.ThreadLink, 0, len(threads))
	for _, t := range threads {
		if _, done := a.metadata.Threads[t.ID]; !done {
			pending = append(pending, t)
		}
	}
	a.metaMu.Unlock()

	utils.Infof("📚 待下载主题: %d (已完成 %d)", len(pending), len(threads)-len(pending))
	if len(pending) == 0 {
		a.saveMetadata()
		return 0, nil
	}

	workers := a.cfg.MaxWorkers
	if workers > maxDownloadWorkers {
		workers = maxDownloadWorkers
	}

	jobs := make(chan models.ThreadLink, len(pending))
	var wg sync.WaitGroup
	var mu sync.Mutex
	successful, completed := 0, 0

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for link := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}

				ok, err := a.archiveThread(ctx, link)
				if err != nil && ctx.Err() == nil {
					// 失败的主题等待后重试一次
					utils.Warnf("主题 %s 下载失败,稍后重试: %v", link.ID, err)
					timer := time.NewTimer(2 * a.cfg.DelayDuration())
					select {
					case <-ctx.Done():
						timer.Stop()
						return
					case <-timer.C:
					}
					ok, err = a.archiveThread(ctx, link)
					if err != nil {
						utils.Warnf("主题 %s 重试仍然失败: %v", link.ID, err)
					}
				}

				mu.Lock()
				completed++
				if ok {
					successful++
				}
				done, total := completed, len(pending)
				succ := successful
				mu.Unlock()

				if ok {
					// 计数是本次运行的成功数,跨运行的完成状态由Threads表承载
					a.metaMu.Lock()
					a.metadata.CompletedThreads = succ
					a.metaMu.Unlock()
					a.saveMetadata()
				}
				if progress != nil {
					progress(done, total)
				}
				utils.Infof("  ✦ 进度: %d/%d 主题", done, len(pending))
			}
		}()
	}

	for _, link := range pending {
		jobs <- link
	}
	close(jobs)
	wg.Wait()

	if a.mediaStore != nil {
		a.mediaStore.SaveIndex()
	}
	a.saveMetadata()

	if err := ctx.Err(); err != nil {
		return successful, err
	}

	// 单个主题的失败已在工作协程里消化,全部失败也只体现在计数上
	utils.Infof("🏆 归档完成! %d/%d 个主题成功", successful, len(threads))
	return successful, nil
}
