package core

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/RecoveryAshes/forumarcane/internal/export"
	"github.com/RecoveryAshes/forumarcane/internal/extract"
	"github.com/RecoveryAshes/forumarcane/internal/fetch"
	"github.com/RecoveryAshes/forumarcane/internal/media"
	"github.com/RecoveryAshes/forumarcane/internal/models"
	"github.com/RecoveryAshes/forumarcane/internal/utils"
)

// ConvertOptions 归档目录合并转换的选项
type ConvertOptions struct {
	ForumURL    string // 展示在归档页头的来源地址
	EmbedBase64 bool   // 媒体内联为base64,生成自包含单文件
}

// ConvertFolder 把归档目录下的所有页面合并渲染成单一归档HTML
// 目录中若存在media子目录,其中已下载的媒体会被引用或内联
// 单个页面解析失败不中断整个转换
func ConvertFolder(ctx context.Context, inputDir, outputFile string, opts ConvertOptions, progress models.ProgressFunc) (int, error) {
	files, err := listArchiveHTML(inputDir)
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		return 0, fmt.Errorf("目录中没有可转换的HTML文件")
	}
	utils.Infof("📜 待转换页面: %d 份", len(files))

	// 归档时下载的媒体索引,用于把外链替换成本地文件
	store, err := media.NewStore(inputDir, fetch.NewFetcher(0))
	if err != nil {
		return 0, err
	}

	threads := make([]models.ThreadDump, 0, len(files))
	for i, file := range files {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		default:
		}

		// 进度按遍历计数,解析失败的文件也推进一格
		if progress != nil {
			progress(i+1, len(files))
		}

		result, err := extract.ParseHTMLFile(file)
		if err != nil {
			utils.Warnf("页面解析失败,跳过: %s (%v)", filepath.Base(file), err)
			continue
		}
		for _, thread := range result.Threads {
			if thread.PostCount > 0 {
				threads = append(threads, thread)
			}
		}

		utils.Infof("  ✦ 已解析 %d/%d: %s", i+1, len(files), filepath.Base(file))
	}

	if len(threads) == 0 {
		return 0, fmt.Errorf("没有解析出任何主题")
	}

	utils.Info("🎨 合并渲染归档...")
	htmlOpts := export.HTMLOptions{
		ForumURL:    opts.ForumURL,
		EmbedBase64: opts.EmbedBase64,
		Store:       store,
	}
	if err := export.WriteHTML(threads, outputFile, htmlOpts); err != nil {
		return 0, err
	}
	return len(threads), nil
}
