package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/RecoveryAshes/forumarcane/internal/export"
	"github.com/RecoveryAshes/forumarcane/internal/extract"
	"github.com/RecoveryAshes/forumarcane/internal/models"
	"github.com/RecoveryAshes/forumarcane/internal/utils"
)

// RestoreOutcome 还原运行的汇总结果
type RestoreOutcome struct {
	Files      int    // 成功解析的源文件数
	Threads    int    // 还原出的主题数
	Posts      int    // 还原出的帖子数
	JSONPath   string // 生成的JSON文件路径,未生成为空
	CSVPath    string // 生成的CSV文件路径,未生成为空
	FailedFile int    // 解析失败的源文件数
}

// listArchiveHTML 列出目录中待处理的HTML文件
// 下划线开头的文件是内部索引,跳过;结果按文件名排序保证确定性
func listArchiveHTML(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("读取目录失败: %w", err)
	}
	files := make([]string, 0)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "_") || !strings.HasSuffix(strings.ToLower(name), ".html") {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)
	return files, nil
}

// resolveRestoreInputs 把输入路径展开成待解析的文件列表
// 目录展开为其中的全部HTML文件,单个文件原样返回
func resolveRestoreInputs(inputPath string) ([]string, error) {
	info, err := os.Stat(inputPath)
	if err != nil {
		return nil, fmt.Errorf("输入路径不可用: %w", err)
	}
	if info.IsDir() {
		files, err := listArchiveHTML(inputPath)
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("目录中没有可处理的HTML文件")
		}
		return files, nil
	}
	return []string{inputPath}, nil
}

// Restore 把HTML存档还原为结构化的JSON/CSV
// inputPath可以是单个HTML文件或包含多份存档的目录
// 单个文件解析失败不中断整批,只计入失败数
func Restore(ctx context.Context, inputPath, outDir string, cfg models.RestoreConfig, progress models.ProgressFunc) (*RestoreOutcome, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	files, err := resolveRestoreInputs(inputPath)
	if err != nil {
		return nil, err
	}
	if outDir == "" {
		outDir = filepath.Dir(files[0])
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("创建输出目录失败: %w", err)
	}

	utils.Infof("🔮 开始还原: %d 份存档", len(files))

	outcome := &RestoreOutcome{}
	allThreads := make([]models.ThreadDump, 0)
	allRows := make([]models.PostRow, 0)

	for i, file := range files {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		// 进度按遍历计数,解析失败的文件也推进一格
		if progress != nil {
			progress(i+1, len(files))
		}

		result, err := extract.ParseHTMLFile(file)
		if err != nil {
			utils.Warnf("解析失败,跳过: %s (%v)", filepath.Base(file), err)
			outcome.FailedFile++
			continue
		}
		allThreads = append(allThreads, result.Threads...)
		allRows = append(allRows, result.Rows...)
		outcome.Posts += result.TotalPosts
		outcome.Files++
	}

	if len(allThreads) == 0 {
		return nil, fmt.Errorf("没有还原出任何主题")
	}
	outcome.Threads = len(allThreads)

	if cfg.WriteJSON {
		jsonPath := filepath.Join(outDir, "restored_threads.json")
		if err := export.WriteJSON(allThreads, outcome.Posts, jsonPath); err != nil {
			return nil, err
		}
		outcome.JSONPath = jsonPath
	}
	if cfg.WriteCSV {
		csvPath := filepath.Join(outDir, "restored_posts.csv")
		if err := export.WriteCSV(allRows, csvPath); err != nil {
			return nil, err
		}
		outcome.CSVPath = csvPath
	}

	utils.Infof("🏆 还原完成: %d 文件 / %d 主题 / %d 帖", outcome.Files, outcome.Threads, outcome.Posts)
	return outcome, nil
}
