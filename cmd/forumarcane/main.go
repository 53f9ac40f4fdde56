package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/RecoveryAshes/forumarcane/internal/core"
	"github.com/RecoveryAshes/forumarcane/internal/crawlers"
	"github.com/RecoveryAshes/forumarcane/internal/models"
	"github.com/RecoveryAshes/forumarcane/internal/utils"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// 命令行参数
var (
	// 全局参数
	configFile string
	verbose    bool
	logLevel   string

	// 归档参数
	sectionURL    string
	archiveDir    string
	delay         float64
	maxWorkers    int
	startPage     int
	downloadMedia bool

	// 镜像参数
	mirrorURL     string
	mirrorURLFile string
	mirrorDir     string
	mirrorWorkers int
	mirrorDelay   float64

	// 还原参数
	restoreInput string
	restoreOut   string
	writeJSON    bool
	writeCSV     bool

	// 转换参数
	convertInput  string
	convertOutput string
	convertForum  string
	embedBase64   bool
)

var rootCmd = &cobra.Command{
	Use:   "forumarcane",
	Short: "论坛归档与整站镜像工具",
	Long: `ForumArcane - 论坛区段归档、还原与整站镜像工具 (Go版本)

围绕论坛内容的完整保存流程,支持:
  • 扫描论坛区段并逐页归档全部主题
  • 同步下载帖子中的图片、音视频等媒体文件
  • 把存档还原为结构化JSON/CSV(含BBCode正文)
  • 把归档目录合并渲染为带目录的单页HTML
  • 整站镜像,内链改写为本地相对路径,可离线浏览

使用示例:
  # 归档一个论坛区段
  forumarcane backup -u "https://forum.example.com/forumdisplay.php?f=1" -o forum_archive

  # 把归档目录还原为JSON/CSV
  forumarcane restore -i forum_archive

  # 整站镜像
  forumarcane mirror -u https://forum.example.com -o site_mirror

版本: ` + Version + `
构建时间: ` + BuildTime,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// 加载配置
		config, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}

		// 初始化日志系统
		logConfig := utils.LogConfig{
			Level:      config.Logging.Level,
			LogDir:     config.Logging.LogDir,
			MaxSize:    config.Logging.Rotation.MaxSize,
			MaxBackups: config.Logging.Rotation.MaxBackups,
			MaxAge:     config.Logging.Rotation.MaxAge,
			Compress:   config.Logging.Rotation.Compress,
		}

		// 命令行参数覆盖配置文件
		if logLevel != "" {
			logConfig.Level = logLevel
		}

		if err := utils.InitLogger(logConfig); err != nil {
			return fmt.Errorf("初始化日志系统失败: %w", err)
		}

		if verbose {
			utils.Info("详细模式已启用")
		}

		return nil
	},
}

// signalContext 创建随中断信号取消的context
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		utils.Warnf("收到中断信号: %v, 正在优雅关闭...", sig)
		cancel()
	}()
	return ctx, cancel
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "归档一个论坛区段的全部主题",
	RunE: func(cmd *cobra.Command, args []string) error {
		appConfig, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}
		appConfig.MergeBackupFlags(delay, maxWorkers, startPage, downloadMedia)

		if err := ValidateBackupFlags(sectionURL, appConfig.Backup); err != nil {
			return err
		}
		outDir := archiveDir
		if outDir == "" {
			outDir = appConfig.Output.ArchiveDir
		}

		ctx, cancel := signalContext()
		defer cancel()

		archiver, err := core.NewArchiver(sectionURL, outDir, appConfig.Backup)
		if err != nil {
			return fmt.Errorf("创建归档器失败: %w", err)
		}

		var bar = utils.NewProgressBar(-1, "归档主题")
		n, err := archiver.Run(ctx, func(done, total int) {
			bar.ChangeMax(total)
			_ = bar.Set(done)
		})
		fmt.Println()
		if err != nil {
			return fmt.Errorf("归档失败: %w", err)
		}

		fmt.Println("\n==================================================")
		fmt.Println("📊 归档统计")
		fmt.Println("==================================================")
		fmt.Printf("✅ 成功归档主题: %d\n", n)
		fmt.Printf("📦 已下载媒体: %d\n", archiver.MediaCount())
		fmt.Printf("📁 归档目录: %s\n", outDir)
		fmt.Println("==================================================")

		utils.Info("✨ 归档任务完成!")
		return nil
	},
}

var mirrorCmd = &cobra.Command{
	Use:   "mirror",
	Short: "整站镜像,内链改写为本地路径",
	RunE: func(cmd *cobra.Command, args []string) error {
		appConfig, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}
		appConfig.MergeMirrorFlags(mirrorWorkers, mirrorDelay)

		if mirrorURL == "" && mirrorURLFile == "" {
			return fmt.Errorf("必须通过 --url 或 --url-file 指定镜像目标")
		}

		targets := []string{}
		if mirrorURLFile != "" {
			if err := ValidateURLFile(mirrorURLFile); err != nil {
				return err
			}
			urls, err := utils.ReadURLsFromFile(mirrorURLFile)
			if err != nil {
				return fmt.Errorf("读取URL文件失败: %w", err)
			}
			targets = urls
		}
		if mirrorURL != "" {
			normalized, err := NormalizeURL(mirrorURL)
			if err != nil {
				return fmt.Errorf("无效的镜像URL: %w", err)
			}
			targets = append([]string{normalized}, targets...)
		}

		outDir := mirrorDir
		if outDir == "" {
			outDir = appConfig.Output.MirrorDir
		}

		ctx, cancel := signalContext()
		defer cancel()

		total := 0
		for i, target := range targets {
			if ctx.Err() != nil {
				break
			}
			utils.Infof("📦 镜像目标 %d/%d: %s", i+1, len(targets), target)

			crawler, err := crawlers.NewMirrorCrawler(target, outDir, appConfig.Mirror)
			if err != nil {
				utils.Errorf("创建镜像爬虫失败: %s (%v)", target, err)
				continue
			}

			spinner := utils.NewSpinner("镜像抓取")
			n, err := crawler.Run(ctx, func(count int) {
				_ = spinner.Set(count)
			})
			fmt.Println()
			total += n
			if err != nil && ctx.Err() == nil {
				utils.Errorf("镜像失败: %s (%v)", target, err)
			}
		}

		if err := ctx.Err(); err != nil {
			return fmt.Errorf("镜像被中断,已保存 %d 个文件", total)
		}

		fmt.Println("\n==================================================")
		fmt.Println("📊 镜像统计")
		fmt.Println("==================================================")
		fmt.Printf("✅ 镜像目标数: %d\n", len(targets))
		fmt.Printf("✅ 保存文件数: %d\n", total)
		fmt.Printf("📁 镜像目录: %s\n", outDir)
		fmt.Println("==================================================")

		utils.Info("✨ 镜像任务完成!")
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "把HTML存档还原为JSON/CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		if restoreInput == "" {
			return fmt.Errorf("必须通过 --input 指定存档文件或目录")
		}
		cfg := models.RestoreConfig{WriteJSON: writeJSON, WriteCSV: writeCSV}
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		bar := utils.NewProgressBar(-1, "解析存档")
		outcome, err := core.Restore(ctx, restoreInput, restoreOut, cfg, func(done, total int) {
			bar.ChangeMax(total)
			_ = bar.Set(done)
		})
		fmt.Println()
		if err != nil {
			return fmt.Errorf("还原失败: %w", err)
		}

		fmt.Println("\n==================================================")
		fmt.Println("📊 还原统计")
		fmt.Println("==================================================")
		fmt.Printf("✅ 解析文件数: %d\n", outcome.Files)
		fmt.Printf("✅ 还原主题数: %d\n", outcome.Threads)
		fmt.Printf("✅ 还原帖子数: %d\n", outcome.Posts)
		if outcome.FailedFile > 0 {
			fmt.Printf("❌ 失败文件数: %d\n", outcome.FailedFile)
		}
		if outcome.JSONPath != "" {
			fmt.Printf("📄 JSON: %s\n", outcome.JSONPath)
		}
		if outcome.CSVPath != "" {
			fmt.Printf("📄 CSV: %s\n", outcome.CSVPath)
		}
		fmt.Println("==================================================")

		utils.Info("✨ 还原任务完成!")
		return nil
	},
}

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "把归档目录合并渲染为单页HTML",
	RunE: func(cmd *cobra.Command, args []string) error {
		if convertInput == "" {
			return fmt.Errorf("必须通过 --input 指定归档目录")
		}

		ctx, cancel := signalContext()
		defer cancel()

		opts := core.ConvertOptions{
			ForumURL:    convertForum,
			EmbedBase64: embedBase64,
		}
		bar := utils.NewProgressBar(-1, "合并页面")
		n, err := core.ConvertFolder(ctx, convertInput, convertOutput, opts, func(done, total int) {
			bar.ChangeMax(total)
			_ = bar.Set(done)
		})
		fmt.Println()
		if err != nil {
			return fmt.Errorf("转换失败: %w", err)
		}

		fmt.Printf("\n✅ 合并 %d 个主题 → %s\n", n, convertOutput)
		utils.Info("✨ 转换任务完成!")
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ForumArcane %s\n", Version)
		fmt.Printf("构建时间: %s\n", BuildTime)
		fmt.Println("Go实现版本 - 论坛归档与整站镜像工具")
	},
}

func init() {
	// 全局参数
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "配置文件路径")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "详细输出模式")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (trace|debug|info|warn|error)")

	// backup参数
	backupCmd.Flags().StringVarP(&sectionURL, "url", "u", "", "论坛区段URL (必需)")
	backupCmd.Flags().StringVarP(&archiveDir, "output", "o", "", "归档输出目录")
	backupCmd.Flags().Float64VarP(&delay, "delay", "d", 1.0, "页面间延迟(秒)")
	backupCmd.Flags().IntVar(&maxWorkers, "threads", 10, "并发线程数 (1-100)")
	backupCmd.Flags().IntVar(&startPage, "start-page", 1, "列表起始页")
	backupCmd.Flags().BoolVar(&downloadMedia, "media", true, "下载帖子中的媒体文件")
	backupCmd.MarkFlagRequired("url")

	// mirror参数
	mirrorCmd.Flags().StringVarP(&mirrorURL, "url", "u", "", "镜像入口URL")
	mirrorCmd.Flags().StringVarP(&mirrorURLFile, "url-file", "f", "", "包含多个镜像目标的文件")
	mirrorCmd.Flags().StringVarP(&mirrorDir, "output", "o", "", "镜像输出目录")
	mirrorCmd.Flags().IntVar(&mirrorWorkers, "threads", 8, "镜像工作线程数 (1-100)")
	mirrorCmd.Flags().Float64VarP(&mirrorDelay, "delay", "d", 0.5, "抓取间延迟(秒)")

	// restore参数
	restoreCmd.Flags().StringVarP(&restoreInput, "input", "i", "", "存档文件或目录 (必需)")
	restoreCmd.Flags().StringVarP(&restoreOut, "output", "o", "", "输出目录,默认在输入旁边")
	restoreCmd.Flags().BoolVar(&writeJSON, "json", true, "输出JSON记录")
	restoreCmd.Flags().BoolVar(&writeCSV, "csv", true, "输出CSV表格")

	// convert参数
	convertCmd.Flags().StringVarP(&convertInput, "input", "i", "", "归档目录 (必需)")
	convertCmd.Flags().StringVarP(&convertOutput, "output", "o", "forum_archive.html", "输出HTML文件")
	convertCmd.Flags().StringVar(&convertForum, "forum-url", "", "来源论坛地址,展示在页头")
	convertCmd.Flags().BoolVar(&embedBase64, "embed", false, "媒体内联为base64,生成自包含单文件")

	// 添加子命令
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(mirrorCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
