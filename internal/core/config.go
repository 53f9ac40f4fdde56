package core

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/RecoveryAshes/forumarcane/internal/models"
)

// Config 应用程序配置
type Config struct {
	Backup  models.BackupConfig  `mapstructure:"backup"`
	Mirror  models.MirrorConfig  `mapstructure:"mirror"`
	Restore models.RestoreConfig `mapstructure:"restore"`
	Logging LoggingConfig        `mapstructure:"logging"`
	Output  OutputConfig         `mapstructure:"output"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level    string         `mapstructure:"level"`
	LogDir   string         `mapstructure:"log_dir"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig 日志轮转配置
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	ArchiveDir string `mapstructure:"archive_dir"` // 论坛归档根目录
	MirrorDir  string `mapstructure:"mirror_dir"`  // 整站镜像根目录
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// 设置配置文件
	if configPath != "" {
		// 使用指定的配置文件
		v.SetConfigFile(configPath)
	} else {
		// 搜索默认位置
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		// 添加配置搜索路径
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")

		// 用户主目录
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".forumarcane"))
		}
	}

	// 设置默认值
	setDefaults(v)

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		// 如果配置文件不存在,使用默认值
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		// 配置文件不存在,使用默认值
	}

	// 解析配置
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	return &config, nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	// 归档配置默认值
	v.SetDefault("backup.delay", 1.0)
	v.SetDefault("backup.max_workers", 10)
	v.SetDefault("backup.start_page", 1)
	v.SetDefault("backup.download_media", true)

	// 镜像配置默认值
	v.SetDefault("mirror.max_workers", 8)
	v.SetDefault("mirror.delay", 0.5)

	// 还原配置默认值
	v.SetDefault("restore.write_json", true)
	v.SetDefault("restore.write_csv", true)

	// 日志配置默认值
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.rotation.max_size", 10)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.rotation.max_age", 28)
	v.SetDefault("logging.rotation.compress", true)

	// 输出配置默认值
	v.SetDefault("output.archive_dir", "forum_archive")
	v.SetDefault("output.mirror_dir", "site_mirror")
}

// MergeBackupFlags 合并归档命令行参数到配置
// 命令行参数优先于配置文件
func (c *Config) MergeBackupFlags(delay float64, maxWorkers, startPage int, downloadMedia bool) {
	if delay >= 0 {
		c.Backup.Delay = delay
	}
	if maxWorkers > 0 {
		c.Backup.MaxWorkers = maxWorkers
	}
	if startPage > 0 {
		c.Backup.StartPage = startPage
	}
	c.Backup.DownloadMedia = downloadMedia
}

// MergeMirrorFlags 合并镜像命令行参数到配置
func (c *Config) MergeMirrorFlags(maxWorkers int, delay float64) {
	if maxWorkers > 0 {
		c.Mirror.MaxWorkers = maxWorkers
	}
	if delay >= 0 {
		c.Mirror.Delay = delay
	}
}
