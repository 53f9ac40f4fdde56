package models

import (
	"fmt"
	"time"
)

// ProgressFunc 阶段性进度回调: (已完成, 总数)
type ProgressFunc func(done, total int)

// CountFunc 计数型进度回调: 累计数量
type CountFunc func(n int)

// BackupConfig 论坛区段归档配置
type BackupConfig struct {
	Delay         float64 `json:"delay" mapstructure:"delay"`                   // 页面间延迟(秒) (默认:1.0)
	MaxWorkers    int     `json:"max_workers" mapstructure:"max_workers"`       // 并发线程数 (默认:10)
	StartPage     int     `json:"start_page" mapstructure:"start_page"`         // 列表起始页 (默认:1)
	DownloadMedia bool    `json:"download_media" mapstructure:"download_media"` // 是否下载媒体文件
}

// Validate 验证归档配置
func (c *BackupConfig) Validate() error {
	if c.Delay < 0 || c.Delay > 60 {
		return fmt.Errorf("页面延迟必须在0-60秒之间")
	}
	if c.MaxWorkers < 1 || c.MaxWorkers > 100 {
		return fmt.Errorf("并发数必须在1-100之间")
	}
	if c.StartPage < 1 {
		return fmt.Errorf("起始页必须大于等于1")
	}
	return nil
}

// DelayDuration 页面间延迟
func (c *BackupConfig) DelayDuration() time.Duration {
	return time.Duration(c.Delay * float64(time.Second))
}

// MirrorConfig 整站镜像配置
type MirrorConfig struct {
	MaxWorkers int     `json:"max_workers" mapstructure:"max_workers"` // 镜像工作线程数 (默认:8)
	Delay      float64 `json:"delay" mapstructure:"delay"`             // 抓取间延迟(秒) (默认:0.5)
}

// Validate 验证镜像配置
func (c *MirrorConfig) Validate() error {
	if c.MaxWorkers < 1 || c.MaxWorkers > 100 {
		return fmt.Errorf("镜像并发数必须在1-100之间")
	}
	if c.Delay < 0 || c.Delay > 60 {
		return fmt.Errorf("抓取延迟必须在0-60秒之间")
	}
	return nil
}

// DelayDuration 抓取间延迟
func (c *MirrorConfig) DelayDuration() time.Duration {
	return time.Duration(c.Delay * float64(time.Second))
}

// RestoreConfig 归档还原配置
type RestoreConfig struct {
	WriteJSON bool `json:"write_json" mapstructure:"write_json"` // 输出JSON记录
	WriteCSV  bool `json:"write_csv" mapstructure:"write_csv"`   // 输出CSV表格
}

// Validate 验证还原配置
func (c *RestoreConfig) Validate() error {
	if !c.WriteJSON && !c.WriteCSV {
		return fmt.Errorf("至少需要一种输出格式(JSON或CSV)")
	}
	return nil
}

// PageFilename 生成页面文件的确定性文件名
// 格式: thread_{id}_{安全标题}__page{N}.html
// 重复运行依赖此命名检测已存在的页面
func PageFilename(threadID, title string, pageNum int) string {
	return fmt.Sprintf("thread_%s_%s__page%d.html", threadID, SafeFilename(title, 80), pageNum)
}
