package models

import (
	"encoding/json"
	"os"
	"regexp"
	"time"
)

// ThreadLink 发现阶段产出的一个内容单元(论坛主题)
type ThreadLink struct {
	ID    string `json:"id"`    // 从URL中提取的主题ID
	URL   string `json:"url"`   // 主题首页的完整URL
	Title string `json:"title"` // 链接文本中的标题
}

// ThreadRecord 已归档主题的元数据记录
type ThreadRecord struct {
	Title        string `json:"title"`
	URL          string `json:"url"`
	Pages        int    `json:"pages"`         // 成功落盘的页数
	DownloadedAt string `json:"downloaded_at"` // RFC3339时间戳
}

// ArchiveMetadata 归档进程的全局状态
// 首次运行时创建,之后每次运行加载,驱动断点续传:
// 已存在于Threads中的主题在后续运行中被跳过
type ArchiveMetadata struct {
	ArchiveID        string                  `json:"archive_id"` // 归档首次创建时分配,续传保持不变
	Threads          map[string]ThreadRecord `json:"threads"`
	LastBackup       string                  `json:"last_backup"`
	TotalThreads     int                     `json:"total_threads"`
	CompletedThreads int                     `json:"completed_threads"`
}

// NewArchiveMetadata 创建空的元数据记录
func NewArchiveMetadata() *ArchiveMetadata {
	return &ArchiveMetadata{
		ArchiveID: generateID(),
		Threads:   make(map[string]ThreadRecord),
	}
}

// LoadArchiveMetadata 从文件加载元数据
// 宽容读取: 文件不存在或损坏时返回空记录,归档从头开始
func LoadArchiveMetadata(path string) *ArchiveMetadata {
	data, err := os.ReadFile(path)
	if err != nil {
		return NewArchiveMetadata()
	}
	var meta ArchiveMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return NewArchiveMetadata()
	}
	if meta.Threads == nil {
		meta.Threads = make(map[string]ThreadRecord)
	}
	if meta.ArchiveID == "" {
		meta.ArchiveID = generateID()
	}
	return &meta
}

// SaveToFile 整体写回元数据文件,并刷新LastBackup时间戳
func (m *ArchiveMetadata) SaveToFile(path string) error {
	m.LastBackup = time.Now().Format(time.RFC3339)
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// threadIDPatterns 可识别的主题URL形态
// 多种URL形态映射到同一套数字ID
var threadIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`showthread\.php.*[?&]t=(\d+)`),
	regexp.MustCompile(`/threads/[^/]*\.(\d+)`),
	regexp.MustCompile(`viewtopic\.php.*[?&]t=(\d+)`),
}

// ExtractThreadID 从URL中提取主题ID,无法识别返回空串
func ExtractThreadID(rawURL string) string {
	for _, p := range threadIDPatterns {
		if m := p.FindStringSubmatch(rawURL); m != nil {
			return m[1]
		}
	}
	return ""
}

// DedupeThreadLinks 按ID去重,保留首次出现的顺序
func DedupeThreadLinks(links []ThreadLink) []ThreadLink {
	seen := make(map[string]bool, len(links))
	unique := make([]ThreadLink, 0, len(links))
	for _, t := range links {
		if !seen[t.ID] {
			seen[t.ID] = true
			unique = append(unique, t)
		}
	}
	return unique
}
