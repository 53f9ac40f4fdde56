package models

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// 可下载媒体的扩展名集合
var (
	ImageExts = map[string]bool{
		".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
		".bmp": true, ".svg": true, ".tiff": true, ".avif": true,
	}
	VideoExts = map[string]bool{
		".mp4": true, ".webm": true, ".mov": true, ".avi": true, ".mkv": true,
		".ogv": true, ".flv": true, ".m4v": true,
	}
	AudioExts = map[string]bool{
		".mp3": true, ".ogg": true, ".wav": true, ".aac": true, ".flac": true,
		".m4a": true, ".opus": true,
	}
)

// IsMediaExt 判断扩展名是否属于已知媒体类型
func IsMediaExt(ext string) bool {
	return ImageExts[ext] || VideoExts[ext] || AudioExts[ext]
}

// ExtOf 提取URL路径部分的小写扩展名(含点号)
// 查询参数和fragment不参与扩展名判断
func ExtOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return strings.ToLower(path.Ext(rawURL))
	}
	return strings.ToLower(path.Ext(parsed.Path))
}

// unsafeFilenameChars 文件名中需要替换的非法字符
var unsafeFilenameChars = regexp.MustCompile(`[<>:"/\\|?*\n\r\t]`)

// SafeFilename 将任意标题转换为安全的文件名
// 非法字符替换为下划线,并截断到maxLen字节
// 注意: 替换规则必须保持稳定,页面文件的幂等检测依赖确定性文件名
func SafeFilename(name string, maxLen int) string {
	safe := unsafeFilenameChars.ReplaceAllString(name, "_")
	if len(safe) > maxLen {
		safe = safe[:maxLen]
	}
	return safe
}

// CleanText 规范化文本: 去除首尾空白,折叠连续空白为单个空格
func CleanText(text string) string {
	text = strings.ReplaceAll(text, "\r", "")
	text = strings.ReplaceAll(text, "\u00a0", " ")
	return strings.Join(strings.Fields(text), " ")
}

// forumDateLayout 论坛帖子日期的唯一可接受格式
// 例如: "Jan 2, 2006 at 3:04 PM"
const forumDateLayout = "Jan 2, 2006 at 3:04 PM"

// ParseForumDate 尝试解析帖子日期,失败返回nil
func ParseForumDate(text string) *time.Time {
	t, err := time.Parse(forumDateLayout, text)
	if err != nil {
		return nil
	}
	return &t
}

// ValidateURL 验证URL
func ValidateURL(urlStr string) error {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("无效的URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL必须是HTTP或HTTPS协议")
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL必须包含主机名")
	}
	return nil
}

// generateID 生成唯一ID
func generateID() string {
	return uuid.New().String()
}
