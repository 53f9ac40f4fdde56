package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestInitLogger(t *testing.T) {
	tempDir := t.TempDir()

	config := LogConfig{
		Level:      "debug",
		LogDir:     tempDir,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}

	if err := InitLogger(config); err != nil {
		t.Fatalf("初始化日志器失败: %v", err)
	}

	// 写入测试日志
	Info("测试信息日志")
	Warnf("格式化警告日志: %d", 123)
	Debug("测试调试日志")

	// 等待日志写入
	time.Sleep(100 * time.Millisecond)

	mainLogPath := filepath.Join(tempDir, "forumarcane.log")
	content, err := os.ReadFile(mainLogPath)
	if err != nil {
		t.Fatalf("主日志文件未创建: %v", err)
	}
	if len(content) == 0 {
		t.Error("日志文件为空")
	}
}

func TestDefaultLogConfig(t *testing.T) {
	config := DefaultLogConfig()

	if config.Level != "info" {
		t.Errorf("默认日志级别错误: 期望 'info', 得到 '%s'", config.Level)
	}
	if config.LogDir != "logs" {
		t.Errorf("默认日志目录错误: 期望 'logs', 得到 '%s'", config.LogDir)
	}
	if config.MaxSize != 10 || config.MaxBackups != 3 || config.MaxAge != 28 {
		t.Errorf("默认轮转参数错误: %+v", config)
	}
	if !config.Compress {
		t.Error("默认应该启用压缩")
	}
}

func TestReadURLsFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "urls.txt")
	content := `# 镜像目标列表
https://forum.example.com

https://other.example.com/section
不是URL
ftp://bad.example.com
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	urls, err := ReadURLsFromFile(path)
	if err != nil {
		t.Fatalf("读取URL文件失败: %v", err)
	}
	if len(urls) != 2 {
		t.Fatalf("应读到2个有效URL,实际 %d: %v", len(urls), urls)
	}
	if urls[0] != "https://forum.example.com" || urls[1] != "https://other.example.com/section" {
		t.Errorf("URL内容不符: %v", urls)
	}
}

func TestReadURLsFromFileAllInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "urls.txt")
	if err := os.WriteFile(path, []byte("# 只有注释\n\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := ReadURLsFromFile(path); err == nil {
		t.Error("没有有效URL应报错")
	}
}

func TestReadURLsFromFileMissing(t *testing.T) {
	if _, err := ReadURLsFromFile(filepath.Join(t.TempDir(), "nope.txt")); err == nil {
		t.Error("文件不存在应报错")
	}
}
