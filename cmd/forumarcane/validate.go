package main

import (
	"fmt"
	"net/url"

	"github.com/RecoveryAshes/forumarcane/internal/models"
)

// ValidateURL 验证URL格式
func ValidateURL(urlStr string) error {
	return models.ValidateURL(urlStr)
}

// ValidateBackupFlags 验证归档命令的参数组合
func ValidateBackupFlags(sectionURL string, cfg models.BackupConfig) error {
	if sectionURL == "" {
		return fmt.Errorf("必须通过 --url 指定论坛区段URL")
	}
	if err := ValidateURL(sectionURL); err != nil {
		return fmt.Errorf("无效的区段URL: %w", err)
	}
	return cfg.Validate()
}

// ValidateURLFile 验证URL文件路径
func ValidateURLFile(filepath string) error {
	if filepath == "" {
		return fmt.Errorf("URL文件路径不能为空")
	}
	// 文件存在性检查将在运行时进行
	return nil
}

// NormalizeURL 规范化URL
func NormalizeURL(urlStr string) (string, error) {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return "", err
	}

	// 如果没有协议,默认使用https
	if parsed.Scheme == "" {
		urlStr = "https://" + urlStr
		parsed, err = url.Parse(urlStr)
		if err != nil {
			return "", err
		}
	}

	return parsed.String(), nil
}
