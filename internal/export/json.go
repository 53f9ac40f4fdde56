package export

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/RecoveryAshes/forumarcane/internal/models"
	"github.com/RecoveryAshes/forumarcane/internal/utils"
)

// jsonPayload 还原输出的JSON顶层结构
type jsonPayload struct {
	GeneratedAt  string              `json:"generated_at"`
	TotalThreads int                 `json:"total_threads"`
	TotalPosts   int                 `json:"total_posts"`
	Threads      []models.ThreadDump `json:"threads"`
}

// WriteJSON 把还原出的主题序列化为JSON文件
func WriteJSON(threads []models.ThreadDump, totalPosts int, outPath string) error {
	utils.Info("ᛊ 写入JSON记录...")

	payload := jsonPayload{
		GeneratedAt:  time.Now().Format(time.RFC3339),
		TotalThreads: len(threads),
		TotalPosts:   totalPosts,
		Threads:      threads,
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("JSON序列化失败: %w", err)
	}
	if err := os.WriteFile(outPath, data, 0644); err != nil {
		return fmt.Errorf("JSON写入失败: %w", err)
	}

	utils.Infof("  ✅ JSON已生成: %s (%.1f KB)", outPath, float64(len(data))/1024)
	return nil
}
