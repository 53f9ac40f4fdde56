package export

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/RecoveryAshes/forumarcane/internal/models"
	"github.com/RecoveryAshes/forumarcane/internal/utils"
)

// csvHeader CSV表格的固定列
var csvHeader = []string{
	"thread_title",
	"post_author",
	"post_date",
	"post_content_bbcode",
	"media_references",
}

// WriteCSV 把还原出的帖子逐行写入CSV表格
func WriteCSV(rows []models.PostRow, outPath string) error {
	utils.Info("ᚠ 写入CSV表格...")

	file, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("创建CSV文件失败: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("写入表头失败: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.ThreadTitle,
			row.Author,
			row.Date,
			row.Body,
			row.MediaRefs,
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("写入数据行失败: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("CSV刷盘失败: %w", err)
	}

	utils.Infof("  ✅ CSV已生成: %s (%d 行)", outPath, len(rows))
	return nil
}
