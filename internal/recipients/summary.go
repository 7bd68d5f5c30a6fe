// internal/recipients/summary.go
// 表格摘要 - 資料預覽與可寄送列數

package recipients

import "mail-merge/internal/models"

// Summary 表格摘要
type Summary struct {
	Columns     []string     `json:"columns"`
	EmailColumn string       `json:"email_column"`
	NameColumn  string       `json:"name_column"`
	Total       int          `json:"total"`
	Sendable    int          `json:"sendable"`
	Preview     []models.Row `json:"preview"`
}

// Summarize 建立表格摘要，Preview 最多包含 previewRows 列
func Summarize(table *models.Table, previewRows int) Summary {
	s := Summary{
		Columns:     table.Columns,
		EmailColumn: table.EmailColumn,
		NameColumn:  table.NameColumn,
		Total:       table.Len(),
	}

	for i, row := range table.Rows {
		if models.IsPlausibleEmail(table.Email(row)) {
			s.Sendable++
		}
		if i < previewRows {
			s.Preview = append(s.Preview, row)
		}
	}

	return s
}
