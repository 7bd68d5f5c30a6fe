// internal/merge/preview.go
// 單列預覽

package merge

import (
	"fmt"

	"mail-merge/internal/models"
)

// Preview 單一收件人的個人化結果
type Preview struct {
	Index      int      `json:"index"`
	To         string   `json:"to"`
	Name       string   `json:"name"`
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
	Unresolved []string `json:"unresolved,omitempty"`
}

// RenderPreview 依表格第 index 列產生預覽
func RenderPreview(table *models.Table, index int, tmpl models.Template) (Preview, error) {
	if table == nil || table.Len() == 0 {
		return Preview{}, models.NewValidationError("recipients", "no recipient data loaded")
	}
	if index < 0 || index >= table.Len() {
		return Preview{}, models.NewValidationError("index",
			fmt.Sprintf("row index %d out of range (0-%d)", index, table.Len()-1))
	}

	row := table.Rows[index]
	fields := row.Fields()

	unresolved := Missing(tmpl.Subject, fields)
	for _, name := range Missing(tmpl.Body, fields) {
		if !contains(unresolved, name) {
			unresolved = append(unresolved, name)
		}
	}

	return Preview{
		Index:      index,
		To:         table.Email(row),
		Name:       table.Name(row),
		Subject:    Render(tmpl.Subject, fields),
		Body:       Render(tmpl.Body, fields),
		Unresolved: unresolved,
	}, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
