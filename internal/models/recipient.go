// internal/models/recipient.go
// 收件人資料模型

package models

import "strings"

// Row 單一收件人資料列 (欄位名稱 -> 值)
// 表頭的每個欄位都會出現在 Row 中，缺少的儲存格為空字串
type Row map[string]string

// Fields 回傳可用於變數替換的欄位對應
func (r Row) Fields() map[string]string {
	fields := make(map[string]string, len(r))
	for k, v := range r {
		fields[k] = v
	}
	return fields
}

// Table 收件人表格，保留讀取順序
type Table struct {
	Columns     []string `json:"columns"`
	Rows        []Row    `json:"rows"`
	EmailColumn string   `json:"email_column"`
	NameColumn  string   `json:"name_column"`
}

// Len 回傳資料列數
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// HasColumn 檢查欄位是否存在
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Email 取得該列的收件地址 (去除前後空白)
func (t *Table) Email(row Row) string {
	return strings.TrimSpace(row[t.EmailColumn])
}

// Name 取得該列的收件人名稱
func (t *Table) Name(row Row) string {
	return strings.TrimSpace(row[t.NameColumn])
}

// IsPlausibleEmail 地址需包含 "@" 與 "."
// 只是粗略檢查，不合格的列會被略過而非中止
func IsPlausibleEmail(address string) bool {
	address = strings.TrimSpace(address)
	return address != "" && strings.Contains(address, "@") && strings.Contains(address, ".")
}
