// internal/recipients/table.go
// 收件人表格讀取 - 解析含表頭的分隔文字 (CSV)

package recipients

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"mail-merge/internal/models"
)

// candidateDelimiters 自動偵測的分隔符號，同分時以前者為準
var candidateDelimiters = []rune{',', ';', '\t', '|'}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Options 讀取選項
type Options struct {
	Delimiter   rune   // 0 表示自動偵測
	EmailColumn string // 空白表示自動偵測
	NameColumn  string // 空白表示自動偵測
}

// Load 讀取收件人表格
func Load(r io.Reader, opts Options) (*models.Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &models.FormatError{Err: fmt.Errorf("failed to read input: %w", err)}
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	delimiter := opts.Delimiter
	if delimiter == 0 {
		delimiter = DetectDelimiter(firstLine(data))
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &models.FormatError{Err: errors.New("missing header row")}
	}
	if err != nil {
		return nil, toFormatError(err)
	}

	columns, err := normalizeHeader(header)
	if err != nil {
		return nil, err
	}

	table := &models.Table{Columns: columns}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, toFormatError(err)
		}

		row := make(models.Row, len(columns))
		for i, col := range columns {
			if i < len(record) {
				row[col] = strings.TrimSpace(record[i])
			} else {
				row[col] = ""
			}
		}
		table.Rows = append(table.Rows, row)
	}

	if err := MapColumns(table, opts.EmailColumn, opts.NameColumn); err != nil {
		return nil, err
	}

	return table, nil
}

// LoadFile 讀取收件人檔案
func LoadFile(path string, opts Options) (*models.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open recipient file: %w", err)
	}
	defer f.Close()

	return Load(f, opts)
}

// MapColumns 設定收件地址與名稱欄位
// 指定的欄位不存在時回傳 ValidationError
func MapColumns(table *models.Table, emailColumn, nameColumn string) error {
	if emailColumn != "" {
		if !table.HasColumn(emailColumn) {
			return models.NewValidationError("email_column",
				fmt.Sprintf("column %q not found in recipient data", emailColumn))
		}
		table.EmailColumn = emailColumn
	} else {
		table.EmailColumn = DetectColumn(table.Columns, "email")
	}

	if nameColumn != "" {
		if !table.HasColumn(nameColumn) {
			return models.NewValidationError("name_column",
				fmt.Sprintf("column %q not found in recipient data", nameColumn))
		}
		table.NameColumn = nameColumn
	} else {
		table.NameColumn = DetectColumn(table.Columns, "name")
	}

	return nil
}

// DetectColumn 回傳第一個名稱包含 hint 的欄位 (不分大小寫)
// 找不到時回傳第一個欄位
func DetectColumn(columns []string, hint string) string {
	if len(columns) == 0 {
		return ""
	}
	hint = strings.ToLower(hint)
	for _, c := range columns {
		if strings.Contains(strings.ToLower(c), hint) {
			return c
		}
	}
	return columns[0]
}

// DetectDelimiter 依表頭行判斷分隔符號
func DetectDelimiter(headerLine string) rune {
	best := candidateDelimiters[0]
	bestCount := 0
	for _, d := range candidateDelimiters {
		if n := strings.Count(headerLine, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

// ParseDelimiter 解析使用者指定的分隔符號
// 空白表示自動偵測，接受 "tab" 與 "\t"
func ParseDelimiter(s string) (rune, error) {
	switch strings.ToLower(s) {
	case "":
		return 0, nil
	case "tab", "\\t", "\t":
		return '\t', nil
	}

	runes := []rune(s)
	if len(runes) != 1 || runes[0] == '"' || runes[0] == '\r' || runes[0] == '\n' {
		return 0, models.NewValidationError("delimiter", fmt.Sprintf("invalid delimiter %q", s))
	}
	return runes[0], nil
}

func firstLine(data []byte) string {
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		data = data[:i]
	}
	return string(data)
}

func normalizeHeader(header []string) ([]string, error) {
	columns := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			return nil, &models.FormatError{Line: 1, Err: fmt.Errorf("column %d has an empty header", i+1)}
		}
		if seen[name] {
			return nil, &models.FormatError{Line: 1, Err: fmt.Errorf("duplicate column %q", name)}
		}
		seen[name] = true
		columns[i] = name
	}
	return columns, nil
}

func toFormatError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &models.FormatError{Line: pe.Line, Err: pe.Err}
	}
	return &models.FormatError{Err: err}
}
