// internal/merge/render.go
// 變數替換引擎 - 將 {欄位} 替換為收件人資料

package merge

import (
	"regexp"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{([^{}]+)\}`)

// Render 將範本中的 {key} 替換為 fields[key]
// 未知的變數保留原樣，替換後的值不會再次被解析
func Render(template string, fields map[string]string) string {
	if len(fields) == 0 || !strings.Contains(template, "{") {
		return template
	}

	var b strings.Builder
	b.Grow(len(template))

	for i := 0; i < len(template); {
		if template[i] != '{' {
			b.WriteByte(template[i])
			i++
			continue
		}

		end := strings.IndexByte(template[i+1:], '}')
		if end < 0 {
			b.WriteString(template[i:])
			break
		}

		key := template[i+1 : i+1+end]
		if value, ok := fields[key]; ok && !strings.Contains(key, "{") {
			b.WriteString(value)
			i += end + 2
			continue
		}

		b.WriteByte('{')
		i++
	}

	return b.String()
}

// Placeholders 回傳範本中出現的變數名稱 (依首次出現順序，不重複)
func Placeholders(template string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(template, -1)
	seen := make(map[string]bool, len(matches))
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		if seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		names = append(names, m[1])
	}
	return names
}

// Missing 回傳範本中沒有對應欄位的變數
func Missing(template string, fields map[string]string) []string {
	var missing []string
	for _, name := range Placeholders(template) {
		if _, ok := fields[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// QuickTestFields 無收件人表格時的欄位對應
// 名稱空白時以收件地址代替
func QuickTestFields(email, name string) map[string]string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = strings.TrimSpace(email)
	}
	return map[string]string{"Name": name}
}

// Variables 將欄位名稱轉為 {欄位} 形式，供介面列出可用變數
func Variables(columns []string) []string {
	vars := make([]string, len(columns))
	for i, c := range columns {
		vars[i] = "{" + c + "}"
	}
	return vars
}
