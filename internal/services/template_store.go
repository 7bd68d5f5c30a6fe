// internal/services/template_store.go
// 範本儲存 - 名稱對應 {subject, body} 的 JSON 檔

package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"mail-merge/internal/models"
)

// TemplateStore 範本儲存
// 每次操作都重新讀檔，寫入時以暫存檔取代原檔
type TemplateStore struct {
	path   string
	logger *zap.Logger
	mu     sync.Mutex
}

// NewTemplateStore 建立範本儲存
func NewTemplateStore(path string, logger *zap.Logger) *TemplateStore {
	return &TemplateStore{
		path:   path,
		logger: logger,
	}
}

// List 取得所有範本
// 檔案不存在或內容毀損時回傳空集合
func (s *TemplateStore) List() map[string]models.Template {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Names 取得排序後的範本名稱
func (s *TemplateStore) Names() []string {
	templates := s.List()
	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get 取得單一範本
func (s *TemplateStore) Get(name string) (models.Template, bool) {
	t, ok := s.List()[name]
	return t, ok
}

// Save 新增或覆寫範本
func (s *TemplateStore) Save(name string, t models.Template) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.NewValidationError("name", "template name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	templates := s.load()
	templates[name] = t
	if err := s.write(templates); err != nil {
		return err
	}

	s.logger.Info("Template saved", zap.String("name", name))
	return nil
}

// Delete 刪除範本，名稱不存在時不做任何事
func (s *TemplateStore) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	templates := s.load()
	if _, ok := templates[name]; !ok {
		return nil
	}
	delete(templates, name)
	if err := s.write(templates); err != nil {
		return err
	}

	s.logger.Info("Template deleted", zap.String("name", name))
	return nil
}

func (s *TemplateStore) load() map[string]models.Template {
	templates := make(map[string]models.Template)

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("Failed to read templates file", zap.String("path", s.path), zap.Error(err))
		}
		return templates
	}

	if err := json.Unmarshal(data, &templates); err != nil {
		s.logger.Warn("Templates file is corrupt, starting empty", zap.String("path", s.path), zap.Error(err))
		return make(map[string]models.Template)
	}
	return templates
}

func (s *TemplateStore) write(templates map[string]models.Template) error {
	data, err := json.MarshalIndent(templates, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal templates: %w", err)
	}
	return writeFileAtomic(s.path, data)
}

// writeFileAtomic 先寫入同目錄的暫存檔再改名
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to set file mode: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
