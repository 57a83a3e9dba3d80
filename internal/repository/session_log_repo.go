package repository

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"Q-ITS-Mastery-Backend/internal/model"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// SessionLogRepository 按文件名读写会话日志，每个会话一个 JSON 文件
type SessionLogRepository struct {
	fs     afero.Fs
	dir    string
	mu     sync.RWMutex
	logger *zap.Logger
}

func NewSessionLogRepository(fs afero.Fs, dir string, logger *zap.Logger) (*SessionLogRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("创建日志目录 '%s' 失败: %w", dir, err)
	}
	logger.Info("会话日志仓库已初始化", zap.String("dir", dir))
	return &SessionLogRepository{fs: fs, dir: dir, logger: logger}, nil
}

func (r *SessionLogRepository) path(name string) string {
	return filepath.Join(r.dir, filepath.Base(name))
}

// Write 覆盖写入整份会话日志，中文保持原样不转义
func (r *SessionLogRepository) Write(name string, log *model.SessionLog) error {
	if log.SessionLog == nil {
		log.SessionLog = []model.SessionEntry{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(log); err != nil {
		r.logger.Error("序列化会话日志失败", zap.String("file", name), zap.Error(err))
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := afero.WriteFile(r.fs, r.path(name), buf.Bytes(), 0o644); err != nil {
		r.logger.Error("写入会话日志失败", zap.String("file", name), zap.Error(err))
		return err
	}
	r.logger.Debug("会话日志已写入", zap.String("file", name), zap.Int("entries", len(log.SessionLog)))
	return nil
}

func (r *SessionLogRepository) Read(name string) (*model.SessionLog, error) {
	r.mu.RLock()
	data, err := afero.ReadFile(r.fs, r.path(name))
	r.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	return DecodeSessionLog(data)
}

// List 返回目录下所有会话日志文件名，按名称排序即按时间排序
func (r *SessionLogRepository) List() ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos, err := afero.ReadDir(r.fs, r.dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, info := range infos {
		if !info.IsDir() && strings.HasSuffix(info.Name(), ".json") {
			names = append(names, info.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// DecodeSessionLog 解析会话日志文件内容
func DecodeSessionLog(data []byte) (*model.SessionLog, error) {
	var log model.SessionLog
	if err := json.Unmarshal(data, &log); err != nil {
		return nil, fmt.Errorf("解析会话日志失败: %w", err)
	}
	return &log, nil
}
