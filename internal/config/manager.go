package config

import (
	"os"
	"sync"
	"time"
)

// Manager 持有当前配置快照，并在配置文件发生变化时自动重新加载。
// 这允许在不重启服务的情况下轮换 Cookie 池和 API Key。
// 重新加载失败时保留上一个可用快照。
type Manager struct {
	path string

	mu        sync.RWMutex
	current   *AppConfig
	lastMtime time.Time
}

// NewManager 加载初始配置并返回一个 Manager。
func NewManager(path string) (*Manager, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	m := &Manager{path: path, current: cfg}
	if info, err := os.Stat(path); err == nil {
		m.lastMtime = info.ModTime()
	}
	return m, nil
}

// Current 返回当前配置快照，访问时按 mtime 检查是否需要重新加载。
func (m *Manager) Current() *AppConfig {
	m.reloadIfChanged()

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Cookies 返回当前的 Cookie 池快照。
func (m *Manager) Cookies() []string {
	return m.Current().Wavespeed.Cookies
}

// APIKey 返回当前生效的 API Key。
func (m *Manager) APIKey() string {
	return m.Current().Auth.APIKey
}

func (m *Manager) reloadIfChanged() {
	info, err := os.Stat(m.path)
	if err != nil {
		return
	}

	m.mu.RLock()
	changed := info.ModTime().After(m.lastMtime)
	m.mu.RUnlock()
	if !changed {
		return
	}

	cfg, err := LoadConfig(m.path)
	if err != nil {
		// 保留旧配置, 等待文件被修复后的下一次变更。
		return
	}

	m.mu.Lock()
	m.current = cfg
	m.lastMtime = info.ModTime()
	m.mu.Unlock()
}
