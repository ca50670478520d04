package config

import (
	"context"
	"log"
	"path/filepath"
	"slices"
	"sync"

	"github.com/fsnotify/fsnotify"
)

type Manager struct {
	path string

	mu       sync.RWMutex
	config   *Config
	onReload []func(*Config)

	watcher *fsnotify.Watcher
	wg      sync.WaitGroup
}

// NewManager loads the config at path (GetConfigPath when empty), using
// defaults when the file does not exist
func NewManager(path string) (*Manager, error) {
	log.Printf("Config manager: initializing configuration system...")

	if path == "" {
		p, err := GetConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	config, err := LoadOrDefault(path)
	if err != nil {
		log.Printf("Config manager: failed to load initial configuration: %v", err)
		return nil, err
	}

	log.Printf("Config manager: validating initial configuration...")
	if err := config.Validate(); err != nil {
		log.Printf("Config manager: invalid configuration: %v", err)
		return nil, err
	}

	log.Printf("Config manager: initialization completed successfully")
	return &Manager{path: path, config: config}, nil
}

func (m *Manager) Path() string {
	return m.path
}

func (m *Manager) GetConfig() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.config.clone()
}

// OnReload registers fn to receive every successfully reloaded config
func (m *Manager) OnReload(fn func(*Config)) {
	m.mu.Lock()
	m.onReload = append(m.onReload, fn)
	m.mu.Unlock()
}

func (m *Manager) StartWatching(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	m.watcher = watcher

	// watch the directory so editors that replace the file are seen
	if err := watcher.Add(filepath.Dir(m.path)); err != nil {
		watcher.Close()
		return err
	}

	m.wg.Add(1)
	go m.watchLoop(ctx)

	log.Printf("Config manager: watching %s for changes", m.path)
	return nil
}

func (m *Manager) Stop() {
	if m.watcher != nil {
		m.watcher.Close()
	}
	m.wg.Wait()
}

func (m *Manager) watchLoop(ctx context.Context) {
	defer m.wg.Done()
	configFileName := filepath.Base(m.path)

	for {
		select {
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}

			if filepath.Base(event.Name) != configFileName {
				continue
			}

			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				log.Printf("Config manager: file change detected: %s. Reloading config...", event.Name)
				m.reloadConfig()
			}

		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Config watcher error: %v", err)

		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) reloadConfig() {
	log.Printf("Config manager: starting configuration reload...")

	newConfig, err := Load(m.path)
	if err != nil {
		log.Printf("Config manager: failed to reload config: %v", err)
		return
	}

	log.Printf("Config manager: validating new configuration...")
	if err := newConfig.Validate(); err != nil {
		log.Printf("Config manager: invalid config after reload: %v", err)
		return
	}

	m.mu.Lock()
	m.config = newConfig
	hooks := slices.Clone(m.onReload)
	m.mu.Unlock()

	for _, fn := range hooks {
		fn(newConfig.clone())
	}

	log.Printf("Config manager: configuration successfully reloaded")
}

func (c *Config) clone() *Config {
	cp := *c
	cp.Providers = make(map[string]ProviderConfig, len(c.Providers))
	for k, v := range c.Providers {
		cp.Providers[k] = v
	}
	cp.Server.AllowedOrigins = append([]string(nil), c.Server.AllowedOrigins...)
	cp.Knowledge.SeedFiles = append([]string(nil), c.Knowledge.SeedFiles...)
	return &cp
}
