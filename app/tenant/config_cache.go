package tenant

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// ConfigCache is a read-through cache of tenant configurations keyed by
// tenant id. Admin edits to the underlying files become visible through the
// explicit Invalidate hook, never by ambient mutation.
type ConfigCache struct {
	tenantsDir string
	cache      map[string]*Config
	mu         sync.RWMutex
}

func NewConfigCache(tenantsDir string) *ConfigCache {
	return &ConfigCache{
		tenantsDir: tenantsDir,
		cache:      make(map[string]*Config),
	}
}

func (cc *ConfigCache) Run() error {
	if _, err := os.Stat(cc.tenantsDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(cc.tenantsDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		fileName := filepath.Base(file)
		tenantID := fileName[:len(fileName)-4] // Remove .yml extension

		config, err := cc.LoadConfig(tenantID)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Tenant configuration loaded", "tenant", tenantID, "enforce_tiers", config.Settings.EnforceTiers, "video_limit", config.Settings.VideoLimit)
	}

	return nil
}

func (cc *ConfigCache) LoadConfig(tenantID string) (*Config, error) {
	configFile := cc.getConfigFilePath(tenantID)
	config, err := cc.parseConfig(configFile)
	if err != nil {
		return nil, err
	}

	config.ID = tenantID

	if err := cc.validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFile, err)
	}

	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.cache[config.ID] = config

	return config, nil
}

// GetConfig returns the cached configuration, reading through to disk the
// first time a tenant is requested.
func (cc *ConfigCache) GetConfig(tenantID string) (*Config, error) {
	cc.mu.RLock()
	config, ok := cc.cache[tenantID]
	cc.mu.RUnlock()
	if ok {
		return config, nil
	}

	config, err := cc.LoadConfig(tenantID)
	if err != nil {
		return nil, fmt.Errorf("tenant config '%s' not found: %w", tenantID, err)
	}
	return config, nil
}

func (cc *ConfigCache) GetConfigs() map[string]*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	configsCopy := make(map[string]*Config, len(cc.cache))
	for k, v := range cc.cache {
		configsCopy[k] = v
	}
	return configsCopy
}

func (cc *ConfigCache) GetConfigCount() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.cache)
}

// Invalidate drops the cached entry and reloads it from disk. Returns the
// fresh configuration, or an error if the tenant file has gone away.
func (cc *ConfigCache) Invalidate(tenantID string) (*Config, error) {
	cc.mu.Lock()
	delete(cc.cache, tenantID)
	cc.mu.Unlock()

	return cc.LoadConfig(tenantID)
}

func (cc *ConfigCache) parseConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if config.Settings.VideoLimit == 0 {
		config.Settings.VideoLimit = 500
	}
	if config.Settings.RefreshInterval == 0 {
		config.Settings.RefreshInterval = 3600
	}
	if config.Settings.Timeout == 0 {
		config.Settings.Timeout = 30
	}

	return &config, nil
}

func (cc *ConfigCache) validateConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("config is nil")
	}
	if config.Name == "" {
		return fmt.Errorf("tenant name is required")
	}

	nonNegativeFields := map[string]int{
		"video limit":      config.Settings.VideoLimit,
		"refresh interval": config.Settings.RefreshInterval,
		"timeout":          config.Settings.Timeout,
	}
	for fieldName, fieldValue := range nonNegativeFields {
		if fieldValue < 0 {
			return fmt.Errorf("%s must be non-negative", fieldName)
		}
	}

	return nil
}

func (cc *ConfigCache) getConfigFilePath(tenantID string) string {
	return filepath.Join(cc.tenantsDir, tenantID+".yml")
}
