package tenant

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTenantFile(t *testing.T, dir, tenantID, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, tenantID+".yml"), []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write tenant file: %v", err)
	}
}

func TestConfigCache_Run(t *testing.T) {
	dir := t.TempDir()
	writeTenantFile(t, dir, "site-a", `
name: Site A
settings:
  enforce_tiers: true
  video_limit: 100
  force_lowercase_tags: true
`)
	writeTenantFile(t, dir, "site-b", `
name: Site B
`)

	cc := NewConfigCache(dir)
	if err := cc.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if cc.GetConfigCount() != 2 {
		t.Errorf("Expected 2 configs, got %d", cc.GetConfigCount())
	}

	config, err := cc.GetConfig("site-a")
	if err != nil {
		t.Fatalf("GetConfig failed: %v", err)
	}
	if config.Name != "Site A" {
		t.Errorf("Expected name 'Site A', got '%s'", config.Name)
	}
	if !config.Settings.EnforceTiers {
		t.Error("Expected enforce_tiers to be true")
	}
	if config.Settings.VideoLimit != 100 {
		t.Errorf("Expected video limit 100, got %d", config.Settings.VideoLimit)
	}
	if !config.Settings.ForceLowercaseTags {
		t.Error("Expected force_lowercase_tags to be true")
	}

	// Defaults applied for the sparse config.
	config, err = cc.GetConfig("site-b")
	if err != nil {
		t.Fatalf("GetConfig failed: %v", err)
	}
	if config.Settings.VideoLimit != 500 {
		t.Errorf("Expected default video limit 500, got %d", config.Settings.VideoLimit)
	}
	if config.Settings.Timeout != 30 {
		t.Errorf("Expected default timeout 30, got %d", config.Settings.Timeout)
	}
}

func TestConfigCache_ReadThrough(t *testing.T) {
	dir := t.TempDir()
	cc := NewConfigCache(dir)
	if err := cc.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// File added after startup is found on first request.
	writeTenantFile(t, dir, "late", `
name: Late Tenant
`)
	config, err := cc.GetConfig("late")
	if err != nil {
		t.Fatalf("Read-through failed: %v", err)
	}
	if config.Name != "Late Tenant" {
		t.Errorf("Expected name 'Late Tenant', got '%s'", config.Name)
	}

	if _, err := cc.GetConfig("missing"); err == nil {
		t.Error("Expected error for unknown tenant")
	}
}

func TestConfigCache_Invalidate(t *testing.T) {
	dir := t.TempDir()
	writeTenantFile(t, dir, "site", `
name: Before
settings:
  video_limit: 10
`)

	cc := NewConfigCache(dir)
	if _, err := cc.GetConfig("site"); err != nil {
		t.Fatalf("GetConfig failed: %v", err)
	}

	// An edit is invisible until the cache is explicitly invalidated.
	writeTenantFile(t, dir, "site", `
name: After
settings:
  video_limit: 20
`)
	config, err := cc.GetConfig("site")
	if err != nil {
		t.Fatalf("GetConfig failed: %v", err)
	}
	if config.Name != "Before" {
		t.Errorf("Expected cached name 'Before', got '%s'", config.Name)
	}

	config, err = cc.Invalidate("site")
	if err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	if config.Name != "After" {
		t.Errorf("Expected reloaded name 'After', got '%s'", config.Name)
	}
	if config.Settings.VideoLimit != 20 {
		t.Errorf("Expected reloaded video limit 20, got %d", config.Settings.VideoLimit)
	}
}

func TestConfigCache_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	writeTenantFile(t, dir, "broken", `
settings:
  video_limit: -1
`)

	cc := NewConfigCache(dir)
	if err := cc.Run(); err == nil {
		t.Error("Expected error for config without a name")
	}
}
