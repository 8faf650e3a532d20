package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/karavel-ai/compass/internal/classifier"
	"github.com/karavel-ai/compass/pkg/models"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Approval.Policy != "auto" {
		t.Errorf("expected default approval policy 'auto', got %q", cfg.Approval.Policy)
	}

	if cfg.Classifier.FastPathThreshold != 0.8 {
		t.Errorf("expected fast path threshold 0.8, got %v", cfg.Classifier.FastPathThreshold)
	}

	if cfg.Classifier.SlowPathTimeout != 30*time.Second {
		t.Errorf("expected slow path timeout 30s, got %v", cfg.Classifier.SlowPathTimeout)
	}

	if cfg.Storage.Scope != "global" {
		t.Errorf("expected storage scope 'global', got %q", cfg.Storage.Scope)
	}
}

func TestLoadFromPath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
anthropic:
  api_key: test-key
  model: claude-3-5-haiku-20241022
approval:
  policy: suspend
classifier:
  fast_path_threshold: 0.9
  slow_path_timeout: 10s
costs:
  base_costs:
    china_source: 0.75
  high_stakes:
    - china_source
storage:
  scope: project
logging:
  debug: true
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Anthropic.APIKey != "test-key" {
		t.Errorf("expected api_key 'test-key', got %q", cfg.Anthropic.APIKey)
	}

	if cfg.Approval.Policy != "suspend" {
		t.Errorf("expected approval policy 'suspend', got %q", cfg.Approval.Policy)
	}

	if cfg.Classifier.FastPathThreshold != 0.9 {
		t.Errorf("expected fast path threshold 0.9, got %v", cfg.Classifier.FastPathThreshold)
	}

	if cfg.Classifier.SlowPathTimeout != 10*time.Second {
		t.Errorf("expected slow path timeout 10s, got %v", cfg.Classifier.SlowPathTimeout)
	}

	if cfg.Costs.BaseCosts["china_source"] != 0.75 {
		t.Errorf("expected china_source base cost 0.75, got %v", cfg.Costs.BaseCosts["china_source"])
	}

	if cfg.Storage.Scope != "project" {
		t.Errorf("expected storage scope 'project', got %q", cfg.Storage.Scope)
	}

	if !cfg.Logging.Debug {
		t.Error("expected logging.debug to be true")
	}
}

func TestLoadFromPathFillsDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	// A minimal file must still yield a fully populated config.
	configContent := `
anthropic:
  api_key: test-key
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Approval.Policy != "auto" {
		t.Errorf("expected default approval policy 'auto', got %q", cfg.Approval.Policy)
	}
	if cfg.Classifier.FastPathThreshold != 0.8 {
		t.Errorf("expected default fast path threshold 0.8, got %v", cfg.Classifier.FastPathThreshold)
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("TEST_VAR", "expanded-value")

	result := expandEnv("${TEST_VAR}")
	if result != "expanded-value" {
		t.Errorf("expected 'expanded-value', got %q", result)
	}

	result = expandEnv("prefix-${TEST_VAR}-suffix")
	if result != "prefix-expanded-value-suffix" {
		t.Errorf("expected 'prefix-expanded-value-suffix', got %q", result)
	}
}

func TestGetUserConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")

	dir := getUserConfigDir()
	expected := "/custom/config/compass"
	if dir != expected {
		t.Errorf("expected %q, got %q", expected, dir)
	}
}

func TestLoadCatalogueNoFile(t *testing.T) {
	catalogue, err := LoadCatalogue(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadCatalogue failed: %v", err)
	}

	if !reflect.DeepEqual(catalogue, classifier.DefaultCatalogue) {
		t.Error("expected built-in catalogue when no override file exists")
	}
}

func TestLoadCatalogueOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	cataloguePath := filepath.Join(tmpDir, "capabilities.yaml")

	// Override only the keywords of one profile; everything else must
	// keep its built-in value.
	content := `
capabilities:
  - capability: china_source
    keywords:
      - taobao
      - dropship
`
	if err := os.WriteFile(cataloguePath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write catalogue file: %v", err)
	}

	catalogue, err := LoadCatalogue(cataloguePath)
	if err != nil {
		t.Fatalf("LoadCatalogue failed: %v", err)
	}

	if len(catalogue) != len(classifier.DefaultCatalogue) {
		t.Fatalf("expected %d profiles, got %d", len(classifier.DefaultCatalogue), len(catalogue))
	}

	var found bool
	for _, p := range catalogue {
		if p.Capability != models.CapabilityChinaSource {
			continue
		}
		found = true
		if !reflect.DeepEqual(p.Keywords, []string{"taobao", "dropship"}) {
			t.Errorf("expected overridden keywords, got %v", p.Keywords)
		}
		if p.Intent != models.IntentProductSourcing {
			t.Errorf("expected intent kept from built-in profile, got %q", p.Intent)
		}
		if p.BaseConfidence != 0.9 {
			t.Errorf("expected base confidence kept from built-in profile, got %v", p.BaseConfidence)
		}
	}
	if !found {
		t.Error("china_source profile missing from merged catalogue")
	}
}

func TestLoadCatalogueRejectsUnknownCapability(t *testing.T) {
	tmpDir := t.TempDir()
	cataloguePath := filepath.Join(tmpDir, "capabilities.yaml")

	content := `
capabilities:
  - capability: time_machine
    keywords: [yesterday]
`
	if err := os.WriteFile(cataloguePath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write catalogue file: %v", err)
	}

	if _, err := LoadCatalogue(cataloguePath); err == nil {
		t.Error("expected error for unknown capability")
	}
}
