package config

import (
	"os"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Host != DefaultHost {
		t.Errorf("expected default host %s, got %s", DefaultHost, cfg.Server.Host)
	}
	if cfg.Server.Port != DefaultPort {
		t.Errorf("expected default port %d, got %d", DefaultPort, cfg.Server.Port)
	}
	if cfg.Pools.DefaultCooldownSeconds != 30 {
		t.Errorf("expected default cooldown 30s, got %d", cfg.Pools.DefaultCooldownSeconds)
	}
	if cfg.Pools.MaxRetriesPerProvider != 3 {
		t.Errorf("expected default max retries 3, got %d", cfg.Pools.MaxRetriesPerProvider)
	}
	if cfg.Pools.MaxLogsCount != 10000 {
		t.Errorf("expected default max logs count 10000, got %d", cfg.Pools.MaxLogsCount)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected default log level info, got %s", cfg.Logging.Level)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(cwd)

	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("expected Load to succeed with defaults when no config file is present, got %v", err)
	}
	if cfg.Server.Port != DefaultPort {
		t.Errorf("expected fallback to default port, got %d", cfg.Server.Port)
	}
}

func TestLoad_EnvOverridesHost(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(cwd)
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	os.Setenv("HOST", "127.0.0.1")
	defer os.Unsetenv("HOST")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("expected HOST env override to apply, got %s", cfg.Server.Host)
	}
}

func TestLoad_EnvOverridesVirtualModelNames(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(cwd)
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	os.Setenv("VIRTUAL_MODEL_TOOL", "custom-haiku")
	defer os.Unsetenv("VIRTUAL_MODEL_TOOL")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Pools.VirtualModelTool != "custom-haiku" {
		t.Errorf("expected VIRTUAL_MODEL_TOOL override to apply, got %s", cfg.Pools.VirtualModelTool)
	}
}

func TestProviderConfig_Fields(t *testing.T) {
	p := ProviderConfig{
		Name:    "anthropic-primary",
		BaseURL: "https://api.anthropic.com",
		Format:  "anthropic",
		Endpoints: []EndpointConfig{
			{ModelID: "claude-opus-4", Pool: "advanced", Weight: 3, Enabled: true},
		},
	}

	if len(p.Endpoints) != 1 {
		t.Fatalf("expected one endpoint, got %d", len(p.Endpoints))
	}
	if p.Endpoints[0].Pool != "advanced" {
		t.Errorf("expected pool advanced, got %s", p.Endpoints[0].Pool)
	}
}
