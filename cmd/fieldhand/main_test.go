package main

import "testing"

func TestBuildRootCmd(t *testing.T) {
	cmd := buildRootCmd()
	if cmd.Use != "fieldhand" {
		t.Errorf("use = %q", cmd.Use)
	}

	names := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	if !names["serve"] {
		t.Error("serve subcommand missing")
	}
	if !names["version"] {
		t.Error("version subcommand missing")
	}
}

func TestLoadConfig_DefaultPathFallsBack(t *testing.T) {
	cfg, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.HTTPPort != 8080 {
		t.Errorf("http port = %d", cfg.Server.HTTPPort)
	}
}

func TestLoadConfig_ExplicitMissingPathErrors(t *testing.T) {
	if _, err := loadConfig("/nonexistent/custom.yaml"); err == nil {
		t.Error("expected error for missing explicit config")
	}
}
