package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_RegionsYAML(t *testing.T) {
	cfg, err := Load("../../configs/regions.yaml")
	if err != nil {
		t.Fatalf("load regions.yaml: %v", err)
	}
	if len(cfg.Worlds) != 2 {
		t.Fatalf("expected two worlds, got %d", len(cfg.Worlds))
	}
	if cfg.Worlds[1].Name != "world_nether" || cfg.Worlds[1].MaxHeight != 128 {
		t.Fatalf("unexpected nether spec: %+v", cfg.Worlds[1])
	}
	if !cfg.Claims.Enabled || !cfg.Lands.Enabled || !cfg.Variables.DropStale {
		t.Fatalf("unexpected backend flags: %+v", cfg)
	}
	if len(cfg.WorldIDs()) != 2 {
		t.Fatalf("WorldIDs: %v", cfg.WorldIDs())
	}
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	if cfg.Server.MetricsPath != "/metrics" {
		t.Fatalf("metrics path: %q", cfg.Server.MetricsPath)
	}
}

func TestNormalize_FillsHeightAndPaths(t *testing.T) {
	cfg := Config{
		Worlds: []WorldSpec{{ID: " 7F0C1A52-3F6E-4C55-9D6B-2A51F3C0E001 ", Name: " w "}},
		Lands:  LandsSpec{Enabled: true},
		Server: ServerSpec{MetricsPath: "m"},
	}
	cfg.Normalize()
	if cfg.Worlds[0].MaxHeight != 256 || cfg.Worlds[0].Name != "w" || strings.ToLower(cfg.Worlds[0].ID) != cfg.Worlds[0].ID {
		t.Fatalf("unexpected world: %+v", cfg.Worlds[0])
	}
	if cfg.Server.MetricsPath != "/m" {
		t.Fatalf("metrics path: %q", cfg.Server.MetricsPath)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidate_Rejects(t *testing.T) {
	ok := WorldSpec{ID: "7f0c1a52-3f6e-4c55-9d6b-2a51f3c0e001", Name: "a", MaxHeight: 64}
	cases := map[string]Config{
		"no worlds":   {Lands: LandsSpec{Enabled: true}},
		"bad id":      {Worlds: []WorldSpec{{ID: "overworld", Name: "a"}}, Lands: LandsSpec{Enabled: true}},
		"dup id":      {Worlds: []WorldSpec{ok, {ID: ok.ID, Name: "b"}}, Lands: LandsSpec{Enabled: true}},
		"dup name":    {Worlds: []WorldSpec{ok, {ID: "7f0c1a52-3f6e-4c55-9d6b-2a51f3c0e002", Name: "A"}}, Lands: LandsSpec{Enabled: true}},
		"neg height":  {Worlds: []WorldSpec{{ID: ok.ID, Name: "a", MaxHeight: -1}}, Lands: LandsSpec{Enabled: true}},
		"no db path":  {Worlds: []WorldSpec{ok}, Claims: ClaimsSpec{Enabled: true}},
		"no backends": {Worlds: []WorldSpec{ok}},
	}
	for name, cfg := range cases {
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoad_PrefixesErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regions.yaml")
	if err := os.WriteFile(path, []byte("worlds: []\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := Load(path)
	if err == nil || !strings.HasPrefix(err.Error(), "regions.yaml: ") {
		t.Fatalf("expected prefixed error, got %v", err)
	}
}
