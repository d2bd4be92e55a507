// Package config loads regions.yaml: the worlds the host exposes and the
// region backends regiond wires up.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Worlds    []WorldSpec   `yaml:"worlds"`
	Claims    ClaimsSpec    `yaml:"claims"`
	Lands     LandsSpec     `yaml:"lands"`
	Variables VariablesSpec `yaml:"variables"`
	Server    ServerSpec    `yaml:"server"`
}

type WorldSpec struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	MaxHeight int    `yaml:"max_height"`
}

type ClaimsSpec struct {
	Enabled bool   `yaml:"enabled"`
	DBPath  string `yaml:"db_path"`
}

type LandsSpec struct {
	Enabled bool `yaml:"enabled"`
	// Empty keeps lands in memory only.
	Dir string `yaml:"dir"`
}

type VariablesSpec struct {
	Path      string `yaml:"path"`
	DropStale bool   `yaml:"drop_stale"`
}

type ServerSpec struct {
	Addr        string `yaml:"addr"`
	MetricsPath string `yaml:"metrics_path"`
}

func Load(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("regions.yaml: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("regions.yaml: %w", err)
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		Worlds: []WorldSpec{
			{ID: "7f0c1a52-3f6e-4c55-9d6b-2a51f3c0e001", Name: "world", MaxHeight: 256},
		},
		Claims:    ClaimsSpec{Enabled: true, DBPath: "data/claims.db"},
		Lands:     LandsSpec{Enabled: true, Dir: "data/lands"},
		Variables: VariablesSpec{Path: "data/variables.jsonl.zst", DropStale: true},
		Server:    ServerSpec{Addr: ":8090", MetricsPath: "/metrics"},
	}
}

func (c *Config) Normalize() {
	if c == nil {
		return
	}
	for i := range c.Worlds {
		c.Worlds[i].ID = strings.ToLower(strings.TrimSpace(c.Worlds[i].ID))
		c.Worlds[i].Name = strings.TrimSpace(c.Worlds[i].Name)
		if c.Worlds[i].MaxHeight == 0 {
			c.Worlds[i].MaxHeight = 256
		}
	}
	if strings.TrimSpace(c.Server.MetricsPath) == "" {
		c.Server.MetricsPath = "/metrics"
	}
	if !strings.HasPrefix(c.Server.MetricsPath, "/") {
		c.Server.MetricsPath = "/" + c.Server.MetricsPath
	}
}

func (c Config) Validate() error {
	c.Normalize()
	if len(c.Worlds) == 0 {
		return fmt.Errorf("worlds must not be empty")
	}
	ids := map[string]bool{}
	names := map[string]bool{}
	for i, w := range c.Worlds {
		if _, err := uuid.Parse(w.ID); err != nil {
			return fmt.Errorf("worlds[%d] id %q: %w", i, w.ID, err)
		}
		if ids[w.ID] {
			return fmt.Errorf("duplicate world id: %s", w.ID)
		}
		ids[w.ID] = true
		if w.Name == "" {
			return fmt.Errorf("world %s name must not be empty", w.ID)
		}
		if names[strings.ToLower(w.Name)] {
			return fmt.Errorf("duplicate world name: %s", w.Name)
		}
		names[strings.ToLower(w.Name)] = true
		if w.MaxHeight <= 0 {
			return fmt.Errorf("world %s max_height must be > 0", w.Name)
		}
	}
	if c.Claims.Enabled && strings.TrimSpace(c.Claims.DBPath) == "" {
		return fmt.Errorf("claims.db_path must not be empty when claims are enabled")
	}
	if !c.Claims.Enabled && !c.Lands.Enabled {
		return fmt.Errorf("at least one of claims, lands must be enabled")
	}
	return nil
}

// WorldIDs returns the parsed ids keyed by world name. Call after Validate.
func (c Config) WorldIDs() map[string]uuid.UUID {
	out := make(map[string]uuid.UUID, len(c.Worlds))
	for _, w := range c.Worlds {
		out[w.Name] = uuid.MustParse(w.ID)
	}
	return out
}
