// Package tuning reads forge.yaml, the server and tooling configuration.
package tuning

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"alloyforge.ai/internal/display"
)

type Tuning struct {
	Server       Server       `yaml:"server"`
	ConfigDir    string       `yaml:"config_dir"`
	DataDir      string       `yaml:"data_dir"`
	DisplayCache DisplayCache `yaml:"display_cache"`
	Smelting     Smelting     `yaml:"smelting"`
	Sync         Sync         `yaml:"sync"`
}

type Server struct {
	Addr string `yaml:"addr"`
}

type DisplayCache struct {
	Path     string `yaml:"path"`
	Disabled bool   `yaml:"disabled"`
}

type Smelting struct {
	BaseFuelPerTick    int `yaml:"base_fuel_per_tick"`
	ReferenceCookTicks int `yaml:"reference_cook_ticks"`
}

type Sync struct {
	WriteTimeoutMs int `yaml:"write_timeout_ms"`
	// MaxRecipes caps how many recipes one sync session streams. Zero means
	// no cap.
	MaxRecipes int `yaml:"max_recipes"`
}

// Load reads path over the defaults. An empty path yields the defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	if strings.TrimSpace(path) == "" {
		t.Normalize()
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("forge.yaml: %w", err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("forge.yaml: %w", err)
	}
	return t, nil
}

func Defaults() Tuning {
	f := display.DefaultFuelModel()
	return Tuning{
		Server:    Server{Addr: ":8080"},
		ConfigDir: "./configs",
		DataDir:   "./data",
		Smelting: Smelting{
			BaseFuelPerTick:    f.BaseFuelPerTick,
			ReferenceCookTicks: f.ReferenceCookTicks,
		},
		Sync: Sync{WriteTimeoutMs: 2000},
	}
}

// Normalize fills derived fields left empty by the file.
func (t *Tuning) Normalize() {
	if t == nil {
		return
	}
	t.Server.Addr = strings.TrimSpace(t.Server.Addr)
	if t.Server.Addr == "" {
		t.Server.Addr = ":8080"
	}
	if strings.TrimSpace(t.DataDir) == "" {
		t.DataDir = "./data"
	}
	if strings.TrimSpace(t.DisplayCache.Path) == "" {
		t.DisplayCache.Path = filepath.Join(t.DataDir, "index", "displays.sqlite")
	}
	if t.Sync.WriteTimeoutMs == 0 {
		t.Sync.WriteTimeoutMs = 2000
	}
}

func (t Tuning) Validate() error {
	if strings.TrimSpace(t.ConfigDir) == "" {
		return fmt.Errorf("config_dir must not be empty")
	}
	if t.Smelting.BaseFuelPerTick < 0 {
		return fmt.Errorf("smelting.base_fuel_per_tick must be >= 0")
	}
	if t.Smelting.ReferenceCookTicks <= 0 {
		return fmt.Errorf("smelting.reference_cook_ticks must be > 0")
	}
	if t.Sync.WriteTimeoutMs < 0 {
		return fmt.Errorf("sync.write_timeout_ms must be >= 0")
	}
	if t.Sync.MaxRecipes < 0 {
		return fmt.Errorf("sync.max_recipes must be >= 0")
	}
	return nil
}

func (t Tuning) FuelModel() display.FuelModel {
	return display.FuelModel{
		BaseFuelPerTick:    t.Smelting.BaseFuelPerTick,
		ReferenceCookTicks: t.Smelting.ReferenceCookTicks,
	}
}

func (t Tuning) WriteTimeout() time.Duration {
	return time.Duration(t.Sync.WriteTimeoutMs) * time.Millisecond
}
