package trafficviz

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trafficviz.yaml")
	content := `
database: ./simulation.sqlite
simulation_id: 3
max_density: auto
density_quantile: 0.9
hit_threshold_px: 12
highway_markers: [autobahn]
fps: 25
viewport:
  width: 640
server:
  addr: ":9090"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Database != "./simulation.sqlite" || cfg.SimulationID == nil || *cfg.SimulationID != 3 {
		t.Errorf("Database settings are wrong: '%s' / %v", cfg.Database, cfg.SimulationID)
	}
	if !cfg.MaxDensity.Auto {
		t.Errorf("Max density must be automatic")
	}
	if cfg.HitThreshold != 12 || cfg.FPS != 25 || cfg.Server.Addr != ":9090" {
		t.Errorf("Settings are wrong: %+v", cfg)
	}
	// keys not mentioned keep defaults
	if cfg.Viewport.Width != 640 || cfg.Viewport.Height != DEFAULT_HEIGHT {
		t.Errorf("Viewport must be 640x%d, but got %dx%d", DEFAULT_HEIGHT, cfg.Viewport.Width, cfg.Viewport.Height)
	}
	if cfg.ReferenceZoom != DEFAULT_REFERENCE_ZOOM || !cfg.SpatialIndex {
		t.Errorf("Defaults must be kept: %+v", cfg)
	}
	if len(cfg.HighwayMarkers) != 1 || cfg.HighwayMarkers[0] != "autobahn" {
		t.Errorf("Highway markers must be [autobahn], but got %v", cfg.HighwayMarkers)
	}
}

func TestLoadConfigMissing(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MaxDensity.Value != DEFAULT_MAX_DENSITY || cfg.FPS != DEFAULT_FPS {
		t.Errorf("Missing config must give defaults, but got %+v", cfg)
	}
}

func TestConfigValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("max_density: -5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Errorf("Negative max density must be rejected")
	}
	if err := os.WriteFile(path, []byte("max_density: lots\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Errorf("Bad max density must be rejected")
	}
	cfg := DefaultConfig()
	cfg.FPS = 0
	if err := cfg.Validate(); err == nil {
		t.Errorf("Zero fps must be rejected")
	}
}

func TestMaxDensitySetting(t *testing.T) {
	var setting MaxDensitySetting
	if err := setting.Set("150"); err != nil {
		t.Error(err)
	}
	if setting.Auto || setting.Value != 150 || setting.String() != "150" {
		t.Errorf("Setting must be 150, but got %s", setting.String())
	}
	if err := setting.Set("AUTO"); err != nil {
		t.Error(err)
	}
	if !setting.Auto || setting.String() != "auto" {
		t.Errorf("Setting must be auto, but got %s", setting.String())
	}
	samples := []DensitySample{{Densities: []float64{10, 20, 30, 40}}}
	if max := setting.Resolve(samples, 1); max != 40 {
		t.Errorf("Resolved ceiling must be %f, but got %f", 40.0, max)
	}
}

func TestLayerOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxDensity = MaxDensitySetting{Value: 80}
	cfg.HitThreshold = 4
	layer := NewEdgeLayer([]Edge{horizontalEdge(1, 100)}, cfg.LayerOptions(nil)...)
	if layer.Scale().Max != 80 {
		t.Errorf("Max density must be %f, but got %f", 80.0, layer.Scale().Max)
	}
	layer.SetViewport(testViewport)
	if _, ok := layer.HitTest(orb.Point{100, 105}); ok {
		t.Errorf("Hit threshold from config must be applied")
	}
}
