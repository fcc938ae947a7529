package trafficviz

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	DEFAULT_FPS         = 10.0
	DEFAULT_WIDTH       = 1280
	DEFAULT_HEIGHT      = 720
	DEFAULT_SERVER_ADDR = ":8080"
	DEFAULT_BITRATE     = "5M"
)

// MaxDensitySetting is either fixed color ceiling or "auto" (quantile of observed densities)
type MaxDensitySetting struct {
	Auto  bool
	Value float64
}

func (setting MaxDensitySetting) String() string {
	if setting.Auto {
		return "auto"
	}
	return strconv.FormatFloat(setting.Value, 'f', -1, 64)
}

// Set parses either "auto" or number. It makes setting usable as flag.Value
func (setting *MaxDensitySetting) Set(str string) error {
	str = strings.TrimSpace(str)
	if strings.EqualFold(str, "auto") {
		setting.Auto = true
		setting.Value = 0
		return nil
	}
	value, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return fmt.Errorf("max density should be a number or 'auto'. Got '%s'", str)
	}
	setting.Auto = false
	setting.Value = value
	return nil
}

func (setting *MaxDensitySetting) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	return setting.Set(raw)
}

func (setting MaxDensitySetting) MarshalYAML() (interface{}, error) {
	if setting.Auto {
		return "auto", nil
	}
	return setting.Value, nil
}

// Resolve returns ceiling for given samples
func (setting MaxDensitySetting) Resolve(samples []DensitySample, quantile float64) float64 {
	if setting.Auto {
		return AutoMaxDensity(samples, quantile)
	}
	return NewColorScale(setting.Value).Max
}

type ViewportConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type FFmpegConfig struct {
	Path    string `yaml:"path"`
	Bitrate string `yaml:"bitrate"`
}

// Config is settings of the viewer and its outputs
type Config struct {
	Database        string            `yaml:"database"`
	SimulationID    *int64            `yaml:"simulation_id"`
	MaxDensity      MaxDensitySetting `yaml:"max_density"`
	DensityQuantile float64           `yaml:"density_quantile"`
	ReferenceZoom   float64           `yaml:"reference_zoom"`
	HitThreshold    float64           `yaml:"hit_threshold_px"`
	HighwayMarkers  []string          `yaml:"highway_markers"`
	SpatialIndex    bool              `yaml:"spatial_index"`
	FPS             float64           `yaml:"fps"`
	Viewport        ViewportConfig    `yaml:"viewport"`
	Server          ServerConfig      `yaml:"server"`
	FFmpeg          FFmpegConfig      `yaml:"ffmpeg"`
	Verbose         bool              `yaml:"verbose"`
}

// DefaultConfig returns settings used when no config file provided
func DefaultConfig() Config {
	return Config{
		MaxDensity:      MaxDensitySetting{Value: DEFAULT_MAX_DENSITY},
		DensityQuantile: DEFAULT_DENSITY_QUANTILE,
		ReferenceZoom:   DEFAULT_REFERENCE_ZOOM,
		HitThreshold:    DEFAULT_HIT_THRESHOLD,
		HighwayMarkers:  append([]string{}, DEFAULT_HIGHWAY_MARKERS...),
		SpatialIndex:    true,
		FPS:             DEFAULT_FPS,
		Viewport:        ViewportConfig{Width: DEFAULT_WIDTH, Height: DEFAULT_HEIGHT},
		Server:          ServerConfig{Addr: DEFAULT_SERVER_ADDR},
		FFmpeg:          FFmpegConfig{Bitrate: DEFAULT_BITRATE},
	}
}

// LoadConfig reads YAML file on top of DefaultConfig. Missing file gives DefaultConfig
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, errors.Wrap(err, "Can't read config")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrap(err, "Can't parse config")
	}
	return cfg, cfg.Validate()
}

// Validate checks that settings are usable
func (cfg Config) Validate() error {
	if !cfg.MaxDensity.Auto && cfg.MaxDensity.Value <= 0 {
		return fmt.Errorf("max_density should be positive or 'auto'. Got %v", cfg.MaxDensity.Value)
	}
	if cfg.FPS <= 0 {
		return fmt.Errorf("fps should be positive. Got %v", cfg.FPS)
	}
	if cfg.HitThreshold <= 0 {
		return fmt.Errorf("hit_threshold_px should be positive. Got %v", cfg.HitThreshold)
	}
	if cfg.Viewport.Width <= 0 || cfg.Viewport.Height <= 0 {
		return fmt.Errorf("viewport should have positive size. Got %dx%d", cfg.Viewport.Width, cfg.Viewport.Height)
	}
	return nil
}

// LayerOptions turns settings into EdgeLayer options. Samples are needed for automatic ceiling only
func (cfg Config) LayerOptions(samples []DensitySample) []func(*EdgeLayer) {
	return []func(*EdgeLayer){
		WithMaxDensity(cfg.MaxDensity.Resolve(samples, cfg.DensityQuantile)),
		WithReferenceZoom(cfg.ReferenceZoom),
		WithHitThreshold(cfg.HitThreshold),
		WithHighwayMarkers(cfg.HighwayMarkers),
		WithSpatialIndex(cfg.SpatialIndex),
	}
}
