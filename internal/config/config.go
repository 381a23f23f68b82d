// Package config loads the analyzer configuration: which hosted models to
// call, their credentials, and the defaults used by the renderer and the
// optional second-opinion and strip-reading stages.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Slot names of the hosted detection models, in reporting order.
const (
	ECGDetection        = "ECG Detection"
	ArrhythmiaDetection = "Arrhythmia Detection"
	Model7n51b          = "Model 7n51b"
	ModelVBBKZ          = "Model VBBKZ"
)

// MaxEndpoints is the number of detection slots a batch holds.
const MaxEndpoints = 4

// Environment variables that override values from the config file.
const (
	EnvRoboflowKey = "ROBOFLOW_API_KEY"
	EnvGeminiKey   = "GEMINI_API_KEY"
	EnvHTTPAddr    = "ECG_MCP_HTTP_ADDR"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultCanvasWidth  = 400
	defaultCanvasHeight = 300
	defaultMaxCanvas    = 4096 * 4096
	defaultGeminiModel  = "gemini-2.5-pro-preview"
	defaultOCRLanguage  = "eng"
	defaultMaxUpload    = 20 << 20
)

// Endpoint is one named hosted model. An endpoint without a URL is known but
// not yet configured; it is reported as skipped rather than called.
type Endpoint struct {
	Name   string `yaml:"name" json:"name"`
	URL    string `yaml:"url" json:"url"`
	APIKey string `yaml:"api_key,omitempty" json:"-"`
}

// Configured reports whether the endpoint can be called.
func (e Endpoint) Configured() bool {
	return e.URL != ""
}

// Roboflow groups the hosted detection models.
type Roboflow struct {
	// APIKey is shared by endpoints that do not set their own.
	APIKey    string        `yaml:"api_key,omitempty"`
	Timeout   time.Duration `yaml:"timeout"`
	Endpoints []Endpoint    `yaml:"endpoints"`
}

// KeyFor returns the API key used for an endpoint.
func (r Roboflow) KeyFor(e Endpoint) string {
	if e.APIKey != "" {
		return e.APIKey
	}
	return r.APIKey
}

// Gemini configures the generative second opinion. It is disabled when no
// API key is set.
type Gemini struct {
	APIKey  string        `yaml:"api_key,omitempty"`
	Model   string        `yaml:"model"`
	BaseURL string        `yaml:"base_url,omitempty"` // API host, e.g. https://proxy.example
	Timeout time.Duration `yaml:"timeout"`
}

// Enabled reports whether second opinions can be requested.
func (g Gemini) Enabled() bool {
	return g.APIKey != ""
}

// Render holds the annotation canvas defaults.
type Render struct {
	CanvasWidth  int `yaml:"canvas_width"`
	CanvasHeight int `yaml:"canvas_height"`

	// MaxCanvasPixels caps width*height of caller-requested canvases.
	MaxCanvasPixels int `yaml:"max_canvas_pixels"`
}

// OCR configures printed strip text extraction.
type OCR struct {
	Enabled  bool   `yaml:"enabled"`
	Language string `yaml:"language"`
}

// HTTP configures the optional upload surface.
type HTTP struct {
	Addr           string `yaml:"addr,omitempty"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

// Config is the complete analyzer configuration.
type Config struct {
	Roboflow Roboflow `yaml:"roboflow"`
	Gemini   Gemini   `yaml:"gemini"`
	Render   Render   `yaml:"render"`
	OCR      OCR      `yaml:"ocr"`
	HTTP     HTTP     `yaml:"http"`
}

// Default returns the built-in configuration. The two public detection
// models have known URLs; the classification models must be configured
// before they are called.
func Default() *Config {
	return &Config{
		Roboflow: Roboflow{
			Timeout: defaultTimeout,
			Endpoints: []Endpoint{
				{Name: ECGDetection, URL: "https://serverless.roboflow.com/ecg-detection/3"},
				{Name: ArrhythmiaDetection, URL: "https://serverless.roboflow.com/arrhythmia_detection/1"},
				{Name: Model7n51b},
				{Name: ModelVBBKZ},
			},
		},
		Gemini: Gemini{
			Model:   defaultGeminiModel,
			Timeout: defaultTimeout,
		},
		Render: Render{
			CanvasWidth:     defaultCanvasWidth,
			CanvasHeight:    defaultCanvasHeight,
			MaxCanvasPixels: defaultMaxCanvas,
		},
		OCR: OCR{
			Enabled:  true,
			Language: defaultOCRLanguage,
		},
		HTTP: HTTP{
			MaxUploadBytes: defaultMaxUpload,
		},
	}
}

// Load reads a YAML config file on top of the defaults and applies
// environment overrides. An empty path loads defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides credentials and the HTTP address from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvRoboflowKey); v != "" {
		c.Roboflow.APIKey = v
	}
	if v := getenv(EnvGeminiKey); v != "" {
		c.Gemini.APIKey = v
	}
	if v := getenv(EnvHTTPAddr); v != "" {
		c.HTTP.Addr = v
	}
}

// Validate rejects configurations that cannot produce a well-formed batch.
func (c *Config) Validate() error {
	var errs []error
	if n := len(c.Roboflow.Endpoints); n > MaxEndpoints {
		errs = append(errs, fmt.Errorf("config: %d endpoints configured, at most %d allowed", n, MaxEndpoints))
	}
	seen := make(map[string]bool, len(c.Roboflow.Endpoints))
	for i, e := range c.Roboflow.Endpoints {
		if e.Name == "" {
			errs = append(errs, fmt.Errorf("config: endpoint %d has no name", i))
			continue
		}
		if seen[e.Name] {
			errs = append(errs, fmt.Errorf("config: duplicate endpoint %q", e.Name))
		}
		seen[e.Name] = true
	}
	if c.Roboflow.Timeout <= 0 {
		errs = append(errs, errors.New("config: roboflow timeout must be positive"))
	}
	if c.Gemini.Timeout <= 0 {
		errs = append(errs, errors.New("config: gemini timeout must be positive"))
	}
	if c.Render.CanvasWidth <= 0 || c.Render.CanvasHeight <= 0 {
		errs = append(errs, errors.New("config: canvas size must be positive"))
	}
	if c.Render.MaxCanvasPixels <= 0 {
		errs = append(errs, errors.New("config: max canvas pixels must be positive"))
	} else if c.Render.CanvasWidth > 0 && c.Render.CanvasHeight > c.Render.MaxCanvasPixels/c.Render.CanvasWidth {
		errs = append(errs, fmt.Errorf("config: default canvas %dx%d exceeds %d pixels",
			c.Render.CanvasWidth, c.Render.CanvasHeight, c.Render.MaxCanvasPixels))
	}
	if c.HTTP.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("config: max upload size must be positive"))
	}
	return errors.Join(errs...)
}
