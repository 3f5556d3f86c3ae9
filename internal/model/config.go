package model

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Config holds all newsplaces settings
type Config struct {
	Input        InputConfig        `yaml:"input" mapstructure:"input"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
	LLM          LLMConfig          `yaml:"llm" mapstructure:"llm"`
	OCR          OCRConfig          `yaml:"ocr" mapstructure:"ocr"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Registry     RegistryConfig     `yaml:"registry" mapstructure:"registry"`
	Metrics      MetricsConfig      `yaml:"metrics" mapstructure:"metrics"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
}

// InputConfig points at the OCR table consumed by the extraction stage
type InputConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// OutputConfig controls where the result table is written
type OutputConfig struct {
	Path     string `yaml:"path" mapstructure:"path"`
	XLSXPath string `yaml:"xlsx_path,omitempty" mapstructure:"xlsx_path"` // Optional workbook mirror
	Verbose  bool   `yaml:"verbose" mapstructure:"verbose"`
}

// LLMConfig configures the extraction model
type LLMConfig struct {
	Provider   string `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama
	Model      string `yaml:"model" mapstructure:"model"`
	APIKey     string `yaml:"-" mapstructure:"api_key"` // Never written to disk
	BaseURL    string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout    int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens  int    `yaml:"max_tokens" mapstructure:"max_tokens"` // 0 = no cap (anthropic uses 8192)
	RepairJSON bool   `yaml:"repair_json" mapstructure:"repair_json"` // Try jsonrepair on unparseable responses

	// Proxy settings for provider calls; empty falls back to HTTP_PROXY etc.
	HTTPProxy  string `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy string `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy    string `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// OCRConfig configures the PDF to text stage
type OCRConfig struct {
	InputDir     string `yaml:"input_dir" mapstructure:"input_dir"`
	OutputPath   string `yaml:"output_path" mapstructure:"output_path"`
	Pdftoppm     string `yaml:"pdftoppm" mapstructure:"pdftoppm"`
	Tesseract    string `yaml:"tesseract" mapstructure:"tesseract"`
	Lang         string `yaml:"lang" mapstructure:"lang"`
	DPI          int    `yaml:"dpi" mapstructure:"dpi"`
	MaxPages     int    `yaml:"max_pages" mapstructure:"max_pages"` // 0 = no limit
	Workers      int    `yaml:"workers" mapstructure:"workers"`
	UseTextLayer bool   `yaml:"use_text_layer" mapstructure:"use_text_layer"`
}

// CacheConfig controls the completion cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// RateLimitingConfig throttles provider calls
type RateLimitingConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"` // 0 disables
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// RegistryConfig enables the durable place registry
type RegistryConfig struct {
	DBPath string `yaml:"db_path,omitempty" mapstructure:"db_path"` // Empty = ids reset every run
}

// MetricsConfig controls the Prometheus textfile dump
type MetricsConfig struct {
	File string `yaml:"file,omitempty" mapstructure:"file"`
}

// LogConfig controls slog output
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // text, json
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Input: InputConfig{
			Path: "ocr_results.csv",
		},
		Output: OutputConfig{
			Path: "places_activities.csv",
		},
		LLM: LLMConfig{
			Provider:  "openai",
			Model:     "gpt-4o-mini",
			Timeout:  60,
		},
		OCR: OCRConfig{
			InputDir:   "./column",
			OutputPath: "ocr_results.csv",
			Pdftoppm:   "pdftoppm",
			Tesseract:  "tesseract",
			Lang:       "eng",
			DPI:        300,
			Workers:    runtime.NumCPU(),
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       defaultCacheDir(),
			MemoryTTL: time.Hour,
			DiskTTL:   30 * 24 * time.Hour,
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 2,
			BurstSize:         1,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "newsplaces")
	}
	return filepath.Join(dir, "newsplaces")
}
