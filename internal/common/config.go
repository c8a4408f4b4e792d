package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/referral-intake/internal/resilience"
)

// Config holds all application configuration
type Config struct {
	Log     LogConfig         `yaml:"log"`
	Server  ServerConfig      `yaml:"server"`
	OCR     OCRConfig         `yaml:"ocr"`
	LLM     LLMConfig         `yaml:"llm"`
	Breaker resilience.Config `yaml:"breaker"`
	Scratch ScratchConfig     `yaml:"scratch"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr        string        `yaml:"http_addr"`
	GRPCAddr        string        `yaml:"grpc_addr"` // empty = no gRPC health server
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps"` // 0 = unlimited
	RateLimitBurst  int           `yaml:"rate_limit_burst"`
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Pdftoppm    string `yaml:"pdftoppm"`
	Pdfinfo     string `yaml:"pdfinfo"`
	Tesseract   string `yaml:"tesseract"`
	Lang        string `yaml:"lang"`
	TessdataDir string `yaml:"tessdata_dir"`
	DPI         int    `yaml:"dpi"`
	MaxPages    int    `yaml:"max_pages"`
	TempDir     string `yaml:"temp_dir"`
	Normalize   bool   `yaml:"normalize"`
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	Enabled      bool          `yaml:"enabled"`
	APIKey       string        `yaml:"api_key"`
	BaseURL      string        `yaml:"base_url"`
	Model        string        `yaml:"model"`
	Temperature  float32       `yaml:"temperature"`
	Timeout      time.Duration `yaml:"timeout"`
	StrictSchema bool          `yaml:"strict_schema"`
}

// ScratchConfig holds upload scratch storage configuration
type ScratchConfig struct {
	Dir string `yaml:"dir"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Server: ServerConfig{
			HTTPAddr:        ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    5 * time.Minute,
			ShutdownTimeout: 15 * time.Second,
			MaxUploadBytes:  25 << 20,
			RateLimitRPS:    2,
			RateLimitBurst:  5,
		},
		OCR: OCRConfig{
			Pdftoppm:  "pdftoppm",
			Pdfinfo:   "pdfinfo",
			Tesseract: "tesseract",
			Lang:      "eng",
			DPI:       300,
		},
		LLM: LLMConfig{
			Enabled:     true,
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o",
			Temperature: 0.2,
			Timeout:     60 * time.Second,
		},
		Breaker: resilience.DefaultConfig(),
		Scratch: ScratchConfig{Dir: "./tmp/uploads"},
	}
}

// LoadConfig builds configuration from defaults, an optional YAML file and the environment,
// in that order of precedence (environment wins). path may be empty.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)

	c.Server.HTTPAddr = getEnv("HTTP_ADDR", c.Server.HTTPAddr)
	c.Server.GRPCAddr = getEnv("GRPC_ADDR", c.Server.GRPCAddr)
	c.Server.ReadTimeout = getEnvAsDuration("HTTP_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvAsDuration("HTTP_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.ShutdownTimeout = getEnvAsDuration("SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	c.Server.MaxUploadBytes = getEnvAsInt64("MAX_UPLOAD_BYTES", c.Server.MaxUploadBytes)
	c.Server.RateLimitRPS = getEnvAsFloat64("RATE_LIMIT_RPS", c.Server.RateLimitRPS)
	c.Server.RateLimitBurst = getEnvAsInt("RATE_LIMIT_BURST", c.Server.RateLimitBurst)

	c.OCR.Pdftoppm = getEnv("PDFTOPPM_BIN", c.OCR.Pdftoppm)
	c.OCR.Pdfinfo = getEnv("PDFINFO_BIN", c.OCR.Pdfinfo)
	c.OCR.Tesseract = getEnv("TESSERACT_BIN", c.OCR.Tesseract)
	c.OCR.Lang = getEnv("TESSERACT_LANG", c.OCR.Lang)
	c.OCR.TessdataDir = getEnv("TESSDATA_PREFIX", c.OCR.TessdataDir)
	c.OCR.DPI = getEnvAsInt("OCR_DPI", c.OCR.DPI)
	c.OCR.MaxPages = getEnvAsInt("OCR_MAX_PAGES", c.OCR.MaxPages)
	c.OCR.TempDir = getEnv("OCR_TEMP_DIR", c.OCR.TempDir)
	c.OCR.Normalize = getEnvAsBool("OCR_NORMALIZE", c.OCR.Normalize)

	c.LLM.Enabled = getEnvAsBool("USE_AI", c.LLM.Enabled)
	c.LLM.APIKey = getEnv("OPENAI_API_KEY", c.LLM.APIKey)
	c.LLM.BaseURL = getEnv("OPENAI_BASE_URL", c.LLM.BaseURL)
	c.LLM.Model = getEnv("OPENAI_MODEL", c.LLM.Model)
	c.LLM.Temperature = getEnvAsFloat32("OPENAI_TEMPERATURE", c.LLM.Temperature)
	c.LLM.Timeout = getEnvAsDuration("OPENAI_TIMEOUT", c.LLM.Timeout)
	c.LLM.StrictSchema = getEnvAsBool("OPENAI_STRICT_SCHEMA", c.LLM.StrictSchema)

	c.Breaker.BreakerEnabled = getEnvAsBool("BREAKER_ENABLED", c.Breaker.BreakerEnabled)
	c.Breaker.BreakerOpenTimeout = getEnvAsDuration("BREAKER_OPEN_TIMEOUT", c.Breaker.BreakerOpenTimeout)
	c.Breaker.RetryMaxAttempts = getEnvAsInt("OPENAI_MAX_ATTEMPTS", c.Breaker.RetryMaxAttempts)

	c.Scratch.Dir = getEnv("UPLOAD_DIR", c.Scratch.Dir)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration. A missing API key is not an error:
// it selects the pattern-matching extractor.
func (c *Config) Validate() error {
	v := NewValidator().
		Field("server.http_addr", c.Server.HTTPAddr, Required).
		Field("server.max_upload_bytes", c.Server.MaxUploadBytes, Positive).
		Field("ocr.tesseract", c.OCR.Tesseract, Required).
		Field("ocr.pdftoppm", c.OCR.Pdftoppm, Required).
		Field("ocr.dpi", c.OCR.DPI, IntRange(72, 1200)).
		Field("ocr.max_pages", c.OCR.MaxPages, IntRange(0, 10000)).
		Field("llm.model", c.LLM.Model, Required).
		Field("llm.temperature", float64(c.LLM.Temperature), FloatRange(0, 2)).
		Field("scratch.dir", c.Scratch.Dir, Required).
		Field("log.level", strings.ToLower(c.Log.Level), OneOf("debug", "info", "warn", "warning", "error"))
	if v.HasErrors() {
		return NewAppError(CodeConfig, v.ErrorMessage(), ErrInvalidInput)
	}
	return nil
}
