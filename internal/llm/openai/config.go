package openai

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joseph-ayodele/referral-intake/internal/resilience"
)

const (
	DefaultBaseURL     = "https://api.openai.com/v1"
	DefaultModel       = "gpt-4o"
	DefaultTemperature = 0.2
)

// Config for the OpenAI client. The credential is always injected; the client
// never reads the environment.
type Config struct {
	APIKey       string        // empty = strategy unavailable
	BaseURL      string        // default https://api.openai.com/v1
	Model        string        // default gpt-4o
	Temperature  float32       // 0 = DefaultTemperature
	Timeout      time.Duration // http client timeout
	StrictSchema bool          // skip the lenient fill step after sanitizing
}

type Client struct {
	cfg    Config
	http   *http.Client
	exec   *resilience.Executor
	logger *slog.Logger
}

// NewClient builds the remote strategy. exec may be nil, in which case calls go straight through.
func NewClient(cfg Config, exec *resilience.Executor, logger *slog.Logger) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		exec:   exec,
		logger: logger,
	}
}

func (c *Client) Name() string { return "openai:" + c.cfg.Model }

// Available reports whether a credential was configured.
func (c *Client) Available() bool { return c.cfg.APIKey != "" }
