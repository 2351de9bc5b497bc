package core

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator"
	"github.com/labstack/gommon/bytes"
	"gopkg.in/yaml.v3"

	"github.com/jo-hoe/mealmacro/internal/analysis"
	"github.com/jo-hoe/mealmacro/internal/intake"
	"github.com/jo-hoe/mealmacro/internal/preview"
	"github.com/jo-hoe/mealmacro/internal/proxy"
)

const (
	defaultPort              = 8080
	defaultPreviewTTLSeconds = 3600
	defaultTimeoutSeconds    = 60
	defaultSessionTTLSeconds = 1800
	defaultMaxUploadSize     = "20M"
)

type Intake struct {
	// ThresholdBytes is nil when unset; an explicit 0 compresses every image.
	ThresholdBytes *int    `yaml:"thresholdBytes" validate:"omitempty,gte=0"`
	MaxWidth       int     `yaml:"maxWidth" validate:"gte=0"`
	Quality        float64 `yaml:"quality" validate:"gte=0,lte=1"`
}

// Threshold returns the configured compression threshold or the default.
func (i Intake) Threshold() int {
	if i.ThresholdBytes == nil {
		return intake.DefaultThresholdBytes
	}
	return *i.ThresholdBytes
}

type Preview struct {
	Type             string `yaml:"type" validate:"omitempty,oneof=memory sqlite redis"`
	ConnectionString string `yaml:"connectionString"`
	TTLSeconds       int    `yaml:"ttlSeconds" validate:"gte=0"`
}

type Analysis struct {
	Provider         string `yaml:"provider" validate:"omitempty,oneof=gemini openai"`
	Model            string `yaml:"model"`
	Language         string `yaml:"language"`
	UnrecognizedName string `yaml:"unrecognizedName"`
	TimeoutSeconds   int    `yaml:"timeoutSeconds" validate:"gte=0"`
}

type OpenAI struct {
	Endpoint string `yaml:"endpoint"`
	BaseURL  string `yaml:"baseURL"`
	Model    string `yaml:"model"`
}

type Session struct {
	TTLSeconds int `yaml:"ttlSeconds" validate:"gte=0"`
}

// Credentials are read from the environment, never from the config file.
type Credentials struct {
	GoogleAPIKey string `yaml:"-"`
	OpenAIAPIKey string `yaml:"-"`
}

type ServiceConfig struct {
	Port        int         `yaml:"port" validate:"gte=0,lte=65535"`
	Intake      Intake      `yaml:"intake"`
	Preview     Preview     `yaml:"preview"`
	Analysis    Analysis    `yaml:"analysis"`
	OpenAI      OpenAI      `yaml:"openai"`
	Session     Session     `yaml:"session"`
	Credentials Credentials `yaml:"-"`

	// MaxUploadSize caps request bodies, e.g. "20M".
	MaxUploadSize string `yaml:"maxUploadSize"`
}

// LoadConfig loads configuration from the specified YAML file and reads the
// API credentials from the environment.
func LoadConfig(configPath string) (*ServiceConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	var config ServiceConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	if err := validator.New().Struct(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if config.MaxUploadSize != "" {
		if _, err := bytes.Parse(config.MaxUploadSize); err != nil {
			return nil, fmt.Errorf("invalid maxUploadSize %q: %w", config.MaxUploadSize, err)
		}
	}

	config.ApplyDefaults()
	config.Credentials = CredentialsFromEnv()
	return &config, nil
}

// CredentialsFromEnv reads GOOGLE_API_KEY (falling back to GEMINI_API_KEY)
// and OPENAI_API_KEY.
func CredentialsFromEnv() Credentials {
	google := os.Getenv("GOOGLE_API_KEY")
	if google == "" {
		google = os.Getenv("GEMINI_API_KEY")
	}
	return Credentials{
		GoogleAPIKey: google,
		OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),
	}
}

// ApplyDefaults fills every unset field with its default.
func (c *ServiceConfig) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = defaultPort
	}

	if c.MaxUploadSize == "" {
		c.MaxUploadSize = defaultMaxUploadSize
	}

	if c.Intake.ThresholdBytes == nil {
		threshold := intake.DefaultThresholdBytes
		c.Intake.ThresholdBytes = &threshold
	}
	if c.Intake.MaxWidth == 0 {
		c.Intake.MaxWidth = intake.DefaultMaxWidth
	}
	if c.Intake.Quality == 0 {
		c.Intake.Quality = intake.DefaultQuality
	}

	if c.Preview.Type == "" {
		c.Preview.Type = preview.TypeMemory
	}
	if c.Preview.TTLSeconds == 0 {
		c.Preview.TTLSeconds = defaultPreviewTTLSeconds
	}

	if c.Analysis.Provider == "" {
		c.Analysis.Provider = analysis.ProviderGemini
	}
	if c.Analysis.Model == "" {
		c.Analysis.Model = analysis.DefaultGeminiModel
		if c.Analysis.Provider == analysis.ProviderOpenAI {
			c.Analysis.Model = analysis.DefaultOpenAIModel
		}
	}
	if c.Analysis.Language == "" {
		c.Analysis.Language = analysis.DefaultLanguage
	}
	if c.Analysis.UnrecognizedName == "" {
		c.Analysis.UnrecognizedName = analysis.DefaultUnrecognizedName
	}
	if c.Analysis.TimeoutSeconds == 0 {
		c.Analysis.TimeoutSeconds = defaultTimeoutSeconds
	}

	if c.OpenAI.Endpoint == "" {
		c.OpenAI.Endpoint = proxy.DefaultEndpoint
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = proxy.DefaultModel
	}

	if c.Session.TTLSeconds == 0 {
		c.Session.TTLSeconds = defaultSessionTTLSeconds
	}
}

func (c *ServiceConfig) AnalysisTimeout() time.Duration {
	return time.Duration(c.Analysis.TimeoutSeconds) * time.Second
}

func (c *ServiceConfig) PreviewTTL() time.Duration {
	return time.Duration(c.Preview.TTLSeconds) * time.Second
}

func (c *ServiceConfig) SessionTTL() time.Duration {
	return time.Duration(c.Session.TTLSeconds) * time.Second
}
