// Package config handles application configuration loading from a YAML file and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	contextutils "voxbridge/internal/utils"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig `json:"server" yaml:"server"`

	// Translation provider configuration
	Translation TranslationConfig `json:"translation" yaml:"translation"`

	// Speech host capability configuration
	Speech SpeechConfig `json:"speech" yaml:"speech"`

	// OpenTelemetry Configuration
	OpenTelemetry OpenTelemetryConfig `json:"open_telemetry" yaml:"open_telemetry"`

	// Internal fields
	IsTest bool `json:"is_test" yaml:"is_test"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Port        string   `json:"port" yaml:"port"`
	Debug       bool     `json:"debug" yaml:"debug"`
	LogLevel    string   `json:"log_level" yaml:"log_level"`
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins"`
}

// TranslationConfig selects and configures the text-generation provider used for translation
type TranslationConfig struct {
	Enabled         bool                                 `json:"enabled" yaml:"enabled"`
	DefaultProvider string                               `json:"default_provider" yaml:"default_provider"`
	RequestTimeout  time.Duration                        `json:"request_timeout" yaml:"request_timeout"`
	Providers       map[string]TranslationProviderConfig `json:"providers" yaml:"providers" validate:"dive"`
}

// TranslationProviderConfig describes one generation endpoint
type TranslationProviderConfig struct {
	Code    string `json:"code" yaml:"code" validate:"required,oneof=gemini openai"`
	BaseURL string `json:"base_url" yaml:"base_url" validate:"omitempty,url"`
	APIKey  string `json:"api_key" yaml:"api_key"`
	Model   string `json:"model" yaml:"model"`
}

// SpeechConfig configures the host speech capabilities
type SpeechConfig struct {
	Recognizer  RecognizerConfig  `json:"recognizer" yaml:"recognizer"`
	Synthesizer SynthesizerConfig `json:"synthesizer" yaml:"synthesizer"`
	// VoicesWait bounds how long startup waits for the host voice list to populate
	VoicesWait time.Duration `json:"voices_wait" yaml:"voices_wait"`
}

// RecognizerConfig configures the speech recognition capability
type RecognizerConfig struct {
	Provider string `json:"provider" yaml:"provider" validate:"omitempty,oneof=none openai"`
	APIKey   string `json:"api_key" yaml:"api_key"`
	BaseURL  string `json:"base_url" yaml:"base_url" validate:"omitempty,url"`
	Model    string `json:"model" yaml:"model"`
}

// SynthesizerConfig configures the speech synthesis capability
type SynthesizerConfig struct {
	Provider   string `json:"provider" yaml:"provider" validate:"omitempty,oneof=none openai espeak"`
	APIKey     string `json:"api_key" yaml:"api_key"`
	BaseURL    string `json:"base_url" yaml:"base_url" validate:"omitempty,url"`
	Model      string `json:"model" yaml:"model"`
	BinaryPath string `json:"binary_path" yaml:"binary_path"`
	// Voice is the default remote voice name; remote voices are advertised under Language
	Voice    string `json:"voice" yaml:"voice"`
	Language string `json:"language" yaml:"language"`
	// Player is an optional command that plays audio read from stdin when no output is given
	Player string `json:"player" yaml:"player"`
}

// OpenTelemetryConfig holds all OpenTelemetry-related configuration
type OpenTelemetryConfig struct {
	Endpoint       string            `json:"endpoint" yaml:"endpoint"`               // Default: "localhost:4317"
	Protocol       string            `json:"protocol" yaml:"protocol"`               // "grpc" or "http", default: "grpc"
	Insecure       bool              `json:"insecure" yaml:"insecure"`               // Default: true (for localhost)
	Headers        map[string]string `json:"headers" yaml:"headers"`                 // For authenticated endpoints
	ServiceName    string            `json:"service_name" yaml:"service_name"`       // Default: "voxbridge"
	ServiceVersion string            `json:"service_version" yaml:"service_version"` // From version package
	EnableTracing  bool              `json:"enable_tracing" yaml:"enable_tracing"`
	EnableMetrics  bool              `json:"enable_metrics" yaml:"enable_metrics"`
	EnableLogging  bool              `json:"enable_logging" yaml:"enable_logging"`
	SamplingRate   float64           `json:"sampling_rate" yaml:"sampling_rate"` // Default: 1.0 (100%)
	UseAutoSDK     bool              `json:"use_auto_sdk" yaml:"use_auto_sdk"`
}

// ActiveProvider returns the configured default translation provider and whether it exists
func (c *Config) ActiveProvider() (TranslationProviderConfig, bool) {
	p, ok := c.Translation.Providers[c.Translation.DefaultProvider]
	return p, ok
}

// NewConfig loads configuration from YAML file first, then overrides with environment variables
func NewConfig() (result0 *Config, err error) {
	config, err := loadConfigWithOverrides()
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrConfigInvalid, "failed to load config: %w", err)
	}

	config.overrideFromEnv()
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks provider names and that every enabled remote capability has an API key
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return contextutils.NewAppErrorWithCause(contextutils.ErrorCodeConfigInvalid, contextutils.SeverityFatal,
			"Configuration validation failed", err.Error(), err)
	}

	if c.Translation.Enabled {
		provider, ok := c.ActiveProvider()
		if !ok {
			return contextutils.NewAppError(contextutils.ErrorCodeConfigInvalid, contextutils.SeverityFatal,
				"Translation provider not configured", c.Translation.DefaultProvider)
		}
		if provider.APIKey == "" {
			return contextutils.NewAppError(contextutils.ErrorCodeConfigInvalid, contextutils.SeverityFatal,
				"Translation provider API key not configured", c.Translation.DefaultProvider)
		}
	}

	if c.Speech.Recognizer.Provider == "openai" && c.Speech.Recognizer.APIKey == "" {
		return contextutils.NewAppError(contextutils.ErrorCodeConfigInvalid, contextutils.SeverityFatal,
			"Speech recognizer API key not configured", "openai")
	}
	if c.Speech.Synthesizer.Provider == "openai" && c.Speech.Synthesizer.APIKey == "" {
		return contextutils.NewAppError(contextutils.ErrorCodeConfigInvalid, contextutils.SeverityFatal,
			"Speech synthesizer API key not configured", "openai")
	}

	return nil
}

// applyDefaults fills values the file and environment left empty
func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = DefaultPort
	}
	if c.Translation.DefaultProvider == "" {
		c.Translation.DefaultProvider = DefaultTranslationProvider
	}
	if c.Translation.RequestTimeout <= 0 {
		c.Translation.RequestTimeout = DefaultHTTPTimeout
	}
	if c.Translation.Providers == nil {
		c.Translation.Providers = map[string]TranslationProviderConfig{}
	}

	gemini, ok := c.Translation.Providers["gemini"]
	if !ok {
		gemini = TranslationProviderConfig{Code: "gemini"}
	}
	if gemini.BaseURL == "" {
		gemini.BaseURL = DefaultGeminiBaseURL
	}
	if gemini.Model == "" {
		gemini.Model = envOr("GEMINI_MODEL", DefaultGeminiModel)
	}
	if gemini.APIKey == "" {
		gemini.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	c.Translation.Providers["gemini"] = gemini

	if openai, ok := c.Translation.Providers["openai"]; ok {
		if openai.APIKey == "" {
			openai.APIKey = os.Getenv("OPENAI_API_KEY")
		}
		if openai.Model == "" {
			openai.Model = DefaultOpenAIChatModel
		}
		c.Translation.Providers["openai"] = openai
	}

	if c.Speech.Recognizer.Provider == "" {
		c.Speech.Recognizer.Provider = "none"
	}
	if c.Speech.Recognizer.APIKey == "" {
		c.Speech.Recognizer.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Speech.Synthesizer.Provider == "" {
		c.Speech.Synthesizer.Provider = "none"
	}
	if c.Speech.Synthesizer.APIKey == "" {
		c.Speech.Synthesizer.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Speech.VoicesWait <= 0 {
		c.Speech.VoicesWait = DefaultVoicesWait
	}

	if c.OpenTelemetry.ServiceName == "" {
		c.OpenTelemetry.ServiceName = DefaultServiceName
	}
	if c.OpenTelemetry.Protocol == "" {
		c.OpenTelemetry.Protocol = "grpc"
	}
	if c.OpenTelemetry.SamplingRate == 0 {
		c.OpenTelemetry.SamplingRate = 1.0
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// overrideFromEnv overrides config values with environment variables using reflection
func (c *Config) overrideFromEnv() {
	overrideStructFromEnvWithPrefix(c, "")
}

var durationType = reflect.TypeOf(time.Duration(0))

// overrideStructFromEnvWithPrefix recursively overrides struct fields with environment variables.
// The variable name is the upper-cased yaml tag path joined by underscores, e.g. SPEECH_RECOGNIZER_MODEL.
func overrideStructFromEnvWithPrefix(v interface{}, prefix string) {
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	if val.Kind() != reflect.Struct {
		return
	}

	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		if !field.CanSet() {
			continue
		}

		yamlTag := strings.Split(fieldType.Tag.Get("yaml"), ",")[0]
		if yamlTag == "" || yamlTag == "-" {
			continue
		}

		envKey := strings.ToUpper(strings.ReplaceAll(yamlTag, "-", "_"))
		if prefix != "" {
			envKey = prefix + "_" + envKey
		}

		if field.Type() == durationType {
			if envVal := os.Getenv(envKey); envVal != "" {
				if d, err := time.ParseDuration(envVal); err == nil {
					field.SetInt(int64(d))
				}
			}
			continue
		}

		switch field.Kind() {
		case reflect.String:
			if envVal := os.Getenv(envKey); envVal != "" {
				field.SetString(envVal)
			}
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if envVal := os.Getenv(envKey); envVal != "" {
				if intVal, err := strconv.ParseInt(envVal, 10, 64); err == nil {
					field.SetInt(intVal)
				}
			}
		case reflect.Float32, reflect.Float64:
			if envVal := os.Getenv(envKey); envVal != "" {
				if floatVal, err := strconv.ParseFloat(envVal, 64); err == nil {
					field.SetFloat(floatVal)
				}
			}
		case reflect.Bool:
			if envVal := os.Getenv(envKey); envVal != "" {
				if boolVal, err := strconv.ParseBool(envVal); err == nil {
					field.SetBool(boolVal)
				}
			}
		case reflect.Slice:
			if envVal := os.Getenv(envKey); envVal != "" {
				if field.Type().Elem().Kind() == reflect.String {
					field.Set(reflect.ValueOf(strings.Split(envVal, ",")))
				}
			}
		case reflect.Map:
			// Maps of structs (translation providers) are keyed by name: TRANSLATION_PROVIDERS_GEMINI_API_KEY
			if field.Type().Key().Kind() != reflect.String || field.Type().Elem().Kind() != reflect.Struct || field.IsNil() {
				continue
			}
			for _, key := range field.MapKeys() {
				elem := reflect.New(field.Type().Elem())
				elem.Elem().Set(field.MapIndex(key))
				overrideStructFromEnvWithPrefix(elem.Interface(), envKey+"_"+strings.ToUpper(key.String()))
				field.SetMapIndex(key, elem.Elem())
			}
		case reflect.Struct:
			if field.CanAddr() {
				overrideStructFromEnvWithPrefix(field.Addr().Interface(), envKey)
			}
		case reflect.Ptr:
			if !field.IsNil() && field.Elem().Kind() == reflect.Struct {
				overrideStructFromEnvWithPrefix(field.Interface(), envKey)
			}
		}
	}
}

// loadConfigWithOverrides loads the config file named by VOXBRIDGE_CONFIG_FILE, or config.yaml when present
func loadConfigWithOverrides() (result0 *Config, err error) {
	if envPath := os.Getenv(ConfigFileEnv); envPath != "" {
		config, err := loadConfigFromFile(envPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", envPath, err)
		}
		return config, nil
	}

	config, err := loadConfigFromFile(DefaultConfigFile)
	if errors.Is(err, os.ErrNotExist) {
		return &Config{}, nil
	}
	return config, err
}

// loadConfigFromFile loads configuration from a specific file
func loadConfigFromFile(path string) (result0 *Config, err error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := yaml.Unmarshal(yamlFile, &config); err != nil {
		return nil, err
	}

	return &config, nil
}
