package config

import (
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Log      Log      `yaml:"log"`
	Server   Server   `yaml:"server"`
	API      API      `yaml:"api"`
	Speech   Speech   `yaml:"speech"`
	Location Location `yaml:"location"`
	Data     Data     `yaml:"data"`
}

type API struct {
	// OpenAI-compatible base url
	BaseURL string `yaml:"base_url" example:"https://openrouter.ai/api/v1" validate:"required"`
	// API token, overridden by PLATEMATE_API_KEY
	Key string `yaml:"key" validate:"required"`
	// Model identifier, overridden by PLATEMATE_MODEL
	Model string `yaml:"model" example:"gpt-4o-mini" validate:"required"`
	// Sampling temperature
	Temperature float64 `yaml:"temperature"`
	// Nucleus sampling cutoff
	TopP float64 `yaml:"top_p"`
	// Top-K sampling cutoff
	TopK int `yaml:"top_k"`
	// Completion token ceiling
	MaxOutputTokens int `yaml:"max_output_tokens"`
}

type Speech struct {
	// Enables voice capture; StartListening refuses when false
	VoiceInput bool `yaml:"voice_input"`
	// ffmpeg input format, e.g. alsa / avfoundation / pulse
	InputFormat string `yaml:"input_format" example:"alsa"`
	// ffmpeg input device
	InputDevice string `yaml:"input_device" example:"default"`
	// Path to the SpeechKit service account key
	KeyFile string `yaml:"key_file" example:"service-account-key.json"`
	// Recognition language
	Language string `yaml:"language" example:"en-US"`
}

type Location struct {
	// Enables location acquisition; when false the resolver reports Denied
	Enabled bool `yaml:"enabled"`
	// IP geolocation endpoint returning lat/lon for the caller
	GeoIPURL string `yaml:"geoip_url" example:"http://ip-api.com/json"`
	// Nominatim-compatible reverse geocode endpoint
	GeocodeURL string `yaml:"geocode_url" example:"https://nominatim.openstreetmap.org/reverse"`
	// Seconds between continuous update polls
	UpdateIntervalSec int `yaml:"update_interval_sec"`
}

type Server struct {
	// HTTP listen address for the presentation API
	Addr string `yaml:"addr" example:":8080"`
}

type Data struct {
	// Directory holding persisted state
	Dir string `yaml:"dir" example:"data"`
}

type Log struct {
	// Telegram logging config
	Telegram TelegramLog `yaml:"telegram"`
}

type TelegramLog struct {
	// Chat bot token, obtain it via BotFather
	Token string `yaml:"token"`
	// Chat ID to send messages to
	ChatID string `yaml:"chat_id"`
}

func Load() (*Config, error) {
	var result Config

	data, err := os.ReadFile("config.yaml")
	if err != nil {
		return nil, oops.Errorf("failed to read config file: %w", err)
	}

	if err = yaml.Unmarshal(data, &result); err != nil {
		return nil, oops.Errorf("failed to parse YAML config: %w", err)
	}

	if key := strings.TrimSpace(os.Getenv("PLATEMATE_API_KEY")); key != "" {
		result.API.Key = key
	}
	if model := strings.TrimSpace(os.Getenv("PLATEMATE_MODEL")); model != "" {
		result.API.Model = model
	}

	result.applyDefaults()

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(result); err != nil {
		return nil, oops.Errorf("failed to validate config: %w", err)
	}

	return &result, nil
}

func (c *Config) applyDefaults() {
	if c.API.Temperature == 0 {
		c.API.Temperature = 0.7
	}
	if c.API.TopP == 0 {
		c.API.TopP = 0.95
	}
	if c.API.TopK == 0 {
		c.API.TopK = 40
	}
	if c.API.MaxOutputTokens == 0 {
		c.API.MaxOutputTokens = 1024
	}
	if c.Speech.InputFormat == "" {
		c.Speech.InputFormat = "alsa"
	}
	if c.Speech.InputDevice == "" {
		c.Speech.InputDevice = "default"
	}
	if c.Speech.KeyFile == "" {
		c.Speech.KeyFile = "service-account-key.json"
	}
	if c.Speech.Language == "" {
		c.Speech.Language = "en-US"
	}
	if c.Location.GeoIPURL == "" {
		c.Location.GeoIPURL = "http://ip-api.com/json"
	}
	if c.Location.GeocodeURL == "" {
		c.Location.GeocodeURL = "https://nominatim.openstreetmap.org/reverse"
	}
	if c.Location.UpdateIntervalSec == 0 {
		c.Location.UpdateIntervalSec = 60
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Data.Dir == "" {
		c.Data.Dir = "data"
	}
}
