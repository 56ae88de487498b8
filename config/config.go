// Package config loads the mesh configuration from YAML, a .env file and the
// environment, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/a2amesh/logging"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid configuration")

// Model providers.
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// ValidProviders lists the supported model providers.
var ValidProviders = []string{ProviderGemini, ProviderOpenAI, ProviderAnthropic}

// APIKeyEnv maps a provider to the environment variable holding its key.
// Gemini without a key uses Vertex AI with application default credentials.
var APIKeyEnv = map[string]string{
	ProviderGemini:    "GOOGLE_API_KEY",
	ProviderOpenAI:    "OPENAI_API_KEY",
	ProviderAnthropic: "ANTHROPIC_API_KEY",
}

// Config holds all a2amesh configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Model       ModelConfig       `yaml:"model"`
	Agents      AgentsConfig      `yaml:"agents"`
	Storage     StorageConfig     `yaml:"storage"`
	Google      GoogleConfig      `yaml:"google"`
	AgentEngine AgentEngineConfig `yaml:"agent_engine"`
	AgentSpace  AgentSpaceConfig  `yaml:"agentspace"`
	Logging     logging.Config    `yaml:"logging"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
}

// ServerConfig configures the HTTP listeners.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// PublicURL is advertised in agent cards. Empty means http://localhost:<port>.
	PublicURL string `yaml:"public_url"`
}

// ModelConfig selects the model backing the agents.
type ModelConfig struct {
	Provider string `yaml:"provider"`
	Name     string `yaml:"name"`
	APIKey   string `yaml:"api_key"`
}

// AgentsConfig holds the addresses of remote agents and MCP servers.
type AgentsConfig struct {
	CocktailURL    string `yaml:"cocktail_url"`
	WeatherURL     string `yaml:"weather_url"`
	HostURL        string `yaml:"host_url"`
	CocktailMCPURL string `yaml:"cocktail_mcp_url"`
	WeatherMCPURL  string `yaml:"weather_mcp_url"`
	// Memory enables memory preload and saving sessions to the memory bank.
	Memory bool `yaml:"memory"`
}

// StorageConfig selects durable backends. Empty values select in-memory stores.
type StorageConfig struct {
	SessionDB      string `yaml:"session_db"`
	TaskDB         string `yaml:"task_db"`
	ArtifactBucket string `yaml:"artifact_bucket"`
	ArtifactPrefix string `yaml:"artifact_prefix"`
}

// GoogleConfig identifies the Google Cloud project.
type GoogleConfig struct {
	ProjectID     string `yaml:"project_id"`
	ProjectNumber string `yaml:"project_number"`
	Location      string `yaml:"location"`
}

// AgentEngineConfig identifies the deployed reasoning engine.
type AgentEngineConfig struct {
	AgentEngineID           string `yaml:"agent_engine_id"`
	ReasoningEngineID       string `yaml:"reasoning_engine_id"`
	ReasoningEngineLocation string `yaml:"reasoning_engine_location"`
}

// AgentSpaceConfig configures AgentSpace registration.
type AgentSpaceConfig struct {
	App              string `yaml:"app"`
	Location         string `yaml:"location"`
	AgentDisplayName string `yaml:"agent_display_name"`
	AgentDescription string `yaml:"agent_description"`
	IconURI          string `yaml:"icon_uri"`
}

// TelemetryConfig configures tracing.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

// DefaultConfig returns the local development defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
		Model:  ModelConfig{Provider: ProviderGemini, Name: "gemini-2.5-flash"},
		Agents: AgentsConfig{
			CocktailURL: "http://localhost:10002",
			WeatherURL:  "http://localhost:10001",
			HostURL:     "http://localhost:8080",
		},
		Storage: StorageConfig{ArtifactPrefix: "artifacts"},
		Google:  GoogleConfig{Location: "us-central1"},
		AgentEngine: AgentEngineConfig{
			ReasoningEngineLocation: "us-central1",
		},
		AgentSpace: AgentSpaceConfig{
			Location: "global",
			IconURI:  "https://fonts.gstatic.com/s/i/short-term/release/googlesymbols/corporate_fare/default/24px.svg",
		},
		Logging: logging.Config{Backend: logging.BackendSlog, Level: "info", Format: "text"},
	}
}

// Load reads the YAML file at path over the defaults. A .env file in the
// working directory is loaded into the environment first; the environment
// then overrides file values. A missing config file yields the defaults.
func Load(path string) (*Config, error) {
	if err := LoadDotenv(".env"); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadDotenv loads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func LoadDotenv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}

	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}

	setString(&c.Server.PublicURL, "PUBLIC_URL")

	setString(&c.Model.Provider, "MODEL_PROVIDER")
	setString(&c.Model.Name, "MODEL_NAME")

	if env, ok := APIKeyEnv[c.Model.Provider]; ok {
		setString(&c.Model.APIKey, env)
	}

	setString(&c.Agents.CocktailURL, "CT_AGENT_URL")
	setString(&c.Agents.WeatherURL, "WEA_AGENT_URL")
	setString(&c.Agents.HostURL, "HOST_AGENT_URL")
	setString(&c.Agents.CocktailMCPURL, "CT_MCP_SERVER_URL")
	setString(&c.Agents.WeatherMCPURL, "WEA_MCP_SERVER_URL")

	setString(&c.Google.ProjectID, "GOOGLE_CLOUD_PROJECT")
	setString(&c.Google.ProjectID, "PROJECT_ID")
	setString(&c.Google.ProjectNumber, "PROJECT_NUMBER")
	setString(&c.Google.Location, "GOOGLE_CLOUD_LOCATION")

	setString(&c.AgentEngine.AgentEngineID, "AGENT_ENGINE_ID")
	setString(&c.AgentEngine.ReasoningEngineID, "REASONING_ENGINE_ID")
	setString(&c.AgentEngine.ReasoningEngineLocation, "REASONING_ENGINE_LOCATION")

	setString(&c.AgentSpace.App, "AS_APP")
	setString(&c.AgentSpace.Location, "AS_LOCATION")
	setString(&c.AgentSpace.AgentDisplayName, "AGENT_DISPLAY_NAME")
	setString(&c.AgentSpace.AgentDescription, "AGENT_DESCRIPTION")

	setString(&c.Storage.SessionDB, "SESSION_DB")
	setString(&c.Storage.TaskDB, "TASK_DB")
	setString(&c.Storage.ArtifactBucket, "ARTIFACT_BUCKET")

	setString(&c.Telemetry.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")

	setString(&c.Logging.Level, "LOG_LEVEL")
	setString(&c.Logging.Backend, "LOG_BACKEND")
}

// Validate checks the configuration for values no command can work with.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server port %d out of range", c.Server.Port))
	}

	if !slices.Contains(ValidProviders, c.Model.Provider) {
		errs = append(errs, fmt.Errorf("model provider %q (valid: %v)", c.Model.Provider, ValidProviders))
	}

	if c.Model.Name == "" {
		errs = append(errs, errors.New("model name is empty"))
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}

	switch c.Logging.Backend {
	case "", logging.BackendSlog, logging.BackendZap, logging.BackendZerolog:
	default:
		errs = append(errs, fmt.Errorf("log backend %q", c.Logging.Backend))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}

	return nil
}

// ListenAddr returns host:port for the HTTP server.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// AdvertisedURL returns the URL published in agent cards.
func (c *Config) AdvertisedURL() string {
	if c.Server.PublicURL != "" {
		return c.Server.PublicURL
	}
	return fmt.Sprintf("http://localhost:%d", c.Server.Port)
}

// RemoteAgentURLs returns the agents the hosting agent delegates to.
func (c *Config) RemoteAgentURLs() []string {
	return []string{c.Agents.CocktailURL, c.Agents.WeatherURL}
}
