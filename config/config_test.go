package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()

	for _, k := range []string{
		"PORT", "PUBLIC_URL", "MODEL_PROVIDER", "MODEL_NAME", "GOOGLE_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY",
		"CT_AGENT_URL", "WEA_AGENT_URL", "HOST_AGENT_URL", "CT_MCP_SERVER_URL", "WEA_MCP_SERVER_URL",
		"GOOGLE_CLOUD_PROJECT", "PROJECT_ID", "PROJECT_NUMBER", "GOOGLE_CLOUD_LOCATION",
		"AGENT_ENGINE_ID", "REASONING_ENGINE_ID", "REASONING_ENGINE_LOCATION",
		"AS_APP", "AS_LOCATION", "AGENT_DISPLAY_NAME", "AGENT_DESCRIPTION",
		"SESSION_DB", "TASK_DB", "ARTIFACT_BUCKET", "OTEL_EXPORTER_OTLP_ENDPOINT", "LOG_LEVEL", "LOG_BACKEND",
	} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}

	t.Chdir(t.TempDir())
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, ProviderGemini, cfg.Model.Provider)
	assert.Equal(t, "gemini-2.5-flash", cfg.Model.Name)
	assert.Equal(t, []string{"http://localhost:10002", "http://localhost:10001"}, cfg.RemoteAgentURLs())
	assert.Equal(t, "us-central1", cfg.Google.Location)
	assert.Equal(t, "http://localhost:8080", cfg.AdvertisedURL())
	assert.Equal(t, "0.0.0.0:8080", cfg.ListenAddr())
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "a2amesh.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
model:
  provider: openai
  name: gpt-4o-mini
agents:
  cocktail_mcp_url: https://cocktail-mcp.example.com
logging:
  backend: zap
  level: debug
`), 0o600))

	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("WEA_MCP_SERVER_URL", "https://weather-mcp.example.com")
	t.Setenv("PORT", "10001")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 10001, cfg.Server.Port)
	assert.Equal(t, ProviderOpenAI, cfg.Model.Provider)
	assert.Equal(t, "sk-test", cfg.Model.APIKey)
	assert.Equal(t, "https://cocktail-mcp.example.com", cfg.Agents.CocktailMCPURL)
	assert.Equal(t, "https://weather-mcp.example.com", cfg.Agents.WeatherMCPURL)
	assert.Equal(t, "zap", cfg.Logging.Backend)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_Dotenv(t *testing.T) {
	clearEnv(t)

	require.NoError(t, os.WriteFile(".env", []byte("PROJECT_ID=demo-project\nPROJECT_NUMBER=123456\nAS_APP=my-app\nREASONING_ENGINE_ID=42\n"), 0o600))

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "demo-project", cfg.Google.ProjectID)
	assert.Equal(t, "123456", cfg.Google.ProjectNumber)
	assert.Equal(t, "my-app", cfg.AgentSpace.App)
	assert.Equal(t, "42", cfg.AgentEngine.ReasoningEngineID)

	t.Cleanup(func() {
		for _, k := range []string{"PROJECT_ID", "PROJECT_NUMBER", "AS_APP", "REASONING_ENGINE_ID"} {
			_ = os.Unsetenv(k)
		}
	})
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Port = 0
	cfg.Model.Provider = "llama"
	cfg.Logging.Level = "loud"

	err := cfg.Validate()
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "port 0")
	assert.Contains(t, err.Error(), `"llama"`)
	assert.Contains(t, err.Error(), `"loud"`)
}
