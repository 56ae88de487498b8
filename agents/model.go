package agents

import (
	"context"
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/a2amesh/config"
	"github.com/hupe1980/a2amesh/model"
	"github.com/hupe1980/a2amesh/model/anthropic"
	"github.com/hupe1980/a2amesh/model/gemini"
	"github.com/hupe1980/a2amesh/model/openai"
)

// ProviderFromConfig returns a ModelProvider for the configured provider.
// A configured model name takes precedence over the agent's default model.
// Gemini without an API key runs on Vertex AI in the configured project.
func ProviderFromConfig(cfg config.ModelConfig, google config.GoogleConfig) ModelProvider {
	return func(ctx context.Context, name string) (model.Model, error) {
		if cfg.Name != "" {
			name = cfg.Name
		}

		switch cfg.Provider {
		case config.ProviderGemini, "":
			return gemini.NewModel(ctx, func(o *gemini.Options) {
				o.Model = name
				o.APIKey = cfg.APIKey
				o.Project = google.ProjectID
				if google.Location != "" {
					o.Location = google.Location
				}
			})
		case config.ProviderOpenAI:
			return openai.NewModel(func(o *openai.Options) {
				o.Model = name
				o.APIKey = cfg.APIKey
			}), nil
		case config.ProviderAnthropic:
			return anthropic.NewModel(func(o *anthropic.Options) {
				o.Model = anthropicsdk.Model(name)
				o.APIKey = cfg.APIKey
			}), nil
		default:
			return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
		}
	}
}
