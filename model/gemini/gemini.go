// Package gemini implements model.Model with the Google Gen AI SDK, targeting
// either Vertex AI or the Gemini Developer API.
package gemini

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/hupe1980/a2amesh/core"
	"github.com/hupe1980/a2amesh/model"
)

// Options configures the Gemini adapter. When APIKey is empty the Vertex AI
// backend is used with Project and Location.
type Options struct {
	Model           string
	APIKey          string
	Project         string
	Location        string
	Temperature     float32
	MaxOutputTokens int32
}

// Model wraps genai.Models.
type Model struct {
	client *genai.Client
	opts   Options
}

// NewModel creates a new Gemini model.
func NewModel(ctx context.Context, optFns ...func(o *Options)) (*Model, error) {
	opts := defaultOptions(optFns...)

	cfg := &genai.ClientConfig{APIKey: opts.APIKey, Backend: genai.BackendGeminiAPI}
	if opts.APIKey == "" {
		cfg = &genai.ClientConfig{Project: opts.Project, Location: opts.Location, Backend: genai.BackendVertexAI}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Model{client: client, opts: opts}, nil
}

// NewModelFromClient creates a Gemini model from an existing client.
func NewModelFromClient(client *genai.Client, optFns ...func(o *Options)) *Model {
	return &Model{client: client, opts: defaultOptions(optFns...)}
}

func defaultOptions(optFns ...func(o *Options)) Options {
	opts := Options{
		Model:           "gemini-2.5-flash",
		Location:        "us-central1",
		Temperature:     0.7,
		MaxOutputTokens: 8192,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return opts
}

// Generate implements model.Model.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		contents := buildContents(req.Contents)
		cfg := m.buildConfig(req)

		if req.Stream {
			m.handleStreaming(ctx, contents, cfg, out, errCh)
			return
		}

		resp, err := m.client.Models.GenerateContent(ctx, m.opts.Model, contents, cfg)
		if err != nil {
			errCh <- fmt.Errorf("gemini api error: %w", err)
			return
		}

		r, err := toResponse(resp)
		if err != nil {
			errCh <- err
			return
		}

		out <- r
	}()

	return out, errCh
}

func (m *Model) handleStreaming(ctx context.Context, contents []*genai.Content, cfg *genai.GenerateContentConfig, out chan<- model.Response, errCh chan<- error) {
	var (
		text  strings.Builder
		calls []core.Part
		last  model.Response
	)

	for resp, err := range m.client.Models.GenerateContentStream(ctx, m.opts.Model, contents, cfg) {
		if err != nil {
			errCh <- fmt.Errorf("gemini streaming error: %w", err)
			return
		}

		chunk, err := toResponse(resp)
		if err != nil {
			errCh <- err
			return
		}

		for _, p := range chunk.Content.Parts {
			switch part := p.(type) {
			case core.TextPart:
				text.WriteString(part.Text)

				select {
				case out <- model.Response{Partial: true, Content: core.NewTextContent(core.RoleAssistant, part.Text)}:
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				}
			case core.FunctionCallPart:
				calls = append(calls, part)
			}
		}

		last = chunk
	}

	final := model.Response{ID: last.ID, FinishReason: last.FinishReason, Usage: last.Usage}
	final.Content.Role = core.RoleAssistant

	if text.Len() > 0 {
		final.Content.Parts = append(final.Content.Parts, core.TextPart{Text: text.String()})
	}

	final.Content.Parts = append(final.Content.Parts, calls...)

	out <- final
}

func (m *Model) buildConfig(req model.Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(m.opts.Temperature),
		MaxOutputTokens: m.opts.MaxOutputTokens,
	}

	var system []string
	if req.Instructions != "" {
		system = append(system, req.Instructions)
	}

	for _, c := range req.Contents {
		if c.Role == core.RoleSystem {
			system = append(system, c.Texts()...)
		}
	}

	if len(system) > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}

	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:                 t.Function.Name,
				Description:          t.Function.Description,
				ParametersJsonSchema: t.Function.Parameters,
			})
		}

		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	return cfg
}

// buildContents maps normalized contents onto genai contents. Assistant turns
// use the "model" role and tool results travel back in a user turn.
func buildContents(contents []core.Content) []*genai.Content {
	var out []*genai.Content

	for _, c := range contents {
		var (
			role  = genai.RoleUser
			parts []*genai.Part
		)

		switch c.Role {
		case core.RoleSystem:
			continue
		case core.RoleAssistant:
			role = genai.RoleModel
		}

		for _, p := range c.Parts {
			switch part := p.(type) {
			case core.TextPart:
				if part.Text != "" {
					parts = append(parts, genai.NewPartFromText(part.Text))
				}
			case core.FunctionCallPart:
				args, err := model.ParseArguments(part.FunctionCall.Arguments)
				if err != nil {
					args = map[string]any{"raw": part.FunctionCall.Arguments}
				}

				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					ID:   part.FunctionCall.ID,
					Name: part.FunctionCall.Name,
					Args: args,
				}})
			case core.FunctionResponsePart:
				parts = append(parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
					ID:       part.FunctionResponse.ID,
					Name:     part.FunctionResponse.Name,
					Response: model.FunctionResponseMap(part.FunctionResponse),
				}})
			case core.FilePart:
				if part.File.Bytes != "" {
					data, err := base64.StdEncoding.DecodeString(part.File.Bytes)
					if err != nil {
						continue
					}
					parts = append(parts, genai.NewPartFromBytes(data, part.File.MimeType))
				} else if part.File.URI != "" {
					parts = append(parts, genai.NewPartFromURI(part.File.URI, part.File.MimeType))
				}
			}
		}

		if len(parts) > 0 {
			out = append(out, &genai.Content{Role: role, Parts: parts})
		}
	}

	return out
}

func toResponse(resp *genai.GenerateContentResponse) (model.Response, error) {
	r := model.Response{ID: resp.ResponseID, Content: core.Content{Role: core.RoleAssistant}}

	if resp.UsageMetadata != nil {
		r.Usage = &model.TokenUsage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}

	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return r, fmt.Errorf("gemini: prompt blocked: %s", resp.PromptFeedback.BlockReason)
		}

		return r, nil
	}

	cand := resp.Candidates[0]
	r.FinishReason = strings.ToLower(string(cand.FinishReason))

	if cand.Content == nil {
		return r, nil
	}

	for _, p := range cand.Content.Parts {
		switch {
		case p.Thought:
			continue
		case p.FunctionCall != nil:
			id := p.FunctionCall.ID
			if id == "" {
				id = core.NewID()
			}

			args, _ := jsonString(p.FunctionCall.Args)
			r.Content.Parts = append(r.Content.Parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
				ID:        id,
				Name:      p.FunctionCall.Name,
				Arguments: args,
			}})
		case p.Text != "":
			r.Content.Parts = append(r.Content.Parts, core.TextPart{Text: p.Text})
		}
	}

	return r, nil
}

// Info returns metadata describing this Gemini model implementation.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.opts.Model, Provider: "gemini", SupportsTools: true}
}
