package gemini

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/hupe1980/a2amesh/core"
	"github.com/hupe1980/a2amesh/model"
)

var _ model.Model = (*Model)(nil)

func TestBuildContents(t *testing.T) {
	contents := buildContents([]core.Content{
		core.NewTextContent(core.RoleSystem, "skip"),
		core.NewTextContent(core.RoleUser, "hi"),
		{Role: core.RoleAssistant, Parts: []core.Part{
			core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "1", Name: "get_alerts", Arguments: `{"state":"CA"}`}},
		}},
		{Role: core.RoleTool, Parts: []core.Part{
			core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{ID: "1", Name: "get_alerts", Response: "none"}},
		}},
	})

	require.Len(t, contents, 3)
	assert.Equal(t, genai.RoleUser, contents[0].Role)
	assert.Equal(t, genai.RoleModel, contents[1].Role)
	assert.Equal(t, "CA", contents[1].Parts[0].FunctionCall.Args["state"])
	assert.Equal(t, genai.RoleUser, contents[2].Role)
	assert.Equal(t, map[string]any{"result": "none"}, contents[2].Parts[0].FunctionResponse.Response)
}

func TestBuildContents_FileParts(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}

	contents := buildContents([]core.Content{
		{Role: core.RoleUser, Parts: []core.Part{
			core.FilePart{File: core.File{Bytes: base64.StdEncoding.EncodeToString(png), MimeType: "image/png"}},
			core.FilePart{File: core.File{URI: "gs://bucket/map.png", MimeType: "image/png"}},
			core.FilePart{File: core.File{Bytes: "not base64!", MimeType: "image/png"}},
		}},
	})

	require.Len(t, contents, 1)
	require.Len(t, contents[0].Parts, 2)
	require.NotNil(t, contents[0].Parts[0].InlineData)
	assert.Equal(t, png, contents[0].Parts[0].InlineData.Data)
	assert.Equal(t, "image/png", contents[0].Parts[0].InlineData.MIMEType)
	require.NotNil(t, contents[0].Parts[1].FileData)
	assert.Equal(t, "gs://bucket/map.png", contents[0].Parts[1].FileData.FileURI)
}

func TestBuildConfig(t *testing.T) {
	m := &Model{opts: defaultOptions()}
	cfg := m.buildConfig(model.Request{
		Instructions: "you are a host agent",
		Tools: []model.ToolDefinition{{Type: "function", Function: model.FunctionDefinition{
			Name: "send_message", Description: "send", Parameters: map[string]any{"type": "object"},
		}}},
	})

	require.NotNil(t, cfg.SystemInstruction)
	assert.Equal(t, "you are a host agent", cfg.SystemInstruction.Parts[0].Text)
	require.Len(t, cfg.Tools, 1)
	assert.Equal(t, "send_message", cfg.Tools[0].FunctionDeclarations[0].Name)
}

func TestToResponse(t *testing.T) {
	r, err := toResponse(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			FinishReason: genai.FinishReasonStop,
			Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{
				{Text: "thinking", Thought: true},
				{Text: "answer"},
				{FunctionCall: &genai.FunctionCall{Name: "list_random_cocktails"}},
			}},
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{TotalTokenCount: 12},
	})
	require.NoError(t, err)

	assert.Equal(t, "stop", r.FinishReason)
	assert.Equal(t, 12, r.Usage.TotalTokens)
	require.Len(t, r.Content.Parts, 2)
	assert.Equal(t, core.TextPart{Text: "answer"}, r.Content.Parts[0])

	fc := r.Content.Parts[1].(core.FunctionCallPart).FunctionCall
	assert.Equal(t, "list_random_cocktails", fc.Name)
	assert.NotEmpty(t, fc.ID)
	assert.Equal(t, "{}", fc.Arguments)
}
