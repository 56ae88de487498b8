package openai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/a2amesh/core"
	"github.com/hupe1980/a2amesh/model"
)

var _ model.Model = (*Model)(nil)

func TestBuildMessages(t *testing.T) {
	req := model.Request{
		Instructions: "be helpful",
		Contents: []core.Content{
			core.NewTextContent(core.RoleUser, "weather in Berlin?"),
			{Role: core.RoleAssistant, Parts: []core.Part{
				core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "c1", Name: "get_forecast", Arguments: `{"city":"Berlin"}`}},
			}},
			{Role: core.RoleTool, Parts: []core.Part{
				core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{ID: "c1", Name: "get_forecast", Response: map[string]any{"temp": 20}}},
			}},
		},
	}

	msgs := buildMessages(req)
	require.Len(t, msgs, 4)
	require.NotNil(t, msgs[0].OfSystem)
	require.NotNil(t, msgs[1].OfUser)
	require.NotNil(t, msgs[2].OfAssistant)
	assert.Equal(t, "c1", msgs[2].OfAssistant.ToolCalls[0].ID)
	require.NotNil(t, msgs[3].OfTool)
	assert.Equal(t, "c1", msgs[3].OfTool.ToolCallID)
}

func TestFinalParts_OrderedByIndex(t *testing.T) {
	parts := finalParts("hi", map[int64]*aggCall{
		1: {id: "b", name: "second"},
		0: {id: "a", name: "first"},
	})

	require.Len(t, parts, 3)
	assert.Equal(t, core.TextPart{Text: "hi"}, parts[0])
	assert.Equal(t, "first", parts[1].(core.FunctionCallPart).FunctionCall.Name)
	assert.Equal(t, "second", parts[2].(core.FunctionCallPart).FunctionCall.Name)
}

func TestInfo(t *testing.T) {
	m := NewModel(func(o *Options) {
		o.Model = "gpt-4o"
		o.APIKey = "test"
	})
	assert.Equal(t, model.Info{Name: "gpt-4o", Provider: "openai", SupportsTools: true}, m.Info())
}
