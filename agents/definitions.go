package agents

import (
	"github.com/a2aproject/a2a-go/a2a"

	"github.com/hupe1980/a2amesh/a2akit"
	"github.com/hupe1980/a2amesh/memory"
	"github.com/hupe1980/a2amesh/orchestrator"
)

const (
	// DefaultModel backs every built-in agent.
	DefaultModel = "gemini-2.5-flash"
	// CardDescription is published by every built-in agent card.
	CardDescription = "A helpful assistant agent that can answer questions."
	// CardVersion is the version advertised in agent cards.
	CardVersion = "1.0.0"
	// TextMode is the only input and output mode of the built-in agents.
	TextMode = "text/plain"
)

// Definition describes a built-in agent and its published card.
type Definition struct {
	Name        string
	Description string
	Instruction string
	Model       string
	// MCPURLEnv names the environment variable holding the MCP server URL.
	// Empty for agents without an MCP server.
	MCPURLEnv string
	// Topics are extracted into the memory bank when memory is enabled.
	Topics   []memory.Topic
	CardName string
	Skill    a2a.AgentSkill
}

// Card returns the agent card served at url.
func (d Definition) Card(url string) a2a.AgentCard {
	return a2a.AgentCard{
		Name:               d.CardName,
		Description:        CardDescription,
		URL:                url,
		Version:            CardVersion,
		ProtocolVersion:    a2akit.ProtocolVersion,
		PreferredTransport: a2a.TransportProtocolJSONRPC,
		Capabilities:       a2a.AgentCapabilities{Streaming: true},
		DefaultInputModes:  []string{TextMode},
		DefaultOutputModes: []string{TextMode},
		Skills:             []a2a.AgentSkill{d.Skill},
	}
}

// Cocktail answers cocktail questions with the cocktail MCP server.
var Cocktail = Definition{
	Name:        "cocktail_agent",
	Description: "An agent that can help questions about cocktail",
	Instruction: "You are a specialized cocktail expert. Your primary function is to " +
		"utilize the provided tools to retrieve previous conversations, and relay " +
		"cocktail information in response to user queries. You can handle all " +
		"inquiries related to cocktails, drink recipes, ingredients, and mixology. You " +
		"must rely exclusively on these tools for data and refrain from inventing " +
		"information. Ensure that all responses include the detailed output from " +
		"the tools used and are formatted in Markdown",
	Model:     DefaultModel,
	MCPURLEnv: "CT_MCP_SERVER_URL",
	Topics:    memory.CocktailTopics(),
	CardName:  "Cocktail Agent - ADK",
	Skill: a2a.AgentSkill{
		ID:          "cocktail_cocktail",
		Name:        "Search cocktail information",
		Description: "Helps with cocktail information search",
		Tags:        []string{"cocktail", "drink", "recipe", "ingredients"},
		Examples: []string{
			"List a random cocktail",
			"Find a cocktail with rum",
			"What are the ingredients for a Margarita?",
		},
		InputModes:  []string{TextMode},
		OutputModes: []string{TextMode},
	},
}

// Weather answers weather questions with the weather MCP server.
var Weather = Definition{
	Name:        "weather_agent",
	Description: "An agent that can help questions about weather",
	Instruction: "You are a specialized weather forecast assistant. Your primary function is " +
		"to utilize the provided tools to retrieve previous conversations, and " +
		"relay weather information in response to user queries. You must rely " +
		"exclusively on these tools for data and refrain from inventing " +
		"information. Ensure that all responses include the detailed output from " +
		"the tools used and are formatted in Markdown",
	Model:     DefaultModel,
	MCPURLEnv: "WEA_MCP_SERVER_URL",
	Topics:    memory.WeatherTopics(),
	CardName:  "Weather Agent",
	Skill: a2a.AgentSkill{
		ID:          "weather_search",
		Name:        "Search weather",
		Description: "Helps with weather in city, or states",
		Tags:        []string{"weather"},
		Examples:    []string{"weather in LA, CA"},
		InputModes:  []string{TextMode},
		OutputModes: []string{TextMode},
	},
}

// Host delegates to the cocktail and weather agents over A2A. Its
// instruction comes from the orchestrator.
var Host = Definition{
	Name:     orchestrator.AgentName,
	Model:    DefaultModel,
	Topics:   memory.OrchestratorTopics(),
	CardName: "Hosting Agent - ADK",
	Skill: a2a.AgentSkill{
		ID:          "hosting_agent",
		Name:        "Search hosting agent",
		Description: "Helps with weather in city, or states, and cocktails",
		Tags:        []string{"host_agent"},
		Examples:    []string{"weather in LA, CA", "List a random cocktail", "What is a margarita?"},
		InputModes:  []string{TextMode},
		OutputModes: []string{TextMode},
	},
}

// Lookup returns the built-in definition for name: cocktail, weather or host.
func Lookup(name string) (Definition, bool) {
	switch name {
	case "cocktail":
		return Cocktail, true
	case "weather":
		return Weather, true
	case "host":
		return Host, true
	default:
		return Definition{}, false
	}
}
