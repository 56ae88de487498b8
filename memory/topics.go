package memory

// Topic tells a Generator which kind of facts to extract.
type Topic struct {
	Label       string `json:"label"`
	Description string `json:"description"`
}

// Managed topics cover facts that are useful for every agent.
var (
	TopicUserPersonalInfo = Topic{Label: "USER_PERSONAL_INFO", Description: "Significant personal information about the user, such as names, relationships, hobbies or important dates."}
	TopicUserPreferences  = Topic{Label: "USER_PREFERENCES", Description: "Stated or implied likes, dislikes, preferred styles or patterns."}
	TopicKeyConversation  = Topic{Label: "KEY_CONVERSATION_DETAILS", Description: "Important milestones or conclusions within the dialogue."}
	TopicExplicitInstruct = Topic{Label: "EXPLICIT_INSTRUCTIONS", Description: "Information that the user explicitly asked to remember or to forget."}
)

// ManagedTopics returns the managed topic set.
func ManagedTopics() []Topic {
	return []Topic{TopicUserPersonalInfo, TopicUserPreferences, TopicKeyConversation, TopicExplicitInstruct}
}

// CocktailTopics are extracted by the cocktail agent's memory bank.
func CocktailTopics() []Topic {
	return append([]Topic{
		{Label: "cocktail_id", Description: "cocktail id retrieved from the MCP server"},
		{Label: "cocktail_recipe", Description: "cocktail recipe from the MCP server"},
		{Label: "cocktail_ingredients", Description: "cocktail ingredients from the MCP server"},
	}, ManagedTopics()...)
}

// WeatherTopics are extracted by the weather agent's memory bank.
func WeatherTopics() []Topic {
	return append([]Topic{
		{Label: "location", Description: "city and state mentioned in the conversation"},
		{Label: "weather_forecast", Description: "weather forecast details from the MCP server"},
	}, ManagedTopics()...)
}

// OrchestratorTopics are extracted by the hosting agent's memory bank.
func OrchestratorTopics() []Topic {
	return append([]Topic{
		{Label: "task_delegation", Description: "Information about tasks delegated to specialized agents"},
		{Label: "agent_routing", Description: "Information about which agents were selected for which types of queries"},
		{Label: "cocktail_id", Description: "cocktail id retrieved from remote agents"},
		{Label: "cocktail_recipe", Description: "cocktail recipe from remote agent"},
		{Label: "cocktail_ingredients", Description: "cocktail ingredients from remote agent"},
		{Label: "location", Description: "city and state mentioned in the conversation"},
		{Label: "weather_forecast", Description: "weather forecast details from remote agent"},
	}, ManagedTopics()...)
}
