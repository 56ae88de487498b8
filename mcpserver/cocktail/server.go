package cocktail

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hupe1980/a2amesh/logging"
	"github.com/hupe1980/a2amesh/mcpserver"
)

// ServerName is the MCP implementation name.
const ServerName = "cocktail-mcp-server"

// Options configures the cocktail MCP server.
type Options struct {
	Version string
	Logger  logging.Logger
}

type handlers struct {
	client *Client
	logger logging.Logger
}

// NewServer creates the MCP server exposing the cocktail tools backed by client.
func NewServer(client *Client, optFns ...func(o *Options)) *server.MCPServer {
	opts := Options{Version: "1.0.0", Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	h := &handlers{client: client, logger: opts.Logger}

	s := server.NewMCPServer(ServerName, opts.Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	s.AddTool(mcp.NewTool("search_cocktail_by_name",
		mcp.WithDescription("Searches cocktails by name and returns their recipes."),
		mcp.WithString("name", mcp.Required(), mcp.Description("The cocktail name, e.g. margarita")),
	), h.searchByName)

	s.AddTool(mcp.NewTool("list_cocktail_by_first_letter",
		mcp.WithDescription("Lists all cocktails starting with the given letter."),
		mcp.WithString("letter", mcp.Required(), mcp.Description("A single letter")),
	), h.listByFirstLetter)

	s.AddTool(mcp.NewTool("search_ingredient_by_name",
		mcp.WithDescription("Searches an ingredient by name and describes it."),
		mcp.WithString("name", mcp.Required(), mcp.Description("The ingredient name, e.g. vodka")),
	), h.searchIngredient)

	s.AddTool(mcp.NewTool("list_random_cocktails",
		mcp.WithDescription("Returns a random cocktail recipe."),
	), h.random)

	s.AddTool(mcp.NewTool("lookup_cocktail_details_by_id",
		mcp.WithDescription("Looks up the full recipe of a cocktail by its id."),
		mcp.WithString("cocktail_id", mcp.Required(), mcp.Description("The cocktail id, e.g. 11007")),
	), h.lookupByID)

	return s
}

func (h *handlers) searchByName(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	drinks, err := h.client.SearchByName(ctx, name)
	return h.drinksResult("search cocktails", fmt.Sprintf("named %q", name), drinks, err), nil
}

func (h *handlers) listByFirstLetter(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	letter, err := req.RequireString("letter")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	letter = strings.TrimSpace(letter)
	if r, size := utf8.DecodeRuneInString(letter); size != len(letter) || size == 0 || !unicode.IsLetter(r) {
		return mcp.NewToolResultError(fmt.Sprintf("letter must be exactly one letter, got %q", letter)), nil
	}

	drinks, err := h.client.ListByFirstLetter(ctx, strings.ToLower(letter))
	return h.drinksResult("list cocktails", fmt.Sprintf("starting with %q", letter), drinks, err), nil
}

func (h *handlers) searchIngredient(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	ingredients, err := h.client.SearchIngredient(ctx, name)
	if err != nil {
		h.logger.Error("mcp.cocktail.error", "tool", "search_ingredient_by_name", "error", err)
		return mcpserver.ErrorResult("search ingredients", err), nil
	}

	if len(ingredients) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No ingredients found named %q.", name)), nil
	}

	return mcp.NewToolResultText(FormatIngredients(ingredients)), nil
}

func (h *handlers) random(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	drinks, err := h.client.Random(ctx)
	return h.drinksResult("fetch a random cocktail", "", drinks, err), nil
}

func (h *handlers) lookupByID(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("cocktail_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	drinks, err := h.client.LookupByID(ctx, strings.TrimSpace(id))
	return h.drinksResult("look up the cocktail", fmt.Sprintf("with id %q", id), drinks, err), nil
}

func (h *handlers) drinksResult(action, query string, drinks []Drink, err error) *mcp.CallToolResult {
	if err != nil {
		h.logger.Error("mcp.cocktail.error", "action", action, "error", err)
		return mcpserver.ErrorResult(action, err)
	}

	if len(drinks) == 0 {
		if query == "" {
			return mcp.NewToolResultText("No cocktails found.")
		}
		return mcp.NewToolResultText(fmt.Sprintf("No cocktails found %s.", query))
	}

	h.logger.Debug("mcp.cocktail.result", "action", action, "count", len(drinks))

	return mcp.NewToolResultText(FormatDrinks(drinks))
}
