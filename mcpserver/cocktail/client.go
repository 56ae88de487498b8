// Package cocktail implements an MCP server answering cocktail questions
// from TheCocktailDB.
package cocktail

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hupe1980/a2amesh/mcpserver"
)

// DefaultBaseURL is the free TheCocktailDB API.
const DefaultBaseURL = "https://www.thecocktaildb.com/api/json/v1/1"

const service = "TheCocktailDB"

// Drink is a cocktail recipe.
type Drink struct {
	ID           string
	Name         string
	Category     string
	Alcoholic    string
	Glass        string
	Instructions string
	Thumbnail    string
	Ingredients  []Measure
}

// Measure pairs an ingredient with its amount.
type Measure struct {
	Ingredient string
	Amount     string
}

// Ingredient describes a single ingredient.
type Ingredient struct {
	ID          string `json:"idIngredient"`
	Name        string `json:"strIngredient"`
	Description string `json:"strDescription"`
	Type        string `json:"strType"`
	Alcohol     string `json:"strAlcohol"`
	ABV         string `json:"strABV"`
}

// ClientOptions configures a Client.
type ClientOptions struct {
	BaseURL    string
	HTTPClient *http.Client
}

// Client calls TheCocktailDB.
type Client struct {
	opts ClientOptions
}

// NewClient creates a TheCocktailDB client.
func NewClient(optFns ...func(o *ClientOptions)) *Client {
	opts := ClientOptions{
		BaseURL:    DefaultBaseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")

	return &Client{opts: opts}
}

// SearchByName finds cocktails whose name contains name.
func (c *Client) SearchByName(ctx context.Context, name string) ([]Drink, error) {
	return c.drinks(ctx, "search.php", url.Values{"s": {name}})
}

// ListByFirstLetter lists cocktails starting with letter.
func (c *Client) ListByFirstLetter(ctx context.Context, letter string) ([]Drink, error) {
	return c.drinks(ctx, "search.php", url.Values{"f": {letter}})
}

// Random returns a random cocktail.
func (c *Client) Random(ctx context.Context) ([]Drink, error) {
	return c.drinks(ctx, "random.php", nil)
}

// LookupByID returns the cocktail with the given id.
func (c *Client) LookupByID(ctx context.Context, id string) ([]Drink, error) {
	return c.drinks(ctx, "lookup.php", url.Values{"i": {id}})
}

// SearchIngredient finds ingredients by name.
func (c *Client) SearchIngredient(ctx context.Context, name string) ([]Ingredient, error) {
	var resp struct {
		Ingredients json.RawMessage `json:"ingredients"`
	}

	if err := c.get(ctx, "search.php", url.Values{"i": {name}}, &resp); err != nil {
		return nil, err
	}

	var ingredients []Ingredient
	if !isList(resp.Ingredients) {
		return nil, nil
	}
	if err := json.Unmarshal(resp.Ingredients, &ingredients); err != nil {
		return nil, fmt.Errorf("decode ingredients: %w", err)
	}

	return ingredients, nil
}

func (c *Client) drinks(ctx context.Context, path string, q url.Values) ([]Drink, error) {
	var resp struct {
		Drinks json.RawMessage `json:"drinks"`
	}

	if err := c.get(ctx, path, q, &resp); err != nil {
		return nil, err
	}

	// "drinks" is null or a string when nothing matched.
	if !isList(resp.Drinks) {
		return nil, nil
	}

	var raw []map[string]any
	if err := json.Unmarshal(resp.Drinks, &raw); err != nil {
		return nil, fmt.Errorf("decode drinks: %w", err)
	}

	drinks := make([]Drink, 0, len(raw))
	for _, r := range raw {
		drinks = append(drinks, parseDrink(r))
	}

	return drinks, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, v any) error {
	u := c.opts.BaseURL + "/" + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	return mcpserver.GetJSON(ctx, c.opts.HTTPClient, service, u, map[string]string{"Accept": "application/json"}, v)
}

func isList(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return strings.HasPrefix(s, "[")
}

func parseDrink(r map[string]any) Drink {
	str := func(k string) string {
		s, _ := r[k].(string)
		return strings.TrimSpace(s)
	}

	d := Drink{
		ID:           str("idDrink"),
		Name:         str("strDrink"),
		Category:     str("strCategory"),
		Alcoholic:    str("strAlcoholic"),
		Glass:        str("strGlass"),
		Instructions: str("strInstructions"),
		Thumbnail:    str("strDrinkThumb"),
	}

	for i := 1; i <= 15; i++ {
		ing := str(fmt.Sprintf("strIngredient%d", i))
		if ing == "" {
			continue
		}
		d.Ingredients = append(d.Ingredients, Measure{Ingredient: ing, Amount: str(fmt.Sprintf("strMeasure%d", i))})
	}

	return d
}
