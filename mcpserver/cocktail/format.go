package cocktail

import (
	"fmt"
	"strings"
)

const separator = "\n\n---\n\n"

// FormatDrinks renders drinks as Markdown.
func FormatDrinks(drinks []Drink) string {
	out := make([]string, 0, len(drinks))
	for _, d := range drinks {
		out = append(out, FormatDrink(d))
	}
	return strings.Join(out, separator)
}

// FormatDrink renders one drink as Markdown.
func FormatDrink(d Drink) string {
	var b strings.Builder

	fmt.Fprintf(&b, "### %s (ID: %s)\n", d.Name, d.ID)

	var meta []string
	for _, v := range []string{d.Category, d.Alcoholic} {
		if v != "" {
			meta = append(meta, v)
		}
	}
	if d.Glass != "" {
		meta = append(meta, "served in a "+strings.ToLower(d.Glass))
	}
	if len(meta) > 0 {
		fmt.Fprintf(&b, "%s\n", strings.Join(meta, ", "))
	}

	if len(d.Ingredients) > 0 {
		b.WriteString("\n**Ingredients:**\n")
		for _, m := range d.Ingredients {
			if m.Amount != "" {
				fmt.Fprintf(&b, "- %s %s\n", m.Amount, m.Ingredient)
			} else {
				fmt.Fprintf(&b, "- %s\n", m.Ingredient)
			}
		}
	}

	if d.Instructions != "" {
		fmt.Fprintf(&b, "\n**Instructions:** %s\n", d.Instructions)
	}

	if d.Thumbnail != "" {
		fmt.Fprintf(&b, "\n![%s](%s)\n", d.Name, d.Thumbnail)
	}

	return strings.TrimRight(b.String(), "\n")
}

// FormatIngredients renders ingredients as Markdown.
func FormatIngredients(ingredients []Ingredient) string {
	out := make([]string, 0, len(ingredients))

	for _, i := range ingredients {
		var b strings.Builder
		fmt.Fprintf(&b, "### %s (ID: %s)\n", i.Name, i.ID)
		if i.Type != "" {
			fmt.Fprintf(&b, "Type: %s\n", i.Type)
		}
		if i.Alcohol != "" {
			alc := i.Alcohol
			if i.ABV != "" {
				alc += fmt.Sprintf(" (%s%% ABV)", i.ABV)
			}
			fmt.Fprintf(&b, "Alcoholic: %s\n", alc)
		}
		if i.Description != "" {
			fmt.Fprintf(&b, "\n%s\n", i.Description)
		}
		out = append(out, strings.TrimRight(b.String(), "\n"))
	}

	return strings.Join(out, separator)
}
