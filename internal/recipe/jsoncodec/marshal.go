package jsoncodec

import (
	"encoding/json"
	"fmt"

	"alloyforge.ai/internal/recipe"
)

type stackJSON struct {
	ID    string `json:"id"`
	Count int    `json:"count,omitempty"`
}

type recipeJSON struct {
	Inputs       []json.RawMessage    `json:"inputs"`
	Output       stackJSON            `json:"output"`
	MinForgeTier int                  `json:"min_forge_tier"`
	FuelPerTick  int                  `json:"fuel_per_tick"`
	Overrides    map[string]stackJSON `json:"overrides,omitempty"`
}

// Marshal renders r in the authored form accepted by Parse. Each ingredient
// is repeated once per required unit.
func Marshal(r recipe.Recipe) ([]byte, error) {
	doc := recipeJSON{
		Output:       toStackJSON(r.Output()),
		MinForgeTier: r.MinForgeTier(),
		FuelPerTick:  r.FuelPerTick(),
	}
	for _, ic := range r.Ingredients() {
		b, err := MarshalIngredient(ic.Ingredient)
		if err != nil {
			return nil, err
		}
		for i := 0; i < ic.Count; i++ {
			doc.Inputs = append(doc.Inputs, b)
		}
	}
	if ov := r.Overrides(); len(ov) > 0 {
		doc.Overrides = make(map[string]stackJSON, len(ov))
		for _, e := range ov {
			doc.Overrides[e.Range.String()] = toStackJSON(e.Output)
		}
	}
	return json.MarshalIndent(doc, "", "  ")
}

// MarshalIngredient emits a single object for one-entry ingredients and an
// array otherwise.
func MarshalIngredient(ing recipe.Ingredient) (json.RawMessage, error) {
	entries := ing.Entries()
	switch len(entries) {
	case 0:
		return nil, fmt.Errorf("ingredient has no entries")
	case 1:
		return json.Marshal(entries[0])
	default:
		return json.Marshal(entries)
	}
}

func toStackJSON(s recipe.ItemStack) stackJSON {
	out := stackJSON{ID: s.Item}
	if s.Count != 1 {
		out.Count = s.Count
	}
	return out
}
