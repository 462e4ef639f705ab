package jsoncodec

import (
	"encoding/json"
	"fmt"

	"alloyforge.ai/internal/recipe"
)

// ParseSmelting reads a JSON array of furnace recipes:
// [{"id", "ingredient", "output": {"id", "count"?}, "cook_ticks"?}].
// cook_ticks defaults to 200.
func ParseSmelting(raw []byte, m recipe.Matcher) ([]recipe.Smelting, error) {
	var docs []json.RawMessage
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, recipe.Errorf("smelting", "smelting: %v", err)
	}
	out := make([]recipe.Smelting, 0, len(docs))
	for i, d := range docs {
		fields, err := decodeObject(fmt.Sprintf("smelting[%d]", i), d)
		if err != nil {
			return nil, err
		}
		id, ok, err := optString(fields, "id")
		if err != nil || !ok || id == "" {
			return nil, recipe.Errorf("id", "smelting[%d]: missing id", i)
		}
		ingRaw, ok := lookup(fields, "ingredient")
		if !ok {
			return nil, recipe.Errorf("ingredient", "smelting %s: missing ingredient", id)
		}
		ing, err := ParseIngredient(ingRaw, m)
		if err != nil {
			return nil, recipe.Errorf("ingredient", "smelting %s: %v", id, err)
		}
		outRaw, ok := lookup(fields, "output")
		if !ok {
			return nil, recipe.Errorf("output", "smelting %s: missing output", id)
		}
		stack, err := ParseStack("output", outRaw, m)
		if err != nil {
			return nil, recipe.Errorf("output", "smelting %s: %v", id, err)
		}
		cook := 200
		if _, ok := lookup(fields, "cook_ticks"); ok {
			cook, err = requireInt(fields, "cook_ticks")
			if err != nil {
				return nil, recipe.Errorf("cook_ticks", "smelting %s: %v", id, err)
			}
			if cook < 1 {
				return nil, recipe.Errorf("cook_ticks", "smelting %s: cook_ticks must be positive", id)
			}
		}
		out = append(out, recipe.Smelting{ID: id, Ingredient: ing, Output: stack, CookTicks: cook})
	}
	return out, nil
}
