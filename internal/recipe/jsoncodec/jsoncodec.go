// Package jsoncodec parses the authored JSON form of alloy forge recipes.
//
// Repeated entries in "inputs" are counted, not rejected. Entries are
// grouped by canonical JSON (object keys sorted, numbers verbatim), so key
// order and whitespace inside an entry do not matter; any other difference
// makes two entries distinct ingredients. Ingredient entries carry only
// "item" or "tag", and a single alternative is written as an object, never
// a one-element array, so canonical JSON and ingredient identity coincide.
package jsoncodec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"alloyforge.ai/internal/recipe"
)

// Parse builds a validated recipe from one JSON document.
func Parse(id string, raw []byte, m recipe.Matcher) (recipe.Recipe, error) {
	fields, err := decodeObject("recipe", raw)
	if err != nil {
		return recipe.Recipe{}, err
	}

	inputsRaw, ok := lookup(fields, "inputs")
	if !ok {
		return recipe.Recipe{}, recipe.Errorf("inputs", "missing inputs")
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(inputsRaw, &entries); err != nil {
		return recipe.Recipe{}, recipe.Errorf("inputs", "inputs must be an array")
	}

	type group struct {
		raw   json.RawMessage
		count int
	}
	var groups []*group
	byKey := map[string]*group{}
	for i, e := range entries {
		key, err := canonical(e)
		if err != nil {
			return recipe.Recipe{}, recipe.Errorf("inputs", "inputs[%d]: %v", i, err)
		}
		if g, ok := byKey[key]; ok {
			g.count++
			continue
		}
		g := &group{raw: json.RawMessage(key), count: 1}
		byKey[key] = g
		groups = append(groups, g)
	}
	if len(groups) == 0 {
		return recipe.Recipe{}, recipe.Errorf("inputs", "inputs cannot be empty")
	}

	ingredients := make([]recipe.IngredientCount, 0, len(groups))
	for _, g := range groups {
		ing, err := ParseIngredient(g.raw, m)
		if err != nil {
			return recipe.Recipe{}, recipe.Errorf("inputs", "inputs: %v", err)
		}
		ingredients = append(ingredients, recipe.IngredientCount{Ingredient: ing, Count: g.count})
	}

	outputRaw, ok := lookup(fields, "output")
	if !ok {
		return recipe.Recipe{}, recipe.Errorf("output", "missing output")
	}
	output, err := ParseStack("output", outputRaw, m)
	if err != nil {
		return recipe.Recipe{}, err
	}

	minTier, err := requireInt(fields, "min_forge_tier")
	if err != nil {
		return recipe.Recipe{}, err
	}
	fuel, err := requireInt(fields, "fuel_per_tick")
	if err != nil {
		return recipe.Recipe{}, err
	}

	var overrides []recipe.OverrideEntry
	if ovRaw, ok := lookup(fields, "overrides"); ok && !isNull(ovRaw) {
		ovFields, err := decodeObject("overrides", ovRaw)
		if err != nil {
			return recipe.Recipe{}, err
		}
		seen := map[recipe.OverrideRange]string{}
		for _, f := range ovFields {
			rng, err := recipe.ParseRange(f.key)
			if err != nil {
				return recipe.Recipe{}, recipe.Errorf("overrides", "overrides: %v", err)
			}
			if prev, dup := seen[rng]; dup {
				return recipe.Recipe{}, recipe.Errorf("overrides", "overrides: %q and %q name the same range", prev, f.key)
			}
			seen[rng] = f.key
			stack, err := ParseStack(fmt.Sprintf("overrides[%q]", f.key), f.value, m)
			if err != nil {
				return recipe.Recipe{}, err
			}
			overrides = append(overrides, recipe.OverrideEntry{Range: rng, Output: stack})
		}
	}

	return recipe.New(id, ingredients, output, minTier, fuel, overrides)
}

// ParseIngredient accepts {"item": id}, {"tag": id} or an array of at least
// two of those. Other keys are rejected. Every entry must resolve through m.
func ParseIngredient(raw json.RawMessage, m recipe.Matcher) (recipe.Ingredient, error) {
	raw = bytes.TrimSpace(raw)
	var objs []json.RawMessage
	if len(raw) > 0 && raw[0] == '[' {
		if err := json.Unmarshal(raw, &objs); err != nil {
			return recipe.Ingredient{}, fmt.Errorf("ingredient: %w", err)
		}
		switch len(objs) {
		case 0:
			return recipe.Ingredient{}, fmt.Errorf("ingredient array cannot be empty")
		case 1:
			return recipe.Ingredient{}, fmt.Errorf("single-entry ingredient must be an object, not an array")
		}
	} else {
		objs = []json.RawMessage{raw}
	}

	entries := make([]recipe.IngredientEntry, 0, len(objs))
	for _, o := range objs {
		fields, err := decodeObject("ingredient", o)
		if err != nil {
			return recipe.Ingredient{}, err
		}
		for _, f := range fields {
			if f.key != "item" && f.key != "tag" {
				return recipe.Ingredient{}, fmt.Errorf("ingredient entry: unknown key %q", f.key)
			}
		}
		item, hasItem, err := optString(fields, "item")
		if err != nil {
			return recipe.Ingredient{}, err
		}
		tag, hasTag, err := optString(fields, "tag")
		if err != nil {
			return recipe.Ingredient{}, err
		}
		switch {
		case hasItem && hasTag:
			return recipe.Ingredient{}, fmt.Errorf("ingredient entry cannot have both item and tag")
		case hasItem:
			entries = append(entries, recipe.ItemEntry(item))
		case hasTag:
			entries = append(entries, recipe.TagEntry(tag))
		default:
			return recipe.Ingredient{}, fmt.Errorf("ingredient entry needs an item or tag")
		}
	}
	ing := recipe.NewIngredient(entries...)
	if _, err := m.MatchingItems(ing); err != nil {
		return recipe.Ingredient{}, err
	}
	return ing, nil
}

// ParseStack reads {"id": item, "count"?: n}; count defaults to 1.
func ParseStack(field string, raw json.RawMessage, reg recipe.ItemRegistry) (recipe.ItemStack, error) {
	fields, err := decodeObject(field, raw)
	if err != nil {
		return recipe.ItemStack{}, err
	}
	id, ok, err := optString(fields, "id")
	if err != nil {
		return recipe.ItemStack{}, recipe.Errorf(field, "%s: %v", field, err)
	}
	if !ok {
		return recipe.ItemStack{}, recipe.Errorf(field, "%s: missing id", field)
	}
	item, err := reg.ResolveItem(id)
	if err != nil {
		return recipe.ItemStack{}, recipe.Errorf(field, "%s: %v", field, err)
	}
	count := 1
	if _, ok := lookup(fields, "count"); ok {
		count, err = requireInt(fields, "count")
		if err != nil {
			return recipe.ItemStack{}, recipe.Errorf(field, "%s: %v", field, err)
		}
		if count < 1 {
			return recipe.ItemStack{}, recipe.Errorf(field, "%s: count must be positive, got %d", field, count)
		}
	}
	return recipe.NewStack(item, count), nil
}

type field struct {
	key   string
	value json.RawMessage
}

// decodeObject reads a JSON object keeping document order, so the first
// failing key in a document is the one reported.
func decodeObject(name string, raw []byte) ([]field, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, recipe.Errorf(name, "%s: %v", name, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, recipe.Errorf(name, "%s must be an object", name)
	}
	var out []field
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, recipe.Errorf(name, "%s: %v", name, err)
		}
		key, _ := tok.(string)
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return nil, recipe.Errorf(name, "%s.%s: %v", name, key, err)
		}
		out = append(out, field{key: key, value: v})
	}
	if _, err := dec.Token(); err != nil {
		return nil, recipe.Errorf(name, "%s: %v", name, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, recipe.Errorf(name, "%s: trailing data", name)
	}
	return out, nil
}

// lookup returns the last value for key, matching encoding/json semantics
// for duplicate keys.
func lookup(fields []field, key string) (json.RawMessage, bool) {
	var (
		v  json.RawMessage
		ok bool
	)
	for _, f := range fields {
		if f.key == key {
			v, ok = f.value, true
		}
	}
	return v, ok
}

func requireInt(fields []field, key string) (int, error) {
	raw, ok := lookup(fields, key)
	if !ok {
		return 0, recipe.Errorf(key, "missing %s", key)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, recipe.Errorf(key, "%s: %v", key, err)
	}
	n, isNum := v.(json.Number)
	if !isNum {
		return 0, recipe.Errorf(key, "%s must be an integer", key)
	}
	i, err := strconv.ParseInt(n.String(), 10, 32)
	if err != nil {
		return 0, recipe.Errorf(key, "%s must be an integer, got %s", key, n)
	}
	return int(i), nil
}

func optString(fields []field, key string) (string, bool, error) {
	raw, ok := lookup(fields, key)
	if !ok {
		return "", false, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", true, fmt.Errorf("%s must be a string", key)
	}
	return s, true, nil
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

// canonical re-encodes v with sorted object keys and verbatim numbers.
func canonical(raw json.RawMessage) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return "", err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
