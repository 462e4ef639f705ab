// Package wirecodec is the binary network form of alloy forge recipes.
//
// Layout (all integers unsigned varints, strings length-prefixed):
//
//	version byte
//	id string
//	ingredients: count, then (ingredient, count) pairs
//	output stack
//	min_forge_tier, fuel_per_tick
//	overrides: count, then (lower, upper, stack) triples
//
// An ingredient is an entry count followed by (kind byte, id string)
// entries; a stack is (item string, count). Open override ranges are sent
// with upper = recipe.Unbounded.
package wirecodec

import (
	"errors"
	"fmt"
	"math"

	"alloyforge.ai/internal/encoding"
	"alloyforge.ai/internal/recipe"
)

// Version is written first in every encoded recipe. Decoders reject any
// other value.
const Version byte = 1

const (
	kindItem byte = 0
	kindTag  byte = 1
)

// UnderrunError is returned when the buffer ends mid-recipe.
type UnderrunError = encoding.UnderrunError

// Encode returns the wire form of r.
func Encode(r recipe.Recipe) []byte {
	return Append(nil, r)
}

// Append appends the wire form of r to dst.
func Append(dst []byte, r recipe.Recipe) []byte {
	w := encoding.NewWriter(dst)
	w.Byte(Version)
	w.String(r.ID())

	ings := r.Ingredients()
	w.VarInt(len(ings))
	for _, ic := range ings {
		writeIngredient(w, ic.Ingredient)
		w.VarInt(ic.Count)
	}

	writeStack(w, r.Output())
	w.VarInt(r.MinForgeTier())
	w.VarInt(r.FuelPerTick())

	ov := r.Overrides()
	w.VarInt(len(ov))
	for _, e := range ov {
		w.VarInt(e.Range.Lower())
		w.VarInt(e.Range.Upper())
		writeStack(w, e.Output)
	}
	return w.Bytes()
}

func writeIngredient(w *encoding.Writer, ing recipe.Ingredient) {
	entries := ing.Entries()
	w.VarInt(len(entries))
	for _, e := range entries {
		if e.IsTag() {
			w.Byte(kindTag)
			w.String(e.Tag)
			continue
		}
		w.Byte(kindItem)
		w.String(e.Item)
	}
}

func writeStack(w *encoding.Writer, s recipe.ItemStack) {
	w.String(s.Item)
	w.VarInt(s.Count)
}

// Decode reads exactly one recipe from b. Every item and ingredient must
// resolve through m; any failure aborts the whole decode.
func Decode(b []byte, m recipe.Matcher) (recipe.Recipe, error) {
	r := encoding.NewReader(b)
	rec, err := Read(r, m)
	if err != nil {
		return recipe.Recipe{}, err
	}
	if r.Remaining() != 0 {
		return recipe.Recipe{}, recipe.Errorf("recipe", "recipe %s: %d trailing bytes", rec.ID(), r.Remaining())
	}
	return rec, nil
}

// DecodeAll reads back-to-back recipes until b is exhausted.
func DecodeAll(b []byte, m recipe.Matcher) ([]recipe.Recipe, error) {
	r := encoding.NewReader(b)
	var out []recipe.Recipe
	for r.Remaining() > 0 {
		rec, err := Read(r, m)
		if err != nil {
			return nil, fmt.Errorf("recipe #%d: %w", len(out), err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Read decodes one recipe from r, leaving r positioned after it.
func Read(r *encoding.Reader, m recipe.Matcher) (recipe.Recipe, error) {
	v, err := r.Byte("version")
	if err != nil {
		return recipe.Recipe{}, err
	}
	if v != Version {
		return recipe.Recipe{}, recipe.Errorf("version", "unsupported recipe wire version %d (want %d)", v, Version)
	}
	id, err := r.String("id")
	if err != nil {
		return recipe.Recipe{}, wrap("", err)
	}

	n, err := r.Count("ingredients")
	if err != nil {
		return recipe.Recipe{}, wrap(id, err)
	}
	ings := make([]recipe.IngredientCount, 0, n)
	for i := 0; i < n; i++ {
		ing, err := readIngredient(r, m)
		if err != nil {
			return recipe.Recipe{}, wrap(id, err)
		}
		count, err := r.VarInt("ingredient count", math.MaxInt32)
		if err != nil {
			return recipe.Recipe{}, wrap(id, err)
		}
		ings = append(ings, recipe.IngredientCount{Ingredient: ing, Count: count})
	}

	output, err := readStack(r, m, "output")
	if err != nil {
		return recipe.Recipe{}, wrap(id, err)
	}
	minTier, err := r.VarInt("min_forge_tier", math.MaxInt32)
	if err != nil {
		return recipe.Recipe{}, wrap(id, err)
	}
	fuel, err := r.VarInt("fuel_per_tick", math.MaxInt32)
	if err != nil {
		return recipe.Recipe{}, wrap(id, err)
	}

	n, err = r.Count("overrides")
	if err != nil {
		return recipe.Recipe{}, wrap(id, err)
	}
	overrides := make([]recipe.OverrideEntry, 0, n)
	for i := 0; i < n; i++ {
		lo, err := r.VarInt("override lower", recipe.Unbounded)
		if err != nil {
			return recipe.Recipe{}, wrap(id, err)
		}
		hi, err := r.VarInt("override upper", recipe.Unbounded)
		if err != nil {
			return recipe.Recipe{}, wrap(id, err)
		}
		rng, err := recipe.Bounded(lo, hi)
		if err != nil {
			return recipe.Recipe{}, wrap(id, err)
		}
		stack, err := readStack(r, m, "override stack")
		if err != nil {
			return recipe.Recipe{}, wrap(id, err)
		}
		overrides = append(overrides, recipe.OverrideEntry{Range: rng, Output: stack})
	}

	rec, err := recipe.New(id, ings, output, minTier, fuel, overrides)
	if err != nil {
		return recipe.Recipe{}, wrap(id, err)
	}
	return rec, nil
}

func readIngredient(r *encoding.Reader, m recipe.Matcher) (recipe.Ingredient, error) {
	n, err := r.Count("ingredient entries")
	if err != nil {
		return recipe.Ingredient{}, err
	}
	entries := make([]recipe.IngredientEntry, 0, n)
	for i := 0; i < n; i++ {
		kind, err := r.Byte("ingredient kind")
		if err != nil {
			return recipe.Ingredient{}, err
		}
		s, err := r.String("ingredient id")
		if err != nil {
			return recipe.Ingredient{}, err
		}
		switch kind {
		case kindItem:
			entries = append(entries, recipe.ItemEntry(s))
		case kindTag:
			entries = append(entries, recipe.TagEntry(s))
		default:
			return recipe.Ingredient{}, recipe.Errorf("ingredient", "unknown ingredient entry kind %d", kind)
		}
	}
	ing := recipe.NewIngredient(entries...)
	if _, err := m.MatchingItems(ing); err != nil {
		return recipe.Ingredient{}, recipe.Errorf("ingredient", "ingredient %s: %v", ing, err)
	}
	return ing, nil
}

func readStack(r *encoding.Reader, reg recipe.ItemRegistry, field string) (recipe.ItemStack, error) {
	id, err := r.String(field)
	if err != nil {
		return recipe.ItemStack{}, err
	}
	item, err := reg.ResolveItem(id)
	if err != nil {
		return recipe.ItemStack{}, recipe.Errorf(field, "%s: %v", field, err)
	}
	count, err := r.VarInt(field+" count", math.MaxInt32)
	if err != nil {
		return recipe.ItemStack{}, err
	}
	return recipe.NewStack(item, count), nil
}

// wrap prefixes err with the recipe id. Underruns keep their type; every
// other failure becomes a FormatError.
func wrap(id string, err error) error {
	prefix := ""
	if id != "" {
		prefix = "recipe " + id + ": "
	}
	var ue *UnderrunError
	if errors.As(err, &ue) {
		return fmt.Errorf("%s%w", prefix, err)
	}
	field, msg := "", err.Error()
	var fe *recipe.FormatError
	if errors.As(err, &fe) {
		field, msg = fe.Field, fe.Msg
	}
	return &recipe.FormatError{Field: field, Msg: prefix + msg}
}
