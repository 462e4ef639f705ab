// Package recipe holds the alloy forge recipe data model. Values are
// immutable once built; codecs live in the jsoncodec and wirecodec
// subpackages.
package recipe

import "sort"

// Recipe converts a multiset of ingredients plus a tier requirement and a
// fuel cost into one output. Tier overrides replace the output when the
// forge runs inside their range; which override wins is up to the caller.
type Recipe struct {
	id           string
	ingredients  []IngredientCount
	output       ItemStack
	minForgeTier int
	fuelPerTick  int
	overrides    []OverrideEntry
}

// New validates and builds a Recipe. Repeated ingredients are merged by
// summing their counts. Ingredients and overrides are stored in canonical
// order so equal recipes encode identically.
func New(id string, ingredients []IngredientCount, output ItemStack, minForgeTier, fuelPerTick int, overrides []OverrideEntry) (Recipe, error) {
	if id == "" {
		return Recipe{}, formatErr("id", "recipe id cannot be empty")
	}
	if len(ingredients) == 0 {
		return Recipe{}, formatErr("inputs", "inputs cannot be empty")
	}

	merged := make([]IngredientCount, 0, len(ingredients))
	pos := map[string]int{}
	for _, ic := range ingredients {
		if err := ic.Ingredient.validate("inputs"); err != nil {
			return Recipe{}, err
		}
		if ic.Count < 1 {
			return Recipe{}, formatErr("inputs", "inputs: ingredient %s count must be positive, got %d", ic.Ingredient, ic.Count)
		}
		if i, ok := pos[ic.Ingredient.Key()]; ok {
			merged[i].Count += ic.Count
			continue
		}
		pos[ic.Ingredient.Key()] = len(merged)
		merged = append(merged, ic)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Ingredient.Key() < merged[j].Ingredient.Key() })

	if err := output.validate("output"); err != nil {
		return Recipe{}, err
	}
	if minForgeTier < 0 {
		return Recipe{}, formatErr("min_forge_tier", "min_forge_tier must be non-negative, got %d", minForgeTier)
	}
	if fuelPerTick < 0 {
		return Recipe{}, formatErr("fuel_per_tick", "fuel_per_tick must be non-negative, got %d", fuelPerTick)
	}

	ov := make([]OverrideEntry, 0, len(overrides))
	seen := map[OverrideRange]struct{}{}
	for _, e := range overrides {
		if _, dup := seen[e.Range]; dup {
			return Recipe{}, formatErr("overrides", "overrides: duplicate range %s", e.Range)
		}
		seen[e.Range] = struct{}{}
		if err := e.Output.validate("overrides[" + e.Range.String() + "]"); err != nil {
			return Recipe{}, err
		}
		ov = append(ov, e)
	}
	sort.Slice(ov, func(i, j int) bool { return ov[i].Range.Compare(ov[j].Range) < 0 })

	return Recipe{
		id:           id,
		ingredients:  merged,
		output:       output,
		minForgeTier: minForgeTier,
		fuelPerTick:  fuelPerTick,
		overrides:    ov,
	}, nil
}

func (r Recipe) ID() string { return r.id }

// Ingredients returns the ingredient multiset ordered by ingredient key.
func (r Recipe) Ingredients() []IngredientCount {
	return append([]IngredientCount(nil), r.ingredients...)
}

// Count returns how many units of ing the recipe consumes, 0 if none.
func (r Recipe) Count(ing Ingredient) int {
	for _, ic := range r.ingredients {
		if ic.Ingredient.Equal(ing) {
			return ic.Count
		}
	}
	return 0
}

// Output is the base output, used when no override applies.
func (r Recipe) Output() ItemStack { return r.output }

func (r Recipe) MinForgeTier() int { return r.minForgeTier }
func (r Recipe) FuelPerTick() int  { return r.fuelPerTick }

// Overrides returns the raw tier override table ordered by range. Ranges may
// overlap.
func (r Recipe) Overrides() []OverrideEntry {
	return append([]OverrideEntry(nil), r.overrides...)
}

// OverrideMap returns the override table keyed by range.
func (r Recipe) OverrideMap() map[OverrideRange]ItemStack {
	m := make(map[OverrideRange]ItemStack, len(r.overrides))
	for _, e := range r.overrides {
		m[e.Range] = e.Output
	}
	return m
}

// Equal reports structural equality on every attribute.
func (r Recipe) Equal(o Recipe) bool {
	if r.id != o.id || r.output != o.output || r.minForgeTier != o.minForgeTier || r.fuelPerTick != o.fuelPerTick {
		return false
	}
	if len(r.ingredients) != len(o.ingredients) || len(r.overrides) != len(o.overrides) {
		return false
	}
	for i := range r.ingredients {
		if !r.ingredients[i].Ingredient.Equal(o.ingredients[i].Ingredient) || r.ingredients[i].Count != o.ingredients[i].Count {
			return false
		}
	}
	for i := range r.overrides {
		if r.overrides[i] != o.overrides[i] {
			return false
		}
	}
	return true
}
