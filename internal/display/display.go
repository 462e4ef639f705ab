// Package display derives read-only, display-ready views of forge recipes.
// A projection is never authoritative; it can always be rebuilt from its
// source recipe.
package display

import (
	"fmt"
	"math"

	"alloyforge.ai/internal/recipe"
)

// MaxGroupSize is the largest count shown in a single slot.
const MaxGroupSize = 64

// Group is one displayed slot: every concrete item that can fill it, all at
// the same count.
type Group []recipe.ItemStack

// Units is the count shown for the slot.
func (g Group) Units() int {
	if len(g) == 0 {
		return 0
	}
	return g[0].Count
}

// Display is what a display host needs to render a recipe.
type Display interface {
	InputEntries() []Group
	OutputEntries() []Group
	Location() (string, bool)
}

// Projection is the display view of one forge or smelting recipe.
type Projection struct {
	inputs       []Group
	output       Group
	minForgeTier int
	fuelPerTick  int
	overrides    []recipe.OverrideEntry
	sourceID     string
}

var _ Display = Projection{}

// New builds a projection from parts. An empty sourceID means the
// projection has no stable backing recipe.
func New(inputs []Group, output Group, minForgeTier, fuelPerTick int, overrides []recipe.OverrideEntry, sourceID string) Projection {
	in := make([]Group, len(inputs))
	for i, g := range inputs {
		in[i] = append(Group(nil), g...)
	}
	return Projection{
		inputs:       in,
		output:       append(Group(nil), output...),
		minForgeTier: minForgeTier,
		fuelPerTick:  fuelPerTick,
		overrides:    append([]recipe.OverrideEntry(nil), overrides...),
		sourceID:     sourceID,
	}
}

// FromRecipe splits each ingredient's required count into groups of at most
// MaxGroupSize, each listing every matching item at that count.
func FromRecipe(r recipe.Recipe, m recipe.Matcher) (Projection, error) {
	var inputs []Group
	for _, ic := range r.Ingredients() {
		items, err := m.MatchingItems(ic.Ingredient)
		if err != nil {
			return Projection{}, fmt.Errorf("display %s: %w", r.ID(), err)
		}
		for _, n := range Split(ic.Count) {
			inputs = append(inputs, groupOf(items, n))
		}
	}
	return New(inputs, Group{r.Output()}, r.MinForgeTier(), r.FuelPerTick(), r.Overrides(), r.ID()), nil
}

// FuelModel derives a per-tick forge fuel cost for furnace recipes, so
// faster recipes burn more per tick.
type FuelModel struct {
	BaseFuelPerTick    int
	ReferenceCookTicks int
}

func DefaultFuelModel() FuelModel {
	return FuelModel{BaseFuelPerTick: 5, ReferenceCookTicks: 200}
}

func (f FuelModel) FuelPerTick(cookTicks int) int {
	if cookTicks <= 0 || f.ReferenceCookTicks <= 0 {
		return f.BaseFuelPerTick
	}
	return int(math.Round(float64(f.BaseFuelPerTick) * float64(f.ReferenceCookTicks) / float64(cookTicks)))
}

// SmeltingTier is the forge tier shown for furnace recipes.
const SmeltingTier = 1

// FromSmelting adapts a furnace recipe: one single-count input group, the
// lowest forge tier and a fuel cost derived from the cook time.
func FromSmelting(s recipe.Smelting, m recipe.Matcher, fuel FuelModel) (Projection, error) {
	items, err := m.MatchingItems(s.Ingredient)
	if err != nil {
		return Projection{}, fmt.Errorf("display %s: %w", s.ID, err)
	}
	return New([]Group{groupOf(items, 1)}, Group{s.Output}, SmeltingTier, fuel.FuelPerTick(s.CookTicks), nil, s.ID), nil
}

// Split breaks count into chunks of at most MaxGroupSize.
func Split(count int) []int {
	var out []int
	for remaining := count; remaining > 0; {
		n := min(remaining, MaxGroupSize)
		out = append(out, n)
		remaining -= n
	}
	return out
}

func groupOf(items []string, n int) Group {
	g := make(Group, len(items))
	for i, it := range items {
		g[i] = recipe.NewStack(it, n)
	}
	return g
}

func (p Projection) InputEntries() []Group {
	out := make([]Group, len(p.inputs))
	for i, g := range p.inputs {
		out[i] = append(Group(nil), g...)
	}
	return out
}

func (p Projection) OutputEntries() []Group {
	return []Group{append(Group(nil), p.output...)}
}

func (p Projection) Location() (string, bool) {
	return p.sourceID, p.sourceID != ""
}

func (p Projection) MinForgeTier() int { return p.minForgeTier }
func (p Projection) FuelPerTick() int  { return p.fuelPerTick }

func (p Projection) Overrides() []recipe.OverrideEntry {
	return append([]recipe.OverrideEntry(nil), p.overrides...)
}

func (p Projection) Equal(o Projection) bool {
	if p.sourceID != o.sourceID || p.minForgeTier != o.minForgeTier || p.fuelPerTick != o.fuelPerTick {
		return false
	}
	if !groupEqual(p.output, o.output) || len(p.inputs) != len(o.inputs) || len(p.overrides) != len(o.overrides) {
		return false
	}
	for i := range p.inputs {
		if !groupEqual(p.inputs[i], o.inputs[i]) {
			return false
		}
	}
	for i := range p.overrides {
		if p.overrides[i] != o.overrides[i] {
			return false
		}
	}
	return true
}

func groupEqual(a, b Group) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
