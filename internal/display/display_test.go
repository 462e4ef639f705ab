package display

import (
	"testing"

	"alloyforge.ai/internal/display/tag"
	"alloyforge.ai/internal/recipe"
	"alloyforge.ai/internal/registry"
)

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	r, err := registry.New(
		[]registry.ItemDef{{ID: "iron_ingot"}, {ID: "raw_iron"}, {ID: "coal"}, {ID: "charcoal"}, {ID: "steel_ingot"}, {ID: "gold_ingot"}},
		[]registry.TagDef{{ID: "fuels", Items: []string{"coal", "charcoal"}}},
	)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return r
}

func TestFromRecipeSplitsCounts(t *testing.T) {
	r, err := recipe.New("alloyforge:steel",
		[]recipe.IngredientCount{
			{Ingredient: recipe.OfItem("iron_ingot"), Count: 130},
			{Ingredient: recipe.OfTag("fuels"), Count: 3},
		},
		recipe.NewStack("steel_ingot", 2), 2, 9,
		[]recipe.OverrideEntry{{Range: recipe.AtLeast(10), Output: recipe.NewStack("gold_ingot", 2)}})
	if err != nil {
		t.Fatalf("recipe.New: %v", err)
	}

	p, err := FromRecipe(r, testRegistry(t))
	if err != nil {
		t.Fatalf("FromRecipe: %v", err)
	}
	groups := p.InputEntries()
	// Ingredients are ordered by key: "#fuels" sorts before "iron_ingot".
	if len(groups) != 4 {
		t.Fatalf("expected 4 groups, got %d", len(groups))
	}
	if len(groups[0]) != 2 || groups[0][0] != recipe.NewStack("coal", 3) || groups[0][1] != recipe.NewStack("charcoal", 3) {
		t.Fatalf("unexpected fuel group: %v", groups[0])
	}
	var units []int
	for _, g := range groups[1:] {
		if len(g) != 1 || g[0].Item != "iron_ingot" {
			t.Fatalf("unexpected iron group: %v", g)
		}
		units = append(units, g.Units())
	}
	if len(units) != 3 || units[0] != 64 || units[1] != 64 || units[2] != 2 {
		t.Fatalf("units=%v want [64 64 2]", units)
	}

	out := p.OutputEntries()
	if len(out) != 1 || len(out[0]) != 1 || out[0][0] != recipe.NewStack("steel_ingot", 2) {
		t.Fatalf("unexpected output: %v", out)
	}
	if id, ok := p.Location(); !ok || id != "alloyforge:steel" {
		t.Fatalf("location=%q,%v", id, ok)
	}
	if p.MinForgeTier() != 2 || p.FuelPerTick() != 9 {
		t.Fatalf("scalars not copied")
	}
}

func TestSplit(t *testing.T) {
	cases := map[int][]int{
		1:   {1},
		64:  {64},
		65:  {64, 1},
		130: {64, 64, 2},
		0:   nil,
	}
	for in, want := range cases {
		got := Split(in)
		if len(got) != len(want) {
			t.Fatalf("Split(%d)=%v want %v", in, got, want)
		}
		total := 0
		for i := range got {
			if got[i] != want[i] {
				t.Fatalf("Split(%d)=%v want %v", in, got, want)
			}
			total += got[i]
		}
		if total != in {
			t.Fatalf("Split(%d) sums to %d", in, total)
		}
	}
}

func TestFromSmelting(t *testing.T) {
	s := recipe.Smelting{ID: "minecraft:iron_ingot_from_blasting", Ingredient: recipe.OfItem("raw_iron"), Output: recipe.NewStack("iron_ingot", 1), CookTicks: 100}
	p, err := FromSmelting(s, testRegistry(t), DefaultFuelModel())
	if err != nil {
		t.Fatalf("FromSmelting: %v", err)
	}
	if p.MinForgeTier() != SmeltingTier || p.FuelPerTick() != 10 {
		t.Fatalf("tier=%d fuel=%d", p.MinForgeTier(), p.FuelPerTick())
	}
	in := p.InputEntries()
	if len(in) != 1 || in[0].Units() != 1 || in[0][0].Item != "raw_iron" {
		t.Fatalf("unexpected inputs: %v", in)
	}
	if len(p.Overrides()) != 0 {
		t.Fatalf("furnace recipes have no overrides")
	}
	if got := DefaultFuelModel().FuelPerTick(0); got != 5 {
		t.Fatalf("zero cook time should use base fuel, got %d", got)
	}
}

func TestSaveReadRoundTrip(t *testing.T) {
	r, err := recipe.New("alloyforge:gilded",
		[]recipe.IngredientCount{{Ingredient: recipe.OfItem("iron_ingot"), Count: 70}},
		recipe.NewStack("iron_ingot", 1), 1, 12,
		[]recipe.OverrideEntry{
			{Range: recipe.AtLeast(10), Output: recipe.NewStack("gold_ingot", 2)},
			{Range: recipe.Single(3), Output: recipe.NewStack("steel_ingot", 1)},
		})
	if err != nil {
		t.Fatalf("recipe.New: %v", err)
	}
	p, err := FromRecipe(r, testRegistry(t))
	if err != nil {
		t.Fatalf("FromRecipe: %v", err)
	}

	c := Save(tag.NewCompound(), p)
	if n, _ := c.GetInt("min_forge_tier"); n != 1 {
		t.Fatalf("min_forge_tier=%d", n)
	}
	if n, _ := c.GetInt("fuel_per_tick"); n != 12 {
		t.Fatalf("fuel_per_tick=%d", n)
	}

	b, err := Encode(p)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	back, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !back.Equal(p) {
		t.Fatalf("round trip mismatch:\n%s", b)
	}
	// Tier and fuel differ here, so reading one key for both would show.
	if back.MinForgeTier() != 1 || back.FuelPerTick() != 12 {
		t.Fatalf("tier=%d fuel=%d", back.MinForgeTier(), back.FuelPerTick())
	}
	var gold recipe.OverrideEntry
	for _, e := range back.Overrides() {
		if e.Range == recipe.AtLeast(10) {
			gold = e
		}
	}
	if gold.Output != recipe.NewStack("gold_ingot", 2) || gold.Range.Upper() != recipe.Unbounded {
		t.Fatalf("open override lost: %+v", gold)
	}
}

func TestReadWithoutSource(t *testing.T) {
	p := New([]Group{{recipe.NewStack("coal", 1)}}, Group{recipe.NewStack("charcoal", 1)}, 0, 0, nil, "")
	c := Save(tag.NewCompound(), p)
	if c.Has("recipeID") {
		t.Fatalf("recipeID written for sourceless projection")
	}
	back, err := Read(c)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if _, ok := back.Location(); ok || !back.Equal(p) {
		t.Fatalf("unexpected projection: %+v", back)
	}
	delete(c, "min_forge_tier")
	if _, err := Read(c); err == nil {
		t.Fatalf("expected missing min_forge_tier error")
	}
}
