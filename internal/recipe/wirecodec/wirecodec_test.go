package wirecodec

import (
	"bytes"
	"errors"
	"testing"

	"alloyforge.ai/internal/recipe"
	"alloyforge.ai/internal/recipe/jsoncodec"
	"alloyforge.ai/internal/registry"
)

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	r, err := registry.New(
		[]registry.ItemDef{{ID: "iron_ingot"}, {ID: "gold_ingot"}, {ID: "coal"}, {ID: "charcoal"}, {ID: "steel_ingot"}},
		[]registry.TagDef{{ID: "fuels", Items: []string{"coal", "charcoal"}}},
	)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return r
}

func sampleRecipe(t *testing.T) recipe.Recipe {
	t.Helper()
	r, err := recipe.New("alloyforge:steel",
		[]recipe.IngredientCount{
			{Ingredient: recipe.OfItem("iron_ingot"), Count: 130},
			{Ingredient: recipe.NewIngredient(recipe.TagEntry("fuels"), recipe.ItemEntry("gold_ingot")), Count: 2},
		},
		recipe.NewStack("steel_ingot", 2), 3, 250,
		[]recipe.OverrideEntry{
			{Range: recipe.AtLeast(10), Output: recipe.NewStack("gold_ingot", 2)},
			{Range: recipe.Single(4), Output: recipe.NewStack("steel_ingot", 3)},
			{Range: mustBounded(t, 5, 9), Output: recipe.NewStack("steel_ingot", 4)},
		})
	if err != nil {
		t.Fatalf("recipe.New: %v", err)
	}
	return r
}

func mustBounded(t *testing.T, lo, hi int) recipe.OverrideRange {
	t.Helper()
	r, err := recipe.Bounded(lo, hi)
	if err != nil {
		t.Fatalf("Bounded: %v", err)
	}
	return r
}

func TestRoundTrip(t *testing.T) {
	in := sampleRecipe(t)
	b := Encode(in)
	if b[0] != Version {
		t.Fatalf("missing version byte")
	}
	out, err := Decode(b, testRegistry(t))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !out.Equal(in) {
		t.Fatalf("round trip mismatch: %+v vs %+v", out, in)
	}
	if got := out.OverrideMap()[recipe.AtLeast(10)]; got != recipe.NewStack("gold_ingot", 2) {
		t.Fatalf("open range lost: %v", got)
	}
	if !bytes.Equal(Encode(out), b) {
		t.Fatalf("re-encode not byte identical")
	}
}

func TestJSONThenWireRoundTrip(t *testing.T) {
	reg := testRegistry(t)
	parsed, err := jsoncodec.Parse("alloyforge:steel", []byte(`{
	  "inputs": [{"item":"iron_ingot"},{"item":"iron_ingot"},{"tag":"fuels"}],
	  "output": {"id":"steel_ingot"},
	  "min_forge_tier": 1,
	  "fuel_per_tick": 5,
	  "overrides": {"10+": {"id":"gold_ingot","count":2}, "2 to 3": {"id":"steel_ingot","count":2}}
	}`), reg)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	back, err := Decode(Encode(parsed), reg)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !back.Equal(parsed) {
		t.Fatalf("json -> wire -> recipe mismatch")
	}
}

func TestDecodeUnderrun(t *testing.T) {
	b := Encode(sampleRecipe(t))
	reg := testRegistry(t)
	for cut := 0; cut < len(b); cut++ {
		_, err := Decode(b[:cut], reg)
		if err == nil {
			t.Fatalf("cut=%d: expected error", cut)
		}
		var ue *UnderrunError
		var fe *recipe.FormatError
		if !errors.As(err, &ue) && !errors.As(err, &fe) {
			t.Fatalf("cut=%d: unexpected error type %T: %v", cut, err, err)
		}
	}
	var ue *UnderrunError
	if _, err := Decode(b[:len(b)-1], reg); !errors.As(err, &ue) {
		t.Fatalf("expected underrun for truncated tail, got %v", err)
	}
}

func TestDecodeRejects(t *testing.T) {
	good := Encode(sampleRecipe(t))
	var fe *recipe.FormatError

	bad := append([]byte(nil), good...)
	bad[0] = 9
	if _, err := Decode(bad, testRegistry(t)); !errors.As(err, &fe) || fe.Field != "version" {
		t.Fatalf("expected version error, got %v", err)
	}
	if _, err := Decode(append(append([]byte(nil), good...), 0), testRegistry(t)); !errors.As(err, &fe) {
		t.Fatalf("expected trailing bytes error, got %v", err)
	}

	// A registry without gold cannot resolve the override stack.
	small, err := registry.New(
		[]registry.ItemDef{{ID: "iron_ingot"}, {ID: "coal"}, {ID: "charcoal"}, {ID: "steel_ingot"}},
		[]registry.TagDef{{ID: "fuels", Items: []string{"coal", "charcoal"}}},
	)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Decode(good, small); !errors.As(err, &fe) {
		t.Fatalf("expected resolution failure, got %v", err)
	}
}

func TestReadSequence(t *testing.T) {
	a := sampleRecipe(t)
	b, err := recipe.New("alloyforge:coke", []recipe.IngredientCount{{Ingredient: recipe.OfItem("coal"), Count: 4}}, recipe.NewStack("charcoal", 1), 0, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	buf := Append(Encode(a), b)
	got, err := DecodeAll(buf, testRegistry(t))
	if err != nil {
		t.Fatalf("DecodeAll: %v", err)
	}
	if len(got) != 2 || !got[0].Equal(a) || !got[1].Equal(b) {
		t.Fatalf("unexpected sequence: %d", len(got))
	}
}
