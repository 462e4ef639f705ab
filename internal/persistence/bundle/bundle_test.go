package bundle

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"alloyforge.ai/internal/recipe"
	"alloyforge.ai/internal/registry"
)

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	r, err := registry.New(
		[]registry.ItemDef{{ID: "iron_ingot"}, {ID: "coal"}, {ID: "steel_ingot"}, {ID: "gold_ingot"}},
		[]registry.TagDef{{ID: "fuels", Items: []string{"coal"}}},
	)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return r
}

func testRecipes(t *testing.T) []recipe.Recipe {
	t.Helper()
	a, err := recipe.New("alloyforge:steel",
		[]recipe.IngredientCount{{Ingredient: recipe.OfItem("iron_ingot"), Count: 2}, {Ingredient: recipe.OfTag("fuels"), Count: 1}},
		recipe.NewStack("steel_ingot", 1), 2, 9,
		[]recipe.OverrideEntry{{Range: recipe.AtLeast(10), Output: recipe.NewStack("gold_ingot", 2)}})
	if err != nil {
		t.Fatal(err)
	}
	b, err := recipe.New("alloyforge:plate",
		[]recipe.IngredientCount{{Ingredient: recipe.OfItem("iron_ingot"), Count: 1}},
		recipe.NewStack("iron_ingot", 1), 0, 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	return []recipe.Recipe{a, b}
}

func TestWriteReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "recipes.bundle")
	recs := testRecipes(t)
	if err := WriteFile(path, Header{Digest: "abc"}, recs); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	h, back, err := ReadFile(path, testRegistry(t))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if h.Version != Version || h.WireVersion != 1 || h.Count != 2 || h.Digest != "abc" {
		t.Fatalf("header=%+v", h)
	}
	if len(back) != len(recs) {
		t.Fatalf("read %d recipes", len(back))
	}
	for i := range recs {
		if !back[i].Equal(recs[i]) {
			t.Fatalf("recipe %d mismatch", i)
		}
	}
}

func TestReadRejectsUnknownItem(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, Header{}, testRecipes(t)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	reg, err := registry.New([]registry.ItemDef{{ID: "iron_ingot"}, {ID: "coal"}, {ID: "steel_ingot"}}, []registry.TagDef{{ID: "fuels", Items: []string{"coal"}}})
	if err != nil {
		t.Fatal(err)
	}
	_, _, err = Read(bytes.NewReader(buf.Bytes()), reg)
	var fe *recipe.FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FormatError, got %v", err)
	}
}

func TestReadEmptyBundle(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, Header{}, nil); err != nil {
		t.Fatalf("Write: %v", err)
	}
	h, recs, err := Read(&buf, testRegistry(t))
	if err != nil || h.Count != 0 || len(recs) != 0 {
		t.Fatalf("h=%+v recs=%d err=%v", h, len(recs), err)
	}
}

func TestReadGarbage(t *testing.T) {
	if _, _, err := Read(bytes.NewReader([]byte("not zstd")), testRegistry(t)); err == nil {
		t.Fatalf("expected error")
	}
}
