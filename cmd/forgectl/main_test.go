package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"alloyforge.ai/internal/display"
	"alloyforge.ai/internal/persistence/displaycache"
	"alloyforge.ai/internal/recipe"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func testConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "items.json"), `[{"id":"iron_ingot"},{"id":"raw_iron"},{"id":"coal"},{"id":"steel_ingot"},{"id":"gold_ingot"}]`)
	writeFile(t, filepath.Join(dir, "tags.json"), `[{"id":"fuels","items":["coal"]}]`)
	writeFile(t, filepath.Join(dir, "alloy_forge", "steel.json"), `{
	  "inputs": [{"item":"iron_ingot"},{"item":"iron_ingot"},{"tag":"fuels"}],
	  "output": {"id":"steel_ingot"},
	  "min_forge_tier": 2,
	  "fuel_per_tick": 9,
	  "overrides": {"10+": {"id":"gold_ingot","count":2}}
	}`)
	writeFile(t, filepath.Join(dir, "smelting.json"), `[{"id":"minecraft:iron_from_blasting","ingredient":{"item":"raw_iron"},"output":{"id":"iron_ingot"},"cook_ticks":400}]`)
	return dir
}

func TestValidate(t *testing.T) {
	dir := testConfigDir(t)
	var out bytes.Buffer
	if err := run([]string{"validate", "-configs", dir}, &out); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(out.String(), "alloy_forge=1 smelting=1") || !strings.Contains(out.String(), "digest ") {
		t.Fatalf("output:\n%s", out.String())
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	writeFile(t, bad, `{"inputs":[{"item":"iron_ingot"}],"output":{"id":"steel_ingot"},"min_forge_tier":1,"fuel_per_tick":1,"overrides":{"3 to 7 to 9":{"id":"gold_ingot"}}}`)
	err := run([]string{"validate", "-configs", dir, "-file", bad}, &out)
	var fe *recipe.FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FormatError, got %v", err)
	}
}

func TestEncodeDecode(t *testing.T) {
	dir := testConfigDir(t)
	path := filepath.Join(t.TempDir(), "recipes.bundle")
	var out bytes.Buffer
	if err := run([]string{"encode", "-configs", dir, "-out", path}, &out); err != nil {
		t.Fatalf("encode: %v", err)
	}
	out.Reset()
	if err := run([]string{"decode", "-configs", dir, "-in", path}, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	s := out.String()
	if !strings.Contains(s, "count=1") || !strings.Contains(s, "# alloyforge:steel") || !strings.Contains(s, `"10+"`) {
		t.Fatalf("output:\n%s", s)
	}
}

func TestDisplay(t *testing.T) {
	dir := testConfigDir(t)
	var out bytes.Buffer
	if err := run([]string{"display", "-configs", dir, "-id", "minecraft:iron_from_blasting"}, &out); err != nil {
		t.Fatalf("display: %v", err)
	}
	p, err := display.Decode(bytes.TrimSpace(out.Bytes()))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	// 5 * 200 / 400 rounds to 3.
	if p.MinForgeTier() != display.SmeltingTier || p.FuelPerTick() != 3 {
		t.Fatalf("tier=%d fuel=%d", p.MinForgeTier(), p.FuelPerTick())
	}
	if err := run([]string{"display", "-configs", dir, "-id", "nope"}, &out); err == nil {
		t.Fatalf("expected unknown id error")
	}
}

func TestCache(t *testing.T) {
	db := filepath.Join(t.TempDir(), "displays.sqlite")
	store, err := displaycache.Open(db)
	if err != nil {
		t.Fatal(err)
	}
	p := display.New([]display.Group{{recipe.NewStack("coal", 1)}}, display.Group{recipe.NewStack("iron_ingot", 1)}, 1, 5, nil, "alloyforge:x")
	if err := store.Put(context.Background(), p, "d"); err != nil {
		t.Fatal(err)
	}
	_ = store.Close()

	var out bytes.Buffer
	if err := run([]string{"cache", "-db", db}, &out); err != nil {
		t.Fatalf("cache ls: %v", err)
	}
	if strings.TrimSpace(out.String()) != "alloyforge:x" {
		t.Fatalf("ids:\n%s", out.String())
	}
	out.Reset()
	if err := run([]string{"cache", "-db", db, "-id", "alloyforge:x"}, &out); err != nil {
		t.Fatalf("cache get: %v", err)
	}
	if !strings.Contains(out.String(), "# digest=d") {
		t.Fatalf("output:\n%s", out.String())
	}
	if err := run([]string{"cache", "-db", db, "-id", "alloyforge:x", "-delete"}, &out); err != nil {
		t.Fatalf("cache delete: %v", err)
	}
	err = run([]string{"cache", "-db", db, "-id", "alloyforge:x"}, &out)
	if !errors.Is(err, displaycache.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUsage(t *testing.T) {
	var out bytes.Buffer
	if err := run(nil, &out); !errors.Is(err, errUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
	if err := run([]string{"frobnicate"}, &out); !errors.Is(err, errUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
	if err := run([]string{"encode"}, &out); !errors.Is(err, errUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
}
