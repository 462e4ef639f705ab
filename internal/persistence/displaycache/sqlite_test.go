package displaycache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"alloyforge.ai/internal/display"
	"alloyforge.ai/internal/recipe"
)

func testProjection(id string, fuel int) display.Projection {
	return display.New(
		[]display.Group{{recipe.NewStack("iron_ingot", 64)}, {recipe.NewStack("coal", 2), recipe.NewStack("charcoal", 2)}},
		display.Group{recipe.NewStack("steel_ingot", 1)},
		2, fuel,
		[]recipe.OverrideEntry{{Range: recipe.AtLeast(5), Output: recipe.NewStack("steel_ingot", 2)}},
		id,
	)
}

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cache", "displays.sqlite"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutGet(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	p := testProjection("alloyforge:steel", 9)
	if err := s.Put(ctx, p, "d1"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	e, err := s.Get(ctx, "alloyforge:steel")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !e.Projection.Equal(p) {
		t.Fatalf("projection mismatch")
	}
	if e.Digest != "d1" || e.UpdatedAt.IsZero() {
		t.Fatalf("digest=%q updated=%v", e.Digest, e.UpdatedAt)
	}

	// Replace keeps one row per recipe id.
	p2 := testProjection("alloyforge:steel", 11)
	if err := s.Put(ctx, p2, "d2"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	e, err = s.Get(ctx, "alloyforge:steel")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if e.Projection.FuelPerTick() != 11 || e.Digest != "d2" {
		t.Fatalf("replace not applied: fuel=%d digest=%q", e.Projection.FuelPerTick(), e.Digest)
	}

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPutRequiresSource(t *testing.T) {
	s := openTemp(t)
	if err := s.Put(context.Background(), testProjection("", 1), "d"); err == nil {
		t.Fatalf("expected error for sourceless projection")
	}
}

func TestIDsDeletePrune(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	if err := s.PutAll(ctx, []display.Projection{testProjection("b", 1), testProjection("a", 1)}, "old"); err != nil {
		t.Fatalf("PutAll: %v", err)
	}
	if err := s.Put(ctx, testProjection("c", 1), "new"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	ids, err := s.IDs(ctx)
	if err != nil {
		t.Fatalf("IDs: %v", err)
	}
	if len(ids) != 3 || ids[0] != "a" || ids[1] != "b" || ids[2] != "c" {
		t.Fatalf("ids=%v", ids)
	}

	if err := s.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	n, err := s.Prune(ctx, "new")
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 1 {
		t.Fatalf("pruned %d rows, want 1", n)
	}
	ids, _ = s.IDs(ctx)
	if len(ids) != 1 || ids[0] != "c" {
		t.Fatalf("ids after prune=%v", ids)
	}
}

func TestRecordCatalogs(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)
	if err := s.RecordCatalogs(ctx, map[string]string{"alloy_forge": "abc", "skip": ""}); err != nil {
		t.Fatalf("RecordCatalogs: %v", err)
	}
	d, err := s.CatalogDigest(ctx, "alloy_forge")
	if err != nil || d != "abc" {
		t.Fatalf("digest=%q err=%v", d, err)
	}
	if _, err := s.CatalogDigest(ctx, "skip"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOpenEmptyPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Fatalf("expected error")
	}
}
