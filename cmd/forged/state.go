package main

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync/atomic"

	"alloyforge.ai/internal/catalogs"
	"alloyforge.ai/internal/display"
	"alloyforge.ai/internal/persistence/displaycache"
	"alloyforge.ai/internal/protocol"
	"alloyforge.ai/internal/transport/ws"
	"alloyforge.ai/internal/tuning"
)

// state is one loaded config directory. It is never mutated; reloads swap
// in a new state.
type state struct {
	cats        *catalogs.Catalogs
	digest      string
	projections map[string]display.Projection
	ids         []string
	snap        ws.Snapshot
}

type server struct {
	tune   tuning.Tuning
	cache  *displaycache.Store
	logger *log.Logger

	cur      atomic.Pointer[state]
	sessions atomic.Uint64
}

func buildState(configDir string, fuel display.FuelModel) (*state, error) {
	cats, err := catalogs.Load(configDir)
	if err != nil {
		return nil, err
	}
	ps, err := cats.Projections(fuel)
	if err != nil {
		return nil, fmt.Errorf("projections: %w", err)
	}
	st := &state{
		cats:        cats,
		digest:      cats.Digest(),
		projections: make(map[string]display.Projection, len(ps)),
	}
	for _, p := range ps {
		id, _ := p.Location()
		st.projections[id] = p
		st.ids = append(st.ids, id)
	}
	sort.Strings(st.ids)
	st.snap = ws.Snapshot{
		Digest:   st.digest,
		Catalogs: catalogDigests(cats),
		Recipes:  cats.Recipes(),
	}
	return st, nil
}

func catalogDigests(c *catalogs.Catalogs) protocol.CatalogDigests {
	return protocol.CatalogDigests{
		ItemPalette:      protocol.DigestRef{Digest: c.Registry.PaletteDigest, Count: len(c.Registry.Palette)},
		ItemsDigest:      c.Registry.DefsDigest,
		TagsDigest:       c.Registry.TagsDigest,
		AlloyForgeDigest: c.Alloys.Digest,
		SmeltingDigest:   c.Smelting.Digest,
	}
}

// Snapshot implements ws.Source.
func (s *server) Snapshot() ws.Snapshot {
	s.sessions.Add(1)
	return s.cur.Load().snap
}

func (s *server) state() *state { return s.cur.Load() }

// reload loads the config directory again and, when the catalogs changed,
// swaps the new state in and rewarms the display cache.
func (s *server) reload(ctx context.Context) (changed bool, err error) {
	st, err := buildState(s.tune.ConfigDir, s.tune.FuelModel())
	if err != nil {
		return false, err
	}
	if old := s.cur.Load(); old != nil && old.digest == st.digest {
		return false, nil
	}
	s.cur.Store(st)
	if err := s.warm(ctx, st); err != nil {
		s.logger.Printf("display cache: warm: %v", err)
	}
	return true, nil
}

// warm replaces cached projections built from older catalogs.
func (s *server) warm(ctx context.Context, st *state) error {
	if s.cache == nil {
		return nil
	}
	prev, err := s.cache.CatalogDigest(ctx, "all")
	if err == nil && prev == st.digest {
		return nil
	}
	ps := make([]display.Projection, 0, len(st.ids))
	for _, id := range st.ids {
		ps = append(ps, st.projections[id])
	}
	if err := s.cache.PutAll(ctx, ps, st.digest); err != nil {
		return err
	}
	pruned, err := s.cache.Prune(ctx, st.digest)
	if err != nil {
		return err
	}
	digests := st.cats.Digests()
	digests["all"] = st.digest
	if err := s.cache.RecordCatalogs(ctx, digests); err != nil {
		return err
	}
	s.logger.Printf("display cache: wrote %d projections, pruned %d", len(ps), pruned)
	return nil
}
