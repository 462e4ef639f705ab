// Package registry is a catalog-backed item registry and ingredient matcher.
package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/agnivade/levenshtein"

	"alloyforge.ai/internal/recipe"
)

type ItemDef struct {
	ID string `json:"id"`
}

type TagDef struct {
	ID    string   `json:"id"`
	Items []string `json:"items"`
}

// Registry maps item ids to definitions and tags to item lists. It is
// immutable after New and safe for concurrent reads.
type Registry struct {
	Palette       []string
	Defs          map[string]ItemDef
	Tags          map[string][]string
	PaletteDigest string
	DefsDigest    string
	TagsDigest    string
}

func New(items []ItemDef, tags []TagDef) (*Registry, error) {
	r := &Registry{
		Defs: map[string]ItemDef{},
		Tags: map[string][]string{},
	}
	for _, d := range items {
		if d.ID == "" {
			return nil, fmt.Errorf("items: empty id")
		}
		if _, dup := r.Defs[d.ID]; dup {
			return nil, fmt.Errorf("items: duplicate id %q", d.ID)
		}
		r.Defs[d.ID] = d
	}

	ids := make([]string, 0, len(r.Defs))
	for id := range r.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	r.Palette = ids
	palJSON, _ := json.Marshal(ids)
	r.PaletteDigest = sha256Hex(palJSON)

	for _, t := range tags {
		if t.ID == "" {
			return nil, fmt.Errorf("tags: empty id")
		}
		seen := map[string]bool{}
		members := make([]string, 0, len(t.Items))
		for _, it := range t.Items {
			if _, ok := r.Defs[it]; !ok {
				return nil, fmt.Errorf("tags: %s: %v", t.ID, r.unknownItem(it))
			}
			if seen[it] {
				continue
			}
			seen[it] = true
			members = append(members, it)
		}
		r.Tags[t.ID] = members
	}
	return r, nil
}

// Load reads items.json and, if present, tags.json.
func Load(itemsPath, tagsPath string) (*Registry, error) {
	raw, err := os.ReadFile(itemsPath)
	if err != nil {
		return nil, err
	}
	var items []ItemDef
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("items.json: %w", err)
	}

	var tags []TagDef
	tagsRaw, err := os.ReadFile(tagsPath)
	switch {
	case err == nil:
		if err := json.Unmarshal(tagsRaw, &tags); err != nil {
			return nil, fmt.Errorf("tags.json: %w", err)
		}
	case os.IsNotExist(err):
		// Tags are optional.
	default:
		return nil, err
	}

	r, err := New(items, tags)
	if err != nil {
		return nil, err
	}
	r.DefsDigest = sha256Hex(raw)
	r.TagsDigest = sha256Hex(tagsRaw)
	return r, nil
}

func (r *Registry) ResolveItem(id string) (string, error) {
	if _, ok := r.Defs[id]; !ok {
		return "", r.unknownItem(id)
	}
	return id, nil
}

// MatchingItems lists the items accepted by ing: entries in declaration
// order, tag members in tag order, duplicates dropped.
func (r *Registry) MatchingItems(ing recipe.Ingredient) ([]string, error) {
	entries := ing.Entries()
	if len(entries) == 0 {
		return nil, fmt.Errorf("ingredient has no entries")
	}
	seen := map[string]bool{}
	var out []string
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, e := range entries {
		if e.IsTag() {
			members, ok := r.Tags[e.Tag]
			if !ok {
				return nil, r.unknownTag(e.Tag)
			}
			for _, it := range members {
				add(it)
			}
			continue
		}
		id, err := r.ResolveItem(e.Item)
		if err != nil {
			return nil, err
		}
		add(id)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("ingredient %s matches no items", ing)
	}
	return out, nil
}

func (r *Registry) Matches(ing recipe.Ingredient, item string) bool {
	for _, e := range ing.Entries() {
		if !e.IsTag() {
			if e.Item == item {
				return true
			}
			continue
		}
		for _, it := range r.Tags[e.Tag] {
			if it == item {
				return true
			}
		}
	}
	return false
}

func (r *Registry) unknownItem(id string) error {
	if s := suggest(id, r.Palette); s != "" {
		return fmt.Errorf("unknown item %q (did you mean %q?)", id, s)
	}
	return fmt.Errorf("unknown item %q", id)
}

func (r *Registry) unknownTag(id string) error {
	names := make([]string, 0, len(r.Tags))
	for k := range r.Tags {
		names = append(names, k)
	}
	sort.Strings(names)
	if s := suggest(id, names); s != "" {
		return fmt.Errorf("unknown tag %q (did you mean %q?)", id, s)
	}
	return fmt.Errorf("unknown tag %q", id)
}

// suggest returns the closest candidate within a small edit distance.
func suggest(id string, candidates []string) string {
	if len(id) < 3 {
		return ""
	}
	limit := 1 + len(id)/4
	best, bestDist := "", limit+1
	for _, c := range candidates {
		d := levenshtein.ComputeDistance(id, c)
		if d < bestDist {
			best, bestDist = c, d
		}
	}
	if bestDist > limit {
		return ""
	}
	return best
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
