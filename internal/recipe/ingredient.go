package recipe

import "strings"

// IngredientEntry is one alternative of an ingredient: exactly one of
// Item or Tag is set.
type IngredientEntry struct {
	Item string `json:"item,omitempty"`
	Tag  string `json:"tag,omitempty"`
}

func ItemEntry(id string) IngredientEntry { return IngredientEntry{Item: id} }
func TagEntry(id string) IngredientEntry  { return IngredientEntry{Tag: id} }

func (e IngredientEntry) IsTag() bool { return e.Tag != "" }

func (e IngredientEntry) key() string {
	if e.IsTag() {
		return "#" + e.Tag
	}
	return e.Item
}

// Ingredient is an opaque matcher for a recipe slot. It is satisfied by any
// item named by one of its entries, in declaration order.
type Ingredient struct {
	entries []IngredientEntry
	key     string
}

func NewIngredient(entries ...IngredientEntry) Ingredient {
	cp := append([]IngredientEntry(nil), entries...)
	parts := make([]string, len(cp))
	for i, e := range cp {
		parts[i] = e.key()
	}
	return Ingredient{entries: cp, key: strings.Join(parts, "|")}
}

// OfItem is shorthand for a single-item ingredient.
func OfItem(id string) Ingredient { return NewIngredient(ItemEntry(id)) }

// OfTag is shorthand for a single-tag ingredient.
func OfTag(id string) Ingredient { return NewIngredient(TagEntry(id)) }

func (i Ingredient) Entries() []IngredientEntry {
	return append([]IngredientEntry(nil), i.entries...)
}

// Key is the canonical identity of the ingredient. Two ingredients are
// structurally equal iff their keys are equal.
func (i Ingredient) Key() string { return i.key }

func (i Ingredient) Equal(o Ingredient) bool { return i.key == o.key }

func (i Ingredient) String() string { return i.key }

func (i Ingredient) validate(field string) error {
	if len(i.entries) == 0 {
		return formatErr(field, "%s: ingredient has no entries", field)
	}
	for _, e := range i.entries {
		if (e.Item == "") == (e.Tag == "") {
			return formatErr(field, "%s: ingredient entry needs exactly one of item or tag", field)
		}
	}
	return nil
}

// IngredientCount pairs an ingredient with how many units a craft consumes.
type IngredientCount struct {
	Ingredient Ingredient
	Count      int
}
