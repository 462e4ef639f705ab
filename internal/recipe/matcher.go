package recipe

// ItemRegistry resolves item identifiers. Implementations are read-only
// lookups populated before any parse or decode.
type ItemRegistry interface {
	// ResolveItem returns the registered id for id, or an error if the item
	// is unknown.
	ResolveItem(id string) (string, error)
}

// Matcher resolves ingredients to the concrete items that satisfy them.
type Matcher interface {
	ItemRegistry
	// MatchingItems returns the concrete item ids accepted by ing, in a
	// stable order. It fails if any entry names an unknown item or tag.
	MatchingItems(ing Ingredient) ([]string, error)
	Matches(ing Ingredient, item string) bool
}

// Smelting is a single-ingredient furnace recipe owned by the host. It is
// only consumed by the display projection.
type Smelting struct {
	ID         string
	Ingredient Ingredient
	Output     ItemStack
	CookTicks  int
}
