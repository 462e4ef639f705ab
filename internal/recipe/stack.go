package recipe

import "fmt"

// ItemStack is a concrete item type paired with a quantity.
type ItemStack struct {
	Item  string `json:"id"`
	Count int    `json:"count"`
}

func NewStack(item string, count int) ItemStack {
	return ItemStack{Item: item, Count: count}
}

// WithCount returns a copy of s holding n units.
func (s ItemStack) WithCount(n int) ItemStack {
	s.Count = n
	return s
}

func (s ItemStack) String() string {
	return fmt.Sprintf("%dx%s", s.Count, s.Item)
}

func (s ItemStack) validate(field string) error {
	if s.Item == "" {
		return formatErr(field, "%s: missing item id", field)
	}
	if s.Count < 1 {
		return formatErr(field, "%s: count must be positive, got %d", field, s.Count)
	}
	return nil
}
