package display

import (
	"fmt"

	"alloyforge.ai/internal/display/tag"
	"alloyforge.ai/internal/recipe"
)

// Save writes p into c and returns c. Open override ranges are stored with
// upper = recipe.Unbounded.
func Save(c tag.Compound, p Projection) tag.Compound {
	c.PutInt("fuel_per_tick", p.fuelPerTick)
	c.PutInt("min_forge_tier", p.minForgeTier)

	inputs := make(tag.List, 0, len(p.inputs))
	for _, g := range p.inputs {
		inputs = append(inputs, saveGroup(g))
	}
	c.PutList("inputs", inputs)
	c.PutList("output", saveGroup(p.output))

	overrides := make(tag.List, 0, len(p.overrides))
	for _, e := range p.overrides {
		o := tag.NewCompound()
		o.PutInt("lower", e.Range.Lower())
		o.PutInt("upper", e.Range.Upper())
		o.PutCompound("stack", saveStack(e.Output))
		overrides = append(overrides, o)
	}
	c.PutList("overrides", overrides)

	if id, ok := p.Location(); ok {
		c.PutString("recipeID", id)
	}
	return c
}

// Read is the inverse of Save.
func Read(c tag.Compound) (Projection, error) {
	fuel, err := c.GetInt("fuel_per_tick")
	if err != nil {
		return Projection{}, err
	}
	minTier, err := c.GetInt("min_forge_tier")
	if err != nil {
		return Projection{}, err
	}

	inputsTag, err := c.GetList("inputs")
	if err != nil {
		return Projection{}, err
	}
	inputs := make([]Group, 0, len(inputsTag))
	for i, v := range inputsTag {
		l, ok := v.(tag.List)
		if !ok {
			return Projection{}, fmt.Errorf("tag: inputs[%d] is %T, not list", i, v)
		}
		g, err := readGroup(l)
		if err != nil {
			return Projection{}, fmt.Errorf("inputs[%d]: %w", i, err)
		}
		inputs = append(inputs, g)
	}

	outputTag, err := c.GetList("output")
	if err != nil {
		return Projection{}, err
	}
	output, err := readGroup(outputTag)
	if err != nil {
		return Projection{}, fmt.Errorf("output: %w", err)
	}

	var overrides []recipe.OverrideEntry
	if c.Has("overrides") {
		ovTag, err := c.GetList("overrides")
		if err != nil {
			return Projection{}, err
		}
		for i, v := range ovTag {
			o, ok := v.(tag.Compound)
			if !ok {
				return Projection{}, fmt.Errorf("tag: overrides[%d] is %T, not compound", i, v)
			}
			e, err := readOverride(o)
			if err != nil {
				return Projection{}, fmt.Errorf("overrides[%d]: %w", i, err)
			}
			overrides = append(overrides, e)
		}
	}

	sourceID := ""
	if c.Has("recipeID") {
		sourceID, err = c.GetString("recipeID")
		if err != nil {
			return Projection{}, err
		}
	}
	return New(inputs, output, minTier, fuel, overrides, sourceID), nil
}

// Encode renders p as tag JSON.
func Encode(p Projection) ([]byte, error) {
	return tag.Marshal(Save(tag.NewCompound(), p))
}

// Decode parses tag JSON produced by Encode.
func Decode(b []byte) (Projection, error) {
	c, err := tag.Unmarshal(b)
	if err != nil {
		return Projection{}, err
	}
	return Read(c)
}

func saveStack(s recipe.ItemStack) tag.Compound {
	c := tag.NewCompound()
	c.PutString("id", s.Item)
	c.PutInt("count", s.Count)
	return c
}

func saveGroup(g Group) tag.List {
	l := make(tag.List, 0, len(g))
	for _, s := range g {
		l = append(l, saveStack(s))
	}
	return l
}

func readStack(c tag.Compound) (recipe.ItemStack, error) {
	id, err := c.GetString("id")
	if err != nil {
		return recipe.ItemStack{}, err
	}
	count, err := c.GetInt("count")
	if err != nil {
		return recipe.ItemStack{}, err
	}
	if id == "" || count < 1 {
		return recipe.ItemStack{}, fmt.Errorf("tag: invalid stack %dx%q", count, id)
	}
	return recipe.NewStack(id, count), nil
}

func readGroup(l tag.List) (Group, error) {
	g := make(Group, 0, len(l))
	for i, v := range l {
		c, ok := v.(tag.Compound)
		if !ok {
			return nil, fmt.Errorf("tag: stack[%d] is %T, not compound", i, v)
		}
		s, err := readStack(c)
		if err != nil {
			return nil, err
		}
		g = append(g, s)
	}
	return g, nil
}

func readOverride(c tag.Compound) (recipe.OverrideEntry, error) {
	lo, err := c.GetInt("lower")
	if err != nil {
		return recipe.OverrideEntry{}, err
	}
	hi, err := c.GetInt("upper")
	if err != nil {
		return recipe.OverrideEntry{}, err
	}
	rng, err := recipe.Bounded(lo, hi)
	if err != nil {
		return recipe.OverrideEntry{}, err
	}
	st, err := c.GetCompound("stack")
	if err != nil {
		return recipe.OverrideEntry{}, err
	}
	stack, err := readStack(st)
	if err != nil {
		return recipe.OverrideEntry{}, err
	}
	return recipe.OverrideEntry{Range: rng, Output: stack}, nil
}
