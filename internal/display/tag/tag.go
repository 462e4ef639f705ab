// Package tag is a small structured-tag tree (compound, list, int, string)
// with a JSON text form, used to persist display projections.
package tag

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Compound maps keys to int, string, List or Compound values.
type Compound map[string]any

// List holds values of any tag type.
type List []any

func NewCompound() Compound { return Compound{} }

func (c Compound) PutInt(key string, v int)           { c[key] = v }
func (c Compound) PutString(key string, v string)     { c[key] = v }
func (c Compound) PutList(key string, v List)         { c[key] = v }
func (c Compound) PutCompound(key string, v Compound) { c[key] = v }

func (c Compound) Has(key string) bool {
	_, ok := c[key]
	return ok
}

func (c Compound) GetInt(key string) (int, error) {
	v, ok := c[key]
	if !ok {
		return 0, fmt.Errorf("tag: missing int %q", key)
	}
	n, ok := v.(int)
	if !ok {
		return 0, fmt.Errorf("tag: %q is %T, not int", key, v)
	}
	return n, nil
}

func (c Compound) GetString(key string) (string, error) {
	v, ok := c[key]
	if !ok {
		return "", fmt.Errorf("tag: missing string %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("tag: %q is %T, not string", key, v)
	}
	return s, nil
}

func (c Compound) GetList(key string) (List, error) {
	v, ok := c[key]
	if !ok {
		return nil, fmt.Errorf("tag: missing list %q", key)
	}
	l, ok := v.(List)
	if !ok {
		return nil, fmt.Errorf("tag: %q is %T, not list", key, v)
	}
	return l, nil
}

func (c Compound) GetCompound(key string) (Compound, error) {
	v, ok := c[key]
	if !ok {
		return nil, fmt.Errorf("tag: missing compound %q", key)
	}
	m, ok := v.(Compound)
	if !ok {
		return nil, fmt.Errorf("tag: %q is %T, not compound", key, v)
	}
	return m, nil
}

// Marshal renders c as JSON. Keys are sorted, so equal trees produce equal
// bytes.
func Marshal(c Compound) ([]byte, error) {
	return json.Marshal(map[string]any(c))
}

// Unmarshal parses JSON produced by Marshal. Numbers must be integers;
// arrays become List and objects become Compound.
func Unmarshal(b []byte) (Compound, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("tag: %w", err)
	}
	out, err := convert(v)
	if err != nil {
		return nil, err
	}
	c, ok := out.(Compound)
	if !ok {
		return nil, fmt.Errorf("tag: root is %T, not compound", out)
	}
	return c, nil
}

func convert(v any) (any, error) {
	switch x := v.(type) {
	case map[string]any:
		c := make(Compound, len(x))
		for k, e := range x {
			cv, err := convert(e)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			c[k] = cv
		}
		return c, nil
	case []any:
		l := make(List, len(x))
		for i, e := range x {
			cv, err := convert(e)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			l[i] = cv
		}
		return l, nil
	case json.Number:
		n, err := strconv.ParseInt(x.String(), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("tag: non-integer number %s", x)
		}
		return int(n), nil
	case string:
		return x, nil
	default:
		return nil, fmt.Errorf("tag: unsupported value %T", v)
	}
}
