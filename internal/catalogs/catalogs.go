// Package catalogs loads a config directory: the item registry, alloy forge
// recipes and furnace recipes.
//
// Layout:
//
//	items.json           item definitions
//	tags.json            optional tag definitions
//	alloy_forge/**.json  one recipe per file, id derived from the path
//	smelting.json        optional furnace recipes
package catalogs

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"alloyforge.ai/internal/display"
	"alloyforge.ai/internal/recipe"
	"alloyforge.ai/internal/recipe/jsoncodec"
	"alloyforge.ai/internal/registry"
)

// Namespace prefixes recipe ids derived from file paths.
const Namespace = "alloyforge"

const schemaURL = "https://alloyforge.ai/schemas/alloy_forge.schema.json"

//go:embed schemas/alloy_forge.schema.json
var recipeSchemaJSON []byte

type Catalogs struct {
	Registry *registry.Registry

	Alloys   AlloyCatalog
	Smelting SmeltingCatalog
}

type AlloyCatalog struct {
	ByID   map[string]recipe.Recipe
	Digest string
}

type SmeltingCatalog struct {
	ByID   map[string]recipe.Smelting
	Digest string
}

func Load(configDir string) (*Catalogs, error) {
	reg, err := registry.Load(filepath.Join(configDir, "items.json"), filepath.Join(configDir, "tags.json"))
	if err != nil {
		return nil, err
	}
	c := Catalogs{Registry: reg}

	schema, err := compileSchema()
	if err != nil {
		return nil, err
	}
	if err := loadAlloys(filepath.Join(configDir, "alloy_forge"), schema, reg, &c.Alloys); err != nil {
		return nil, err
	}
	if err := loadSmelting(filepath.Join(configDir, "smelting.json"), reg, &c.Smelting); err != nil {
		return nil, err
	}
	// Projections and the display cache share one id space.
	for id := range c.Smelting.ByID {
		if _, dup := c.Alloys.ByID[id]; dup {
			return nil, fmt.Errorf("smelting.json: id %q is also an alloy_forge recipe", id)
		}
	}
	return &c, nil
}

func compileSchema() (*jsonschema.Schema, error) {
	comp := jsonschema.NewCompiler()
	comp.Draft = jsonschema.Draft7
	if err := comp.AddResource(schemaURL, bytes.NewReader(recipeSchemaJSON)); err != nil {
		return nil, fmt.Errorf("recipe schema: %w", err)
	}
	s, err := comp.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("recipe schema: %w", err)
	}
	return s, nil
}

// ValidateRecipeJSON checks one authored recipe document against the
// embedded schema. Violations are reported as *recipe.FormatError.
func ValidateRecipeJSON(raw []byte) error {
	s, err := compileSchema()
	if err != nil {
		return err
	}
	return validateDoc(s, raw)
}

func validateDoc(s *jsonschema.Schema, raw []byte) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return recipe.Errorf("recipe", "recipe: %v", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return recipe.Errorf("recipe", "recipe: trailing data")
	}
	if err := s.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			leaf := deepest(ve)
			loc := strings.TrimPrefix(leaf.InstanceLocation, "/")
			if loc == "" {
				loc = "recipe"
			}
			return recipe.Errorf(loc, "%s: %s", loc, leaf.Message)
		}
		return recipe.Errorf("recipe", "recipe: %v", err)
	}
	return nil
}

func deepest(ve *jsonschema.ValidationError) *jsonschema.ValidationError {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return ve
}

// RecipeID derives a recipe id from a path relative to alloy_forge/.
func RecipeID(rel string) string {
	rel = filepath.ToSlash(rel)
	return Namespace + ":" + strings.TrimSuffix(rel, ".json")
}

func loadAlloys(dir string, schema *jsonschema.Schema, reg *registry.Registry, out *AlloyCatalog) error {
	out.ByID = map[string]recipe.Recipe{}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(d.Name(), ".json") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		if _, statErr := os.Stat(dir); statErr != nil && os.IsNotExist(statErr) {
			out.Digest = sha256Hex(nil)
			return nil
		}
		return err
	}
	sort.Strings(files)

	var concat bytes.Buffer
	for _, p := range files {
		b, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		concat.WriteString(filepath.ToSlash(rel))
		concat.WriteByte('\n')
		concat.Write(b)
		concat.WriteByte('\n')

		if err := validateDoc(schema, b); err != nil {
			return fmt.Errorf("alloy_forge %s: %w", rel, err)
		}
		id := RecipeID(rel)
		r, err := jsoncodec.Parse(id, b, reg)
		if err != nil {
			return fmt.Errorf("alloy_forge %s: %w", rel, err)
		}
		out.ByID[id] = r
	}
	out.Digest = sha256Hex(concat.Bytes())
	return nil
}

func loadSmelting(path string, reg *registry.Registry, out *SmeltingCatalog) error {
	out.ByID = map[string]recipe.Smelting{}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			out.Digest = sha256Hex(nil)
			return nil
		}
		return err
	}
	out.Digest = sha256Hex(raw)
	list, err := jsoncodec.ParseSmelting(raw, reg)
	if err != nil {
		return fmt.Errorf("smelting.json: %w", err)
	}
	for _, s := range list {
		if _, dup := out.ByID[s.ID]; dup {
			return fmt.Errorf("smelting.json: duplicate id %q", s.ID)
		}
		out.ByID[s.ID] = s
	}
	return nil
}

// Recipes returns the alloy recipes ordered by id.
func (c *Catalogs) Recipes() []recipe.Recipe {
	ids := make([]string, 0, len(c.Alloys.ByID))
	for id := range c.Alloys.ByID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]recipe.Recipe, len(ids))
	for i, id := range ids {
		out[i] = c.Alloys.ByID[id]
	}
	return out
}

// SmeltingRecipes returns the furnace recipes ordered by id.
func (c *Catalogs) SmeltingRecipes() []recipe.Smelting {
	ids := make([]string, 0, len(c.Smelting.ByID))
	for id := range c.Smelting.ByID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]recipe.Smelting, len(ids))
	for i, id := range ids {
		out[i] = c.Smelting.ByID[id]
	}
	return out
}

// Projections builds display projections for every alloy and furnace recipe,
// alloys first.
func (c *Catalogs) Projections(fuel display.FuelModel) ([]display.Projection, error) {
	var out []display.Projection
	for _, r := range c.Recipes() {
		p, err := display.FromRecipe(r, c.Registry)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	for _, s := range c.SmeltingRecipes() {
		p, err := display.FromSmelting(s, c.Registry, fuel)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Digests names every catalog digest.
func (c *Catalogs) Digests() map[string]string {
	return map[string]string{
		"item_palette": c.Registry.PaletteDigest,
		"items":        c.Registry.DefsDigest,
		"tags":         c.Registry.TagsDigest,
		"alloy_forge":  c.Alloys.Digest,
		"smelting":     c.Smelting.Digest,
	}
}

// Digest folds every catalog digest into one value.
func (c *Catalogs) Digest() string {
	d := c.Digests()
	names := make([]string, 0, len(d))
	for n := range d {
		names = append(names, n)
	}
	sort.Strings(names)
	var b bytes.Buffer
	for _, n := range names {
		b.WriteString(n)
		b.WriteByte('=')
		b.WriteString(d[n])
		b.WriteByte('\n')
	}
	return sha256Hex(b.Bytes())
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
