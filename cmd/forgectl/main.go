package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"alloyforge.ai/internal/catalogs"
	"alloyforge.ai/internal/display"
	"alloyforge.ai/internal/persistence/bundle"
	"alloyforge.ai/internal/persistence/displaycache"
	"alloyforge.ai/internal/recipe"
	"alloyforge.ai/internal/recipe/jsoncodec"
	"alloyforge.ai/internal/transport/ws"
	"alloyforge.ai/internal/tuning"
)

// errUsage marks bad invocations; main exits 2 for them.
var errUsage = errors.New("usage")

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		var fe *recipe.FormatError
		if errors.As(err, &fe) && fe.Field != "" {
			fmt.Fprintln(os.Stderr, "field:", fe.Field)
		}
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: forgectl validate|encode|decode|display|cache|sync [flags]", errUsage)
	}
	switch args[0] {
	case "validate":
		return validateCmd(args[1:], out)
	case "encode":
		return encodeCmd(args[1:], out)
	case "decode":
		return decodeCmd(args[1:], out)
	case "display":
		return displayCmd(args[1:], out)
	case "cache":
		return cacheCmd(args[1:], out)
	case "sync":
		return syncCmd(args[1:], out)
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
}

func validateCmd(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	configDir := fs.String("configs", "./configs", "config directory")
	file := fs.String("file", "", "validate a single recipe file against the schema and the registry")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		return err
	}
	if f := strings.TrimSpace(*file); f != "" {
		raw, err := os.ReadFile(f)
		if err != nil {
			return err
		}
		if err := catalogs.ValidateRecipeJSON(raw); err != nil {
			return fmt.Errorf("%s: %w", f, err)
		}
		if _, err := jsoncodec.Parse(f, raw, cats.Registry); err != nil {
			return fmt.Errorf("%s: %w", f, err)
		}
		fmt.Fprintf(out, "%s: ok\n", f)
		return nil
	}

	fmt.Fprintf(out, "items=%d tags=%d alloy_forge=%d smelting=%d\n",
		len(cats.Registry.Palette), len(cats.Registry.Tags), len(cats.Alloys.ByID), len(cats.Smelting.ByID))
	d := cats.Digests()
	names := make([]string, 0, len(d))
	for n := range d {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(out, "%s %s\n", n, d[n])
	}
	fmt.Fprintf(out, "digest %s\n", cats.Digest())
	return nil
}

func encodeCmd(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("encode", flag.ContinueOnError)
	configDir := fs.String("configs", "./configs", "config directory")
	outPath := fs.String("out", "", "bundle output path (required)")
	id := fs.String("id", "", "encode only this recipe id")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if strings.TrimSpace(*outPath) == "" {
		return fmt.Errorf("%w: missing -out", errUsage)
	}

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		return err
	}
	recs := cats.Recipes()
	if *id != "" {
		r, ok := cats.Alloys.ByID[*id]
		if !ok {
			return fmt.Errorf("no recipe %q", *id)
		}
		recs = []recipe.Recipe{r}
	}
	if err := bundle.WriteFile(*outPath, bundle.Header{Digest: cats.Digest()}, recs); err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %d recipes to %s\n", len(recs), *outPath)
	return nil
}

func decodeCmd(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("decode", flag.ContinueOnError)
	configDir := fs.String("configs", "./configs", "config directory (item registry)")
	in := fs.String("in", "", "bundle path (required)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if strings.TrimSpace(*in) == "" {
		return fmt.Errorf("%w: missing -in", errUsage)
	}

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		return err
	}
	h, recs, err := bundle.ReadFile(*in, cats.Registry)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "# bundle version=%d wire_version=%d count=%d digest=%s\n", h.Version, h.WireVersion, h.Count, h.Digest)
	return printRecipes(out, recs)
}

func printRecipes(out io.Writer, recs []recipe.Recipe) error {
	for _, r := range recs {
		b, err := jsoncodec.Marshal(r)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "# %s\n%s\n", r.ID(), b)
	}
	return nil
}

func displayCmd(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("display", flag.ContinueOnError)
	configDir := fs.String("configs", "./configs", "config directory")
	tuningPath := fs.String("tuning", "", "forge.yaml for the smelting fuel model (optional)")
	id := fs.String("id", "", "recipe id (required)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *id == "" {
		return fmt.Errorf("%w: missing -id", errUsage)
	}

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		return err
	}
	cats, err := catalogs.Load(*configDir)
	if err != nil {
		return err
	}
	var p display.Projection
	if r, ok := cats.Alloys.ByID[*id]; ok {
		p, err = display.FromRecipe(r, cats.Registry)
	} else if s, ok := cats.Smelting.ByID[*id]; ok {
		p, err = display.FromSmelting(s, cats.Registry, tune.FuelModel())
	} else {
		return fmt.Errorf("no recipe %q", *id)
	}
	if err != nil {
		return err
	}
	return writeProjection(out, p)
}

func writeProjection(out io.Writer, p display.Projection) error {
	b, err := display.Encode(p)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%s\n", b)
	return err
}

func cacheCmd(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("cache", flag.ContinueOnError)
	dbPath := fs.String("db", "./data/index/displays.sqlite", "display cache path")
	id := fs.String("id", "", "print this projection (default: list ids)")
	del := fs.Bool("delete", false, "delete -id instead of printing it")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *del && *id == "" {
		return fmt.Errorf("%w: -delete needs -id", errUsage)
	}

	store, err := displaycache.Open(*dbPath)
	if err != nil {
		return err
	}
	defer store.Close()
	ctx := context.Background()

	switch {
	case *id == "":
		ids, err := store.IDs(ctx)
		if err != nil {
			return err
		}
		for _, v := range ids {
			fmt.Fprintln(out, v)
		}
		return nil
	case *del:
		return store.Delete(ctx, *id)
	}
	e, err := store.Get(ctx, *id)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "# digest=%s updated_at=%s\n", e.Digest, e.UpdatedAt.Format(time.RFC3339))
	return writeProjection(out, e.Projection)
}

func syncCmd(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("sync", flag.ContinueOnError)
	url := fs.String("url", "ws://localhost:8080/v1/sync", "sync url")
	configDir := fs.String("configs", "./configs", "config directory (item registry)")
	known := fs.String("known_digest", "", "skip the stream if the server digest matches")
	printRecs := fs.Bool("print", false, "print received recipes")
	timeout := fs.Duration("timeout", 30*time.Second, "session timeout")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	res, err := ws.Fetch(ctx, *url, "forgectl", *known, cats.Registry)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "session=%s digest=%s recipes=%d up_to_date=%v truncated=%v\n",
		res.Welcome.SessionID, res.Welcome.Digest, len(res.Recipes), res.Welcome.UpToDate, res.Welcome.Truncated)
	if *printRecs {
		return printRecipes(out, res.Recipes)
	}
	return nil
}
