package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/kagami/internal/catalog"
	"github.com/hyperjump/kagami/internal/config"
	"github.com/hyperjump/kagami/internal/storage"
)

type buildOptions struct {
	in    string
	to    string
	out   string
	name  string
	write catalog.WriteOptions
}

func runBuild() {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (object store settings for --to s3)")
	in := fs.String("in", "-", "JSON records file (- for stdin)")
	to := fs.String("to", config.SourceFile, "destination: file, sqlite or s3")
	out := fs.String("out", "", "catalog file, SQLite database or object key")
	name := fs.String("name", "", "catalog name (default: derived from --out)")
	half := fs.Bool("float16", false, "store vectors in half precision")
	omitOrdinals := fs.Bool("omit-ordinals", false, "do not persist ordinals")
	_ = fs.Parse(os.Args[2:])
	if *out == "" {
		fatalf("Usage: kagami build --out <path> [flags]")
	}

	opts := buildOptions{
		in:    *in,
		to:    *to,
		out:   *out,
		name:  *name,
		write: catalog.WriteOptions{Float16: *half, OmitOrdinals: *omitOrdinals},
	}
	var objects config.ObjectStoreConfig
	if opts.to == config.SourceS3 {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fatalf("Failed to load config: %v", err)
		}
		objects = cfg.ObjectStore
	}
	c, err := buildCatalog(context.Background(), opts, os.Stdin, objects)
	if err != nil {
		fatalf("Build failed: %v", err)
	}
	fmt.Printf("Built catalog %q: %d records, %d dimensions, %d categories -> %s\n",
		c.Name(), c.Len(), c.Dimensions(), len(c.Categories()), opts.out)
}

// buildCatalog reads JSON records from opts.in (stdin when "-") and stores the catalog
// at the requested destination.
func buildCatalog(ctx context.Context, opts buildOptions, stdin io.Reader, objects config.ObjectStoreConfig) (*catalog.Catalog, error) {
	name := opts.name
	if name == "" {
		name = nameFromPath(opts.out)
	}
	r := stdin
	if opts.in != "-" {
		f, err := os.Open(opts.in)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	c, err := catalog.ReadRecords(r, catalog.WithName(name))
	if err != nil {
		return nil, err
	}

	switch opts.to {
	case config.SourceFile, "":
		if err := os.MkdirAll(filepath.Dir(opts.out), 0755); err != nil {
			return nil, err
		}
		err = catalog.SaveFile(opts.out, c, opts.write)
	case config.SourceSQLite:
		var store *storage.SQLiteStorage
		store, err = storage.NewSQLiteStorage(opts.out)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		err = store.SaveCatalog(ctx, c, opts.write)
	case config.SourceS3:
		var store *storage.ObjectStore
		store, err = storage.NewObjectStore(objects)
		if err != nil {
			return nil, err
		}
		err = store.SaveCatalog(ctx, opts.out, c, opts.write)
	default:
		return nil, fmt.Errorf("unknown destination: %s", opts.to)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// nameFromPath strips directories and catalog extensions: "out/image.kgc.zst" -> "image".
func nameFromPath(p string) string {
	base := filepath.Base(p)
	if i := strings.Index(base, "."); i > 0 {
		return base[:i]
	}
	return base
}
