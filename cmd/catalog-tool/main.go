// catalog-tool is the operator-run CLI for maintenance tasks spec.md §5
// places outside the catalog core itself. Its only subcommand today is
// sweep-orphans (SPEC_FULL.md §10): list _data/ keys with no
// referencing file marker, live or tombstoned, and optionally delete
// them.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/icedb-go/icedb/internal/catalog"
	"github.com/icedb-go/icedb/internal/config"
	"github.com/icedb-go/icedb/pkg/objectstore"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "sweep-orphans":
		runSweepOrphans(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: catalog-tool sweep-orphans [-config path] [-apply]")
}

func runSweepOrphans(args []string) {
	fs := flag.NewFlagSet("sweep-orphans", flag.ExitOnError)
	configFile := fs.String("config", "", "path to configuration file")
	apply := fs.Bool("apply", false, "delete orphaned data objects instead of only reporting them")
	fs.Parse(args)

	logger := logrus.New()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	store, err := buildStore(context.Background(), cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build object store: %v\n", err)
		os.Exit(1)
	}

	cat := catalog.New(catalog.Options{
		Store:  store,
		Prefix: cfg.ObjectStore.TablePrefix,
		HostID: cfg.App.HostID,
		Logger: logger,
	})

	ctx := context.Background()
	orphans, err := sweepOrphans(ctx, cat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sweep orphans: %v\n", err)
		os.Exit(1)
	}

	if len(orphans) == 0 {
		fmt.Println("no orphaned data objects found")
		return
	}

	for _, key := range orphans {
		fmt.Println(key)
	}

	if !*apply {
		fmt.Printf("%d orphaned data object(s) found (dry run, pass -apply to delete)\n", len(orphans))
		return
	}

	deleted := 0
	for _, key := range orphans {
		if err := store.Delete(ctx, key); err != nil {
			fmt.Fprintf(os.Stderr, "delete %s: %v\n", key, err)
			continue
		}
		deleted++
	}
	fmt.Printf("deleted %d of %d orphaned data object(s)\n", deleted, len(orphans))
}

// sweepOrphans lists every key under the catalog's _data/ prefix and
// reports the ones absent from the current fold's marker set — neither
// a live nor a tombstoned FM references them. This can happen when an
// Insert or Merge uploads a data object and then fails before its log
// object is appended (spec.md §5's "orphaned data objects a partial
// bucket failure may have already uploaded").
func sweepOrphans(ctx context.Context, cat *catalog.Catalog) ([]string, error) {
	fold, err := cat.Fold(ctx)
	if err != nil {
		return nil, err
	}

	objs, err := cat.Store().List(ctx, cat.DataPrefix())
	if err != nil {
		return nil, err
	}

	var orphans []string
	for _, obj := range objs {
		if _, referenced := fold.Markers[obj.Key]; !referenced {
			orphans = append(orphans, obj.Key)
		}
	}
	return orphans, nil
}

func buildStore(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (objectstore.Store, error) {
	switch cfg.ObjectStore.Backend {
	case "s3":
		return objectstore.NewS3Store(ctx, cfg.ObjectStore.Bucket, logger)
	case "localdisk":
		return objectstore.NewLocalDiskStore(cfg.ObjectStore.LocalDir)
	default:
		return nil, fmt.Errorf("unknown object store backend: %s", cfg.ObjectStore.Backend)
	}
}
