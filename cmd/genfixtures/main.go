// Command genfixtures writes JSON item fixtures. It runs a raw GeoJSON feed
// through the actual parser and normalizer packages under a frozen clock, so
// fixture data always matches real pipeline behavior instead of being
// hand-authored and drifting. No test in this repository reads its output.
//
// Usage:
//
//	go run ./cmd/genfixtures -in testdata/usgs_sample.geojson \
//	  -source-id usgs_earthquakes_m25plus -category earthquake \
//	  -out internal/normalize/testdata/earthquake_fixture.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/sigwatch/internal/clock"
	"github.com/couchcryptid/sigwatch/internal/model"
	"github.com/couchcryptid/sigwatch/internal/normalize"
	"github.com/couchcryptid/sigwatch/internal/parser"
)

// frozenAt is the fixed fetch time used for reproducible fixture output.
var frozenAt = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	in := flag.String("in", "", "path to a raw GeoJSON feed")
	sourceID := flag.String("source-id", "", "source_id to normalize as")
	category := flag.String("category", "earthquake", "category to normalize into")
	out := flag.String("out", "", "output path for the item fixture JSON")
	flag.Parse()

	if *in == "" || *sourceID == "" || *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -in, -source-id, -out")
	}

	clock.Set(clockwork.NewFakeClockAt(frozenAt))
	defer clock.Set(nil)

	data, err := os.ReadFile(*in)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	records, err := parser.ParseGeoJSON(data)
	if err != nil {
		return fmt.Errorf("parse geojson: %w", err)
	}

	deps := normalize.Deps{}
	normalizeFn := deps.ForCategory(model.Category(*category))

	items := make([]model.Item, 0, len(records))
	for _, rec := range records {
		item, err := normalizeFn(context.Background(), *sourceID, rec, frozenAt)
		if err != nil {
			return fmt.Errorf("normalize record: %w", err)
		}
		items = append(items, item)
	}

	if err := writeJSON(*out, items); err != nil {
		return fmt.Errorf("write fixture: %w", err)
	}
	log.Printf("wrote %d items to %s", len(items), *out)
	return nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}
