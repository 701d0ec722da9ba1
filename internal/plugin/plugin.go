// Package plugin defines the source plugin registry (spec §6, §9): a
// mutex-guarded mapping from source_id to Plugin, populated at boot from
// static definitions and from feed packs — named YAML files that expand
// into one RSS plugin per entry, optionally hot-reloaded via fsnotify.
package plugin

import (
	"context"
	"time"

	"github.com/couchcryptid/sigwatch/internal/model"
	"github.com/couchcryptid/sigwatch/internal/normalize"
	"github.com/couchcryptid/sigwatch/internal/parser"
)

// ParseFunc decodes a fetched body into raw records. It is the shape every
// internal/parser function already implements.
type ParseFunc func(data []byte) ([]parser.RawRecord, error)

// BuildURLFunc lets a plugin compute its request URL dynamically — date
// windows, continuation cursors, or injected secrets (spec §4.6 step 1).
// now is supplied by the caller so this stays clock-injectable like
// everything else.
type BuildURLFunc func(ctx context.Context, now time.Time) (string, error)

// Plugin is one source's static definition plus its parse/normalize
// behavior (spec §6: "A list of plugins; each plugin has: source_id, name,
// url, source_type, poll_interval_seconds, parse, normalize,
// default_enabled, headers?, build_url?").
type Plugin struct {
	SourceID            string            `validate:"required"`
	Name                string            `validate:"required"`
	URL                 string            `validate:"required,url"`
	SourceType          model.SourceType  `validate:"required"`
	PollIntervalSeconds int               `validate:"required,gt=0"`
	DefaultEnabled      bool
	Headers             map[string]string

	Parse     ParseFunc      `validate:"required"`
	Normalize normalize.Func `validate:"required"`
	BuildURL  BuildURLFunc

	// Category labels the plugin's dominant item category for scheduler
	// special-casing (spec §4.6 step 11: tsunami feeds shorten their next
	// poll). Most plugins can leave this empty; it is not used to route
	// normalization, only to pick a next_fetch_at strategy.
	Category model.Category

	// Authenticate obtains a session token for sources that require one
	// (spec §4.6 step 2, "authenticated social sources"). Its result is
	// sent as a Bearer Authorization header. Plugins without auth leave
	// this nil.
	Authenticate func(ctx context.Context) (string, error)
}

// ResolveURL returns the plugin's request URL for this cycle: the dynamic
// BuildURL result when set, else the static URL template unchanged.
func (p Plugin) ResolveURL(ctx context.Context, now time.Time) (string, error) {
	if p.BuildURL == nil {
		return p.URL, nil
	}
	return p.BuildURL(ctx, now)
}

// AsSource converts a plugin's static fields into the model.Source row the
// scheduler's due-selection reads from (spec §6's plugin shape persisted as
// a §3 Source). Used at boot and whenever registration happens again after
// the registry changes, so a plugin added after boot gets a schedule row
// too (spec §4.6 step 10, §9 "dynamic plugin registry").
func (p Plugin) AsSource() model.Source {
	return model.Source{
		SourceID:            p.SourceID,
		Name:                p.Name,
		SourceType:          p.SourceType,
		URL:                 p.URL,
		PollIntervalSeconds: p.PollIntervalSeconds,
		Enabled:             p.DefaultEnabled,
	}
}
