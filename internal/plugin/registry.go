package plugin

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/couchcryptid/sigwatch/internal/model"
)

// SourceSync is the store-backed half of registration: whatever mutates the
// in-memory Registry also needs to push (or retract) a model.Source row so
// the scheduler's due-selection — which only ever reads the sources table —
// actually picks the plugin up (spec §4.6 step 10, §9 "dynamic plugin
// registry"). Narrowed to the two operations SyncDynamic needs.
type SourceSync interface {
	RegisterSource(ctx context.Context, src model.Source) error
	SetEnabled(ctx context.Context, sourceID string, enabled bool) error
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Registry is the mutex-guarded source_id → Plugin mapping (spec §9:
// "registration is a mutation of a mutex-guarded mapping").
type Registry struct {
	mu      sync.Mutex
	plugins map[string]Plugin
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]Plugin)}
}

// Register validates p's struct tags and adds or replaces it by SourceID.
func (r *Registry) Register(p Plugin) error {
	if err := getValidator().Struct(p); err != nil {
		return fmt.Errorf("plugin: invalid plugin %q: %w", p.SourceID, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins[p.SourceID] = p
	return nil
}

// Unregister removes a plugin by source_id. It is a no-op if absent.
func (r *Registry) Unregister(sourceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.plugins, sourceID)
}

// Get returns the plugin registered under sourceID, if any.
func (r *Registry) Get(sourceID string) (Plugin, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.plugins[sourceID]
	return p, ok
}

// All returns every registered plugin, sorted by source_id for deterministic
// iteration order (schedulers and tests both want this).
func (r *Registry) All() []Plugin {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Plugin, 0, len(r.plugins))
	for _, p := range r.plugins {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceID < out[j].SourceID })
	return out
}

// SyncDynamic reconciles a dynamically-discovered ID set against whatever is
// currently registered under sourceIDPrefix (spec §9: "Runtime expansion...
// enqueues new plugins and disables stale ones via set difference"). factory
// builds the Plugin for one newly-discovered id; ids already registered are
// left untouched in the registry so their in-memory state survives, but
// every wanted id's source row is re-asserted enabled through sync in case
// it had previously dropped out and been disabled. sync is the store-backed
// half of the reconciliation: stale ids are disabled (never deleted — spec
// §4.6 step 10 says "disabled", not removed) and newly- or re-discovered ids
// get their source row registered and enabled.
func (r *Registry) SyncDynamic(ctx context.Context, sourceIDPrefix string, ids []string, factory func(id string) Plugin, sync SourceSync) error {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[sourceIDPrefix+id] = true
	}

	r.mu.Lock()
	var stale []string
	for sourceID := range r.plugins {
		if len(sourceID) > len(sourceIDPrefix) && sourceID[:len(sourceIDPrefix)] == sourceIDPrefix && !want[sourceID] {
			stale = append(stale, sourceID)
		}
	}
	for _, sourceID := range stale {
		delete(r.plugins, sourceID)
	}
	r.mu.Unlock()

	for _, sourceID := range stale {
		if err := sync.SetEnabled(ctx, sourceID, false); err != nil {
			return fmt.Errorf("plugin: disable stale source %q: %w", sourceID, err)
		}
	}

	for _, id := range ids {
		sourceID := sourceIDPrefix + id
		p, ok := r.Get(sourceID)
		if !ok {
			p = factory(id)
			if err := r.Register(p); err != nil {
				return err
			}
		}
		if err := sync.RegisterSource(ctx, p.AsSource()); err != nil {
			return fmt.Errorf("plugin: register source %q: %w", sourceID, err)
		}
		if err := sync.SetEnabled(ctx, sourceID, true); err != nil {
			return fmt.Errorf("plugin: enable source %q: %w", sourceID, err)
		}
	}
	return nil
}
