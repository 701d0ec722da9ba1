package plugin

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/sigwatch/internal/model"
	"github.com/couchcryptid/sigwatch/internal/normalize"
	"github.com/couchcryptid/sigwatch/internal/parser"
)

// FeedPack is a named YAML file that expands into one RSS plugin per entry
// (spec §6: "Feed packs are named YAML files that expand into RSS
// plugins").
type FeedPack struct {
	Sources []FeedPackEntry `yaml:"sources" validate:"dive"`
}

// FeedPackEntry is one feed pack row.
type FeedPackEntry struct {
	ID          string   `yaml:"id" validate:"required"`
	Name        string   `yaml:"name" validate:"required"`
	Type        string   `yaml:"type" validate:"required"`
	URL         string   `yaml:"url" validate:"required,url"`
	Region      string   `yaml:"region"`
	Tags        []string `yaml:"tags"`
	PollSeconds int      `yaml:"poll_seconds" validate:"required,gt=0"`
	Enabled     bool     `yaml:"enabled"`
}

// LoadFeedPack reads and parses one feed pack file.
func LoadFeedPack(path string) (FeedPack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FeedPack{}, fmt.Errorf("plugin: read feed pack %s: %w", path, err)
	}
	var pack FeedPack
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return FeedPack{}, fmt.Errorf("plugin: parse feed pack %s: %w", path, err)
	}
	if err := getValidator().Struct(pack); err != nil {
		return FeedPack{}, fmt.Errorf("plugin: invalid feed pack %s: %w", path, err)
	}
	return pack, nil
}

// ToPlugins expands a feed pack into Plugins, every entry parsed as RSS and
// normalized by whatever family normalize.Deps.ForCategory resolves its
// declared type to.
func (pack FeedPack) ToPlugins(deps normalize.Deps) []Plugin {
	out := make([]Plugin, 0, len(pack.Sources))
	for _, e := range pack.Sources {
		category := model.Category(e.Type)
		out = append(out, Plugin{
			SourceID:            e.ID,
			Name:                e.Name,
			URL:                 e.URL,
			SourceType:          model.SourceTypeRSS,
			PollIntervalSeconds: e.PollSeconds,
			DefaultEnabled:      e.Enabled,
			Parse:               parser.ParseRSS,
			Normalize:           deps.ForCategory(category),
		})
	}
	return out
}

// LoadFeedPackAsPlugins is a convenience wrapper composing LoadFeedPack and
// ToPlugins for the common case of one file, one set of plugins.
func LoadFeedPackAsPlugins(path string, deps normalize.Deps) ([]Plugin, error) {
	pack, err := LoadFeedPack(path)
	if err != nil {
		return nil, err
	}
	return pack.ToPlugins(deps), nil
}
