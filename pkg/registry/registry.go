package registry

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Feed is a registered GTFS dataset that runs can refer to by identifier
type Feed struct {
	Identifier      string `yaml:"identifier"`
	Name            string `yaml:"name"`
	Source          string `yaml:"source"`
	OutputDirectory string `yaml:"output_directory"`
	Units           string `yaml:"units"`
}

type Registry struct {
	Feeds []Feed
}

// Load reads feed definitions from a yaml file. The file may contain multiple
// documents, each with its own feeds list
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read feed registry %s: %w", path, err)
	}

	registry := &Registry{}
	decoder := yaml.NewDecoder(bytes.NewReader(data))

	for {
		var document struct {
			Feeds []Feed `yaml:"feeds"`
		}
		if decoder.Decode(&document) != nil {
			break
		}

		registry.Feeds = append(registry.Feeds, document.Feeds...)
	}

	if len(registry.Feeds) == 0 {
		return nil, fmt.Errorf("feed registry %s contains no feeds", path)
	}

	return registry, nil
}

func (r *Registry) Get(identifier string) (Feed, error) {
	for _, feed := range r.Feeds {
		if feed.Identifier == identifier {
			return feed, nil
		}
	}

	return Feed{}, fmt.Errorf("no registered feed with identifier %s", identifier)
}
