// Package watchlist loads the entities to watch at boot from a TOML or YAML file.
package watchlist

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

type Config struct {
	File string `envconfig:"HIVEWATCH_WATCHLIST_FILE"`
}

type Entry struct {
	EntityID string `toml:"entityId" yaml:"entityId"`
	Label    string `toml:"label" yaml:"label"`
}

type document struct {
	Hives []Entry `toml:"hive" yaml:"hives"`
}

// Load reads path, choosing the decoder by extension (.toml, .yaml or .yml).
func Load(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read watchlist: %w", err)
	}
	return Parse(filepath.Ext(path), data)
}

func Parse(ext string, data []byte) ([]Entry, error) {
	var doc document
	switch strings.ToLower(ext) {
	case ".toml":
		md, err := toml.Decode(string(data), &doc)
		if err != nil {
			return nil, fmt.Errorf("decode toml watchlist: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("unknown watchlist keys: %v", undecoded)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode yaml watchlist: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported watchlist format %q", ext)
	}
	return validate(doc.Hives)
}

func validate(entries []Entry) ([]Entry, error) {
	seen := make(map[string]struct{}, len(entries))
	out := make([]Entry, 0, len(entries))
	for i, e := range entries {
		e.EntityID = strings.TrimSpace(e.EntityID)
		if e.EntityID == "" {
			return nil, fmt.Errorf("watchlist entry %d: entityId is required", i)
		}
		if _, ok := seen[e.EntityID]; ok {
			return nil, fmt.Errorf("watchlist entry %d: duplicate entityId %s", i, e.EntityID)
		}
		seen[e.EntityID] = struct{}{}
		out = append(out, e)
	}
	return out, nil
}
