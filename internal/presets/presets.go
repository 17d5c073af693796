// Package presets holds the canned prompts offered next to the prompt box.
package presets

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed presets.yaml
var defaultYAML []byte

type Preset struct {
	Key   string `yaml:"key" json:"key"`
	Label string `yaml:"label" json:"label"`
	Text  string `yaml:"text" json:"text"`
}

type Catalog struct {
	presets []Preset
	byKey   map[string]int
}

type file struct {
	Presets []Preset `yaml:"presets"`
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded presets: %v", err))
	}
	return c
}

// Load reads a catalog from path, or returns the built-in one when path is empty.
func Load(path string) (*Catalog, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read presets: %w", err)
	}
	c, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func Parse(raw []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse presets: %w", err)
	}
	if len(f.Presets) == 0 {
		return nil, errors.New("no presets defined")
	}

	c := &Catalog{byKey: make(map[string]int, len(f.Presets))}
	for i, p := range f.Presets {
		p.Key = strings.TrimSpace(p.Key)
		p.Label = strings.TrimSpace(p.Label)
		p.Text = strings.TrimSpace(p.Text)
		switch {
		case p.Key == "":
			return nil, fmt.Errorf("preset %d: key is required", i)
		case p.Text == "":
			return nil, fmt.Errorf("preset %q: text is required", p.Key)
		}
		if _, dup := c.byKey[p.Key]; dup {
			return nil, fmt.Errorf("preset %q defined twice", p.Key)
		}
		if p.Label == "" {
			p.Label = p.Key
		}
		c.byKey[p.Key] = len(c.presets)
		c.presets = append(c.presets, p)
	}
	return c, nil
}

func (c *Catalog) All() []Preset {
	out := make([]Preset, len(c.presets))
	copy(out, c.presets)
	return out
}

func (c *Catalog) Get(key string) (Preset, bool) {
	i, ok := c.byKey[key]
	if !ok {
		return Preset{}, false
	}
	return c.presets[i], true
}
