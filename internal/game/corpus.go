// internal/game/corpus.go
package game

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed corpus.yaml
var defaultCorpus []byte

// Corpus is the content prompts are drawn from.
type Corpus struct {
	Teams      []string `yaml:"teams"`
	Letters    []string `yaml:"letters"`
	Categories []string `yaml:"categories"`
}

// ErrEmptyCorpus is returned when a corpus has no letters or no categories.
var ErrEmptyCorpus = errors.New("corpus needs at least one letter and one category")

// DefaultCorpus parses the corpus compiled into the binary.
func DefaultCorpus() *Corpus {
	c, err := ParseCorpus(defaultCorpus)
	if err != nil {
		// the embedded file is part of the source tree
		panic(fmt.Sprintf("embedded corpus: %v", err))
	}
	return c
}

// LoadCorpus reads a YAML corpus from path. An empty path yields the default corpus.
func LoadCorpus(path string) (*Corpus, error) {
	if path == "" {
		return DefaultCorpus(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus file: %w", err)
	}
	c, err := ParseCorpus(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse corpus %s: %w", path, err)
	}
	return c, nil
}

// ParseCorpus decodes YAML corpus data and drops blank or repeated entries.
func ParseCorpus(data []byte) (*Corpus, error) {
	var c Corpus
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	c.Teams = cleanList(c.Teams)
	c.Letters = cleanList(c.Letters)
	c.Categories = cleanList(c.Categories)
	if len(c.Letters) == 0 || len(c.Categories) == 0 {
		return nil, ErrEmptyCorpus
	}
	return &c, nil
}

func cleanList(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
