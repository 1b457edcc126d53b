package scheduler

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed era_keywords.yaml
var defaultEraKeywords []byte

type EraKeywords struct {
	Default []string         `yaml:"default"`
	Years   map[int][]string `yaml:"years"`
}

// LoadEraKeywords reads path, or the embedded set when path is empty.
func LoadEraKeywords(path string) (*EraKeywords, error) {
	raw := defaultEraKeywords
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read era keywords: %w", err)
		}
		raw = b
	}
	var ek EraKeywords
	if err := yaml.Unmarshal(raw, &ek); err != nil {
		return nil, fmt.Errorf("parse era keywords: %w", err)
	}
	return &ek, nil
}

func (e *EraKeywords) For(year int) []string {
	if e == nil {
		return nil
	}
	if kws := e.Years[year]; len(kws) > 0 {
		return kws
	}
	return e.Default
}

// Queries returns up to n "<keyword> <year>" search strings.
func (e *EraKeywords) Queries(year, n int) []string {
	kws := e.For(year)
	if n > 0 && len(kws) > n {
		kws = kws[:n]
	}
	out := make([]string, 0, len(kws))
	for _, kw := range kws {
		out = append(out, fmt.Sprintf("%s %d", strings.TrimSpace(kw), year))
	}
	return out
}
