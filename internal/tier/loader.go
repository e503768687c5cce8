package tier

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// tableDocument is the on-disk schema for a custom tier table. Only the
// tiers block is read; extra keys are ignored so operators can annotate the
// file freely.
type tableDocument struct {
	Tiers map[string]int `koanf:"tiers"`
}

// LoadTable reads a tier table override from a yaml, json, or toml document.
// An empty path returns the default table so callers never branch on whether
// an override is configured.
func LoadTable(path string) (*Table, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultTable(), nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("tier: table file %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("tier: table file %s: expected a file, found directory", path)
	}
	parser, err := parserFor(path)
	if err != nil {
		return nil, err
	}
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("tier: load table from %s: %w", path, err)
	}
	var doc tableDocument
	if err := k.Unmarshal("", &doc); err != nil {
		return nil, fmt.Errorf("tier: decode table from %s: %w", path, err)
	}
	if len(doc.Tiers) == 0 {
		return nil, fmt.Errorf("tier: table file %s contains no tiers block", path)
	}
	table, err := NewTable(doc.Tiers)
	if err != nil {
		return nil, fmt.Errorf("tier: table file %s: %w", path, err)
	}
	return table, nil
}

func parserFor(path string) (koanf.Parser, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return kjson.Parser(), nil
	case ".toml", ".tml":
		return toml.Parser(), nil
	default:
		return nil, fmt.Errorf("tier: unsupported table file extension %s", ext)
	}
}
