package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// LoadFile reads a nested family/size/quantization mapping from a YAML,
// JSON or TOML file chosen by extension.
func LoadFile(path string) (Catalog, error) {
	p, err := expandHome(path)
	if err != nil {
		return nil, err
	}
	if p == "" {
		return nil, fmt.Errorf("empty catalog path")
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	var c Catalog
	switch ext := strings.ToLower(filepath.Ext(p)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &c)
	case ".json":
		err = json.Unmarshal(b, &c)
	case ".toml":
		err = toml.Unmarshal(b, &c)
	default:
		return nil, fmt.Errorf("unsupported catalog extension: %s", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", p, err)
	}
	if c == nil {
		c = Catalog{}
	}
	return c, nil
}

// WriteFile writes c to path, encoding by extension.
func WriteFile(path string, c Catalog) error {
	p, err := expandHome(path)
	if err != nil {
		return err
	}
	var b []byte
	switch ext := strings.ToLower(filepath.Ext(p)); ext {
	case ".yaml", ".yml":
		b, err = yaml.Marshal(c)
	case ".json":
		b, err = json.MarshalIndent(c, "", "  ")
	case ".toml":
		b, err = toml.Marshal(c)
	default:
		return fmt.Errorf("unsupported catalog extension: %s", ext)
	}
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	if dir := filepath.Dir(p); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir: %w", err)
		}
	}
	return os.WriteFile(p, b, 0o644)
}

// Inconsistent lists ids that do not parse back to the coordinate they are
// stored under. Hand-edited catalog files are the usual source.
func Inconsistent(c Catalog) []string {
	var bad []string
	for fam, sizes := range c {
		for size, quants := range sizes {
			for q, id := range quants {
				if Parse(id) != (Coordinate{Family: fam, Size: size, Quantization: q}) {
					bad = append(bad, id)
				}
			}
		}
	}
	sort.Strings(bad)
	return bad
}

// expandHome expands a leading '~' to the user's home directory.
func expandHome(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}
