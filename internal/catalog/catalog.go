// Package catalog maps the three-level human view of web-llm models
// (family, size, quantization) onto the opaque engine ids the browser engine
// loads, and back.
package catalog

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"webllmd/pkg/types"
)

// Levels names the selector levels in the order Options nests them.
var Levels = []string{"Model", "Size", "Quantization"}

// NoSize is the size of a coordinate whose id carries no size token.
const NoSize = "-"

// sizeToken matches parameter counts like 8B, 0.5B, 2b or 4k.
var sizeToken = regexp.MustCompile(`\d+(\.\d+)?[Bbk]`)

// Coordinate is the decomposed view of an engine id.
type Coordinate struct {
	Family       string `json:"family" yaml:"family" toml:"family"`
	Size         string `json:"size" yaml:"size" toml:"size"`
	Quantization string `json:"quantization" yaml:"quantization" toml:"quantization"`
}

// Catalog is family -> size -> quantization -> engine id.
// A Catalog is not safe for concurrent mutation; share it through a Store.
type Catalog map[string]map[string]map[string]string

// Parse decomposes an engine id. It never fails: ids that do not follow the
// usual <label>-<quantization>-<suffix> shape yield a best-effort coordinate.
func Parse(id string) Coordinate {
	c, _ := ParseStrict(id)
	return c
}

// ParseStrict is Parse that also reports whether the id had both a
// quantization segment and a size token.
func ParseStrict(id string) (Coordinate, bool) {
	ok := true
	label, quant := id, ""
	parts := strings.Split(id, "-")
	switch n := len(parts); {
	case n >= 3:
		label = strings.Join(parts[:n-2], "-")
		quant = parts[n-2]
	case n == 2:
		label, quant = parts[0], parts[1]
		ok = false
	default:
		ok = false
	}

	locs := sizeToken.FindAllStringIndex(label, -1)
	if len(locs) == 0 {
		return Coordinate{Family: trimSep(label), Size: NoSize, Quantization: quant}, false
	}
	last := locs[len(locs)-1]
	return Coordinate{
		Family:       trimSep(label[:last[0]]),
		Size:         label[last[0]:last[1]],
		Quantization: quant,
	}, ok
}

func trimSep(s string) string { return strings.TrimRight(s, "-_") }

// Add parses id and stores it under its coordinate. Last write wins.
func (c Catalog) Add(id string) Coordinate {
	co := Parse(id)
	c.Put(co, id)
	return co
}

// Put stores id under an explicit coordinate.
func (c Catalog) Put(co Coordinate, id string) {
	sizes, ok := c[co.Family]
	if !ok {
		sizes = make(map[string]map[string]string)
		c[co.Family] = sizes
	}
	quants, ok := sizes[co.Size]
	if !ok {
		quants = make(map[string]string)
		sizes[co.Size] = quants
	}
	quants[co.Quantization] = id
}

// Resolve looks up the engine id for a coordinate.
func (c Catalog) Resolve(co Coordinate) (string, error) {
	sizes, ok := c[co.Family]
	if !ok {
		return "", ErrNotFound(co)
	}
	quants, ok := sizes[co.Size]
	if !ok {
		return "", ErrNotFound(co)
	}
	id, ok := quants[co.Quantization]
	if !ok {
		return "", ErrNotFound(co)
	}
	return id, nil
}

// Contains reports whether id is present anywhere in the catalog.
func (c Catalog) Contains(id string) bool {
	if id == "" {
		return false
	}
	got, err := c.Resolve(Parse(id))
	if err == nil && got == id {
		return true
	}
	// ids stored with an explicit coordinate (catalog files) may not sit
	// where Parse puts them
	for _, sizes := range c {
		for _, quants := range sizes {
			for _, v := range quants {
				if v == id {
					return true
				}
			}
		}
	}
	return false
}

// Len returns the number of engine ids in the catalog.
func (c Catalog) Len() int {
	n := 0
	for _, sizes := range c {
		for _, quants := range sizes {
			n += len(quants)
		}
	}
	return n
}

// IDs returns all engine ids sorted.
func (c Catalog) IDs() []string {
	out := make([]string, 0, c.Len())
	for _, sizes := range c {
		for _, quants := range sizes {
			for _, id := range quants {
				out = append(out, id)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Entries returns one Model per engine id, sorted by id.
func (c Catalog) Entries() []types.Model {
	out := make([]types.Model, 0, c.Len())
	for fam, sizes := range c {
		for size, quants := range sizes {
			for q, id := range quants {
				out = append(out, types.Model{ID: id, Family: fam, Size: size, Quantization: q})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Options builds the selector tree: families sorted by name, sizes by
// parameter count, quantizations by name.
func (c Catalog) Options() []types.FamilyOption {
	fams := make([]string, 0, len(c))
	for f := range c {
		fams = append(fams, f)
	}
	sort.Strings(fams)

	out := make([]types.FamilyOption, 0, len(fams))
	for _, f := range fams {
		sizes := make([]string, 0, len(c[f]))
		for s := range c[f] {
			sizes = append(sizes, s)
		}
		sort.Slice(sizes, func(i, j int) bool { return lessSize(sizes[i], sizes[j]) })

		fo := types.FamilyOption{Family: f, Sizes: make([]types.SizeOption, 0, len(sizes))}
		for _, s := range sizes {
			quants := make([]string, 0, len(c[f][s]))
			for q := range c[f][s] {
				quants = append(quants, q)
			}
			sort.Strings(quants)
			fo.Sizes = append(fo.Sizes, types.SizeOption{Size: s, Quantizations: quants})
		}
		out = append(out, fo)
	}
	return out
}

// Clone returns a deep copy.
func (c Catalog) Clone() Catalog {
	out := make(Catalog, len(c))
	for f, sizes := range c {
		for s, quants := range sizes {
			for q, id := range quants {
				out.Put(Coordinate{Family: f, Size: s, Quantization: q}, id)
			}
		}
	}
	return out
}

// lessSize orders size tokens by magnitude; "-" and unparsable tokens sort last.
func lessSize(a, b string) bool {
	va, oka := sizeValue(a)
	vb, okb := sizeValue(b)
	switch {
	case oka && okb && va != vb:
		return va < vb
	case oka != okb:
		return oka
	}
	return a < b
}

func sizeValue(s string) (float64, bool) {
	if len(s) < 2 {
		return 0, false
	}
	v, err := strconv.ParseFloat(s[:len(s)-1], 64)
	if err != nil {
		return 0, false
	}
	switch s[len(s)-1] {
	case 'B', 'b':
		return v * 1e9, true
	case 'k':
		return v * 1e3, true
	}
	return 0, false
}
