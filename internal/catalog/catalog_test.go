package catalog

import (
	"errors"
	"net/http"
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	cases := []struct {
		id   string
		want Coordinate
		ok   bool
	}{
		{"Qwen2.5-Coder-0.5B-Instruct-q0f16-MLC", Coordinate{"Qwen2.5-Coder", "0.5B", "q0f16"}, true},
		{"Llama-3.2-1B-Instruct-q4f16_1-MLC", Coordinate{"Llama-3.2", "1B", "q4f16_1"}, true},
		{"Hermes-3-Llama-3.1-8B-q4f16_1-MLC", Coordinate{"Hermes-3-Llama-3.1", "8B", "q4f16_1"}, true},
		{"gemma-2-2b-it-q4f16_1-MLC", Coordinate{"gemma-2", "2b", "q4f16_1"}, true},
		{"Phi-3.5-mini-instruct-q4f16_1-MLC", Coordinate{"Phi-3.5-mini-instruct", NoSize, "q4f16_1"}, false},
		{"Llama-3-8B-Instruct_4k-q4f16_1-MLC", Coordinate{"Llama-3-8B-Instruct", "4k", "q4f16_1"}, true},
		{"plain", Coordinate{"plain", NoSize, ""}, false},
		{"half-q4", Coordinate{"half", NoSize, "q4"}, false},
		{"", Coordinate{"", NoSize, ""}, false},
		{"--", Coordinate{"", NoSize, ""}, false},
		{"7B--", Coordinate{"", "7B", ""}, true},
	}
	for _, tc := range cases {
		got, ok := ParseStrict(tc.id)
		if got != tc.want || ok != tc.ok {
			t.Errorf("ParseStrict(%q) = %+v, %v; want %+v, %v", tc.id, got, ok, tc.want, tc.ok)
		}
		if Parse(tc.id) != got {
			t.Errorf("Parse(%q) disagrees with ParseStrict", tc.id)
		}
	}
}

func TestParseNeverPanics(t *testing.T) {
	inputs := []string{"-", "---", "B", "1B", "-1B-", "\x00", "ü-ö-ä", "1.2.3.4B-x-y", "k-k-k"}
	for _, in := range inputs {
		_ = Parse(in)
	}
}

func TestDefaultRoundTrip(t *testing.T) {
	c := Default()
	if c.Len() != len(defaultIDs) {
		t.Fatalf("default catalog has collisions: %d ids, %d entries", len(defaultIDs), c.Len())
	}
	for _, id := range c.IDs() {
		got, err := c.Resolve(Parse(id))
		if err != nil {
			t.Fatalf("resolve %q: %v", id, err)
		}
		if got != id {
			t.Fatalf("round trip %q -> %q", id, got)
		}
	}
	if bad := Inconsistent(c); len(bad) != 0 {
		t.Fatalf("inconsistent entries: %v", bad)
	}
}

func TestResolveNotFound(t *testing.T) {
	c := Default()
	missing := []Coordinate{
		{"NoSuchFamily", "1B", "q4f16_1"},
		{"Llama-3.2", "999B", "q4f16_1"},
		{"Llama-3.2", "1B", "q9f99"},
	}
	for _, co := range missing {
		_, err := c.Resolve(co)
		if err == nil || !IsNotFound(err) {
			t.Fatalf("Resolve(%+v) err=%v, want not found", co, err)
		}
		var sc interface{ StatusCode() int }
		if !errors.As(err, &sc) || sc.StatusCode() != http.StatusNotFound {
			t.Fatalf("Resolve(%+v) err=%v does not map to 404", co, err)
		}
	}
}

func TestAddLastWriteWins(t *testing.T) {
	c := make(Catalog)
	c.Put(Coordinate{"Fam", "1B", "q4"}, "first")
	c.Put(Coordinate{"Fam", "1B", "q4"}, "second")
	got, err := c.Resolve(Coordinate{"Fam", "1B", "q4"})
	if err != nil || got != "second" {
		t.Fatalf("got %q, %v", got, err)
	}
	if c.Len() != 1 {
		t.Fatalf("len=%d", c.Len())
	}
}

func TestOptionsSortedAndIdempotent(t *testing.T) {
	c := make(Catalog)
	for _, id := range []string{
		"Zeta-7B-Instruct-q4f16_1-MLC",
		"Alpha-70B-Instruct-q4f16_1-MLC",
		"Alpha-8B-Instruct-q4f32_1-MLC",
		"Alpha-8B-Instruct-q0f16-MLC",
		"Alpha-0.5B-Instruct-q4f16_1-MLC",
		"Alpha-instruct-q4f16_1-MLC",
	} {
		c.Add(id)
	}
	opts := c.Options()
	// "Alpha-instruct" has no size token, so it lands in its own family
	if len(opts) != 3 || opts[0].Family != "Alpha" || opts[1].Family != "Alpha-instruct" || opts[2].Family != "Zeta" {
		t.Fatalf("families: %+v", opts)
	}
	var alpha []string
	for _, s := range opts[0].Sizes {
		alpha = append(alpha, s.Size)
	}
	if want := []string{"0.5B", "8B", "70B"}; !reflect.DeepEqual(alpha, want) {
		t.Fatalf("sizes=%v want %v", alpha, want)
	}
	if q := opts[0].Sizes[1].Quantizations; !reflect.DeepEqual(q, []string{"q0f16", "q4f32_1"}) {
		t.Fatalf("quantizations=%v", q)
	}
	if !reflect.DeepEqual(opts, c.Options()) {
		t.Fatalf("Options not idempotent")
	}
}

func TestLessSizeDashLast(t *testing.T) {
	if !lessSize("1B", NoSize) || lessSize(NoSize, "1B") {
		t.Fatalf("expected %q to sort after sized entries", NoSize)
	}
	if !lessSize("4k", "1B") {
		t.Fatalf("expected 4k < 1B")
	}
}

func TestContainsAndEntries(t *testing.T) {
	c := Default()
	if !c.Contains("Llama-3.2-1B-Instruct-q4f16_1-MLC") {
		t.Fatalf("expected default id present")
	}
	if c.Contains("") || c.Contains("nope-q4-MLC") {
		t.Fatalf("unexpected contains")
	}
	c.Put(Coordinate{"Custom", "1B", "q"}, "odd-id")
	if !c.Contains("odd-id") {
		t.Fatalf("expected explicitly placed id to be found")
	}
	es := c.Entries()
	for i := 1; i < len(es); i++ {
		if es[i-1].ID > es[i].ID {
			t.Fatalf("entries not sorted at %d", i)
		}
	}
}

func TestCloneIsDeep(t *testing.T) {
	c := Default()
	cp := c.Clone()
	cp.Add("Extra-1B-x-q4-MLC")
	if c.Len() == cp.Len() {
		t.Fatalf("clone shares storage")
	}
}
