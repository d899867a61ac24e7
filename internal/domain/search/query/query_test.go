package query

import (
	"errors"
	"reflect"
	"testing"

	"github.com/kailas-cloud/recherche/internal/domain"
	"github.com/kailas-cloud/recherche/internal/domain/search/mode"
)

func TestAutoDistance(t *testing.T) {
	tests := []struct {
		term string
		want int
	}{
		{"", 0},
		{"ab", 0},
		{"abc", 1},
		{"Genève", 2},
		{"Jean", 1},
		{"Schmid", 2},
		{"12345", 1},
	}
	for _, tt := range tests {
		if got := AutoDistance(tt.term); got != tt.want {
			t.Errorf("AutoDistance(%q) = %d, want %d", tt.term, got, tt.want)
		}
	}
}

func TestBuildSingleModes(t *testing.T) {
	e := NewEngine(nil, DefaultPolicy(), 0)

	for _, tt := range []struct {
		m    mode.Mode
		kind Kind
	}{
		{mode.Fuzzy, KindFuzzy},
		{mode.Wildcard, KindWildcard},
	} {
		specs, err := e.Build(tt.m, "Schmid")
		if err != nil {
			t.Fatalf("Build(%s): %v", tt.m, err)
		}
		if len(specs) != 1 || specs[0].Kind != tt.kind {
			t.Fatalf("Build(%s) = %+v", tt.m, specs)
		}
		s := specs[0]
		if s.Size != defaultSize {
			t.Errorf("Size = %d, want %d", s.Size, defaultSize)
		}
		if !reflect.DeepEqual(s.Fields, DefaultFields()) {
			t.Errorf("Fields = %+v", s.Fields)
		}
		want := Fuzziness{Distance: 2, PrefixLength: 0, MaxExpansions: 50, Transpositions: true}
		if s.Fuzziness != want {
			t.Errorf("Fuzziness = %+v, want %+v", s.Fuzziness, want)
		}
	}
}

func TestBuildComposedSharesPolicy(t *testing.T) {
	e := NewEngine(nil, Policy{PrefixLength: 1, MaxExpansions: 10, Transpositions: true}, 5)
	specs, err := e.Build(mode.Composed, "Dupont")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("len = %d, want 2", len(specs))
	}
	if specs[0].Kind != KindWildcard || specs[1].Kind != KindFuzzy {
		t.Fatalf("kinds = %s, %s; want wildcard, fuzzy", specs[0].Kind, specs[1].Kind)
	}
	if specs[0].Fuzziness != specs[1].Fuzziness {
		t.Errorf("fuzziness differs: %+v vs %+v", specs[0].Fuzziness, specs[1].Fuzziness)
	}
	if !reflect.DeepEqual(specs[0].Fields, specs[1].Fields) {
		t.Error("fields differ between branches")
	}
	if specs[0].Term != "Dupont" || specs[1].Term != "Dupont" {
		t.Error("term differs between branches")
	}
	if specs[0].Pattern() != "*Dupont*" {
		t.Errorf("Pattern() = %q", specs[0].Pattern())
	}
}

func TestBuildUnknownMode(t *testing.T) {
	e := NewEngine(nil, DefaultPolicy(), 0)
	_, err := e.Build(mode.Mode("bogus"), "x")
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestFieldsIsCopy(t *testing.T) {
	e := NewEngine(nil, DefaultPolicy(), 0)
	f := e.Fields()
	f[0].Weight = 9
	if e.Fields()[0].Weight != 1.0 {
		t.Error("Fields() exposed internal slice")
	}
}
