package value

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParsePreservesKeyOrder(t *testing.T) {
	v, err := ParseString(`{"zeta":1,"alpha":{"b":true,"a":null},"mid":["x",2.5]}`)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	m, ok := v.AsMap()
	if !ok {
		t.Fatalf("expected map, got %s", v.Kind())
	}
	keys := m.Keys()
	want := []string{"zeta", "alpha", "mid"}
	if len(keys) != len(want) {
		t.Fatalf("expected %d keys, got %v", len(want), keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("key %d: expected %q, got %q", i, want[i], keys[i])
		}
	}
	out, err := v.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	if string(out) != `{"zeta":1,"alpha":{"b":true,"a":null},"mid":["x",2.5]}` {
		t.Fatalf("unexpected encoding: %s", out)
	}
}

func TestParseRejectsTruncatedInput(t *testing.T) {
	for _, in := range []string{`{"city":`, `[1,2`, ``, `   `, `{"a" 1}`} {
		if _, err := ParseString(in); !errors.Is(err, ErrInvalidJSON) {
			t.Fatalf("expected ErrInvalidJSON for %q, got %v", in, err)
		}
	}
}

func TestParseUnescapesStrings(t *testing.T) {
	v, err := ParseString(`{"city":"São \"Paulo\""}`)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	m, _ := v.AsMap()
	city, _ := m.Get("city")
	if s, _ := city.AsString(); s != `São "Paulo"` {
		t.Fatalf("unexpected city: %q", s)
	}
}

func TestCloneIsDeep(t *testing.T) {
	orig := Object(MapOf("filter", map[string]any{"age": 3}))
	clone := orig.Clone()
	cm, _ := clone.AsMap()
	inner, _ := cm.Get("filter")
	im, _ := inner.AsMap()
	im.Set("age", Int(9))

	om, _ := orig.AsMap()
	oinner, _ := om.Get("filter")
	oim, _ := oinner.AsMap()
	age, _ := oim.Get("age")
	if n, _ := age.NumberText(); n != "3" {
		t.Fatalf("mutating clone changed original: %s", n)
	}
}

func TestFromAnyRoundTrip(t *testing.T) {
	in := map[string]any{"b": []any{"x", true, nil}, "a": json.Number("42")}
	v := FromAny(in)
	m, _ := v.AsMap()
	if keys := m.Keys(); keys[0] != "a" || keys[1] != "b" {
		t.Fatalf("expected sorted keys, got %v", keys)
	}
	back, ok := v.Any().(map[string]any)
	if !ok {
		t.Fatalf("expected map[string]any, got %T", v.Any())
	}
	if back["a"] != json.Number("42") {
		t.Fatalf("unexpected number: %#v", back["a"])
	}
	if !v.Equal(FromAny(back)) {
		t.Fatalf("expected round trip to be equal")
	}
}

func TestMapDeleteAndSetDefault(t *testing.T) {
	m := NewMap()
	m.Set("a", Int(1))
	m.Set("b", Int(2))
	m.Set("c", Int(3))
	m.Delete("b")
	if keys := m.Keys(); len(keys) != 2 || keys[0] != "a" || keys[1] != "c" {
		t.Fatalf("unexpected keys after delete: %v", keys)
	}
	if m.SetDefault("a", Int(10)) {
		t.Fatalf("expected SetDefault to keep existing value")
	}
	if !m.SetDefault("d", Int(4)) {
		t.Fatalf("expected SetDefault to write missing key")
	}
	var nilMap *Map
	if nilMap.Len() != 0 || nilMap.Has("x") {
		t.Fatalf("nil map should read as empty")
	}
}

func TestIsEmpty(t *testing.T) {
	cases := []struct {
		v    Value
		want bool
	}{
		{Null(), true},
		{String(""), true},
		{String("x"), false},
		{List(), true},
		{Object(nil), true},
		{Bool(false), false},
		{Int(0), false},
	}
	for i, tc := range cases {
		if got := tc.v.IsEmpty(); got != tc.want {
			t.Fatalf("case %d (%s): expected %v, got %v", i, tc.v.Kind(), tc.want, got)
		}
	}
}
