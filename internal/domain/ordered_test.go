package domain

import (
	"encoding/json"
	"testing"
)

func TestOrderedMap_JSONKeepsOrder(t *testing.T) {
	in := `{"zeta":1,"alpha":"two","mid":null,"flag":true}`

	var n Normalized
	if err := json.Unmarshal([]byte(in), &n); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := []string{"zeta", "alpha", "mid", "flag"}
	got := n.Keys()
	if len(got) != len(want) {
		t.Fatalf("keys = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("keys = %v, want %v", got, want)
		}
	}
	if v, ok := n.Get("mid"); !ok || v != nil {
		t.Errorf("mid = %v, %v; want nil, true", v, ok)
	}

	out, err := json.Marshal(n)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != in {
		t.Errorf("round trip = %s, want %s", out, in)
	}
}

func TestOrderedMap_SetDeleteClone(t *testing.T) {
	m := MappingOf("a", "1", "b", "2", "c", "3")
	m.Set("a", "overwritten")
	m.Delete("b")
	m.Delete("missing")

	if got := m.Keys(); len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Fatalf("keys = %v, want [a c]", got)
	}
	if v, _ := m.Get("a"); v != "overwritten" {
		t.Errorf("a = %q, want overwritten", v)
	}

	c := m.Clone()
	c.Set("d", "4")
	if m.Has("d") {
		t.Error("clone must not share storage with the original")
	}
}

func TestOrderedMap_UnmarshalRejectsNonObjects(t *testing.T) {
	var m FieldMapping
	if err := json.Unmarshal([]byte(`["a"]`), &m); err == nil {
		t.Error("expected an error for a JSON array")
	}
	if err := json.Unmarshal([]byte(`null`), &m); err != nil || m.Len() != 0 {
		t.Errorf("null should give an empty map, got %v, %v", m.Keys(), err)
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"x", "x"},
		{49.99, "49.99"},
		{5.0, "5"},
		{42, "42"},
		{true, "true"},
	}
	for _, tt := range tests {
		if got := FormatValue(tt.in); got != tt.want {
			t.Errorf("FormatValue(%#v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
