package lzc

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMapOrder(t *testing.T) {
	m := NewMap()
	m.Set("c", 1)
	m.Set("a", 2)
	m.Set("b", 3)

	if diff := cmp.Diff(m.Keys(), []string{"c", "a", "b"}); diff != "" {
		t.Errorf("Keys (-got+want):\n%s", diff)
	}

	// Re-setting keeps the key's position, unlike the container's
	// replace-at-tail rule.
	m.Set("a", 9)
	if diff := cmp.Diff(m.Keys(), []string{"c", "a", "b"}); diff != "" {
		t.Errorf("Keys after re-set (-got+want):\n%s", diff)
	}
	if v, _ := m.Get("a"); v != 9 {
		t.Errorf("Get(a) = %v, want 9", v)
	}

	m.Delete("c")
	if diff := cmp.Diff(m.Keys(), []string{"a", "b"}); diff != "" {
		t.Errorf("Keys after delete (-got+want):\n%s", diff)
	}
	m.Delete("missing") // no-op

	m.Clear()
	if m.Len() != 0 {
		t.Errorf("Len after Clear = %d, want 0", m.Len())
	}
}

func TestMapEqual(t *testing.T) {
	build := func() *Map {
		m := NewMap()
		m.Set("s", "v")
		sub := NewMap()
		sub.Set("n", uint64(1))
		m.Set("sub", sub)
		m.Set("subs", []*Map{sub})
		m.Set("xs", []any{uint64(1), uint64(2)})
		return m
	}
	a, b := build(), build()
	if !a.Equal(b) {
		t.Error("identical maps compare unequal")
	}

	b.Set("s", "other")
	if a.Equal(b) {
		t.Error("maps with different values compare equal")
	}

	// Same contents, different insertion order.
	c := NewMap()
	c.Set("b", 1)
	c.Set("a", 2)
	d := NewMap()
	d.Set("a", 2)
	d.Set("b", 1)
	if c.Equal(d) {
		t.Error("maps with different key order compare equal")
	}
}
