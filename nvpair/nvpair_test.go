package nvpair

import (
	"errors"
	"testing"
)

func mustList(t *testing.T) *List {
	t.Helper()
	l, err := Std.Alloc()
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	return l
}

func TestUniqueNameReplace(t *testing.T) {
	l := mustList(t)
	defer l.Free()

	if err := l.AddUint64("a", 1); err != nil {
		t.Fatalf("AddUint64: %v", err)
	}
	if err := l.AddString("b", "x"); err != nil {
		t.Fatalf("AddString: %v", err)
	}
	// Re-adding "a" replaces the old entry, with a fresh type, and
	// moves it to the tail.
	if err := l.AddString("a", "two"); err != nil {
		t.Fatalf("AddString: %v", err)
	}

	if l.Len() != 2 {
		t.Fatalf("Len = %d, want 2", l.Len())
	}
	var names []string
	for p := range l.Pairs() {
		names = append(names, p.Name())
	}
	if len(names) != 2 || names[0] != "b" || names[1] != "a" {
		t.Errorf("entry order = %v, want [b a]", names)
	}
	p, ok := l.Lookup("a")
	if !ok {
		t.Fatal("entry a missing")
	}
	if p.Type() != TypeString {
		t.Errorf("replaced entry has type %v, want %v", p.Type(), TypeString)
	}
	if s, err := p.String(); err != nil || s != "two" {
		t.Errorf("String() = (%q, %v), want two", s, err)
	}
}

func TestTypedAccessorMismatch(t *testing.T) {
	l := mustList(t)
	defer l.Free()
	if err := l.AddUint64("n", 42); err != nil {
		t.Fatalf("AddUint64: %v", err)
	}
	p, _ := l.Lookup("n")
	if _, err := p.String(); err == nil {
		t.Error("String() on a uint64 entry succeeded")
	}
	if v, err := p.Uint64(); err != nil || v != 42 {
		t.Errorf("Uint64() = (%d, %v), want 42", v, err)
	}
}

func TestUseAfterFree(t *testing.T) {
	l := mustList(t)
	l.Free()
	if err := l.AddUint64("n", 1); !errors.Is(err, ErrFreed) {
		t.Errorf("add after free = %v, want ErrFreed", err)
	}
	l.Free() // second free is a no-op
}

func TestAddListCopies(t *testing.T) {
	l := mustList(t)
	defer l.Free()

	sub := mustList(t)
	if err := sub.AddUint64("n", 1); err != nil {
		t.Fatalf("AddUint64: %v", err)
	}
	if err := l.AddList("sub", sub); err != nil {
		t.Fatalf("AddList: %v", err)
	}
	// Mutating the source after the add must not be visible in the
	// stored copy.
	if err := sub.AddUint64("n", 99); err != nil {
		t.Fatalf("AddUint64: %v", err)
	}
	sub.Free()

	p, _ := l.Lookup("sub")
	stored, err := p.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	sp, ok := stored.Lookup("n")
	if !ok {
		t.Fatal("nested entry n missing")
	}
	if v, _ := sp.Uint64(); v != 1 {
		t.Errorf("nested n = %d, want 1 (mutation leaked through)", v)
	}
}

func TestDup(t *testing.T) {
	l := mustList(t)
	defer l.Free()
	if err := l.AddString("s", "v"); err != nil {
		t.Fatalf("AddString: %v", err)
	}
	sub := mustList(t)
	if err := sub.AddUint64("n", 7); err != nil {
		t.Fatalf("AddUint64: %v", err)
	}
	if err := l.AddList("sub", sub); err != nil {
		t.Fatalf("AddList: %v", err)
	}
	sub.Free()

	cp, err := l.Dup(Std)
	if err != nil {
		t.Fatalf("Dup: %v", err)
	}
	defer cp.Free()

	// The copy is independent of the original.
	l.Free()
	if cp.Len() != 2 {
		t.Fatalf("copy Len = %d, want 2", cp.Len())
	}
	p, ok := cp.Lookup("sub")
	if !ok {
		t.Fatal("copy missing sub")
	}
	nested, err := p.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	np, _ := nested.Lookup("n")
	if v, err := np.Uint64(); err != nil || v != 7 {
		t.Errorf("copy nested n = (%d, %v), want 7", v, err)
	}
}

func TestSlot(t *testing.T) {
	var s Slot
	if l := s.Take(); l != nil {
		t.Errorf("Take on empty slot = %v, want nil", l)
	}

	a := mustList(t)
	s.Set(a)
	b := mustList(t)
	s.Set(b) // replaces and frees a

	if err := a.AddUint64("n", 1); !errors.Is(err, ErrFreed) {
		t.Errorf("replaced slot contents still alive: %v", err)
	}
	got := s.Take()
	if got != b {
		t.Errorf("Take = %v, want the second list", got)
	}
	if l := s.Take(); l != nil {
		t.Error("second Take returned a list")
	}
	got.Free()
}
