package nvpair

import (
	"encoding/binary"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// buildList populates l with one entry of every packable shape.
func buildList(t *testing.T, l *List) {
	t.Helper()
	sub := mustList(t)
	defer sub.Free()
	if err := sub.AddUint64("inner", 7); err != nil {
		t.Fatalf("AddUint64: %v", err)
	}
	sub2 := mustList(t)
	defer sub2.Free()

	steps := []error{
		l.AddBoolean("flag"),
		l.AddBooleanValue("bv", true),
		l.AddByte("byte", 0xab),
		l.AddInt8("i8", -8),
		l.AddUint8("u8", 250),
		l.AddInt16("i16", -1234),
		l.AddUint16("u16", 65000),
		l.AddInt32("i32", -1),
		l.AddUint32("u32", 1 << 31),
		l.AddInt64("i64", -1 << 40),
		l.AddUint64("u64", 1 << 63),
		l.AddHrtime("ht", 1234567890),
		l.AddString("s", "hello"),
		l.AddString("empty", ""),
		l.AddList("sub", sub),
		l.AddBooleanArray("bools", []bool{true, false}),
		l.AddByteArray("bytes", []byte{1, 2, 3}),
		l.AddInt8Array("i8s", []int8{-1, 1}),
		l.AddUint8Array("u8s", []uint8{1, 2}),
		l.AddInt16Array("i16s", []int16{-3, 3}),
		l.AddUint16Array("u16s", []uint16{4, 5}),
		l.AddInt32Array("i32s", []int32{-6}),
		l.AddUint32Array("u32s", []uint32{7}),
		l.AddInt64Array("i64s", []int64{-8, 8}),
		l.AddUint64Array("u64s", []uint64{9}),
		l.AddStringArray("strs", []string{"a", "", "ccc"}),
		l.AddListArray("subs", []*List{sub, sub2}),
	}
	for i, err := range steps {
		if err != nil {
			t.Fatalf("building entry %d: %v", i, err)
		}
	}
}

func pairShapes(l *List) map[string]any {
	out := make(map[string]any)
	for p := range l.Pairs() {
		out[p.name] = p.val
	}
	return out
}

func TestPackUnpackRoundTrip(t *testing.T) {
	l := mustList(t)
	defer l.Free()
	buildList(t, l)

	bs, err := Pack(l)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	got, err := Unpack(bs, Std)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	defer got.Free()

	if got.Len() != l.Len() {
		t.Fatalf("Len = %d, want %d", got.Len(), l.Len())
	}
	var wantOrder, gotOrder []string
	for p := range l.Pairs() {
		wantOrder = append(wantOrder, p.name)
	}
	for p := range got.Pairs() {
		gotOrder = append(gotOrder, p.name)
	}
	if diff := cmp.Diff(gotOrder, wantOrder); diff != "" {
		t.Errorf("entry order (-got+want):\n%s", diff)
	}
	for p := range l.Pairs() {
		gp, ok := got.Lookup(p.name)
		if !ok {
			t.Errorf("entry %q missing after round trip", p.name)
			continue
		}
		if gp.typ != p.typ {
			t.Errorf("entry %q has type %v, want %v", p.name, gp.typ, p.typ)
		}
	}

	// Nested lists survive with contents intact.
	gp, _ := got.Lookup("sub")
	nested, err := gp.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	np, ok := nested.Lookup("inner")
	if !ok {
		t.Fatal("nested entry missing")
	}
	if v, _ := np.Uint64(); v != 7 {
		t.Errorf("nested inner = %d, want 7", v)
	}
}

func TestPackHeader(t *testing.T) {
	l := mustList(t)
	defer l.Free()
	bs, err := Pack(l)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	// Header, version word, flags word, list terminator.
	want := []byte{
		packEncodingXDR, packEndianBig, 0, 0,
		0, 0, 0, 0, // version
		0, 0, 0, 1, // NV_UNIQUE_NAME
		0, 0, 0, 0, 0, 0, 0, 0, // terminator
	}
	if diff := cmp.Diff(bs, want); diff != "" {
		t.Errorf("empty list encoding (-got+want):\n%s", diff)
	}
}

func TestPackPairFraming(t *testing.T) {
	l := mustList(t)
	defer l.Free()
	if err := l.AddUint64("k", 1); err != nil {
		t.Fatalf("AddUint64: %v", err)
	}
	bs, err := Pack(l)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	// The first pair's encoded size spans the size words, the name,
	// the type word, the element count and the payload.
	encSize := int32(binary.BigEndian.Uint32(bs[12:16]))
	// Size words 8; name 4 (length) + 1 + 3 (pad); type word 4;
	// element count 4; payload 8.
	const wantSize = 8 + 8 + 4 + 4 + 8
	if encSize != wantSize {
		t.Errorf("encoded size = %d, want %d", encSize, wantSize)
	}
	decSize := int32(binary.BigEndian.Uint32(bs[16:20]))
	if decSize <= 0 || decSize%8 != 0 {
		t.Errorf("decoded size = %d, want positive multiple of 8", decSize)
	}
}

func TestPackFreedList(t *testing.T) {
	l := mustList(t)
	l.Free()
	if _, err := Pack(l); err == nil {
		t.Error("Pack of freed list succeeded")
	}
}

func TestUnpackBadInput(t *testing.T) {
	l := mustList(t)
	defer l.Free()
	buildList(t, l)
	bs, err := Pack(l)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}

	t.Run("empty", func(t *testing.T) {
		if _, err := Unpack(nil, Std); err == nil {
			t.Error("Unpack(nil) succeeded")
		}
	})
	t.Run("bad encoding", func(t *testing.T) {
		in := append([]byte{}, bs...)
		in[0] = 9
		if _, err := Unpack(in, Std); err == nil {
			t.Error("Unpack with unknown encoding succeeded")
		}
	})
	t.Run("bad version", func(t *testing.T) {
		in := append([]byte{}, bs...)
		binary.BigEndian.PutUint32(in[4:8], 99)
		if _, err := Unpack(in, Std); err == nil {
			t.Error("Unpack with unknown version succeeded")
		}
	})
	t.Run("truncated", func(t *testing.T) {
		for i := 4; i < len(bs); i += 7 {
			if _, err := Unpack(bs[:i], Std); err == nil {
				t.Errorf("Unpack of %d-byte prefix succeeded", i)
			}
		}
	})
}

func TestUnpackLeavesNoHandlesOnFailure(t *testing.T) {
	l := mustList(t)
	defer l.Free()
	buildList(t, l)
	bs, err := Pack(l)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}

	rt := &countRuntime{}
	for i := 4; i < len(bs); i += 11 {
		if _, err := Unpack(bs[:i], rt); err == nil {
			t.Fatalf("Unpack of %d-byte prefix succeeded", i)
		}
		if rt.live != 0 {
			t.Fatalf("after failed unpack of %d-byte prefix, %d handles live", i, rt.live)
		}
	}
}

// countRuntime tracks outstanding handles without the full test
// double, avoiding a dependency cycle with the lzctest package.
type countRuntime struct {
	live int
}

func (r *countRuntime) Alloc() (*List, error) {
	r.live++
	return NewList(r), nil
}

func (r *countRuntime) Free(*List) { r.live-- }

func TestUnpackOversizedArrayCount(t *testing.T) {
	l := mustList(t)
	defer l.Free()
	if err := l.AddUint64Array("k", []uint64{1, 2}); err != nil {
		t.Fatalf("AddUint64Array: %v", err)
	}
	bs, err := Pack(l)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	// Claim far more elements than the stream can carry. The parse
	// must fail on the count itself, before sizing any allocation
	// from it.
	binary.BigEndian.PutUint32(bs[32:36], 1<<28)
	if _, err := Unpack(bs, Std); err == nil {
		t.Fatal("Unpack with oversized element count succeeded")
	} else if !strings.Contains(err.Error(), "claims") {
		t.Errorf("error %q does not reject the element count", err)
	}
}

func TestUnpackDeepNesting(t *testing.T) {
	// A stream of lists nested inside each other, deeper than any
	// legitimate encoding.
	buf := []byte{packEncodingXDR, packEndianBig, 0, 0}
	w32 := func(v uint32) { buf = binary.BigEndian.AppendUint32(buf, v) }
	for i := 0; i < 2*maxNesting; i++ {
		w32(0)               // version
		w32(1)               // nvflag
		w32(64)              // encoded size
		w32(64)              // decoded size
		w32(1)               // name length
		buf = append(buf, 'n', 0, 0, 0)
		w32(uint32(TypeList))
		w32(1)
	}

	rt := &countRuntime{}
	_, err := Unpack(buf, rt)
	if err == nil {
		t.Fatal("Unpack of deeply nested stream succeeded")
	}
	if !strings.Contains(err.Error(), "nesting") {
		t.Errorf("error %q does not reject the nesting depth", err)
	}
	if rt.live != 0 {
		t.Errorf("%d handles live after failed unpack", rt.live)
	}
}
