package lzc_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mikoim/lzc"
	"github.com/mikoim/lzc/lzctest"
	"github.com/mikoim/lzc/nvpair"
)

func mapOf(t *testing.T, kvs ...any) *lzc.Map {
	t.Helper()
	if len(kvs)%2 != 0 {
		t.Fatal("mapOf: odd number of arguments")
	}
	m := lzc.NewMap()
	for i := 0; i < len(kvs); i += 2 {
		m.Set(kvs[i].(string), kvs[i+1])
	}
	return m
}

func roundTrip(t *testing.T, props *lzc.Map) *lzc.Map {
	t.Helper()
	l, err := lzc.Encode(nil, props)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	defer l.Free()
	got := lzc.NewMap()
	if err := lzc.Decode(l, got); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return got
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		desc  string
		props *lzc.Map
	}{
		{"empty", mapOf(t)},
		{"scalars", mapOf(t,
			"flag", nil,
			"on", true,
			"off", false,
			"name", "tank/fs",
			"empty", "",
			"b", lzc.Byte(0x7f),
			"i8", int8(-8),
			"u8", uint8(8),
			"i16", int16(-16),
			"u16", uint16(16),
			"i32", int32(-32),
			"u32", uint32(32),
			"i64", int64(-64),
			"u64", uint64(64),
		)},
		{"arrays", mapOf(t,
			"bools", []bool{true, false, true},
			"strings", []string{"a", "", "c"},
			"bytes", []lzc.Byte{1, 2, 3},
			"u8s", []uint8{4, 5},
			"i64s", []int64{-1, 0, 1},
			"u64s", []uint64{1 << 63},
		)},
		{"nested", mapOf(t,
			"outer", mapOf(t,
				"inner", mapOf(t, "deep", uint64(1)),
				"s", "x",
			),
		)},
		{"map array", mapOf(t,
			"elems", []*lzc.Map{
				mapOf(t, "a", uint64(1)),
				mapOf(t),
				mapOf(t, "b", "two"),
			},
		)},
	}
	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			got := roundTrip(t, test.props)
			if diff := cmp.Diff(got, test.props); diff != "" {
				t.Errorf("round trip changed contents (-got+want):\n%s", diff)
			}
		})
	}
}

func TestRoundTripPreservesOrder(t *testing.T) {
	props := mapOf(t, "zebra", uint64(1), "apple", uint64(2), "mango", uint64(3))
	got := roundTrip(t, props)
	want := []string{"zebra", "apple", "mango"}
	if diff := cmp.Diff(got.Keys(), want); diff != "" {
		t.Errorf("key order changed (-got+want):\n%s", diff)
	}
}

func TestNaturalIntEncoding(t *testing.T) {
	// Untagged natural integers widen to unsigned 64-bit; the
	// well-known management keys keep their narrow tags.
	props := mapOf(t,
		"volsize", 1024,
		"rewind-request", 2,
		"type", 3,
		"N_MORE_ERRORS", 5,
		"pool_context", -1,
	)
	l, err := lzc.Encode(nil, props)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	defer l.Free()

	wantTags := map[string]nvpair.Type{
		"volsize":        nvpair.TypeUint64,
		"rewind-request": nvpair.TypeUint32,
		"type":           nvpair.TypeUint32,
		"N_MORE_ERRORS":  nvpair.TypeInt32,
		"pool_context":   nvpair.TypeInt32,
	}
	for name, want := range wantTags {
		p, ok := l.Lookup(name)
		if !ok {
			t.Errorf("entry %q missing after encode", name)
			continue
		}
		if p.Type() != want {
			t.Errorf("entry %q has tag %v, want %v", name, p.Type(), want)
		}
	}

	got := roundTrip(t, props)
	want := mapOf(t,
		"volsize", uint64(1024),
		"rewind-request", uint32(2),
		"type", uint32(3),
		"N_MORE_ERRORS", int32(5),
		"pool_context", int32(-1),
	)
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("round trip (-got+want):\n%s", diff)
	}
}

func TestByteDistinctFromUint8(t *testing.T) {
	props := mapOf(t, "byte", lzc.Byte(1), "u8", uint8(1))
	l, err := lzc.Encode(nil, props)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	defer l.Free()
	if p, _ := l.Lookup("byte"); p.Type() != nvpair.TypeByte {
		t.Errorf("byte entry has tag %v, want %v", p.Type(), nvpair.TypeByte)
	}
	if p, _ := l.Lookup("u8"); p.Type() != nvpair.TypeUint8 {
		t.Errorf("u8 entry has tag %v, want %v", p.Type(), nvpair.TypeUint8)
	}
}

func TestUntypedArrays(t *testing.T) {
	t.Run("homogeneous", func(t *testing.T) {
		got := roundTrip(t, mapOf(t, "xs", []any{uint64(1), uint64(2)}))
		want := mapOf(t, "xs", []uint64{1, 2})
		if diff := cmp.Diff(got, want); diff != "" {
			t.Errorf("round trip (-got+want):\n%s", diff)
		}
	})

	t.Run("mixed", func(t *testing.T) {
		_, err := lzc.Encode(nil, mapOf(t, "xs", []any{uint64(1), "two"}))
		var verr *lzc.ValueError
		if !errors.As(err, &verr) {
			t.Fatalf("Encode returned %v, want *ValueError", err)
		}
		if verr.Key != "xs" {
			t.Errorf("ValueError.Key = %q, want %q", verr.Key, "xs")
		}
	})

	t.Run("empty", func(t *testing.T) {
		_, err := lzc.Encode(nil, mapOf(t, "xs", []any{}))
		var verr *lzc.ValueError
		if !errors.As(err, &verr) {
			t.Fatalf("Encode returned %v, want *ValueError", err)
		}
	})
}

func TestEncodeUnsupportedValue(t *testing.T) {
	_, err := lzc.Encode(nil, mapOf(t, "f", 3.14))
	var verr *lzc.ValueError
	if !errors.As(err, &verr) {
		t.Fatalf("Encode returned %v, want *ValueError", err)
	}
}

func TestMixedArrayRejectedBeforeAllocation(t *testing.T) {
	// The homogeneity check runs before any container work, so a
	// bad array costs no allocations beyond the root.
	rt := &lzctest.CountingRuntime{}
	_, err := lzc.Encode(rt, mapOf(t, "xs", []any{uint64(1), int64(2)}))
	if err == nil {
		t.Fatal("Encode succeeded, want error")
	}
	if rt.Allocs() != 1 {
		t.Errorf("Allocs = %d, want 1 (root only)", rt.Allocs())
	}
	if rt.Live() != 0 {
		t.Errorf("Live = %d, want 0", rt.Live())
	}
}

func TestMapArrayAllocationSafety(t *testing.T) {
	// Root plus two of the four element containers succeed, then
	// allocation fails. Nothing may remain outstanding.
	rt := &lzctest.CountingRuntime{FailAfter: 3}
	props := mapOf(t, "elems", []*lzc.Map{
		mapOf(t, "a", uint64(1)),
		mapOf(t, "b", uint64(2)),
		mapOf(t, "c", uint64(3)),
		mapOf(t, "d", uint64(4)),
	})
	_, err := lzc.Encode(rt, props)
	if err == nil {
		t.Fatal("Encode succeeded, want allocation failure")
	}
	if !errors.Is(err, lzctest.ErrAllocLimit) {
		t.Errorf("Encode error = %v, want wrapped ErrAllocLimit", err)
	}
	if rt.Live() != 0 {
		t.Errorf("Live = %d, want 0 after failed encode", rt.Live())
	}
	if rt.ExtraFrees() != 0 {
		t.Errorf("ExtraFrees = %d, want 0", rt.ExtraFrees())
	}
}

func TestNestedEncodeFailureFreesAll(t *testing.T) {
	rt := &lzctest.CountingRuntime{}
	props := mapOf(t,
		"ok", mapOf(t, "x", uint64(1)),
		"bad", mapOf(t, "y", 3.14),
	)
	_, err := lzc.Encode(rt, props)
	if err == nil {
		t.Fatal("Encode succeeded, want error")
	}
	if rt.Live() != 0 {
		t.Errorf("Live = %d, want 0 after failed encode", rt.Live())
	}
}

func TestDecodeClearsTarget(t *testing.T) {
	l, err := lzc.Encode(nil, mapOf(t, "fresh", uint64(1)))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	defer l.Free()
	got := mapOf(t, "stale", "value")
	if err := lzc.Decode(l, got); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Has("stale") {
		t.Error("stale key survived decode")
	}
	if diff := cmp.Diff(got, mapOf(t, "fresh", uint64(1))); diff != "" {
		t.Errorf("decoded contents (-got+want):\n%s", diff)
	}
}
