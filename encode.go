package lzc

import (
	"fmt"
	"log"
	"reflect"

	"github.com/mikoim/lzc/nvpair"
)

const debugCodec = false

func debugf(msg string, args ...any) {
	if !debugCodec {
		return
	}
	log.Printf(msg, args...)
}

// intPropTags lists the well-known integer-valued keys that the
// management interface requires with an explicit 32-bit tag. Natural
// integers under any other key are encoded as uint64.
var intPropTags = map[string]nvpair.Type{
	"rewind-request": nvpair.TypeUint32,
	"type":           nvpair.TypeUint32,
	"N_MORE_ERRORS":  nvpair.TypeInt32,
	"pool_context":   nvpair.TypeInt32,
}

// Encode converts props into a freshly allocated container. The
// caller owns the returned container and must free it. On failure no
// handle allocated during the conversion remains outstanding.
func Encode(rt nvpair.Runtime, props *Map) (*nvpair.List, error) {
	if rt == nil {
		rt = nvpair.Std
	}
	l, err := rt.Alloc()
	if err != nil {
		return nil, fmt.Errorf("allocating container: %w", err)
	}
	if err := encodeMap(rt, props, l); err != nil {
		l.Free()
		return nil, err
	}
	return l, nil
}

func encodeMap(rt nvpair.Runtime, props *Map, l *nvpair.List) error {
	if props == nil {
		return nil
	}
	for k, v := range props.All() {
		if err := addValue(rt, l, k, v); err != nil {
			return err
		}
	}
	return nil
}

func addValue(rt nvpair.Runtime, l *nvpair.List, key string, v any) error {
	debugf("add %q (%T)", key, v)
	var err error
	switch v := v.(type) {
	case nil:
		err = l.AddBoolean(key)
	case bool:
		err = l.AddBooleanValue(key, v)
	case string:
		err = l.AddString(key, v)
	case Byte:
		err = l.AddByte(key, byte(v))
	case int8:
		err = l.AddInt8(key, v)
	case uint8:
		err = l.AddUint8(key, v)
	case int16:
		err = l.AddInt16(key, v)
	case uint16:
		err = l.AddUint16(key, v)
	case int32:
		err = l.AddInt32(key, v)
	case uint32:
		err = l.AddUint32(key, v)
	case int64:
		err = l.AddInt64(key, v)
	case uint64:
		err = l.AddUint64(key, v)
	case int:
		switch intPropTags[key] {
		case nvpair.TypeInt32:
			err = l.AddInt32(key, int32(v))
		case nvpair.TypeUint32:
			err = l.AddUint32(key, uint32(v))
		default:
			err = l.AddUint64(key, uint64(v))
		}
	case *Map:
		sub, serr := Encode(rt, v)
		if serr != nil {
			return serr
		}
		err = l.AddList(key, sub)
		sub.Free()
	case []any:
		return addAnyArray(rt, l, key, v)
	case []bool:
		err = l.AddBooleanArray(key, v)
	case []string:
		err = l.AddStringArray(key, v)
	case []Byte:
		bs := make([]byte, len(v))
		for i, b := range v {
			bs[i] = byte(b)
		}
		err = l.AddByteArray(key, bs)
	case []int8:
		err = l.AddInt8Array(key, v)
	case []uint8:
		err = l.AddUint8Array(key, v)
	case []int16:
		err = l.AddInt16Array(key, v)
	case []uint16:
		err = l.AddUint16Array(key, v)
	case []int32:
		err = l.AddInt32Array(key, v)
	case []uint32:
		err = l.AddUint32Array(key, v)
	case []int64:
		err = l.AddInt64Array(key, v)
	case []uint64:
		err = l.AddUint64Array(key, v)
	case []int:
		us := make([]uint64, len(v))
		for i, n := range v {
			us[i] = uint64(n)
		}
		switch intPropTags[key] {
		case nvpair.TypeInt32:
			is := make([]int32, len(v))
			for i, n := range v {
				is[i] = int32(n)
			}
			err = l.AddInt32Array(key, is)
		case nvpair.TypeUint32:
			u32s := make([]uint32, len(v))
			for i, n := range v {
				u32s[i] = uint32(n)
			}
			err = l.AddUint32Array(key, u32s)
		default:
			err = l.AddUint64Array(key, us)
		}
	case []*Map:
		return addMapArray(rt, l, key, v)
	default:
		return &ValueError{Key: key, Reason: fmt.Errorf("unsupported value type %T", v)}
	}
	if err != nil {
		// A failing accessor is a resource problem, not a shape
		// problem with the value.
		return &ValueError{Key: key, Reason: fmt.Errorf("add failed: %w", err)}
	}
	return nil
}

// addAnyArray checks that every element of v shares the first
// element's type, then re-dispatches through the matching typed
// slice. The homogeneity check runs before any accessor call.
func addAnyArray(rt nvpair.Runtime, l *nvpair.List, key string, v []any) error {
	if len(v) == 0 {
		return &ValueError{Key: key, Reason: fmt.Errorf("cannot infer element type of empty array")}
	}
	want := reflect.TypeOf(v[0])
	if want == nil {
		return &ValueError{Key: key, Reason: fmt.Errorf("unsupported array element type <nil>")}
	}
	for i := 1; i < len(v); i++ {
		if got := reflect.TypeOf(v[i]); got != want {
			return &ValueError{
				Key:    key,
				Reason: fmt.Errorf("array element %d has type %v, element 0 has type %v", i, got, want),
			}
		}
	}
	typed := reflect.MakeSlice(reflect.SliceOf(want), len(v), len(v))
	for i, e := range v {
		typed.Index(i).Set(reflect.ValueOf(e))
	}
	return addValue(rt, l, key, typed.Interface())
}

// addMapArray encodes an array of nested maps. All element
// containers are allocated before any is populated, so that a
// failure part way through allocation can release every handle
// acquired so far.
func addMapArray(rt nvpair.Runtime, l *nvpair.List, key string, maps []*Map) error {
	subs := make([]*nvpair.List, 0, len(maps))
	freeAll := func() {
		for _, s := range subs {
			s.Free()
		}
	}
	for range maps {
		sub, err := rt.Alloc()
		if err != nil {
			freeAll()
			return &ValueError{Key: key, Reason: fmt.Errorf("allocating element container: %w", err)}
		}
		subs = append(subs, sub)
	}
	for i, m := range maps {
		if err := encodeMap(rt, m, subs[i]); err != nil {
			freeAll()
			return err
		}
	}
	err := l.AddListArray(key, subs)
	freeAll()
	if err != nil {
		return &ValueError{Key: key, Reason: fmt.Errorf("add failed: %w", err)}
	}
	return nil
}
