package lzc

import (
	"fmt"

	"github.com/mikoim/lzc/nvpair"
)

// Decode reads the contents of l into props, in wire order. props is
// cleared first, so repeated decodes into the same map do not
// accumulate stale keys.
func Decode(l *nvpair.List, props *Map) error {
	props.Clear()
	for p := range l.Pairs() {
		v, err := pairValue(p)
		if err != nil {
			return fmt.Errorf("decoding entry %q: %w", p.Name(), err)
		}
		props.Set(p.Name(), v)
	}
	return nil
}

func pairValue(p *nvpair.Pair) (any, error) {
	debugf("decode %q (%s)", p.Name(), p.Type())
	switch p.Type() {
	case nvpair.TypeBoolean:
		return nil, nil
	case nvpair.TypeBooleanValue:
		return p.BooleanValue()
	case nvpair.TypeByte:
		b, err := p.Byte()
		return Byte(b), err
	case nvpair.TypeInt8:
		return p.Int8()
	case nvpair.TypeUint8:
		return p.Uint8()
	case nvpair.TypeInt16:
		return p.Int16()
	case nvpair.TypeUint16:
		return p.Uint16()
	case nvpair.TypeInt32:
		return p.Int32()
	case nvpair.TypeUint32:
		return p.Uint32()
	case nvpair.TypeInt64:
		return p.Int64()
	case nvpair.TypeUint64:
		return p.Uint64()
	case nvpair.TypeString:
		return p.String()
	case nvpair.TypeList:
		sub, err := p.List()
		if err != nil {
			return nil, err
		}
		m := NewMap()
		if err := Decode(sub, m); err != nil {
			return nil, err
		}
		return m, nil
	case nvpair.TypeBooleanArray:
		return p.BooleanArray()
	case nvpair.TypeByteArray:
		bs, err := p.ByteArray()
		if err != nil {
			return nil, err
		}
		v := make([]Byte, len(bs))
		for i, b := range bs {
			v[i] = Byte(b)
		}
		return v, nil
	case nvpair.TypeInt8Array:
		return p.Int8Array()
	case nvpair.TypeUint8Array:
		return p.Uint8Array()
	case nvpair.TypeInt16Array:
		return p.Int16Array()
	case nvpair.TypeUint16Array:
		return p.Uint16Array()
	case nvpair.TypeInt32Array:
		return p.Int32Array()
	case nvpair.TypeUint32Array:
		return p.Uint32Array()
	case nvpair.TypeInt64Array:
		return p.Int64Array()
	case nvpair.TypeUint64Array:
		return p.Uint64Array()
	case nvpair.TypeStringArray:
		return p.StringArray()
	case nvpair.TypeListArray:
		subs, err := p.ListArray()
		if err != nil {
			return nil, err
		}
		v := make([]*Map, len(subs))
		for i, sub := range subs {
			m := NewMap()
			if err := Decode(sub, m); err != nil {
				return nil, err
			}
			v[i] = m
		}
		return v, nil
	}
	return nil, fmt.Errorf("unsupported entry type %s", p.Type())
}
