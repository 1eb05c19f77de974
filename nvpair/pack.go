package nvpair

import (
	"encoding/binary"
	"fmt"
)

// Stream framing constants, fixed by the kernel's XDR encoding.
const (
	packEncodingXDR = 1
	packEndianBig   = 0

	nvlistVersion  = 0
	flagUniqueName = 0x1
)

// An encoder builds the XDR byte stream. All multi-byte values are
// big-endian; variable-length payloads are padded to 4-byte
// alignment.
type encoder struct {
	out []byte
}

func (e *encoder) pad4() {
	for len(e.out)%4 != 0 {
		e.out = append(e.out, 0)
	}
}

func (e *encoder) uint32(v uint32) {
	e.out = binary.BigEndian.AppendUint32(e.out, v)
}

func (e *encoder) int32(v int32) { e.uint32(uint32(v)) }

func (e *encoder) uint64(v uint64) {
	e.out = binary.BigEndian.AppendUint64(e.out, v)
}

// str writes an XDR string: length word, bytes, padding.
func (e *encoder) str(s string) {
	e.uint32(uint32(len(s)))
	e.out = append(e.out, s...)
	e.pad4()
}

// opaque writes counted bytes with padding but no length word.
func (e *encoder) opaque(bs []byte) {
	e.out = append(e.out, bs...)
	e.pad4()
}

// Pack serializes l into the XDR stream format: a four-byte header
// (encoding, endianness, two reserved bytes) followed by the encoded
// list.
func Pack(l *List) ([]byte, error) {
	if l == nil || l.freed {
		return nil, ErrFreed
	}
	e := &encoder{out: []byte{packEncodingXDR, packEndianBig, 0, 0}}
	if err := e.list(l); err != nil {
		return nil, err
	}
	return e.out, nil
}

func (e *encoder) list(l *List) error {
	e.int32(nvlistVersion)
	e.uint32(flagUniqueName)
	for p := range l.Pairs() {
		var pe encoder
		if err := pe.pair(p); err != nil {
			return err
		}
		// Each pair is framed by its encoded size (including the two
		// size words) and an estimate of its in-memory size.
		e.int32(int32(len(pe.out) + 8))
		e.int32(decodedSize(p))
		e.out = append(e.out, pe.out...)
	}
	// List terminator.
	e.int32(0)
	e.int32(0)
	return nil
}

func (e *encoder) pair(p *Pair) error {
	e.str(p.name)
	e.int32(int32(p.typ))

	switch p.typ {
	case TypeBoolean:
		e.int32(0) // no elements, no payload
		return nil
	case TypeBooleanValue:
		e.int32(1)
		e.xdrBool(p.val.(bool))
	case TypeByte:
		e.int32(1)
		e.uint32(uint32(p.val.(byte)))
	case TypeInt8:
		e.int32(1)
		e.int32(int32(p.val.(int8)))
	case TypeUint8:
		e.int32(1)
		e.uint32(uint32(p.val.(uint8)))
	case TypeInt16:
		e.int32(1)
		e.int32(int32(p.val.(int16)))
	case TypeUint16:
		e.int32(1)
		e.uint32(uint32(p.val.(uint16)))
	case TypeInt32:
		e.int32(1)
		e.int32(p.val.(int32))
	case TypeUint32:
		e.int32(1)
		e.uint32(p.val.(uint32))
	case TypeInt64:
		e.int32(1)
		e.uint64(uint64(p.val.(int64)))
	case TypeUint64:
		e.int32(1)
		e.uint64(p.val.(uint64))
	case TypeHrtime:
		e.int32(1)
		e.uint64(uint64(p.val.(int64)))
	case TypeString:
		e.int32(1)
		e.str(p.val.(string))
	case TypeList:
		e.int32(1)
		return e.list(p.val.(*List))
	case TypeBooleanArray:
		v := p.val.([]bool)
		e.int32(int32(len(v)))
		for _, b := range v {
			e.xdrBool(b)
		}
	case TypeByteArray:
		v := p.val.([]byte)
		e.int32(int32(len(v)))
		e.opaque(v)
	case TypeInt8Array:
		v := p.val.([]int8)
		e.int32(int32(len(v)))
		for _, n := range v {
			e.int32(int32(n))
		}
	case TypeUint8Array:
		v := p.val.([]uint8)
		e.int32(int32(len(v)))
		for _, n := range v {
			e.uint32(uint32(n))
		}
	case TypeInt16Array:
		v := p.val.([]int16)
		e.int32(int32(len(v)))
		for _, n := range v {
			e.int32(int32(n))
		}
	case TypeUint16Array:
		v := p.val.([]uint16)
		e.int32(int32(len(v)))
		for _, n := range v {
			e.uint32(uint32(n))
		}
	case TypeInt32Array:
		v := p.val.([]int32)
		e.int32(int32(len(v)))
		for _, n := range v {
			e.int32(n)
		}
	case TypeUint32Array:
		v := p.val.([]uint32)
		e.int32(int32(len(v)))
		for _, n := range v {
			e.uint32(n)
		}
	case TypeInt64Array:
		v := p.val.([]int64)
		e.int32(int32(len(v)))
		for _, n := range v {
			e.uint64(uint64(n))
		}
	case TypeUint64Array:
		v := p.val.([]uint64)
		e.int32(int32(len(v)))
		for _, n := range v {
			e.uint64(n)
		}
	case TypeStringArray:
		v := p.val.([]string)
		e.int32(int32(len(v)))
		for _, s := range v {
			e.str(s)
		}
	case TypeListArray:
		v := p.val.([]*List)
		e.int32(int32(len(v)))
		for _, sub := range v {
			if err := e.list(sub); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("nvpair: cannot pack entry %q of type %s", p.name, p.typ)
	}
	return nil
}

func (e *encoder) xdrBool(b bool) {
	if b {
		e.int32(1)
	} else {
		e.int32(0)
	}
}

// decodedSize estimates the native in-memory size of a pair. The
// consumer only requires it to be positive and stable, not exact.
func decodedSize(p *Pair) int32 {
	n := 32 + len(p.name) + 1
	switch v := p.val.(type) {
	case nil:
	case bool, byte, int8, int16, uint16, int32, uint32:
		n += 4
	case int64, uint64:
		n += 8
	case string:
		n += len(v) + 1
	case *List:
		n += 64
	case []bool:
		n += 4 * len(v)
	case []byte:
		n += len(v)
	case []int8:
		n += len(v)
	case []int16:
		n += 2 * len(v)
	case []uint16:
		n += 2 * len(v)
	case []int32:
		n += 4 * len(v)
	case []uint32:
		n += 4 * len(v)
	case []int64:
		n += 8 * len(v)
	case []uint64:
		n += 8 * len(v)
	case []string:
		for _, s := range v {
			n += len(s) + 1 + 8
		}
	case []*List:
		n += 64 * len(v)
	}
	// Round up to the native 8-byte pair alignment.
	return int32((n + 7) &^ 7)
}
