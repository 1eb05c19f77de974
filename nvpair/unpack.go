package nvpair

import (
	"encoding/binary"
	"fmt"
	"io"
)

// maxNesting bounds list nesting during a parse so a crafted stream
// cannot recurse without limit.
const maxNesting = 64

// A decoder reads the XDR byte stream produced by [Pack].
type decoder struct {
	in    []byte
	off   int
	depth int
}

func (d *decoder) read(n int) ([]byte, error) {
	if n < 0 || len(d.in)-d.off < n {
		return nil, io.ErrUnexpectedEOF
	}
	bs := d.in[d.off : d.off+n]
	d.off += n
	return bs, nil
}

func (d *decoder) pad4() error {
	if extra := d.off % 4; extra != 0 {
		_, err := d.read(4 - extra)
		return err
	}
	return nil
}

func (d *decoder) uint32() (uint32, error) {
	bs, err := d.read(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(bs), nil
}

func (d *decoder) int32() (int32, error) {
	u, err := d.uint32()
	return int32(u), err
}

func (d *decoder) uint64() (uint64, error) {
	bs, err := d.read(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(bs), nil
}

// elems bounds an array's claimed element count by the bytes left in
// the stream, where size is the smallest possible encoding of one
// element. A count that cannot fit is a framing error, caught before
// anything is allocated for it.
func (d *decoder) elems(name string, nelem int32, size int) (int, error) {
	if rest := len(d.in) - d.off; int(nelem) > rest/size {
		return 0, fmt.Errorf("nvpair: entry %q claims %d elements in %d remaining bytes", name, nelem, rest)
	}
	return int(nelem), nil
}

// str reads an XDR string: length word, bytes, padding.
func (d *decoder) str() (string, error) {
	ln, err := d.uint32()
	if err != nil {
		return "", err
	}
	bs, err := d.read(int(ln))
	if err != nil {
		return "", err
	}
	s := string(bs)
	return s, d.pad4()
}

// opaque reads n counted bytes plus padding.
func (d *decoder) opaque(n int) ([]byte, error) {
	bs, err := d.read(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, bs)
	return out, d.pad4()
}

// Unpack parses an XDR stream produced by [Pack] into a fresh list
// allocated from rt. On failure no handle allocated during the parse
// remains outstanding.
func Unpack(bs []byte, rt Runtime) (*List, error) {
	if len(bs) < 4 {
		return nil, io.ErrUnexpectedEOF
	}
	if bs[0] != packEncodingXDR {
		return nil, fmt.Errorf("nvpair: unknown stream encoding %d", bs[0])
	}
	d := &decoder{in: bs, off: 4}
	return d.list(rt)
}

func (d *decoder) list(rt Runtime) (*List, error) {
	if d.depth >= maxNesting {
		return nil, fmt.Errorf("nvpair: list nesting deeper than %d levels", maxNesting)
	}
	d.depth++
	defer func() { d.depth-- }()
	version, err := d.int32()
	if err != nil {
		return nil, err
	}
	if version != nvlistVersion {
		return nil, fmt.Errorf("nvpair: unknown list version %d", version)
	}
	if _, err := d.uint32(); err != nil { // nvflag
		return nil, err
	}
	l, err := rt.Alloc()
	if err != nil {
		return nil, err
	}
	if err := d.pairs(l, rt); err != nil {
		l.Free()
		return nil, err
	}
	return l, nil
}

func (d *decoder) pairs(l *List, rt Runtime) error {
	for {
		encodedSize, err := d.int32()
		if err != nil {
			return err
		}
		decodedSize, err := d.int32()
		if err != nil {
			return err
		}
		if encodedSize == 0 && decodedSize == 0 {
			return nil
		}
		if encodedSize < 8 || decodedSize < 0 {
			return fmt.Errorf("nvpair: corrupt pair framing (%d, %d)", encodedSize, decodedSize)
		}
		if err := d.pair(l, rt); err != nil {
			return err
		}
	}
}

func (d *decoder) pair(l *List, rt Runtime) error {
	name, err := d.str()
	if err != nil {
		return err
	}
	t, err := d.int32()
	if err != nil {
		return err
	}
	typ := Type(t)
	nelem, err := d.int32()
	if err != nil {
		return err
	}
	if nelem < 0 {
		return fmt.Errorf("nvpair: entry %q has negative element count", name)
	}

	switch typ {
	case TypeBoolean:
		return l.AddBoolean(name)
	case TypeBooleanValue:
		v, err := d.xdrBool()
		if err != nil {
			return err
		}
		return l.AddBooleanValue(name, v)
	case TypeByte:
		u, err := d.uint32()
		if err != nil {
			return err
		}
		return l.AddByte(name, byte(u))
	case TypeInt8:
		u, err := d.int32()
		if err != nil {
			return err
		}
		return l.AddInt8(name, int8(u))
	case TypeUint8:
		u, err := d.uint32()
		if err != nil {
			return err
		}
		return l.AddUint8(name, uint8(u))
	case TypeInt16:
		u, err := d.int32()
		if err != nil {
			return err
		}
		return l.AddInt16(name, int16(u))
	case TypeUint16:
		u, err := d.uint32()
		if err != nil {
			return err
		}
		return l.AddUint16(name, uint16(u))
	case TypeInt32:
		u, err := d.int32()
		if err != nil {
			return err
		}
		return l.AddInt32(name, u)
	case TypeUint32:
		u, err := d.uint32()
		if err != nil {
			return err
		}
		return l.AddUint32(name, u)
	case TypeInt64:
		u, err := d.uint64()
		if err != nil {
			return err
		}
		return l.AddInt64(name, int64(u))
	case TypeUint64:
		u, err := d.uint64()
		if err != nil {
			return err
		}
		return l.AddUint64(name, u)
	case TypeHrtime:
		u, err := d.uint64()
		if err != nil {
			return err
		}
		return l.AddHrtime(name, int64(u))
	case TypeString:
		s, err := d.str()
		if err != nil {
			return err
		}
		return l.AddString(name, s)
	case TypeList:
		sub, err := d.list(rt)
		if err != nil {
			return err
		}
		err = l.AddList(name, sub)
		sub.Free()
		return err
	case TypeBooleanArray:
		n, err := d.elems(name, nelem, 4)
		if err != nil {
			return err
		}
		v := make([]bool, n)
		for i := range v {
			b, err := d.xdrBool()
			if err != nil {
				return err
			}
			v[i] = b
		}
		return l.AddBooleanArray(name, v)
	case TypeByteArray:
		v, err := d.opaque(int(nelem))
		if err != nil {
			return err
		}
		return l.AddByteArray(name, v)
	case TypeInt8Array:
		n, err := d.elems(name, nelem, 4)
		if err != nil {
			return err
		}
		v := make([]int8, n)
		for i := range v {
			u, err := d.int32()
			if err != nil {
				return err
			}
			v[i] = int8(u)
		}
		return l.AddInt8Array(name, v)
	case TypeUint8Array:
		n, err := d.elems(name, nelem, 4)
		if err != nil {
			return err
		}
		v := make([]uint8, n)
		for i := range v {
			u, err := d.uint32()
			if err != nil {
				return err
			}
			v[i] = uint8(u)
		}
		return l.AddUint8Array(name, v)
	case TypeInt16Array:
		n, err := d.elems(name, nelem, 4)
		if err != nil {
			return err
		}
		v := make([]int16, n)
		for i := range v {
			u, err := d.int32()
			if err != nil {
				return err
			}
			v[i] = int16(u)
		}
		return l.AddInt16Array(name, v)
	case TypeUint16Array:
		n, err := d.elems(name, nelem, 4)
		if err != nil {
			return err
		}
		v := make([]uint16, n)
		for i := range v {
			u, err := d.uint32()
			if err != nil {
				return err
			}
			v[i] = uint16(u)
		}
		return l.AddUint16Array(name, v)
	case TypeInt32Array:
		n, err := d.elems(name, nelem, 4)
		if err != nil {
			return err
		}
		v := make([]int32, n)
		for i := range v {
			u, err := d.int32()
			if err != nil {
				return err
			}
			v[i] = u
		}
		return l.AddInt32Array(name, v)
	case TypeUint32Array:
		n, err := d.elems(name, nelem, 4)
		if err != nil {
			return err
		}
		v := make([]uint32, n)
		for i := range v {
			u, err := d.uint32()
			if err != nil {
				return err
			}
			v[i] = u
		}
		return l.AddUint32Array(name, v)
	case TypeInt64Array:
		n, err := d.elems(name, nelem, 8)
		if err != nil {
			return err
		}
		v := make([]int64, n)
		for i := range v {
			u, err := d.uint64()
			if err != nil {
				return err
			}
			v[i] = int64(u)
		}
		return l.AddInt64Array(name, v)
	case TypeUint64Array:
		n, err := d.elems(name, nelem, 8)
		if err != nil {
			return err
		}
		v := make([]uint64, n)
		for i := range v {
			u, err := d.uint64()
			if err != nil {
				return err
			}
			v[i] = u
		}
		return l.AddUint64Array(name, v)
	case TypeStringArray:
		n, err := d.elems(name, nelem, 4)
		if err != nil {
			return err
		}
		v := make([]string, n)
		for i := range v {
			s, err := d.str()
			if err != nil {
				return err
			}
			v[i] = s
		}
		return l.AddStringArray(name, v)
	case TypeListArray:
		n, err := d.elems(name, nelem, 16)
		if err != nil {
			return err
		}
		subs := make([]*List, 0, n)
		freeSubs := func() {
			for _, s := range subs {
				s.Free()
			}
		}
		for i := 0; i < n; i++ {
			sub, err := d.list(rt)
			if err != nil {
				freeSubs()
				return err
			}
			subs = append(subs, sub)
		}
		err = l.AddListArray(name, subs)
		freeSubs()
		return err
	}
	return fmt.Errorf("nvpair: cannot unpack entry %q of type %s", name, typ)
}

func (d *decoder) xdrBool() (bool, error) {
	u, err := d.int32()
	if err != nil {
		return false, err
	}
	return u != 0, nil
}
