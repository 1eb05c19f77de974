package nvpair

import (
	"errors"
	"fmt"
	"iter"
	"slices"
)

// ErrFreed is returned by operations on a list that has already been
// released.
var ErrFreed = errors.New("nvpair: use of freed list")

// A Runtime allocates and releases lists. The default [Std] runtime
// is backed by ordinary Go allocation; tests substitute a runtime
// that counts outstanding handles and injects allocation failures.
type Runtime interface {
	// Alloc returns a new empty list owned by this runtime.
	Alloc() (*List, error)
	// Free is called exactly once when a list allocated by this
	// runtime is released.
	Free(*List)
}

// NewList returns an empty list owned by rt. It is intended for use
// by Runtime implementations inside Alloc.
func NewList(rt Runtime) *List {
	return &List{rt: rt}
}

// Std is the default runtime.
var Std Runtime = stdRuntime{}

type stdRuntime struct{}

func (r stdRuntime) Alloc() (*List, error) { return NewList(r), nil }
func (stdRuntime) Free(*List)              {}

// A Pair is a single named, typed entry of a list.
type Pair struct {
	name string
	typ  Type
	val  any
}

// Name returns the entry name.
func (p *Pair) Name() string { return p.name }

// Type returns the entry's wire type tag.
func (p *Pair) Type() Type { return p.typ }

// IsArray reports whether the entry holds an array payload.
func (p *Pair) IsArray() bool { return p.typ.IsArray() }

// A List is an ordered name/value pair container. Names are unique:
// adding an entry under an existing name removes the old entry and
// appends the new one at the tail, matching the kernel's
// NV_UNIQUE_NAME semantics.
type List struct {
	rt    Runtime
	pairs []Pair
	freed bool
}

// Free releases the list and every nested list it owns. Freeing an
// already-freed list is a no-op; using it afterward is an error.
func (l *List) Free() {
	if l == nil || l.freed {
		return
	}
	l.freed = true
	for i := range l.pairs {
		switch v := l.pairs[i].val.(type) {
		case *List:
			v.Free()
		case []*List:
			for _, s := range v {
				s.Free()
			}
		}
	}
	l.rt.Free(l)
	l.pairs = nil
}

// Len returns the number of entries.
func (l *List) Len() int { return len(l.pairs) }

// Pairs iterates the entries in wire order.
func (l *List) Pairs() iter.Seq[*Pair] {
	return func(yield func(*Pair) bool) {
		for i := range l.pairs {
			if !yield(&l.pairs[i]) {
				return
			}
		}
	}
}

// Lookup returns the entry with the given name, if present.
func (l *List) Lookup(name string) (*Pair, bool) {
	for i := range l.pairs {
		if l.pairs[i].name == name {
			return &l.pairs[i], true
		}
	}
	return nil, false
}

func (l *List) add(name string, typ Type, val any) error {
	if l == nil || l.freed {
		return ErrFreed
	}
	for i := range l.pairs {
		if l.pairs[i].name == name {
			old := l.pairs[i]
			l.pairs = append(l.pairs[:i], l.pairs[i+1:]...)
			// The replaced entry's nested lists are owned by l and
			// are no longer reachable, release them now.
			switch v := old.val.(type) {
			case *List:
				v.Free()
			case []*List:
				for _, s := range v {
					s.Free()
				}
			}
			break
		}
	}
	l.pairs = append(l.pairs, Pair{name, typ, val})
	return nil
}

// AddBoolean adds a presence-only boolean entry.
func (l *List) AddBoolean(name string) error { return l.add(name, TypeBoolean, nil) }

// AddBooleanValue adds a boolean entry.
func (l *List) AddBooleanValue(name string, v bool) error {
	return l.add(name, TypeBooleanValue, v)
}

// AddByte adds a byte (uchar) entry.
func (l *List) AddByte(name string, v byte) error { return l.add(name, TypeByte, v) }

func (l *List) AddInt8(name string, v int8) error     { return l.add(name, TypeInt8, v) }
func (l *List) AddUint8(name string, v uint8) error   { return l.add(name, TypeUint8, v) }
func (l *List) AddInt16(name string, v int16) error   { return l.add(name, TypeInt16, v) }
func (l *List) AddUint16(name string, v uint16) error { return l.add(name, TypeUint16, v) }
func (l *List) AddInt32(name string, v int32) error   { return l.add(name, TypeInt32, v) }
func (l *List) AddUint32(name string, v uint32) error { return l.add(name, TypeUint32, v) }
func (l *List) AddInt64(name string, v int64) error   { return l.add(name, TypeInt64, v) }
func (l *List) AddUint64(name string, v uint64) error { return l.add(name, TypeUint64, v) }

// AddHrtime adds a high-resolution time entry, in nanoseconds.
func (l *List) AddHrtime(name string, v int64) error { return l.add(name, TypeHrtime, v) }

// AddString adds a string entry.
func (l *List) AddString(name, v string) error { return l.add(name, TypeString, v) }

// AddList adds a nested list entry. The list is copied; v remains
// owned by the caller.
func (l *List) AddList(name string, v *List) error {
	if l == nil || l.freed {
		return ErrFreed
	}
	sub, err := v.Dup(l.rt)
	if err != nil {
		return err
	}
	if err := l.add(name, TypeList, sub); err != nil {
		sub.Free()
		return err
	}
	return nil
}

func (l *List) AddBooleanArray(name string, v []bool) error {
	return l.add(name, TypeBooleanArray, slices.Clone(v))
}

func (l *List) AddByteArray(name string, v []byte) error {
	return l.add(name, TypeByteArray, slices.Clone(v))
}

func (l *List) AddInt8Array(name string, v []int8) error {
	return l.add(name, TypeInt8Array, slices.Clone(v))
}

func (l *List) AddUint8Array(name string, v []uint8) error {
	return l.add(name, TypeUint8Array, slices.Clone(v))
}

func (l *List) AddInt16Array(name string, v []int16) error {
	return l.add(name, TypeInt16Array, slices.Clone(v))
}

func (l *List) AddUint16Array(name string, v []uint16) error {
	return l.add(name, TypeUint16Array, slices.Clone(v))
}

func (l *List) AddInt32Array(name string, v []int32) error {
	return l.add(name, TypeInt32Array, slices.Clone(v))
}

func (l *List) AddUint32Array(name string, v []uint32) error {
	return l.add(name, TypeUint32Array, slices.Clone(v))
}

func (l *List) AddInt64Array(name string, v []int64) error {
	return l.add(name, TypeInt64Array, slices.Clone(v))
}

func (l *List) AddUint64Array(name string, v []uint64) error {
	return l.add(name, TypeUint64Array, slices.Clone(v))
}

func (l *List) AddStringArray(name string, v []string) error {
	return l.add(name, TypeStringArray, slices.Clone(v))
}

// AddListArray adds an array-of-lists entry. Each element is copied;
// the elements of v remain owned by the caller.
func (l *List) AddListArray(name string, v []*List) error {
	if l == nil || l.freed {
		return ErrFreed
	}
	subs := make([]*List, 0, len(v))
	for _, e := range v {
		sub, err := e.Dup(l.rt)
		if err != nil {
			for _, s := range subs {
				s.Free()
			}
			return err
		}
		subs = append(subs, sub)
	}
	if err := l.add(name, TypeListArray, subs); err != nil {
		for _, s := range subs {
			s.Free()
		}
		return err
	}
	return nil
}

// Dup returns a deep copy of l allocated from rt. On failure no
// handle allocated for the copy remains outstanding.
func (l *List) Dup(rt Runtime) (*List, error) {
	if l == nil || l.freed {
		return nil, ErrFreed
	}
	out, err := rt.Alloc()
	if err != nil {
		return nil, err
	}
	for i := range l.pairs {
		p := &l.pairs[i]
		var err error
		switch v := p.val.(type) {
		case *List:
			err = out.AddList(p.name, v)
		case []*List:
			err = out.AddListArray(p.name, v)
		case []bool:
			err = out.add(p.name, p.typ, slices.Clone(v))
		case []byte:
			err = out.add(p.name, p.typ, slices.Clone(v))
		case []int8:
			err = out.add(p.name, p.typ, slices.Clone(v))
		case []int16:
			err = out.add(p.name, p.typ, slices.Clone(v))
		case []uint16:
			err = out.add(p.name, p.typ, slices.Clone(v))
		case []int32:
			err = out.add(p.name, p.typ, slices.Clone(v))
		case []uint32:
			err = out.add(p.name, p.typ, slices.Clone(v))
		case []int64:
			err = out.add(p.name, p.typ, slices.Clone(v))
		case []uint64:
			err = out.add(p.name, p.typ, slices.Clone(v))
		case []string:
			err = out.add(p.name, p.typ, slices.Clone(v))
		default:
			err = out.add(p.name, p.typ, p.val)
		}
		if err != nil {
			out.Free()
			return nil, err
		}
	}
	return out, nil
}

func (p *Pair) typeErr(want Type) error {
	return fmt.Errorf("nvpair: entry %q has type %s, want %s", p.name, p.typ, want)
}

// BooleanValue returns the payload of a boolean entry.
func (p *Pair) BooleanValue() (bool, error) {
	if p.typ != TypeBooleanValue {
		return false, p.typeErr(TypeBooleanValue)
	}
	return p.val.(bool), nil
}

// Byte returns the payload of a byte entry.
func (p *Pair) Byte() (byte, error) {
	if p.typ != TypeByte {
		return 0, p.typeErr(TypeByte)
	}
	return p.val.(byte), nil
}

func (p *Pair) Int8() (int8, error) {
	if p.typ != TypeInt8 {
		return 0, p.typeErr(TypeInt8)
	}
	return p.val.(int8), nil
}

func (p *Pair) Uint8() (uint8, error) {
	if p.typ != TypeUint8 {
		return 0, p.typeErr(TypeUint8)
	}
	return p.val.(uint8), nil
}

func (p *Pair) Int16() (int16, error) {
	if p.typ != TypeInt16 {
		return 0, p.typeErr(TypeInt16)
	}
	return p.val.(int16), nil
}

func (p *Pair) Uint16() (uint16, error) {
	if p.typ != TypeUint16 {
		return 0, p.typeErr(TypeUint16)
	}
	return p.val.(uint16), nil
}

func (p *Pair) Int32() (int32, error) {
	if p.typ != TypeInt32 {
		return 0, p.typeErr(TypeInt32)
	}
	return p.val.(int32), nil
}

func (p *Pair) Uint32() (uint32, error) {
	if p.typ != TypeUint32 {
		return 0, p.typeErr(TypeUint32)
	}
	return p.val.(uint32), nil
}

func (p *Pair) Int64() (int64, error) {
	if p.typ != TypeInt64 {
		return 0, p.typeErr(TypeInt64)
	}
	return p.val.(int64), nil
}

func (p *Pair) Uint64() (uint64, error) {
	if p.typ != TypeUint64 {
		return 0, p.typeErr(TypeUint64)
	}
	return p.val.(uint64), nil
}

// Hrtime returns the payload of a high-resolution time entry, in
// nanoseconds.
func (p *Pair) Hrtime() (int64, error) {
	if p.typ != TypeHrtime {
		return 0, p.typeErr(TypeHrtime)
	}
	return p.val.(int64), nil
}

// String returns the payload of a string entry.
func (p *Pair) String() (string, error) {
	if p.typ != TypeString {
		return "", p.typeErr(TypeString)
	}
	return p.val.(string), nil
}

// List returns the nested list of a list entry. The returned list is
// owned by the containing list and must not be freed by the caller.
func (p *Pair) List() (*List, error) {
	if p.typ != TypeList {
		return nil, p.typeErr(TypeList)
	}
	return p.val.(*List), nil
}

func (p *Pair) BooleanArray() ([]bool, error) {
	if p.typ != TypeBooleanArray {
		return nil, p.typeErr(TypeBooleanArray)
	}
	return p.val.([]bool), nil
}

func (p *Pair) ByteArray() ([]byte, error) {
	if p.typ != TypeByteArray {
		return nil, p.typeErr(TypeByteArray)
	}
	return p.val.([]byte), nil
}

func (p *Pair) Int8Array() ([]int8, error) {
	if p.typ != TypeInt8Array {
		return nil, p.typeErr(TypeInt8Array)
	}
	return p.val.([]int8), nil
}

func (p *Pair) Uint8Array() ([]uint8, error) {
	if p.typ != TypeUint8Array {
		return nil, p.typeErr(TypeUint8Array)
	}
	return p.val.([]uint8), nil
}

func (p *Pair) Int16Array() ([]int16, error) {
	if p.typ != TypeInt16Array {
		return nil, p.typeErr(TypeInt16Array)
	}
	return p.val.([]int16), nil
}

func (p *Pair) Uint16Array() ([]uint16, error) {
	if p.typ != TypeUint16Array {
		return nil, p.typeErr(TypeUint16Array)
	}
	return p.val.([]uint16), nil
}

func (p *Pair) Int32Array() ([]int32, error) {
	if p.typ != TypeInt32Array {
		return nil, p.typeErr(TypeInt32Array)
	}
	return p.val.([]int32), nil
}

func (p *Pair) Uint32Array() ([]uint32, error) {
	if p.typ != TypeUint32Array {
		return nil, p.typeErr(TypeUint32Array)
	}
	return p.val.([]uint32), nil
}

func (p *Pair) Int64Array() ([]int64, error) {
	if p.typ != TypeInt64Array {
		return nil, p.typeErr(TypeInt64Array)
	}
	return p.val.([]int64), nil
}

func (p *Pair) Uint64Array() ([]uint64, error) {
	if p.typ != TypeUint64Array {
		return nil, p.typeErr(TypeUint64Array)
	}
	return p.val.([]uint64), nil
}

func (p *Pair) StringArray() ([]string, error) {
	if p.typ != TypeStringArray {
		return nil, p.typeErr(TypeStringArray)
	}
	return p.val.([]string), nil
}

// ListArray returns the nested lists of a list-array entry. The
// returned lists are owned by the containing list and must not be
// freed by the caller.
func (p *Pair) ListArray() ([]*List, error) {
	if p.typ != TypeListArray {
		return nil, p.typeErr(TypeListArray)
	}
	return p.val.([]*List), nil
}

// A Slot is an output parameter for calls that allocate a list on
// behalf of the caller. The callee populates it with Set; whoever
// handed out the slot takes ownership of the stored list.
type Slot struct {
	list *List
}

// Set stores l in the slot, replacing (and freeing) any previously
// stored list.
func (s *Slot) Set(l *List) {
	if s.list != nil && s.list != l {
		s.list.Free()
	}
	s.list = l
}

// Take removes and returns the stored list, transferring ownership
// to the caller. It returns nil if the slot was never populated.
func (s *Slot) Take() *List {
	l := s.list
	s.list = nil
	return l
}
