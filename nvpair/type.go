package nvpair

import "fmt"

// A Type is a wire type tag. The numbering matches the kernel's
// DATA_TYPE_* enumeration and must not be rearranged.
type Type int32

const (
	TypeUnknown Type = iota
	TypeBoolean      // presence-only, no payload
	TypeByte
	TypeInt16
	TypeUint16
	TypeInt32
	TypeUint32
	TypeInt64
	TypeUint64
	TypeString
	TypeByteArray
	TypeInt16Array
	TypeUint16Array
	TypeInt32Array
	TypeUint32Array
	TypeInt64Array
	TypeUint64Array
	TypeStringArray
	TypeHrtime
	TypeList
	TypeListArray
	TypeBooleanValue
	TypeInt8
	TypeUint8
	TypeBooleanArray
	TypeInt8Array
	TypeUint8Array
	TypeDouble
)

// typeInfo describes a tag: the accessor name suffix used by the C
// interface, and for array tags the tag of a single element.
type typeInfo struct {
	suffix string
	elem   Type
}

var typeInfos = map[Type]typeInfo{
	TypeBoolean:      {"boolean", TypeUnknown},
	TypeBooleanValue: {"boolean_value", TypeUnknown},
	TypeByte:         {"byte", TypeUnknown},
	TypeInt8:         {"int8", TypeUnknown},
	TypeUint8:        {"uint8", TypeUnknown},
	TypeInt16:        {"int16", TypeUnknown},
	TypeUint16:       {"uint16", TypeUnknown},
	TypeInt32:        {"int32", TypeUnknown},
	TypeUint32:       {"uint32", TypeUnknown},
	TypeInt64:        {"int64", TypeUnknown},
	TypeUint64:       {"uint64", TypeUnknown},
	TypeString:       {"string", TypeUnknown},
	TypeHrtime:       {"hrtime", TypeUnknown},
	TypeDouble:       {"double", TypeUnknown},
	TypeList:         {"nvlist", TypeUnknown},

	TypeBooleanArray: {"boolean_array", TypeBooleanValue},
	TypeByteArray:    {"byte_array", TypeByte},
	TypeInt8Array:    {"int8_array", TypeInt8},
	TypeUint8Array:   {"uint8_array", TypeUint8},
	TypeInt16Array:   {"int16_array", TypeInt16},
	TypeUint16Array:  {"uint16_array", TypeUint16},
	TypeInt32Array:   {"int32_array", TypeInt32},
	TypeUint32Array:  {"uint32_array", TypeUint32},
	TypeInt64Array:   {"int64_array", TypeInt64},
	TypeUint64Array:  {"uint64_array", TypeUint64},
	TypeStringArray:  {"string_array", TypeString},
	TypeListArray:    {"nvlist_array", TypeList},
}

// Suffix returns the accessor name suffix for t, as used in the
// nvlist_add_<suffix> and nvpair_value_<suffix> naming convention.
func (t Type) Suffix() string {
	if ti, ok := typeInfos[t]; ok {
		return ti.suffix
	}
	return fmt.Sprintf("unknown_%d", int32(t))
}

// IsArray reports whether t is an array tag.
func (t Type) IsArray() bool {
	return typeInfos[t].elem != TypeUnknown
}

// Elem returns the element tag of an array tag, or TypeUnknown if t
// is not an array tag.
func (t Type) Elem() Type {
	return typeInfos[t].elem
}

func (t Type) String() string { return t.Suffix() }
