// Package nvpair implements the name/value pair list container used
// by the ZFS management interface.
//
// A [List] is an ordered collection of (name, type tag, payload)
// entries. The type tag numbering, the set of representable types,
// and the accessor naming convention (nvlist_add_<suffix>,
// nvpair_value_<suffix>) are fixed by the kernel interface and are
// reproduced here exactly.
//
// Lists are allocated through a [Runtime] so that tests can account
// for every outstanding handle. A List is owned by exactly one
// caller at a time and must be freed exactly once; nested lists added
// with [List.AddList] are copied, so a parent list owns independent
// copies of its children.
package nvpair
