// Package lzc is a client for the ZFS management interface. It
// converts between Go property maps and the name/value list
// containers the interface consumes ([Encode], [Decode]), translates
// raw status codes into precise typed errors, and wraps the
// per-operation entry points (create, clone, snapshot, hold,
// bookmark, send/receive) behind a [Client].
//
// The management calls themselves are reached through the [Driver]
// interface; package lzctest provides an in-memory Driver for tests.
//
// # Property maps
//
// A [Map] is an ordered mapping from string keys to values. A value
// may be:
//
//   - nil, representing boolean truth by its mere presence
//   - a bool, string, or [Byte]
//   - an int, encoded as uint64 except for a fixed set of well-known
//     keys that the interface requires with an explicit 32-bit tag
//   - an explicitly sized integer (int8 through uint64)
//   - a nested *Map
//   - a slice of any of the above, or a []any whose elements all
//     share one of the above types
//
// Maps decoded from a container preserve the container's entry order.
package lzc
