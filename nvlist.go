package lzc

import (
	"golang.org/x/sys/unix"

	"github.com/mikoim/lzc/nvpair"
)

// withIn encodes props into a container, hands it to fn as an input
// parameter, and releases it when fn returns.
func withIn(rt nvpair.Runtime, props *Map, fn func(*nvpair.List) unix.Errno) (unix.Errno, error) {
	l, err := Encode(rt, props)
	if err != nil {
		return 0, err
	}
	defer l.Free()
	return fn(l), nil
}

// captureOut hands an empty output slot to fn, then decodes whatever
// fn's call populated into props (clearing it first). The populated
// container is released whether or not the decode succeeds.
func captureOut(props *Map, fn func(*nvpair.Slot) unix.Errno) (unix.Errno, error) {
	var slot nvpair.Slot
	errno := fn(&slot)
	l := slot.Take()
	if l == nil {
		props.Clear()
		return errno, nil
	}
	defer l.Free()
	return errno, Decode(l, props)
}
