package lzc

import (
	"errors"
	"fmt"

	"github.com/mikoim/lzc/nvpair"
	"golang.org/x/sys/unix"
)

// DatasetType selects the kind of dataset to create.
type DatasetType uint32

const (
	DatasetZFS  DatasetType = 2 // ordinary filesystem
	DatasetZVOL DatasetType = 3 // block volume
)

func (t DatasetType) String() string {
	switch t {
	case DatasetZFS:
		return "zfs"
	case DatasetZVOL:
		return "zvol"
	}
	return "unknown"
}

// SendFlags adjusts the format of a generated send stream.
type SendFlags uint32

const (
	SendLargeBlock SendFlags = 1 << iota
	SendEmbedData
)

// A Driver executes dataset operations and reports raw status codes.
// Implementations receive request containers they must not retain or
// free, and deliver result containers through Slots whose ownership
// transfers to the caller. The zero status code means success.
type Driver interface {
	Create(name string, typ DatasetType, props *nvpair.List) unix.Errno
	Clone(name, origin string, props *nvpair.List) unix.Errno
	Rollback(name string, out *nvpair.Slot) unix.Errno
	Snapshot(snaps *nvpair.List, props *nvpair.List, errs *nvpair.Slot) unix.Errno
	DestroySnapshots(snaps *nvpair.List, deferred bool, errs *nvpair.Slot) unix.Errno
	Bookmark(bookmarks *nvpair.List, errs *nvpair.Slot) unix.Errno
	GetBookmarks(fsname string, props *nvpair.List, out *nvpair.Slot) unix.Errno
	DestroyBookmarks(bookmarks *nvpair.List, errs *nvpair.Slot) unix.Errno
	SnapRangeSpace(firstsnap, lastsnap string, space *uint64) unix.Errno
	Hold(holds *nvpair.List, cleanupFD int, errs *nvpair.Slot) unix.Errno
	Release(holds *nvpair.List, errs *nvpair.Slot) unix.Errno
	GetHolds(snapname string, out *nvpair.Slot) unix.Errno
	Send(snapname, fromsnap string, fd int, flags SendFlags) unix.Errno
	SendSpace(snapname, fromsnap string, space *uint64) unix.Errno
	Receive(snapname string, props *nvpair.List, origin string, force bool, fd int) unix.Errno
	Exists(name string) bool
}

// A Client wraps a Driver with property encoding and error
// classification. Methods encode request maps into containers, run
// the driver operation, decode any result containers back into maps,
// and translate the raw status into a typed error.
type Client struct {
	d  Driver
	rt nvpair.Runtime
}

// New constructs a Client over d. A nil rt uses the standard runtime.
func New(d Driver, rt nvpair.Runtime) *Client {
	if rt == nil {
		rt = nvpair.Std
	}
	return &Client{d: d, rt: rt}
}

// namesMap builds the request shape batch operations share: each
// name becomes an untyped marker entry.
func namesMap(names []string) *Map {
	m := NewMap()
	for _, n := range names {
		m.Set(n, nil)
	}
	return m
}

// runBatch encodes the request map, runs fn with the container and
// an output slot, and decodes the resulting item map. A nil errlist
// means the request never ran. A non-nil error alongside a non-nil
// errlist is a decode failure of the item map: the map comes back
// cleared so the caller can still classify on the raw status, and
// must keep the error visible by joining it into the result.
func (c *Client) runBatch(req *Map, fn func(*nvpair.List, *nvpair.Slot) unix.Errno) (unix.Errno, *Map, error) {
	rl, err := Encode(c.rt, req)
	if err != nil {
		return 0, nil, err
	}
	defer rl.Free()
	errlist := NewMap()
	errno, err := captureOut(errlist, func(slot *nvpair.Slot) unix.Errno {
		return fn(rl, slot)
	})
	if err != nil {
		errlist.Clear()
		return errno, errlist, fmt.Errorf("decoding item errors: %w", err)
	}
	return errno, errlist, nil
}

// joinDecode attaches a decode failure reported by runBatch to the
// classification derived from the raw status, so a corrupt item
// container is never silently dropped.
func joinDecode(cls, decodeErr error) error {
	if decodeErr != nil {
		return errors.Join(cls, decodeErr)
	}
	return cls
}

// Create makes a new filesystem or volume with the given properties.
func (c *Client) Create(name string, typ DatasetType, props *Map) error {
	errno, err := withIn(c.rt, props, func(l *nvpair.List) unix.Errno {
		return c.d.Create(name, typ, l)
	})
	if err != nil {
		return err
	}
	return createError(errno, name)
}

// Clone makes a new filesystem from an existing snapshot.
func (c *Client) Clone(name, origin string, props *Map) error {
	errno, err := withIn(c.rt, props, func(l *nvpair.List) unix.Errno {
		return c.d.Clone(name, origin, l)
	})
	if err != nil {
		return err
	}
	return cloneError(errno, name, origin)
}

// Rollback reverts a filesystem to its most recent snapshot and
// reports that snapshot's name.
func (c *Client) Rollback(name string) (string, error) {
	out := NewMap()
	errno, err := captureOut(out, func(s *nvpair.Slot) unix.Errno {
		return c.d.Rollback(name, s)
	})
	if err != nil {
		return "", err
	}
	if err := rollbackError(errno, name); err != nil {
		return "", err
	}
	target, _ := out.Get("target")
	snap, _ := target.(string)
	return snap, nil
}

// Snapshot atomically creates the named snapshots with the given
// properties. Either all are created or none are.
func (c *Client) Snapshot(snaps []string, props *Map) error {
	pl, err := Encode(c.rt, props)
	if err != nil {
		return err
	}
	defer pl.Free()
	errno, errlist, err := c.runBatch(namesMap(snaps), func(sl *nvpair.List, slot *nvpair.Slot) unix.Errno {
		return c.d.Snapshot(sl, pl, slot)
	})
	if errlist == nil {
		return err
	}
	return joinDecode(snapshotErrors(errno, errlist, snaps), err)
}

// DestroySnapshots destroys the named snapshots. With deferred set,
// snapshots that are busy are marked for destruction once the last
// user goes away instead of failing.
func (c *Client) DestroySnapshots(snaps []string, deferred bool) error {
	errno, errlist, err := c.runBatch(namesMap(snaps), func(sl *nvpair.List, slot *nvpair.Slot) unix.Errno {
		return c.d.DestroySnapshots(sl, deferred, slot)
	})
	if errlist == nil {
		return err
	}
	return joinDecode(destroySnapshotsErrors(errno, errlist, snaps), err)
}

// Bookmark creates bookmarks from existing snapshots. Keys of
// bookmarks are the bookmark names to create, values the source
// snapshot names.
func (c *Client) Bookmark(bookmarks *Map) error {
	errno, errlist, err := c.runBatch(bookmarks, func(bl *nvpair.List, slot *nvpair.Slot) unix.Errno {
		return c.d.Bookmark(bl, slot)
	})
	if errlist == nil {
		return err
	}
	return joinDecode(bookmarkErrors(errno, errlist, bookmarks), err)
}

// GetBookmarks lists the bookmarks of a filesystem. The props keys
// name the bookmark properties to report; the result maps each
// bookmark name to a map of those properties.
func (c *Client) GetBookmarks(fsname string, props []string) (*Map, error) {
	pl, err := Encode(c.rt, namesMap(props))
	if err != nil {
		return nil, err
	}
	defer pl.Free()
	out := NewMap()
	errno, err := captureOut(out, func(slot *nvpair.Slot) unix.Errno {
		return c.d.GetBookmarks(fsname, pl, slot)
	})
	if err != nil {
		return nil, err
	}
	if err := getBookmarksError(errno, fsname); err != nil {
		return nil, err
	}
	return out, nil
}

// DestroyBookmarks destroys the named bookmarks. Missing bookmarks
// are not an error.
func (c *Client) DestroyBookmarks(bookmarks []string) error {
	errno, errlist, err := c.runBatch(namesMap(bookmarks), func(bl *nvpair.List, slot *nvpair.Slot) unix.Errno {
		return c.d.DestroyBookmarks(bl, slot)
	})
	if errlist == nil {
		return err
	}
	return joinDecode(destroyBookmarksErrors(errno, errlist, bookmarks), err)
}

// SnapRangeSpace reports the space used exclusively by the snapshots
// between firstsnap and lastsnap, inclusive of lastsnap.
func (c *Client) SnapRangeSpace(firstsnap, lastsnap string) (uint64, error) {
	var space uint64
	errno := c.d.SnapRangeSpace(firstsnap, lastsnap, &space)
	if err := snapRangeSpaceError(errno, firstsnap, lastsnap); err != nil {
		return 0, err
	}
	return space, nil
}

// missingOnly reports whether every item failure in errlist is a
// missing snapshot, and if so lists the missing names.
func missingOnly(errno unix.Errno, errlist *Map) ([]string, bool) {
	if errno != unix.ENOENT || errlist.Len() == 0 {
		return nil, false
	}
	var missing []string
	for name, v := range errlist.All() {
		if name == errlistKeyMoreErrors {
			continue
		}
		code, _ := intOf(v)
		if unix.Errno(code) != unix.ENOENT {
			return nil, false
		}
		missing = append(missing, name)
	}
	return missing, true
}

// Hold places named holds on snapshots. Keys of holds are snapshot
// names, values the hold tag to apply. With cleanupFD >= 0 the holds
// are released when that descriptor closes. The returned missing
// list names requested snapshots that do not exist; holds on all
// other snapshots were created.
func (c *Client) Hold(holds *Map, cleanupFD int) ([]string, error) {
	errno, errlist, err := c.runBatch(holds, func(hl *nvpair.List, slot *nvpair.Slot) unix.Errno {
		return c.d.Hold(hl, cleanupFD, slot)
	})
	if errlist == nil {
		return nil, err
	}
	if missing, ok := missingOnly(errno, errlist); ok && err == nil {
		return missing, nil
	}
	return nil, joinDecode(holdErrors(errno, errlist, holds, cleanupFD), err)
}

// Release releases holds from snapshots. Keys of holds are snapshot
// names, values the list of tags to release from each. The returned
// missing list names requested snapshots that do not exist.
func (c *Client) Release(holds *Map) ([]string, error) {
	errno, errlist, err := c.runBatch(holds, func(hl *nvpair.List, slot *nvpair.Slot) unix.Errno {
		return c.d.Release(hl, slot)
	})
	if errlist == nil {
		return nil, err
	}
	if missing, ok := missingOnly(errno, errlist); ok && err == nil {
		return missing, nil
	}
	return nil, joinDecode(releaseErrors(errno, errlist, holds), err)
}

// GetHolds lists the holds on a snapshot: tag name to creation time
// in seconds since the epoch.
func (c *Client) GetHolds(snapname string) (*Map, error) {
	out := NewMap()
	errno, err := captureOut(out, func(slot *nvpair.Slot) unix.Errno {
		return c.d.GetHolds(snapname, slot)
	})
	if err != nil {
		return nil, err
	}
	if err := getHoldsError(errno, snapname); err != nil {
		return nil, err
	}
	return out, nil
}

// Send writes a send stream for snapname to fd. An empty fromsnap
// produces a full stream; otherwise an incremental stream from that
// snapshot or bookmark.
func (c *Client) Send(snapname, fromsnap string, fd int, flags SendFlags) error {
	errno := c.d.Send(snapname, fromsnap, fd, flags)
	return sendError(errno, snapname, fromsnap)
}

// SendSpace estimates the size of the stream Send would produce.
func (c *Client) SendSpace(snapname, fromsnap string) (uint64, error) {
	var space uint64
	errno := c.d.SendSpace(snapname, fromsnap, &space)
	if err := sendSpaceError(errno, snapname, fromsnap); err != nil {
		return 0, err
	}
	return space, nil
}

// Receive reads a send stream from fd and creates snapname from it.
func (c *Client) Receive(snapname string, props *Map, origin string, force bool, fd int) error {
	errno, err := withIn(c.rt, props, func(pl *nvpair.List) unix.Errno {
		return c.d.Receive(snapname, pl, origin, force, fd)
	})
	if err != nil {
		return err
	}
	return receiveError(errno, snapname, origin)
}

// Exists reports whether the named dataset exists.
func (c *Client) Exists(name string) bool { return c.d.Exists(name) }
