package lzc

import (
	"golang.org/x/sys/unix"
)

// This file turns raw status codes into typed errors. The status
// code alone is ambiguous: the same EINVAL covers a name that breaks
// the grammar, a name that is too long, names spanning pools, and
// semantically invalid properties. Each classifier re-derives the
// cause from the request context, always testing syntax before
// length before cross-name consistency before the property-invalid
// fallback, matching the order in which the kernel itself trips over
// these conditions.

// errlistKeyMoreErrors is the out-of-band entry of an error list
// that counts errors beyond those individually enumerated.
const errlistKeyMoreErrors = "N_MORE_ERRORS"

func intOf(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case uint8:
		return int64(n), true
	case int16:
		return int64(n), true
	case uint16:
		return int64(n), true
	case int32:
		return int64(n), true
	case uint32:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case Byte:
		return int64(n), true
	}
	return 0, false
}

// handleErrList builds the batch failure shape shared by all batch
// operations. An empty item map means the aggregate status stands
// for a single unnamed failure (attributed to the lone target if
// exactly one was requested); a populated map is classified item by
// item in wire order. A missing suppressed-count entry counts as
// zero suppressed errors.
func handleErrList(errno unix.Errno, errlist *Map, names []string, wrap func(BatchError) error, mapper func(unix.Errno, string) error) error {
	if errno == 0 {
		return nil
	}
	if errlist == nil || errlist.Len() == 0 {
		name := ""
		if len(names) == 1 {
			name = names[0]
		}
		return wrap(BatchError{Errs: []error{mapper(errno, name)}})
	}
	suppressed := 0
	if v, ok := errlist.Get(errlistKeyMoreErrors); ok {
		if n, ok := intOf(v); ok {
			suppressed = int(n)
		}
		errlist.Delete(errlistKeyMoreErrors)
	}
	var errs []error
	for name, v := range errlist.All() {
		code, _ := intOf(v)
		errs = append(errs, mapper(unix.Errno(code), name))
	}
	return wrap(BatchError{Errs: errs, Suppressed: suppressed})
}

func createError(errno unix.Errno, name string) error {
	switch errno {
	case 0:
		return nil
	case unix.EINVAL:
		if !ValidFilesystemName(name) {
			return &NameInvalid{name}
		}
		if len(name) > MaxNameLen {
			return &NameTooLong{name}
		}
		return &PropertyInvalid{name}
	case unix.EEXIST:
		return &FilesystemExists{name}
	case unix.ENOENT:
		return &ParentNotFound{name}
	}
	return &OpError{Desc: "failed to create filesystem", Name: name, Errno: errno}
}

func cloneError(errno unix.Errno, name, origin string) error {
	switch errno {
	case 0:
		return nil
	case unix.EINVAL:
		if !ValidFilesystemName(name) {
			return &NameInvalid{name}
		}
		if !ValidSnapshotName(origin) {
			return &NameInvalid{origin}
		}
		if len(name) > MaxNameLen {
			return &NameTooLong{name}
		}
		if len(origin) > MaxNameLen {
			return &NameTooLong{origin}
		}
		if PoolName(name) != PoolName(origin) {
			return &PoolsDiffer{name}
		}
		return &PropertyInvalid{name}
	case unix.EEXIST:
		return &FilesystemExists{name}
	case unix.ENOENT:
		return &DatasetNotFound{name}
	}
	return &OpError{Desc: "failed to create clone", Name: name, Errno: errno}
}

func rollbackError(errno unix.Errno, name string) error {
	switch errno {
	case 0:
		return nil
	case unix.EINVAL:
		if !ValidFilesystemName(name) {
			return &NameInvalid{name}
		}
		if len(name) > MaxNameLen {
			return &NameTooLong{name}
		}
		return &SnapshotNotFound{name}
	case unix.ENOENT:
		if !ValidFilesystemName(name) {
			return &NameInvalid{name}
		}
		return &FilesystemNotFound{name}
	}
	return &OpError{Desc: "failed to rollback", Name: name, Errno: errno}
}

func snapshotErrors(errno unix.Errno, errlist *Map, snaps []string) error {
	mapper := func(code unix.Errno, name string) error {
		switch code {
		case unix.EXDEV:
			// Within one pool a cross-device status can only mean
			// two requested snapshots of the same filesystem.
			samePool := true
			for _, s := range snaps {
				if PoolName(s) != PoolName(snaps[0]) {
					samePool = false
					break
				}
			}
			if len(snaps) > 0 && samePool {
				return &DuplicateSnapshots{name}
			}
			return &PoolsDiffer{name}
		case unix.EINVAL:
			for _, s := range snaps {
				if !ValidSnapshotName(s) {
					return &NameInvalid{name}
				}
			}
			for _, s := range snaps {
				if len(s) > MaxNameLen {
					return &NameTooLong{name}
				}
			}
			return &PropertyInvalid{name}
		case unix.EEXIST:
			return &SnapshotExists{name}
		case unix.ENOENT:
			return &FilesystemNotFound{name}
		}
		return &OpError{Desc: "failed to create snapshot", Name: name, Errno: code}
	}
	return handleErrList(errno, errlist, snaps, func(b BatchError) error {
		return &SnapshotFailure{b}
	}, mapper)
}

func destroySnapshotsErrors(errno unix.Errno, errlist *Map, snaps []string) error {
	mapper := func(code unix.Errno, name string) error {
		switch code {
		case unix.EEXIST:
			return &SnapshotIsCloned{name}
		case unix.ENOENT:
			return &PoolNotFound{name}
		case unix.EBUSY:
			return &SnapshotIsHeld{name}
		}
		return &OpError{Desc: "failed to destroy snapshot", Name: name, Errno: code}
	}
	return handleErrList(errno, errlist, snaps, func(b BatchError) error {
		return &SnapshotDestructionFailure{b}
	}, mapper)
}

func bookmarkErrors(errno unix.Errno, errlist *Map, bookmarks *Map) error {
	mapper := func(code unix.Errno, name string) error {
		if code == unix.EINVAL {
			if name != "" {
				snap := ""
				if v, ok := bookmarks.Get(name); ok {
					snap, _ = v.(string)
				}
				if !ValidBookmarkName(name) {
					return &NameInvalid{name}
				}
				if !ValidSnapshotName(snap) {
					return &NameInvalid{snap}
				}
				if FilesystemName(name) != FilesystemName(snap) {
					return &BookmarkMismatch{name}
				}
				for _, b := range bookmarks.Keys() {
					if PoolName(b) != PoolName(name) {
						return &PoolsDiffer{name}
					}
				}
			} else {
				for _, b := range bookmarks.Keys() {
					if !ValidBookmarkName(b) {
						return &NameInvalid{b}
					}
				}
			}
		}
		switch code {
		case unix.EEXIST:
			return &BookmarkExists{name}
		case unix.ENOENT:
			return &SnapshotNotFound{name}
		case unix.ENOTSUP:
			return &BookmarkNotSupported{name}
		}
		return &OpError{Desc: "failed to create bookmark", Name: name, Errno: code}
	}
	return handleErrList(errno, errlist, bookmarks.Keys(), func(b BatchError) error {
		return &BookmarkFailure{b}
	}, mapper)
}

func getBookmarksError(errno unix.Errno, fsname string) error {
	switch errno {
	case 0:
		return nil
	case unix.ENOENT:
		return &FilesystemNotFound{fsname}
	}
	return &OpError{Desc: "failed to list bookmarks", Name: fsname, Errno: errno}
}

func destroyBookmarksErrors(errno unix.Errno, errlist *Map, bookmarks []string) error {
	mapper := func(code unix.Errno, name string) error {
		if code == unix.EINVAL {
			return &NameInvalid{name}
		}
		return &OpError{Desc: "failed to destroy bookmark", Name: name, Errno: code}
	}
	return handleErrList(errno, errlist, bookmarks, func(b BatchError) error {
		return &BookmarkDestructionFailure{b}
	}, mapper)
}

func snapRangeSpaceError(errno unix.Errno, firstsnap, lastsnap string) error {
	switch errno {
	case 0:
		return nil
	case unix.EINVAL:
		if !ValidSnapshotName(firstsnap) {
			return &NameInvalid{firstsnap}
		}
		if !ValidSnapshotName(lastsnap) {
			return &NameInvalid{lastsnap}
		}
		if len(firstsnap) > MaxNameLen {
			return &NameTooLong{firstsnap}
		}
		if len(lastsnap) > MaxNameLen {
			return &NameTooLong{lastsnap}
		}
		if PoolName(firstsnap) != PoolName(lastsnap) {
			return &PoolsDiffer{lastsnap}
		}
		return &SnapshotMismatch{lastsnap}
	case unix.ENOENT:
		return &SnapshotNotFound{lastsnap}
	}
	return &OpError{Desc: "failed to calculate space used by range of snapshots", Name: lastsnap, Errno: errno}
}

func holdErrors(errno unix.Errno, errlist *Map, holds *Map, fd int) error {
	if errno == unix.EBADF {
		return &BadHoldCleanupFD{}
	}
	mapper := func(code unix.Errno, name string) error {
		switch code {
		case unix.EXDEV:
			return &PoolsDiffer{name}
		case unix.EINVAL:
			if name != "" {
				if !ValidSnapshotName(name) {
					return &NameInvalid{name}
				}
				if len(name) > MaxNameLen {
					return &NameTooLong{name}
				}
				for _, s := range holds.Keys() {
					if PoolName(s) != PoolName(name) {
						return &PoolsDiffer{name}
					}
				}
			} else {
				for _, s := range holds.Keys() {
					if !ValidSnapshotName(s) {
						return &NameInvalid{s}
					}
				}
			}
		}
		var fsName, holdName, poolName string
		if name != "" {
			fsName = FilesystemName(name)
			poolName = PoolName(name)
			if v, ok := holds.Get(name); ok {
				holdName, _ = v.(string)
			}
		}
		switch code {
		case unix.ENOENT:
			return &FilesystemNotFound{fsName}
		case unix.EEXIST:
			return &HoldExists{name}
		case unix.E2BIG:
			return &NameTooLong{holdName}
		case unix.ENOTSUP:
			return &FeatureNotSupported{poolName}
		}
		return &OpError{Desc: "failed to hold snapshot", Name: name, Errno: code}
	}
	return handleErrList(errno, errlist, holds.Keys(), func(b BatchError) error {
		return &HoldFailure{b}
	}, mapper)
}

func releaseErrors(errno unix.Errno, errlist *Map, holds *Map) error {
	mapper := func(code unix.Errno, name string) error {
		switch code {
		case unix.EXDEV:
			return &PoolsDiffer{name}
		case unix.EINVAL:
			if name != "" {
				if !ValidSnapshotName(name) {
					return &NameInvalid{name}
				}
				if len(name) > MaxNameLen {
					return &NameTooLong{name}
				}
				for _, s := range holds.Keys() {
					if PoolName(s) != PoolName(name) {
						return &PoolsDiffer{name}
					}
				}
			} else {
				for _, s := range holds.Keys() {
					if !ValidSnapshotName(s) {
						return &NameInvalid{s}
					}
				}
			}
		case unix.ENOENT:
			return &HoldNotFound{name}
		case unix.E2BIG:
			// The over-long component is one of the tags, not the
			// snapshot name.
			if v, ok := holds.Get(name); ok {
				if tags, ok := v.([]string); ok {
					for _, t := range tags {
						if len(t) > MaxNameLen {
							return &NameTooLong{t}
						}
					}
				}
			}
			return &NameTooLong{name}
		case unix.ENOTSUP:
			pool := ""
			if name != "" {
				pool = PoolName(name)
			}
			return &FeatureNotSupported{pool}
		}
		return &OpError{Desc: "failed to release snapshot hold", Name: name, Errno: code}
	}
	return handleErrList(errno, errlist, holds.Keys(), func(b BatchError) error {
		return &HoldReleaseFailure{b}
	}, mapper)
}

func getHoldsError(errno unix.Errno, snapname string) error {
	switch errno {
	case 0:
		return nil
	case unix.EINVAL:
		if !ValidSnapshotName(snapname) {
			return &NameInvalid{snapname}
		}
		if len(snapname) > MaxNameLen {
			return &NameTooLong{snapname}
		}
	case unix.ENOENT:
		return &SnapshotNotFound{snapname}
	case unix.ENOTSUP:
		return &FeatureNotSupported{PoolName(snapname)}
	}
	return &OpError{Desc: "failed to get holds on snapshot", Name: snapname, Errno: errno}
}

func sendError(errno unix.Errno, snapname, fromsnap string) error {
	switch {
	case errno == 0:
		return nil
	case errno == unix.EXDEV && fromsnap != "":
		if PoolName(fromsnap) != PoolName(snapname) {
			return &PoolsDiffer{snapname}
		}
		return &SnapshotMismatch{snapname}
	case errno == unix.EINVAL:
		if fromsnap != "" && !ValidSnapshotName(fromsnap) && !ValidBookmarkName(fromsnap) {
			return &NameInvalid{fromsnap}
		}
		if !ValidSnapshotName(snapname) && !ValidFilesystemName(snapname) {
			return &NameInvalid{snapname}
		}
		if fromsnap != "" && len(fromsnap) > MaxNameLen {
			return &NameTooLong{fromsnap}
		}
		if len(snapname) > MaxNameLen {
			return &NameTooLong{snapname}
		}
		if fromsnap != "" && PoolName(fromsnap) != PoolName(snapname) {
			return &PoolsDiffer{snapname}
		}
	case errno == unix.ENOENT:
		if fromsnap != "" && !ValidSnapshotName(fromsnap) && !ValidBookmarkName(fromsnap) {
			return &NameInvalid{fromsnap}
		}
		return &SnapshotNotFound{snapname}
	case errno == unix.ENAMETOOLONG:
		if fromsnap != "" && len(fromsnap) > MaxNameLen {
			return &NameTooLong{fromsnap}
		}
		return &NameTooLong{snapname}
	}
	return &OpError{Desc: "failed to send stream", Name: snapname, Errno: errno}
}

func sendSpaceError(errno unix.Errno, snapname, fromsnap string) error {
	switch {
	case errno == 0:
		return nil
	case errno == unix.EXDEV && fromsnap != "":
		if PoolName(fromsnap) != PoolName(snapname) {
			return &PoolsDiffer{snapname}
		}
		return &SnapshotMismatch{snapname}
	case errno == unix.EINVAL:
		if fromsnap != "" && !ValidSnapshotName(fromsnap) {
			return &NameInvalid{fromsnap}
		}
		if !ValidSnapshotName(snapname) {
			return &NameInvalid{snapname}
		}
		if fromsnap != "" && len(fromsnap) > MaxNameLen {
			return &NameTooLong{fromsnap}
		}
		if len(snapname) > MaxNameLen {
			return &NameTooLong{snapname}
		}
		if fromsnap != "" && PoolName(fromsnap) != PoolName(snapname) {
			return &PoolsDiffer{snapname}
		}
	case errno == unix.ENOENT:
		if fromsnap != "" && !ValidSnapshotName(fromsnap) {
			return &NameInvalid{fromsnap}
		}
		return &SnapshotNotFound{snapname}
	}
	return &OpError{Desc: "failed to estimate backup stream size", Name: snapname, Errno: errno}
}

func receiveError(errno unix.Errno, snapname, origin string) error {
	switch errno {
	case 0:
		return nil
	case unix.EINVAL:
		if !ValidSnapshotName(snapname) {
			return &NameInvalid{snapname}
		}
		if len(snapname) > MaxNameLen {
			return &NameTooLong{snapname}
		}
		if origin != "" && !ValidSnapshotName(origin) {
			return &NameInvalid{origin}
		}
		return &BadStream{}
	case unix.ENOENT:
		if !ValidSnapshotName(snapname) {
			return &NameInvalid{snapname}
		}
		return &DatasetNotFound{snapname}
	case unix.EEXIST:
		return &DatasetExists{snapname}
	case unix.ENOTSUP:
		return &StreamFeatureNotSupported{}
	case unix.ENODEV:
		return &StreamMismatch{FilesystemName(snapname)}
	case unix.ETXTBSY:
		return &DestinationModified{FilesystemName(snapname)}
	case unix.EBUSY:
		return &DatasetBusy{FilesystemName(snapname)}
	case unix.ENOSPC:
		return &NoSpace{FilesystemName(snapname)}
	case unix.EDQUOT:
		return &QuotaExceeded{FilesystemName(snapname)}
	case unix.ENAMETOOLONG:
		return &NameTooLong{snapname}
	case unix.EROFS:
		return &ReadOnlyPool{PoolName(snapname)}
	case unix.EAGAIN:
		return &SuspendedPool{PoolName(snapname)}
	}
	return &OpError{Desc: "failed to receive stream", Name: snapname, Errno: errno}
}
