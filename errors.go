package lzc

import (
	"fmt"
	"strings"

	"golang.org/x/sys/unix"
)

// ValueError is returned when a property value cannot be represented
// in the container format, or when adding it to a container fails.
type ValueError struct {
	// Key is the property key whose value caused the error.
	Key string
	// Reason explains why the value could not be converted.
	Reason error
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("cannot convert value of %q: %v", e.Key, e.Reason)
}

func (e *ValueError) Unwrap() error { return e.Reason }

// NameInvalid reports a name that violates the naming grammar.
type NameInvalid struct{ Name string }

func (e *NameInvalid) Error() string { return fmt.Sprintf("invalid name %q", e.Name) }

// NameTooLong reports a name or tag that exceeds [MaxNameLen].
type NameTooLong struct{ Name string }

func (e *NameTooLong) Error() string {
	return fmt.Sprintf("name %q exceeds %d characters", e.Name, MaxNameLen)
}

// PropertyInvalid reports a request whose name was acceptable but
// whose supplied properties were not.
type PropertyInvalid struct{ Name string }

func (e *PropertyInvalid) Error() string {
	return fmt.Sprintf("invalid properties for %q", e.Name)
}

// PoolsDiffer reports an operation that spans more than one pool.
type PoolsDiffer struct{ Name string }

func (e *PoolsDiffer) Error() string {
	return fmt.Sprintf("source and target of %q belong to different pools", e.Name)
}

// SnapshotMismatch reports a snapshot that is not a descendant of
// the source snapshot.
type SnapshotMismatch struct{ Name string }

func (e *SnapshotMismatch) Error() string {
	return fmt.Sprintf("snapshot %q is not descendant of the source snapshot", e.Name)
}

// DuplicateSnapshots reports a request for multiple snapshots of the
// same filesystem.
type DuplicateSnapshots struct{ Name string }

func (e *DuplicateSnapshots) Error() string {
	return fmt.Sprintf("requested multiple snapshots of the same filesystem (%q)", e.Name)
}

// BookmarkMismatch reports a bookmark in a different filesystem than
// its source snapshot.
type BookmarkMismatch struct{ Name string }

func (e *BookmarkMismatch) Error() string {
	return fmt.Sprintf("bookmark %q is not in the same filesystem as its source snapshot", e.Name)
}

type FilesystemExists struct{ Name string }

func (e *FilesystemExists) Error() string { return fmt.Sprintf("filesystem %q already exists", e.Name) }

type SnapshotExists struct{ Name string }

func (e *SnapshotExists) Error() string { return fmt.Sprintf("snapshot %q already exists", e.Name) }

type HoldExists struct{ Name string }

func (e *HoldExists) Error() string { return fmt.Sprintf("hold already exists on snapshot %q", e.Name) }

type BookmarkExists struct{ Name string }

func (e *BookmarkExists) Error() string { return fmt.Sprintf("bookmark %q already exists", e.Name) }

type DatasetExists struct{ Name string }

func (e *DatasetExists) Error() string { return fmt.Sprintf("dataset %q already exists", e.Name) }

type ParentNotFound struct{ Name string }

func (e *ParentNotFound) Error() string { return fmt.Sprintf("parent of %q does not exist", e.Name) }

type FilesystemNotFound struct{ Name string }

func (e *FilesystemNotFound) Error() string { return fmt.Sprintf("filesystem %q not found", e.Name) }

type DatasetNotFound struct{ Name string }

func (e *DatasetNotFound) Error() string { return fmt.Sprintf("dataset %q not found", e.Name) }

type SnapshotNotFound struct{ Name string }

func (e *SnapshotNotFound) Error() string { return fmt.Sprintf("snapshot %q not found", e.Name) }

type PoolNotFound struct{ Name string }

func (e *PoolNotFound) Error() string { return fmt.Sprintf("pool of %q not found", e.Name) }

type HoldNotFound struct{ Name string }

func (e *HoldNotFound) Error() string { return fmt.Sprintf("hold not found on snapshot %q", e.Name) }

// SnapshotIsCloned reports a snapshot that cannot be destroyed
// because clones depend on it.
type SnapshotIsCloned struct{ Name string }

func (e *SnapshotIsCloned) Error() string { return fmt.Sprintf("snapshot %q has clones", e.Name) }

// SnapshotIsHeld reports a snapshot that cannot be destroyed because
// holds exist on it.
type SnapshotIsHeld struct{ Name string }

func (e *SnapshotIsHeld) Error() string { return fmt.Sprintf("snapshot %q is held", e.Name) }

type DatasetBusy struct{ Name string }

func (e *DatasetBusy) Error() string { return fmt.Sprintf("dataset %q is busy", e.Name) }

// FeatureNotSupported reports a pool that lacks a feature required
// by the operation.
type FeatureNotSupported struct{ Name string }

func (e *FeatureNotSupported) Error() string {
	return fmt.Sprintf("pool %q does not support the requested feature", e.Name)
}

type BookmarkNotSupported struct{ Name string }

func (e *BookmarkNotSupported) Error() string {
	return fmt.Sprintf("bookmarks are not supported for %q", e.Name)
}

// StreamFeatureNotSupported reports a send stream using features
// unknown to the receiving system.
type StreamFeatureNotSupported struct{}

func (e *StreamFeatureNotSupported) Error() string {
	return "stream contains features not supported on this system"
}

// BadHoldCleanupFD reports an invalid cleanup file descriptor passed
// to a hold request.
type BadHoldCleanupFD struct{}

func (e *BadHoldCleanupFD) Error() string { return "bad cleanup file descriptor" }

type QuotaExceeded struct{ Name string }

func (e *QuotaExceeded) Error() string { return fmt.Sprintf("quota exceeded on %q", e.Name) }

type NoSpace struct{ Name string }

func (e *NoSpace) Error() string { return fmt.Sprintf("no space left on %q", e.Name) }

type ReadOnlyPool struct{ Name string }

func (e *ReadOnlyPool) Error() string { return fmt.Sprintf("pool %q is read-only", e.Name) }

type SuspendedPool struct{ Name string }

func (e *SuspendedPool) Error() string { return fmt.Sprintf("pool %q is suspended", e.Name) }

// BadStream reports a corrupt or invalid send stream.
type BadStream struct{}

func (e *BadStream) Error() string { return "bad send stream" }

// StreamMismatch reports a send stream that does not match the
// receiving filesystem.
type StreamMismatch struct{ Name string }

func (e *StreamMismatch) Error() string { return fmt.Sprintf("stream does not match filesystem %q", e.Name) }

// DestinationModified reports a receive destination that was
// modified since the most recent snapshot.
type DestinationModified struct{ Name string }

func (e *DestinationModified) Error() string {
	return fmt.Sprintf("destination %q was modified", e.Name)
}

// OpError wraps a status code for which no sharper classification
// applies. It is the escape hatch of the error taxonomy: Errno
// carries the raw code, Desc a human-readable description of the
// failed operation.
type OpError struct {
	Desc  string
	Name  string
	Errno unix.Errno
}

func (e *OpError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("%s: %v", e.Desc, e.Errno)
	}
	return fmt.Sprintf("%s (%s): %v", e.Desc, e.Name, e.Errno)
}

func (e *OpError) Unwrap() error { return e.Errno }

// BatchError aggregates per-item failures from a batch operation.
// Errs holds one classified error per enumerated item, in the order
// the items were reported; Suppressed counts additional errors that
// were not individually enumerated.
type BatchError struct {
	Errs       []error
	Suppressed int
}

func (e *BatchError) Error() string { return e.describe("batch operation failed") }

func (e *BatchError) Unwrap() []error { return e.Errs }

func (e *BatchError) describe(what string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d error(s)", what, len(e.Errs))
	if e.Suppressed > 0 {
		fmt.Fprintf(&b, ", %d suppressed", e.Suppressed)
	}
	for _, err := range e.Errs {
		b.WriteString("\n\t")
		b.WriteString(err.Error())
	}
	return b.String()
}

// SnapshotFailure reports a failed batch snapshot request.
type SnapshotFailure struct{ BatchError }

func (e *SnapshotFailure) Error() string { return e.describe("snapshot creation failed") }

// SnapshotDestructionFailure reports a failed batch snapshot destroy.
type SnapshotDestructionFailure struct{ BatchError }

func (e *SnapshotDestructionFailure) Error() string { return e.describe("snapshot destruction failed") }

// BookmarkFailure reports a failed batch bookmark request.
type BookmarkFailure struct{ BatchError }

func (e *BookmarkFailure) Error() string { return e.describe("bookmark creation failed") }

// BookmarkDestructionFailure reports a failed batch bookmark destroy.
type BookmarkDestructionFailure struct{ BatchError }

func (e *BookmarkDestructionFailure) Error() string { return e.describe("bookmark destruction failed") }

// HoldFailure reports a failed batch hold request.
type HoldFailure struct{ BatchError }

func (e *HoldFailure) Error() string { return e.describe("hold creation failed") }

// HoldReleaseFailure reports a failed batch hold release.
type HoldReleaseFailure struct{ BatchError }

func (e *HoldReleaseFailure) Error() string { return e.describe("hold release failed") }
