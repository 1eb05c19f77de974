package lzctest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/mikoim/lzc"
	"github.com/mikoim/lzc/nvpair"
)

func TestCountingRuntime(t *testing.T) {
	rt := &CountingRuntime{}

	a, err := rt.Alloc()
	require.NoError(t, err)
	b, err := rt.Alloc()
	require.NoError(t, err)
	assert.Equal(t, 2, rt.Allocs())
	assert.Equal(t, 2, rt.Live())

	a.Free()
	assert.Equal(t, 1, rt.Frees())
	assert.Equal(t, 1, rt.Live())

	b.Free()
	assert.Equal(t, 0, rt.Live())
	assert.Equal(t, 0, rt.ExtraFrees())

	// Freeing a foreign list is counted separately.
	rt.Free(nvpair.NewList(nvpair.Std))
	assert.Equal(t, 1, rt.ExtraFrees())
}

func TestCountingRuntimeFailAfter(t *testing.T) {
	rt := &CountingRuntime{FailAfter: 2}

	for i := 0; i < 2; i++ {
		l, err := rt.Alloc()
		require.NoError(t, err, "allocation %d", i)
		defer l.Free()
	}
	_, err := rt.Alloc()
	assert.ErrorIs(t, err, ErrAllocLimit)
	assert.Equal(t, 2, rt.Allocs())
}

// snapRequest builds the container shape of a snapshot batch.
func snapRequest(t *testing.T, names ...string) *nvpair.List {
	t.Helper()
	l, err := nvpair.Std.Alloc()
	require.NoError(t, err)
	for _, n := range names {
		require.NoError(t, l.AddBoolean(n))
	}
	return l
}

func seed(t *testing.T, d *MemDriver, datasets ...string) {
	t.Helper()
	for _, name := range datasets {
		require.Equal(t, unix.Errno(0), d.Create(name, lzc.DatasetZFS, nil), "creating %s", name)
	}
}

func TestMemDriverErrlistShape(t *testing.T) {
	d := NewMemDriver(nil)
	seed(t, d, "tank")

	req := snapRequest(t, "tank/a@s", "tank/b@s", "tank/c@s")
	defer req.Free()
	var slot nvpair.Slot
	errno := d.Snapshot(req, nil, &slot)
	assert.Equal(t, unix.ENOENT, errno)

	errs := slot.Take()
	require.NotNil(t, errs)
	defer errs.Free()

	// All three failures enumerated, no suppressed-count entry.
	assert.Equal(t, 3, errs.Len())
	_, hasMore := errs.Lookup("N_MORE_ERRORS")
	assert.False(t, hasMore)
	p, ok := errs.Lookup("tank/a@s")
	require.True(t, ok)
	code, err := p.Int32()
	require.NoError(t, err)
	assert.Equal(t, int32(unix.ENOENT), code)
}

func TestMemDriverMaxErrors(t *testing.T) {
	d := NewMemDriver(nil)
	d.MaxErrors = 1
	seed(t, d, "tank")

	req := snapRequest(t, "tank/a@s", "tank/b@s", "tank/c@s")
	defer req.Free()
	var slot nvpair.Slot
	errno := d.Snapshot(req, nil, &slot)
	assert.Equal(t, unix.ENOENT, errno)

	errs := slot.Take()
	require.NotNil(t, errs)
	defer errs.Free()

	// One enumerated entry plus the suppressed count.
	assert.Equal(t, 2, errs.Len())
	p, ok := errs.Lookup("N_MORE_ERRORS")
	require.True(t, ok)
	more, err := p.Int32()
	require.NoError(t, err)
	assert.Equal(t, int32(2), more)
}

func TestMemDriverSnapshotAtomic(t *testing.T) {
	d := NewMemDriver(nil)
	seed(t, d, "tank", "tank/fs")

	req := snapRequest(t, "tank/fs@ok", "tank/ghost@s")
	defer req.Free()
	var slot nvpair.Slot
	errno := d.Snapshot(req, nil, &slot)
	assert.Equal(t, unix.ENOENT, errno)
	if l := slot.Take(); l != nil {
		l.Free()
	}

	assert.False(t, d.Exists("tank/fs@ok"), "failed batch must create nothing")
}

func TestMemDriverCrossPoolSnapshot(t *testing.T) {
	d := NewMemDriver(nil)
	seed(t, d, "p1", "p2")

	req := snapRequest(t, "p1@s", "p2@s")
	defer req.Free()
	var slot nvpair.Slot
	assert.Equal(t, unix.EXDEV, d.Snapshot(req, nil, &slot))
	assert.Nil(t, slot.Take())
}

func TestMemDriverHoldCleanupFD(t *testing.T) {
	d := NewMemDriver(nil)
	var slot nvpair.Slot
	assert.Equal(t, unix.EBADF, d.Hold(nil, -2, &slot))
}

func TestMemDriverSnapshotPropsNotShared(t *testing.T) {
	d := NewMemDriver(nil)
	seed(t, d, "tank", "tank/a", "tank/b")

	props, err := nvpair.Std.Alloc()
	require.NoError(t, err)
	defer props.Free()
	require.NoError(t, props.AddUint64("com.example:tier", 1))

	req := snapRequest(t, "tank/a@s", "tank/b@s")
	defer req.Free()
	var slot nvpair.Slot
	require.Equal(t, unix.Errno(0), d.Snapshot(req, props, &slot))

	// One snapshot's props must not alias the other's.
	d.snapshots["tank/a@s"].props["com.example:tier"] = uint64(2)
	assert.Equal(t, uint64(1), d.snapshots["tank/b@s"].props["com.example:tier"])
}
