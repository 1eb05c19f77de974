package lzctest

import (
	"maps"
	"strings"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/mikoim/lzc"
	"github.com/mikoim/lzc/nvpair"
)

type dataset struct {
	typ   lzc.DatasetType
	props map[string]any
}

type snapshot struct {
	txg      uint64
	props    map[string]any
	holds    map[string]uint64 // tag -> creation time
	clones   int
	deferred bool
}

type bookmark struct {
	guid      uint64
	createTxg uint64
	creation  uint64
}

// A MemDriver is an in-memory lzc.Driver. It keeps datasets,
// snapshots, bookmarks and holds in maps and reports the status
// codes a real backend would, including per-item error lists for
// batch operations.
type MemDriver struct {
	// MaxErrors, when positive, caps the number of individually
	// enumerated entries in an error list. Failures beyond the cap
	// are folded into a single suppressed-count entry.
	MaxErrors int

	rt nvpair.Runtime

	mu        sync.Mutex
	txg       uint64
	now       uint64
	datasets  map[string]*dataset
	snapshots map[string]*snapshot
	bookmarks map[string]*bookmark
	streams   map[int][]byte
}

// NewMemDriver returns an empty driver whose result containers come
// from rt. A nil rt uses the standard runtime.
func NewMemDriver(rt nvpair.Runtime) *MemDriver {
	if rt == nil {
		rt = nvpair.Std
	}
	return &MemDriver{
		rt:        rt,
		now:       1700000000,
		datasets:  make(map[string]*dataset),
		snapshots: make(map[string]*snapshot),
		bookmarks: make(map[string]*bookmark),
		streams:   make(map[int][]byte),
	}
}

func (d *MemDriver) tick() uint64 {
	d.txg++
	d.now++
	return d.txg
}

func parentOf(name string) string {
	i := strings.LastIndexByte(name, '/')
	if i < 0 {
		return ""
	}
	return name[:i]
}

func listProps(l *nvpair.List) map[string]any {
	props := make(map[string]any)
	if l == nil {
		return props
	}
	for p := range l.Pairs() {
		switch p.Type() {
		case nvpair.TypeString:
			v, _ := p.String()
			props[p.Name()] = v
		case nvpair.TypeUint64:
			v, _ := p.Uint64()
			props[p.Name()] = v
		case nvpair.TypeBooleanValue:
			v, _ := p.BooleanValue()
			props[p.Name()] = v
		}
	}
	return props
}

func listNames(l *nvpair.List) []string {
	var names []string
	if l == nil {
		return names
	}
	for p := range l.Pairs() {
		names = append(names, p.Name())
	}
	return names
}

type itemErr struct {
	name  string
	errno unix.Errno
}

// putErrs delivers per-item failures through the slot, honoring
// MaxErrors, and returns the aggregate status.
func (d *MemDriver) putErrs(slot *nvpair.Slot, items []itemErr) unix.Errno {
	l, err := d.rt.Alloc()
	if err != nil {
		return unix.ENOMEM
	}
	enumerate := items
	if d.MaxErrors > 0 && len(items) > d.MaxErrors {
		enumerate = items[:d.MaxErrors]
	}
	for _, it := range enumerate {
		if err := l.AddInt32(it.name, int32(it.errno)); err != nil {
			l.Free()
			return unix.ENOMEM
		}
	}
	if n := len(items) - len(enumerate); n > 0 {
		if err := l.AddInt32("N_MORE_ERRORS", int32(n)); err != nil {
			l.Free()
			return unix.ENOMEM
		}
	}
	slot.Set(l)
	return items[0].errno
}

func (d *MemDriver) Create(name string, typ lzc.DatasetType, props *nvpair.List) unix.Errno {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !lzc.ValidFilesystemName(name) || len(name) > lzc.MaxNameLen {
		return unix.EINVAL
	}
	if _, ok := d.datasets[name]; ok {
		return unix.EEXIST
	}
	if parent := parentOf(name); parent != "" {
		if _, ok := d.datasets[parent]; !ok {
			return unix.ENOENT
		}
	}
	d.datasets[name] = &dataset{typ: typ, props: listProps(props)}
	return 0
}

func (d *MemDriver) Clone(name, origin string, props *nvpair.List) unix.Errno {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !lzc.ValidFilesystemName(name) || !lzc.ValidSnapshotName(origin) {
		return unix.EINVAL
	}
	if len(name) > lzc.MaxNameLen || len(origin) > lzc.MaxNameLen {
		return unix.EINVAL
	}
	if lzc.PoolName(name) != lzc.PoolName(origin) {
		return unix.EINVAL
	}
	if _, ok := d.datasets[name]; ok {
		return unix.EEXIST
	}
	snap, ok := d.snapshots[origin]
	if !ok {
		return unix.ENOENT
	}
	if parent := parentOf(name); parent != "" {
		if _, ok := d.datasets[parent]; !ok {
			return unix.ENOENT
		}
	}
	snap.clones++
	d.datasets[name] = &dataset{typ: lzc.DatasetZFS, props: listProps(props)}
	return 0
}

// latestSnap returns the most recently created snapshot of fs.
func (d *MemDriver) latestSnap(fs string) (string, *snapshot) {
	var bestName string
	var best *snapshot
	for name, s := range d.snapshots {
		if lzc.FilesystemName(name) != fs {
			continue
		}
		if best == nil || s.txg > best.txg {
			bestName, best = name, s
		}
	}
	return bestName, best
}

func (d *MemDriver) Rollback(name string, out *nvpair.Slot) unix.Errno {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !lzc.ValidFilesystemName(name) || len(name) > lzc.MaxNameLen {
		return unix.EINVAL
	}
	if _, ok := d.datasets[name]; !ok {
		return unix.ENOENT
	}
	snapName, snap := d.latestSnap(name)
	if snap == nil {
		return unix.EINVAL
	}
	l, err := d.rt.Alloc()
	if err != nil {
		return unix.ENOMEM
	}
	if err := l.AddString("target", snapName); err != nil {
		l.Free()
		return unix.ENOMEM
	}
	out.Set(l)
	return 0
}

func (d *MemDriver) Snapshot(snaps *nvpair.List, props *nvpair.List, errs *nvpair.Slot) unix.Errno {
	d.mu.Lock()
	defer d.mu.Unlock()
	names := listNames(snaps)
	if len(names) == 0 {
		return unix.EINVAL
	}
	pool := lzc.PoolName(names[0])
	seen := make(map[string]bool)
	for _, n := range names {
		if !lzc.ValidSnapshotName(n) || len(n) > lzc.MaxNameLen {
			return unix.EINVAL
		}
		if lzc.PoolName(n) != pool {
			return unix.EXDEV
		}
		if seen[lzc.FilesystemName(n)] {
			return unix.EXDEV
		}
		seen[lzc.FilesystemName(n)] = true
	}
	var items []itemErr
	for _, n := range names {
		if _, ok := d.datasets[lzc.FilesystemName(n)]; !ok {
			items = append(items, itemErr{n, unix.ENOENT})
		} else if _, ok := d.snapshots[n]; ok {
			items = append(items, itemErr{n, unix.EEXIST})
		}
	}
	if len(items) > 0 {
		return d.putErrs(errs, items)
	}
	// Each snapshot gets its own copy of the props map.
	sp := listProps(props)
	for _, n := range names {
		d.snapshots[n] = &snapshot{txg: d.tick(), props: maps.Clone(sp), holds: make(map[string]uint64)}
	}
	return 0
}

func (d *MemDriver) DestroySnapshots(snaps *nvpair.List, deferred bool, errs *nvpair.Slot) unix.Errno {
	d.mu.Lock()
	defer d.mu.Unlock()
	var items []itemErr
	for _, n := range listNames(snaps) {
		s, ok := d.snapshots[n]
		if !ok {
			continue // missing snapshots are not an error
		}
		switch {
		case s.clones > 0:
			items = append(items, itemErr{n, unix.EEXIST})
		case len(s.holds) > 0 && !deferred:
			items = append(items, itemErr{n, unix.EBUSY})
		case len(s.holds) > 0:
			s.deferred = true
		default:
			delete(d.snapshots, n)
		}
	}
	if len(items) > 0 {
		return d.putErrs(errs, items)
	}
	return 0
}

func (d *MemDriver) Bookmark(bookmarks *nvpair.List, errs *nvpair.Slot) unix.Errno {
	d.mu.Lock()
	defer d.mu.Unlock()
	type req struct{ name, snap string }
	var reqs []req
	pool := ""
	if bookmarks != nil {
		for p := range bookmarks.Pairs() {
			snap, err := p.String()
			if err != nil {
				return unix.EINVAL
			}
			reqs = append(reqs, req{p.Name(), snap})
		}
	}
	for _, r := range reqs {
		if !lzc.ValidBookmarkName(r.name) || !lzc.ValidSnapshotName(r.snap) {
			return unix.EINVAL
		}
		if lzc.FilesystemName(r.name) != lzc.FilesystemName(r.snap) {
			return unix.EINVAL
		}
		if pool == "" {
			pool = lzc.PoolName(r.name)
		} else if lzc.PoolName(r.name) != pool {
			return unix.EINVAL
		}
	}
	var items []itemErr
	for _, r := range reqs {
		if _, ok := d.snapshots[r.snap]; !ok {
			items = append(items, itemErr{r.name, unix.ENOENT})
		} else if _, ok := d.bookmarks[r.name]; ok {
			items = append(items, itemErr{r.name, unix.EEXIST})
		}
	}
	if len(items) > 0 {
		return d.putErrs(errs, items)
	}
	for _, r := range reqs {
		src := d.snapshots[r.snap]
		d.bookmarks[r.name] = &bookmark{
			guid:      src.txg ^ 0x5a5a5a5a,
			createTxg: src.txg,
			creation:  d.now,
		}
	}
	return 0
}

func (d *MemDriver) GetBookmarks(fsname string, props *nvpair.List, out *nvpair.Slot) unix.Errno {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.datasets[fsname]; !ok {
		return unix.ENOENT
	}
	want := listNames(props)
	l, err := d.rt.Alloc()
	if err != nil {
		return unix.ENOMEM
	}
	for name, bm := range d.bookmarks {
		if lzc.FilesystemName(name) != fsname {
			continue
		}
		sub, err := d.rt.Alloc()
		if err != nil {
			l.Free()
			return unix.ENOMEM
		}
		for _, p := range want {
			var v uint64
			switch p {
			case "guid":
				v = bm.guid
			case "createtxg":
				v = bm.createTxg
			case "creation":
				v = bm.creation
			default:
				continue
			}
			if err := sub.AddUint64(p, v); err != nil {
				sub.Free()
				l.Free()
				return unix.ENOMEM
			}
		}
		short := name[strings.IndexByte(name, '#')+1:]
		err = l.AddList(short, sub)
		sub.Free()
		if err != nil {
			l.Free()
			return unix.ENOMEM
		}
	}
	out.Set(l)
	return 0
}

func (d *MemDriver) DestroyBookmarks(bookmarks *nvpair.List, errs *nvpair.Slot) unix.Errno {
	d.mu.Lock()
	defer d.mu.Unlock()
	var items []itemErr
	for _, n := range listNames(bookmarks) {
		if !lzc.ValidBookmarkName(n) {
			items = append(items, itemErr{n, unix.EINVAL})
			continue
		}
		delete(d.bookmarks, n) // missing bookmarks are not an error
	}
	if len(items) > 0 {
		return d.putErrs(errs, items)
	}
	return 0
}

func (d *MemDriver) SnapRangeSpace(firstsnap, lastsnap string, space *uint64) unix.Errno {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !lzc.ValidSnapshotName(firstsnap) || !lzc.ValidSnapshotName(lastsnap) {
		return unix.EINVAL
	}
	if len(firstsnap) > lzc.MaxNameLen || len(lastsnap) > lzc.MaxNameLen {
		return unix.EINVAL
	}
	if lzc.FilesystemName(firstsnap) != lzc.FilesystemName(lastsnap) {
		return unix.EINVAL
	}
	first, ok := d.snapshots[firstsnap]
	if !ok {
		return unix.ENOENT
	}
	last, ok := d.snapshots[lastsnap]
	if !ok {
		return unix.ENOENT
	}
	if first.txg > last.txg {
		return unix.EINVAL
	}
	fs := lzc.FilesystemName(firstsnap)
	var total uint64
	for name, s := range d.snapshots {
		if lzc.FilesystemName(name) != fs {
			continue
		}
		if s.txg > first.txg && s.txg <= last.txg {
			total += 1 << 10
		}
	}
	*space = total
	return 0
}

func (d *MemDriver) Hold(holds *nvpair.List, cleanupFD int, errs *nvpair.Slot) unix.Errno {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cleanupFD < -1 {
		return unix.EBADF
	}
	type req struct{ snap, tag string }
	var reqs []req
	if holds != nil {
		for p := range holds.Pairs() {
			tag, err := p.String()
			if err != nil {
				return unix.EINVAL
			}
			reqs = append(reqs, req{p.Name(), tag})
		}
	}
	pool := ""
	for _, r := range reqs {
		if !lzc.ValidSnapshotName(r.snap) || len(r.snap) > lzc.MaxNameLen {
			return unix.EINVAL
		}
		if pool == "" {
			pool = lzc.PoolName(r.snap)
		} else if lzc.PoolName(r.snap) != pool {
			return unix.EXDEV
		}
		if len(r.tag) > lzc.MaxNameLen {
			return unix.E2BIG
		}
	}
	var items []itemErr
	for _, r := range reqs {
		s, ok := d.snapshots[r.snap]
		if !ok {
			items = append(items, itemErr{r.snap, unix.ENOENT})
		} else if _, ok := s.holds[r.tag]; ok {
			items = append(items, itemErr{r.snap, unix.EEXIST})
		}
	}
	if len(items) > 0 {
		return d.putErrs(errs, items)
	}
	for _, r := range reqs {
		d.snapshots[r.snap].holds[r.tag] = d.now
	}
	return 0
}

func (d *MemDriver) Release(holds *nvpair.List, errs *nvpair.Slot) unix.Errno {
	d.mu.Lock()
	defer d.mu.Unlock()
	type req struct {
		snap string
		tags []string
	}
	var reqs []req
	if holds != nil {
		for p := range holds.Pairs() {
			tags, err := p.StringArray()
			if err != nil {
				return unix.EINVAL
			}
			reqs = append(reqs, req{p.Name(), tags})
		}
	}
	for _, r := range reqs {
		if !lzc.ValidSnapshotName(r.snap) || len(r.snap) > lzc.MaxNameLen {
			return unix.EINVAL
		}
	}
	var items []itemErr
	for _, r := range reqs {
		s, ok := d.snapshots[r.snap]
		if !ok {
			items = append(items, itemErr{r.snap, unix.ENOENT})
			continue
		}
		missing := false
		for _, t := range r.tags {
			if _, ok := s.holds[t]; !ok {
				missing = true
				break
			}
		}
		if missing {
			items = append(items, itemErr{r.snap, unix.ENOENT})
		}
	}
	if len(items) > 0 {
		return d.putErrs(errs, items)
	}
	for _, r := range reqs {
		s := d.snapshots[r.snap]
		for _, t := range r.tags {
			delete(s.holds, t)
		}
		if s.deferred && len(s.holds) == 0 && s.clones == 0 {
			delete(d.snapshots, r.snap)
		}
	}
	return 0
}

func (d *MemDriver) GetHolds(snapname string, out *nvpair.Slot) unix.Errno {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !lzc.ValidSnapshotName(snapname) || len(snapname) > lzc.MaxNameLen {
		return unix.EINVAL
	}
	s, ok := d.snapshots[snapname]
	if !ok {
		return unix.ENOENT
	}
	l, err := d.rt.Alloc()
	if err != nil {
		return unix.ENOMEM
	}
	for tag, when := range s.holds {
		if err := l.AddUint64(tag, when); err != nil {
			l.Free()
			return unix.ENOMEM
		}
	}
	out.Set(l)
	return 0
}

// streamFor assembles the packed container written as the send
// stream for a snapshot.
func (d *MemDriver) streamFor(snapname, fromsnap string, flags lzc.SendFlags) ([]byte, unix.Errno) {
	l, err := d.rt.Alloc()
	if err != nil {
		return nil, unix.ENOMEM
	}
	defer l.Free()
	if err := l.AddString("snapshot", snapname); err != nil {
		return nil, unix.ENOMEM
	}
	if fromsnap != "" {
		if err := l.AddString("fromsnap", fromsnap); err != nil {
			return nil, unix.ENOMEM
		}
	}
	if err := l.AddUint32("flags", uint32(flags)); err != nil {
		return nil, unix.ENOMEM
	}
	bs, err := nvpair.Pack(l)
	if err != nil {
		return nil, unix.EINVAL
	}
	return bs, 0
}

func (d *MemDriver) Send(snapname, fromsnap string, fd int, flags lzc.SendFlags) unix.Errno {
	d.mu.Lock()
	defer d.mu.Unlock()
	if fd < 0 {
		return unix.EBADF
	}
	if !lzc.ValidSnapshotName(snapname) && !lzc.ValidFilesystemName(snapname) {
		return unix.EINVAL
	}
	if fromsnap != "" {
		if !lzc.ValidSnapshotName(fromsnap) && !lzc.ValidBookmarkName(fromsnap) {
			return unix.EINVAL
		}
		if lzc.PoolName(fromsnap) != lzc.PoolName(snapname) {
			return unix.EXDEV
		}
		_, isSnap := d.snapshots[fromsnap]
		_, isBook := d.bookmarks[fromsnap]
		if !isSnap && !isBook {
			return unix.ENOENT
		}
	}
	if _, ok := d.snapshots[snapname]; !ok {
		return unix.ENOENT
	}
	bs, errno := d.streamFor(snapname, fromsnap, flags)
	if errno != 0 {
		return errno
	}
	for len(bs) > 0 {
		n, err := unix.Write(fd, bs)
		if err != nil {
			return unix.EIO
		}
		bs = bs[n:]
	}
	return 0
}

func (d *MemDriver) SendSpace(snapname, fromsnap string, space *uint64) unix.Errno {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !lzc.ValidSnapshotName(snapname) {
		return unix.EINVAL
	}
	if fromsnap != "" {
		if !lzc.ValidSnapshotName(fromsnap) {
			return unix.EINVAL
		}
		if lzc.PoolName(fromsnap) != lzc.PoolName(snapname) {
			return unix.EXDEV
		}
		if _, ok := d.snapshots[fromsnap]; !ok {
			return unix.ENOENT
		}
	}
	if _, ok := d.snapshots[snapname]; !ok {
		return unix.ENOENT
	}
	bs, errno := d.streamFor(snapname, fromsnap, 0)
	if errno != 0 {
		return errno
	}
	*space = uint64(len(bs))
	return 0
}

func (d *MemDriver) Receive(snapname string, props *nvpair.List, origin string, force bool, fd int) unix.Errno {
	d.mu.Lock()
	defer d.mu.Unlock()
	if fd < 0 {
		return unix.EBADF
	}
	if !lzc.ValidSnapshotName(snapname) {
		return unix.EINVAL
	}
	if len(snapname) > lzc.MaxNameLen {
		return unix.ENAMETOOLONG
	}
	if origin != "" {
		if !lzc.ValidSnapshotName(origin) {
			return unix.EINVAL
		}
		if _, ok := d.snapshots[origin]; !ok {
			return unix.ENOENT
		}
	}
	var raw []byte
	buf := make([]byte, 4096)
	for {
		n, err := unix.Read(fd, buf)
		if err != nil {
			return unix.EIO
		}
		if n == 0 {
			break
		}
		raw = append(raw, buf[:n]...)
	}
	stream, err := nvpair.Unpack(raw, d.rt)
	if err != nil {
		return unix.EINVAL
	}
	defer stream.Free()
	if _, ok := stream.Lookup("snapshot"); !ok {
		return unix.EINVAL
	}
	fs := lzc.FilesystemName(snapname)
	if _, ok := d.snapshots[snapname]; ok {
		return unix.EEXIST
	}
	if _, ok := d.datasets[fs]; ok && !force {
		if _, other := d.latestSnap(fs); other != nil {
			// An existing snapshot chain only accepts matching
			// incrementals; a full stream needs force.
			if _, ok := stream.Lookup("fromsnap"); !ok {
				return unix.ETXTBSY
			}
		}
	}
	if _, ok := d.datasets[fs]; !ok {
		if parent := parentOf(fs); parent != "" {
			if _, ok := d.datasets[parent]; !ok {
				return unix.ENOENT
			}
		}
		d.datasets[fs] = &dataset{typ: lzc.DatasetZFS, props: listProps(props)}
	}
	d.snapshots[snapname] = &snapshot{txg: d.tick(), holds: make(map[string]uint64)}
	return 0
}

func (d *MemDriver) Exists(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.datasets[name]; ok {
		return true
	}
	if _, ok := d.snapshots[name]; ok {
		return true
	}
	_, ok := d.bookmarks[name]
	return ok
}
