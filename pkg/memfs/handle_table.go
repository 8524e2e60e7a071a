package memfs

// OpenHandle is a live open-file entry.
type OpenHandle struct {
	// FD is the descriptor: the slot index in the handle table
	FD int

	// FileName is the file the handle refers to
	FileName string

	// Permission is the access granted when the file was opened
	Permission Permission

	// Generation counts how many times the slot has been allocated.
	// Together with FD it identifies one particular open.
	Generation uint64
}

type handleSlot struct {
	live       bool
	fileName   string
	permission Permission
	generation uint64
}

// handleTable is a fixed-capacity slot map of open handles.
//
// A descriptor is the index of its slot. Allocation takes the lowest free
// slot and release frees only the released slot, so live descriptors never
// shift. At most one live handle may refer to a given file name.
//
// Not safe for concurrent use; Service holds its mutex around every call.
type handleTable struct {
	slots  []handleSlot
	byName map[string]int
	live   int
}

func newHandleTable(capacity int) *handleTable {
	return &handleTable{
		slots:  make([]handleSlot, capacity),
		byName: make(map[string]int, capacity),
	}
}

func (t *handleTable) capacity() int { return len(t.slots) }

func (t *handleTable) full() bool { return t.live == len(t.slots) }

func (t *handleTable) inRange(fd int) bool { return fd >= 0 && fd < len(t.slots) }

// allocate stores a handle in the lowest free slot and returns it.
// The caller checks full() and the per-name uniqueness first.
func (t *handleTable) allocate(fileName string, perm Permission) OpenHandle {
	for fd := range t.slots {
		slot := &t.slots[fd]
		if slot.live {
			continue
		}
		slot.live = true
		slot.fileName = fileName
		slot.permission = perm
		slot.generation++
		t.byName[fileName] = fd
		t.live++
		return slot.handle(fd)
	}
	panic("memfs: allocate called on a full handle table")
}

// lookup returns the live handle at fd.
func (t *handleTable) lookup(fd int) (OpenHandle, bool) {
	if !t.inRange(fd) || !t.slots[fd].live {
		return OpenHandle{}, false
	}
	return t.slots[fd].handle(fd), true
}

// lookupName returns the live handle referring to fileName.
func (t *handleTable) lookupName(fileName string) (OpenHandle, bool) {
	fd, ok := t.byName[fileName]
	if !ok {
		return OpenHandle{}, false
	}
	return t.slots[fd].handle(fd), true
}

// release frees the slot at fd. It reports false if the slot was not live.
func (t *handleTable) release(fd int) bool {
	if !t.inRange(fd) || !t.slots[fd].live {
		return false
	}
	slot := &t.slots[fd]
	delete(t.byName, slot.fileName)
	slot.live = false
	slot.fileName = ""
	slot.permission = PermissionNone
	t.live--
	return true
}

// repoint moves the handle on oldName to newName in place. Descriptor,
// permission and generation are kept.
func (t *handleTable) repoint(oldName, newName string) bool {
	fd, ok := t.byName[oldName]
	if !ok {
		return false
	}
	delete(t.byName, oldName)
	t.slots[fd].fileName = newName
	t.byName[newName] = fd
	return true
}

// handles returns every live handle ordered by descriptor.
func (t *handleTable) handles() []OpenHandle {
	out := make([]OpenHandle, 0, t.live)
	for fd := range t.slots {
		if t.slots[fd].live {
			out = append(out, t.slots[fd].handle(fd))
		}
	}
	return out
}

func (s *handleSlot) handle(fd int) OpenHandle {
	return OpenHandle{
		FD:         fd,
		FileName:   s.fileName,
		Permission: s.permission,
		Generation: s.generation,
	}
}
