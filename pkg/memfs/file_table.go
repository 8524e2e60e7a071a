package memfs

import "strings"

// SingleLine reports whether text fits on one protocol line. File names and
// content are sent back to clients as reply lines, so neither may contain a
// line feed.
func SingleLine(text string) bool {
	return !strings.ContainsRune(text, '\n')
}

// FileRecord is a named file held in memory.
//
// Records handed out by the service are copies; mutating one has no effect on
// the table.
type FileRecord struct {
	Name             string     `json:"name"`
	Content          string     `json:"content"`
	OwnerPermission  Permission `json:"owner_permission"`
	OthersPermission Permission `json:"others_permission"`
}

// fileTable maps file names to records. It is not safe for concurrent use;
// Service serializes every access under its mutex.
type fileTable struct {
	files map[string]*FileRecord
}

func newFileTable() *fileTable {
	return &fileTable{files: make(map[string]*FileRecord)}
}

func (t *fileTable) get(name string) (*FileRecord, bool) {
	rec, ok := t.files[name]
	return rec, ok
}

func (t *fileTable) exists(name string) bool {
	_, ok := t.files[name]
	return ok
}

// insert adds rec under rec.Name. The caller checks for collisions first.
func (t *fileTable) insert(rec *FileRecord) {
	t.files[rec.Name] = rec
}

func (t *fileTable) remove(name string) {
	delete(t.files, name)
}

// move re-keys the record stored under oldName to newName, keeping content
// and permissions.
func (t *fileTable) move(oldName, newName string) {
	rec := t.files[oldName]
	delete(t.files, oldName)
	rec.Name = newName
	t.files[newName] = rec
}

func (t *fileTable) len() int {
	return len(t.files)
}

// records returns copies of every record.
func (t *fileTable) records() []FileRecord {
	out := make([]FileRecord, 0, len(t.files))
	for _, rec := range t.files {
		out = append(out, *rec)
	}
	return out
}
