package memfs

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/marmos91/memfsd/internal/logger"
)

// DefaultMaxOpenFiles is the handle table capacity used when none is configured.
const DefaultMaxOpenFiles = 5

// Config configures a Service.
type Config struct {
	// MaxOpenFiles is the number of handle slots. Zero means DefaultMaxOpenFiles.
	MaxOpenFiles int `mapstructure:"max_open_files" yaml:"max_open_files" validate:"min=0,max=1024"`
}

// Stats is a point-in-time view of the service tables.
type Stats struct {
	Files        int
	OpenHandles  int
	MaxOpenFiles int
}

// Service implements the file operations on top of the file table and the
// handle table.
//
// Thread Safety:
// Both tables are guarded by one mutex held for the whole of each operation,
// so every operation is atomic with respect to every other. Nothing blocks
// while the mutex is held. Records and handles are returned by value.
type Service struct {
	mu      sync.Mutex
	files   *fileTable
	handles *handleTable
}

// NewService creates an empty service.
func NewService(cfg Config) *Service {
	capacity := cfg.MaxOpenFiles
	if capacity <= 0 {
		capacity = DefaultMaxOpenFiles
	}

	return &Service{
		files:   newFileTable(),
		handles: newHandleTable(capacity),
	}
}

// Create adds a new file.
//
// Returns ErrFileAlreadyExists if the name is taken; the existing file is
// left untouched. An empty name is ErrMiscellaneous.
func (s *Service) Create(ctx context.Context, name, content string, owner, others Permission) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before create: %w", err)
	}
	if name == "" {
		return newError(ErrMiscellaneous, "file name is empty", name)
	}
	if !SingleLine(name) || !SingleLine(content) {
		return newError(ErrMiscellaneous, "file name or content contains a line feed", name)
	}
	if !owner.Valid() || !others.Valid() {
		return newError(ErrMiscellaneous, "invalid permission mask", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.files.exists(name) {
		return newError(ErrFileAlreadyExists, "file already exists", name)
	}

	s.files.insert(&FileRecord{
		Name:             name,
		Content:          content,
		OwnerPermission:  owner,
		OthersPermission: others,
	})

	logger.Debug("memfs: created %q owner=%s others=%s", name, owner, others)
	return nil
}

// Delete removes a file, closing its handle first if it is open.
func (s *Service) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before delete: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.files.exists(name) {
		return newError(ErrFileDoesntExist, "file does not exist", name)
	}

	if h, ok := s.handles.lookupName(name); ok {
		s.handles.release(h.FD)
		logger.Debug("memfs: closed fd=%d before deleting %q", h.FD, name)
	}
	s.files.remove(name)

	logger.Debug("memfs: deleted %q", name)
	return nil
}

// Rename moves a file to a new name.
//
// Content and permissions move with it. If the file is open, its handle is
// re-pointed at the new name and keeps its descriptor and permission.
func (s *Service) Rename(ctx context.Context, oldName, newName string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before rename: %w", err)
	}
	if newName == "" {
		return newError(ErrMiscellaneous, "new file name is empty", oldName)
	}
	if !SingleLine(newName) {
		return newError(ErrMiscellaneous, "new file name contains a line feed", oldName)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.files.exists(oldName) {
		return newError(ErrFileDoesntExist, "file does not exist", oldName)
	}
	if s.files.exists(newName) {
		return newError(ErrFileAlreadyExists, "file already exists", newName)
	}

	s.files.move(oldName, newName)
	if s.handles.repoint(oldName, newName) {
		logger.Debug("memfs: handle on %q now refers to %q", oldName, newName)
	}

	logger.Debug("memfs: renamed %q to %q", oldName, newName)
	return nil
}

// Open allocates a handle on a file.
//
// Checks run in this order: handle table full, file exists, file already
// open, requested access compatible with the owner permission. The file's
// others permission is not consulted.
func (s *Service) Open(ctx context.Context, name string, requested Permission) (OpenHandle, error) {
	if err := ctx.Err(); err != nil {
		return OpenHandle{}, fmt.Errorf("context cancelled before open: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handles.full() {
		return OpenHandle{}, newError(ErrReachedMaxOpenFiles, "open file table is full", name)
	}

	rec, ok := s.files.get(name)
	if !ok {
		return OpenHandle{}, newError(ErrFileDoesntExist, "file does not exist", name)
	}

	if _, open := s.handles.lookupName(name); open {
		return OpenHandle{}, newError(ErrFileAlreadyOpen, "file already open", name)
	}

	if !Compatible(requested, rec.OwnerPermission) {
		return OpenHandle{}, newError(ErrPermissionDenied,
			fmt.Sprintf("requested %s against %s", requested, rec.OwnerPermission), name)
	}

	h := s.handles.allocate(name, requested)
	logger.Debug("memfs: opened %q fd=%d gen=%d perm=%s", name, h.FD, h.Generation, requested)
	return h, nil
}

// Close releases the handle at fd.
//
// A negative descriptor or one greater than the capacity is
// ErrMiscellaneous. Any other descriptor without a live handle, including
// one equal to the capacity, is ErrFileNotOpen.
func (s *Service) Close(ctx context.Context, fd int) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before close: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if fd < 0 || fd > s.handles.capacity() {
		return newError(ErrMiscellaneous,
			fmt.Sprintf("descriptor %d beyond table of %d", fd, s.handles.capacity()), "")
	}
	if !s.handles.release(fd) {
		return newError(ErrFileNotOpen, fmt.Sprintf("descriptor %d is not open", fd), "")
	}

	logger.Debug("memfs: closed fd=%d", fd)
	return nil
}

// Read returns the first length characters of the file behind fd.
//
// The handle must be live, length must not exceed the content length, and the
// handle must include read access, checked in that order. Nothing is
// consumed: repeated reads return the same prefix.
func (s *Service) Read(ctx context.Context, fd, length int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context cancelled before read: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.handles.lookup(fd)
	if !ok {
		return "", newError(ErrFileNotOpen, fmt.Sprintf("descriptor %d is not open", fd), "")
	}

	rec, _ := s.files.get(h.FileName)
	content := []rune(rec.Content)
	if length < 0 || length > len(content) {
		return "", newError(ErrMiscellaneous,
			fmt.Sprintf("read length %d exceeds content length %d", length, len(content)), h.FileName)
	}

	if !h.Permission.CanRead() {
		return "", newError(ErrOpenInInvalidMode, "handle not open for reading", h.FileName)
	}

	return string(content[:length]), nil
}

// Write replaces the content of the file behind fd with the first length
// characters of content.
//
// length is clamped to the character length of content. The handle must be
// live and include write access. Returns the number of characters stored.
func (s *Service) Write(ctx context.Context, fd int, content string, length int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context cancelled before write: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.handles.lookup(fd)
	if !ok {
		return 0, newError(ErrFileNotOpen, fmt.Sprintf("descriptor %d is not open", fd), "")
	}

	if !h.Permission.CanWrite() {
		return 0, newError(ErrOpenInInvalidMode, "handle not open for writing", h.FileName)
	}

	if length < 0 {
		return 0, newError(ErrMiscellaneous, fmt.Sprintf("negative write length %d", length), h.FileName)
	}
	if !SingleLine(content) {
		return 0, newError(ErrMiscellaneous, "content contains a line feed", h.FileName)
	}

	runes := []rune(content)
	if length > len(runes) {
		length = len(runes)
	}

	rec, _ := s.files.get(h.FileName)
	rec.Content = string(runes[:length])

	logger.Debug("memfs: wrote %d chars to %q via fd=%d", length, h.FileName, fd)
	return length, nil
}

// Lookup returns a copy of the named record.
func (s *Service) Lookup(name string) (FileRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.files.get(name)
	if !ok {
		return FileRecord{}, false
	}
	return *rec, true
}

// Handles returns the live handles ordered by descriptor.
func (s *Service) Handles() []OpenHandle {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.handles.handles()
}

// Stats returns table sizes.
func (s *Service) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		Files:        s.files.len(),
		OpenHandles:  s.handles.live,
		MaxOpenFiles: s.handles.capacity(),
	}
}

// Snapshot returns copies of every file record sorted by name.
// Open handles are not part of a snapshot.
func (s *Service) Snapshot() []FileRecord {
	s.mu.Lock()
	records := s.files.records()
	s.mu.Unlock()

	sort.Slice(records, func(i, j int) bool { return records[i].Name < records[j].Name })
	return records
}

// Restore replaces the file table with records and drops every open handle.
//
// The records are validated first; on error the service is unchanged.
func (s *Service) Restore(records []FileRecord) error {
	table := newFileTable()
	for i := range records {
		rec := records[i]
		if rec.Name == "" {
			return fmt.Errorf("record %d: empty file name", i)
		}
		if !SingleLine(rec.Name) || !SingleLine(rec.Content) {
			return fmt.Errorf("record %q: line feed in name or content", rec.Name)
		}
		if !rec.OwnerPermission.Valid() || !rec.OthersPermission.Valid() {
			return fmt.Errorf("record %q: invalid permission mask", rec.Name)
		}
		if table.exists(rec.Name) {
			return fmt.Errorf("record %q: duplicate file name", rec.Name)
		}
		table.insert(&rec)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.files = table
	s.handles = newHandleTable(s.handles.capacity())
	return nil
}
