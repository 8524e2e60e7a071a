// Package memfs implements the in-memory file service: a table of named files
// with owner/others permission masks and a bounded table of open handles.
//
// All state lives in a Service. Operations return domain failures as *FSError
// values whose Code the protocol layer maps to wire status codes:
//
//	svc := memfs.NewService(memfs.Config{MaxOpenFiles: 5})
//	_ = svc.Create(ctx, "a", "hello", memfs.PermissionReadWrite, memfs.PermissionRead)
//	h, _ := svc.Open(ctx, "a", memfs.PermissionRead)
//	text, _ := svc.Read(ctx, h.FD, 5) // "hello"
//
// Descriptors are slot indices. A new handle takes the lowest free slot and
// closing a handle never renumbers the others.
package memfs
