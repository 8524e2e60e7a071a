package memfs

import (
	"fmt"
	"strings"
)

// Permission is a 2-bit capability mask.
//
// Bit 0 grants write access and bit 1 grants read access, so ReadWrite is the
// union of both. The numeric values are part of the persisted snapshot format
// and must not change.
type Permission uint8

const (
	PermissionNone      Permission = 0      // 0b00
	PermissionWrite     Permission = 1 << 0 // 0b01
	PermissionRead      Permission = 1 << 1 // 0b10
	PermissionReadWrite            = PermissionRead | PermissionWrite
)

// Compatible reports whether a handle requesting the given access may be
// granted against a file permission.
//
// A request is compatible when it shares at least one bit with the grant.
// PermissionNone shares no bits with anything, so a None request is never
// compatible.
func Compatible(requested, granted Permission) bool {
	return requested&granted != 0
}

// CanRead reports whether the read bit is set.
func (p Permission) CanRead() bool { return p&PermissionRead != 0 }

// CanWrite reports whether the write bit is set.
func (p Permission) CanWrite() bool { return p&PermissionWrite != 0 }

// Valid reports whether p is one of the four defined masks.
func (p Permission) Valid() bool { return p <= PermissionReadWrite }

// String returns the short wire form (N, W, R or RW).
func (p Permission) String() string {
	switch p {
	case PermissionNone:
		return "N"
	case PermissionWrite:
		return "W"
	case PermissionRead:
		return "R"
	case PermissionReadWrite:
		return "RW"
	default:
		return fmt.Sprintf("Permission(%d)", uint8(p))
	}
}

// ParsePermission decodes the textual permission used on the wire.
//
// The short forms N, R, W and RW are accepted in any letter case. The long
// forms None, Read, Write and ReadWrite are accepted too, because older
// clients sent those.
func ParsePermission(text string) (Permission, error) {
	switch strings.ToUpper(strings.TrimSpace(text)) {
	case "N", "NONE":
		return PermissionNone, nil
	case "W", "WRITE":
		return PermissionWrite, nil
	case "R", "READ":
		return PermissionRead, nil
	case "RW", "READWRITE":
		return PermissionReadWrite, nil
	default:
		return PermissionNone, fmt.Errorf("unknown permission %q", text)
	}
}
