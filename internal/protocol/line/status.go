package line

import (
	"strconv"

	"github.com/marmos91/memfsd/pkg/accounts"
	"github.com/marmos91/memfsd/pkg/memfs"
)

// Status is the signed integer sent as the first line of every reply.
type Status int

const (
	StatusOk                  Status = 0
	StatusExit                Status = -1
	StatusFileAlreadyExists   Status = -4
	StatusFileDoesntExist     Status = -5
	StatusPermissionDenied    Status = -6
	StatusReachedMaxOpenFiles Status = -7
	StatusFileNotOpen         Status = -8
	StatusFileAlreadyOpen     Status = -9
	StatusOpenInInvalidMode   Status = -10
	StatusMiscellaneousError  Status = -11
	StatusClientAlreadyExists Status = -12
	StatusClientDoesntExist   Status = -13
	StatusWrongCredentials    Status = -14

	// StatusClosedConnection is observed by clients when the server hangs
	// up. The server never sends it.
	StatusClosedConnection Status = -30
)

var statusNames = map[Status]string{
	StatusOk:                  "Ok",
	StatusExit:                "Exit",
	StatusFileAlreadyExists:   "FileAlreadyExists",
	StatusFileDoesntExist:     "FileDoesntExist",
	StatusPermissionDenied:    "PermissionDenied",
	StatusReachedMaxOpenFiles: "ReachedMaxOpenFiles",
	StatusFileNotOpen:         "FileNotOpen",
	StatusFileAlreadyOpen:     "FileAlreadyOpen",
	StatusOpenInInvalidMode:   "OpenInInvalidMode",
	StatusMiscellaneousError:  "MiscellaneousError",
	StatusClientAlreadyExists: "ClientAlreadyExists",
	StatusClientDoesntExist:   "ClientDoesntExist",
	StatusWrongCredentials:    "WrongCredentials",
	StatusClosedConnection:    "ClosedConnection",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "Status(" + strconv.Itoa(int(s)) + ")"
}

// Known reports whether s is one of the defined status codes.
func (s Status) Known() bool {
	_, ok := statusNames[s]
	return ok
}

var fsStatus = map[memfs.ErrorCode]Status{
	memfs.ErrFileAlreadyExists:   StatusFileAlreadyExists,
	memfs.ErrFileDoesntExist:     StatusFileDoesntExist,
	memfs.ErrPermissionDenied:    StatusPermissionDenied,
	memfs.ErrReachedMaxOpenFiles: StatusReachedMaxOpenFiles,
	memfs.ErrFileNotOpen:         StatusFileNotOpen,
	memfs.ErrFileAlreadyOpen:     StatusFileAlreadyOpen,
	memfs.ErrOpenInInvalidMode:   StatusOpenInInvalidMode,
	memfs.ErrMiscellaneous:       StatusMiscellaneousError,
}

var accountStatus = map[accounts.ErrorCode]Status{
	accounts.ErrClientAlreadyExists: StatusClientAlreadyExists,
	accounts.ErrClientDoesntExist:   StatusClientDoesntExist,
	accounts.ErrWrongCredentials:    StatusWrongCredentials,
	accounts.ErrInvalidName:         StatusMiscellaneousError,
}

// StatusFromError maps the result of a service or registry call to the
// status sent back to the client.
//
// nil is StatusOk. Errors that carry no domain code (cancelled contexts and
// the like) are reported as StatusMiscellaneousError.
func StatusFromError(err error) Status {
	if err == nil {
		return StatusOk
	}
	if code, ok := memfs.CodeOf(err); ok {
		if s, ok := fsStatus[code]; ok {
			return s
		}
	}
	if code, ok := accounts.CodeOf(err); ok {
		if s, ok := accountStatus[code]; ok {
			return s
		}
	}
	return StatusMiscellaneousError
}
