package accounts

import "errors"

// AccountError is a domain error returned by registry operations.
type AccountError struct {
	Code    ErrorCode
	Message string
	Name    string
}

func (e *AccountError) Error() string {
	if e.Name != "" {
		return e.Message + ": " + e.Name
	}
	return e.Message
}

// ErrorCode is the category of an AccountError.
type ErrorCode int

const (
	// ErrClientAlreadyExists indicates register was called with a taken name
	ErrClientAlreadyExists ErrorCode = iota + 1

	// ErrClientDoesntExist indicates login named an unknown account
	ErrClientDoesntExist

	// ErrWrongCredentials indicates the password did not match
	ErrWrongCredentials

	// ErrInvalidName indicates an empty account name
	ErrInvalidName
)

func (c ErrorCode) String() string {
	switch c {
	case ErrClientAlreadyExists:
		return "ClientAlreadyExists"
	case ErrClientDoesntExist:
		return "ClientDoesntExist"
	case ErrWrongCredentials:
		return "WrongCredentials"
	case ErrInvalidName:
		return "InvalidName"
	default:
		return "Unknown"
	}
}

// CodeOf extracts the ErrorCode from err. The second return value is false
// when err is not an AccountError.
func CodeOf(err error) (ErrorCode, bool) {
	var accErr *AccountError
	if errors.As(err, &accErr) {
		return accErr.Code, true
	}
	return 0, false
}
