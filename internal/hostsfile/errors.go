package hostsfile

import (
	"errors"
	"fmt"
	"io/fs"
	"syscall"
)

// AccessError indicates the table could not be read.
type AccessError struct {
	Path string
	Err  error
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("hostsfile: read %s: %v", e.Path, e.Err)
}

func (e *AccessError) Unwrap() error { return e.Err }

// WriteKind classifies a table write failure.
type WriteKind string

const (
	WriteKindReadOnly  WriteKind = "read-only"
	WriteKindPrivilege WriteKind = "insufficient-privilege"
	WriteKindOther     WriteKind = "other"
)

// WriteError indicates the table could not be persisted. Kind selects the
// user-facing remediation message.
type WriteError struct {
	Path string
	Kind WriteKind
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("hostsfile: write %s (%s): %v", e.Path, e.Kind, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Remediation returns an actionable message naming the exact file path.
func (e *WriteError) Remediation() string {
	switch e.Kind {
	case WriteKindReadOnly:
		return fmt.Sprintf(
			"The hosts file %s is marked read-only.\nClear the read-only attribute and start again.",
			e.Path,
		)
	case WriteKindPrivilege:
		return fmt.Sprintf(
			"No permission to write the hosts file %s.\nRun with elevated privileges (administrator/root) and start again.",
			e.Path,
		)
	default:
		return fmt.Sprintf("Could not write the hosts file %s: %v", e.Path, e.Err)
	}
}

func classifyWriteError(path string, err error) *WriteError {
	kind := WriteKindOther
	var errno syscall.Errno
	switch {
	case errors.As(err, &errno) && errno == syscall.EROFS:
		kind = WriteKindReadOnly
	case errors.Is(err, fs.ErrPermission):
		kind = WriteKindPrivilege
	}
	return &WriteError{Path: path, Kind: kind, Err: err}
}
