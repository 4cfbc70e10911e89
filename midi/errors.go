package midi

import "fmt"

// ReadErrorKind separates I/O failures from content the parser rejects
type ReadErrorKind int

const (
	ReadUnreadable ReadErrorKind = iota // missing, permission, I/O
	ReadMalformed                       // not a valid standard MIDI file
)

func (k ReadErrorKind) String() string {
	if k == ReadMalformed {
		return "malformed"
	}
	return "unreadable"
}

// FileReadError is returned when a MIDI file cannot be loaded
type FileReadError struct {
	Path string
	Kind ReadErrorKind
	Err  error
}

func (e *FileReadError) Error() string {
	return fmt.Sprintf("read %s: %s: %v", e.Path, e.Kind, e.Err)
}

func (e *FileReadError) Unwrap() error {
	return e.Err
}
