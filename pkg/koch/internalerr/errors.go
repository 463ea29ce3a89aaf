package internalerr

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by stores, readers, writers and stages
var (
	ErrStoreClosed   = errors.New("store closed")
	ErrStoreOpen     = errors.New("store open failed")
	ErrUnsupported   = errors.New("unsupported operation")
	ErrMissingColumn = errors.New("missing column")
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrDecode        = errors.New("decode failed")
	ErrFetch         = errors.New("fetch failed")

	// ErrStop ends an iteration early. Readers treat it as a clean exit and
	// never return it to their caller.
	ErrStop = errors.New("stop iteration")
)

// MissingColumnError reports a configured column absent from a delimited
// text header.
type MissingColumnError struct {
	Column string
	Source string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("expected column %q in %s", e.Column, e.Source)
}

// Is lets errors.Is(err, ErrMissingColumn) match.
func (e *MissingColumnError) Is(target error) bool {
	return target == ErrMissingColumn
}
