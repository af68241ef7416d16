package tabular

import "errors"

var (
	ErrNilTable            = errors.New("nil table")
	ErrEmptyColumnName     = errors.New("empty column name")
	ErrDuplicateColumnName = errors.New("duplicate column name")
	ErrNoHandler           = errors.New("no handler for path")
	ErrSheetNotFound       = errors.New("sheet not found")
	ErrNotLoaded           = errors.New("source not loaded")
	ErrClosed              = errors.New("handler already saved or closed")
)
