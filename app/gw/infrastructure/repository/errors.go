package repository

import "errors"

var (
	// ErrNotExist means there is no rows which are matched conditions.
	ErrNotExist = errors.New("no condition matched rows")

	// ErrDuplicateEntry means store already has a entry which the
	// primary key value is same with you given.
	ErrDuplicateEntry = errors.New("duplicate entry for primary key")

	// ErrNotEmpty means the row is still referenced by child rows and
	// cannot be removed.
	ErrNotEmpty = errors.New("row is referenced by other rows")
)
