package audit

import "errors"

var (
	// ErrInvalidRecord indicates a record is missing required fields
	ErrInvalidRecord = errors.New("invalid audit record")

	// ErrDuplicateRecord indicates the (invoice, payment, action) triple was already recorded
	ErrDuplicateRecord = errors.New("audit record already exists")

	// ErrStorageNotAvailable indicates the storage backend is unavailable
	ErrStorageNotAvailable = errors.New("audit storage is unavailable")
)
