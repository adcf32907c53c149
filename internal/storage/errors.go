// errors.go - Storage sentinel errors.

package storage

import "errors"

var (
	// ErrNotFound is returned by Retrieve when no value is stored under the key.
	// badger.ErrKeyNotFound never leaves this package.
	ErrNotFound = errors.New("key not found")

	// ErrAlreadyExists is returned by Insert when the key is already taken.
	ErrAlreadyExists = errors.New("key already exists")
)
