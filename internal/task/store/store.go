// Package store persists tasks and their execution records with gorm.
package store

import (
	"errors"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a lookup by id matches no row.
var ErrNotFound = errors.New("record not found")

func notFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
