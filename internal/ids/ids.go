// Package ids generates entity identifiers.
package ids

import (
	"github.com/google/uuid"
)

// New generates a time-ordered UUID v7 string for a new entity.
func New() string {
	return uuid.Must(uuid.NewV7()).String()
}
