// Package uuid generates time-ordered identifiers for primary keys.
package uuid

import (
	googleuuid "github.com/google/uuid"
)

// New returns a UUIDv7 string. Version 7 ids sort by creation time, which
// keeps btree inserts on primary keys append-mostly.
func New() string {
	id, err := googleuuid.NewV7()
	if err != nil {
		// Fallback to standard UUIDv4 if random generation fails
		return googleuuid.New().String()
	}
	return id.String()
}

// IsValid checks if a string is a valid UUID
func IsValid(s string) bool {
	_, err := googleuuid.Parse(s)
	return err == nil
}
