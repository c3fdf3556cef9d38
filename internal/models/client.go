package models

import "github.com/google/uuid"

// Client is the registry's view of an account holder.
// Owned by the external registry service; read-only here.
type Client struct {
	ID       uuid.UUID
	Name     string
	Document string
	Active   bool
}
