package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a user entity. Authentication is handled upstream; this
// record only anchors document and session ownership.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never serialize password hash
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
}
