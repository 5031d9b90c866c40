package notifications

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("notification not found")

const (
	TypeOrder  = "order"
	TypeStatus = "status"
)

type Notification struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}
