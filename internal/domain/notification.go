package domain

import "time"

type Notification struct {
	ID        ID        `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Read      bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
	Recipient *ID       `json:"recipient,omitempty"`
}

// Broadcast reports whether the notification targets every user.
func (n Notification) Broadcast() bool {
	return n.Recipient == nil || *n.Recipient == ""
}
