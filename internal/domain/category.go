package domain

import "time"

// Category groups bookmarks. Each category is its own ordering partition.
type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}
