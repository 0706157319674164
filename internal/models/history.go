package models

import "time"

// HistoryEntry is one applied search remembered by the history store.
type HistoryEntry struct {
	ID        string    `json:"id"`
	Query     string    `json:"query"`
	Page      int       `json:"page"`
	Total     int       `json:"total"`
	Failed    bool      `json:"failed"`
	CreatedAt time.Time `json:"created_at"`
}
