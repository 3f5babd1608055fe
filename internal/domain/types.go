package domain

import "time"

// Version is one saved snapshot of the editor content together with the
// word-level change against the snapshot before it.
type Version struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Content      string    `json:"content"`
	OldLength    int       `json:"oldLength"`
	NewLength    int       `json:"newLength"`
	AddedWords   []string  `json:"addedWords"`
	RemovedWords []string  `json:"removedWords"`
}

// ShortID returns the first 8 characters of the id for display.
func (v Version) ShortID() string {
	if len(v.ID) <= 8 {
		return v.ID
	}
	return v.ID[:8]
}
