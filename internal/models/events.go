package models

import "time"

// ActivityEvent is the wire form of an audit entry on the activity topic.
// Publishing is best-effort; consumers persist it as an Activity row.
type ActivityEvent struct {
	EventID     string    `json:"event_id"`
	Shop        string    `json:"shop"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Metadata    Metadata  `json:"metadata,omitempty"`
	Severity    string    `json:"severity"`
	Timestamp   time.Time `json:"timestamp"`
}
