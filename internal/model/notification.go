package model

// Notification priorities follow the ntfy scale (1 = min, 5 = urgent)
const (
	PriorityLow    = 1
	PriorityNormal = 3
	PriorityHigh   = 4
	PriorityUrgent = 5
)

// Notification is a single push message handed to the notifier and
// then discarded. Tags are comma-separated ntfy tag/emoji identifiers.
type Notification struct {
	Title    string `json:"title"`
	Message  string `json:"message"`
	Priority int    `json:"priority"`
	Tags     string `json:"tags"`
}

// ReportKind identifies a scheduled summary report period
type ReportKind string

const (
	ReportDaily  ReportKind = "daily"
	ReportWeekly ReportKind = "weekly"
)
