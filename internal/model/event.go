package model

import "time"

// ContainerEvent represents a terminal Docker container lifecycle
// event. Events are ephemeral and consumed exactly once.
type ContainerEvent struct {
	Name      string    `json:"name"`
	ExitCode  int       `json:"exit_code"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// Crashed reports whether the event describes an abnormal exit
func (e ContainerEvent) Crashed() bool {
	return e.ExitCode != 0
}
