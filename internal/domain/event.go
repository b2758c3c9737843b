package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies a realtime notification sent to a user.
type EventType string

const (
	EventProgress  EventType = "generation.progress"
	EventCompleted EventType = "generation.completed"
	EventFailed    EventType = "generation.failed"
)

// Event is a realtime progress notification for the owner of a job.
type Event struct {
	Type      EventType  `json:"type"`
	JobID     uuid.UUID  `json:"jobId"`
	Status    JobStatus  `json:"status"`
	Stage     Stage      `json:"stage"`
	Progress  int        `json:"progress"`
	Message   string     `json:"message,omitempty"`
	Error     string     `json:"error,omitempty"`
	Artifacts []Artifact `json:"artifacts,omitempty"`
	Requested int        `json:"requested,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}
