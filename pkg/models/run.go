package models

import "time"

type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one execution of an area performed by the backend engine.
type Run struct {
	ID         int64      `json:"id"`
	Area       int64      `json:"area"`
	Status     RunStatus  `json:"status"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Webhook is an inbound endpoint registered with an external service.
type Webhook struct {
	ID        int64     `json:"id,omitempty"`
	Service   string    `json:"service"    validate:"required"`
	URL       string    `json:"url"        validate:"required,url"`
	Events    []string  `json:"events"     validate:"required,min=1"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}
