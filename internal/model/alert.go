package model

import "time"

// AlertTaskState tracks the lifecycle of one dispatched alert cycle.
type AlertTaskState string

const (
	AlertTaskRunning AlertTaskState = "RUNNING"
	AlertTaskDone    AlertTaskState = "DONE"
	AlertTaskFailed  AlertTaskState = "FAILED"
)

// AlertTask is one enrichment+classification+notify unit of work. The
// dispatcher owns the task until it reaches a terminal state.
type AlertTask struct {
	ID        string         `json:"id"`
	Symbol    string         `json:"symbol"`
	Side      Side           `json:"side"`
	TotalUSD  float64        `json:"total_usd"`
	Price     float64        `json:"price"`
	StartedAt time.Time      `json:"started_at"`
	State     AlertTaskState `json:"state"`
}
