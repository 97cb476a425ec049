package domain

import (
	"time"
)

type SessionStatus string

const (
	SessionStatusRunning   SessionStatus = "Running"
	SessionStatusExpired   SessionStatus = "Expired"
	SessionStatusCancelled SessionStatus = "Cancelled"
)

// Session is a single armed timed run of a channel. At most one session
// exists per channel at any instant; it is destroyed on natural expiry
// or when the channel is switched off manually.
type Session struct {
	ID              string        `json:"id"`
	ChannelID       int           `json:"channel_id"`
	StartTime       time.Time     `json:"start_time"`
	EndTime         time.Time     `json:"end_time"`
	DurationMinutes int           `json:"duration_minutes"`
	Status          SessionStatus `json:"status"`
}
