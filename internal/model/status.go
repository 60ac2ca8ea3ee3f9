package model

import "time"

// StatusResponse represents the payload served by the ops status endpoint.
type StatusResponse struct {
	Mode       string    `json:"mode"`
	ValidCount int       `json:"validCount"`
	UsedCount  int       `json:"usedCount"`
	StartedAt  time.Time `json:"startedAt"`
	SessionID  string    `json:"sessionId"`
}
