package domain

import "time"

// SessionStatus is a point-in-time view of the executor, served over HTTP.
type SessionStatus struct {
	SessionID      string    `json:"session_id"`
	SSID           string    `json:"ssid"`
	BSSID          string    `json:"bssid"`
	Channel        int       `json:"channel"`
	State          string    `json:"state"`
	CountID        int       `json:"count_id"`
	TimeoutSeconds float64   `json:"timeout_seconds"`
	Queries        uint64    `json:"queries"`
	LastQuery      string    `json:"last_query,omitempty"`
	LastResponse   string    `json:"last_response,omitempty"`
	LastReceiveAt  time.Time `json:"last_receive_at,omitempty"`
}
