package domain

import "time"

// CapturedFrame is one raw frame as seen by the capture pipeline.
type CapturedFrame struct {
	Data      []byte
	Timestamp time.Time
}

// Response is the abstraction of what the network answered to a query.
type Response struct {
	Symbol          string
	Elapsed         time.Duration
	SequenceControl uint16
	ReceivedAt      time.Time
}

// IsTimeout reports whether nothing matched within the response timeout.
func (r Response) IsTimeout() bool {
	return r.Symbol == RespTimeout
}

// IsData reports whether the matched frame was a plain data frame.
func (r Response) IsData() bool {
	return r.Symbol == RespData
}

// Timed reports whether the response carries an elapsed-time suffix on the wire.
func (r Response) Timed() bool {
	return !r.IsTimeout() && !r.IsData()
}

// Exchange is one query line and the response line written back for it.
type Exchange struct {
	SessionID string    `json:"session_id"`
	Query     string    `json:"query"`
	Response  string    `json:"response"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}
