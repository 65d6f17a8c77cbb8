// Package events fans pipeline progress out to SSE subscribers.
package events

import (
	"encoding/json"
	"time"
)

// Event types published during a run.
const (
	TypeJobAdded   = "job_added"
	TypeSourceDone = "source_done"
	TypeRunDone    = "run_done"
	TypeRunStarted = "run_started"
)

type Event struct {
	Type      string          `json:"type"`
	Version   int             `json:"v"`
	At        time.Time       `json:"at"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// MakeEvent encodes one event line. Unencodable data is dropped, not fatal.
func MakeEvent(reqID, typ string, v int, data any) string {
	e := Event{
		Type:      typ,
		Version:   v,
		At:        time.Now().UTC(),
		RequestID: reqID,
	}
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			e.Data = b
		}
	}
	b, _ := json.Marshal(e)
	return string(b)
}

// Notifier adapts the hub to the pipeline's progress callback.
func Notifier(h *Hub, reqID string) func(event string, data any) {
	return func(event string, data any) {
		h.Publish(MakeEvent(reqID, event, 1, data))
	}
}
