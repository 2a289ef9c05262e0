package events

import "time"

// ProgressEvent represents a send-session progress update published to NATS.
// This is published to the subject "sends.{session_id}" in JetStream.
type ProgressEvent struct {
	// Session identifiers
	SessionID string `json:"session_id"`
	Phase     string `json:"phase"`

	// Human-readable progress text (status message at this point in the run)
	Message string `json:"message"`

	// Signatures accumulated so far, in submission order
	Signatures []string `json:"signatures,omitempty"`

	// Metadata
	PublishedAt time.Time `json:"published_at"`
}
