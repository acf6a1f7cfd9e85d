// Package event defines the transactional play event and its factory.
package event

import (
	"time"

	json "github.com/goccy/go-json"
)

// PlayEvent is one simulated play, referencing master data by id. The JSON
// field names form the wire contract with the ingestion endpoint.
type PlayEvent struct {
	EventID        string    `json:"event_id"`
	SongID         string    `json:"song_id"`
	UserID         string    `json:"user_id"`
	LocationID     string    `json:"location_id"`
	PlayedAt       time.Time `json:"played_at"`
	PlayDurationMS int       `json:"play_duration_ms"`
	DeviceType     string    `json:"device_type"`
}

// Encode serializes the event for posting to the ingestion endpoint.
func (e PlayEvent) Encode() ([]byte, error) {
	return json.Marshal(e)
}
