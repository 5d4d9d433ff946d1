package realtime

import (
	"encoding/json"
	"time"
)

// EventType tags a change event. Events are dirty signals: consumers refetch
// authoritative state instead of applying them as deltas.
type EventType string

const (
	EventConnected EventType = "connected"

	AppointmentCreated EventType = "appointment_created"
	AppointmentUpdated EventType = "appointment_updated"
	AppointmentDeleted EventType = "appointment_deleted"

	ClientCreated EventType = "client_created"
	ClientUpdated EventType = "client_updated"
	ClientDeleted EventType = "client_deleted"

	WorkerCreated EventType = "worker_created"
	WorkerUpdated EventType = "worker_updated"
	WorkerDeleted EventType = "worker_deleted"

	ServiceCreated EventType = "service_created"
	ServiceUpdated EventType = "service_updated"
	ServiceDeleted EventType = "service_deleted"

	TeamCreated EventType = "team_created"
	TeamUpdated EventType = "team_updated"
	TeamDeleted EventType = "team_deleted"

	GroupeCreated EventType = "groupe_created"
	GroupeUpdated EventType = "groupe_updated"
	GroupeDeleted EventType = "groupe_deleted"

	ReportCreated EventType = "report_created"
	ReportUpdated EventType = "report_updated"
	ReportDeleted EventType = "report_deleted"
)

// ChangeEvent is the wire envelope carried on a tenant channel.
type ChangeEvent struct {
	Type          EventType     `json:"type"`
	AppointmentID string        `json:"appointmentID,omitempty"`
	WorkerIDs     []string      `json:"workerIds,omitempty"`
	ClientID      string        `json:"clientID,omitempty"`
	IsOpen        *bool         `json:"isOpen,omitempty"`
	OpenedAt      *NullableTime `json:"openedAt,omitempty"`
	ClosedAt      *NullableTime `json:"closedAt,omitempty"`
	FirmaID       string        `json:"firmaID"`
}

// NullableTime distinguishes an explicit null from an absent field once
// wrapped in a pointer.
type NullableTime struct {
	Time *time.Time
}

// NewNullableTime wraps t, which may be nil.
func NewNullableTime(t *time.Time) *NullableTime {
	return &NullableTime{Time: t}
}

func (n NullableTime) MarshalJSON() ([]byte, error) {
	if n.Time == nil {
		return []byte("null"), nil
	}
	return json.Marshal(n.Time.UTC())
}

func (n *NullableTime) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		n.Time = nil
		return nil
	}
	var t time.Time
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	n.Time = &t
	return nil
}

// ConnectedFrame is the first frame written on every stream.
func ConnectedFrame() []byte {
	return []byte(`{"type":"connected"}`)
}

type envelopeHeader struct {
	Type    EventType `json:"type"`
	FirmaID string    `json:"firmaID"`
}
